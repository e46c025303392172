package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/SProjects-cpu/mgm-museum-sub002/internal/model"
	"github.com/SProjects-cpu/mgm-museum-sub002/internal/service"
)

// CartAPI is implemented by *service.CartService.
type CartAPI interface {
	Add(ctx context.Context, owner model.CartOwner, in service.AddItemInput) (model.CartItem, error)
	Sync(ctx context.Context, owner model.CartOwner, items []service.AddItemInput) (service.Cart, error)
	Get(ctx context.Context, owner model.CartOwner) (service.Cart, error)
	UpdateItem(ctx context.Context, owner model.CartOwner, itemID uint64, tickets model.TicketCounts) (model.CartItem, error)
	Remove(ctx context.Context, owner model.CartOwner, itemID uint64) error
	Clear(ctx context.Context, owner model.CartOwner) (int, error)
}

// CartHandler serves /api/cart for signed-in users and guest sessions.
type CartHandler struct {
	Cart CartAPI
}

func NewCartHandler(cart CartAPI) *CartHandler { return &CartHandler{Cart: cart} }

const noOwnerMsg = "sign in or send an X-Session-ID header"

// Add reserves tickets on a slot and returns the new cart item.
func (h *CartHandler) Add(c echo.Context) error {
	owner, ok := cartOwner(c)
	if !ok {
		return badRequest(c, noOwnerMsg)
	}
	var in service.AddItemInput
	if err := c.Bind(&in); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	item, err := h.Cart.Add(ctx, owner, in)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, item)
}

type syncReq struct {
	Items []service.AddItemInput `json:"items"`
}

// Sync replaces the whole cart with the posted items.
func (h *CartHandler) Sync(c echo.Context) error {
	owner, ok := cartOwner(c)
	if !ok {
		return badRequest(c, noOwnerMsg)
	}
	var req syncReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	cart, err := h.Cart.Sync(ctx, owner, req.Items)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, cart)
}

// Get returns the live cart.  Lapsed items are released before listing.
func (h *CartHandler) Get(c echo.Context) error {
	owner, ok := cartOwner(c)
	if !ok {
		return badRequest(c, noOwnerMsg)
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	cart, err := h.Cart.Get(ctx, owner)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, cart)
}

type updateItemReq struct {
	ItemID  uint64             `json:"item_id"`
	Tickets model.TicketCounts `json:"tickets"`
}

// Update changes an item's ticket counts.  All-zero counts remove it.
func (h *CartHandler) Update(c echo.Context) error {
	owner, ok := cartOwner(c)
	if !ok {
		return badRequest(c, noOwnerMsg)
	}
	var req updateItemReq
	if err := c.Bind(&req); err != nil || req.ItemID == 0 {
		return badRequest(c, "item_id and tickets are required")
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	item, err := h.Cart.UpdateItem(ctx, owner, req.ItemID, req.Tickets)
	if err != nil {
		return respondError(c, err)
	}
	if item.ID == 0 {
		return c.NoContent(http.StatusNoContent)
	}
	return c.JSON(http.StatusOK, item)
}

// RemoveItem drops one item and releases its tickets.
func (h *CartHandler) RemoveItem(c echo.Context) error {
	owner, ok := cartOwner(c)
	if !ok {
		return badRequest(c, noOwnerMsg)
	}
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	if err := h.Cart.Remove(ctx, owner, id); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Clear empties the cart.
func (h *CartHandler) Clear(c echo.Context) error {
	owner, ok := cartOwner(c)
	if !ok {
		return badRequest(c, noOwnerMsg)
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	n, err := h.Cart.Clear(ctx, owner)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"removed": n})
}
