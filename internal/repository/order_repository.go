package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/SProjects-cpu/mgm-museum-sub002/internal/database"
	"github.com/SProjects-cpu/mgm-museum-sub002/internal/model"
)

const orderColumns = `id, gateway_order_id, gateway_payment_id, user_id, session_id, amount, currency,
	cart_snapshot, visitor, status, created_at, updated_at`

// OrderRepo persists payment orders.  The cart snapshot column is written
// by Create only; no method updates it.
type OrderRepo struct {
	db *sqlx.DB
}

// NewOrderRepo returns a new OrderRepo bound to the provided database.
func NewOrderRepo(db *sqlx.DB) *OrderRepo { return &OrderRepo{db: db} }

// Create inserts the order with status "created" and assigns its ID.
func (r *OrderRepo) Create(ctx context.Context, o *model.PaymentOrder) error {
	o.Status = model.OrderCreated
	res, err := database.Conn(ctx, r.db).ExecContext(ctx,
		`INSERT INTO payment_orders (gateway_order_id, user_id, session_id, amount, currency, cart_snapshot, visitor, status)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		o.GatewayOrderID, o.UserID, o.SessionID, o.Amount, o.Currency, o.CartSnapshot, o.Visitor, o.Status)
	if err != nil {
		if isDuplicate(err) {
			return ErrConflict
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	o.ID = uint64(id)
	return nil
}

// GetByGatewayIDForUpdate loads and row-locks an order.  It must run
// inside a transaction; concurrent webhook deliveries for the same order
// queue up behind the lock.
func (r *OrderRepo) GetByGatewayIDForUpdate(ctx context.Context, gatewayOrderID string) (model.PaymentOrder, error) {
	return r.getOne(ctx, `SELECT `+orderColumns+` FROM payment_orders WHERE gateway_order_id = ? FOR UPDATE`, gatewayOrderID)
}

// GetByPaymentIDForUpdate is the refund-webhook variant keyed by the
// gateway payment id.
func (r *OrderRepo) GetByPaymentIDForUpdate(ctx context.Context, paymentID string) (model.PaymentOrder, error) {
	return r.getOne(ctx, `SELECT `+orderColumns+` FROM payment_orders WHERE gateway_payment_id = ? FOR UPDATE`, paymentID)
}

// GetByID loads an order without locking.
func (r *OrderRepo) GetByID(ctx context.Context, id uint64) (model.PaymentOrder, error) {
	return r.getOne(ctx, `SELECT `+orderColumns+` FROM payment_orders WHERE id = ?`, id)
}

func (r *OrderRepo) getOne(ctx context.Context, query string, arg interface{}) (model.PaymentOrder, error) {
	var o model.PaymentOrder
	err := database.Conn(ctx, r.db).GetContext(ctx, &o, query, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return o, ErrNotFound
	}
	return o, err
}

// UpdateStatus moves an order to status and records the gateway payment
// id when one is supplied.
func (r *OrderRepo) UpdateStatus(ctx context.Context, id uint64, status, paymentID string) error {
	_, err := database.Conn(ctx, r.db).ExecContext(ctx,
		`UPDATE payment_orders SET status = ?, gateway_payment_id = COALESCE(NULLIF(?, ''), gateway_payment_id) WHERE id = ?`,
		status, paymentID, id)
	return err
}
