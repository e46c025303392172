package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/SProjects-cpu/mgm-museum-sub002/internal/config"
	"github.com/SProjects-cpu/mgm-museum-sub002/internal/middleware"
	"github.com/SProjects-cpu/mgm-museum-sub002/internal/model"
	"github.com/SProjects-cpu/mgm-museum-sub002/internal/repository"
	"github.com/SProjects-cpu/mgm-museum-sub002/internal/utils"
)

// UserStore is the user lookup the auth endpoints need.
type UserStore interface {
	Create(ctx context.Context, email, password, fullName, role string, cost int) (uint64, error)
	GetByEmail(ctx context.Context, email string) (model.User, error)
	GetByID(ctx context.Context, id uint64) (model.User, error)
}

// TokenStore persists hashed refresh tokens.
type TokenStore interface {
	StoreRefresh(ctx context.Context, userID uint64, tokenHash string, exp time.Time) error
	ValidateRefresh(ctx context.Context, tokenHash string) (uint64, error)
	RevokeByHash(ctx context.Context, tokenHash string) error
	RevokeAllForUser(ctx context.Context, userID uint64) error
}

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	Cfg    config.Config
	Users  UserStore
	Tokens TokenStore
}

func NewAuthHandler(cfg config.Config, u UserStore, t TokenStore) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Users: u, Tokens: t}
}

type registerReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
}
type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}
type userPart struct {
	ID       uint64 `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	Role     string `json:"role"`
}
type authResp struct {
	User    userPart  `json:"user"`
	Access  tokenPart `json:"access"`
	Refresh tokenPart `json:"refresh"`
}

// Register creates a customer account and signs it in.  The role is never
// taken from the request.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.FullName = strings.TrimSpace(req.FullName)
	if req.Email == "" || !strings.Contains(req.Email, "@") {
		return badRequest(c, "valid email required")
	}
	if len(req.Password) < 8 {
		return badRequest(c, "password must be at least 8 characters")
	}

	ctx, cancel := withTimeout(c)
	defer cancel()

	uid, err := h.Users.Create(ctx, req.Email, req.Password, req.FullName, model.RoleCustomer, h.Cfg.BcryptCost)
	if err != nil {
		return respondError(c, err)
	}
	u := model.User{ID: uid, Email: req.Email, FullName: req.FullName, Role: model.RoleCustomer}
	resp, err := h.issue(ctx, u)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, resp)
}

// Login verifies credentials and returns a new token pair.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		return badRequest(c, "email/password required")
	}

	ctx, cancel := withTimeout(c)
	defer cancel()

	u, err := h.Users.GetByEmail(ctx, req.Email)
	if errors.Is(err, repository.ErrNotFound) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}
	if err != nil {
		return respondError(c, err)
	}
	if !u.IsActive || !utils.VerifyPassword(u.PasswordHash, req.Password) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}
	resp, err := h.issue(ctx, u)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

// Refresh rotates a refresh token: the old one is revoked and a new pair
// issued with the user's current role.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		return badRequest(c, "refresh_token required")
	}
	hash := utils.HashRefreshRaw(strings.TrimSpace(req.RefreshToken))

	ctx, cancel := withTimeout(c)
	defer cancel()

	userID, err := h.Tokens.ValidateRefresh(ctx, hash)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh"})
	}
	if err := h.Tokens.RevokeByHash(ctx, hash); err != nil {
		return respondError(c, err)
	}
	u, err := h.Users.GetByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) || (err == nil && !u.IsActive) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh"})
	}
	if err != nil {
		return respondError(c, err)
	}
	resp, err := h.issue(ctx, u)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, resp)
}

// Logout revokes the posted refresh token, or every refresh token of the
// signed-in user when none is posted.
func (h *AuthHandler) Logout(c echo.Context) error {
	var req refreshReq
	_ = c.Bind(&req)
	raw := strings.TrimSpace(req.RefreshToken)

	ctx, cancel := withTimeout(c)
	defer cancel()

	if raw != "" {
		hash := utils.HashRefreshRaw(raw)
		if _, err := h.Tokens.ValidateRefresh(ctx, hash); err != nil {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh token"})
		}
		if err := h.Tokens.RevokeByHash(ctx, hash); err != nil {
			return respondError(c, err)
		}
		return c.NoContent(http.StatusNoContent)
	}
	if uid, ok := middleware.UserID(c); ok {
		if err := h.Tokens.RevokeAllForUser(ctx, uid); err != nil {
			return respondError(c, err)
		}
		return c.NoContent(http.StatusNoContent)
	}
	return badRequest(c, "provide Authorization header or refresh_token")
}

// Me returns the signed-in user's profile.
func (h *AuthHandler) Me(c echo.Context) error {
	uid, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}
	ctx, cancel := withTimeout(c)
	defer cancel()
	u, err := h.Users.GetByID(ctx, uid)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, userPart{ID: u.ID, Email: u.Email, FullName: u.FullName, Role: u.Role})
}

func (h *AuthHandler) issue(ctx context.Context, u model.User) (authResp, error) {
	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, u.ID, u.Role, h.Cfg.AccessTTLMin)
	if err != nil {
		return authResp{}, err
	}
	refresh, err := utils.NewRefreshToken(h.Cfg.RefreshTTLDays)
	if err != nil {
		return authResp{}, err
	}
	if err := h.Tokens.StoreRefresh(ctx, u.ID, utils.HashRefreshRaw(refresh.Raw), refresh.Exp); err != nil {
		return authResp{}, err
	}
	return authResp{
		User:    userPart{ID: u.ID, Email: u.Email, FullName: u.FullName, Role: u.Role},
		Access:  tokenPart{Token: access.Token, Expires: access.Exp},
		Refresh: tokenPart{Token: refresh.Raw, Expires: refresh.Exp},
	}, nil
}
