package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/SProjects-cpu/mgm-museum-sub002/internal/model"
	"github.com/SProjects-cpu/mgm-museum-sub002/internal/utils"
)

const userColumns = `id, email, password_hash, full_name, role, is_active, created_at, updated_at`

type UserRepo struct{ DB *sqlx.DB }

func NewUserRepo(db *sqlx.DB) *UserRepo { return &UserRepo{DB: db} }

// Create inserts user and returns its ID.
func (r *UserRepo) Create(ctx context.Context, email, password, fullName, role string, cost int) (uint64, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return 0, err
	}
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (email, password_hash, full_name, role) VALUES (?,?,?,?)",
		email, hash, fullName, role)
	if err != nil {
		if isDuplicate(err) {
			return 0, ErrEmailExists
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	var u model.User
	err := r.DB.GetContext(ctx, &u, "SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1", email)
	if errors.Is(err, sql.ErrNoRows) {
		return u, ErrNotFound
	}
	return u, err
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	var u model.User
	err := r.DB.GetContext(ctx, &u, "SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return u, ErrNotFound
	}
	return u, err
}

// RoleOf returns the role column of an active user.  The admin
// middleware calls it on every request so that demotions take effect
// before the access token expires.
func (r *UserRepo) RoleOf(ctx context.Context, id uint64) (string, error) {
	var role string
	err := r.DB.GetContext(ctx, &role, "SELECT role FROM users WHERE id=? AND is_active=1 LIMIT 1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	return role, err
}
