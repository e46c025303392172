package model

import "time"

// Roles stored in users.role.  Admin routes accept RoleAdmin and
// RoleSuperAdmin; ticket verification additionally accepts RoleStaff.
const (
	RoleCustomer   = "customer"
	RoleStaff      = "staff"
	RoleAdmin      = "admin"
	RoleSuperAdmin = "super_admin"
)

// User represents an application user record as stored in the
// `users` table.
//
// Fields:
//
//	ID           – primary key identifier of the user.
//	Email        – unique email address.
//	PasswordHash – bcrypt hashed password.
//	FullName     – display name used to prefill visitor details.
//	Role         – one of the Role* constants.
//	IsActive     – whether the account is active.
type User struct {
	ID           uint64    `db:"id"`
	Email        string    `db:"email"`
	PasswordHash string    `db:"password_hash"`
	FullName     string    `db:"full_name"`
	Role         string    `db:"role"`
	IsActive     bool      `db:"is_active"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

// IsAdmin reports whether the role may use the back office.
func IsAdmin(role string) bool {
	return role == RoleAdmin || role == RoleSuperAdmin
}
