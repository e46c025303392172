package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// schema is applied in order by Migrate.  Every statement is idempotent.
// Counters are signed so that capacity arithmetic in WHERE clauses never
// trips MySQL's unsigned subtraction checks.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		email VARCHAR(255) NOT NULL UNIQUE,
		password_hash VARCHAR(255) NOT NULL,
		full_name VARCHAR(255) NOT NULL DEFAULT '',
		role VARCHAR(32) NOT NULL DEFAULT 'customer',
		is_active TINYINT(1) NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
	) ENGINE=InnoDB`,
	`CREATE TABLE IF NOT EXISTS refresh_tokens (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		user_id BIGINT UNSIGNED NOT NULL,
		token_hash CHAR(64) NOT NULL UNIQUE,
		expires_at DATETIME NOT NULL,
		revoked_at DATETIME NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		CONSTRAINT fk_refresh_user FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
	) ENGINE=InnoDB`,
	`CREATE TABLE IF NOT EXISTS exhibitions (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		slug VARCHAR(191) NOT NULL UNIQUE,
		title VARCHAR(255) NOT NULL,
		description TEXT NOT NULL,
		category VARCHAR(64) NOT NULL DEFAULT '',
		duration_minutes INT NOT NULL DEFAULT 60,
		is_active TINYINT(1) NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
	) ENGINE=InnoDB`,
	`CREATE TABLE IF NOT EXISTS shows (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		slug VARCHAR(191) NOT NULL UNIQUE,
		title VARCHAR(255) NOT NULL,
		description TEXT NOT NULL,
		show_type VARCHAR(64) NOT NULL DEFAULT '',
		duration_minutes INT NOT NULL DEFAULT 30,
		is_active TINYINT(1) NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
	) ENGINE=InnoDB`,
	`CREATE TABLE IF NOT EXISTS pricing (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		exhibition_id BIGINT UNSIGNED NULL,
		show_id BIGINT UNSIGNED NULL,
		ticket_type VARCHAR(16) NOT NULL,
		price BIGINT NOT NULL DEFAULT 0,
		owner_key VARCHAR(32) AS (CONCAT(IFNULL(exhibition_id, 0), ':', IFNULL(show_id, 0))) STORED,
		UNIQUE KEY uq_pricing_owner_type (owner_key, ticket_type)
	) ENGINE=InnoDB`,
	`CREATE TABLE IF NOT EXISTS time_slots (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		exhibition_id BIGINT UNSIGNED NULL,
		show_id BIGINT UNSIGNED NULL,
		slot_date DATE NULL,
		day_of_week TINYINT NULL,
		start_time TIME NOT NULL,
		end_time TIME NOT NULL,
		capacity INT NOT NULL,
		current_bookings INT NOT NULL DEFAULT 0,
		buffer_capacity INT NOT NULL DEFAULT 0,
		is_active TINYINT(1) NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		KEY idx_slots_exhibition_date (exhibition_id, slot_date),
		KEY idx_slots_show_date (show_id, slot_date),
		CONSTRAINT chk_slot_counter CHECK (current_bookings >= 0 AND current_bookings <= capacity)
	) ENGINE=InnoDB`,
	`CREATE TABLE IF NOT EXISTS payment_orders (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		gateway_order_id VARCHAR(64) NOT NULL UNIQUE,
		gateway_payment_id VARCHAR(64) NULL,
		user_id BIGINT UNSIGNED NULL,
		session_id VARCHAR(64) NOT NULL DEFAULT '',
		amount BIGINT NOT NULL,
		currency CHAR(3) NOT NULL,
		cart_snapshot JSON NOT NULL,
		visitor JSON NOT NULL,
		status VARCHAR(16) NOT NULL DEFAULT 'created',
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		KEY idx_orders_payment (gateway_payment_id)
	) ENGINE=InnoDB`,
	`CREATE TABLE IF NOT EXISTS cart_items (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		session_id VARCHAR(64) NOT NULL DEFAULT '',
		user_id BIGINT UNSIGNED NULL,
		time_slot_id BIGINT UNSIGNED NOT NULL,
		booking_date DATE NOT NULL,
		adult_count INT NOT NULL DEFAULT 0,
		child_count INT NOT NULL DEFAULT 0,
		student_count INT NOT NULL DEFAULT 0,
		senior_count INT NOT NULL DEFAULT 0,
		subtotal BIGINT NOT NULL DEFAULT 0,
		expires_at DATETIME NOT NULL,
		payment_order_id BIGINT UNSIGNED NULL,
		settled_at DATETIME NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		KEY idx_cart_session (session_id),
		KEY idx_cart_user (user_id),
		KEY idx_cart_expiry (settled_at, expires_at),
		CONSTRAINT fk_cart_slot FOREIGN KEY (time_slot_id) REFERENCES time_slots(id)
	) ENGINE=InnoDB`,
	`CREATE TABLE IF NOT EXISTS bookings (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		reference_code VARCHAR(32) NOT NULL UNIQUE,
		payment_order_id BIGINT UNSIGNED NULL,
		user_id BIGINT UNSIGNED NULL,
		visitor_name VARCHAR(255) NOT NULL,
		visitor_email VARCHAR(255) NOT NULL,
		visitor_phone VARCHAR(32) NOT NULL DEFAULT '',
		time_slot_id BIGINT UNSIGNED NOT NULL,
		booking_date DATE NOT NULL,
		adult_count INT NOT NULL DEFAULT 0,
		child_count INT NOT NULL DEFAULT 0,
		student_count INT NOT NULL DEFAULT 0,
		senior_count INT NOT NULL DEFAULT 0,
		total_tickets INT NOT NULL,
		total_amount BIGINT NOT NULL DEFAULT 0,
		status VARCHAR(16) NOT NULL DEFAULT 'confirmed',
		payment_status VARCHAR(16) NOT NULL DEFAULT 'pending',
		released_at DATETIME NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		KEY idx_bookings_order (payment_order_id),
		KEY idx_bookings_slot (time_slot_id),
		CONSTRAINT fk_booking_slot FOREIGN KEY (time_slot_id) REFERENCES time_slots(id)
	) ENGINE=InnoDB`,
	`CREATE TABLE IF NOT EXISTS tickets (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		booking_id BIGINT UNSIGNED NOT NULL,
		ticket_code CHAR(36) NOT NULL UNIQUE,
		ticket_type VARCHAR(16) NOT NULL,
		status VARCHAR(16) NOT NULL DEFAULT 'valid',
		used_at DATETIME NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		CONSTRAINT fk_ticket_booking FOREIGN KEY (booking_id) REFERENCES bookings(id) ON DELETE CASCADE
	) ENGINE=InnoDB`,
}

// Migrate applies the schema.  It is safe to run on every start.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i+1, err)
		}
	}
	return nil
}
