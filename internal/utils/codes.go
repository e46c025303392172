package utils

import (
	"strings"

	"github.com/google/uuid"
)

// NewReferenceCode returns a booking reference such as MUS-3F9A0C12BE.
// Ten hex characters of a random UUID leave collisions to the unique
// index, which callers treat as a retryable conflict.
func NewReferenceCode() string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "MUS-" + strings.ToUpper(id[:10])
}

// NewTicketCode returns the opaque code printed on a ticket's QR.
func NewTicketCode() string { return uuid.NewString() }

// NewSessionID returns an identifier for a guest cart.
func NewSessionID() string { return uuid.NewString() }

// NewReceipt returns the merchant receipt sent with gateway orders.  The
// gateway caps receipts at 40 characters.
func NewReceipt() string {
	return "rcpt_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:24]
}
