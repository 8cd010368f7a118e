package models

import "time"

// Binding links a third-party identifier to an account. A non-nil DeletedAt
// marks the row as removed; it is kept for audit and revived on re-bind.
type Binding struct {
	UID        int64
	Type       string
	Identifier string
	DeletedAt  *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Live reports whether the binding is not soft-deleted.
func (b Binding) Live() bool {
	return b.DeletedAt == nil
}
