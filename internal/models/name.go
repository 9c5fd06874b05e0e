package models

import (
	"time"
)

// Name lifecycle statuses. A name with no row at all is available.
const (
	StatusReserved = "reserved"
	StatusActive   = "active"
	StatusRevoked  = "revoked"
	StatusBurned   = "burned" // terminal, never leaves this state
)

type Name struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	Canonical string `gorm:"uniqueIndex;not null" json:"canonical"` // ACE-encoded, lowercase
	Display   string `gorm:"not null" json:"display"`               // original casing/script

	OwnerKey   string   `gorm:"index" json:"pubkey,omitempty"` // hex x-only nostr pubkey
	RelayHints []string `gorm:"serializer:json" json:"relays,omitempty"`

	Status     string `gorm:"index;not null" json:"status"`
	Recyclable bool   `gorm:"default:false" json:"recyclable"` // only meaningful when revoked

	ReservedReason string `json:"reserved_reason,omitempty"`
	AdminNotes     string `json:"admin_notes,omitempty"`

	ReservationEmail      string     `json:"reservation_email,omitempty"`
	ConfirmationToken     string     `gorm:"index" json:"-"`
	ReservationExpiresAt  *time.Time `json:"reservation_expires_at,omitempty"`
	SubscriptionExpiresAt *time.Time `json:"subscription_expires_at,omitempty"`

	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	ClaimedAt *time.Time `json:"claimed_at,omitempty"`
	RevokedAt *time.Time `json:"revoked_at,omitempty"`
}

func (Name) TableName() string {
	return "names"
}
