package models

import "time"

// ReservationToken is the single-use email confirmation token minted when a
// public reservation request is accepted. ConfirmedAt is set exactly once;
// after that, or after ExpiresAt, the token is dead.
type ReservationToken struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	Token       string     `gorm:"uniqueIndex;not null" json:"-"`
	Canonical   string     `gorm:"index;not null" json:"canonical"`
	Email       string     `gorm:"not null" json:"email"`
	CreatedAt   time.Time  `json:"created_at"`
	ConfirmedAt *time.Time `json:"confirmed_at,omitempty"`
	ExpiresAt   time.Time  `gorm:"not null" json:"expires_at"`
}

func (ReservationToken) TableName() string {
	return "reservation_tokens"
}
