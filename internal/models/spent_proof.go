package models

import "time"

// SpentProof records an ecash proof secret consumed for a reservation. The
// primary key on Secret is the double-spend guard: a secret may appear at
// most once across the system's lifetime. Only the sha256 of the whole token
// is kept for audit, never the token itself.
type SpentProof struct {
	Secret    string    `gorm:"primaryKey" json:"secret"`
	TokenHash string    `gorm:"index;not null" json:"token_hash"`
	Canonical string    `gorm:"index;not null" json:"canonical"`
	Amount    uint64    `gorm:"not null" json:"amount"`
	CreatedAt time.Time `json:"created_at"`
}

func (SpentProof) TableName() string {
	return "spent_proofs"
}
