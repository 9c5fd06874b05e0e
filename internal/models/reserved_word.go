package models

import "time"

// ReservedWord blocks a canonical name from the public claim/reserve path.
// Operator assignment bypasses the screen on purpose.
type ReservedWord struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Word      string    `gorm:"uniqueIndex;not null" json:"word"`
	Category  string    `json:"category"` // e.g. "brand", "slur", "infra"
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"created_at"`
}

func (ReservedWord) TableName() string {
	return "reserved_words"
}
