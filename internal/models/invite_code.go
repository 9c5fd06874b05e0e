package models

import "time"

// InviteCode is an operator-provisioned single-use code that waives payment
// on the public reservation path.
type InviteCode struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	Code      string     `gorm:"uniqueIndex;not null" json:"code"`
	Used      bool       `gorm:"default:false" json:"used"`
	UsedBy    string     `json:"used_by,omitempty"` // canonical name that consumed it
	UsedAt    *time.Time `json:"used_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

func (InviteCode) TableName() string {
	return "invite_codes"
}
