package domain

import "time"

type PasswordReset struct {
	ID        uint      `gorm:"primaryKey"`
	UserID    uint      `gorm:"index;not null"`
	TokenHash string    `gorm:"size:128;uniqueIndex;not null"`
	ExpiresAt time.Time `gorm:"index;not null"`
	Used      bool      `gorm:"not null;default:false;index"`
	CreatedAt time.Time

	User *User `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:ID"`
}

func (p *PasswordReset) Expired(now time.Time) bool {
	return !p.ExpiresAt.After(now)
}
