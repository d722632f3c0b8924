package domain

import "time"

// Session is one persisted refresh credential. The raw refresh token is never
// stored; TokenHash holds its keyed digest.
type Session struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"index;not null" json:"userId"`
	TokenHash string    `gorm:"size:128;uniqueIndex;not null" json:"-"`
	UserAgent string    `gorm:"size:512" json:"userAgent"`
	IP        string    `gorm:"size:64" json:"ip"`
	ExpiresAt time.Time `gorm:"index;not null" json:"expiresAt"`
	CreatedAt time.Time `json:"createdAt"`

	User *User `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:ID" json:"-"`
}

func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}
