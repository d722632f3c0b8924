package domain

import "time"

// RevokedAccessToken blacklists a signed access token until its own expiry.
type RevokedAccessToken struct {
	ID        uint      `gorm:"primaryKey"`
	TokenHash string    `gorm:"size:128;uniqueIndex;not null"`
	ExpiresAt time.Time `gorm:"index;not null"`
	CreatedAt time.Time
}
