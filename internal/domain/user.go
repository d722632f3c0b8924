package domain

import "time"

type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Email        string    `gorm:"size:320;uniqueIndex;not null" json:"email"`
	PasswordHash string    `gorm:"size:255;not null" json:"-"`
	Name         *string   `gorm:"size:255" json:"name,omitempty"`
	HomeCountry  *string   `gorm:"size:64" json:"homeCountry,omitempty"`
	Currency     *string   `gorm:"size:8" json:"currency,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// ProfilePatch carries one optional field per mutable profile attribute. Nil
// fields are left untouched.
type ProfilePatch struct {
	Name        *string
	Email       *string
	HomeCountry *string
	Currency    *string
}

func (p ProfilePatch) Empty() bool {
	return p.Name == nil && p.Email == nil && p.HomeCountry == nil && p.Currency == nil
}
