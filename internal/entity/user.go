package entity

import "time"

// Identity is what the identity provider vouches for on each request
type Identity struct {
	UserID        string   `json:"user_id"`
	Email         string   `json:"email"`
	EmailVerified bool     `json:"email_verified"`
	Roles         []string `json:"roles,omitempty"`
}

func (i *Identity) Authenticated() bool {
	return i != nil && i.UserID != ""
}

type User struct {
	ID         string    `json:"id" db:"id"`
	Email      string    `json:"email" db:"email"`
	TelegramID string    `json:"telegram_id" db:"telegram_id"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}
