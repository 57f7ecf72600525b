package models

import "time"

type Contact struct {
	ID         string    `json:"id"`
	OwnerID    string    `json:"owner_id"`
	Name       string    `json:"name"`
	Alias      string    `json:"alias"`
	CBU        string    `json:"cbu"`
	Bank       string    `json:"bank"`
	Phone      string    `json:"phone,omitempty"`
	Email      string    `json:"email,omitempty"`
	UserID     string    `json:"user_id,omitempty"`
	IsFavorite bool      `json:"is_favorite"`
	CreatedAt  time.Time `json:"created_at"`
}
