package models

import "time"

// Model is the base for all persisted entities
type Model struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Blacklist holds revoked access tokens
type Blacklist struct {
	Model
	Email string `json:"email"`
	Token string `gorm:"index" json:"token"`
}
