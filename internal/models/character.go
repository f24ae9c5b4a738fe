package models

import (
	"time"
)

// Character is a persona the user can chat with. Personality is free text
// used as the model's system instruction. Characters are immutable once
// created; there is no update path.
type Character struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	Name        string    `json:"name" gorm:"not null"`
	Description string    `json:"description" gorm:"not null"`
	Personality string    `json:"personality" gorm:"not null"`
	UserID      string    `json:"user_id" gorm:"index;not null"`
	CreatedAt   time.Time `json:"created_at"`
}

type CreateCharacterRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description" binding:"required"`
	Personality string `json:"personality" binding:"required"`
	UserID      string `json:"user_id" binding:"required"`
}
