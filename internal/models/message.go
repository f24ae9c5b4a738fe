package models

import (
	"time"
)

// ChatMessage is one turn entry in a character's conversation log. Rows are
// append-only: they are never mutated or deleted once written.
type ChatMessage struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	CharacterID uint      `json:"character_id" gorm:"index;not null"`
	Content     string    `json:"content" gorm:"type:text"`
	IsUser      bool      `json:"is_user"`
	// Complete is false when the assistant reply was cut short by an
	// upstream failure and only the partial content could be recorded.
	// Deliberately no gorm default tag: GORM drops zero-valued fields
	// that carry one from the INSERT, which would store false as true.
	// Every write site sets the field explicitly.
	Complete  bool      `json:"complete"`
	CreatedAt time.Time `json:"created_at" gorm:"index"`
}

type SendMessageRequest struct {
	Content string `json:"content" binding:"required"`
}
