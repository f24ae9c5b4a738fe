package repository

import (
	"ai-character-chat/backend/internal/models"

	"gorm.io/gorm"
)

type MessageRepository interface {
	Create(message *models.ChatMessage) error
	// ListRecent returns up to limit messages for the character, newest
	// first. Callers that need chronological order reverse the slice.
	ListRecent(characterID uint, limit int) ([]models.ChatMessage, error)
	// ListByCharacter returns the full log oldest first.
	ListByCharacter(characterID uint) ([]models.ChatMessage, error)
}

type GormMessageRepository struct {
	db *gorm.DB
}

func NewGormMessageRepository(db *gorm.DB) *GormMessageRepository {
	return &GormMessageRepository{db: db}
}

func (r *GormMessageRepository) Create(message *models.ChatMessage) error {
	return r.db.Create(message).Error
}

func (r *GormMessageRepository) ListRecent(characterID uint, limit int) ([]models.ChatMessage, error) {
	var messages []models.ChatMessage
	err := r.db.Where("character_id = ?", characterID).
		Order("created_at DESC").
		Limit(limit).
		Find(&messages).Error
	return messages, err
}

func (r *GormMessageRepository) ListByCharacter(characterID uint) ([]models.ChatMessage, error) {
	var messages []models.ChatMessage
	err := r.db.Where("character_id = ?", characterID).
		Order("created_at ASC").
		Find(&messages).Error
	if messages == nil {
		messages = []models.ChatMessage{}
	}
	return messages, err
}
