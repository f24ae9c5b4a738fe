package repository

import (
	"errors"

	"ai-character-chat/backend/internal/models"

	"gorm.io/gorm"
)

// ErrCharacterNotFound is returned when a character id does not exist.
var ErrCharacterNotFound = errors.New("character not found")

type CharacterRepository interface {
	Create(character *models.Character) error
	GetByID(id uint) (*models.Character, error)
	ListByUser(userID string) ([]models.Character, error)
}

type GormCharacterRepository struct {
	db *gorm.DB
}

func NewGormCharacterRepository(db *gorm.DB) *GormCharacterRepository {
	return &GormCharacterRepository{db: db}
}

func (r *GormCharacterRepository) Create(character *models.Character) error {
	return r.db.Create(character).Error
}

func (r *GormCharacterRepository) GetByID(id uint) (*models.Character, error) {
	var character models.Character
	err := r.db.First(&character, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCharacterNotFound
		}
		return nil, err
	}
	return &character, nil
}

func (r *GormCharacterRepository) ListByUser(userID string) ([]models.Character, error) {
	var characters []models.Character
	err := r.db.Where("user_id = ?", userID).Order("created_at ASC").Find(&characters).Error
	if characters == nil {
		characters = []models.Character{}
	}
	return characters, err
}
