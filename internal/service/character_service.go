package service

import (
	"encoding/json"
	"fmt"
	"time"

	"ai-character-chat/backend/internal/models"
	"ai-character-chat/backend/internal/repository"
	"ai-character-chat/backend/pkg/cache"
)

// CharacterService wraps the character repository with a cache-aside layer.
// Characters are immutable, so cached entries never go stale; the TTL only
// bounds memory.
type CharacterService struct {
	repo     repository.CharacterRepository
	cache    cache.Store
	cacheTTL time.Duration
}

func NewCharacterService(repo repository.CharacterRepository, store cache.Store, cacheTTL time.Duration) *CharacterService {
	return &CharacterService{repo: repo, cache: store, cacheTTL: cacheTTL}
}

func characterCacheKey(id uint) string {
	return fmt.Sprintf("character:%d", id)
}

func (s *CharacterService) CreateCharacter(character *models.Character) error {
	if err := s.repo.Create(character); err != nil {
		return err
	}
	s.cacheCharacter(character)
	return nil
}

func (s *CharacterService) GetCharacterByID(id uint) (*models.Character, error) {
	if s.cache != nil {
		if raw, ok := s.cache.Get(characterCacheKey(id)); ok {
			var character models.Character
			if err := json.Unmarshal([]byte(raw), &character); err == nil {
				return &character, nil
			}
			// Unreadable entry; drop it and fall through to the DB.
			s.cache.Del(characterCacheKey(id))
		}
	}

	character, err := s.repo.GetByID(id)
	if err != nil {
		return nil, err
	}

	s.cacheCharacter(character)
	return character, nil
}

func (s *CharacterService) ListCharactersByUser(userID string) ([]models.Character, error) {
	return s.repo.ListByUser(userID)
}

func (s *CharacterService) cacheCharacter(character *models.Character) {
	if s.cache == nil {
		return
	}
	if raw, err := json.Marshal(character); err == nil {
		s.cache.Set(characterCacheKey(character.ID), string(raw), s.cacheTTL)
	}
}
