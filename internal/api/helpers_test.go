package api

import (
	"context"
	"sort"
	"sync"
	"time"

	"ai-character-chat/backend/internal/llm"
	"ai-character-chat/backend/internal/models"
	"ai-character-chat/backend/internal/repository"
	"ai-character-chat/backend/internal/service"
	apperrors "ai-character-chat/backend/pkg/errors"

	"github.com/gin-gonic/gin"
)

type stubCharacterRepo struct {
	characters map[uint]*models.Character
	nextID     uint
}

func newStubCharacterRepo(characters ...*models.Character) *stubCharacterRepo {
	repo := &stubCharacterRepo{characters: make(map[uint]*models.Character)}
	for _, c := range characters {
		repo.characters[c.ID] = c
		if c.ID > repo.nextID {
			repo.nextID = c.ID
		}
	}
	return repo
}

func (s *stubCharacterRepo) Create(character *models.Character) error {
	s.nextID++
	character.ID = s.nextID
	character.CreatedAt = time.Now()
	s.characters[character.ID] = character
	return nil
}

func (s *stubCharacterRepo) GetByID(id uint) (*models.Character, error) {
	character, ok := s.characters[id]
	if !ok {
		return nil, repository.ErrCharacterNotFound
	}
	return character, nil
}

func (s *stubCharacterRepo) ListByUser(userID string) ([]models.Character, error) {
	result := []models.Character{}
	for _, c := range s.characters {
		if c.UserID == userID {
			result = append(result, *c)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

type stubMessageRepo struct {
	mu       sync.Mutex
	messages []models.ChatMessage
	nextID   uint
}

func (s *stubMessageRepo) Create(message *models.ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	message.ID = s.nextID
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(s.nextID) * time.Second)
	}
	s.messages = append(s.messages, *message)
	return nil
}

// insert places a row directly, bypassing timestamp assignment, to simulate
// arbitrary storage order.
func (s *stubMessageRepo) insert(message models.ChatMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	message.ID = s.nextID
	s.messages = append(s.messages, message)
}

func (s *stubMessageRepo) ListRecent(characterID uint, limit int) ([]models.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []models.ChatMessage
	for _, m := range s.messages {
		if m.CharacterID == characterID {
			result = append(result, m)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *stubMessageRepo) ListByCharacter(characterID uint) ([]models.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := []models.ChatMessage{}
	for _, m := range s.messages {
		if m.CharacterID == characterID {
			result = append(result, m)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

func (s *stubMessageRepo) all() []models.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.ChatMessage(nil), s.messages...)
}

type scriptedStreamer struct {
	chunks  []llm.Chunk
	openErr error
}

func (s *scriptedStreamer) Stream(ctx context.Context, personality string, history []llm.Message) (<-chan llm.Chunk, error) {
	if s.openErr != nil {
		return nil, s.openErr
	}
	ch := make(chan llm.Chunk)
	go func() {
		defer close(ch)
		for _, chunk := range s.chunks {
			select {
			case ch <- chunk:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}

// newTestEngine wires handlers into a gin engine the way the router does,
// minus middleware that needs external state.
func newTestEngine(charRepo repository.CharacterRepository, msgRepo repository.MessageRepository, streamer service.CompletionStreamer) *gin.Engine {
	gin.SetMode(gin.TestMode)

	characters := service.NewCharacterService(charRepo, nil, 0)
	chat := service.NewChatService(characters, msgRepo, streamer, 10, nil, nil)

	characterHandler := NewCharacterHandler(characters)
	chatHandler := NewChatHandler(chat)

	engine := gin.New()
	engine.Use(apperrors.ErrorHandler())

	v1 := engine.Group("/api/v1")
	characterRoutes := v1.Group("/characters")
	characterRoutes.POST("", characterHandler.CreateCharacter)
	characterRoutes.GET("", characterHandler.ListCharacters)
	characterRoutes.GET("/:id", characterHandler.GetCharacter)
	characterRoutes.POST("/:id/chat", chatHandler.Chat)
	characterRoutes.GET("/:id/messages", chatHandler.GetMessages)

	return engine
}
