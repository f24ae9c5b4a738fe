package service

import (
	"context"
	"strings"

	"ai-character-chat/backend/internal/llm"
	"ai-character-chat/backend/internal/models"
	"ai-character-chat/backend/internal/repository"
	apperrors "ai-character-chat/backend/pkg/errors"
	"ai-character-chat/backend/pkg/logger"
	"ai-character-chat/backend/shared/observability"
)

// CompletionStreamer is the upstream reader contract the relay consumes.
// Satisfied by *llm.Client; tests substitute a scripted fake.
type CompletionStreamer interface {
	Stream(ctx context.Context, personality string, history []llm.Message) (<-chan llm.Chunk, error)
}

// TurnEvent is one client-facing event of a chat turn. Content events carry
// one upstream chunk each; the final event has either Done or Err set and is
// always the last one for the turn.
type TurnEvent struct {
	Content string
	Done    bool
	Err     error
}

// ChatService relays one user turn end to end: it persists the inbound
// message, streams the model reply chunk by chunk, and always records the
// outcome exactly once, complete or not.
type ChatService struct {
	characters *CharacterService
	messages   repository.MessageRepository
	upstream   CompletionStreamer
	window     int
	metrics    *observability.ChatMetrics
	log        *logger.Logger
}

func NewChatService(
	characters *CharacterService,
	messages repository.MessageRepository,
	upstream CompletionStreamer,
	historyWindow int,
	metrics *observability.ChatMetrics,
	log *logger.Logger,
) *ChatService {
	if historyWindow <= 0 {
		historyWindow = 10
	}
	if log == nil {
		log = logger.GetGlobal()
	}
	return &ChatService{
		characters: characters,
		messages:   messages,
		upstream:   upstream,
		window:     historyWindow,
		metrics:    metrics,
		log:        log,
	}
}

// StreamTurn runs one chat turn. A missing character fails up front with a
// not-found error and no side effects. Once the user message is persisted,
// every outcome leaves exactly one assistant-side row behind: the full reply
// on success, or whatever was accumulated (possibly nothing) flagged
// incomplete on failure. The returned channel is closed after the single
// terminal event.
func (s *ChatService) StreamTurn(ctx context.Context, characterID uint, userText string) (<-chan TurnEvent, error) {
	character, err := s.characters.GetCharacterByID(characterID)
	if err != nil {
		if err == repository.ErrCharacterNotFound {
			return nil, apperrors.NewNotFoundError(apperrors.CodeCharacterNotFound, "Character not found")
		}
		return nil, err
	}

	// The user's turn is recorded before any network call so it survives
	// upstream failures.
	userMessage := &models.ChatMessage{
		CharacterID: character.ID,
		Content:     userText,
		IsUser:      true,
		Complete:    true,
	}
	if err := s.messages.Create(userMessage); err != nil {
		return nil, err
	}

	history, err := s.buildContext(character.ID)
	if err != nil {
		return nil, err
	}

	events := make(chan TurnEvent)
	go s.relay(ctx, character, history, events)
	return events, nil
}

// buildContext loads the recency window and maps it to role-tagged entries,
// oldest first.
func (s *ChatService) buildContext(characterID uint) ([]llm.Message, error) {
	recent, err := s.messages.ListRecent(characterID, s.window)
	if err != nil {
		return nil, err
	}

	// ListRecent is newest first; the model wants chronological order.
	history := make([]llm.Message, 0, len(recent))
	for i := len(recent) - 1; i >= 0; i-- {
		role := "assistant"
		if recent[i].IsUser {
			role = "user"
		}
		history = append(history, llm.Message{Role: role, Content: recent[i].Content})
	}
	return history, nil
}

// relay forwards upstream chunks to the events channel while accumulating
// the full reply, then persists the outcome and emits the terminal event.
func (s *ChatService) relay(ctx context.Context, character *models.Character, history []llm.Message, events chan<- TurnEvent) {
	defer close(events)

	log := s.log.WithCharacterID(character.ID)
	s.metrics.TurnStarted(ctx)

	var reply strings.Builder

	stream, err := s.upstream.Stream(ctx, character.Personality, history)
	if err != nil {
		// Missing credential or a refused connection is only detected
		// here, after the user message committed, so it surfaces as a
		// mid-stream error event like any later failure.
		s.finishFailed(ctx, log, character.ID, reply.String(), err, events)
		return
	}

	for {
		select {
		case chunk, ok := <-stream:
			if !ok {
				// Reader quit without a terminal chunk; only happens
				// when our context was cancelled under it.
				s.finishFailed(ctx, log, character.ID, reply.String(), ctx.Err(), events)
				return
			}
			switch {
			case chunk.Err != nil:
				s.finishFailed(ctx, log, character.ID, reply.String(), chunk.Err, events)
				return
			case chunk.Done:
				s.finishCompleted(ctx, log, character.ID, reply.String(), events)
				return
			default:
				reply.WriteString(chunk.Delta)
				s.metrics.ChunkRelayed(ctx)
				if !send(ctx, events, TurnEvent{Content: chunk.Delta}) {
					// Client went away; the accumulated partial is
					// still persisted below.
					s.finishFailed(ctx, log, character.ID, reply.String(), ctx.Err(), events)
					return
				}
			}
		case <-ctx.Done():
			s.finishFailed(ctx, log, character.ID, reply.String(), ctx.Err(), events)
			return
		}
	}
}

func (s *ChatService) finishCompleted(ctx context.Context, log *logger.Logger, characterID uint, content string, events chan<- TurnEvent) {
	message := &models.ChatMessage{
		CharacterID: characterID,
		Content:     content,
		IsUser:      false,
		Complete:    true,
	}
	if err := s.messages.Create(message); err != nil {
		log.LogError(err, "failed to persist assistant reply")
		s.metrics.TurnFailed(ctx)
		send(ctx, events, TurnEvent{Err: err})
		return
	}

	s.metrics.TurnCompleted(ctx)
	send(ctx, events, TurnEvent{Done: true})
}

func (s *ChatService) finishFailed(ctx context.Context, log *logger.Logger, characterID uint, partial string, cause error, events chan<- TurnEvent) {
	if cause == nil {
		cause = context.Canceled
	}
	log.LogError(cause, "chat turn failed", "partial_bytes", len(partial))
	s.metrics.TurnFailed(ctx)

	// The turn still leaves a row behind so the conversation log never
	// silently loses an exchange.
	message := &models.ChatMessage{
		CharacterID: characterID,
		Content:     partial,
		IsUser:      false,
		Complete:    false,
	}
	if err := s.messages.Create(message); err != nil {
		log.LogError(err, "failed to persist partial assistant reply")
	}

	send(ctx, events, TurnEvent{Err: cause})
}

// History returns the character's full conversation log, oldest first.
func (s *ChatService) History(characterID uint) ([]models.ChatMessage, error) {
	if _, err := s.characters.GetCharacterByID(characterID); err != nil {
		if err == repository.ErrCharacterNotFound {
			return nil, apperrors.NewNotFoundError(apperrors.CodeCharacterNotFound, "Character not found")
		}
		return nil, err
	}
	return s.messages.ListByCharacter(characterID)
}

// send delivers an event unless the consumer is gone.
func send(ctx context.Context, events chan<- TurnEvent, ev TurnEvent) bool {
	select {
	case events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}
