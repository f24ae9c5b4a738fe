package di

import (
	"fmt"

	"ai-character-chat/backend/internal/llm"
	"ai-character-chat/backend/internal/repository"
	"ai-character-chat/backend/internal/service"
	"ai-character-chat/backend/pkg/cache"
	"ai-character-chat/backend/pkg/config"
	"ai-character-chat/backend/pkg/logger"
	"ai-character-chat/backend/pkg/secrets"
	"ai-character-chat/backend/shared/observability"
	"ai-character-chat/backend/shared/redis"

	"gorm.io/gorm"
)

// Container holds all the dependencies for the application
type Container struct {
	DB               *gorm.DB
	Logger           *logger.Logger
	Secrets          secrets.Manager
	Cache            cache.Store
	Redis            *redis.Client
	LLMClient        *llm.Client
	CharacterService *service.CharacterService
	ChatService      *service.ChatService
	ChatMetrics      *observability.ChatMetrics
}

// New creates a new dependency injection container
func New(db *gorm.DB, cfg *config.Config, log *logger.Logger) (*Container, error) {
	if log == nil {
		log = logger.New(logger.DefaultConfig())
	}

	secretsManager, err := secrets.NewVaultManager(log)
	if err != nil {
		return nil, fmt.Errorf("failed to create secrets manager: %w", err)
	}

	container := &Container{
		DB:      db,
		Logger:  log,
		Secrets: secretsManager,
	}

	if cfg.Cache.Enabled {
		if cfg.Cache.Backend == "redis" {
			container.Redis = redis.NewClient(cfg.Cache.RedisURL, log)
			container.Cache = container.Redis
		} else {
			container.Cache = cache.NewCache(cache.Options{
				CleanupInterval: cfg.Cache.PurgeWindow,
				MaxItems:        cfg.Cache.MaxSize,
			})
		}
	}

	container.LLMClient = llm.NewClient(llm.Config{
		URL:     cfg.LLM.URL,
		Model:   cfg.LLM.Model,
		APIKey:  cfg.LLM.APIKey,
		Secrets: secretsManager,
		Timeout: cfg.LLM.Timeout,
		Logger:  log,
	})

	characterRepo := repository.NewGormCharacterRepository(db)
	messageRepo := repository.NewGormMessageRepository(db)

	container.ChatMetrics = observability.NewChatMetrics()
	container.CharacterService = service.NewCharacterService(characterRepo, container.Cache, cfg.Cache.TTL)
	container.ChatService = service.NewChatService(
		container.CharacterService,
		messageRepo,
		container.LLMClient,
		cfg.LLM.HistoryWindow,
		container.ChatMetrics,
		log,
	)

	return container, nil
}
