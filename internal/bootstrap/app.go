package bootstrap

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"knowledgehub/internal/ai"
	"knowledgehub/internal/app"
	"knowledgehub/internal/cache"
	"knowledgehub/internal/config"
	"knowledgehub/internal/model"
	mysqlClient "knowledgehub/internal/platform/mysql"
	"knowledgehub/internal/platform/objectstore"
	rabbitmqClient "knowledgehub/internal/platform/rabbitmq"
	redisClient "knowledgehub/internal/platform/redis"
	"knowledgehub/internal/platform/search"
	"knowledgehub/internal/repository"
	"knowledgehub/internal/worker"
)

// App is the fully wired set of infrastructure clients, repositories
// and services the HTTP and WebSocket transports run against.
// Grounded on the teacher's bootstrap.App, generalized with the
// storage/search/ingestion stack the spec adds.
type App struct {
	Config *config.Config

	MySQL  *gorm.DB
	Redis  *redis.Client
	MQConn *amqp.Connection

	ObjectStore objectstore.Store
	SearchStore search.Store

	UserRepo    *repository.UserRepository
	TagRepo     *repository.OrgTagRepository
	FileRepo    *repository.FileRepository
	ChunkRepo   *repository.ChunkRepository
	PassageRepo *repository.PassageRepository

	SessionStore      *cache.SessionStore
	TagCache          *cache.TagCache
	UploadLedger      *cache.UploadLedger
	ConversationStore *cache.ConversationStore

	AuthService         *app.AuthService
	TagService          *app.TagService
	UploadService       *app.UploadService
	HybridSearchService *app.HybridSearchService
	ChatOrchestrator    *app.ChatOrchestrator

	IngestionWorker *worker.IngestionWorker

	StartedAt time.Time
}

func New(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config failed: %w", err)
	}

	mysqlDB, err := mysqlClient.New(ctx, cfg.MySQLDSN())
	if err != nil {
		return nil, err
	}
	if err := mysqlDB.AutoMigrate(
		&model.User{},
		&model.OrganizationTag{},
		&model.FileRecord{},
		&model.ChunkRecord{},
		&model.Passage{},
	); err != nil {
		return nil, fmt.Errorf("auto migrate tables failed: %w", err)
	}

	redisCli, err := redisClient.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return nil, err
	}

	mqConn, err := rabbitmqClient.New(ctx, cfg.RabbitMQ.URL)
	if err != nil {
		return nil, err
	}

	objectStore := objectstore.New(objectstore.Config{
		Endpoint:  cfg.Storage.Endpoint,
		Bucket:    cfg.Storage.Bucket,
		AccessKey: cfg.Storage.AccessKey,
		SecretKey: cfg.Storage.SecretKey,
		UseSSL:    cfg.Storage.UseSSL,
	})
	searchStore := search.New(search.Config{
		Endpoint: cfg.Search.Endpoint,
		Index:    cfg.Search.Index,
	})

	userRepo := repository.NewUserRepository(mysqlDB)
	tagRepo := repository.NewOrgTagRepository(mysqlDB)
	fileRepo := repository.NewFileRepository(mysqlDB)
	chunkRepo := repository.NewChunkRepository(mysqlDB)
	passageRepo := repository.NewPassageRepository(mysqlDB)

	sessionStore := cache.NewSessionStore(redisCli)
	tagCache := cache.NewTagCache(redisCli, 24*time.Hour)
	uploadLedger := cache.NewUploadLedger(redisCli)
	conversationStore := cache.NewConversationStore(redisCli)

	taskPublisher := rabbitmqClient.NewTaskPublisher(mqConn, cfg.RabbitMQ.IngestionQueue)

	chatClient := ai.NewOpenAICompatibleClient()
	embeddingClient := ai.NewEmbeddingClient(chatClient, ai.EmbeddingConfig{
		BaseURL: cfg.LLM.BaseURL,
		APIKey:  cfg.LLM.APIKey,
		Model:   cfg.LLM.EmbeddingModel,
	}, cfg.LLM.EmbeddingBatchMax)

	authService := app.NewAuthService(
		userRepo, tagRepo, sessionStore,
		cfg.Auth.JWTSecret, time.Duration(cfg.Auth.JWTExpireMinute)*time.Minute,
		time.Duration(cfg.Auth.RefreshExpireHour)*time.Hour,
	)
	tagService := app.NewTagService(tagRepo, userRepo, tagCache)
	uploadService := app.NewUploadService(
		fileRepo, chunkRepo, userRepo, uploadLedger, objectStore, taskPublisher,
		cfg.Chunking.UploadChunkBytes, time.Duration(cfg.Storage.PresignTTLMinute)*time.Minute,
	)
	hybridSearchService := app.NewHybridSearchService(tagService, embeddingClient, searchStore, fileRepo)

	stopToken := fmt.Sprintf("cmd_%d", time.Now().UnixNano()%1_000_000)
	chatCfg := ai.ChatConfig{BaseURL: cfg.LLM.BaseURL, APIKey: cfg.LLM.APIKey, Model: cfg.LLM.Model}
	chatOrchestrator := app.NewChatOrchestrator(conversationStore, hybridSearchService, chatClient, chatCfg, stopToken)

	ingestionWorker := worker.NewIngestionWorker(
		mqConn, cfg.RabbitMQ.IngestionQueue,
		objectStore, searchStore, embeddingClient,
		fileRepo, passageRepo,
		cfg.Chunking.SplitChunkRunes, cfg.Chunking.MaxResidentMemoryMiB,
		cfg.LLM.EmbeddingModel,
	)
	if err := ingestionWorker.Start(ctx, cfg.RabbitMQ.WorkerCount); err != nil {
		return nil, fmt.Errorf("start ingestion worker failed: %w", err)
	}

	if cfg.Auth.BootstrapAdmin {
		if err := authService.BootstrapAdmin(cfg.Auth.AdminUsername, cfg.Auth.AdminPassword); err != nil {
			return nil, fmt.Errorf("bootstrap admin failed: %w", err)
		}
	}

	return &App{
		Config:              cfg,
		MySQL:               mysqlDB,
		Redis:               redisCli,
		MQConn:              mqConn,
		ObjectStore:         objectStore,
		SearchStore:         searchStore,
		UserRepo:            userRepo,
		TagRepo:             tagRepo,
		FileRepo:            fileRepo,
		ChunkRepo:           chunkRepo,
		PassageRepo:         passageRepo,
		SessionStore:        sessionStore,
		TagCache:            tagCache,
		UploadLedger:        uploadLedger,
		ConversationStore:   conversationStore,
		AuthService:         authService,
		TagService:          tagService,
		UploadService:       uploadService,
		HybridSearchService: hybridSearchService,
		ChatOrchestrator:    chatOrchestrator,
		IngestionWorker:     ingestionWorker,
		StartedAt:           time.Now(),
	}, nil
}

func (a *App) Close() error {
	var closeErr error
	if a.IngestionWorker != nil {
		a.IngestionWorker.Close()
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			closeErr = err
		}
	}
	if a.MQConn != nil {
		if err := a.MQConn.Close(); err != nil {
			closeErr = err
		}
	}
	if a.MySQL != nil {
		sqlDB, err := a.MySQL.DB()
		if err == nil {
			if err := sqlDB.Close(); err != nil {
				closeErr = err
			}
		}
	}
	return closeErr
}
