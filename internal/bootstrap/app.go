package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"docrelay/internal/ai"
	"docrelay/internal/app"
	"docrelay/internal/cache"
	"docrelay/internal/config"
	"docrelay/internal/pkg/docextract"
	"docrelay/internal/pkg/logging"
	mysqlClient "docrelay/internal/platform/mysql"
	rabbitmqClient "docrelay/internal/platform/rabbitmq"
	redisClient "docrelay/internal/platform/redis"
	"docrelay/internal/ratelimit"
	"docrelay/internal/repository"
	"docrelay/internal/worker"
)

type App struct {
	Config *config.Config
	Logger *zap.Logger

	MySQL     *gorm.DB
	Redis     *redis.Client
	MQConn    *amqp.Connection
	Publisher *rabbitmqClient.JobPublisher
	JobWorker *worker.DocumentJobWorker

	QA   *app.QAService
	Chat *app.ChatService
	Jobs *app.JobService

	extractive *ai.ExtractiveQA

	StartedAt time.Time
}

func New(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config failed: %w", err)
	}

	logger, err := logging.New(cfg.App.Debug)
	if err != nil {
		return nil, fmt.Errorf("init logger failed: %w", err)
	}

	a := &App{Config: cfg, Logger: logger, StartedAt: time.Now()}
	if err := a.init(ctx); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) init(ctx context.Context) error {
	cfg := a.Config

	if cfg.PersistenceEnabled() {
		db, err := mysqlClient.New(ctx, cfg.MySQLDSN())
		if err != nil {
			return err
		}
		a.MySQL = db
	}

	if cfg.UsesRedis() {
		cli, err := redisClient.New(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		a.Redis = cli
	}

	if strings.TrimSpace(cfg.RabbitMQ.URL) != "" {
		conn, err := rabbitmqClient.New(ctx, cfg.RabbitMQ.URL, cfg.RabbitMQ.DocumentJobQueue)
		if err != nil {
			return err
		}
		a.MQConn = conn
	}

	llmClient := ai.NewOpenAICompatibleClient(time.Duration(cfg.LLM.TimeoutSeconds) * time.Second)
	llmCfg := ai.ChatConfig{
		BaseURL:     cfg.LLM.BaseURL,
		APIKey:      cfg.LLM.APIKey,
		Model:       cfg.LLM.Model,
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: cfg.LLM.Temperature,
	}

	answerer, err := a.newAnswerer(llmClient, llmCfg)
	if err != nil {
		return err
	}

	extractor := docextract.New(docextract.Options{
		Timeout:  time.Duration(cfg.Extract.TimeoutSeconds) * time.Second,
		MaxBytes: cfg.Extract.MaxBytes,
		MaxPages: cfg.Extract.MaxPages,
	})

	responseCache := a.newResponseCache()
	limiter := a.newLimiter()

	var questions app.QuestionStore = repository.NewMemoryQuestionRepository()
	var jobStore app.JobStore
	if a.MySQL != nil {
		questions = repository.NewDocumentQuestionRepository(a.MySQL)
		jobStore = repository.NewDocumentJobRepository(a.MySQL)
	}

	a.QA = app.NewQAService(extractor, answerer, responseCache, questions, app.QAOptions{
		ChunkSize:        cfg.QA.ChunkSize,
		ChunkOverlap:     cfg.QA.ChunkOverlap,
		MaxChunks:        cfg.QA.MaxChunks,
		LargeDocWords:    cfg.QA.LargeDocWords,
		MaxContextChars:  cfg.QA.MaxContextChars,
		MaxQuestionChars: cfg.QA.MaxQuestionChars,
		ExtractLimit:     cfg.QA.ExtractLimit,
	}, a.Logger.Named("qa"))

	a.Chat = app.NewChatService(limiter, llmClient, llmCfg, app.ChatOptions{
		MaxMessageChars: cfg.Chat.MaxMessageChars,
		HistoryTurns:    cfg.Chat.HistoryTurns,
	}, a.Logger.Named("chat"))

	var publisher app.JobPublisher
	if a.MQConn != nil && jobStore != nil {
		a.Publisher = rabbitmqClient.NewJobPublisher(a.MQConn, cfg.RabbitMQ.DocumentJobQueue)
		publisher = a.Publisher
	} else if a.MQConn != nil {
		a.Logger.Warn("rabbitmq configured without mysql, background document jobs disabled")
	}
	a.Jobs = app.NewJobService(jobStore, publisher, extractor, cfg.QA.ExtractLimit, a.Logger.Named("jobs"))

	if a.Jobs.Enabled() {
		a.JobWorker = worker.NewDocumentJobWorker(a.MQConn, a.Jobs, cfg.RabbitMQ.DocumentJobQueue, a.Logger.Named("worker"))
		if err := a.JobWorker.Start(ctx); err != nil {
			return fmt.Errorf("start document job worker failed: %w", err)
		}
	}

	a.Logger.Info("application initialized",
		zap.String("qa_mode", cfg.QA.Mode),
		zap.String("cache_backend", cfg.Cache.Backend),
		zap.String("rate_limit_backend", cfg.RateLimit.Backend),
		zap.Bool("persistence", a.MySQL != nil),
		zap.Bool("background_jobs", a.Jobs.Enabled()),
		zap.String("llm_api_key", logging.MaskSecret(cfg.LLM.APIKey)),
	)
	return nil
}

func (a *App) newAnswerer(client *ai.OpenAICompatibleClient, llmCfg ai.ChatConfig) (app.Answerer, error) {
	switch a.Config.QA.Mode {
	case "", "llm":
		return app.NewLLMAnswerer(client, llmCfg), nil
	case "extractive":
		qa, err := ai.NewExtractiveQA(ai.ExtractiveConfig{
			ModelPath:       a.Config.Extractive.ModelPath,
			VocabPath:       a.Config.Extractive.VocabPath,
			SharedLibPath:   a.Config.Extractive.ONNXSharedLibPath,
			MaxSeqLen:       a.Config.Extractive.MaxSeqLen,
			MaxAnswerTokens: a.Config.Extractive.MaxAnswerTokens,
		})
		if err != nil {
			return nil, fmt.Errorf("init extractive qa failed: %w", err)
		}
		a.extractive = qa
		return app.NewExtractiveAnswerer(qa), nil
	default:
		return nil, fmt.Errorf("unknown qa mode %q", a.Config.QA.Mode)
	}
}

func (a *App) newResponseCache() cache.ResponseCache {
	ttl := time.Duration(a.Config.Cache.TTLSeconds) * time.Second
	if a.Config.Cache.Backend == "redis" {
		return cache.NewRedisResponseCache(a.Redis, a.Config.Redis.KeyPrefix, ttl)
	}
	return cache.NewMemoryResponseCache(ttl)
}

func (a *App) newLimiter() ratelimit.Limiter {
	window := time.Duration(a.Config.RateLimit.WindowSeconds) * time.Second
	if a.Config.RateLimit.Backend == "redis" {
		return ratelimit.NewRedisLimiter(a.Redis, a.Config.Redis.KeyPrefix, a.Config.RateLimit.MaxRequests, window)
	}
	return ratelimit.NewMemoryLimiter(a.Config.RateLimit.MaxRequests, window)
}

func (a *App) Close() error {
	var errs []error
	if a.JobWorker != nil {
		a.JobWorker.Close()
	}
	if a.Publisher != nil {
		if err := a.Publisher.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.MQConn != nil {
		if err := a.MQConn.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.MySQL != nil {
		sqlDB, err := a.MySQL.DB()
		if err == nil {
			if err := sqlDB.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	if a.extractive != nil {
		if err := a.extractive.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.Logger != nil {
		_ = a.Logger.Sync()
	}
	return errors.Join(errs...)
}
