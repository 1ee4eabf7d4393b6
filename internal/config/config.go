package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App        AppConfig        `toml:"app" yaml:"app"`
	LLM        LLMConfig        `toml:"llm" yaml:"llm"`
	QA         QAConfig         `toml:"qa" yaml:"qa"`
	Extractive ExtractiveConfig `toml:"extractive" yaml:"extractive"`
	Extract    ExtractConfig    `toml:"extract" yaml:"extract"`
	Cache      CacheConfig      `toml:"cache" yaml:"cache"`
	RateLimit  RateLimitConfig  `toml:"rate_limit" yaml:"rate_limit"`
	Chat       ChatConfig       `toml:"chat" yaml:"chat"`
	MySQL      MySQLConfig      `toml:"mysql" yaml:"mysql"`
	Redis      RedisConfig      `toml:"redis" yaml:"redis"`
	RabbitMQ   RabbitMQConfig   `toml:"rabbitmq" yaml:"rabbitmq"`
}

type AppConfig struct {
	Name         string `toml:"name" yaml:"name"`
	Version      string `toml:"version" yaml:"version"`
	Env          string `toml:"env" yaml:"env"`
	Host         string `toml:"host" yaml:"host"`
	Port         int    `toml:"port" yaml:"port"`
	GinMode      string `toml:"gin_mode" yaml:"gin_mode"`
	Debug        bool   `toml:"debug" yaml:"debug"`
	MaxBodyBytes int64  `toml:"max_body_bytes" yaml:"max_body_bytes"`
}

type LLMConfig struct {
	BaseURL        string  `toml:"base_url" yaml:"base_url"`
	APIKey         string  `toml:"api_key" yaml:"api_key"`
	Model          string  `toml:"model" yaml:"model"`
	TimeoutSeconds int     `toml:"timeout_seconds" yaml:"timeout_seconds"`
	MaxTokens      int     `toml:"max_tokens" yaml:"max_tokens"`
	Temperature    float64 `toml:"temperature" yaml:"temperature"`
}

// QAConfig controls document question answering. Mode is "llm" or "extractive".
type QAConfig struct {
	Mode             string `toml:"mode" yaml:"mode"`
	ChunkSize        int    `toml:"chunk_size" yaml:"chunk_size"`
	ChunkOverlap     int    `toml:"chunk_overlap" yaml:"chunk_overlap"`
	MaxChunks        int    `toml:"max_chunks" yaml:"max_chunks"`
	LargeDocWords    int    `toml:"large_doc_words" yaml:"large_doc_words"`
	MaxContextChars  int    `toml:"max_context_chars" yaml:"max_context_chars"`
	MaxQuestionChars int    `toml:"max_question_chars" yaml:"max_question_chars"`
	ExtractLimit     int    `toml:"extract_limit" yaml:"extract_limit"`
}

type ExtractiveConfig struct {
	ModelPath         string `toml:"model_path" yaml:"model_path"`
	VocabPath         string `toml:"vocab_path" yaml:"vocab_path"`
	ONNXSharedLibPath string `toml:"onnx_shared_lib_path" yaml:"onnx_shared_lib_path"`
	MaxSeqLen         int    `toml:"max_seq_len" yaml:"max_seq_len"`
	MaxAnswerTokens   int    `toml:"max_answer_tokens" yaml:"max_answer_tokens"`
}

type ExtractConfig struct {
	TimeoutSeconds int   `toml:"timeout_seconds" yaml:"timeout_seconds"`
	MaxBytes       int64 `toml:"max_bytes" yaml:"max_bytes"`
	MaxPages       int   `toml:"max_pages" yaml:"max_pages"`
}

// CacheConfig selects the response cache. Backend is "memory" or "redis".
type CacheConfig struct {
	Backend    string `toml:"backend" yaml:"backend"`
	TTLSeconds int    `toml:"ttl_seconds" yaml:"ttl_seconds"`
}

// RateLimitConfig selects the chat limiter. Backend is "memory" or "redis".
type RateLimitConfig struct {
	Backend       string `toml:"backend" yaml:"backend"`
	MaxRequests   int    `toml:"max_requests" yaml:"max_requests"`
	WindowSeconds int    `toml:"window_seconds" yaml:"window_seconds"`
}

type ChatConfig struct {
	MaxMessageChars int `toml:"max_message_chars" yaml:"max_message_chars"`
	HistoryTurns    int `toml:"history_turns" yaml:"history_turns"`
}

// MySQLConfig is optional; an empty Host disables job and question persistence.
type MySQLConfig struct {
	Host     string `toml:"host" yaml:"host"`
	Port     int    `toml:"port" yaml:"port"`
	User     string `toml:"user" yaml:"user"`
	Password string `toml:"password" yaml:"password"`
	DB       string `toml:"db" yaml:"db"`
	Params   string `toml:"params" yaml:"params"`
}

type RedisConfig struct {
	Addr      string `toml:"addr" yaml:"addr"`
	Password  string `toml:"password" yaml:"password"`
	DB        int    `toml:"db" yaml:"db"`
	KeyPrefix string `toml:"key_prefix" yaml:"key_prefix"`
}

// RabbitMQConfig is optional; an empty URL disables asynchronous document jobs.
type RabbitMQConfig struct {
	URL              string `toml:"url" yaml:"url"`
	DocumentJobQueue string `toml:"document_job_queue" yaml:"document_job_queue"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := defaultConfig()

	configPath := getEnv("CONFIG_FILE", "configs/config.toml")
	if _, err := os.Stat(configPath); err == nil {
		if err := decodeFile(configPath, cfg); err != nil {
			return nil, err
		}
	}

	overrideByEnv(cfg)
	return cfg, nil
}

func decodeFile(path string, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read config file failed: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("decode yaml config failed: %w", err)
		}
	default:
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return fmt.Errorf("decode config file failed: %w", err)
		}
	}
	return nil
}

func (c *Config) HTTPAddr() string {
	return fmt.Sprintf("%s:%d", c.App.Host, c.App.Port)
}

func (c *Config) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?%s",
		c.MySQL.User,
		c.MySQL.Password,
		c.MySQL.Host,
		c.MySQL.Port,
		c.MySQL.DB,
		c.MySQL.Params,
	)
}

// PersistenceEnabled reports whether MySQL-backed job and history storage is configured.
func (c *Config) PersistenceEnabled() bool {
	return strings.TrimSpace(c.MySQL.Host) != ""
}

func (c *Config) UsesRedis() bool {
	return c.Cache.Backend == "redis" || c.RateLimit.Backend == "redis"
}

func defaultConfig() *Config {
	return &Config{
		App: AppConfig{
			Name:         "docrelay",
			Version:      "1.0.0",
			Env:          "dev",
			Host:         "0.0.0.0",
			Port:         5001,
			GinMode:      "debug",
			MaxBodyBytes: 50 << 20,
		},
		LLM: LLMConfig{
			BaseURL:        "https://api.openai.com/v1",
			Model:          "gpt-3.5-turbo",
			TimeoutSeconds: 60,
			MaxTokens:      1000,
			Temperature:    0.7,
		},
		QA: QAConfig{
			Mode:             "llm",
			ChunkSize:        4000,
			ChunkOverlap:     200,
			MaxChunks:        5,
			LargeDocWords:    10000,
			MaxContextChars:  12000,
			MaxQuestionChars: 1000,
			ExtractLimit:     50000,
		},
		Extractive: ExtractiveConfig{
			ModelPath:       "assets/qa-model.onnx",
			VocabPath:       "assets/vocab.txt",
			MaxSeqLen:       384,
			MaxAnswerTokens: 30,
		},
		Extract: ExtractConfig{
			TimeoutSeconds: 30,
			MaxBytes:       50 << 20,
			MaxPages:       500,
		},
		Cache: CacheConfig{
			Backend:    "memory",
			TTLSeconds: 3600,
		},
		RateLimit: RateLimitConfig{
			Backend:       "memory",
			MaxRequests:   50,
			WindowSeconds: 3600,
		},
		Chat: ChatConfig{
			MaxMessageChars: 2000,
			HistoryTurns:    15,
		},
		MySQL: MySQLConfig{
			Port:   3306,
			User:   "root",
			DB:     "docrelay",
			Params: "parseTime=true&loc=Local&charset=utf8mb4",
		},
		Redis: RedisConfig{
			Addr:      "127.0.0.1:6379",
			KeyPrefix: "docrelay",
		},
		RabbitMQ: RabbitMQConfig{
			DocumentJobQueue: "document.extract.jobs",
		},
	}
}

func overrideByEnv(cfg *Config) {
	cfg.App.Name = getEnv("APP_NAME", cfg.App.Name)
	cfg.App.Env = getEnv("APP_ENV", cfg.App.Env)
	cfg.App.Host = getEnv("APP_HOST", cfg.App.Host)
	cfg.App.Port = getEnvAsInt("PORT", getEnvAsInt("APP_PORT", cfg.App.Port))
	cfg.App.GinMode = getEnv("GIN_MODE", cfg.App.GinMode)
	cfg.App.Debug = getEnvAsBool("APP_DEBUG", cfg.App.Debug)

	cfg.LLM.BaseURL = getEnv("LLM_BASE_URL", cfg.LLM.BaseURL)
	cfg.LLM.APIKey = getEnv("LLM_API_KEY", getEnv("OPENAI_API_KEY", cfg.LLM.APIKey))
	cfg.LLM.Model = getEnv("LLM_MODEL", cfg.LLM.Model)
	cfg.LLM.TimeoutSeconds = getEnvAsInt("LLM_TIMEOUT_SECONDS", cfg.LLM.TimeoutSeconds)

	cfg.QA.Mode = getEnv("QA_MODE", cfg.QA.Mode)
	cfg.QA.ChunkSize = getEnvAsInt("QA_CHUNK_SIZE", cfg.QA.ChunkSize)
	cfg.QA.ChunkOverlap = getEnvAsInt("QA_CHUNK_OVERLAP", cfg.QA.ChunkOverlap)
	cfg.QA.MaxChunks = getEnvAsInt("QA_MAX_CHUNKS", cfg.QA.MaxChunks)

	cfg.Extractive.ModelPath = getEnv("EXTRACTIVE_MODEL_PATH", cfg.Extractive.ModelPath)
	cfg.Extractive.VocabPath = getEnv("EXTRACTIVE_VOCAB_PATH", cfg.Extractive.VocabPath)
	cfg.Extractive.ONNXSharedLibPath = getEnv("EXTRACTIVE_ONNX_LIB", cfg.Extractive.ONNXSharedLibPath)

	cfg.Extract.TimeoutSeconds = getEnvAsInt("EXTRACT_TIMEOUT_SECONDS", cfg.Extract.TimeoutSeconds)
	cfg.Extract.MaxPages = getEnvAsInt("EXTRACT_MAX_PAGES", cfg.Extract.MaxPages)

	cfg.Cache.Backend = getEnv("CACHE_BACKEND", cfg.Cache.Backend)
	cfg.Cache.TTLSeconds = getEnvAsInt("CACHE_TTL_SECONDS", cfg.Cache.TTLSeconds)
	cfg.RateLimit.Backend = getEnv("RATE_LIMIT_BACKEND", cfg.RateLimit.Backend)
	cfg.RateLimit.MaxRequests = getEnvAsInt("RATE_LIMIT_MAX_REQUESTS", cfg.RateLimit.MaxRequests)
	cfg.RateLimit.WindowSeconds = getEnvAsInt("RATE_LIMIT_WINDOW_SECONDS", cfg.RateLimit.WindowSeconds)

	cfg.MySQL.Host = getEnv("MYSQL_HOST", cfg.MySQL.Host)
	cfg.MySQL.Port = getEnvAsInt("MYSQL_PORT", cfg.MySQL.Port)
	cfg.MySQL.User = getEnv("MYSQL_USER", cfg.MySQL.User)
	cfg.MySQL.Password = getEnv("MYSQL_PASSWORD", cfg.MySQL.Password)
	cfg.MySQL.DB = getEnv("MYSQL_DB", cfg.MySQL.DB)
	cfg.MySQL.Params = getEnv("MYSQL_PARAMS", cfg.MySQL.Params)

	cfg.Redis.Addr = getEnv("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = getEnvAsInt("REDIS_DB", cfg.Redis.DB)

	cfg.RabbitMQ.URL = getEnv("RABBITMQ_URL", cfg.RabbitMQ.URL)
	cfg.RabbitMQ.DocumentJobQueue = getEnv("RABBITMQ_DOCUMENT_JOB_QUEUE", cfg.RabbitMQ.DocumentJobQueue)
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return parsed
}
