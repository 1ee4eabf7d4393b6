package app

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"docrelay/internal/ai"
	"docrelay/internal/pkg/logging"
	"docrelay/internal/ratelimit"
)

const DefaultMaxMessageChars = 2000

type ChatClient interface {
	ChatCompleter
	StreamComplete(ctx context.Context, cfg ai.ChatConfig, messages []ai.ChatMessage, onChunk func(string) error) (string, error)
}

type ChatInput struct {
	Message         string
	SessionID       string
	History         []ai.ChatMessage
	DocumentContext string
	// APIKey overrides the configured provider key for this request.
	APIKey string
}

type ChatResult struct {
	Response   string `json:"response"`
	SessionID  string `json:"session_id"`
	TokensUsed int    `json:"tokens_used"`
}

type ChatOptions struct {
	MaxMessageChars int
	HistoryTurns    int
}

// ChatService relays multi-turn conversations to the language model, with a
// per-session rate limit. Responses are never cached.
type ChatService struct {
	limiter    ratelimit.Limiter
	llmClient  ChatClient
	defaultLLM ai.ChatConfig
	opts       ChatOptions
	logger     *zap.Logger
}

func NewChatService(limiter ratelimit.Limiter, llmClient ChatClient, defaultLLM ai.ChatConfig, opts ChatOptions, logger *zap.Logger) *ChatService {
	if opts.MaxMessageChars <= 0 {
		opts.MaxMessageChars = DefaultMaxMessageChars
	}
	if opts.HistoryTurns <= 0 {
		opts.HistoryTurns = DefaultHistoryTurns
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChatService{
		limiter:    limiter,
		llmClient:  llmClient,
		defaultLLM: defaultLLM,
		opts:       opts,
		logger:     logger,
	}
}

func (s *ChatService) Send(ctx context.Context, in ChatInput) (*ChatResult, error) {
	cfg, messages, err := s.prepare(ctx, in)
	if err != nil {
		return nil, err
	}

	out, err := s.llmClient.Complete(ctx, cfg, messages)
	if err != nil {
		s.logger.Error("chat completion failed", zap.String("session_id", in.SessionID), zap.Error(err))
		return nil, err
	}
	return &ChatResult{
		Response:   strings.TrimSpace(out.Content),
		SessionID:  in.SessionID,
		TokensUsed: out.TokensUsed,
	}, nil
}

// Stream is Send with incremental delivery; onChunk receives each content
// delta as it arrives.
func (s *ChatService) Stream(ctx context.Context, in ChatInput, onChunk func(string) error) (string, error) {
	cfg, messages, err := s.prepare(ctx, in)
	if err != nil {
		return "", err
	}

	full, err := s.llmClient.StreamComplete(ctx, cfg, messages, onChunk)
	if err != nil {
		s.logger.Error("chat stream failed", zap.String("session_id", in.SessionID), zap.Error(err))
		return "", err
	}
	return strings.TrimSpace(full), nil
}

// ActiveSessions reports how many sessions the rate limiter is tracking.
func (s *ChatService) ActiveSessions(ctx context.Context) int {
	if s.limiter == nil {
		return 0
	}
	return s.limiter.Sessions(ctx)
}

func (s *ChatService) prepare(ctx context.Context, in ChatInput) (ai.ChatConfig, []ai.ChatMessage, error) {
	if strings.TrimSpace(in.Message) == "" {
		return ai.ChatConfig{}, nil, invalidInput("missing required field: message")
	}
	if strings.TrimSpace(in.SessionID) == "" {
		return ai.ChatConfig{}, nil, invalidInput("missing required field: session_id")
	}
	if utf8.RuneCountInString(in.Message) > s.opts.MaxMessageChars {
		return ai.ChatConfig{}, nil, invalidInput(tooLongMessage("message", s.opts.MaxMessageChars))
	}
	for _, turn := range in.History {
		switch turn.Role {
		case "system", "user", "assistant":
		default:
			return ai.ChatConfig{}, nil, invalidInput(fmt.Sprintf("invalid conversation_history role %q", turn.Role))
		}
	}

	cfg := s.defaultLLM
	if key := strings.TrimSpace(in.APIKey); key != "" {
		cfg.APIKey = key
	}
	if cfg.APIKey == "" {
		return ai.ChatConfig{}, nil, invalidInput("missing required field: api_key")
	}

	if s.limiter != nil {
		allowed, err := s.limiter.Allow(ctx, in.SessionID)
		if err != nil {
			return ai.ChatConfig{}, nil, fmt.Errorf("check rate limit failed: %w", err)
		}
		if !allowed {
			s.logger.Info("chat rate limited", zap.String("session_id", in.SessionID))
			return ai.ChatConfig{}, nil, ErrRateLimited
		}
	}

	messages := BuildConversation(in.History, in.DocumentContext, in.Message, s.opts.HistoryTurns)
	s.logger.Debug("chat request prepared",
		zap.String("session_id", in.SessionID),
		zap.Int("messages", len(messages)),
		zap.String("api_key", logging.MaskSecret(cfg.APIKey)),
	)
	return cfg, messages, nil
}

func tooLongMessage(field string, limit int) string {
	return fmt.Sprintf("%s too long: maximum %d characters allowed", field, limit)
}
