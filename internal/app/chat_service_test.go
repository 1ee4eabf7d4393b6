package app

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docrelay/internal/ai"
	"docrelay/internal/ratelimit"
)

func newTestChatService(client *fakeChatClient, limiter ratelimit.Limiter) *ChatService {
	return NewChatService(limiter, client, ai.ChatConfig{
		BaseURL: "https://llm.example/v1",
		APIKey:  "sk-configured",
		Model:   "gpt-3.5-turbo",
	}, ChatOptions{}, nil)
}

func TestChatSend(t *testing.T) {
	client := &fakeChatClient{content: "  hi there  "}
	svc := newTestChatService(client, ratelimit.NewMemoryLimiter(50, time.Hour))

	out, err := svc.Send(context.Background(), ChatInput{
		Message:         "hello",
		SessionID:       "s1",
		History:         []ai.ChatMessage{{Role: "user", Content: "before"}, {Role: "assistant", Content: "reply"}},
		DocumentContext: "doc text",
	})
	require.NoError(t, err)
	assert.Equal(t, "hi there", out.Response)
	assert.Equal(t, "s1", out.SessionID)
	assert.Equal(t, 7, out.TokensUsed)

	require.Len(t, client.messages, 1)
	sent := client.messages[0]
	require.Len(t, sent, 5)
	assert.Equal(t, "before", sent[2].Content)
	assert.Equal(t, ai.ChatMessage{Role: "user", Content: "hello"}, sent[4])
	assert.Equal(t, "sk-configured", client.cfgs[0].APIKey)
	assert.Equal(t, 1, svc.ActiveSessions(context.Background()))
}

func TestChatSend_RequestAPIKeyOverridesConfigured(t *testing.T) {
	client := &fakeChatClient{content: "ok"}
	svc := newTestChatService(client, nil)

	_, err := svc.Send(context.Background(), ChatInput{Message: "m", SessionID: "s", APIKey: "sk-request"})
	require.NoError(t, err)
	assert.Equal(t, "sk-request", client.cfgs[0].APIKey)
}

func TestChatSend_MessageTooLong(t *testing.T) {
	client := &fakeChatClient{content: "ok"}
	svc := newTestChatService(client, nil)

	_, err := svc.Send(context.Background(), ChatInput{Message: strings.Repeat("a", 2001), SessionID: "s"})
	require.ErrorIs(t, err, ErrInvalidInput)
	assert.Contains(t, err.Error(), "2000")
	assert.Empty(t, client.messages)

	_, err = svc.Send(context.Background(), ChatInput{Message: strings.Repeat("a", 2000), SessionID: "s"})
	assert.NoError(t, err)
}

func TestChatSend_Validation(t *testing.T) {
	svc := NewChatService(nil, &fakeChatClient{}, ai.ChatConfig{BaseURL: "u", Model: "m"}, ChatOptions{}, nil)
	cases := map[string]ChatInput{
		"missing message": {SessionID: "s", APIKey: "k"},
		"missing session": {Message: "m", APIKey: "k"},
		"missing api key": {Message: "m", SessionID: "s"},
		"bad role":        {Message: "m", SessionID: "s", APIKey: "k", History: []ai.ChatMessage{{Role: "tool", Content: "x"}}},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Send(context.Background(), in)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}
}

func TestChatSend_RateLimited(t *testing.T) {
	client := &fakeChatClient{content: "ok"}
	svc := newTestChatService(client, ratelimit.NewMemoryLimiter(3, time.Minute))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := svc.Send(ctx, ChatInput{Message: "m", SessionID: "s"})
		require.NoError(t, err)
	}
	_, err := svc.Send(ctx, ChatInput{Message: "m", SessionID: "s"})
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.Len(t, client.messages, 3)

	// budgets are per session
	_, err = svc.Send(ctx, ChatInput{Message: "m", SessionID: "other"})
	assert.NoError(t, err)
}

func TestChatSend_InferenceErrorPropagates(t *testing.T) {
	client := &fakeChatClient{err: ai.ErrAuthentication}
	svc := newTestChatService(client, nil)

	_, err := svc.Send(context.Background(), ChatInput{Message: "m", SessionID: "s"})
	assert.ErrorIs(t, err, ai.ErrAuthentication)
}

func TestChatStream(t *testing.T) {
	client := &fakeChatClient{content: "one two three"}
	svc := newTestChatService(client, nil)

	var chunks []string
	full, err := svc.Stream(context.Background(), ChatInput{Message: "m", SessionID: "s"}, func(c string) error {
		chunks = append(chunks, c)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "one two three", full)
	assert.Equal(t, []string{"one ", "two ", "three"}, chunks)
}
