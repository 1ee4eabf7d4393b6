package app

import (
	"strings"

	"docrelay/internal/ai"
)

const (
	DefaultHistoryTurns = 15
	assistantPersona    = "You are a helpful document assistant. Answer clearly and concisely, and say so when you do not know something."
	documentContextHead = "Document context to reference (use this information to answer questions):\n\n"
)

// BuildConversation assembles the messages sent for one chat turn: persona,
// optional document context, the last turns of history, then the new message.
// history is not modified.
func BuildConversation(history []ai.ChatMessage, documentContext, userMessage string, turns int) []ai.ChatMessage {
	if turns <= 0 {
		turns = DefaultHistoryTurns
	}
	if len(history) > turns {
		history = history[len(history)-turns:]
	}

	messages := make([]ai.ChatMessage, 0, len(history)+3)
	messages = append(messages, ai.ChatMessage{Role: "system", Content: assistantPersona})
	if strings.TrimSpace(documentContext) != "" {
		messages = append(messages, ai.ChatMessage{Role: "system", Content: documentContextHead + documentContext})
	}
	messages = append(messages, history...)
	messages = append(messages, ai.ChatMessage{Role: "user", Content: userMessage})
	return messages
}
