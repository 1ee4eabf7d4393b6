package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"docrelay/internal/ai"
)

// llmConfidence is reported for generated answers, which carry no score.
const llmConfidence = 0.8

var ErrEmptyAnswer = errors.New("model returned an empty answer")

// Candidate is one answer produced by an Answerer.
type Candidate struct {
	Answer     string
	Confidence float64
	TokensUsed int
}

// Answerer answers questions about a passage and merges per-section findings.
type Answerer interface {
	Answer(ctx context.Context, passage, question string, previous []string) (Candidate, error)
	Summarize(ctx context.Context, findings, question string) (Candidate, error)
}

type ChatCompleter interface {
	Complete(ctx context.Context, cfg ai.ChatConfig, messages []ai.ChatMessage) (*ai.Completion, error)
}

type LLMAnswerer struct {
	client ChatCompleter
	cfg    ai.ChatConfig
}

func NewLLMAnswerer(client ChatCompleter, cfg ai.ChatConfig) *LLMAnswerer {
	return &LLMAnswerer{client: client, cfg: cfg}
}

func (a *LLMAnswerer) Answer(ctx context.Context, passage, question string, previous []string) (Candidate, error) {
	var user strings.Builder
	user.WriteString("Document content:\n\n")
	user.WriteString(passage)
	if len(previous) > 0 {
		user.WriteString("\n\nEarlier questions about this document:\n")
		for _, q := range previous {
			user.WriteString("- ")
			user.WriteString(q)
			user.WriteString("\n")
		}
	}
	user.WriteString("\n\nQuestion: ")
	user.WriteString(question)
	user.WriteString("\n\nAnswer:")

	return a.complete(ctx, []ai.ChatMessage{
		{Role: "system", Content: "You are a document analysis assistant. Answer the question using only the document content provided. If the content does not contain the answer, say so briefly."},
		{Role: "user", Content: user.String()},
	})
}

func (a *LLMAnswerer) Summarize(ctx context.Context, findings, question string) (Candidate, error) {
	user := "Question: " + question +
		"\n\nFindings from different sections of the same document:\n\n" + findings +
		"\n\nMerge these findings into a single comprehensive answer to the question. Remove repetition and point out contradictions between sections."

	return a.complete(ctx, []ai.ChatMessage{
		{Role: "system", Content: "You combine partial answers drawn from sections of one document into one answer."},
		{Role: "user", Content: user},
	})
}

func (a *LLMAnswerer) complete(ctx context.Context, messages []ai.ChatMessage) (Candidate, error) {
	out, err := a.client.Complete(ctx, a.cfg, messages)
	if err != nil {
		return Candidate{}, err
	}
	answer := strings.TrimSpace(out.Content)
	if answer == "" {
		return Candidate{}, ErrEmptyAnswer
	}
	return Candidate{Answer: answer, Confidence: llmConfidence, TokensUsed: out.TokensUsed}, nil
}

type SpanFinder interface {
	Answer(ctx context.Context, question, passage string) (*ai.Span, error)
}

// ExtractiveAnswerer answers with the best span a local QA model finds.
// Summarize runs the same extraction over the combined findings.
type ExtractiveAnswerer struct {
	qa SpanFinder
}

func NewExtractiveAnswerer(qa SpanFinder) *ExtractiveAnswerer {
	return &ExtractiveAnswerer{qa: qa}
}

func (a *ExtractiveAnswerer) Answer(ctx context.Context, passage, question string, _ []string) (Candidate, error) {
	span, err := a.qa.Answer(ctx, question, passage)
	if err != nil {
		return Candidate{}, fmt.Errorf("extractive answer failed: %w", err)
	}
	return Candidate{Answer: span.Text, Confidence: span.Score}, nil
}

func (a *ExtractiveAnswerer) Summarize(ctx context.Context, findings, question string) (Candidate, error) {
	return a.Answer(ctx, findings, question, nil)
}
