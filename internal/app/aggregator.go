package app

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"docrelay/internal/model"
)

const (
	DefaultMaxChunks = 5
	maxFindingRunes  = 500
	noAnswerMessage  = "I couldn't find an answer to that question in the document."
)

// ChunkResult is the outcome of answering against one chunk. Exactly one of
// Candidate and Err is set.
type ChunkResult struct {
	Index     int
	Candidate *Candidate
	Err       error
}

type AggregateResult struct {
	Success    bool
	Answer     string
	AnswerType string
	// ChunksProcessed counts chunks that produced a candidate.
	ChunksProcessed int
	Confidence      float64
	TokensUsed      int
	Results         []ChunkResult
}

// Aggregator answers a question over a chunked document and merges the
// per-chunk candidates into one answer.
type Aggregator struct {
	answerer  Answerer
	maxChunks int
	logger    *zap.Logger
}

func NewAggregator(answerer Answerer, maxChunks int, logger *zap.Logger) *Aggregator {
	if maxChunks <= 0 {
		maxChunks = DefaultMaxChunks
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{answerer: answerer, maxChunks: maxChunks, logger: logger}
}

// Aggregate never fails; when no chunk yields a candidate the result has
// Success false and a fallback answer.
func (a *Aggregator) Aggregate(ctx context.Context, chunks []string, question string, previous []string) AggregateResult {
	if len(chunks) > a.maxChunks {
		chunks = chunks[:a.maxChunks]
	}
	results := a.answerChunks(ctx, chunks, question, previous)

	var (
		candidates []ChunkResult
		tokens     int
	)
	for _, r := range results {
		if r.Err != nil {
			a.logger.Warn("chunk answer failed", zap.Int("chunk", r.Index), zap.Error(r.Err))
			continue
		}
		candidates = append(candidates, r)
		tokens += r.Candidate.TokensUsed
	}

	out := AggregateResult{
		ChunksProcessed: len(candidates),
		TokensUsed:      tokens,
		Results:         results,
	}
	switch len(candidates) {
	case 0:
		out.Answer = noAnswerMessage
		return out
	case 1:
		out.Success = true
		out.Answer = candidates[0].Candidate.Answer
		out.AnswerType = model.AnswerTypeDirect
		out.Confidence = candidates[0].Candidate.Confidence
		return out
	}

	findings := formatFindings(candidates)
	out.Success = true
	out.AnswerType = model.AnswerTypeCombined

	merged, err := a.answerer.Summarize(ctx, findings, question)
	if err != nil {
		a.logger.Warn("summarizing chunk answers failed, returning raw findings", zap.Error(err))
		out.Answer = findings
		out.Confidence = meanConfidence(candidates)
		return out
	}
	out.Answer = merged.Answer
	out.Confidence = merged.Confidence
	out.TokensUsed += merged.TokensUsed
	return out
}

func (a *Aggregator) answerChunks(ctx context.Context, chunks []string, question string, previous []string) []ChunkResult {
	results := make([]ChunkResult, len(chunks))
	var wg sync.WaitGroup
	for i, chunk := range chunks {
		wg.Add(1)
		go func(i int, chunk string) {
			defer wg.Done()
			results[i].Index = i
			cand, err := a.answerer.Answer(ctx, chunk, question, previous)
			if err != nil {
				results[i].Err = err
				return
			}
			results[i].Candidate = &cand
		}(i, chunk)
	}
	wg.Wait()
	return results
}

func formatFindings(candidates []ChunkResult) string {
	parts := make([]string, 0, len(candidates))
	for _, c := range candidates {
		parts = append(parts, fmt.Sprintf("[Section %d]: %s", c.Index+1, truncateRunes(c.Candidate.Answer, maxFindingRunes)))
	}
	return strings.Join(parts, "\n\n")
}

func meanConfidence(candidates []ChunkResult) float64 {
	var sum float64
	for _, c := range candidates {
		sum += c.Candidate.Confidence
	}
	return sum / float64(len(candidates))
}

func truncateRunes(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	n := 0
	for i := range s {
		if n == limit {
			return s[:i]
		}
		n++
	}
	return s
}
