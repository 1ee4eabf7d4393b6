// Package cache stores document answers keyed by document and question.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"docrelay/internal/model"
)

const DefaultTTL = time.Hour

type ResponseCache interface {
	Get(ctx context.Context, key string) (*model.DocumentAnswer, bool, error)
	Put(ctx context.Context, key string, payload *model.DocumentAnswer) error
	// Sweep removes expired entries and returns how many were removed.
	Sweep(ctx context.Context) (int, error)
	Len(ctx context.Context) int
}

// Key derives a stable cache key for a question about a document. Questions
// differing only in case or whitespace share a key.
func Key(documentID, question string) string {
	sum := sha256.Sum256([]byte(documentID + "\x00" + normalizeQuestion(question)))
	return hex.EncodeToString(sum[:])
}

func normalizeQuestion(q string) string {
	return strings.Join(strings.Fields(strings.ToLower(q)), " ")
}
