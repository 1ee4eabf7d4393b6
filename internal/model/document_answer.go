package model

import "time"

const (
	AnswerTypeDirect   = "direct"
	AnswerTypeCombined = "combined"
)

// DocumentAnswer is the payload returned for a document question. Cached
// copies are served unchanged, including ComputedAt and ProcessingTime.
type DocumentAnswer struct {
	Success         bool      `json:"success"`
	DocumentID      string    `json:"document_id"`
	Question        string    `json:"question"`
	Answer          string    `json:"answer"`
	AnswerType      string    `json:"answer_type,omitempty"`
	Confidence      float64   `json:"confidence"`
	ProcessingTime  float64   `json:"processing_time"`
	WordCount       int       `json:"word_count"`
	PageCount       int       `json:"page_count"`
	ChunksProcessed int       `json:"chunks_processed"`
	TokensUsed      int       `json:"tokens_used"`
	Error           string    `json:"error,omitempty"`
	ComputedAt      time.Time `json:"computed_at"`
}
