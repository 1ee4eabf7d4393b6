package model

import "time"

const (
	JobStatusPending    = "pending"
	JobStatusProcessing = "processing"
	JobStatusCompleted  = "completed"
	JobStatusFailed     = "failed"
)

// DocumentJob tracks an asynchronous large-document extraction.
type DocumentJob struct {
	ID         string    `gorm:"primaryKey;size:36" json:"job_id"`
	DocumentID string    `gorm:"size:128;not null;index" json:"document_id"`
	FileURL    string    `gorm:"type:text;not null" json:"file_url"`
	Status     string    `gorm:"size:16;not null;index" json:"status"`
	PageCount  int       `json:"page_count"`
	WordCount  int       `json:"word_count"`
	TextLength int       `json:"text_length"`
	Truncated  bool      `json:"truncated"`
	Preview    string    `gorm:"type:mediumtext" json:"extracted_text,omitempty"`
	Error      string    `gorm:"type:text" json:"error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// DocumentJobMessage is the queue payload for a DocumentJob.
type DocumentJobMessage struct {
	JobID      string `json:"job_id"`
	DocumentID string `json:"document_id"`
	FileURL    string `json:"file_url"`
}
