package model

import "time"

type DocumentQuestion struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	DocumentID string    `gorm:"size:128;not null;index" json:"document_id"`
	Question   string    `gorm:"type:text;not null" json:"question"`
	Answer     string    `gorm:"type:text" json:"answer"`
	AnswerType string    `gorm:"size:16" json:"answer_type"`
	Confidence float64   `json:"confidence"`
	CreatedAt  time.Time `gorm:"index" json:"asked_at"`
}
