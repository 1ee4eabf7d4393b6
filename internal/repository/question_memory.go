package repository

import (
	"sync"
	"time"

	"docrelay/internal/model"
)

// MemoryQuestionRepository keeps question history in process memory when no
// database is configured.
type MemoryQuestionRepository struct {
	mu     sync.Mutex
	nextID uint
	byDoc  map[string][]model.DocumentQuestion
}

func NewMemoryQuestionRepository() *MemoryQuestionRepository {
	return &MemoryQuestionRepository{byDoc: make(map[string][]model.DocumentQuestion)}
}

func (r *MemoryQuestionRepository) Create(q *model.DocumentQuestion) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	q.ID = r.nextID
	if q.CreatedAt.IsZero() {
		q.CreatedAt = time.Now()
	}
	r.byDoc[q.DocumentID] = append(r.byDoc[q.DocumentID], *q)
	return nil
}

func (r *MemoryQuestionRepository) ListRecent(documentID string, limit int) ([]model.DocumentQuestion, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	list := r.byDoc[documentID]
	if limit > 0 && len(list) > limit {
		list = list[len(list)-limit:]
	}
	return append([]model.DocumentQuestion{}, list...), nil
}

func (r *MemoryQuestionRepository) Trim(documentID string, keep int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if list := r.byDoc[documentID]; len(list) > keep {
		r.byDoc[documentID] = append([]model.DocumentQuestion(nil), list[len(list)-keep:]...)
	}
	return nil
}
