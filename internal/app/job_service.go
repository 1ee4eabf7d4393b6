package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"docrelay/internal/model"
)

type JobStore interface {
	Create(job *model.DocumentJob) error
	// GetByID returns nil, nil when the job does not exist.
	GetByID(id string) (*model.DocumentJob, error)
	Update(job *model.DocumentJob) error
}

type JobPublisher interface {
	Publish(ctx context.Context, msg model.DocumentJobMessage) error
}

// JobService runs large-document extraction in the background. It is
// disabled when no store or publisher is configured.
type JobService struct {
	store     JobStore
	publisher JobPublisher
	extractor DocumentExtractor
	limit     int
	logger    *zap.Logger
}

func NewJobService(store JobStore, publisher JobPublisher, extractor DocumentExtractor, extractLimit int, logger *zap.Logger) *JobService {
	if extractLimit <= 0 {
		extractLimit = 50000
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &JobService{
		store:     store,
		publisher: publisher,
		extractor: extractor,
		limit:     extractLimit,
		logger:    logger,
	}
}

func (s *JobService) Enabled() bool {
	return s != nil && s.store != nil && s.publisher != nil
}

func (s *JobService) Submit(ctx context.Context, documentID, fileURL string) (*model.DocumentJob, error) {
	documentID = strings.TrimSpace(documentID)
	fileURL = strings.TrimSpace(fileURL)
	if documentID == "" {
		return nil, invalidInput("missing required field: document_id")
	}
	if fileURL == "" {
		return nil, invalidInput("missing required field: file_url")
	}
	if !s.Enabled() {
		return nil, ErrJobsDisabled
	}

	job := &model.DocumentJob{
		ID:         uuid.NewString(),
		DocumentID: documentID,
		FileURL:    fileURL,
		Status:     model.JobStatusPending,
	}
	if err := s.store.Create(job); err != nil {
		return nil, err
	}

	msg := model.DocumentJobMessage{JobID: job.ID, DocumentID: documentID, FileURL: fileURL}
	if err := s.publisher.Publish(ctx, msg); err != nil {
		job.Status = model.JobStatusFailed
		job.Error = "enqueue failed"
		if updateErr := s.store.Update(job); updateErr != nil {
			s.logger.Error("mark job failed", zap.String("job_id", job.ID), zap.Error(updateErr))
		}
		return nil, fmt.Errorf("enqueue document job failed: %w", err)
	}
	s.logger.Info("document job queued", zap.String("job_id", job.ID), zap.String("document_id", documentID))
	return job, nil
}

func (s *JobService) Get(id string) (*model.DocumentJob, error) {
	if !s.Enabled() {
		return nil, ErrJobsDisabled
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, invalidInput("job id is required")
	}
	job, err := s.store.GetByID(id)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, ErrJobNotFound
	}
	return job, nil
}

// Run processes one queued job. Extraction failures are recorded on the job
// and are not returned; a returned error means the job state could not be
// read or written.
func (s *JobService) Run(ctx context.Context, msg model.DocumentJobMessage) error {
	job, err := s.store.GetByID(msg.JobID)
	if err != nil {
		return err
	}
	if job == nil {
		return fmt.Errorf("%w: %s", ErrJobNotFound, msg.JobID)
	}
	if job.Status == model.JobStatusCompleted {
		return nil
	}

	job.Status = model.JobStatusProcessing
	job.Error = ""
	if err := s.store.Update(job); err != nil {
		return err
	}

	ext, err := s.extractor.Extract(ctx, job.FileURL, "")
	if err != nil {
		s.logger.Warn("document job extraction failed", zap.String("job_id", job.ID), zap.Error(err))
		job.Status = model.JobStatusFailed
		job.Error = "text extraction failed: " + err.Error()
		return s.store.Update(job)
	}

	var preview LargeExtraction
	fillPreview(&preview, ext, s.limit)
	job.Status = model.JobStatusCompleted
	job.PageCount = preview.PageCount
	job.WordCount = preview.WordCount
	job.TextLength = preview.TextLength
	job.Truncated = preview.Truncated
	job.Preview = preview.ExtractedText
	if err := s.store.Update(job); err != nil {
		return err
	}
	s.logger.Info("document job completed",
		zap.String("job_id", job.ID),
		zap.Int("pages", job.PageCount),
		zap.Int("words", job.WordCount),
	)
	return nil
}
