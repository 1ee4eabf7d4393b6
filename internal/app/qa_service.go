package app

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"docrelay/internal/cache"
	"docrelay/internal/model"
	"docrelay/internal/pkg/chunker"
	"docrelay/internal/pkg/docextract"
)

const (
	previousQuestionCount = 3
	maxQuestionHistory    = 100
	minSummaryWords       = 50
	summaryQuestion       = "Write a concise summary of this document covering its purpose, main points and conclusions."
)

type DocumentExtractor interface {
	Extract(ctx context.Context, url, documentType string) (*docextract.Extraction, error)
}

type QuestionStore interface {
	Create(q *model.DocumentQuestion) error
	// ListRecent returns up to limit questions, oldest first.
	ListRecent(documentID string, limit int) ([]model.DocumentQuestion, error)
	Trim(documentID string, keep int) error
}

type QAOptions struct {
	ChunkSize        int
	ChunkOverlap     int
	MaxChunks        int
	LargeDocWords    int
	MaxContextChars  int
	MaxQuestionChars int
	ExtractLimit     int
}

func (o *QAOptions) setDefaults() {
	if o.ChunkSize <= 0 {
		o.ChunkSize = 4000
	}
	if o.ChunkOverlap < 0 {
		o.ChunkOverlap = 0
	}
	if o.MaxChunks <= 0 {
		o.MaxChunks = DefaultMaxChunks
	}
	if o.LargeDocWords <= 0 {
		o.LargeDocWords = 10000
	}
	if o.MaxContextChars <= 0 {
		o.MaxContextChars = 12000
	}
	if o.MaxQuestionChars <= 0 {
		o.MaxQuestionChars = 1000
	}
	if o.ExtractLimit <= 0 {
		o.ExtractLimit = 50000
	}
}

type ProcessInput struct {
	DocumentID      string
	Question        string
	FileURL         string
	DocumentType    string
	PreviousContext []string
}

type LargeExtraction struct {
	Success       bool   `json:"success"`
	DocumentID    string `json:"document_id"`
	ExtractedText string `json:"extracted_text"`
	PageCount     int    `json:"page_count"`
	WordCount     int    `json:"word_count"`
	TextLength    int    `json:"text_length"`
	Truncated     bool   `json:"truncated"`
	Error         string `json:"error,omitempty"`
}

type SummaryResult struct {
	Success        bool    `json:"success"`
	Summary        string  `json:"summary"`
	WordCount      int     `json:"word_count"`
	PageCount      int     `json:"page_count"`
	TokensUsed     int     `json:"tokens_used"`
	ProcessingTime float64 `json:"processing_time"`
	Error          string  `json:"error,omitempty"`
}

// QAService answers questions about documents fetched by URL.
type QAService struct {
	extractor  DocumentExtractor
	answerer   Answerer
	aggregator *Aggregator
	cache      cache.ResponseCache
	questions  QuestionStore
	opts       QAOptions
	logger     *zap.Logger
	now        func() time.Time
}

func NewQAService(
	extractor DocumentExtractor,
	answerer Answerer,
	responseCache cache.ResponseCache,
	questions QuestionStore,
	opts QAOptions,
	logger *zap.Logger,
) *QAService {
	opts.setDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QAService{
		extractor:  extractor,
		answerer:   answerer,
		aggregator: NewAggregator(answerer, opts.MaxChunks, logger),
		cache:      responseCache,
		questions:  questions,
		opts:       opts,
		logger:     logger,
		now:        time.Now,
	}
}

// Process answers a question about a document. The bool result reports a
// cache hit. Extraction and inference failures are returned as a payload with
// Success false; only invalid input yields an error.
func (s *QAService) Process(ctx context.Context, in ProcessInput) (*model.DocumentAnswer, bool, error) {
	start := s.now()

	documentID := strings.TrimSpace(in.DocumentID)
	question := strings.TrimSpace(in.Question)
	fileURL := strings.TrimSpace(in.FileURL)
	switch {
	case documentID == "":
		return nil, false, invalidInput("document id is required")
	case question == "":
		return nil, false, invalidInput("question is required")
	case utf8.RuneCountInString(question) > s.opts.MaxQuestionChars:
		return nil, false, invalidInput(tooLongMessage("question", s.opts.MaxQuestionChars))
	case fileURL == "":
		return nil, false, invalidInput("missing required field: file_url")
	}

	key := cache.Key(documentID, question)
	if s.cache != nil {
		cached, hit, err := s.cache.Get(ctx, key)
		if err != nil {
			s.logger.Warn("response cache lookup failed", zap.String("document_id", documentID), zap.Error(err))
		} else if hit {
			return cached, true, nil
		}
	}

	out := &model.DocumentAnswer{DocumentID: documentID, Question: question}
	finish := func() *model.DocumentAnswer {
		out.ComputedAt = s.now()
		out.ProcessingTime = out.ComputedAt.Sub(start).Seconds()
		return out
	}

	ext, err := s.extractor.Extract(ctx, fileURL, in.DocumentType)
	if err != nil {
		s.logger.Warn("document extraction failed", zap.String("document_id", documentID), zap.Error(err))
		out.Error = "text extraction failed: " + err.Error()
		return finish(), false, nil
	}
	out.WordCount = ext.WordCount
	out.PageCount = ext.PageCount
	if strings.TrimSpace(ext.Text) == "" {
		out.Error = "no text could be extracted from the document"
		return finish(), false, nil
	}

	previous := in.PreviousContext
	if len(previous) == 0 {
		previous = s.recentQuestions(documentID)
	}

	if ext.WordCount > s.opts.LargeDocWords {
		chunks := chunker.Split(ext.Text, s.opts.ChunkSize, s.opts.ChunkOverlap)
		// Split keeps oversized paragraphs whole; each call is capped like the direct path.
		for i := range chunks {
			chunks[i] = truncateRunes(chunks[i], s.opts.MaxContextChars)
		}
		res := s.aggregator.Aggregate(ctx, chunks, question, previous)
		out.Success = res.Success
		out.Answer = res.Answer
		out.AnswerType = res.AnswerType
		out.Confidence = res.Confidence
		out.TokensUsed = res.TokensUsed
		out.ChunksProcessed = res.ChunksProcessed
		if !res.Success {
			out.Error = "no section of the document produced an answer"
		}
		s.logger.Info("answered large document",
			zap.String("document_id", documentID),
			zap.Int("chunks", len(chunks)),
			zap.Int("chunks_processed", res.ChunksProcessed),
			zap.String("answer_type", res.AnswerType),
		)
	} else {
		cand, err := s.answerer.Answer(ctx, truncateRunes(ext.Text, s.opts.MaxContextChars), question, previous)
		if err != nil {
			s.logger.Warn("document answer failed", zap.String("document_id", documentID), zap.Error(err))
			out.Error = "AI processing failed: " + err.Error()
			return finish(), false, nil
		}
		out.Success = true
		out.Answer = cand.Answer
		out.AnswerType = model.AnswerTypeDirect
		out.Confidence = cand.Confidence
		out.TokensUsed = cand.TokensUsed
		out.ChunksProcessed = 1
	}

	finish()
	if out.Success {
		if s.cache != nil {
			if err := s.cache.Put(ctx, key, out); err != nil {
				s.logger.Warn("response cache store failed", zap.String("document_id", documentID), zap.Error(err))
			}
		}
		s.recordQuestion(out)
	}
	return out, false, nil
}

// ExtractLarge extracts a document and returns at most ExtractLimit
// characters of its text.
func (s *QAService) ExtractLarge(ctx context.Context, documentID, fileURL string) (*LargeExtraction, error) {
	documentID = strings.TrimSpace(documentID)
	fileURL = strings.TrimSpace(fileURL)
	if documentID == "" {
		return nil, invalidInput("missing required field: document_id")
	}
	if fileURL == "" {
		return nil, invalidInput("missing required field: file_url")
	}

	out := &LargeExtraction{DocumentID: documentID}
	ext, err := s.extractor.Extract(ctx, fileURL, "")
	if err != nil {
		s.logger.Warn("large document extraction failed", zap.String("document_id", documentID), zap.Error(err))
		out.Error = "text extraction failed: " + err.Error()
		return out, nil
	}
	fillPreview(out, ext, s.opts.ExtractLimit)
	return out, nil
}

func fillPreview(out *LargeExtraction, ext *docextract.Extraction, limit int) {
	out.Success = true
	out.PageCount = ext.PageCount
	out.WordCount = ext.WordCount
	out.TextLength = utf8.RuneCountInString(ext.Text)
	out.ExtractedText = truncateRunes(ext.Text, limit)
	out.Truncated = out.TextLength > limit
}

// Summarize extracts a document and asks the answerer for a summary.
func (s *QAService) Summarize(ctx context.Context, fileURL string) (*SummaryResult, error) {
	start := s.now()
	fileURL = strings.TrimSpace(fileURL)
	if fileURL == "" {
		return nil, invalidInput("missing required field: file_url")
	}

	out := &SummaryResult{}
	finish := func() *SummaryResult {
		out.ProcessingTime = s.now().Sub(start).Seconds()
		return out
	}

	ext, err := s.extractor.Extract(ctx, fileURL, "")
	if err != nil {
		out.Error = "text extraction failed: " + err.Error()
		return finish(), nil
	}
	out.WordCount = ext.WordCount
	out.PageCount = ext.PageCount
	if ext.WordCount < minSummaryWords {
		out.Error = "document text too short to summarize"
		return finish(), nil
	}

	cand, err := s.answerer.Answer(ctx, truncateRunes(ext.Text, s.opts.MaxContextChars), summaryQuestion, nil)
	if err != nil {
		s.logger.Warn("document summary failed", zap.Error(err))
		out.Error = "AI processing failed: " + err.Error()
		return finish(), nil
	}
	out.Success = true
	out.Summary = cand.Answer
	out.TokensUsed = cand.TokensUsed
	return finish(), nil
}

// History returns the most recent questions asked about a document, oldest
// first.
func (s *QAService) History(documentID string, limit int) ([]model.DocumentQuestion, error) {
	documentID = strings.TrimSpace(documentID)
	if documentID == "" {
		return nil, invalidInput("document id is required")
	}
	if limit <= 0 || limit > maxQuestionHistory {
		limit = maxQuestionHistory
	}
	if s.questions == nil {
		return []model.DocumentQuestion{}, nil
	}
	return s.questions.ListRecent(documentID, limit)
}

func (s *QAService) CachedAnswers(ctx context.Context) int {
	if s.cache == nil {
		return 0
	}
	return s.cache.Len(ctx)
}

func (s *QAService) recentQuestions(documentID string) []string {
	if s.questions == nil {
		return nil
	}
	recent, err := s.questions.ListRecent(documentID, previousQuestionCount)
	if err != nil {
		s.logger.Warn("load previous questions failed", zap.String("document_id", documentID), zap.Error(err))
		return nil
	}
	if len(recent) == 0 {
		return nil
	}
	out := make([]string, 0, len(recent))
	for _, q := range recent {
		out = append(out, q.Question)
	}
	return out
}

func (s *QAService) recordQuestion(a *model.DocumentAnswer) {
	if s.questions == nil {
		return
	}
	q := &model.DocumentQuestion{
		DocumentID: a.DocumentID,
		Question:   a.Question,
		Answer:     a.Answer,
		AnswerType: a.AnswerType,
		Confidence: a.Confidence,
		CreatedAt:  a.ComputedAt,
	}
	if err := s.questions.Create(q); err != nil {
		s.logger.Warn("record question failed", zap.String("document_id", a.DocumentID), zap.Error(err))
		return
	}
	if err := s.questions.Trim(a.DocumentID, maxQuestionHistory); err != nil {
		s.logger.Warn("trim question history failed", zap.String("document_id", a.DocumentID), zap.Error(err))
	}
}
