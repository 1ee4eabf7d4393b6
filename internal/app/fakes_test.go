package app

import (
	"context"
	"errors"
	"strings"
	"sync"

	"docrelay/internal/ai"
	"docrelay/internal/model"
	"docrelay/internal/pkg/docextract"
)

var errFakeInference = errors.New("fake inference failure")

// fakeAnswerer fails any passage containing "FAIL" and echoes the first line
// of the passage otherwise.
type fakeAnswerer struct {
	mu            sync.Mutex
	answerCalls   int
	summarizeErr  error
	findings      []string
	passages      []string
	previousSeen  [][]string
	confidence    float64
	tokensPerCall int
}

func (f *fakeAnswerer) Answer(_ context.Context, passage, _ string, previous []string) (Candidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answerCalls++
	f.passages = append(f.passages, passage)
	f.previousSeen = append(f.previousSeen, previous)
	if strings.Contains(passage, "FAIL") {
		return Candidate{}, errFakeInference
	}
	first, _, _ := strings.Cut(strings.TrimSpace(passage), "\n")
	conf := f.confidence
	if conf == 0 {
		conf = 0.8
	}
	return Candidate{Answer: "answer from " + first, Confidence: conf, TokensUsed: f.tokensPerCall}, nil
}

func (f *fakeAnswerer) Summarize(_ context.Context, findings, _ string) (Candidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.findings = append(f.findings, findings)
	if f.summarizeErr != nil {
		return Candidate{}, f.summarizeErr
	}
	return Candidate{Answer: "merged answer", Confidence: 0.8, TokensUsed: f.tokensPerCall}, nil
}

func (f *fakeAnswerer) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.answerCalls
}

type fakeExtractor struct {
	mu    sync.Mutex
	calls int
	ext   *docextract.Extraction
	err   error
}

func (f *fakeExtractor) Extract(_ context.Context, _, _ string) (*docextract.Extraction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.ext, nil
}

func textExtraction(text string) *docextract.Extraction {
	return &docextract.Extraction{
		Text:      text,
		PageCount: 1,
		WordCount: docextract.CountWords(text),
		Format:    docextract.FormatPlain,
	}
}

type fakeChatClient struct {
	mu       sync.Mutex
	cfgs     []ai.ChatConfig
	messages [][]ai.ChatMessage
	content  string
	err      error
}

func (f *fakeChatClient) Complete(_ context.Context, cfg ai.ChatConfig, messages []ai.ChatMessage) (*ai.Completion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cfgs = append(f.cfgs, cfg)
	f.messages = append(f.messages, messages)
	if f.err != nil {
		return nil, f.err
	}
	return &ai.Completion{Content: f.content, TokensUsed: 7}, nil
}

func (f *fakeChatClient) StreamComplete(ctx context.Context, cfg ai.ChatConfig, messages []ai.ChatMessage, onChunk func(string) error) (string, error) {
	out, err := f.Complete(ctx, cfg, messages)
	if err != nil {
		return "", err
	}
	for _, word := range strings.SplitAfter(out.Content, " ") {
		if err := onChunk(word); err != nil {
			return "", err
		}
	}
	return out.Content, nil
}

type fakeJobStore struct {
	mu        sync.Mutex
	jobs      map[string]model.DocumentJob
	updates   []string
	updateErr error
}

func newFakeJobStore() *fakeJobStore {
	return &fakeJobStore{jobs: make(map[string]model.DocumentJob)}
}

func (s *fakeJobStore) Create(job *model.DocumentJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = *job
	return nil
}

func (s *fakeJobStore) GetByID(id string) (*model.DocumentJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, nil
	}
	return &job, nil
}

func (s *fakeJobStore) Update(job *model.DocumentJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updateErr != nil {
		return s.updateErr
	}
	s.jobs[job.ID] = *job
	s.updates = append(s.updates, job.Status)
	return nil
}

type fakePublisher struct {
	mu   sync.Mutex
	msgs []model.DocumentJobMessage
	err  error
}

func (p *fakePublisher) Publish(_ context.Context, msg model.DocumentJobMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.msgs = append(p.msgs, msg)
	return nil
}
