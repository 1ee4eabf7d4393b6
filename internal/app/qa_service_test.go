package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docrelay/internal/ai"
	"docrelay/internal/cache"
	"docrelay/internal/model"
	"docrelay/internal/pkg/docextract"
	"docrelay/internal/repository"
)

func largeDocument(paragraphs, wordsPer int) string {
	parts := make([]string, paragraphs)
	for i := range parts {
		parts[i] = fmt.Sprintf("p%d ", i) + strings.TrimSpace(strings.Repeat("lorem ", wordsPer-1))
	}
	return strings.Join(parts, "\n\n")
}

func newTestQAService(ext *fakeExtractor, fa *fakeAnswerer, opts QAOptions) (*QAService, *cache.MemoryResponseCache, *repository.MemoryQuestionRepository) {
	c := cache.NewMemoryResponseCache(time.Hour)
	questions := repository.NewMemoryQuestionRepository()
	return NewQAService(ext, fa, c, questions, opts, nil), c, questions
}

func TestProcess_LargeDocumentUsesChunkedAggregation(t *testing.T) {
	text := largeDocument(150, 100)
	ext := &fakeExtractor{ext: textExtraction(text)}
	require.Equal(t, 15000, ext.ext.WordCount)
	fa := &fakeAnswerer{}
	svc, _, _ := newTestQAService(ext, fa, QAOptions{})

	out, hit, err := svc.Process(context.Background(), ProcessInput{
		DocumentID: "doc-1",
		Question:   "What is the conclusion?",
		FileURL:    "https://example.com/report.pdf",
	})
	require.NoError(t, err)
	assert.False(t, hit)

	assert.True(t, out.Success)
	assert.Contains(t, []string{model.AnswerTypeDirect, model.AnswerTypeCombined}, out.AnswerType)
	assert.Equal(t, model.AnswerTypeCombined, out.AnswerType)
	assert.Equal(t, 5, fa.calls())
	assert.Equal(t, 5, out.ChunksProcessed)
	assert.Equal(t, 15000, out.WordCount)
	assert.Equal(t, "merged answer", out.Answer)
	for _, passage := range fa.passages {
		assert.Less(t, len(passage), 4000+200+2+600)
	}
}

func TestProcess_UnbrokenLargeDocumentIsCappedPerChunk(t *testing.T) {
	text := strings.Repeat("lorem ", 15000)
	ext := &fakeExtractor{ext: textExtraction(text)}
	client := &fakeChatClient{content: "ok"}
	answerer := NewLLMAnswerer(client, ai.ChatConfig{Model: "m"})
	svc := NewQAService(ext, answerer, cache.NewMemoryResponseCache(time.Hour), nil, QAOptions{}, nil)

	out, _, err := svc.Process(context.Background(), ProcessInput{DocumentID: "d", Question: "q?", FileURL: "https://x/a.txt"})
	require.NoError(t, err)

	assert.True(t, out.Success)
	assert.Equal(t, model.AnswerTypeDirect, out.AnswerType)
	assert.Equal(t, 1, out.ChunksProcessed)
	require.Len(t, client.messages, 1)
	user := client.messages[0][1].Content
	assert.Contains(t, user, strings.Repeat("lorem ", 100))
	assert.Less(t, utf8.RuneCountInString(user), 12000+200)
}

func TestProcess_ExpiredAnswersAreEvictedOnWrite(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	c := cache.NewMemoryResponseCacheWithClock(time.Hour, func() time.Time { return now })
	ext := &fakeExtractor{ext: textExtraction("short document text")}
	svc := NewQAService(ext, &fakeAnswerer{}, c, nil, QAOptions{}, nil)
	ctx := context.Background()

	_, _, err := svc.Process(ctx, ProcessInput{DocumentID: "d1", Question: "q?", FileURL: "https://x/a.txt"})
	require.NoError(t, err)
	assert.Equal(t, 1, svc.CachedAnswers(ctx))

	now = now.Add(2 * time.Hour)
	_, _, err = svc.Process(ctx, ProcessInput{DocumentID: "d2", Question: "q?", FileURL: "https://x/a.txt"})
	require.NoError(t, err)
	assert.Equal(t, 1, svc.CachedAnswers(ctx))
}

func TestProcess_SmallDocumentIsAnsweredDirectly(t *testing.T) {
	text := "The conclusion is that revenue grew. " + strings.Repeat("filler ", 20)
	ext := &fakeExtractor{ext: textExtraction(text)}
	fa := &fakeAnswerer{tokensPerCall: 12}
	svc, _, _ := newTestQAService(ext, fa, QAOptions{MaxContextChars: 20})

	out, _, err := svc.Process(context.Background(), ProcessInput{DocumentID: "d", Question: "q?", FileURL: "https://x/a.txt"})
	require.NoError(t, err)

	assert.True(t, out.Success)
	assert.Equal(t, model.AnswerTypeDirect, out.AnswerType)
	assert.Equal(t, 1, out.ChunksProcessed)
	assert.Equal(t, 12, out.TokensUsed)
	require.Len(t, fa.passages, 1)
	assert.Equal(t, text[:20], fa.passages[0])
}

func TestProcess_SecondIdenticalQuestionIsServedFromCache(t *testing.T) {
	ext := &fakeExtractor{ext: textExtraction("short document text")}
	fa := &fakeAnswerer{}
	svc, c, _ := newTestQAService(ext, fa, QAOptions{})
	ctx := context.Background()
	in := ProcessInput{DocumentID: "doc-1", Question: "What is the conclusion?", FileURL: "https://x/a.txt"}

	first, hit, err := svc.Process(ctx, in)
	require.NoError(t, err)
	require.False(t, hit)
	require.True(t, first.Success)
	assert.Equal(t, 1, c.Len(ctx))

	in.Question = "  what is THE conclusion? "
	second, hit, err := svc.Process(ctx, in)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, *first, *second)
	assert.True(t, first.ComputedAt.Equal(second.ComputedAt))
	assert.Equal(t, 1, fa.calls())
	assert.Equal(t, 1, ext.calls)
}

func TestProcess_ExtractionFailureIsNotCached(t *testing.T) {
	ext := &fakeExtractor{err: fmt.Errorf("%w: status 404", docextract.ErrFetch)}
	fa := &fakeAnswerer{}
	svc, c, questions := newTestQAService(ext, fa, QAOptions{})
	ctx := context.Background()
	in := ProcessInput{DocumentID: "doc-1", Question: "q?", FileURL: "https://x/missing.pdf"}

	out, _, err := svc.Process(ctx, in)
	require.NoError(t, err)
	assert.False(t, out.Success)
	assert.Contains(t, out.Error, "status 404")
	assert.Zero(t, c.Len(ctx))

	_, _, err = svc.Process(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, 2, ext.calls)
	assert.Zero(t, fa.calls())

	recorded, _ := questions.ListRecent("doc-1", 10)
	assert.Empty(t, recorded)
}

func TestProcess_InferenceFailureIsPayload(t *testing.T) {
	ext := &fakeExtractor{ext: textExtraction("FAIL every time")}
	svc, c, _ := newTestQAService(ext, &fakeAnswerer{}, QAOptions{})

	out, _, err := svc.Process(context.Background(), ProcessInput{DocumentID: "d", Question: "q?", FileURL: "https://x/a.txt"})
	require.NoError(t, err)
	assert.False(t, out.Success)
	assert.Contains(t, out.Error, errFakeInference.Error())
	assert.Zero(t, c.Len(context.Background()))
}

func TestProcess_Validation(t *testing.T) {
	svc, _, _ := newTestQAService(&fakeExtractor{}, &fakeAnswerer{}, QAOptions{})
	cases := map[string]ProcessInput{
		"missing document": {Question: "q", FileURL: "u"},
		"empty question":   {DocumentID: "d", Question: "   ", FileURL: "u"},
		"long question":    {DocumentID: "d", Question: strings.Repeat("é", 1001), FileURL: "u"},
		"missing file url": {DocumentID: "d", Question: "q"},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, _, err := svc.Process(context.Background(), in)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}

	_, _, err := svc.Process(context.Background(), ProcessInput{DocumentID: "d", Question: strings.Repeat("é", 1001), FileURL: "u"})
	assert.Contains(t, err.Error(), "1000")
}

func TestProcess_RecordsHistoryAndUsesItAsPreviousContext(t *testing.T) {
	ext := &fakeExtractor{ext: textExtraction("document body")}
	fa := &fakeAnswerer{}
	svc, _, _ := newTestQAService(ext, fa, QAOptions{})
	ctx := context.Background()

	for _, q := range []string{"first?", "second?", "third?", "fourth?"} {
		_, _, err := svc.Process(ctx, ProcessInput{DocumentID: "doc-1", Question: q, FileURL: "https://x/a.txt"})
		require.NoError(t, err)
	}
	assert.Nil(t, fa.previousSeen[0])
	assert.Equal(t, []string{"first?", "second?", "third?"}, fa.previousSeen[3])

	history, err := svc.History("doc-1", 0)
	require.NoError(t, err)
	require.Len(t, history, 4)
	assert.Equal(t, "fourth?", history[3].Question)
	assert.Equal(t, model.AnswerTypeDirect, history[3].AnswerType)

	// explicit previous context wins
	_, _, err = svc.Process(ctx, ProcessInput{DocumentID: "doc-1", Question: "fifth?", FileURL: "u", PreviousContext: []string{"given"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"given"}, fa.previousSeen[4])
}

func TestExtractLarge(t *testing.T) {
	text := strings.Repeat("abcde ", 20)
	ext := &fakeExtractor{ext: textExtraction(text)}
	svc, _, _ := newTestQAService(ext, &fakeAnswerer{}, QAOptions{ExtractLimit: 50})

	out, err := svc.ExtractLarge(context.Background(), "doc-1", "https://x/a.txt")
	require.NoError(t, err)
	assert.True(t, out.Success)
	assert.True(t, out.Truncated)
	assert.Len(t, out.ExtractedText, 50)
	assert.Equal(t, len(text), out.TextLength)
	assert.Equal(t, 20, out.WordCount)

	_, err = svc.ExtractLarge(context.Background(), "", "https://x/a.txt")
	assert.ErrorIs(t, err, ErrInvalidInput)

	ext.err = errors.New("timeout")
	out, err = svc.ExtractLarge(context.Background(), "doc-1", "https://x/a.txt")
	require.NoError(t, err)
	assert.False(t, out.Success)
	assert.Contains(t, out.Error, "timeout")
}

func TestSummarize(t *testing.T) {
	ext := &fakeExtractor{ext: textExtraction("too short")}
	fa := &fakeAnswerer{}
	svc, _, _ := newTestQAService(ext, fa, QAOptions{})

	out, err := svc.Summarize(context.Background(), "https://x/a.txt")
	require.NoError(t, err)
	assert.False(t, out.Success)
	assert.Equal(t, "document text too short to summarize", out.Error)
	assert.Zero(t, fa.calls())

	ext.ext = textExtraction("Quarterly report\n" + strings.Repeat("word ", 60))
	out, err = svc.Summarize(context.Background(), "https://x/a.txt")
	require.NoError(t, err)
	assert.True(t, out.Success)
	assert.Equal(t, "answer from Quarterly report", out.Summary)
	assert.Equal(t, 62, out.WordCount)

	_, err = svc.Summarize(context.Background(), " ")
	assert.ErrorIs(t, err, ErrInvalidInput)
}
