package ai

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
)

const (
	maxQuestionTokens = 64
	maxWindows        = 16
)

var ErrNoAnswerSpan = errors.New("no answer span found")

type ExtractiveConfig struct {
	ModelPath       string
	VocabPath       string
	SharedLibPath   string
	MaxSeqLen       int
	MaxAnswerTokens int
}

// Span is the best-scoring answer found in a context. Score is the product of
// the start and end probabilities and lies in [0,1].
type Span struct {
	Text  string
	Score float64
}

// encoding is one [CLS] question [SEP] context [SEP] window padded to the
// model's sequence length.
type encoding struct {
	inputIDs      []int64
	attentionMask []int64
	tokenTypeIDs  []int64
	contextStart  int
	contextEnd    int
	owners        []int
}

type logitsRunner func(enc *encoding) (start, end []float32, err error)

func (w *WordPiece) encodeWindows(question, passage string, maxSeqLen int) ([]*encoding, []wordSpan, error) {
	qIDs, _, _ := w.tokenize(question)
	if len(qIDs) > maxQuestionTokens {
		qIDs = qIDs[:maxQuestionTokens]
	}
	cIDs, cOwners, words := w.tokenize(passage)
	if len(cIDs) == 0 {
		return nil, nil, ErrNoAnswerSpan
	}

	budget := maxSeqLen - len(qIDs) - 3
	if budget <= 0 {
		return nil, nil, fmt.Errorf("max sequence length %d too small for question", maxSeqLen)
	}

	var windows []*encoding
	for off := 0; off < len(cIDs) && len(windows) < maxWindows; off += budget {
		end := off + budget
		if end > len(cIDs) {
			end = len(cIDs)
		}
		enc := &encoding{
			inputIDs:      make([]int64, maxSeqLen),
			attentionMask: make([]int64, maxSeqLen),
			tokenTypeIDs:  make([]int64, maxSeqLen),
		}
		for i := range enc.inputIDs {
			enc.inputIDs[i] = w.pad
		}

		pos := 0
		put := func(id, typ int64) {
			enc.inputIDs[pos] = id
			enc.attentionMask[pos] = 1
			enc.tokenTypeIDs[pos] = typ
			pos++
		}
		put(w.cls, 0)
		for _, id := range qIDs {
			put(id, 0)
		}
		put(w.sep, 0)
		enc.contextStart = pos
		for _, id := range cIDs[off:end] {
			put(id, 1)
		}
		enc.contextEnd = pos
		put(w.sep, 1)
		enc.owners = cOwners[off:end]

		windows = append(windows, enc)
	}
	return windows, words, nil
}

// bestSpan returns the context positions s <= e < s+maxLen maximising
// p_start(s)*p_end(e), with probabilities normalised over the context.
func bestSpan(startLogits, endLogits []float32, from, to, maxLen int) (int, int, float64) {
	if to > len(startLogits) {
		to = len(startLogits)
	}
	if to > len(endLogits) {
		to = len(endLogits)
	}
	if from >= to {
		return -1, -1, 0
	}
	ps := softmax(startLogits[from:to])
	pe := softmax(endLogits[from:to])

	bestS, bestE, best := -1, -1, -1.0
	for s := range ps {
		for e := s; e < len(pe) && e < s+maxLen; e++ {
			if score := ps[s] * pe[e]; score > best {
				bestS, bestE, best = s, e, score
			}
		}
	}
	return from + bestS, from + bestE, best
}

func softmax(logits []float32) []float64 {
	out := make([]float64, len(logits))
	maxLogit := math.Inf(-1)
	for _, l := range logits {
		maxLogit = math.Max(maxLogit, float64(l))
	}
	var sum float64
	for i, l := range logits {
		out[i] = math.Exp(float64(l) - maxLogit)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

func answerSpan(ctx context.Context, tok *WordPiece, run logitsRunner, question, passage string, maxSeqLen, maxAnswerTokens int) (*Span, error) {
	windows, words, err := tok.encodeWindows(question, passage, maxSeqLen)
	if err != nil {
		return nil, err
	}

	var best *Span
	for _, enc := range windows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		startLogits, endLogits, err := run(enc)
		if err != nil {
			return nil, err
		}
		s, e, score := bestSpan(startLogits, endLogits, enc.contextStart, enc.contextEnd, maxAnswerTokens)
		if s < 0 {
			continue
		}
		if best != nil && score <= best.Score {
			continue
		}
		first := words[enc.owners[s-enc.contextStart]]
		last := words[enc.owners[e-enc.contextStart]]
		best = &Span{
			Text:  strings.TrimSpace(passage[first.start:last.end]),
			Score: score,
		}
	}
	if best == nil || best.Text == "" {
		return nil, ErrNoAnswerSpan
	}
	return best, nil
}
