//go:build cgo

package ai

import (
	"context"
	"fmt"
	"strings"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// ExtractiveQA runs a SQuAD-style BERT model through ONNX Runtime. The model
// and shared library are loaded lazily on first use.
type ExtractiveQA struct {
	mu  sync.Mutex
	cfg ExtractiveConfig

	tokenizer     *WordPiece
	session       *ort.AdvancedSession
	inputIDs      *ort.Tensor[int64]
	attentionMask *ort.Tensor[int64]
	tokenTypeIDs  *ort.Tensor[int64]
	startLogits   *ort.Tensor[float32]
	endLogits     *ort.Tensor[float32]
	inited        bool
}

func NewExtractiveQA(cfg ExtractiveConfig) (*ExtractiveQA, error) {
	if cfg.MaxSeqLen <= 0 {
		cfg.MaxSeqLen = 384
	}
	if cfg.MaxAnswerTokens <= 0 {
		cfg.MaxAnswerTokens = 30
	}
	tok, err := LoadWordPiece(cfg.VocabPath)
	if err != nil {
		return nil, err
	}
	return &ExtractiveQA{cfg: cfg, tokenizer: tok}, nil
}

func (q *ExtractiveQA) initOnce() error {
	if q.inited {
		return nil
	}
	if q.cfg.SharedLibPath != "" {
		ort.SetSharedLibraryPath(q.cfg.SharedLibPath)
	}
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return fmt.Errorf("onnx init environment: %w", err)
		}
	}

	inputs, outputs, err := ort.GetInputOutputInfo(q.cfg.ModelPath)
	if err != nil {
		return fmt.Errorf("onnx get input/output info: %w", err)
	}

	shape := ort.NewShape(1, int64(q.cfg.MaxSeqLen))
	seqLen := q.cfg.MaxSeqLen
	if q.inputIDs, err = ort.NewTensor(shape, make([]int64, seqLen)); err != nil {
		return fmt.Errorf("onnx new input_ids tensor: %w", err)
	}
	if q.attentionMask, err = ort.NewTensor(shape, make([]int64, seqLen)); err != nil {
		q.destroy()
		return fmt.Errorf("onnx new attention_mask tensor: %w", err)
	}
	if q.tokenTypeIDs, err = ort.NewTensor(shape, make([]int64, seqLen)); err != nil {
		q.destroy()
		return fmt.Errorf("onnx new token_type_ids tensor: %w", err)
	}
	if q.startLogits, err = ort.NewTensor(shape, make([]float32, seqLen)); err != nil {
		q.destroy()
		return fmt.Errorf("onnx new start_logits tensor: %w", err)
	}
	if q.endLogits, err = ort.NewTensor(shape, make([]float32, seqLen)); err != nil {
		q.destroy()
		return fmt.Errorf("onnx new end_logits tensor: %w", err)
	}

	// Bind by name; DistilBERT exports have no token_type_ids input.
	var (
		inNames  []string
		inVals   []ort.Value
		outNames []string
		outVals  []ort.Value
	)
	for _, in := range inputs {
		switch {
		case strings.Contains(in.Name, "input_ids"):
			inVals = append(inVals, q.inputIDs)
		case strings.Contains(in.Name, "attention_mask"):
			inVals = append(inVals, q.attentionMask)
		case strings.Contains(in.Name, "token_type_ids"):
			inVals = append(inVals, q.tokenTypeIDs)
		default:
			q.destroy()
			return fmt.Errorf("onnx model has unexpected input %q", in.Name)
		}
		inNames = append(inNames, in.Name)
	}
	for _, out := range outputs {
		switch {
		case strings.Contains(out.Name, "start"):
			outVals = append(outVals, q.startLogits)
		case strings.Contains(out.Name, "end"):
			outVals = append(outVals, q.endLogits)
		default:
			continue
		}
		outNames = append(outNames, out.Name)
	}
	if len(outNames) != 2 {
		q.destroy()
		return fmt.Errorf("onnx model must expose start and end logits, got %d outputs", len(outNames))
	}

	session, err := ort.NewAdvancedSession(q.cfg.ModelPath, inNames, outNames, inVals, outVals, nil)
	if err != nil {
		q.destroy()
		return fmt.Errorf("onnx new session: %w", err)
	}
	q.session = session
	q.inited = true
	return nil
}

// Answer returns the best span in passage answering question.
func (q *ExtractiveQA) Answer(ctx context.Context, question, passage string) (*Span, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if err := q.initOnce(); err != nil {
		return nil, err
	}
	return answerSpan(ctx, q.tokenizer, q.run, question, passage, q.cfg.MaxSeqLen, q.cfg.MaxAnswerTokens)
}

func (q *ExtractiveQA) run(enc *encoding) ([]float32, []float32, error) {
	copy(q.inputIDs.GetData(), enc.inputIDs)
	copy(q.attentionMask.GetData(), enc.attentionMask)
	copy(q.tokenTypeIDs.GetData(), enc.tokenTypeIDs)
	if err := q.session.Run(); err != nil {
		return nil, nil, fmt.Errorf("onnx run: %w", err)
	}
	start := append([]float32(nil), q.startLogits.GetData()...)
	end := append([]float32(nil), q.endLogits.GetData()...)
	return start, end, nil
}

func (q *ExtractiveQA) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	var err error
	if q.session != nil {
		err = q.session.Destroy()
		q.session = nil
	}
	q.destroy()
	q.inited = false
	return err
}

func (q *ExtractiveQA) destroy() {
	for _, t := range []*ort.Tensor[int64]{q.inputIDs, q.attentionMask, q.tokenTypeIDs} {
		if t != nil {
			_ = t.Destroy()
		}
	}
	for _, t := range []*ort.Tensor[float32]{q.startLogits, q.endLogits} {
		if t != nil {
			_ = t.Destroy()
		}
	}
	q.inputIDs, q.attentionMask, q.tokenTypeIDs = nil, nil, nil
	q.startLogits, q.endLogits = nil, nil
}
