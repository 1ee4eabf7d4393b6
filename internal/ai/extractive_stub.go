//go:build !cgo

package ai

import (
	"context"
	"errors"
)

var errExtractiveNoCGO = errors.New("extractive QA requires CGO; build with CGO_ENABLED=1 and onnxruntime")

// ExtractiveQA stub when built without CGO (see extractive_onnx.go).
type ExtractiveQA struct{}

func NewExtractiveQA(_ ExtractiveConfig) (*ExtractiveQA, error) {
	return nil, errExtractiveNoCGO
}

func (q *ExtractiveQA) Answer(_ context.Context, _, _ string) (*Span, error) {
	return nil, errExtractiveNoCGO
}

func (q *ExtractiveQA) Close() error { return nil }
