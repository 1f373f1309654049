package embedding

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"google.golang.org/api/generativelanguage/v1beta"
	"google.golang.org/api/option"
)

const (
	// DefaultGeminiModel is the model used when none is configured.
	DefaultGeminiModel = "models/text-embedding-004"
	geminiTaskType     = "RETRIEVAL_DOCUMENT"
	geminiDimensions   = 768
)

// GeminiEmbedder embeds text with the Generative Language API batchEmbedContents method.
type GeminiEmbedder struct {
	svc        *generativelanguage.Service
	model      string
	outputDims int
	timeout    time.Duration
	dims       atomic.Int64
}

// GeminiConfig configures a GeminiEmbedder.
type GeminiConfig struct {
	APIKey     string
	Model      string
	BaseURL    string
	Dimensions int
	Timeout    time.Duration
}

// NewGeminiEmbedder creates a client for the given model. extra options are appended
// after the ones derived from cfg.
func NewGeminiEmbedder(ctx context.Context, cfg GeminiConfig, extra ...option.ClientOption) (*GeminiEmbedder, error) {
	opts := []option.ClientOption{}
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	} else if len(extra) == 0 {
		return nil, ErrMissingAPIKey
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithEndpoint(cfg.BaseURL))
	}
	opts = append(opts, extra...)

	svc, err := generativelanguage.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create generative language service: %w", err)
	}
	model := cfg.Model
	if model == "" {
		model = DefaultGeminiModel
	}
	e := &GeminiEmbedder{svc: svc, model: model, outputDims: cfg.Dimensions, timeout: cfg.Timeout}
	if cfg.Dimensions > 0 {
		e.dims.Store(int64(cfg.Dimensions))
	}
	return e, nil
}

// Embed returns the embedding of a single text.
func (e *GeminiEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return embedOne(ctx, e, text)
}

// EmbedBatch embeds texts in one request.
func (e *GeminiEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	reqs := make([]*generativelanguage.EmbedContentRequest, len(texts))
	for i, text := range texts {
		reqs[i] = &generativelanguage.EmbedContentRequest{
			Model:    e.model,
			TaskType: geminiTaskType,
			Content: &generativelanguage.Content{
				Parts: []*generativelanguage.Part{{Text: text}},
			},
			OutputDimensionality: int64(e.outputDims),
		}
	}
	resp, err := e.svc.Models.BatchEmbedContents(e.model, &generativelanguage.BatchEmbedContentsRequest{
		Requests: reqs,
	}).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("gemini batch embed: %w", err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("%w: got %d for %d texts", ErrCountMismatch, len(resp.Embeddings), len(texts))
	}
	out := make([][]float32, len(texts))
	for i, emb := range resp.Embeddings {
		if emb == nil || len(emb.Values) == 0 {
			return nil, fmt.Errorf("%w: text %d", ErrEmptyResponse, i)
		}
		out[i] = toFloat32(emb.Values)
	}
	e.dims.Store(int64(len(out[0])))
	return out, nil
}

// Dimensions returns the configured dimension, or the last observed one.
func (e *GeminiEmbedder) Dimensions() int {
	if d := e.dims.Load(); d > 0 {
		return int(d)
	}
	return geminiDimensions
}

// Close is a no-op; the underlying HTTP client is shared.
func (e *GeminiEmbedder) Close() error {
	return nil
}
