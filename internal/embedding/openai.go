package embedding

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// DefaultOpenAIModel is the model used when none is configured.
const DefaultOpenAIModel = "text-embedding-3-small"

// OpenAIEmbedder embeds text with an OpenAI-compatible embeddings endpoint.
type OpenAIEmbedder struct {
	client     openai.Client
	model      string
	outputDims int
	timeout    time.Duration
	dims       atomic.Int64
}

// OpenAIConfig configures an OpenAIEmbedder.
type OpenAIConfig struct {
	APIKey     string
	Model      string
	BaseURL    string
	Dimensions int
	Timeout    time.Duration
}

// NewOpenAIEmbedder creates a client. Retries are left to the caller, so the SDK's own retry loop is disabled.
func NewOpenAIEmbedder(cfg OpenAIConfig, extra ...option.RequestOption) (*OpenAIEmbedder, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	opts = append(opts, extra...)

	model := cfg.Model
	if model == "" {
		model = DefaultOpenAIModel
	}
	e := &OpenAIEmbedder{
		client:     openai.NewClient(opts...),
		model:      model,
		outputDims: cfg.Dimensions,
		timeout:    cfg.Timeout,
	}
	if cfg.Dimensions > 0 {
		e.dims.Store(int64(cfg.Dimensions))
	}
	return e, nil
}

// Embed returns the embedding of a single text.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return embedOne(ctx, e, text)
}

// EmbedBatch embeds texts in one request. Results are placed by their returned index.
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	params := openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
		Model: openai.EmbeddingModel(e.model),
	}
	if e.outputDims > 0 {
		params.Dimensions = openai.Int(int64(e.outputDims))
	}
	resp, err := e.client.Embeddings.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai embeddings: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("%w: got %d for %d texts", ErrCountMismatch, len(resp.Data), len(texts))
	}
	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || int(d.Index) >= len(out) {
			return nil, fmt.Errorf("openai embeddings: index %d out of range", d.Index)
		}
		out[d.Index] = toFloat32(d.Embedding)
	}
	for i, v := range out {
		if len(v) == 0 {
			return nil, fmt.Errorf("%w: text %d", ErrEmptyResponse, i)
		}
	}
	e.dims.Store(int64(len(out[0])))
	return out, nil
}

// Dimensions returns the configured dimension, or the last observed one (0 before the first call).
func (e *OpenAIEmbedder) Dimensions() int {
	return int(e.dims.Load())
}

// Close is a no-op.
func (e *OpenAIEmbedder) Close() error {
	return nil
}
