package embedding

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/raghavvag/lucidfiles/internal/apperror"
)

// OpenAIEmbedder calls the OpenAI embeddings API. Batches are sent as a
// single request, matching the API's native support for multiple inputs.
type OpenAIEmbedder struct {
	client     *openai.Client
	model      openai.EmbeddingModel
	dimensions int
}

// NewOpenAIEmbedder builds an embedder against the given model. dimensions
// must match what the model actually returns; mismatches surface as
// ConfigurationFailure at Embed time rather than being silently padded or
// truncated.
func NewOpenAIEmbedder(apiKey string, model string, dimensions int) *OpenAIEmbedder {
	m := openai.EmbeddingModel(model)
	if m == "" {
		m = openai.SmallEmbedding3
	}
	return &OpenAIEmbedder{
		client:     openai.NewClient(apiKey),
		model:      m,
		dimensions: dimensions,
	}
}

func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	out, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: e.model,
	})
	if err != nil {
		return nil, apperror.New(apperror.KindEmbeddingFailure, fmt.Errorf("openai embeddings: %w", err))
	}
	if len(resp.Data) != len(texts) {
		return nil, apperror.Newf(apperror.KindEmbeddingFailure, "openai returned %d embeddings for %d inputs", len(resp.Data), len(texts))
	}

	out := make([][]float32, len(texts))
	for i, d := range resp.Data {
		if e.dimensions > 0 && len(d.Embedding) != e.dimensions {
			return nil, apperror.Newf(apperror.KindConfigurationFailure,
				"openai model %s returned dimension %d, configured dimension is %d", e.model, len(d.Embedding), e.dimensions)
		}
		NormalizeL2Slice(d.Embedding)
		out[i] = d.Embedding
	}
	return out, nil
}

func (e *OpenAIEmbedder) Dimensions() int { return e.dimensions }

func (e *OpenAIEmbedder) Close() error { return nil }
