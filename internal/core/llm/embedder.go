package llm

import (
	"context"
	"crypto/sha256"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/multiversa/cortex/internal/core"
)

const maxEmbedInput = 8000

// Embedder converts text to a fixed-width vector. With a Gemini key it calls
// the embedding API and normalizes the result to the target width; without
// one, or on any API failure, it falls back to a deterministic content-hash
// expansion so semantic search always has a vector to compare.
type Embedder struct {
	apiKey string
	model  string
	dims   int
}

func NewEmbedder(apiKey, model string, dims int) *Embedder {
	if model == "" {
		model = "embedding-001"
	}
	if dims <= 0 {
		dims = 1536
	}
	return &Embedder{apiKey: apiKey, model: model, dims: dims}
}

func (e *Embedder) Generate(ctx context.Context, text string) ([]float32, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return make([]float32, e.dims), nil
	}
	if len(text) > maxEmbedInput {
		text = text[:maxEmbedInput]
	}

	if e.apiKey != "" {
		if vec, err := e.embedRemote(ctx, text); err == nil {
			return normalizeDims(vec, e.dims), nil
		}
	}

	return hashEmbedding(text, e.dims), nil
}

func (e *Embedder) embedRemote(ctx context.Context, text string) ([]float32, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(e.apiKey))
	if err != nil {
		return nil, err
	}
	defer client.Close()

	em := client.EmbeddingModel(e.model)
	em.TaskType = genai.TaskTypeRetrievalDocument
	resp, err := em.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, err
	}
	return resp.Embedding.Values, nil
}

// hashEmbedding expands a sha256 digest of the text into the target width,
// mapping each byte into [-1, 1). Identical text yields identical vectors.
func hashEmbedding(text string, dims int) []float32 {
	digest := sha256.Sum256([]byte(text))
	out := make([]float32, dims)
	for i := range out {
		out[i] = (float32(digest[i%len(digest)]) - 128) / 128
	}
	return out
}

func normalizeDims(vec []float32, dims int) []float32 {
	if len(vec) >= dims {
		return vec[:dims]
	}
	out := make([]float32, dims)
	copy(out, vec)
	return out
}

var _ core.EmbeddingProvider = (*Embedder)(nil)
