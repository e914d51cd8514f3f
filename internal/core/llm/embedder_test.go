package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbedderHashFallbackDeterministic(t *testing.T) {
	e := NewEmbedder("", "embedding-001", 1536)

	a, err := e.Generate(context.Background(), "el mismo texto")
	require.NoError(t, err)
	b, err := e.Generate(context.Background(), "el mismo texto")
	require.NoError(t, err)

	assert.Len(t, a, 1536)
	assert.Equal(t, a, b)
}

func TestEmbedderDistinctInputsDiffer(t *testing.T) {
	e := NewEmbedder("", "embedding-001", 256)

	a, err := e.Generate(context.Background(), "primer texto")
	require.NoError(t, err)
	b, err := e.Generate(context.Background(), "segundo texto")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestEmbedderEmptyInputZeroVector(t *testing.T) {
	e := NewEmbedder("", "embedding-001", 64)

	vec, err := e.Generate(context.Background(), "   ")
	require.NoError(t, err)
	require.Len(t, vec, 64)
	for _, v := range vec {
		assert.Zero(t, v)
	}
}

func TestEmbedderValuesBounded(t *testing.T) {
	e := NewEmbedder("", "embedding-001", 512)

	vec, err := e.Generate(context.Background(), "hola mundo")
	require.NoError(t, err)
	for _, v := range vec {
		assert.GreaterOrEqual(t, v, float32(-1))
		assert.Less(t, v, float32(1))
	}
}

func TestNormalizeDims(t *testing.T) {
	long := normalizeDims([]float32{1, 2, 3, 4}, 2)
	assert.Equal(t, []float32{1, 2}, long)

	short := normalizeDims([]float32{1, 2}, 4)
	assert.Equal(t, []float32{1, 2, 0, 0}, short)
}
