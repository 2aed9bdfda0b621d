// Package local provides a deterministic embedding service used when no
// remote provider is configured or reachable. A text embeds as the
// normalized sum of per-token hash vectors, so the same input always
// produces bitwise-identical output and texts sharing tokens land near
// each other. Not semantically meaningful beyond token overlap.
package local

import (
	"context"
	"encoding/binary"
	"hash/fnv"
	"math"
	"strings"
	"unicode"

	"github.com/custodia-labs/repovec/internal/core/ports/driven"
)

// Ensure EmbeddingService implements the interface.
var _ driven.EmbeddingService = (*EmbeddingService)(nil)

// DefaultDimensions matches the table default.
const DefaultDimensions = 384

const modelName = "local-fallback"

// EmbeddingService generates deterministic content-derived vectors.
type EmbeddingService struct {
	dimensions int
}

// New creates a local embedding service with the given dimension.
func New(dimensions int) *EmbeddingService {
	if dimensions <= 0 {
		dimensions = DefaultDimensions
	}
	return &EmbeddingService{dimensions: dimensions}
}

// Embed sums one pseudo-random unit-bounded vector per token and
// L2-normalizes the result. Every coordinate of a token vector derives
// from an FNV-1a hash of the token seed and the coordinate index, mapped
// into [-1, 1].
func (s *EmbeddingService) Embed(_ context.Context, text string) ([]float32, error) {
	acc := make([]float64, s.dimensions)
	for _, token := range tokenize(text) {
		seed := hashToken(token)
		var idx [8]byte
		for i := range acc {
			h := fnv.New64a()
			binary.LittleEndian.PutUint64(idx[:], seed+uint64(i)*0x9E3779B97F4A7C15)
			h.Write(idx[:])
			v := h.Sum64()
			acc[i] += float64(v%200001)/100000.0 - 1.0
		}
	}

	var norm float64
	for _, v := range acc {
		norm += v * v
	}
	vec := make([]float32, s.dimensions)
	if norm > 0 {
		inv := 1.0 / math.Sqrt(norm)
		for i, v := range acc {
			vec[i] = float32(v * inv)
		}
	}
	return vec, nil
}

// tokenize lowercases and splits on anything that is not a letter or
// digit.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// hashToken derives the per-token seed.
func hashToken(token string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(token))
	return h.Sum64()
}

// EmbedBatch embeds each text independently; there is no remote round
// trip to amortize.
func (s *EmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := s.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

// Dimensions returns the embedding vector size.
func (s *EmbeddingService) Dimensions() int {
	return s.dimensions
}

// ModelName returns the name of the embedding model being used.
func (s *EmbeddingService) ModelName() string {
	return modelName
}

// Ping always succeeds; there is nothing to reach.
func (s *EmbeddingService) Ping(_ context.Context) error {
	return nil
}

// Close releases resources.
func (s *EmbeddingService) Close() error {
	return nil
}
