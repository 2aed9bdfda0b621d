// Package remote provides an embedding service adapter for OpenAI-style
// HTTP embedding APIs. Requests are batched, rate limited, and retried
// with exponential backoff and jitter; 429 responses honor Retry-After.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/custodia-labs/repovec/internal/core/domain"
	"github.com/custodia-labs/repovec/internal/core/ports/driven"
	"github.com/custodia-labs/repovec/internal/logger"
	"github.com/custodia-labs/repovec/internal/metrics"
)

// Ensure EmbeddingService implements the interface.
var _ driven.EmbeddingService = (*EmbeddingService)(nil)

// Default configuration values.
const (
	DefaultModel          = "text-embedding-3-small"
	DefaultDimensions     = 384
	DefaultBatchSize      = 16
	DefaultConnectTimeout = 10 * time.Second
	DefaultRequestTimeout = 60 * time.Second

	baseBackoff = 250 * time.Millisecond
	maxAttempts = 5
)

// Config holds configuration for the remote embedding service.
type Config struct {
	// BaseURL is the API base URL (required), e.g. https://api.openai.com/v1.
	BaseURL string

	// APIKey authorizes requests. Never logged.
	APIKey string

	// Model is the embedding model to use.
	Model string

	// Dimensions is the embedding vector size the model returns.
	Dimensions int

	// BatchSize caps texts per request.
	BatchSize int

	// RequestTimeout bounds one round trip.
	RequestTimeout time.Duration

	// RequestsPerSecond throttles outbound calls. Zero disables the limiter.
	RequestsPerSecond float64
}

// EmbeddingService generates embeddings over HTTP.
type EmbeddingService struct {
	client     *http.Client
	limiter    *rate.Limiter
	baseURL    string
	apiKey     string
	model      string
	dimensions int
	batchSize  int
}

// embeddingRequest is the OpenAI-style API request format.
type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

// embeddingResponse is the OpenAI-style API response format.
type embeddingResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// NewEmbeddingService creates a remote embedding service.
func NewEmbeddingService(cfg Config) (*EmbeddingService, error) {
	if cfg.BaseURL == "" {
		return nil, domain.E(domain.ErrConfigInvalid, "embedding",
			fmt.Errorf("embedding API URL is required"))
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Dimensions <= 0 {
		cfg.Dimensions = DefaultDimensions
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	return &EmbeddingService{
		client: &http.Client{
			Timeout: cfg.RequestTimeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: DefaultConnectTimeout,
				}).DialContext,
			},
		},
		limiter:    limiter,
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
		batchSize:  cfg.BatchSize,
	}, nil
}

// Embed generates a vector embedding for the given text.
func (s *EmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := s.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) == 0 {
		return nil, domain.E(domain.ErrEmbeddingUnavailable, "embed",
			fmt.Errorf("no embedding returned"))
	}
	return vecs[0], nil
}

// EmbedBatch splits texts into API-sized batches and embeds each with the
// retry policy. The result is positionally aligned with texts.
func (s *EmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += s.batchSize {
		end := min(start+s.batchSize, len(texts))
		vecs, err := s.embedChunk(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, vecs...)
	}
	return out, nil
}

// embedChunk performs one API call with retries. Transport errors and
// 5xx retry with exponential backoff (base 250ms, factor 2, jitter
// ±20%, 5 attempts); 429 honors Retry-After; other 4xx fail fast.
func (s *EmbeddingService) embedChunk(ctx context.Context, texts []string) ([][]float32, error) {
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			metrics.EmbedRetries.Inc()
		}
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, domain.E(domain.ErrCancelled, "embed", err)
		}

		vecs, retryAfter, err := s.call(ctx, texts)
		if err == nil {
			return vecs, nil
		}
		if ctx.Err() != nil {
			return nil, domain.E(domain.ErrCancelled, "embed", ctx.Err())
		}
		if errors.Is(err, domain.ErrEmbeddingRejected) {
			return nil, err
		}
		lastErr = err
		if attempt == maxAttempts-1 {
			break
		}

		sleep := retryAfter
		if sleep <= 0 {
			sleep = backoff(attempt)
		}
		logger.Warn("embedding: attempt %d failed, retrying in %s: %v", attempt+1, sleep, err)
		select {
		case <-ctx.Done():
			return nil, domain.E(domain.ErrCancelled, "embed", ctx.Err())
		case <-time.After(sleep):
		}
	}
	return nil, domain.E(domain.ErrEmbeddingUnavailable, "embed", lastErr)
}

// call performs a single HTTP round trip. The second return value is a
// server-requested delay from Retry-After, when present.
func (s *EmbeddingService) call(ctx context.Context, texts []string) ([][]float32, time.Duration, error) {
	body, err := json.Marshal(embeddingRequest{Model: s.model, Input: texts})
	if err != nil {
		return nil, 0, domain.E(domain.ErrInternal, "embed", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		s.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, 0, domain.E(domain.ErrInternal, "embed", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		// Fall through to decoding below.
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, parseRetryAfter(resp.Header.Get("Retry-After")),
			fmt.Errorf("rate limited (status 429)")
	case resp.StatusCode >= 500:
		return nil, 0, fmt.Errorf("server error (status %d)", resp.StatusCode)
	default:
		return nil, 0, domain.E(domain.ErrEmbeddingRejected, "embed",
			fmt.Errorf("status %d: %s", resp.StatusCode, truncate(string(respBody), 200)))
	}

	var parsed embeddingResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, 0, fmt.Errorf("decode response: %w", err)
	}
	if parsed.Error != nil {
		return nil, 0, domain.E(domain.ErrEmbeddingRejected, "embed",
			fmt.Errorf("%s", parsed.Error.Message))
	}
	if len(parsed.Data) != len(texts) {
		return nil, 0, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(parsed.Data))
	}

	vecs := make([][]float32, len(texts))
	for _, item := range parsed.Data {
		if item.Index < 0 || item.Index >= len(texts) {
			return nil, 0, fmt.Errorf("embedding index %d out of range", item.Index)
		}
		vec := make([]float32, len(item.Embedding))
		for i, v := range item.Embedding {
			vec[i] = float32(v)
		}
		vecs[item.Index] = vec
	}
	return vecs, 0, nil
}

// Dimensions returns the embedding vector size.
func (s *EmbeddingService) Dimensions() int {
	return s.dimensions
}

// ModelName returns the name of the embedding model being used.
func (s *EmbeddingService) ModelName() string {
	return s.model
}

// Ping validates the service is reachable by listing models.
func (s *EmbeddingService) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/models", http.NoBody)
	if err != nil {
		return domain.E(domain.ErrInternal, "ping", err)
	}
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return domain.E(domain.ErrEmbeddingUnavailable, "ping", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return domain.E(domain.ErrEmbeddingUnavailable, "ping",
			fmt.Errorf("status %d", resp.StatusCode))
	}
	return nil
}

// Close releases resources.
func (s *EmbeddingService) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

// backoff computes the delay before attempt+1: base 250ms doubled per
// attempt with ±20% jitter.
func backoff(attempt int) time.Duration {
	d := float64(baseBackoff) * float64(int64(1)<<attempt)
	jitter := 1 + (rand.Float64()*0.4 - 0.2)
	return time.Duration(d * jitter)
}

// parseRetryAfter reads a Retry-After header in seconds form.
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	secs, err := strconv.Atoi(value)
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
