package ai

import (
	"context"
	"fmt"
	"time"
)

// EmbeddingClient wraps OpenAICompatibleClient.EmbedBatch with the
// batching and retry policy the ingestion worker needs: requests are
// capped at batchMax texts each, a failed call is retried up to 3
// times with a 1s delay, and each call is bounded to 30s. Generalized
// from the teacher's EmbedBatch, which has neither cap nor retry.
type EmbeddingClient struct {
	client   *OpenAICompatibleClient
	cfg      EmbeddingConfig
	batchMax int
}

func NewEmbeddingClient(client *OpenAICompatibleClient, cfg EmbeddingConfig, batchMax int) *EmbeddingClient {
	if batchMax <= 0 {
		batchMax = 100
	}
	return &EmbeddingClient{client: client, cfg: cfg, batchMax: batchMax}
}

const (
	embedRetryAttempts = 3
	embedRetryDelay    = 1 * time.Second
	embedCallTimeout   = 30 * time.Second
)

// EmbedAll splits texts into batches of at most batchMax, embeds each
// batch with retry, and returns the vectors in the original order.
func (c *EmbeddingClient) EmbedAll(ctx context.Context, texts []string) ([][]float32, error) {
	result := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += c.batchMax {
		end := start + c.batchMax
		if end > len(texts) {
			end = len(texts)
		}
		vectors, err := c.embedBatchWithRetry(ctx, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("embed batch [%d:%d] failed: %w", start, end, err)
		}
		result = append(result, vectors...)
	}
	return result, nil
}

func (c *EmbeddingClient) embedBatchWithRetry(ctx context.Context, batch []string) ([][]float32, error) {
	var lastErr error
	for attempt := 0; attempt <= embedRetryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(embedRetryDelay):
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, embedCallTimeout)
		vectors, err := c.client.EmbedBatch(callCtx, c.cfg, batch)
		cancel()
		if err == nil {
			return vectors, nil
		}
		lastErr = err
	}
	return nil, lastErr
}
