package cache

import (
	"context"
	"fmt"

	redisv9 "github.com/redis/go-redis/v9"
)

// UploadLedger tracks, per (userID, fingerprint) upload, which chunk
// indices have already landed, via a Redis bitmap. Grounded on
// manshu's UploadService isChunkUploaded/markChunkUploaded/isBitSet.
type UploadLedger struct {
	client *redisv9.Client
}

func NewUploadLedger(client *redisv9.Client) *UploadLedger {
	return &UploadLedger{client: client}
}

func (l *UploadLedger) key(userID uint, fingerprint string) string {
	return fmt.Sprintf("upload:%d:%s", userID, fingerprint)
}

func (l *UploadLedger) MarkUploaded(ctx context.Context, userID uint, fingerprint string, chunkIndex int) error {
	if err := l.client.SetBit(ctx, l.key(userID, fingerprint), int64(chunkIndex), 1).Err(); err != nil {
		return fmt.Errorf("mark chunk uploaded failed: %w", err)
	}
	return nil
}

func (l *UploadLedger) IsUploaded(ctx context.Context, userID uint, fingerprint string, chunkIndex int) (bool, error) {
	bit, err := l.client.GetBit(ctx, l.key(userID, fingerprint), int64(chunkIndex)).Result()
	if err != nil {
		return false, fmt.Errorf("check chunk uploaded failed: %w", err)
	}
	return bit == 1, nil
}

// UploadedIndices returns the sorted list of chunk indices present in
// the bitmap up to totalChunks, by reading the raw bitmap once and
// testing each bit locally rather than issuing totalChunks GETBIT
// round trips.
func (l *UploadLedger) UploadedIndices(ctx context.Context, userID uint, fingerprint string, totalChunks int) ([]int, error) {
	raw, err := l.client.Get(ctx, l.key(userID, fingerprint)).Bytes()
	if err != nil && err != redisv9.Nil {
		return nil, fmt.Errorf("read upload bitmap failed: %w", err)
	}
	var indices []int
	for i := 0; i < totalChunks; i++ {
		byteIdx := i / 8
		if byteIdx >= len(raw) {
			continue
		}
		bitIdx := 7 - (i % 8)
		if raw[byteIdx]&(1<<uint(bitIdx)) != 0 {
			indices = append(indices, i)
		}
	}
	return indices, nil
}

func (l *UploadLedger) Count(ctx context.Context, userID uint, fingerprint string) (int64, error) {
	count, err := l.client.BitCount(ctx, l.key(userID, fingerprint), nil).Result()
	if err != nil {
		return 0, fmt.Errorf("count uploaded chunks failed: %w", err)
	}
	return count, nil
}

func (l *UploadLedger) Delete(ctx context.Context, userID uint, fingerprint string) error {
	if err := l.client.Del(ctx, l.key(userID, fingerprint)).Err(); err != nil {
		return fmt.Errorf("delete upload bitmap failed: %w", err)
	}
	return nil
}
