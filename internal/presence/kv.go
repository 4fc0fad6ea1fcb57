package presence

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/nats-io/nats.go/jetstream"
)

// BucketName is the JetStream key-value bucket holding online users.
const BucketName = "presence"

// KV is a Service backed by a JetStream key-value bucket, shared by every
// API instance. Key expiry is handled by the bucket TTL.
type KV struct {
	kv jetstream.KeyValue
}

var _ Service = (*KV)(nil)

// NewKV wraps a key-value bucket.
func NewKV(kv jetstream.KeyValue) *KV {
	return &KV{kv: kv}
}

// IsOnline reports whether a key exists for userID.
func (p *KV) IsOnline(ctx context.Context, userID string) (bool, error) {
	if userID == "" {
		return false, nil
	}
	_, err := p.kv.Get(ctx, key(userID))
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("presence lookup: %w", err)
	}
	return true, nil
}

// MarkOnline writes a heartbeat for userID.
func (p *KV) MarkOnline(ctx context.Context, userID string) error {
	stamp := strconv.FormatInt(time.Now().Unix(), 10)
	if _, err := p.kv.PutString(ctx, key(userID), stamp); err != nil {
		return fmt.Errorf("presence heartbeat: %w", err)
	}
	return nil
}

// MarkOffline deletes the key for userID.
func (p *KV) MarkOffline(ctx context.Context, userID string) error {
	if err := p.kv.Delete(ctx, key(userID)); err != nil && !errors.Is(err, jetstream.ErrKeyNotFound) {
		return fmt.Errorf("presence delete: %w", err)
	}
	return nil
}

// key maps a user ID onto the restricted key alphabet of a bucket.
func key(userID string) string {
	return "u." + base64.RawURLEncoding.EncodeToString([]byte(userID))
}
