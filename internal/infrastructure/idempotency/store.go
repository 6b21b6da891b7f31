package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	Header = "Idempotency-Key"

	keyResponse = "idem:checkout:%s"
	keyLock     = "idem:checkout:%s:lock"
)

var (
	TTLResponse = 24 * time.Hour
	TTLLock     = 30 * time.Second
)

// Response is a completed request's answer together with the fingerprint of
// the request that produced it.
type Response struct {
	Fingerprint string          `json:"fingerprint"`
	Body        json.RawMessage `json:"body"`
}

// Store remembers the response of a completed request so a retry with the
// same key gets the same answer instead of a second order.
type Store interface {
	// Get returns the stored response, if any.
	Get(ctx context.Context, key string) (*Response, bool, error)
	// Acquire claims key for one in-flight request. It reports false when
	// another request holds it.
	Acquire(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
	Put(ctx context.Context, key string, resp Response) error
}

func Key(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(Header))
}

// Fingerprint hashes the decoded request, so retries that differ only in
// whitespace or field order match.
func Fingerprint(req any) (string, error) {
	b, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("idempotency fingerprint: %w", err)
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

type redisStore struct {
	rdb *redis.Client
}

func NewRedisStore(rdb *redis.Client) Store {
	return &redisStore{rdb: rdb}
}

func NewRedisClient(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
}

func (s *redisStore) Get(ctx context.Context, key string) (*Response, bool, error) {
	b, err := s.rdb.Get(ctx, fmt.Sprintf(keyResponse, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("idempotency get: %w", err)
	}
	var resp Response
	if err := json.Unmarshal(b, &resp); err != nil {
		return nil, false, fmt.Errorf("idempotency decode: %w", err)
	}
	return &resp, true, nil
}

func (s *redisStore) Acquire(ctx context.Context, key string) (bool, error) {
	ok, err := s.rdb.SetNX(ctx, fmt.Sprintf(keyLock, key), "1", TTLLock).Result()
	if err != nil {
		return false, fmt.Errorf("idempotency acquire: %w", err)
	}
	return ok, nil
}

func (s *redisStore) Release(ctx context.Context, key string) error {
	if err := s.rdb.Del(ctx, fmt.Sprintf(keyLock, key)).Err(); err != nil {
		return fmt.Errorf("idempotency release: %w", err)
	}
	return nil
}

func (s *redisStore) Put(ctx context.Context, key string, resp Response) error {
	b, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("idempotency encode: %w", err)
	}
	if err := s.rdb.Set(ctx, fmt.Sprintf(keyResponse, key), b, TTLResponse).Err(); err != nil {
		return fmt.Errorf("idempotency put: %w", err)
	}
	return nil
}
