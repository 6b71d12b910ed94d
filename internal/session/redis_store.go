package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gorilla/securecookie"
	"github.com/redis/go-redis/v9"

	appErrors "github.com/noah-isme/sma-adp-dashboard/pkg/errors"
)

const recordName = "dashboard_session"

// RedisStore shares sessions between dashboard replicas. Records are encrypted
// and authenticated with securecookie before they leave the process, so Redis
// never sees a plaintext password.
type RedisStore struct {
	client *redis.Client
	codec  *securecookie.SecureCookie
	prefix string
	now    func() time.Time
}

// NewRedisStore constructs a RedisStore keyed under prefix.
func NewRedisStore(client *redis.Client, secret, prefix string) *RedisStore {
	hashKey, blockKey := deriveKeys(secret)
	codec := securecookie.New(hashKey, blockKey)
	codec.SetSerializer(securecookie.JSONEncoder{})
	codec.MaxAge(0)
	return &RedisStore{client: client, codec: codec, prefix: prefix, now: time.Now}
}

// Save writes the encrypted record with a TTL matching the session expiry.
func (r *RedisStore) Save(ctx context.Context, s *Authenticated) error {
	ttl := s.ExpiresAt.Sub(r.now())
	if ttl <= 0 {
		return fmt.Errorf("session %s already expired", s.ID)
	}
	encoded, err := r.encode(s)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, r.prefix+s.ID, encoded, ttl).Err(); err != nil {
		return fmt.Errorf("redis set session: %w", err)
	}
	return nil
}

// Load fetches and decrypts a record.
func (r *RedisStore) Load(ctx context.Context, id string) (*Authenticated, error) {
	raw, err := r.client.Get(ctx, r.prefix+id).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, appErrors.ErrSessionNotFound
		}
		return nil, fmt.Errorf("redis get session: %w", err)
	}
	s, err := r.decode(raw)
	if err != nil {
		return nil, appErrors.CloneWrap(appErrors.ErrSessionNotFound, "", err)
	}
	if s.Expired(r.now()) {
		return nil, appErrors.ErrSessionNotFound
	}
	return s, nil
}

// Delete removes the record.
func (r *RedisStore) Delete(ctx context.Context, id string) error {
	if err := r.client.Del(ctx, r.prefix+id).Err(); err != nil {
		return fmt.Errorf("redis delete session: %w", err)
	}
	return nil
}

func (r *RedisStore) encode(s *Authenticated) (string, error) {
	encoded, err := r.codec.Encode(recordName, s)
	if err != nil {
		return "", fmt.Errorf("encode session: %w", err)
	}
	return encoded, nil
}

func (r *RedisStore) decode(raw string) (*Authenticated, error) {
	var s Authenticated
	if err := r.codec.Decode(recordName, raw, &s); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &s, nil
}
