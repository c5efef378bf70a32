package redis

import (
	"context"
	"errors"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/vedran77/dermacheck/internal/repository"
)

const namespace = "dermacheck:session"

// TokenStore keeps the session token of one device under namespace:deviceID.
type TokenStore struct {
	client   goredis.UniversalClient
	deviceID string
}

func NewTokenStore(client goredis.UniversalClient, deviceID string) *TokenStore {
	return &TokenStore{client: client, deviceID: deviceID}
}

// NewClient builds a redis client for a single node address.
func NewClient(addr, password string) *goredis.Client {
	return goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})
}

func (s *TokenStore) key() string {
	return namespace + ":" + s.deviceID
}

func (s *TokenStore) Save(ctx context.Context, token string, ttl time.Duration) error {
	return s.client.Set(ctx, s.key(), token, ttl).Err()
}

func (s *TokenStore) Load(ctx context.Context) (string, error) {
	token, err := s.client.Get(ctx, s.key()).Result()
	if errors.Is(err, goredis.Nil) {
		return "", nil
	}
	return token, err
}

func (s *TokenStore) Clear(ctx context.Context) error {
	return s.client.Del(ctx, s.key()).Err()
}

var _ repository.TokenStore = (*TokenStore)(nil)
