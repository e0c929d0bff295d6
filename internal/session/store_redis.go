package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const defaultKeyPrefix = "medbook:session:"

// RedisStore keeps the access token under <prefix>accessToken and the
// refresh token under <prefix>refreshToken. The refresh key expires at the
// server-supplied expiry so Redis drops it exactly when the backend would
// reject it.
type RedisStore struct {
	redis  *redis.Client
	prefix string
	tracer trace.Tracer
}

type storedRefresh struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt,omitzero"`
}

func NewRedisStore(client *redis.Client, prefix string, tracer trace.Tracer) *RedisStore {
	if client == nil {
		panic("session: redis client cannot be nil")
	}
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	if tracer == nil {
		tracer = otel.Tracer("medbook.internal.session.redis")
	}
	return &RedisStore{redis: client, prefix: prefix, tracer: tracer}
}

func (s *RedisStore) accessKey() string  { return s.prefix + "accessToken" }
func (s *RedisStore) refreshKey() string { return s.prefix + "refreshToken" }

func (s *RedisStore) Load(ctx context.Context) (Credentials, error) {
	ctx, span := s.tracer.Start(ctx, "session.load")
	defer span.End()

	var creds Credentials
	access, err := s.redis.Get(ctx, s.accessKey()).Result()
	switch {
	case errors.Is(err, redis.Nil):
	case err != nil:
		span.RecordError(err)
		return Credentials{}, fmt.Errorf("session: load access token: %w", err)
	default:
		creds.AccessToken = access
	}

	data, err := s.redis.Get(ctx, s.refreshKey()).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return creds, nil
	case err != nil:
		span.RecordError(err)
		return Credentials{}, fmt.Errorf("session: load refresh token: %w", err)
	}
	var refresh storedRefresh
	if err := json.Unmarshal(data, &refresh); err != nil {
		span.RecordError(err)
		return Credentials{}, fmt.Errorf("session: decode refresh token: %w", err)
	}
	creds.RefreshToken = refresh.Token
	creds.RefreshTokenExpiry = refresh.ExpiresAt
	return creds.dropExpiredRefresh(time.Now()), nil
}

func (s *RedisStore) Save(ctx context.Context, creds Credentials) error {
	ctx, span := s.tracer.Start(ctx, "session.save")
	defer span.End()

	pipe := s.redis.TxPipeline()
	if creds.AccessToken != "" {
		pipe.Set(ctx, s.accessKey(), creds.AccessToken, 0)
	} else {
		pipe.Del(ctx, s.accessKey())
	}

	if creds.RefreshUsable(time.Now()) {
		data, err := json.Marshal(storedRefresh{Token: creds.RefreshToken, ExpiresAt: creds.RefreshTokenExpiry})
		if err != nil {
			span.RecordError(err)
			return fmt.Errorf("session: encode refresh token: %w", err)
		}
		pipe.Set(ctx, s.refreshKey(), data, 0)
		if !creds.RefreshTokenExpiry.IsZero() {
			pipe.ExpireAt(ctx, s.refreshKey(), creds.RefreshTokenExpiry)
		}
	} else {
		pipe.Del(ctx, s.refreshKey())
	}

	if _, err := pipe.Exec(ctx); err != nil {
		span.RecordError(err)
		return fmt.Errorf("session: persist credentials: %w", err)
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context) error {
	ctx, span := s.tracer.Start(ctx, "session.clear")
	defer span.End()

	if err := s.redis.Del(ctx, s.accessKey(), s.refreshKey()).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("session: clear credentials: %w", err)
	}
	return nil
}
