package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/nsvirk/gitcoderapi/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
)

// SessionKeyPrefix namespaces session keys in redis
const SessionKeyPrefix = "gitcoder:session:"

// redisSession is the stored form of a session, with the token sealed
type redisSession struct {
	ID             string             `json:"id"`
	User           models.UserProfile `json:"user"`
	SealedToken    string             `json:"sealed_token"`
	CreatedAt      time.Time          `json:"created_at"`
	LastAccessedAt time.Time          `json:"last_accessed_at"`
}

// RedisSessionStore keeps sessions in redis so they survive restarts and can be shared between instances
type RedisSessionStore struct {
	client *redis.Client
	sealer *TokenSealer
	maxAge time.Duration
	clock  Clock
}

// NewRedisSessionStore creates a redis backed store
func NewRedisSessionStore(client *redis.Client, sealer *TokenSealer, maxAge time.Duration, clock Clock) *RedisSessionStore {
	if clock == nil {
		clock = RealClock{}
	}
	return &RedisSessionStore{client: client, sealer: sealer, maxAge: maxAge, clock: clock}
}

func sessionKey(id string) string {
	return SessionKeyPrefix + id
}

func (s *RedisSessionStore) Create(ctx context.Context, token string, user models.UserProfile) (*models.Session, error) {
	sealed, err := s.sealer.Seal(token)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()

	for {
		id, err := NewSessionID()
		if err != nil {
			return nil, err
		}
		payload, err := json.Marshal(redisSession{
			ID:             id,
			User:           user,
			SealedToken:    sealed,
			CreatedAt:      now,
			LastAccessedAt: now,
		})
		if err != nil {
			return nil, eris.Wrap(err, "failed to encode session")
		}

		stored, err := s.client.SetNX(ctx, sessionKey(id), payload, s.maxAge).Result()
		if err != nil {
			return nil, eris.Wrap(err, "failed to store session")
		}
		if !stored {
			continue
		}
		return &models.Session{
			ID:             id,
			User:           user,
			AccessToken:    token,
			CreatedAt:      now,
			LastAccessedAt: now,
		}, nil
	}
}

func (s *RedisSessionStore) load(ctx context.Context, id string) (*redisSession, error) {
	raw, err := s.client.Get(ctx, sessionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "failed to read session")
	}
	var rs redisSession
	if err := json.Unmarshal(raw, &rs); err != nil {
		return nil, eris.Wrap(err, "failed to decode session")
	}
	return &rs, nil
}

func (s *RedisSessionStore) Get(ctx context.Context, id string) (*models.Session, error) {
	rs, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	session := &models.Session{
		ID:             rs.ID,
		User:           rs.User,
		CreatedAt:      rs.CreatedAt,
		LastAccessedAt: rs.LastAccessedAt,
	}
	if session.IsExpired(now, s.maxAge) {
		s.client.Del(ctx, sessionKey(id))
		return nil, ErrSessionNotFound
	}

	token, err := s.sealer.Open(rs.SealedToken)
	if err != nil {
		// sealed under another secret; the session cannot be used
		s.client.Del(ctx, sessionKey(id))
		return nil, ErrSessionNotFound
	}
	session.AccessToken = token

	if now.After(rs.LastAccessedAt) {
		rs.LastAccessedAt = now
		session.LastAccessedAt = now
	}
	payload, err := json.Marshal(rs)
	if err != nil {
		return nil, eris.Wrap(err, "failed to encode session")
	}
	// XX so that a concurrent delete is not undone by the touch
	if err := s.client.SetXX(ctx, sessionKey(id), payload, s.maxAge).Err(); err != nil {
		return nil, eris.Wrap(err, "failed to refresh session")
	}
	return session, nil
}

func (s *RedisSessionStore) Delete(ctx context.Context, id string) (bool, error) {
	n, err := s.client.Del(ctx, sessionKey(id)).Result()
	if err != nil {
		return false, eris.Wrap(err, "failed to delete session")
	}
	return n > 0, nil
}

// scan visits every session key
func (s *RedisSessionStore) scan(ctx context.Context, fn func(key string) error) error {
	iter := s.client.Scan(ctx, 0, SessionKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		if err := fn(iter.Val()); err != nil {
			return err
		}
	}
	if err := iter.Err(); err != nil {
		return eris.Wrap(err, "failed to scan sessions")
	}
	return nil
}

func (s *RedisSessionStore) EvictExpired(ctx context.Context) (int, error) {
	now := s.clock.Now()
	removed := 0
	err := s.scan(ctx, func(key string) error {
		id := key[len(SessionKeyPrefix):]
		rs, err := s.load(ctx, id)
		if errors.Is(err, ErrSessionNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if now.Sub(rs.LastAccessedAt) <= s.maxAge {
			return nil
		}
		n, err := s.client.Del(ctx, key).Result()
		if err != nil {
			return eris.Wrap(err, "failed to delete expired session")
		}
		removed += int(n)
		return nil
	})
	return removed, err
}

func (s *RedisSessionStore) Count(ctx context.Context) (int, error) {
	count := 0
	err := s.scan(ctx, func(string) error {
		count++
		return nil
	})
	return count, err
}
