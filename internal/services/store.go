package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"choose-rich-backend/internal/config"
	"choose-rich-backend/internal/models"
)

// SessionStore holds at most one live session per id, namespaced per game
// kind, with automatic TTL expiry. Expiry of an active session forfeits the
// stake; no settlement follows.
type SessionStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewSessionStore(cfg *config.Config) (*SessionStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPass,
		DB:       cfg.RedisDB,
	})

	if _, err := client.Ping(context.Background()).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &SessionStore{
		client: client,
		ttl:    cfg.SessionTTL,
	}, nil
}

func (s *SessionStore) Close() error {
	return s.client.Close()
}

// sessionEnvelope tags the serialized session with its game kind and a
// write version for compare-and-swap updates.
type sessionEnvelope struct {
	Schema  int             `json:"schema"`
	Kind    models.GameKind `json:"kind"`
	Version int64           `json:"version"`
	Session json.RawMessage `json:"session"`
}

// Get loads the session under (kind, id) into dest and returns the stored
// write version. A miss or expired entry is ErrSessionNotFound; so is an
// entry stored under a different game kind.
func (s *SessionStore) Get(ctx context.Context, kind models.GameKind, id string, dest any) (int64, error) {
	key := fmt.Sprintf(KeySession, kind, id)

	data, err := s.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return 0, models.ErrSessionNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get session: %w", err)
	}

	var env sessionEnvelope
	if err := json.Unmarshal([]byte(data), &env); err != nil {
		return 0, fmt.Errorf("failed to unmarshal session envelope: %w", err)
	}
	if env.Schema != SessionSchemaVersion {
		return 0, fmt.Errorf("unsupported session schema %d", env.Schema)
	}
	if env.Kind != kind {
		return 0, fmt.Errorf("%w: stored under kind %q", models.ErrSessionNotFound, env.Kind)
	}

	if err := json.Unmarshal(env.Session, dest); err != nil {
		return 0, fmt.Errorf("failed to unmarshal %s session: %w", kind, err)
	}
	return env.Version, nil
}

// Put inserts or overwrites the session at write version 1 and arms the
// TTL. Used for freshly created sessions only; transitions go through
// PutVersioned.
func (s *SessionStore) Put(ctx context.Context, kind models.GameKind, id string, session any) error {
	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal %s session: %w", kind, err)
	}

	env := sessionEnvelope{
		Schema:  SessionSchemaVersion,
		Kind:    kind,
		Version: 1,
		Session: payload,
	}
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal session envelope: %w", err)
	}

	key := fmt.Sprintf(KeySession, kind, id)
	return s.client.Set(ctx, key, data, s.ttl).Err()
}

var putVersionedScript = redis.NewScript(`
	local data = redis.call("GET", KEYS[1])
	if not data then
		return redis.error_reply("session not found")
	end

	local env = cjson.decode(data)
	if env.version ~= tonumber(ARGV[1]) then
		return redis.error_reply("version conflict")
	end

	redis.call("SET", KEYS[1], ARGV[2], "PX", ARGV[3])
	return env.version + 1
`)

// PutVersioned replaces the stored session only if its write version still
// equals expectedVersion, resetting the TTL. A diverged version returns
// ErrConflict; the caller decides whether to retry or reject.
//
// The replacement envelope is marshaled in Go and stored verbatim; the
// script only inspects the version, so values never pass through Lua's
// JSON encoder.
func (s *SessionStore) PutVersioned(ctx context.Context, kind models.GameKind, id string, expectedVersion int64, session any) (int64, error) {
	payload, err := json.Marshal(session)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal %s session: %w", kind, err)
	}

	env := sessionEnvelope{
		Schema:  SessionSchemaVersion,
		Kind:    kind,
		Version: expectedVersion + 1,
		Session: payload,
	}
	data, err := json.Marshal(env)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal session envelope: %w", err)
	}

	key := fmt.Sprintf(KeySession, kind, id)
	version, err := putVersionedScript.Run(ctx, s.client, []string{key},
		expectedVersion, string(data), s.ttl.Milliseconds()).Int64()
	if err != nil {
		if strings.Contains(err.Error(), "version conflict") {
			return 0, models.ErrConflict
		}
		if strings.Contains(err.Error(), "session not found") {
			return 0, models.ErrSessionNotFound
		}
		return 0, fmt.Errorf("failed to update session: %w", err)
	}
	return version, nil
}

// Remove evicts the session early. Terminal transitions call this so ended
// sessions do not linger until TTL.
func (s *SessionStore) Remove(ctx context.Context, kind models.GameKind, id string) error {
	key := fmt.Sprintf(KeySession, kind, id)
	return s.client.Del(ctx, key).Err()
}

var rateLimitScript = redis.NewScript(`
	local count = redis.call("INCR", KEYS[1])
	if count == 1 then
		redis.call("PEXPIRE", KEYS[1], ARGV[1])
	end
	return count
`)

// CheckRateLimit counts actions per user inside a rolling window. The
// increment and the first-call expiry are one script, so the counter can
// never be left without a TTL.
func (s *SessionStore) CheckRateLimit(ctx context.Context, userID, action string, limit int, window time.Duration) (bool, error) {
	key := fmt.Sprintf(KeyRateLimit, userID, action)

	count, err := rateLimitScript.Run(ctx, s.client, []string{key}, window.Milliseconds()).Int64()
	if err != nil {
		return false, fmt.Errorf("failed to check rate limit: %w", err)
	}
	return count <= int64(limit), nil
}
