package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"taxfolio/pkg/domain"
)

const defaultStateTTL = 10 * time.Minute

// RedisAuthStateStore keeps pending OAuth states in Redis with a TTL.
// Consume is atomic (GETDEL), so a state can never be redeemed twice even
// under concurrent callbacks.
type RedisAuthStateStore struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
}

// NewRedisAuthStateStore builds a state store over an existing Redis client.
// ttl <= 0 falls back to 10 minutes.
func NewRedisAuthStateStore(client *redis.Client, ttl time.Duration) (*RedisAuthStateStore, error) {
	if client == nil {
		return nil, errors.New("auth state store requires a redis client")
	}
	if ttl <= 0 {
		ttl = defaultStateTTL
	}
	return &RedisAuthStateStore{
		client:    client,
		keyPrefix: "taxfolio:authstate:",
		ttl:       ttl,
	}, nil
}

// SaveState persists the pending state payload under the opaque token.
func (s *RedisAuthStateStore) SaveState(state domain.AuthState) error {
	if strings.TrimSpace(state.State) == "" {
		return errors.New("state token required")
	}
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal auth state: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := s.client.Set(ctx, s.keyPrefix+state.State, raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("save auth state: %w", err)
	}
	return nil
}

// ConsumeState returns the payload for a state token exactly once.
// Unknown, expired, or already-consumed states yield ErrStateNotFound.
func (s *RedisAuthStateStore) ConsumeState(state string) (domain.AuthState, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	raw, err := s.client.GetDel(ctx, s.keyPrefix+state).Result()
	if err == redis.Nil {
		return domain.AuthState{}, ErrStateNotFound
	}
	if err != nil {
		return domain.AuthState{}, fmt.Errorf("consume auth state: %w", err)
	}
	var payload domain.AuthState
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return domain.AuthState{}, fmt.Errorf("unmarshal auth state: %w", err)
	}
	return payload, nil
}

// MemoryAuthStateStore is the in-process variant used by tests and local
// runs. Expiry is enforced on read.
type MemoryAuthStateStore struct {
	mu     sync.Mutex
	states map[string]domain.AuthState
	ttl    time.Duration
	now    Clock
}

// NewMemoryAuthStateStore builds an in-memory state store.
func NewMemoryAuthStateStore(ttl time.Duration) *MemoryAuthStateStore {
	if ttl <= 0 {
		ttl = defaultStateTTL
	}
	return &MemoryAuthStateStore{
		states: make(map[string]domain.AuthState),
		ttl:    ttl,
		now:    time.Now,
	}
}

// SetClock overrides the time source; tests use it to force expiry.
func (s *MemoryAuthStateStore) SetClock(now Clock) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *MemoryAuthStateStore) SaveState(state domain.AuthState) error {
	if strings.TrimSpace(state.State) == "" {
		return errors.New("state token required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if state.CreatedAt.IsZero() {
		state.CreatedAt = s.now().UTC()
	}
	s.states[state.State] = state
	return nil
}

func (s *MemoryAuthStateStore) ConsumeState(state string) (domain.AuthState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	payload, ok := s.states[state]
	if !ok {
		return domain.AuthState{}, ErrStateNotFound
	}
	delete(s.states, state)
	if s.now().Sub(payload.CreatedAt) > s.ttl {
		return domain.AuthState{}, ErrStateNotFound
	}
	return payload, nil
}
