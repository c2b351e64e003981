package store

import (
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"taxfolio/pkg/domain"
)

func TestRedisAuthStateStoreConsumeOnce(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s, err := NewRedisAuthStateStore(client, time.Minute)
	if err != nil {
		t.Fatalf("new state store: %v", err)
	}

	state := domain.AuthState{
		State:     "opaque-token-1",
		UserID:    "user-1",
		Provider:  domain.ProviderGmail,
		Email:     "a@b.com",
		CreatedAt: time.Now().UTC(),
	}
	if err := s.SaveState(state); err != nil {
		t.Fatalf("save state: %v", err)
	}

	got, err := s.ConsumeState("opaque-token-1")
	if err != nil {
		t.Fatalf("consume state: %v", err)
	}
	if got.UserID != "user-1" || got.Email != "a@b.com" || got.Provider != domain.ProviderGmail {
		t.Fatalf("unexpected payload: %+v", got)
	}

	// Second consume must fail: states are single-use.
	if _, err := s.ConsumeState("opaque-token-1"); !errors.Is(err, ErrStateNotFound) {
		t.Fatalf("expected ErrStateNotFound on replay, got: %v", err)
	}
}

func TestRedisAuthStateStoreExpires(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s, err := NewRedisAuthStateStore(client, time.Minute)
	if err != nil {
		t.Fatalf("new state store: %v", err)
	}
	if err := s.SaveState(domain.AuthState{State: "stale", UserID: "u"}); err != nil {
		t.Fatalf("save state: %v", err)
	}
	mr.FastForward(2 * time.Minute)
	if _, err := s.ConsumeState("stale"); !errors.Is(err, ErrStateNotFound) {
		t.Fatalf("expected expired state to be gone, got: %v", err)
	}
}

func TestRedisAuthStateStoreUnknownState(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s, err := NewRedisAuthStateStore(client, time.Minute)
	if err != nil {
		t.Fatalf("new state store: %v", err)
	}
	if _, err := s.ConsumeState("never-saved"); !errors.Is(err, ErrStateNotFound) {
		t.Fatalf("expected ErrStateNotFound, got: %v", err)
	}
}

func TestMemoryAuthStateStoreCallerStampedCreatedAt(t *testing.T) {
	s := NewMemoryAuthStateStore(10 * time.Minute)
	created := time.Date(2025, 4, 1, 12, 0, 0, 0, time.UTC)
	// Expiry is judged against the caller's CreatedAt, so the store clock
	// must share the caller's time source.
	s.SetClock(func() time.Time { return created.Add(time.Minute) })

	if err := s.SaveState(domain.AuthState{State: "tok", UserID: "u", CreatedAt: created}); err != nil {
		t.Fatalf("save state: %v", err)
	}
	got, err := s.ConsumeState("tok")
	if err != nil {
		t.Fatalf("consume state: %v", err)
	}
	if got.UserID != "u" || !got.CreatedAt.Equal(created) {
		t.Fatalf("unexpected payload: %+v", got)
	}
}

func TestMemoryAuthStateStoreExpiryOnRead(t *testing.T) {
	s := NewMemoryAuthStateStore(time.Minute)
	base := time.Now().UTC()
	s.SetClock(func() time.Time { return base })

	if err := s.SaveState(domain.AuthState{State: "tok", UserID: "u"}); err != nil {
		t.Fatalf("save state: %v", err)
	}
	s.SetClock(func() time.Time { return base.Add(2 * time.Minute) })
	if _, err := s.ConsumeState("tok"); !errors.Is(err, ErrStateNotFound) {
		t.Fatalf("expected expiry on read, got: %v", err)
	}
	// The expired state is also gone, not retryable.
	if _, err := s.ConsumeState("tok"); !errors.Is(err, ErrStateNotFound) {
		t.Fatalf("expected state deleted, got: %v", err)
	}
}
