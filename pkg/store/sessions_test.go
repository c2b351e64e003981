package store

import (
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestRedisSessionStoreLifecycle(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s := NewRedisSessionStore(client, time.Hour)

	token, err := s.NewSession("user-1")
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	userID, ok, err := s.GetUserIDByToken(token)
	if err != nil || !ok || userID != "user-1" {
		t.Fatalf("get session: %v %v %q", err, ok, userID)
	}
	if err := s.DeleteSession(token); err != nil {
		t.Fatalf("delete session: %v", err)
	}
	if _, ok, _ := s.GetUserIDByToken(token); ok {
		t.Fatalf("expected session gone after delete")
	}
}

func TestRedisSessionStoreTTL(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s := NewRedisSessionStore(client, time.Minute)

	token, err := s.NewSession("user-2")
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	mr.FastForward(2 * time.Minute)
	if _, ok, _ := s.GetUserIDByToken(token); ok {
		t.Fatalf("expected session expired")
	}
}

func TestJWTSessionStoreRoundTrip(t *testing.T) {
	s, err := NewJWTSessionStore(strings.Repeat("k", 32), time.Hour)
	if err != nil {
		t.Fatalf("new jwt store: %v", err)
	}
	token, err := s.NewSession("user-3")
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	userID, ok, err := s.GetUserIDByToken(token)
	if err != nil || !ok || userID != "user-3" {
		t.Fatalf("get session: %v %v %q", err, ok, userID)
	}
}

func TestJWTSessionStoreRejectsTampering(t *testing.T) {
	s, err := NewJWTSessionStore(strings.Repeat("k", 32), time.Hour)
	if err != nil {
		t.Fatalf("new jwt store: %v", err)
	}
	other, err := NewJWTSessionStore(strings.Repeat("x", 32), time.Hour)
	if err != nil {
		t.Fatalf("new jwt store: %v", err)
	}
	token, err := other.NewSession("user-4")
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	if _, ok, _ := s.GetUserIDByToken(token); ok {
		t.Fatalf("expected token signed with another key to be rejected")
	}
}

func TestJWTSessionStoreRequiresLongSecret(t *testing.T) {
	if _, err := NewJWTSessionStore("short", time.Hour); err == nil {
		t.Fatalf("expected error for short secret")
	}
}
