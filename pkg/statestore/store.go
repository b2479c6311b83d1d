package statestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNotFound is returned when a key is absent or expired.
var ErrNotFound = errors.New("state not found")

// Backend is a session-scoped string store with TTLs.
type Backend interface {
	Get(ctx context.Context, sessionID, key string) (string, error)
	Set(ctx context.Context, sessionID, key, value string, ttl time.Duration) error
	SetNX(ctx context.Context, sessionID, key, value string, ttl time.Duration) (bool, error)
	Del(ctx context.Context, sessionID string, keys ...string) error
	Ping(ctx context.Context) error
}

// Store hands out typed per-session views over a Backend.
type Store struct {
	backend    Backend
	defaultTTL time.Duration
}

func New(backend Backend, defaultTTL time.Duration) (*Store, error) {
	if backend == nil {
		return nil, errors.New("state backend is required")
	}
	return &Store{backend: backend, defaultTTL: defaultTTL}, nil
}

// Backend exposes the raw backend for health checks and adapters.
func (s *Store) Backend() Backend {
	return s.backend
}

// Session returns the state view for one storefront session.
func (s *Store) Session(id string) *Session {
	return &Session{store: s, id: strings.TrimSpace(id)}
}

// Session is the state owned by a single storefront session.
type Session struct {
	store *Store
	id    string
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) valid() error {
	if s == nil || s.store == nil {
		return errors.New("state session not initialized")
	}
	if s.id == "" {
		return errors.New("state session id is required")
	}
	return nil
}

// Load decodes the value stored under key. The boolean is false when nothing is stored.
func Load[T any](ctx context.Context, s *Session, key Key) (T, bool, error) {
	var out T
	if err := s.valid(); err != nil {
		return out, false, err
	}
	raw, err := s.store.backend.Get(ctx, s.id, string(key))
	if errors.Is(err, ErrNotFound) {
		return out, false, nil
	}
	if err != nil {
		return out, false, fmt.Errorf("load %s: %w", key, err)
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return out, false, fmt.Errorf("decode %s: %w", key, err)
	}
	return out, true, nil
}

// Save replaces the value under key using the store's default TTL.
func Save[T any](ctx context.Context, s *Session, key Key, value T) error {
	if err := s.valid(); err != nil {
		return err
	}
	return SaveTTL(ctx, s, key, value, s.store.defaultTTL)
}

// SaveTTL replaces the value under key with an explicit TTL.
func SaveTTL[T any](ctx context.Context, s *Session, key Key, value T, ttl time.Duration) error {
	if err := s.valid(); err != nil {
		return err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := s.store.backend.Set(ctx, s.id, string(key), string(raw), ttl); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}

// Claim stores value only when key is vacant. It reports whether this caller won.
func Claim[T any](ctx context.Context, s *Session, key Key, value T, ttl time.Duration) (bool, error) {
	if err := s.valid(); err != nil {
		return false, err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return false, fmt.Errorf("encode %s: %w", key, err)
	}
	ok, err := s.store.backend.SetNX(ctx, s.id, string(key), string(raw), ttl)
	if err != nil {
		return false, fmt.Errorf("claim %s: %w", key, err)
	}
	return ok, nil
}

// Clear removes the given keys.
func (s *Session) Clear(ctx context.Context, keys ...Key) error {
	if err := s.valid(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	names := make([]string, 0, len(keys))
	for _, k := range keys {
		names = append(names, string(k))
	}
	if err := s.store.backend.Del(ctx, s.id, names...); err != nil {
		return fmt.Errorf("clear state: %w", err)
	}
	return nil
}
