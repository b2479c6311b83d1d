package statestore

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"
)

const idempotencySession = "_idempotency"

// IdempotencyStore adapts any backend to the idempotency middleware contract.
type IdempotencyStore struct {
	backend Backend
}

func NewIdempotencyStore(backend Backend) *IdempotencyStore {
	return &IdempotencyStore{backend: backend}
}

func (i *IdempotencyStore) Get(ctx context.Context, key string) (string, error) {
	return i.backend.Get(ctx, idempotencySession, key)
}

func (i *IdempotencyStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	s, ok := value.(string)
	if !ok {
		return false, errors.New("idempotency values must be strings")
	}
	return i.backend.SetNX(ctx, idempotencySession, key, s, ttl)
}

func (i *IdempotencyStore) IdempotencyKey(scope, id string) string {
	return strings.Join([]string{"idempotency", scope, id}, ":")
}

func (i *IdempotencyStore) Del(ctx context.Context, keys ...string) error {
	return i.backend.Del(ctx, idempotencySession, keys...)
}

type storedCookie struct {
	Name  string `json:"name"`
	Value string `json:"value"`
	Path  string `json:"path,omitempty"`
}

// CookieJar keeps the servlet container's session cookies for each storefront session.
type CookieJar struct {
	store *Store
}

func NewCookieJar(store *Store) *CookieJar {
	return &CookieJar{store: store}
}

func (j *CookieJar) Load(ctx context.Context, sessionID string) ([]*http.Cookie, error) {
	stored, ok, err := Load[[]storedCookie](ctx, j.store.Session(sessionID), KeyUpstreamCookies)
	if err != nil || !ok {
		return nil, err
	}
	out := make([]*http.Cookie, 0, len(stored))
	for _, c := range stored {
		out = append(out, &http.Cookie{Name: c.Name, Value: c.Value, Path: c.Path})
	}
	return out, nil
}

// Merge folds cookies set by a servlet response into the session's jar. Expired cookies are dropped.
func (j *CookieJar) Merge(ctx context.Context, sessionID string, fresh []*http.Cookie) error {
	if len(fresh) == 0 {
		return nil
	}
	sess := j.store.Session(sessionID)
	stored, _, err := Load[[]storedCookie](ctx, sess, KeyUpstreamCookies)
	if err != nil {
		return err
	}
	byName := make(map[string]storedCookie, len(stored)+len(fresh))
	order := make([]string, 0, len(stored)+len(fresh))
	for _, c := range stored {
		if _, seen := byName[c.Name]; !seen {
			order = append(order, c.Name)
		}
		byName[c.Name] = c
	}
	for _, c := range fresh {
		if c == nil || c.Name == "" {
			continue
		}
		if c.MaxAge < 0 || c.Value == "" {
			delete(byName, c.Name)
			continue
		}
		if _, seen := byName[c.Name]; !seen {
			order = append(order, c.Name)
		}
		byName[c.Name] = storedCookie{Name: c.Name, Value: c.Value, Path: c.Path}
	}
	merged := make([]storedCookie, 0, len(byName))
	for _, name := range order {
		if c, ok := byName[name]; ok {
			merged = append(merged, c)
			delete(byName, name)
		}
	}
	return Save(ctx, sess, KeyUpstreamCookies, merged)
}
