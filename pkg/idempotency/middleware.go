package idempotency

import (
	"context"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
)

// Header carries the client-chosen key guarded by Middleware.
const Header = "Idempotency-Key"

// Checker reports whether a key was already seen within the guard TTL,
// marking it as a side effect.
type Checker interface {
	Seen(ctx context.Context, key string) (bool, error)
}

// Store marks keys in redis via SETNX so duplicate submissions are rejected
// across instances.
type Store struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewStore(rdb *redis.Client, ttl time.Duration) *Store {
	return &Store{rdb: rdb, ttl: ttl}
}

func (s *Store) Seen(ctx context.Context, key string) (bool, error) {
	ok, err := s.rdb.SetNX(ctx, key, "1", s.ttl).Result()
	if err != nil {
		return false, err
	}
	return !ok, nil
}

// Middleware rejects a request whose Idempotency-Key was already seen with
// 409. Requests without the header pass through, as do all requests while the
// checker is unreachable: the guard must not take checkout down with it.
// The key is marked before the handler runs, so a failed request burns its
// key until the TTL lapses.
func Middleware(check Checker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(Header)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}
			seen, err := check.Seen(r.Context(), "idem:order:"+key)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}
			if seen {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusConflict)
				_, _ = w.Write([]byte(`{"error":"duplicate request"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
