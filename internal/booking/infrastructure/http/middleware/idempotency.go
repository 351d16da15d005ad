package middleware

import (
	"errors"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
)

const header = "Idempotency-Key"

// Idempotency short-circuits repeated POSTs carrying the same
// Idempotency-Key. Requests without the header pass through; a redis outage
// also passes through, since duplicate bookings are annoying but losing
// writes is worse.
func Idempotency(rdb *redis.Client) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				next.ServeHTTP(w, r)
				return
			}

			key := r.Header.Get(header)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			redisKey := "http-idem:" + key

			acquired, err := rdb.SetNX(ctx, redisKey, "in_flight", 24*time.Hour).Result()
			if err != nil && !errors.Is(err, redis.Nil) {
				next.ServeHTTP(w, r)
				return
			}
			if !acquired {
				w.Header().Set("X-Idempotency-Hit", "true")
				w.WriteHeader(http.StatusConflict)
				_, _ = w.Write([]byte(`{"error":"request already processed"}`))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
