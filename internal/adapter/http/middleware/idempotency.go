package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"banking/internal/usecase"
)

const (
	// IdempotencyKeyHeader is the header name for idempotency keys.
	IdempotencyKeyHeader = "Idempotency-Key"

	defaultIdempotencyTTL = 24 * time.Hour
	maxReplayBodyBytes    = 1 << 20
)

// IdempotencyMiddleware replays cached responses for repeated idempotent
// requests. A cache entry is scoped to (route, sender, key) and carries a
// fingerprint of the request payload: a different sender reusing the same key
// never sees another sender's response, and a same-sender request with a
// different payload falls through so the transfer engine can reject the key
// reuse. This is a fast path only; the ledger's unique constraint stays
// authoritative, so a cache wipe costs performance, never correctness.
type IdempotencyMiddleware struct {
	store usecase.IdempotencyStore
	ttl   time.Duration
}

// NewIdempotencyMiddleware creates a new IdempotencyMiddleware. A
// non-positive ttl falls back to the default retention window.
func NewIdempotencyMiddleware(store usecase.IdempotencyStore, ttl time.Duration) *IdempotencyMiddleware {
	if ttl <= 0 {
		ttl = defaultIdempotencyTTL
	}
	return &IdempotencyMiddleware{store: store, ttl: ttl}
}

// cachedResponse is the envelope stored per (route, sender, key).
type cachedResponse struct {
	Fingerprint string `json:"fingerprint"`
	Status      int    `json:"status"`
	Body        []byte `json:"body"`
}

// Wrap wraps an http.Handler with idempotency checking.
func (m *IdempotencyMiddleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Only apply to mutating requests
		if r.Method != http.MethodPost && r.Method != http.MethodPut {
			next.ServeHTTP(w, r)
			return
		}

		key := r.Header.Get(IdempotencyKeyHeader)
		if key == "" {
			next.ServeHTTP(w, r)
			return
		}

		payload, err := readBody(r)
		if err != nil {
			http.Error(w, "failed to read request body", http.StatusBadRequest)
			return
		}

		fingerprint := payloadFingerprint(payload)
		cacheKey := replayCacheKey(r, payload, key)

		exists, cached, err := m.store.CheckAndSet(r.Context(), cacheKey, nil, m.ttl)
		if err != nil {
			http.Error(w, "idempotency check failed", http.StatusInternalServerError)
			return
		}

		if exists {
			var envelope cachedResponse
			// An undecodable entry is the in-flight placeholder; fall through
			// and let the engine's replay check decide.
			if unmarshalErr := json.Unmarshal(cached, &envelope); unmarshalErr == nil {
				if envelope.Fingerprint == fingerprint {
					w.Header().Set("Content-Type", "application/json")
					w.Header().Set("X-Idempotency-Replay", "true")
					w.WriteHeader(envelope.Status)
					w.Write(envelope.Body)
					return
				}
				// Same sender, same key, different payload: the engine
				// surfaces the key reuse as a conflict.
			}
		}

		// Capture response
		recorder := &responseRecorder{
			ResponseWriter: w,
			body:           &bytes.Buffer{},
			statusCode:     http.StatusOK,
		}
		next.ServeHTTP(recorder, r)

		// Store response for future idempotent requests
		if recorder.statusCode >= 200 && recorder.statusCode < 300 {
			envelope, marshalErr := json.Marshal(cachedResponse{
				Fingerprint: fingerprint,
				Status:      recorder.statusCode,
				Body:        recorder.body.Bytes(),
			})
			if marshalErr == nil {
				m.store.Update(r.Context(), cacheKey, envelope, m.ttl)
			}
		}
	})
}

// readBody consumes and restores the request body so the handler can decode
// it again.
func readBody(r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxReplayBodyBytes))
	if err != nil {
		return nil, err
	}
	r.Body.Close()
	r.Body = io.NopCloser(bytes.NewReader(payload))

	return payload, nil
}

// replayCacheKey scopes a cache entry to the route, the sender, and the
// client-supplied key.
func replayCacheKey(r *http.Request, payload []byte, key string) string {
	var body struct {
		SenderID string `json:"sender_id"`
	}
	// Best effort: requests without a sender (account creation) are still
	// scoped by route and payload fingerprint.
	_ = json.Unmarshal(payload, &body)

	return r.Method + " " + r.URL.Path + "|" + body.SenderID + "|" + key
}

func payloadFingerprint(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

type responseRecorder struct {
	http.ResponseWriter
	statusCode int
	body       *bytes.Buffer
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}

func (r *responseRecorder) WriteHeader(statusCode int) {
	r.statusCode = statusCode
	r.ResponseWriter.WriteHeader(statusCode)
}
