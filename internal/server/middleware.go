package server

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"log/slog"
	"net"
	"net/http"
	"strings"
)

const (
	// APIKeyPrefix distinguishes dexcom-sync API keys from other
	// bearer credentials a client might misconfigure.
	APIKeyPrefix = "ds_"

	// APIKeyMinLen is the minimum accepted key length: the prefix
	// plus 32 hex characters (128 bits of entropy).
	APIKeyMinLen = len(APIKeyPrefix) + 32
)

type contextKey int

const (
	ctxUserID contextKey = iota
	ctxRemoteIP
)

// RequestUserID returns the authenticated user ID from the context, or "".
func RequestUserID(ctx context.Context) string {
	v, _ := ctx.Value(ctxUserID).(string)
	return v
}

// RequestRemoteIP returns the client IP from the context, or "".
func RequestRemoteIP(ctx context.Context) string {
	v, _ := ctx.Value(ctxRemoteIP).(string)
	return v
}

// KeySet maps SHA-256 digests of configured API keys to user IDs. Keys
// are hashed at construction so raw key material is not held in memory
// for the life of the process.
type KeySet struct {
	byHash map[[sha256.Size]byte]string
}

// NewKeySet builds a KeySet from userID -> raw key pairs.
func NewKeySet(keys map[string]string) *KeySet {
	ks := &KeySet{byHash: make(map[[sha256.Size]byte]string, len(keys))}

	for userID, key := range keys {
		ks.byHash[sha256.Sum256([]byte(key))] = userID
	}

	return ks
}

// Lookup returns the user ID for a presented key, or "" when the key is
// unknown. Every stored digest is compared in constant time so the
// response latency does not depend on which key matched.
func (ks *KeySet) Lookup(key string) string {
	h := sha256.Sum256([]byte(key))

	var match string

	for stored, userID := range ks.byHash {
		if subtle.ConstantTimeCompare(h[:], stored[:]) == 1 {
			match = userID
		}
	}

	return match
}

// Middleware returns HTTP middleware that validates API keys presented
// as Bearer tokens. Unauthenticated requests get a 401 with a
// WWW-Authenticate challenge.
func Middleware(keys *KeySet, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")

			ip, _, err := net.SplitHostPort(r.RemoteAddr)
			if err != nil {
				ip = r.RemoteAddr
			}

			if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
				logger.Debug("middleware: no bearer token",
					slog.String("ip", ip),
					slog.String("path", r.URL.Path),
				)
				w.Header().Set("WWW-Authenticate", `Bearer realm="dexcom-sync"`)
				w.WriteHeader(http.StatusUnauthorized)

				return
			}

			key := strings.TrimPrefix(authHeader, "Bearer ")

			if !strings.HasPrefix(key, APIKeyPrefix) || len(key) < APIKeyMinLen {
				logger.Debug("middleware: malformed API key",
					slog.String("ip", ip),
					slog.String("path", r.URL.Path),
				)
				w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
				w.WriteHeader(http.StatusUnauthorized)

				return
			}

			userID := keys.Lookup(key)
			if userID == "" {
				logger.Debug("middleware: unknown API key",
					slog.String("ip", ip),
					slog.String("path", r.URL.Path),
				)
				w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
				w.WriteHeader(http.StatusUnauthorized)

				return
			}

			logger.Debug("middleware: authenticated via API key",
				slog.String("user_id", userID),
				slog.String("ip", ip),
			)

			// Inject authenticated identity into the request context
			// so downstream handlers (MCP tools) can log it.
			ctx := r.Context()
			ctx = context.WithValue(ctx, ctxUserID, userID)
			ctx = context.WithValue(ctx, ctxRemoteIP, ip)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
