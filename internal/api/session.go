package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/MahdiBaghbani/confsync-go/internal/platform/cache"
)

// SessionCookie names the cookie carrying the session token.
const SessionCookie = "session"

// DefaultSessionTTL applies when no TTL is configured.
const DefaultSessionTTL = 24 * time.Hour

// ErrNoSession is returned for unknown or expired tokens.
var ErrNoSession = errors.New("session not found or expired")

// Sessions maps opaque tokens to user ids in the cache.
type Sessions struct {
	cache cache.Cache
	ttl   time.Duration
}

// NewSessions creates a session store. A non-positive ttl means DefaultSessionTTL.
func NewSessions(c cache.Cache, ttl time.Duration) *Sessions {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &Sessions{cache: c, ttl: ttl}
}

// TTL returns the session lifetime.
func (s *Sessions) TTL() time.Duration { return s.ttl }

// Create starts a session for userID and returns its token.
func (s *Sessions) Create(ctx context.Context, userID uint) (string, error) {
	token := uuid.NewString()
	if err := s.cache.Set(ctx, sessionKey(token), []byte(strconv.FormatUint(uint64(userID), 10)), s.ttl); err != nil {
		return "", fmt.Errorf("store session: %w", err)
	}
	return token, nil
}

// Lookup returns the user id of a live session.
func (s *Sessions) Lookup(ctx context.Context, token string) (uint, error) {
	if token == "" {
		return 0, ErrNoSession
	}
	raw, err := s.cache.Get(ctx, sessionKey(token))
	if errors.Is(err, cache.ErrNotFound) || errors.Is(err, cache.ErrExpired) {
		return 0, ErrNoSession
	}
	if err != nil {
		return 0, fmt.Errorf("load session: %w", err)
	}
	id, err := strconv.ParseUint(string(raw), 10, 64)
	if err != nil {
		return 0, ErrNoSession
	}
	return uint(id), nil
}

// Delete ends a session. Unknown tokens are ignored.
func (s *Sessions) Delete(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return s.cache.Delete(ctx, sessionKey(token))
}

func sessionKey(token string) string {
	return "session:" + token
}

// sessionToken gets the session token from the cookie or the Authorization header.
func sessionToken(r *http.Request) string {
	if cookie, err := r.Cookie(SessionCookie); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	return bearerToken(r)
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	return ""
}
