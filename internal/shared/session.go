package shared

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// SessionManager orchestrates bearer-token API sessions backed by Redis.
type SessionManager struct {
	client *redis.Client
	ttl    time.Duration
}

// Session holds the authenticated caller's identity for one token.
type Session struct {
	Token     string
	UserID    int64
	Username  string
	CreatedAt time.Time
}

type sessionPayload struct {
	UserID    int64     `json:"user_id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
}

// NewSessionManager constructs a SessionManager.
func NewSessionManager(client *redis.Client, ttl time.Duration) *SessionManager {
	return &SessionManager{client: client, ttl: ttl}
}

// Issue creates a new session for the given user and returns it.
func (sm *SessionManager) Issue(ctx context.Context, userID int64, username string) (*Session, error) {
	sess := &Session{
		Token:     generateToken(),
		UserID:    userID,
		Username:  username,
		CreatedAt: time.Now().UTC(),
	}
	data, err := json.Marshal(sessionPayload{UserID: sess.UserID, Username: sess.Username, CreatedAt: sess.CreatedAt})
	if err != nil {
		return nil, err
	}
	if err := sm.client.Set(ctx, sm.redisKey(sess.Token), data, sm.ttl).Err(); err != nil {
		return nil, err
	}
	return sess, nil
}

// Load resolves the bearer token on the request to a session.
// A missing or unknown token yields (nil, nil); callers treat that as anonymous.
func (sm *SessionManager) Load(ctx context.Context, r *http.Request) (*Session, error) {
	token := BearerToken(r)
	if token == "" {
		return nil, nil
	}
	payload, err := sm.client.Get(ctx, sm.redisKey(token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	var stored sessionPayload
	if err := json.Unmarshal(payload, &stored); err != nil {
		return nil, err
	}
	return &Session{
		Token:     token,
		UserID:    stored.UserID,
		Username:  stored.Username,
		CreatedAt: stored.CreatedAt,
	}, nil
}

// Revoke deletes the session for the given token.
func (sm *SessionManager) Revoke(ctx context.Context, token string) error {
	if err := sm.client.Del(ctx, sm.redisKey(token)).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	return nil
}

// RevokeUser deletes every session belonging to the given user.
// Used when an account is deactivated so open tokens stop working immediately.
func (sm *SessionManager) RevokeUser(ctx context.Context, userID int64) error {
	iter := sm.client.Scan(ctx, 0, "session:*", 0).Iterator()
	for iter.Next(ctx) {
		payload, err := sm.client.Get(ctx, iter.Val()).Bytes()
		if err != nil {
			continue
		}
		var stored sessionPayload
		if err := json.Unmarshal(payload, &stored); err != nil {
			continue
		}
		if stored.UserID == userID {
			_ = sm.client.Del(ctx, iter.Val()).Err()
		}
	}
	return iter.Err()
}

// TTL exposes the configured session lifetime.
func (sm *SessionManager) TTL() time.Duration {
	return sm.ttl
}

// BearerToken extracts the bearer token from the Authorization header.
func BearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func (sm *SessionManager) redisKey(token string) string {
	return "session:" + token
}

func generateToken() string {
	if id, err := uuid.NewRandom(); err == nil {
		return id.String()
	}
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return base64.RawURLEncoding.EncodeToString([]byte(time.Now().Format(time.RFC3339Nano)))
	}
	return base64.RawURLEncoding.EncodeToString(b)
}
