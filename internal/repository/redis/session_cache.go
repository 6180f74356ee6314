package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"trust-service/internal/client"
	"trust-service/internal/models"
	"trust-service/internal/util"
)

const (
	sessionDataPrefix  = "session_data:"
	userSessionsPrefix = "user_sessions:"
)

var ErrSessionNotFound = errors.New("session not found")

// SessionCache stores sessions as JSON blobs keyed by session ID, plus a
// per-user set of session IDs for bulk invalidation. Expiry rides on the
// Redis TTL.
type SessionCache struct {
	client *client.RedisClient
}

func NewSessionCache(client *client.RedisClient) *SessionCache {
	return &SessionCache{client: client}
}

func (c *SessionCache) SaveSession(session *models.SessionInfo, ttl time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	pipe := c.client.Pipeline()
	pipe.Set(ctx, sessionDataPrefix+session.SessionID, string(data), ttl)
	userKey := userSessionsPrefix + session.UserID
	pipe.SAdd(ctx, userKey, session.SessionID)
	pipe.Expire(ctx, userKey, ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		util.Error("failed to save session",
			util.String("user_id", session.UserID),
			util.String("session_id", session.SessionID),
			util.ErrorField(err))
		return fmt.Errorf("failed to save session: %w", err)
	}

	util.Debug("session saved",
		util.String("user_id", session.UserID),
		util.String("session_id", session.SessionID),
		util.Duration("ttl", ttl))
	return nil
}

func (c *SessionCache) GetSession(sessionID string) (*models.SessionInfo, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	data, err := c.client.Get(ctx, sessionDataPrefix+sessionID)
	if err != nil {
		if strings.Contains(err.Error(), "key not found") {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	var session models.SessionInfo
	if err := json.Unmarshal([]byte(data), &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &session, nil
}

// UpdateSession rewrites the session blob while preserving the remaining
// TTL.
func (c *SessionCache) UpdateSession(session *models.SessionInfo) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	key := sessionDataPrefix + session.SessionID
	ttl, err := c.client.TTL(ctx, key)
	if err != nil {
		return fmt.Errorf("failed to get session TTL: %w", err)
	}
	if ttl <= 0 {
		return ErrSessionNotFound
	}

	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	if err := c.client.Set(ctx, key, string(data), ttl); err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}
	return nil
}

func (c *SessionCache) DeleteSession(userID, sessionID string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pipe := c.client.Pipeline()
	pipe.Del(ctx, sessionDataPrefix+sessionID)
	pipe.SRem(ctx, userSessionsPrefix+userID, sessionID)

	if _, err := pipe.Exec(ctx); err != nil {
		util.Error("failed to delete session",
			util.String("user_id", userID),
			util.String("session_id", sessionID),
			util.ErrorField(err))
		return fmt.Errorf("failed to delete session: %w", err)
	}

	util.Info("session deleted",
		util.String("user_id", userID),
		util.String("session_id", sessionID))
	return nil
}

func (c *SessionCache) GetUserSessions(userID string) ([]string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sessions, err := c.client.SMembers(ctx, userSessionsPrefix+userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user sessions: %w", err)
	}
	return sessions, nil
}

// DeleteAllUserSessions drops every session the user holds and returns how
// many were removed.
func (c *SessionCache) DeleteAllUserSessions(userID string) (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	sessions, err := c.GetUserSessions(userID)
	if err != nil {
		return 0, err
	}
	if len(sessions) == 0 {
		return 0, nil
	}

	pipe := c.client.Pipeline()
	for _, sessionID := range sessions {
		pipe.Del(ctx, sessionDataPrefix+sessionID)
	}
	pipe.Del(ctx, userSessionsPrefix+userID)

	if _, err := pipe.Exec(ctx); err != nil {
		util.Error("failed to delete all user sessions",
			util.String("user_id", userID),
			util.Int("session_count", len(sessions)),
			util.ErrorField(err))
		return 0, fmt.Errorf("failed to delete all user sessions: %w", err)
	}

	util.Info("all user sessions deleted",
		util.String("user_id", userID),
		util.Int("session_count", len(sessions)))
	return len(sessions), nil
}
