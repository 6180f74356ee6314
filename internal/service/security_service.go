package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"trust-service/internal/audit"
	"trust-service/internal/bucketing"
	"trust-service/internal/config"
	"trust-service/internal/hashing"
	"trust-service/internal/models"
	"trust-service/internal/ratelimit"
	"trust-service/internal/util"
)

var (
	ErrRateLimited           = errors.New("too many login attempts")
	ErrInvalidCredentials    = errors.New("invalid credentials")
	ErrSessionNotFound       = errors.New("session not found")
	ErrEventStoreUnavailable = errors.New("security event store unavailable")
)

// CredentialVerifier checks a user's credential against the identity
// backend. The trust service never sees how credentials are stored.
type CredentialVerifier interface {
	Verify(ctx context.Context, userID, credential string) (bool, error)
}

// SessionStore is the session cache.
type SessionStore interface {
	SaveSession(session *models.SessionInfo, ttl time.Duration) error
	GetSession(sessionID string) (*models.SessionInfo, error)
	UpdateSession(session *models.SessionInfo) error
	DeleteSession(userID, sessionID string) error
	DeleteAllUserSessions(userID string) (int, error)
}

// DeviceStore is the durable device registry.
type DeviceStore interface {
	Upsert(device *models.DeviceInfo) error
	ListByUser(userID string) ([]*models.DeviceInfo, error)
	Delete(userID, fingerprint string) error
	DeleteAllByUser(userID string) (int, error)
	CountByUser(userID string) (total, untrusted int, err error)
}

// EventStore is the append-only security event trail.
type EventStore interface {
	InsertEvent(ctx context.Context, event *models.SecurityEvent) error
	RecentLoginEvents(ctx context.Context, eventBucket int, userID string, since time.Time) ([]*models.SecurityEvent, error)
	CountEvents(ctx context.Context, eventBucket int, userID string, eventType models.SecurityEventType, since time.Time) (int, error)
}

// LoginRequest carries one authentication attempt.
type LoginRequest struct {
	UserID            string            `json:"user_id"`
	Credential        string            `json:"credential"`
	DeviceFingerprint string            `json:"device_fingerprint"`
	Platform          string            `json:"platform"`
	Model             string            `json:"model"`
	OSVersion         string            `json:"os_version"`
	AppVersion        string            `json:"app_version"`
	IPAddress         string            `json:"-"`
	UserAgent         string            `json:"-"`
	RememberDevice    bool              `json:"remember_device"`
	Metadata          map[string]string `json:"metadata,omitempty"`

	// SkipRateLimit bypasses login throttling. Internal callers only, set
	// after an out-of-band check such as a completed MFA challenge; never
	// decoded from a request body.
	SkipRateLimit bool `json:"-"`
}

// LoginResult is the outcome of a successful (or MFA-gated) login.
type LoginResult struct {
	SessionID   string    `json:"session_id,omitempty"`
	ExpiresAt   time.Time `json:"expires_at,omitempty"`
	RequiresMFA bool      `json:"requires_mfa"`
}

// SecurityService owns login hardening: rate limiting, suspicious activity
// detection, sessions bound to device fingerprints, and the event trail.
type SecurityService struct {
	cfg       *config.Config
	verifier  CredentialVerifier
	sessions  SessionStore
	devices   DeviceStore
	events    EventStore
	limiter   *ratelimit.Limiter
	buckets   *bucketing.Manager
	hasher    *hashing.Hasher
	publisher EventPublisher
	recorder  *audit.Recorder

	// knownFingerprints caches userID -> set of fingerprints seen this
	// process lifetime; the suspicious-activity check trusts it over the
	// event trail when deciding whether a device is new.
	knownFingerprints sync.Map
}

func NewSecurityService(
	cfg *config.Config,
	verifier CredentialVerifier,
	sessions SessionStore,
	devices DeviceStore,
	events EventStore,
	limiter *ratelimit.Limiter,
	buckets *bucketing.Manager,
	hasher *hashing.Hasher,
	publisher EventPublisher,
	recorder *audit.Recorder,
) *SecurityService {
	return &SecurityService{
		cfg:       cfg,
		verifier:  verifier,
		sessions:  sessions,
		devices:   devices,
		events:    events,
		limiter:   limiter,
		buckets:   buckets,
		hasher:    hasher,
		publisher: publisher,
		recorder:  recorder,
	}
}

// SecureLogin authenticates a user with rate limiting and suspicious
// activity checks. A suspicious attempt authenticates but gets no session;
// the caller must complete MFA first.
func (s *SecurityService) SecureLogin(ctx context.Context, req *LoginRequest) (*LoginResult, error) {
	sec := s.cfg.Security
	// Limiter keys carry the peppered identifier token, never the raw one.
	limitKey := "login:" + s.hasher.HashIdentifier(req.UserID)

	if !req.SkipRateLimit && !s.limiter.IsAllowed(limitKey, sec.MaxLoginAttempts, sec.LoginWindow) {
		remaining := s.limiter.GetRemainingTime(limitKey)
		minutes := int(remaining.Minutes()) + 1
		s.recordEvent(req, models.EventFailedLogin, "", "rate_limited")
		return nil, fmt.Errorf("%w: try again in %d minutes", ErrRateLimited, minutes)
	}

	ok, err := s.verifier.Verify(ctx, req.UserID, req.Credential)
	if err != nil {
		return nil, fmt.Errorf("credential verification failed: %w", err)
	}
	if !ok {
		s.recordEvent(req, models.EventFailedLogin, "", "credential mismatch")
		return nil, ErrInvalidCredentials
	}

	s.limiter.Reset(limitKey)

	suspicious, reason, err := s.checkSuspiciousActivity(ctx, req)
	if err != nil {
		// The event store being down must not lock users out.
		util.Warn("suspicious activity check failed, continuing",
			util.String("user_id", req.UserID),
			util.ErrorField(err))
	}
	if suspicious {
		s.recordEvent(req, models.EventSuspiciousActivity, "", reason)
		util.Warn("suspicious login, requiring MFA",
			util.String("user_id", req.UserID),
			util.String("reason", reason))
		return &LoginResult{RequiresMFA: true}, nil
	}

	ttl := sec.SessionTTL
	if req.RememberDevice {
		ttl = sec.RememberedTTL
	}

	now := time.Now().UTC()
	session := &models.SessionInfo{
		SessionID:         uuid.New().String(),
		UserID:            req.UserID,
		DeviceFingerprint: req.DeviceFingerprint,
		CreatedAt:         now,
		ExpiresAt:         now.Add(ttl),
		LastActivity:      now,
		RememberDevice:    req.RememberDevice,
	}
	if err := s.sessions.SaveSession(session, ttl); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	device := &models.DeviceInfo{
		Fingerprint: req.DeviceFingerprint,
		UserID:      req.UserID,
		Platform:    req.Platform,
		Model:       req.Model,
		OSVersion:   req.OSVersion,
		AppVersion:  req.AppVersion,
		IsTrusted:   req.RememberDevice,
		FirstSeen:   now,
		LastSeen:    now,
	}
	if err := s.devices.Upsert(device); err != nil {
		util.Warn("failed to register device, session created anyway",
			util.String("user_id", req.UserID),
			util.ErrorField(err))
	}
	s.cacheFingerprint(req.UserID, req.DeviceFingerprint)

	s.recordEvent(req, models.EventLogin, session.SessionID, "")

	util.Info("login succeeded",
		util.String("user_id", req.UserID),
		util.String("session_id", session.SessionID),
		util.Bool("remembered", req.RememberDevice))

	return &LoginResult{
		SessionID: session.SessionID,
		ExpiresAt: session.ExpiresAt,
	}, nil
}

// checkSuspiciousActivity looks at the last day of login events. A login
// from an unseen device while several distinct devices are already active,
// or an unusually high login count, is suspicious.
func (s *SecurityService) checkSuspiciousActivity(ctx context.Context, req *LoginRequest) (bool, string, error) {
	if s.events == nil {
		return false, "", ErrEventStoreUnavailable
	}

	sec := s.cfg.Security
	bucket := s.buckets.GetEventBucket(req.UserID)
	since := time.Now().UTC().Add(-24 * time.Hour)

	events, err := s.events.RecentLoginEvents(ctx, bucket, req.UserID, since)
	if err != nil {
		return false, "", err
	}

	// A cache hit means this process already saw the device log in; the
	// event scan then only feeds the distinct-device count.
	fingerprintToken := s.hasher.HashFingerprint(req.DeviceFingerprint)
	distinct := make(map[string]bool)
	seen := s.IsKnownFingerprint(req.UserID, req.DeviceFingerprint)
	for _, event := range events {
		distinct[event.DeviceFingerprint] = true
		if event.DeviceFingerprint == fingerprintToken {
			seen = true
		}
	}

	if !seen && len(distinct) > sec.MaxRecentDevices {
		return true, "new device while multiple devices active", nil
	}
	if len(events) > sec.MaxRecentLogins {
		return true, "unusually high login frequency", nil
	}
	return false, "", nil
}

// ValidateSession checks existence, expiry and fingerprint binding, in that
// order. A fingerprint mismatch invalidates the session. A valid check
// refreshes the activity timestamp.
func (s *SecurityService) ValidateSession(ctx context.Context, sessionID, deviceFingerprint string) (bool, error) {
	session, err := s.sessions.GetSession(sessionID)
	if err != nil {
		return false, nil
	}

	now := time.Now().UTC()
	if session.Expired(now) {
		_ = s.sessions.DeleteSession(session.UserID, sessionID)
		return false, nil
	}

	if session.DeviceFingerprint != deviceFingerprint {
		req := &LoginRequest{
			UserID:            session.UserID,
			DeviceFingerprint: deviceFingerprint,
		}
		s.recordEvent(req, models.EventSuspiciousActivity, sessionID, "session fingerprint mismatch")
		util.Warn("session fingerprint mismatch, invalidating",
			util.String("user_id", session.UserID),
			util.String("session_id", sessionID))
		_ = s.sessions.DeleteSession(session.UserID, sessionID)
		return false, nil
	}

	session.LastActivity = now
	if err := s.sessions.UpdateSession(session); err != nil {
		util.Warn("failed to refresh session activity",
			util.String("session_id", sessionID),
			util.ErrorField(err))
	}
	return true, nil
}

// InvalidateSession ends one session and logs the logout.
func (s *SecurityService) InvalidateSession(ctx context.Context, sessionID string) error {
	session, err := s.sessions.GetSession(sessionID)
	if err != nil {
		return ErrSessionNotFound
	}

	if err := s.sessions.DeleteSession(session.UserID, sessionID); err != nil {
		return err
	}

	req := &LoginRequest{
		UserID:            session.UserID,
		DeviceFingerprint: session.DeviceFingerprint,
	}
	s.recordEvent(req, models.EventLogout, sessionID, "")
	return nil
}

// ForceLogoutAllDevices drops every session the user holds, clears the
// device registry for the account and returns how many sessions ended. The
// user re-registers devices on their next logins.
func (s *SecurityService) ForceLogoutAllDevices(ctx context.Context, userID string) (int, error) {
	count, err := s.sessions.DeleteAllUserSessions(userID)
	if err != nil {
		return 0, err
	}

	removed, err := s.devices.DeleteAllByUser(userID)
	if err != nil {
		util.Warn("failed to clear device registry on forced logout",
			util.String("user_id", userID),
			util.ErrorField(err))
	}
	s.knownFingerprints.Delete(userID)

	req := &LoginRequest{UserID: userID}
	s.recordEvent(req, models.EventDeviceChange, "",
		fmt.Sprintf("forced logout of %d sessions, %d devices removed", count, removed))

	util.Info("forced logout of all devices",
		util.String("user_id", userID),
		util.Int("session_count", count),
		util.Int("device_count", removed))
	return count, nil
}

// GetUserDevices lists the user's registered devices.
func (s *SecurityService) GetUserDevices(ctx context.Context, userID string) ([]*models.DeviceInfo, error) {
	return s.devices.ListByUser(userID)
}

// RevokeDeviceAccess removes a device registration and logs the change.
// Sessions bound to the device die at their next validation.
func (s *SecurityService) RevokeDeviceAccess(ctx context.Context, userID, fingerprint string) error {
	if err := s.devices.Delete(userID, fingerprint); err != nil {
		return err
	}
	s.uncacheFingerprint(userID, fingerprint)

	req := &LoginRequest{UserID: userID, DeviceFingerprint: fingerprint}
	s.recordEvent(req, models.EventDeviceChange, "", "device access revoked")
	return nil
}

// GetSecurityScore computes a 0 to 100 account health score. Recent
// suspicious activity weighs heaviest, then failed logins, then device
// sprawl and untrusted devices.
func (s *SecurityService) GetSecurityScore(ctx context.Context, userID string) (int, error) {
	if s.events == nil {
		return 0, ErrEventStoreUnavailable
	}

	sec := s.cfg.Security
	bucket := s.buckets.GetEventBucket(userID)
	now := time.Now().UTC()

	suspicious, err := s.events.CountEvents(ctx, bucket, userID,
		models.EventSuspiciousActivity, now.Add(-sec.SuspiciousLookback))
	if err != nil {
		return 0, fmt.Errorf("failed to count suspicious events: %w", err)
	}

	failed, err := s.events.CountEvents(ctx, bucket, userID,
		models.EventFailedLogin, now.Add(-sec.FailedLoginLookback))
	if err != nil {
		return 0, fmt.Errorf("failed to count failed logins: %w", err)
	}

	total, untrusted, err := s.devices.CountByUser(userID)
	if err != nil {
		return 0, fmt.Errorf("failed to count devices: %w", err)
	}

	score := 100
	score -= 10 * suspicious
	score -= 5 * failed
	if total > sec.MaxTrustedDevices {
		score -= 5 * (total - sec.MaxTrustedDevices)
	}
	score -= 10 * untrusted

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return score, nil
}

// recordEvent writes a security event to the trail and the bus, best
// effort. Fingerprints and IPs are tokenized before they leave the process.
func (s *SecurityService) recordEvent(req *LoginRequest, eventType models.SecurityEventType, sessionID, details string) {
	now := time.Now().UTC()
	event := &models.SecurityEvent{
		EventBucket: s.buckets.GetEventBucket(req.UserID),
		EventDate:   s.buckets.GetDateBucket(now),
		EventTime:   now,
		EventType:   eventType,
		UserID:      req.UserID,
		SessionID:   sessionID,
		UserAgent:   req.UserAgent,
		Details:     details,
	}
	if req.DeviceFingerprint != "" {
		event.DeviceFingerprint = s.hasher.HashFingerprint(req.DeviceFingerprint)
	}
	if req.IPAddress != "" {
		event.IPAddress = s.hasher.HashIP(req.IPAddress)
	}

	if s.events != nil {
		s.recorder.Submit(audit.Record{
			Name: "security_event_" + string(eventType),
			Run: func(ctx context.Context) error {
				return s.events.InsertEvent(ctx, event)
			},
		})
	}

	if s.publisher != nil {
		payload, err := json.Marshal(event)
		if err != nil {
			util.Warn("failed to marshal security event", util.ErrorField(err))
			return
		}
		// Key by user bucket: one user's events stay on one partition and
		// key cardinality stays bounded.
		key := []byte(strconv.Itoa(s.buckets.GetUserBucket(req.UserID)))
		s.recorder.Submit(audit.Record{
			Name: "publish_security_event",
			Run: func(ctx context.Context) error {
				return s.publisher.ProduceMessage(ctx, key, payload, map[string]string{
					"event_type": string(eventType),
				})
			},
		})
	}
}

func (s *SecurityService) cacheFingerprint(userID, fingerprint string) {
	set, _ := s.knownFingerprints.LoadOrStore(userID, &sync.Map{})
	set.(*sync.Map).Store(fingerprint, true)
}

func (s *SecurityService) uncacheFingerprint(userID, fingerprint string) {
	if set, ok := s.knownFingerprints.Load(userID); ok {
		set.(*sync.Map).Delete(fingerprint)
	}
}

// IsKnownFingerprint reports whether this process has seen the device log
// in before. Misses are expected after restart; callers must treat this as
// a hint only.
func (s *SecurityService) IsKnownFingerprint(userID, fingerprint string) bool {
	set, ok := s.knownFingerprints.Load(userID)
	if !ok {
		return false
	}
	_, known := set.(*sync.Map).Load(fingerprint)
	return known
}
