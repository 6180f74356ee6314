package clickhouse

import (
	"context"
	"fmt"
	"time"

	"trust-service/internal/client"
	"trust-service/internal/models"
	"trust-service/internal/util"
)

// SecurityEventRepository is the append-only audit trail. Events are
// partitioned by date and bucketed by user so per-user scans stay narrow.
type SecurityEventRepository struct {
	client *client.ClickHouseClient
}

func NewSecurityEventRepository(client *client.ClickHouseClient) (*SecurityEventRepository, error) {
	r := &SecurityEventRepository{client: client}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := r.ensureSchema(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure security_events schema: %w", err)
	}
	return r, nil
}

func (r *SecurityEventRepository) ensureSchema(ctx context.Context) error {
	return r.client.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS security_events (
			event_bucket       UInt16,
			event_date         Date,
			event_time         DateTime64(3),
			event_type         LowCardinality(String),
			user_id            String,
			device_fingerprint String,
			ip_address         String,
			user_agent         String,
			session_id         String,
			details            String
		)
		ENGINE = MergeTree()
		PARTITION BY toYYYYMM(event_date)
		ORDER BY (event_bucket, user_id, event_time)
		TTL event_date + INTERVAL 2 YEAR`)
}

func (r *SecurityEventRepository) InsertEvent(ctx context.Context, event *models.SecurityEvent) error {
	err := r.client.Exec(ctx, `
		INSERT INTO security_events
			(event_bucket, event_date, event_time, event_type, user_id,
			 device_fingerprint, ip_address, user_agent, session_id, details)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		uint16(event.EventBucket), event.EventDate, event.EventTime,
		string(event.EventType), event.UserID, event.DeviceFingerprint,
		event.IPAddress, event.UserAgent, event.SessionID, event.Details)
	if err != nil {
		util.Error("failed to insert security event",
			util.String("user_id", event.UserID),
			util.String("event_type", string(event.EventType)),
			util.ErrorField(err))
		return fmt.Errorf("failed to insert security event: %w", err)
	}
	return nil
}

// RecentLoginEvents returns login events for the user since the given time,
// newest first.
func (r *SecurityEventRepository) RecentLoginEvents(ctx context.Context, eventBucket int, userID string, since time.Time) ([]*models.SecurityEvent, error) {
	rows, err := r.client.QueryRows(ctx, `
		SELECT event_bucket, event_date, event_time, event_type, user_id,
		       device_fingerprint, ip_address, user_agent, session_id, details
		FROM security_events
		WHERE event_bucket = ? AND user_id = ? AND event_type = 'login'
		  AND event_time >= ?
		ORDER BY event_time DESC`,
		uint16(eventBucket), userID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query login events: %w", err)
	}
	defer rows.Close()

	var events []*models.SecurityEvent
	for rows.Next() {
		var event models.SecurityEvent
		var bucket uint16
		var eventDate time.Time
		var eventType string
		if err := rows.Scan(&bucket, &eventDate, &event.EventTime,
			&eventType, &event.UserID, &event.DeviceFingerprint,
			&event.IPAddress, &event.UserAgent, &event.SessionID,
			&event.Details); err != nil {
			return nil, fmt.Errorf("failed to scan security event: %w", err)
		}
		event.EventBucket = int(bucket)
		event.EventDate = eventDate.Format("2006-01-02")
		event.EventType = models.SecurityEventType(eventType)
		events = append(events, &event)
	}
	return events, rows.Err()
}

// CountEvents counts the user's events of one type since the given time.
func (r *SecurityEventRepository) CountEvents(ctx context.Context, eventBucket int, userID string, eventType models.SecurityEventType, since time.Time) (int, error) {
	rows, err := r.client.QueryRows(ctx, `
		SELECT count()
		FROM security_events
		WHERE event_bucket = ? AND user_id = ? AND event_type = ?
		  AND event_time >= ?`,
		uint16(eventBucket), userID, string(eventType), since)
	if err != nil {
		return 0, fmt.Errorf("failed to count security events: %w", err)
	}
	defer rows.Close()

	var count uint64
	if rows.Next() {
		if err := rows.Scan(&count); err != nil {
			return 0, fmt.Errorf("failed to scan event count: %w", err)
		}
	}
	return int(count), rows.Err()
}
