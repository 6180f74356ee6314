package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"trust-service/internal/client"
	"trust-service/internal/models"
	"trust-service/internal/util"
)

var ErrQueueItemNotFound = errors.New("moderation queue item not found")

// ModerationQueueRepository persists the review queue. Terminal rows are
// immutable: a second review of the same item is a no-op.
type ModerationQueueRepository struct {
	client *client.PostgresClient
}

func NewModerationQueueRepository(client *client.PostgresClient) *ModerationQueueRepository {
	return &ModerationQueueRepository{client: client}
}

func (r *ModerationQueueRepository) Insert(item *models.ModerationQueueItem) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	flags, err := json.Marshal(item.Flags)
	if err != nil {
		return fmt.Errorf("failed to marshal flags: %w", err)
	}
	images, err := json.Marshal(item.Images)
	if err != nil {
		return fmt.Errorf("failed to marshal images: %w", err)
	}

	_, err = r.client.DB.ExecContext(ctx, `
		INSERT INTO moderation_queue
			(id, content_id, content_type, content, images, user_id, priority,
			 status, flags, auto_flagged, manual_review_required, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		item.ID, item.ContentID, item.ContentType, item.Content, images,
		item.UserID, item.Priority, item.Status, flags, item.AutoFlagged,
		item.ManualReviewRequired, item.CreatedAt)
	if err != nil {
		util.Error("failed to insert moderation queue item",
			util.String("item_id", item.ID),
			util.String("content_id", item.ContentID),
			util.ErrorField(err))
		return fmt.Errorf("failed to insert moderation queue item: %w", err)
	}

	util.Debug("moderation queue item inserted",
		util.String("item_id", item.ID),
		util.Int("priority", item.Priority))
	return nil
}

// List returns queue items ordered by priority, newest first within a
// priority.
func (r *ModerationQueueRepository) List(filters models.QueueFilters) ([]*models.ModerationQueueItem, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	query := `
		SELECT id, content_id, content_type, content, images, user_id, priority,
		       status, flags, auto_flagged, manual_review_required, created_at,
		       reviewed_at, reviewed_by, notes
		FROM moderation_queue
		WHERE 1=1`
	args := []interface{}{}

	if filters.Status != "" {
		args = append(args, filters.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if filters.ContentType != "" {
		args = append(args, filters.ContentType)
		query += fmt.Sprintf(" AND content_type = $%d", len(args))
	}

	query += " ORDER BY priority DESC, created_at DESC"

	limit := filters.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit)
	query += fmt.Sprintf(" LIMIT $%d", len(args))

	if filters.Offset > 0 {
		args = append(args, filters.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.client.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list moderation queue: %w", err)
	}
	defer rows.Close()

	var items []*models.ModerationQueueItem
	for rows.Next() {
		item, err := scanQueueItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate moderation queue rows: %w", err)
	}
	return items, nil
}

func (r *ModerationQueueRepository) GetByID(itemID string) (*models.ModerationQueueItem, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	row := r.client.DB.QueryRowContext(ctx, `
		SELECT id, content_id, content_type, content, images, user_id, priority,
		       status, flags, auto_flagged, manual_review_required, created_at,
		       reviewed_at, reviewed_by, notes
		FROM moderation_queue
		WHERE id = $1`, itemID)

	item, err := scanQueueItem(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrQueueItemNotFound
		}
		return nil, err
	}
	return item, nil
}

// Review moves a pending item to its terminal state. Returns false when the
// item does not exist or was already reviewed; the stored row is untouched
// either way.
func (r *ModerationQueueRepository) Review(itemID string, status models.QueueStatus, reviewedBy, notes string, reviewedAt time.Time) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	res, err := r.client.DB.ExecContext(ctx, `
		UPDATE moderation_queue
		SET status = $1, reviewed_at = $2, reviewed_by = $3, notes = $4
		WHERE id = $5 AND status = 'pending'`,
		status, reviewedAt, reviewedBy, notes, itemID)
	if err != nil {
		util.Error("failed to review moderation queue item",
			util.String("item_id", itemID),
			util.ErrorField(err))
		return false, fmt.Errorf("failed to review moderation queue item: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return affected == 1, nil
}

// CountByStatus returns row counts per queue status inside the timeframe.
func (r *ModerationQueueRepository) CountByStatus(start, end time.Time) (map[models.QueueStatus]int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	rows, err := r.client.DB.QueryContext(ctx, `
		SELECT status, COUNT(*)
		FROM moderation_queue
		WHERE created_at >= $1 AND created_at < $2
		GROUP BY status`, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to count queue items by status: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.QueueStatus]int)
	for rows.Next() {
		var status models.QueueStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan status count: %w", err)
		}
		counts[status] = count
	}
	return counts, rows.Err()
}

// CountAutoFlaggedSince counts items the classifier flagged since the given
// time.
func (r *ModerationQueueRepository) CountAutoFlaggedSince(since time.Time) (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var count int
	err := r.client.DB.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM moderation_queue
		WHERE auto_flagged = TRUE AND created_at >= $1`, since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count auto-flagged items: %w", err)
	}
	return count, nil
}

// AvgReviewTime returns the mean pending-to-reviewed latency for items
// reviewed inside the timeframe.
func (r *ModerationQueueRepository) AvgReviewTime(start, end time.Time) (time.Duration, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var seconds sql.NullFloat64
	err := r.client.DB.QueryRowContext(ctx, `
		SELECT AVG(EXTRACT(EPOCH FROM (reviewed_at - created_at)))
		FROM moderation_queue
		WHERE reviewed_at IS NOT NULL
		  AND reviewed_at >= $1 AND reviewed_at < $2`, start, end).Scan(&seconds)
	if err != nil {
		return 0, fmt.Errorf("failed to compute average review time: %w", err)
	}
	if !seconds.Valid {
		return 0, nil
	}
	return time.Duration(seconds.Float64 * float64(time.Second)), nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanQueueItem(row rowScanner) (*models.ModerationQueueItem, error) {
	var item models.ModerationQueueItem
	var flags, images []byte
	var reviewedAt pq.NullTime
	var reviewedBy, notes sql.NullString

	err := row.Scan(&item.ID, &item.ContentID, &item.ContentType, &item.Content,
		&images, &item.UserID, &item.Priority, &item.Status, &flags,
		&item.AutoFlagged, &item.ManualReviewRequired, &item.CreatedAt,
		&reviewedAt, &reviewedBy, &notes)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(flags, &item.Flags); err != nil {
		return nil, fmt.Errorf("failed to unmarshal flags: %w", err)
	}
	if err := json.Unmarshal(images, &item.Images); err != nil {
		return nil, fmt.Errorf("failed to unmarshal images: %w", err)
	}
	if reviewedAt.Valid {
		t := reviewedAt.Time
		item.ReviewedAt = &t
	}
	item.ReviewedBy = reviewedBy.String
	item.Notes = notes.String
	return &item, nil
}
