package postgres

import (
	"context"
	"fmt"
	"time"

	"trust-service/internal/client"
	"trust-service/internal/models"
	"trust-service/internal/util"
)

// ContentFlagRepository logs one row per flag the classifier raised, for
// stats and offline analysis.
type ContentFlagRepository struct {
	client *client.PostgresClient
}

func NewContentFlagRepository(client *client.PostgresClient) *ContentFlagRepository {
	return &ContentFlagRepository{client: client}
}

func (r *ContentFlagRepository) InsertFlags(ctx context.Context, records []models.ContentFlagRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := r.client.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin content flag transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO content_flags
			(id, content_id, content_type, user_id, flag_type, severity,
			 confidence, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`)
	if err != nil {
		return fmt.Errorf("failed to prepare content flag insert: %w", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		if _, err := stmt.ExecContext(ctx, rec.ID, rec.ContentID, rec.ContentType,
			rec.UserID, rec.FlagType, rec.Severity, rec.Confidence, rec.Details,
			rec.CreatedAt); err != nil {
			return fmt.Errorf("failed to insert content flag: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit content flags: %w", err)
	}

	util.Debug("content flags logged",
		util.String("content_id", records[0].ContentID),
		util.Int("count", len(records)))
	return nil
}

// FlagsByTypeSince aggregates flag counts per type inside the timeframe.
func (r *ContentFlagRepository) FlagsByTypeSince(start, end time.Time) (map[models.FlagType]int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	rows, err := r.client.DB.QueryContext(ctx, `
		SELECT flag_type, COUNT(*)
		FROM content_flags
		WHERE created_at >= $1 AND created_at < $2
		GROUP BY flag_type`, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to count flags by type: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.FlagType]int)
	for rows.Next() {
		var flagType models.FlagType
		var count int
		if err := rows.Scan(&flagType, &count); err != nil {
			return nil, fmt.Errorf("failed to scan flag type count: %w", err)
		}
		counts[flagType] = count
	}
	return counts, rows.Err()
}
