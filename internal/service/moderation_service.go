package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"trust-service/internal/audit"
	"trust-service/internal/models"
	"trust-service/internal/moderation"
	"trust-service/internal/util"
)

var (
	ErrEmptyContent      = errors.New("content item has no text or images")
	ErrInvalidDecision   = errors.New("invalid review decision")
	ErrInvalidTimeframe  = errors.New("invalid stats timeframe")
	ErrItemNotReviewable = errors.New("queue item missing or already reviewed")
	ErrEmptySearchQuery  = errors.New("search query is empty")
	ErrSearchUnavailable = errors.New("moderation search index unavailable")
)

// QueueRepository is the durable moderation queue.
type QueueRepository interface {
	Insert(item *models.ModerationQueueItem) error
	List(filters models.QueueFilters) ([]*models.ModerationQueueItem, error)
	GetByID(itemID string) (*models.ModerationQueueItem, error)
	Review(itemID string, status models.QueueStatus, reviewedBy, notes string, reviewedAt time.Time) (bool, error)
	CountByStatus(start, end time.Time) (map[models.QueueStatus]int, error)
	CountAutoFlaggedSince(since time.Time) (int, error)
	AvgReviewTime(start, end time.Time) (time.Duration, error)
}

// FlagRepository logs raised flags for stats.
type FlagRepository interface {
	InsertFlags(ctx context.Context, records []models.ContentFlagRecord) error
	FlagsByTypeSince(start, end time.Time) (map[models.FlagType]int, error)
}

// QueueIndexer mirrors queue items into a search index and serves reviewer
// full-text lookups over it.
type QueueIndexer interface {
	IndexItem(ctx context.Context, item *models.ModerationQueueItem) error
	SearchContent(ctx context.Context, text string, limit int) ([]string, error)
}

// EventPublisher pushes trust events to the bus.
type EventPublisher interface {
	ProduceMessage(ctx context.Context, key, value []byte, headers map[string]string) error
}

// ModerationService classifies content, routes it through the decision
// engine and manages the review queue. Queue inserts are awaited; flag
// logging, search indexing and event publishing ride the audit recorder.
type ModerationService struct {
	classifier *moderation.Classifier
	engine     *moderation.Engine
	queueRepo  QueueRepository
	flagRepo   FlagRepository
	indexer    QueueIndexer
	publisher  EventPublisher
	recorder   *audit.Recorder
}

func NewModerationService(
	classifier *moderation.Classifier,
	engine *moderation.Engine,
	queueRepo QueueRepository,
	flagRepo FlagRepository,
	indexer QueueIndexer,
	publisher EventPublisher,
	recorder *audit.Recorder,
) *ModerationService {
	return &ModerationService{
		classifier: classifier,
		engine:     engine,
		queueRepo:  queueRepo,
		flagRepo:   flagRepo,
		indexer:    indexer,
		publisher:  publisher,
		recorder:   recorder,
	}
}

// ModerateContent classifies the item and returns the verdict. A panic in
// classification yields the safest possible verdict instead of an approval.
func (s *ModerationService) ModerateContent(ctx context.Context, item *models.ContentItem) (result *models.ModerationResult, err error) {
	if item.Content == "" && len(item.Images) == 0 {
		return nil, ErrEmptyContent
	}
	if item.ID == "" {
		item.ID = uuid.New().String()
	}
	if util.ContainsSuspicious(item.Content) {
		util.Warn("active markup stripped from submitted content",
			util.String("content_id", item.ID),
			util.String("user_id", item.UserID))
	}
	item.Content = util.SanitizeInput(item.Content)

	defer func() {
		if r := recover(); r != nil {
			util.Error("content classification panicked",
				util.String("content_id", item.ID),
				util.Any("panic", r))
			safest := moderation.SafestResult()
			result = &safest
			err = nil
			s.enqueueForReview(ctx, item, result)
		}
	}()

	flags := s.classifier.Classify(item)
	verdict := s.engine.Decide(flags)
	result = &verdict

	util.Info("content moderated",
		util.String("content_id", item.ID),
		util.String("user_id", item.UserID),
		util.String("action", string(verdict.Action)),
		util.Bool("manual_review", verdict.RequiresManualReview),
		util.String("flags", moderation.DescribeFlags(flags)))

	if len(flags) > 0 {
		s.logFlags(item, flags)
	}
	if verdict.Action != models.ActionApprove {
		if err := s.enqueueForReview(ctx, item, result); err != nil {
			return nil, err
		}
	}
	s.publishVerdict(item, result)

	return result, nil
}

func (s *ModerationService) enqueueForReview(ctx context.Context, item *models.ContentItem, result *models.ModerationResult) error {
	queueItem := &models.ModerationQueueItem{
		ID:                   uuid.New().String(),
		ContentID:            item.ID,
		ContentType:          item.Type,
		Content:              item.Content,
		Images:               item.Images,
		UserID:               item.UserID,
		Priority:             moderation.PriorityFromFlags(result.Flags),
		Status:               models.QueuePending,
		Flags:                result.Flags,
		AutoFlagged:          len(result.Flags) > 0,
		ManualReviewRequired: result.RequiresManualReview,
		CreatedAt:            time.Now().UTC(),
	}

	if err := s.queueRepo.Insert(queueItem); err != nil {
		return fmt.Errorf("failed to enqueue content for review: %w", err)
	}

	if s.indexer != nil {
		itemCopy := *queueItem
		s.recorder.Submit(audit.Record{
			Name: "index_queue_item",
			Run: func(ctx context.Context) error {
				return s.indexer.IndexItem(ctx, &itemCopy)
			},
		})
	}
	return nil
}

func (s *ModerationService) logFlags(item *models.ContentItem, flags []models.ModerationFlag) {
	now := time.Now().UTC()
	records := make([]models.ContentFlagRecord, 0, len(flags))
	for _, f := range flags {
		records = append(records, models.ContentFlagRecord{
			ID:          uuid.New().String(),
			ContentID:   item.ID,
			ContentType: item.Type,
			UserID:      item.UserID,
			FlagType:    f.Type,
			Severity:    f.Severity,
			Confidence:  f.Confidence,
			Details:     f.Details,
			CreatedAt:   now,
		})
	}

	s.recorder.Submit(audit.Record{
		Name: "log_content_flags",
		Run: func(ctx context.Context) error {
			return s.flagRepo.InsertFlags(ctx, records)
		},
	})
}

func (s *ModerationService) publishVerdict(item *models.ContentItem, result *models.ModerationResult) {
	if s.publisher == nil {
		return
	}

	payload, err := json.Marshal(map[string]interface{}{
		"content_id":    item.ID,
		"content_type":  item.Type,
		"user_id":       item.UserID,
		"action":        result.Action,
		"confidence":    result.Confidence,
		"manual_review": result.RequiresManualReview,
		"flag_count":    len(result.Flags),
		"moderated_at":  time.Now().UTC(),
	})
	if err != nil {
		util.Warn("failed to marshal moderation verdict", util.ErrorField(err))
		return
	}

	key := []byte(item.ID)
	s.recorder.Submit(audit.Record{
		Name: "publish_moderation_verdict",
		Run: func(ctx context.Context) error {
			return s.publisher.ProduceMessage(ctx, key, payload, map[string]string{
				"event_type": "moderation_verdict",
			})
		},
	})
}

// GetModerationQueue lists queue items, highest priority first.
func (s *ModerationService) GetModerationQueue(filters models.QueueFilters) ([]*models.ModerationQueueItem, error) {
	return s.queueRepo.List(filters)
}

// ReviewModerationItem applies a reviewer decision to a pending item.
// Items already in a terminal state are left untouched and reported via
// ErrItemNotReviewable.
func (s *ModerationService) ReviewModerationItem(itemID string, decision models.ReviewDecision, reviewedBy, notes string) error {
	status, ok := decision.Status()
	if !ok {
		return fmt.Errorf("%w: %q", ErrInvalidDecision, decision)
	}

	reviewedAt := time.Now().UTC()
	applied, err := s.queueRepo.Review(itemID, status, reviewedBy, notes, reviewedAt)
	if err != nil {
		return err
	}
	if !applied {
		return ErrItemNotReviewable
	}

	util.Info("moderation item reviewed",
		util.String("item_id", itemID),
		util.String("decision", string(decision)),
		util.String("reviewed_by", reviewedBy))

	if s.indexer != nil {
		s.recorder.Submit(audit.Record{
			Name: "reindex_reviewed_item",
			Run: func(ctx context.Context) error {
				item, err := s.queueRepo.GetByID(itemID)
				if err != nil {
					return err
				}
				return s.indexer.IndexItem(ctx, item)
			},
		})
	}
	return nil
}

// SearchModerationQueue runs a reviewer full-text search over indexed
// content and notes, then resolves the hits against the queue store. Items
// indexed but since purged from the store are skipped.
func (s *ModerationService) SearchModerationQueue(ctx context.Context, query string, limit int) ([]*models.ModerationQueueItem, error) {
	if s.indexer == nil {
		return nil, ErrSearchUnavailable
	}
	if query == "" {
		return nil, ErrEmptySearchQuery
	}

	ids, err := s.indexer.SearchContent(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search moderation queue: %w", err)
	}

	items := make([]*models.ModerationQueueItem, 0, len(ids))
	for _, id := range ids {
		item, err := s.queueRepo.GetByID(id)
		if err != nil {
			util.Warn("indexed item missing from queue store",
				util.String("item_id", id),
				util.ErrorField(err))
			continue
		}
		items = append(items, item)
	}
	return items, nil
}

// GetModerationStats aggregates queue and flag counters for a timeframe of
// "day", "week" or "month". The independent queries run concurrently.
func (s *ModerationService) GetModerationStats(ctx context.Context, timeframe string) (*models.ModerationStats, error) {
	now := time.Now().UTC()
	var start time.Time
	switch timeframe {
	case "day":
		start = now.AddDate(0, 0, -1)
	case "week":
		start = now.AddDate(0, 0, -7)
	case "month":
		start = now.AddDate(0, -1, 0)
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidTimeframe, timeframe)
	}

	stats := &models.ModerationStats{
		TimeframeStart: start,
		TimeframeEnd:   now,
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	g, _ := errgroup.WithContext(ctx)

	g.Go(func() error {
		counts, err := s.queueRepo.CountByStatus(start, now)
		if err != nil {
			return err
		}
		stats.Pending = counts[models.QueuePending]
		stats.Approved = counts[models.QueueApproved]
		stats.Rejected = counts[models.QueueRejected]
		for _, c := range counts {
			stats.Total += c
		}
		return nil
	})
	g.Go(func() error {
		flagged, err := s.queueRepo.CountAutoFlaggedSince(today)
		if err != nil {
			return err
		}
		stats.FlaggedToday = flagged
		return nil
	})
	g.Go(func() error {
		avg, err := s.queueRepo.AvgReviewTime(start, now)
		if err != nil {
			return err
		}
		stats.AvgReviewTime = avg
		return nil
	})
	g.Go(func() error {
		byType, err := s.flagRepo.FlagsByTypeSince(start, now)
		if err != nil {
			return err
		}
		stats.FlagsByType = byType
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to aggregate moderation stats: %w", err)
	}
	return stats, nil
}
