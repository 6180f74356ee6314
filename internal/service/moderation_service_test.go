package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trust-service/internal/audit"
	"trust-service/internal/models"
	"trust-service/internal/moderation"
)

type fakeQueueRepo struct {
	mu        sync.Mutex
	items     map[string]*models.ModerationQueueItem
	insertErr error
}

func newFakeQueueRepo() *fakeQueueRepo {
	return &fakeQueueRepo{items: make(map[string]*models.ModerationQueueItem)}
}

func (f *fakeQueueRepo) Insert(item *models.ModerationQueueItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return f.insertErr
	}
	copied := *item
	f.items[item.ID] = &copied
	return nil
}

func (f *fakeQueueRepo) List(filters models.QueueFilters) ([]*models.ModerationQueueItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.ModerationQueueItem
	for _, item := range f.items {
		if filters.Status != "" && item.Status != filters.Status {
			continue
		}
		out = append(out, item)
	}
	return out, nil
}

func (f *fakeQueueRepo) GetByID(itemID string) (*models.ModerationQueueItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.items[itemID]
	if !ok {
		return nil, errors.New("not found")
	}
	return item, nil
}

func (f *fakeQueueRepo) Review(itemID string, status models.QueueStatus, reviewedBy, notes string, reviewedAt time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.items[itemID]
	if !ok || item.Status != models.QueuePending {
		return false, nil
	}
	item.Status = status
	item.ReviewedBy = reviewedBy
	item.Notes = notes
	item.ReviewedAt = &reviewedAt
	return true, nil
}

func (f *fakeQueueRepo) CountByStatus(start, end time.Time) (map[models.QueueStatus]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	counts := make(map[models.QueueStatus]int)
	for _, item := range f.items {
		counts[item.Status]++
	}
	return counts, nil
}

func (f *fakeQueueRepo) CountAutoFlaggedSince(since time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, item := range f.items {
		if item.AutoFlagged {
			count++
		}
	}
	return count, nil
}

func (f *fakeQueueRepo) AvgReviewTime(start, end time.Time) (time.Duration, error) {
	return 42 * time.Second, nil
}

func (f *fakeQueueRepo) single(t *testing.T) *models.ModerationQueueItem {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.Len(t, f.items, 1)
	for _, item := range f.items {
		return item
	}
	return nil
}

type fakeFlagRepo struct {
	mu      sync.Mutex
	records []models.ContentFlagRecord
}

func (f *fakeFlagRepo) InsertFlags(ctx context.Context, records []models.ContentFlagRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, records...)
	return nil
}

func (f *fakeFlagRepo) FlagsByTypeSince(start, end time.Time) (map[models.FlagType]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	counts := make(map[models.FlagType]int)
	for _, rec := range f.records {
		counts[rec.FlagType]++
	}
	return counts, nil
}

type fakeQueueIndexer struct {
	mu      sync.Mutex
	indexed []string
	hits    []string
	err     error
}

func (f *fakeQueueIndexer) IndexItem(ctx context.Context, item *models.ModerationQueueItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.indexed = append(f.indexed, item.ID)
	return nil
}

func (f *fakeQueueIndexer) SearchContent(ctx context.Context, text string, limit int) ([]string, error) {
	return f.hits, f.err
}

func newModerationService(queueRepo *fakeQueueRepo, flagRepo *fakeFlagRepo, recorder *audit.Recorder) *ModerationService {
	return NewModerationService(
		moderation.NewClassifier(),
		moderation.NewEngine(moderation.DefaultThresholds()),
		queueRepo,
		flagRepo,
		nil,
		nil,
		recorder,
	)
}

func TestModerateContent_CleanContentApproved(t *testing.T) {
	queueRepo := newFakeQueueRepo()
	flagRepo := &fakeFlagRepo{}
	recorder := audit.NewRecorder(16)
	defer recorder.Close()
	svc := newModerationService(queueRepo, flagRepo, recorder)

	result, err := svc.ModerateContent(context.Background(), &models.ContentItem{
		Type:    models.ContentTypeComment,
		Content: "Great product, works well!",
		UserID:  "u1",
	})

	require.NoError(t, err)
	assert.True(t, result.IsApproved)
	assert.Equal(t, models.ActionApprove, result.Action)
	assert.Empty(t, queueRepo.items)
}

func TestModerateContent_FlaggedContentEnqueued(t *testing.T) {
	queueRepo := newFakeQueueRepo()
	flagRepo := &fakeFlagRepo{}
	recorder := audit.NewRecorder(16)
	svc := newModerationService(queueRepo, flagRepo, recorder)

	result, err := svc.ModerateContent(context.Background(), &models.ContentItem{
		Type:    models.ContentTypeListing,
		Content: "FUCK THIS FREE MONEY DEAL CALL 555-123-4567 AT https://bit.ly/scam",
		UserID:  "u1",
	})

	require.NoError(t, err)
	assert.False(t, result.IsApproved)
	assert.True(t, result.RequiresManualReview)

	item := queueRepo.single(t)
	assert.Equal(t, models.QueuePending, item.Status)
	assert.True(t, item.AutoFlagged)
	assert.True(t, item.ManualReviewRequired)
	assert.Equal(t, 5, item.Priority)
	assert.Equal(t, "u1", item.UserID)

	recorder.Close()
	flagRepo.mu.Lock()
	defer flagRepo.mu.Unlock()
	assert.Equal(t, len(result.Flags), len(flagRepo.records))
}

func TestModerateContent_EmptyContentRejected(t *testing.T) {
	recorder := audit.NewRecorder(16)
	defer recorder.Close()
	svc := newModerationService(newFakeQueueRepo(), &fakeFlagRepo{}, recorder)

	_, err := svc.ModerateContent(context.Background(), &models.ContentItem{
		Type:   models.ContentTypePost,
		UserID: "u1",
	})
	assert.ErrorIs(t, err, ErrEmptyContent)
}

func TestModerateContent_QueueInsertFailureSurfaces(t *testing.T) {
	queueRepo := newFakeQueueRepo()
	queueRepo.insertErr = errors.New("db down")
	recorder := audit.NewRecorder(16)
	defer recorder.Close()
	svc := newModerationService(queueRepo, &fakeFlagRepo{}, recorder)

	_, err := svc.ModerateContent(context.Background(), &models.ContentItem{
		Type:    models.ContentTypeListing,
		Content: "check https://bit.ly/abc",
		UserID:  "u1",
	})
	assert.Error(t, err)
}

func TestReviewModerationItem(t *testing.T) {
	queueRepo := newFakeQueueRepo()
	recorder := audit.NewRecorder(16)
	defer recorder.Close()
	svc := newModerationService(queueRepo, &fakeFlagRepo{}, recorder)

	queueRepo.items["item-1"] = &models.ModerationQueueItem{
		ID:     "item-1",
		Status: models.QueuePending,
	}

	err := svc.ReviewModerationItem("item-1", models.DecisionApprove, "reviewer-1", "looks fine")
	require.NoError(t, err)
	assert.Equal(t, models.QueueApproved, queueRepo.items["item-1"].Status)
	assert.Equal(t, "reviewer-1", queueRepo.items["item-1"].ReviewedBy)

	// A second decision on the same item must not change the stored row.
	err = svc.ReviewModerationItem("item-1", models.DecisionReject, "reviewer-2", "")
	assert.ErrorIs(t, err, ErrItemNotReviewable)
	assert.Equal(t, models.QueueApproved, queueRepo.items["item-1"].Status)
	assert.Equal(t, "reviewer-1", queueRepo.items["item-1"].ReviewedBy)
}

func TestReviewModerationItem_InvalidDecision(t *testing.T) {
	recorder := audit.NewRecorder(16)
	defer recorder.Close()
	svc := newModerationService(newFakeQueueRepo(), &fakeFlagRepo{}, recorder)

	err := svc.ReviewModerationItem("item-1", models.ReviewDecision("promote"), "reviewer-1", "")
	assert.ErrorIs(t, err, ErrInvalidDecision)
}

func TestReviewModerationItem_Escalate(t *testing.T) {
	queueRepo := newFakeQueueRepo()
	recorder := audit.NewRecorder(16)
	defer recorder.Close()
	svc := newModerationService(queueRepo, &fakeFlagRepo{}, recorder)

	queueRepo.items["item-1"] = &models.ModerationQueueItem{
		ID:     "item-1",
		Status: models.QueuePending,
	}

	require.NoError(t, svc.ReviewModerationItem("item-1", models.DecisionEscalate, "reviewer-1", "needs senior review"))
	assert.Equal(t, models.QueueEscalated, queueRepo.items["item-1"].Status)
}

func TestSearchModerationQueue(t *testing.T) {
	queueRepo := newFakeQueueRepo()
	recorder := audit.NewRecorder(16)
	defer recorder.Close()

	queueRepo.items["item-1"] = &models.ModerationQueueItem{ID: "item-1", Status: models.QueuePending}
	indexer := &fakeQueueIndexer{hits: []string{"item-1", "item-gone"}}
	svc := NewModerationService(
		moderation.NewClassifier(),
		moderation.NewEngine(moderation.DefaultThresholds()),
		queueRepo,
		&fakeFlagRepo{},
		indexer,
		nil,
		recorder,
	)

	items, err := svc.SearchModerationQueue(context.Background(), "scam link", 10)
	require.NoError(t, err)

	// Hits that no longer resolve against the store are dropped.
	require.Len(t, items, 1)
	assert.Equal(t, "item-1", items[0].ID)

	_, err = svc.SearchModerationQueue(context.Background(), "", 10)
	assert.ErrorIs(t, err, ErrEmptySearchQuery)
}

func TestSearchModerationQueue_NoIndexer(t *testing.T) {
	recorder := audit.NewRecorder(16)
	defer recorder.Close()
	svc := newModerationService(newFakeQueueRepo(), &fakeFlagRepo{}, recorder)

	_, err := svc.SearchModerationQueue(context.Background(), "anything", 10)
	assert.ErrorIs(t, err, ErrSearchUnavailable)
}

func TestGetModerationStats(t *testing.T) {
	queueRepo := newFakeQueueRepo()
	flagRepo := &fakeFlagRepo{}
	recorder := audit.NewRecorder(16)
	defer recorder.Close()
	svc := newModerationService(queueRepo, flagRepo, recorder)

	queueRepo.items["a"] = &models.ModerationQueueItem{ID: "a", Status: models.QueuePending, AutoFlagged: true}
	queueRepo.items["b"] = &models.ModerationQueueItem{ID: "b", Status: models.QueueApproved}
	queueRepo.items["c"] = &models.ModerationQueueItem{ID: "c", Status: models.QueueRejected, AutoFlagged: true}
	flagRepo.records = []models.ContentFlagRecord{
		{FlagType: models.FlagSpam},
		{FlagType: models.FlagSpam},
		{FlagType: models.FlagProfanity},
	}

	stats, err := svc.GetModerationStats(context.Background(), "week")
	require.NoError(t, err)

	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 1, stats.Pending)
	assert.Equal(t, 1, stats.Approved)
	assert.Equal(t, 1, stats.Rejected)
	assert.Equal(t, 2, stats.FlaggedToday)
	assert.Equal(t, 42*time.Second, stats.AvgReviewTime)
	assert.Equal(t, 2, stats.FlagsByType[models.FlagSpam])
	assert.Equal(t, 1, stats.FlagsByType[models.FlagProfanity])
}

func TestGetModerationStats_InvalidTimeframe(t *testing.T) {
	recorder := audit.NewRecorder(16)
	defer recorder.Close()
	svc := newModerationService(newFakeQueueRepo(), &fakeFlagRepo{}, recorder)

	_, err := svc.GetModerationStats(context.Background(), "year")
	assert.ErrorIs(t, err, ErrInvalidTimeframe)
}
