package elastic

import (
	"context"
	"fmt"

	"trust-service/internal/client"
	"trust-service/internal/config"
	"trust-service/internal/models"
	"trust-service/internal/util"
)

// ModerationIndex mirrors queue items into Elasticsearch so reviewers can
// full-text search content and notes. The Postgres queue stays the source
// of truth; a failed index write is logged and dropped.
type ModerationIndex struct {
	client *client.ESClient
	index  string
}

func NewModerationIndex(esClient *client.ESClient, cfg *config.Config) *ModerationIndex {
	return &ModerationIndex{
		client: esClient,
		index:  cfg.Elasticsearch.Index,
	}
}

func (m *ModerationIndex) IndexItem(ctx context.Context, item *models.ModerationQueueItem) error {
	res, err := m.client.IndexDocument(ctx, m.index, item.ID, item)
	if err != nil {
		return fmt.Errorf("failed to index moderation item: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("failed to index moderation item: %s", res.Status())
	}

	util.Debug("moderation item indexed",
		util.String("item_id", item.ID),
		util.String("index", m.index))
	return nil
}

// SearchContent runs a full-text match over content and notes and returns
// the matching item IDs.
func (m *ModerationIndex) SearchContent(ctx context.Context, text string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 50
	}

	query := map[string]interface{}{
		"size":    limit,
		"_source": false,
		"query": map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":  text,
				"fields": []string{"content", "notes"},
			},
		},
	}

	res, err := m.client.Search(ctx, m.index, query)
	if err != nil {
		return nil, fmt.Errorf("failed to search moderation index: %w", err)
	}

	var parsed struct {
		Hits struct {
			Hits []struct {
				ID string `json:"_id"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := m.client.ParseResponse(res, &parsed); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(parsed.Hits.Hits))
	for _, hit := range parsed.Hits.Hits {
		ids = append(ids, hit.ID)
	}
	return ids, nil
}
