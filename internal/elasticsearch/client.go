package elasticsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/DeafMist/truthguard/backend/internal/lang"
	"github.com/DeafMist/truthguard/backend/internal/logger"
	"github.com/DeafMist/truthguard/backend/internal/models"
)

// maxLanguageBuckets bounds the language terms aggregation.
const maxLanguageBuckets = 100

// Client stores analysis records in one Elasticsearch index.
type Client struct {
	es    *elasticsearch.Client
	index string
	log   *slog.Logger
	now   func() time.Time
}

// New instantiates the Elasticsearch client.
func New(addr, index string, log *slog.Logger) (*Client, error) {
	cfg := elasticsearch.Config{
		Addresses: []string{addr},
	}

	es, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("create elasticsearch client: %w", err)
	}

	return &Client{es: es, index: index, log: logger.Discard(log), now: time.Now}, nil
}

var indexMapping = map[string]any{
	"mappings": map[string]any{
		"properties": map[string]any{
			"id":                 map[string]any{"type": "keyword"},
			"userId":             map[string]any{"type": "keyword"},
			"createdAt":          map[string]any{"type": "date"},
			"fingerprint":        map[string]any{"type": "keyword"},
			"newsTitle":          map[string]any{"type": "text"},
			"newsContent":        map[string]any{"type": "text"},
			"detectedLanguage":   map[string]any{"type": "keyword"},
			"isFakeNews":         map[string]any{"type": "boolean"},
			"fakeProbability":    map[string]any{"type": "double"},
			"confidenceScore":    map[string]any{"type": "double"},
			"modelUsed":          map[string]any{"type": "keyword"},
			"keywords":           map[string]any{"type": "keyword"},
			"featureScores":      map[string]any{"type": "object", "enabled": false},
			"analysisFeatures":   map[string]any{"type": "keyword", "index": false},
			"analysisDurationMs": map[string]any{"type": "long"},
			"userFeedback":       map[string]any{"type": "text"},
			"feedbackRating":     map[string]any{"type": "integer"},
		},
	},
}

// EnsureIndex creates the index with its mapping when it does not exist.
func (c *Client) EnsureIndex(ctx context.Context) error {
	res, err := c.es.Indices.Exists([]string{c.index}, c.es.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("check index: %w", err)
	}
	res.Body.Close()
	if res.StatusCode == http.StatusOK {
		return nil
	}

	payload, err := json.Marshal(indexMapping)
	if err != nil {
		return fmt.Errorf("marshal mapping: %w", err)
	}

	res, err = c.es.Indices.Create(
		c.index,
		c.es.Indices.Create.WithContext(ctx),
		c.es.Indices.Create.WithBody(bytes.NewReader(payload)),
	)
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		// A concurrent creator won the race.
		if strings.Contains(string(body), "resource_already_exists_exception") {
			return nil
		}
		return fmt.Errorf("create index failed: %s", strings.TrimSpace(string(body)))
	}
	c.log.Info("elasticsearch index created", slog.String("index", c.index))
	return nil
}

// Save writes a record under its id.
func (c *Client) Save(ctx context.Context, rec models.AnalysisRecord) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	req := esapi.IndexRequest{
		Index:      c.index,
		DocumentID: rec.ID,
		Body:       bytes.NewReader(payload),
		Refresh:    "false",
	}

	res, err := req.Do(ctx, c.es)
	if err != nil {
		return fmt.Errorf("index record: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return fmt.Errorf("index record failed: %s", strings.TrimSpace(string(body)))
	}

	return nil
}

// History returns one page of a user's records, newest first. Pages are
// zero-based.
func (c *Client) History(ctx context.Context, userID string, page, size int) (*models.HistoryPage, error) {
	if size <= 0 {
		size = 20
	}
	page = max(0, min(page, models.MaxHistoryWindow))

	// Pages past the result window only report the total.
	from, limit := page*size, size
	if from+size > models.MaxHistoryWindow {
		from, limit = 0, 0
	}

	body := map[string]any{
		"from":             from,
		"size":             limit,
		"track_total_hits": true,
		"query":            userQuery(userID),
		"sort": []map[string]any{
			{"createdAt": map[string]any{"order": "desc"}},
		},
	}

	var parsed struct {
		Hits struct {
			Total struct {
				Value int64 `json:"value"`
			} `json:"total"`
			Hits []struct {
				Source models.AnalysisRecord `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := c.search(ctx, body, &parsed); err != nil {
		return nil, err
	}

	items := make([]models.AnalysisRecord, 0, len(parsed.Hits.Hits))
	for _, hit := range parsed.Hits.Hits {
		if limit == 0 {
			break
		}
		items = append(items, hit.Source)
	}

	out := models.NewHistoryPage(items, parsed.Hits.Total.Value, page, size)
	return &out, nil
}

// UserStats counts a user's records and how many were judged fake.
func (c *Client) UserStats(ctx context.Context, userID string) (*models.UserStats, error) {
	body := map[string]any{
		"size":             0,
		"track_total_hits": true,
		"query":            userQuery(userID),
		"aggs": map[string]any{
			"fake": map[string]any{
				"filter": map[string]any{"term": map[string]any{"isFakeNews": true}},
			},
		},
	}

	var parsed struct {
		Hits struct {
			Total struct {
				Value int64 `json:"value"`
			} `json:"total"`
		} `json:"hits"`
		Aggregations struct {
			Fake struct {
				DocCount int64 `json:"doc_count"`
			} `json:"fake"`
		} `json:"aggregations"`
	}
	if err := c.search(ctx, body, &parsed); err != nil {
		return nil, err
	}

	stats := models.NewUserStats(parsed.Hits.Total.Value, parsed.Aggregations.Fake.DocCount)
	return &stats, nil
}

// LanguageStats aggregates counts, average confidence and fake share per
// detected language, ordered by count.
func (c *Client) LanguageStats(ctx context.Context) ([]models.LanguageStats, error) {
	body := map[string]any{
		"size": 0,
		"aggs": map[string]any{
			"languages": map[string]any{
				"terms": map[string]any{"field": "detectedLanguage", "size": maxLanguageBuckets},
				"aggs": map[string]any{
					"avg_confidence": map[string]any{"avg": map[string]any{"field": "confidenceScore"}},
					"fake": map[string]any{
						"filter": map[string]any{"term": map[string]any{"isFakeNews": true}},
					},
				},
			},
		},
	}

	var parsed struct {
		Aggregations struct {
			Languages struct {
				Buckets []struct {
					Key           string `json:"key"`
					DocCount      int64  `json:"doc_count"`
					AvgConfidence struct {
						Value *float64 `json:"value"`
					} `json:"avg_confidence"`
					Fake struct {
						DocCount int64 `json:"doc_count"`
					} `json:"fake"`
				} `json:"buckets"`
			} `json:"languages"`
		} `json:"aggregations"`
	}
	if err := c.search(ctx, body, &parsed); err != nil {
		return nil, err
	}

	out := make([]models.LanguageStats, 0, len(parsed.Aggregations.Languages.Buckets))
	for _, b := range parsed.Aggregations.Languages.Buckets {
		avg := 0.0
		if b.AvgConfidence.Value != nil {
			avg = models.Round2(*b.AvgConfidence.Value)
		}
		out = append(out, models.LanguageStats{
			Language:           lang.Code(b.Key),
			Count:              b.DocCount,
			AverageConfidence:  avg,
			FakeNewsPercentage: models.Percentage(b.Fake.DocCount, b.DocCount),
		})
	}
	return out, nil
}

// SetFeedback attaches user feedback to a record owned by userID.
func (c *Client) SetFeedback(ctx context.Context, id, userID string, fb models.Feedback) error {
	res, err := c.es.Get(c.index, id, c.es.Get.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("get record: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return models.ErrNotFound
	}
	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return fmt.Errorf("get record failed: %s", strings.TrimSpace(string(body)))
	}

	var doc struct {
		Found  bool `json:"found"`
		Source struct {
			UserID string `json:"userId"`
		} `json:"_source"`
	}
	if err := json.NewDecoder(res.Body).Decode(&doc); err != nil {
		return fmt.Errorf("decode record: %w", err)
	}
	if !doc.Found {
		return models.ErrNotFound
	}
	if doc.Source.UserID != userID {
		return models.ErrForbidden
	}

	payload, err := json.Marshal(map[string]any{
		"doc": map[string]any{
			"userFeedback":   fb.Feedback,
			"feedbackRating": fb.Rating,
		},
	})
	if err != nil {
		return fmt.Errorf("marshal feedback: %w", err)
	}

	upd, err := c.es.Update(c.index, id, bytes.NewReader(payload), c.es.Update.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("update record: %w", err)
	}
	defer upd.Body.Close()

	if upd.StatusCode == http.StatusNotFound {
		return models.ErrNotFound
	}
	if upd.IsError() {
		body, _ := io.ReadAll(upd.Body)
		return fmt.Errorf("update record failed: %s", strings.TrimSpace(string(body)))
	}
	return nil
}

// DeleteOlderThan removes records older than maxAge using batched delete-by-query.
// It loops until a batch returns fewer deleted documents than the requested batchSize.
func (c *Client) DeleteOlderThan(ctx context.Context, maxAge time.Duration, batchSize int) (int64, error) {
	if batchSize <= 0 {
		batchSize = 1000
	}

	cutoff := c.now().Add(-maxAge).UTC().Format(time.RFC3339)
	totalDeleted := int64(0)

	for {
		body := map[string]any{
			"query": map[string]any{
				"range": map[string]any{
					"createdAt": map[string]any{
						"lte": cutoff,
					},
				},
			},
		}

		payload, err := json.Marshal(body)
		if err != nil {
			return totalDeleted, fmt.Errorf("marshal delete body: %w", err)
		}

		res, err := c.es.DeleteByQuery(
			[]string{c.index},
			bytes.NewReader(payload),
			c.es.DeleteByQuery.WithContext(ctx),
			c.es.DeleteByQuery.WithWaitForCompletion(true),
			c.es.DeleteByQuery.WithConflicts("proceed"),
			c.es.DeleteByQuery.WithScrollSize(batchSize),
			c.es.DeleteByQuery.WithMaxDocs(batchSize),
		)
		if err != nil {
			return totalDeleted, fmt.Errorf("delete by query: %w", err)
		}

		if res.IsError() {
			data, _ := io.ReadAll(res.Body)
			res.Body.Close()
			return totalDeleted, fmt.Errorf("delete by query failed: %s", strings.TrimSpace(string(data)))
		}

		var parsed struct {
			Deleted int64 `json:"deleted"`
		}
		if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
			res.Body.Close()
			return totalDeleted, fmt.Errorf("decode delete response: %w", err)
		}
		res.Body.Close()

		totalDeleted += parsed.Deleted

		if parsed.Deleted < int64(batchSize) {
			break
		}
	}

	return totalDeleted, nil
}

// Health checks cluster health.
func (c *Client) Health(ctx context.Context) error {
	res, err := c.es.Cluster.Health(c.es.Cluster.Health.WithContext(ctx))
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(res.Body)
		return fmt.Errorf("cluster health bad: %s", strings.TrimSpace(string(data)))
	}
	return nil
}

// Close is a no-op; the HTTP transport holds no per-client resources.
func (c *Client) Close() error {
	return nil
}

func userQuery(userID string) map[string]any {
	return map[string]any{
		"bool": map[string]any{
			"filter": []map[string]any{
				{"term": map[string]any{"userId": userID}},
			},
		},
	}
}

func (c *Client) search(ctx context.Context, body map[string]any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal search body: %w", err)
	}

	res, err := c.es.Search(
		c.es.Search.WithContext(ctx),
		c.es.Search.WithIndex(c.index),
		c.es.Search.WithBody(bytes.NewReader(payload)),
	)
	if err != nil {
		return fmt.Errorf("search: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		data, _ := io.ReadAll(res.Body)
		return fmt.Errorf("search failed: %s", strings.TrimSpace(string(data)))
	}

	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("decode search response: %w", err)
	}
	return nil
}
