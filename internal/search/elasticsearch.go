package search

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"medstay/internal/daterange"
	"medstay/internal/models"
)

// Config описывает подключение к Elasticsearch
type Config struct {
	Enabled    bool
	URL        string
	Index      string
	Username   string
	Password   string
	MaxRetries int
	Timeout    time.Duration
}

// BookingDocument - денормализованная бронь в поисковом индексе
type BookingDocument struct {
	ID          int64     `json:"id"`
	PropertyID  int64     `json:"property_id"`
	GuestID     string    `json:"guest_id"`
	GuestName   string    `json:"guest_name"`
	GuestEmail  string    `json:"guest_email"`
	Purpose     string    `json:"purpose,omitempty"`
	Status      string    `json:"status"`
	CheckIn     string    `json:"check_in"`
	CheckOut    string    `json:"check_out"`
	Nights      int       `json:"nights"`
	TotalAmount float64   `json:"total_amount"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// NewBookingDocument строит документ из брони
func NewBookingDocument(b *models.Booking) BookingDocument {
	doc := BookingDocument{
		ID:          b.ID,
		PropertyID:  b.PropertyID,
		GuestID:     b.GuestID,
		GuestName:   b.GuestName,
		GuestEmail:  b.GuestEmail,
		Status:      string(b.Status),
		CheckIn:     daterange.Format(b.CheckIn),
		CheckOut:    daterange.Format(b.CheckOut),
		Nights:      b.Range().Nights(),
		TotalAmount: b.TotalAmount,
		UpdatedAt:   b.UpdatedAt,
	}
	if b.Purpose != nil {
		doc.Purpose = *b.Purpose
	}
	return doc
}

// Version - внешняя версия документа, растет с каждым изменением брони
func (d BookingDocument) Version() int64 {
	return d.UpdatedAt.UnixNano()
}

// BookingQuery - параметры поиска броней
type BookingQuery struct {
	Text       string
	Status     string
	PropertyID int64
	From       string
	To         string
	Page       int
	PageSize   int
}

// ElasticsearchClient представляет клиент для работы с индексом броней
type ElasticsearchClient struct {
	client *elasticsearch.Client
	config Config
}

// NewElasticsearchClient создает новый клиент Elasticsearch
func NewElasticsearchClient(cfg Config) (*ElasticsearchClient, error) {
	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses:     []string{cfg.URL},
		Username:      cfg.Username,
		Password:      cfg.Password,
		RetryOnStatus: []int{502, 503, 504, 429},
		MaxRetries:    cfg.MaxRetries,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Elasticsearch client: %w", err)
	}

	client := &ElasticsearchClient{
		client: es,
		config: cfg,
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := client.ensureIndex(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure index exists: %w", err)
	}

	return client, nil
}

// ensureIndex создает индекс если он не существует
func (c *ElasticsearchClient) ensureIndex(ctx context.Context) error {
	req := esapi.IndicesExistsRequest{
		Index: []string{c.config.Index},
	}

	res, err := req.Do(ctx, c.client)
	if err != nil {
		return fmt.Errorf("failed to check index existence: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == 200 {
		slog.Info("Elasticsearch index already exists", "index", c.config.Index)
		return nil
	}

	mappingJSON, err := json.Marshal(indexMapping())
	if err != nil {
		return fmt.Errorf("failed to marshal mapping: %w", err)
	}

	createReq := esapi.IndicesCreateRequest{
		Index: c.config.Index,
		Body:  strings.NewReader(string(mappingJSON)),
	}

	createRes, err := createReq.Do(ctx, c.client)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	defer createRes.Body.Close()

	if createRes.IsError() {
		return fmt.Errorf("failed to create index: %s", createRes.String())
	}

	slog.Info("Created Elasticsearch index", "index", c.config.Index)
	return nil
}

func indexMapping() map[string]interface{} {
	keyword := map[string]interface{}{"type": "keyword"}
	day := map[string]interface{}{"type": "date", "format": "yyyy-MM-dd"}

	return map[string]interface{}{
		"settings": map[string]interface{}{
			"number_of_shards":   1,
			"number_of_replicas": 0,
		},
		"mappings": map[string]interface{}{
			"properties": map[string]interface{}{
				"id":          map[string]interface{}{"type": "long"},
				"property_id": map[string]interface{}{"type": "long"},
				"guest_id":    keyword,
				"guest_name": map[string]interface{}{
					"type": "text",
					"fields": map[string]interface{}{
						"keyword": map[string]interface{}{
							"type":         "keyword",
							"ignore_above": 256,
						},
					},
				},
				"guest_email":  keyword,
				"purpose":      map[string]interface{}{"type": "text"},
				"status":       keyword,
				"check_in":     day,
				"check_out":    day,
				"nights":       map[string]interface{}{"type": "integer"},
				"total_amount": map[string]interface{}{"type": "scaled_float", "scaling_factor": 100},
				"updated_at":   map[string]interface{}{"type": "date"},
			},
		},
	}
}

// IndexBooking индексирует бронь. Снимок старше уже проиндексированного
// отбрасывается: индекс использует внешнюю версию по updated_at.
func (c *ElasticsearchClient) IndexBooking(ctx context.Context, doc BookingDocument) error {
	if doc.UpdatedAt.IsZero() {
		doc.UpdatedAt = time.Now()
	}

	docJSON, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal booking: %w", err)
	}

	version := int(doc.Version())
	req := esapi.IndexRequest{
		Index:       c.config.Index,
		DocumentID:  strconv.FormatInt(doc.ID, 10),
		Body:        strings.NewReader(string(docJSON)),
		Refresh:     "wait_for",
		Version:     &version,
		VersionType: "external",
	}

	res, err := req.Do(ctx, c.client)
	if err != nil {
		return fmt.Errorf("failed to index booking: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == 409 {
		slog.Debug("Stale booking snapshot skipped", "booking_id", doc.ID, "version", version)
		return nil
	}

	if res.IsError() {
		return fmt.Errorf("indexing error: %s", res.String())
	}

	return nil
}

// DeleteBooking удаляет бронь из индекса. version - момент удаления,
// он должен быть больше версии последнего снимка.
func (c *ElasticsearchClient) DeleteBooking(ctx context.Context, id int64, version int64) error {
	v := int(version)
	req := esapi.DeleteRequest{
		Index:       c.config.Index,
		DocumentID:  strconv.FormatInt(id, 10),
		Refresh:     "wait_for",
		Version:     &v,
		VersionType: "external",
	}

	res, err := req.Do(ctx, c.client)
	if err != nil {
		return fmt.Errorf("failed to delete booking: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() && res.StatusCode != 404 && res.StatusCode != 409 {
		return fmt.Errorf("delete error: %s", res.String())
	}

	return nil
}

// SearchBookings выполняет поиск броней и возвращает страницу и общее число совпадений
func (c *ElasticsearchClient) SearchBookings(ctx context.Context, q BookingQuery) ([]BookingDocument, int64, error) {
	from, size := paging(q.Page, q.PageSize)

	searchRequest := map[string]interface{}{
		"query":            buildSearchQuery(q),
		"sort":             buildSortQuery(q.Text),
		"from":             from,
		"size":             size,
		"track_total_hits": true,
	}

	searchJSON, err := json.Marshal(searchRequest)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to marshal search query: %w", err)
	}

	req := esapi.SearchRequest{
		Index: []string{c.config.Index},
		Body:  strings.NewReader(string(searchJSON)),
	}

	res, err := req.Do(ctx, c.client)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to execute search: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, 0, fmt.Errorf("search error: %s", res.String())
	}

	var response struct {
		Hits struct {
			Total struct {
				Value int64 `json:"value"`
			} `json:"total"`
			Hits []struct {
				Source BookingDocument `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}

	if err := json.NewDecoder(res.Body).Decode(&response); err != nil {
		return nil, 0, fmt.Errorf("failed to decode search response: %w", err)
	}

	docs := make([]BookingDocument, len(response.Hits.Hits))
	for i, hit := range response.Hits.Hits {
		docs[i] = hit.Source
	}

	return docs, response.Hits.Total.Value, nil
}

func paging(page, pageSize int) (from, size int) {
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	if page > 1 {
		from = (page - 1) * pageSize
	}
	return from, pageSize
}

// buildSearchQuery строит поисковый запрос
func buildSearchQuery(q BookingQuery) map[string]interface{} {
	var must []map[string]interface{}
	var filter []map[string]interface{}

	if q.Text != "" {
		must = append(must, map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":     q.Text,
				"fields":    []string{"guest_name^2", "guest_email", "purpose"},
				"fuzziness": "AUTO",
			},
		})
	}

	if q.Status != "" {
		filter = append(filter, map[string]interface{}{
			"term": map[string]interface{}{"status": q.Status},
		})
	}

	if q.PropertyID > 0 {
		filter = append(filter, map[string]interface{}{
			"term": map[string]interface{}{"property_id": q.PropertyID},
		})
	}

	// Пересечение полуоткрытых интервалов [check_in, check_out) и [from, to)
	if q.To != "" {
		filter = append(filter, map[string]interface{}{
			"range": map[string]interface{}{"check_in": map[string]interface{}{"lt": q.To}},
		})
	}
	if q.From != "" {
		filter = append(filter, map[string]interface{}{
			"range": map[string]interface{}{"check_out": map[string]interface{}{"gt": q.From}},
		})
	}

	if len(must) == 0 && len(filter) == 0 {
		return map[string]interface{}{
			"match_all": map[string]interface{}{},
		}
	}

	boolQuery := map[string]interface{}{}
	if len(must) > 0 {
		boolQuery["must"] = must
	}
	if len(filter) > 0 {
		boolQuery["filter"] = filter
	}

	return map[string]interface{}{"bool": boolQuery}
}

// buildSortQuery строит сортировку
func buildSortQuery(text string) []map[string]interface{} {
	if text != "" {
		return []map[string]interface{}{
			{"_score": map[string]interface{}{"order": "desc"}},
			{"check_in": map[string]interface{}{"order": "asc"}},
		}
	}

	return []map[string]interface{}{
		{"check_in": map[string]interface{}{"order": "asc"}},
		{"id": map[string]interface{}{"order": "asc"}},
	}
}

// HealthCheck проверяет состояние Elasticsearch
func (c *ElasticsearchClient) HealthCheck(ctx context.Context) error {
	req := esapi.ClusterHealthRequest{
		WaitForStatus: "yellow",
		Timeout:       10 * time.Second,
	}

	res, err := req.Do(ctx, c.client)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("health check error: %s", res.String())
	}

	return nil
}
