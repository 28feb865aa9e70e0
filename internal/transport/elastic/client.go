// Package elastic is the index store client. The index holds the mirrored
// listing documents; this engine queries it and bulk-indexes, but the
// publishing service owns the documents.
package elastic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/skyhive/marketdex/internal/domain"
	"github.com/skyhive/marketdex/internal/domain/listing"
	"github.com/skyhive/marketdex/internal/domain/search/index"
)

// Config holds index store connection settings.
type Config struct {
	Addresses  []string
	Username   string
	Password   string
	IndexName  string
	MaxRetries int
}

// Client wraps the Elasticsearch client for one listings index.
type Client struct {
	es    *elasticsearch.Client
	index string
}

// searchResponse is the raw decoded index search reply.
type searchResponse struct {
	Took int `json:"took"`
	Hits struct {
		Total struct {
			Value int `json:"value"`
		} `json:"total"`
		Hits []struct {
			ID     string           `json:"_id"`
			Score  float64          `json:"_score"`
			Source listing.Document `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
	Aggregations map[string]any `json:"aggregations,omitempty"`
}

func (r *searchResponse) toDomain() *index.Response {
	out := &index.Response{
		TookMS:       r.Took,
		Total:        r.Hits.Total.Value,
		Hits:         make([]index.Hit, len(r.Hits.Hits)),
		Aggregations: r.Aggregations,
	}
	for i, h := range r.Hits.Hits {
		out.Hits[i] = index.Hit{ID: h.ID, Score: h.Score, Listing: h.Source}
	}
	return out
}

// NewClient creates an index store client.
func NewClient(cfg Config) (*Client, error) {
	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses:  cfg.Addresses,
		Username:   cfg.Username,
		Password:   cfg.Password,
		MaxRetries: cfg.MaxRetries,
	})
	if err != nil {
		return nil, fmt.Errorf("create index client: %w", err)
	}
	return &Client{es: es, index: cfg.IndexName}, nil
}

// Ping checks index store reachability.
func (c *Client) Ping(ctx context.Context) error {
	res, err := c.es.Ping(c.es.Ping.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("ping index store: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("index store ping: %s", res.Status())
	}
	return nil
}

// Search executes a query body against the listings index.
func (c *Client) Search(ctx context.Context, body index.Query) (*index.Response, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return nil, fmt.Errorf("encode query: %w", err)
	}

	res, err := c.es.Search(
		c.es.Search.WithContext(ctx),
		c.es.Search.WithIndex(c.index),
		c.es.Search.WithBody(&buf),
		c.es.Search.WithTrackTotalHits(true),
	)
	if err != nil {
		return nil, fmt.Errorf("execute search: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("search: %s", errorBody(res))
	}

	var out searchResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	return out.toDomain(), nil
}

// Get retrieves a listing document by id.
// Returns domain.ErrListingNotFound for missing ids.
func (c *Client) Get(ctx context.Context, id string) (*listing.Document, error) {
	res, err := c.es.Get(c.index, id, c.es.Get.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", id, err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%s: %w", id, domain.ErrListingNotFound)
	}
	if res.IsError() {
		return nil, fmt.Errorf("get %s: %s", id, errorBody(res))
	}

	var out struct {
		Source listing.Document `json:"_source"`
	}
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return &out.Source, nil
}

// MGet retrieves several listings in one round trip. Missing ids are
// simply absent from the returned map, never an error.
func (c *Client) MGet(ctx context.Context, ids []string) (map[string]*listing.Document, error) {
	if len(ids) == 0 {
		return map[string]*listing.Document{}, nil
	}

	body, err := json.Marshal(map[string]any{"ids": ids})
	if err != nil {
		return nil, fmt.Errorf("encode mget body: %w", err)
	}

	req := esapi.MgetRequest{Index: c.index, Body: bytes.NewReader(body)}
	res, err := req.Do(ctx, c.es)
	if err != nil {
		return nil, fmt.Errorf("mget: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("mget: %s", errorBody(res))
	}

	var out struct {
		Docs []struct {
			ID     string           `json:"_id"`
			Found  bool             `json:"found"`
			Source listing.Document `json:"_source"`
		} `json:"docs"`
	}
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode mget response: %w", err)
	}

	docs := make(map[string]*listing.Document, len(out.Docs))
	for i := range out.Docs {
		if out.Docs[i].Found {
			doc := out.Docs[i].Source
			docs[out.Docs[i].ID] = &doc
		}
	}
	return docs, nil
}

// BulkIndex writes a batch of listing documents to the index.
func (c *Client) BulkIndex(ctx context.Context, docs []*listing.Document) error {
	if len(docs) == 0 {
		return nil
	}

	var buf bytes.Buffer
	for _, doc := range docs {
		meta, err := json.Marshal(map[string]any{
			"index": map[string]any{"_index": c.index, "_id": doc.ID},
		})
		if err != nil {
			return fmt.Errorf("encode bulk meta: %w", err)
		}
		data, err := json.Marshal(doc)
		if err != nil {
			return fmt.Errorf("encode document %s: %w", doc.ID, err)
		}
		buf.Write(meta)
		buf.WriteByte('\n')
		buf.Write(data)
		buf.WriteByte('\n')
	}

	res, err := c.es.Bulk(bytes.NewReader(buf.Bytes()), c.es.Bulk.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("bulk index: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("bulk index: %s", errorBody(res))
	}
	return nil
}

// errorBody renders an error response status plus body for diagnostics.
func errorBody(res *esapi.Response) string {
	body, _ := io.ReadAll(res.Body)
	return res.Status() + ": " + string(body)
}
