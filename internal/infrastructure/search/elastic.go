package search

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

// NewESClient creates an Elasticsearch client with sane defaults and optional basic auth.
func NewESClient(addrs []string, username, password string) (*elasticsearch.Client, error) {
	cfg := elasticsearch.Config{
		Addresses: addrs,
		Username:  username,
		Password:  password,
		Transport: &http.Transport{
			MaxIdleConnsPerHost:   10,
			ResponseHeaderTimeout: 5 * time.Second,
			TLSClientConfig:       &tls.Config{MinVersion: tls.VersionTLS12},
			DialContext:           (&net.Dialer{Timeout: 5 * time.Second}).DialContext,
		},
	}
	return elasticsearch.NewClient(cfg)
}

// Elastic implements Searcher on a single Elasticsearch index. Document ids
// are Document.Key() so different types never collide.
type Elastic struct {
	es      *elasticsearch.Client
	index   string
	timeout time.Duration
}

func NewElastic(es *elasticsearch.Client, index string) *Elastic {
	return &Elastic{es: es, index: index, timeout: 3 * time.Second}
}

func (e *Elastic) Index(ctx context.Context, d Document) error {
	b, err := json.Marshal(d)
	if err != nil {
		return err
	}
	req := esapi.IndexRequest{Index: e.index, DocumentID: d.Key(), Body: bytes.NewReader(b), Refresh: "false"}
	c, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	res, err := req.Do(c, e.es)
	if err != nil {
		return fmt.Errorf("es index %s: %w", d.Key(), err)
	}
	defer func() { _ = res.Body.Close() }()
	if res.IsError() {
		return fmt.Errorf("es index %s: %s", d.Key(), res.Status())
	}
	return nil
}

func (e *Elastic) Delete(ctx context.Context, docType DocType, id string) error {
	key := string(docType) + ":" + id
	req := esapi.DeleteRequest{Index: e.index, DocumentID: key}
	c, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	res, err := req.Do(c, e.es)
	if err != nil {
		return fmt.Errorf("es delete %s: %w", key, err)
	}
	defer func() { _ = res.Body.Close() }()
	if res.IsError() && res.StatusCode != http.StatusNotFound {
		return fmt.Errorf("es delete %s: %s", key, res.Status())
	}
	return nil
}

// buildQuery renders q as an Elasticsearch bool query.
func buildQuery(q Query) map[string]any {
	var filters []map[string]any
	if len(q.Types) > 0 {
		filters = append(filters, map[string]any{"terms": map[string]any{"type": q.Types}})
	}
	if q.City != "" {
		filters = append(filters, map[string]any{"match": map[string]any{"city": q.City}})
	}
	boolQ := map[string]any{
		"must": map[string]any{
			"multi_match": map[string]any{
				"query":     q.Text,
				"fields":    []string{"title^3", "tags^2", "body"},
				"fuzziness": "AUTO",
			},
		},
	}
	if len(filters) > 0 {
		boolQ["filter"] = filters
	}
	return map[string]any{
		"query": map[string]any{"bool": boolQ},
		"from":  q.Offset,
		"size":  q.Limit,
		"sort": []any{
			"_score",
			map[string]any{"created_at": map[string]any{"order": "desc"}},
		},
	}
}

func (e *Elastic) Search(ctx context.Context, q Query) (Result, error) {
	q = q.Normalize()
	b, err := json.Marshal(buildQuery(q))
	if err != nil {
		return Result{}, err
	}

	c, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	res, err := e.es.Search(
		e.es.Search.WithContext(c),
		e.es.Search.WithIndex(e.index),
		e.es.Search.WithBody(bytes.NewReader(b)),
		e.es.Search.WithTrackTotalHits(true),
	)
	if err != nil {
		return Result{}, err
	}
	defer func() {
		_ = res.Body.Close()
	}()
	if res.IsError() {
		return Result{}, fmt.Errorf("es search: %s", res.Status())
	}

	var parsed struct {
		Hits struct {
			Total struct {
				Value int `json:"value"`
			} `json:"total"`
			Hits []struct {
				Score  float64  `json:"_score"`
				Source Document `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return Result{}, err
	}

	out := Result{Total: parsed.Hits.Total.Value, Hits: make([]Hit, 0, len(parsed.Hits.Hits))}
	for _, h := range parsed.Hits.Hits {
		out.Hits = append(out.Hits, Hit{Document: h.Source, Score: h.Score})
	}
	return out, nil
}

var _ Searcher = (*Elastic)(nil)
