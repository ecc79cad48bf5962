package opensearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/loykin/fuzzbridge/internal/history"
)

// Sink sends events to OpenSearch via HTTP.
// Each event is indexed as baseURL/index/_doc/<run id>, so a retried send
// overwrites instead of duplicating.
type Sink struct {
	client  *http.Client
	baseURL string
	index   string
}

func New(baseURL, index string) *Sink {
	c := &http.Client{Timeout: 5 * time.Second}
	return &Sink{client: c, baseURL: strings.TrimRight(baseURL, "/"), index: index}
}

func (s *Sink) Send(ctx context.Context, e history.Event) error {
	u := fmt.Sprintf("%s/%s/_doc", s.baseURL, url.PathEscape(s.index))
	method := http.MethodPost
	if e.Record.RunID != "" {
		u += "/" + url.PathEscape(e.Record.RunID)
		method = http.MethodPut
	}
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, method, u, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("opensearch sink status %d", resp.StatusCode)
	}
	return nil
}

// Recent returns up to limit events, newest first, via _search.
func (s *Sink) Recent(ctx context.Context, limit int) ([]history.Event, error) {
	q := fmt.Sprintf(`{"size":%s,"sort":[{"occurred_at":{"order":"desc"}}]}`, strconv.Itoa(limit))
	u := fmt.Sprintf("%s/%s/_search", s.baseURL, url.PathEscape(s.index))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, strings.NewReader(q))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("opensearch search status %d", resp.StatusCode)
	}
	var body struct {
		Hits struct {
			Hits []struct {
				Source history.Event `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode opensearch response: %w", err)
	}
	out := make([]history.Event, 0, len(body.Hits.Hits))
	for _, h := range body.Hits.Hits {
		out = append(out, h.Source)
	}
	return out, nil
}

// Close is a no-op; the HTTP client holds no resources that need releasing.
func (s *Sink) Close() error { return nil }
