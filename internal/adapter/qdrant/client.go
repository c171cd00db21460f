// Package qdrant implements port.VectorStore over the Qdrant REST API.
// Metadata filters and indexes address the "metadata." payload sub-object.
package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"prodvec/internal/domain"
)

const (
	metadataPrefix = "metadata."
	scrollPageSize = 256
)

type Options struct {
	// BaseURL overrides Host/Port/HTTPS when set.
	BaseURL string
	Host    string
	Port    int
	HTTPS   bool
	APIKey  string
	Timeout time.Duration
}

type Client struct {
	baseURL string
	apiKey  string
	timeout time.Duration
	client  *http.Client

	mu        sync.Mutex
	distances map[string]domain.Distance
}

func NewClient(opts Options) *Client {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		scheme := "http"
		if opts.HTTPS {
			scheme = "https"
		}
		host := opts.Host
		if host == "" {
			host = "localhost"
		}
		port := opts.Port
		if port == 0 {
			port = 6333
		}
		baseURL = fmt.Sprintf("%s://%s:%d", scheme, host, port)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	return &Client{
		baseURL: baseURL,
		apiKey:  opts.APIKey,
		timeout: timeout,
		client: &http.Client{
			Timeout: timeout,
		},
		distances: make(map[string]domain.Distance),
	}
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) Close() error {
	c.client.CloseIdleConnections()
	return nil
}

type response struct {
	Result json.RawMessage `json:"result"`
	Status json.RawMessage `json:"status"`
}

type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("qdrant returned status %d: %s", e.code, e.body)
}

// do sends one request and decodes the "result" field into out (if non-nil).
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("%w: failed to create request: %v", domain.ErrStoreUnavailable, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("api-key", c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", domain.ErrStoreUnavailable, method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: failed to read response: %v", domain.ErrStoreUnavailable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &statusError{code: resp.StatusCode, body: preview(data)}
	}

	if out == nil {
		return nil
	}
	var r response
	if err := json.Unmarshal(data, &r); err != nil {
		return fmt.Errorf("%w: failed to parse response: %v", domain.ErrStoreUnavailable, err)
	}
	if err := json.Unmarshal(r.Result, out); err != nil {
		return fmt.Errorf("%w: unexpected result: %v", domain.ErrStoreUnavailable, err)
	}
	return nil
}

// distance returns the collection's metric, asking the server once.
func (c *Client) distance(ctx context.Context, collection string) (domain.Distance, error) {
	c.mu.Lock()
	d, ok := c.distances[collection]
	c.mu.Unlock()
	if ok {
		return d, nil
	}
	info, err := c.CollectionInfo(ctx, collection)
	if err != nil {
		return "", err
	}
	return info.Distance, nil
}

func (c *Client) rememberDistance(collection string, d domain.Distance) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if d == "" {
		delete(c.distances, collection)
		return
	}
	c.distances[collection] = d
}

// classify maps HTTP failures on a collection-scoped call to domain errors.
func classify(err error, collection string) error {
	var se *statusError
	if !errors.As(err, &se) {
		return err
	}
	switch {
	case se.code == http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrCollectionNotFound, collection)
	case se.code == http.StatusBadRequest && strings.Contains(strings.ToLower(se.body), "dimension"):
		return fmt.Errorf("%w: %s", domain.ErrDimensionMismatch, se.body)
	}
	return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, se)
}

func collectionPath(name string) string {
	return "/collections/" + url.PathEscape(name)
}

func preview(body []byte) string {
	s := string(body)
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}
