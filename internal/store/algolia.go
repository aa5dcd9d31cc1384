package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	syncerr "github.com/Mill3/1ou2cocktails-algolia-sync/internal/errors"
	"github.com/Mill3/1ou2cocktails-algolia-sync/internal/index"
	"github.com/Mill3/1ou2cocktails-algolia-sync/internal/logging"
	"github.com/Mill3/1ou2cocktails-algolia-sync/internal/record"
	"github.com/Mill3/1ou2cocktails-algolia-sync/pkg/version"
)

const (
	// DefaultAlgoliaTimeout bounds a single request attempt.
	DefaultAlgoliaTimeout = 30 * time.Second

	algoliaPoolSize = 8
)

// AlgoliaConfig configures AlgoliaClient.
type AlgoliaConfig struct {
	ApplicationID string
	APIKey        string

	// Host replaces both the read and write hosts when set.
	Host string

	Timeout time.Duration
	Retry   syncerr.RetryConfig
}

// AlgoliaClient implements index.Client over the hosted search REST API.
type AlgoliaClient struct {
	cfg       AlgoliaConfig
	client    *http.Client
	transport *http.Transport
	readHost  string
	writeHost string
	logger    *slog.Logger
}

// NewAlgoliaClient validates credentials and creates a client. No request is
// made until the first call.
func NewAlgoliaClient(cfg AlgoliaConfig, logger *slog.Logger) (*AlgoliaClient, error) {
	if cfg.ApplicationID == "" || cfg.APIKey == "" {
		return nil, syncerr.New(syncerr.ErrCodeMissingCredentials, "index service credentials are missing", nil).
			WithSuggestion("set ALGOLIA_APPLICATION_ID and ALGOLIA_ADMIN_API_KEY")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultAlgoliaTimeout
	}
	if cfg.Retry.Multiplier == 0 {
		cfg.Retry = syncerr.DefaultRetryConfig()
	}

	// Per-request timeouts come from the context so cancellation works.
	transport := &http.Transport{
		MaxIdleConns:        algoliaPoolSize,
		MaxIdleConnsPerHost: algoliaPoolSize,
		IdleConnTimeout:     30 * time.Second,
	}

	c := &AlgoliaClient{
		cfg:       cfg,
		client:    &http.Client{Transport: transport},
		transport: transport,
		readHost:  "https://" + cfg.ApplicationID + "-dsn.algolia.net",
		writeHost: "https://" + cfg.ApplicationID + ".algolia.net",
		logger:    logging.OrDefault(logger),
	}
	if cfg.Host != "" {
		host := strings.TrimRight(cfg.Host, "/")
		if !strings.Contains(host, "://") {
			host = "https://" + host
		}
		c.readHost, c.writeHost = host, host
	}
	return c, nil
}

// InitIndex returns a handle for name. Indexes are created by the service on
// first write, so no request is made.
func (c *AlgoliaClient) InitIndex(_ context.Context, name string) (index.Handle, error) {
	if name == "" {
		return index.Handle{}, syncerr.ValidationError("index name is empty", nil)
	}
	return index.Handle{Name: name}, nil
}

// SetSettings replaces the index settings.
func (c *AlgoliaClient) SetSettings(ctx context.Context, h index.Handle, s index.Settings) error {
	q := url.Values{}
	if s.ForwardToReplicas {
		q.Set("forwardToReplicas", "true")
	}
	return c.do(ctx, http.MethodPut, c.writeHost, indexPath(h.Name, "settings"), q, s, nil)
}

// SaveObject creates or fully replaces a record.
func (c *AlgoliaClient) SaveObject(ctx context.Context, h index.Handle, rec record.Record) error {
	objectID := rec.ObjectID()
	if objectID == "" {
		return syncerr.ValidationError("record has no objectID", nil)
	}
	return c.do(ctx, http.MethodPut, c.writeHost, indexPath(h.Name, objectID), nil, rec, nil)
}

// DeleteObject removes a record.
func (c *AlgoliaClient) DeleteObject(ctx context.Context, h index.Handle, objectID string) error {
	return c.do(ctx, http.MethodDelete, c.writeHost, indexPath(h.Name, objectID), nil, nil, nil)
}

// GetObject fetches a record, limited to attrs when non-empty.
func (c *AlgoliaClient) GetObject(ctx context.Context, h index.Handle, objectID string, attrs []string) (record.Record, error) {
	q := url.Values{}
	if len(attrs) > 0 {
		q.Set("attributesToRetrieve", strings.Join(attrs, ","))
	}
	var rec record.Record
	if err := c.do(ctx, http.MethodGet, c.readHost, indexPath(h.Name, objectID), q, nil, &rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Search queries an index.
func (c *AlgoliaClient) Search(ctx context.Context, h index.Handle, text string, p index.SearchParams) (*index.SearchResponse, error) {
	body := map[string]string{"params": searchParams(text, p)}
	var resp index.SearchResponse
	if err := c.do(ctx, http.MethodPost, c.readHost, indexPath(h.Name, "query"), nil, body, &resp); err != nil {
		return nil, err
	}
	if resp.Hits == nil {
		resp.Hits = []record.Record{}
	}
	return &resp, nil
}

// Close releases idle connections.
func (c *AlgoliaClient) Close() error {
	c.transport.CloseIdleConnections()
	return nil
}

// do sends one API call with retries. body and out are JSON encoded and
// decoded when non-nil.
func (c *AlgoliaClient) do(ctx context.Context, method, host, path string, q url.Values, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
	}

	endpoint := host + path
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}

	attempt := 0
	return syncerr.Retry(ctx, c.cfg.Retry, func() error {
		attempt++
		err := c.doOnce(ctx, method, endpoint, payload, out)
		if err != nil && syncerr.IsRetryable(err) {
			c.logger.Warn("index_request_failed",
				slog.String("method", method),
				slog.String("path", path),
				slog.Int("attempt", attempt),
				slog.String("error", err.Error()))
		}
		return err
	})
}

func (c *AlgoliaClient) doOnce(ctx context.Context, method, endpoint string, payload []byte, out any) error {
	reqCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	var bodyReader io.Reader
	if payload != nil {
		bodyReader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(reqCtx, method, endpoint, bodyReader)
	if err != nil {
		return syncerr.InternalError("failed to build request", err)
	}
	req.Header.Set("X-Algolia-Application-Id", c.cfg.ApplicationID)
	req.Header.Set("X-Algolia-API-Key", c.cfg.APIKey)
	req.Header.Set("User-Agent", version.UserAgent())
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		var netErr net.Error
		if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
			return syncerr.New(syncerr.ErrCodeRemoteTimeout, "index service timed out", err)
		}
		return syncerr.RemoteError("index service unreachable", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil {
			_, _ = io.Copy(io.Discard, resp.Body)
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return syncerr.RemoteError("failed to decode response", err)
		}
		return nil
	}

	return statusError(resp)
}

// statusError maps a non-2xx response to a coded error.
func statusError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var apiErr struct {
		Message string `json:"message"`
	}
	msg := strings.TrimSpace(string(raw))
	if json.Unmarshal(raw, &apiErr) == nil && apiErr.Message != "" {
		msg = apiErr.Message
	}
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}

	var err *syncerr.SyncError
	switch {
	case resp.StatusCode == http.StatusNotFound:
		err = syncerr.New(syncerr.ErrCodeObjectNotFound, msg, nil)
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		err = syncerr.RemoteError(msg, nil)
	default:
		err = syncerr.New(syncerr.ErrCodeRemoteRejected, msg, nil)
	}
	return err.WithDetail("status", strconv.Itoa(resp.StatusCode))
}

func indexPath(name, suffix string) string {
	return "/1/indexes/" + url.PathEscape(name) + "/" + url.PathEscape(suffix)
}

// searchParams encodes search parameters the way the REST API expects them.
func searchParams(text string, p index.SearchParams) string {
	v := url.Values{}
	v.Set("query", text)
	if p.Filters != "" {
		v.Set("filters", p.Filters)
	}
	if p.HitsPerPage > 0 {
		v.Set("hitsPerPage", strconv.Itoa(p.HitsPerPage))
	}
	return v.Encode()
}

var _ index.Client = (*AlgoliaClient)(nil)
