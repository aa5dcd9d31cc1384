package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/google/uuid"

	"github.com/Mill3/1ou2cocktails-algolia-sync/internal/index"
	"github.com/Mill3/1ou2cocktails-algolia-sync/internal/synchronizer"
)

// Client talks to a running daemon.
type Client struct {
	socketPath string
	timeout    time.Duration
}

// NewClient creates a new daemon client.
func NewClient(cfg Config) *Client {
	return &Client{
		socketPath: cfg.SocketPath,
		timeout:    cfg.Timeout,
	}
}

// Connect establishes a connection to the daemon.
func (c *Client) Connect() (net.Conn, error) {
	conn, err := net.DialTimeout("unix", c.socketPath, c.timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to daemon: %w", err)
	}
	return conn, nil
}

// IsRunning checks if the daemon is accepting connections.
func (c *Client) IsRunning() bool {
	conn, err := c.Connect()
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

// Ping checks if the daemon is responsive.
func (c *Client) Ping(ctx context.Context) error {
	var res PingResult
	if err := c.call(ctx, MethodPing, nil, &res); err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}
	return nil
}

// Status retrieves daemon status.
func (c *Client) Status(ctx context.Context) (*StatusResult, error) {
	var status StatusResult
	if err := c.call(ctx, MethodStatus, nil, &status); err != nil {
		return nil, fmt.Errorf("status failed: %w", err)
	}
	return &status, nil
}

// Publish sends a lifecycle event and waits until it is handled.
func (c *Client) Publish(ctx context.Context, params EventParams) (*EventResult, error) {
	if _, err := params.Event(); err != nil {
		return nil, fmt.Errorf("invalid params: %w", err)
	}
	var res EventResult
	if err := c.call(ctx, MethodEvent, params, &res); err != nil {
		return nil, fmt.Errorf("event failed: %w", err)
	}
	return &res, nil
}

// Query returns every record of a content type for a locale.
func (c *Client) Query(ctx context.Context, params QueryParams) (*index.SearchResponse, error) {
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("invalid params: %w", err)
	}
	var res index.SearchResponse
	if err := c.call(ctx, MethodQuery, params, &res); err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	return &res, nil
}

// CheckStatus reports record existence for ids.
func (c *Client) CheckStatus(ctx context.Context, params CheckStatusParams) (*synchronizer.StatusResponse, error) {
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("invalid params: %w", err)
	}
	var res synchronizer.StatusResponse
	if err := c.call(ctx, MethodCheckStatus, params, &res); err != nil {
		return nil, fmt.Errorf("check_status failed: %w", err)
	}
	return &res, nil
}

// Bulk applies an admin bulk action.
func (c *Client) Bulk(ctx context.Context, params BulkParams) (*BulkResult, error) {
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("invalid params: %w", err)
	}
	var res BulkResult
	if err := c.call(ctx, MethodBulk, params, &res); err != nil {
		return nil, fmt.Errorf("bulk failed: %w", err)
	}
	return &res, nil
}

// call performs one request on a fresh connection and decodes the result
// into out. An RPC error is returned as *Error.
func (c *Client) call(ctx context.Context, method string, params, out any) error {
	conn, err := c.Connect()
	if err != nil {
		return err
	}
	defer conn.Close()

	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return fmt.Errorf("failed to set deadline: %w", err)
	}

	req := Request{
		JSONRPC: "2.0",
		Method:  method,
		Params:  params,
		ID:      uuid.NewString(),
	}
	if err := json.NewEncoder(conn).Encode(req); err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}

	var resp struct {
		Response
		Result json.RawMessage `json:"result,omitempty"`
	}
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return fmt.Errorf("failed to receive response: %w", err)
	}
	if resp.Error != nil {
		return resp.Error
	}
	if resp.ID != req.ID {
		return fmt.Errorf("response id %q does not match request %q", resp.ID, req.ID)
	}
	if out == nil || len(resp.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Result, out); err != nil {
		return fmt.Errorf("failed to decode result: %w", err)
	}
	return nil
}
