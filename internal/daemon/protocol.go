package daemon

import (
	"fmt"

	"github.com/Mill3/1ou2cocktails-algolia-sync/internal/events"
	"github.com/Mill3/1ou2cocktails-algolia-sync/internal/synchronizer"
)

// JSON-RPC 2.0 method names.
const (
	MethodPing        = "ping"
	MethodStatus      = "status"
	MethodEvent       = "event"
	MethodQuery       = "query"
	MethodCheckStatus = "check_status"
	MethodBulk        = "bulk"
)

// Standard JSON-RPC 2.0 error codes.
const (
	ErrCodeParseError     = -32700
	ErrCodeInvalidRequest = -32600
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternalError  = -32603
)

// Custom error codes for daemon-specific errors.
const (
	ErrCodeUnknownContentType = -32001
	ErrCodeOperationFailed    = -32002
)

// Request represents a JSON-RPC 2.0 request.
type Request struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
	ID      string `json:"id"`
}

// Response represents a JSON-RPC 2.0 response.
type Response struct {
	JSONRPC string `json:"jsonrpc"`
	Result  any    `json:"result,omitempty"`
	Error   *Error `json:"error,omitempty"`
	ID      string `json:"id"`
}

// Error represents a JSON-RPC 2.0 error.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Error implements error so clients can return it as is.
func (e *Error) Error() string {
	return fmt.Sprintf("%s (code: %d)", e.Message, e.Code)
}

// NewSuccessResponse creates a successful response.
func NewSuccessResponse(id string, result any) Response {
	return Response{
		JSONRPC: "2.0",
		Result:  result,
		ID:      id,
	}
}

// NewErrorResponse creates an error response.
func NewErrorResponse(id string, code int, message string) Response {
	return Response{
		JSONRPC: "2.0",
		Error: &Error{
			Code:    code,
			Message: message,
		},
		ID: id,
	}
}

// EventParams are the parameters of the event method.
type EventParams struct {
	// Kind is item.saved, item.deleted, term.edited or term.deleted.
	Kind string `json:"kind"`

	// ContentType and ItemID are required for item events.
	ContentType string `json:"content_type,omitempty"`
	ItemID      int64  `json:"item_id,omitempty"`

	// TermID is required for term events.
	TermID int64 `json:"term_id,omitempty"`
}

// Event validates p and converts it into a lifecycle event.
func (p EventParams) Event() (events.Event, error) {
	kind, err := events.ParseKind(p.Kind)
	if err != nil {
		return events.Event{}, err
	}

	switch kind {
	case events.KindItemSaved, events.KindItemDeleted:
		if p.ContentType == "" {
			return events.Event{}, fmt.Errorf("content_type is required for %s", kind)
		}
		if p.ItemID <= 0 {
			return events.Event{}, fmt.Errorf("item_id is required for %s", kind)
		}
		if kind == events.KindItemSaved {
			return events.ItemSaved(p.ContentType, p.ItemID), nil
		}
		return events.ItemDeleted(p.ContentType, p.ItemID), nil

	default:
		if p.TermID <= 0 {
			return events.Event{}, fmt.Errorf("term_id is required for %s", kind)
		}
		if kind == events.KindTermEdited {
			return events.TermEdited(p.TermID), nil
		}
		return events.TermDeleted(p.TermID), nil
	}
}

// EventResult acknowledges a handled event.
type EventResult struct {
	EventID string `json:"event_id"`
}

// QueryParams are the parameters of the query method.
type QueryParams struct {
	ContentType string `json:"content_type"`
	Locale      string `json:"locale,omitempty"`
}

// Validate checks that required fields are present.
func (p QueryParams) Validate() error {
	if p.ContentType == "" {
		return fmt.Errorf("content_type is required")
	}
	return nil
}

// CheckStatusParams are the parameters of the check_status method.
type CheckStatusParams struct {
	ContentType string  `json:"content_type"`
	IDs         []int64 `json:"ids"`
}

// Validate checks that required fields are present. An empty id list is
// valid and answered with the no_items envelope.
func (p CheckStatusParams) Validate() error {
	if p.ContentType == "" {
		return fmt.Errorf("content_type is required")
	}
	return nil
}

// BulkParams are the parameters of the bulk method.
type BulkParams struct {
	// Action is an admin action identifier or push/remove.
	Action      string  `json:"action"`
	ContentType string  `json:"content_type"`
	IDs         []int64 `json:"ids"`
}

// Validate checks that required fields are present.
func (p BulkParams) Validate() error {
	if _, err := synchronizer.ParseAction(p.Action); err != nil {
		return err
	}
	if p.ContentType == "" {
		return fmt.Errorf("content_type is required")
	}
	if len(p.IDs) == 0 {
		return fmt.Errorf("ids are required")
	}
	return nil
}

// BulkItem is the wire form of synchronizer.ItemResult.
type BulkItem struct {
	ID      int64  `json:"id"`
	Title   string `json:"title,omitempty"`
	Outcome string `json:"outcome"`
	Reason  string `json:"reason,omitempty"`
	Error   string `json:"error,omitempty"`
}

// BulkResult lists per-item outcomes in request order.
type BulkResult struct {
	Items []BulkItem `json:"items"`
}

// StatusResult contains daemon status information.
type StatusResult struct {
	Running      bool     `json:"running"`
	PID          int      `json:"pid"`
	Uptime       string   `json:"uptime"`
	Backend      string   `json:"backend,omitempty"`
	ContentTypes []string `json:"content_types,omitempty"`
	Indexes      []string `json:"indexes,omitempty"`
}

// PingResult is the response to a ping request.
type PingResult struct {
	Pong bool `json:"pong"`
}
