// Package mcp exposes the sync engine to AI assistants over the Model
// Context Protocol.
package mcp

import (
	"context"
	"errors"
	"fmt"

	syncerr "github.com/Mill3/1ou2cocktails-algolia-sync/internal/errors"
)

// Custom MCP error codes.
const (
	// ErrCodeUnknownContentType indicates no synchronizer serves the type.
	ErrCodeUnknownContentType = -32001

	// ErrCodeIndexUnavailable indicates the index service could not be reached.
	ErrCodeIndexUnavailable = -32002

	// ErrCodeTimeout indicates the request timed out.
	ErrCodeTimeout = -32003

	// Standard JSON-RPC error codes.
	ErrCodeInvalidRequest = -32600
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternalError  = -32603
)

// MCPError represents an MCP protocol error with code and message.
type MCPError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// MapError converts internal errors to MCP errors.
func MapError(err error) *MCPError {
	if err == nil {
		return nil
	}

	var mcpErr *MCPError
	if errors.As(err, &mcpErr) {
		return mcpErr
	}

	var se *syncerr.SyncError
	if errors.As(err, &se) {
		return mapSyncError(se)
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &MCPError{Code: ErrCodeTimeout, Message: "Request timed out."}
	case errors.Is(err, context.Canceled):
		return &MCPError{Code: ErrCodeTimeout, Message: "Request was canceled."}
	default:
		return &MCPError{Code: ErrCodeInternalError, Message: "Internal server error."}
	}
}

// NewInvalidParamsError creates an error for invalid parameters with a custom message.
func NewInvalidParamsError(msg string) *MCPError {
	return &MCPError{
		Code:    ErrCodeInvalidParams,
		Message: msg,
	}
}

// NewMethodNotFoundError creates an error for unknown tools.
func NewMethodNotFoundError(name string) *MCPError {
	return &MCPError{
		Code:    ErrCodeMethodNotFound,
		Message: fmt.Sprintf("Tool '%s' not found.", name),
	}
}

// NewResourceNotFoundError creates an error for unknown resources.
func NewResourceNotFoundError(uri string) *MCPError {
	return &MCPError{
		Code:    ErrCodeMethodNotFound,
		Message: fmt.Sprintf("Resource '%s' not found.", uri),
	}
}

func mapSyncError(se *syncerr.SyncError) *MCPError {
	message := se.Message
	if se.Suggestion != "" {
		message = fmt.Sprintf("%s %s", se.Message, se.Suggestion)
	}

	switch se.Code {
	case syncerr.ErrCodeUnknownContentType:
		return &MCPError{Code: ErrCodeUnknownContentType, Message: message}
	case syncerr.ErrCodeRemoteTimeout:
		return &MCPError{Code: ErrCodeTimeout, Message: message}
	}

	switch se.Category {
	case syncerr.CategoryValidation:
		return &MCPError{Code: ErrCodeInvalidParams, Message: message}
	case syncerr.CategoryRemote:
		return &MCPError{Code: ErrCodeIndexUnavailable, Message: message}
	default:
		return &MCPError{Code: ErrCodeInternalError, Message: message}
	}
}
