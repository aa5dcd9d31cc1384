package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	syncerr "github.com/Mill3/1ou2cocktails-algolia-sync/internal/errors"
	"github.com/Mill3/1ou2cocktails-algolia-sync/internal/events"
	"github.com/Mill3/1ou2cocktails-algolia-sync/internal/index"
	"github.com/Mill3/1ou2cocktails-algolia-sync/internal/logging"
	"github.com/Mill3/1ou2cocktails-algolia-sync/internal/synchronizer"
)

// RequestHandler handles incoming RPC requests.
type RequestHandler interface {
	HandleEvent(ctx context.Context, ev events.Event) error
	HandleQuery(ctx context.Context, params QueryParams) (*index.SearchResponse, error)
	HandleCheckStatus(ctx context.Context, params CheckStatusParams) (synchronizer.StatusResponse, error)
	HandleBulk(ctx context.Context, params BulkParams) (BulkResult, error)
	GetStatus() StatusResult
}

// Server listens on a Unix socket and handles one request per connection.
type Server struct {
	socketPath string
	timeout    time.Duration
	listener   net.Listener
	handler    RequestHandler
	logger     *slog.Logger
	started    time.Time

	mu       sync.Mutex
	shutdown bool
	wg       sync.WaitGroup
}

// NewServer creates a server for socketPath. timeout bounds each connection,
// request handling included.
func NewServer(socketPath string, timeout time.Duration, logger *slog.Logger) (*Server, error) {
	if socketPath == "" {
		return nil, fmt.Errorf("socket path cannot be empty")
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Server{
		socketPath: socketPath,
		timeout:    timeout,
		logger:     logging.OrDefault(logger),
	}, nil
}

// SetHandler sets the request handler.
func (s *Server) SetHandler(h RequestHandler) {
	s.handler = h
}

// ListenAndServe serves until ctx is cancelled, then waits for in-flight
// connections and returns ctx.Err().
func (s *Server) ListenAndServe(ctx context.Context) error {
	_ = os.Remove(s.socketPath)

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.socketPath, err)
	}
	s.mu.Lock()
	s.listener = listener
	s.started = time.Now()
	s.mu.Unlock()

	defer func() {
		_ = listener.Close()
		_ = os.Remove(s.socketPath)
	}()

	s.logger.Info("server_listening", slog.String("socket", s.socketPath))

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		s.shutdown = true
		s.mu.Unlock()
		_ = listener.Close()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			s.mu.Lock()
			shutdown := s.shutdown
			s.mu.Unlock()
			if shutdown {
				break
			}
			s.logger.Error("accept_failed", slog.String("error", err.Error()))
			continue
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConnection(ctx, conn)
		}()
	}

	s.wg.Wait()
	return ctx.Err()
}

func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(s.timeout)); err != nil {
		s.logger.Warn("connection_deadline_failed", slog.String("error", err.Error()))
	}

	decoder := json.NewDecoder(conn)
	encoder := json.NewEncoder(conn)

	var req Request
	if err := decoder.Decode(&req); err != nil {
		_ = encoder.Encode(NewErrorResponse("", ErrCodeParseError, "failed to parse request"))
		return
	}

	// Handling continues after shutdown starts so an accepted event is not
	// cut off halfway through its index writes.
	reqCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()

	start := time.Now()
	resp := s.handleRequest(reqCtx, req)
	attrs := []any{
		slog.String("method", req.Method),
		slog.String("request_id", req.ID),
		slog.Duration("duration", time.Since(start)),
	}
	if resp.Error != nil {
		s.logger.Warn("request_failed", append(attrs, slog.String("error", resp.Error.Message))...)
	} else {
		s.logger.Debug("request_handled", attrs...)
	}

	_ = encoder.Encode(resp)
}

// handleRequest dispatches a request to the handler.
func (s *Server) handleRequest(ctx context.Context, req Request) Response {
	if req.JSONRPC != "" && req.JSONRPC != "2.0" {
		return NewErrorResponse(req.ID, ErrCodeInvalidRequest, "unsupported jsonrpc version")
	}

	switch req.Method {
	case MethodPing:
		return NewSuccessResponse(req.ID, PingResult{Pong: true})
	case MethodStatus:
		return NewSuccessResponse(req.ID, s.getStatus())
	}

	if s.handler == nil {
		return NewErrorResponse(req.ID, ErrCodeInternalError, "no handler configured")
	}

	switch req.Method {
	case MethodEvent:
		var params EventParams
		if resp, ok := decodeParams(req, &params); !ok {
			return resp
		}
		ev, err := params.Event()
		if err != nil {
			return NewErrorResponse(req.ID, ErrCodeInvalidParams, err.Error())
		}
		if err := s.handler.HandleEvent(ctx, ev); err != nil {
			return errorResponse(req.ID, err)
		}
		return NewSuccessResponse(req.ID, EventResult{EventID: ev.ID})

	case MethodQuery:
		var params QueryParams
		if resp, ok := decodeParams(req, &params); !ok {
			return resp
		}
		if err := params.Validate(); err != nil {
			return NewErrorResponse(req.ID, ErrCodeInvalidParams, err.Error())
		}
		result, err := s.handler.HandleQuery(ctx, params)
		if err != nil {
			return errorResponse(req.ID, err)
		}
		return NewSuccessResponse(req.ID, result)

	case MethodCheckStatus:
		var params CheckStatusParams
		if resp, ok := decodeParams(req, &params); !ok {
			return resp
		}
		if err := params.Validate(); err != nil {
			return NewErrorResponse(req.ID, ErrCodeInvalidParams, err.Error())
		}
		result, err := s.handler.HandleCheckStatus(ctx, params)
		if err != nil {
			return errorResponse(req.ID, err)
		}
		return NewSuccessResponse(req.ID, result)

	case MethodBulk:
		var params BulkParams
		if resp, ok := decodeParams(req, &params); !ok {
			return resp
		}
		if err := params.Validate(); err != nil {
			return NewErrorResponse(req.ID, ErrCodeInvalidParams, err.Error())
		}
		result, err := s.handler.HandleBulk(ctx, params)
		if err != nil {
			return errorResponse(req.ID, err)
		}
		return NewSuccessResponse(req.ID, result)

	default:
		return NewErrorResponse(req.ID, ErrCodeMethodNotFound, fmt.Sprintf("method not found: %s", req.Method))
	}
}

// decodeParams re-decodes the generic params into dst.
func decodeParams(req Request, dst any) (Response, bool) {
	data, err := json.Marshal(req.Params)
	if err != nil {
		return NewErrorResponse(req.ID, ErrCodeInvalidParams, "failed to encode params"), false
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return NewErrorResponse(req.ID, ErrCodeInvalidParams, "failed to decode params"), false
	}
	return Response{}, true
}

// errorResponse maps handler errors to RPC error codes.
func errorResponse(id string, err error) Response {
	switch syncerr.GetCode(err) {
	case syncerr.ErrCodeUnknownContentType:
		return NewErrorResponse(id, ErrCodeUnknownContentType, err.Error())
	case syncerr.ErrCodeInvalidInput, syncerr.ErrCodeNoItems:
		return NewErrorResponse(id, ErrCodeInvalidParams, err.Error())
	default:
		return NewErrorResponse(id, ErrCodeOperationFailed, err.Error())
	}
}

func (s *Server) getStatus() StatusResult {
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()

	status := StatusResult{
		Running: true,
		PID:     os.Getpid(),
		Uptime:  time.Since(started).Round(time.Second).String(),
	}
	if s.handler != nil {
		hs := s.handler.GetStatus()
		status.Backend = hs.Backend
		status.ContentTypes = hs.ContentTypes
		status.Indexes = hs.Indexes
	}
	return status
}

// Close stops accepting connections.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shutdown = true
	if s.listener != nil {
		return s.listener.Close()
	}
	return nil
}
