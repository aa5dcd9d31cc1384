package mcp

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Mill3/1ou2cocktails-algolia-sync/internal/engine"
	"github.com/Mill3/1ou2cocktails-algolia-sync/internal/logging"
	"github.com/Mill3/1ou2cocktails-algolia-sync/pkg/version"
)

// Server exposes the engine's read side to MCP clients.
type Server struct {
	mcp    *mcp.Server
	engine *engine.Engine
	logger *slog.Logger
}

// ToolInfo contains information about a registered tool.
type ToolInfo struct {
	Name        string
	Description string
}

var tools = []ToolInfo{
	{
		Name:        "list_content",
		Description: "Lists the records indexed for one content type and locale, as the website's search UI sees them. Use it to check what a visitor can find.",
	},
	{
		Name:        "index_status",
		Description: "Lists registered content types with their index names. Given a content type and item ids, reports which items have a record in the index.",
	},
}

// NewServer creates an MCP server over e.
func NewServer(e *engine.Engine, logger *slog.Logger) (*Server, error) {
	if e == nil {
		return nil, errors.New("engine is required")
	}

	s := &Server{
		engine: e,
		logger: logging.OrDefault(logger),
	}

	s.mcp = mcp.NewServer(
		&mcp.Implementation{
			Name:    version.Name,
			Version: version.Version,
		},
		nil,
	)

	s.registerTools()
	s.registerResources()

	return s, nil
}

// MCPServer returns the underlying MCP server instance.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// Info returns the server name and version.
func (s *Server) Info() (name, ver string) {
	return version.Name, version.Version
}

// ListTools returns all registered tools.
func (s *Server) ListTools() []ToolInfo {
	out := make([]ToolInfo, len(tools))
	copy(out, tools)
	return out
}

// CallTool invokes a tool by name with the given arguments and returns its
// markdown rendering.
func (s *Server) CallTool(ctx context.Context, name string, args map[string]any) (string, error) {
	switch name {
	case "list_content":
		in := ListContentInput{}
		in.ContentType, _ = args["content_type"].(string)
		in.Locale, _ = args["locale"].(string)
		if l, ok := args["limit"].(float64); ok {
			in.Limit = int(l)
		}
		out, err := s.listContent(ctx, in)
		if err != nil {
			return "", err
		}
		return FormatContentList(out), nil

	case "index_status":
		in := IndexStatusInput{}
		in.ContentType, _ = args["content_type"].(string)
		if ids, ok := args["ids"].([]any); ok {
			for _, v := range ids {
				if f, ok := v.(float64); ok {
					in.IDs = append(in.IDs, int64(f))
				}
			}
		}
		out, err := s.indexStatus(ctx, in)
		if err != nil {
			return "", err
		}
		return FormatIndexStatus(out), nil

	default:
		return "", NewMethodNotFoundError(name)
	}
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{Name: tools[0].Name, Description: tools[0].Description}, s.mcpListContentHandler)
	mcp.AddTool(s.mcp, &mcp.Tool{Name: tools[1].Name, Description: tools[1].Description}, s.mcpIndexStatusHandler)
	s.logger.Debug("mcp_tools_registered", slog.Int("count", len(tools)))
}

func (s *Server) mcpListContentHandler(ctx context.Context, _ *mcp.CallToolRequest, input ListContentInput) (
	*mcp.CallToolResult,
	ListContentOutput,
	error,
) {
	out, err := s.listContent(ctx, input)
	if err != nil {
		return nil, ListContentOutput{}, err
	}
	return nil, out, nil
}

func (s *Server) mcpIndexStatusHandler(ctx context.Context, _ *mcp.CallToolRequest, input IndexStatusInput) (
	*mcp.CallToolResult,
	*IndexStatusOutput,
	error,
) {
	out, err := s.indexStatus(ctx, input)
	if err != nil {
		return nil, nil, err
	}
	return nil, out, nil
}

// listContent routes a query for every record of a type and locale.
func (s *Server) listContent(ctx context.Context, in ListContentInput) (ListContentOutput, error) {
	contentType := strings.TrimSpace(in.ContentType)
	if contentType == "" {
		return ListContentOutput{}, NewInvalidParamsError("content_type parameter is required")
	}
	locale := s.engine.Router().Locale(contentType, in.Locale)
	limit := clampLimit(in.Limit, defaultListLimit, 1, maxListLimit)

	start := time.Now()
	requestID := generateRequestID()
	s.logger.Info("list_content_started",
		slog.String("request_id", requestID),
		slog.String("content_type", contentType),
		slog.String("locale", locale))

	resp, ok, err := s.engine.Router().Route(ctx, contentType, locale)
	if !ok {
		_, err = s.engine.Registry().MustGet(contentType)
	}
	if err != nil {
		s.logger.Error("list_content_failed",
			slog.String("request_id", requestID),
			slog.Duration("duration", time.Since(start)),
			slog.String("error", err.Error()))
		return ListContentOutput{}, MapError(err)
	}

	out := toListContentOutput(contentType, locale, resp, limit)
	s.logger.Info("list_content_completed",
		slog.String("request_id", requestID),
		slog.Duration("duration", time.Since(start)),
		slog.Int("total", out.Total))
	return out, nil
}

// indexStatus describes registered types and, when asked, item existence.
func (s *Server) indexStatus(ctx context.Context, in IndexStatusInput) (*IndexStatusOutput, error) {
	reg := s.engine.Registry()
	out := &IndexStatusOutput{
		Backend:      s.engine.Config().Index.Backend,
		ContentTypes: make([]ContentTypeInfo, 0, reg.Len()),
	}
	for _, sync := range reg.All() {
		out.ContentTypes = append(out.ContentTypes, ContentTypeInfo{
			Name:    sync.Name(),
			Indexes: sync.IndexNames(),
		})
	}

	if in.ContentType == "" {
		if len(in.IDs) > 0 {
			return nil, NewInvalidParamsError("content_type is required when ids are given")
		}
		return out, nil
	}

	sync, err := reg.MustGet(in.ContentType)
	if err != nil {
		return nil, MapError(err)
	}
	status := sync.CheckStatus(ctx, in.IDs)
	out.Items = &status
	return out, nil
}

// Serve runs the server over the named transport until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, transport string) error {
	s.logger.Info("mcp_server_starting", slog.String("transport", transport))

	switch transport {
	case "stdio":
		err := s.mcp.Run(ctx, &mcp.StdioTransport{})
		if err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("mcp_server_stopped", slog.String("error", err.Error()))
			return err
		}
		s.logger.Info("mcp_server_stopped")
		return nil
	default:
		return fmt.Errorf("unknown transport: %s (supported: stdio)", transport)
	}
}

// Close releases server resources. The MCP server itself stops when the
// Serve context is cancelled.
func (s *Server) Close() error {
	return nil
}

// generateRequestID creates a short unique request ID for log correlation.
func generateRequestID() string {
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
