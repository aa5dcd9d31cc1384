package daemon

import (
	"context"

	"github.com/Mill3/1ou2cocktails-algolia-sync/internal/engine"
	"github.com/Mill3/1ou2cocktails-algolia-sync/internal/events"
	"github.com/Mill3/1ou2cocktails-algolia-sync/internal/index"
	"github.com/Mill3/1ou2cocktails-algolia-sync/internal/synchronizer"
)

// EngineHandler serves requests from an engine.
type EngineHandler struct {
	engine *engine.Engine
}

var _ RequestHandler = (*EngineHandler)(nil)

// NewEngineHandler creates a handler for e.
func NewEngineHandler(e *engine.Engine) *EngineHandler {
	return &EngineHandler{engine: e}
}

// HandleEvent publishes ev to every synchronizer.
func (h *EngineHandler) HandleEvent(ctx context.Context, ev events.Event) error {
	return h.engine.Publish(ctx, ev)
}

// HandleQuery routes the query to the synchronizer of the content type.
func (h *EngineHandler) HandleQuery(ctx context.Context, params QueryParams) (*index.SearchResponse, error) {
	if _, err := h.engine.Registry().MustGet(params.ContentType); err != nil {
		return nil, err
	}
	resp, _, err := h.engine.Router().Route(ctx, params.ContentType, params.Locale)
	return resp, err
}

// HandleCheckStatus reports record existence for the requested ids.
func (h *EngineHandler) HandleCheckStatus(ctx context.Context, params CheckStatusParams) (synchronizer.StatusResponse, error) {
	s, err := h.engine.Registry().MustGet(params.ContentType)
	if err != nil {
		return synchronizer.StatusResponse{}, err
	}
	return s.CheckStatus(ctx, params.IDs), nil
}

// HandleBulk applies a bulk action.
func (h *EngineHandler) HandleBulk(ctx context.Context, params BulkParams) (BulkResult, error) {
	s, err := h.engine.Registry().MustGet(params.ContentType)
	if err != nil {
		return BulkResult{}, err
	}
	action, err := synchronizer.ParseAction(params.Action)
	if err != nil {
		return BulkResult{}, err
	}

	results, err := s.Bulk(ctx, action, params.IDs)
	out := BulkResult{Items: make([]BulkItem, 0, len(results))}
	for _, r := range results {
		out.Items = append(out.Items, BulkItem{
			ID:      r.ID,
			Title:   r.Title,
			Outcome: string(r.Outcome),
			Reason:  r.Reason,
			Error:   r.Error(),
		})
	}
	return out, err
}

// GetStatus describes the registered content types.
func (h *EngineHandler) GetStatus() StatusResult {
	return StatusResult{
		Backend:      h.engine.Config().Index.Backend,
		ContentTypes: h.engine.Registry().Names(),
		Indexes:      h.engine.Registry().IndexNames(),
	}
}
