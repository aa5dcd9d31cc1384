package synchronizer

import (
	"context"

	"github.com/Mill3/1ou2cocktails-algolia-sync/internal/index"
)

// Status check error identifiers.
const (
	StatusErrNoItems = "no_items"
	StatusErrFailed  = "failed"
)

// StatusResponse is the envelope returned to status badges.
type StatusResponse struct {
	Success bool        `json:"success"`
	Data    *StatusData `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// StatusData lists per-item existence for one content type.
type StatusData struct {
	Type  string       `json:"type"`
	Items []ItemStatus `json:"items"`
}

// ItemStatus reports whether an item has a record in the index.
type ItemStatus struct {
	ID          int64 `json:"id"`
	RecordExist bool  `json:"record_exist"`
}

// CheckStatus reports, for each id in order, whether its record exists in
// any index of this type. Remote failures read as "absent".
func (s *Synchronizer) CheckStatus(ctx context.Context, ids []int64) StatusResponse {
	if len(ids) == 0 {
		return StatusResponse{Error: StatusErrNoItems}
	}

	gateways := s.distinctGateways()
	items := make([]ItemStatus, 0, len(ids))
	for _, id := range ids {
		if ctx.Err() != nil {
			return StatusResponse{Error: StatusErrFailed}
		}
		exists := false
		for _, gw := range gateways {
			if gw.Exists(ctx, id) {
				exists = true
				break
			}
		}
		items = append(items, ItemStatus{ID: id, RecordExist: exists})
	}

	return StatusResponse{
		Success: true,
		Data:    &StatusData{Type: s.Name(), Items: items},
	}
}

// Query returns every record of this type for locale, from cache when
// possible. An empty locale means the default locale.
func (s *Synchronizer) Query(ctx context.Context, locale string) (*index.SearchResponse, error) {
	if !s.localized {
		return s.gateway("").Query(ctx, "", index.Filter(s.Name(), ""))
	}
	locale = s.ResolveLocale(locale)
	return s.gateway(locale).Query(ctx, locale, index.Filter(s.Name(), locale))
}

// ResolveLocale returns locale, or the configured default locale when it is
// empty.
func (s *Synchronizer) ResolveLocale(locale string) string {
	if locale == "" {
		return s.defaultLocale
	}
	return locale
}
