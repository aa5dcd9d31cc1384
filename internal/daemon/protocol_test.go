package daemon

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mill3/1ou2cocktails-algolia-sync/internal/events"
)

func TestRequest_JSON(t *testing.T) {
	req := Request{
		JSONRPC: "2.0",
		Method:  MethodEvent,
		Params:  EventParams{Kind: "item.saved", ContentType: "cocktail", ItemID: 42},
		ID:      "req-1",
	}

	data, err := json.Marshal(req)
	require.NoError(t, err)

	assert.JSONEq(t,
		`{"jsonrpc":"2.0","method":"event","params":{"kind":"item.saved","content_type":"cocktail","item_id":42},"id":"req-1"}`,
		string(data))
}

func TestResponse_Error(t *testing.T) {
	resp := NewErrorResponse("req-1", ErrCodeInvalidParams, "content_type is required")

	assert.Equal(t, "2.0", resp.JSONRPC)
	assert.Nil(t, resp.Result)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeInvalidParams, resp.Error.Code)
	assert.Equal(t, "content_type is required (code: -32602)", resp.Error.Error())
}

// =============================================================================
// Params validation
// =============================================================================

func TestEventParams_Event(t *testing.T) {
	tests := []struct {
		name     string
		params   EventParams
		wantKind events.Kind
		wantErr  string
	}{
		{"item saved", EventParams{Kind: "item.saved", ContentType: "cocktail", ItemID: 1}, events.KindItemSaved, ""},
		{"item deleted", EventParams{Kind: "item.deleted", ContentType: "cocktail", ItemID: 1}, events.KindItemDeleted, ""},
		{"term edited", EventParams{Kind: "term.edited", TermID: 7}, events.KindTermEdited, ""},
		{"term deleted", EventParams{Kind: "term.deleted", TermID: 7}, events.KindTermDeleted, ""},
		{"unknown kind", EventParams{Kind: "item.moved"}, 0, "unknown event kind"},
		{"item without type", EventParams{Kind: "item.saved", ItemID: 1}, 0, "content_type"},
		{"item without id", EventParams{Kind: "item.deleted", ContentType: "post"}, 0, "item_id"},
		{"term without id", EventParams{Kind: "term.edited"}, 0, "term_id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := tt.params.Event()
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantKind, ev.Kind)
			assert.Equal(t, tt.params.ItemID, ev.ItemID)
			assert.Equal(t, tt.params.TermID, ev.TermID)
			assert.NotEmpty(t, ev.ID)
		})
	}
}

func TestBulkParams_Validate(t *testing.T) {
	assert.NoError(t, BulkParams{Action: "push", ContentType: "cocktail", IDs: []int64{1}}.Validate())
	assert.NoError(t, BulkParams{Action: "wpalgolia_index_delete", ContentType: "cocktail", IDs: []int64{1}}.Validate())
	assert.Error(t, BulkParams{Action: "purge", ContentType: "cocktail", IDs: []int64{1}}.Validate())
	assert.Error(t, BulkParams{Action: "push", IDs: []int64{1}}.Validate())
	assert.Error(t, BulkParams{Action: "push", ContentType: "cocktail"}.Validate())
}

func TestQueryAndCheckStatusParams_Validate(t *testing.T) {
	assert.Error(t, QueryParams{}.Validate())
	assert.NoError(t, QueryParams{ContentType: "post"}.Validate())
	assert.Error(t, CheckStatusParams{IDs: []int64{1}}.Validate())
	assert.NoError(t, CheckStatusParams{ContentType: "post"}.Validate())
}
