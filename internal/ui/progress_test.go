package ui

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProgressTracker_Initial(t *testing.T) {
	stats := NewProgressTracker().Stats()

	assert.Equal(t, StageListing, stats.Stage)
	assert.Zero(t, stats.Progress)
	assert.Zero(t, stats.ETA)
}

func TestProgressTracker_RecordCountsOutcomes(t *testing.T) {
	// Given: a tracker in the indexing stage
	p := NewProgressTracker()
	p.SetStage(StageIndexing, 4)

	// When: recording three items
	p.Record(ProgressEvent{Current: 1, Total: 4, Title: "A", IndexName: "production_cocktail", Outcome: OutcomeSaved})
	p.Record(ProgressEvent{Current: 2, Total: 4, Title: "B", Outcome: OutcomeSkipped})
	p.Record(ProgressEvent{Current: 3, Total: 4, Outcome: OutcomeFailed})

	// Then: counts, progress and the last named item are tracked
	stats := p.Stats()
	assert.Equal(t, 1, stats.Saved)
	assert.Equal(t, 1, stats.Skipped)
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 3, stats.Current)
	assert.InDelta(t, 0.75, stats.Progress, 0.001)
	assert.Equal(t, "B", stats.LastItem)
	assert.Equal(t, "production_cocktail", stats.IndexName)
}

func TestProgressTracker_ProgressCapped(t *testing.T) {
	p := NewProgressTracker()
	p.SetStage(StageIndexing, 2)

	p.Record(ProgressEvent{Current: 5})

	assert.Equal(t, 1.0, p.Stats().Progress)
	assert.Zero(t, p.Stats().ETA)
}

func TestProgressTracker_Errors(t *testing.T) {
	p := NewProgressTracker()
	p.AddError(ErrorEvent{ItemID: 3, Err: errors.New("boom")})

	errs := p.Errors()
	require.Len(t, errs, 1)
	errs[0].ItemID = 99

	assert.Equal(t, int64(3), p.Errors()[0].ItemID)
}

func TestProgressTracker_ConcurrentUse(t *testing.T) {
	p := NewProgressTracker()
	p.SetStage(StageIndexing, 100)

	var wg sync.WaitGroup
	for i := 1; i <= 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p.Record(ProgressEvent{Current: i, Outcome: OutcomeSaved})
			_ = p.Stats()
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 100, p.Stats().Saved)
}
