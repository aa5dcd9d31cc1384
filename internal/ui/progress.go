package ui

import (
	"sync"
	"time"
)

// ProgressTracker accumulates reindex progress. It is safe for concurrent use.
type ProgressTracker struct {
	mu         sync.RWMutex
	stage      Stage
	current    int
	total      int
	lastItem   string
	indexName  string
	saved      int
	skipped    int
	failed     int
	stageStart time.Time
	errors     []ErrorEvent

	// lastETA smooths the estimate between items.
	lastETA time.Duration
}

// ProgressStats contains a snapshot of current progress.
type ProgressStats struct {
	Stage     Stage
	Current   int
	Total     int
	Progress  float64
	ETA       time.Duration
	LastItem  string
	IndexName string
	Saved     int
	Skipped   int
	Failed    int
}

// NewProgressTracker creates a new progress tracker.
func NewProgressTracker() *ProgressTracker {
	return &ProgressTracker{
		stage:      StageListing,
		stageStart: time.Now(),
	}
}

// SetStage transitions to a new stage.
func (p *ProgressTracker) SetStage(stage Stage, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stage = stage
	p.total = total
	p.current = 0
	p.stageStart = time.Now()
	p.lastETA = 0
}

// Record applies one item event.
func (p *ProgressTracker) Record(event ProgressEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if event.Total > 0 {
		p.total = event.Total
	}
	p.current = event.Current
	if event.Title != "" {
		p.lastItem = event.Title
	}
	if event.IndexName != "" {
		p.indexName = event.IndexName
	}

	switch event.Outcome {
	case OutcomeSaved:
		p.saved++
	case OutcomeSkipped:
		p.skipped++
	case OutcomeFailed:
		p.failed++
	}
}

// AddError records an error or warning.
func (p *ProgressTracker) AddError(event ErrorEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.errors = append(p.errors, event)
}

// Errors returns the recorded errors.
func (p *ProgressTracker) Errors() []ErrorEvent {
	p.mu.RLock()
	defer p.mu.RUnlock()

	result := make([]ErrorEvent, len(p.errors))
	copy(result, p.errors)
	return result
}

// Stats returns current statistics snapshot.
// Uses write lock because calculateETA updates lastETA.
func (p *ProgressTracker) Stats() ProgressStats {
	p.mu.Lock()
	defer p.mu.Unlock()

	progress := 0.0
	if p.total > 0 {
		progress = float64(p.current) / float64(p.total)
		if progress > 1.0 {
			progress = 1.0
		}
	}

	return ProgressStats{
		Stage:     p.stage,
		Current:   p.current,
		Total:     p.total,
		Progress:  progress,
		ETA:       p.calculateETA(),
		LastItem:  p.lastItem,
		IndexName: p.indexName,
		Saved:     p.saved,
		Skipped:   p.skipped,
		Failed:    p.failed,
	}
}

// etaSmoothingFactor is the weight of the newest estimate.
const etaSmoothingFactor = 0.3

// calculateETA must be called with the lock held.
func (p *ProgressTracker) calculateETA() time.Duration {
	if p.current == 0 || p.total == 0 || p.current >= p.total {
		return 0
	}

	elapsed := time.Since(p.stageStart)
	progress := float64(p.current) / float64(p.total)
	raw := time.Duration(float64(elapsed)/progress) - elapsed
	if raw < 0 {
		return 0
	}

	if p.lastETA == 0 {
		p.lastETA = raw
		return raw
	}
	smoothed := time.Duration(etaSmoothingFactor*float64(raw) + (1-etaSmoothingFactor)*float64(p.lastETA))
	p.lastETA = smoothed
	return smoothed
}
