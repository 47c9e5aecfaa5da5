package usage

import (
	"sync"
	"time"

	"unidss/domain/core"
	"unidss/internal"
	"unidss/ports"
)

// OperationInsight labels narrative requests
const OperationInsight = "insight"

// defaultHistory is how many records a Tracker keeps
const defaultHistory = 100

// Record is one completion attempt
type Record struct {
	ID               core.ID       `json:"id"`
	Operation        string        `json:"operation"`
	Provider         string        `json:"provider,omitempty"`
	Model            string        `json:"model,omitempty"`
	PromptTokens     int           `json:"prompt_tokens"`
	CompletionTokens int           `json:"completion_tokens"`
	TotalTokens      int           `json:"total_tokens"`
	Failed           bool          `json:"failed"`
	Duration         time.Duration `json:"duration_ns"`
	CreatedAt        time.Time     `json:"created_at"`
}

// Summary aggregates every record seen since start, including ones that
// have rotated out of the history
type Summary struct {
	Requests         int            `json:"requests"`
	Failures         int            `json:"failures"`
	PromptTokens     int            `json:"prompt_tokens"`
	CompletionTokens int            `json:"completion_tokens"`
	TotalTokens      int            `json:"total_tokens"`
	TokensByModel    map[string]int `json:"tokens_by_model"`
}

// Tracker keeps completion usage in memory
type Tracker struct {
	mu      sync.Mutex
	history []Record
	limit   int
	totals  Summary
	logger  *internal.Logger
	now     func() time.Time
}

// NewTracker creates a tracker remembering the last limit records.
// limit <= 0 uses a default of 100.
func NewTracker(limit int, logger *internal.Logger) *Tracker {
	if limit <= 0 {
		limit = defaultHistory
	}
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &Tracker{
		limit:  limit,
		logger: logger,
		now:    time.Now,
		totals: Summary{TokensByModel: make(map[string]int)},
	}
}

// RecordUsage records one completion attempt. usage may be nil when the
// provider reported nothing or the call failed.
func (t *Tracker) RecordUsage(operation string, usage *ports.UsageData, failed bool, elapsed time.Duration) {
	rec := Record{
		ID:        core.NewID(),
		Operation: operation,
		Failed:    failed,
		Duration:  elapsed,
		CreatedAt: t.now(),
	}
	if usage != nil {
		if usage.PromptTokens < 0 || usage.CompletionTokens < 0 || usage.TotalTokens < 0 {
			t.logger.Warn("[UsageTracker] invalid token counts ignored: %+v", *usage)
		} else {
			rec.Provider = usage.Provider
			rec.Model = usage.Model
			rec.PromptTokens = usage.PromptTokens
			rec.CompletionTokens = usage.CompletionTokens
			rec.TotalTokens = usage.TotalTokens
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.history = append(t.history, rec)
	if len(t.history) > t.limit {
		t.history = append([]Record(nil), t.history[len(t.history)-t.limit:]...)
	}

	t.totals.Requests++
	if failed {
		t.totals.Failures++
	}
	t.totals.PromptTokens += rec.PromptTokens
	t.totals.CompletionTokens += rec.CompletionTokens
	t.totals.TotalTokens += rec.TotalTokens
	if rec.Model != "" {
		t.totals.TokensByModel[rec.Model] += rec.TotalTokens
	}
}

// Summary returns a copy of the running totals
func (t *Tracker) Summary() Summary {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := t.totals
	s.TokensByModel = make(map[string]int, len(t.totals.TokensByModel))
	for k, v := range t.totals.TokensByModel {
		s.TokensByModel[k] = v
	}
	return s
}

// Recent returns up to n records, newest first
func (t *Tracker) Recent(n int) []Record {
	t.mu.Lock()
	defer t.mu.Unlock()

	if n <= 0 || n > len(t.history) {
		n = len(t.history)
	}
	out := make([]Record, 0, n)
	for i := len(t.history) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, t.history[i])
	}
	return out
}
