package app

import (
	"context"
	"sync"
	"time"

	"unidss/domain/core"
	"unidss/domain/department"
	"unidss/internal"
	apperrors "unidss/internal/errors"
)

// State is the dashboard lifecycle position
type State string

const (
	StateIdle           State = "idle"
	StateLoaded         State = "loaded"
	StateInsightPending State = "insight_pending"
	StateInsightReady   State = "insight_ready"
	StateInsightFailed  State = "insight_failed"
)

// View is an immutable snapshot of the dashboard. Recommendations and
// Summary are recomputed from the dataset for every snapshot.
type View struct {
	State           State                       `json:"state"`
	Dataset         *department.Dataset         `json:"dataset,omitempty"`
	Recommendations []department.Recommendation `json:"recommendations"`
	Summary         department.Summary          `json:"summary"`
	Insight         string                      `json:"insight,omitempty"`
	InsightBusy     bool                        `json:"insight_busy"`
}

// HasData reports whether a dataset is loaded
func (v View) HasData() bool {
	return v.Dataset != nil
}

// Dashboard holds the single in-memory dataset and insight state.
//
// Transitions:
//
//	idle            --Load-->           loaded
//	any             --Load-->           loaded (dataset replaced, insight cleared)
//	loaded|ready|failed --RequestInsight--> insight_pending --> insight_ready | insight_failed
type Dashboard struct {
	mu       sync.RWMutex
	rules    department.Rules
	insights *InsightService
	logger   *internal.Logger
	now      func() time.Time

	state   State
	dataset *department.Dataset
	insight string
}

// NewDashboard creates an idle dashboard
func NewDashboard(rules department.Rules, insights *InsightService, logger *internal.Logger) *Dashboard {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &Dashboard{
		rules:    rules,
		insights: insights,
		logger:   logger,
		now:      time.Now,
		state:    StateIdle,
	}
}

// Load derives the records and replaces the current dataset
func (d *Dashboard) Load(source string, records []department.Record) View {
	ds := &department.Dataset{
		ID:       core.NewDatasetID(),
		Source:   source,
		LoadedAt: d.now(),
		Records:  department.Derive(records),
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.dataset = ds
	d.state = StateLoaded
	d.insight = ""
	d.logger.Info("[Dashboard] loaded %d departments from %s (dataset %s)", ds.Len(), source, ds.ID)
	return d.viewLocked()
}

// RequestInsight asks for a narrative of the current dataset. It fails with
// NO_DATASET before the first load and INSIGHT_BUSY while another request is
// outstanding. A result for a dataset that was replaced meanwhile is
// discarded.
func (d *Dashboard) RequestInsight(ctx context.Context) (View, error) {
	d.mu.Lock()
	if d.dataset == nil {
		d.mu.Unlock()
		return View{}, apperrors.NoDataset()
	}
	if !d.insights.TryAcquire() {
		d.mu.Unlock()
		return View{}, apperrors.InsightBusy()
	}
	defer d.insights.Release()

	id := d.dataset.ID
	summary := department.Summarize(d.dataset.Records)
	d.state = StateInsightPending
	d.insight = ""
	d.mu.Unlock()

	// The narrative belongs to the session, not to the HTTP request that
	// triggered it.
	ins := d.insights.Generate(context.WithoutCancel(ctx), summary)

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.dataset == nil || d.dataset.ID != id {
		d.logger.Info("[Dashboard] discarding insight for replaced dataset %s", id)
	} else {
		d.insight = ins.Text
		d.state = StateInsightReady
		if ins.Failed {
			d.state = StateInsightFailed
		}
	}
	// the gate is released by the deferred call right after this returns
	v := d.viewLocked()
	v.InsightBusy = false
	return v, nil
}

// Snapshot returns the current view
func (d *Dashboard) Snapshot() View {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.viewLocked()
}

// Rules returns the recommendation thresholds in use
func (d *Dashboard) Rules() department.Rules {
	return d.rules
}

func (d *Dashboard) viewLocked() View {
	v := View{
		State:           d.state,
		Dataset:         d.dataset,
		Insight:         d.insight,
		InsightBusy:     d.insights.Busy(),
		Recommendations: []department.Recommendation{},
	}
	if d.dataset != nil {
		v.Recommendations = d.rules.Recommend(d.dataset.Records)
		v.Summary = department.Summarize(d.dataset.Records)
	}
	return v
}
