package build

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/goplus/cook/internal/collect"
	"github.com/goplus/cook/internal/executor"
	"github.com/goplus/cook/internal/par"
	"github.com/qiniu/x/log"
)

// Status is the outcome of one recipe pipeline.
type Status string

const (
	StatusBuilt     Status = "built"
	StatusCached    Status = "cached"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Outcome is the result of building one target.
type Outcome struct {
	Target   Target
	Platform string // descriptor key, empty if it could not be derived
	Status   Status
	Stage    Stage // stage of Err
	Err      error

	Artifact *collect.Artifact
	Result   *executor.Result // nil unless the build stage ran
	Duration time.Duration
}

// OK reports whether a package is available for the target.
func (o *Outcome) OK() bool {
	return o.Status == StatusBuilt || o.Status == StatusCached
}

// Report is the result of a batch.
type Report struct {
	ID       uuid.UUID
	Started  time.Time
	Outcomes []*Outcome // in request order
}

// Failed reports whether any target did not produce a package.
func (r *Report) Failed() bool {
	return slices.ContainsFunc(r.Outcomes, func(o *Outcome) bool { return !o.OK() })
}

// BuildAll builds targets with at most Options.Jobs pipelines at a time.
// A failing target does not stop the others. Duplicate targets are built
// once. Once ctx is done, targets that have not started are cancelled.
// A batch-wide option that no target's recipe declares fails every target.
func (b *Builder) BuildAll(ctx context.Context, targets []Target) *Report {
	rep := &Report{ID: uuid.New(), Started: time.Now()}
	log.Infof("batch %s: %d targets, %d jobs", rep.ID, len(targets), b.opts.Jobs)

	keys := make([]string, len(targets))
	byKey := make(map[string]Target)
	var work par.Work[string]
	for i, t := range targets {
		keys[i] = t.String()
		if work.Add(keys[i]) {
			byKey[keys[i]] = t
		}
	}

	optErr := b.checkGlobal(targets)
	var mu sync.Mutex
	done := make(map[string]*Outcome)
	work.Do(b.opts.Jobs, func(key string) {
		o := b.run(ctx, byKey[key], optErr)
		mu.Lock()
		done[key] = o
		mu.Unlock()
	})

	for _, k := range keys {
		rep.Outcomes = append(rep.Outcomes, done[k])
	}
	return rep
}

func sortedKeys(m map[string]string) []string {
	return slices.Sorted(maps.Keys(m))
}
