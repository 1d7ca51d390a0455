package admission

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/akivoy/orion/internal/conversation"
	"github.com/akivoy/orion/internal/observability"
)

// Janitor periodically evicts sessions idle longer than the TTL. Users with
// a turn in flight are skipped; their eviction waits for a later pass.
type Janitor struct {
	gate    *Gate
	store   conversation.Store
	ttl     time.Duration
	cron    *cron.Cron
	log     *observability.Logger
	metrics *observability.Metrics
}

// NewJanitor creates a janitor over the gate's activity records.
func NewJanitor(gate *Gate, store conversation.Store, ttl, interval time.Duration, log *observability.Logger, metrics *observability.Metrics) *Janitor {
	j := &Janitor{
		gate:    gate,
		store:   store,
		ttl:     ttl,
		log:     log,
		metrics: metrics,
	}
	j.cron = cron.New()
	spec := fmt.Sprintf("@every %s", interval)
	// The schedule expression is built from a validated duration, so
	// AddFunc cannot fail.
	j.cron.AddFunc(spec, j.sweep)
	return j
}

// Start begins the periodic sweeps.
func (j *Janitor) Start() {
	j.cron.Start()
}

// Stop halts scheduling and waits for an in-progress sweep to finish.
func (j *Janitor) Stop() {
	ctx := j.cron.Stop()
	<-ctx.Done()
}

// Sweep runs one eviction pass immediately. Errors are logged, never
// propagated; a failed pass must not take the scheduler down.
func (j *Janitor) Sweep() {
	j.sweep()
}

func (j *Janitor) sweep() {
	defer func() {
		if r := recover(); r != nil {
			j.log.Error(context.Background(), "cleanup pass panicked", "panic", fmt.Sprint(r))
		}
	}()

	cutoff := time.Now().Add(-j.ttl)
	evicted := 0
	for _, userID := range j.gate.idleSince(cutoff) {
		j.store.Delete(userID)
		j.gate.Forget(userID)
		evicted++
		j.log.Debug(context.Background(), "evicted inactive session", "user", userID)
	}
	if evicted > 0 {
		if j.metrics != nil {
			j.metrics.JanitorEvictions.Add(float64(evicted))
			j.metrics.ActiveSessions.Set(float64(j.store.Len()))
		}
		j.log.Info(context.Background(), "cleanup pass finished", "evicted", evicted, "remaining", j.store.Len())
	}
}
