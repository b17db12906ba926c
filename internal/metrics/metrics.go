// Package metrics provides application-level counters using stdlib expvar.
// Counters are automatically exported on the /debug/vars HTTP endpoint
// when net/http/pprof is imported in the main binary.
package metrics

import "expvar"

// Operation counters.
var (
	SearchTotal       = expvar.NewInt("locai_search_total")
	StoreTotal        = expvar.NewInt("locai_store_total")
	UpdateTotal       = expvar.NewInt("locai_update_total")
	DeleteTotal       = expvar.NewInt("locai_delete_total")
	DeleteVetoed      = expvar.NewInt("locai_delete_vetoed_total")
	VersionsCreated   = expvar.NewInt("locai_versions_created_total")
	VersionsCompacted = expvar.NewInt("locai_versions_compacted_total")
	SnapshotsCreated  = expvar.NewInt("locai_snapshots_created_total")
	SnapshotsRestored = expvar.NewInt("locai_snapshots_restored_total")
	BatchesExecuted   = expvar.NewInt("locai_batches_executed_total")
	EventsPublished   = expvar.NewInt("locai_events_published_total")
	EventsDropped     = expvar.NewInt("locai_events_dropped_total")
	HookTimeouts      = expvar.NewInt("locai_hook_timeouts_total")
	ExpiredMemories   = expvar.NewInt("locai_expired_memories_total")
)

// Inc increments the given counter by 1.
func Inc(counter *expvar.Int) { counter.Add(1) }
