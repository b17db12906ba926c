// Package hooks implements the lifecycle hook registry. Hooks observe memory
// writes and may veto deletions; everything else they return is advisory.
// Hook faults never fail the surrounding operation.
package hooks

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/locaidev/locai/internal/metrics"
	"github.com/locaidev/locai/internal/models"
)

// DefaultTimeout bounds a hook invocation when the hook declares none.
const DefaultTimeout = 5 * time.Second

// Decision is a hook's verdict on an event.
type Decision struct {
	Veto   bool
	Reason string
}

// Continue is the no-op decision.
func Continue() Decision { return Decision{} }

// Veto blocks the operation (honored only for pre-delete hooks).
func Veto(reason string) Decision { return Decision{Veto: true, Reason: reason} }

// Hook observes memory lifecycle events. Implementations may block up to
// their declared timeout; slower calls are abandoned and treated as Continue.
type Hook interface {
	Name() string
	Priority() int
	Timeout() time.Duration

	OnCreated(ctx context.Context, mem *models.Memory) Decision
	OnAccessed(ctx context.Context, mem *models.Memory) Decision
	OnUpdated(ctx context.Context, old, new *models.Memory) Decision
	BeforeDeleted(ctx context.Context, mem *models.Memory) Decision
}

// BaseHook is a convenience embed providing default metadata and no-op
// callbacks. Override what you need.
type BaseHook struct {
	HookName     string
	HookPriority int
	HookTimeout  time.Duration
}

func (b BaseHook) Name() string  { return b.HookName }
func (b BaseHook) Priority() int { return b.HookPriority }
func (b BaseHook) Timeout() time.Duration {
	if b.HookTimeout <= 0 {
		return DefaultTimeout
	}
	return b.HookTimeout
}
func (BaseHook) OnCreated(context.Context, *models.Memory) Decision  { return Continue() }
func (BaseHook) OnAccessed(context.Context, *models.Memory) Decision { return Continue() }
func (BaseHook) OnUpdated(context.Context, *models.Memory, *models.Memory) Decision {
	return Continue()
}
func (BaseHook) BeforeDeleted(context.Context, *models.Memory) Decision { return Continue() }

// Registry holds registered hooks and fires them in priority order, ties
// broken by name.
type Registry struct {
	mu     sync.RWMutex
	hooks  []Hook
	logger *slog.Logger
}

// NewRegistry creates an empty hook registry.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{logger: logger}
}

// Register adds a hook and re-sorts the firing order.
func (r *Registry) Register(h Hook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hooks = append(r.hooks, h)
	sort.SliceStable(r.hooks, func(i, j int) bool {
		if r.hooks[i].Priority() != r.hooks[j].Priority() {
			return r.hooks[i].Priority() > r.hooks[j].Priority()
		}
		return r.hooks[i].Name() < r.hooks[j].Name()
	})
}

// Clear removes all hooks.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hooks = nil
}

// ListHooks returns hook names in firing order.
func (r *Registry) ListHooks() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.hooks))
	for _, h := range r.hooks {
		names = append(names, h.Name())
	}
	return names
}

func (r *Registry) snapshot() []Hook {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Hook(nil), r.hooks...)
}

// invoke runs one hook callback with its timeout and panic isolation. A
// timeout or panic degrades to Continue.
func (r *Registry) invoke(ctx context.Context, h Hook, fire func(context.Context) Decision) Decision {
	hctx, cancel := context.WithTimeout(ctx, h.Timeout())
	defer cancel()

	done := make(chan Decision, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				r.logger.Error("hook panicked, treating as continue", "hook", h.Name(), "panic", rec)
				done <- Continue()
			}
		}()
		done <- fire(hctx)
	}()

	select {
	case d := <-done:
		return d
	case <-hctx.Done():
		metrics.Inc(metrics.HookTimeouts)
		r.logger.Warn("hook timed out, treating as continue", "hook", h.Name(), "timeout", h.Timeout())
		return Continue()
	}
}

// ExecuteOnCreated fires after a memory is created. Vetoes are ignored.
func (r *Registry) ExecuteOnCreated(ctx context.Context, mem *models.Memory) {
	for _, h := range r.snapshot() {
		d := r.invoke(ctx, h, func(c context.Context) Decision { return h.OnCreated(c, mem) })
		if d.Veto {
			r.logger.Warn("veto from after-the-fact hook ignored", "hook", h.Name(), "event", "created", "reason", d.Reason)
		}
	}
}

// ExecuteOnAccessed fires after a memory read. Vetoes are ignored.
func (r *Registry) ExecuteOnAccessed(ctx context.Context, mem *models.Memory) {
	for _, h := range r.snapshot() {
		d := r.invoke(ctx, h, func(c context.Context) Decision { return h.OnAccessed(c, mem) })
		if d.Veto {
			r.logger.Warn("veto from after-the-fact hook ignored", "hook", h.Name(), "event", "accessed", "reason", d.Reason)
		}
	}
}

// ExecuteOnUpdated fires after a memory update. Vetoes are ignored.
func (r *Registry) ExecuteOnUpdated(ctx context.Context, old, new *models.Memory) {
	for _, h := range r.snapshot() {
		d := r.invoke(ctx, h, func(c context.Context) Decision { return h.OnUpdated(c, old, new) })
		if d.Veto {
			r.logger.Warn("veto from after-the-fact hook ignored", "hook", h.Name(), "event", "updated", "reason", d.Reason)
		}
	}
}

// ExecuteBeforeDeleted fires before a delete. The first veto aborts the
// operation; its reason is returned.
func (r *Registry) ExecuteBeforeDeleted(ctx context.Context, mem *models.Memory) (allow bool, reason string) {
	for _, h := range r.snapshot() {
		d := r.invoke(ctx, h, func(c context.Context) Decision { return h.BeforeDeleted(c, mem) })
		if d.Veto {
			r.logger.Info("delete vetoed", "hook", h.Name(), "memory_id", mem.ID, "reason", d.Reason)
			return false, d.Reason
		}
	}
	return true, ""
}
