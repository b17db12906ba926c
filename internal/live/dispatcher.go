// Package live implements the change notification dispatcher: filtered,
// bounded per-subscriber channels with drop-oldest back-pressure.
package live

import (
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/locaidev/locai/internal/metrics"
	"github.com/locaidev/locai/internal/models"
)

// DefaultBufferSize is the per-subscriber channel capacity.
const DefaultBufferSize = 100

// Filter selects which events a subscription receives. Zero values mean "no
// constraint". Fields combine with AND; Types empty means every variant.
type Filter struct {
	Types []models.EventType

	MemoryType      models.MemoryType
	MinPriority     *models.Priority
	MaxPriority     *models.Priority
	ContentContains string

	EntityType               models.EntityType
	EntityPropertiesContains string

	RelationshipType string
	SourceID         string
	TargetID         string
}

// Notification is one delivery to a subscriber. Lagged reports how many
// events were dropped since the previous delivery; it is never silently zeroed.
type Notification struct {
	Event  models.ChangeEvent `json:"event"`
	Lagged int                `json:"lagged,omitempty"`
}

// Subscription is a live feed handle. Receive from C until Unsubscribe.
type Subscription struct {
	ID string
	C  <-chan Notification

	ch     chan Notification
	filter Filter
	done   chan struct{}
	once   sync.Once

	mu     sync.Mutex // serializes deliveries; guards lagged
	lagged int
}

func (s *Subscription) closed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// Dispatcher fans change events out to filtered subscribers. nodeID stamps
// published events so peers in multi-instance deployments can suppress their
// own echoes; subscribers of this dispatcher never see events stamped with a
// foreign dispatcher's suppressed id.
type Dispatcher struct {
	mu      sync.RWMutex
	subs    map[string]*Subscription
	nodeID  string
	bufSize int
	seq     atomic.Uint64
	logger  *slog.Logger
}

// NewDispatcher creates a dispatcher. bufSize <= 0 uses the default.
func NewDispatcher(nodeID string, bufSize int, logger *slog.Logger) *Dispatcher {
	if bufSize <= 0 {
		bufSize = DefaultBufferSize
	}
	return &Dispatcher{
		subs:    make(map[string]*Subscription),
		nodeID:  nodeID,
		bufSize: bufSize,
		logger:  logger,
	}
}

// NodeID returns the id stamped on published events.
func (d *Dispatcher) NodeID() string { return d.nodeID }

// Subscribe registers a new filtered subscription. Equal filters yield
// independent subscriptions.
func (d *Dispatcher) Subscribe(filter Filter) *Subscription {
	sub := &Subscription{
		ID:     uuid.NewString(),
		ch:     make(chan Notification, d.bufSize),
		filter: filter,
		done:   make(chan struct{}),
	}
	sub.C = sub.ch

	d.mu.Lock()
	d.subs[sub.ID] = sub
	d.mu.Unlock()
	d.logger.Debug("subscription added", "subscription_id", sub.ID)
	return sub
}

// Unsubscribe marks a subscription for reaping. Idempotent.
func (d *Dispatcher) Unsubscribe(id string) {
	d.mu.Lock()
	sub, ok := d.subs[id]
	if ok {
		delete(d.subs, id)
	}
	d.mu.Unlock()
	if ok {
		sub.once.Do(func() { close(sub.done) })
	}
}

// Close cancels a subscription from the receiver side; it is reaped on the
// next publish.
func (s *Subscription) Close() {
	s.once.Do(func() { close(s.done) })
}

// SubscriberCount reports active subscriptions.
func (d *Dispatcher) SubscriberCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.subs)
}

// Publish stamps the event with this node's id and a monotonic sequence and
// delivers it to every matching subscriber. Full buffers drop their oldest
// entry; the drop count rides on the next delivered notification.
func (d *Dispatcher) Publish(event models.ChangeEvent) {
	event.NodeID = d.nodeID
	event.Sequence = d.seq.Add(1)

	d.mu.RLock()
	subs := make([]*Subscription, 0, len(d.subs))
	for _, sub := range d.subs {
		subs = append(subs, sub)
	}
	d.mu.RUnlock()

	var dead []string
	for _, sub := range subs {
		if sub.closed() {
			dead = append(dead, sub.ID)
			continue
		}
		if !sub.filter.matches(&event) {
			continue
		}
		d.deliver(sub, event)
	}
	for _, id := range dead {
		d.Unsubscribe(id)
	}
	metrics.Inc(metrics.EventsPublished)
}

func (d *Dispatcher) deliver(sub *Subscription, event models.ChangeEvent) {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	n := Notification{Event: event, Lagged: sub.lagged}
	for {
		select {
		case sub.ch <- n:
			sub.lagged = 0
			return
		default:
		}
		// Buffer full: drop the oldest queued notification and retry.
		select {
		case old := <-sub.ch:
			sub.lagged += 1 + old.Lagged
			n.Lagged = sub.lagged
			metrics.Inc(metrics.EventsDropped)
			d.logger.Warn("subscriber lagging, dropped oldest event",
				"subscription_id", sub.ID, "dropped_total", sub.lagged)
		default:
			// Receiver drained the channel between checks; retry the send.
		}
	}
}

// matches evaluates the filter server-side before delivery.
func (f *Filter) matches(e *models.ChangeEvent) bool {
	if len(f.Types) > 0 {
		ok := false
		for _, t := range f.Types {
			if t == e.Type {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}

	// A constraint on one record kind restricts the subscription to events
	// carrying that kind: a memory-typed filter never matches entity events.
	if f.MemoryType != "" || f.MinPriority != nil || f.MaxPriority != nil || f.ContentContains != "" {
		if e.Memory == nil {
			return false
		}
		if f.MemoryType != "" && e.Memory.MemoryType != f.MemoryType {
			return false
		}
		if f.MinPriority != nil && e.Memory.Priority < *f.MinPriority {
			return false
		}
		if f.MaxPriority != nil && e.Memory.Priority > *f.MaxPriority {
			return false
		}
		if f.ContentContains != "" &&
			!strings.Contains(strings.ToLower(e.Memory.Content), strings.ToLower(f.ContentContains)) {
			return false
		}
	}

	if f.EntityType != "" || f.EntityPropertiesContains != "" {
		if e.Entity == nil {
			return false
		}
		if f.EntityType != "" && e.Entity.EntityType != f.EntityType {
			return false
		}
		if f.EntityPropertiesContains != "" && !propertiesContain(e.Entity.Properties, f.EntityPropertiesContains) {
			return false
		}
	}

	if f.RelationshipType != "" || f.SourceID != "" || f.TargetID != "" {
		if e.Relationship == nil {
			return false
		}
		if f.RelationshipType != "" && e.Relationship.RelationshipType != f.RelationshipType {
			return false
		}
		if f.SourceID != "" && e.Relationship.SourceID != f.SourceID {
			return false
		}
		if f.TargetID != "" && e.Relationship.TargetID != f.TargetID {
			return false
		}
	}
	return true
}

func propertiesContain(props map[string]any, needle string) bool {
	needle = strings.ToLower(needle)
	for _, v := range props {
		if s, ok := v.(string); ok && strings.Contains(strings.ToLower(s), needle) {
			return true
		}
	}
	return false
}

// SuppressEcho reports whether a received event originated from ownNodeID
// and should be skipped by a mirroring consumer.
func SuppressEcho(e *models.ChangeEvent, ownNodeID string) bool {
	return ownNodeID != "" && e.NodeID == ownNodeID
}
