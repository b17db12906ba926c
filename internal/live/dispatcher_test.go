package live

import (
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/locaidev/locai/internal/models"
)

func newTestDispatcher(t *testing.T, bufSize int) *Dispatcher {
	t.Helper()
	return NewDispatcher("node-a", bufSize, slog.New(slog.NewTextHandler(testWriter{t}, nil)))
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}

func memoryEvent(typ models.EventType, mem *models.Memory) models.ChangeEvent {
	return models.ChangeEvent{Type: typ, Timestamp: time.Now().UTC(), Memory: mem}
}

func recv(t *testing.T, sub *Subscription) Notification {
	t.Helper()
	select {
	case n := <-sub.C:
		return n
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for notification")
		return Notification{}
	}
}

func TestPublishDeliversToMatchingSubscribers(t *testing.T) {
	d := newTestDispatcher(t, 10)
	all := d.Subscribe(Filter{})
	created := d.Subscribe(Filter{Types: []models.EventType{models.EventMemoryCreated}})
	deleted := d.Subscribe(Filter{Types: []models.EventType{models.EventMemoryDeleted}})

	d.Publish(memoryEvent(models.EventMemoryCreated, &models.Memory{ID: "m1", Content: "hello"}))

	n := recv(t, all)
	assert.Equal(t, models.EventMemoryCreated, n.Event.Type)
	assert.Equal(t, "node-a", n.Event.NodeID)
	assert.Equal(t, uint64(1), n.Event.Sequence)

	n = recv(t, created)
	assert.Equal(t, "m1", n.Event.Memory.ID)

	select {
	case <-deleted.C:
		t.Fatal("delete subscriber received a create event")
	default:
	}
}

func TestSequenceIsMonotonicPerPublisher(t *testing.T) {
	d := newTestDispatcher(t, 10)
	sub := d.Subscribe(Filter{})

	for i := 0; i < 3; i++ {
		d.Publish(memoryEvent(models.EventMemoryCreated, &models.Memory{ID: "m"}))
	}
	for want := uint64(1); want <= 3; want++ {
		assert.Equal(t, want, recv(t, sub).Event.Sequence)
	}
}

func TestMemoryFilters(t *testing.T) {
	d := newTestDispatcher(t, 10)
	hi := models.PriorityHigh
	sub := d.Subscribe(Filter{
		MemoryType:      models.MemoryTypeFact,
		MinPriority:     &hi,
		ContentContains: "deploy",
	})

	d.Publish(memoryEvent(models.EventMemoryCreated, &models.Memory{
		ID: "skip-type", MemoryType: models.MemoryTypeConversation,
		Priority: models.PriorityHigh, Content: "deploy notes",
	}))
	d.Publish(memoryEvent(models.EventMemoryCreated, &models.Memory{
		ID: "skip-priority", MemoryType: models.MemoryTypeFact,
		Priority: models.PriorityLow, Content: "deploy notes",
	}))
	d.Publish(memoryEvent(models.EventMemoryCreated, &models.Memory{
		ID: "skip-content", MemoryType: models.MemoryTypeFact,
		Priority: models.PriorityCritical, Content: "unrelated",
	}))
	d.Publish(memoryEvent(models.EventMemoryCreated, &models.Memory{
		ID: "match", MemoryType: models.MemoryTypeFact,
		Priority: models.PriorityCritical, Content: "Deploy checklist",
	}))

	n := recv(t, sub)
	assert.Equal(t, "match", n.Event.Memory.ID)
	select {
	case extra := <-sub.C:
		t.Fatalf("unexpected extra delivery: %s", extra.Event.Memory.ID)
	default:
	}
}

func TestRelationshipAndEntityFilters(t *testing.T) {
	d := newTestDispatcher(t, 10)
	relSub := d.Subscribe(Filter{RelationshipType: "married_to", SourceID: "alice"})
	entSub := d.Subscribe(Filter{EntityType: models.EntityTypePerson, EntityPropertiesContains: "engineer"})

	d.Publish(models.ChangeEvent{
		Type:         models.EventRelationshipCreated,
		Relationship: &models.Relationship{ID: "r1", RelationshipType: "married_to", SourceID: "bob", TargetID: "alice"},
	})
	d.Publish(models.ChangeEvent{
		Type:         models.EventRelationshipCreated,
		Relationship: &models.Relationship{ID: "r2", RelationshipType: "married_to", SourceID: "alice", TargetID: "bob"},
	})
	assert.Equal(t, "r2", recv(t, relSub).Event.Relationship.ID)

	// The entity-only filter must not see relationship events.
	select {
	case n := <-entSub.C:
		t.Fatalf("entity subscriber received a %s event", n.Event.Type)
	default:
	}

	d.Publish(models.ChangeEvent{
		Type:   models.EventEntityCreated,
		Entity: &models.Entity{ID: "e1", EntityType: models.EntityTypePerson, Properties: map[string]any{"role": "software engineer"}},
	})
	assert.Equal(t, "e1", recv(t, entSub).Event.Entity.ID)

	// And the relationship-only filter must not see entity events.
	select {
	case n := <-relSub.C:
		t.Fatalf("relationship subscriber received a %s event", n.Event.Type)
	default:
	}
}

func TestDropOldestCarriesLaggedCount(t *testing.T) {
	d := newTestDispatcher(t, 2)
	sub := d.Subscribe(Filter{})

	for i := 0; i < 5; i++ {
		d.Publish(memoryEvent(models.EventMemoryCreated, &models.Memory{ID: "m"}))
	}

	// Buffer of 2: events 1-3 were dropped, 4 and 5 remain queued.
	n := recv(t, sub)
	assert.Equal(t, uint64(4), n.Event.Sequence)
	assert.Equal(t, 3, n.Lagged)

	n = recv(t, sub)
	assert.Equal(t, uint64(5), n.Event.Sequence)
	assert.Zero(t, n.Lagged)
}

func TestConcurrentPublishersAccountForEveryEvent(t *testing.T) {
	d := newTestDispatcher(t, 2)
	sub := d.Subscribe(Filter{})

	const publishers = 8
	const perPublisher = 50
	var wg sync.WaitGroup
	for i := 0; i < publishers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perPublisher; j++ {
				d.Publish(memoryEvent(models.EventMemoryCreated, &models.Memory{ID: "m"}))
			}
		}()
	}
	wg.Wait()

	// Every event is either delivered or counted as lagged on a later
	// delivery; none vanish even when publishers contend on one buffer.
	received, lagged := 0, 0
	for {
		select {
		case n := <-sub.C:
			received++
			lagged += n.Lagged
		default:
			assert.Equal(t, publishers*perPublisher, received+lagged)
			return
		}
	}
}

func TestUnsubscribeStopsDeliveryAndReaps(t *testing.T) {
	d := newTestDispatcher(t, 10)
	sub := d.Subscribe(Filter{})
	require.Equal(t, 1, d.SubscriberCount())

	d.Unsubscribe(sub.ID)
	assert.Equal(t, 0, d.SubscriberCount())
	d.Unsubscribe(sub.ID) // idempotent

	d.Publish(memoryEvent(models.EventMemoryCreated, &models.Memory{ID: "m"}))
	select {
	case <-sub.C:
		t.Fatal("received event after unsubscribe")
	default:
	}
}

func TestClosedSubscriberReapedOnPublish(t *testing.T) {
	d := newTestDispatcher(t, 10)
	sub := d.Subscribe(Filter{})
	sub.Close()

	d.Publish(memoryEvent(models.EventMemoryCreated, &models.Memory{ID: "m"}))
	assert.Equal(t, 0, d.SubscriberCount())
}

func TestEchoSuppression(t *testing.T) {
	e := models.ChangeEvent{Type: models.EventMemoryCreated, NodeID: "node-a"}
	assert.True(t, SuppressEcho(&e, "node-a"))
	assert.False(t, SuppressEcho(&e, "node-b"))
	assert.False(t, SuppressEcho(&e, ""))
}
