// Package changefeed fans committed row changes out to in-process subscribers.
// Postgres deployments feed the hub from LISTEN/NOTIFY; the sqlite fallback
// feeds it directly from the stores.
package changefeed

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"reliefportal/internal/domain/change"
)

// AllTables subscribes to every watched table.
const AllTables = change.AllTables

// Change is the payload delivered to subscribers.
type Change = change.Change

// Handler receives changes. Handlers run on the publisher's goroutine.
type Handler = func(Change)

type subscription struct {
	table string
	fn    Handler
}

// Hub is a table-keyed publish/subscribe registry. Deliveries are not
// coalesced: a burst of changes calls each handler once per change.
type Hub struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]subscription
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[int]subscription)}
}

// Subscribe registers fn for changes to table, or AllTables.
// POST: The returned function removes the subscription; calling it twice is safe
func (h *Hub) Subscribe(table string, fn Handler) func() {
	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.subs[id] = subscription{table: table, fn: fn}
	h.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
		})
	}
}

// Publish delivers c to every matching subscriber. A panicking handler is
// logged and does not stop delivery to the others.
func (h *Hub) Publish(c Change) {
	h.mu.RLock()
	targets := make([]Handler, 0, len(h.subs))
	for _, s := range h.subs {
		if s.table == AllTables || s.table == c.Table {
			targets = append(targets, s.fn)
		}
	}
	h.mu.RUnlock()

	for _, fn := range targets {
		deliver(fn, c)
	}
}

// Len returns the number of live subscriptions.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

func deliver(fn Handler, c Change) {
	defer func() {
		if r := recover(); r != nil {
			zap.L().Error("changefeed_event",
				zap.String("event", "handler_panic"),
				zap.String("table", c.Table),
				zap.Any("panic", r),
			)
		}
	}()
	fn(c)
}

// LocalNotifier publishes store notifications straight to a hub.
type LocalNotifier struct {
	Hub *Hub
	Now func() time.Time
}

// Notify implements storage.Notifier.
func (n LocalNotifier) Notify(_ context.Context, table, op, rowID, ownerID string) {
	now := time.Now
	if n.Now != nil {
		now = n.Now
	}
	n.Hub.Publish(Change{Table: table, Op: op, RowID: rowID, OwnerID: ownerID, At: now().UTC()})
}
