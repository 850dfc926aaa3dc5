// Package realtime implements the table change feed.
package realtime

import (
	"context"
	"sync"

	"github.com/jayalms/lms/core"
)

// subscriberBuffer is the number of events a slow subscriber may lag behind before events are dropped for it.
const subscriberBuffer = 64

type subscriber struct {
	tables map[string]bool // nil means all
	ch     chan core.ChangeEvent
}

func (s *subscriber) wants(table string) bool {
	return s.tables == nil || s.tables[table]
}

// Hub is an in-process change broker.
type Hub struct {
	logger core.Logger

	mu     sync.RWMutex
	nextID int
	subs   map[int]*subscriber
}

var _ core.ChangeBroker = (*Hub)(nil)

func NewHub(logger core.Logger) *Hub {
	return &Hub{logger: logger, subs: make(map[int]*subscriber)}
}

// Publish never blocks: a subscriber whose buffer is full misses ev.
func (h *Hub) Publish(_ context.Context, ev core.ChangeEvent) error {
	h.dispatch(ev)
	return nil
}

func (h *Hub) dispatch(ev core.ChangeEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for id, sub := range h.subs {
		if !sub.wants(ev.Table) {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
			h.logger.Warn("dropping change event for slow subscriber", map[string]interface{}{"subscriber": id, "table": ev.Table})
		}
	}
}

func (h *Hub) Subscribe(ctx context.Context, tables ...string) (<-chan core.ChangeEvent, func()) {
	sub := &subscriber{ch: make(chan core.ChangeEvent, subscriberBuffer)}
	if len(tables) > 0 {
		sub.tables = make(map[string]bool, len(tables))
		for _, t := range tables {
			sub.tables[t] = true
		}
	}

	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.subs[id] = sub
	h.mu.Unlock()

	var once sync.Once
	stop := make(chan struct{})
	unsubscribe := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
			close(sub.ch)
			close(stop)
		})
	}

	go func() {
		select {
		case <-ctx.Done():
			unsubscribe()
		case <-stop:
		}
	}()
	return sub.ch, unsubscribe
}

// Subscribers returns the number of live subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
