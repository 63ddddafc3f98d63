// Package monitor dispatches OVN northbound row changes seen by the native
// client cache to watched row events.
package monitor

import (
	"context"
	"sync"

	"github.com/ovn-org/libovsdb/cache"
	"github.com/ovn-org/libovsdb/model"
	"k8s.io/klog/v2"

	"github.com/ovn-org/ovsdb-frontend/pkg/metrics"
)

// EventKind is the kind of change of a row
type EventKind string

const (
	EventCreate EventKind = "create"
	EventUpdate EventKind = "update"
	EventDelete EventKind = "delete"
)

// RowEvent is a reaction to a kind of change of the rows of a table
type RowEvent struct {
	Name  string
	Table string
	Kind  EventKind
	// Matches filters the rows, old is only set on updates. nil matches all.
	Matches func(row, old model.Model) bool
	// OneTime events are unwatched after they first ran
	OneTime bool
	Run     func(kind EventKind, row, old model.Model)
}

func (e *RowEvent) matches(kind EventKind, table string, row, old model.Model) bool {
	if e.Kind != kind || e.Table != table {
		return false
	}
	return e.Matches == nil || e.Matches(row, old)
}

type notification struct {
	event *RowEvent
	kind  EventKind
	row   model.Model
	old   model.Model
}

// Handler queues the watched events matching each notified change and runs
// them in order on a single worker
type Handler struct {
	sync.Mutex
	watched map[*RowEvent]struct{}

	queueLock sync.Mutex
	queue     []notification
	signal    chan struct{}
}

var _ cache.EventHandler = &Handler{}

// NewHandler returns a handler watching events
func NewHandler(events ...*RowEvent) *Handler {
	h := &Handler{
		watched: map[*RowEvent]struct{}{},
		signal:  make(chan struct{}, 1),
	}
	h.Watch(events...)
	return h
}

// Watch adds events to the watched set
func (h *Handler) Watch(events ...*RowEvent) {
	h.Lock()
	defer h.Unlock()
	for _, e := range events {
		h.watched[e] = struct{}{}
	}
}

// Unwatch removes events from the watched set. Unknown events are ignored.
func (h *Handler) Unwatch(events ...*RowEvent) {
	h.Lock()
	defer h.Unlock()
	for _, e := range events {
		delete(h.watched, e)
	}
}

// IsWatched reports whether e is in the watched set
func (h *Handler) IsWatched(e *RowEvent) bool {
	h.Lock()
	defer h.Unlock()
	_, ok := h.watched[e]
	return ok
}

func (h *Handler) matching(kind EventKind, table string, row, old model.Model) []*RowEvent {
	h.Lock()
	defer h.Unlock()
	var matched []*RowEvent
	for e := range h.watched {
		if e.matches(kind, table, row, old) {
			matched = append(matched, e)
		}
	}
	return matched
}

// Notify queues the watched events matching the change
func (h *Handler) Notify(kind EventKind, table string, row, old model.Model) {
	metrics.RecordMonitorEvent(table, string(kind))
	matched := h.matching(kind, table, row, old)
	if len(matched) == 0 {
		return
	}
	h.queueLock.Lock()
	for _, e := range matched {
		h.queue = append(h.queue, notification{event: e, kind: kind, row: row, old: old})
	}
	h.queueLock.Unlock()
	select {
	case h.signal <- struct{}{}:
	default:
	}
}

func (h *Handler) OnAdd(table string, m model.Model) {
	h.Notify(EventCreate, table, m, nil)
}

func (h *Handler) OnUpdate(table string, old, new model.Model) {
	h.Notify(EventUpdate, table, new, old)
}

func (h *Handler) OnDelete(table string, m model.Model) {
	h.Notify(EventDelete, table, m, nil)
}

// Run runs the queued events until ctx is done
func (h *Handler) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-h.signal:
			for _, n := range h.dequeue() {
				h.run(n)
			}
		}
	}
}

func (h *Handler) dequeue() []notification {
	h.queueLock.Lock()
	defer h.queueLock.Unlock()
	queued := h.queue
	h.queue = nil
	return queued
}

func (h *Handler) run(n notification) {
	defer func() {
		if r := recover(); r != nil {
			klog.Errorf("Unexpected panic running row event %s: %v", n.event.Name, r)
		}
		// a one-time event is done even when it panicked
		if n.event.OneTime {
			h.Unwatch(n.event)
		}
	}()
	klog.V(5).Infof("Running row event %s on %s %s", n.event.Name, n.event.Table, n.kind)
	n.event.Run(n.kind, n.row, n.old)
}
