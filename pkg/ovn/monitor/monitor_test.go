package monitor

import (
	"context"
	"sync"

	"github.com/ovn-org/libovsdb/model"

	"github.com/ovn-org/ovsdb-frontend/pkg/nbdb"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

type fakeNotifier struct {
	sync.Mutex
	up   []string
	down []string
}

func (n *fakeNotifier) SetPortStatusUp(name string) {
	n.Lock()
	defer n.Unlock()
	n.up = append(n.up, name)
}

func (n *fakeNotifier) SetPortStatusDown(name string) {
	n.Lock()
	defer n.Unlock()
	n.down = append(n.down, name)
}

func (n *fakeNotifier) upPorts() []string {
	n.Lock()
	defer n.Unlock()
	return append([]string{}, n.up...)
}

func lsp(name string, up *bool) *nbdb.LogicalSwitchPort {
	return &nbdb.LogicalSwitchPort{Name: name, Up: up}
}

func boolPtr(b bool) *bool {
	return &b
}

// process runs the queued events synchronously
func process(h *Handler) {
	for _, n := range h.dequeue() {
		h.run(n)
	}
}

var _ = Describe("Port status monitor", func() {
	var (
		notifier *fakeNotifier
		monitor  *PortMonitor
	)

	BeforeEach(func() {
		notifier = &fakeNotifier{}
		monitor = NewPortMonitor(notifier)
	})

	It("reports ports created up or down during the initial dump", func() {
		monitor.OnAdd(nbdb.LogicalSwitchPortTable, lsp("p1", boolPtr(true)))
		monitor.OnAdd(nbdb.LogicalSwitchPortTable, lsp("p2", boolPtr(false)))
		process(monitor.Handler)
		Expect(notifier.up).To(Equal([]string{"p1"}))
		Expect(notifier.down).To(Equal([]string{"p2"}))
	})

	It("ignores created ports without up status", func() {
		monitor.OnAdd(nbdb.LogicalSwitchPortTable, lsp("p1", nil))
		process(monitor.Handler)
		Expect(notifier.up).To(BeEmpty())
		Expect(notifier.down).To(BeEmpty())
	})

	It("ignores other tables", func() {
		monitor.OnAdd(nbdb.LogicalSwitchTable, &nbdb.LogicalSwitch{Name: "sw0"})
		monitor.OnUpdate(nbdb.LogicalSwitchTable, &nbdb.LogicalSwitch{Name: "sw0"}, &nbdb.LogicalSwitch{Name: "sw0"})
		process(monitor.Handler)
		Expect(notifier.up).To(BeEmpty())
		Expect(notifier.down).To(BeEmpty())
	})

	It("stops reporting created ports after the initial dump", func() {
		monitor.InitialDumpDone()
		Expect(monitor.IsWatched(monitor.createUp)).To(BeFalse())
		Expect(monitor.IsWatched(monitor.createDown)).To(BeFalse())
		Expect(monitor.IsWatched(monitor.updateUp)).To(BeTrue())
		Expect(monitor.IsWatched(monitor.updateDown)).To(BeTrue())

		monitor.OnAdd(nbdb.LogicalSwitchPortTable, lsp("p1", boolPtr(true)))
		process(monitor.Handler)
		Expect(notifier.up).To(BeEmpty())
	})

	It("reports ports going up and down", func() {
		monitor.InitialDumpDone()
		monitor.OnUpdate(nbdb.LogicalSwitchPortTable, lsp("p1", boolPtr(false)), lsp("p1", boolPtr(true)))
		monitor.OnUpdate(nbdb.LogicalSwitchPortTable, lsp("p2", boolPtr(true)), lsp("p2", boolPtr(false)))
		process(monitor.Handler)
		Expect(notifier.up).To(Equal([]string{"p1"}))
		Expect(notifier.down).To(Equal([]string{"p2"}))
	})

	It("ignores updates that do not change the up status", func() {
		monitor.OnUpdate(nbdb.LogicalSwitchPortTable, lsp("p1", boolPtr(true)), lsp("p1", boolPtr(true)))
		monitor.OnUpdate(nbdb.LogicalSwitchPortTable, lsp("p2", nil), lsp("p2", boolPtr(true)))
		monitor.OnUpdate(nbdb.LogicalSwitchPortTable, nil, lsp("p3", boolPtr(false)))
		process(monitor.Handler)
		Expect(notifier.up).To(BeEmpty())
		Expect(notifier.down).To(BeEmpty())
	})

	It("runs queued events on its worker", func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go monitor.Run(ctx)

		monitor.OnUpdate(nbdb.LogicalSwitchPortTable, lsp("p1", boolPtr(false)), lsp("p1", boolPtr(true)))
		Eventually(notifier.upPorts).Should(Equal([]string{"p1"}))
	})
})

var _ = Describe("Row event handler", func() {
	It("unwatches one time events after they ran", func() {
		runs := 0
		event := &RowEvent{
			Name:    "once",
			Table:   nbdb.LogicalRouterTable,
			Kind:    EventDelete,
			OneTime: true,
			Run:     func(EventKind, model.Model, model.Model) { runs++ },
		}
		h := NewHandler(event)
		h.OnDelete(nbdb.LogicalRouterTable, &nbdb.LogicalRouter{Name: "r0"})
		process(h)
		Expect(runs).To(Equal(1))
		Expect(h.IsWatched(event)).To(BeFalse())

		h.OnDelete(nbdb.LogicalRouterTable, &nbdb.LogicalRouter{Name: "r0"})
		process(h)
		Expect(runs).To(Equal(1))
	})

	It("matches every row without a filter", func() {
		var names []string
		event := &RowEvent{
			Name:  "all",
			Table: nbdb.LogicalSwitchTable,
			Kind:  EventCreate,
			Run: func(_ EventKind, row, _ model.Model) {
				names = append(names, row.(*nbdb.LogicalSwitch).Name)
			},
		}
		h := NewHandler(event)
		h.OnAdd(nbdb.LogicalSwitchTable, &nbdb.LogicalSwitch{Name: "sw0"})
		h.OnAdd(nbdb.LogicalSwitchTable, &nbdb.LogicalSwitch{Name: "sw1"})
		process(h)
		Expect(names).To(Equal([]string{"sw0", "sw1"}))
	})

	It("keeps running events after one panics", func() {
		ran := false
		panicking := &RowEvent{
			Name:  "panics",
			Table: nbdb.LogicalSwitchTable,
			Kind:  EventCreate,
			Run:   func(EventKind, model.Model, model.Model) { panic("boom") },
		}
		h := NewHandler(panicking)
		h.OnAdd(nbdb.LogicalSwitchTable, &nbdb.LogicalSwitch{Name: "sw0"})
		Expect(func() { process(h) }).NotTo(Panic())

		h.Unwatch(panicking)
		h.Watch(&RowEvent{
			Name:  "runs",
			Table: nbdb.LogicalSwitchTable,
			Kind:  EventCreate,
			Run:   func(EventKind, model.Model, model.Model) { ran = true },
		})
		h.OnAdd(nbdb.LogicalSwitchTable, &nbdb.LogicalSwitch{Name: "sw1"})
		process(h)
		Expect(ran).To(BeTrue())
	})

	It("unwatches a one-time event that panicked", func() {
		runs := 0
		event := &RowEvent{
			Name:    "panics once",
			Table:   nbdb.LogicalSwitchTable,
			Kind:    EventCreate,
			OneTime: true,
			Run: func(EventKind, model.Model, model.Model) {
				runs++
				panic("boom")
			},
		}
		h := NewHandler(event)
		h.OnAdd(nbdb.LogicalSwitchTable, &nbdb.LogicalSwitch{Name: "sw0"})
		Expect(func() { process(h) }).NotTo(Panic())
		Expect(h.IsWatched(event)).To(BeFalse())

		h.OnAdd(nbdb.LogicalSwitchTable, &nbdb.LogicalSwitch{Name: "sw1"})
		process(h)
		Expect(runs).To(Equal(1))
	})

	It("passes the old row of updates", func() {
		var gotOld model.Model
		event := &RowEvent{
			Name:  "update",
			Table: nbdb.LogicalSwitchTable,
			Kind:  EventUpdate,
			Run:   func(_ EventKind, _, old model.Model) { gotOld = old },
		}
		h := NewHandler(event)
		old := &nbdb.LogicalSwitch{Name: "sw0"}
		h.OnUpdate(nbdb.LogicalSwitchTable, old, &nbdb.LogicalSwitch{Name: "sw0", Ports: []string{"p1"}})
		process(h)
		Expect(gotOld).To(BeIdenticalTo(old))
	})
})
