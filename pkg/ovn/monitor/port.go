package monitor

import (
	"github.com/ovn-org/libovsdb/model"
	"k8s.io/klog/v2"

	"github.com/ovn-org/ovsdb-frontend/pkg/nbdb"
)

// PortStatusNotifier is told when logical switch ports go up or down
type PortStatusNotifier interface {
	SetPortStatusUp(name string)
	SetPortStatusDown(name string)
}

// upIs reports whether m is a logical switch port whose up column is set to up
func upIs(m model.Model, up bool) bool {
	lsp, ok := m.(*nbdb.LogicalSwitchPort)
	return ok && lsp.Up != nil && *lsp.Up == up
}

func portName(m model.Model) string {
	if lsp, ok := m.(*nbdb.LogicalSwitchPort); ok {
		return lsp.Name
	}
	return ""
}

func newPortEvent(name string, kind EventKind, up bool, notifier PortStatusNotifier) *RowEvent {
	return &RowEvent{
		Name:  name,
		Table: nbdb.LogicalSwitchPortTable,
		Kind:  kind,
		Matches: func(row, old model.Model) bool {
			if !upIs(row, up) {
				return false
			}
			return kind != EventUpdate || upIs(old, !up)
		},
		Run: func(_ EventKind, row, _ model.Model) {
			if up {
				notifier.SetPortStatusUp(portName(row))
			} else {
				notifier.SetPortStatusDown(portName(row))
			}
		},
	}
}

// PortMonitor reports logical switch ports going up and down. The ports
// found up or down in the initial dump are reported as well.
type PortMonitor struct {
	*Handler

	createUp   *RowEvent
	createDown *RowEvent
	updateUp   *RowEvent
	updateDown *RowEvent
}

// NewPortMonitor returns a monitor reporting to notifier. Its handler must be
// registered on the client cache before the initial dump.
func NewPortMonitor(notifier PortStatusNotifier) *PortMonitor {
	m := &PortMonitor{
		createUp:   newPortEvent("LogicalPortCreateUpEvent", EventCreate, true, notifier),
		createDown: newPortEvent("LogicalPortCreateDownEvent", EventCreate, false, notifier),
		updateUp:   newPortEvent("LogicalPortUpdateUpEvent", EventUpdate, true, notifier),
		updateDown: newPortEvent("LogicalPortUpdateDownEvent", EventUpdate, false, notifier),
	}
	m.Handler = NewHandler(m.createUp, m.createDown, m.updateUp, m.updateDown)
	return m
}

// InitialDumpDone stops reporting created ports, new ports are not up yet
func (m *PortMonitor) InitialDumpDone() {
	klog.Infof("Initial dump of logical switch ports processed, unwatching create events")
	m.Unwatch(m.createUp, m.createDown)
}
