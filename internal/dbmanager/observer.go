package dbmanager

import "github.com/maloquacious/navstore/internal/store"

// Swap causes.
const (
	CauseBlend     = "blend"
	CauseSimulator = "simulator"
	CauseRebuild   = "rebuild"
)

// SwapEvent describes a close and reopen of roles.
type SwapEvent struct {
	Cause string
	Roles []store.Role
}

// Observer is told before roles are closed and after they are reopened.
// After PreSwap no query may run against the roles until PostSwap.
type Observer interface {
	PreSwap(SwapEvent)
	PostSwap(SwapEvent)
}

// ObserverFuncs adapts functions to Observer. Nil functions are skipped.
type ObserverFuncs struct {
	Pre  func(SwapEvent)
	Post func(SwapEvent)
}

func (o ObserverFuncs) PreSwap(e SwapEvent) {
	if o.Pre != nil {
		o.Pre(e)
	}
}

func (o ObserverFuncs) PostSwap(e SwapEvent) {
	if o.Post != nil {
		o.Post(e)
	}
}

type subscription struct {
	id int
	o  Observer
}

type observers struct {
	next int
	subs []subscription
}

// Subscribe adds o and returns the function removing it again.
func (m *Manager) Subscribe(o Observer) (unsubscribe func()) {
	m.observers.next++
	id := m.observers.next
	m.observers.subs = append(m.observers.subs, subscription{id: id, o: o})
	return func() { m.unsubscribe(id) }
}

func (m *Manager) unsubscribe(id int) {
	subs := m.observers.subs[:0]
	for _, s := range m.observers.subs {
		if s.id != id {
			subs = append(subs, s)
		}
	}
	m.observers.subs = subs
}

// Observers are notified in subscription order. The list is copied so an
// observer may unsubscribe while being notified.
func (m *Manager) notifyPre(e SwapEvent) {
	for _, s := range append([]subscription(nil), m.observers.subs...) {
		s.o.PreSwap(e)
	}
}

func (m *Manager) notifyPost(e SwapEvent) {
	for _, s := range append([]subscription(nil), m.observers.subs...) {
		s.o.PostSwap(e)
	}
}
