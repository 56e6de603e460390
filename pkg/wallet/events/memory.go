package events

import (
	"context"
	"sync"
)

// Memory is a Publisher that records events in process.
type Memory struct {
	mu     sync.Mutex
	events []*Event
	closed bool
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Publish(_ context.Context, event *Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	copied := *event
	m.events = append(m.events, &copied)
	return nil
}

// Events returns the published events in order.
func (m *Memory) Events() []*Event {
	m.mu.Lock()
	defer m.mu.Unlock()

	res := make([]*Event, len(m.events))
	copy(res, m.events)
	return res
}

// EventsFor returns the events published for a single transaction.
func (m *Memory) EventsFor(id string) []*Event {
	m.mu.Lock()
	defer m.mu.Unlock()

	var res []*Event
	for _, event := range m.events {
		if event.Id == id {
			res = append(res, event)
		}
	}
	return res
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	return nil
}

func (m *Memory) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
