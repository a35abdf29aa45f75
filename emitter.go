package trawl

import "sync"

type EventType string

const (
	// Fires once per finding, as detectors confirm them
	ON_FINDING EventType = "FindingCreated"
	// Fires once when a scan run completes
	ON_RUN EventType = "RunFinished"
)

// Events carry the records themselves. Reporters are in-process
// subscribers; there is no need to round-trip through the
// database to hand them a finding.
type Event struct {
	Type  EventType
	RunID string

	Finding *Finding
	Target  *Target
	Service *Service
	Run     *ScanRun
}

// A subscriber reacts to engine events. Reporters implement this.
type Subscriber interface {
	Topics() []EventType
	Handle(e Event) error
}

type Emitter interface {
	Subscribe(...Subscriber)
	Emit(e Event) error
}

type eventEmitter struct {
	mu sync.RWMutex
	// Map of event types and their subscribers
	subs map[EventType][]Subscriber
}

func NewEmitter() *eventEmitter {
	return &eventEmitter{subs: make(map[EventType][]Subscriber)}
}

func (m *eventEmitter) Subscribe(subs ...Subscriber) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, sub := range subs {
		for _, t := range sub.Topics() {
			m.subs[t] = append(m.subs[t], sub)
		}
	}
}

func (m *eventEmitter) Emit(e Event) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, s := range m.subs[e.Type] {
		if err := s.Handle(e); err != nil {
			return err
		}
	}
	return nil
}
