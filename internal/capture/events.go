package capture

import (
	"sync"
	"time"

	"github.com/wolfman30/guardian-ai/internal/evidence"
)

// EventType names a session event on the stream.
type EventType string

const (
	EventState     EventType = "state"
	EventCountdown EventType = "countdown"
	EventAuth      EventType = "auth"
	EventEvidence  EventType = "evidence"
	EventEnded     EventType = "ended"
)

// Event is published to session subscribers.
type Event struct {
	Type        EventType            `json:"type"`
	State       State                `json:"state,omitempty"`
	Facing      Facing               `json:"facing,omitempty"`
	SecondsLeft int                  `json:"secondsLeft,omitempty"`
	EvidenceID  string               `json:"evidenceId,omitempty"`
	ThreatLevel evidence.ThreatLevel `json:"threatLevel,omitempty"`
	Outcome     Outcome              `json:"outcome,omitempty"`
	At          time.Time            `json:"at"`
}

const subscriberBuffer = 32

// eventHub fans events out; slow subscribers lose events rather than
// blocking the session.
type eventHub struct {
	mu   sync.Mutex
	subs map[int]chan Event
	next int
}

func newEventHub() *eventHub {
	return &eventHub{subs: make(map[int]chan Event)}
}

func (h *eventHub) subscribe() (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)
	h.mu.Lock()
	id := h.next
	h.next++
	h.subs[id] = ch
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
		})
	}
}

func (h *eventHub) publish(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
