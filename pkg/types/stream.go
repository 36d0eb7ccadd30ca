package types

import "sync"

// EventStream is an append-only, subscribable sequence of session events.
// The environment emits observation events to it; the agent loop both emits
// and consumes. Subscribers receive events emitted after they subscribe.
type EventStream struct {
	mu     sync.Mutex
	events []*SessionEvent
	subs   []chan *SessionEvent
	closed bool
}

// NewEventStream creates an empty event stream.
func NewEventStream() *EventStream {
	return &EventStream{}
}

// Emit appends an event and fans it out to subscribers.
// Slow subscribers drop events rather than block the emitter.
func (s *EventStream) Emit(event *SessionEvent) {
	if event == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	s.events = append(s.events, event)
	for _, sub := range s.subs {
		select {
		case sub <- event:
		default:
		}
	}
}

// Subscribe returns a channel receiving future events.
// The channel is closed when the stream is closed.
func (s *EventStream) Subscribe() <-chan *SessionEvent {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan *SessionEvent, 64)
	if s.closed {
		close(ch)
		return ch
	}
	s.subs = append(s.subs, ch)
	return ch
}

// Events returns a snapshot of all events emitted so far.
func (s *EventStream) Events() []*SessionEvent {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*SessionEvent, len(s.events))
	copy(out, s.events)
	return out
}

// Len returns the number of events emitted so far.
func (s *EventStream) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

// Close closes the stream and all subscriber channels. Idempotent.
func (s *EventStream) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for _, sub := range s.subs {
		close(sub)
	}
	s.subs = nil
}
