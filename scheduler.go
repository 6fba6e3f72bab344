package main

type eventKind int

const (
	eventGenerateOrder eventKind = iota
	eventAlmostFailed
	eventOrderFailed
)

// eventPayload captures the state an event handler must re-validate before
// acting. There is no cancellation: an event whose building has moved on to
// a different order sequence or status is simply a no-op.
type eventPayload struct {
	building    int
	sequenceID  int
	statusCheck orderStatus
}

type scheduledEvent struct {
	fireAt  int64 // absolute simulation time, ms
	seq     uint64
	kind    eventKind
	payload eventPayload
}

// EventScheduler is the ordered delayed-action queue driving every
// time-based simulation effect. Time is the pausable simulation clock,
// not wall time.
type EventScheduler struct {
	events  []scheduledEvent
	nextSeq uint64
}

func (s *EventScheduler) schedule(now, delayMs int64, kind eventKind, payload eventPayload) {
	s.nextSeq++
	s.events = append(s.events, scheduledEvent{
		fireAt:  now + delayMs,
		seq:     s.nextSeq,
		kind:    kind,
		payload: payload,
	})
}

func (s *EventScheduler) pending() int {
	return len(s.events)
}

// popDue removes and returns the earliest event with fireAt <= now, with
// insertion order breaking ties.
func (s *EventScheduler) popDue(now int64) (scheduledEvent, bool) {
	best := -1
	for i, ev := range s.events {
		if ev.fireAt > now {
			continue
		}
		if best == -1 || ev.fireAt < s.events[best].fireAt ||
			(ev.fireAt == s.events[best].fireAt && ev.seq < s.events[best].seq) {
			best = i
		}
	}
	if best == -1 {
		return scheduledEvent{}, false
	}

	ev := s.events[best]
	s.events = append(s.events[:best], s.events[best+1:]...)
	return ev, true
}

// advance fires every due event in order. Handlers may schedule new events
// mid-drain; popDue re-scans the queue each iteration, so insertions during
// the drain are picked up (or deferred) correctly instead of being skipped.
func (s *EventScheduler) advance(now int64, fire func(eventKind, eventPayload)) {
	for {
		ev, ok := s.popDue(now)
		if !ok {
			return
		}
		fire(ev.kind, ev.payload)
	}
}
