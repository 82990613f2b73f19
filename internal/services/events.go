package services

import (
	"fmt"
	"sync"

	"shuttle/internal/domain/models"
	"shuttle/internal/utils"
)

// EventSink receives every event of the shift. Emit is called with the shift
// lock held and must not call back into the shift.
type EventSink interface {
	Emit(ev models.Event)
}

// EventSinkFunc adapts a function to EventSink.
type EventSinkFunc func(models.Event)

func (f EventSinkFunc) Emit(ev models.Event) { f(ev) }

// MultiSink fans an event out to several sinks in order.
type MultiSink []EventSink

func (m MultiSink) Emit(ev models.Event) {
	for _, s := range m {
		if s != nil {
			s.Emit(ev)
		}
	}
}

// LogSink writes events through the standard log line.
type LogSink struct {
	RequestID string
}

func (l LogSink) Emit(ev models.Event) {
	utils.LogEvent(l.RequestID, "fsm", string(ev.Kind), summarizeEvent(ev))
}

func summarizeEvent(ev models.Event) string {
	transition := ""
	if ev.OldState != "" || ev.NewState != "" {
		transition = fmt.Sprintf("%s->%s", ev.OldState, ev.NewState)
	}
	return utils.Fields(
		"trip", ev.TripID,
		"state", transition,
		"action", ev.Action,
		"reason", ev.Reason,
	)
}

// EventStore persists events, implemented by the event repository.
type EventStore interface {
	Insert(driverID string, ev models.Event) error
}

// RepoSink stores events. Storage failures are logged and swallowed so that a
// database outage never blocks the driver.
type RepoSink struct {
	DriverID string
	Store    EventStore
}

func (r RepoSink) Emit(ev models.Event) {
	if r.Store == nil {
		return
	}
	if err := r.Store.Insert(r.DriverID, ev); err != nil {
		utils.LogEvent("", "fsm", "event_store", utils.Fields("driver", r.DriverID, "error", err))
	}
}

// EventRecorder keeps events in memory, used by tests and the debug endpoint.
type EventRecorder struct {
	mu     sync.Mutex
	events []models.Event
}

func (r *EventRecorder) Emit(ev models.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *EventRecorder) Events() []models.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.Event, len(r.events))
	copy(out, r.events)
	return out
}

// Last returns the most recent event of kind.
func (r *EventRecorder) Last(kind models.EventKind) (models.Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].Kind == kind {
			return r.events[i], true
		}
	}
	return models.Event{}, false
}

func (r *EventRecorder) Count(kind models.EventKind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, ev := range r.events {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}
