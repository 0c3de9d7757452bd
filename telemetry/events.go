// Package telemetry provides window statistics, per-stage tick profiling, cosmic
// events, bookmarks, CSV output, Prometheus metrics and the snapshot codec.
package telemetry

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pthm-cable/multiverse/components"
	"github.com/pthm-cable/multiverse/cosmology"
	"github.com/pthm-cable/multiverse/regions"
)

// EventType identifies telemetry events.
type EventType string

const (
	EventPhaseTransition EventType = "phase_transition"
	EventLODChange       EventType = "lod_change"
	EventLifeDiscovered  EventType = "life_discovered"
	EventCivilization    EventType = "civilization"
	EventRebirth         EventType = "rebirth"
	EventSnapshotRestore EventType = "snapshot_restore"
)

// Event represents a single notable occurrence.
type Event struct {
	Type   EventType `csv:"type" json:"type"`
	Tick   uint64    `csv:"tick" json:"tick"`
	Cycle  uint32    `csv:"cycle" json:"cycle"`
	Age    float64   `csv:"age_gyr" json:"age_gyr"`
	Region int       `csv:"region" json:"region"` // -1 when not region-scoped
	Star   int       `csv:"star" json:"star"`
	Planet int       `csv:"planet" json:"planet"`
	Detail string    `csv:"detail" json:"detail"`
}

// NewPhaseEvent creates a phase transition event.
func NewPhaseEvent(tick uint64, cycle uint32, tr cosmology.Transition) Event {
	return Event{
		Type:   EventPhaseTransition,
		Tick:   tick,
		Cycle:  cycle,
		Age:    tr.Age,
		Region: -1,
		Detail: fmt.Sprintf("%s -> %s", tr.From, tr.To),
	}
}

// NewLODEvent creates a level-of-detail change event.
func NewLODEvent(tick uint64, cycle uint32, age float64, ch regions.Change) Event {
	return Event{
		Type:   EventLODChange,
		Tick:   tick,
		Cycle:  cycle,
		Age:    age,
		Region: ch.Coord.Index(),
		Detail: fmt.Sprintf("%v %s -> %s", ch.Coord, ch.From, ch.To),
	}
}

// NewLifeEvent creates a life discovery event. description is the dominant
// genome's description.
func NewLifeEvent(tick uint64, cycle uint32, age float64, ref components.PlanetRef, description string) Event {
	return Event{
		Type:   EventLifeDiscovered,
		Tick:   tick,
		Cycle:  cycle,
		Age:    age,
		Region: ref.Region,
		Star:   ref.Star,
		Planet: ref.Planet,
		Detail: description,
	}
}

// NewCivilizationEvent creates a civilization detection event.
func NewCivilizationEvent(tick uint64, cycle uint32, age float64, ref components.PlanetRef, n int, description string) Event {
	return Event{
		Type:   EventCivilization,
		Tick:   tick,
		Cycle:  cycle,
		Age:    age,
		Region: ref.Region,
		Star:   ref.Star,
		Planet: ref.Planet,
		Detail: fmt.Sprintf("civilization #%d: %s", n, description),
	}
}

// NewRebirthEvent creates a rebirth event for the cycle that just began.
func NewRebirthEvent(tick uint64, cycle uint32, merged, ledgerSize int) Event {
	return Event{
		Type:   EventRebirth,
		Tick:   tick,
		Cycle:  cycle,
		Region: -1,
		Detail: fmt.Sprintf("merged %d lineages, ledger holds %d souls", merged, ledgerSize),
	}
}

// NewRestoreEvent creates an event for state replaced from a snapshot.
func NewRestoreEvent(tick uint64, cycle uint32, age float64, source string) Event {
	return Event{
		Type:   EventSnapshotRestore,
		Tick:   tick,
		Cycle:  cycle,
		Age:    age,
		Region: -1,
		Detail: source,
	}
}

// LogEvent logs the event using slog.
func (e Event) LogEvent() {
	level := slog.LevelInfo
	if e.Type == EventLODChange {
		level = slog.LevelDebug
	}
	attrs := []any{
		"type", string(e.Type),
		"tick", e.Tick,
		"cycle", e.Cycle,
		"age_gyr", e.Age,
	}
	if e.Region >= 0 {
		attrs = append(attrs, "region", e.Region, "star", e.Star, "planet", e.Planet)
	}
	attrs = append(attrs, "detail", e.Detail)
	slog.Log(context.Background(), level, "event", attrs...)
}

// EventLog keeps the most recent events in a ring buffer.
type EventLog struct {
	events []Event
	next   int
	full   bool
}

// NewEventLog creates a log holding up to size events.
func NewEventLog(size int) *EventLog {
	return &EventLog{events: make([]Event, max(size, 1))}
}

// Add appends an event, evicting the oldest when full.
func (l *EventLog) Add(e Event) {
	l.events[l.next] = e
	l.next = (l.next + 1) % len(l.events)
	if l.next == 0 {
		l.full = true
	}
}

// Recent returns the retained events, oldest first.
func (l *EventLog) Recent() []Event {
	if !l.full {
		return append([]Event(nil), l.events[:l.next]...)
	}
	out := make([]Event, 0, len(l.events))
	out = append(out, l.events[l.next:]...)
	return append(out, l.events[:l.next]...)
}

// Len returns the number of retained events.
func (l *EventLog) Len() int {
	if l.full {
		return len(l.events)
	}
	return l.next
}
