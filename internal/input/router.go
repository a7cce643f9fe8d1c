// Package input buffers raw device events and routes them to participants.
//
// Raw events carry only a device zone, a logical action, and the tick they
// arrived on. Events arriving between simulation ticks are buffered and
// drained exactly once at the start of the next tick, in arrival order, so
// a recorded input log replays to identical round outcomes.
package input

import (
	"github.com/rs/zerolog"

	"github.com/louisbranch/cofront/internal/clock"
	"github.com/louisbranch/cofront/internal/play"
)

// DeviceZone identifies the spatial or contextual zone a raw event came
// from. Zones are pre-mapped by the presentation layer; the core never
// interprets raw device identifiers.
type DeviceZone string

const (
	// ZoneLeftHalf covers input originating on the left half of the device.
	ZoneLeftHalf DeviceZone = "LEFT_HALF"
	// ZoneRightHalf covers input originating on the right half of the device.
	ZoneRightHalf DeviceZone = "RIGHT_HALF"
	// ZoneFull covers the whole device, used by single-participant games.
	ZoneFull DeviceZone = "FULL"
)

// RawEvent is an uninterpreted input event from the presentation layer.
type RawEvent struct {
	Zone   DeviceZone
	Action play.Action
	Tick   clock.Tick
}

// ZoneTable maps device zones to the role slot listening on them. A table
// is valid only for the role bindings it was derived from; the orchestrator
// rebuilds it whenever bindings change.
type ZoneTable map[DeviceZone]play.Role

// ZonesFor derives the zone table for the given role slots.
func ZonesFor(roles []play.Role) ZoneTable {
	table := make(ZoneTable, len(roles))
	for _, role := range roles {
		switch role {
		case play.RoleLeft:
			table[ZoneLeftHalf] = role
		case play.RoleRight:
			table[ZoneRightHalf] = role
		case play.RoleSolo:
			table[ZoneFull] = role
		}
	}
	return table
}

// Router buffers raw events between ticks and resolves them to participant
// events when drained.
type Router struct {
	log    zerolog.Logger
	buffer []RawEvent
}

// NewRouter creates an empty router.
func NewRouter(log zerolog.Logger) *Router {
	return &Router{log: log}
}

// Push buffers a raw event until the next drain. Safe to call with any
// zone; unroutable events are dropped at drain time, not here.
func (r *Router) Push(evt RawEvent) {
	if r == nil {
		return
	}
	r.buffer = append(r.buffer, evt)
}

// Pending returns how many events are waiting for the next drain.
func (r *Router) Pending() int {
	if r == nil {
		return 0
	}
	return len(r.buffer)
}

// Reset discards any buffered events. Called when a session ends so input
// aimed at a dead session cannot leak into the next one.
func (r *Router) Reset() {
	if r == nil {
		return
	}
	r.buffer = r.buffer[:0]
}

// Drain empties the buffer in arrival order, resolving each event against
// the zone table and role bindings current at the processing tick. Events
// outside any configured zone, or aimed at an unbound role, are logged and
// dropped; they are not errors.
func (r *Router) Drain(tick clock.Tick, zones ZoneTable, bindings map[play.Role]string) []play.PlayerEvent {
	if r == nil || len(r.buffer) == 0 {
		return nil
	}

	routed := make([]play.PlayerEvent, 0, len(r.buffer))
	for _, raw := range r.buffer {
		role, ok := zones[raw.Zone]
		if !ok {
			r.log.Debug().
				Str("zone", string(raw.Zone)).
				Str("action", string(raw.Action)).
				Uint64("tick", uint64(tick)).
				Msg("input outside configured zones dropped")
			continue
		}
		participantID, ok := bindings[role]
		if !ok || participantID == "" {
			r.log.Debug().
				Str("role", string(role)).
				Str("action", string(raw.Action)).
				Uint64("tick", uint64(tick)).
				Msg("input for unbound role dropped")
			continue
		}
		routed = append(routed, play.PlayerEvent{
			ParticipantID: participantID,
			Role:          role,
			Action:        raw.Action,
			Tick:          tick,
		})
	}
	r.buffer = r.buffer[:0]
	return routed
}
