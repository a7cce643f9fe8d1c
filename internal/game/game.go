// Package game defines the tick-driven mini-game interface and its
// variants: Dual-Core Vision, Memory Echo, and Shared Garden.
//
// The session orchestrator dispatches by variant through New; mini-games
// never learn about sessions, routing, or archival.
package game

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/louisbranch/cofront/internal/challenge"
	"github.com/louisbranch/cofront/internal/clock"
	"github.com/louisbranch/cofront/internal/id"
	"github.com/louisbranch/cofront/internal/play"
	"github.com/louisbranch/cofront/internal/storage"
)

// ErrUnknownKind indicates an unsupported game kind.
var ErrUnknownKind = errors.New("unknown game kind")

// Status is a mini-game's progress after a tick.
type Status int

const (
	// StatusRunning means the game continues.
	StatusRunning Status = iota
	// StatusSucceeded means the game was won; the session ends Success.
	StatusSucceeded
	// StatusFailed means the game was lost; the session ends Failure.
	StatusFailed
)

// Result carries a tick's outputs back to the orchestrator.
type Result struct {
	// Events are resolved round records to persist, in resolution order.
	Events []challenge.Event
	// Status signals whether the session should continue or end.
	Status Status
}

// View is the read-only per-tick snapshot exposed to presentation
// consumers. The core accepts no rendering callbacks.
type View struct {
	Phase          string
	Round          int
	TicksRemaining uint64
	// LastCorrect reports each role's correctness for the most recently
	// resolved round; roles absent from the map have no resolved round yet.
	LastCorrect map[play.Role]bool
	LastOutcome challenge.Outcome
}

// MiniGame is the tick-driven state machine contract every variant
// implements.
type MiniGame interface {
	Kind() play.Kind
	// Advance consumes the events drained for one tick. A returned error
	// means state could not be persisted; the orchestrator aborts the
	// session rather than silently losing collaborative state.
	Advance(ctx context.Context, tick clock.Tick, events []play.PlayerEvent) (Result, error)
	View(tick clock.Tick) View
}

// Deps carries the explicitly passed dependencies a variant may need.
type Deps struct {
	Log zerolog.Logger
	// Artifacts is the collaborative persistence store; required by the
	// asynchronous puzzle kinds.
	Artifacts storage.ArtifactStore
	// NewID generates identifiers; defaults to id.NewID.
	NewID func() (string, error)

	// CountdownTicks and WindowTicks parameterize Dual-Core Vision rounds.
	CountdownTicks uint64
	WindowTicks    uint64
	// Rounds is how many consecutive successful rounds win a Dual-Core
	// Vision session.
	Rounds int
	// Seed fixes the stimulus sequence for the session.
	Seed int64

	// PuzzleID scopes the asynchronous kinds to one clue trail.
	PuzzleID string
	// TargetGrowth is the generation count that completes a shared garden.
	TargetGrowth int
}

func (d Deps) newID() (string, error) {
	if d.NewID != nil {
		return d.NewID()
	}
	return id.NewID()
}

// New constructs the mini-game for a kind. Dispatch is by variant; there
// is no runtime type inspection downstream.
func New(kind play.Kind, deps Deps) (MiniGame, error) {
	switch kind {
	case play.KindDualCoreVision:
		return newDualCore(deps)
	case play.KindMemoryEcho:
		return newMemoryEcho(deps)
	case play.KindSharedGarden:
		return newSharedGarden(deps)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}
