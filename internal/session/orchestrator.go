// Package session orchestrates mini-game sessions: lifecycle, input
// routing, tick dispatch, persistence of round records, and archival.
//
// Scheduling is single-threaded and tick-driven. Each Tick drains buffered
// input once, steps every active session to completion, and applies the
// outputs before returning; no component suspends mid-tick.
package session

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/louisbranch/cofront/internal/clock"
	"github.com/louisbranch/cofront/internal/game"
	"github.com/louisbranch/cofront/internal/id"
	"github.com/louisbranch/cofront/internal/input"
	"github.com/louisbranch/cofront/internal/play"
	"github.com/louisbranch/cofront/internal/storage"
)

var (
	// ErrRoleConflict indicates a participant is already bound to a role
	// slot, either twice in the requested bindings or in another active
	// session.
	ErrRoleConflict = errors.New("participant already bound to a role slot")
	// ErrInsufficientParticipants indicates the game kind's required role
	// slots are not exactly satisfied.
	ErrInsufficientParticipants = errors.New("required role slots are not bound")
)

// Config holds the orchestrator's game parameters.
type Config struct {
	CountdownTicks uint64
	WindowTicks    uint64
	// Rounds is the Dual-Core Vision round count per session.
	Rounds int
	// TargetGrowth is the Shared Garden generation goal.
	TargetGrowth int
	// Seed fixes stimulus sequences for reproducible sessions.
	Seed int64
}

// Validate rejects configurations the orchestrator cannot run with.
func (c Config) Validate() error {
	if c.WindowTicks == 0 {
		return fmt.Errorf("window ticks must be greater than zero")
	}
	if c.Rounds <= 0 {
		return fmt.Errorf("rounds must be greater than zero")
	}
	if c.TargetGrowth <= 0 {
		return fmt.Errorf("target growth must be greater than zero")
	}
	return nil
}

// activeSession is the in-memory state of one running session.
type activeSession struct {
	record   storage.SessionRecord
	game     game.MiniGame
	router   *input.Router
	zones    input.ZoneTable
	bindings map[play.Role]string
}

// Orchestrator composes the clock, router, mini-games, and store.
type Orchestrator struct {
	store storage.Store
	clk   *clock.Clock
	cfg   Config
	log   zerolog.Logger
	idGen func() (string, error)

	active map[string]*activeSession
	// order preserves start order so ticking is deterministic.
	order []string
}

// NewOrchestrator creates an orchestrator with no active sessions.
func NewOrchestrator(store storage.Store, clk *clock.Clock, cfg Config, log zerolog.Logger) (*Orchestrator, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if clk == nil {
		return nil, fmt.Errorf("clock is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Orchestrator{
		store:  store,
		clk:    clk,
		cfg:    cfg,
		log:    log,
		idGen:  id.NewID,
		active: make(map[string]*activeSession),
	}, nil
}

// CurrentTick returns the tick the simulation is on.
func (o *Orchestrator) CurrentTick() clock.Tick {
	return o.clk.Current()
}

// StartSession launches a mini-game with the given role bindings. The
// attempted start has no effect on failure.
func (o *Orchestrator) StartSession(ctx context.Context, kind play.Kind, bindings map[play.Role]string, puzzleID string) (storage.SessionRecord, error) {
	if !kind.IsValid() {
		return storage.SessionRecord{}, fmt.Errorf("%w: %q", game.ErrUnknownKind, kind)
	}
	if err := o.validateBindings(ctx, kind, bindings); err != nil {
		return storage.SessionRecord{}, err
	}

	sessionID, err := o.idGen()
	if err != nil {
		return storage.SessionRecord{}, fmt.Errorf("generate session id: %w", err)
	}

	required := kind.RequiredRoles()
	recordBindings := make([]storage.SessionBinding, 0, len(required))
	for _, role := range required {
		recordBindings = append(recordBindings, storage.SessionBinding{
			Role:          role,
			ParticipantID: bindings[role],
		})
	}
	sort.Slice(recordBindings, func(i, j int) bool {
		return recordBindings[i].Role < recordBindings[j].Role
	})

	record := storage.SessionRecord{
		ID:        sessionID,
		Kind:      kind,
		PuzzleID:  puzzleID,
		StartTick: o.clk.Current(),
		Outcome:   storage.OutcomePending,
		Bindings:  recordBindings,
	}

	mini, err := game.New(kind, game.Deps{
		Log:            o.log,
		Artifacts:      o.store,
		CountdownTicks: o.cfg.CountdownTicks,
		WindowTicks:    o.cfg.WindowTicks,
		Rounds:         o.cfg.Rounds,
		Seed:           o.cfg.Seed,
		PuzzleID:       puzzleID,
		TargetGrowth:   o.cfg.TargetGrowth,
	})
	if err != nil {
		return storage.SessionRecord{}, fmt.Errorf("new mini-game: %w", err)
	}

	if err := o.store.CreateSession(ctx, record); err != nil {
		return storage.SessionRecord{}, fmt.Errorf("persist session: %w", err)
	}

	boundRoles := make(map[play.Role]string, len(bindings))
	for role, participantID := range bindings {
		boundRoles[role] = participantID
	}
	o.active[sessionID] = &activeSession{
		record:   record,
		game:     mini,
		router:   input.NewRouter(o.log),
		zones:    input.ZonesFor(required),
		bindings: boundRoles,
	}
	o.order = append(o.order, sessionID)

	o.log.Info().
		Str("session_id", sessionID).
		Str("kind", string(kind)).
		Uint64("start_tick", uint64(record.StartTick)).
		Msg("session started")
	return record, nil
}

// validateBindings enforces the role-slot invariants: every required role
// bound exactly once, no extra roles, no participant holding two slots,
// and no participant already bound in another active session.
func (o *Orchestrator) validateBindings(ctx context.Context, kind play.Kind, bindings map[play.Role]string) error {
	required := kind.RequiredRoles()
	if len(bindings) != len(required) {
		return ErrInsufficientParticipants
	}
	seen := make(map[string]bool, len(bindings))
	for _, role := range required {
		participantID, ok := bindings[role]
		if !ok || participantID == "" {
			return ErrInsufficientParticipants
		}
		if seen[participantID] {
			return ErrRoleConflict
		}
		seen[participantID] = true

		if _, err := o.store.GetParticipant(ctx, participantID); err != nil {
			return fmt.Errorf("lookup participant %s: %w", participantID, err)
		}
		for _, sess := range o.active {
			for _, bound := range sess.bindings {
				if bound == participantID {
					return ErrRoleConflict
				}
			}
		}
	}
	return nil
}

// PushInput buffers a raw input event for a session. The event is routed
// at the start of the next tick using the bindings current at that tick.
func (o *Orchestrator) PushInput(sessionID string, evt input.RawEvent) error {
	sess, ok := o.active[sessionID]
	if !ok {
		return storage.ErrNotFound
	}
	sess.router.Push(evt)
	return nil
}

// Tick advances the simulation by one tick: drains buffered input, steps
// every active session in start order, persists round records, and applies
// outcomes. A persistence failure aborts the affected session rather than
// silently losing collaborative state; the first such error is returned
// after the tick completes.
func (o *Orchestrator) Tick(ctx context.Context) (clock.Tick, error) {
	tick := o.clk.Advance()

	var firstErr error
	for _, sessionID := range append([]string(nil), o.order...) {
		sess, ok := o.active[sessionID]
		if !ok {
			continue
		}

		events := sess.router.Drain(tick, sess.zones, sess.bindings)
		result, err := sess.game.Advance(ctx, tick, events)
		if err != nil {
			o.log.Error().
				Err(err).
				Str("session_id", sessionID).
				Uint64("tick", uint64(tick)).
				Msg("mini-game advance failed, aborting session")
			o.finish(ctx, sess, storage.OutcomeAborted, tick)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}

		if err := o.persistEvents(ctx, sess, result); err != nil {
			o.log.Error().
				Err(err).
				Str("session_id", sessionID).
				Uint64("tick", uint64(tick)).
				Msg("round persistence failed, aborting session")
			o.finish(ctx, sess, storage.OutcomeAborted, tick)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}

		switch result.Status {
		case game.StatusSucceeded:
			o.finish(ctx, sess, storage.OutcomeSuccess, tick)
		case game.StatusFailed:
			o.finish(ctx, sess, storage.OutcomeFailure, tick)
		}
	}
	return tick, firstErr
}

func (o *Orchestrator) persistEvents(ctx context.Context, sess *activeSession, result game.Result) error {
	for _, evt := range result.Events {
		if _, err := o.store.AppendChallengeEvent(ctx, sess.record.ID, evt); err != nil {
			return fmt.Errorf("append challenge event: %w", err)
		}
	}
	return nil
}

// EndSession forces a session into a terminal state. It may be invoked at
// any tick; ending with OutcomeAborted halts the active machine
// immediately, discarding any in-progress round's partial record.
func (o *Orchestrator) EndSession(ctx context.Context, sessionID string, outcome storage.SessionOutcome) error {
	sess, ok := o.active[sessionID]
	if !ok {
		return storage.ErrNotFound
	}
	o.finish(ctx, sess, outcome, o.clk.Current())
	return nil
}

// finish archives a session and, on success of an asynchronous puzzle
// game, freezes its echo artifacts with the Completed marker.
func (o *Orchestrator) finish(ctx context.Context, sess *activeSession, outcome storage.SessionOutcome, tick clock.Tick) {
	sessionID := sess.record.ID
	delete(o.active, sessionID)
	for i, ordered := range o.order {
		if ordered == sessionID {
			o.order = append(o.order[:i], o.order[i+1:]...)
			break
		}
	}
	sess.router.Reset()

	if err := o.store.ArchiveSession(ctx, sessionID, outcome, tick); err != nil {
		o.log.Error().
			Err(err).
			Str("session_id", sessionID).
			Msg("archive session failed")
	}

	if outcome == storage.OutcomeSuccess && sess.record.Kind.Asynchronous() && sess.record.PuzzleID != "" {
		o.freezeArtifacts(ctx, sess.record.PuzzleID, tick)
	}

	o.log.Info().
		Str("session_id", sessionID).
		Str("outcome", string(outcome)).
		Uint64("end_tick", uint64(tick)).
		Msg("session ended")
}

func (o *Orchestrator) freezeArtifacts(ctx context.Context, puzzleID string, tick clock.Tick) {
	artifacts, err := o.store.ListArtifactsByPuzzle(ctx, puzzleID)
	if err != nil {
		o.log.Error().
			Err(err).
			Str("puzzle_id", puzzleID).
			Msg("list artifacts for completion failed")
		return
	}
	for _, artifact := range artifacts {
		if artifact.Completed {
			continue
		}
		if err := o.store.CompleteArtifact(ctx, artifact.ID, tick); err != nil {
			o.log.Error().
				Err(err).
				Str("artifact_id", artifact.ID).
				Msg("complete artifact failed")
		}
	}
}

// HandleParticipantRemoved aborts any active session holding the removed
// participant. Installed as the participant registry's removal hook.
func (o *Orchestrator) HandleParticipantRemoved(ctx context.Context, participantID string) error {
	for _, sessionID := range append([]string(nil), o.order...) {
		sess, ok := o.active[sessionID]
		if !ok {
			continue
		}
		for _, bound := range sess.bindings {
			if bound == participantID {
				o.log.Info().
					Str("session_id", sessionID).
					Str("participant_id", participantID).
					Msg("participant removed mid-session, aborting")
				o.finish(ctx, sess, storage.OutcomeAborted, o.clk.Current())
				break
			}
		}
	}
	return nil
}
