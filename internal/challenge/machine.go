// Package challenge implements the Dual-Core Vision round protocol: a
// tick-driven state machine that presents one stimulus to two perspectives
// and scores their reactions under a bounded response window.
package challenge

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/louisbranch/cofront/internal/clock"
	"github.com/louisbranch/cofront/internal/id"
	"github.com/louisbranch/cofront/internal/play"
)

// Phase describes where the machine is inside a round.
type Phase int

const (
	// PhaseIdle means no round is in progress.
	PhaseIdle Phase = iota
	// PhaseCountdown is the fixed delay before stimulus presentation.
	PhaseCountdown
	// PhaseAwaitingResponses is the bounded response window.
	PhaseAwaitingResponses
	// PhaseResolved means the round has been scored and reported.
	PhaseResolved
)

// String returns the presentation name of the phase.
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "IDLE"
	case PhaseCountdown:
		return "COUNTDOWN"
	case PhaseAwaitingResponses:
		return "AWAITING_RESPONSES"
	case PhaseResolved:
		return "RESOLVED"
	default:
		return "UNKNOWN"
	}
}

var (
	// ErrDuplicateResponse indicates a role slot responded twice within one
	// window. Non-fatal: the second response is logged and ignored.
	ErrDuplicateResponse = errors.New("duplicate response for role")
	// ErrRoundInProgress indicates BeginRound was called mid-round.
	ErrRoundInProgress = errors.New("round already in progress")
)

// Config holds the fixed parameters of a challenge session.
type Config struct {
	// CountdownTicks is the delay between round start and stimulus.
	CountdownTicks uint64
	// WindowTicks bounds the response window; responses processed at or
	// after presentation+window score false.
	WindowTicks uint64
	// Roles are the slots that must react to each stimulus.
	Roles []play.Role
}

// Validate rejects configurations the machine cannot run with.
func (c Config) Validate() error {
	if c.WindowTicks == 0 {
		return fmt.Errorf("window ticks must be greater than zero")
	}
	if len(c.Roles) == 0 {
		return fmt.Errorf("at least one role is required")
	}
	for _, role := range c.Roles {
		if !role.IsValid() {
			return fmt.Errorf("invalid role %q", role)
		}
	}
	return nil
}

// Machine runs rounds of the dual-view reaction challenge.
//
// Lifecycle per round: BeginRound arms the countdown; each Step advances
// one tick, presenting the stimulus when the countdown expires, collecting
// at most one response per role, and scoring the round at the first of
// all-roles-responded or window expiry. Scoring and resolution happen
// within the same tick, so no state persists between Scoring and Resolved.
type Machine struct {
	cfg   Config
	gen   *Generator
	log   zerolog.Logger
	idGen func() (string, error)

	phase         Phase
	round         int
	countdownLeft uint64
	stimulus      Stimulus
	presentedTick clock.Tick
	deadline      clock.Tick
	responses     map[play.Role]Response
	lastEvent     *Event
}

// NewMachine creates an idle machine.
func NewMachine(cfg Config, gen *Generator, log zerolog.Logger) (*Machine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if gen == nil {
		return nil, fmt.Errorf("stimulus generator is required")
	}
	return &Machine{
		cfg:   cfg,
		gen:   gen,
		log:   log,
		idGen: id.NewID,
		phase: PhaseIdle,
	}, nil
}

// Phase returns the machine's current phase.
func (m *Machine) Phase() Phase {
	return m.phase
}

// Round returns the one-based number of the current or last round.
func (m *Machine) Round() int {
	return m.round
}

// LastEvent returns the record of the most recently resolved round, or nil
// when no round has resolved yet.
func (m *Machine) LastEvent() *Event {
	return m.lastEvent
}

// Stimulus returns the stimulus of the current round. Zero value outside
// AwaitingResponses; presentation consumers read it to draw the split
// scene.
func (m *Machine) Stimulus() Stimulus {
	if m.phase != PhaseAwaitingResponses {
		return Stimulus{}
	}
	return m.stimulus
}

// TicksRemaining reports how many ticks are left in the current countdown
// or response window. Zero outside those phases.
func (m *Machine) TicksRemaining(tick clock.Tick) uint64 {
	switch m.phase {
	case PhaseCountdown:
		return m.countdownLeft
	case PhaseAwaitingResponses:
		if tick >= m.deadline {
			return 0
		}
		return uint64(m.deadline - tick)
	default:
		return 0
	}
}

// BeginRound arms the countdown for the next round. Valid from Idle or
// Resolved only.
func (m *Machine) BeginRound() error {
	if m.phase != PhaseIdle && m.phase != PhaseResolved {
		return ErrRoundInProgress
	}
	m.round++
	m.phase = PhaseCountdown
	m.countdownLeft = m.cfg.CountdownTicks
	m.responses = make(map[play.Role]Response, len(m.cfg.Roles))
	m.stimulus = Stimulus{}
	return nil
}

// Step advances the machine by one tick, consuming the events drained for
// that tick. It returns the round's immutable event record on the tick the
// round resolves, and nil otherwise.
func (m *Machine) Step(tick clock.Tick, events []play.PlayerEvent) (*Event, error) {
	switch m.phase {
	case PhaseCountdown:
		m.dropAll(tick, events, "input during countdown ignored")
		if m.countdownLeft > 0 {
			m.countdownLeft--
		}
		if m.countdownLeft == 0 {
			m.present(tick)
		}
		return nil, nil
	case PhaseAwaitingResponses:
		for _, evt := range events {
			if err := m.record(tick, evt); err != nil {
				m.log.Info().
					Str("role", string(evt.Role)).
					Str("participant_id", evt.ParticipantID).
					Uint64("tick", uint64(tick)).
					Msg("duplicate response ignored")
			}
		}
		if len(m.responses) == len(m.cfg.Roles) || tick >= m.deadline {
			return m.score(tick)
		}
		return nil, nil
	default:
		m.dropAll(tick, events, "input outside an active round ignored")
		return nil, nil
	}
}

// present emits the round's single stimulus and opens the response window.
func (m *Machine) present(tick clock.Tick) {
	m.stimulus = m.gen.Next(m.cfg.Roles)
	m.presentedTick = tick
	m.deadline = tick + clock.Tick(m.cfg.WindowTicks)
	m.phase = PhaseAwaitingResponses
	m.log.Debug().
		Str("stimulus_id", m.stimulus.ID).
		Int("round", m.round).
		Uint64("tick", uint64(tick)).
		Msg("stimulus presented")
}

func (m *Machine) record(tick clock.Tick, evt play.PlayerEvent) error {
	if _, expected := m.stimulus.Expected[evt.Role]; !expected {
		return nil
	}
	if _, dup := m.responses[evt.Role]; dup {
		return ErrDuplicateResponse
	}
	m.responses[evt.Role] = Response{Tick: tick, Action: evt.Action}
	return nil
}

// score runs Scoring and Resolved in one step: correctness per role, one
// immutable event record, aggregate outcome.
func (m *Machine) score(tick clock.Tick) (*Event, error) {
	eventID, err := m.idGen()
	if err != nil {
		return nil, fmt.Errorf("generate event id: %w", err)
	}

	outcome := RoundSuccess
	scored := make(map[play.Role]Response, len(m.responses))
	for _, role := range m.cfg.Roles {
		resp, ok := m.responses[role]
		if !ok {
			// Missing response: correctness is always false.
			outcome = RoundFailure
			continue
		}
		resp.Correct = resp.Tick < m.deadline && resp.Action == m.stimulus.Expected[role]
		if !resp.Correct {
			outcome = RoundFailure
		}
		scored[role] = resp
	}

	evt := &Event{
		ID:            eventID,
		StimulusID:    m.stimulus.ID,
		Round:         m.round,
		PresentedTick: m.presentedTick,
		ResolvedTick:  tick,
		Responses:     scored,
		Outcome:       outcome,
	}
	m.lastEvent = evt
	m.phase = PhaseResolved
	return evt, nil
}

func (m *Machine) dropAll(tick clock.Tick, events []play.PlayerEvent, msg string) {
	for _, evt := range events {
		m.log.Debug().
			Str("role", string(evt.Role)).
			Str("action", string(evt.Action)).
			Uint64("tick", uint64(tick)).
			Msg(msg)
	}
}
