package challenge

import (
	"github.com/louisbranch/cofront/internal/clock"
	"github.com/louisbranch/cofront/internal/play"
)

// Outcome is the aggregate result of one resolved round.
type Outcome string

const (
	// OutcomePending means the round has not resolved yet.
	OutcomePending Outcome = "PENDING"
	// RoundSuccess means every role slot responded correctly.
	RoundSuccess Outcome = "ROUND_SUCCESS"
	// RoundFailure means at least one role slot missed or answered wrong.
	RoundFailure Outcome = "ROUND_FAILURE"
)

// Response records one role slot's reaction to a stimulus.
type Response struct {
	// Tick is when the response was processed.
	Tick clock.Tick
	// Action is the logical action the participant produced.
	Action play.Action
	// Correct is set during scoring: present, within the window, and
	// matching the expected action for the role.
	Correct bool
}

// Event is the immutable record of one stimulus presentation and the
// responses it elicited. Produced once per round during scoring and never
// mutated afterwards.
type Event struct {
	ID            string
	StimulusID    string
	Round         int
	PresentedTick clock.Tick
	ResolvedTick  clock.Tick
	// Responses holds one entry per role slot that responded; roles that
	// timed out are absent and score false.
	Responses map[play.Role]Response
	Outcome   Outcome
}
