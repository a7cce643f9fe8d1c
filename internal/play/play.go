// Package play defines the vocabulary shared by every mini-game: role
// slots, logical actions, game kinds, and the participant-tagged events the
// input router produces.
package play

import (
	"github.com/louisbranch/cofront/internal/clock"
)

// Role identifies a functional position bound to exactly one participant
// for the lifetime of a session.
type Role string

const (
	// RoleLeft is the left-perspective slot in split-view challenges.
	RoleLeft Role = "LEFT"
	// RoleRight is the right-perspective slot in split-view challenges.
	RoleRight Role = "RIGHT"
	// RoleSolo is the single slot used by asynchronous puzzle games.
	RoleSolo Role = "SOLO"
)

// IsValid reports whether the role is one of the supported slots.
func (r Role) IsValid() bool {
	switch r {
	case RoleLeft, RoleRight, RoleSolo:
		return true
	default:
		return false
	}
}

// Action is a logical input action. The presentation layer translates raw
// device input into actions; the core never sees device identifiers.
type Action string

const (
	// Reaction actions used by Dual-Core Vision stimuli.
	ActionPressUp    Action = "PRESS_UP"
	ActionPressDown  Action = "PRESS_DOWN"
	ActionPressLeft  Action = "PRESS_LEFT"
	ActionPressRight Action = "PRESS_RIGHT"

	// Puzzle actions used by the asynchronous collaboration games.
	ActionLeaveEcho  Action = "LEAVE_ECHO"
	ActionExtendEcho Action = "EXTEND_ECHO"
	ActionSealPuzzle Action = "SEAL_PUZZLE"
	ActionTendPlot   Action = "TEND_PLOT"
)

// ReactionActions returns the action set a stimulus can expect, in a fixed
// order so seeded stimulus generation stays reproducible.
func ReactionActions() []Action {
	return []Action{ActionPressUp, ActionPressDown, ActionPressLeft, ActionPressRight}
}

// Kind identifies a mini-game variant.
type Kind string

const (
	// KindDualCoreVision is the two-perspective live reaction challenge.
	KindDualCoreVision Kind = "DUAL_CORE_VISION"
	// KindMemoryEcho is the asynchronous clue-trail puzzle.
	KindMemoryEcho Kind = "MEMORY_ECHO"
	// KindSharedGarden is the asynchronous garden-tending puzzle.
	KindSharedGarden Kind = "SHARED_GARDEN"
)

// IsValid reports whether the game kind is supported.
func (k Kind) IsValid() bool {
	switch k {
	case KindDualCoreVision, KindMemoryEcho, KindSharedGarden:
		return true
	default:
		return false
	}
}

// RequiredRoles returns the role slots a session of this kind must bind.
// Every listed role needs exactly one participant.
func (k Kind) RequiredRoles() []Role {
	switch k {
	case KindDualCoreVision:
		return []Role{RoleLeft, RoleRight}
	case KindMemoryEcho, KindSharedGarden:
		return []Role{RoleSolo}
	default:
		return nil
	}
}

// Asynchronous reports whether the kind collaborates across disjoint
// sessions through echo artifacts.
func (k Kind) Asynchronous() bool {
	return k == KindMemoryEcho || k == KindSharedGarden
}

// PlayerEvent is an input event after routing: tagged with the participant
// and role slot it belongs to, stamped with the tick at which it was
// processed.
type PlayerEvent struct {
	ParticipantID string
	Role          Role
	Action        Action
	Tick          clock.Tick
}
