package game

import (
	"context"
	"fmt"

	"github.com/louisbranch/cofront/internal/challenge"
	"github.com/louisbranch/cofront/internal/clock"
	"github.com/louisbranch/cofront/internal/play"
)

// dualCore runs consecutive Dual-Core Vision rounds. All rounds must
// resolve RoundSuccess to win; a single RoundFailure loses the session.
type dualCore struct {
	machine *challenge.Machine
	rounds  int
	status  Status
}

func newDualCore(deps Deps) (*dualCore, error) {
	if deps.Rounds <= 0 {
		return nil, fmt.Errorf("rounds must be greater than zero")
	}
	machine, err := challenge.NewMachine(challenge.Config{
		CountdownTicks: deps.CountdownTicks,
		WindowTicks:    deps.WindowTicks,
		Roles:          play.KindDualCoreVision.RequiredRoles(),
	}, challenge.NewGenerator(deps.Seed), deps.Log)
	if err != nil {
		return nil, fmt.Errorf("new challenge machine: %w", err)
	}
	return &dualCore{machine: machine, rounds: deps.Rounds}, nil
}

func (g *dualCore) Kind() play.Kind {
	return play.KindDualCoreVision
}

func (g *dualCore) Advance(ctx context.Context, tick clock.Tick, events []play.PlayerEvent) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	if g.status != StatusRunning {
		return Result{Status: g.status}, nil
	}

	if g.machine.Phase() == challenge.PhaseIdle {
		if err := g.machine.BeginRound(); err != nil {
			return Result{}, fmt.Errorf("begin round: %w", err)
		}
	}

	evt, err := g.machine.Step(tick, events)
	if err != nil {
		return Result{}, fmt.Errorf("step challenge: %w", err)
	}

	result := Result{Status: g.status}
	if evt == nil {
		return result, nil
	}

	result.Events = []challenge.Event{*evt}
	switch {
	case evt.Outcome == challenge.RoundFailure:
		g.status = StatusFailed
	case g.machine.Round() >= g.rounds:
		g.status = StatusSucceeded
	default:
		if err := g.machine.BeginRound(); err != nil {
			return Result{}, fmt.Errorf("begin next round: %w", err)
		}
	}
	result.Status = g.status
	return result, nil
}

func (g *dualCore) View(tick clock.Tick) View {
	view := View{
		Phase:          g.machine.Phase().String(),
		Round:          g.machine.Round(),
		TicksRemaining: g.machine.TicksRemaining(tick),
		LastOutcome:    challenge.OutcomePending,
	}
	last := g.machine.LastEvent()
	if last == nil {
		return view
	}
	view.LastOutcome = last.Outcome
	view.LastCorrect = make(map[play.Role]bool, len(last.Responses))
	for _, role := range play.KindDualCoreVision.RequiredRoles() {
		resp, ok := last.Responses[role]
		view.LastCorrect[role] = ok && resp.Correct
	}
	return view
}
