package session

import (
	"context"

	"github.com/louisbranch/cofront/internal/clock"
	"github.com/louisbranch/cofront/internal/game"
	"github.com/louisbranch/cofront/internal/play"
	"github.com/louisbranch/cofront/internal/storage"
)

// Snapshot is the read-only per-tick view of one session for presentation
// and audio consumers.
type Snapshot struct {
	SessionID string
	Kind      play.Kind
	Tick      clock.Tick
	Outcome   storage.SessionOutcome
	View      game.View
}

// Snapshot returns the current view of a session. Active sessions report
// live machine state; archived sessions report their stored outcome.
func (o *Orchestrator) Snapshot(ctx context.Context, sessionID string) (Snapshot, error) {
	tick := o.clk.Current()
	if sess, ok := o.active[sessionID]; ok {
		return Snapshot{
			SessionID: sessionID,
			Kind:      sess.record.Kind,
			Tick:      tick,
			Outcome:   storage.OutcomePending,
			View:      sess.game.View(tick),
		}, nil
	}

	record, err := o.store.GetSession(ctx, sessionID)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{
		SessionID: sessionID,
		Kind:      record.Kind,
		Tick:      tick,
		Outcome:   record.Outcome,
	}, nil
}
