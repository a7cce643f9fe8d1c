package game

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/louisbranch/cofront/internal/challenge"
	"github.com/louisbranch/cofront/internal/clock"
	"github.com/louisbranch/cofront/internal/play"
	"github.com/louisbranch/cofront/internal/storage"
)

// plotState is the payload shape Shared Garden stores in its plot
// artifact: a growth counter plus who tended each generation.
type plotState struct {
	Growth  int      `json:"growth"`
	Tenders []string `json:"tenders"`
}

// sharedGarden is the asynchronous garden puzzle. Each session tends the
// shared plot; the garden completes after a configured number of tended
// generations, usually spread across sessions run by different
// participants.
type sharedGarden struct {
	log       zerolog.Logger
	artifacts storage.ArtifactStore
	newID     func() (string, error)
	puzzleID  string
	target    int

	status Status
	growth int
}

func newSharedGarden(deps Deps) (*sharedGarden, error) {
	if deps.Artifacts == nil {
		return nil, fmt.Errorf("artifact store is required")
	}
	if deps.PuzzleID == "" {
		return nil, fmt.Errorf("puzzle id is required")
	}
	if deps.TargetGrowth <= 0 {
		return nil, fmt.Errorf("target growth must be greater than zero")
	}
	return &sharedGarden{
		log:       deps.Log,
		artifacts: deps.Artifacts,
		newID:     deps.newID,
		puzzleID:  deps.PuzzleID,
		target:    deps.TargetGrowth,
	}, nil
}

func (g *sharedGarden) Kind() play.Kind {
	return play.KindSharedGarden
}

func (g *sharedGarden) Advance(ctx context.Context, tick clock.Tick, events []play.PlayerEvent) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	if g.status != StatusRunning {
		return Result{Status: g.status}, nil
	}

	for _, evt := range events {
		if evt.Role != play.RoleSolo || evt.Action != play.ActionTendPlot {
			g.log.Debug().
				Str("action", string(evt.Action)).
				Str("role", string(evt.Role)).
				Uint64("tick", uint64(tick)).
				Msg("unsupported shared garden input ignored")
			continue
		}
		if err := g.tend(ctx, tick, evt.ParticipantID); err != nil {
			return Result{}, err
		}
		if g.growth >= g.target {
			g.status = StatusSucceeded
			break
		}
	}
	return Result{Status: g.status}, nil
}

// tend grows the newest plot artifact by one generation, creating the plot
// when the garden is empty.
func (g *sharedGarden) tend(ctx context.Context, tick clock.Tick, participantID string) error {
	plots, err := g.artifacts.ListArtifactsByPuzzle(ctx, g.puzzleID)
	if err != nil {
		return fmt.Errorf("list plots: %w", err)
	}

	if len(plots) == 0 {
		artifactID, err := g.newID()
		if err != nil {
			return fmt.Errorf("generate plot id: %w", err)
		}
		payload, err := json.Marshal(plotState{Growth: 1, Tenders: []string{participantID}})
		if err != nil {
			return fmt.Errorf("marshal plot: %w", err)
		}
		if err := g.artifacts.PutArtifact(ctx, storage.Artifact{
			ID:          artifactID,
			PuzzleID:    g.puzzleID,
			AuthorID:    participantID,
			CreatedTick: tick,
			Payload:     payload,
		}); err != nil {
			return fmt.Errorf("plant garden: %w", err)
		}
		g.growth = 1
		g.log.Info().
			Str("artifact_id", artifactID).
			Str("puzzle_id", g.puzzleID).
			Msg("garden planted")
		return nil
	}

	plot := plots[len(plots)-1]
	for attempt := 0; attempt < updateRetries; attempt++ {
		current, err := g.artifacts.GetArtifact(ctx, plot.ID)
		if err != nil {
			return fmt.Errorf("read plot: %w", err)
		}

		var state plotState
		if len(current.Payload) > 0 {
			if err := json.Unmarshal(current.Payload, &state); err != nil {
				return fmt.Errorf("unmarshal plot: %w", err)
			}
		}
		state.Growth++
		state.Tenders = append(state.Tenders, participantID)
		payload, err := json.Marshal(state)
		if err != nil {
			return fmt.Errorf("marshal plot: %w", err)
		}

		_, err = g.artifacts.UpdateArtifact(ctx, current.ID, payload, participantID, tick, current.Version)
		if err == nil {
			g.growth = state.Growth
			g.log.Info().
				Str("artifact_id", current.ID).
				Int("growth", state.Growth).
				Msg("garden tended")
			return nil
		}
		if errors.Is(err, storage.ErrVersionConflict) {
			continue
		}
		if errors.Is(err, storage.ErrArtifactCompleted) {
			g.growth = g.target
			return nil
		}
		return fmt.Errorf("tend plot: %w", err)
	}
	return fmt.Errorf("tend plot: %w", storage.ErrVersionConflict)
}

func (g *sharedGarden) View(tick clock.Tick) View {
	phase := "GROWING"
	outcome := challenge.OutcomePending
	if g.status == StatusSucceeded {
		phase = "BLOOMED"
		outcome = challenge.RoundSuccess
	}
	return View{
		Phase:       phase,
		Round:       g.growth,
		LastOutcome: outcome,
	}
}
