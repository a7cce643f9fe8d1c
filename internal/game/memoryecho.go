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

// updateRetries bounds the read-modify-write loop on version conflicts.
// The local execution model runs one session at a time, so a conflict here
// means an unordered earlier writer, and one re-read resolves it.
const updateRetries = 3

// echoNote is one entry of a clue trail payload.
type echoNote struct {
	Author string `json:"author"`
	Tick   uint64 `json:"tick"`
}

// echoTrail is the payload shape Memory Echo stores in artifacts. The
// payload stays an opaque blob to the store; only this game interprets it.
type echoTrail struct {
	Notes []echoNote `json:"notes"`
}

// memoryEcho is the asynchronous clue-trail puzzle. One SOLO participant
// per session leaves or extends clues; a later session, possibly run by a
// different participant, picks the trail up from the store.
type memoryEcho struct {
	log       zerolog.Logger
	artifacts storage.ArtifactStore
	newID     func() (string, error)
	puzzleID  string

	status     Status
	cluesTouch int
	lastTick   clock.Tick
}

func newMemoryEcho(deps Deps) (*memoryEcho, error) {
	if deps.Artifacts == nil {
		return nil, fmt.Errorf("artifact store is required")
	}
	if deps.PuzzleID == "" {
		return nil, fmt.Errorf("puzzle id is required")
	}
	return &memoryEcho{
		log:       deps.Log,
		artifacts: deps.Artifacts,
		newID:     deps.newID,
		puzzleID:  deps.PuzzleID,
	}, nil
}

func (g *memoryEcho) Kind() play.Kind {
	return play.KindMemoryEcho
}

func (g *memoryEcho) Advance(ctx context.Context, tick clock.Tick, events []play.PlayerEvent) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	g.lastTick = tick
	if g.status != StatusRunning {
		return Result{Status: g.status}, nil
	}

	for _, evt := range events {
		if evt.Role != play.RoleSolo {
			continue
		}
		switch evt.Action {
		case play.ActionLeaveEcho:
			if err := g.leaveEcho(ctx, tick, evt.ParticipantID); err != nil {
				return Result{}, err
			}
			g.cluesTouch++
		case play.ActionExtendEcho:
			if err := g.extendEcho(ctx, tick, evt.ParticipantID); err != nil {
				return Result{}, err
			}
			g.cluesTouch++
		case play.ActionSealPuzzle:
			g.status = StatusSucceeded
		default:
			g.log.Debug().
				Str("action", string(evt.Action)).
				Uint64("tick", uint64(tick)).
				Msg("unsupported memory echo action ignored")
		}
	}
	return Result{Status: g.status}, nil
}

// leaveEcho appends a fresh artifact to the puzzle's clue trail.
func (g *memoryEcho) leaveEcho(ctx context.Context, tick clock.Tick, authorID string) error {
	artifactID, err := g.newID()
	if err != nil {
		return fmt.Errorf("generate artifact id: %w", err)
	}
	payload, err := json.Marshal(echoTrail{Notes: []echoNote{{Author: authorID, Tick: uint64(tick)}}})
	if err != nil {
		return fmt.Errorf("marshal echo trail: %w", err)
	}
	if err := g.artifacts.PutArtifact(ctx, storage.Artifact{
		ID:          artifactID,
		PuzzleID:    g.puzzleID,
		AuthorID:    authorID,
		CreatedTick: tick,
		Payload:     payload,
	}); err != nil {
		return fmt.Errorf("leave echo: %w", err)
	}
	g.log.Info().
		Str("artifact_id", artifactID).
		Str("puzzle_id", g.puzzleID).
		Str("author_id", authorID).
		Msg("echo left")
	return nil
}

// extendEcho appends a note to the newest clue of the puzzle, retrying the
// optimistic update on version conflict. With no clue present it falls
// back to leaving a fresh one.
func (g *memoryEcho) extendEcho(ctx context.Context, tick clock.Tick, authorID string) error {
	clues, err := g.artifacts.ListArtifactsByPuzzle(ctx, g.puzzleID)
	if err != nil {
		return fmt.Errorf("list clues: %w", err)
	}
	if len(clues) == 0 {
		return g.leaveEcho(ctx, tick, authorID)
	}
	newest := clues[len(clues)-1]

	for attempt := 0; attempt < updateRetries; attempt++ {
		current, err := g.artifacts.GetArtifact(ctx, newest.ID)
		if err != nil {
			return fmt.Errorf("read clue: %w", err)
		}

		var trail echoTrail
		if len(current.Payload) > 0 {
			if err := json.Unmarshal(current.Payload, &trail); err != nil {
				return fmt.Errorf("unmarshal echo trail: %w", err)
			}
		}
		trail.Notes = append(trail.Notes, echoNote{Author: authorID, Tick: uint64(tick)})
		payload, err := json.Marshal(trail)
		if err != nil {
			return fmt.Errorf("marshal echo trail: %w", err)
		}

		_, err = g.artifacts.UpdateArtifact(ctx, current.ID, payload, authorID, tick, current.Version)
		if err == nil {
			g.log.Info().
				Str("artifact_id", current.ID).
				Str("author_id", authorID).
				Uint64("version", current.Version+1).
				Msg("echo extended")
			return nil
		}
		if errors.Is(err, storage.ErrVersionConflict) {
			continue
		}
		if errors.Is(err, storage.ErrArtifactCompleted) {
			g.log.Info().
				Str("artifact_id", current.ID).
				Msg("clue already sealed, extend ignored")
			return nil
		}
		return fmt.Errorf("extend echo: %w", err)
	}
	return fmt.Errorf("extend echo: %w", storage.ErrVersionConflict)
}

func (g *memoryEcho) View(tick clock.Tick) View {
	phase := "AWAITING_CLUES"
	outcome := challenge.OutcomePending
	if g.status == StatusSucceeded {
		phase = "SEALED"
		outcome = challenge.RoundSuccess
	}
	return View{
		Phase:       phase,
		Round:       g.cluesTouch,
		LastOutcome: outcome,
	}
}
