// Command cofront runs the core session engine as a local harness: it
// wires configuration, storage, the participant registry, and the session
// orchestrator, then replays a scripted Dual-Core Vision session while
// printing per-tick snapshots. Rendering, audio, and UI are external
// consumers of these snapshots and are not part of the core.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/louisbranch/cofront/internal/clock"
	"github.com/louisbranch/cofront/internal/config"
	"github.com/louisbranch/cofront/internal/input"
	"github.com/louisbranch/cofront/internal/participant"
	"github.com/louisbranch/cofront/internal/play"
	"github.com/louisbranch/cofront/internal/random"
	"github.com/louisbranch/cofront/internal/session"
	"github.com/louisbranch/cofront/internal/storage"
	"github.com/louisbranch/cofront/internal/storage/sqlite"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "cofront: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()

	cfg, err := config.Parse()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		logger = logger.Level(level)
	}

	seed := cfg.Seed
	if seed == 0 {
		seed, err = random.NewSeed()
		if err != nil {
			return fmt.Errorf("generate seed: %w", err)
		}
	}

	store, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error().Err(err).Msg("close store")
		}
	}()

	registry, err := participant.NewRegistry(store, logger)
	if err != nil {
		return err
	}

	orchestrator, err := session.NewOrchestrator(store, clock.New(0), session.Config{
		CountdownTicks: cfg.CountdownTicks,
		WindowTicks:    cfg.WindowTicks,
		Rounds:         cfg.RoundsPerSession,
		TargetGrowth:   cfg.GardenGenerations,
		Seed:           seed,
	}, logger)
	if err != nil {
		return err
	}
	registry.SetRemovalHook(orchestrator.HandleParticipantRemoved)

	left, err := ensureParticipant(ctx, registry, "ember")
	if err != nil {
		return err
	}
	right, err := ensureParticipant(ctx, registry, "wren")
	if err != nil {
		return err
	}

	record, err := orchestrator.StartSession(ctx, play.KindDualCoreVision, map[play.Role]string{
		play.RoleLeft:  left.ID,
		play.RoleRight: right.ID,
	}, "")
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}

	// Scripted demo input: both perspectives press on every fifth tick.
	for i := 0; i < 200; i++ {
		tick, err := orchestrator.Tick(ctx)
		if err != nil {
			return fmt.Errorf("tick %d: %w", tick, err)
		}

		snapshot, err := orchestrator.Snapshot(ctx, record.ID)
		if err != nil {
			return fmt.Errorf("snapshot: %w", err)
		}
		fmt.Printf("tick=%d phase=%s round=%d remaining=%d outcome=%s\n",
			snapshot.Tick, snapshot.View.Phase, snapshot.View.Round,
			snapshot.View.TicksRemaining, snapshot.Outcome)
		if snapshot.Outcome != storage.OutcomePending {
			return nil
		}

		if i%5 == 0 {
			_ = orchestrator.PushInput(record.ID, input.RawEvent{
				Zone: input.ZoneLeftHalf, Action: play.ActionPressUp, Tick: tick,
			})
			_ = orchestrator.PushInput(record.ID, input.RawEvent{
				Zone: input.ZoneRightHalf, Action: play.ActionPressLeft, Tick: tick,
			})
		}
	}
	return nil
}

func ensureParticipant(ctx context.Context, registry *participant.Registry, label string) (storage.Participant, error) {
	p, err := registry.Register(ctx, label)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, participant.ErrDuplicateLabel) {
		return storage.Participant{}, err
	}
	existing, err := registry.List(ctx)
	if err != nil {
		return storage.Participant{}, err
	}
	for _, candidate := range existing {
		if candidate.Label == label {
			return candidate, nil
		}
	}
	return storage.Participant{}, storage.ErrNotFound
}
