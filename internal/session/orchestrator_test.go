package session

import (
	"context"
	"errors"
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/louisbranch/cofront/internal/challenge"
	"github.com/louisbranch/cofront/internal/clock"
	"github.com/louisbranch/cofront/internal/input"
	"github.com/louisbranch/cofront/internal/play"
	"github.com/louisbranch/cofront/internal/storage"
	"github.com/louisbranch/cofront/internal/storage/sqlite"
)

func testConfig() Config {
	return Config{
		CountdownTicks: 0,
		WindowTicks:    10,
		Rounds:         2,
		TargetGrowth:   1,
		Seed:           11,
	}
}

func newTestOrchestrator(t *testing.T, cfg Config) (*Orchestrator, *sqlite.Store) {
	t.Helper()
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "cofront.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	orch, err := NewOrchestrator(store, clock.New(0), cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("new orchestrator: %v", err)
	}
	return orch, store
}

func createParticipants(t *testing.T, store *sqlite.Store, ids ...string) {
	t.Helper()
	for _, id := range ids {
		err := store.CreateParticipant(context.Background(), storage.Participant{ID: id, Label: "label-" + id})
		if err != nil {
			t.Fatalf("create participant %s: %v", id, err)
		}
	}
}

func dualBindings(left, right string) map[play.Role]string {
	return map[play.Role]string{
		play.RoleLeft:  left,
		play.RoleRight: right,
	}
}

func TestStartSessionValidatesBindings(t *testing.T) {
	t.Parallel()

	orch, store := newTestOrchestrator(t, testConfig())
	createParticipants(t, store, "p1", "p2")
	ctx := context.Background()

	if _, err := orch.StartSession(ctx, play.Kind("SOLITAIRE"), nil, ""); err == nil {
		t.Fatal("invalid kind should be rejected")
	}
	if _, err := orch.StartSession(ctx, play.KindDualCoreVision, map[play.Role]string{play.RoleLeft: "p1"}, ""); !errors.Is(err, ErrInsufficientParticipants) {
		t.Fatalf("missing role = %v, want ErrInsufficientParticipants", err)
	}
	if _, err := orch.StartSession(ctx, play.KindDualCoreVision, dualBindings("p1", "p1"), ""); !errors.Is(err, ErrRoleConflict) {
		t.Fatalf("same participant twice = %v, want ErrRoleConflict", err)
	}
	if _, err := orch.StartSession(ctx, play.KindDualCoreVision, dualBindings("p1", "ghost"), ""); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("unknown participant = %v, want ErrNotFound", err)
	}
}

func TestRoleSlotExclusivityAcrossSessions(t *testing.T) {
	t.Parallel()

	orch, store := newTestOrchestrator(t, testConfig())
	createParticipants(t, store, "p1", "p2", "p3")
	ctx := context.Background()

	if _, err := orch.StartSession(ctx, play.KindMemoryEcho, map[play.Role]string{play.RoleSolo: "p1"}, "echo-1"); err != nil {
		t.Fatalf("start first session: %v", err)
	}
	// p1 already holds a slot in the active echo session.
	if _, err := orch.StartSession(ctx, play.KindDualCoreVision, dualBindings("p1", "p2"), ""); !errors.Is(err, ErrRoleConflict) {
		t.Fatalf("cross-session rebind = %v, want ErrRoleConflict", err)
	}
	// Distinct participants may run concurrently.
	if _, err := orch.StartSession(ctx, play.KindDualCoreVision, dualBindings("p2", "p3"), ""); err != nil {
		t.Fatalf("start disjoint session: %v", err)
	}
}

func TestRoleSlotExclusivityUnderRandomStarts(t *testing.T) {
	t.Parallel()

	orch, store := newTestOrchestrator(t, testConfig())
	participants := []string{"p1", "p2", "p3", "p4", "p5"}
	createParticipants(t, store, participants...)
	ctx := context.Background()

	// Random start/end churn must never leave one participant holding two
	// active role slots.
	rng := rand.New(rand.NewSource(5))
	activeByParticipant := make(map[string]string)
	var started []string

	for i := 0; i < 50; i++ {
		if rng.Intn(3) == 0 && len(started) > 0 {
			idx := rng.Intn(len(started))
			sessionID := started[idx]
			started = append(started[:idx], started[idx+1:]...)
			if err := orch.EndSession(ctx, sessionID, storage.OutcomeAborted); err != nil {
				t.Fatalf("end session: %v", err)
			}
			for participantID, held := range activeByParticipant {
				if held == sessionID {
					delete(activeByParticipant, participantID)
				}
			}
			continue
		}

		left := participants[rng.Intn(len(participants))]
		right := participants[rng.Intn(len(participants))]
		record, err := orch.StartSession(ctx, play.KindDualCoreVision, dualBindings(left, right), "")

		conflict := left == right || activeByParticipant[left] != "" || activeByParticipant[right] != ""
		if conflict {
			if !errors.Is(err, ErrRoleConflict) {
				t.Fatalf("start %s/%s = %v, want ErrRoleConflict", left, right, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("start %s/%s: %v", left, right, err)
		}
		started = append(started, record.ID)
		activeByParticipant[left] = record.ID
		activeByParticipant[right] = record.ID
	}
}

func TestDualCoreSessionRunsToSuccess(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	orch, store := newTestOrchestrator(t, cfg)
	createParticipants(t, store, "p1", "p2")
	ctx := context.Background()

	record, err := orch.StartSession(ctx, play.KindDualCoreVision, dualBindings("p1", "p2"), "")
	if err != nil {
		t.Fatalf("start session: %v", err)
	}

	// Mirror the session's stimulus sequence to script correct input.
	gen := challenge.NewGenerator(cfg.Seed)
	roles := play.KindDualCoreVision.RequiredRoles()

	for round := 0; round < cfg.Rounds; round++ {
		// One tick to present the stimulus.
		if _, err := orch.Tick(ctx); err != nil {
			t.Fatalf("present tick: %v", err)
		}
		stimulus := gen.Next(roles)
		pushes := []input.RawEvent{
			{Zone: input.ZoneLeftHalf, Action: stimulus.Expected[play.RoleLeft], Tick: orch.CurrentTick()},
			{Zone: input.ZoneRightHalf, Action: stimulus.Expected[play.RoleRight], Tick: orch.CurrentTick()},
		}
		for _, evt := range pushes {
			if err := orch.PushInput(record.ID, evt); err != nil {
				t.Fatalf("push input: %v", err)
			}
		}
		// One tick to drain and resolve the round.
		if _, err := orch.Tick(ctx); err != nil {
			t.Fatalf("resolve tick: %v", err)
		}
	}

	archived, err := store.GetSession(ctx, record.ID)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if archived.Outcome != storage.OutcomeSuccess {
		t.Fatalf("outcome = %s, want SUCCESS", archived.Outcome)
	}
	if archived.EndTick != 4 {
		t.Fatalf("end tick = %d, want 4", archived.EndTick)
	}

	events, err := store.ListChallengeEvents(ctx, record.ID)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(events) != cfg.Rounds {
		t.Fatalf("persisted rounds = %d, want %d", len(events), cfg.Rounds)
	}
	for i, evt := range events {
		if evt.Seq != uint64(i+1) {
			t.Fatalf("event %d seq = %d, want %d", i, evt.Seq, i+1)
		}
		if evt.Event.Outcome != challenge.RoundSuccess {
			t.Fatalf("event %d outcome = %s, want ROUND_SUCCESS", i, evt.Event.Outcome)
		}
	}

	// The finished session no longer accepts input.
	err = orch.PushInput(record.ID, input.RawEvent{Zone: input.ZoneLeftHalf, Action: play.ActionPressUp})
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("push after finish = %v, want ErrNotFound", err)
	}

	snap, err := orch.Snapshot(ctx, record.ID)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if snap.Outcome != storage.OutcomeSuccess {
		t.Fatalf("snapshot outcome = %s, want SUCCESS", snap.Outcome)
	}
}

func TestMissedWindowArchivesFailure(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	orch, store := newTestOrchestrator(t, cfg)
	createParticipants(t, store, "p1", "p2")
	ctx := context.Background()

	record, err := orch.StartSession(ctx, play.KindDualCoreVision, dualBindings("p1", "p2"), "")
	if err != nil {
		t.Fatalf("start session: %v", err)
	}

	// Nobody responds: the window expires and the session fails.
	for i := 0; i < int(cfg.WindowTicks)+2; i++ {
		if _, err := orch.Tick(ctx); err != nil {
			t.Fatalf("tick: %v", err)
		}
	}

	archived, err := store.GetSession(ctx, record.ID)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if archived.Outcome != storage.OutcomeFailure {
		t.Fatalf("outcome = %s, want FAILURE", archived.Outcome)
	}
	events, err := store.ListChallengeEvents(ctx, record.ID)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(events) != 1 || events[0].Event.Outcome != challenge.RoundFailure {
		t.Fatalf("events = %+v, want one ROUND_FAILURE record", events)
	}
}

func TestParticipantRemovalAbortsSession(t *testing.T) {
	t.Parallel()

	orch, store := newTestOrchestrator(t, testConfig())
	createParticipants(t, store, "p1", "p2")
	ctx := context.Background()

	record, err := orch.StartSession(ctx, play.KindDualCoreVision, dualBindings("p1", "p2"), "")
	if err != nil {
		t.Fatalf("start session: %v", err)
	}
	// Mid-round: stimulus presented, no resolution yet.
	if _, err := orch.Tick(ctx); err != nil {
		t.Fatalf("tick: %v", err)
	}

	if err := orch.HandleParticipantRemoved(ctx, "p2"); err != nil {
		t.Fatalf("handle removal: %v", err)
	}

	archived, err := store.GetSession(ctx, record.ID)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if archived.Outcome != storage.OutcomeAborted {
		t.Fatalf("outcome = %s, want ABORTED", archived.Outcome)
	}

	// The interrupted round leaves no partial record behind.
	events, err := store.ListChallengeEvents(ctx, record.ID)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("events = %d, want none for an aborted round", len(events))
	}

	// Removing a participant with no active session is a no-op.
	if err := orch.HandleParticipantRemoved(ctx, "p1"); err != nil {
		t.Fatalf("second removal: %v", err)
	}
}

func TestEndSessionAborts(t *testing.T) {
	t.Parallel()

	orch, store := newTestOrchestrator(t, testConfig())
	createParticipants(t, store, "p1", "p2")
	ctx := context.Background()

	record, err := orch.StartSession(ctx, play.KindDualCoreVision, dualBindings("p1", "p2"), "")
	if err != nil {
		t.Fatalf("start session: %v", err)
	}
	if err := orch.EndSession(ctx, record.ID, storage.OutcomeAborted); err != nil {
		t.Fatalf("end session: %v", err)
	}
	archived, err := store.GetSession(ctx, record.ID)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if archived.Outcome != storage.OutcomeAborted {
		t.Fatalf("outcome = %s, want ABORTED", archived.Outcome)
	}

	if err := orch.EndSession(ctx, record.ID, storage.OutcomeAborted); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("end finished session = %v, want ErrNotFound", err)
	}
}

func TestGardenSuccessFreezesArtifacts(t *testing.T) {
	t.Parallel()

	orch, store := newTestOrchestrator(t, testConfig())
	createParticipants(t, store, "p1")
	ctx := context.Background()

	record, err := orch.StartSession(ctx, play.KindSharedGarden, map[play.Role]string{play.RoleSolo: "p1"}, "garden-1")
	if err != nil {
		t.Fatalf("start session: %v", err)
	}

	if err := orch.PushInput(record.ID, input.RawEvent{Zone: input.ZoneFull, Action: play.ActionTendPlot}); err != nil {
		t.Fatalf("push input: %v", err)
	}
	if _, err := orch.Tick(ctx); err != nil {
		t.Fatalf("tick: %v", err)
	}

	archived, err := store.GetSession(ctx, record.ID)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if archived.Outcome != storage.OutcomeSuccess {
		t.Fatalf("outcome = %s, want SUCCESS (target growth 1)", archived.Outcome)
	}

	plots, err := store.ListArtifactsByPuzzle(ctx, "garden-1")
	if err != nil {
		t.Fatalf("list plots: %v", err)
	}
	if len(plots) != 1 {
		t.Fatalf("plots = %d, want 1", len(plots))
	}
	if !plots[0].Completed {
		t.Fatal("puzzle completion should freeze the plot artifact")
	}
	if _, err := store.UpdateArtifact(ctx, plots[0].ID, []byte("late"), "p1", 99, plots[0].Version); !errors.Is(err, storage.ErrArtifactCompleted) {
		t.Fatalf("update frozen plot = %v, want ErrArtifactCompleted", err)
	}
}

func TestSnapshotActiveSession(t *testing.T) {
	t.Parallel()

	orch, store := newTestOrchestrator(t, testConfig())
	createParticipants(t, store, "p1", "p2")
	ctx := context.Background()

	record, err := orch.StartSession(ctx, play.KindDualCoreVision, dualBindings("p1", "p2"), "")
	if err != nil {
		t.Fatalf("start session: %v", err)
	}
	if _, err := orch.Tick(ctx); err != nil {
		t.Fatalf("tick: %v", err)
	}

	snap, err := orch.Snapshot(ctx, record.ID)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if snap.Outcome != storage.OutcomePending {
		t.Fatalf("active outcome = %s, want PENDING", snap.Outcome)
	}
	if snap.Kind != play.KindDualCoreVision {
		t.Fatalf("kind = %s, want DUAL_CORE_VISION", snap.Kind)
	}
	if snap.View.Phase != "AWAITING_RESPONSES" {
		t.Fatalf("view phase = %q, want AWAITING_RESPONSES", snap.View.Phase)
	}

	if _, err := orch.Snapshot(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("snapshot missing = %v, want ErrNotFound", err)
	}
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	valid := testConfig()
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	bad := valid
	bad.WindowTicks = 0
	if err := bad.Validate(); err == nil {
		t.Fatal("zero window should be rejected")
	}
	bad = valid
	bad.Rounds = 0
	if err := bad.Validate(); err == nil {
		t.Fatal("zero rounds should be rejected")
	}
	bad = valid
	bad.TargetGrowth = 0
	if err := bad.Validate(); err == nil {
		t.Fatal("zero target growth should be rejected")
	}
}
