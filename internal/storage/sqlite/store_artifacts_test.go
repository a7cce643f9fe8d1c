package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/louisbranch/cofront/internal/clock"
	"github.com/louisbranch/cofront/internal/storage"
)

func putTestArtifact(t *testing.T, store *Store, id, puzzleID, author string, payload string) {
	t.Helper()
	err := store.PutArtifact(context.Background(), storage.Artifact{
		ID:          id,
		PuzzleID:    puzzleID,
		AuthorID:    author,
		Payload:     []byte(payload),
		CreatedTick: 10,
		UpdatedTick: 10,
		CreatedAt:   timeNow(),
	})
	if err != nil {
		t.Fatalf("put artifact %s: %v", id, err)
	}
}

func TestPutAndGetArtifact(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()

	putTestArtifact(t, store, "a1", "garden-1", "p1", "first clue")

	got, err := store.GetArtifact(ctx, "a1")
	if err != nil {
		t.Fatalf("get artifact: %v", err)
	}
	if got.Version != 0 {
		t.Fatalf("version = %d, want 0", got.Version)
	}
	if string(got.Payload) != "first clue" {
		t.Fatalf("payload = %q, want %q", got.Payload, "first clue")
	}
	if got.Completed {
		t.Fatal("fresh artifact should not be completed")
	}
}

func TestPutArtifactDuplicateID(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)

	putTestArtifact(t, store, "a1", "garden-1", "p1", "first")
	err := store.PutArtifact(context.Background(), storage.Artifact{
		ID: "a1", PuzzleID: "garden-1", AuthorID: "p2", Payload: []byte("again"), CreatedAt: timeNow(),
	})
	if !errors.Is(err, storage.ErrAlreadyExists) {
		t.Fatalf("duplicate id error = %v, want ErrAlreadyExists", err)
	}
}

func TestUpdateArtifactIncrementsVersion(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()

	putTestArtifact(t, store, "a1", "garden-1", "p1", "v0")

	updated, err := store.UpdateArtifact(ctx, "a1", []byte("v1"), "p2", 20, 0)
	if err != nil {
		t.Fatalf("update artifact: %v", err)
	}
	if updated.Version != 1 {
		t.Fatalf("version = %d, want 1", updated.Version)
	}
	if updated.UpdatedTick != 20 {
		t.Fatalf("updated tick = %d, want 20", updated.UpdatedTick)
	}
	if updated.AuthorID != "p2" {
		t.Fatalf("author = %q, want %q", updated.AuthorID, "p2")
	}

	versions, err := store.ListArtifactVersions(ctx, "a1")
	if err != nil {
		t.Fatalf("list versions: %v", err)
	}
	if len(versions) != 2 {
		t.Fatalf("versions = %d, want 2", len(versions))
	}
	if versions[0].Version != 0 || string(versions[0].Payload) != "v0" {
		t.Fatalf("version 0 = %+v, want the original payload retained", versions[0])
	}
	if versions[1].Version != 1 || string(versions[1].Payload) != "v1" {
		t.Fatalf("version 1 = %+v, want the updated payload", versions[1])
	}
}

func TestUpdateArtifactStaleVersionLeavesRowUnchanged(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()

	putTestArtifact(t, store, "a1", "garden-1", "p1", "v0")
	if _, err := store.UpdateArtifact(ctx, "a1", []byte("v1"), "p1", 20, 0); err != nil {
		t.Fatalf("first update: %v", err)
	}

	// Writer holding the stale version 0 must lose without mutating.
	if _, err := store.UpdateArtifact(ctx, "a1", []byte("stale"), "p2", 21, 0); !errors.Is(err, storage.ErrVersionConflict) {
		t.Fatalf("stale update error = %v, want ErrVersionConflict", err)
	}

	got, err := store.GetArtifact(ctx, "a1")
	if err != nil {
		t.Fatalf("get artifact: %v", err)
	}
	if got.Version != 1 || string(got.Payload) != "v1" {
		t.Fatalf("artifact after conflict = v%d %q, want v1 %q", got.Version, got.Payload, "v1")
	}
	versions, err := store.ListArtifactVersions(ctx, "a1")
	if err != nil {
		t.Fatalf("list versions: %v", err)
	}
	if len(versions) != 2 {
		t.Fatalf("versions after conflict = %d, want 2", len(versions))
	}
}

func TestCompleteArtifactFreezesUpdates(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()

	putTestArtifact(t, store, "a1", "garden-1", "p1", "v0")
	if err := store.CompleteArtifact(ctx, "a1", 30); err != nil {
		t.Fatalf("complete artifact: %v", err)
	}

	if _, err := store.UpdateArtifact(ctx, "a1", []byte("late"), "p2", 31, 0); !errors.Is(err, storage.ErrArtifactCompleted) {
		t.Fatalf("update after completion = %v, want ErrArtifactCompleted", err)
	}

	got, err := store.GetArtifact(ctx, "a1")
	if err != nil {
		t.Fatalf("get artifact: %v", err)
	}
	if !got.Completed {
		t.Fatal("artifact should report completed")
	}
	if string(got.Payload) != "v0" {
		t.Fatalf("payload = %q, want unchanged %q", got.Payload, "v0")
	}

	// Completing twice is a no-op, not an error.
	if err := store.CompleteArtifact(ctx, "a1", 32); err != nil {
		t.Fatalf("second complete: %v", err)
	}
	if err := store.CompleteArtifact(ctx, "missing", 33); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("complete missing = %v, want ErrNotFound", err)
	}
}

func TestListArtifactsByPuzzle(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()

	for i, id := range []string{"a1", "a2", "a3"} {
		err := store.PutArtifact(ctx, storage.Artifact{
			ID:          id,
			PuzzleID:    "garden-1",
			AuthorID:    "p1",
			Payload:     []byte(id),
			CreatedTick: clock.Tick(10 + i),
			UpdatedTick: clock.Tick(10 + i),
			CreatedAt:   timeNow(),
		})
		if err != nil {
			t.Fatalf("put %s: %v", id, err)
		}
	}
	putTestArtifact(t, store, "other", "garden-2", "p1", "elsewhere")

	list, err := store.ListArtifactsByPuzzle(ctx, "garden-1")
	if err != nil {
		t.Fatalf("list by puzzle: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("artifacts = %d, want 3", len(list))
	}
	for i, want := range []string{"a1", "a2", "a3"} {
		if list[i].ID != want {
			t.Fatalf("artifact %d = %q, want %q", i, list[i].ID, want)
		}
	}
}

func TestArtifactSurvivesReopen(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "cofront.db")
	ctx := context.Background()

	store, err := Open(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	putTestArtifact(t, store, "a1", "garden-1", "p1", "durable clue")
	if _, err := store.UpdateArtifact(ctx, "a1", []byte("tended"), "p2", 20, 0); err != nil {
		t.Fatalf("update artifact: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close store: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	t.Cleanup(func() { _ = reopened.Close() })

	got, err := reopened.GetArtifact(ctx, "a1")
	if err != nil {
		t.Fatalf("get after reopen: %v", err)
	}
	if got.Version != 1 || string(got.Payload) != "tended" {
		t.Fatalf("artifact after reopen = v%d %q, want v1 %q", got.Version, got.Payload, "tended")
	}
	versions, err := reopened.ListArtifactVersions(ctx, "a1")
	if err != nil {
		t.Fatalf("list versions after reopen: %v", err)
	}
	if len(versions) != 2 {
		t.Fatalf("versions after reopen = %d, want 2", len(versions))
	}
}
