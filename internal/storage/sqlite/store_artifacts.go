package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/louisbranch/cofront/internal/clock"
	"github.com/louisbranch/cofront/internal/storage"
)

// PutArtifact creates a new artifact at version 0 and records the initial
// payload in the version history within the same transaction.
func (s *Store) PutArtifact(ctx context.Context, artifact storage.Artifact) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	id := strings.TrimSpace(artifact.ID)
	puzzleID := strings.TrimSpace(artifact.PuzzleID)
	authorID := strings.TrimSpace(artifact.AuthorID)
	if id == "" {
		return fmt.Errorf("artifact id is required")
	}
	if puzzleID == "" {
		return fmt.Errorf("puzzle id is required")
	}
	if authorID == "" {
		return fmt.Errorf("author id is required")
	}
	if artifact.Version != 0 {
		return fmt.Errorf("new artifacts start at version 0, got %d", artifact.Version)
	}
	createdAt := artifact.CreatedAt
	if createdAt.IsZero() {
		createdAt = timeNow()
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
INSERT INTO echo_artifacts (id, puzzle_id, author_id, version, created_tick, updated_tick, payload, completed, created_at)
VALUES (?, ?, ?, 0, ?, ?, ?, 0, ?)
`, id, puzzleID, authorID, int64(artifact.CreatedTick), int64(artifact.CreatedTick), artifact.Payload, toMillis(createdAt)); err != nil {
		if isUniqueViolation(err) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("put artifact: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
INSERT INTO echo_artifact_versions (artifact_id, version, author_id, payload, recorded_tick)
VALUES (?, 0, ?, ?, ?)
`, id, authorID, artifact.Payload, int64(artifact.CreatedTick)); err != nil {
		return fmt.Errorf("record artifact version: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit artifact: %w", err)
	}
	return nil
}

// GetArtifact fetches one artifact by id.
func (s *Store) GetArtifact(ctx context.Context, id string) (storage.Artifact, error) {
	if err := ctx.Err(); err != nil {
		return storage.Artifact{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.Artifact{}, fmt.Errorf("storage is not configured")
	}
	return scanArtifact(s.sqlDB.QueryRowContext(ctx, `
SELECT id, puzzle_id, author_id, version, created_tick, updated_tick, payload, completed, created_at
FROM echo_artifacts WHERE id = ?
`, id))
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanArtifact(row rowScanner) (storage.Artifact, error) {
	var artifact storage.Artifact
	var createdTick, updatedTick, createdAt int64
	var completed int
	err := row.Scan(
		&artifact.ID,
		&artifact.PuzzleID,
		&artifact.AuthorID,
		&artifact.Version,
		&createdTick,
		&updatedTick,
		&artifact.Payload,
		&completed,
		&createdAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.Artifact{}, storage.ErrNotFound
		}
		return storage.Artifact{}, fmt.Errorf("scan artifact: %w", err)
	}
	artifact.CreatedTick = clock.Tick(createdTick)
	artifact.UpdatedTick = clock.Tick(updatedTick)
	artifact.Completed = completed != 0
	artifact.CreatedAt = fromMillis(createdAt)
	return artifact, nil
}

// UpdateArtifact applies an optimistic-concurrency update. The stored row
// is untouched on any failure; on success the version increments by
// exactly one and the new payload joins the retained history.
func (s *Store) UpdateArtifact(ctx context.Context, id string, payload []byte, authorID string, tick clock.Tick, expectedVersion uint64) (storage.Artifact, error) {
	if err := ctx.Err(); err != nil {
		return storage.Artifact{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.Artifact{}, fmt.Errorf("storage is not configured")
	}
	authorID = strings.TrimSpace(authorID)
	if authorID == "" {
		return storage.Artifact{}, fmt.Errorf("author id is required")
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return storage.Artifact{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	current, err := scanArtifact(tx.QueryRowContext(ctx, `
SELECT id, puzzle_id, author_id, version, created_tick, updated_tick, payload, completed, created_at
FROM echo_artifacts WHERE id = ?
`, id))
	if err != nil {
		return storage.Artifact{}, err
	}
	if current.Completed {
		return storage.Artifact{}, storage.ErrArtifactCompleted
	}
	if current.Version != expectedVersion {
		return storage.Artifact{}, storage.ErrVersionConflict
	}

	next := current
	next.Version = expectedVersion + 1
	next.AuthorID = authorID
	next.Payload = payload
	next.UpdatedTick = tick

	if _, err := tx.ExecContext(ctx, `
UPDATE echo_artifacts
SET version = ?, author_id = ?, payload = ?, updated_tick = ?
WHERE id = ? AND version = ?
`, next.Version, next.AuthorID, next.Payload, int64(next.UpdatedTick), id, expectedVersion); err != nil {
		return storage.Artifact{}, fmt.Errorf("update artifact: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
INSERT INTO echo_artifact_versions (artifact_id, version, author_id, payload, recorded_tick)
VALUES (?, ?, ?, ?, ?)
`, id, next.Version, next.AuthorID, next.Payload, int64(tick)); err != nil {
		return storage.Artifact{}, fmt.Errorf("record artifact version: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return storage.Artifact{}, fmt.Errorf("commit artifact update: %w", err)
	}
	return next, nil
}

// CompleteArtifact freezes an artifact; subsequent updates fail with
// ErrArtifactCompleted. Completing an already-completed artifact is a
// no-op.
func (s *Store) CompleteArtifact(ctx context.Context, id string, tick clock.Tick) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	result, err := s.sqlDB.ExecContext(ctx, `
UPDATE echo_artifacts SET completed = 1, updated_tick = ? WHERE id = ?
`, int64(tick), id)
	if err != nil {
		return fmt.Errorf("complete artifact: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("complete artifact: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// ListArtifactsByPuzzle returns a puzzle's artifacts ordered by creation
// tick.
func (s *Store) ListArtifactsByPuzzle(ctx context.Context, puzzleID string) ([]storage.Artifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT id, puzzle_id, author_id, version, created_tick, updated_tick, payload, completed, created_at
FROM echo_artifacts WHERE puzzle_id = ?
ORDER BY created_tick, id
`, puzzleID)
	if err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}
	defer rows.Close()

	var artifacts []storage.Artifact
	for rows.Next() {
		artifact, err := scanArtifact(rows)
		if err != nil {
			return nil, err
		}
		artifacts = append(artifacts, artifact)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}
	return artifacts, nil
}

// ListArtifactVersions returns an artifact's retained clue trail, oldest
// first.
func (s *Store) ListArtifactVersions(ctx context.Context, id string) ([]storage.ArtifactVersion, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT artifact_id, version, author_id, payload, recorded_tick
FROM echo_artifact_versions WHERE artifact_id = ?
ORDER BY version
`, id)
	if err != nil {
		return nil, fmt.Errorf("list artifact versions: %w", err)
	}
	defer rows.Close()

	var versions []storage.ArtifactVersion
	for rows.Next() {
		var v storage.ArtifactVersion
		var recordedTick int64
		if err := rows.Scan(&v.ArtifactID, &v.Version, &v.AuthorID, &v.Payload, &recordedTick); err != nil {
			return nil, fmt.Errorf("list artifact versions: %w", err)
		}
		v.RecordedTick = clock.Tick(recordedTick)
		versions = append(versions, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list artifact versions: %w", err)
	}
	return versions, nil
}
