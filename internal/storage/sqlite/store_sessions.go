package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/louisbranch/cofront/internal/clock"
	"github.com/louisbranch/cofront/internal/play"
	"github.com/louisbranch/cofront/internal/storage"
)

// CreateSession inserts a session record and its role bindings.
func (s *Store) CreateSession(ctx context.Context, record storage.SessionRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	id := strings.TrimSpace(record.ID)
	if id == "" {
		return fmt.Errorf("session id is required")
	}
	if !record.Kind.IsValid() {
		return fmt.Errorf("invalid game kind %q", record.Kind)
	}
	outcome := record.Outcome
	if outcome == "" {
		outcome = storage.OutcomePending
	}
	createdAt := record.CreatedAt
	if createdAt.IsZero() {
		createdAt = timeNow()
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
INSERT INTO sessions (id, game_kind, puzzle_id, start_tick, end_tick, outcome, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
`, id, string(record.Kind), record.PuzzleID, int64(record.StartTick), int64(record.EndTick), string(outcome), toMillis(createdAt)); err != nil {
		if isUniqueViolation(err) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("create session: %w", err)
	}

	for _, binding := range record.Bindings {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO session_bindings (session_id, role, participant_id)
VALUES (?, ?, ?)
`, id, string(binding.Role), binding.ParticipantID); err != nil {
			return fmt.Errorf("create session binding: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit session: %w", err)
	}
	return nil
}

// GetSession fetches one session with its bindings.
func (s *Store) GetSession(ctx context.Context, id string) (storage.SessionRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.SessionRecord{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.SessionRecord{}, fmt.Errorf("storage is not configured")
	}

	var record storage.SessionRecord
	var kind, outcome string
	var startTick, endTick, createdAt int64
	err := s.sqlDB.QueryRowContext(ctx, `
SELECT id, game_kind, puzzle_id, start_tick, end_tick, outcome, created_at
FROM sessions WHERE id = ?
`, id).Scan(&record.ID, &kind, &record.PuzzleID, &startTick, &endTick, &outcome, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.SessionRecord{}, storage.ErrNotFound
		}
		return storage.SessionRecord{}, fmt.Errorf("get session: %w", err)
	}
	record.Kind = play.Kind(kind)
	record.Outcome = storage.SessionOutcome(outcome)
	record.StartTick = clock.Tick(startTick)
	record.EndTick = clock.Tick(endTick)
	record.CreatedAt = fromMillis(createdAt)

	bindings, err := s.sessionBindings(ctx, id)
	if err != nil {
		return storage.SessionRecord{}, err
	}
	record.Bindings = bindings
	return record, nil
}

func (s *Store) sessionBindings(ctx context.Context, sessionID string) ([]storage.SessionBinding, error) {
	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT role, participant_id FROM session_bindings WHERE session_id = ? ORDER BY role
`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list session bindings: %w", err)
	}
	defer rows.Close()

	var bindings []storage.SessionBinding
	for rows.Next() {
		var binding storage.SessionBinding
		var role string
		if err := rows.Scan(&role, &binding.ParticipantID); err != nil {
			return nil, fmt.Errorf("list session bindings: %w", err)
		}
		binding.Role = play.Role(role)
		bindings = append(bindings, binding)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list session bindings: %w", err)
	}
	return bindings, nil
}

// ListSessions returns all sessions in creation order.
func (s *Store) ListSessions(ctx context.Context) ([]storage.SessionRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT id FROM sessions ORDER BY created_at, id
`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("list sessions: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	sessions := make([]storage.SessionRecord, 0, len(ids))
	for _, id := range ids {
		record, err := s.GetSession(ctx, id)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, record)
	}
	return sessions, nil
}

// ArchiveSession records a session's terminal outcome and end tick.
func (s *Store) ArchiveSession(ctx context.Context, id string, outcome storage.SessionOutcome, endTick clock.Tick) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	result, err := s.sqlDB.ExecContext(ctx, `
UPDATE sessions SET outcome = ?, end_tick = ? WHERE id = ?
`, string(outcome), int64(endTick), id)
	if err != nil {
		return fmt.Errorf("archive session: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("archive session: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}
