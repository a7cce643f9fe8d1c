package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/louisbranch/cofront/internal/storage"
)

// CreateParticipant inserts one participant record.
func (s *Store) CreateParticipant(ctx context.Context, p storage.Participant) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	id := strings.TrimSpace(p.ID)
	label := strings.TrimSpace(p.Label)
	if id == "" {
		return fmt.Errorf("participant id is required")
	}
	if label == "" {
		return fmt.Errorf("participant label is required")
	}
	createdAt := p.CreatedAt
	if createdAt.IsZero() {
		createdAt = timeNow()
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO participants (id, label, created_at)
VALUES (?, ?, ?)
`, id, label, toMillis(createdAt))
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("create participant: %w", err)
	}
	return nil
}

// GetParticipant fetches one participant by id.
func (s *Store) GetParticipant(ctx context.Context, id string) (storage.Participant, error) {
	if err := ctx.Err(); err != nil {
		return storage.Participant{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.Participant{}, fmt.Errorf("storage is not configured")
	}

	var p storage.Participant
	var createdAt int64
	err := s.sqlDB.QueryRowContext(ctx, `
SELECT id, label, created_at FROM participants WHERE id = ?
`, id).Scan(&p.ID, &p.Label, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.Participant{}, storage.ErrNotFound
		}
		return storage.Participant{}, fmt.Errorf("get participant: %w", err)
	}
	p.CreatedAt = fromMillis(createdAt)
	return p, nil
}

// ListParticipants returns all participants in insertion order.
func (s *Store) ListParticipants(ctx context.Context) ([]storage.Participant, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT id, label, created_at FROM participants ORDER BY created_at, id
`)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	defer rows.Close()

	var participants []storage.Participant
	for rows.Next() {
		var p storage.Participant
		var createdAt int64
		if err := rows.Scan(&p.ID, &p.Label, &createdAt); err != nil {
			return nil, fmt.Errorf("list participants: %w", err)
		}
		p.CreatedAt = fromMillis(createdAt)
		participants = append(participants, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	return participants, nil
}

// DeleteParticipant removes one participant by id.
func (s *Store) DeleteParticipant(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}

	result, err := s.sqlDB.ExecContext(ctx, `DELETE FROM participants WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete participant: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete participant: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}
