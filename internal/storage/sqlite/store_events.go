package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/louisbranch/cofront/internal/challenge"
	"github.com/louisbranch/cofront/internal/clock"
	"github.com/louisbranch/cofront/internal/play"
	"github.com/louisbranch/cofront/internal/storage"
)

// responseRow is the persisted JSON shape of one role's response.
type responseRow struct {
	Tick    uint64 `json:"tick"`
	Action  string `json:"action"`
	Correct bool   `json:"correct"`
}

func marshalResponses(responses map[play.Role]challenge.Response) ([]byte, error) {
	rows := make(map[string]responseRow, len(responses))
	for role, resp := range responses {
		rows[string(role)] = responseRow{
			Tick:    uint64(resp.Tick),
			Action:  string(resp.Action),
			Correct: resp.Correct,
		}
	}
	return json.Marshal(rows)
}

func unmarshalResponses(raw []byte) (map[play.Role]challenge.Response, error) {
	var rows map[string]responseRow
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, fmt.Errorf("unmarshal responses: %w", err)
	}
	responses := make(map[play.Role]challenge.Response, len(rows))
	for role, row := range rows {
		responses[play.Role(role)] = challenge.Response{
			Tick:    clock.Tick(row.Tick),
			Action:  play.Action(row.Action),
			Correct: row.Correct,
		}
	}
	return responses, nil
}

// AppendChallengeEvent atomically appends one resolved round record,
// assigning the next per-session sequence inside the transaction.
func (s *Store) AppendChallengeEvent(ctx context.Context, sessionID string, evt challenge.Event) (storage.ChallengeEventRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.ChallengeEventRecord{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.ChallengeEventRecord{}, fmt.Errorf("storage is not configured")
	}
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return storage.ChallengeEventRecord{}, fmt.Errorf("session id is required")
	}
	if strings.TrimSpace(evt.ID) == "" {
		return storage.ChallengeEventRecord{}, fmt.Errorf("event id is required")
	}

	responsesJSON, err := marshalResponses(evt.Responses)
	if err != nil {
		return storage.ChallengeEventRecord{}, fmt.Errorf("marshal responses: %w", err)
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return storage.ChallengeEventRecord{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var seq uint64
	if err := tx.QueryRowContext(ctx, `
SELECT COALESCE(MAX(seq), 0) + 1 FROM challenge_events WHERE session_id = ?
`, sessionID).Scan(&seq); err != nil {
		return storage.ChallengeEventRecord{}, fmt.Errorf("next event seq: %w", err)
	}

	createdAt := timeNow()
	if _, err := tx.ExecContext(ctx, `
INSERT INTO challenge_events (session_id, seq, event_id, stimulus_id, round, presented_tick, resolved_tick, outcome, responses_json, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`, sessionID, seq, evt.ID, evt.StimulusID, evt.Round, int64(evt.PresentedTick), int64(evt.ResolvedTick), string(evt.Outcome), string(responsesJSON), toMillis(createdAt)); err != nil {
		return storage.ChallengeEventRecord{}, fmt.Errorf("append challenge event: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return storage.ChallengeEventRecord{}, fmt.Errorf("commit challenge event: %w", err)
	}

	return storage.ChallengeEventRecord{
		SessionID: sessionID,
		Seq:       seq,
		Event:     evt,
		CreatedAt: createdAt,
	}, nil
}

// ListChallengeEvents returns a session's round records in append order.
func (s *Store) ListChallengeEvents(ctx context.Context, sessionID string) ([]storage.ChallengeEventRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT session_id, seq, event_id, stimulus_id, round, presented_tick, resolved_tick, outcome, responses_json, created_at
FROM challenge_events WHERE session_id = ?
ORDER BY seq
`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list challenge events: %w", err)
	}
	defer rows.Close()

	var records []storage.ChallengeEventRecord
	for rows.Next() {
		var record storage.ChallengeEventRecord
		var outcome, responsesJSON string
		var presentedTick, resolvedTick, createdAt int64
		if err := rows.Scan(
			&record.SessionID,
			&record.Seq,
			&record.Event.ID,
			&record.Event.StimulusID,
			&record.Event.Round,
			&presentedTick,
			&resolvedTick,
			&outcome,
			&responsesJSON,
			&createdAt,
		); err != nil {
			return nil, fmt.Errorf("list challenge events: %w", err)
		}
		record.Event.PresentedTick = clock.Tick(presentedTick)
		record.Event.ResolvedTick = clock.Tick(resolvedTick)
		record.Event.Outcome = challenge.Outcome(outcome)
		record.CreatedAt = fromMillis(createdAt)
		responses, err := unmarshalResponses([]byte(responsesJSON))
		if err != nil {
			return nil, err
		}
		record.Event.Responses = responses
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list challenge events: %w", err)
	}
	return records, nil
}
