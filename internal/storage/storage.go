// Package storage defines the persistence interfaces and records for the
// core engine.
//
// It provides a high-level abstraction for storing participants, archived
// sessions, challenge events, and echo artifacts. Implementations of these
// interfaces (e.g., using SQLite) live in subpackages.
//
// # Error Types
//
// The package defines common error types used across storage
// implementations:
//   - ErrNotFound: a requested record is missing.
//   - ErrAlreadyExists: an insert collides with an existing record.
//   - ErrVersionConflict: an optimistic update lost to a newer write.
//   - ErrArtifactCompleted: an artifact was frozen by puzzle completion.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/louisbranch/cofront/internal/challenge"
	"github.com/louisbranch/cofront/internal/clock"
	"github.com/louisbranch/cofront/internal/play"
)

var (
	// ErrNotFound indicates a requested record is missing.
	ErrNotFound = errors.New("record not found")
	// ErrAlreadyExists indicates an insert collided with an existing record.
	ErrAlreadyExists = errors.New("record already exists")
	// ErrVersionConflict indicates an update carried a stale expected
	// version. The caller must re-read and retry; the stored artifact is
	// unchanged.
	ErrVersionConflict = errors.New("artifact version conflict")
	// ErrArtifactCompleted indicates the artifact was marked completed and
	// accepts no further updates.
	ErrArtifactCompleted = errors.New("artifact is completed")
)

// Participant is a registered logical front. Participants persist across
// sessions and are removed only by explicit deletion.
type Participant struct {
	ID        string
	Label     string
	CreatedAt time.Time
}

// ParticipantStore persists participant records.
type ParticipantStore interface {
	CreateParticipant(ctx context.Context, p Participant) error
	GetParticipant(ctx context.Context, id string) (Participant, error)
	// ListParticipants returns participants in insertion order.
	ListParticipants(ctx context.Context) ([]Participant, error)
	DeleteParticipant(ctx context.Context, id string) error
}

// Artifact is a durable collaborative clue left by one session for a
// future session to discover. Sessions hold only borrowed copies; the
// store owns the canonical record.
type Artifact struct {
	ID          string
	PuzzleID    string
	AuthorID    string
	Version     uint64
	CreatedTick clock.Tick
	UpdatedTick clock.Tick
	// Payload is an opaque content blob; its interpretation belongs to
	// each mini-game, not the core.
	Payload   []byte
	Completed bool
	CreatedAt time.Time
}

// ArtifactVersion is one retained entry of an artifact's clue trail.
type ArtifactVersion struct {
	ArtifactID   string
	Version      uint64
	AuthorID     string
	Payload      []byte
	RecordedTick clock.Tick
}

// ArtifactStore persists echo artifacts with optimistic versioning.
//
// Version counters increase by exactly one per update and every superseded
// payload is retained, so a later session can replay the clue trail.
type ArtifactStore interface {
	// PutArtifact creates a new artifact at version 0.
	PutArtifact(ctx context.Context, artifact Artifact) error
	GetArtifact(ctx context.Context, id string) (Artifact, error)
	// UpdateArtifact replaces the payload if expectedVersion matches the
	// stored version, failing with ErrVersionConflict otherwise and with
	// ErrArtifactCompleted once the artifact is frozen. On success the
	// stored version is expectedVersion+1 and the prior payload has been
	// recorded in the version history within the same transaction.
	UpdateArtifact(ctx context.Context, id string, payload []byte, authorID string, tick clock.Tick, expectedVersion uint64) (Artifact, error)
	// CompleteArtifact freezes the artifact; all subsequent updates fail.
	CompleteArtifact(ctx context.Context, id string, tick clock.Tick) error
	// ListArtifactsByPuzzle returns a puzzle's artifacts ordered by
	// creation tick.
	ListArtifactsByPuzzle(ctx context.Context, puzzleID string) ([]Artifact, error)
	// ListArtifactVersions returns the retained clue trail, oldest first.
	ListArtifactVersions(ctx context.Context, id string) ([]ArtifactVersion, error)
}

// SessionOutcome is the terminal disposition of a session.
type SessionOutcome string

const (
	// OutcomePending means the session is still running.
	OutcomePending SessionOutcome = "PENDING"
	// OutcomeSuccess means the session's mini-game was won.
	OutcomeSuccess SessionOutcome = "SUCCESS"
	// OutcomeFailure means the session's mini-game was lost.
	OutcomeFailure SessionOutcome = "FAILURE"
	// OutcomeAborted means the session was halted before resolution.
	OutcomeAborted SessionOutcome = "ABORTED"
)

// SessionBinding binds one participant to one role slot for a session.
type SessionBinding struct {
	Role          play.Role
	ParticipantID string
}

// SessionRecord is the persisted form of a session, written at start and
// archived with its outcome at the end.
type SessionRecord struct {
	ID        string
	Kind      play.Kind
	PuzzleID  string
	StartTick clock.Tick
	EndTick   clock.Tick
	Outcome   SessionOutcome
	Bindings  []SessionBinding
	CreatedAt time.Time
}

// SessionStore persists session records from start through archival.
type SessionStore interface {
	CreateSession(ctx context.Context, record SessionRecord) error
	GetSession(ctx context.Context, id string) (SessionRecord, error)
	// ListSessions returns sessions in creation order.
	ListSessions(ctx context.Context) ([]SessionRecord, error)
	// ArchiveSession records the terminal outcome and end tick.
	ArchiveSession(ctx context.Context, id string, outcome SessionOutcome, endTick clock.Tick) error
}

// ChallengeEventRecord wraps a resolved round record with its session
// scope and append sequence.
type ChallengeEventRecord struct {
	SessionID string
	Seq       uint64
	Event     challenge.Event
	CreatedAt time.Time
}

// ChallengeEventStore persists the append-only round journal.
type ChallengeEventStore interface {
	// AppendChallengeEvent appends one round record and returns it with
	// its per-session sequence assigned.
	AppendChallengeEvent(ctx context.Context, sessionID string, evt challenge.Event) (ChallengeEventRecord, error)
	// ListChallengeEvents returns a session's rounds in append order.
	ListChallengeEvents(ctx context.Context, sessionID string) ([]ChallengeEventRecord, error)
}

// Store aggregates every persistence interface the orchestrator needs.
type Store interface {
	ParticipantStore
	ArtifactStore
	SessionStore
	ChallengeEventStore
}
