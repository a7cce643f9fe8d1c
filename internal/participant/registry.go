// Package participant manages the roster of logical fronts.
//
// Participants are user-created identities that persist across sessions;
// the registry validates labels, enforces uniqueness, and cascades removal
// into any active session holding the participant.
package participant

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/louisbranch/cofront/internal/id"
	"github.com/louisbranch/cofront/internal/storage"
)

var (
	// ErrDuplicateLabel indicates the label is already claimed.
	ErrDuplicateLabel = errors.New("participant label already claimed")
	// ErrEmptyLabel indicates a blank label.
	ErrEmptyLabel = errors.New("participant label is required")
)

const maxLabelLength = 64

// RemovalHook is notified after a participant is removed so session-side
// state (role slots, active sessions) can be cascaded.
type RemovalHook func(ctx context.Context, participantID string) error

// Registry tracks registered participants on top of a participant store.
type Registry struct {
	store storage.ParticipantStore
	log   zerolog.Logger
	idGen func() (string, error)
	hook  RemovalHook
}

// NewRegistry creates a registry backed by the given store.
func NewRegistry(store storage.ParticipantStore, log zerolog.Logger) (*Registry, error) {
	if store == nil {
		return nil, fmt.Errorf("participant store is required")
	}
	return &Registry{store: store, log: log, idGen: id.NewID}, nil
}

// SetRemovalHook installs the cascade hook. At most one hook is supported;
// the session orchestrator installs itself during composition.
func (r *Registry) SetRemovalHook(hook RemovalHook) {
	r.hook = hook
}

// NormalizeLabel trims and validates a display label.
func NormalizeLabel(label string) (string, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		return "", ErrEmptyLabel
	}
	if len(label) > maxLabelLength {
		return "", fmt.Errorf("label exceeds %d characters", maxLabelLength)
	}
	return label, nil
}

// Register creates a new participant with the given label. Fails with
// ErrDuplicateLabel when the label is already claimed; the attempted
// registration has no effect in that case.
func (r *Registry) Register(ctx context.Context, label string) (storage.Participant, error) {
	normalized, err := NormalizeLabel(label)
	if err != nil {
		return storage.Participant{}, err
	}

	participantID, err := r.idGen()
	if err != nil {
		return storage.Participant{}, fmt.Errorf("generate participant id: %w", err)
	}

	p := storage.Participant{ID: participantID, Label: normalized}
	if err := r.store.CreateParticipant(ctx, p); err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			return storage.Participant{}, ErrDuplicateLabel
		}
		return storage.Participant{}, fmt.Errorf("register participant: %w", err)
	}

	r.log.Info().
		Str("participant_id", participantID).
		Str("label", normalized).
		Msg("participant registered")
	return r.store.GetParticipant(ctx, participantID)
}

// Get fetches one participant by id.
func (r *Registry) Get(ctx context.Context, participantID string) (storage.Participant, error) {
	return r.store.GetParticipant(ctx, participantID)
}

// List returns all participants in stable insertion order.
func (r *Registry) List(ctx context.Context) ([]storage.Participant, error) {
	return r.store.ListParticipants(ctx)
}

// Remove deletes a participant. Fails with storage.ErrNotFound when the
// participant does not exist. Removal cascades through the installed hook,
// which unbinds any occupied role slot and aborts the affected session.
func (r *Registry) Remove(ctx context.Context, participantID string) error {
	if err := r.store.DeleteParticipant(ctx, participantID); err != nil {
		return err
	}
	r.log.Info().
		Str("participant_id", participantID).
		Msg("participant removed")

	if r.hook != nil {
		if err := r.hook(ctx, participantID); err != nil {
			return fmt.Errorf("cascade participant removal: %w", err)
		}
	}
	return nil
}
