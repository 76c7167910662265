package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"courtside/domain/entities"
	"courtside/domain/interfaces"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// DefaultRosterMaxAttempts bounds the read-compute-write loop of a roster mutation
const DefaultRosterMaxAttempts = 8

// RosterConfig tunes the roster manager
type RosterConfig struct {
	MaxAttempts int
}

// rosterManager implements interfaces.RosterManager. Every mutation loads the roster,
// computes the change on a copy and writes it conditionally on the loaded version.
type rosterManager struct {
	sessionRepo interfaces.SessionRepository
	rosterRepo  interfaces.RosterRepository
	metrics     interfaces.MetricsRecorder
	config      RosterConfig
	now         func() time.Time
}

// NewRosterManager creates a new roster manager
func NewRosterManager(
	sessionRepo interfaces.SessionRepository,
	rosterRepo interfaces.RosterRepository,
	metrics interfaces.MetricsRecorder,
	config RosterConfig,
) interfaces.RosterManager {
	if metrics == nil {
		metrics = NoopMetrics{}
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = DefaultRosterMaxAttempts
	}
	return &rosterManager{
		sessionRepo: sessionRepo,
		rosterRepo:  rosterRepo,
		metrics:     metrics,
		config:      config,
		now:         time.Now,
	}
}

// rosterMutation computes a change against a private copy of the roster. Returning a
// nil change means there is nothing to write.
type rosterMutation func(session *entities.Session, roster *entities.Roster) (*entities.RosterChange, error)

// Register appends a registrant at position count+1
func (m *rosterManager) Register(ctx context.Context, sessionID string, reg *entities.Registrant) (*interfaces.RosterRegistration, error) {
	if reg == nil || strings.TrimSpace(reg.DisplayName) == "" {
		return nil, errors.New("registrant display name is required")
	}

	entry := *reg
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = m.now()
	}

	var result *interfaces.RosterRegistration
	err := m.mutate(ctx, sessionID, func(session *entities.Session, roster *entities.Roster) (*entities.RosterChange, error) {
		// A previous attempt may have committed before its acknowledgement was lost
		if existing := roster.Find(entry.ID); existing != nil {
			result = registrationOf(existing, session.Capacity)
			return nil, nil
		}

		if !session.AcceptsRosterWrites(m.now()) {
			return nil, fmt.Errorf("session %s is %s: %w", sessionID, session.Status, entities.ErrSessionNotOpen)
		}
		if entry.IsSelf() && roster.SelfOf(entry.OwnerUserID) != nil {
			return nil, entities.ErrAlreadyRegistered
		}
		if roster.FindByName(entry.DisplayName) != nil {
			return nil, fmt.Errorf("%q: %w", entry.DisplayName, entities.ErrDuplicateName)
		}

		inserted := entry
		roster.Append(&inserted)
		result = registrationOf(&inserted, session.Capacity)

		return &entities.RosterChange{Inserted: []*entities.Registrant{&inserted}}, nil
	})
	if err != nil {
		return nil, err
	}

	m.metrics.RecordRegistration(ctx, result.Classification)
	return result, nil
}

// Cancel removes a registrant; a Self entry takes its owner's guests along
func (m *rosterManager) Cancel(ctx context.Context, sessionID, registrantID string) (*interfaces.RosterRemoval, error) {
	return m.remove(ctx, sessionID, func(roster *entities.Roster) []*entities.Registrant {
		return roster.CancellationBatch(registrantID)
	})
}

// CancelMany removes the listed registrants that are still present
func (m *rosterManager) CancelMany(ctx context.Context, sessionID string, registrantIDs []string) (*interfaces.RosterRemoval, error) {
	return m.remove(ctx, sessionID, func(roster *entities.Roster) []*entities.Registrant {
		var batch []*entities.Registrant
		for _, id := range registrantIDs {
			if reg := roster.Find(id); reg != nil {
				batch = append(batch, reg)
			}
		}
		return batch
	})
}

// remove drops one batch and recompacts once, in a single conditional write
func (m *rosterManager) remove(ctx context.Context, sessionID string, selectBatch func(*entities.Roster) []*entities.Registrant) (*interfaces.RosterRemoval, error) {
	var result *interfaces.RosterRemoval
	err := m.mutate(ctx, sessionID, func(session *entities.Session, roster *entities.Roster) (*entities.RosterChange, error) {
		if session.IsClosed() {
			return nil, entities.ErrSessionClosed
		}

		batch := selectBatch(roster)
		if len(batch) == 0 {
			return nil, entities.ErrRegistrantNotFound
		}

		ids := make([]string, 0, len(batch))
		for _, reg := range batch {
			ids = append(ids, reg.ID)
		}

		previous := make(map[string]int, len(roster.Registrants))
		for _, reg := range roster.Registrants {
			previous[reg.ID] = reg.Position
		}

		removed := roster.Remove(ids...)
		moved := roster.Recompact()

		var promoted []*entities.Registrant
		for _, reg := range moved {
			if previous[reg.ID] > session.Capacity && reg.IsActive(session.Capacity) {
				promoted = append(promoted, reg)
			}
		}

		result = &interfaces.RosterRemoval{
			Removed:  removed,
			Moved:    moved,
			Promoted: promoted,
			Capacity: session.Capacity,
		}

		return &entities.RosterChange{Removed: ids, Updated: moved}, nil
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"session_id": sessionID,
		"removed":    len(result.Removed),
		"moved":      len(result.Moved),
		"promoted":   len(result.Promoted),
	}).Debug("Removed registrants")

	return result, nil
}

// Recompact renumbers positions densely. A roster that is already dense is not written.
func (m *rosterManager) Recompact(ctx context.Context, sessionID string) (int, error) {
	moved := 0
	err := m.mutate(ctx, sessionID, func(session *entities.Session, roster *entities.Roster) (*entities.RosterChange, error) {
		changed := roster.Recompact()
		moved = len(changed)
		if moved == 0 {
			return nil, nil
		}
		return &entities.RosterChange{Updated: changed}, nil
	})
	if err != nil {
		return 0, err
	}
	return moved, nil
}

// MarkPaid flags a registrant as settled
func (m *rosterManager) MarkPaid(ctx context.Context, sessionID, registrantID string) error {
	return m.mutate(ctx, sessionID, func(session *entities.Session, roster *entities.Roster) (*entities.RosterChange, error) {
		if session.IsClosed() {
			return nil, entities.ErrSessionClosed
		}

		reg := roster.Find(registrantID)
		if reg == nil {
			return nil, entities.ErrRegistrantNotFound
		}
		if reg.Paid {
			return nil, entities.ErrAlreadyPaid
		}

		reg.Paid = true
		return &entities.RosterChange{Updated: []*entities.Registrant{reg}}, nil
	})
}

// Get returns the current roster
func (m *rosterManager) Get(ctx context.Context, sessionID string) (*entities.Roster, error) {
	roster, err := m.rosterRepo.Load(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load roster: %w", err)
	}
	return roster, nil
}

// mutate runs compute under optimistic concurrency, retrying on version conflicts
func (m *rosterManager) mutate(ctx context.Context, sessionID string, compute rosterMutation) error {
	onConflict := func() {
		m.metrics.RecordRosterConflict(ctx)
	}

	return retryOnConflict(ctx, m.config.MaxAttempts, onConflict, func() error {
		// Roster before session: a status change bumps the roster version, so a stale
		// status read here always fails the conditional write below
		roster, err := m.rosterRepo.Load(ctx, sessionID)
		if err != nil {
			return fmt.Errorf("failed to load roster: %w", err)
		}
		session, err := m.sessionRepo.GetByID(ctx, sessionID)
		if err != nil {
			return fmt.Errorf("failed to get session: %w", err)
		}
		if session == nil {
			return entities.ErrSessionNotFound
		}

		working := roster.Clone()
		change, err := compute(session, working)
		if err != nil {
			return err
		}
		if change == nil || change.IsEmpty() {
			return nil
		}
		if err := working.CheckDense(); err != nil {
			return fmt.Errorf("refusing to write roster of session %s: %w", sessionID, err)
		}

		change.SessionID = sessionID
		change.ExpectedVersion = roster.Version
		if _, err := m.rosterRepo.Save(ctx, change); err != nil {
			return fmt.Errorf("failed to save roster: %w", err)
		}
		return nil
	})
}

func registrationOf(reg *entities.Registrant, capacity int) *interfaces.RosterRegistration {
	return &interfaces.RosterRegistration{
		Registrant:     reg,
		Position:       reg.Position,
		Classification: reg.Classify(capacity),
	}
}
