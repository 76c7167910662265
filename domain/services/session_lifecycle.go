package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"courtside/domain/entities"
	"courtside/domain/events"
	"courtside/domain/interfaces"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

const maxArchiveKeyAttempts = 20

// LifecycleConfig holds the defaults for new sessions and the settlement rates
type LifecycleConfig struct {
	DefaultCapacity     int
	DefaultFee          int64
	DefaultLockWindow   time.Duration
	SessionInterval     time.Duration // Gap between a closed session and its successor
	SessionWeekday      time.Weekday  // Weekday of the first session on an empty store
	SessionHour         int
	Location            *time.Location
	Rates               entities.CostRates
	LowBalanceThreshold int64
	CompensationTimeout time.Duration
}

// sessionLifecycle implements interfaces.SessionLifecycle
type sessionLifecycle struct {
	sessionRepo  interfaces.SessionRepository
	archiveRepo  interfaces.ArchiveRepository
	settingsRepo interfaces.SettingsRepository
	roster       interfaces.RosterManager
	ledger       interfaces.WalletLedger
	notifier     interfaces.NotificationGateway
	metrics      interfaces.MetricsRecorder
	config       LifecycleConfig
	settler      *settler
	now          func() time.Time
}

// NewSessionLifecycle creates a new session lifecycle service
func NewSessionLifecycle(
	sessionRepo interfaces.SessionRepository,
	archiveRepo interfaces.ArchiveRepository,
	settingsRepo interfaces.SettingsRepository,
	roster interfaces.RosterManager,
	ledger interfaces.WalletLedger,
	notifier interfaces.NotificationGateway,
	metrics interfaces.MetricsRecorder,
	config LifecycleConfig,
) interfaces.SessionLifecycle {
	if metrics == nil {
		metrics = NoopMetrics{}
	}
	if config.Location == nil {
		config.Location = time.UTC
	}
	if config.SessionInterval <= 0 {
		config.SessionInterval = 7 * 24 * time.Hour
	}
	if config.CompensationTimeout <= 0 {
		config.CompensationTimeout = 10 * time.Second
	}
	return &sessionLifecycle{
		sessionRepo:  sessionRepo,
		archiveRepo:  archiveRepo,
		settingsRepo: settingsRepo,
		roster:       roster,
		ledger:       ledger,
		notifier:     notifier,
		metrics:      metrics,
		config:       config,
		settler:      newSettler(ledger, roster, notifier, metrics, config.LowBalanceThreshold, config.CompensationTimeout),
		now:          time.Now,
	}
}

// Current returns the working session. An empty store gets its first Draft, and a
// handle left pointing at a Closed session is advanced to the successor.
func (s *sessionLifecycle) Current(ctx context.Context) (*entities.Session, error) {
	var current *entities.Session
	err := retryOnConflict(ctx, 3, nil, func() error {
		id, err := s.settingsRepo.GetCurrentSessionID(ctx)
		if err != nil {
			return fmt.Errorf("failed to get current session id: %w", err)
		}

		if id == "" {
			draft := s.newDraft(s.calculateFirstStart())
			if err := s.install(ctx, "", draft); err != nil {
				return err
			}
			current = draft
			return nil
		}

		session, err := s.Get(ctx, id)
		if err != nil {
			return err
		}
		if session.IsClosed() {
			next := s.successorOf(session)
			if err := s.install(ctx, id, next); err != nil {
				return err
			}
			current = next
			return nil
		}

		current = session
		return nil
	})
	if err != nil {
		return nil, err
	}
	return current, nil
}

// Get returns a session by id
func (s *sessionLifecycle) Get(ctx context.Context, sessionID string) (*entities.Session, error) {
	session, err := s.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if session == nil {
		return nil, entities.ErrSessionNotFound
	}
	return session, nil
}

// Reset discards the current session in favour of a fresh Draft built from the
// configured defaults. A session holding paid registrants must be closed instead so
// nobody's payment is stranded.
func (s *sessionLifecycle) Reset(ctx context.Context) (*entities.Session, error) {
	current, err := s.Current(ctx)
	if err != nil {
		return nil, err
	}

	roster, err := s.roster.Get(ctx, current.ID)
	if err != nil {
		return nil, err
	}
	for _, reg := range roster.Registrants {
		if reg.Paid {
			return nil, fmt.Errorf("session %s holds paid registrants, close it instead: %w", current.ID, entities.ErrInvalidTransition)
		}
	}

	if err := s.sessionRepo.TransitionStatus(ctx, current.ID, current.Status, entities.SessionStatusClosed, s.now()); err != nil {
		return nil, fmt.Errorf("failed to retire session %s: %w", current.ID, err)
	}

	// A registration may have committed between the check above and the retirement
	if retired, err := s.roster.Get(ctx, current.ID); err == nil {
		s.refundStranded(ctx, current, retired)
	}

	draft := s.newDraft(s.calculateFirstStart())
	if err := s.install(ctx, current.ID, draft); err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"retired_session": current.ID,
		"session_id":      draft.ID,
	}).Info("Reset current session")

	return draft, nil
}

// Configure edits the admin-controlled fields. The fee is fixed once the session is
// published so every refund equals what was charged.
func (s *sessionLifecycle) Configure(ctx context.Context, sessionID string, settings entities.SessionSettings) (*entities.Session, error) {
	session, err := s.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if settings.IsEmpty() {
		return session, nil
	}
	if session.IsClosed() {
		return nil, entities.ErrSessionClosed
	}
	if settings.FeeAmount != nil && *settings.FeeAmount != session.FeeAmount && !session.IsDraft() {
		return nil, fmt.Errorf("fee can only change while the session is a draft: %w", entities.ErrInvalidTransition)
	}

	previousCapacity := session.Capacity
	settings.ApplyTo(session)
	if err := session.Validate(); err != nil {
		return nil, fmt.Errorf("invalid session settings: %w", err)
	}

	if err := s.sessionRepo.UpdateSettings(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to update session settings: %w", err)
	}

	if session.IsPublished() && session.Capacity > previousCapacity {
		roster, err := s.roster.Get(ctx, sessionID)
		if err != nil {
			return session, fmt.Errorf("failed to load roster for promoted registrants: %w", err)
		}
		var promoted []*entities.Registrant
		for _, reg := range roster.Active(session.Capacity) {
			if reg.Position > previousCapacity {
				promoted = append(promoted, reg)
			}
		}
		s.settler.settlePromoted(ctx, session, promoted, "configure")
	}
	return session, nil
}

// RecordEquipment adds consumed equipment units to the session's cost counter
func (s *sessionLifecycle) RecordEquipment(ctx context.Context, sessionID string, units int) (*entities.Session, error) {
	if units <= 0 {
		return nil, entities.ErrInvalidAmount
	}

	session, err := s.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.IsClosed() {
		return nil, entities.ErrSessionClosed
	}

	total, err := s.sessionRepo.AddEquipmentUnits(ctx, sessionID, units)
	if err != nil {
		return nil, fmt.Errorf("failed to record equipment: %w", err)
	}
	session.EquipmentUnitsUsed = total
	return session, nil
}

// Publish charges every active, unpaid registrant and then opens the session. A
// registrant who cannot pay stays active and unpaid and is listed in the report.
func (s *sessionLifecycle) Publish(ctx context.Context, sessionID string) (*interfaces.SettlementReport, error) {
	session, err := s.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.IsClosed() {
		return nil, entities.ErrSessionClosed
	}
	if !session.IsDraft() {
		return nil, fmt.Errorf("session %s is %s: %w", sessionID, session.Status, entities.ErrInvalidTransition)
	}

	roster, err := s.roster.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	report := &interfaces.SettlementReport{SessionID: sessionID}
	for _, reg := range roster.Active(session.Capacity) {
		if reg.Paid {
			continue
		}
		s.settler.settle(ctx, session, reg, report)
	}

	if err := s.sessionRepo.TransitionStatus(ctx, sessionID, entities.SessionStatusDraft, entities.SessionStatusPublished, s.now()); err != nil {
		return report, fmt.Errorf("failed to publish session: %w", err)
	}

	log.WithFields(log.Fields{
		"session_id":    sessionID,
		"charged":       len(report.Charged),
		"unpaid":        len(report.Unpaid),
		"unreconciled":  len(report.Unreconciled),
		"total_charged": report.TotalCharged,
	}).Info("Published session")

	total := roster.Count()
	notify(ctx, s.notifier, events.SessionPublishedEvent{
		SessionID:      sessionID,
		AvailableSlots: session.AvailableSlots(total),
		WaitlistCount:  session.WaitlistCount(total),
	})

	return report, nil
}

// Close archives the session, marks it Closed and installs its successor as current
func (s *sessionLifecycle) Close(ctx context.Context, sessionID string) (*interfaces.CloseResult, error) {
	session, err := s.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.IsClosed() {
		return nil, entities.ErrSessionClosed
	}

	// Closing first bumps the roster version, so the archive below sees a frozen roster
	closedAt := s.now()
	if err := s.sessionRepo.TransitionStatus(ctx, sessionID, session.Status, entities.SessionStatusClosed, closedAt); err != nil {
		if errors.Is(err, entities.ErrInvalidTransition) {
			if latest, gerr := s.Get(ctx, sessionID); gerr == nil && latest.IsClosed() {
				return nil, entities.ErrSessionClosed
			}
		}
		return nil, fmt.Errorf("failed to close session: %w", err)
	}
	session.Status = entities.SessionStatusClosed
	session.ClosedAt = &closedAt

	archive, err := s.ArchiveSession(ctx, sessionID)
	if err != nil {
		log.WithField("session_id", sessionID).WithError(err).Error("Session closed but archive write failed")
		return nil, err
	}

	result := &interfaces.CloseResult{Archive: archive}

	currentID, err := s.settingsRepo.GetCurrentSessionID(ctx)
	if err != nil {
		return result, fmt.Errorf("failed to get current session id: %w", err)
	}
	if currentID == sessionID {
		next := s.successorOf(session)
		if err := s.install(ctx, sessionID, next); err != nil {
			return result, err
		}
		result.NextSession = next
	}

	log.WithFields(log.Fields{
		"session_id":  sessionID,
		"archive_key": archive.Key,
		"income":      archive.Income,
		"expense":     archive.Expense,
	}).Info("Closed session")

	return result, nil
}

// ArchiveSession writes the archive of a closed session. It is a no-op returning the
// stored archive when one already exists.
func (s *sessionLifecycle) ArchiveSession(ctx context.Context, sessionID string) (*entities.SessionArchive, error) {
	session, err := s.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !session.IsClosed() {
		return nil, fmt.Errorf("session %s is %s: %w", sessionID, session.Status, entities.ErrInvalidTransition)
	}

	existing, err := s.archiveRepo.GetBySessionID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up archive: %w", err)
	}
	if existing != nil {
		return existing, nil
	}

	roster, err := s.roster.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	archive := entities.NewSessionArchive(session, roster, s.config.Rates, s.now())
	for attempt := 1; attempt <= maxArchiveKeyAttempts; attempt++ {
		archive.Key = entities.ArchiveKey(archive.Date, attempt)
		err := s.archiveRepo.Create(ctx, archive)
		if err == nil {
			return archive, nil
		}
		if !errors.Is(err, entities.ErrArchiveExists) {
			return nil, fmt.Errorf("failed to write archive: %w", err)
		}
	}
	return nil, fmt.Errorf("no free archive key for %s: %w", archive.Date, entities.ErrArchiveExists)
}

// SetMaintenance toggles the player gate
func (s *sessionLifecycle) SetMaintenance(ctx context.Context, enabled bool) error {
	if err := s.settingsRepo.SetMaintenance(ctx, enabled); err != nil {
		return fmt.Errorf("failed to set maintenance: %w", err)
	}
	log.WithField("enabled", enabled).Info("Maintenance mode changed")
	return nil
}

// Maintenance reports whether the player gate is closed
func (s *sessionLifecycle) Maintenance(ctx context.Context) (bool, error) {
	enabled, err := s.settingsRepo.GetMaintenance(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to get maintenance: %w", err)
	}
	return enabled, nil
}

// Archives lists archived sessions
func (s *sessionLifecycle) Archives(ctx context.Context, limit int) ([]*entities.SessionArchive, error) {
	archives, err := s.archiveRepo.List(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list archives: %w", err)
	}
	return archives, nil
}

// refundStranded pays back paid registrants of a session retired without settlement
func (s *sessionLifecycle) refundStranded(ctx context.Context, session *entities.Session, roster *entities.Roster) {
	for _, reg := range roster.Registrants {
		if !reg.Paid || session.FeeAmount == 0 {
			continue
		}
		refundCtx, cancel := detach(ctx, s.config.CompensationTimeout)
		_, err := s.ledger.Credit(refundCtx, reg.OwnerUserID, session.FeeAmount, entities.ReasonCancellationRefund,
			interfaces.WithSession(session.ID),
			interfaces.WithMetadata("registrant_id", reg.ID))
		cancel()
		if err != nil {
			s.metrics.RecordUnreconciled(ctx, "reset")
			log.WithFields(log.Fields{
				"operation":  "reset",
				"user_id":    reg.OwnerUserID,
				"amount":     session.FeeAmount,
				"session_id": session.ID,
			}).WithError(err).Error("Refund for retired session failed, manual reconciliation required")
		}
	}
}

// install stores session and swaps the current handle from expected to it
func (s *sessionLifecycle) install(ctx context.Context, expected string, session *entities.Session) error {
	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	if err := s.settingsRepo.SwapCurrentSession(ctx, expected, session.ID); err != nil {
		if errors.Is(err, entities.ErrVersionConflict) {
			log.WithField("session_id", session.ID).Debug("Lost race to install current session")
		}
		return err
	}
	return nil
}

func (s *sessionLifecycle) newDraft(start time.Time) *entities.Session {
	return &entities.Session{
		ID:             uuid.NewString(),
		Status:         entities.SessionStatusDraft,
		Capacity:       s.config.DefaultCapacity,
		FeeAmount:      s.config.DefaultFee,
		ScheduledStart: start,
		LockWindow:     s.config.DefaultLockWindow,
		CreatedAt:      s.now(),
	}
}

// successorOf builds the Draft that follows a closed session, keeping its capacity,
// fee and lock window
func (s *sessionLifecycle) successorOf(closed *entities.Session) *entities.Session {
	now := s.now()
	start := closed.ScheduledStart.Add(s.config.SessionInterval)
	for !start.After(now) {
		start = start.Add(s.config.SessionInterval)
	}

	next := s.newDraft(start)
	next.Capacity = closed.Capacity
	next.FeeAmount = closed.FeeAmount
	next.LockWindow = closed.LockWindow
	return next
}

// calculateFirstStart returns the next configured weekday at the configured hour
func (s *sessionLifecycle) calculateFirstStart() time.Time {
	now := s.now().In(s.config.Location)

	daysUntil := (s.config.SessionWeekday - now.Weekday() + 7) % 7
	if daysUntil == 0 && now.Hour() >= s.config.SessionHour {
		daysUntil = 7
	}

	day := now.AddDate(0, 0, int(daysUntil))
	return time.Date(day.Year(), day.Month(), day.Day(), s.config.SessionHour, 0, 0, 0, s.config.Location)
}

// notify hands an event to the gateway; failures are logged and dropped
func notify(ctx context.Context, notifier interfaces.NotificationGateway, event events.Event) {
	if notifier == nil {
		return
	}
	if err := notifier.Notify(ctx, event); err != nil {
		log.WithField("event", event.Type()).WithError(err).Warn("Failed to deliver notification")
	}
}
