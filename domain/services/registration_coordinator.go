package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"courtside/domain/entities"
	"courtside/domain/events"
	"courtside/domain/interfaces"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// DefaultLowBalanceThreshold is the balance below which gifts are accepted and
// reminders are sent
const DefaultLowBalanceThreshold int64 = 200

// CoordinatorConfig tunes the registration coordinator
type CoordinatorConfig struct {
	MinimumBalance      int64
	LowBalanceThreshold int64
	OperationTimeout    time.Duration
	CompensationTimeout time.Duration
}

// registrationCoordinator implements interfaces.RegistrationCoordinator. Paid roster
// inserts run as debit, insert, and a compensating credit if the insert fails.
type registrationCoordinator struct {
	userRepo     interfaces.UserRepository
	sessionRepo  interfaces.SessionRepository
	settingsRepo interfaces.SettingsRepository
	ledger       interfaces.WalletLedger
	roster       interfaces.RosterManager
	notifier     interfaces.NotificationGateway
	metrics      interfaces.MetricsRecorder
	config       CoordinatorConfig
	settler      *settler
	now          func() time.Time
}

// NewRegistrationCoordinator creates a new registration coordinator
func NewRegistrationCoordinator(
	userRepo interfaces.UserRepository,
	sessionRepo interfaces.SessionRepository,
	settingsRepo interfaces.SettingsRepository,
	ledger interfaces.WalletLedger,
	roster interfaces.RosterManager,
	notifier interfaces.NotificationGateway,
	metrics interfaces.MetricsRecorder,
	config CoordinatorConfig,
) interfaces.RegistrationCoordinator {
	if metrics == nil {
		metrics = NoopMetrics{}
	}
	if config.CompensationTimeout <= 0 {
		config.CompensationTimeout = 10 * time.Second
	}
	return &registrationCoordinator{
		userRepo:     userRepo,
		sessionRepo:  sessionRepo,
		settingsRepo: settingsRepo,
		ledger:       ledger,
		roster:       roster,
		notifier:     notifier,
		metrics:      metrics,
		config:       config,
		settler:      newSettler(ledger, roster, notifier, metrics, config.LowBalanceThreshold, config.CompensationTimeout),
		now:          time.Now,
	}
}

// RegisterSelf charges the fee and adds the user to the roster
func (c *registrationCoordinator) RegisterSelf(ctx context.Context, sessionID, userID string) (*interfaces.RegistrationResult, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	user, err := c.activeUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	session, err := c.openSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	roster, err := c.roster.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if roster.SelfOf(userID) != nil {
		return nil, entities.ErrAlreadyRegistered
	}

	reg := &entities.Registrant{
		ID:          uuid.NewString(),
		OwnerUserID: user.ID,
		DisplayName: user.DisplayName,
		Kind:        entities.RegistrantKindSelf,
	}
	return c.registerPaid(ctx, session, reg, entities.ReasonRegistration, "register_self")
}

// RegisterGuest charges the host and adds a guest namespaced under the host's name
func (c *registrationCoordinator) RegisterGuest(ctx context.Context, sessionID, hostUserID, guestName string) (*interfaces.RegistrationResult, error) {
	guestName = strings.TrimSpace(guestName)
	if guestName == "" {
		return nil, errors.New("guest name is required")
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	host, err := c.activeUser(ctx, hostUserID)
	if err != nil {
		return nil, err
	}
	session, err := c.openSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	displayName := entities.GuestDisplayName(host.DisplayName, guestName)
	roster, err := c.roster.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if roster.FindByName(displayName) != nil {
		return nil, fmt.Errorf("guest %q: %w", displayName, entities.ErrAlreadyRegistered)
	}

	reg := &entities.Registrant{
		ID:          uuid.NewString(),
		OwnerUserID: host.ID,
		DisplayName: displayName,
		Kind:        entities.RegistrantKindGuest,
	}
	return c.registerPaid(ctx, session, reg, entities.ReasonGuestRegistration, "register_guest")
}

// CancelSelf removes the user and every guest they host in one roster write, then
// refunds each removed paid entry separately
func (c *registrationCoordinator) CancelSelf(ctx context.Context, sessionID, userID string) (*interfaces.CancellationResult, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	session, err := c.openSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	roster, err := c.roster.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	self := roster.SelfOf(userID)
	if self == nil {
		return nil, entities.ErrNotRegistered
	}

	removal, err := c.roster.Cancel(ctx, sessionID, self.ID)
	if err != nil {
		return nil, c.mapRemovalError(ctx, "cancel_self", session, userID, err)
	}
	return c.settleRemoval(ctx, session, removal, true, "cancel_self")
}

// CancelGuest removes one guest and refunds the host
func (c *registrationCoordinator) CancelGuest(ctx context.Context, sessionID, hostUserID, guestName string) (*interfaces.CancellationResult, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	host, err := c.activeUser(ctx, hostUserID)
	if err != nil {
		return nil, err
	}
	session, err := c.openSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	roster, err := c.roster.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	guest := roster.FindByName(entities.GuestDisplayName(host.DisplayName, guestName))
	if guest == nil || !guest.IsGuest() || guest.OwnerUserID != host.ID {
		return nil, entities.ErrNotRegistered
	}

	removal, err := c.roster.Cancel(ctx, sessionID, guest.ID)
	if err != nil {
		return nil, c.mapRemovalError(ctx, "cancel_guest", session, host.ID, err)
	}
	return c.settleRemoval(ctx, session, removal, true, "cancel_guest")
}

// GiftTransfer moves funds to a player who is running low. The sender must stay at or
// above the minimum balance.
func (c *registrationCoordinator) GiftTransfer(ctx context.Context, req entities.GiftRequest) (*interfaces.TransferResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	sender, err := c.activeUser(ctx, req.FromUserID)
	if err != nil {
		return nil, err
	}
	recipient, err := c.activeUser(ctx, req.ToUserID)
	if err != nil {
		return nil, err
	}

	if !recipient.IsBelow(c.config.LowBalanceThreshold) {
		return nil, fmt.Errorf("recipient balance %d is not below %d: %w",
			recipient.Balance, c.config.LowBalanceThreshold, entities.ErrTransferNotAllowed)
	}
	if !sender.CanAfford(req.Amount, c.config.MinimumBalance) {
		return nil, entities.ErrInsufficientFunds
	}

	result, err := c.ledger.Transfer(ctx, sender.ID, recipient.ID, req.Amount)
	if err != nil {
		return nil, err
	}

	c.checkLowBalance(ctx, result.Debit)
	return result, nil
}

// AdminAddRegistrant puts a player or a guest on the roster. Draft entries are left
// unpaid for publish to settle; later entries are charged immediately as an admin
// correction, which may take the owner's balance negative.
func (c *registrationCoordinator) AdminAddRegistrant(ctx context.Context, req entities.AddRegistrantRequest) (*interfaces.RegistrationResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	owner, err := c.activeUser(ctx, req.OwnerUserID)
	if err != nil {
		return nil, err
	}
	session, err := c.session(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}
	if session.IsClosed() {
		return nil, fmt.Errorf("%w: %w", entities.ErrSessionNotOpen, entities.ErrSessionClosed)
	}

	reg := &entities.Registrant{
		ID:          uuid.NewString(),
		OwnerUserID: owner.ID,
		DisplayName: owner.DisplayName,
		Kind:        entities.RegistrantKindSelf,
	}
	reason := entities.ReasonRegistration
	if name := strings.TrimSpace(req.GuestName); name != "" {
		reg.DisplayName = entities.GuestDisplayName(owner.DisplayName, name)
		reg.Kind = entities.RegistrantKindGuest
		reason = entities.ReasonGuestRegistration
	}

	if session.IsDraft() {
		res, err := c.roster.Register(ctx, session.ID, reg)
		if err != nil {
			return nil, c.mapRegisterError(ctx, "admin_add", session.ID, owner.ID, 0, err)
		}
		return &interfaces.RegistrationResult{
			Registrant:     res.Registrant,
			Position:       res.Position,
			Classification: res.Classification,
		}, nil
	}

	return c.registerPaid(ctx, session, reg, reason, "admin_add", interfaces.WithAdminCorrection())
}

// AdminRemoveRegistrant takes exactly one entry off the roster, refunding it if asked.
// The lock window does not apply.
func (c *registrationCoordinator) AdminRemoveRegistrant(ctx context.Context, req entities.RemoveRegistrantRequest) (*interfaces.CancellationResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	session, err := c.session(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}

	removal, err := c.roster.CancelMany(ctx, session.ID, []string{req.RegistrantID})
	if err != nil {
		if errors.Is(err, entities.ErrRegistrantNotFound) {
			return nil, err
		}
		return nil, c.mapRemovalError(ctx, "admin_remove", session, "", err)
	}
	return c.settleRemoval(ctx, session, removal, req.Refund, "admin_remove")
}

// TopUp credits money received outside the system
func (c *registrationCoordinator) TopUp(ctx context.Context, req entities.TopUpRequest) (*entities.Transaction, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	var opts []interfaces.LedgerOption
	if req.Note != "" {
		opts = append(opts, interfaces.WithMetadata("note", req.Note))
	}

	tx, err := c.ledger.Credit(ctx, req.UserID, req.Amount, entities.ReasonTopUp, opts...)
	if err != nil {
		return c.landedOrError(ctx, err)
	}
	return tx, nil
}

// AdjustBalance applies a signed admin correction without the minimum balance floor
func (c *registrationCoordinator) AdjustBalance(ctx context.Context, req entities.AdjustmentRequest) (*entities.Transaction, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	note := interfaces.WithMetadata("note", req.Note)

	var (
		tx  *entities.Transaction
		err error
	)
	if req.Amount > 0 {
		tx, err = c.ledger.Credit(ctx, req.UserID, req.Amount, entities.ReasonAdminAdjustment, note)
	} else {
		tx, err = c.ledger.Debit(ctx, req.UserID, -req.Amount, entities.ReasonAdminAdjustment, note, interfaces.WithAdminCorrection())
	}
	if err != nil {
		return c.landedOrError(ctx, err)
	}

	log.WithFields(log.Fields{
		"user_id": req.UserID,
		"amount":  req.Amount,
		"balance": tx.BalanceAfter,
	}).Info("Applied admin balance adjustment")

	c.checkLowBalance(ctx, tx)
	return tx, nil
}

// registerPaid charges the owner, inserts the registrant and compensates the charge
// if the insert fails
func (c *registrationCoordinator) registerPaid(ctx context.Context, session *entities.Session, reg *entities.Registrant, reason entities.TransactionReason, operation string, extra ...interfaces.LedgerOption) (*interfaces.RegistrationResult, error) {
	opts := append([]interfaces.LedgerOption{
		interfaces.WithSession(session.ID),
		interfaces.WithMetadata("registrant_id", reg.ID),
	}, extra...)

	tx, err := c.ledger.Debit(ctx, reg.OwnerUserID, session.FeeAmount, reason, opts...)
	if err != nil {
		if !errors.Is(err, entities.ErrOutcomeUnknown) {
			return nil, err
		}
		landed, verr := resolveOutcome(ctx, c.ledger, err, c.config.CompensationTimeout)
		if verr != nil {
			return nil, c.unreconciled(ctx, operation, session.ID, reg.OwnerUserID, session.FeeAmount, unknownTransactionID(err), verr)
		}
		if landed == nil {
			return nil, fmt.Errorf("registration charge was not applied: %w", err)
		}
		tx = landed
	}

	reg.Paid = true
	res, err := c.roster.Register(ctx, session.ID, reg)
	if err != nil && !isRosterRejection(err) {
		// The insert may have committed before the error surfaced
		if found := c.findCommitted(ctx, session.ID, reg.ID); found != nil {
			res, err = registrationOf(found, session.Capacity), nil
		}
	}
	if err != nil {
		if tx != nil {
			if u := compensate(ctx, c.ledger, c.metrics, c.config.CompensationTimeout, compensation{
				Operation: operation,
				SessionID: session.ID,
				Debit:     tx,
				Reason:    entities.ReasonRegistrationRefund,
				Cause:     err,
			}); u != nil {
				return nil, u
			}
		}
		return nil, c.mapRegisterError(ctx, operation, session.ID, reg.OwnerUserID, session.FeeAmount, err)
	}

	log.WithFields(log.Fields{
		"session_id":     session.ID,
		"registrant":     res.Registrant.DisplayName,
		"position":       res.Position,
		"classification": res.Classification,
	}).Info("Registered player")

	c.checkLowBalance(ctx, tx)

	return &interfaces.RegistrationResult{
		Registrant:     res.Registrant,
		Position:       res.Position,
		Classification: res.Classification,
		Charge:         tx,
	}, nil
}

// settleRemoval refunds and announces a committed removal. Refunds run on a detached
// context because the roster no longer holds the entries.
func (c *registrationCoordinator) settleRemoval(ctx context.Context, session *entities.Session, removal *interfaces.RosterRemoval, refund bool, operation string) (*interfaces.CancellationResult, error) {
	result := &interfaces.CancellationResult{Removed: removal.Removed}

	var failures []error
	for _, reg := range removal.Removed {
		if refund && reg.Paid && session.FeeAmount > 0 {
			tx, err := c.refund(ctx, session, reg)
			if err != nil {
				failures = append(failures, c.unreconciled(ctx, operation, session.ID, reg.OwnerUserID, session.FeeAmount, "", err))
			} else {
				result.Refunds = append(result.Refunds, tx)
				result.TotalRefunded += session.FeeAmount
			}
		}

		notify(ctx, c.notifier, events.PlayerCancelledEvent{
			SessionID: session.ID,
			Name:      reg.DisplayName,
			SlotFreed: reg.IsActive(removal.Capacity),
		})
	}

	result.Settlement = c.settler.settlePromoted(ctx, session, removal.Promoted, operation)

	log.WithFields(log.Fields{
		"session_id": session.ID,
		"operation":  operation,
		"removed":    len(result.Removed),
		"refunded":   result.TotalRefunded,
	}).Info("Cancelled registration")

	if len(failures) > 0 {
		return result, errors.Join(failures...)
	}
	return result, nil
}

func (c *registrationCoordinator) refund(ctx context.Context, session *entities.Session, reg *entities.Registrant) (*entities.Transaction, error) {
	refundCtx, cancel := detach(ctx, c.config.CompensationTimeout)
	defer cancel()

	tx, err := c.ledger.Credit(refundCtx, reg.OwnerUserID, session.FeeAmount, entities.ReasonCancellationRefund,
		interfaces.WithSession(session.ID),
		interfaces.WithMetadata("registrant_id", reg.ID))
	if err == nil {
		return tx, nil
	}

	landed, verr := resolveOutcome(ctx, c.ledger, err, c.config.CompensationTimeout)
	if verr == nil && landed != nil {
		return landed, nil
	}
	return nil, err
}

// openSession applies the player gates: maintenance off, published, not locked
func (c *registrationCoordinator) openSession(ctx context.Context, sessionID string) (*entities.Session, error) {
	maintenance, err := c.settingsRepo.GetMaintenance(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get maintenance flag: %w", err)
	}
	if maintenance {
		return nil, fmt.Errorf("maintenance in progress: %w", entities.ErrSessionNotOpen)
	}

	session, err := c.session(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	now := c.now()
	if !session.AcceptsPlayers(now) {
		state := string(session.Status)
		if session.IsLocked(now) {
			state = "locked"
		}
		return nil, fmt.Errorf("session %s is %s: %w", sessionID, state, entities.ErrSessionNotOpen)
	}
	return session, nil
}

func (c *registrationCoordinator) session(ctx context.Context, sessionID string) (*entities.Session, error) {
	session, err := c.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if session == nil {
		return nil, entities.ErrSessionNotFound
	}
	return session, nil
}

func (c *registrationCoordinator) activeUser(ctx context.Context, userID string) (*entities.User, error) {
	user, err := c.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, entities.ErrUserNotFound
	}
	if !user.Active {
		return nil, entities.ErrUserInactive
	}
	return user, nil
}

// findCommitted re-reads the roster for an entry whose insert reported an error
func (c *registrationCoordinator) findCommitted(ctx context.Context, sessionID, registrantID string) *entities.Registrant {
	readCtx, cancel := detach(ctx, c.config.CompensationTimeout)
	defer cancel()

	roster, err := c.roster.Get(readCtx, sessionID)
	if err != nil {
		return nil
	}
	return roster.Find(registrantID)
}

// landedOrError resolves an unknown-outcome ledger error for single-write operations
func (c *registrationCoordinator) landedOrError(ctx context.Context, err error) (*entities.Transaction, error) {
	if !errors.Is(err, entities.ErrOutcomeUnknown) {
		return nil, err
	}
	landed, verr := resolveOutcome(ctx, c.ledger, err, c.config.CompensationTimeout)
	if verr != nil {
		return nil, verr
	}
	if landed == nil {
		return nil, fmt.Errorf("transaction was not applied: %w", err)
	}
	return landed, nil
}

func (c *registrationCoordinator) checkLowBalance(ctx context.Context, tx *entities.Transaction) {
	if tx == nil || !tx.IsDebit() || tx.BalanceAfter >= c.config.LowBalanceThreshold {
		return
	}
	notify(ctx, c.notifier, events.LowBalanceEvent{UserID: tx.UserID, Balance: tx.BalanceAfter})
}

func (c *registrationCoordinator) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.config.OperationTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.config.OperationTimeout)
}

// unreconciled builds, logs and counts a discrepancy that needs manual repair
func (c *registrationCoordinator) unreconciled(ctx context.Context, operation, sessionID, userID string, amount int64, txID string, cause error) *entities.UnreconciledError {
	c.metrics.RecordUnreconciled(ctx, operation)
	u := &entities.UnreconciledError{
		Operation:     operation,
		UserID:        userID,
		Amount:        amount,
		TransactionID: txID,
		SessionID:     sessionID,
		Cause:         cause,
	}
	log.WithFields(log.Fields{
		"operation":  operation,
		"user_id":    userID,
		"amount":     amount,
		"tx_id":      txID,
		"session_id": sessionID,
	}).WithError(cause).Error("Ledger and roster disagree, manual reconciliation required")
	return u
}

// isRosterRejection reports roster errors that guarantee nothing was written
func isRosterRejection(err error) bool {
	return errors.Is(err, entities.ErrDuplicateName) ||
		errors.Is(err, entities.ErrAlreadyRegistered) ||
		errors.Is(err, entities.ErrSessionNotOpen) ||
		errors.Is(err, entities.ErrSessionClosed) ||
		errors.Is(err, entities.ErrSessionNotFound) ||
		errors.Is(err, entities.ErrRetryBudgetExhausted)
}

// mapRegisterError translates a failed roster insert. An exhausted retry budget
// leaves the caller unable to tell what happened, so it is reported as unreconciled.
func (c *registrationCoordinator) mapRegisterError(ctx context.Context, operation, sessionID, userID string, amount int64, err error) error {
	switch {
	case errors.Is(err, entities.ErrAlreadyRegistered), errors.Is(err, entities.ErrSessionNotOpen):
		return err
	case errors.Is(err, entities.ErrDuplicateName):
		return fmt.Errorf("%w: %w", entities.ErrAlreadyRegistered, err)
	case errors.Is(err, entities.ErrSessionClosed):
		return fmt.Errorf("%w: %w", entities.ErrSessionNotOpen, err)
	case errors.Is(err, entities.ErrRetryBudgetExhausted):
		return fmt.Errorf("%w: %w", entities.ErrRosterWriteFailed, c.unreconciled(ctx, operation, sessionID, userID, amount, "", err))
	default:
		return fmt.Errorf("%w: %w", entities.ErrRosterWriteFailed, err)
	}
}

func (c *registrationCoordinator) mapRemovalError(ctx context.Context, operation string, session *entities.Session, userID string, err error) error {
	switch {
	case errors.Is(err, entities.ErrRegistrantNotFound):
		return fmt.Errorf("%w: %w", entities.ErrNotRegistered, err)
	case errors.Is(err, entities.ErrSessionClosed):
		return fmt.Errorf("%w: %w", entities.ErrSessionNotOpen, err)
	case errors.Is(err, entities.ErrRetryBudgetExhausted):
		return c.unreconciled(ctx, operation, session.ID, userID, session.FeeAmount, "", err)
	default:
		return fmt.Errorf("failed to cancel registration: %w", err)
	}
}

func unknownTransactionID(err error) string {
	var unknown *entities.OutcomeUnknownError
	if errors.As(err, &unknown) {
		return unknown.TransactionID
	}
	return ""
}
