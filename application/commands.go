package application

import (
	"context"
	"fmt"

	"courtside/domain/entities"
	"courtside/domain/interfaces"

	log "github.com/sirupsen/logrus"
)

// Commands is the authenticated entry point for players and admins. Every command
// verifies the credential first; admin commands also require a managing role.
type Commands struct {
	auth     interfaces.AuthProvider
	services *Services
}

// NewCommands creates the command handler
func NewCommands(auth interfaces.AuthProvider, services *Services) *Commands {
	return &Commands{auth: auth, services: services}
}

// authenticate verifies the credential and loads the active caller
func (c *Commands) authenticate(ctx context.Context, credential entities.Credential) (*entities.User, error) {
	userID, err := c.auth.Verify(ctx, credential)
	if err != nil {
		return nil, err
	}

	user, err := c.services.Store.UserRepository().GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, entities.ErrPermissionDenied
	}
	if !user.Active {
		return nil, entities.ErrUserInactive
	}
	return user, nil
}

func (c *Commands) authorizeManager(ctx context.Context, credential entities.Credential, action string) (*entities.User, error) {
	user, err := c.authenticate(ctx, credential)
	if err != nil {
		return nil, err
	}
	if !user.Role.CanManage() {
		log.WithFields(log.Fields{
			"userID": user.ID,
			"role":   user.Role,
			"action": action,
		}).Warn("Rejected admin command")
		return nil, entities.ErrPermissionDenied
	}
	return user, nil
}

// currentSessionID resolves the working session
func (c *Commands) currentSessionID(ctx context.Context) (string, error) {
	session, err := c.services.Lifecycle.Current(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get current session: %w", err)
	}
	return session.ID, nil
}

// Register adds the caller to the current session
func (c *Commands) Register(ctx context.Context, credential entities.Credential) (*interfaces.RegistrationResult, error) {
	user, err := c.authenticate(ctx, credential)
	if err != nil {
		return nil, err
	}
	sessionID, err := c.currentSessionID(ctx)
	if err != nil {
		return nil, err
	}
	return c.services.Coordinator.RegisterSelf(ctx, sessionID, user.ID)
}

// RegisterGuest adds a guest hosted and paid for by the caller
func (c *Commands) RegisterGuest(ctx context.Context, credential entities.Credential, guestName string) (*interfaces.RegistrationResult, error) {
	user, err := c.authenticate(ctx, credential)
	if err != nil {
		return nil, err
	}
	sessionID, err := c.currentSessionID(ctx)
	if err != nil {
		return nil, err
	}
	return c.services.Coordinator.RegisterGuest(ctx, sessionID, user.ID, guestName)
}

// Cancel removes the caller and their guests from the current session
func (c *Commands) Cancel(ctx context.Context, credential entities.Credential) (*interfaces.CancellationResult, error) {
	user, err := c.authenticate(ctx, credential)
	if err != nil {
		return nil, err
	}
	sessionID, err := c.currentSessionID(ctx)
	if err != nil {
		return nil, err
	}
	return c.services.Coordinator.CancelSelf(ctx, sessionID, user.ID)
}

// CancelGuest removes one of the caller's guests
func (c *Commands) CancelGuest(ctx context.Context, credential entities.Credential, guestName string) (*interfaces.CancellationResult, error) {
	user, err := c.authenticate(ctx, credential)
	if err != nil {
		return nil, err
	}
	sessionID, err := c.currentSessionID(ctx)
	if err != nil {
		return nil, err
	}
	return c.services.Coordinator.CancelGuest(ctx, sessionID, user.ID, guestName)
}

// Gift moves funds from the caller to a player who is running low
func (c *Commands) Gift(ctx context.Context, credential entities.Credential, toUserID string, amount int64) (*interfaces.TransferResult, error) {
	user, err := c.authenticate(ctx, credential)
	if err != nil {
		return nil, err
	}
	req := entities.GiftRequest{FromUserID: user.ID, ToUserID: toUserID, Amount: amount}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return c.services.Coordinator.GiftTransfer(ctx, req)
}

// Wallet returns the caller's balance and most recent transactions
func (c *Commands) Wallet(ctx context.Context, credential entities.Credential, limit int) (*entities.User, []*entities.Transaction, error) {
	user, err := c.authenticate(ctx, credential)
	if err != nil {
		return nil, nil, err
	}
	history, err := c.services.Ledger.History(ctx, user.ID, limit)
	if err != nil {
		return nil, nil, err
	}
	return user, history, nil
}

// Roster returns the current session and its roster
func (c *Commands) Roster(ctx context.Context, credential entities.Credential) (*entities.Session, *entities.Roster, error) {
	if _, err := c.authenticate(ctx, credential); err != nil {
		return nil, nil, err
	}
	session, err := c.services.Lifecycle.Current(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get current session: %w", err)
	}
	roster, err := c.services.Roster.Get(ctx, session.ID)
	if err != nil {
		return nil, nil, err
	}
	return session, roster, nil
}

// TopUp records money an admin received for a player
func (c *Commands) TopUp(ctx context.Context, credential entities.Credential, req entities.TopUpRequest) (*entities.Transaction, error) {
	admin, err := c.authorizeManager(ctx, credential, "top_up")
	if err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	tx, err := c.services.Coordinator.TopUp(ctx, req)
	if err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{
		"adminID": admin.ID,
		"userID":  req.UserID,
		"amount":  req.Amount,
	}).Info("Wallet topped up")
	return tx, nil
}

// AdjustBalance applies a signed correction with a mandatory note
func (c *Commands) AdjustBalance(ctx context.Context, credential entities.Credential, req entities.AdjustmentRequest) (*entities.Transaction, error) {
	admin, err := c.authorizeManager(ctx, credential, "adjust_balance")
	if err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	tx, err := c.services.Coordinator.AdjustBalance(ctx, req)
	if err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{
		"adminID": admin.ID,
		"userID":  req.UserID,
		"amount":  req.Amount,
		"note":    req.Note,
	}).Info("Balance adjusted")
	return tx, nil
}

// AddRegistrant puts a player or guest on the current session's roster directly
func (c *Commands) AddRegistrant(ctx context.Context, credential entities.Credential, ownerUserID, guestName string) (*interfaces.RegistrationResult, error) {
	if _, err := c.authorizeManager(ctx, credential, "add_registrant"); err != nil {
		return nil, err
	}
	sessionID, err := c.currentSessionID(ctx)
	if err != nil {
		return nil, err
	}
	req := entities.AddRegistrantRequest{SessionID: sessionID, OwnerUserID: ownerUserID, GuestName: guestName}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return c.services.Coordinator.AdminAddRegistrant(ctx, req)
}

// RemoveRegistrant takes one entry off the current session's roster
func (c *Commands) RemoveRegistrant(ctx context.Context, credential entities.Credential, registrantID string, refund bool) (*interfaces.CancellationResult, error) {
	if _, err := c.authorizeManager(ctx, credential, "remove_registrant"); err != nil {
		return nil, err
	}
	sessionID, err := c.currentSessionID(ctx)
	if err != nil {
		return nil, err
	}
	req := entities.RemoveRegistrantRequest{SessionID: sessionID, RegistrantID: registrantID, Refund: refund}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return c.services.Coordinator.AdminRemoveRegistrant(ctx, req)
}

// Configure edits the current session
func (c *Commands) Configure(ctx context.Context, credential entities.Credential, settings entities.SessionSettings) (*entities.Session, error) {
	if _, err := c.authorizeManager(ctx, credential, "configure"); err != nil {
		return nil, err
	}
	sessionID, err := c.currentSessionID(ctx)
	if err != nil {
		return nil, err
	}
	return c.services.Lifecycle.Configure(ctx, sessionID, settings)
}

// RecordEquipment adds consumed equipment units to the current session
func (c *Commands) RecordEquipment(ctx context.Context, credential entities.Credential, units int) (*entities.Session, error) {
	if _, err := c.authorizeManager(ctx, credential, "record_equipment"); err != nil {
		return nil, err
	}
	sessionID, err := c.currentSessionID(ctx)
	if err != nil {
		return nil, err
	}
	return c.services.Lifecycle.RecordEquipment(ctx, sessionID, units)
}

// Publish settles and opens the current session
func (c *Commands) Publish(ctx context.Context, credential entities.Credential) (*interfaces.SettlementReport, error) {
	admin, err := c.authorizeManager(ctx, credential, "publish")
	if err != nil {
		return nil, err
	}
	sessionID, err := c.currentSessionID(ctx)
	if err != nil {
		return nil, err
	}
	report, err := c.services.Lifecycle.Publish(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{
		"adminID":   admin.ID,
		"sessionID": sessionID,
		"charged":   len(report.Charged),
		"unpaid":    len(report.Unpaid),
	}).Info("Session published")
	return report, nil
}

// Close archives the current session and starts the next one
func (c *Commands) Close(ctx context.Context, credential entities.Credential) (*interfaces.CloseResult, error) {
	if _, err := c.authorizeManager(ctx, credential, "close"); err != nil {
		return nil, err
	}
	sessionID, err := c.currentSessionID(ctx)
	if err != nil {
		return nil, err
	}
	return c.services.Lifecycle.Close(ctx, sessionID)
}

// Reset replaces the current session with a fresh Draft
func (c *Commands) Reset(ctx context.Context, credential entities.Credential) (*entities.Session, error) {
	if _, err := c.authorizeManager(ctx, credential, "reset"); err != nil {
		return nil, err
	}
	return c.services.Lifecycle.Reset(ctx)
}

// SetMaintenance toggles maintenance mode
func (c *Commands) SetMaintenance(ctx context.Context, credential entities.Credential, enabled bool) error {
	if _, err := c.authorizeManager(ctx, credential, "maintenance"); err != nil {
		return err
	}
	return c.services.Lifecycle.SetMaintenance(ctx, enabled)
}

// Reconcile reports the drift between a user's cached balance and their transactions
func (c *Commands) Reconcile(ctx context.Context, credential entities.Credential, userID string) (*interfaces.BalanceReport, error) {
	if _, err := c.authorizeManager(ctx, credential, "reconcile"); err != nil {
		return nil, err
	}
	return c.services.Ledger.Reconcile(ctx, userID)
}

// Archives lists closed sessions, most recent first
func (c *Commands) Archives(ctx context.Context, credential entities.Credential, limit int) ([]*entities.SessionArchive, error) {
	if _, err := c.authorizeManager(ctx, credential, "archives"); err != nil {
		return nil, err
	}
	return c.services.Lifecycle.Archives(ctx, limit)
}
