package application

import (
	"courtside/config"
	"courtside/domain/entities"
	"courtside/domain/interfaces"
	"courtside/domain/services"
)

// Services is the wired core: ledger, roster, lifecycle and coordinator over one store
type Services struct {
	Store       interfaces.Store
	Ledger      interfaces.WalletLedger
	Roster      interfaces.RosterManager
	Lifecycle   interfaces.SessionLifecycle
	Coordinator interfaces.RegistrationCoordinator
}

// NewServices builds the core services from cfg. notifier and metrics may be nil.
func NewServices(
	store interfaces.Store,
	notifier interfaces.NotificationGateway,
	metrics interfaces.MetricsRecorder,
	cfg *config.Config,
) (*Services, error) {
	weekday, err := cfg.Weekday()
	if err != nil {
		return nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	if metrics == nil {
		metrics = services.NoopMetrics{}
	}

	ledger := services.NewWalletLedger(store.UserRepository(), store.WalletRepository(), metrics, services.LedgerConfig{
		MinimumBalance:      cfg.MinimumBalance,
		MaxRetries:          cfg.LedgerMaxRetries,
		CompensationTimeout: cfg.CompensationTimeout,
	})

	roster := services.NewRosterManager(store.SessionRepository(), store.RosterRepository(), metrics, services.RosterConfig{
		MaxAttempts: cfg.RosterMaxAttempts,
	})

	lifecycle := services.NewSessionLifecycle(
		store.SessionRepository(),
		store.ArchiveRepository(),
		store.SettingsRepository(),
		roster,
		ledger,
		notifier,
		metrics,
		services.LifecycleConfig{
			DefaultCapacity:   cfg.DefaultCapacity,
			DefaultFee:        cfg.DefaultFee,
			DefaultLockWindow: cfg.DefaultLockWindow,
			SessionInterval:   cfg.SessionInterval,
			SessionWeekday:    weekday,
			SessionHour:       cfg.SessionHour,
			Location:          loc,
			Rates: entities.CostRates{
				PlayersPerCourt: cfg.PlayersPerCourt,
				CourtRate:       cfg.CourtRate,
				UnitRate:        cfg.UnitRate,
			},
			LowBalanceThreshold: cfg.LowBalanceThreshold,
			CompensationTimeout: cfg.CompensationTimeout,
		},
	)

	coordinator := services.NewRegistrationCoordinator(
		store.UserRepository(),
		store.SessionRepository(),
		store.SettingsRepository(),
		ledger,
		roster,
		notifier,
		metrics,
		services.CoordinatorConfig{
			MinimumBalance:      cfg.MinimumBalance,
			LowBalanceThreshold: cfg.LowBalanceThreshold,
			OperationTimeout:    cfg.OperationTimeout,
			CompensationTimeout: cfg.CompensationTimeout,
		},
	)

	return &Services{
		Store:       store,
		Ledger:      ledger,
		Roster:      roster,
		Lifecycle:   lifecycle,
		Coordinator: coordinator,
	}, nil
}
