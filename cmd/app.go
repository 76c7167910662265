package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"courtside/application"
	"courtside/config"
	"courtside/database"
	"courtside/domain/interfaces"
	"courtside/infrastructure"
	"courtside/infrastructure/observability"
	"courtside/repository"
	"courtside/repository/memory"
	"courtside/repository/search"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"
)

// Options selects which outbound integrations Bootstrap starts
type Options struct {
	Notifications bool
	Metrics       bool
}

// App holds everything Bootstrap wired, in the order it must be torn down
type App struct {
	Config   *config.Config
	Services *application.Services
	Notifier interfaces.NotificationGateway

	db      *database.DB
	metrics *observability.MetricsProvider
	nats    *infrastructure.NATSClient
	discord *discordgo.Session
	async   *infrastructure.AsyncNotifier
}

// archiveStore swaps the archive repository of a store for the search mirror
type archiveStore struct {
	interfaces.Store
	archives interfaces.ArchiveRepository
}

func (s archiveStore) ArchiveRepository() interfaces.ArchiveRepository {
	return s.archives
}

// Bootstrap opens the store and builds the services
func Bootstrap(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	app := &App{Config: cfg}

	store, err := app.openStore(ctx)
	if err != nil {
		return nil, err
	}

	if cfg.ElasticsearchURL != "" {
		mirror, err := search.NewArchiveRepository(ctx, store.ArchiveRepository(), search.Config{
			URL:      cfg.ElasticsearchURL,
			Username: cfg.ElasticsearchUsername,
			Password: cfg.ElasticsearchPassword,
			Index:    cfg.ElasticsearchIndex,
		})
		if err != nil {
			app.Close(ctx)
			return nil, fmt.Errorf("failed to set up archive search: %w", err)
		}
		store = archiveStore{Store: store, archives: mirror}
		log.WithField("index", cfg.ElasticsearchIndex).Info("Archives are mirrored to Elasticsearch")
	}

	var recorder interfaces.MetricsRecorder
	if opts.Metrics {
		app.metrics = observability.NewMetricsProvider(cfg)
		if err := app.metrics.Initialize(ctx); err != nil {
			app.Close(ctx)
			return nil, fmt.Errorf("failed to initialize metrics: %w", err)
		}
		recorder = app.metrics
	}

	app.Notifier = infrastructure.NoopNotifier{}
	if opts.Notifications {
		notifier, err := app.openNotifiers(ctx)
		if err != nil {
			app.Close(ctx)
			return nil, err
		}
		app.Notifier = notifier
	}

	services, err := application.NewServices(store, app.Notifier, recorder, cfg)
	if err != nil {
		app.Close(ctx)
		return nil, fmt.Errorf("failed to build services: %w", err)
	}
	app.Services = services
	return app, nil
}

func (a *App) openStore(ctx context.Context) (interfaces.Store, error) {
	switch a.Config.StoreDriver {
	case "memory":
		log.Warn("Using the in-memory store; nothing survives a restart")
		return memory.NewStore(), nil
	case "postgres":
		log.Info("Connecting to database...")
		db, err := database.NewConnection(ctx, a.Config.GetDatabaseURL())
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		a.db = db
		log.Info("Database connection established")
		return repository.NewStore(db), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", a.Config.StoreDriver)
	}
}

// openNotifiers connects every configured gateway behind one async fan-out
func (a *App) openNotifiers(ctx context.Context) (interfaces.NotificationGateway, error) {
	var gateways []infrastructure.NamedGateway

	if a.Config.NATSEnabled {
		a.nats = infrastructure.NewNATSClient(a.Config.NATSServers)
		if err := a.nats.Connect(ctx); err != nil {
			return nil, err
		}
		mapper := infrastructure.NewEventSubjectMapper()
		if err := infrastructure.EnsureNotificationStream(a.nats, mapper); err != nil {
			return nil, err
		}
		gateways = append(gateways, infrastructure.NamedGateway{
			Name:    "nats",
			Gateway: infrastructure.NewNATSNotifier(a.nats, mapper),
		})
	}

	if a.Config.DiscordToken != "" {
		session, err := infrastructure.NewDiscordSession(a.Config.DiscordToken)
		if err != nil {
			return nil, err
		}
		a.discord = session
		gateways = append(gateways, infrastructure.NamedGateway{
			Name:    "discord",
			Gateway: infrastructure.NewDiscordNotifier(session, a.Config.DiscordChannelID),
		})
	}

	if len(gateways) == 0 {
		log.Info("No notification gateways configured")
		return infrastructure.NoopNotifier{}, nil
	}

	var recorder infrastructure.NotificationRecorder
	if a.metrics != nil {
		recorder = a.metrics
	}
	a.async = infrastructure.NewAsyncNotifier(
		infrastructure.NewFanoutNotifier(recorder, gateways...),
		256,
		a.Config.OperationTimeout,
	)
	log.WithField("gateways", len(gateways)).Info("Notification gateways ready")
	return a.async, nil
}

// Close releases everything Bootstrap opened. Queued notifications are drained first.
func (a *App) Close(ctx context.Context) error {
	var errs []error

	if a.async != nil {
		drainCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := a.async.Close(drainCtx); err != nil {
			errs = append(errs, fmt.Errorf("failed to drain notifications: %w", err))
		}
		cancel()
	}
	if a.discord != nil {
		if err := a.discord.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close Discord session: %w", err))
		}
	}
	if a.nats != nil {
		if err := a.nats.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.metrics != nil {
		if err := a.metrics.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if a.db != nil {
		a.db.Close()
	}
	return errors.Join(errs...)
}
