package cmd

import (
	"context"
	"fmt"
	"time"

	"courtside/application"
	"courtside/config"

	log "github.com/sirupsen/logrus"
)

// Run starts the coordinator with its background jobs and blocks until ctx ends
func Run(ctx context.Context) error {
	log.Info("Starting courtside...")

	cfg := config.Get()
	app, err := Bootstrap(ctx, cfg, Options{Notifications: true, Metrics: true})
	if err != nil {
		return err
	}

	current, err := app.Services.Lifecycle.Current(ctx)
	if err != nil {
		app.Close(context.Background())
		return fmt.Errorf("failed to load current session: %w", err)
	}
	log.WithFields(log.Fields{
		"sessionID": current.ID,
		"status":    current.Status,
		"start":     current.ScheduledStart.Format(time.RFC3339),
	}).Info("Current session loaded")

	loc, err := cfg.Location()
	if err != nil {
		app.Close(context.Background())
		return err
	}
	scheduler := application.NewScheduler(app.Services, app.Notifier, application.SchedulerConfig{
		LowBalanceSchedule:  cfg.LowBalanceSchedule,
		AutoCloseSchedule:   cfg.AutoCloseSchedule,
		AutoCloseDelay:      cfg.AutoCloseDelay,
		LowBalanceThreshold: cfg.LowBalanceThreshold,
		Location:            loc,
		JobTimeout:          cfg.OperationTimeout * 6,
	})
	if err := scheduler.Start(ctx); err != nil {
		app.Close(context.Background())
		return err
	}

	log.WithField("environment", cfg.Environment).Info("Courtside is running")
	<-ctx.Done()

	log.Info("Shutting down...")
	scheduler.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.Close(shutdownCtx); err != nil {
		log.WithError(err).Warn("Shutdown finished with errors")
		return nil
	}
	log.Info("Shutdown completed")
	return nil
}
