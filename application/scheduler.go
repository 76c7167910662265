package application

import (
	"context"
	"fmt"
	"time"

	"courtside/domain/events"
	"courtside/domain/interfaces"
	"courtside/infrastructure"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
)

// SchedulerConfig holds the cron expressions of the background jobs. An empty
// expression disables the job.
type SchedulerConfig struct {
	LowBalanceSchedule  string
	AutoCloseSchedule   string
	AutoCloseDelay      time.Duration
	LowBalanceThreshold int64
	Location            *time.Location
	JobTimeout          time.Duration
}

// Scheduler runs the low-balance reminder sweep and the optional auto-close
type Scheduler struct {
	cron      *cron.Cron
	users     interfaces.UserRepository
	lifecycle interfaces.SessionLifecycle
	notifier  interfaces.NotificationGateway
	config    SchedulerConfig
	now       func() time.Time
}

// NewScheduler creates a scheduler in the configured location
func NewScheduler(services *Services, notifier interfaces.NotificationGateway, config SchedulerConfig) *Scheduler {
	if config.Location == nil {
		config.Location = time.UTC
	}
	if config.JobTimeout <= 0 {
		config.JobTimeout = time.Minute
	}
	if notifier == nil {
		notifier = infrastructure.NoopNotifier{}
	}
	return &Scheduler{
		cron:      cron.New(cron.WithLocation(config.Location)),
		users:     services.Store.UserRepository(),
		lifecycle: services.Lifecycle,
		notifier:  notifier,
		config:    config,
		now:       time.Now,
	}
}

// Start registers the enabled jobs and starts the cron loop
func (s *Scheduler) Start(ctx context.Context) error {
	if s.config.LowBalanceSchedule != "" {
		_, err := s.cron.AddFunc(s.config.LowBalanceSchedule, func() {
			s.runJob(ctx, "low_balance", func(jobCtx context.Context) error {
				sent, err := s.SendLowBalanceReminders(jobCtx)
				if err == nil {
					log.WithField("sent", sent).Info("[CRON] Low-balance reminders sent")
				}
				return err
			})
		})
		if err != nil {
			return fmt.Errorf("invalid LOW_BALANCE_SCHEDULE %q: %w", s.config.LowBalanceSchedule, err)
		}
	}

	if s.config.AutoCloseSchedule != "" {
		_, err := s.cron.AddFunc(s.config.AutoCloseSchedule, func() {
			s.runJob(ctx, "auto_close", func(jobCtx context.Context) error {
				_, err := s.AutoClose(jobCtx)
				return err
			})
		})
		if err != nil {
			return fmt.Errorf("invalid AUTO_CLOSE_SCHEDULE %q: %w", s.config.AutoCloseSchedule, err)
		}
	}

	s.cron.Start()
	log.WithFields(log.Fields{
		"jobs":     len(s.cron.Entries()),
		"location": s.config.Location.String(),
	}).Info("Scheduler started")
	return nil
}

// Stop waits for running jobs to finish
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Info("Scheduler stopped")
}

func (s *Scheduler) runJob(ctx context.Context, name string, job func(context.Context) error) {
	jobCtx, cancel := context.WithTimeout(ctx, s.config.JobTimeout)
	defer cancel()

	log.WithField("job", name).Debug("[CRON] Running job")
	if err := job(jobCtx); err != nil {
		log.WithField("job", name).WithError(err).Error("[CRON] Job failed")
	}
}

// SendLowBalanceReminders notifies every active user below the threshold. Reminders
// are only delivered once the whole sweep has been read.
func (s *Scheduler) SendLowBalanceReminders(ctx context.Context) (int, error) {
	users, err := s.users.GetBelowBalance(ctx, s.config.LowBalanceThreshold)
	if err != nil {
		return 0, fmt.Errorf("failed to get low-balance users: %w", err)
	}

	pending := infrastructure.NewPendingNotifier(s.notifier)
	for _, user := range users {
		if err := ctx.Err(); err != nil {
			pending.Discard()
			return 0, err
		}
		_ = pending.Notify(ctx, events.LowBalanceEvent{UserID: user.ID, Balance: user.Balance})
	}
	return pending.Flush(ctx), nil
}

// AutoClose closes the current session once AutoCloseDelay has passed since its
// scheduled start. It returns nil when there was nothing to close.
func (s *Scheduler) AutoClose(ctx context.Context) (*interfaces.CloseResult, error) {
	session, err := s.lifecycle.Current(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get current session: %w", err)
	}
	if !session.IsPublished() {
		return nil, nil
	}
	if s.now().Before(session.ScheduledStart.Add(s.config.AutoCloseDelay)) {
		return nil, nil
	}

	result, err := s.lifecycle.Close(ctx, session.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to close session %s: %w", session.ID, err)
	}
	log.WithFields(log.Fields{
		"sessionID":   session.ID,
		"archiveKey":  result.Archive.Key,
		"nextSession": result.NextSession.ID,
	}).Info("Session closed automatically")
	return result, nil
}
