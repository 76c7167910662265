package services

import (
	"context"
	"errors"
	"time"

	"courtside/domain/entities"
	"courtside/domain/events"
	"courtside/domain/interfaces"

	log "github.com/sirupsen/logrus"
)

// settler charges the session fee for registrants that became active without paying,
// at publish and whenever a later roster change promotes a waitlisted entry
type settler struct {
	ledger              interfaces.WalletLedger
	roster              interfaces.RosterManager
	notifier            interfaces.NotificationGateway
	metrics             interfaces.MetricsRecorder
	lowBalanceThreshold int64
	compensationTimeout time.Duration
}

func newSettler(
	ledger interfaces.WalletLedger,
	roster interfaces.RosterManager,
	notifier interfaces.NotificationGateway,
	metrics interfaces.MetricsRecorder,
	lowBalanceThreshold int64,
	compensationTimeout time.Duration,
) *settler {
	return &settler{
		ledger:              ledger,
		roster:              roster,
		notifier:            notifier,
		metrics:             metrics,
		lowBalanceThreshold: lowBalanceThreshold,
		compensationTimeout: compensationTimeout,
	}
}

// settle charges one registrant and marks them paid. A registrant who cannot pay is
// added to report.Unpaid and left as they were.
func (s *settler) settle(ctx context.Context, session *entities.Session, reg *entities.Registrant, report *interfaces.SettlementReport) {
	tx, err := s.ledger.Debit(ctx, reg.OwnerUserID, session.FeeAmount, entities.ReasonSessionSettlement,
		interfaces.WithSession(session.ID),
		interfaces.WithMetadata("registrant_id", reg.ID))
	if err != nil {
		landed, verr := resolveOutcome(ctx, s.ledger, err, s.compensationTimeout)
		if verr != nil || landed == nil {
			if verr != nil {
				err = verr
			}
			if !errors.Is(err, entities.ErrInsufficientFunds) {
				log.WithFields(log.Fields{
					"session_id":    session.ID,
					"registrant_id": reg.ID,
					"user_id":       reg.OwnerUserID,
				}).WithError(err).Warn("Settlement debit failed")
			}
			report.Unpaid = append(report.Unpaid, interfaces.SettlementFailure{Registrant: reg, Err: err})
			return
		}
		tx = landed
	}

	if err := s.roster.MarkPaid(ctx, session.ID, reg.ID); err != nil {
		if tx != nil {
			if unreconciled := compensate(ctx, s.ledger, s.metrics, s.compensationTimeout, compensation{
				Operation: "settlement",
				SessionID: session.ID,
				Debit:     tx,
				Reason:    entities.ReasonRollback,
				Cause:     err,
			}); unreconciled != nil {
				report.Unreconciled = append(report.Unreconciled, unreconciled)
			}
		}
		report.Unpaid = append(report.Unpaid, interfaces.SettlementFailure{Registrant: reg, Err: err})
		return
	}

	reg.Paid = true
	report.Charged = append(report.Charged, interfaces.SettlementCharge{Registrant: reg, Transaction: tx})
	report.TotalCharged += session.FeeAmount

	if tx != nil && tx.BalanceAfter < s.lowBalanceThreshold {
		notify(ctx, s.notifier, events.LowBalanceEvent{UserID: tx.UserID, Balance: tx.BalanceAfter})
	}
}

// settlePromoted charges the unpaid entries of a published session that a roster
// change moved into the active range. It returns nil when there was nothing to charge.
func (s *settler) settlePromoted(ctx context.Context, session *entities.Session, promoted []*entities.Registrant, operation string) *interfaces.SettlementReport {
	if !session.IsPublished() || session.FeeAmount <= 0 {
		return nil
	}

	var report *interfaces.SettlementReport
	for _, reg := range promoted {
		if reg.Paid {
			continue
		}
		if report == nil {
			report = &interfaces.SettlementReport{SessionID: session.ID}
		}
		s.settle(ctx, session, reg, report)
	}
	if report == nil {
		return nil
	}

	entry := log.WithFields(log.Fields{
		"session_id":    session.ID,
		"operation":     operation,
		"charged":       len(report.Charged),
		"unpaid":        len(report.Unpaid),
		"total_charged": report.TotalCharged,
	})
	if len(report.Unpaid) > 0 {
		names := make([]string, 0, len(report.Unpaid))
		for _, failure := range report.Unpaid {
			names = append(names, failure.Registrant.DisplayName)
		}
		entry.WithField("unpaid_names", names).Warn("Promoted registrants left unpaid")
	} else {
		entry.Info("Settled promoted registrants")
	}
	return report
}
