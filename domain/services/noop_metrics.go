package services

import (
	"context"

	"courtside/domain/entities"
)

// NoopMetrics discards every measurement
type NoopMetrics struct{}

func (NoopMetrics) RecordLedgerTransaction(context.Context, entities.TransactionReason, int64) {}
func (NoopMetrics) RecordCompensation(context.Context, string, bool) {}
func (NoopMetrics) RecordUnreconciled(context.Context, string) {}
func (NoopMetrics) RecordRosterConflict(context.Context) {}
func (NoopMetrics) RecordRegistration(context.Context, entities.Classification) {}
