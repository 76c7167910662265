package observability

// Metric name prefixes
const (
	MetricPrefix = "courtside"
)

// Metric names
const (
	// Ledger metrics
	LedgerTransactionsTotal = MetricPrefix + ".ledger.transactions_total"
	LedgerVolume            = MetricPrefix + ".ledger.volume"

	// Saga metrics
	CompensationsTotal = MetricPrefix + ".saga.compensations_total"
	UnreconciledTotal  = MetricPrefix + ".saga.unreconciled_total"

	// Roster metrics
	RosterConflictsTotal = MetricPrefix + ".roster.conflicts_total"
	RegistrationsTotal   = MetricPrefix + ".roster.registrations_total"

	// Notification metrics
	NotificationsTotal = MetricPrefix + ".notifications.total"
)

// Label keys
const (
	LabelReason         = "reason"
	LabelOperation      = "operation"
	LabelOutcome        = "outcome"
	LabelClassification = "classification"
	LabelEventType      = "event_type"
	LabelGateway        = "gateway"
)

// Outcome values
const (
	OutcomeSucceeded = "succeeded"
	OutcomeFailed    = "failed"
)
