package observability

import (
	"context"
	"fmt"
	"sync"
	"time"

	"courtside/config"
	"courtside/domain/entities"
	"courtside/domain/interfaces"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

// MetricsProvider manages the OpenTelemetry meter and implements
// interfaces.MetricsRecorder for the core services
type MetricsProvider struct {
	config        *config.Config
	meterProvider *sdkmetric.MeterProvider
	meter         metric.Meter
	initialized   bool
	enabled       bool
	mu            sync.RWMutex

	ledgerTransactionsCounter metric.Int64Counter
	ledgerVolumeCounter       metric.Int64Counter
	compensationsCounter      metric.Int64Counter
	unreconciledCounter       metric.Int64Counter
	rosterConflictsCounter    metric.Int64Counter
	registrationsCounter      metric.Int64Counter
	notificationsCounter      metric.Int64Counter
}

var _ interfaces.MetricsRecorder = (*MetricsProvider)(nil)

// NewMetricsProvider creates a new metrics provider
func NewMetricsProvider(cfg *config.Config) *MetricsProvider {
	return &MetricsProvider{config: cfg}
}

// Initialize sets up the exporter chosen by OTEL_EXPORTER_TYPE
func (mp *MetricsProvider) Initialize(ctx context.Context) error {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	if mp.initialized {
		return nil
	}

	if !mp.config.OTelEnabled || mp.config.OTelExporterType == "none" {
		log.Info("OpenTelemetry metrics disabled")
		mp.initialized = true
		return nil
	}

	var exporter sdkmetric.Exporter
	var err error
	switch mp.config.OTelExporterType {
	case "console":
		exporter, err = stdoutmetric.New()
		if err != nil {
			return fmt.Errorf("failed to create console exporter: %w", err)
		}
		log.Info("Using console metric exporter")

	case "otlp":
		dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		exporter, err = otlpmetricgrpc.New(dialCtx,
			otlpmetricgrpc.WithEndpoint(mp.config.OTelOTLPEndpoint),
			otlpmetricgrpc.WithInsecure(),
		)
		if err != nil {
			return fmt.Errorf("failed to create OTLP exporter: %w", err)
		}
		log.WithField("endpoint", mp.config.OTelOTLPEndpoint).Info("Using OTLP metric exporter")

	default:
		return fmt.Errorf("unknown exporter type: %s", mp.config.OTelExporterType)
	}

	reader := sdkmetric.NewPeriodicReader(exporter,
		sdkmetric.WithInterval(time.Duration(mp.config.OTelExportIntervalMillis)*time.Millisecond),
	)
	if err := mp.start(reader); err != nil {
		return err
	}

	otel.SetMeterProvider(mp.meterProvider)
	log.Info("Metrics provider initialized")
	return nil
}

// start builds the meter provider around reader and creates the instruments. Callers
// hold mp.mu.
func (mp *MetricsProvider) start(reader sdkmetric.Reader) error {
	res, err := resource.Merge(
		resource.Default(),
		resource.NewSchemaless(
			semconv.ServiceName(mp.config.OTelServiceName),
			attribute.String("environment", mp.config.Environment),
		),
	)
	if err != nil {
		return fmt.Errorf("failed to create resource: %w", err)
	}

	mp.meterProvider = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(reader),
	)
	mp.meter = mp.meterProvider.Meter("courtside")

	if err := mp.createInstruments(); err != nil {
		return fmt.Errorf("failed to create instruments: %w", err)
	}

	mp.initialized = true
	mp.enabled = true
	return nil
}

func (mp *MetricsProvider) createInstruments() error {
	counters := []struct {
		target      *metric.Int64Counter
		name        string
		description string
		unit        string
	}{
		{&mp.ledgerTransactionsCounter, LedgerTransactionsTotal, "Ledger entries written", "1"},
		{&mp.ledgerVolumeCounter, LedgerVolume, "Absolute amount moved through the ledger", "{minor_unit}"},
		{&mp.compensationsCounter, CompensationsTotal, "Compensating ledger writes attempted", "1"},
		{&mp.unreconciledCounter, UnreconciledTotal, "Discrepancies left for manual repair", "1"},
		{&mp.rosterConflictsCounter, RosterConflictsTotal, "Roster writes that lost a version race", "1"},
		{&mp.registrationsCounter, RegistrationsTotal, "Registrants added to a roster", "1"},
		{&mp.notificationsCounter, NotificationsTotal, "Notifications handed to a gateway", "1"},
	}

	for _, c := range counters {
		counter, err := mp.meter.Int64Counter(c.name,
			metric.WithDescription(c.description),
			metric.WithUnit(c.unit),
		)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", c.name, err)
		}
		*c.target = counter
	}
	return nil
}

// Shutdown flushes and stops the meter provider
func (mp *MetricsProvider) Shutdown(ctx context.Context) error {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	if mp.meterProvider == nil {
		return nil
	}
	if err := mp.meterProvider.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown meter provider: %w", err)
	}
	mp.enabled = false
	return nil
}

func (mp *MetricsProvider) RecordLedgerTransaction(ctx context.Context, reason entities.TransactionReason, amount int64) {
	if !mp.isEnabled() {
		return
	}
	attrs := metric.WithAttributes(attribute.String(LabelReason, string(reason)))
	mp.ledgerTransactionsCounter.Add(ctx, 1, attrs)
	if amount < 0 {
		amount = -amount
	}
	mp.ledgerVolumeCounter.Add(ctx, amount, attrs)
}

func (mp *MetricsProvider) RecordCompensation(ctx context.Context, operation string, succeeded bool) {
	if !mp.isEnabled() {
		return
	}
	mp.compensationsCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String(LabelOperation, operation),
		attribute.String(LabelOutcome, outcome(succeeded)),
	))
}

func (mp *MetricsProvider) RecordUnreconciled(ctx context.Context, operation string) {
	if !mp.isEnabled() {
		return
	}
	mp.unreconciledCounter.Add(ctx, 1, metric.WithAttributes(attribute.String(LabelOperation, operation)))
}

func (mp *MetricsProvider) RecordRosterConflict(ctx context.Context) {
	if !mp.isEnabled() {
		return
	}
	mp.rosterConflictsCounter.Add(ctx, 1)
}

func (mp *MetricsProvider) RecordRegistration(ctx context.Context, classification entities.Classification) {
	if !mp.isEnabled() {
		return
	}
	mp.registrationsCounter.Add(ctx, 1, metric.WithAttributes(attribute.String(LabelClassification, string(classification))))
}

// RecordNotification counts one delivery attempt by a notification gateway
func (mp *MetricsProvider) RecordNotification(ctx context.Context, gateway, eventType string, succeeded bool) {
	if !mp.isEnabled() {
		return
	}
	mp.notificationsCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String(LabelGateway, gateway),
		attribute.String(LabelEventType, eventType),
		attribute.String(LabelOutcome, outcome(succeeded)),
	))
}

func (mp *MetricsProvider) isEnabled() bool {
	mp.mu.RLock()
	defer mp.mu.RUnlock()
	return mp.initialized && mp.enabled
}

func outcome(succeeded bool) string {
	if succeeded {
		return OutcomeSucceeded
	}
	return OutcomeFailed
}
