package monitoring

import (
	"fmt"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
)

// Config holds New Relic configuration
type Config struct {
	LicenseKey string
	AppName    string
	Enabled    bool
}

// NewRelicApp wraps the New Relic application
type NewRelicApp struct {
	*newrelic.Application
	enabled bool
}

// New creates a new New Relic application. When disabled or unlicensed it
// returns a no-op wrapper so callers never have to nil-check.
func New(cfg Config) (*NewRelicApp, error) {
	if !cfg.Enabled || cfg.LicenseKey == "" {
		return &NewRelicApp{nil, false}, nil
	}

	app, err := newrelic.NewApplication(
		newrelic.ConfigAppName(cfg.AppName),
		newrelic.ConfigLicense(cfg.LicenseKey),
		newrelic.ConfigAppLogForwardingEnabled(true),
		newrelic.ConfigDistributedTracerEnabled(true),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create New Relic application: %w", err)
	}

	return &NewRelicApp{app, true}, nil
}

// RecordCustomEvent records a custom event
func (nr *NewRelicApp) RecordCustomEvent(eventType string, params map[string]interface{}) {
	if !nr.enabled || nr.Application == nil {
		return
	}
	nr.Application.RecordCustomEvent(eventType, params)
}

// RecordCustomMetric records a custom metric
func (nr *NewRelicApp) RecordCustomMetric(name string, value float64) {
	if !nr.enabled || nr.Application == nil {
		return
	}
	nr.Application.RecordCustomMetric(name, value)
}

// Shutdown gracefully shuts down the New Relic application
func (nr *NewRelicApp) Shutdown(timeout time.Duration) {
	if !nr.enabled || nr.Application == nil {
		return
	}
	nr.Application.Shutdown(timeout)
}

// IsEnabled returns whether New Relic is enabled
func (nr *NewRelicApp) IsEnabled() bool {
	return nr.enabled
}

// Custom metric helpers

// RecordRideRequested records a new ride request
func (nr *NewRelicApp) RecordRideRequested(rideType string, price float64) {
	nr.RecordCustomEvent("RideRequested", map[string]interface{}{
		"ride_type": rideType,
		"price":     price,
		"timestamp": time.Now().Unix(),
	})
}

// RecordMatchLatency records time from request to acceptance
func (nr *NewRelicApp) RecordMatchLatency(latencyMs float64) {
	nr.RecordCustomMetric("custom/ride/match_latency_ms", latencyMs)
}

// RecordRideCompleted records ride completion
func (nr *NewRelicApp) RecordRideCompleted(rideID string, fare float64, durationMin int) {
	nr.RecordCustomEvent("RideCompleted", map[string]interface{}{
		"ride_id":      rideID,
		"fare":         fare,
		"duration_min": durationMin,
	})
}

// RecordWalletOperation records a wallet ledger operation
func (nr *NewRelicApp) RecordWalletOperation(kind string, amount float64, outcome string) {
	nr.RecordCustomEvent("WalletOperation", map[string]interface{}{
		"kind":    kind,
		"amount":  amount,
		"outcome": outcome,
	})
}
