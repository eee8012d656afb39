package tls

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// ExpiryObserver receives the number of days left on the served certificate.
type ExpiryObserver interface {
	SetCertificateExpiryDays(days float64)
}

// ExpiryMonitor periodically checks the served certificate for upcoming
// expiry. It logs a warning inside the warning window and reports the days
// remaining to an optional observer. It never replaces the certificate.
type ExpiryMonitor struct {
	cred        *CredentialMaterial
	schedule    string
	warningDays int
	observer    ExpiryObserver
	logger      *slog.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	running bool
}

// NewExpiryMonitor creates a monitor for cred. observer may be nil.
func NewExpiryMonitor(cred *CredentialMaterial, schedule string, warningDays int, observer ExpiryObserver, logger *slog.Logger) *ExpiryMonitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExpiryMonitor{
		cred:        cred,
		schedule:    schedule,
		warningDays: warningDays,
		observer:    observer,
		logger:      logger.With("component", "tls.expiry"),
		cron:        cron.New(),
	}
}

// Start runs one check immediately and then schedules further checks.
func (m *ExpiryMonitor) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return fmt.Errorf("expiry monitor already running")
	}

	if _, err := cron.ParseStandard(m.schedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", m.schedule, err)
	}

	m.Check()

	if _, err := m.cron.AddFunc(m.schedule, func() { m.Check() }); err != nil {
		return fmt.Errorf("failed to schedule expiry check: %w", err)
	}

	m.cron.Start()
	m.running = true

	m.logger.Info("certificate expiry monitor started",
		"schedule", m.schedule,
		"warning_days", m.warningDays,
	)
	return nil
}

// Check inspects the leaf certificate once and returns the days remaining.
func (m *ExpiryMonitor) Check() int {
	leaf, err := m.cred.Leaf()
	if err != nil {
		m.logger.Error("failed to parse served certificate", "error", err)
		return 0
	}

	days, warning := CheckCertificateExpiration(leaf, m.warningDays)
	if m.observer != nil {
		m.observer.SetCertificateExpiryDays(float64(days))
	}

	switch {
	case time.Now().After(leaf.NotAfter):
		m.logger.Error("served certificate has expired",
			"subject", leaf.Subject.CommonName,
			"expired_at", leaf.NotAfter.Format(time.RFC3339),
		)
	case warning != "":
		m.logger.Warn("certificate expiring soon",
			"subject", leaf.Subject.CommonName,
			"expires_in_days", days,
			"expires_at", leaf.NotAfter.Format(time.RFC3339),
		)
	default:
		m.logger.Debug("certificate expiry checked",
			"subject", leaf.Subject.CommonName,
			"expires_in_days", days,
		)
	}

	return days
}

// Stop stops the scheduler and waits for a running check to complete.
func (m *ExpiryMonitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		<-m.cron.Stop().Done()
		m.running = false
		m.logger.Info("certificate expiry monitor stopped")
	}
}

// NextRun returns the next scheduled check, or nil when not running.
func (m *ExpiryMonitor) NextRun() *time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()

	entries := m.cron.Entries()
	if !m.running || len(entries) == 0 {
		return nil
	}
	next := entries[0].Next
	return &next
}
