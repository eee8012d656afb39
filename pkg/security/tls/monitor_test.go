package tls

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"
)

type recordingObserver struct {
	mu     sync.Mutex
	days   []float64
	events []string
}

func (o *recordingObserver) SetCertificateExpiryDays(days float64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.days = append(o.days, days)
}

func (o *recordingObserver) ObserveCredentialFileEvent(op string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, op)
}

func (o *recordingObserver) eventCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.events)
}

func (o *recordingObserver) dayCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.days)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestExpiryMonitor_StartChecksImmediately(t *testing.T) {
	certPEM, keyPEM := createTestCredentials(t)
	cred, err := ParseCredentialPEM(certPEM, keyPEM)
	if err != nil {
		t.Fatal(err)
	}

	observer := &recordingObserver{}
	monitor := NewExpiryMonitor(cred, "@every 1h", 30, observer, discardLogger())

	if err := monitor.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer monitor.Stop()

	if len(observer.days) != 1 {
		t.Fatalf("expected one immediate check, got %d", len(observer.days))
	}
	// Test certificates are valid for one day
	if observer.days[0] != 0 {
		t.Errorf("days = %v, want 0", observer.days[0])
	}

	if next := monitor.NextRun(); next == nil || next.Before(time.Now()) {
		t.Errorf("NextRun() = %v, want a future time", next)
	}

	if err := monitor.Start(); err == nil {
		t.Error("expected error when starting twice")
	}
}

func TestExpiryMonitor_RunsOnSchedule(t *testing.T) {
	certPEM, keyPEM := createTestCredentials(t)
	cred, err := ParseCredentialPEM(certPEM, keyPEM)
	if err != nil {
		t.Fatal(err)
	}

	observer := &recordingObserver{}
	monitor := NewExpiryMonitor(cred, "@every 1s", 30, observer, discardLogger())
	if err := monitor.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer monitor.Stop()

	deadline := time.Now().Add(5 * time.Second)
	for observer.dayCount() < 2 {
		if time.Now().After(deadline) {
			t.Fatalf("expected a scheduled check after the initial one, got %d checks", observer.dayCount())
		}
		time.Sleep(50 * time.Millisecond)
	}
}

func TestExpiryMonitor_InvalidSchedule(t *testing.T) {
	certPEM, keyPEM := createTestCredentials(t)
	cred, err := ParseCredentialPEM(certPEM, keyPEM)
	if err != nil {
		t.Fatal(err)
	}

	monitor := NewExpiryMonitor(cred, "not a schedule", 30, nil, discardLogger())
	if err := monitor.Start(); err == nil {
		monitor.Stop()
		t.Fatal("expected error for invalid schedule")
	}
	if monitor.NextRun() != nil {
		t.Error("NextRun() should be nil when not running")
	}
}

func TestFileWatcher_ObservesChanges(t *testing.T) {
	certPEM, keyPEM := createTestCredentials(t)
	certFile, keyFile := writeTestFiles(t, certPEM, keyPEM)

	observer := &recordingObserver{}
	watcher, err := NewFileWatcher([]string{certFile, keyFile}, observer, discardLogger())
	if err != nil {
		t.Fatalf("NewFileWatcher() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- watcher.Watch(ctx) }()

	// Give the watcher time to register
	time.Sleep(100 * time.Millisecond)

	if err := os.WriteFile(certFile, certPEM, 0644); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for observer.eventCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}
	if observer.eventCount() == 0 {
		t.Error("expected at least one credential file event")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Watch() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop after cancellation")
	}
}

func TestFileWatcher_IgnoresOtherFiles(t *testing.T) {
	certPEM, keyPEM := createTestCredentials(t)
	certFile, keyFile := writeTestFiles(t, certPEM, keyPEM)

	observer := &recordingObserver{}
	watcher, err := NewFileWatcher([]string{certFile, keyFile}, observer, discardLogger())
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = watcher.Watch(ctx) }()
	time.Sleep(100 * time.Millisecond)

	other := certFile + ".bak"
	if err := os.WriteFile(other, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	time.Sleep(200 * time.Millisecond)

	if n := observer.eventCount(); n != 0 {
		t.Errorf("expected no events for unrelated files, got %d", n)
	}
}

func TestNewFileWatcher_NoPaths(t *testing.T) {
	if _, err := NewFileWatcher(nil, nil, nil); err == nil {
		t.Error("expected error for empty path list")
	}
}
