package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"syscall"
	"testing"
	"time"
)

type certSummary struct {
	Subject string `json:"subject"`
	Days    int    `json:"days"`
}

func (c certSummary) Fields() []Field {
	return []Field{{"Subject", c.Subject}, {"Days Remaining", c.Days}}
}

func TestNewFormatter(t *testing.T) {
	tests := []struct {
		format  string
		want    string
		wantErr bool
	}{
		{"", "*cli.TextFormatter", false},
		{"text", "*cli.TextFormatter", false},
		{"JSON", "*cli.JSONFormatter", false},
		{"yaml", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			f, err := NewFormatter(tt.format)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewFormatter(%q) error = %v", tt.format, err)
			}
			if err != nil {
				if ExitCode(err) != ExitConfig {
					t.Errorf("ExitCode = %d, want %d", ExitCode(err), ExitConfig)
				}
				return
			}
			if got := fmt.Sprintf("%T", f); got != tt.want {
				t.Errorf("type = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestTextFormatter(t *testing.T) {
	var buf bytes.Buffer
	if err := (&TextFormatter{}).FormatTo(&buf, certSummary{Subject: "CN=localhost", Days: 42}); err != nil {
		t.Fatal(err)
	}
	want := "Subject:         CN=localhost\nDays Remaining:  42\n"
	if buf.String() != want {
		t.Errorf("text output = %q, want %q", buf.String(), want)
	}

	buf.Reset()
	if err := (&TextFormatter{}).FormatTo(&buf, "plain"); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "plain\n" {
		t.Errorf("plain output = %q", buf.String())
	}
}

func TestJSONFormatter(t *testing.T) {
	var buf bytes.Buffer
	if err := (&JSONFormatter{Indent: true}).FormatTo(&buf, certSummary{Subject: "CN=a", Days: 1}); err != nil {
		t.Fatal(err)
	}
	var got certSummary
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if got.Subject != "CN=a" || !strings.Contains(buf.String(), "\n  ") {
		t.Errorf("output = %s", buf.String())
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitOK},
		{"config", NewConfigError("upstream.url", "must use https"), ExitConfig},
		{"wrapped config", fmt.Errorf("load: %w", NewConfigError("listener", "bad")), ExitConfig},
		{"command", NewCommandError("run", errors.New("listen failed")), ExitError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExitCode(tt.err); got != tt.want {
				t.Errorf("ExitCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestCommandError_Unwrap(t *testing.T) {
	cause := errors.New("listen failed")
	err := NewCommandError("run", cause)
	if !errors.Is(err, cause) {
		t.Error("CommandError does not unwrap to its cause")
	}
	if err.Error() != "command run failed: listen failed" {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestSetupSignalHandler(t *testing.T) {
	ctx, stop := SetupSignalHandler(context.Background())
	defer stop()

	select {
	case <-ctx.Done():
		t.Fatal("context cancelled before any signal")
	default:
	}

	if err := syscall.Kill(syscall.Getpid(), syscall.SIGTERM); err != nil {
		t.Fatal(err)
	}

	select {
	case <-ctx.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("context not cancelled by SIGTERM")
	}
}
