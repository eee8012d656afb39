package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"mercator-hq/tlsrelay/pkg/config"
	"mercator-hq/tlsrelay/pkg/journal"
)

var baseTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func testRecord(id string, offset time.Duration, class, errText string) *journal.Record {
	started := baseTime.Add(offset)
	return &journal.Record{
		ID:                id,
		ConnectionID:      "conn-" + id,
		RemoteAddr:        "127.0.0.1:50000",
		StartedAt:         started,
		FinishedAt:        started.Add(40 * time.Millisecond),
		RecordedAt:        started.Add(41 * time.Millisecond),
		FinalState:        "writing_response",
		Class:             class,
		UpstreamStatus:    200,
		StatusCode:        200,
		BytesWritten:      44,
		HeadLines:         2,
		HandshakeDuration: 5 * time.Millisecond,
		ReadDuration:      time.Millisecond,
		DispatchDuration:  30 * time.Millisecond,
		WriteDuration:     100 * time.Microsecond,
		Error:             errText,
	}
}

// backends returns a fresh instance of every storage backend.
func backends(t *testing.T) map[string]journal.Storage {
	t.Helper()

	cfg := DefaultSQLiteConfig()
	cfg.Path = filepath.Join(t.TempDir(), "journal.db")
	sqlite, err := NewSQLiteStorage(cfg, nil)
	if err != nil {
		t.Fatalf("NewSQLiteStorage() error = %v", err)
	}

	stores := map[string]journal.Storage{
		"memory": NewMemoryStorage(),
		"sqlite": sqlite,
	}
	t.Cleanup(func() {
		for _, s := range stores {
			_ = s.Close()
		}
	})
	return stores
}

func seed(t *testing.T, s journal.Storage) {
	t.Helper()

	records := []*journal.Record{
		testRecord("a", 0, "success", ""),
		testRecord("b", time.Minute, "upstream_error", "upstream returned non-success status 503"),
		testRecord("c", 2*time.Minute, "success", ""),
		testRecord("d", 3*time.Minute, "handshake_error", "tls: first record does not look like a TLS handshake"),
	}
	for _, r := range records {
		if err := s.Store(context.Background(), r); err != nil {
			t.Fatalf("Store(%s) error = %v", r.ID, err)
		}
	}
}

func TestStorage_RoundTrip(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			want := testRecord("x", 0, "upstream_error", "boom")
			if err := s.Store(context.Background(), want); err != nil {
				t.Fatal(err)
			}

			got, err := s.Query(context.Background(), &journal.Query{})
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != 1 {
				t.Fatalf("Query() returned %d records, want 1", len(got))
			}

			r := got[0]
			if r.ID != want.ID || r.ConnectionID != want.ConnectionID || r.RemoteAddr != want.RemoteAddr {
				t.Errorf("identity = %q/%q/%q", r.ID, r.ConnectionID, r.RemoteAddr)
			}
			if !r.StartedAt.Equal(want.StartedAt) || !r.FinishedAt.Equal(want.FinishedAt) || !r.RecordedAt.Equal(want.RecordedAt) {
				t.Errorf("timestamps differ: %+v", r)
			}
			if r.Class != want.Class || r.FinalState != want.FinalState || r.Error != want.Error {
				t.Errorf("result = %q/%q/%q", r.Class, r.FinalState, r.Error)
			}
			if r.UpstreamStatus != 200 || r.StatusCode != 200 || r.BytesWritten != 44 || r.HeadLines != 2 {
				t.Errorf("counters = %+v", r)
			}
			if r.DispatchDuration != want.DispatchDuration || r.WriteDuration != want.WriteDuration {
				t.Errorf("durations = %v/%v", r.DispatchDuration, r.WriteDuration)
			}
			if r.Duration() != 40*time.Millisecond {
				t.Errorf("Duration() = %v", r.Duration())
			}
		})
	}
}

func TestStorage_Query(t *testing.T) {
	mid := baseTime.Add(90 * time.Second)

	tests := []struct {
		name    string
		query   journal.Query
		wantIDs []string
	}{
		{name: "all newest first", query: journal.Query{}, wantIDs: []string{"d", "c", "b", "a"}},
		{name: "ascending", query: journal.Query{SortOrder: "asc"}, wantIDs: []string{"a", "b", "c", "d"}},
		{name: "by class", query: journal.Query{Class: "success"}, wantIDs: []string{"c", "a"}},
		{name: "errors", query: journal.Query{Status: "error"}, wantIDs: []string{"d", "b"}},
		{name: "successes", query: journal.Query{Status: "success"}, wantIDs: []string{"c", "a"}},
		{name: "since", query: journal.Query{StartTime: &mid}, wantIDs: []string{"d", "c"}},
		{name: "until", query: journal.Query{EndTime: &mid}, wantIDs: []string{"b", "a"}},
		{name: "limit", query: journal.Query{Limit: 2}, wantIDs: []string{"d", "c"}},
		{name: "offset", query: journal.Query{Offset: 3}, wantIDs: []string{"a"}},
		{name: "offset past end", query: journal.Query{Offset: 10}, wantIDs: []string{}},
		{name: "no match", query: journal.Query{RemoteAddr: "10.0.0.1:1"}, wantIDs: []string{}},
	}

	for name, s := range backends(t) {
		seed(t, s)
		for _, tt := range tests {
			t.Run(name+"/"+tt.name, func(t *testing.T) {
				q := tt.query
				got, err := s.Query(context.Background(), &q)
				if err != nil {
					t.Fatalf("Query() error = %v", err)
				}
				if len(got) != len(tt.wantIDs) {
					t.Fatalf("Query() returned %d records, want %d", len(got), len(tt.wantIDs))
				}
				for i, id := range tt.wantIDs {
					if got[i].ID != id {
						t.Errorf("record[%d] = %q, want %q", i, got[i].ID, id)
					}
				}

				if q.Limit == 0 && q.Offset == 0 {
					count, err := s.Count(context.Background(), &q)
					if err != nil {
						t.Fatal(err)
					}
					if count != int64(len(tt.wantIDs)) {
						t.Errorf("Count() = %d, want %d", count, len(tt.wantIDs))
					}
				}
			})
		}
	}
}

func TestStorage_Delete(t *testing.T) {
	cutoff := baseTime.Add(90 * time.Second)

	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			seed(t, s)

			deleted, err := s.Delete(context.Background(), &journal.Query{EndTime: &cutoff})
			if err != nil {
				t.Fatal(err)
			}
			if deleted != 2 {
				t.Errorf("Delete() = %d, want 2", deleted)
			}

			count, err := s.Count(context.Background(), &journal.Query{})
			if err != nil {
				t.Fatal(err)
			}
			if count != 2 {
				t.Errorf("Count() after delete = %d, want 2", count)
			}
		})
	}
}

func TestSQLiteStorage_DuplicateID(t *testing.T) {
	s := backends(t)["sqlite"]
	r := testRecord("dup", 0, "success", "")

	if err := s.Store(context.Background(), r); err != nil {
		t.Fatal(err)
	}
	err := s.Store(context.Background(), r)

	var storageErr *journal.StorageError
	if !errors.As(err, &storageErr) {
		t.Fatalf("error = %v, want *journal.StorageError", err)
	}
	if storageErr.Backend != "sqlite" || storageErr.Operation != "store" {
		t.Errorf("StorageError = %+v", storageErr)
	}
}

func TestSQLiteStorage_Reopen(t *testing.T) {
	cfg := DefaultSQLiteConfig()
	cfg.Path = filepath.Join(t.TempDir(), "nested", "journal.db")

	first, err := NewSQLiteStorage(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := first.Store(context.Background(), testRecord("persisted", 0, "success", "")); err != nil {
		t.Fatal(err)
	}
	if err := first.Close(); err != nil {
		t.Fatal(err)
	}

	second, err := NewSQLiteStorage(cfg, nil)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer second.Close()

	count, err := second.Count(context.Background(), &journal.Query{})
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("Count() after reopen = %d, want 1", count)
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.JournalConfig
		wantErr bool
	}{
		{name: "default memory", cfg: config.JournalConfig{}},
		{name: "memory", cfg: config.JournalConfig{Backend: "memory"}},
		{name: "sqlite", cfg: config.JournalConfig{Backend: "sqlite", SQLitePath: filepath.Join(t.TempDir(), "j.db")}},
		{name: "unknown", cfg: config.JournalConfig{Backend: "postgres"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := New(&tt.cfg, nil)
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				if !errors.Is(err, errUnknownBackend) {
					t.Errorf("error = %v, want errUnknownBackend", err)
				}
				return
			}
			_ = s.Close()
		})
	}
}
