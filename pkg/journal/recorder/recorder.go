package recorder

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"mercator-hq/tlsrelay/pkg/journal"
	"mercator-hq/tlsrelay/pkg/relay"
)

// Config contains configuration for the journal recorder.
type Config struct {
	// AsyncBuffer is the size of the async write channel buffer.
	// Default: 1000
	AsyncBuffer int

	// WriteTimeout is the timeout for writing one record to storage.
	// Default: 5 seconds
	WriteTimeout time.Duration
}

// DefaultConfig returns the default recorder configuration.
func DefaultConfig() Config {
	return Config{
		AsyncBuffer:  1000,
		WriteTimeout: 5 * time.Second,
	}
}

// Recorder turns finished connections into journal records and writes them
// from a background worker. Record never blocks: when the buffer is full
// the record is dropped and counted.
type Recorder struct {
	storage    journal.Storage
	config     Config
	recordChan chan *journal.Record
	done       chan struct{}
	wg         sync.WaitGroup
	logger     *slog.Logger

	closeOnce sync.Once
	closed    atomic.Bool
	dropped   atomic.Int64
	written   atomic.Int64
}

// New creates a recorder writing to storage and starts its worker.
func New(storage journal.Storage, config Config, logger *slog.Logger) *Recorder {
	defaults := DefaultConfig()
	if config.AsyncBuffer <= 0 {
		config.AsyncBuffer = defaults.AsyncBuffer
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = defaults.WriteTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}

	r := &Recorder{
		storage:    storage,
		config:     config,
		recordChan: make(chan *journal.Record, config.AsyncBuffer),
		done:       make(chan struct{}),
		logger:     logger.With("component", "journal.recorder"),
	}

	r.wg.Add(1)
	go r.worker()

	r.logger.Info("journal recorder initialized",
		"async_buffer", config.AsyncBuffer,
		"write_timeout", config.WriteTimeout,
	)

	return r
}

// Record implements relay.Recorder.
func (r *Recorder) Record(ctx context.Context, res relay.Result) {
	if err := r.Enqueue(FromResult(res)); err != nil {
		r.logger.WarnContext(ctx, "journal record dropped",
			"connection_id", res.ConnectionID,
			"error", err,
		)
	}
}

// Enqueue queues record for writing without blocking.
func (r *Recorder) Enqueue(record *journal.Record) error {
	if r.closed.Load() {
		r.dropped.Add(1)
		return journal.ErrRecorderClosed
	}

	select {
	case r.recordChan <- record:
		return nil
	default:
		r.dropped.Add(1)
		return journal.ErrBufferFull
	}
}

// Dropped returns the number of records dropped so far.
func (r *Recorder) Dropped() int64 {
	return r.dropped.Load()
}

// Written returns the number of records stored so far.
func (r *Recorder) Written() int64 {
	return r.written.Load()
}

// Close stops accepting records, drains the buffer and waits for pending
// writes. It does not close the storage.
func (r *Recorder) Close() error {
	r.closeOnce.Do(func() {
		r.closed.Store(true)
		close(r.done)
		r.wg.Wait()
		r.logger.Info("journal recorder shut down",
			"written", r.written.Load(),
			"dropped", r.dropped.Load(),
		)
	})
	return nil
}

// worker drains the channel and writes records to storage.
func (r *Recorder) worker() {
	defer r.wg.Done()

	for {
		select {
		case record := <-r.recordChan:
			r.writeRecord(record)

		case <-r.done:
			for {
				select {
				case record := <-r.recordChan:
					r.writeRecord(record)
				default:
					return
				}
			}
		}
	}
}

func (r *Recorder) writeRecord(record *journal.Record) {
	ctx, cancel := context.WithTimeout(context.Background(), r.config.WriteTimeout)
	defer cancel()

	start := time.Now()
	record.RecordedAt = start

	if err := r.storage.Store(ctx, record); err != nil {
		r.logger.Error("failed to store journal record",
			"record_id", record.ID,
			"connection_id", record.ConnectionID,
			"error", err,
		)
		return
	}
	r.written.Add(1)

	if d := time.Since(start); d > r.config.WriteTimeout/2 {
		r.logger.Warn("slow journal write",
			"record_id", record.ID,
			"duration_ms", d.Milliseconds(),
		)
	}
}

// FromResult builds a journal record from a finished connection.
func FromResult(res relay.Result) *journal.Record {
	record := &journal.Record{
		ID:                uuid.NewString(),
		ConnectionID:      res.ConnectionID,
		RemoteAddr:        res.RemoteAddr,
		StartedAt:         res.StartedAt,
		FinishedAt:        res.FinishedAt,
		FinalState:        res.LastState.String(),
		Class:             res.Class,
		UpstreamStatus:    res.UpstreamStatus,
		StatusCode:        res.StatusCode,
		BytesWritten:      res.BytesWritten,
		HeadLines:         res.HeadLines,
		HandshakeDuration: res.Stages.Handshake,
		ReadDuration:      res.Stages.Read,
		DispatchDuration:  res.Stages.Dispatch,
		WriteDuration:     res.Stages.Write,
	}
	if res.Err != nil {
		record.Error = res.Err.Error()
	}
	return record
}

var _ relay.Recorder = (*Recorder)(nil)
