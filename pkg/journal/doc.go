// Package journal provides the connection journal: an optional audit trail
// with one record per relayed connection.
//
// Records carry the connection ID, peer address, timestamps, the final
// state and result class, upstream and client status codes, stage timings
// and error text. Bodies are never stored.
//
// # Subpackages
//
//   - recorder: asynchronous writer fed by the relay handler
//   - storage: memory and SQLite (modernc.org/sqlite) backends
//   - retention: age-based pruning on a cron schedule
//   - export: JSON and CSV output for the CLI
//
// # Usage
//
//	store, err := storage.New(&cfg.Journal)
//	rec := recorder.New(store, recorder.Config{AsyncBuffer: 1000}, logger)
//	defer rec.Close()
//	handler, err := relay.NewHandler(relay.HandlerOptions{Recorder: rec, ...})
package journal
