// Package health provides the liveness, readiness and version endpoints
// served by the tlsrelay admin server.
//
// Liveness (/health) only reports that the process is up. Readiness
// (/ready) runs every registered component check and returns 503 when any
// of them fails. Typical checks are "listener" (the relay is accepting),
// "journal" (the journal store answers a count) and "certificate" (the
// served certificate has not expired).
//
//	checker := health.New(2 * time.Second)
//	checker.Register("listener", func(ctx context.Context) error {
//		if !srv.Ready() {
//			return errors.New("relay not accepting")
//		}
//		return nil
//	})
//	mux.Handle("/ready", checker.ReadinessHandler())
package health
