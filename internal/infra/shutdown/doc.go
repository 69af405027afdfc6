// Package shutdown cancels command work on SIGINT or SIGTERM.
//
// Usage:
//
//	ctx, cancel := shutdown.WithSignals(context.Background())
//	defer cancel()
//	err := app.RunContext(ctx, os.Args)
//
// The first signal cancels ctx so deferred cleanup (closing the ledger)
// still runs; a second signal exits immediately.
package shutdown
