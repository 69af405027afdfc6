package shutdown

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// ExitCode is the status used when a second signal forces the exit.
const ExitCode = 130

// ForceExit terminates the process on the second signal.
var ForceExit = os.Exit

// Signals are the signals WithSignals listens for.
var Signals = []os.Signal{os.Interrupt, syscall.SIGTERM}

// WithSignals returns a copy of parent canceled by the first of Signals.
// The returned cancel stops listening and must be called.
func WithSignals(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, Signals...)

	stop := make(chan struct{})
	go func() {
		defer signal.Stop(sigCh)
		select {
		case <-sigCh:
			cancel()
		case <-stop:
			return
		}
		select {
		case <-sigCh:
			ForceExit(ExitCode)
		case <-stop:
		}
	}()

	var once sync.Once
	return ctx, func() {
		once.Do(func() {
			close(stop)
			cancel()
		})
	}
}
