package channel

import (
	"context"
	"sync"
)

// waitUnlocked releases mu until done is closed or ctx ends, then
// reacquires it. mu must be held on entry and is held on return.
func waitUnlocked(ctx context.Context, mu *sync.Mutex, done <-chan struct{}) error {
	mu.Unlock()
	defer mu.Lock()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// runUnlocked calls fn with mu released. mu must be held on entry and is
// held on return.
func runUnlocked(mu *sync.Mutex, fn func()) {
	mu.Unlock()
	defer mu.Lock()
	fn()
}
