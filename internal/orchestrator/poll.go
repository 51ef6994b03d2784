package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/swan-ide/swanctl/pkg/shared/files"
)

// sideEffectReady reports whether dir exists and holds at least one entry.
func sideEffectReady(dir string) bool {
	entries, err := files.ListDir(dir)
	return err == nil && len(entries) > 0
}

// awaitSideEffect polls dir every interval until it is populated, timeout elapses or ctx ends.
func awaitSideEffect(ctx context.Context, dir string, interval, timeout time.Duration) error {
	if sideEffectReady(dir) {
		return nil
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			if sideEffectReady(dir) {
				return nil
			}
			return fmt.Errorf("%s is missing or empty after %s", dir, timeout)
		case <-ticker.C:
			if sideEffectReady(dir) {
				return nil
			}
		}
	}
}
