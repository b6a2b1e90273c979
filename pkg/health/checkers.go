package health

import (
	"context"
	"runtime"
	"runtime/debug"
	"time"

	"github.com/go-faster/errors"
)

// GoroutineCountCheck flags goroutine leaks: it fails once the live
// goroutine count passes limit.
func GoroutineCountCheck(limit int) CheckFunc {
	return func(context.Context) error {
		if n := runtime.NumGoroutine(); n > limit {
			return errors.Errorf("%d goroutines, limit %d", n, limit)
		}
		return nil
	}
}

// GCMaxPauseCheck flags memory pressure: it fails when any recorded
// stop-the-world pause exceeded limit.
func GCMaxPauseCheck(limit time.Duration) CheckFunc {
	return func(context.Context) error {
		var stats debug.GCStats
		debug.ReadGCStats(&stats)

		for _, pause := range stats.Pause {
			if pause > limit {
				return errors.Errorf("GC pause %s, limit %s", pause, limit)
			}
		}
		return nil
	}
}
