package debug

// Runtime health sampler, started only with the debug flag. Eight capture
// loops plus the detector's scale workers can hide goroutine or heap leaks
// behind steady CPU use; the sampler makes growth visible in the log stream.

import (
	"log/slog"
	"runtime"
	"runtime/metrics"
	"time"
)

// StartSampler launches a ticker that logs goroutine count and heap usage.
// Stop it by cancelling the process; it holds no resources worth draining.
func StartSampler(interval time.Duration, logger *slog.Logger) {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		samples := []metrics.Sample{{Name: "/sched/goroutines:goroutines"}}
		for range t.C {
			metrics.Read(samples)
			var ms runtime.MemStats
			runtime.ReadMemStats(&ms)
			logger.Info("runtime-sample",
				slog.Uint64("goroutines", samples[0].Value.Uint64()),
				slog.Uint64("heap_alloc", ms.HeapAlloc),
				slog.Uint64("heap_inuse", ms.HeapInuse),
				slog.Uint64("stack_inuse", uint64(ms.StackInuse)),
				slog.Uint64("num_gc", uint64(ms.NumGC)),
			)
		}
	}()
}
