//go:build windows

package debug

// Working-set logger for the debug flag. The frame pool keeps RGBA buffers
// alive between ticks; RSS alongside heap stats separates pooled frames
// from native leaks in the capture path.

import (
	"log/slog"
	"runtime"
	"time"
	"unsafe"

	"golang.org/x/sys/windows"
)

// memoryCounters matches PROCESS_MEMORY_COUNTERS from psapi.
type memoryCounters struct {
	cb                         uint32
	PageFaultCount             uint32
	PeakWorkingSetSize         uintptr
	WorkingSetSize             uintptr
	QuotaPeakPagedPoolUsage    uintptr
	QuotaPagedPoolUsage        uintptr
	QuotaPeakNonPagedPoolUsage uintptr
	QuotaNonPagedPoolUsage     uintptr
	PagefileUsage              uintptr
	PeakPagefileUsage          uintptr
}

var (
	modPsapi                 = windows.NewLazySystemDLL("psapi.dll")
	procGetProcessMemoryInfo = modPsapi.NewProc("GetProcessMemoryInfo")
)

// StartWorkingSetLogger logs the process working set every interval.
// Query failures are logged once, then suppressed.
func StartWorkingSetLogger(interval time.Duration, logger *slog.Logger) {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		var errLogged bool
		for range t.C {
			var ms runtime.MemStats
			runtime.ReadMemStats(&ms)
			pmc := memoryCounters{cb: uint32(unsafe.Sizeof(memoryCounters{}))}
			r1, _, err := procGetProcessMemoryInfo.Call(
				uintptr(windows.CurrentProcess()),
				uintptr(unsafe.Pointer(&pmc)),
				uintptr(pmc.cb))
			if r1 == 0 {
				if !errLogged {
					logger.Warn("working set query failed", slog.String("err", err.Error()))
					errLogged = true
				}
				continue
			}
			logger.Info("working-set",
				slog.Uint64("rss", uint64(pmc.WorkingSetSize)),
				slog.Uint64("heap_sys", ms.HeapSys),
				slog.Uint64("heap_idle", ms.HeapIdle),
			)
		}
	}()
}
