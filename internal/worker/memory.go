package worker

import (
	"log"
	"runtime"
	"runtime/debug"
	"time"
)

// maybeFreeMemory samples the heap at the item boundary and forces a
// cleanup when it crossed the configured limit. Embedding payloads are
// large and the allocator holds on to their spans; returning them to the
// OS keeps a long-running backlog from looking like a leak.
func (w *Worker) maybeFreeMemory() {
	if w.cfg.MemoryLimitMB <= 0 {
		return
	}
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	usedMB := int(ms.HeapAlloc / (1024 * 1024))
	if usedMB < w.cfg.MemoryLimitMB {
		return
	}
	log.Printf("[WORKER] heap at %d MB (limit %d), forcing cleanup", usedMB, w.cfg.MemoryLimitMB)
	runtime.GC()
	debug.FreeOSMemory()
	// give the OS a moment to actually reclaim the pages before the
	// next photo starts allocating
	time.Sleep(500 * time.Millisecond)
}
