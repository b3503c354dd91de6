package builtin

import (
	"fmt"
	"runtime"
	"runtime/metrics"
	"sync"
	"time"

	"github.com/dm-vev/synth/server/cmd"
)

// cpuSampler measures the CPU time used by the process between two calls to
// report.
type cpuSampler struct {
	mu   sync.Mutex
	last time.Time
	used float64
}

// load returns the average load per core since the previous call in percent.
// It returns false on the first call.
func (c *cpuSampler) load() (float64, bool) {
	samples := []metrics.Sample{{Name: "/sched/cpu_seconds_total"}}
	metrics.Read(samples)
	if samples[0].Value.Kind() != metrics.KindFloat64 {
		return 0, false
	}
	total, now := samples[0].Value.Float64(), time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()
	prev, prevUsed := c.last, c.used
	c.last, c.used = now, total

	elapsed := now.Sub(prev).Seconds()
	if prev.IsZero() || elapsed <= 0 || total < prevUsed {
		return 0, false
	}
	usage := (total - prevUsed) / elapsed / float64(runtime.NumCPU()) * 100
	return min(max(usage, 0), 100), true
}

func (c *cpuSampler) report(o *cmd.Output) {
	if load, ok := c.load(); ok {
		o.Printf("CPU load (per core): %.2f%% across %d cores", load, runtime.NumCPU())
		return
	}
	o.Print("CPU load: collecting baseline, try again shortly.")
}

// printMemory prints the heap usage and garbage collector state of the process.
func printMemory(o *cmd.Output) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	lastGC := "never"
	if mem.LastGC != 0 {
		lastGC = fmt.Sprintf("%s ago", time.Since(time.Unix(0, int64(mem.LastGC))).Round(time.Second))
	}
	o.Printf("Memory: %.2f MiB heap used / %.2f MiB reserved", bytesToMiB(mem.HeapAlloc), bytesToMiB(mem.HeapSys))
	o.Printf("Goroutines: %d | GOMAXPROCS: %d | GC cycles: %d | Last GC: %s", runtime.NumGoroutine(), runtime.GOMAXPROCS(0), mem.NumGC, lastGC)
}

func printUptime(o *cmd.Output, start time.Time) {
	if !start.IsZero() {
		o.Printf("Uptime: %s", time.Since(start).Round(time.Second))
	}
}

func bytesToMiB(v uint64) float64 {
	return float64(v) / (1 << 20)
}
