package builtin

import (
	"github.com/dm-vev/synth/server/cmd"
	"github.com/dm-vev/synth/server/world"
)

type statusCommand struct {
	srv serverAdapter
	cpu *cpuSampler
}

func newStatusCommand(srv serverAdapter) cmd.Command {
	return cmd.New("status", "Displays engine performance statistics.", "", []string{"tps"}, statusCommand{srv: srv, cpu: &cpuSampler{}})
}

func (s statusCommand) Run(_ cmd.Source, _ []string, o *cmd.Output, e *world.Engine) {
	if e == nil {
		o.Error("engine unavailable")
		return
	}
	printUptime(o, s.srv.StartTime())

	m := e.Metrics()
	o.Printf("Tick: %d | Chunks: %d | Entities: %d | Callbacks: %d", e.CurrentTick(), m.TrackedChunks, m.TrackedEntities, m.PendingCallbacks)
	o.Printf("Events: %d dispatched, %d handler panics", sum(m.Dispatched), sum(m.Panics))
	o.Printf("Callbacks: %d fired, %d discarded, %d panicked | Fact errors: %d", m.FiredCallbacks, m.DiscardedCallbacks, m.CallbackPanics, m.FactErrors)

	if tps := e.TPS(); tps > 0 {
		o.Printf("TPS (avg): %.2f", tps)
	} else {
		o.Print("TPS (avg): collecting samples...")
	}
	s.cpu.report(o)
	printMemory(o)
}

// sum adds up the counters of a metrics map.
func sum[K comparable](counters map[K]uint64) (n uint64) {
	for _, c := range counters {
		n += c
	}
	return n
}
