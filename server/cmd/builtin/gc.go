package builtin

import (
	"runtime"

	"github.com/dm-vev/synth/server/cmd"
	"github.com/dm-vev/synth/server/world"
)

type gcCommand struct{}

func newGCCommand() cmd.Command {
	return cmd.New("gc", "Runs a garbage collection cycle and reports the heap freed.", "", nil, gcCommand{})
}

func (gcCommand) Run(_ cmd.Source, _ []string, o *cmd.Output, _ *world.Engine) {
	heap := func() uint64 {
		var mem runtime.MemStats
		runtime.ReadMemStats(&mem)
		return mem.HeapAlloc
	}
	before := heap()
	runtime.GC()
	after := heap()

	var freed uint64
	if before > after {
		freed = before - after
	}
	o.Printf("Freed %.2f MiB of heap memory.", bytesToMiB(freed))
	printMemory(o)
}

func (gcCommand) Allow(src cmd.Source) bool {
	return isConsole(src)
}
