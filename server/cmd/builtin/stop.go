package builtin

import (
	"github.com/dm-vev/synth/server/cmd"
	"github.com/dm-vev/synth/server/world"
)

type stopCommand struct {
	srv serverAdapter
}

func newStopCommand(srv serverAdapter) cmd.Command {
	return cmd.New("stop", "Stops the server.", "", nil, stopCommand{srv: srv})
}

// Run stops the server. The tick in progress completes before the engine
// returns.
func (s stopCommand) Run(_ cmd.Source, _ []string, o *cmd.Output, e *world.Engine) {
	if e != nil {
		o.Printf("Stopping server at tick %d...", e.CurrentTick())
	} else {
		o.Print("Stopping server...")
	}
	s.srv.Stop()
}

func (stopCommand) Allow(src cmd.Source) bool {
	return isConsole(src)
}
