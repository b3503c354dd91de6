package builtin

import (
	"strings"

	"github.com/dm-vev/synth/server/cmd"
	"github.com/dm-vev/synth/server/world"
)

type behavioursCommand struct {
	srv serverAdapter
}

func newBehavioursCommand(srv serverAdapter) cmd.Command {
	return cmd.New("behaviours", "Lists or removes registered block behaviours.", "[list|remove <block>]", []string{"behaviors"}, behavioursCommand{srv: srv})
}

func (c behavioursCommand) Run(_ cmd.Source, args []string, o *cmd.Output, _ *world.Engine) {
	r := c.srv.Registry()
	if r == nil {
		o.Error("block registry unavailable")
		return
	}
	sub := "list"
	if len(args) > 0 {
		sub = strings.ToLower(args[0])
	}
	switch sub {
	case "list":
		names := r.Names()
		if len(names) == 0 {
			o.Print("No block behaviours registered.")
			return
		}
		o.Printf("Block behaviours (%d):", len(names))
		for _, name := range names {
			o.Print("- " + name)
		}
	case "remove":
		if len(args) != 2 {
			o.Errorf(cmd.MessageUsage, "/behaviours remove <block>")
			return
		}
		if !r.Unregister(args[1]) {
			o.Errorf("No behaviour registered for %s.", args[1])
			return
		}
		o.Printf("Removed the behaviour of %s.", args[1])
	default:
		o.Errorf(cmd.MessageUsage, "/behaviours [list|remove <block>]")
	}
}

func (behavioursCommand) Allow(src cmd.Source) bool {
	return isConsole(src)
}
