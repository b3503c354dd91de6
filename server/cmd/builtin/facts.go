package builtin

import (
	"github.com/dm-vev/synth/server/cmd"
	"github.com/dm-vev/synth/server/world"
	"github.com/google/uuid"
)

type factsCommand struct{}

func newFactsCommand() cmd.Command {
	return cmd.New("facts", "Shows the facts remembered for an entity.", "<uuid>", nil, factsCommand{})
}

func (factsCommand) Run(_ cmd.Source, args []string, o *cmd.Output, e *world.Engine) {
	if len(args) != 1 {
		o.Errorf(cmd.MessageUsage, "/facts <uuid>")
		return
	}
	id, err := uuid.Parse(args[0])
	if err != nil {
		o.Errorf(cmd.MessageParameterInvalid, args[0])
		return
	}
	if e == nil {
		o.Error("engine unavailable")
		return
	}
	f, ok := e.Facts(id)
	if !ok {
		o.Errorf("No facts remembered for %v.", id)
		return
	}
	if ent, ok := e.Entity(id); ok {
		o.Printf("Entity %v (%v)", id, ent.Type())
	} else {
		o.Printf("Entity %v", id)
	}
	if f.Positioned {
		o.Printf("Position: %v %v", f.Dimension, f.Position)
	}
	if f.Riding != uuid.Nil {
		o.Printf("Riding: %v", f.Riding)
	}
	if f.Falling {
		o.Printf("Falling since: %v", f.FallStart)
	}
}
