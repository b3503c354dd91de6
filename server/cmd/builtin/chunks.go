package builtin

import (
	"strconv"

	"github.com/dm-vev/synth/server/cmd"
	"github.com/dm-vev/synth/server/world"
)

// chunksListLimit is the maximum amount of columns listed by the chunks
// command.
const chunksListLimit = 32

type chunksCommand struct{}

func newChunksCommand() cmd.Command {
	return cmd.New("chunks", "Lists the columns tracked by the engine.", "[dimension]", nil, chunksCommand{})
}

func (chunksCommand) Run(_ cmd.Source, args []string, o *cmd.Output, e *world.Engine) {
	if e == nil {
		o.Error("engine unavailable")
		return
	}
	keys := e.TrackedChunks()
	if len(args) > 0 {
		dim, ok := world.ParseDimension(args[0])
		if !ok {
			o.Errorf(cmd.MessageParameterInvalid, args[0])
			return
		}
		filtered := keys[:0]
		for _, k := range keys {
			if k.Dim == dim {
				filtered = append(filtered, k)
			}
		}
		keys = filtered
	}

	perDim := map[world.Dimension]int{}
	for _, k := range keys {
		perDim[k.Dim]++
	}
	o.Printf("Tracked columns: %d", len(keys))
	for _, dim := range []world.Dimension{world.Overworld, world.Nether, world.End} {
		if n := perDim[dim]; n > 0 {
			o.Printf("- %v: %d", dim, n)
		}
	}
	for i, k := range keys {
		if i == chunksListLimit {
			o.Print("... and " + strconv.Itoa(len(keys)-i) + " more")
			break
		}
		o.Print(k.String())
	}
}
