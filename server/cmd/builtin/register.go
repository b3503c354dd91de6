package builtin

import (
	"errors"

	"github.com/dm-vev/synth/server/cmd"
)

// Register registers the built-in command set of the server passed on set.
func Register(set *cmd.Set, srv serverAdapter) error {
	return errors.Join(
		set.Register(newHelpCommand(set)),
		set.Register(newStatusCommand(srv)),
		set.Register(newChunksCommand()),
		set.Register(newFactsCommand()),
		set.Register(newWatchlistCommand(srv)),
		set.Register(newBehavioursCommand(srv)),
		set.Register(newPluginCommand(srv)),
		set.Register(newGCCommand()),
		set.Register(newAboutCommand(srv)),
		set.Register(newStopCommand(srv)),
	)
}
