package cmd

import (
	"strings"

	"github.com/dm-vev/synth/server/world"
)

// ExecuteLine executes a command line on behalf of the Source passed. The
// commandLine is expected to include the leading slash. If the command cannot
// be found, or the Source is not allowed to run it, an error is sent back to
// the Source. ExecuteLine must be called on the goroutine driving e, for
// example from a function passed to world.Engine.Exec.
func ExecuteLine(set *Set, source Source, commandLine string, e *world.Engine) {
	if source == nil {
		panic("cmd.ExecuteLine: source must not be nil")
	}
	args := strings.Fields(commandLine)
	if len(args) == 0 {
		return
	}
	name, ok := strings.CutPrefix(args[0], "/")
	if !ok || name == "" {
		return
	}

	command, ok := set.ByAlias(name)
	if !ok || !command.Allowed(source) {
		output := &Output{}
		output.Errorf(MessageUnknown, name)
		source.SendCommandOutput(output)
		return
	}
	command.Execute(args[1:], source, e)
}
