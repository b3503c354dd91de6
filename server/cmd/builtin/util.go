package builtin

import (
	"github.com/dm-vev/synth/server/cmd"
)

// consoleName is the name of the Source of the operator console.
const consoleName = "Console"

// isConsole checks if a command was executed from the operator console.
func isConsole(src cmd.Source) bool {
	return src.Name() == consoleName
}
