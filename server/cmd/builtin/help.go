package builtin

import (
	"strings"

	"github.com/dm-vev/synth/server/cmd"
	"github.com/dm-vev/synth/server/world"
)

type helpCommand struct {
	set *cmd.Set
}

func newHelpCommand(set *cmd.Set) cmd.Command {
	return cmd.New("help", "Shows available commands and their usage.", "[command]", []string{"?"}, helpCommand{set: set})
}

func (h helpCommand) Run(src cmd.Source, args []string, o *cmd.Output, _ *world.Engine) {
	if len(args) > 0 {
		name := strings.ToLower(strings.TrimPrefix(args[0], "/"))
		command, found := h.set.ByAlias(name)
		if !found || !command.Allowed(src) {
			o.Errorf(cmd.MessageUnknown, name)
			return
		}
		if desc := command.Description(); desc != "" {
			o.Print(desc)
		}
		o.Printf(cmd.MessageUsage, command.Usage())
		return
	}

	var commands []cmd.Command
	for _, command := range h.set.Commands() {
		if command.Allowed(src) {
			commands = append(commands, command)
		}
	}
	if len(commands) == 0 {
		o.Print("No commands available.")
		return
	}
	o.Printf("Available commands (%d):", len(commands))
	for _, command := range commands {
		line := "/" + command.Name()
		if desc := command.Description(); desc != "" {
			line += " - " + desc
		}
		o.Print(line)
	}
}
