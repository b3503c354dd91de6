package builtin

import (
	"errors"
	"strings"

	"github.com/dm-vev/synth/server/cmd"
	"github.com/dm-vev/synth/server/plugin"
	"github.com/dm-vev/synth/server/world"
)

const pluginUsage = "[list] | <enable <file>|disable <name>|reload <name>>"

type pluginCommand struct {
	srv serverAdapter
}

func newPluginCommand(srv serverAdapter) cmd.Command {
	return cmd.New("plugin", "Manages plugins.", pluginUsage, []string{"plugins", "pl"}, pluginCommand{srv: srv})
}

func (c pluginCommand) Run(_ cmd.Source, args []string, o *cmd.Output, _ *world.Engine) {
	m := c.srv.Plugins()
	if len(args) == 0 || strings.EqualFold(args[0], "list") {
		infos := m.Infos()
		if len(infos) == 0 {
			o.Print("No plugins enabled.")
			return
		}
		o.Printf("Plugins (%d):", len(infos))
		for _, info := range infos {
			line := "- " + info.Name
			if info.Version != "" {
				line += " v" + info.Version
			}
			if info.Path != "" {
				line += " (" + info.Path + ")"
			}
			o.Print(line)
		}
		return
	}
	if len(args) != 2 {
		o.Errorf(cmd.MessageUsage, "/plugin "+pluginUsage)
		return
	}

	var (
		info plugin.Info
		err  error
		verb string
	)
	switch strings.ToLower(args[0]) {
	case "enable", "load":
		info, err = m.Enable(args[1])
		verb = "Enabled"
	case "disable", "unload":
		info, err = m.Disable(args[1])
		verb = "Disabled"
	case "reload":
		info, err = m.Reload(args[1])
		verb = "Reloaded"
	default:
		o.Errorf(cmd.MessageUsage, "/plugin "+pluginUsage)
		return
	}
	switch {
	case errors.Is(err, plugin.ErrNotFound):
		o.Errorf("Plugin %s is not enabled.", args[1])
	case errors.Is(err, plugin.ErrAlreadyLoaded):
		o.Errorf("Plugin %s is already enabled.", info.Name)
	case err != nil:
		o.Error(err)
	default:
		o.Printf("%s plugin %s.", verb, info.Name)
	}
}

func (pluginCommand) Allow(src cmd.Source) bool {
	return isConsole(src)
}
