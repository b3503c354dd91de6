package builtin

import (
	"runtime"
	"runtime/debug"

	"github.com/dm-vev/synth/server/cmd"
	"github.com/dm-vev/synth/server/world"
)

type aboutCommand struct {
	srv serverAdapter
}

func newAboutCommand(srv serverAdapter) cmd.Command {
	return cmd.New("about", "Displays engine and build information.", "", []string{"version"}, aboutCommand{srv: srv})
}

func (a aboutCommand) Run(_ cmd.Source, _ []string, o *cmd.Output, _ *world.Engine) {
	o.Print("Synth event synthesis engine")
	goVersion, module, revision := runtime.Version(), "", ""
	if info, ok := debug.ReadBuildInfo(); ok {
		if info.GoVersion != "" {
			goVersion = info.GoVersion
		}
		if info.Main.Version != "" {
			module = info.Main.Path + " " + info.Main.Version
		}
		for _, setting := range info.Settings {
			if setting.Key == "vcs.revision" {
				revision = setting.Value
			}
		}
	}
	o.Printf("Go runtime: %s", goVersion)
	if module != "" {
		o.Printf("Module: %s", module)
	}
	if revision != "" {
		o.Printf("Commit: %s", revision)
	}
	printUptime(o, a.srv.StartTime())
}
