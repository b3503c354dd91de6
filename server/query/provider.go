package query

import (
	"runtime/debug"
	"sync"
)

// ProviderFunc produces the Data answered to query clients. host and port are
// the address the Listener is bound to.
type ProviderFunc func(host string, port int) Data

// StaticProvider returns a ProviderFunc that always answers d.
func StaticProvider(d Data) ProviderFunc {
	return func(string, int) Data { return cloneData(d) }
}

// buildVersion returns the module version the binary was built from, or "dev".
var buildVersion = sync.OnceValue(func() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return "dev"
})

func engineLabel() string {
	return "Synth (" + buildVersion() + ")"
}
