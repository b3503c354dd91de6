package plugin

import (
	"time"

	"github.com/dm-vev/synth/server/block"
	"github.com/dm-vev/synth/server/cmd"
	"github.com/dm-vev/synth/server/world"
)

// Host exposes the subset of server functionality required by the plugin
// manager and APIs. It is implemented by *server.Server.
type Host interface {
	// Engine returns the engine events are synthesized by.
	Engine() *world.Engine
	// Registry returns the registry block behaviours are registered on.
	Registry() *block.Registry
	// Commands returns the set commands are registered on.
	Commands() *cmd.Set
	// StartTime reports the time the server started running.
	StartTime() time.Time
}
