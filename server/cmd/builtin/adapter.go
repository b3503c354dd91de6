package builtin

import (
	"time"

	"github.com/dm-vev/synth/server"
	"github.com/dm-vev/synth/server/block"
	"github.com/dm-vev/synth/server/plugin"
)

type serverAdapter interface {
	Registry() *block.Registry
	Plugins() *plugin.Manager
	Watchlist() *server.Watchlist
	StartTime() time.Time
	Stop()
}
