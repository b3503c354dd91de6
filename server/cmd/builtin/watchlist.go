package builtin

import (
	"errors"
	"strings"

	"github.com/dm-vev/synth/server"
	"github.com/dm-vev/synth/server/cmd"
	"github.com/dm-vev/synth/server/world"
)

const watchlistUsage = "<watch|ignore|unwatch> <type> | list"

type watchlistCommand struct {
	srv serverAdapter
}

func newWatchlistCommand(srv serverAdapter) cmd.Command {
	return cmd.New("watchlist", "Manages the entity types whose events are logged.", watchlistUsage, []string{"watch"}, watchlistCommand{srv: srv})
}

func (c watchlistCommand) Run(_ cmd.Source, args []string, o *cmd.Output, _ *world.Engine) {
	w := c.srv.Watchlist()
	if len(args) == 0 || strings.EqualFold(args[0], "list") {
		c.list(w, o)
		return
	}
	if len(args) != 2 {
		o.Errorf(cmd.MessageUsage, "/watchlist "+watchlistUsage)
		return
	}
	typ := args[1]
	var (
		changed bool
		err     error
		done    string
		noop    string
	)
	switch strings.ToLower(args[0]) {
	case "watch", "add":
		changed, err = w.Watch(typ)
		done, noop = "Now watching %s.", "%s is already watched."
	case "ignore":
		changed, err = w.Ignore(typ)
		done, noop = "Now ignoring %s.", "%s is already ignored."
	case "unwatch", "remove":
		changed, err = w.Unwatch(typ)
		done, noop = "Removed %s from the watchlist.", "%s is not on the watchlist."
	default:
		o.Errorf(cmd.MessageUsage, "/watchlist "+watchlistUsage)
		return
	}
	if err != nil {
		if errors.Is(err, server.ErrWatchlistInvalidType) {
			o.Errorf(cmd.MessageParameterInvalid, typ)
			return
		}
		o.Error(err)
		return
	}
	if changed {
		o.Printf(done, typ)
		return
	}
	o.Printf(noop, typ)
}

func (watchlistCommand) list(w *server.Watchlist, o *cmd.Output) {
	if w == nil {
		o.Error(server.ErrWatchlistUnavailable)
		return
	}
	q := w.Query()
	if len(q.Types) == 0 {
		o.Print("Watching all entity types.")
	} else {
		o.Printf("Watching %d type(s): %s", len(q.Types), strings.Join(q.Types, ", "))
	}
	if len(q.ExcludeTypes) != 0 {
		o.Printf("Ignoring %d type(s): %s", len(q.ExcludeTypes), strings.Join(q.ExcludeTypes, ", "))
	}
}

func (watchlistCommand) Allow(src cmd.Source) bool {
	return isConsole(src)
}
