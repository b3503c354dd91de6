package server

import (
	"github.com/dm-vev/synth/server/query"
)

// queryData assembles the Data answered by the query responder. It only reads
// state that is safe to access while the engine ticks.
func (srv *Server) queryData(host string, port int) query.Data {
	m := srv.engine.Metrics()
	var plugins []string
	for _, info := range srv.plugins.Infos() {
		plugins = append(plugins, info.Name)
	}
	name := srv.conf.Name
	if name == "" {
		name = "Synth"
	}
	return query.Data{
		HostName:   name,
		HostIP:     host,
		HostPort:   port,
		Tick:       int64(m.Ticks),
		TPS:        srv.engine.TPS(),
		Chunks:     m.TrackedChunks,
		Entities:   m.TrackedEntities,
		Callbacks:  m.PendingCallbacks,
		Plugins:    plugins,
		Behaviours: srv.registry.Names(),
		Watched:    srv.Watchlist().Query().Types,
	}
}
