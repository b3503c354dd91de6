package query

import (
	"cmp"
	"slices"
	"strconv"
	"strings"
)

// Data is the information answered to query clients. Listener turns it into
// the key/value pairs of a full status response.
type Data struct {
	// HostName is the public name of the engine instance.
	HostName string
	// MOTD is the optional secondary name shown in some clients.
	MOTD string
	// Engine identifies the software running the server. It defaults to
	// "Synth" followed by the module version.
	Engine string
	// Version is the version advertised to clients. When empty the version of
	// the main module is used.
	Version string
	// HostIP is the textual representation of the listening IP address.
	HostIP string
	// HostPort is the listening port number.
	HostPort int
	// Tick is the amount of ticks completed by the engine.
	Tick int64
	// TPS is the measured ticks per second of the engine.
	TPS float64
	// Chunks is the amount of columns tracked by the engine.
	Chunks int
	// Entities is the amount of entities tracked by the engine. It is also
	// reported as the player count, since query clients expect one.
	Entities int
	// Callbacks is the amount of scheduled callbacks pending.
	Callbacks int
	// Plugins lists the names of the plugins enabled.
	Plugins []string
	// Behaviours lists the blocks that have a behaviour registered.
	Behaviours []string
	// Watched lists the entity types whose events are logged.
	Watched []string
	// GameType describes the type of game. Defaults to "SMP" when empty.
	GameType string
	// GameID is the identifier of the title shown to clients. Defaults to
	// "MINECRAFT" when empty.
	GameID string
}

// keyValue is a single entry of the server information section of a full
// status response.
type keyValue struct {
	key, value string
}

// canonicalHost returns host, or the unspecified address if host is empty.
func canonicalHost(host string) string {
	return cmp.Or(host, "0.0.0.0")
}

// applyDefaults fills out the fields of d that query clients expect to be set.
func (d *Data) applyDefaults() {
	d.HostName = cmp.Or(d.HostName, "Synth")
	d.HostIP = canonicalHost(d.HostIP)
	d.Engine = cmp.Or(d.Engine, engineLabel())
	d.Version = cmp.Or(d.Version, buildVersion())
	d.GameType = cmp.Or(d.GameType, "SMP")
	d.GameID = cmp.Or(d.GameID, "MINECRAFT")
	d.HostPort = int(uint16(d.HostPort))
}

// keyValues returns the entries of the server information section in the
// order they are written. The entity count doubles as player count.
func (d Data) keyValues() []keyValue {
	entities := strconv.Itoa(d.Entities)
	values := []keyValue{
		{"hostname", d.HostName},
		{"gametype", d.GameType},
		{"game_id", d.GameID},
		{"version", d.Version},
		{"server_engine", d.Engine},
		{"numplayers", entities},
		{"maxplayers", entities},
		{"hostport", strconv.Itoa(d.HostPort)},
		{"hostip", d.HostIP},
	}
	if d.MOTD != "" {
		values = append(values, keyValue{"motd", d.MOTD})
	}
	values = append(values,
		keyValue{"plugins", strings.Join(d.Plugins, "; ")},
		keyValue{"behaviours", strings.Join(d.Behaviours, "; ")},
		keyValue{"tick", strconv.FormatInt(d.Tick, 10)},
		keyValue{"tps", strconv.FormatFloat(d.TPS, 'f', 2, 64)},
		keyValue{"chunks", strconv.Itoa(d.Chunks)},
		keyValue{"entities", entities},
		keyValue{"callbacks", strconv.Itoa(d.Callbacks)},
	)
	if len(d.Watched) > 0 {
		values = append(values, keyValue{"watched", strings.Join(d.Watched, ", ")})
	}
	return values
}

// defaultData returns the Data answered before any provider produced Data.
func defaultData(host string, port int) Data {
	d := Data{HostIP: host, HostPort: port}
	d.applyDefaults()
	return d
}

// cloneData copies d so that the slices of the copy are not shared.
func cloneData(d Data) Data {
	d.Plugins = slices.Clone(d.Plugins)
	d.Behaviours = slices.Clone(d.Behaviours)
	d.Watched = slices.Clone(d.Watched)
	return d
}
