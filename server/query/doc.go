// Package query implements a UDP status responder speaking the GameSpy4 query
// protocol used by Minecraft servers.
//
// A Listener answers handshake and full status requests with the Data
// returned by a ProviderFunc, so that standard query clients can read the
// state of a running engine: the current tick, the tracked columns and
// entities and the registered block behaviours.
package query
