package world

import (
	"slices"
	"strings"

	"github.com/dm-vev/synth/server/event"
	"github.com/segmentio/fasthash/fnv1a"
)

// EntityQuery selects entities by type and dimension. Type names are compared
// case-insensitively. An empty query matches every entity.
type EntityQuery struct {
	// Types, if not empty, holds the only entity types matched.
	Types []string
	// ExcludeTypes holds entity types never matched, even if in Types.
	ExcludeTypes []string
	// Dimensions, if not empty, holds the only dimensions matched.
	Dimensions []Dimension
}

// compiledQuery is an EntityQuery with its type names hashed.
type compiledQuery struct {
	types, exclude map[uint64]struct{}
	dims           []Dimension
}

func typeSet(names []string) map[uint64]struct{} {
	if len(names) == 0 {
		return nil
	}
	m := make(map[uint64]struct{}, len(names))
	for _, name := range names {
		m[typeHash(name)] = struct{}{}
	}
	return m
}

func typeHash(name string) uint64 {
	return fnv1a.HashString64(strings.ToLower(name))
}

func (q EntityQuery) compile() compiledQuery {
	return compiledQuery{types: typeSet(q.Types), exclude: typeSet(q.ExcludeTypes), dims: slices.Clone(q.Dimensions)}
}

func (c compiledQuery) matches(e Entity) bool {
	if e == nil {
		return false
	}
	if len(c.dims) > 0 && !slices.Contains(c.dims, e.Dimension()) {
		return false
	}
	if c.types == nil && c.exclude == nil {
		return true
	}
	h := typeHash(e.Type())
	if _, ok := c.exclude[h]; ok {
		return false
	}
	if c.types == nil {
		return true
	}
	_, ok := c.types[h]
	return ok
}

// Matches reports if the entity passed is selected by the query.
func (q EntityQuery) Matches(e Entity) bool {
	return q.compile().matches(e)
}

// MatchEntity returns a Filter that accepts events of entities selected by q.
// The query is copied, so changing q afterwards does not affect the filter.
func MatchEntity[E EntityEvent](q EntityQuery) event.Filter[E] {
	c := q.compile()
	return func(ev E) bool {
		return c.matches(ev.Entity())
	}
}
