package world

import (
	"strconv"
	"strings"
)

// Dimension identifies one of the spaces of a host. Column keys, cell keys and
// entity facts are scoped by Dimension.
type Dimension int32

const (
	Overworld Dimension = iota
	Nether
	End
)

// String ...
func (d Dimension) String() string {
	switch d {
	case Overworld:
		return "overworld"
	case Nether:
		return "nether"
	case End:
		return "end"
	}
	return "dimension(" + strconv.Itoa(int(d)) + ")"
}

// ParseDimension parses the name of a dimension as returned by
// Dimension.String. A few common aliases are accepted.
func ParseDimension(name string) (Dimension, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "overworld", "world", "default":
		return Overworld, true
	case "nether", "hell":
		return Nether, true
	case "end", "the_end":
		return End, true
	}
	return 0, false
}
