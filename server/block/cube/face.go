package cube

const (
	// FaceDown represents the bottom face of a block.
	FaceDown Face = iota
	// FaceUp represents the top face of a block.
	FaceUp
	// FaceNorth represents the north face of a block.
	FaceNorth
	// FaceSouth represents the south face of a block.
	FaceSouth
	// FaceWest represents the west face of the block.
	FaceWest
	// FaceEast represents the east face of the block.
	FaceEast
)

// Face represents the face of a block or entity.
type Face int

// Opposite returns the opposite face. FaceDown will return FaceUp, FaceNorth will return FaceSouth and
// FaceWest will return FaceEast, and vice versa.
func (f Face) Opposite() Face {
	switch f {
	default:
		return FaceUp
	case FaceUp:
		return FaceDown
	case FaceNorth:
		return FaceSouth
	case FaceSouth:
		return FaceNorth
	case FaceWest:
		return FaceEast
	case FaceEast:
		return FaceWest
	}
}

// String returns the Face as a string.
func (f Face) String() string {
	switch f {
	case FaceUp:
		return "up"
	case FaceDown:
		return "down"
	case FaceNorth:
		return "north"
	case FaceSouth:
		return "south"
	case FaceWest:
		return "west"
	case FaceEast:
		return "east"
	}
	panic("invalid face")
}

// Faces returns a list of all faces, starting with down, then up, then north to west.
func Faces() []Face {
	return faces[:]
}

var faces = [...]Face{FaceDown, FaceUp, FaceNorth, FaceSouth, FaceWest, FaceEast}
