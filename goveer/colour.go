package goveer

import (
	"github.com/pkg/errors"
)

// Colour labels an edge of a veering triangulation by the slope class of its
// geodesic representative:
//
//	Red    positive slope
//	Blue   negative slope
//	Purple horizontal -- stands in for an undetermined Red/Blue on a
//	       forward-flippable edge of a reduced triangulation
//	Green  vertical -- the backward counterpart of Purple
type Colour uint8

const (
	Red    Colour = 1
	Blue   Colour = 2
	Purple Colour = 4
	Green  Colour = 8
)

// IsConcrete returns true for the two determined colours.
func (c Colour) IsConcrete() bool {
	return c == Red || c == Blue
}

// Opposite maps Red <-> Blue and Purple <-> Green.
func (c Colour) Opposite() Colour {
	switch c {
	case Red:
		return Blue
	case Blue:
		return Red
	case Purple:
		return Green
	case Green:
		return Purple
	}
	return 0
}

func (c Colour) Rune() rune {
	switch c {
	case Red:
		return 'R'
	case Blue:
		return 'B'
	case Purple:
		return 'P'
	case Green:
		return 'G'
	}
	return '?'
}

func (c Colour) String() string {
	return string(c.Rune())
}

// ColourFromRune parses a single colour character.
func ColourFromRune(r rune) (Colour, error) {
	switch r {
	case 'R':
		return Red, nil
	case 'B':
		return Blue, nil
	case 'P':
		return Purple, nil
	case 'G':
		return Green, nil
	}
	return 0, errors.Wrapf(ErrBadColour, "%q", r)
}

// Slope selects which train-track direction a measurement refers to.
type Slope int8

const (
	Vertical   Slope = 1
	Horizontal Slope = 2
)

func (s Slope) String() string {
	switch s {
	case Vertical:
		return "vertical"
	case Horizontal:
		return "horizontal"
	}
	return "slope(?)"
}
