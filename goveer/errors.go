package goveer

import (
	"github.com/pkg/errors"
)

var (
	ErrBadColour          = errors.New("unrecognized colour")
	ErrBadTriangulation   = errors.New("invalid triangulation")
	ErrBadColouring       = errors.New("invalid colouring")
	ErrBadPermutation     = errors.New("invalid permutation")
	ErrBadFlipString      = errors.New("invalid flip string")
	ErrNotFlippable       = errors.New("edge is not flippable")
	ErrImmutable          = errors.New("object is immutable")
	ErrComposition        = errors.New("composition undefined: end does not match start")
	ErrNotClosed          = errors.New("sequence is not closed")
	ErrNegativeExponent   = errors.New("negative exponent")
	ErrUndeterminedColour = errors.New("undetermined colour")
	ErrNotGeometric       = errors.New("triangulation is not geometric")
	ErrBadSubspace        = errors.New("subspace rows do not satisfy the switch conditions")
	ErrNotCanonical       = errors.New("triangulation not in canonical form")
	ErrSingularMatrix     = errors.New("matrix is singular")
	ErrBadCatalogParam    = errors.New("bad catalog parameter")
	ErrCatalogClosed      = errors.New("catalog is closed")
	ErrBadEncoding        = errors.New("bad sequence encoding")
)
