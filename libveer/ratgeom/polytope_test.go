package ratgeom_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/veering-systems/goveer/libveer/ratgeom"
)

func newSystem(t *testing.T, dim int, cons ...ratgeom.Constraint) *ratgeom.Polytope {
	cs := ratgeom.NewConstraintSystem(dim)
	for _, c := range cons {
		require.NoError(t, cs.Insert(c))
	}
	return ratgeom.NewPolytope(cs)
}

func TestEmptyPolytope(t *testing.T) {
	// x >= 1 and x <= 0
	P := newSystem(t, 1,
		ratgeom.Ge([]int64{1}, 1),
		ratgeom.Ge([]int64{-1}, 0),
	)
	require.False(t, P.Feasible())
	require.Equal(t, -1, P.Dimension())
}

func TestPointPolytope(t *testing.T) {
	// x >= 0, y >= 0, x + y = 0 pins the origin
	P := newSystem(t, 2,
		ratgeom.LowerBound(2, 0, 0),
		ratgeom.LowerBound(2, 1, 0),
		ratgeom.Eq([]int64{1, 1}, 0),
	)
	require.True(t, P.Feasible())
	require.Equal(t, 0, P.Dimension())
}

func TestQuadrantDimension(t *testing.T) {
	P := newSystem(t, 2,
		ratgeom.LowerBound(2, 0, 0),
		ratgeom.LowerBound(2, 1, 0),
	)
	require.Equal(t, 2, P.Dimension())

	x, ok := P.RelativeInteriorPoint()
	require.True(t, ok)
	require.Positive(t, x[0].Sign())
	require.Positive(t, x[1].Sign())
}

func TestImplicitEquality(t *testing.T) {
	// x + y >= 0 and x + y <= 0 squeeze to a line
	P := newSystem(t, 2,
		ratgeom.Ge([]int64{1, 1}, 0),
		ratgeom.Ge([]int64{-1, -1}, 0),
	)
	require.Equal(t, 1, P.Dimension())
}

func TestUnboundedCone(t *testing.T) {
	// dim of {x >= 0} in R^3 with one equality
	P := newSystem(t, 3,
		ratgeom.LowerBound(3, 0, 0),
		ratgeom.LowerBound(3, 1, 0),
		ratgeom.LowerBound(3, 2, 0),
		ratgeom.Eq([]int64{1, 1, -1}, 0),
	)
	require.Equal(t, 2, P.Dimension())
}

func TestWithConstraints(t *testing.T) {
	P := newSystem(t, 2,
		ratgeom.LowerBound(2, 0, 0),
		ratgeom.LowerBound(2, 1, 0),
	)
	Q, err := P.WithConstraints(ratgeom.Eq([]int64{1, 0}, 0))
	require.NoError(t, err)
	require.Equal(t, 1, Q.Dimension())
	// P is untouched
	require.Equal(t, 2, P.Dimension())
}

func TestIsFacetOf(t *testing.T) {
	P := newSystem(t, 2,
		ratgeom.LowerBound(2, 0, 0),
		ratgeom.LowerBound(2, 1, 0),
	)
	facet, err := P.IsFacetOf(ratgeom.Ge([]int64{1, 0}, 0))
	require.NoError(t, err)
	require.True(t, facet)

	// x + y = 0 only touches the apex
	facet, err = P.IsFacetOf(ratgeom.Ge([]int64{1, 1}, 0))
	require.NoError(t, err)
	require.False(t, facet)
}

func TestCanonicalBytesEquivalence(t *testing.T) {
	// The same quadrant with a redundant inequality and scaled rows.
	P := newSystem(t, 2,
		ratgeom.LowerBound(2, 0, 0),
		ratgeom.LowerBound(2, 1, 0),
	)
	Q := newSystem(t, 2,
		ratgeom.Ge([]int64{3, 0}, 0),
		ratgeom.Ge([]int64{0, 2}, 0),
		ratgeom.Ge([]int64{1, 1}, 0), // redundant
	)
	pb, err := P.CanonicalBytes()
	require.NoError(t, err)
	qb, err := Q.CanonicalBytes()
	require.NoError(t, err)
	require.Equal(t, pb, qb)
}

func TestCanonicalBytesDistinguish(t *testing.T) {
	P := newSystem(t, 2,
		ratgeom.LowerBound(2, 0, 0),
		ratgeom.LowerBound(2, 1, 0),
	)
	Q := newSystem(t, 2,
		ratgeom.LowerBound(2, 0, 0),
		ratgeom.Ge([]int64{-1, 1}, 0),
	)
	pb, err := P.CanonicalBytes()
	require.NoError(t, err)
	qb, err := Q.CanonicalBytes()
	require.NoError(t, err)
	require.NotEqual(t, pb, qb)
}

func TestCanonicalBytesEmpty(t *testing.T) {
	P := newSystem(t, 1,
		ratgeom.Ge([]int64{1}, 1),
		ratgeom.Ge([]int64{-1}, 0),
	)
	b, err := P.CanonicalBytes()
	require.NoError(t, err)
	require.NotEmpty(t, b)
}
