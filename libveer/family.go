package libveer

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/emirpasic/gods/trees/redblacktree"
	"github.com/emirpasic/gods/utils"
	"github.com/pkg/errors"

	"github.com/veering-systems/goveer/goveer"

	"github.com/veering-systems/goveer/libveer/ratgeom"
	"github.com/veering-systems/goveer/libveer/ratmat"
)

func ratAdd(a, b *big.Rat) *big.Rat { return new(big.Rat).Add(a, b) }
func ratSub(a, b *big.Rat) *big.Rat { return new(big.Rat).Sub(a, b) }

// LinearFamily is a veering triangulation together with an invariant
// rational subspace of its edge coordinates.  The subspace rows satisfy
// the vertical switch conditions and are kept in canonical echelon form
// across flips, relabellings and rotation.
type LinearFamily struct {
	*VeeringTriangulation
	subspace *ratmat.Matrix // rows span the family, always echelonized
}

// NewLinearFamily attaches the row span of subspace to a copy of V.
func NewLinearFamily(V *VeeringTriangulation, subspace *ratmat.Matrix) (*LinearFamily, error) {
	L := &LinearFamily{
		VeeringTriangulation: V.Copy(true),
		subspace:             subspace.Clone(),
	}
	L.subspace.Echelonize()
	L.subspace.TrimZeroRows()
	if err := L.Check(); err != nil {
		return nil, err
	}
	return L, nil
}

// NewLinearFamilyFromInts is NewLinearFamily with integer row data.
func NewLinearFamilyFromInts(V *VeeringTriangulation, rows [][]int64) (*LinearFamily, error) {
	return NewLinearFamily(V, ratmat.FromInts(rows))
}

// AsLinearFamily returns the full linear family of V: its subspace is
// the complete solution space of the vertical switch conditions.
func (V *VeeringTriangulation) AsLinearFamily() (*LinearFamily, error) {
	sc, err := V.SwitchConditions(goveer.Vertical)
	if err != nil {
		return nil, err
	}
	return NewLinearFamily(V, sc.RightKernel())
}

// Check verifies that the subspace is compatible with the triangulation.
func (L *LinearFamily) Check() error {
	if err := L.VeeringTriangulation.Check(); err != nil {
		return err
	}
	ne := L.NumEdges()
	if L.subspace.NumCols() != ne {
		return errors.Wrapf(goveer.ErrBadSubspace, "subspace has %d columns, expected %d", L.subspace.NumCols(), ne)
	}
	sc, err := L.SwitchConditions(goveer.Vertical)
	if err != nil {
		return err
	}
	for r := 0; r < L.subspace.NumRows(); r++ {
		for i := 0; i < sc.NumRows(); i++ {
			v := new(big.Rat)
			for j := 0; j < ne; j++ {
				v.Add(v, new(big.Rat).Mul(sc.At(i, j), L.subspace.At(r, j)))
			}
			if v.Sign() != 0 {
				return errors.Wrapf(goveer.ErrBadSubspace, "row %d violates the switch conditions", r)
			}
		}
	}
	return nil
}

// Dimension returns the dimension of the family.
func (L *LinearFamily) Dimension() int { return L.subspace.NumRows() }

// Subspace returns a copy of the canonical basis of the family.
func (L *LinearFamily) Subspace() *ratmat.Matrix { return L.subspace.Clone() }

// Copy returns an independent copy with the given mutability.
func (L *LinearFamily) Copy(mutable bool) *LinearFamily {
	return &LinearFamily{
		VeeringTriangulation: L.VeeringTriangulation.Copy(mutable),
		subspace:             L.subspace.Clone(),
	}
}

// Equal compares both the triangulation and the family subspace.  The
// echelon form makes the comparison independent of the chosen basis.
func (L *LinearFamily) Equal(M *LinearFamily) bool {
	return L.VeeringTriangulation.Equal(M.VeeringTriangulation) && L.subspace.Equal(M.subspace)
}

func (L *LinearFamily) String() string {
	var rows []string
	for i := 0; i < L.subspace.NumRows(); i++ {
		var ent []string
		for j := 0; j < L.subspace.NumCols(); j++ {
			ent = append(ent, L.subspace.At(i, j).RatString())
		}
		rows = append(rows, "("+strings.Join(ent, ", ")+")")
	}
	return fmt.Sprintf("VeeringTriangulationLinearFamily(%q, %q, [%s])",
		L.FaceString(), L.ColourString(), strings.Join(rows, ", "))
}

// horizontalSubspace is the family expressed in horizontal coordinates:
// Blue columns change sign.
func (L *LinearFamily) horizontalSubspace() *ratmat.Matrix {
	mat := L.subspace.Clone()
	for j := 0; j < L.NumEdges(); j++ {
		if L.EdgeColour(j) == goveer.Blue {
			mat.NegateCol(j)
		}
	}
	return mat
}

// Flip flips edge e forward, updating the subspace coordinates of the
// new edge along the way.
func (L *LinearFamily) Flip(e int, col goveer.Colour) error {
	if err := L.flipWithSubspace(e, col, L.subspace); err != nil {
		return err
	}
	L.subspace.Echelonize()
	return nil
}

// FlipBack flips edge e backward, updating the subspace coordinates.
func (L *LinearFamily) FlipBack(e int, col goveer.Colour) error {
	if err := L.flipBackWithSubspace(e, col, L.subspace); err != nil {
		return err
	}
	L.subspace.Echelonize()
	return nil
}

// Relabel relabels the triangulation and permutes the subspace columns
// accordingly.
func (L *LinearFamily) Relabel(p Perm) error {
	rr, err := EdgePermFromRelabelling(L.EdgePairing(), p, L.NumEdges())
	if err != nil {
		return err
	}
	if err := L.VeeringTriangulation.Relabel(p); err != nil {
		return err
	}
	L.subspace.PermuteCols(rr)
	L.subspace.Echelonize()
	return nil
}

// RelabelCycles is Relabel with the permutation in cycle notation.
func (L *LinearFamily) RelabelCycles(str string) error {
	p, err := ParsePermCycles(str, L.NumHalfEdges(), L.EdgePairing())
	if err != nil {
		return err
	}
	return L.Relabel(p)
}

// Rotate conjugates the family: colours rotate and the subspace moves to
// its horizontal form.
func (L *LinearFamily) Rotate() error {
	sub := L.horizontalSubspace()
	sub.Echelonize()
	if err := L.VeeringTriangulation.Rotate(); err != nil {
		return err
	}
	L.subspace = sub
	return nil
}

// subspaceConstraints inserts, for coordinates starting at offset, the
// equalities cutting out the row span of the family from the ambient
// coordinate space.
func (L *LinearFamily) subspaceConstraints(cs *ratgeom.ConstraintSystem, offset int, slope goveer.Slope) error {
	sub := L.subspace
	if slope == goveer.Horizontal {
		sub = L.horizontalSubspace()
	}
	ne := L.NumEdges()
	kernel := sub.RightKernel()
	for i := 0; i < kernel.NumRows(); i++ {
		coeffs := make([]*big.Rat, cs.AmbientDim())
		for j := range coeffs {
			coeffs[j] = new(big.Rat)
		}
		for j := 0; j < ne; j++ {
			coeffs[offset+j].Set(kernel.At(i, j))
		}
		if err := cs.Insert(ratgeom.EqRat(coeffs, new(big.Rat))); err != nil {
			return err
		}
	}
	return nil
}

// TrainTrackPolytope returns the cone of non-negative vectors of the
// family, for the given slope.
func (L *LinearFamily) TrainTrackPolytope(slope goveer.Slope, lowBound int64) (*ratgeom.Polytope, error) {
	ne := L.NumEdges()
	cs := ratgeom.NewConstraintSystem(ne)
	for i := 0; i < ne; i++ {
		if err := cs.Insert(ratgeom.LowerBound(ne, i, lowBound)); err != nil {
			return nil, err
		}
	}
	if err := L.subspaceConstraints(cs, 0, slope); err != nil {
		return nil, err
	}
	return ratgeom.NewPolytope(cs), nil
}

// IsCore reports whether the family is core: the train track cone is
// full dimensional inside the subspace.
func (L *LinearFamily) IsCore() (bool, error) {
	P, err := L.TrainTrackPolytope(goveer.Vertical, 0)
	if err != nil {
		return false, err
	}
	return P.Dimension() == L.subspace.NumRows(), nil
}

// GeometricPolytope returns the polytope of pairs (x, y) of vertical and
// horizontal data realizing the family as an L-infinity Delaunay flat
// structure.  The first NumEdges coordinates are x, the rest y.
func (L *LinearFamily) GeometricPolytope(xLowBound, yLowBound, hwBound int64) (*ratgeom.Polytope, error) {
	ne := L.NumEdges()
	cs := ratgeom.NewConstraintSystem(2 * ne)
	for i := 0; i < ne; i++ {
		if err := cs.Insert(ratgeom.LowerBound(2*ne, i, xLowBound)); err != nil {
			return nil, err
		}
	}
	for i := 0; i < ne; i++ {
		if err := cs.Insert(ratgeom.LowerBound(2*ne, ne+i, yLowBound)); err != nil {
			return nil, err
		}
	}
	if err := L.subspaceConstraints(cs, 0, goveer.Vertical); err != nil {
		return nil, err
	}
	if err := L.subspaceConstraints(cs, ne, goveer.Horizontal); err != nil {
		return nil, err
	}

	// Delaunay conditions: the new edge of any flip must fit inside the
	// flat quadrilateral about the flipped edge.
	for _, e := range L.ForwardFlippableEdges() {
		a, _, _, d := L.SquareAboutEdge(e)
		coeffs := make([]int64, 2*ne)
		coeffs[ne+L.Norm(a)] += 1
		coeffs[ne+L.Norm(d)] += 1
		coeffs[L.Norm(e)] -= 1
		if err := cs.Insert(ratgeom.Ge(coeffs, hwBound)); err != nil {
			return nil, err
		}
	}
	for _, e := range L.BackwardFlippableEdges() {
		a, _, _, d := L.SquareAboutEdge(e)
		coeffs := make([]int64, 2*ne)
		coeffs[L.Norm(a)] += 1
		coeffs[L.Norm(d)] += 1
		coeffs[ne+L.Norm(e)] -= 1
		if err := cs.Insert(ratgeom.Ge(coeffs, hwBound)); err != nil {
			return nil, err
		}
	}
	return ratgeom.NewPolytope(cs), nil
}

// IsGeometric reports whether the geometric polytope is full dimensional,
// i.e. the family is realized by an open set of flat structures.
func (L *LinearFamily) IsGeometric() (bool, error) {
	P, err := L.GeometricPolytope(0, 0, 0)
	if err != nil {
		return false, err
	}
	return P.Dimension() == 2*L.subspace.NumRows(), nil
}

type delaunayFacet struct {
	polytope *ratgeom.Polytope
	edges    []int
}

// GeometricFlips returns the flips supported on facets of the geometric
// polytope: the multi-flips arising along Teichmueller geodesics.  Each
// entry lists the edges flipped simultaneously with their new colour.
func (L *LinearFamily) GeometricFlips() ([][]EdgeFlip, error) {
	dim := L.subspace.NumRows()
	ne := L.NumEdges()
	P, err := L.GeometricPolytope(0, 0, 0)
	if err != nil {
		return nil, err
	}
	if P.Dimension() != 2*dim {
		return nil, errors.Wrapf(goveer.ErrNotGeometric, "polytope dimension %d, expected %d", P.Dimension(), 2*dim)
	}

	// Group forward flippable edges by the facet their Delaunay equality
	// cuts out, deduplicated on the facet's canonical form.
	facets := redblacktree.NewWith(utils.StringComparator)
	for _, e := range L.ForwardFlippableEdges() {
		a, _, _, d := L.SquareAboutEdge(e)
		coeffs := make([]int64, 2*ne)
		coeffs[L.Norm(e)] += 1
		coeffs[ne+L.Norm(a)] -= 1
		coeffs[ne+L.Norm(d)] -= 1
		Q, err := P.WithConstraints(ratgeom.Eq(coeffs, 0))
		if err != nil {
			return nil, err
		}
		if Q.Dimension() != 2*dim-1 {
			continue
		}
		key, err := Q.CanonicalBytes()
		if err != nil {
			return nil, err
		}
		if v, found := facets.Get(string(key)); found {
			f := v.(*delaunayFacet)
			f.edges = append(f.edges, e)
		} else {
			facets.Put(string(key), &delaunayFacet{polytope: Q, edges: []int{e}})
		}
	}

	var neighbours [][]EdgeFlip
	it := facets.Iterator()
	for it.Next() {
		f := it.Value().(*delaunayFacet)
		k := len(f.edges)
		for mask := 0; mask < 1<<k; mask++ {
			flips := make([]EdgeFlip, k)
			var cons []ratgeom.Constraint
			for i, e := range f.edges {
				col := goveer.Red
				if mask&(1<<i) != 0 {
					col = goveer.Blue
				}
				flips[i] = EdgeFlip{Edge: e, Col: col}
				a, _, _, d := L.SquareAboutEdge(e)
				coeffs := make([]int64, 2*ne)
				if col == goveer.Red {
					// new edge veers right: x(a) <= x(d)
					coeffs[L.Norm(d)] += 1
					coeffs[L.Norm(a)] -= 1
				} else {
					coeffs[L.Norm(a)] += 1
					coeffs[L.Norm(d)] -= 1
				}
				cons = append(cons, ratgeom.Ge(coeffs, 0))
			}
			S, err := f.polytope.WithConstraints(cons...)
			if err != nil {
				return nil, err
			}
			if S.Dimension() == 2*dim-1 {
				neighbours = append(neighbours, flips)
			}
		}
	}
	return neighbours, nil
}

// LShapedSurface returns the linear family of the L shaped surface built
// from two rectangles, a1 wide b1/b2 high resp. a2 high, with horizontal
// twists t1 and t2.
func LShapedSurface(a1, a2, b1, b2, t1, t2 int64) (*LinearFamily, error) {
	if a1 <= 0 || a2 <= 0 || b1 <= 0 || b2 <= 0 || t1 < 0 || t2 < 0 {
		return nil, errors.Wrap(goveer.ErrBadSubspace, "LShapedSurface parameters")
	}
	V, err := NewVeeringTriangulation("(0,2,3)(1,4,~0)(5,6,~1)", "BRRBBBB")
	if err != nil {
		return nil, err
	}
	s := []int64{a1, 0, 0, a1, a1, b2, b2}
	t := []int64{t1, b1, a2, a2 + t1, b1 + t1, b1 + t2, t2}
	return NewLinearFamilyFromInts(V, [][]int64{s, t})
}
