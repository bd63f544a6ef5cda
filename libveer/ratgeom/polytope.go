// Package ratgeom provides exact rational polyhedral computations: feasibility,
// affine dimension and canonical forms of polytopes given by linear equalities
// and inequalities over big.Rat, backed by a two phase simplex solver.
package ratgeom

import (
	"bytes"
	"fmt"
	"math/big"
	"sort"

	"github.com/veering-systems/goveer/goveer"

	"github.com/veering-systems/goveer/libveer/ratmat"
)

// Constraint is one linear condition on a point x: Coeffs.x == Rhs when
// Equality is set, Coeffs.x >= Rhs otherwise.
type Constraint struct {
	Coeffs   []*big.Rat
	Rhs      *big.Rat
	Equality bool
}

func copyRats(v []*big.Rat) []*big.Rat {
	out := make([]*big.Rat, len(v))
	for i, r := range v {
		out[i] = new(big.Rat).Set(r)
	}
	return out
}

func (c Constraint) copy() Constraint {
	return Constraint{
		Coeffs:   copyRats(c.Coeffs),
		Rhs:      new(big.Rat).Set(c.Rhs),
		Equality: c.Equality,
	}
}

// eval returns Coeffs.x - Rhs.
func (c Constraint) eval(x []*big.Rat) *big.Rat {
	v := new(big.Rat).Neg(c.Rhs)
	for i, a := range c.Coeffs {
		if a.Sign() != 0 {
			v.Add(v, new(big.Rat).Mul(a, x[i]))
		}
	}
	return v
}

// Eq builds the equality Coeffs.x == rhs from integer data.
func Eq(coeffs []int64, rhs int64) Constraint {
	return intConstraint(coeffs, rhs, true)
}

// Ge builds the inequality Coeffs.x >= rhs from integer data.
func Ge(coeffs []int64, rhs int64) Constraint {
	return intConstraint(coeffs, rhs, false)
}

func intConstraint(coeffs []int64, rhs int64, eq bool) Constraint {
	c := Constraint{
		Coeffs:   make([]*big.Rat, len(coeffs)),
		Rhs:      big.NewRat(rhs, 1),
		Equality: eq,
	}
	for i, v := range coeffs {
		c.Coeffs[i] = big.NewRat(v, 1)
	}
	return c
}

// EqRat and GeRat are Eq and Ge over rational data.  The slices are
// copied.
func EqRat(coeffs []*big.Rat, rhs *big.Rat) Constraint {
	return Constraint{Coeffs: copyRats(coeffs), Rhs: new(big.Rat).Set(rhs), Equality: true}
}

func GeRat(coeffs []*big.Rat, rhs *big.Rat) Constraint {
	return Constraint{Coeffs: copyRats(coeffs), Rhs: new(big.Rat).Set(rhs), Equality: false}
}

// LowerBound builds the inequality x_i >= bound in ambient dimension n.
func LowerBound(n, i int, bound int64) Constraint {
	coeffs := make([]int64, n)
	coeffs[i] = 1
	return Ge(coeffs, bound)
}

// ConstraintSystem accumulates constraints in a fixed ambient dimension.
type ConstraintSystem struct {
	dim  int
	cons []Constraint
}

func NewConstraintSystem(dim int) *ConstraintSystem {
	return &ConstraintSystem{dim: dim}
}

func (cs *ConstraintSystem) Insert(c Constraint) error {
	if len(c.Coeffs) != cs.dim {
		return goveer.ErrBadSubspace
	}
	cs.cons = append(cs.cons, c)
	return nil
}

func (cs *ConstraintSystem) AmbientDim() int { return cs.dim }

// Polytope is the solution set of a constraint system, with lazily
// computed feasibility, relative interior point and affine dimension.
type Polytope struct {
	dim    int
	eqs    []Constraint
	ineqs  []Constraint
	solved bool
	empty  bool
	rip    []*big.Rat // relative interior point, nil when empty
}

// NewPolytope builds the polytope cut out by the system.
func NewPolytope(cs *ConstraintSystem) *Polytope {
	P := &Polytope{dim: cs.dim}
	for _, c := range cs.cons {
		if c.Equality {
			P.eqs = append(P.eqs, c)
		} else {
			P.ineqs = append(P.ineqs, c)
		}
	}
	return P
}

func (P *Polytope) AmbientDim() int { return P.dim }

// WithConstraints returns a new polytope with extra constraints added.
func (P *Polytope) WithConstraints(cons ...Constraint) (*Polytope, error) {
	Q := &Polytope{dim: P.dim}
	for _, c := range P.eqs {
		Q.eqs = append(Q.eqs, c.copy())
	}
	for _, c := range P.ineqs {
		Q.ineqs = append(Q.ineqs, c.copy())
	}
	for _, c := range cons {
		if len(c.Coeffs) != P.dim {
			return nil, goveer.ErrBadSubspace
		}
		if c.Equality {
			Q.eqs = append(Q.eqs, c.copy())
		} else {
			Q.ineqs = append(Q.ineqs, c.copy())
		}
	}
	return Q, nil
}

func (P *Polytope) problem() *lpProblem {
	p := &lpProblem{n: P.dim}
	for _, c := range P.eqs {
		p.eqA = append(p.eqA, c.Coeffs)
		p.eqB = append(p.eqB, c.Rhs)
	}
	for _, c := range P.ineqs {
		p.inC = append(p.inC, c.Coeffs)
		p.inD = append(p.inD, c.Rhs)
	}
	return p
}

// solve computes a relative interior point: the average of one feasible
// point together with, for every inequality that can be strict, a point
// making it strict.  Every inequality left tight at the result is an
// implicit equality of the polytope.
func (P *Polytope) solve() {
	if P.solved {
		return
	}
	P.solved = true

	base, ok := P.problem().feasiblePoint()
	if !ok {
		P.empty = true
		return
	}

	points := [][]*big.Rat{base}
	for _, c := range P.ineqs {
		if c.eval(base).Sign() > 0 {
			continue
		}
		// Maximize the slack of this inequality, capped at one so the
		// program stays bounded.
		lid := Constraint{
			Coeffs: make([]*big.Rat, P.dim),
			Rhs:    new(big.Rat).Neg(new(big.Rat).Add(c.Rhs, big.NewRat(1, 1))),
		}
		for i, a := range c.Coeffs {
			lid.Coeffs[i] = new(big.Rat).Neg(a)
		}
		Q, _ := P.WithConstraints(lid)
		status, x := Q.problem().solve(c.Coeffs)
		if status == lpOptimal && c.eval(x).Sign() > 0 {
			points = append(points, x)
		}
	}

	rip := newRatRow(P.dim)
	w := big.NewRat(1, int64(len(points)))
	for _, pt := range points {
		for i, v := range pt {
			rip[i].Add(rip[i], new(big.Rat).Mul(w, v))
		}
	}
	P.rip = rip
}

// Feasible reports whether the polytope contains any point.
func (P *Polytope) Feasible() bool {
	P.solve()
	return !P.empty
}

// RelativeInteriorPoint returns a point in the relative interior, i.e.
// one where every non-implicit inequality is strict.
func (P *Polytope) RelativeInteriorPoint() ([]*big.Rat, bool) {
	P.solve()
	if P.empty {
		return nil, false
	}
	return copyRats(P.rip), true
}

// implicitEqualities returns the indices of inequalities that hold with
// equality on the whole polytope.
func (P *Polytope) implicitEqualities() []int {
	var out []int
	for j, c := range P.ineqs {
		if c.eval(P.rip).Sign() == 0 {
			out = append(out, j)
		}
	}
	return out
}

// affineHull returns the equality rows of the affine hull as an
// echelonized (n+1)-column matrix, coefficients first and right hand
// side last.
func (P *Polytope) affineHull() *ratmat.Matrix {
	implicit := P.implicitEqualities()
	rows := len(P.eqs) + len(implicit)
	hull := ratmat.NewMatrix(rows, P.dim+1)
	r := 0
	put := func(c Constraint) {
		for j, a := range c.Coeffs {
			hull.Set(r, j, a)
		}
		hull.Set(r, P.dim, c.Rhs)
		r++
	}
	for _, c := range P.eqs {
		put(c)
	}
	for _, j := range implicit {
		put(P.ineqs[j])
	}
	hull.Echelonize()
	return hull.TrimZeroRows()
}

// Dimension returns the affine dimension of the polytope, or -1 when it
// is empty.
func (P *Polytope) Dimension() int {
	P.solve()
	if P.empty {
		return -1
	}
	return P.dim - P.affineHull().NumRows()
}

// IsFacetOf reports whether intersecting with the given constraint as an
// equality yields a face of dimension exactly one less.
func (P *Polytope) IsFacetOf(c Constraint) (bool, error) {
	eq := c.copy()
	eq.Equality = true
	Q, err := P.WithConstraints(eq)
	if err != nil {
		return false, err
	}
	return Q.Dimension() == P.Dimension()-1, nil
}

// primitiveRow scales a rational row by a positive factor to a primitive
// integer vector rendered as a space separated string.
func primitiveRow(v []*big.Rat) string {
	lcm := big.NewInt(1)
	for _, r := range v {
		d := r.Denom()
		g := new(big.Int).GCD(nil, nil, lcm, d)
		lcm.Mul(lcm, new(big.Int).Quo(d, g))
	}
	ints := make([]*big.Int, len(v))
	gcd := new(big.Int)
	for i, r := range v {
		ints[i] = new(big.Int).Mul(r.Num(), new(big.Int).Quo(lcm, r.Denom()))
		if ints[i].Sign() != 0 {
			if gcd.Sign() == 0 {
				gcd.Abs(ints[i])
			} else {
				gcd.GCD(nil, nil, gcd, new(big.Int).Abs(ints[i]))
			}
		}
	}
	var b bytes.Buffer
	for i, z := range ints {
		if i > 0 {
			b.WriteByte(' ')
		}
		if gcd.Sign() != 0 {
			z = new(big.Int).Quo(z, gcd)
		}
		b.WriteString(z.String())
	}
	return b.String()
}

// CanonicalBytes returns a canonical byte representation of the polytope
// as a point set: two polytopes describe the same set exactly when their
// canonical bytes agree.  The form lists the echelonized affine hull
// followed by the facet defining inequalities, each reduced modulo the
// hull, scaled primitive and sorted.
func (P *Polytope) CanonicalBytes() ([]byte, error) {
	P.solve()
	var b bytes.Buffer
	if P.empty {
		fmt.Fprintf(&b, "empty %d", P.dim)
		return b.Bytes(), nil
	}

	hull := P.affineHull()
	dim := P.dim - hull.NumRows()
	fmt.Fprintf(&b, "dim %d/%d\n", dim, P.dim)
	for i := 0; i < hull.NumRows(); i++ {
		row := make([]*big.Rat, P.dim+1)
		for j := range row {
			row[j] = hull.At(i, j)
		}
		b.WriteString("= ")
		b.WriteString(primitiveRow(row))
		b.WriteByte('\n')
	}

	// Pivot column per hull row, used to reduce inequalities modulo the
	// affine hull.
	pivots := make([]int, hull.NumRows())
	for i := range pivots {
		pivots[i] = -1
		for j := 0; j <= P.dim; j++ {
			if hull.At(i, j).Sign() != 0 {
				pivots[i] = j
				break
			}
		}
	}

	facets := make(map[string]bool)
	for _, c := range P.ineqs {
		if c.eval(P.rip).Sign() == 0 {
			continue // implicit equality, already in the hull
		}
		facet, err := P.IsFacetOf(c)
		if err != nil {
			return nil, err
		}
		if !facet {
			continue
		}
		row := make([]*big.Rat, P.dim+1)
		copy(row, copyRats(c.Coeffs))
		row[P.dim] = new(big.Rat).Set(c.Rhs)
		for i, p := range pivots {
			if p < 0 || row[p].Sign() == 0 {
				continue
			}
			f := new(big.Rat).Quo(row[p], hull.At(i, p))
			for j := p; j <= P.dim; j++ {
				row[j].Sub(row[j], new(big.Rat).Mul(f, hull.At(i, j)))
			}
		}
		facets[primitiveRow(row)] = true
	}

	keys := make([]string, 0, len(facets))
	for k := range facets {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.WriteString("> ")
		b.WriteString(k)
		b.WriteByte('\n')
	}
	return b.Bytes(), nil
}
