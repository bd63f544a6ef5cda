package libveer

import (
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"strings"

	"github.com/pkg/errors"

	"github.com/veering-systems/goveer/goveer"

	"github.com/veering-systems/goveer/libveer/ratmat"
)

// VeeringTriangulation is a triangulated surface whose half-edges carry
// veering colours.
//
// Half-edges are labelled 0..n-1 in canonical form: edge representatives
// are exactly 0..ne-1, their paired half-edges occupy ne..n-1, and folded
// edges are fixed points of the involution ep.  The face permutation fp has
// all cycles of length 3.  The vertex permutation is derived:
// vp[h] = ep[fp[h]].
type VeeringTriangulation struct {
	n       int
	ne      int
	fp      Perm
	ep      Perm
	cols    []goveer.Colour // per half-edge, equal on a pair
	mutable bool
}

// NewVeeringTriangulation parses a face-permutation string such as
// "(0,1,2)(~0,~1,~2)" and a colour string with one character per edge
// representative ("RRB").  The result is mutable.
func NewVeeringTriangulation(faceStr, colStr string) (*VeeringTriangulation, error) {
	fp, ep, ne, err := parseFacePerm(faceStr)
	if err != nil {
		return nil, err
	}
	V := &VeeringTriangulation{
		n:       len(fp),
		ne:      ne,
		fp:      fp,
		ep:      ep,
		cols:    make([]goveer.Colour, len(fp)),
		mutable: true,
	}
	if len(colStr) != ne {
		return nil, errors.Wrapf(goveer.ErrBadColouring, "%d colours for %d edges", len(colStr), ne)
	}
	for e, r := range colStr {
		col, err := goveer.ColourFromRune(r)
		if err != nil {
			return nil, err
		}
		V.cols[e] = col
		V.cols[ep[e]] = col
	}
	if err := V.Check(); err != nil {
		return nil, err
	}
	return V, nil
}

// Check verifies the structural invariants.
func (V *VeeringTriangulation) Check() error {
	if !PermCheck(V.fp, V.n) || !PermCheck(V.ep, V.n) {
		return errors.Wrap(goveer.ErrBadTriangulation, "fp/ep not permutations")
	}
	for h := 0; h < V.n; h++ {
		if V.ep[V.ep[h]] != h {
			return errors.Wrap(goveer.ErrBadTriangulation, "ep is not an involution")
		}
		if h < V.ne {
			if V.ep[h] != h && V.ep[h] < V.ne {
				return errors.Wrapf(goveer.ErrNotCanonical, "pair (%d, %d)", h, V.ep[h])
			}
		} else if V.ep[h] >= V.ne {
			return errors.Wrapf(goveer.ErrNotCanonical, "pair (%d, %d)", h, V.ep[h])
		}
		if V.fp[h] == h || V.fp[V.fp[V.fp[h]]] != h {
			return errors.Wrap(goveer.ErrBadTriangulation, "faces are not triangles")
		}
		if V.cols[h] != V.cols[V.ep[h]] || V.cols[h].Rune() == '?' {
			return errors.Wrapf(goveer.ErrBadColouring, "half-edge %d", h)
		}
	}
	return nil
}

func (V *VeeringTriangulation) NumHalfEdges() int { return V.n }
func (V *VeeringTriangulation) NumEdges() int     { return V.ne }

func (V *VeeringTriangulation) NumFoldedEdges() int {
	folded := 0
	for e := 0; e < V.ne; e++ {
		if V.ep[e] == e {
			folded++
		}
	}
	return folded
}

// Norm maps a half-edge to its canonical edge representative.
func (V *VeeringTriangulation) Norm(h int) int {
	if h < V.ne {
		return h
	}
	return V.ep[h]
}

func (V *VeeringTriangulation) EdgePairing() Perm { return V.ep }

func (V *VeeringTriangulation) IsMutable() bool { return V.mutable }

// Copy returns a deep copy with the requested mutability.  Copying an
// immutable triangulation to an immutable one returns the receiver.
func (V *VeeringTriangulation) Copy(mutable bool) *VeeringTriangulation {
	if !mutable && !V.mutable {
		return V
	}
	W := &VeeringTriangulation{
		n:       V.n,
		ne:      V.ne,
		fp:      V.fp.Copy(),
		ep:      V.ep.Copy(),
		cols:    append([]goveer.Colour(nil), V.cols...),
		mutable: mutable,
	}
	return W
}

func (V *VeeringTriangulation) Equal(W *VeeringTriangulation) bool {
	if V.n != W.n || V.ne != W.ne {
		return false
	}
	for h := 0; h < V.n; h++ {
		if V.fp[h] != W.fp[h] || V.ep[h] != W.ep[h] || V.cols[h] != W.cols[h] {
			return false
		}
	}
	return true
}

func (V *VeeringTriangulation) EdgeColour(e int) goveer.Colour {
	return V.cols[e]
}

func (V *VeeringTriangulation) SetEdgeColour(e int, col goveer.Colour) error {
	if !V.mutable {
		return errors.Wrap(goveer.ErrImmutable, "SetEdgeColour")
	}
	if col.Rune() == '?' {
		return goveer.ErrBadColour
	}
	V.cols[e] = col
	V.cols[V.ep[e]] = col
	return nil
}

// ColourString returns one character per edge representative.
func (V *VeeringTriangulation) ColourString() string {
	var b strings.Builder
	for e := 0; e < V.ne; e++ {
		b.WriteRune(V.cols[e].Rune())
	}
	return b.String()
}

// FaceString renders fp in canonical cycle notation.
func (V *VeeringTriangulation) FaceString() string {
	return PermCycleString(V.fp, V.ne, V.ep)
}

func (V *VeeringTriangulation) String() string {
	return fmt.Sprintf("VeeringTriangulation(%q, %q)", V.FaceString(), V.ColourString())
}

// HasPurple reports whether any edge is Purple, i.e. the triangulation is
// in reduced form.
func (V *VeeringTriangulation) HasPurple() bool {
	for e := 0; e < V.ne; e++ {
		if V.cols[e] == goveer.Purple {
			return true
		}
	}
	return false
}

func (V *VeeringTriangulation) HasGreen() bool {
	for e := 0; e < V.ne; e++ {
		if V.cols[e] == goveer.Green {
			return true
		}
	}
	return false
}

// SquareAboutEdge returns the half-edges (a, b, c, d) surrounding e: the
// two adjacent faces are (e, a, b) and (E, c, d) with E = ep[e].  For a
// folded edge the two faces coincide and (c, d) = (a, b).
func (V *VeeringTriangulation) SquareAboutEdge(e int) (a, b, c, d int) {
	E := V.ep[e]
	a = V.fp[e]
	b = V.fp[a]
	c = V.fp[E]
	d = V.fp[c]
	return
}

// IsForwardFlippable reports whether e admits a forward flip: the edge is
// Purple, or its square is coloured (Blue, Red, Blue, Red).
func (V *VeeringTriangulation) IsForwardFlippable(e int) bool {
	switch V.cols[e] {
	case goveer.Purple:
		return true
	case goveer.Green:
		return false
	}
	a, b, c, d := V.SquareAboutEdge(e)
	if a == V.ep[e] || b == V.ep[e] {
		return false
	}
	return V.cols[a] == goveer.Blue && V.cols[b] == goveer.Red &&
		V.cols[c] == goveer.Blue && V.cols[d] == goveer.Red
}

// IsBackwardFlippable is the time-reversed counterpart: the edge is Green,
// or its square is coloured (Red, Blue, Red, Blue).
func (V *VeeringTriangulation) IsBackwardFlippable(e int) bool {
	switch V.cols[e] {
	case goveer.Green:
		return true
	case goveer.Purple:
		return false
	}
	a, b, c, d := V.SquareAboutEdge(e)
	if a == V.ep[e] || b == V.ep[e] {
		return false
	}
	return V.cols[a] == goveer.Red && V.cols[b] == goveer.Blue &&
		V.cols[c] == goveer.Red && V.cols[d] == goveer.Blue
}

func (V *VeeringTriangulation) ForwardFlippableEdges() []int {
	var edges []int
	for e := 0; e < V.ne; e++ {
		if V.IsForwardFlippable(e) {
			edges = append(edges, e)
		}
	}
	return edges
}

func (V *VeeringTriangulation) BackwardFlippableEdges() []int {
	var edges []int
	for e := 0; e < V.ne; e++ {
		if V.IsBackwardFlippable(e) {
			edges = append(edges, e)
		}
	}
	return edges
}

// Flip performs the forward flip of e, assigning col to the new edge.
//
// Faces (e,a,b),(E,c,d) become (e,b,c),(E,d,a).  On a reduced
// triangulation every edge of the square that becomes forward flippable is
// re-marked Purple, keeping the Purple set exactly the forward-flippable
// set.
func (V *VeeringTriangulation) Flip(e int, col goveer.Colour) error {
	return V.flipWithSubspace(e, col, nil)
}

func (V *VeeringTriangulation) flipWithSubspace(e int, col goveer.Colour, gx *ratmat.Matrix) error {
	if !V.mutable {
		return errors.Wrap(goveer.ErrImmutable, "Flip")
	}
	if !col.IsConcrete() {
		return errors.Wrapf(goveer.ErrBadColour, "flip to %v", col)
	}
	e = V.Norm(e)
	if !V.IsForwardFlippable(e) {
		return errors.Wrapf(goveer.ErrNotFlippable, "forward flip of %d on %v", e, V)
	}
	reduced := V.HasPurple()
	E := V.ep[e]
	a, b, c, d := V.SquareAboutEdge(e)

	if gx != nil {
		// New edge coordinate before the face update: BLUE keeps the
		// square's Blue corner positive, RED the other.
		for i := 0; i < gx.NumRows(); i++ {
			vb := gx.At(i, V.Norm(b))
			vc := gx.At(i, V.Norm(c))
			if col == goveer.Blue {
				gx.Set(i, e, ratSub(vc, vb))
			} else {
				gx.Set(i, e, ratSub(vb, vc))
			}
		}
	}

	V.fp[e] = b
	V.fp[b] = c
	V.fp[c] = e
	V.fp[a] = E
	V.fp[E] = d
	V.fp[d] = a
	V.cols[e] = col
	V.cols[E] = col

	if reduced {
		square := []int{e, V.Norm(a), V.Norm(b), V.Norm(c), V.Norm(d)}
		var purple []int
		for _, x := range square {
			if V.cols[x] != goveer.Purple && V.IsForwardFlippable(x) {
				purple = append(purple, x)
			}
		}
		for _, x := range purple {
			V.cols[x] = goveer.Purple
			V.cols[V.ep[x]] = goveer.Purple
		}
	}
	return nil
}

// FlipBack undoes a forward flip of e, restoring colour col.
// Faces (e,a,b),(E,c,d) become (e,d,a),(E,b,c).
func (V *VeeringTriangulation) FlipBack(e int, col goveer.Colour) error {
	return V.flipBackWithSubspace(e, col, nil)
}

func (V *VeeringTriangulation) flipBackWithSubspace(e int, col goveer.Colour, gx *ratmat.Matrix) error {
	if !V.mutable {
		return errors.Wrap(goveer.ErrImmutable, "FlipBack")
	}
	if !col.IsConcrete() {
		return errors.Wrapf(goveer.ErrBadColour, "flip back to %v", col)
	}
	e = V.Norm(e)
	if !V.IsBackwardFlippable(e) {
		return errors.Wrapf(goveer.ErrNotFlippable, "backward flip of %d on %v", e, V)
	}
	E := V.ep[e]
	a, b, c, d := V.SquareAboutEdge(e)

	if gx != nil {
		// The restored edge is the large side of both restored faces.
		for i := 0; i < gx.NumRows(); i++ {
			vd := gx.At(i, V.Norm(d))
			va := gx.At(i, V.Norm(a))
			gx.Set(i, e, ratAdd(vd, va))
		}
	}

	V.fp[e] = d
	V.fp[d] = a
	V.fp[a] = e
	V.fp[E] = b
	V.fp[b] = c
	V.fp[c] = E
	V.cols[e] = col
	V.cols[E] = col
	return nil
}

// Relabel applies the half-edge relabelling p, which must commute with the
// edge involution (so canonical form is preserved).
func (V *VeeringTriangulation) Relabel(p Perm) error {
	if !V.mutable {
		return errors.Wrap(goveer.ErrImmutable, "Relabel")
	}
	if !PermCheck(p, V.n) {
		return errors.Wrap(goveer.ErrBadPermutation, "Relabel")
	}
	for h := 0; h < V.n; h++ {
		if p[V.ep[h]] != V.ep[p[h]] {
			return errors.Wrapf(goveer.ErrBadPermutation, "relabelling does not respect the edge pairing at %d", h)
		}
	}
	V.fp = PermConjugate(V.fp, p)
	cols := make([]goveer.Colour, V.n)
	for h := 0; h < V.n; h++ {
		cols[p[h]] = V.cols[h]
	}
	V.cols = cols
	return nil
}

func (V *VeeringTriangulation) RelabelCycles(str string) error {
	p, err := ParsePermCycles(str, V.n, V.ep)
	if err != nil {
		return err
	}
	return V.Relabel(p)
}

// Rotate applies the quarter-turn symmetry: every colour is replaced by its
// opposite (Red <-> Blue, Purple <-> Green).  The underlying triangulation
// is unchanged.
func (V *VeeringTriangulation) Rotate() error {
	if !V.mutable {
		return errors.Wrap(goveer.ErrImmutable, "Rotate")
	}
	for h := 0; h < V.n; h++ {
		V.cols[h] = V.cols[h].Opposite()
	}
	return nil
}

// Swap exchanges the two half-edge labels of edge e.
func (V *VeeringTriangulation) Swap(e int) error {
	E := V.ep[e]
	if E == e {
		return nil
	}
	t := PermIdentity(V.n)
	t[e], t[E] = E, e
	return V.Relabel(t)
}

// ForgetForwardColours re-marks every forward-flippable edge Purple,
// producing the reduced form of the triangulation.
func (V *VeeringTriangulation) ForgetForwardColours() error {
	if !V.mutable {
		return errors.Wrap(goveer.ErrImmutable, "ForgetForwardColours")
	}
	flippable := V.ForwardFlippableEdges()
	for _, e := range flippable {
		V.cols[e] = goveer.Purple
		V.cols[V.ep[e]] = goveer.Purple
	}
	return nil
}

// cornerTurns counts quarter turns crossed by the corner between an
// incoming half-edge of colour c1 and the next (vp order) of colour c2.
var cornerTurns = map[[2]goveer.Colour]int{
	{goveer.Red, goveer.Red}:       0,
	{goveer.Blue, goveer.Blue}:     0,
	{goveer.Purple, goveer.Purple}: 2,
	{goveer.Green, goveer.Green}:   2,
	{goveer.Red, goveer.Blue}:      1,
	{goveer.Blue, goveer.Red}:      1,
	{goveer.Red, goveer.Green}:     1,
	{goveer.Green, goveer.Red}:     1,
	{goveer.Red, goveer.Purple}:    0,
	{goveer.Purple, goveer.Red}:    2,
	{goveer.Blue, goveer.Green}:    0,
	{goveer.Green, goveer.Blue}:    2,
	{goveer.Blue, goveer.Purple}:   1,
	{goveer.Purple, goveer.Blue}:   1,
	{goveer.Green, goveer.Purple}:  1,
	{goveer.Purple, goveer.Green}:  1,
}

// Angles returns the cone angle of every vertex in multiples of pi, one
// entry per vertex cycle plus one angle of 1 per folded edge.
func (V *VeeringTriangulation) Angles() []int {
	var angles []int
	seen := make([]bool, V.n)
	for h := 0; h < V.n; h++ {
		if seen[h] {
			continue
		}
		turns := 0
		for x := h; !seen[x]; {
			seen[x] = true
			next := V.ep[V.fp[x]]
			turns += cornerTurns[[2]goveer.Colour{V.cols[x], V.cols[next]}]
			x = next
		}
		angles = append(angles, turns/2)
	}
	for i := V.NumFoldedEdges(); i > 0; i-- {
		angles = append(angles, 1)
	}
	return angles
}

// faces lists each face cycle once, started at its minimal half-edge.
func (V *VeeringTriangulation) faces() [][3]int {
	var fs [][3]int
	seen := make([]bool, V.n)
	for h := 0; h < V.n; h++ {
		if seen[h] {
			continue
		}
		i, j := V.fp[h], V.fp[V.fp[h]]
		seen[h], seen[i], seen[j] = true, true, true
		fs = append(fs, [3]int{h, i, j})
	}
	return fs
}

// largeEdge returns which of the face (i, j, k) is the large edge of the
// given slope, or -1 when the colouring does not determine one.
func (V *VeeringTriangulation) largeEdge(face [3]int, slope goveer.Slope) int {
	lar, pos, neg := goveer.Purple, goveer.Blue, goveer.Red
	if slope == goveer.Horizontal {
		lar, pos, neg = goveer.Green, goveer.Red, goveer.Blue
	}
	for t := 0; t < 3; t++ {
		k := face[t]
		i, j := V.fp[k], V.fp[V.fp[k]]
		if V.cols[k] == lar || (V.cols[i] == pos && V.cols[j] == neg) {
			return k
		}
	}
	return -1
}

// SwitchConditions returns one constraint row per face over the ne edge
// coordinates: x_i + x_j + x_k - 2*x_large == 0.
func (V *VeeringTriangulation) SwitchConditions(slope goveer.Slope) (*ratmat.Matrix, error) {
	fs := V.faces()
	m := ratmat.NewMatrix(len(fs), V.ne)
	for r, face := range fs {
		l := V.largeEdge(face, slope)
		if l < 0 {
			return nil, errors.Wrapf(goveer.ErrBadColouring, "no %v large edge on face (%d,%d,%d)", slope, face[0], face[1], face[2])
		}
		for _, h := range face {
			m.AddInt(r, V.Norm(h), 1)
		}
		m.AddInt(r, V.Norm(l), -2)
	}
	return m, nil
}

// FlipHomologicalAction left-multiplies m by the action of the coming flip
// of e (call before Flip).  With twist the rows track horizontal edge
// extents; without it, signed homology classes.
func (V *VeeringTriangulation) FlipHomologicalAction(e int, m *ratmat.Matrix, twist bool) error {
	e = V.Norm(e)
	if !V.IsForwardFlippable(e) {
		return errors.Wrapf(goveer.ErrNotFlippable, "homological action of %d", e)
	}
	_, b, c, _ := V.SquareAboutEdge(e)
	sb, sc := 1, 1
	if !twist {
		if b >= V.ne {
			sb = -1
		}
		if c >= V.ne {
			sc = -1
		}
	}
	m.RowCombine(e, V.Norm(b), sb, V.Norm(c), sc)
	return nil
}

// RelabelHomologicalAction left-multiplies m by the action of the
// relabelling r on edge coordinates.
func (V *VeeringTriangulation) RelabelHomologicalAction(r Perm, m *ratmat.Matrix, twist bool) error {
	rr, err := EdgePermFromRelabelling(V.ep, r, V.ne)
	if err != nil {
		return err
	}
	m.PermuteRows(Perm(rr))
	if !twist {
		for e := 0; e < V.ne; e++ {
			if r[e] >= V.ne {
				m.NegateRow(rr[e])
			}
		}
	}
	return nil
}

// Hash returns a digest of the triangulation's canonical encoding.
func (V *VeeringTriangulation) Hash() uint64 {
	h := fnv.New64a()
	h.Write(V.AppendEncodingTo(nil))
	return h.Sum64()
}

// AppendEncodingTo appends a compact binary encoding of the triangulation.
func (V *VeeringTriangulation) AppendEncodingTo(buf []byte) []byte {
	buf = binary.AppendUvarint(buf, uint64(V.n))
	buf = binary.AppendUvarint(buf, uint64(V.ne))
	for h := 0; h < V.n; h++ {
		buf = binary.AppendUvarint(buf, uint64(V.fp[h]))
	}
	for h := 0; h < V.n; h++ {
		buf = binary.AppendUvarint(buf, uint64(V.ep[h]))
	}
	for e := 0; e < V.ne; e++ {
		buf = append(buf, byte(V.cols[e]))
	}
	return buf
}
