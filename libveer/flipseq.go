package libveer

import (
	"encoding/binary"
	"fmt"

	"github.com/pkg/errors"

	"github.com/veering-systems/goveer/goveer"

	"github.com/veering-systems/goveer/libveer/ratmat"
)

// DebugChecks enables expensive internal consistency checks that replay
// each sequence from scratch after every structural mutation.  Tests turn
// this on; production paths leave it off.
var DebugChecks = false

// FlipRecord is one forward flip in a sequence, recorded in the labels of
// the start triangulation together with the colour the edge had just
// before it was flipped.
type FlipRecord struct {
	Edge   int
	Col    goveer.Colour
	OldCol goveer.Colour
}

// FlipSequence is a dynamical sequence of forward flips followed by a
// relabelling.  It tracks both endpoints of the path: start is the
// triangulation the first flip applies to and end is the result of all
// flips plus the relabelling.
//
// A sequence is reduced when its start carries Purple edges, in which case
// every intermediate triangulation is kept in reduced form and flip
// colours may stay undetermined until the whole path fixes them.
type FlipSequence struct {
	start       *VeeringTriangulation
	end         *VeeringTriangulation
	flips       []FlipRecord
	relabelling Perm
	reduced     bool
	mutable     bool
}

// NewFlipSequence builds a sequence starting at start, applies the given
// flips in order and then the relabelling (either may be nil).  The
// sequence is reduced exactly when start has Purple edges.
func NewFlipSequence(start *VeeringTriangulation, flips []EdgeFlip, relabelling Perm) (*FlipSequence, error) {
	return newFlipSequence(start, flips, relabelling, start.HasPurple())
}

// NewReducedFlipSequence is NewFlipSequence on the reduced form of start:
// forward-flippable edges are re-marked Purple before any flip is applied.
func NewReducedFlipSequence(start *VeeringTriangulation, flips []EdgeFlip, relabelling Perm) (*FlipSequence, error) {
	return newFlipSequence(start, flips, relabelling, true)
}

// FlipSequenceFromString builds a sequence from a flip string such as
// "1R 0R" and a relabelling in cycle notation such as "(0,~0)(1,2)".
// Either string may be empty.
func FlipSequenceFromString(start *VeeringTriangulation, flipStr, relabelStr string) (*FlipSequence, error) {
	flips, err := ParseFlipString(flipStr)
	if err != nil {
		return nil, err
	}
	var rel Perm
	if relabelStr != "" {
		rel, err = ParsePermCycles(relabelStr, start.NumHalfEdges(), start.EdgePairing())
		if err != nil {
			return nil, err
		}
	}
	return NewFlipSequence(start, flips, rel)
}

func newFlipSequence(start *VeeringTriangulation, flips []EdgeFlip, relabelling Perm, reduced bool) (*FlipSequence, error) {
	if start.HasGreen() {
		return nil, errors.Wrap(goveer.ErrBadColouring, "Green edges not allowed in forward flip sequences")
	}
	if !reduced && start.HasPurple() {
		return nil, errors.Wrap(goveer.ErrUndeterminedColour, "Purple start requires a reduced sequence")
	}
	S := start.Copy(true)
	if reduced {
		if err := S.ForgetForwardColours(); err != nil {
			return nil, err
		}
	}
	F := &FlipSequence{
		start:       S,
		end:         S.Copy(true),
		relabelling: PermIdentity(S.NumHalfEdges()),
		reduced:     reduced,
		mutable:     true,
	}
	for _, f := range flips {
		if err := F.Flip(f.Edge, f.Col); err != nil {
			return nil, err
		}
	}
	if relabelling != nil {
		if err := F.Relabel(relabelling); err != nil {
			return nil, err
		}
	}
	return F, nil
}

// Start returns a copy of the triangulation the sequence starts at.
func (F *FlipSequence) Start() *VeeringTriangulation { return F.start.Copy(false) }

// End returns a copy of the triangulation the sequence ends at.
func (F *FlipSequence) End() *VeeringTriangulation { return F.end.Copy(false) }

// Flips returns the recorded flips in start labels, without the
// pre-flip colours.
func (F *FlipSequence) Flips() []EdgeFlip {
	flips := make([]EdgeFlip, len(F.flips))
	for i, fl := range F.flips {
		flips[i] = EdgeFlip{Edge: fl.Edge, Col: fl.Col}
	}
	return flips
}

// FlipRecords returns the recorded flips including pre-flip colours.
func (F *FlipSequence) FlipRecords() []FlipRecord {
	return append([]FlipRecord(nil), F.flips...)
}

// Relabelling returns a copy of the half-edge relabelling applied after
// the flips.
func (F *FlipSequence) Relabelling() Perm { return F.relabelling.Copy() }

// IsReduced reports whether the sequence lives on reduced triangulations.
func (F *FlipSequence) IsReduced() bool { return F.reduced }

// IsMutable reports whether structural mutation is still allowed.
func (F *FlipSequence) IsMutable() bool { return F.mutable }

// SetImmutable freezes the sequence.  Frozen sequences can be shared and
// used as map keys through CanonicalString without copy.
func (F *FlipSequence) SetImmutable() { F.mutable = false }

// Copy returns an independent copy of the sequence.
func (F *FlipSequence) Copy() *FlipSequence {
	return &FlipSequence{
		start:       F.start.Copy(true),
		end:         F.end.Copy(true),
		flips:       append([]FlipRecord(nil), F.flips...),
		relabelling: F.relabelling.Copy(),
		reduced:     F.reduced,
		mutable:     true,
	}
}

// Equal reports structural equality: same start, same flips in the same
// order and same relabelling.
func (F *FlipSequence) Equal(G *FlipSequence) bool {
	if !F.start.Equal(G.start) || !F.end.Equal(G.end) {
		return false
	}
	if len(F.flips) != len(G.flips) {
		return false
	}
	for i := range F.flips {
		if F.flips[i] != G.flips[i] {
			return false
		}
	}
	if len(F.relabelling) != len(G.relabelling) {
		return false
	}
	for i := range F.relabelling {
		if F.relabelling[i] != G.relabelling[i] {
			return false
		}
	}
	return true
}

// Flip applies one more forward flip of edge e towards col at the end of
// the sequence.  The flip is recorded in start labels, pulling it back
// through the current relabelling.
func (F *FlipSequence) Flip(e int, col goveer.Colour) error {
	if !F.mutable {
		return errors.Wrap(goveer.ErrImmutable, "Flip")
	}
	oldcol := F.end.EdgeColour(e)
	e = F.end.Norm(e)
	if err := F.end.Flip(e, col); err != nil {
		return err
	}
	if F.relabelling[e] != e {
		e = F.start.Norm(PermPreimage(F.relabelling, e))
	}
	F.flips = append(F.flips, FlipRecord{Edge: e, Col: col, OldCol: oldcol})
	return nil
}

// ApplyFlipString applies every flip of a string such as "1R 0B 2R".
func (F *FlipSequence) ApplyFlipString(str string) error {
	flips, err := ParseFlipString(str)
	if err != nil {
		return err
	}
	for _, f := range flips {
		if err := F.Flip(f.Edge, f.Col); err != nil {
			return err
		}
	}
	return nil
}

// Relabel composes one more relabelling onto the end of the sequence.
func (F *FlipSequence) Relabel(r Perm) error {
	if !F.mutable {
		return errors.Wrap(goveer.ErrImmutable, "Relabel")
	}
	if !PermCheck(r, F.end.NumHalfEdges()) {
		return errors.Wrap(goveer.ErrBadPermutation, "Relabel")
	}
	if err := F.end.Relabel(r); err != nil {
		return err
	}
	F.relabelling = PermCompose(F.relabelling, r)
	return nil
}

// RelabelCycles is Relabel with the permutation given in cycle notation.
func (F *FlipSequence) RelabelCycles(str string) error {
	r, err := ParsePermCycles(str, F.end.NumHalfEdges(), F.end.EdgePairing())
	if err != nil {
		return err
	}
	return F.Relabel(r)
}

// Swap flips the orientation of edge e by adjusting only the relabelling
// of the sequence.
func (F *FlipSequence) Swap(e int) error {
	if !F.mutable {
		return errors.Wrap(goveer.ErrImmutable, "Swap")
	}
	E := F.end.EdgePairing()[e]
	if err := F.end.Swap(e); err != nil {
		return err
	}
	F.relabelling[e] = E
	F.relabelling[E] = e
	if DebugChecks {
		return F.selfCheck()
	}
	return nil
}

// Append extends F in place with the flips and relabelling of G.  The end
// of F must equal the start of G.
func (F *FlipSequence) Append(G *FlipSequence) error {
	if !F.mutable {
		return errors.Wrap(goveer.ErrImmutable, "Append")
	}
	if !F.end.Equal(G.start) {
		return errors.Wrapf(goveer.ErrComposition, "end %v does not match start %v", F.end, G.start)
	}
	ne := F.start.NumEdges()
	ep := F.start.EdgePairing()
	r := PermInvert(F.relabelling)
	for _, fl := range G.flips {
		e := r[fl.Edge]
		if e >= ne {
			e = ep[e]
		}
		F.flips = append(F.flips, FlipRecord{Edge: e, Col: fl.Col, OldCol: fl.OldCol})
	}
	F.end = G.end.Copy(true)
	F.relabelling = PermCompose(F.relabelling, G.relabelling)
	if DebugChecks {
		return F.selfCheck()
	}
	return nil
}

// Compose returns the concatenation F then G as a new sequence.
func (F *FlipSequence) Compose(G *FlipSequence) (*FlipSequence, error) {
	res := F.Copy()
	if err := res.Append(G); err != nil {
		return nil, err
	}
	return res, nil
}

// Pow returns the k-th iterate of a closed sequence.
func (F *FlipSequence) Pow(k int) (*FlipSequence, error) {
	if !F.IsClosed() {
		return nil, errors.Wrap(goveer.ErrNotClosed, "Pow")
	}
	if k < 0 {
		return nil, errors.Wrapf(goveer.ErrNegativeExponent, "Pow(%d)", k)
	}
	if k == 0 {
		return newFlipSequence(F.start, nil, nil, F.reduced)
	}
	if k == 1 {
		return F, nil
	}

	res := F.Copy()
	res.relabelling = PermPow(res.relabelling, k)

	// Each extra copy of the flips is pulled back through one more
	// application of the original relabelling.
	m := len(res.flips)
	ne := F.start.NumEdges()
	ep := F.start.EdgePairing()
	r := PermInvert(F.relabelling)
	for i := 0; i < m*(k-1); i++ {
		fl := res.flips[len(res.flips)-m]
		e := r[fl.Edge]
		if e >= ne {
			e = ep[e]
		}
		res.flips = append(res.flips, FlipRecord{Edge: e, Col: fl.Col, OldCol: fl.OldCol})
	}
	if DebugChecks {
		if err := res.selfCheck(); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// Inverse returns a conjugate of the inverse of the mapping class defined
// by this sequence, again as a forward flip sequence.
func (F *FlipSequence) Inverse() (*FlipSequence, error) {
	reduced := F.start.HasPurple()
	var colouredFlips []FlipRecord
	var V *VeeringTriangulation
	if reduced {
		// Determine the concrete colour of every flipped edge by
		// replaying the path from the coloured start.
		W, err := F.ColouredStart()
		if err != nil {
			return nil, err
		}
		for _, fl := range F.flips {
			colouredFlips = append(colouredFlips, FlipRecord{Edge: fl.Edge, Col: fl.Col, OldCol: W.EdgeColour(fl.Edge)})
			if err := W.Flip(fl.Edge, fl.Col); err != nil {
				return nil, err
			}
		}
		if err := W.Relabel(F.relabelling); err != nil {
			return nil, err
		}
		V = W
	} else {
		colouredFlips = F.flips
		V = F.end.Copy(true)
	}

	inverseFlips := make([]EdgeFlip, 0, len(colouredFlips))
	for i := len(colouredFlips) - 1; i >= 0; i-- {
		fl := colouredFlips[i]
		if !fl.OldCol.IsConcrete() {
			return nil, errors.Wrapf(goveer.ErrUndeterminedColour, "edge %d", fl.Edge)
		}
		inverseFlips = append(inverseFlips, EdgeFlip{Edge: F.relabelling[fl.Edge], Col: fl.OldCol.Opposite()})
	}

	// Edges flipped an odd number of times come back with swapped
	// orientation, so conjugate the inverted relabelling accordingly.
	ep := F.start.EdgePairing()
	c := PermIdentity(F.start.NumHalfEdges())
	for _, fl := range inverseFlips {
		i := fl.Edge
		c[i], c[ep[i]] = c[ep[i]], c[i]
	}
	r := PermCompose(c, PermInvert(F.relabelling))

	if err := V.Rotate(); err != nil {
		return nil, err
	}
	G, err := newFlipSequence(V, inverseFlips, r, reduced)
	if err != nil {
		return nil, err
	}
	if DebugChecks {
		if err := G.selfCheck(); err != nil {
			return nil, err
		}
	}
	return G, nil
}

// EndColouring returns the concrete colour forced on every edge of the end
// triangulation by the flips of the sequence.  Edges whose colour is never
// forced stay Purple.
func (F *FlipSequence) EndColouring() []goveer.Colour {
	ne := F.end.NumEdges()
	ep := F.end.EdgePairing()
	colours := make([]goveer.Colour, ne)
	undetermined := make(map[int]bool)
	for e := 0; e < ne; e++ {
		colours[e] = F.end.EdgeColour(e)
		if colours[e] == goveer.Purple {
			undetermined[e] = true
		}
	}

	// Run backward through the flips: the last flip of an edge fixes its
	// end colour.
	for i := len(F.flips) - 1; i >= 0 && len(undetermined) > 0; i-- {
		fl := F.flips[i]
		e := F.relabelling[fl.Edge]
		if e >= ne {
			e = ep[e]
		}
		if undetermined[e] {
			delete(undetermined, e)
			colours[e] = fl.Col
		}
	}

	// Unflipped edges keep the colour they carry in the start.
	for e := range undetermined {
		re := PermPreimage(F.relabelling, e)
		if col := F.start.EdgeColour(re); col != goveer.Purple {
			colours[e] = col
		}
	}
	return colours
}

// ColouredStart returns the start triangulation with every Purple edge
// replaced by the concrete colour the sequence forces on it.
func (F *FlipSequence) ColouredStart() (*VeeringTriangulation, error) {
	V := F.start.Copy(true)
	if !V.HasPurple() {
		return V, nil
	}
	colours := F.EndColouring()
	for e := 0; e < V.NumEdges(); e++ {
		if V.EdgeColour(e) != goveer.Purple {
			continue
		}
		if colours[e] == goveer.Purple {
			return nil, errors.Wrapf(goveer.ErrUndeterminedColour, "edge %d", e)
		}
		if err := V.SetEdgeColour(e, colours[e]); err != nil {
			return nil, err
		}
	}
	return V, nil
}

// IsClosed reports whether the sequence comes back to its start.
func (F *FlipSequence) IsClosed() bool { return F.start.Equal(F.end) }

// UnflippedEdges returns the edges of a closed sequence that are never
// flipped by any iterate, sorted increasingly.  The orbit closure under
// the relabelling of the flipped set is taken into account.
func (F *FlipSequence) UnflippedEdges() ([]int, error) {
	if !F.IsClosed() {
		return nil, errors.Wrap(goveer.ErrNotClosed, "UnflippedEdges")
	}
	ne := F.start.NumEdges()
	ep := F.start.EdgePairing()
	r := F.relabelling

	flipped := make(map[int]bool, ne)
	var worklist []int
	for _, fl := range F.flips {
		if !flipped[fl.Edge] {
			flipped[fl.Edge] = true
			worklist = append(worklist, fl.Edge)
		}
	}
	for len(worklist) > 0 && len(flipped) < ne {
		var next []int
		for _, e := range worklist {
			e = r[e]
			if e >= ne {
				e = ep[e]
			}
			if !flipped[e] {
				flipped[e] = true
				next = append(next, e)
			}
		}
		worklist = next
	}

	var out []int
	for e := 0; e < ne; e++ {
		if !flipped[e] {
			out = append(out, e)
		}
	}
	return out, nil
}

// IsPseudoAnosov reports whether the sequence defines a pseudo-Anosov
// mapping class: it must be closed and flip every edge.
func (F *FlipSequence) IsPseudoAnosov() bool {
	if !F.IsClosed() {
		return false
	}
	unflipped, err := F.UnflippedEdges()
	return err == nil && len(unflipped) == 0
}

// Matrix returns the action of the sequence on cohomology (twist true) or
// homology (twist false) as an integer matrix over edge representatives.
func (F *FlipSequence) Matrix(twist bool) (*ratmat.Matrix, error) {
	m := ratmat.Identity(F.start.NumEdges())
	V := F.start.Copy(true)
	for _, fl := range F.flips {
		if err := V.FlipHomologicalAction(fl.Edge, m, twist); err != nil {
			return nil, err
		}
		if err := V.Flip(fl.Edge, fl.Col); err != nil {
			return nil, err
		}
	}
	if err := V.RelabelHomologicalAction(F.relabelling, m, twist); err != nil {
		return nil, err
	}
	return m, nil
}

// MatrixInverse returns the exact rational inverse of Matrix(twist).
func (F *FlipSequence) MatrixInverse(twist bool) (*ratmat.Matrix, error) {
	m, err := F.Matrix(twist)
	if err != nil {
		return nil, err
	}
	return m.Inverse()
}

// NumEdges returns the number of edges of the underlying triangulations.
func (F *FlipSequence) NumEdges() int { return F.start.NumEdges() }

// FlipCount returns the number of recorded flips.
func (F *FlipSequence) FlipCount() int { return len(F.flips) }

// FlipString renders the flips as a string such as "1R 0B".
func (F *FlipSequence) FlipString() string {
	return FlipsToString(F.Flips())
}

// CanonicalString is the full textual form of the sequence.  Two sequences
// are structurally equal exactly when their canonical strings agree.
func (F *FlipSequence) CanonicalString() string {
	return F.String()
}

func (F *FlipSequence) String() string {
	return fmt.Sprintf("VeeringFlipSequence(%v, %q, %q)",
		F.start, F.FlipString(),
		PermCycleString(F.relabelling, F.end.NumEdges(), F.end.EdgePairing()))
}

// AppendEncodingTo appends a compact binary encoding of the sequence.
func (F *FlipSequence) AppendEncodingTo(buf []byte) []byte {
	buf = F.start.AppendEncodingTo(buf)
	buf = binary.AppendUvarint(buf, uint64(len(F.flips)))
	for _, fl := range F.flips {
		buf = binary.AppendUvarint(buf, uint64(fl.Edge))
		buf = append(buf, byte(fl.Col), byte(fl.OldCol))
	}
	for _, v := range F.relabelling {
		buf = binary.AppendUvarint(buf, uint64(v))
	}
	return buf
}

// selfCheck rebuilds the sequence from its start, flips and relabelling
// and verifies every field is reproduced.
func (F *FlipSequence) selfCheck() error {
	G, err := newFlipSequence(F.start, F.Flips(), F.relabelling, F.reduced)
	if err != nil {
		return err
	}
	if !G.start.Equal(F.start) || !G.end.Equal(F.end) {
		return errors.Wrap(goveer.ErrBadTriangulation, "replay endpoints differ")
	}
	for i := range F.relabelling {
		if G.relabelling[i] != F.relabelling[i] {
			return errors.Wrap(goveer.ErrBadPermutation, "replay relabelling differs")
		}
	}
	if len(G.flips) != len(F.flips) {
		return errors.Wrap(goveer.ErrBadFlipString, "replay flips differ")
	}
	for i := range F.flips {
		if G.flips[i] != F.flips[i] {
			return errors.Wrap(goveer.ErrBadFlipString, "replay flips differ")
		}
	}
	return nil
}
