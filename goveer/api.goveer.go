package goveer

// Sequence is the read-only view of a veering flip sequence that the catalog
// and stream machinery operate on.
//
// The canonical implementation is libveer.FlipSequence.
type Sequence interface {

	// NumEdges returns the edge count of the start (and end) triangulation.
	NumEdges() int

	// FlipCount returns the number of flips in the log.
	FlipCount() int

	// IsClosed returns true when the end triangulation equals the start.
	IsClosed() bool

	// IsPseudoAnosov returns true when the sequence is closed and flips
	// every edge orbit at least once.
	IsPseudoAnosov() bool

	// CanonicalString returns a string from which the sequence can be
	// fully reconstructed (start triangulation, flips, relabelling).
	CanonicalString() string

	// AppendEncodingTo appends a canonical binary encoding, suitable as a
	// catalog key prefix, and returns the extended buffer.
	AppendEncodingTo(buf []byte) []byte

	String() string
}

// SequenceSelector narrows which sequences a catalog Select visits.
//
// Zero values mean "no constraint".
type SequenceSelector struct {
	Min struct {
		NumEdges  int
		FlipCount int
	}
	Max struct {
		NumEdges  int // 0 denotes no limit
		FlipCount int // 0 denotes no limit
	}
	PseudoAnosovOnly bool
}

// SelectAll returns a selector that visits every catalogued sequence.
func SelectAll() SequenceSelector {
	return SequenceSelector{}
}

// Admits returns whether seq passes this selector.
func (sel *SequenceSelector) Admits(seq Sequence) bool {
	ne := seq.NumEdges()
	fc := seq.FlipCount()
	if ne < sel.Min.NumEdges || fc < sel.Min.FlipCount {
		return false
	}
	if sel.Max.NumEdges > 0 && ne > sel.Max.NumEdges {
		return false
	}
	if sel.Max.FlipCount > 0 && fc > sel.Max.FlipCount {
		return false
	}
	if sel.PseudoAnosovOnly && !seq.IsPseudoAnosov() {
		return false
	}
	return true
}

// CatalogOpts specifies how a sequence catalog is opened.
type CatalogOpts struct {
	ReadOnly   bool
	DbPathName string // directory path; empty means in-memory
}

// Catalog is a persistent, deduplicating store of flip sequences.
type Catalog interface {

	// TryAddSequence adds the given sequence if it is not already present,
	// returning false if it was a duplicate (or the catalog is read-only).
	TryAddSequence(seq Sequence) bool

	// NumSequences returns how many sequences are stored for the given
	// edge count.
	NumSequences(numEdges int) int64

	// Select streams every stored sequence passing the selector into the
	// returned stream, in catalog (key) order.
	Select(sel SequenceSelector) *SequenceStream

	IsReadOnly() bool

	Close() error
}
