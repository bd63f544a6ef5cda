// Package catalog stores flip sequences in a badger database, keyed by
// their canonical binary encoding so that duplicates are detected on
// insert and selection walks the keys in edge-count order.
package catalog

import (
	"encoding/binary"

	"github.com/dgraph-io/badger/v3"
	"github.com/pkg/errors"
	"github.com/plan-systems/klog"

	"github.com/veering-systems/goveer/goveer"

	"github.com/veering-systems/goveer/libveer"
)

/***

Catalog database format:

	gCatalogStateKey => catalogState

	[NumEdges] (byte), SequenceEncoding, NUL, NUL  => CanonicalString
		...

The single byte prefix groups sequences by edge count, so a Select scan
can seek straight to the first admissible entry and stop at the first
key past the requested maximum.

***/

var gCatalogStateKey = []byte{0x00, 0x00, 0x01}

const (
	catalogMajorVers = 2024
	catalogMinorVers = 1
)

// catalogState is the mutable header record of a catalog.
type catalogState struct {
	MajorVers int
	MinorVers int
	NumSeqs   []uint64 // indexed by edge count
}

func (st *catalogState) marshal(buf []byte) []byte {
	buf = binary.AppendUvarint(buf, uint64(st.MajorVers))
	buf = binary.AppendUvarint(buf, uint64(st.MinorVers))
	buf = binary.AppendUvarint(buf, uint64(len(st.NumSeqs)))
	for _, n := range st.NumSeqs {
		buf = binary.AppendUvarint(buf, n)
	}
	return buf
}

func (st *catalogState) unmarshal(buf []byte) error {
	read := func() (uint64, error) {
		v, n := binary.Uvarint(buf)
		if n <= 0 {
			return 0, errors.Wrap(goveer.ErrBadEncoding, "catalog state")
		}
		buf = buf[n:]
		return v, nil
	}
	major, err := read()
	if err != nil {
		return err
	}
	minor, err := read()
	if err != nil {
		return err
	}
	count, err := read()
	if err != nil {
		return err
	}
	st.MajorVers = int(major)
	st.MinorVers = int(minor)
	st.NumSeqs = make([]uint64, count)
	for i := range st.NumSeqs {
		if st.NumSeqs[i], err = read(); err != nil {
			return err
		}
	}
	return nil
}

type catalog struct {
	readOnly   bool
	stateDirty bool
	state      catalogState
	db         *badger.DB
}

// OpenCatalog opens (or creates) a sequence catalog.  An empty DbPathName
// opens an in-memory catalog, handy for tests and one-shot pipelines.
func OpenCatalog(opts goveer.CatalogOpts) (goveer.Catalog, error) {
	cat := &catalog{
		readOnly: opts.ReadOnly,
	}

	dbOpts := badger.DefaultOptions(opts.DbPathName)
	dbOpts.ReadOnly = opts.ReadOnly
	dbOpts.DetectConflicts = false // single writer, so skip the overhead
	dbOpts.Logger = nil

	if len(opts.DbPathName) == 0 {
		if opts.ReadOnly {
			return nil, errors.Wrap(goveer.ErrBadCatalogParam, "DbPathName must be specified for read-only catalog")
		}
		dbOpts.InMemory = true
	}

	var err error
	cat.db, err = badger.Open(dbOpts)
	if err != nil {
		return nil, err
	}

	err = cat.loadState()
	if err == badger.ErrKeyNotFound {
		err = nil
		cat.stateDirty = true
		cat.state.MajorVers = catalogMajorVers
		cat.state.MinorVers = catalogMinorVers
	}
	if err == nil && (cat.state.MajorVers != catalogMajorVers || cat.state.MinorVers != catalogMinorVers) {
		err = errors.New("catalog version is incompatible")
	}
	if err != nil {
		cat.Close()
		return nil, err
	}

	klog.Infof("opened catalog %q (%d sequences)", opts.DbPathName, cat.totalSeqs())
	return cat, nil
}

func (cat *catalog) totalSeqs() (total uint64) {
	for _, n := range cat.state.NumSeqs {
		total += n
	}
	return
}

func (cat *catalog) loadState() error {
	return cat.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(gCatalogStateKey)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return cat.state.unmarshal(val)
		})
	})
}

func (cat *catalog) flushState() {
	if !cat.stateDirty || cat.readOnly {
		return
	}
	err := cat.db.Update(func(txn *badger.Txn) error {
		return txn.Set(gCatalogStateKey, cat.state.marshal(nil))
	})
	if err != nil {
		klog.Errorf("catalog state flush failed: %v", err)
		return
	}
	cat.stateDirty = false
}

func (cat *catalog) Close() error {
	cat.flushState()
	if cat.db != nil {
		cat.db.Close()
		cat.db = nil
	}
	return nil
}

func (cat *catalog) IsReadOnly() bool {
	return cat.readOnly
}

func (cat *catalog) NumSequences(numEdges int) int64 {
	if numEdges <= 0 || numEdges >= len(cat.state.NumSeqs) {
		return 0
	}
	return int64(cat.state.NumSeqs[numEdges])
}

// formSeqKey renders the catalog key of seq: edge count byte, canonical
// encoding, double NUL terminator.
func formSeqKey(key []byte, seq goveer.Sequence) ([]byte, error) {
	ne := seq.NumEdges()
	if ne <= 0 || ne > 0xFF {
		return nil, errors.Wrapf(goveer.ErrBadCatalogParam, "edge count %d", ne)
	}
	key = append(key, byte(ne))
	key = seq.AppendEncodingTo(key)
	key = append(key, 0, 0)
	return key, nil
}

// TryAddSequence adds the given sequence if it is not already present.
//
// If true is returned, seq was not present and was added.
func (cat *catalog) TryAddSequence(seq goveer.Sequence) bool {
	if cat.readOnly {
		return false
	}
	var keyBuf [256]byte
	key, err := formSeqKey(keyBuf[:0], seq)
	if err != nil {
		return false
	}

	txn := cat.db.NewTransaction(true)
	defer txn.Discard()

	if _, err = txn.Get(key); err != badger.ErrKeyNotFound {
		return false
	}
	if err = txn.Set(key, []byte(seq.CanonicalString())); err != nil {
		klog.Errorf("catalog set failed: %v", err)
		return false
	}
	if err = txn.Commit(); err != nil {
		klog.Errorf("catalog commit failed: %v", err)
		return false
	}

	ne := seq.NumEdges()
	for len(cat.state.NumSeqs) <= ne {
		cat.state.NumSeqs = append(cat.state.NumSeqs, 0)
	}
	cat.state.NumSeqs[ne]++
	cat.stateDirty = true
	return true
}

// Select streams every stored sequence admitted by sel, in key order.
func (cat *catalog) Select(sel goveer.SequenceSelector) *goveer.SequenceStream {
	stream := goveer.NewSequenceStream()
	go func() {
		defer stream.Close()

		txn := cat.db.NewTransaction(false)
		defer txn.Discard()

		it := txn.NewIterator(badger.IteratorOptions{
			PrefetchValues: true,
			PrefetchSize:   100,
		})
		defer it.Close()

		minKey := [1]byte{1}
		if sel.Min.NumEdges > 1 {
			minKey[0] = byte(sel.Min.NumEdges)
		}
		for it.Seek(minKey[:]); it.Valid(); it.Next() {
			curKey := it.Item().Key()
			if sel.Max.NumEdges > 0 && int(curKey[0]) > sel.Max.NumEdges {
				break
			}
			var seq *libveer.FlipSequence
			err := it.Item().Value(func(val []byte) (err error) {
				seq, err = libveer.ParseFlipSequence(string(val))
				return
			})
			if err != nil {
				klog.Errorf("catalog entry decode failed: %v", err)
				continue
			}
			if sel.Admits(seq) {
				stream.PushSeq(seq)
			}
		}
	}()
	return stream
}
