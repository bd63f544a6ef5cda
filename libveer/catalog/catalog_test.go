package catalog_test

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/veering-systems/goveer/goveer"

	"github.com/veering-systems/goveer/libveer"
	"github.com/veering-systems/goveer/libveer/catalog"
)

func torusSequences(t *testing.T) (B, R *libveer.FlipSequence) {
	V, err := libveer.NewVeeringTriangulation("(0,1,2)(~0,~1,~2)", "PBR")
	require.NoError(t, err)
	B, err = libveer.FlipSequenceFromString(V, "0B", "(1,0,~1,~0)(2,~2)")
	require.NoError(t, err)
	R, err = libveer.FlipSequenceFromString(V, "0R", "(0,2)(1,~1)")
	require.NoError(t, err)
	return
}

func TestCatalogInMemory(t *testing.T) {
	cat, err := catalog.OpenCatalog(goveer.CatalogOpts{})
	require.NoError(t, err)
	defer cat.Close()

	B, R := torusSequences(t)
	require.True(t, cat.TryAddSequence(B))
	require.False(t, cat.TryAddSequence(B))
	require.True(t, cat.TryAddSequence(R))
	require.EqualValues(t, 2, cat.NumSequences(3))
	require.EqualValues(t, 0, cat.NumSequences(7))
}

func TestCatalogPersistence(t *testing.T) {
	dir, err := os.MkdirTemp("", "goveer-catalog-test")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	B, R := torusSequences(t)

	cat, err := catalog.OpenCatalog(goveer.CatalogOpts{DbPathName: dir})
	require.NoError(t, err)
	require.False(t, cat.IsReadOnly())
	require.True(t, cat.TryAddSequence(B))
	require.True(t, cat.TryAddSequence(R))
	require.NoError(t, cat.Close())

	cat, err = catalog.OpenCatalog(goveer.CatalogOpts{DbPathName: dir})
	require.NoError(t, err)
	require.EqualValues(t, 2, cat.NumSequences(3))
	require.False(t, cat.TryAddSequence(B))
	require.NoError(t, cat.Close())
}

func TestCatalogReadOnly(t *testing.T) {
	dir, err := os.MkdirTemp("", "goveer-catalog-test")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	B, _ := torusSequences(t)

	cat, err := catalog.OpenCatalog(goveer.CatalogOpts{DbPathName: dir})
	require.NoError(t, err)
	require.True(t, cat.TryAddSequence(B))
	require.NoError(t, cat.Close())

	cat, err = catalog.OpenCatalog(goveer.CatalogOpts{DbPathName: dir, ReadOnly: true})
	require.NoError(t, err)
	require.True(t, cat.IsReadOnly())
	require.False(t, cat.TryAddSequence(B))
	require.EqualValues(t, 1, cat.NumSequences(3))
	require.NoError(t, cat.Close())

	// an in-memory catalog cannot be read-only
	_, err = catalog.OpenCatalog(goveer.CatalogOpts{ReadOnly: true})
	require.Error(t, err)
}

func TestCatalogSelect(t *testing.T) {
	cat, err := catalog.OpenCatalog(goveer.CatalogOpts{})
	require.NoError(t, err)
	defer cat.Close()

	B, R := torusSequences(t)
	require.True(t, cat.TryAddSequence(B))
	require.True(t, cat.TryAddSequence(R))

	seqs := cat.Select(goveer.SelectAll()).PullAll()
	require.Len(t, seqs, 2)
	for _, seq := range seqs {
		require.Equal(t, 3, seq.NumEdges())
		require.True(t, seq.IsClosed())
	}

	sel := goveer.SelectAll()
	sel.Min.NumEdges = 4
	require.Equal(t, 0, cat.Select(sel).Count())

	sel = goveer.SelectAll()
	sel.Max.FlipCount = 1
	require.Equal(t, 2, cat.Select(sel).Count())
}

func TestCatalogSelectRoundTrip(t *testing.T) {
	cat, err := catalog.OpenCatalog(goveer.CatalogOpts{})
	require.NoError(t, err)
	defer cat.Close()

	B, _ := torusSequences(t)
	require.True(t, cat.TryAddSequence(B))

	seqs := cat.Select(goveer.SelectAll()).PullAll()
	require.Len(t, seqs, 1)
	require.Equal(t, B.CanonicalString(), seqs[0].CanonicalString())
}
