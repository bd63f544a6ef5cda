package libveer_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/veering-systems/goveer/libveer"
)

func TestPermBasics(t *testing.T) {
	id := libveer.PermIdentity(4)
	require.Equal(t, libveer.Perm{0, 1, 2, 3}, id)
	require.True(t, libveer.PermCheck(id, 4))
	require.False(t, libveer.PermCheck(id, 3))
	require.False(t, libveer.PermCheck(libveer.Perm{0, 0, 1}, 3))
}

func TestPermComposeOrder(t *testing.T) {
	p := libveer.Perm{1, 2, 0}
	q := libveer.Perm{0, 2, 1}
	// apply p first, then q
	pq := libveer.PermCompose(p, q)
	require.Equal(t, libveer.Perm{2, 1, 0}, pq)
	qp := libveer.PermCompose(q, p)
	require.Equal(t, libveer.Perm{1, 0, 2}, qp)
}

func TestPermInvertPow(t *testing.T) {
	p := libveer.Perm{2, 0, 3, 1}
	inv := libveer.PermInvert(p)
	require.Equal(t, libveer.PermIdentity(4), libveer.PermCompose(p, inv))
	require.Equal(t, libveer.PermIdentity(4), libveer.PermCompose(inv, p))

	require.Equal(t, libveer.PermIdentity(4), libveer.PermPow(p, 0))
	require.Equal(t, p, libveer.PermPow(p, 1))
	require.Equal(t, libveer.PermCompose(p, p), libveer.PermPow(p, 2))
	require.Equal(t, libveer.PermIdentity(4), libveer.PermPow(p, 4))
}

func TestPermPreimage(t *testing.T) {
	p := libveer.Perm{2, 0, 3, 1}
	for v := 0; v < 4; v++ {
		require.Equal(t, v, p[libveer.PermPreimage(p, v)])
	}
}

func TestPermConjugate(t *testing.T) {
	p := libveer.Perm{1, 0, 2}
	r := libveer.Perm{2, 1, 0}
	c := libveer.PermConjugate(p, r)
	// c must act on relabelled points the way p acts on the originals
	for h := 0; h < 3; h++ {
		require.Equal(t, r[p[h]], c[r[h]])
	}
}

func TestPermCycleString(t *testing.T) {
	// torus edge pairing: i <-> n-1-i
	ep := libveer.Perm{5, 4, 3, 2, 1, 0}
	id := libveer.PermIdentity(6)
	require.Equal(t, "(0)(1)(2)(~2)(~1)(~0)", libveer.PermCycleString(id, 3, ep))

	r := libveer.Perm{5, 3, 4, 1, 2, 0}
	require.Equal(t, "(0,~0)(1,~2)(2,~1)", libveer.PermCycleString(r, 3, ep))
}

func TestPermFromCyclesCompletion(t *testing.T) {
	ep := libveer.Perm{5, 4, 3, 2, 1, 0}
	// "(0,1)" must also carry ~0 to ~1
	p, err := libveer.PermFromCycles([][]int{{0, 1}}, 6, ep)
	require.NoError(t, err)
	require.Equal(t, 1, p[0])
	require.Equal(t, 0, p[1])
	require.Equal(t, ep[1], p[ep[0]])
	require.Equal(t, ep[0], p[ep[1]])
	require.Equal(t, 2, p[2])
}

func TestEdgePermFromRelabelling(t *testing.T) {
	ep := libveer.Perm{5, 4, 3, 2, 1, 0}
	r := libveer.PermIdentity(6)
	q, err := libveer.EdgePermFromRelabelling(ep, r, 3)
	require.NoError(t, err)
	require.Equal(t, libveer.Perm{0, 1, 2}, q)

	// swap edges 0 and 2 via their half-edge labels
	r = libveer.Perm{2, 1, 0, 5, 4, 3}
	q, err = libveer.EdgePermFromRelabelling(ep, r, 3)
	require.NoError(t, err)
	require.Equal(t, libveer.Perm{2, 1, 0}, q)
}
