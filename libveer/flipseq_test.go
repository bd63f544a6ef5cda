package libveer_test

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/veering-systems/goveer/goveer"

	"github.com/veering-systems/goveer/libveer"
)

func TestMain(m *testing.M) {
	libveer.DebugChecks = true
	os.Exit(m.Run())
}

func mustVFS(t *testing.T, V *libveer.VeeringTriangulation, flips, rel string) *libveer.FlipSequence {
	F, err := libveer.FlipSequenceFromString(V, flips, rel)
	require.NoError(t, err)
	return F
}

func mustCompose(t *testing.T, seqs ...*libveer.FlipSequence) *libveer.FlipSequence {
	F := seqs[0].Copy()
	for _, G := range seqs[1:] {
		require.NoError(t, F.Append(G))
	}
	return F
}

func TestEmptySequenceString(t *testing.T) {
	T := mustVT(t, "(0,1,2)(~0,~1,~2)", "RRB")
	F, err := libveer.NewFlipSequence(T, nil, nil)
	require.NoError(t, err)
	require.Equal(t,
		`VeeringFlipSequence(VeeringTriangulation("(0,1,2)(~2,~0,~1)", "RRB"), "", "(0)(1)(2)(~2)(~1)(~0)")`,
		F.String())
	require.True(t, F.IsClosed())
	require.False(t, F.IsReduced())
	require.Equal(t, 0, F.FlipCount())
}

func TestSequenceString(t *testing.T) {
	T := mustVT(t, "(0,1,2)(~0,~1,~2)", "RRB")
	F := mustVFS(t, T, "1R 0R", "")
	require.Equal(t,
		`VeeringFlipSequence(VeeringTriangulation("(0,1,2)(~2,~0,~1)", "RRB"), "1R 0R", "(0)(1)(2)(~2)(~1)(~0)")`,
		F.String())
}

func TestReducedSequenceStart(t *testing.T) {
	T := mustVT(t, "(0,1,2)(~0,~1,~2)", "RRB")
	F, err := libveer.NewReducedFlipSequence(T, nil, nil)
	require.NoError(t, err)
	require.True(t, F.IsReduced())
	require.Equal(t, "RPB", F.Start().ColourString())

	require.NoError(t, F.RelabelCycles("(0,~0)(1,~2)"))
	require.Equal(t, "(0,~0)(1,~2)(2,~1)",
		libveer.PermCycleString(F.Relabelling(), 3, T.EdgePairing()))
}

func TestClosedTorusSequences(t *testing.T) {
	T := mustVT(t, "(0,1,2)(~0,~1,~2)", "PBR")
	B := mustVFS(t, T, "0B", "(1,0,~1,~0)(2,~2)")
	R := mustVFS(t, T, "0R", "(0,2)(1,~1)")
	require.True(t, B.IsClosed())
	require.True(t, R.IsClosed())

	un, err := B.UnflippedEdges()
	require.NoError(t, err)
	require.Equal(t, []int{2}, un)

	un, err = R.UnflippedEdges()
	require.NoError(t, err)
	require.Equal(t, []int{1}, un)

	B3, err := B.Pow(3)
	require.NoError(t, err)
	un, err = B3.UnflippedEdges()
	require.NoError(t, err)
	require.Equal(t, []int{2}, un)

	un, err = mustCompose(t, B, R).UnflippedEdges()
	require.NoError(t, err)
	require.Empty(t, un)

	un, err = mustCompose(t, R, B).UnflippedEdges()
	require.NoError(t, err)
	require.Empty(t, un)
}

func TestSphereUnflippedEdges(t *testing.T) {
	Vc := mustVT(t, "(0,~5,4)(1,2,~6)(3,5,6)", "PPBPRBR")
	CR5 := mustVFS(t, Vc, "1B", "(1,2)")
	CL5 := mustVFS(t, Vc, "0R", "(0,4)")
	require.True(t, CR5.IsClosed())
	require.True(t, CL5.IsClosed())

	un, err := CR5.UnflippedEdges()
	require.NoError(t, err)
	require.Equal(t, []int{0, 3, 4, 5, 6}, un)

	un, err = CL5.UnflippedEdges()
	require.NoError(t, err)
	require.Equal(t, []int{1, 2, 3, 5, 6}, un)

	un, err = mustCompose(t, CL5, CR5).UnflippedEdges()
	require.NoError(t, err)
	require.Equal(t, []int{3, 5, 6}, un)
}

func pseudoAnosovFixtures(t *testing.T) (F2, F3, F4, F6 *libveer.FlipSequence) {
	V1 := mustVT(t, "(0,3,4)(1,~3,5)(2,6,~4)", "PPPBRRB")
	V2 := mustVT(t, "(0,4,3)(1,5,~3)(2,6,~4)", "BBPPRRB")
	F2 = mustVFS(t, V1, "0B 1B", "")
	F3 = mustVFS(t, V2, "3B", "(0,1)")
	F4 = mustVFS(t, V2, "2R 3R", "(0,6,1)(2,5)(3,4)")
	F6 = mustVFS(t, V2, "2B", "(2,6)")
	return
}

func TestIsPseudoAnosov(t *testing.T) {
	F2, F3, F4, F6 := pseudoAnosovFixtures(t)

	require.True(t, mustCompose(t, F2, F4, F3).IsPseudoAnosov())
	require.True(t, mustCompose(t, F4, F6).IsPseudoAnosov())
	require.True(t, mustCompose(t, F4, F4, F6).IsPseudoAnosov())

	require.False(t, F2.IsPseudoAnosov())
	require.False(t, mustCompose(t, F2, F3).IsPseudoAnosov())
	require.False(t, mustCompose(t, F3, F2).IsPseudoAnosov())
	require.False(t, mustCompose(t, F4, F4, F4, F6).IsPseudoAnosov())
}

func TestComposeAssociative(t *testing.T) {
	F2, F3, _, _ := pseudoAnosovFixtures(t)

	a := mustCompose(t, mustCompose(t, F2, F3), mustCompose(t, F2, F3))
	b := mustCompose(t, mustCompose(t, F2, mustCompose(t, F3, F2)), F3)
	c := mustCompose(t, F2, mustCompose(t, mustCompose(t, F3, F2), F3))
	require.True(t, a.Equal(b))
	require.True(t, b.Equal(c))
}

func TestComposeIdentityNeutral(t *testing.T) {
	T := mustVT(t, "(0,1,2)(~0,~1,~2)", "PBR")
	B := mustVFS(t, T, "0B", "(1,0,~1,~0)(2,~2)")
	idle := mustVFS(t, T, "", "")

	require.True(t, mustCompose(t, idle, B).Equal(B))
	require.True(t, mustCompose(t, B, idle).Equal(B))
}

func TestComposeRelabelledFlips(t *testing.T) {
	V := mustVT(t, "(0,3,4)(1,~3,5)(2,6,~4)", "PPPBRRB")
	F := mustVFS(t, V, "2B", "(2,6)")
	FF := mustCompose(t, F, F)
	require.Equal(t,
		`VeeringFlipSequence(VeeringTriangulation("(0,3,4)(1,~3,5)(2,6,~4)", "PPPBRRB"), "2B 6B", "(0)(1)(2)(3)(4)(5)(6)(~4)(~3)")`,
		FF.String())
}

func TestComposeMismatch(t *testing.T) {
	T := mustVT(t, "(0,1,2)(~0,~1,~2)", "PBR")
	V := mustVT(t, "(0,3,4)(1,~3,5)(2,6,~4)", "PPPBRRB")
	F := mustVFS(t, T, "", "")
	G := mustVFS(t, V, "", "")
	_, err := F.Compose(G)
	require.ErrorIs(t, err, goveer.ErrComposition)
}

func TestInverse(t *testing.T) {
	V := mustVT(t, "(0,6,5)(1,2,~6)(3,4,~5)", "BPBBRPR")
	B := mustVFS(t, V, "1B", "(1,2)")
	R := mustVFS(t, V, "1R 5R", "(0,2,3)(1,4)(5,6)")

	BR := mustCompose(t, B, R)
	inv, err := BR.Inverse()
	require.NoError(t, err)
	require.Equal(t,
		`VeeringFlipSequence(VeeringTriangulation("(0,6,5)(1,2,~6)(3,4,~5)", "RBRRPBP"), "6B 4R 3B", "(0,3,1,4,2)(5,6,~5,~6)")`,
		inv.String())
	require.Equal(t, BR.FlipCount(), inv.FlipCount())
}

func TestEndColouring(t *testing.T) {
	Vc := mustVT(t, "(0,~5,4)(3,5,6)(1,2,~6)", "PPBPRBR")
	L32 := mustVFS(t, Vc, "1R 3R 6R", "(1,3)(6,~6)")
	require.Equal(t, []goveer.Colour{
		goveer.Purple, goveer.Red, goveer.Blue, goveer.Red,
		goveer.Red, goveer.Blue, goveer.Red,
	}, L32.EndColouring())

	CR5 := mustVFS(t, Vc, "1B", "(1,2)")
	CL5 := mustVFS(t, Vc, "0R", "(0,4)")
	require.Equal(t, []goveer.Colour{
		goveer.Red, goveer.Blue, goveer.Blue, goveer.Red,
		goveer.Red, goveer.Blue, goveer.Red,
	}, mustCompose(t, L32, CR5, CL5).EndColouring())
}

func TestColouredStart(t *testing.T) {
	T := mustVT(t, "(0,1,2)(~0,~1,~2)", "PBR")
	B := mustVFS(t, T, "0B", "(1,0,~1,~0)(2,~2)")
	S, err := B.ColouredStart()
	require.NoError(t, err)
	require.False(t, S.HasPurple())
	require.Equal(t, goveer.Blue, S.EdgeColour(0))

	// edge 0 stays purple when it is never flipped
	idle, err := libveer.NewFlipSequence(T, nil, nil)
	require.NoError(t, err)
	_, err = idle.ColouredStart()
	require.ErrorIs(t, err, goveer.ErrUndeterminedColour)
}

func TestPow(t *testing.T) {
	_, _, F4, _ := pseudoAnosovFixtures(t)

	P2, err := F4.Pow(2)
	require.NoError(t, err)
	require.True(t, P2.Equal(mustCompose(t, F4, F4)))

	P0, err := F4.Pow(0)
	require.NoError(t, err)
	require.Equal(t, 0, P0.FlipCount())
	require.True(t, P0.IsClosed())

	P1, err := F4.Pow(1)
	require.NoError(t, err)
	require.True(t, P1.Equal(F4))

	_, err = F4.Pow(-1)
	require.ErrorIs(t, err, goveer.ErrNegativeExponent)

	F2, _, _, _ := pseudoAnosovFixtures(t)
	_, err = F2.Pow(2)
	require.ErrorIs(t, err, goveer.ErrNotClosed)
}

func TestMatrix(t *testing.T) {
	T := mustVT(t, "(0,1,2)(~0,~1,~2)", "PBR")
	idle, err := libveer.NewFlipSequence(T, nil, nil)
	require.NoError(t, err)
	m, err := idle.Matrix(true)
	require.NoError(t, err)
	require.True(t, m.IsIdentity())

	B := mustVFS(t, T, "0B", "(1,0,~1,~0)(2,~2)")
	m, err = B.Matrix(true)
	require.NoError(t, err)
	B2, err := B.Pow(2)
	require.NoError(t, err)
	m2, err := B2.Matrix(true)
	require.NoError(t, err)
	require.True(t, m2.Equal(m.Mul(m)))

	inv, err := B.MatrixInverse(true)
	require.NoError(t, err)
	require.True(t, m.Mul(inv).IsIdentity())
	require.True(t, inv.Mul(m).IsIdentity())
}

func TestSequenceImmutable(t *testing.T) {
	T := mustVT(t, "(0,1,2)(~0,~1,~2)", "PBR")
	B := mustVFS(t, T, "0B", "(1,0,~1,~0)(2,~2)")
	B.SetImmutable()
	require.False(t, B.IsMutable())
	require.ErrorIs(t, B.Flip(0, goveer.Blue), goveer.ErrImmutable)
	require.ErrorIs(t, B.RelabelCycles("(0,1)"), goveer.ErrImmutable)
	require.ErrorIs(t, B.Swap(0), goveer.ErrImmutable)
	require.ErrorIs(t, B.Append(B), goveer.ErrImmutable)

	C := B.Copy()
	require.True(t, C.IsMutable())
	require.True(t, C.Equal(B))
}

func TestSequenceRejectsBadFlips(t *testing.T) {
	T := mustVT(t, "(0,1,2)(~0,~1,~2)", "RRB")
	_, err := libveer.FlipSequenceFromString(T, "1G", "")
	require.Error(t, err)
	_, err = libveer.FlipSequenceFromString(T, "1P", "")
	require.Error(t, err)
	// edge 0 is not forward flippable on this start
	_, err = libveer.FlipSequenceFromString(T, "0R", "")
	require.ErrorIs(t, err, goveer.ErrNotFlippable)
}

func TestUnflippedEdgesRequireClosed(t *testing.T) {
	F2, _, _, _ := pseudoAnosovFixtures(t)
	_, err := F2.UnflippedEdges()
	require.ErrorIs(t, err, goveer.ErrNotClosed)
}

func TestEncodingRoundTrip(t *testing.T) {
	T := mustVT(t, "(0,1,2)(~0,~1,~2)", "PBR")
	B := mustVFS(t, T, "0B", "(1,0,~1,~0)(2,~2)")
	R := mustVFS(t, T, "0R", "(0,2)(1,~1)")
	require.Equal(t, B.AppendEncodingTo(nil), B.Copy().AppendEncodingTo(nil))
	require.NotEqual(t, B.AppendEncodingTo(nil), R.AppendEncodingTo(nil))

	G, err := libveer.ParseFlipSequence(B.CanonicalString())
	require.NoError(t, err)
	require.True(t, G.Equal(B))
}
