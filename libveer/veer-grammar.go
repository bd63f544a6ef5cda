package libveer

import (
	"sort"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
	"github.com/pkg/errors"

	"github.com/veering-systems/goveer/goveer"
)

// Cycle notation over half-edges, e.g. "(0,1,2)(~0,~1,~2)".  A "~x" label
// denotes the partner half-edge of x under the edge involution.

type CyclesExpr struct {
	Cycles []*CycleRun `@@*`
}

type CycleRun struct {
	Labels []*HalfEdgeLabel `"(" @@ ("," @@)* ")"`
}

type HalfEdgeLabel struct {
	Tilde bool `@"~"?`
	Num   int  `@Int`
}

// Flip strings, e.g. "1R 0B": edge representative followed by the colour
// the flip assigns.

type FlipsExpr struct {
	Flips []*FlipTok `@@*`
}

type FlipTok struct {
	Edge int    `@Int`
	Col  string `@Col`
}

// The default lexer scans Go literals, where a token like "0B" is a
// malformed binary literal rather than edge 0 plus a colour letter.
var sFlipLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Int", Pattern: `[0-9]+`},
	{Name: "Col", Pattern: `[A-Z]+`},
	{Name: "whitespace", Pattern: `[ \t]+`},
})

// Full sequence form as produced by FlipSequence.String, e.g.
// VeeringFlipSequence(VeeringTriangulation("(0,1,2)(~2,~0,~1)", "RRB"), "1R 0R", "(0,2)(1,~1)(~2,~0)")

type SeqExpr struct {
	Faces   string `"VeeringFlipSequence" "(" "VeeringTriangulation" "(" @String`
	Colours string `"," @String ")"`
	Flips   string `"," @String`
	Rel     string `"," @String ")"`
}

var (
	parseCyclesExpr = participle.MustBuild[CyclesExpr]()
	parseFlipsExpr  = participle.MustBuild[FlipsExpr](participle.Lexer(sFlipLexer))
	parseSeqExpr    = participle.MustBuild[SeqExpr]()
)

// EdgeFlip is one entry of a flip instruction string.
type EdgeFlip struct {
	Edge int
	Col  goveer.Colour
}

// ParseFlipString parses a whitespace-separated flip string such as
// "1R 0R 4B".
func ParseFlipString(str string) ([]EdgeFlip, error) {
	if strings.TrimSpace(str) == "" {
		return nil, nil
	}
	expr, err := parseFlipsExpr.ParseString("", str)
	if err != nil {
		return nil, errors.Wrapf(goveer.ErrBadFlipString, "%q: %v", str, err)
	}
	flips := make([]EdgeFlip, 0, len(expr.Flips))
	for _, tok := range expr.Flips {
		if len(tok.Col) != 1 {
			return nil, errors.Wrapf(goveer.ErrBadFlipString, "%q", str)
		}
		col, err := goveer.ColourFromRune(rune(tok.Col[0]))
		if err != nil {
			return nil, err
		}
		flips = append(flips, EdgeFlip{Edge: tok.Edge, Col: col})
	}
	return flips, nil
}

// FlipsToString renders flips in the form parsed by ParseFlipString.
func FlipsToString(flips []EdgeFlip) string {
	var b strings.Builder
	for i, f := range flips {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(strconv.Itoa(f.Edge))
		b.WriteRune(f.Col.Rune())
	}
	return b.String()
}

// ParseFlipSequence rebuilds a sequence from its canonical string form,
// the inverse of FlipSequence.String.
func ParseFlipSequence(str string) (*FlipSequence, error) {
	expr, err := parseSeqExpr.ParseString("", str)
	if err != nil {
		return nil, errors.Wrapf(goveer.ErrBadEncoding, "%q: %v", str, err)
	}
	V, err := NewVeeringTriangulation(expr.Faces, expr.Colours)
	if err != nil {
		return nil, err
	}
	return FlipSequenceFromString(V, expr.Flips, expr.Rel)
}

// parseFacePerm builds (fp, ep, ne) from a face-permutation string.
//
// Edge representatives must be exactly 0..ne-1.  An edge whose "~" label
// never appears is folded (a fixed point of ep); otherwise the partner
// half-edges are numbered ne..n-1, assigned so that the doubled
// representatives in increasing order pair with decreasing top labels.
func parseFacePerm(str string) (fp, ep Perm, ne int, err error) {
	expr, err := parseCyclesExpr.ParseString("", str)
	if err != nil {
		return nil, nil, 0, errors.Wrapf(goveer.ErrBadTriangulation, "%q: %v", str, err)
	}
	plain := map[int]int{}  // label -> occurrences
	tilded := map[int]int{} // label -> occurrences
	for _, cyc := range expr.Cycles {
		for _, lab := range cyc.Labels {
			if lab.Num < 0 {
				return nil, nil, 0, errors.Wrapf(goveer.ErrBadTriangulation, "%q", str)
			}
			if lab.Tilde {
				tilded[lab.Num]++
			} else {
				plain[lab.Num]++
			}
		}
	}
	ne = len(plain)
	for e := 0; e < ne; e++ {
		if plain[e] != 1 {
			return nil, nil, 0, errors.Wrapf(goveer.ErrBadTriangulation, "edge labels of %q are not 0..%d", str, ne-1)
		}
	}
	doubled := make([]int, 0, len(tilded))
	for e, cnt := range tilded {
		if cnt != 1 || e < 0 || e >= ne {
			return nil, nil, 0, errors.Wrapf(goveer.ErrBadTriangulation, "bad ~%d in %q", e, str)
		}
		doubled = append(doubled, e)
	}
	sort.Ints(doubled)
	n := ne + len(doubled)
	ep = PermIdentity(n)
	for i, e := range doubled {
		top := n - 1 - i
		ep[e] = top
		ep[top] = e
	}
	halfEdge := func(lab *HalfEdgeLabel) int {
		if lab.Tilde {
			return ep[lab.Num]
		}
		return lab.Num
	}
	fp = make(Perm, n)
	for i := range fp {
		fp[i] = -1
	}
	for _, cyc := range expr.Cycles {
		k := len(cyc.Labels)
		for i, lab := range cyc.Labels {
			a := halfEdge(lab)
			b := halfEdge(cyc.Labels[(i+1)%k])
			if fp[a] != -1 {
				return nil, nil, 0, errors.Wrapf(goveer.ErrBadTriangulation, "half-edge repeated in %q", str)
			}
			fp[a] = b
		}
	}
	if !PermCheck(fp, n) {
		return nil, nil, 0, errors.Wrapf(goveer.ErrBadTriangulation, "%q does not define a permutation", str)
	}
	return fp, ep, ne, nil
}

// ParsePermCycles parses a relabelling in cycle notation against an
// existing edge involution, completing the permutation so that it respects
// the pairing.  Top half-edges must be written as "~k" with k < ne; raw
// labels at or above ne are rejected.
func ParsePermCycles(str string, n int, ep Perm) (Perm, error) {
	expr, err := parseCyclesExpr.ParseString("", str)
	if err != nil {
		return nil, errors.Wrapf(goveer.ErrBadPermutation, "%q: %v", str, err)
	}
	ne := 0
	for i := 0; i < n; i++ {
		if ep[i] >= i {
			ne++
		}
	}
	cycles := make([][]int, 0, len(expr.Cycles))
	for _, cyc := range expr.Cycles {
		ids := make([]int, 0, len(cyc.Labels))
		for _, lab := range cyc.Labels {
			if lab.Num < 0 || lab.Num >= ne {
				return nil, errors.Wrapf(goveer.ErrBadPermutation, "bad edge label %d in %q", lab.Num, str)
			}
			h := lab.Num
			if lab.Tilde {
				h = ep[h]
			}
			ids = append(ids, h)
		}
		cycles = append(cycles, ids)
	}
	return PermFromCycles(cycles, n, ep)
}
