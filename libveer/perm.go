// Package libveer implements veering triangulations, flip sequences, and
// linear families of veering structures.
package libveer

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/veering-systems/goveer/goveer"
)

// Perm is a permutation of {0, .., n-1}, stored as its image table.
type Perm []int

func PermIdentity(n int) Perm {
	p := make(Perm, n)
	for i := range p {
		p[i] = i
	}
	return p
}

// PermCheck returns whether p is a valid permutation of {0, .., n-1}.
func PermCheck(p Perm, n int) bool {
	if len(p) != n {
		return false
	}
	seen := make([]bool, n)
	for _, v := range p {
		if v < 0 || v >= n || seen[v] {
			return false
		}
		seen[v] = true
	}
	return true
}

// PermCompose returns the permutation "p then q": result[i] = q[p[i]].
func PermCompose(p, q Perm) Perm {
	r := make(Perm, len(p))
	for i, v := range p {
		r[i] = q[v]
	}
	return r
}

func PermInvert(p Perm) Perm {
	r := make(Perm, len(p))
	for i, v := range p {
		r[v] = i
	}
	return r
}

// PermPow returns the k-th power of p (k >= 0).
func PermPow(p Perm, k int) Perm {
	r := PermIdentity(len(p))
	for ; k > 0; k-- {
		r = PermCompose(r, p)
	}
	return r
}

// PermConjugate returns r.p.r^-1, the relabelling of p under r:
// result[r[i]] = r[p[i]].
func PermConjugate(p, r Perm) Perm {
	q := make(Perm, len(p))
	for i, v := range p {
		q[r[i]] = r[v]
	}
	return q
}

// PermPreimage returns the index mapping to v under p.
func PermPreimage(p Perm, v int) int {
	for i, w := range p {
		if w == v {
			return i
		}
	}
	return -1
}

func (p Perm) Copy() Perm {
	q := make(Perm, len(p))
	copy(q, p)
	return q
}

// PermFromCycles builds a permutation of {0, .., n-1} from explicit cycles
// over half-edges, completing it so that it commutes with the edge
// involution ep: whenever a |-> b is specified, ep[a] |-> ep[b] is implied.
// Unconstrained half-edges are fixed.
func PermFromCycles(cycles [][]int, n int, ep Perm) (Perm, error) {
	p := make(Perm, n)
	for i := range p {
		p[i] = -1
	}
	set := func(a, b int) error {
		if a < 0 || a >= n || b < 0 || b >= n {
			return errors.Wrapf(goveer.ErrBadPermutation, "half-edge out of range in cycle (%d -> %d)", a, b)
		}
		if p[a] >= 0 && p[a] != b {
			return errors.Wrapf(goveer.ErrBadPermutation, "conflicting images for half-edge %d", a)
		}
		p[a] = b
		if p[ep[a]] >= 0 && p[ep[a]] != ep[b] {
			return errors.Wrapf(goveer.ErrBadPermutation, "cycles do not respect the edge pairing at %d", a)
		}
		p[ep[a]] = ep[b]
		return nil
	}
	for _, cyc := range cycles {
		for i, a := range cyc {
			b := cyc[(i+1)%len(cyc)]
			if err := set(a, b); err != nil {
				return nil, err
			}
		}
	}
	for i, v := range p {
		if v < 0 {
			p[i] = i
		}
	}
	if !PermCheck(p, n) {
		return nil, errors.Wrap(goveer.ErrBadPermutation, "cycles do not define a permutation")
	}
	return p, nil
}

// halfEdgeLabel renders h with the tilde convention: canonical edge
// representatives print bare, their partners print as "~rep".
func halfEdgeLabel(h, ne int, ep Perm) string {
	if h < ne {
		return fmt.Sprintf("%d", h)
	}
	return fmt.Sprintf("~%d", ep[h])
}

// PermCycleString renders p in cycle notation over half-edges, cycles
// ordered and started at their minimal element.
func PermCycleString(p Perm, ne int, ep Perm) string {
	n := len(p)
	seen := make([]bool, n)
	var b strings.Builder
	for i := 0; i < n; i++ {
		if seen[i] {
			continue
		}
		b.WriteByte('(')
		for j := i; !seen[j]; j = p[j] {
			if j != i {
				b.WriteByte(',')
			}
			b.WriteString(halfEdgeLabel(j, ne, ep))
			seen[j] = true
		}
		b.WriteByte(')')
	}
	return b.String()
}

// EdgePermFromRelabelling projects a half-edge relabelling r down to the
// induced permutation of edge representatives {0, .., ne-1}.
func EdgePermFromRelabelling(ep, r Perm, ne int) (Perm, error) {
	rr := make(Perm, ne)
	for i := 0; i < ne; i++ {
		if ep[i] < i {
			return nil, errors.Wrapf(goveer.ErrNotCanonical, "edge %d", i)
		}
		j := r[i]
		if j >= ne {
			j = r[ep[i]]
			if j >= ne {
				return nil, errors.Wrapf(goveer.ErrNotCanonical, "relabelling does not preserve canonical form at edge %d", i)
			}
		}
		rr[i] = j
	}
	return rr, nil
}
