// Package ratmat provides small dense matrices over the exact rationals,
// sized for edge-coordinate computations on triangulated surfaces.
package ratmat

import (
	"math/big"
	"strings"

	"github.com/pkg/errors"

	"github.com/veering-systems/goveer/goveer"
)

// Matrix is a dense rational matrix.  All accessors copy values; entries
// are never aliased with caller state.
type Matrix struct {
	nrows int
	ncols int
	a     []*big.Rat // row-major
}

func NewMatrix(nrows, ncols int) *Matrix {
	m := &Matrix{
		nrows: nrows,
		ncols: ncols,
		a:     make([]*big.Rat, nrows*ncols),
	}
	for i := range m.a {
		m.a[i] = new(big.Rat)
	}
	return m
}

func Identity(n int) *Matrix {
	m := NewMatrix(n, n)
	for i := 0; i < n; i++ {
		m.a[i*n+i].SetInt64(1)
	}
	return m
}

// FromInts builds a matrix from integer rows.
func FromInts(rows [][]int64) *Matrix {
	nr := len(rows)
	nc := 0
	if nr > 0 {
		nc = len(rows[0])
	}
	m := NewMatrix(nr, nc)
	for i, row := range rows {
		for j, v := range row {
			m.a[i*nc+j].SetInt64(v)
		}
	}
	return m
}

func (m *Matrix) NumRows() int { return m.nrows }
func (m *Matrix) NumCols() int { return m.ncols }

func (m *Matrix) At(i, j int) *big.Rat {
	return new(big.Rat).Set(m.a[i*m.ncols+j])
}

func (m *Matrix) Set(i, j int, v *big.Rat) {
	m.a[i*m.ncols+j].Set(v)
}

func (m *Matrix) SetInt(i, j int, v int64) {
	m.a[i*m.ncols+j].SetInt64(v)
}

func (m *Matrix) AddInt(i, j int, v int64) {
	cell := m.a[i*m.ncols+j]
	cell.Add(cell, new(big.Rat).SetInt64(v))
}

func (m *Matrix) Clone() *Matrix {
	c := &Matrix{
		nrows: m.nrows,
		ncols: m.ncols,
		a:     make([]*big.Rat, len(m.a)),
	}
	for i, v := range m.a {
		c.a[i] = new(big.Rat).Set(v)
	}
	return c
}

func (m *Matrix) Equal(o *Matrix) bool {
	if m.nrows != o.nrows || m.ncols != o.ncols {
		return false
	}
	for i := range m.a {
		if m.a[i].Cmp(o.a[i]) != 0 {
			return false
		}
	}
	return true
}

func (m *Matrix) IsIdentity() bool {
	if m.nrows != m.ncols {
		return false
	}
	for i := 0; i < m.nrows; i++ {
		for j := 0; j < m.ncols; j++ {
			v := m.a[i*m.ncols+j]
			if i == j {
				if v.Cmp(ratOne) != 0 {
					return false
				}
			} else if v.Sign() != 0 {
				return false
			}
		}
	}
	return true
}

var ratOne = new(big.Rat).SetInt64(1)

// Mul returns m * o.
func (m *Matrix) Mul(o *Matrix) *Matrix {
	if m.ncols != o.nrows {
		panic("ratmat: dimension mismatch")
	}
	p := NewMatrix(m.nrows, o.ncols)
	tmp := new(big.Rat)
	for i := 0; i < m.nrows; i++ {
		for j := 0; j < o.ncols; j++ {
			cell := p.a[i*o.ncols+j]
			for k := 0; k < m.ncols; k++ {
				tmp.Mul(m.a[i*m.ncols+k], o.a[k*o.ncols+j])
				cell.Add(cell, tmp)
			}
		}
	}
	return p
}

// RowCombine replaces row dst with si*row(i) + sj*row(j), reading the
// source rows before writing.
func (m *Matrix) RowCombine(dst, i, si, j, sj int) {
	nc := m.ncols
	out := make([]*big.Rat, nc)
	ri, rj := big.NewRat(int64(si), 1), big.NewRat(int64(sj), 1)
	for c := 0; c < nc; c++ {
		v := new(big.Rat).Mul(ri, m.a[i*nc+c])
		w := new(big.Rat).Mul(rj, m.a[j*nc+c])
		out[c] = v.Add(v, w)
	}
	copy(m.a[dst*nc:(dst+1)*nc], out)
}

// PermuteRows moves row i to row p[i].
func (m *Matrix) PermuteRows(p []int) {
	out := make([]*big.Rat, len(m.a))
	nc := m.ncols
	for i := 0; i < m.nrows; i++ {
		copy(out[p[i]*nc:(p[i]+1)*nc], m.a[i*nc:(i+1)*nc])
	}
	m.a = out
}

// PermuteCols moves column j to column p[j].
func (m *Matrix) PermuteCols(p []int) {
	out := make([]*big.Rat, len(m.a))
	nc := m.ncols
	for i := 0; i < m.nrows; i++ {
		for j := 0; j < nc; j++ {
			out[i*nc+p[j]] = m.a[i*nc+j]
		}
	}
	m.a = out
}

func (m *Matrix) NegateRow(i int) {
	for c := 0; c < m.ncols; c++ {
		cell := m.a[i*m.ncols+c]
		cell.Neg(cell)
	}
}

func (m *Matrix) NegateCol(j int) {
	for i := 0; i < m.nrows; i++ {
		cell := m.a[i*m.ncols+j]
		cell.Neg(cell)
	}
}

// Echelonize reduces m in place to reduced row echelon form and returns
// its rank.  The form is canonical: two row spaces are equal exactly when
// their echelonized matrices are equal.
func (m *Matrix) Echelonize() int {
	nc := m.ncols
	rank := 0
	for col := 0; col < nc && rank < m.nrows; col++ {
		pivot := -1
		for r := rank; r < m.nrows; r++ {
			if m.a[r*nc+col].Sign() != 0 {
				pivot = r
				break
			}
		}
		if pivot < 0 {
			continue
		}
		if pivot != rank {
			for c := 0; c < nc; c++ {
				m.a[pivot*nc+c], m.a[rank*nc+c] = m.a[rank*nc+c], m.a[pivot*nc+c]
			}
		}
		lead := new(big.Rat).Set(m.a[rank*nc+col])
		for c := 0; c < nc; c++ {
			cell := m.a[rank*nc+c]
			cell.Quo(cell, lead)
		}
		for r := 0; r < m.nrows; r++ {
			if r == rank || m.a[r*nc+col].Sign() == 0 {
				continue
			}
			factor := new(big.Rat).Set(m.a[r*nc+col])
			for c := 0; c < nc; c++ {
				tmp := new(big.Rat).Mul(factor, m.a[rank*nc+c])
				cell := m.a[r*nc+c]
				cell.Sub(cell, tmp)
			}
		}
		rank++
	}
	return rank
}

func (m *Matrix) Rank() int {
	return m.Clone().Echelonize()
}

// TrimZeroRows drops all-zero rows (in place), returning m.
func (m *Matrix) TrimZeroRows() *Matrix {
	nc := m.ncols
	keep := 0
	for i := 0; i < m.nrows; i++ {
		zero := true
		for c := 0; c < nc; c++ {
			if m.a[i*nc+c].Sign() != 0 {
				zero = false
				break
			}
		}
		if !zero {
			copy(m.a[keep*nc:(keep+1)*nc], m.a[i*nc:(i+1)*nc])
			keep++
		}
	}
	m.a = m.a[:keep*nc]
	m.nrows = keep
	return m
}

// RightKernel returns a canonical (echelonized) basis of {v : m v = 0},
// one basis vector per row.
func (m *Matrix) RightKernel() *Matrix {
	red := m.Clone()
	rank := red.Echelonize()
	nc := m.ncols
	pivotOf := make([]int, 0, rank) // pivot column per echelon row
	isPivot := make([]bool, nc)
	for r := 0; r < rank; r++ {
		for c := 0; c < nc; c++ {
			if red.a[r*nc+c].Sign() != 0 {
				pivotOf = append(pivotOf, c)
				isPivot[c] = true
				break
			}
		}
	}
	kernel := NewMatrix(nc-rank, nc)
	kr := 0
	for f := 0; f < nc; f++ {
		if isPivot[f] {
			continue
		}
		kernel.a[kr*nc+f].SetInt64(1)
		for r := 0; r < rank; r++ {
			kernel.a[kr*nc+pivotOf[r]].Neg(red.a[r*nc+f])
		}
		kr++
	}
	kernel.Echelonize()
	return kernel
}

// Inverse returns the inverse of a square matrix.
func (m *Matrix) Inverse() (*Matrix, error) {
	if m.nrows != m.ncols {
		return nil, errors.Wrap(goveer.ErrSingularMatrix, "not square")
	}
	n := m.nrows
	aug := NewMatrix(n, 2*n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			aug.a[i*2*n+j].Set(m.a[i*n+j])
		}
		aug.a[i*2*n+n+i].SetInt64(1)
	}
	aug.Echelonize()
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			want := int64(0)
			if i == j {
				want = 1
			}
			if aug.a[i*2*n+j].Cmp(big.NewRat(want, 1)) != 0 {
				return nil, goveer.ErrSingularMatrix
			}
		}
	}
	inv := NewMatrix(n, n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			inv.a[i*n+j].Set(aug.a[i*2*n+n+j])
		}
	}
	return inv, nil
}

func (m *Matrix) String() string {
	var b strings.Builder
	b.WriteByte('[')
	for i := 0; i < m.nrows; i++ {
		if i > 0 {
			b.WriteString("; ")
		}
		for j := 0; j < m.ncols; j++ {
			if j > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(m.a[i*m.ncols+j].RatString())
		}
	}
	b.WriteByte(']')
	return b.String()
}
