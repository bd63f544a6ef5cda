package ratgeom

import (
	"math/big"
)

type lpStatus int

const (
	lpOptimal lpStatus = iota
	lpInfeasible
	lpUnbounded
)

// tableau is a dense simplex tableau over the rationals.  Each row holds
// the coefficients of one equality with its right hand side last; obj
// holds the reduced objective coefficients with the current objective
// value last.  Pivoting follows Bland's rule, which terminates without
// any perturbation even on degenerate systems.
type tableau struct {
	rows  [][]*big.Rat
	obj   []*big.Rat
	basis []int
	ncols int
}

func newRatRow(n int) []*big.Rat {
	row := make([]*big.Rat, n)
	for i := range row {
		row[i] = new(big.Rat)
	}
	return row
}

func (t *tableau) pivot(r, c int) {
	prow := t.rows[r]
	inv := new(big.Rat).Inv(prow[c])
	for j := range prow {
		prow[j].Mul(prow[j], inv)
	}
	for i, row := range t.rows {
		if i == r || row[c].Sign() == 0 {
			continue
		}
		f := new(big.Rat).Set(row[c])
		for j := range row {
			row[j].Sub(row[j], new(big.Rat).Mul(f, prow[j]))
		}
	}
	if t.obj[c].Sign() != 0 {
		f := new(big.Rat).Set(t.obj[c])
		for j := range t.obj {
			t.obj[j].Sub(t.obj[j], new(big.Rat).Mul(f, prow[j]))
		}
	}
	t.basis[r] = c
}

// maximize runs the simplex loop on the current objective row until no
// reduced cost is positive, entering by Bland's rule.
func (t *tableau) maximize() lpStatus {
	for {
		enter := -1
		for j := 0; j < t.ncols; j++ {
			if t.obj[j].Sign() > 0 {
				enter = j
				break
			}
		}
		if enter < 0 {
			return lpOptimal
		}
		leave := -1
		ratio := new(big.Rat)
		for i, row := range t.rows {
			if row[enter].Sign() <= 0 {
				continue
			}
			r := new(big.Rat).Quo(row[t.ncols], row[enter])
			if leave < 0 || r.Cmp(ratio) < 0 ||
				(r.Cmp(ratio) == 0 && t.basis[i] < t.basis[leave]) {
				leave = i
				ratio = r
			}
		}
		if leave < 0 {
			return lpUnbounded
		}
		t.pivot(leave, enter)
	}
}

// lpProblem is a linear program over n free variables: maximize obj.x
// subject to eqA x = eqB and inC x >= inD.
type lpProblem struct {
	n   int
	eqA [][]*big.Rat
	eqB []*big.Rat
	inC [][]*big.Rat
	inD []*big.Rat
}

// solve runs the two phase simplex method.  Free variables are split as
// x = u - v with u, v >= 0, one slack per inequality and one artificial
// per row.  On lpOptimal the returned point has length n.
func (p *lpProblem) solve(obj []*big.Rat) (lpStatus, []*big.Rat) {
	m := len(p.eqA) + len(p.inC)
	nslack := len(p.inC)
	ncols := 2*p.n + nslack + m

	t := &tableau{
		rows:  make([][]*big.Rat, m),
		obj:   newRatRow(ncols + 1),
		basis: make([]int, m),
		ncols: ncols,
	}
	setRow := func(i int, coeffs []*big.Rat, rhs *big.Rat, slack int) {
		row := newRatRow(ncols + 1)
		for j, c := range coeffs {
			row[j].Set(c)
			row[p.n+j].Neg(c)
		}
		if slack >= 0 {
			row[2*p.n+slack].SetInt64(-1)
		}
		row[ncols].Set(rhs)
		if row[ncols].Sign() < 0 {
			for j := range row {
				row[j].Neg(row[j])
			}
		}
		row[2*p.n+nslack+i].SetInt64(1)
		t.rows[i] = row
		t.basis[i] = 2*p.n + nslack + i
	}
	for i := range p.eqA {
		setRow(i, p.eqA[i], p.eqB[i], -1)
	}
	for k := range p.inC {
		setRow(len(p.eqA)+k, p.inC[k], p.inD[k], k)
	}

	// Phase one: drive the artificials to zero by maximizing their
	// negated sum, expressed through the artificial basis.
	for _, row := range t.rows {
		for j := 0; j < 2*p.n+nslack; j++ {
			t.obj[j].Add(t.obj[j], row[j])
		}
		t.obj[ncols].Add(t.obj[ncols], row[ncols])
	}
	if t.maximize() != lpOptimal {
		return lpInfeasible, nil
	}
	art := 2*p.n + nslack
	for i, b := range t.basis {
		if b >= art && t.rows[i][ncols].Sign() != 0 {
			return lpInfeasible, nil
		}
	}

	// Remove artificials still basic at zero, dropping redundant rows.
	for i := 0; i < len(t.rows); {
		if t.basis[i] < art {
			i++
			continue
		}
		pc := -1
		for j := 0; j < art; j++ {
			if t.rows[i][j].Sign() != 0 {
				pc = j
				break
			}
		}
		if pc >= 0 {
			t.pivot(i, pc)
			i++
		} else {
			t.rows = append(t.rows[:i], t.rows[i+1:]...)
			t.basis = append(t.basis[:i], t.basis[i+1:]...)
		}
	}
	// Compact the rows: drop the artificial columns, keeping the right
	// hand side as the new last column.
	for i, row := range t.rows {
		short := make([]*big.Rat, art+1)
		copy(short, row[:art])
		short[art] = row[ncols]
		t.rows[i] = short
	}
	t.ncols = art

	// Phase two: the caller's objective, reduced through the basis.
	t.obj = newRatRow(art + 1)
	cost := func(col int) *big.Rat {
		if col < p.n {
			return obj[col]
		}
		if col < 2*p.n {
			return new(big.Rat).Neg(obj[col-p.n])
		}
		return new(big.Rat)
	}
	for j := 0; j <= art; j++ {
		if j < art {
			t.obj[j].Set(cost(j))
		}
		for i, row := range t.rows {
			cb := cost(t.basis[i])
			if cb.Sign() != 0 {
				t.obj[j].Sub(t.obj[j], new(big.Rat).Mul(cb, row[j]))
			}
		}
	}
	t.obj[art].Neg(t.obj[art])

	status := t.maximize()
	if status == lpUnbounded {
		return lpUnbounded, nil
	}

	x := newRatRow(p.n)
	for i, b := range t.basis {
		v := t.rows[i][t.ncols]
		if b < p.n {
			x[b].Add(x[b], v)
		} else if b < 2*p.n {
			x[b-p.n].Sub(x[b-p.n], v)
		}
	}
	return lpOptimal, x
}

// feasiblePoint returns any point of the constraint set.
func (p *lpProblem) feasiblePoint() ([]*big.Rat, bool) {
	status, x := p.solve(newRatRow(p.n))
	return x, status == lpOptimal
}
