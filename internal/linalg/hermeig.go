package linalg

import (
	"math"
)

// HermitianEigen diagonalizes the Hermitian matrix a via the cyclic
// Jacobi eigenvalue algorithm extended to complex Hermitian matrices: each
// off-diagonal pair is first "de-rotated" by a unitary diagonal phase so
// the target entry is real, then annihilated by a standard real Jacobi
// rotation in that plane. It returns the real eigenvalues (the final
// diagonal) and U such that a = U * diag(eigenvalues) * U^H.
//
// This is the teacher's style of hand-rolling a dense numeric kernel
// rather than reaching for a library that does not cover complex
// Hermitian matrices (exactdiag/mat/gradientdescent.go hand-rolls its own
// ground-state iteration in the same spirit). n is small (2L, L in the
// tens to low hundreds per spec §9), so an O(n^3)-per-sweep classical
// Jacobi sweep is fast enough and, unlike power-iteration-style methods,
// gives every eigenpair at once with good accuracy on nearly-degenerate
// spectra (spec §4.F's "Degeneracy handling").
func HermitianEigen(a *CMatrix, tol float64) (eigenvalues []float64, u *CMatrix, ok bool) {
	n := a.N
	work := a.Clone()
	u = Identity(n)

	const maxSweeps = 100
	for sweep := 0; sweep < maxSweeps; sweep++ {
		offNorm := 0.0
		for p := 0; p < n; p++ {
			for q := p + 1; q < n; q++ {
				offNorm += cabs(work.At(p, q)) * cabs(work.At(p, q))
			}
		}
		if math.Sqrt(offNorm) < tol*math.Max(FrobeniusNorm(work), 1) {
			eigenvalues = make([]float64, n)
			for i := 0; i < n; i++ {
				eigenvalues[i] = real(work.At(i, i))
			}
			return eigenvalues, u, true
		}

		for p := 0; p < n; p++ {
			for q := p + 1; q < n; q++ {
				jacobiStep(work, u, p, q)
			}
		}
	}

	eigenvalues = make([]float64, n)
	for i := 0; i < n; i++ {
		eigenvalues[i] = real(work.At(i, i))
	}
	return eigenvalues, u, false
}

// jacobiStep annihilates work[p][q] (and its conjugate partner) via a
// phase de-rotation followed by a real Jacobi rotation, updating both
// work (in place) and the accumulated eigenvector matrix u.
func jacobiStep(work, u *CMatrix, p, q int) {
	apq := work.At(p, q)
	mag := cabs(apq)
	if mag < 1e-300 {
		return
	}

	phi := math.Atan2(imag(apq), real(apq))
	phase := complex(math.Cos(-phi), math.Sin(-phi)) // e^{-i*phi}
	derotateColumnRow(work, q, phase)
	derotateColumnRowU(u, q, phase)

	app := real(work.At(p, p))
	aqq := real(work.At(q, q))
	apqReal := real(work.At(p, q)) // now real by construction

	var theta float64
	if math.Abs(app-aqq) < 1e-300 {
		theta = math.Pi / 4
	} else {
		theta = 0.5 * math.Atan2(-2*apqReal, app-aqq)
	}
	c, s := math.Cos(theta), math.Sin(theta)
	realRotate(work, p, q, c, s)
	realRotateU(u, p, q, c, s)

	work.Set(p, q, 0)
	work.Set(q, p, 0)
}

// derotateColumnRow applies the unitary similarity transform T^H work T,
// where T is the identity except T[col][col] = phase, in place.
func derotateColumnRow(m *CMatrix, col int, phase complex128) {
	invPhase := conj(phase)
	for i := 0; i < m.N; i++ {
		if i == col {
			continue
		}
		m.Set(i, col, m.At(i, col)*phase)
		m.Set(col, i, m.At(col, i)*invPhase)
	}
}

func derotateColumnRowU(u *CMatrix, col int, phase complex128) {
	for i := 0; i < u.N; i++ {
		u.Set(i, col, u.At(i, col)*phase)
	}
}

// realRotate applies a real Jacobi rotation in the (p,q) plane to m in
// place: rows/columns p,q are recombined as p' = c*p - s*q, q' = s*p + c*q.
func realRotate(m *CMatrix, p, q int, c, s float64) {
	n := m.N
	// Rotate columns p,q for every row i.
	for i := 0; i < n; i++ {
		if i == p || i == q {
			continue
		}
		ip, iq := m.At(i, p), m.At(i, q)
		m.Set(i, p, complex(c, 0)*ip-complex(s, 0)*iq)
		m.Set(i, q, complex(s, 0)*ip+complex(c, 0)*iq)
	}
	// Rotate rows p,q for every column j.
	for j := 0; j < n; j++ {
		if j == p || j == q {
			continue
		}
		pj, qj := m.At(p, j), m.At(q, j)
		m.Set(p, j, complex(c, 0)*pj-complex(s, 0)*qj)
		m.Set(q, j, complex(s, 0)*pj+complex(c, 0)*qj)
	}
	// 2x2 block.
	app, aqq, apq := real(m.At(p, p)), real(m.At(q, q)), real(m.At(p, q))
	newApp := c*c*app - 2*s*c*apq + s*s*aqq
	newAqq := s*s*app + 2*s*c*apq + c*c*aqq
	m.Set(p, p, complex(newApp, 0))
	m.Set(q, q, complex(newAqq, 0))
}

func realRotateU(u *CMatrix, p, q int, c, s float64) {
	for i := 0; i < u.N; i++ {
		ip, iq := u.At(i, p), u.At(i, q)
		u.Set(i, p, complex(c, 0)*ip-complex(s, 0)*iq)
		u.Set(i, q, complex(s, 0)*ip+complex(c, 0)*iq)
	}
}
