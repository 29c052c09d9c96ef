package linalg

import (
	"math"
	"math/cmplx"

	"github.com/pkg/errors"
)

// LDLFactor decomposes the Hermitian matrix a as a = L D L^H, with L unit
// lower triangular and D real diagonal, using scalar (no 2x2 block)
// pivots. Returns an error if a zero pivot is encountered.
//
// This is the pluggable alternative to the shifted-Cholesky strategy that
// spec §9 asks implementers to expose ("two strategies have been
// considered: shifted Cholesky (current) and LDL^T decomposition (not yet
// accepted)"), grounded directly in the fallback path of
// original_source/pyspinw/calculations/spinwave.py, which falls back from
// numpy.linalg.cholesky to scipy.linalg.ldl on a LinAlgError.
func LDLFactor(a *CMatrix) (l *CMatrix, d []float64, err error) {
	n := a.N
	l = Identity(n)
	d = make([]float64, n)

	work := a.Clone()
	for j := 0; j < n; j++ {
		djj := real(work.At(j, j))
		if math.Abs(djj) < 1e-300 {
			return nil, nil, errors.Errorf("linalg: zero pivot at index %d in LDL factorization", j)
		}
		d[j] = djj

		for i := j + 1; i < n; i++ {
			lij := work.At(i, j) / complex(djj, 0)
			l.Set(i, j, lij)
		}
		for i := j + 1; i < n; i++ {
			lij := l.At(i, j)
			for k := j + 1; k < n; k++ {
				work.Add_(i, k, -lij*complex(djj, 0)*conj(l.At(k, j)))
			}
		}
	}
	return l, d, nil
}

// LDLSqrtFactor returns L @ sqrt(D) the way pyspinw's LDL fallback does,
// taking the complex square root of any negative diagonal entries rather
// than treating them as an error (a negative pivot signals the
// Hamiltonian is not positive-definite at this Q; the Colpa path's own
// shift retry is the authoritative NonPosDef guard, so this alternative
// strategy is permissive by design).
func LDLSqrtFactor(a *CMatrix) (*CMatrix, error) {
	l, d, err := LDLFactor(a)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	out := l.Clone()
	for i := 0; i < out.N; i++ {
		sq := cmplx.Sqrt(complex(d[i], 0))
		for row := 0; row < out.N; row++ {
			out.Set(row, i, out.At(row, i)*sq)
		}
	}
	return out, nil
}
