package linalg

import (
	"math"

	"github.com/pkg/errors"
)

// ErrNotPositiveDefinite is returned by UpperCholesky when the input is
// not (numerically) positive-definite.
var ErrNotPositiveDefinite = errors.New("linalg: matrix is not positive-definite")

// UpperCholesky factors the Hermitian matrix a as R^H R = a, with R upper
// triangular and a strictly positive real diagonal, matching spec §4.F's
// "K = chol(h), with K'*K = h" convention (MATLAB's default upper-
// triangular chol(), which is what the original SpinW implementation this
// spec traces back to uses).
func UpperCholesky(a *CMatrix) (*CMatrix, error) {
	n := a.N
	r := NewCMatrix(n)
	for i := 0; i < n; i++ {
		var diagSum float64
		for k := 0; k < i; k++ {
			v := r.At(k, i)
			diagSum += real(v)*real(v) + imag(v)*imag(v)
		}
		s := real(a.At(i, i)) - diagSum
		if s <= 0 {
			return nil, errors.Wrapf(ErrNotPositiveDefinite, "row %d residual %g", i, s)
		}
		rii := math.Sqrt(s)
		r.Set(i, i, complex(rii, 0))

		for j := i + 1; j < n; j++ {
			var s2 complex128
			for k := 0; k < i; k++ {
				s2 += conj(r.At(k, i)) * r.At(k, j)
			}
			num := a.At(i, j) - s2
			r.Set(i, j, num/complex(rii, 0))
		}
	}
	return r, nil
}

func conj(v complex128) complex128 { return complex(real(v), -imag(v)) }

// SmallestEigenvalueEstimate returns a cheap lower bound on the smallest
// eigenvalue of the Hermitian matrix a via the Gershgorin circle theorem,
// used to size the shift retry of spec §4.F ("lambda where lambda is
// max(-smallest eigenvalue, omega_tol)"). This mirrors the teacher's own
// `gerschgorin` helper in exactdiag/mat/gradientdescent.go, generalized
// from real symmetric to complex Hermitian matrices.
func SmallestEigenvalueEstimate(a *CMatrix) float64 {
	min := math.Inf(1)
	for i := 0; i < a.N; i++ {
		center := real(a.At(i, i))
		var radius float64
		for j := 0; j < a.N; j++ {
			if j == i {
				continue
			}
			radius += cabs(a.At(i, j))
		}
		lo := center - radius
		if lo < min {
			min = lo
		}
	}
	return min
}

// CholeskyWithShiftRetry implements the Colpa-path fallback of spec §4.F:
// try a plain Cholesky factorization of h; on failure, retry once with
// h + lambda*I, where lambda = max(-smallestEigenvalueEstimate, omegaTol)
// * sqrt(2*L) * 4, L being the number of sites (h.N is already the full
// 2L Hamiltonian dimension); a second failure is a hard
// NonPosDefHamiltonian error. It returns the factor, whether a shift was
// applied, and the shift magnitude used (0 if none).
func CholeskyWithShiftRetry(h *CMatrix, omegaTol float64) (r *CMatrix, shifted bool, lambda float64, err error) {
	r, err = UpperCholesky(h)
	if err == nil {
		return r, false, 0, nil
	}

	minEig := SmallestEigenvalueEstimate(h)
	lambda = math.Max(-minEig, omegaTol) * math.Sqrt(float64(h.N)) * 4

	shiftedH := h.Clone()
	for i := 0; i < h.N; i++ {
		shiftedH.Add_(i, i, complex(lambda, 0))
	}
	r, err2 := UpperCholesky(shiftedH)
	if err2 != nil {
		return nil, true, lambda, errors.Wrapf(err2, "shift retry with lambda=%g also failed (unshifted error: %v)", lambda, err)
	}
	return r, true, lambda, nil
}
