// Package bogoliubov implements the para-unitary diagonalization of spec
// §4.F: Colpa's Cholesky-based method as the primary path, White's
// direct non-Hermitian eigendecomposition as the fallback, degenerate-mode
// orthogonalization, mode sorting, and fast-mode truncation.
package bogoliubov

import (
	"math"
	"math/cmplx"
	"sort"

	"github.com/pkg/errors"

	"github.com/fumin/lswt/internal/linalg"
)

// SortMode selects the tie-breaking rule for mode ordering, per spec §5
// ("mode sorting is by descending real part of eigenvalue; ties broken
// by ascending imaginary part, then by original index").
type SortMode int

const (
	SortDescendingReal SortMode = iota
	SortStable
)

// FallbackStrategy selects what colpa() does when the shifted-Cholesky
// retry of spec §4.F still fails, per spec §9's "pluggable strategy" note.
type FallbackStrategy int

const (
	// FallbackNonPosDef returns NonPosDefError directly, spec §4.F's
	// original behavior.
	FallbackNonPosDef FallbackStrategy = iota
	// FallbackLDL retries once more with the permissive LDL^H
	// decomposition (internal/linalg/ldl.go) in place of Cholesky,
	// matching original_source/pyspinw/calculations/spinwave.py's
	// cholesky-then-ldl fallback, before giving up with NonPosDefError.
	FallbackLDL
)

// Options configures the diagonalizer per spec §4.F / §6.
type Options struct {
	Hermit   bool
	FastMode bool
	OmegaTol float64
	Tol      float64
	SortMode SortMode
	MaxIter  int
	Fallback FallbackStrategy
	QIndex   int // for error/warning attribution
}

// Result is the per-Q diagonalization output.
type Result struct {
	Omega    []float64 // length 2L (6L caller-side for incommensurate concat), L in fast mode
	V        *linalg.CMatrix
	Warnings []Warning
}

// Warning is a non-fatal diagnostic from the diagonalizer, mirroring the
// root package's warning vocabulary without importing it (avoids an
// import cycle; the caller re-tags these into lswt.Warning).
type Warning struct {
	Kind   string
	QIndex int
	Detail string
}

// NonPosDefError carries the Q index and estimated negative eigenvalue
// of spec §7's NonPosDefHamiltonian.
type NonPosDefError struct {
	QIndex      int
	MinEigenval float64
}

func (e *NonPosDefError) Error() string {
	return "bogoliubov: Hamiltonian not positive definite after shift retry"
}

// EigensolverFailureError mirrors spec §7's EigensolverFailure.
type EigensolverFailureError struct {
	QIndex int
	Reason string
}

func (e *EigensolverFailureError) Error() string {
	return "bogoliubov: eigendecomposition did not converge: " + e.Reason
}

// Diagonalize runs the Colpa or White path selected by opts.Hermit on h,
// a 2L×2L Hermitian-to-roundoff matrix.
func Diagonalize(h *linalg.CMatrix, l int, opts Options) (Result, error) {
	if opts.Hermit {
		return colpa(h, l, opts)
	}
	return white(h, l, opts)
}

func gMetric(l int) *linalg.CMatrix {
	g := linalg.NewCMatrix(2 * l)
	for i := 0; i < l; i++ {
		g.Set(i, i, 1)
	}
	for i := l; i < 2*l; i++ {
		g.Set(i, i, -1)
	}
	return g
}

func colpa(h *linalg.CMatrix, l int, opts Options) (Result, error) {
	var warnings []Warning

	k, shifted, lambda, err := linalg.CholeskyWithShiftRetry(h, opts.OmegaTol)
	if err != nil {
		if opts.Fallback != FallbackLDL {
			return Result{}, errors.WithStack(&NonPosDefError{QIndex: opts.QIndex, MinEigenval: linalg.SmallestEigenvalueEstimate(h)})
		}
		ldlSqrt, ldlErr := linalg.LDLSqrtFactor(h)
		if ldlErr != nil {
			return Result{}, errors.WithStack(&NonPosDefError{QIndex: opts.QIndex, MinEigenval: linalg.SmallestEigenvalueEstimate(h)})
		}
		k = ldlSqrt.ConjTranspose()
		shifted = false
		warnings = append(warnings, Warning{Kind: "LDLFallback", QIndex: opts.QIndex, Detail: "shifted Cholesky failed, fell through to LDL^H decomposition"})
	} else if shifted {
		warnings = append(warnings, Warning{Kind: "CholeskyShifted", QIndex: opts.QIndex, Detail: "shift applied before retry"})
	}

	g := gMetric(l)
	w := linalg.Mul(linalg.Mul(k, g), k.ConjTranspose())
	w = linalg.Hermitize(w)

	d, u, ok := linalg.HermitianEigen(w, opts.Tol)
	if !ok {
		return Result{}, errors.WithStack(&EigensolverFailureError{QIndex: opts.QIndex, Reason: "Jacobi iteration did not converge"})
	}

	n := 2 * l
	order := sortIndicesReal(d, opts.SortMode)
	dSorted := make([]float64, n)
	uSorted := linalg.NewCMatrix(n)
	for newIdx, oldIdx := range order {
		dSorted[newIdx] = d[oldIdx]
		for r := 0; r < n; r++ {
			uSorted.Set(r, newIdx, u.At(r, oldIdx))
		}
	}

	groups := degenerateGroups(dSorted, opts.OmegaTol)
	if failed := orthogonalizeGroups(uSorted, groups); failed {
		warnings = append(warnings, Warning{Kind: "DefectiveEigenvectors", QIndex: opts.QIndex, Detail: "degenerate mode orthogonalization failed"})
	}

	kInv := linalg.UpperTriangularInverse(k)
	scaled := linalg.NewCMatrix(n)
	for col := 0; col < n; col++ {
		gd := 1.0
		if col >= l {
			gd = -1.0
		}
		prod := gd * dSorted[col]
		s := cmplx.Sqrt(complex(prod, 0))
		if imag(s) > opts.Tol {
			warnings = append(warnings, Warning{Kind: "ImaginaryEigenvalue", QIndex: opts.QIndex, Detail: "Colpa mode amplitude has a significant imaginary part"})
		}
		for r := 0; r < n; r++ {
			scaled.Set(r, col, uSorted.At(r, col)*s)
		}
	}
	v := linalg.Mul(kInv, scaled)

	omega := dSorted
	if opts.FastMode {
		omega = omega[:l]
		trunc := linalg.NewCMatrix(n)
		for col := 0; col < l; col++ {
			for r := 0; r < n; r++ {
				trunc.Set(r, col, v.At(r, col))
			}
		}
		v = trunc
	}

	return Result{Omega: omega, V: v, Warnings: warnings}, nil
}

func white(h *linalg.CMatrix, l int, opts Options) (Result, error) {
	var warnings []Warning
	g := gMetric(l)
	gh := linalg.Mul(g, h)

	vals, vecs, ok := linalg.GeneralEigen(gh, opts.Tol, opts.MaxIter)
	if !ok {
		return Result{}, errors.WithStack(&EigensolverFailureError{QIndex: opts.QIndex, Reason: "QR iteration did not converge"})
	}

	n := 2 * l
	for col := 0; col < n; col++ {
		var s complex128
		for r := 0; r < n; r++ {
			gr := complex(1, 0)
			if r >= l {
				gr = -1
			}
			s += conjC(vecs.At(r, col)) * gr * vecs.At(r, col)
		}
		if cabs(s) < opts.Tol {
			warnings = append(warnings, Warning{Kind: "DefectiveEigenvectors", QIndex: opts.QIndex, Detail: "White normalization encountered a null G-norm"})
			continue
		}
		scale := 1 / cmplx.Sqrt(s)
		for r := 0; r < n; r++ {
			vecs.Set(r, col, vecs.At(r, col)*scale)
		}
	}

	hasImag := false
	for _, v := range vals {
		if math.Abs(imag(v)) > opts.OmegaTol {
			hasImag = true
		}
	}
	if hasImag {
		warnings = append(warnings, Warning{Kind: "ImaginaryEigenvalue", QIndex: opts.QIndex, Detail: "White's method produced a mode with significant imaginary energy"})
	}

	order := sortIndicesComplex(vals, opts.SortMode)
	omega := make([]float64, n)
	v := linalg.NewCMatrix(n)
	for newIdx, oldIdx := range order {
		omega[newIdx] = real(vals[oldIdx])
		for r := 0; r < n; r++ {
			v.Set(r, newIdx, vecs.At(r, oldIdx))
		}
	}

	if opts.FastMode {
		omega = omega[:l]
		trunc := linalg.NewCMatrix(n)
		for col := 0; col < l; col++ {
			for r := 0; r < n; r++ {
				trunc.Set(r, col, v.At(r, col))
			}
		}
		v = trunc
	}

	return Result{Omega: omega, V: v, Warnings: warnings}, nil
}

func sortIndicesReal(d []float64, mode SortMode) []int {
	idx := make([]int, len(d))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		if d[idx[a]] != d[idx[b]] {
			return d[idx[a]] > d[idx[b]]
		}
		if mode == SortStable {
			return idx[a] < idx[b]
		}
		return false
	})
	return idx
}

func sortIndicesComplex(v []complex128, mode SortMode) []int {
	idx := make([]int, len(v))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		ra, rb := real(v[idx[a]]), real(v[idx[b]])
		if ra != rb {
			return ra > rb
		}
		ia, ib := imag(v[idx[a]]), imag(v[idx[b]])
		if ia != ib {
			return ia < ib
		}
		return idx[a] < idx[b]
	})
	return idx
}

// degenerateGroups returns index runs (into the already-sorted omega
// slice) whose values lie within omegaTol of their group's first member.
func degenerateGroups(sorted []float64, omegaTol float64) [][]int {
	var groups [][]int
	i := 0
	for i < len(sorted) {
		j := i + 1
		for j < len(sorted) && math.Abs(sorted[j]-sorted[i]) < omegaTol {
			j++
		}
		if j-i > 1 {
			g := make([]int, j-i)
			for k := range g {
				g[k] = i + k
			}
			groups = append(groups, g)
		}
		i = j
	}
	return groups
}

// orthogonalizeGroups Gram-Schmidt orthonormalizes the columns of u named
// by each group in place. Returns true if any column's residual norm
// after orthogonalization fell below tol, signalling a failed
// orthogonalization (spec §4.F: "emit a warning if orthogonalization
// fails at any Q").
func orthogonalizeGroups(u *linalg.CMatrix, groups [][]int) bool {
	const tol = 1e-10
	failed := false
	n := u.N
	for _, g := range groups {
		for a := 0; a < len(g); a++ {
			col := g[a]
			for b := 0; b < a; b++ {
				prev := g[b]
				var dot complex128
				for r := 0; r < n; r++ {
					dot += conjC(u.At(r, prev)) * u.At(r, col)
				}
				for r := 0; r < n; r++ {
					u.Set(r, col, u.At(r, col)-dot*u.At(r, prev))
				}
			}
			var norm float64
			for r := 0; r < n; r++ {
				norm += real(u.At(r, col))*real(u.At(r, col)) + imag(u.At(r, col))*imag(u.At(r, col))
			}
			norm = math.Sqrt(norm)
			if norm < tol {
				failed = true
				continue
			}
			for r := 0; r < n; r++ {
				u.Set(r, col, u.At(r, col)/complex(norm, 0))
			}
		}
	}
	return failed
}

func conjC(v complex128) complex128 { return complex(real(v), -imag(v)) }
func cabs(v complex128) float64     { return cmplx.Abs(v) }
