package table

import (
	"math"

	"github.com/fumin/lswt/internal/frame"
	"github.com/fumin/lswt/internal/linalg"
)

// BiquadraticCoupling is the table package's view of a biquadratic
// exchange term -Jb*(Si.Sj)^2, commensurate-only per spec §4.C's
// Non-goal (biquadratic terms on incommensurate structures are rejected
// upstream with ErrBiquadraticIncommensurate).
type BiquadraticCoupling struct {
	SiteI, SiteJ int
	DR           linalg.Vec3
	Jb           float64
}

// BiquadraticEntry is one biquadratic coupling's Q-independent
// off-diagonal contribution, in the same AD0/BC0 shape as BilinearEntry
// so component E can fold it into the same per-Q phase multiply. D holds
// the bqD amplitude, filled at the (i,i+L) diagonal block position
// rather than the (i,j) off-diagonal block AD0/BC0 occupy.
type BiquadraticEntry struct {
	SiteI, SiteJ int
	DR           linalg.Vec3
	A0           complex128 // bqA0, at (i,j)
	B0           complex128 // bqB0, at (i,j+L)
	D            complex128 // bqD, at the diagonal block position (i,i+L)
}

// BuildBiquadratic computes the per-coupling entries and reduced dense 2L
// diagonal for biquadratic exchange, per spec §4.C's auxiliary scalars
// M, N, O, P, Q and the bqA0/bqB0/bqC/bqD amplitudes built from them.
func BuildBiquadratic(frames []frame.Frame, spins []float64, couplings []BiquadraticCoupling) (entries []BiquadraticEntry, diag []float64) {
	l := len(frames)
	diag = make([]float64, 2*l)
	entries = make([]BiquadraticEntry, 0, len(couplings))

	for _, c := range couplings {
		fi, fj := frames[c.SiteI], frames[c.SiteJ]
		si, sj := spins[c.SiteI], spins[c.SiteJ]

		m := complex(fi.Eta.Dot(fj.Eta), 0)
		n := dotRealConjC(fi.Eta, fj.Z)
		o := linalg.CDotConj(fi.Z, fj.Z)
		p := linalg.CDotConj(fj.Z, fi.Z)
		q := dotCRealC(fi.Z, fj.Eta)

		ssRoot32 := complex(math.Pow(si*sj, 1.5), 0)
		jb := complex(c.Jb, 0)

		bqA0 := ssRoot32 * (m*conj(p) + q*conj(n)) * jb
		bqB0 := ssRoot32 * (m*o + q*n) * jb
		bqC := complex(si*sj*sj, 0) * (conj(q)*q - 2*m*m) * jb
		bqD := complex(si*sj*sj, 0) * q * q * jb

		diag[c.SiteI] += real(bqC)
		diag[l+c.SiteI] += real(bqC)

		entries = append(entries, BiquadraticEntry{
			SiteI: c.SiteI,
			SiteJ: c.SiteJ,
			DR:    c.DR,
			A0:    bqA0,
			B0:    bqB0,
			D:     bqD,
		})
	}

	return entries, diag
}

// dotRealConjC returns v . conj(b) for a real 3-vector v and complex
// 3-vector b (spec §4.C's N = eta.z̄).
func dotRealConjC(v linalg.Vec3, b linalg.CVec3) complex128 {
	var s complex128
	for i := 0; i < 3; i++ {
		s += complex(v[i], 0) * conj(b[i])
	}
	return s
}

// dotCRealC returns a . v for a complex 3-vector a and real 3-vector v
// (spec §4.C's Q = z.eta).
func dotCRealC(a linalg.CVec3, v linalg.Vec3) complex128 {
	var s complex128
	for i := 0; i < 3; i++ {
		s += a[i] * complex(v[i], 0)
	}
	return s
}

func conj(v complex128) complex128 {
	return complex(real(v), -imag(v))
}
