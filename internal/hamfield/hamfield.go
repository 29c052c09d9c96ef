// Package hamfield assembles the per-Q 2L×2L bosonic Hamiltonian of spec
// §4.E from the Q-independent tables produced by package table: a
// Fourier-phase multiply, a sparse-index scatter into a dense complex
// buffer, the fixed diagonal and Zeeman contributions, and final
// Hermitization.
package hamfield

import (
	"math"

	"github.com/fumin/lswt/internal/linalg"
	"github.com/fumin/lswt/internal/table"
)

// Tables bundles the Q-independent outputs of package table that the
// per-Q assembler needs.
type Tables struct {
	L           int
	NExt        linalg.Vec3
	Bilinear    []table.BilinearEntry
	Biquadratic []table.BiquadraticEntry
	Diagonal    []float64 // sum of bilinear, biquadratic, and this twin's Zeeman diagonals, length 2L
	HasBiquad   bool
}

// Build assembles h(Q) for one Q point (fractional, reciprocal-lattice
// units) into a fresh 2L×2L CMatrix, following spec §4.E steps 1-6.
func Build(q linalg.Vec3, t Tables) *linalg.CMatrix {
	n := 2 * t.L
	h := linalg.NewCMatrix(n)

	qExt := linalg.Vec3{q[0] * t.NExt[0], q[1] * t.NExt[1], q[2] * t.NExt[2]}

	for _, e := range t.Bilinear {
		phase := phaseFactor(qExt, e.DR)
		i, j := e.SiteI, e.SiteJ
		h.Add_(i, j, e.AD0*phase)
		h.Add_(i, j+t.L, 2*e.BC0*phase)
		h.Add_(i+t.L, j+t.L, conjC(e.AD0)*phase)
	}

	if t.HasBiquad {
		for _, e := range t.Biquadratic {
			phase := phaseFactor(qExt, e.DR)
			i, j := e.SiteI, e.SiteJ
			h.Add_(i, j, e.A0*phase)
			h.Add_(i, j+t.L, 2*e.B0*phase)
			h.Add_(i+t.L, j+t.L, conjC(e.A0)*phase)
			h.Add_(i, i+t.L, e.D*phase)
		}
	}

	for i := 0; i < n; i++ {
		h.Add_(i, i, complex(t.Diagonal[i], 0))
	}

	return linalg.Hermitize(h)
}

// phaseFactor returns exp(i*2*pi*q.dR) for q already in extended-cell
// reciprocal units.
func phaseFactor(q, dr linalg.Vec3) complex128 {
	angle := 2 * math.Pi * q.Dot(dr)
	return complex(math.Cos(angle), math.Sin(angle))
}

func conjC(v complex128) complex128 {
	return complex(real(v), -imag(v))
}
