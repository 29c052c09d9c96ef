// Package table builds the Q-independent scalar tables of spec §4.B-D:
// per-coupling phase-carrying amplitudes for the per-Q Hamiltonian
// assembler, plus the dense diagonals (on-site anisotropy and Zeeman
// field) that are identical at every Q.
package table

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/fumin/lswt/internal/frame"
	"github.com/fumin/lswt/internal/linalg"
)

// BilinearEntry is one bilinear coupling's Q-independent contribution,
// ready for the per-Q phase multiply of component E.
type BilinearEntry struct {
	SiteI, SiteJ int
	DR           linalg.Vec3
	AD0          complex128 // upper-left off-diagonal amplitude at (i,j)
	BC0          complex128 // upper-right off-diagonal amplitude at (i,j+L)
}

// BuildBilinear computes the per-coupling entries and the reduced dense
// 2L diagonal of spec §4.B. When incommensurate is true, each coupling's
// exchange tensor is first symmetrized in the rotating frame:
// J' = (J*K + K*J)/2, K = RodriguesRotation(n, 2*pi*k.dR).
func BuildBilinear(frames []frame.Frame, spins []float64, couplings []Coupling, k, n linalg.Vec3, incommensurate bool) (entries []BilinearEntry, diag []float64) {
	l := len(frames)
	diag = make([]float64, 2*l)
	entries = make([]BilinearEntry, 0, len(couplings))

	for _, c := range couplings {
		j := c.J
		if incommensurate {
			theta := 2 * math.Pi * k.Dot(c.DR)
			kRot := linalg.RodriguesRotation(n, theta)
			var jk, kj mat.Dense
			jk.Mul(j, kRot)
			kj.Mul(kRot, j)
			sym := mat.NewDense(3, 3, nil)
			sym.Add(&jk, &kj)
			sym.Scale(0.5, sym)
			j = sym
		}

		fi, fj := frames[c.SiteI], frames[c.SiteJ]
		si, sj := spins[c.SiteI], spins[c.SiteJ]

		ad := linalg.VecTMatVec(fi.Eta, j, fj.Eta)
		diag[c.SiteI] += -2 * sj * ad
		diag[l+c.SiteJ] += -2 * si * ad

		rootSS := complex(math.Sqrt(si*sj), 0)
		ad0 := rootSS * linalg.CVecMatCVecConj(fi.Z, j, fj.Z)
		bc0 := rootSS * linalg.CVecMatCVec(fi.Z, j, fj.Z)

		entries = append(entries, BilinearEntry{
			SiteI: c.SiteI,
			SiteJ: c.SiteJ,
			DR:    c.DR,
			AD0:   ad0,
			BC0:   bc0,
		})
	}

	return entries, diag
}

// Coupling is the table package's view of a bilinear exchange term,
// decoupled from the public lswt.Coupling type so this package does not
// import the root package (which itself imports table).
type Coupling struct {
	SiteI, SiteJ int
	DR           linalg.Vec3
	J            mat.Matrix
}
