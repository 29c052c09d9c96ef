package table

import (
	"gonum.org/v1/gonum/mat"

	"github.com/fumin/lswt/internal/frame"
	"github.com/fumin/lswt/internal/linalg"
)

// BuildZeeman computes the Q-independent Zeeman diagonal of spec §4.D:
// for each site, the classical energy muB*H.(g.eta) is linearized around
// the ordered moment and contributes equally to both halves of the dense
// 2L diagonal (the Zeeman term is purely diagonal; it carries no
// off-diagonal anomalous amplitude in the linearized boson Hamiltonian).
// gTensors[i] is the site's g-tensor, or nil to use the identity (flagged
// upstream with WarnGTensorUnset).
func BuildZeeman(frames []frame.Frame, gTensors []mat.Matrix, h linalg.Vec3, muB float64) []float64 {
	l := len(frames)
	diag := make([]float64, 2*l)
	for i, f := range frames {
		g := gTensors[i]
		if g == nil {
			g = linalg.Identity3()
		}
		gEta := linalg.MulVec3(g, f.Eta)
		energy := muB * h.Dot(gEta)
		diag[i] += energy
		diag[l+i] += energy
	}
	return diag
}
