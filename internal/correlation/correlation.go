// Package correlation implements the dynamical spin-spin correlation
// tensor assembly of spec §4.G (contracting Bogoliubov eigenvectors with
// the local complex basis, site phases, and spin normalization) and the
// incommensurate rotating-frame unfolding of spec §4.H.
package correlation

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/fumin/lswt/internal/linalg"
)

// Site bundles the per-site quantities the assembler needs: position,
// spin length, local complex basis (possibly g-tensor-rotated already),
// and form factor evaluator.
type Site struct {
	Position   linalg.Vec3
	Spin       float64
	ZTilde     linalg.CVec3 // z, or g.z when the g-tensor is applied
	FormFactor func(qAbs float64) float64
}

// Assemble computes S^{alpha beta}_mu(Q) for every mode mu, per spec
// §4.G. v is the 2L x nModes (or 2L x L in fast mode) eigenvector matrix
// from package bogoliubov; qAbs is the |Q| value handed to each site's
// form factor; nCell normalizes by the number of magnetic cells.
func Assemble(q linalg.Vec3, qAbs float64, sites []Site, v *linalg.CMatrix, nModes int, nCell float64) [][3][3]complex128 {
	l := len(sites)
	sab := make([][3][3]complex128, nModes)

	type ampPair struct {
		upper, lower complex128 // multiplies V[i,mu] and V[i+L,mu] respectively
	}

	// Precompute per-site, per-Cartesian-component E_i(Q)*F_i(Q)*z and
	// its conjugate partner, used for both the L (left) and R (right)
	// contractions (right differs only by conjugation, per spec §4.G).
	ampL := make([][3]ampPair, l)
	ampR := make([][3]ampPair, l)
	for i, s := range sites {
		angle := -2 * math.Pi * q.Dot(s.Position)
		e := complex(math.Cos(angle), math.Sin(angle)) * complex(math.Sqrt(s.Spin/2), 0)
		ff := 1.0
		if s.FormFactor != nil {
			ff = s.FormFactor(qAbs)
		}
		scale := e * complex(ff, 0)
		for a := 0; a < 3; a++ {
			z := s.ZTilde[a]
			zc := conjC(z)
			ampL[i][a] = ampPair{upper: scale * z, lower: scale * zc}
			ampR[i][a] = ampPair{upper: conjC(scale) * zc, lower: conjC(scale) * z}
		}
	}

	for mu := 0; mu < nModes; mu++ {
		var lsum, rsum [3]complex128
		for i := 0; i < l; i++ {
			vUpper := v.At(i, mu)
			vLower := v.At(i+l, mu)
			for a := 0; a < 3; a++ {
				lsum[a] += ampL[i][a].upper*vUpper + ampL[i][a].lower*vLower
				rsum[a] += ampR[i][a].upper*vUpper + ampR[i][a].lower*vLower
			}
		}
		for a := 0; a < 3; a++ {
			for b := 0; b < 3; b++ {
				sab[mu][a][b] = lsum[a] * rsum[b] / complex(nCell, 0)
			}
		}
	}

	return sab
}

// Perp projects S^{alpha beta}_mu onto the neutron-observable transverse
// scalar S_perp = sum_ab (delta_ab - qhat_a*qhat_b) * (Sab+Sba)/2, per
// spec §4.G. qHat must already be normalized and in Cartesian (inverse
// angstrom) coordinates.
func Perp(sab [][3][3]complex128, qHat linalg.Vec3) []float64 {
	out := make([]float64, len(sab))
	for mu, s := range sab {
		var sum complex128
		for a := 0; a < 3; a++ {
			for b := 0; b < 3; b++ {
				delta := 0.0
				if a == b {
					delta = 1.0
				}
				proj := delta - qHat[a]*qHat[b]
				sym := (s[a][b] + s[b][a]) / 2
				sum += complex(proj, 0) * sym
			}
		}
		out[mu] = real(sum)
	}
	return out
}

// RotateTensor returns R . s . R^T, the rank-2 transform that carries a
// twin's correlation tensor from the crystal frame into the lab frame
// (spec §4.D / component D's note that "twin rotation of the output
// tensor IS included").
func RotateTensor(s [3][3]complex128, r mat.Matrix) [3][3]complex128 {
	var mid [3][3]complex128
	for a := 0; a < 3; a++ {
		for b := 0; b < 3; b++ {
			var sum complex128
			for c := 0; c < 3; c++ {
				sum += complex(r.At(a, c), 0) * s[c][b]
			}
			mid[a][b] = sum
		}
	}
	var out [3][3]complex128
	for a := 0; a < 3; a++ {
		for b := 0; b < 3; b++ {
			var sum complex128
			for c := 0; c < 3; c++ {
				sum += mid[a][c] * complex(r.At(b, c), 0)
			}
			out[a][b] = sum
		}
	}
	return out
}

func conjC(v complex128) complex128 { return complex(real(v), -imag(v)) }
