package correlation

import "github.com/fumin/lswt/internal/linalg"

// Third identifies which of the tripled [Q-k, Q, Q+k] points a chunk
// entry corresponds to, per spec §4.H.
type Third int

const (
	ThirdMinus Third = iota
	ThirdCenter
	ThirdPlus
)

// TripleQ expands one original Q point into its [Q-k, Q, Q+k] triple for
// the incommensurate pipeline.
func TripleQ(q, k linalg.Vec3) [3]linalg.Vec3 {
	return [3]linalg.Vec3{q.Sub(k), q, q.Add(k)}
}

// RotationKernels precomputes K1 = (I - n.n^T - i*[n]x)/2 and K2 = n.n^T,
// the rotation kernels of spec §4.H, as dense 3x3 complex matrices.
type RotationKernels struct {
	K1     [3][3]complex128
	K2     [3][3]complex128
	K1Conj [3][3]complex128
}

func BuildRotationKernels(n linalg.Vec3) RotationKernels {
	skew := linalg.SkewSymmetric(n)
	outer := linalg.OuterProduct3(n)

	var k1, k2, k1c [3][3]complex128
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			delta := 0.0
			if i == j {
				delta = 1.0
			}
			v := complex((delta-outer.At(i, j))/2, -skew.At(i, j)/2)
			k1[i][j] = v
			k1c[i][j] = conjC(v)
			k2[i][j] = complex(outer.At(i, j), 0)
		}
	}
	return RotationKernels{K1: k1, K2: k2, K1Conj: k1c}
}

// RotateThird applies spec §4.H's per-third rotation: Sab <- Sab . K for
// the appropriate kernel, where "." multiplies each mode's 3x3 tensor on
// the right by the 3x3 rotation kernel (Sab_new[a][b] = sum_c
// Sab[a][c]*K[c][b]).
func RotateThird(sab [][3][3]complex128, third Third, rk RotationKernels) [][3][3]complex128 {
	var k [3][3]complex128
	switch third {
	case ThirdPlus:
		k = rk.K1
	case ThirdCenter:
		k = rk.K2
	case ThirdMinus:
		k = rk.K1Conj
	}
	return rightMultiply(sab, k)
}

// IntegrateHelicalPhase applies spec §4.H's additional helical-phase
// integration for structures where 2k is also incommensurate:
//
//	Sab <- Sab/2 - [n]x.Sab.[n]x/2 + (nn^T - I).Sab.nn^T/2 + nn^T.Sab.(2nn^T - I)/2
func IntegrateHelicalPhase(sab [][3][3]complex128, n linalg.Vec3) [][3][3]complex128 {
	skew := linalg.SkewSymmetric(n)
	outer := linalg.OuterProduct3(n)

	var nx, nnT, nnTMinusI, twoNnTMinusI [3][3]complex128
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			delta := 0.0
			if i == j {
				delta = 1.0
			}
			nx[i][j] = complex(skew.At(i, j), 0)
			nnT[i][j] = complex(outer.At(i, j), 0)
			nnTMinusI[i][j] = complex(outer.At(i, j)-delta, 0)
			twoNnTMinusI[i][j] = complex(2*outer.At(i, j)-delta, 0)
		}
	}

	out := make([][3][3]complex128, len(sab))
	for mu, s := range sab {
		term1 := scaleTensor(s, 0.5)
		term2 := scaleTensor(leftRightMultiplyOne(s, nx, nx), -0.5)
		term3 := scaleTensor(leftRightMultiplyOne(s, nnTMinusI, nnT), 0.5)
		term4 := scaleTensor(leftRightMultiplyOne(s, nnT, twoNnTMinusI), 0.5)
		out[mu] = addTensors(addTensors(term1, term2), addTensors(term3, term4))
	}
	return out
}

func rightMultiply(sab [][3][3]complex128, k [3][3]complex128) [][3][3]complex128 {
	out := make([][3][3]complex128, len(sab))
	for mu, s := range sab {
		var r [3][3]complex128
		for a := 0; a < 3; a++ {
			for b := 0; b < 3; b++ {
				var sum complex128
				for c := 0; c < 3; c++ {
					sum += s[a][c] * k[c][b]
				}
				r[a][b] = sum
			}
		}
		out[mu] = r
	}
	return out
}

// leftRightMultiplyOne returns left . s . right for a single 3x3 tensor.
func leftRightMultiplyOne(s, left, right [3][3]complex128) [3][3]complex128 {
	var mid [3][3]complex128
	for a := 0; a < 3; a++ {
		for b := 0; b < 3; b++ {
			var sum complex128
			for c := 0; c < 3; c++ {
				sum += left[a][c] * s[c][b]
			}
			mid[a][b] = sum
		}
	}
	var out [3][3]complex128
	for a := 0; a < 3; a++ {
		for b := 0; b < 3; b++ {
			var sum complex128
			for c := 0; c < 3; c++ {
				sum += mid[a][c] * right[c][b]
			}
			out[a][b] = sum
		}
	}
	return out
}

func scaleTensor(s [3][3]complex128, c float64) [3][3]complex128 {
	var out [3][3]complex128
	for a := 0; a < 3; a++ {
		for b := 0; b < 3; b++ {
			out[a][b] = s[a][b] * complex(c, 0)
		}
	}
	return out
}

func addTensors(a, b [3][3]complex128) [3][3]complex128 {
	var out [3][3]complex128
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out[i][j] = a[i][j] + b[i][j]
		}
	}
	return out
}
