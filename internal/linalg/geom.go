// Package linalg provides the small dense numerical kernels the LSWT core
// needs: real 3-vector/3x3-matrix geometry built on gonum/mat, and the
// complex Hermitian/general dense linear algebra gonum does not cover
// (Cholesky and eigendecomposition for complex128 matrices), hand-rolled
// in the teacher's style of writing its own dense numeric kernels
// (exactdiag/mat/gradientdescent.go, mps/mps.go's QR and Arnoldi) rather
// than reaching for a library that stops short of the complex case.
package linalg

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Vec3 is a real 3-vector.
type Vec3 [3]float64

// CVec3 is a complex 3-vector.
type CVec3 [3]complex128

func (v Vec3) Add(w Vec3) Vec3 { return Vec3{v[0] + w[0], v[1] + w[1], v[2] + w[2]} }
func (v Vec3) Sub(w Vec3) Vec3 { return Vec3{v[0] - w[0], v[1] - w[1], v[2] - w[2]} }
func (v Vec3) Scale(c float64) Vec3 { return Vec3{v[0] * c, v[1] * c, v[2] * c} }

func (v Vec3) Dot(w Vec3) float64 { return v[0]*w[0] + v[1]*w[1] + v[2]*w[2] }

func (v Vec3) Cross(w Vec3) Vec3 {
	return Vec3{
		v[1]*w[2] - v[2]*w[1],
		v[2]*w[0] - v[0]*w[2],
		v[0]*w[1] - v[1]*w[0],
	}
}

func (v Vec3) Norm() float64 { return math.Sqrt(v.Dot(v)) }

// Normalized returns v/||v||, and false if ||v|| is below tol.
func (v Vec3) Normalized(tol float64) (Vec3, bool) {
	n := v.Norm()
	if n < tol {
		return Vec3{}, false
	}
	return v.Scale(1 / n), true
}

// Identity3 returns the 3x3 identity matrix.
func Identity3() *mat.Dense {
	m := mat.NewDense(3, 3, nil)
	for i := 0; i < 3; i++ {
		m.Set(i, i, 1)
	}
	return m
}

// MulVec3 returns M*v for a real 3x3 matrix M and real 3-vector v.
func MulVec3(m mat.Matrix, v Vec3) Vec3 {
	var out Vec3
	for i := 0; i < 3; i++ {
		var s float64
		for j := 0; j < 3; j++ {
			s += m.At(i, j) * v[j]
		}
		out[i] = s
	}
	return out
}

// MulCVec3 returns M*v for a real 3x3 matrix M and complex 3-vector v.
func MulCVec3(m mat.Matrix, v CVec3) CVec3 {
	var out CVec3
	for i := 0; i < 3; i++ {
		var s complex128
		for j := 0; j < 3; j++ {
			s += complex(m.At(i, j), 0) * v[j]
		}
		out[i] = s
	}
	return out
}

// VecTMatVec returns v^T * M * w for real 3-vectors v, w and a real 3x3
// matrix M (used for eta_i . J . eta_j).
func VecTMatVec(v Vec3, m mat.Matrix, w Vec3) float64 {
	mw := MulVec3(m, w)
	return v.Dot(mw)
}

// CVecMatCVecConj returns a . M . conj(b) for complex 3-vectors a, b and a
// real 3x3 matrix M.
func CVecMatCVecConj(a CVec3, m mat.Matrix, b CVec3) complex128 {
	mb := MulCVec3(m, CVec3{complex(real(b[0]), -imag(b[0])), complex(real(b[1]), -imag(b[1])), complex(real(b[2]), -imag(b[2]))})
	var s complex128
	for i := 0; i < 3; i++ {
		s += a[i] * mb[i]
	}
	return s
}

// CVecMatCVec returns a . M . b (no conjugation) for complex 3-vectors a,
// b and a real 3x3 matrix M.
func CVecMatCVec(a CVec3, m mat.Matrix, b CVec3) complex128 {
	mb := MulCVec3(m, b)
	var s complex128
	for i := 0; i < 3; i++ {
		s += a[i] * mb[i]
	}
	return s
}

// CDot returns a . b (no conjugation).
func CDot(a, b CVec3) complex128 {
	return a[0]*b[0] + a[1]*b[1] + a[2]*b[2]
}

// CDotConj returns a . conj(b).
func CDotConj(a, b CVec3) complex128 {
	return a[0]*complex(real(b[0]), -imag(b[0])) +
		a[1]*complex(real(b[1]), -imag(b[1])) +
		a[2]*complex(real(b[2]), -imag(b[2]))
}

// Conj returns the elementwise conjugate of v.
func Conj(v CVec3) CVec3 {
	return CVec3{
		complex(real(v[0]), -imag(v[0])),
		complex(real(v[1]), -imag(v[1])),
		complex(real(v[2]), -imag(v[2])),
	}
}

// RodriguesRotation returns the SO(3) rotation matrix by angle theta
// (radians) around the unit axis n, used by the incommensurate bilinear
// symmetrization of spec §4.B.
func RodriguesRotation(n Vec3, theta float64) *mat.Dense {
	c, s := math.Cos(theta), math.Sin(theta)
	k := SkewSymmetric(n)
	nn := OuterProduct3(n)

	out := mat.NewDense(3, 3, nil)
	out.Scale(c, Identity3())

	var term mat.Dense
	term.Scale(1-c, nn)
	out.Add(out, &term)

	var kTerm mat.Dense
	kTerm.Scale(s, k)
	out.Add(out, &kTerm)

	return out
}

// SkewSymmetric returns [n]_x, the skew-symmetric cross-product matrix of
// n (used by the incommensurate unfolder, component H).
func SkewSymmetric(n Vec3) *mat.Dense {
	return mat.NewDense(3, 3, []float64{
		0, -n[2], n[1],
		n[2], 0, -n[0],
		-n[1], n[0], 0,
	})
}

// OuterProduct3 returns n * n^T for a real 3-vector n.
func OuterProduct3(n Vec3) *mat.Dense {
	m := mat.NewDense(3, 3, nil)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			m.Set(i, j, n[i]*n[j])
		}
	}
	return m
}

// SymmetrizeReal returns (M + M^T)/2 for a real 3x3 matrix M.
func SymmetrizeReal(m mat.Matrix) *mat.Dense {
	var mt mat.Dense
	mt.CloneFrom(m.T())
	out := mat.NewDense(3, 3, nil)
	out.Add(m, &mt)
	out.Scale(0.5, out)
	return out
}
