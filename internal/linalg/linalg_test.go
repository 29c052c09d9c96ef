package linalg

import (
	"math"
	"testing"
)

const testTol = 1e-8

func approxEqualC(a, b complex128, tol float64) bool {
	return cabs(a-b) < tol
}

func TestUpperCholesky(t *testing.T) {
	t.Parallel()
	a := NewCMatrix(2)
	a.Set(0, 0, 4)
	a.Set(0, 1, complex(0, 2))
	a.Set(1, 0, complex(0, -2))
	a.Set(1, 1, 5)

	r, err := UpperCholesky(a)
	if err != nil {
		t.Fatalf("UpperCholesky: %v", err)
	}
	got := Mul(r.ConjTranspose(), r)
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			if !approxEqualC(got.At(i, j), a.At(i, j), testTol) {
				t.Errorf("(%d,%d): got %v want %v", i, j, got.At(i, j), a.At(i, j))
			}
		}
	}
}

func TestCholeskyWithShiftRetryOnIndefinite(t *testing.T) {
	t.Parallel()
	a := NewCMatrix(2)
	a.Set(0, 0, 1)
	a.Set(1, 1, -1)
	a.Set(0, 1, 0)
	a.Set(1, 0, 0)

	r, shifted, lambda, err := CholeskyWithShiftRetry(a, 1e-8)
	if err != nil {
		t.Fatalf("CholeskyWithShiftRetry: %v", err)
	}
	if !shifted {
		t.Fatalf("expected a shift to be applied")
	}
	wantLambda := 1.0 * math.Sqrt(2) * 4
	if math.Abs(lambda-wantLambda) > 1e-9 {
		t.Fatalf("lambda = %g, want %g (smallest eigenvalue estimate -1, N=2)", lambda, wantLambda)
	}
	if r.N != 2 {
		t.Fatalf("unexpected factor size %d", r.N)
	}
}

func TestHermitianEigenDiagonal(t *testing.T) {
	t.Parallel()
	a := NewCMatrix(3)
	a.Set(0, 0, 3)
	a.Set(1, 1, -1)
	a.Set(2, 2, 2)

	vals, u, ok := HermitianEigen(a, 1e-10)
	if !ok {
		t.Fatalf("did not converge")
	}
	sum := 0.0
	for _, v := range vals {
		sum += v
	}
	if math.Abs(sum-4) > 1e-6 {
		t.Errorf("trace mismatch: got %v sum=%g want 4", vals, sum)
	}

	// Reconstruct a from U * diag(vals) * U^H and compare.
	d := NewCMatrix(3)
	for i, v := range vals {
		d.Set(i, i, complex(v, 0))
	}
	recon := Mul(Mul(u, d), u.ConjTranspose())
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			if !approxEqualC(recon.At(i, j), a.At(i, j), 1e-6) {
				t.Errorf("recon(%d,%d): got %v want %v", i, j, recon.At(i, j), a.At(i, j))
			}
		}
	}
}

func TestHermitianEigenOffDiagonal(t *testing.T) {
	t.Parallel()
	a := NewCMatrix(2)
	a.Set(0, 0, 2)
	a.Set(1, 1, 2)
	a.Set(0, 1, complex(0, 1))
	a.Set(1, 0, complex(0, -1))

	vals, u, ok := HermitianEigen(a, 1e-12)
	if !ok {
		t.Fatalf("did not converge")
	}
	wantVals := map[float64]bool{1: true, 3: true}
	for _, v := range vals {
		found := false
		for w := range wantVals {
			if math.Abs(v-w) < 1e-6 {
				found = true
			}
		}
		if !found {
			t.Errorf("unexpected eigenvalue %g", v)
		}
	}

	d := NewCMatrix(2)
	for i, v := range vals {
		d.Set(i, i, complex(v, 0))
	}
	recon := Mul(Mul(u, d), u.ConjTranspose())
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			if !approxEqualC(recon.At(i, j), a.At(i, j), 1e-6) {
				t.Errorf("recon(%d,%d): got %v want %v", i, j, recon.At(i, j), a.At(i, j))
			}
		}
	}
}

func TestGeneralEigenUpperTriangular(t *testing.T) {
	t.Parallel()
	a := NewCMatrix(3)
	a.Set(0, 0, 1)
	a.Set(1, 1, 2)
	a.Set(2, 2, 3)
	a.Set(0, 1, 5)
	a.Set(1, 2, 7)

	vals, _, ok := GeneralEigen(a, 1e-10, 100)
	if !ok {
		t.Fatalf("did not converge")
	}
	want := map[int]bool{}
	for _, v := range vals {
		r := math.Round(real(v))
		want[int(r)] = true
	}
	for _, w := range []int{1, 2, 3} {
		if !want[w] {
			t.Errorf("missing eigenvalue %d among %v", w, vals)
		}
	}
}

func TestRodriguesRotationZAxis(t *testing.T) {
	t.Parallel()
	n := Vec3{0, 0, 1}
	r := RodriguesRotation(n, math.Pi/2)
	v := Vec3{1, 0, 0}
	got := MulVec3(r, v)
	want := Vec3{0, 1, 0}
	for i := 0; i < 3; i++ {
		if math.Abs(got[i]-want[i]) > 1e-9 {
			t.Errorf("component %d: got %v want %v", i, got, want)
		}
	}
}

func TestLDLSqrtFactorMatchesCholeskyOnPositiveDefinite(t *testing.T) {
	t.Parallel()
	a := NewCMatrix(2)
	a.Set(0, 0, 4)
	a.Set(0, 1, complex(0, 2))
	a.Set(1, 0, complex(0, -2))
	a.Set(1, 1, 5)

	k, err := LDLSqrtFactor(a)
	if err != nil {
		t.Fatalf("LDLSqrtFactor: %v", err)
	}
	recon := Mul(k, k.ConjTranspose())
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			if !approxEqualC(recon.At(i, j), a.At(i, j), 1e-6) {
				t.Errorf("(%d,%d): got %v want %v", i, j, recon.At(i, j), a.At(i, j))
			}
		}
	}
}
