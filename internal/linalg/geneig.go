package linalg

import "math"

// GeneralEigen diagonalizes the general (non-Hermitian) complex matrix a
// via Householder reduction to upper Hessenberg form followed by shifted
// QR iteration with deflation — the classical dense eigenvalue algorithm,
// specialized to complex arithmetic so it handles the complex eigenvalues
// White's method is allowed to produce (spec §4.F: "Accepts imaginary
// eigenvalues (flagged but not an error)"). Eigenvectors are recovered by
// back-substitution in the resulting Schur form.
//
// Like HermitianEigen, this is hand-rolled because gonum's mat package
// does not diagonalize complex128 matrices; this is the fallback
// ("White's") path, used only when Options.Hermit is false, so a
// classical dense algorithm without the extra refinements a
// production LAPACK implementation carries is an acceptable trade for a
// path the spec itself marks as the alternative to the primary Colpa
// path.
func GeneralEigen(a *CMatrix, tol float64, maxIterPerValue int) (eigenvalues []complex128, eigenvectors *CMatrix, ok bool) {
	n := a.N
	h := a.Clone()
	z := Identity(n)

	hessenbergReduce(h, z)

	ok = true
	activeN := n
	for activeN > 1 {
		iter := 0
		for {
			sub := cabs(h.At(activeN-1, activeN-2))
			scale := cabs(h.At(activeN-1, activeN-1)) + cabs(h.At(activeN-2, activeN-2))
			if sub < tol*math.Max(scale, 1e-300) {
				break
			}
			iter++
			if iter > maxIterPerValue {
				ok = false
				break
			}
			shift := h.At(activeN-1, activeN-1)
			qrStepInPlace(h, z, activeN, shift)
		}
		activeN--
	}

	eigenvalues = make([]complex128, n)
	for i := 0; i < n; i++ {
		eigenvalues[i] = h.At(i, i)
	}

	eigenvectors = NewCMatrix(n)
	for k := 0; k < n; k++ {
		y := schurEigenvector(h, k, tol)
		v := z.MulVec(y)
		normalizeInPlace(v)
		for i := 0; i < n; i++ {
			eigenvectors.Set(i, k, v[i])
		}
	}

	return eigenvalues, eigenvectors, ok
}

func normalizeInPlace(v []complex128) {
	var norm float64
	for _, x := range v {
		norm += real(x)*real(x) + imag(x)*imag(x)
	}
	norm = math.Sqrt(norm)
	if norm < 1e-300 {
		return
	}
	for i := range v {
		v[i] = v[i] / complex(norm, 0)
	}
}

// schurEigenvector back-substitutes in the upper triangular Schur form t
// for the eigenvalue at diagonal index k, returning the eigenvector in
// the Schur basis.
func schurEigenvector(t *CMatrix, k int, tol float64) []complex128 {
	n := t.N
	y := make([]complex128, n)
	y[k] = 1
	lambda := t.At(k, k)
	for i := k - 1; i >= 0; i-- {
		var s complex128
		for j := i + 1; j <= k; j++ {
			s += t.At(i, j) * y[j]
		}
		denom := t.At(i, i) - lambda
		if cabs(denom) < tol {
			y[i] = 0
			continue
		}
		y[i] = -s / denom
	}
	return y
}

// hessenbergReduce reduces h to upper Hessenberg form in place via
// Householder reflections, accumulating the Schur vectors into z (h_new =
// z^H * h_orig * z after the call, extended by subsequent QR steps).
func hessenbergReduce(h, z *CMatrix) {
	n := h.N
	for k := 0; k < n-2; k++ {
		m := n - 1 - k
		x := make([]complex128, m)
		for i := 0; i < m; i++ {
			x[i] = h.At(k+1+i, k)
		}
		normX := vecNorm(x)
		if normX < 1e-300 {
			continue
		}
		x0 := x[0]
		var phase complex128 = 1
		if cabs(x0) > 1e-300 {
			phase = x0 / complex(cabs(x0), 0)
		}
		alpha := -phase * complex(normX, 0)

		v := make([]complex128, m)
		copy(v, x)
		v[0] -= alpha
		normV := vecNorm(v)
		if normV < 1e-300 {
			continue
		}
		for i := range v {
			v[i] /= complex(normV, 0)
		}
		applyHouseholderBothSides(h, z, v, k+1)
	}
}

func vecNorm(v []complex128) float64 {
	var s float64
	for _, x := range v {
		s += real(x)*real(x) + imag(x)*imag(x)
	}
	return math.Sqrt(s)
}

// applyHouseholderBothSides applies the Householder reflector P = I -
// 2*v*v^H, embedded at rows/columns [offset, offset+len(v)), as the
// similarity transform h := P*h*P, and accumulates z := z*P (P is both
// unitary and Hermitian, so P^H == P).
func applyHouseholderBothSides(h, z *CMatrix, v []complex128, offset int) {
	n := h.N
	m := len(v)

	for j := 0; j < n; j++ {
		var dot complex128
		for i := 0; i < m; i++ {
			dot += conj(v[i]) * h.At(offset+i, j)
		}
		for i := 0; i < m; i++ {
			h.Set(offset+i, j, h.At(offset+i, j)-2*v[i]*dot)
		}
	}

	for i := 0; i < n; i++ {
		var dot complex128
		for j := 0; j < m; j++ {
			dot += h.At(i, offset+j) * v[j]
		}
		for j := 0; j < m; j++ {
			h.Set(i, offset+j, h.At(i, offset+j)-2*dot*conj(v[j]))
		}
	}

	for i := 0; i < n; i++ {
		var dot complex128
		for j := 0; j < m; j++ {
			dot += z.At(i, offset+j) * v[j]
		}
		for j := 0; j < m; j++ {
			z.Set(i, offset+j, z.At(i, offset+j)-2*dot*conj(v[j]))
		}
	}
}

// qrStepInPlace performs one implicit shifted-QR step on the leading m x
// m principal submatrix of the upper Hessenberg matrix h (rows/columns
// beyond m are already deflated and untouched structurally, but full row
// width / column height are updated since the Schur form carries non-zero
// entries there), accumulating the similarity transform into z.
func qrStepInPlace(h, z *CMatrix, m int, shift complex128) {
	n := h.N
	for i := 0; i < m; i++ {
		h.Add_(i, i, -shift)
	}

	type rot struct {
		c complex128
		s complex128
	}
	rots := make([]rot, m-1)

	for i := 0; i < m-1; i++ {
		a := h.At(i, i)
		b := h.At(i+1, i)
		r := math.Hypot(cabs(a), cabs(b))
		var c, s complex128
		if r < 1e-300 {
			c, s = 1, 0
		} else {
			c = conj(a) / complex(r, 0)
			s = conj(b) / complex(r, 0)
		}
		rots[i] = rot{c: c, s: s}

		for j := 0; j < n; j++ {
			hij := h.At(i, j)
			hi1j := h.At(i+1, j)
			h.Set(i, j, c*hij+s*hi1j)
			h.Set(i+1, j, -conj(s)*hij+conj(c)*hi1j)
		}
	}

	for i := 0; i < m-1; i++ {
		c, s := rots[i].c, rots[i].s
		for k := 0; k < n; k++ {
			hki := h.At(k, i)
			hki1 := h.At(k, i+1)
			h.Set(k, i, conj(c)*hki+conj(s)*hki1)
			h.Set(k, i+1, -s*hki+c*hki1)
		}
		for k := 0; k < n; k++ {
			zki := z.At(k, i)
			zki1 := z.At(k, i+1)
			z.Set(k, i, conj(c)*zki+conj(s)*zki1)
			z.Set(k, i+1, -s*zki+c*zki1)
		}
	}

	for i := 0; i < m; i++ {
		h.Add_(i, i, shift)
	}
}
