package linalg

import "math"

// CMatrix is a dense, square, row-major complex128 matrix. gonum's mat
// package has no complex128 support for Cholesky or eigendecomposition
// (see the package doc comment), so the Hamiltonian-sized (2L x 2L, L in
// the tens to low hundreds per spec §9) kernels below operate on this
// small hand-rolled type instead.
type CMatrix struct {
	N    int
	Data []complex128 // row-major, len == N*N
}

// NewCMatrix returns an N x N zero matrix.
func NewCMatrix(n int) *CMatrix {
	return &CMatrix{N: n, Data: make([]complex128, n*n)}
}

func (m *CMatrix) At(i, j int) complex128 { return m.Data[i*m.N+j] }
func (m *CMatrix) Set(i, j int, v complex128) { m.Data[i*m.N+j] = v }
func (m *CMatrix) Add_(i, j int, v complex128) { m.Data[i*m.N+j] += v }

// Clone returns a deep copy.
func (m *CMatrix) Clone() *CMatrix {
	out := NewCMatrix(m.N)
	copy(out.Data, m.Data)
	return out
}

// Identity returns the n x n identity matrix.
func Identity(n int) *CMatrix {
	m := NewCMatrix(n)
	for i := 0; i < n; i++ {
		m.Set(i, i, 1)
	}
	return m
}

// ConjTranspose returns m^H.
func (m *CMatrix) ConjTranspose() *CMatrix {
	out := NewCMatrix(m.N)
	for i := 0; i < m.N; i++ {
		for j := 0; j < m.N; j++ {
			v := m.At(i, j)
			out.Set(j, i, complex(real(v), -imag(v)))
		}
	}
	return out
}

// Mul returns a*b.
func Mul(a, b *CMatrix) *CMatrix {
	if a.N != b.N {
		panic("linalg: mismatched matrix sizes")
	}
	n := a.N
	out := NewCMatrix(n)
	for i := 0; i < n; i++ {
		for k := 0; k < n; k++ {
			aik := a.At(i, k)
			if aik == 0 {
				continue
			}
			for j := 0; j < n; j++ {
				out.Add_(i, j, aik*b.At(k, j))
			}
		}
	}
	return out
}

// Hermitize returns (m + m^H)/2.
func Hermitize(m *CMatrix) *CMatrix {
	h := m.ConjTranspose()
	out := NewCMatrix(m.N)
	for i := range out.Data {
		out.Data[i] = 0.5 * (m.Data[i] + h.Data[i])
	}
	return out
}

// FrobeniusNorm returns ||m||_F.
func FrobeniusNorm(m *CMatrix) float64 {
	var s float64
	for _, v := range m.Data {
		s += real(v)*real(v) + imag(v)*imag(v)
	}
	return math.Sqrt(s)
}

// HermiticityResidual returns ||m - m^H||_F / ||m||_F, used by callers to
// check spec invariant 1 (h(Q) Hermitian to within roundoff).
func HermiticityResidual(m *CMatrix) float64 {
	h := m.ConjTranspose()
	diff := NewCMatrix(m.N)
	for i := range diff.Data {
		diff.Data[i] = m.Data[i] - h.Data[i]
	}
	denom := FrobeniusNorm(m)
	if denom == 0 {
		return 0
	}
	return FrobeniusNorm(diff) / denom
}

// ScaleColumns multiplies column i of m by diag[i] in place, returning m.
func (m *CMatrix) ScaleColumns(diag []float64) *CMatrix {
	for i := 0; i < m.N; i++ {
		for j := 0; j < m.N; j++ {
			m.Set(i, j, m.At(i, j)*complex(diag[j], 0))
		}
	}
	return m
}

// MulVec returns m*v for a complex vector v.
func (m *CMatrix) MulVec(v []complex128) []complex128 {
	out := make([]complex128, m.N)
	for i := 0; i < m.N; i++ {
		var s complex128
		for j := 0; j < m.N; j++ {
			s += m.At(i, j) * v[j]
		}
		out[i] = s
	}
	return out
}

func cabs(v complex128) float64 { return math.Hypot(real(v), imag(v)) }
