package linalg

// UpperTriangularInverse returns the inverse of an upper triangular
// matrix r with non-zero diagonal, via back substitution column by
// column. Used to recover V = K^{-1} * U * diag(...) in the Colpa path
// (spec §4.F).
func UpperTriangularInverse(r *CMatrix) *CMatrix {
	n := r.N
	out := NewCMatrix(n)
	for col := 0; col < n; col++ {
		x := make([]complex128, n)
		for i := n - 1; i >= 0; i-- {
			if i > col {
				x[i] = 0
				continue
			}
			var s complex128
			for j := i + 1; j <= col; j++ {
				s += r.At(i, j) * x[j]
			}
			var rhs complex128
			if i == col {
				rhs = 1
			}
			x[i] = (rhs - s) / r.At(i, i)
		}
		for i := 0; i < n; i++ {
			out.Set(i, col, x[i])
		}
	}
	return out
}
