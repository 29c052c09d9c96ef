package lswt

import "fmt"

// WarningKind tags the non-fatal warnings of spec §7.
type WarningKind int

const (
	WarnCholeskyShifted WarningKind = iota
	WarnDefectiveEigenvectors
	WarnIncommensurateInSupercell
	WarnFreeMemoryUnknown
	WarnZeroRotationTwin
	WarnGTensorUnset
	WarnImaginaryEigenvalue
	WarnLDLFallback
)

func (k WarningKind) String() string {
	switch k {
	case WarnCholeskyShifted:
		return "near-singular Cholesky shifted"
	case WarnDefectiveEigenvectors:
		return "non-orthogonal defective eigenvectors"
	case WarnIncommensurateInSupercell:
		return "incommensurate modulation inside an explicit supercell is not validated"
	case WarnFreeMemoryUnknown:
		return "free memory unknown, chunk size not limited by a memory budget"
	case WarnZeroRotationTwin:
		return "twin has zero rotation weight"
	case WarnGTensorUnset:
		return "g-tensor requested but not set for one or more sites"
	case WarnImaginaryEigenvalue:
		return "White's method produced an eigenvalue with a non-negligible imaginary part"
	case WarnLDLFallback:
		return "shifted Cholesky failed, fell through to the LDL^H decomposition"
	default:
		return "unknown warning"
	}
}

// Warning is one entry of the warning buffer returned alongside results.
type Warning struct {
	Kind   WarningKind
	QIndex int // -1 when not associated with a specific Q.
	Detail string
}

func (w Warning) String() string {
	if w.QIndex < 0 {
		return fmt.Sprintf("%s: %s", w.Kind, w.Detail)
	}
	return fmt.Sprintf("%s (Q index %d): %s", w.Kind, w.QIndex, w.Detail)
}

// warningBuffer accumulates warnings across the parallel phase. Each
// worker owns a disjoint slice index range and appends to its own local
// slice; buffers are concatenated once chunks join, so no lock is needed
// on the hot path (spec §5, "Shared resources").
type warningBuffer struct {
	chunks [][]Warning
}

func newWarningBuffer(n int) *warningBuffer {
	return &warningBuffer{chunks: make([][]Warning, n)}
}

func (b *warningBuffer) add(chunk int, w Warning) {
	b.chunks[chunk] = append(b.chunks[chunk], w)
}

func (b *warningBuffer) flatten() []Warning {
	out := make([]Warning, 0)
	for _, c := range b.chunks {
		out = append(out, c...)
	}
	return out
}
