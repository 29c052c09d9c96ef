// Package lswt computes linear spin-wave theory (LSWT) observables for a
// magnetic unit cell: magnon mode energies and the dynamical spin-spin
// correlation tensor, for a list of reciprocal-space points.
//
// The package is purely functional with respect to its inputs: it does no
// I/O, holds no persisted state, and performs no logging. Crystal/symmetry
// handling, site enumeration, and presentation (plotting, serialization,
// powder averaging) are the caller's responsibility.
package lswt

import "gonum.org/v1/gonum/mat"

// Site is one magnetic ion in the magnetic supercell.
type Site struct {
	// Position is the site's position r_i in the magnetic supercell, in
	// fractional coordinates.
	Position [3]float64
	// Moment is the ordered moment vector M_i. Its length is the spin
	// length S_i; it must be non-zero.
	Moment [3]float64
	// G is the site's g-tensor. A nil value is treated as unset: the
	// identity g-tensor is used and a WarnGTensorUnset warning is emitted
	// for the site.
	G mat.Matrix
	// FormFactor evaluates the site's magnetic form factor F_i(|Q|).
	// Compute passes the Euclidean norm of the HKL entry as |Q|; no
	// reciprocal-lattice basis is applied, so the argument is in
	// reciprocal-lattice units, not inverse angstrom. Nil means no form
	// factor (F == 1).
	FormFactor func(absQ float64) float64
	// Complex, when non-nil, is the complex Fourier amplitude used to pick
	// the complex-magnetisation-aligned local frame convention of spec
	// §4.A instead of the moment-aligned one.
	Complex *[3]complex128
}

// Coupling is one bilinear exchange term, or an on-site anisotropy when
// SiteI == SiteJ and DR == [3]float64{0,0,0}.
type Coupling struct {
	SiteI, SiteJ int
	// DR is the lattice displacement vector, fractional w.r.t. the
	// magnetic supercell.
	DR [3]float64
	// J is the 3x3 exchange tensor.
	J mat.Matrix
}

// Biquadratic is one biquadratic exchange term. Forbidden when the
// magnetic structure is incommensurate.
type Biquadratic struct {
	SiteI, SiteJ int
	DR           [3]float64
	J            float64
}

// Field is the external magnetic field, in the crystal Cartesian frame.
type Field struct {
	H    [3]float64
	MuB  float64
}

// Twin is one magnetic twin domain.
type Twin struct {
	// R is the twin's SO(3) rotation matrix.
	R mat.Matrix
	// Weight is the twin's volume weight, > 0.
	Weight float64
}

// MagneticState carries the propagation vector and rotation axis shared by
// every site.
type MagneticState struct {
	// K is the propagation vector, in extended-cell units.
	K [3]float64
	// N is the rotation axis, a unit vector, used by the incommensurate
	// unfolder (component H) and the rotating-frame bilinear
	// symmetrization (component B).
	N [3]float64
	// Tol is the tolerance used to decide whether K (respectively 2K) is
	// commensurate: a component is commensurate if it is within Tol of an
	// integer.
	Tol float64
}

// SortMode selects the tie-breaking rule used when sorting magnon modes.
type SortMode int

const (
	// SortDescendingReal sorts by descending real part of the eigenvalue,
	// ties broken by ascending imaginary part, then by original index
	// (spec §5, "Ordering guarantees").
	SortDescendingReal SortMode = iota
	// SortStable orders modes the same way as SortDescendingReal (exact
	// ties by ascending imaginary part, then by original index). It does
	// not use projected intensity, and near-degenerate but unequal
	// eigenvalues are ordered by value alone.
	SortStable
)

// FallbackStrategy selects what happens when the Colpa path's shifted
// Cholesky retry still fails at a given Q (spec §4.F / §9).
type FallbackStrategy int

const (
	// FallbackNonPosDef reports ErrNonPosDefHamiltonian directly, spec
	// §4.F's original behavior.
	FallbackNonPosDef FallbackStrategy = iota
	// FallbackLDL retries once more with the permissive LDL^H
	// decomposition (internal/linalg/ldl.go) in place of Cholesky before
	// giving up with ErrNonPosDefHamiltonian.
	FallbackLDL
)

// Options configures a Compute call. The zero value is not valid; use
// NewOptions.
type Options struct {
	Hermit         bool
	FastMode       bool
	NeutronOutput  bool
	FormFactor     bool
	OmegaTol       float64
	Tol            float64
	SortMode       SortMode
	// Fallback selects the Colpa path's non-positive-definite recovery
	// strategy of spec §9. The zero value, FallbackNonPosDef, is spec
	// §4.F's original behavior.
	Fallback      FallbackStrategy
	ThreadCount   int
	ChunkOverride int
	// NFormula is an optional normalization for intensity, 0 means unset.
	NFormula int
	// ReturnV, ReturnHMatrix request the optional per-Q matrix outputs of
	// spec §6 (commensurate structures only). ReturnSabp requests the
	// rotating-frame Sab of the incommensurate center third (spec §6);
	// it has no effect for commensurate structures.
	ReturnV       bool
	ReturnHMatrix bool
	ReturnSabp    bool
	// MemoryBudgetBytes is the free-memory estimate F of spec §4.I. Zero
	// means "unknown," which triggers the FreeMemoryUnknown warning; the
	// Q list is then processed as a single chunk unless ChunkOverride is
	// set.
	MemoryBudgetBytes int64
	// SpillThresholdBytes, when positive, makes the scheduler write every
	// chunk whose combined output payload reaches this size through the
	// SQLite-backed disk cache (internal/diskcache) and read it back
	// before committing. The chunk's payloads are computed and held in
	// memory before they are written.
	SpillThresholdBytes int64
}

// NewOptions returns the default options.
func NewOptions() Options {
	return Options{
		Hermit:      true,
		OmegaTol:    1e-8,
		Tol:         1e-5,
		SortMode:    SortDescendingReal,
		ThreadCount: 0, // 0 means "use available hardware parallelism."
	}
}

// Input is the full set of flat, caller-owned arrays described in spec §6.
type Input struct {
	HKL  [][3]float64 // nQ entries, reciprocal-lattice units.
	NExt [3]int
	Sites       []Site
	Bilinear    []Coupling
	Biquadratic []Biquadratic
	Field       Field
	Twins       []Twin
	State       MagneticState
	Options     Options
}

// Result holds the outputs of spec §6. Sab is always populated; Sperp is
// additionally populated when Options.NeutronOutput is set.
type Result struct {
	// Omega has shape (2L, nQ) commensurate, (6L, nQ) incommensurate, or
	// (L, nQ) in fast mode, stored row-major: Omega[mode][q].
	Omega [][]float64
	// Sab has shape (3, 3, nModes, nQ): Sab[a][b][mode][q].
	Sab [][][][]complex128
	// Sperp has shape (nModes, nQ): Sperp[mode][q].
	Sperp [][]float64
	// V, HMatrix are optional, populated only when requested, and only
	// for commensurate structures.
	V       [][][]complex128 // V[q][row][col]
	HMatrix [][][]complex128 // HMatrix[q][row][col]
	// Sabp is the rotating-frame Sab of the incommensurate center third
	// (shape (3, 3, 2L, nQ), or (3, 3, L, nQ) in fast mode:
	// Sabp[a][b][mode][q]), populated only when
	// Options.ReturnSabp is set and the structure is incommensurate.
	Sabp [][][][]complex128
	// Warnings collects every non-fatal warning encountered, in
	// deterministic scan order (spec §7).
	Warnings []Warning
}
