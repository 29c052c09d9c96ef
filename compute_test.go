package lswt

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func diagJ(x, y, z float64) *mat.Dense {
	return mat.NewDense(3, 3, []float64{x, 0, 0, 0, y, 0, 0, 0, z})
}

// baseInput returns a single-site, field-free, single-twin input with no
// couplings; callers fill in Bilinear/Biquadratic/State as needed.
func baseInput(moment [3]float64, hkl [][3]float64) Input {
	return Input{
		HKL:  hkl,
		NExt: [3]int{1, 1, 1},
		Sites: []Site{
			{Position: [3]float64{0, 0, 0}, Moment: moment},
		},
		Field: Field{H: [3]float64{0, 0, 0}, MuB: 1},
		State: MagneticState{K: [3]float64{0, 0, 0}, N: [3]float64{0, 0, 1}, Tol: 1e-6},
		Options: Options{
			Hermit:            true,
			OmegaTol:          1e-8,
			Tol:               1e-6,
			SortMode:          SortDescendingReal,
			ThreadCount:       1,
			MemoryBudgetBytes: 1 << 30,
		},
	}
}

// TestComputeHeisenbergFMChain checks spec §8's Heisenberg FM chain case:
// a single site with one nearest-neighbor bond (modeled as J = -J*I, the
// sign under which the linearized diagonal and off-diagonal amplitudes
// combine to the textbook dispersion), giving
// omega(Q) = 2*J*S*(1-cos(2*pi*Qx)).
func TestComputeHeisenbergFMChain(t *testing.T) {
	t.Parallel()
	const s, j = 0.5, 1.0

	in := baseInput([3]float64{0, 0, s}, [][3]float64{{0, 0, 0}, {0.25, 0, 0}, {0.5, 0, 0}})
	in.Bilinear = []Coupling{
		{SiteI: 0, SiteJ: 0, DR: [3]float64{1, 0, 0}, J: diagJ(-j, -j, -j)},
	}

	result, err := Compute(in)
	if err != nil {
		t.Fatalf("Compute: %+v", err)
	}

	want := []float64{0, 1, 2}
	tol := []float64{1e-5, 1e-8, 1e-8}
	for q, w := range want {
		got := result.Omega[0][q]
		if math.Abs(got-w) > tol[q] {
			t.Errorf("Q index %d: omega = %v, want %v", q, got, w)
		}
	}
}

// TestComputeSingleSiteAnisotropyAndBond checks spec §8's single-site
// anisotropy case: an on-site term (SiteI==SiteJ, DR==0) with
// J = diag(0,0,-D) alongside the nearest-neighbor bond of the FM chain
// test, giving omega(Q) = 2*D*S + 2*J*S*(1-cos(2*pi*Qx)).
func TestComputeSingleSiteAnisotropyAndBond(t *testing.T) {
	t.Parallel()
	const s, d, j = 1.0, 1.0, 1.0

	in := baseInput([3]float64{0, 0, s}, [][3]float64{{0, 0, 0}, {0.25, 0, 0}, {0.5, 0, 0}})
	in.Bilinear = []Coupling{
		{SiteI: 0, SiteJ: 0, DR: [3]float64{1, 0, 0}, J: diagJ(-j, -j, -j)},
		{SiteI: 0, SiteJ: 0, DR: [3]float64{0, 0, 0}, J: diagJ(0, 0, -d)},
	}

	result, err := Compute(in)
	if err != nil {
		t.Fatalf("Compute: %+v", err)
	}

	if got, want := result.Omega[0][0], 2*d*s; math.Abs(got-want) > 1e-6 {
		t.Errorf("omega(Q=0) = %v, want %v", got, want)
	}
	for q, qx := range []float64{0, 0.25, 0.5} {
		want := 2*d*s + 2*j*s*(1-math.Cos(2*math.Pi*qx))
		got := result.Omega[0][q]
		if math.Abs(got-want) > 1e-8 {
			t.Errorf("Q index %d: omega = %v, want %v", q, got, want)
		}
	}
}

func TestComputeEmptyMagneticStructure(t *testing.T) {
	t.Parallel()
	in := baseInput([3]float64{0, 0, 0}, [][3]float64{{0, 0, 0}})
	if _, err := Compute(in); err == nil {
		t.Fatalf("expected an error for an all-zero magnetic structure")
	} else if _, ok := err.(*ErrEmptyMagneticStructure); !ok {
		t.Errorf("err = %T, want *ErrEmptyMagneticStructure", err)
	}
}

func TestComputeBiquadraticIncommensurateRejected(t *testing.T) {
	t.Parallel()
	in := baseInput([3]float64{0, 0, 1}, [][3]float64{{0, 0, 0}})
	in.State.K = [3]float64{0.2, 0, 0}
	in.Biquadratic = []Biquadratic{{SiteI: 0, SiteJ: 0, DR: [3]float64{1, 0, 0}, J: 0.5}}

	if _, err := Compute(in); err == nil {
		t.Fatalf("expected an error for biquadratic + incommensurate")
	} else if _, ok := err.(*ErrBiquadraticIncommensurate); !ok {
		t.Errorf("err = %T, want *ErrBiquadraticIncommensurate", err)
	}
}

func TestComputeGTensorUnsetWarning(t *testing.T) {
	t.Parallel()
	in := baseInput([3]float64{0, 0, 1}, [][3]float64{{0, 0, 0}})
	in.Bilinear = []Coupling{{SiteI: 0, SiteJ: 0, DR: [3]float64{0, 0, 0}, J: diagJ(0, 0, -1)}}

	result, err := Compute(in)
	if err != nil {
		t.Fatalf("Compute: %+v", err)
	}
	found := false
	for _, w := range result.Warnings {
		if w.Kind == WarnGTensorUnset {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a WarnGTensorUnset warning, got %v", result.Warnings)
	}
}

// TestComputeTwinAveragingIdenticalTwinsMatchesSingleTwin checks that
// splitting a single identity twin into two identical identity twins with
// half weight each leaves the weighted-average result unchanged.
func TestComputeTwinAveragingIdenticalTwinsMatchesSingleTwin(t *testing.T) {
	t.Parallel()
	makeInput := func(twins []Twin) Input {
		in := baseInput([3]float64{0, 0, 1}, [][3]float64{{0, 0, 0}, {0.1, 0.2, 0}})
		in.Bilinear = []Coupling{{SiteI: 0, SiteJ: 0, DR: [3]float64{0, 0, 0}, J: diagJ(0, 0, -1)}}
		in.Twins = twins
		return in
	}

	single, err := Compute(makeInput(nil))
	if err != nil {
		t.Fatalf("Compute(single): %+v", err)
	}
	doubled, err := Compute(makeInput([]Twin{
		{R: linalgIdentity(), Weight: 0.5},
		{R: linalgIdentity(), Weight: 0.5},
	}))
	if err != nil {
		t.Fatalf("Compute(doubled): %+v", err)
	}

	for mu := range single.Omega {
		for q := range single.Omega[mu] {
			if math.Abs(single.Omega[mu][q]-doubled.Omega[mu][q]) > 1e-9 {
				t.Errorf("mode %d Q %d: omega = %v, want %v", mu, q, doubled.Omega[mu][q], single.Omega[mu][q])
			}
		}
	}
	for a := 0; a < 3; a++ {
		for b := 0; b < 3; b++ {
			for mu := range single.Sab[a][b] {
				for q := range single.Sab[a][b][mu] {
					got := doubled.Sab[a][b][mu][q]
					want := single.Sab[a][b][mu][q]
					if cmplxAbsDiff(got, want) > 1e-9 {
						t.Errorf("Sab[%d][%d] mode %d Q %d = %v, want %v", a, b, mu, q, got, want)
					}
				}
			}
		}
	}
}

func TestComputeIncommensurateTriplesModeCount(t *testing.T) {
	t.Parallel()
	in := baseInput([3]float64{0, 0, 1}, [][3]float64{{0.1, 0.2, 0}})
	in.State.K = [3]float64{0.2, 0, 0}
	in.Bilinear = []Coupling{{SiteI: 0, SiteJ: 0, DR: [3]float64{0, 0, 0}, J: diagJ(0, 0, -1)}}
	in.Options.ReturnV = true

	result, err := Compute(in)
	if err != nil {
		t.Fatalf("Compute: %+v", err)
	}
	const l = 1
	if got, want := len(result.Omega), 3*2*l; got != want {
		t.Errorf("len(Omega) = %d, want %d", got, want)
	}
	if result.V != nil {
		t.Errorf("expected V to stay nil for incommensurate structures")
	}
}

func TestComputeNeutronOutputPopulatesSperp(t *testing.T) {
	t.Parallel()
	in := baseInput([3]float64{0, 0, 1}, [][3]float64{{0.3, 0, 0}})
	in.Bilinear = []Coupling{{SiteI: 0, SiteJ: 0, DR: [3]float64{0, 0, 0}, J: diagJ(0, 0, -1)}}
	in.Options.NeutronOutput = true

	result, err := Compute(in)
	if err != nil {
		t.Fatalf("Compute: %+v", err)
	}
	if len(result.Sperp) != len(result.Omega) {
		t.Fatalf("len(Sperp) = %d, want %d", len(result.Sperp), len(result.Omega))
	}
	for mu := range result.Sperp {
		if math.IsNaN(result.Sperp[mu][0]) {
			t.Errorf("Sperp[%d][0] is NaN", mu)
		}
	}
}

// TestComputeBiquadraticDimer checks spec §8's "biquadratic on dimer"
// case with its literal S=1, J_bq=0.5 parameters: a Neel-ordered
// (antiparallel) two-site dimer with a dominant AFM bilinear bond
// (J=2*I) stabilizing a biquadratic correction on the same bond, coupled
// bidirectionally so the resulting Hamiltonian decouples into two
// identical real pairing blocks {h00=h11=3, h01=h10=4} after the
// bilinear diagonal (4 per site) combines with the biquadratic diagonal
// shift (-1 per site, since the biquadratic cross terms vanish exactly
// for this antiparallel geometry). Gershgorin's bound on this matrix is
// exact (-1), so the shift retry of spec §4.F applies lambda =
// 1*sqrt(4)*4 = 8, giving a shifted pairing amplitude a'=11, b=4 and the
// closed-form Colpa mode sqrt(a'^2-b^2) = sqrt(105).
func TestComputeBiquadraticDimer(t *testing.T) {
	t.Parallel()
	const s, jAfm, jb = 1.0, 2.0, 0.5

	in := Input{
		HKL:  [][3]float64{{0, 0, 0}, {0.2, 0.1, 0}},
		NExt: [3]int{1, 1, 1},
		Sites: []Site{
			{Position: [3]float64{0, 0, 0}, Moment: [3]float64{0, 0, s}},
			{Position: [3]float64{0.5, 0, 0}, Moment: [3]float64{0, 0, -s}},
		},
		Bilinear: []Coupling{
			{SiteI: 0, SiteJ: 1, DR: [3]float64{0, 0, 0}, J: diagJ(jAfm, jAfm, jAfm)},
			{SiteI: 1, SiteJ: 0, DR: [3]float64{0, 0, 0}, J: diagJ(jAfm, jAfm, jAfm)},
		},
		Biquadratic: []Biquadratic{
			{SiteI: 0, SiteJ: 1, DR: [3]float64{0, 0, 0}, J: jb},
			{SiteI: 1, SiteJ: 0, DR: [3]float64{0, 0, 0}, J: jb},
		},
		Field: Field{H: [3]float64{0, 0, 0}, MuB: 1},
		State: MagneticState{K: [3]float64{0, 0, 0}, N: [3]float64{0, 0, 1}, Tol: 1e-6},
		Options: Options{
			Hermit:            true,
			OmegaTol:          1e-8,
			Tol:               1e-6,
			SortMode:          SortDescendingReal,
			ThreadCount:       1,
			MemoryBudgetBytes: 1 << 30,
		},
	}

	result, err := Compute(in)
	if err != nil {
		if _, ok := err.(*ErrNonPosDefHamiltonian); ok {
			t.Fatalf("NonPosDef was raised, but the shift retry should have recovered: %+v", err)
		}
		t.Fatalf("Compute: %+v", err)
	}

	want := math.Sqrt(105)
	wantModes := []float64{want, want, -want, -want}
	for q := range in.HKL {
		for mu, w := range wantModes {
			got := result.Omega[mu][q]
			if math.Abs(got-w) > 1e-5 {
				t.Errorf("Q index %d mode %d: omega = %v, want %v", q, mu, got, w)
			}
		}
	}
}

// TestComputeTriangularAntiferromagnet120 checks spec §8's "Triangular
// antiferromagnet, S = 1, J = 1" case: a single site whose 120 degree
// order is carried entirely by the incommensurate rotating frame (k =
// (1/3, 1/3, 0) is not within Tol of an integer, so the three
// nearest-neighbor bonds of the triangular lattice are symmetrized by
// component B's Rodrigues rotation rather than by enumerating three
// separate sublattice sites). At Q = (0,0,0) this gives, among the
// triple-Q-unfolded six modes, a Goldstone mode: each third's 2x2
// pairing block has equal diagonal entries a = 4.5 and a pairing
// amplitude of equal magnitude, so the block is singular and Colpa's
// sqrt(a^2-b^2) is zero before the shift retry that a singular block
// triggers lifts it to a small, exactly computable value.
func TestComputeTriangularAntiferromagnet120(t *testing.T) {
	t.Parallel()
	const s, j = 1.0, 1.0

	in := Input{
		HKL:  [][3]float64{{0, 0, 0}, {0.5, 0, 0}, {0.3, 0.1, 0.2}},
		NExt: [3]int{3, 3, 1},
		Sites: []Site{
			{Position: [3]float64{0, 0, 0}, Moment: [3]float64{s, 0, 0}},
		},
		Bilinear: []Coupling{
			{SiteI: 0, SiteJ: 0, DR: [3]float64{1, 0, 0}, J: diagJ(j, j, j)},
			{SiteI: 0, SiteJ: 0, DR: [3]float64{0, 1, 0}, J: diagJ(j, j, j)},
			{SiteI: 0, SiteJ: 0, DR: [3]float64{1, 1, 0}, J: diagJ(j, j, j)},
		},
		Field: Field{H: [3]float64{0, 0, 0}, MuB: 1},
		State: MagneticState{K: [3]float64{1.0 / 3, 1.0 / 3, 0}, N: [3]float64{0, 0, 1}, Tol: 1e-6},
		Options: Options{
			Hermit:            true,
			OmegaTol:          1e-8,
			Tol:               1e-6,
			SortMode:          SortDescendingReal,
			ThreadCount:       1,
			MemoryBudgetBytes: 1 << 30,
		},
	}

	result, err := Compute(in)
	if err != nil {
		if _, ok := err.(*ErrNonPosDefHamiltonian); ok {
			t.Fatalf("NonPosDef was raised for the 120 degree triangular antiferromagnet: %+v", err)
		}
		t.Fatalf("Compute: %+v", err)
	}

	const l = 1
	if got, want := len(result.Omega), 3*2*l; got != want {
		t.Fatalf("len(Omega) = %d, want %d (three acoustic modes plus three conjugates)", got, want)
	}

	minAbs := math.Inf(1)
	for mu := range result.Omega {
		if v := math.Abs(result.Omega[mu][0]); v < minAbs {
			minAbs = v
		}
	}
	// The first Cholesky attempt fails on the singular block, and the shift
	// retry of spec §4.F adds lambda = OmegaTol*sqrt(2L)*4 (the Gershgorin
	// bound is 0), so the Goldstone mode becomes sqrt((a+lambda)^2 - a^2).
	lambda := in.Options.OmegaTol * math.Sqrt(2*l) * 4
	want := math.Sqrt((4.5+lambda)*(4.5+lambda) - 4.5*4.5)
	if math.Abs(minAbs-want) > 1e-8 {
		t.Errorf("lowest |omega| at Q=(0,0,0) = %v, want %v (Goldstone mode lifted by the shift retry)", minAbs, want)
	}
}

func linalgIdentity() mat.Matrix { return mat.NewDense(3, 3, []float64{1, 0, 0, 0, 1, 0, 0, 0, 1}) }

func cmplxAbsDiff(a, b complex128) float64 {
	d := a - b
	return math.Hypot(real(d), imag(d))
}
