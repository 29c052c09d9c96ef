package lswt

import (
	"context"
	"errors"
	"math"
	"strconv"

	"gonum.org/v1/gonum/mat"

	"github.com/fumin/lswt/internal/bogoliubov"
	"github.com/fumin/lswt/internal/correlation"
	"github.com/fumin/lswt/internal/frame"
	"github.com/fumin/lswt/internal/hamfield"
	"github.com/fumin/lswt/internal/linalg"
	"github.com/fumin/lswt/internal/schedule"
	"github.com/fumin/lswt/internal/table"
)

// Compute runs the full LSWT pipeline of spec §2 on input, returning the
// magnon mode energies and either the correlation tensor or its neutron
// projection for every Q point in input.HKL.
func Compute(input Input) (*Result, error) {
	l := len(input.Sites)
	if l == 0 {
		return nil, &ErrEmptyMagneticStructure{}
	}

	spins := make([]float64, l)
	anyNonzero := false
	for i, s := range input.Sites {
		m := linalg.Vec3(s.Moment)
		spins[i] = m.Norm()
		if spins[i] > 0 {
			anyNonzero = true
		}
	}
	if !anyNonzero {
		return nil, &ErrEmptyMagneticStructure{}
	}
	for _, c := range input.Bilinear {
		if c.SiteI < 0 || c.SiteI >= l || c.SiteJ < 0 || c.SiteJ >= l {
			return nil, wrapDim("Bilinear site index", "0.."+strconv.Itoa(l-1), strconv.Itoa(c.SiteI)+","+strconv.Itoa(c.SiteJ))
		}
	}
	for _, c := range input.Biquadratic {
		if c.SiteI < 0 || c.SiteI >= l || c.SiteJ < 0 || c.SiteJ >= l {
			return nil, wrapDim("Biquadratic site index", "0.."+strconv.Itoa(l-1), strconv.Itoa(c.SiteI)+","+strconv.Itoa(c.SiteJ))
		}
	}

	k := linalg.Vec3(input.State.K)
	n := linalg.Vec3(input.State.N)
	tol := input.State.Tol
	if tol <= 0 {
		tol = 1e-6
	}
	incommensurate := !isCommensurate(k, tol)
	helical := !isCommensurate(linalg.Vec3{2 * k[0], 2 * k[1], 2 * k[2]}, tol)

	if len(input.Biquadratic) > 0 && incommensurate {
		return nil, &ErrBiquadraticIncommensurate{}
	}

	frames := make([]frame.Frame, l)
	var warnings []Warning
	for i, s := range input.Sites {
		var f frame.Frame
		var err error
		if s.Complex != nil {
			f, err = frame.FromComplexAmplitude(linalg.CVec3(*s.Complex), 1e-10)
		} else {
			f, err = frame.FromMoment(linalg.Vec3(s.Moment), 1e-10)
		}
		if err != nil {
			return nil, &ErrEmptyMagneticStructure{}
		}
		frames[i] = f
		if s.G == nil {
			warnings = append(warnings, Warning{Kind: WarnGTensorUnset, QIndex: -1, Detail: "site " + strconv.Itoa(i)})
		}
	}

	if incommensurate && input.NExt != [3]int{1, 1, 1} {
		warnings = append(warnings, Warning{Kind: WarnIncommensurateInSupercell, QIndex: -1, Detail: "incommensurate modulation inside an explicit supercell is unvalidated"})
	}

	nExt := linalg.Vec3{float64(input.NExt[0]), float64(input.NExt[1]), float64(input.NExt[2])}

	bilinearCouplings := make([]table.Coupling, len(input.Bilinear))
	for i, c := range input.Bilinear {
		bilinearCouplings[i] = table.Coupling{SiteI: c.SiteI, SiteJ: c.SiteJ, DR: linalg.Vec3(c.DR), J: c.J}
	}
	bilinearEntries, bilinearDiag := table.BuildBilinear(frames, spins, bilinearCouplings, k, n, incommensurate)

	var biquadEntries []table.BiquadraticEntry
	var biquadDiag []float64
	hasBiquad := !incommensurate && len(input.Biquadratic) > 0
	if hasBiquad {
		bq := make([]table.BiquadraticCoupling, len(input.Biquadratic))
		for i, c := range input.Biquadratic {
			bq[i] = table.BiquadraticCoupling{SiteI: c.SiteI, SiteJ: c.SiteJ, DR: linalg.Vec3(c.DR), Jb: c.J}
		}
		biquadEntries, biquadDiag = table.BuildBiquadratic(frames, spins, bq)
	}

	twins := input.Twins
	if len(twins) == 0 {
		twins = []Twin{{R: linalg.Identity3(), Weight: 1}}
	}
	totalWeight := 0.0
	for _, tw := range twins {
		if tw.Weight == 0 {
			warnings = append(warnings, Warning{Kind: WarnZeroRotationTwin, QIndex: -1})
		}
		totalWeight += tw.Weight
	}
	if totalWeight == 0 {
		totalWeight = 1
	}

	gTensors := make([]mat.Matrix, l)
	for i, s := range input.Sites {
		gTensors[i] = s.G
	}
	zeemanDiags := make([][]float64, len(twins))
	for ti, tw := range twins {
		hRot := linalg.MulVec3(transpose3(tw.R), linalg.Vec3(input.Field.H))
		zeemanDiags[ti] = table.BuildZeeman(frames, gTensors, hRot, input.Field.MuB)
	}

	diag := make([]float64, 2*l)
	for i := range diag {
		diag[i] = bilinearDiag[i]
		if hasBiquad {
			diag[i] += biquadDiag[i]
		}
	}

	tables := hamfield.Tables{
		L:           l,
		NExt:        nExt,
		Bilinear:    bilinearEntries,
		Biquadratic: biquadEntries,
		HasBiquad:   hasBiquad,
	}

	sites := make([]correlation.Site, l)
	for i, s := range input.Sites {
		zTilde := frames[i].Z
		if s.G != nil {
			zTilde = linalg.MulCVec3(s.G, frames[i].Z)
		}
		sites[i] = correlation.Site{
			Position:   linalg.Vec3(s.Position),
			Spin:       spins[i],
			ZTilde:     zTilde,
			FormFactor: formFactorOrNil(input.Options.FormFactor, s.FormFactor),
		}
	}

	nQ := len(input.HKL)
	opts := input.Options
	bogOpts := bogoliubov.Options{
		Hermit:   opts.Hermit,
		FastMode: opts.FastMode,
		OmegaTol: opts.OmegaTol,
		Tol:      opts.Tol,
		SortMode: bogoliubov.SortMode(opts.SortMode),
		Fallback: bogoliubov.FallbackStrategy(opts.Fallback),
		MaxIter:  200,
	}

	modesPerThird := 2 * l
	if opts.FastMode {
		modesPerThird = l
	}
	thirdsCount := 1
	if incommensurate {
		thirdsCount = 3
	}
	totalModes := modesPerThird * thirdsCount

	result := &Result{
		Omega: make([][]float64, totalModes),
		Sab:   make([][][][]complex128, 3),
	}
	for a := 0; a < 3; a++ {
		result.Sab[a] = make([][][]complex128, 3)
		for b := 0; b < 3; b++ {
			result.Sab[a][b] = make([][]complex128, totalModes)
			for mu := 0; mu < totalModes; mu++ {
				result.Sab[a][b][mu] = make([]complex128, nQ)
			}
		}
	}
	for mu := range result.Omega {
		result.Omega[mu] = make([]float64, nQ)
	}
	if opts.NeutronOutput {
		result.Sperp = make([][]float64, totalModes)
		for mu := range result.Sperp {
			result.Sperp[mu] = make([]float64, nQ)
		}
	}
	// V and HMatrix are only materialized for the commensurate case: per
	// spec §4.H each incommensurate third is an independent
	// diagonalization, and §6's V[q][row][col] / HMatrix[q][row][col]
	// shape has no room for three per-Q matrices, so incommensurate
	// computations leave these nil.
	if opts.ReturnV && !incommensurate {
		result.V = make([][][]complex128, nQ)
	}
	if opts.ReturnHMatrix && !incommensurate {
		result.HMatrix = make([][][]complex128, nQ)
	}
	// Sabp is the rotating-frame Sab of the incommensurate center third,
	// before correlation.RotateThird folds it back into the lab frame
	// (spec §6); it has no meaning for commensurate structures.
	returnSabp := opts.ReturnSabp && incommensurate
	if returnSabp {
		result.Sabp = make([][][][]complex128, 3)
		for a := 0; a < 3; a++ {
			result.Sabp[a] = make([][][]complex128, 3)
			for b := 0; b < 3; b++ {
				result.Sabp[a][b] = make([][]complex128, modesPerThird)
				for mu := 0; mu < modesPerThird; mu++ {
					result.Sabp[a][b][mu] = make([]complex128, nQ)
				}
			}
		}
	}

	nCell := float64(input.NExt[0] * input.NExt[1] * input.NExt[2])
	if nCell <= 0 {
		nCell = 1
	}
	if opts.NFormula > 0 {
		nCell *= float64(opts.NFormula)
	}

	wb := newWarningBuffer(nQ)
	rk := correlation.BuildRotationKernels(n)

	// computeQ does every piece of per-Q work that is not part of the
	// spillable Omega/Sab/Sperp slab directly (V, HMatrix, Sabp, and
	// warnings are small and qIdx-keyed, so they are written straight into
	// result/wb here), then hands the slab itself to the scheduler as a
	// schedule.Payload so that runChunk can spill it through the disk
	// cache when a chunk's combined size crosses
	// Options.SpillThresholdBytes.
	computeQ := func(qIdx int) (schedule.Payload, error) {
		hklVal := input.HKL[qIdx]
		qFrac := linalg.Vec3(hklVal)
		qAbs := qFrac.Norm()
		qHat, ok := qFrac.Normalized(1e-12)
		if !ok {
			qHat = nextQHat(input.HKL, qIdx)
		}

		var thirds []correlation.Third
		var qs []linalg.Vec3
		if incommensurate {
			triple := correlation.TripleQ(qFrac, k)
			thirds = []correlation.Third{correlation.ThirdMinus, correlation.ThirdCenter, correlation.ThirdPlus}
			qs = []linalg.Vec3{triple[0], triple[1], triple[2]}
		} else {
			thirds = []correlation.Third{correlation.ThirdCenter}
			qs = []linalg.Vec3{qFrac}
		}

		payload := schedule.Payload{
			Omega: make([]float64, totalModes),
			Sab:   make([]complex128, totalModes*9),
		}
		if opts.NeutronOutput {
			payload.Sperp = make([]float64, totalModes)
		}

		modeOffset := 0
		for ti, q := range qs {
			omega, sabAvg, w, first, err := computeOneQ(qIdx, q, qAbs, l, twins, zeemanDiags, diag, tables, bogOpts, sites, modesPerThird, nCell)
			if err != nil {
				return schedule.Payload{}, err
			}
			if !incommensurate {
				if opts.ReturnV {
					result.V[qIdx] = toComplexRows(first.v)
				}
				if opts.ReturnHMatrix {
					result.HMatrix[qIdx] = toComplexRows(first.h)
				}
			}
			for _, warn := range w {
				warn.QIndex = qIdx
				wb.add(qIdx, warn)
			}

			if returnSabp && thirds[ti] == correlation.ThirdCenter {
				for mu := 0; mu < modesPerThird; mu++ {
					for a := 0; a < 3; a++ {
						for b := 0; b < 3; b++ {
							result.Sabp[a][b][mu][qIdx] = sabAvg[mu][a][b]
						}
					}
				}
			}

			if incommensurate {
				sabAvg = correlation.RotateThird(sabAvg, thirds[ti], rk)
				if helical {
					sabAvg = correlation.IntegrateHelicalPhase(sabAvg, n)
				}
			}

			for mu := 0; mu < modesPerThird; mu++ {
				globalMu := modeOffset + mu
				payload.Omega[globalMu] = omega[mu]
				for a := 0; a < 3; a++ {
					for b := 0; b < 3; b++ {
						payload.Sab[globalMu*9+a*3+b] = sabAvg[mu][a][b]
					}
				}
				if opts.NeutronOutput {
					perp := correlation.Perp([][3][3]complex128{sabAvg[mu]}, qHat)
					payload.Sperp[globalMu] = perp[0]
				}
			}
			modeOffset += modesPerThird
		}
		return payload, nil
	}

	commitQ := func(qIdx int, p schedule.Payload) {
		for mu := 0; mu < totalModes; mu++ {
			result.Omega[mu][qIdx] = p.Omega[mu]
			for a := 0; a < 3; a++ {
				for b := 0; b < 3; b++ {
					result.Sab[a][b][mu][qIdx] = p.Sab[mu*9+a*3+b]
				}
			}
			if opts.NeutronOutput {
				result.Sperp[mu][qIdx] = p.Sperp[mu]
			}
		}
	}

	err := schedule.Run(context.Background(), nQ, l, opts.MemoryBudgetBytes, opts.ChunkOverride, opts.ThreadCount, opts.SpillThresholdBytes, computeQ, commitQ)
	if opts.MemoryBudgetBytes == 0 {
		warnings = append(warnings, Warning{Kind: WarnFreeMemoryUnknown, QIndex: -1})
	}
	if err != nil {
		return nil, err
	}

	result.Warnings = append(warnings, wb.flatten()...)
	return result, nil
}

// firstTwinMatrices carries the first twin's Hamiltonian and eigenvector
// matrices, for the optional V / H_matrix outputs of spec §6.
type firstTwinMatrices struct {
	h *linalg.CMatrix
	v *linalg.CMatrix
}

// computeOneQ builds and diagonalizes h(Q) once per twin, rotates each
// twin's correlation tensor into the lab frame, and returns the
// weight-averaged result.
func computeOneQ(qIdx int, q linalg.Vec3, qAbs float64, l int, twins []Twin, zeemanDiags [][]float64, baseDiag []float64, tables hamfield.Tables, bogOpts bogoliubov.Options, sites []correlation.Site, nModes int, nCell float64) ([]float64, [][3][3]complex128, []Warning, firstTwinMatrices, error) {
	bogOpts.QIndex = qIdx
	var omegaOut []float64
	sabSum := make([][3][3]complex128, nModes)
	var warnings []Warning
	var first firstTwinMatrices
	totalWeight := 0.0

	for ti, tw := range twins {
		full := make([]float64, 2*l)
		for i := range full {
			full[i] = baseDiag[i] + zeemanDiags[ti][i]
		}
		t := tables
		t.Diagonal = full

		h := hamfield.Build(q, t)
		res, err := bogoliubov.Diagonalize(h, l, bogOpts)
		if err != nil {
			var npd *bogoliubov.NonPosDefError
			var esf *bogoliubov.EigensolverFailureError
			switch {
			case errors.As(err, &npd):
				err = &ErrNonPosDefHamiltonian{QIndex: npd.QIndex, MinEigenval: npd.MinEigenval}
			case errors.As(err, &esf):
				err = &ErrEigensolverFailure{QIndex: esf.QIndex, Reason: esf.Reason}
			}
			return nil, nil, nil, firstTwinMatrices{}, err
		}
		if ti == 0 {
			first = firstTwinMatrices{h: h, v: res.V}
		}
		for _, w := range res.Warnings {
			warnings = append(warnings, Warning{Kind: mapWarningKind(w.Kind), Detail: w.Detail})
		}

		sab := correlation.Assemble(q, qAbs, sites, res.V, nModes, nCell)
		for mu := range sab {
			sab[mu] = correlation.RotateTensor(sab[mu], tw.R)
		}

		if omegaOut == nil {
			omegaOut = make([]float64, nModes)
		}
		weight := tw.Weight
		totalWeight += weight
		for mu := 0; mu < nModes; mu++ {
			if ti == 0 {
				omegaOut[mu] = res.Omega[mu]
			}
			for a := 0; a < 3; a++ {
				for b := 0; b < 3; b++ {
					sabSum[mu][a][b] += complex(weight, 0) * sab[mu][a][b]
				}
			}
		}
	}

	if totalWeight == 0 {
		totalWeight = 1
	}
	for mu := range sabSum {
		for a := 0; a < 3; a++ {
			for b := 0; b < 3; b++ {
				sabSum[mu][a][b] /= complex(totalWeight, 0)
			}
		}
	}

	return omegaOut, sabSum, warnings, first, nil
}

// toComplexRows converts a linalg.CMatrix into the row-major [][]complex128
// shape Result.V and Result.HMatrix expose to callers.
func toComplexRows(m *linalg.CMatrix) [][]complex128 {
	if m == nil {
		return nil
	}
	out := make([][]complex128, m.N)
	for i := 0; i < m.N; i++ {
		out[i] = make([]complex128, m.N)
		for j := 0; j < m.N; j++ {
			out[i][j] = m.At(i, j)
		}
	}
	return out
}

func mapWarningKind(k string) WarningKind {
	switch k {
	case "CholeskyShifted":
		return WarnCholeskyShifted
	case "DefectiveEigenvectors":
		return WarnDefectiveEigenvectors
	case "ImaginaryEigenvalue":
		return WarnImaginaryEigenvalue
	case "LDLFallback":
		return WarnLDLFallback
	default:
		return WarnDefectiveEigenvectors
	}
}

func isCommensurate(v linalg.Vec3, tol float64) bool {
	for _, x := range v {
		frac := x - math.Round(x)
		if math.Abs(frac) > tol {
			return false
		}
	}
	return true
}

func transpose3(m mat.Matrix) *mat.Dense {
	var out mat.Dense
	out.CloneFrom(m.T())
	return &out
}

func formFactorOrNil(enabled bool, f func(float64) float64) func(float64) float64 {
	if !enabled {
		return nil
	}
	return f
}

// nextQHat implements spec §4.G's Q=0 fallback: use the next Q point's
// direction, or (1,0,0) if this is the last point.
func nextQHat(hkl [][3]float64, idx int) linalg.Vec3 {
	for j := idx + 1; j < len(hkl); j++ {
		v := linalg.Vec3(hkl[j])
		if h, ok := v.Normalized(1e-12); ok {
			return h
		}
	}
	return linalg.Vec3{1, 0, 0}
}

