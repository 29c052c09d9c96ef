// Package frame builds the per-site local complex basis (component A of
// the LSWT pipeline): given each site's ordered moment (or, for
// rotating-frame structures, a complex Fourier amplitude), it returns the
// unit normal eta and the complex transverse basis vector z such that z,
// together with e1 = Re(z), e2 = Im(z), and eta form a right-handed
// orthonormal triad.
package frame

import (
	"math"

	"github.com/pkg/errors"

	"github.com/fumin/lswt/internal/linalg"
)

// Frame is one site's local basis.
type Frame struct {
	Eta linalg.Vec3
	Z   linalg.CVec3
}

// ErrZeroMoment is returned when a site's moment (or complex amplitude)
// has zero length.
var ErrZeroMoment = errors.New("frame: zero-length moment")

// FromMoment builds the moment-aligned frame of spec §4.A:
//
//	e3 = eta = M/S
//	e2 = (0, eta3, -eta2)/||.|| if ||.|| > 1e-10, else (0,0,1)
//	e1 = e2 x e3
func FromMoment(moment linalg.Vec3, tol float64) (Frame, error) {
	eta, ok := moment.Normalized(tol)
	if !ok {
		return Frame{}, errors.Wrap(ErrZeroMoment, "FromMoment")
	}

	e2Raw := linalg.Vec3{0, eta[2], -eta[1]}
	e2, ok := e2Raw.Normalized(1e-10)
	if !ok {
		e2 = linalg.Vec3{0, 0, 1}
	}
	e1 := e2.Cross(eta)

	z := linalg.CVec3{
		complex(e1[0], e2[0]),
		complex(e1[1], e2[1]),
		complex(e1[2], e2[2]),
	}
	return Frame{Eta: eta, Z: z}, nil
}

// FromComplexAmplitude builds the complex-magnetisation-aligned frame of
// spec §4.A, used for rotating-frame structures whose ordered moment is
// given as a complex Fourier amplitude F:
//
//	e3 = Re(F)/||Re(F)||
//	e1 = Im(F) projected perpendicular to e3, normalized
//	e2 = e3 x e1
func FromComplexAmplitude(f linalg.CVec3, tol float64) (Frame, error) {
	reF := linalg.Vec3{real(f[0]), real(f[1]), real(f[2])}
	e3, ok := reF.Normalized(tol)
	if !ok {
		return Frame{}, errors.Wrap(ErrZeroMoment, "FromComplexAmplitude")
	}

	imF := linalg.Vec3{imag(f[0]), imag(f[1]), imag(f[2])}
	perp := imF.Sub(e3.Scale(imF.Dot(e3)))
	e1, ok := perp.Normalized(tol)
	if !ok {
		return Frame{}, errors.Errorf("frame: complex amplitude has no component perpendicular to Re(F)")
	}
	e2 := e3.Cross(e1)

	z := linalg.CVec3{
		complex(e1[0], e2[0]),
		complex(e1[1], e2[1]),
		complex(e1[2], e2[2]),
	}
	return Frame{Eta: e3, Z: z}, nil
}

// Validate checks the invariants of spec §3: z.eta == 0, z.z == 0,
// z.conj(z) == 2.
func (f Frame) Validate(tol float64) error {
	zdotEta := complex(0, 0)
	for i := 0; i < 3; i++ {
		zdotEta += f.Z[i] * complex(f.Eta[i], 0)
	}
	zz := linalg.CDot(f.Z, f.Z)
	zzc := linalg.CDotConj(f.Z, f.Z)
	if cmplxAbs(zdotEta) > tol {
		return errors.Errorf("frame: z.eta = %v, want 0", zdotEta)
	}
	if cmplxAbs(zz) > tol {
		return errors.Errorf("frame: z.z = %v, want 0", zz)
	}
	if cmplxAbs(zzc-2) > tol {
		return errors.Errorf("frame: z.conj(z) = %v, want 2", zzc)
	}
	return nil
}

func cmplxAbs(v complex128) float64 {
	return math.Hypot(real(v), imag(v))
}
