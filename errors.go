package lswt

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrEmptyMagneticStructure is returned when there are no sites, when no
// site has a non-zero moment, or when any site's local frame cannot be
// built from its moment or complex amplitude.
type ErrEmptyMagneticStructure struct{}

func (e *ErrEmptyMagneticStructure) Error() string {
	return "lswt: empty magnetic structure: no sites, or a site without a usable ordered moment"
}

// ErrNonPosDefHamiltonian is returned when the Colpa path's Cholesky
// decomposition fails even after the shift retry of spec §4.F.
type ErrNonPosDefHamiltonian struct {
	QIndex       int
	MinEigenval  float64
}

func (e *ErrNonPosDefHamiltonian) Error() string {
	return fmt.Sprintf("lswt: Hamiltonian not positive-definite at Q index %d (estimated minimum eigenvalue %g)", e.QIndex, e.MinEigenval)
}

// ErrEigensolverFailure is returned when an eigendecomposition fails to
// converge at a given Q.
type ErrEigensolverFailure struct {
	QIndex int
	Reason string
}

func (e *ErrEigensolverFailure) Error() string {
	return fmt.Sprintf("lswt: eigensolver failed to converge at Q index %d: %s", e.QIndex, e.Reason)
}

// ErrBiquadraticIncommensurate is returned when biquadratic couplings are
// supplied for an incommensurate magnetic structure; spec §1 forbids this
// combination.
type ErrBiquadraticIncommensurate struct{}

func (e *ErrBiquadraticIncommensurate) Error() string {
	return "lswt: biquadratic exchange is only valid for commensurate (k=0) structures"
}

// ErrDimensionMismatch is returned when input array shapes disagree.
type ErrDimensionMismatch struct {
	What     string
	Expected string
	Got      string
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("lswt: dimension mismatch in %s: expected %s, got %s", e.What, e.Expected, e.Got)
}

func wrapDim(what, expected, got string) error {
	return errors.WithStack(&ErrDimensionMismatch{What: what, Expected: expected, Got: got})
}
