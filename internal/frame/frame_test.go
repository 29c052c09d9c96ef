package frame

import (
	"testing"

	"github.com/fumin/lswt/internal/linalg"
)

func TestFromMomentInvariants(t *testing.T) {
	t.Parallel()
	tests := []linalg.Vec3{
		{0, 0, 1},
		{1, 0, 0},
		{0, 1, 0},
		{1, 2, 3},
		{-1, 2, -0.5},
	}
	for _, m := range tests {
		f, err := FromMoment(m, 1e-10)
		if err != nil {
			t.Fatalf("FromMoment(%v): %v", m, err)
		}
		if err := f.Validate(1e-9); err != nil {
			t.Errorf("FromMoment(%v) invalid: %v", m, err)
		}
	}
}

func TestFromMomentZeroLength(t *testing.T) {
	t.Parallel()
	if _, err := FromMoment(linalg.Vec3{0, 0, 0}, 1e-10); err == nil {
		t.Fatalf("expected an error for a zero-length moment")
	}
}

func TestFromComplexAmplitudeInvariants(t *testing.T) {
	t.Parallel()
	f, err := FromComplexAmplitude(linalg.CVec3{1, complex(0, 1), 0}, 1e-10)
	if err != nil {
		t.Fatalf("FromComplexAmplitude: %v", err)
	}
	if err := f.Validate(1e-9); err != nil {
		t.Errorf("invalid frame: %v", err)
	}
}
