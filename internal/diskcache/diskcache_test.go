package diskcache

import (
	"os"
	"path/filepath"
	"testing"
)

func TestPutGetRoundTrip(t *testing.T) {
	t.Parallel()
	dir, err := os.MkdirTemp("", "")
	if err != nil {
		t.Fatalf("%+v", err)
	}
	defer os.RemoveAll(dir)

	s, err := Open(filepath.Join(dir, "chunk.db"))
	if err != nil {
		t.Fatalf("Open: %+v", err)
	}
	defer s.Close()

	omega := []float64{1, -1, 2.5, -2.5}
	sab := []complex128{complex(1, 2), complex(-3, 0.5)}
	sperp := []float64{0.5, 1.5}

	if err := s.Put(7, omega, sab, sperp); err != nil {
		t.Fatalf("Put: %+v", err)
	}

	gotOmega, gotSab, gotSperp, err := s.Get(7)
	if err != nil {
		t.Fatalf("Get: %+v", err)
	}
	for i := range omega {
		if gotOmega[i] != omega[i] {
			t.Errorf("omega[%d] = %v, want %v", i, gotOmega[i], omega[i])
		}
	}
	for i := range sab {
		if gotSab[i] != sab[i] {
			t.Errorf("sab[%d] = %v, want %v", i, gotSab[i], sab[i])
		}
	}
	for i := range sperp {
		if gotSperp[i] != sperp[i] {
			t.Errorf("sperp[%d] = %v, want %v", i, gotSperp[i], sperp[i])
		}
	}
}

func TestGetMissingKeyErrors(t *testing.T) {
	t.Parallel()
	dir, err := os.MkdirTemp("", "")
	if err != nil {
		t.Fatalf("%+v", err)
	}
	defer os.RemoveAll(dir)

	s, err := Open(filepath.Join(dir, "chunk.db"))
	if err != nil {
		t.Fatalf("Open: %+v", err)
	}
	defer s.Close()

	if _, _, _, err := s.Get(42); err == nil {
		t.Fatalf("expected an error for a missing key")
	}
}
