// Package diskcache provides an optional SQLite-backed spill sink for
// chunk results, used by package schedule when a chunk's combined
// payload size reaches Options.SpillThresholdBytes (spec §4.I). It is
// grounded in the teacher's mat.DiskMatrix out-of-core pattern
// (mat/disk.go): one SQLite table keyed by the global Q index, one row
// per Q point, omega and Sab serialized as BLOBs rather than individual
// per-element rows since a Q point's payload is always read and written
// whole.
package diskcache

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

const tableResults = "q_results"

// Store is an on-disk spill sink for per-Q chunk results.
type Store struct {
	Path string
	db   *sql.DB
}

// Open creates (overwriting) a fresh SQLite-backed store at dbPath.
func Open(dbPath string) (*Store, error) {
	db, err := newDB(dbPath)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	return &Store{Path: dbPath, db: db}, nil
}

// Close closes the database handle and removes the backing file.
func (s *Store) Close() error {
	var err error
	if err1 := s.db.Close(); err1 != nil && err == nil {
		err = err1
	}
	if err1 := os.Remove(s.Path); err1 != nil && err == nil {
		err = err1
	}
	return err
}

// Put stores one Q point's omega vector, Sab tensor, and Sperp vector,
// keyed by the global Q index.
func (s *Store) Put(qIndex int, omega []float64, sab []complex128, sperp []float64) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	sqlStr := fmt.Sprintf(`INSERT OR REPLACE INTO %s (q_index, omega, sab, sperp) VALUES (?, ?, ?, ?)`, tableResults)
	_, err := s.db.ExecContext(ctx, sqlStr, qIndex, encodeFloats(omega), encodeComplexes(sab), encodeFloats(sperp))
	if err != nil {
		return errors.Wrap(err, "")
	}
	return nil
}

// Get retrieves one Q point's omega vector, Sab tensor, and Sperp vector.
func (s *Store) Get(qIndex int) (omega []float64, sab []complex128, sperp []float64, err error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	sqlStr := fmt.Sprintf(`SELECT omega, sab, sperp FROM %s WHERE q_index=?`, tableResults)
	var omegaBlob, sabBlob, sperpBlob []byte
	if err := s.db.QueryRowContext(ctx, sqlStr, qIndex).Scan(&omegaBlob, &sabBlob, &sperpBlob); err != nil {
		return nil, nil, nil, errors.Wrap(err, "")
	}
	return decodeFloats(omegaBlob), decodeComplexes(sabBlob), decodeFloats(sperpBlob), nil
}

func encodeFloats(xs []float64) []byte {
	buf := make([]byte, 8*len(xs))
	for i, x := range xs {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(x))
	}
	return buf
}

func decodeFloats(buf []byte) []float64 {
	out := make([]float64, len(buf)/8)
	for i := range out {
		out[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[i*8:]))
	}
	return out
}

func encodeComplexes(xs []complex128) []byte {
	buf := make([]byte, 16*len(xs))
	for i, x := range xs {
		binary.LittleEndian.PutUint64(buf[i*16:], math.Float64bits(real(x)))
		binary.LittleEndian.PutUint64(buf[i*16+8:], math.Float64bits(imag(x)))
	}
	return buf
}

func decodeComplexes(buf []byte) []complex128 {
	out := make([]complex128, len(buf)/16)
	for i := range out {
		re := math.Float64frombits(binary.LittleEndian.Uint64(buf[i*16:]))
		im := math.Float64frombits(binary.LittleEndian.Uint64(buf[i*16+8:]))
		out[i] = complex(re, im)
	}
	return out
}

func newDB(dbPath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s", dbPath))
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	if err := prepareDB(db); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "")
	}
	return db, nil
}

func prepareDB(db *sql.DB) error {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	sqlStr := fmt.Sprintf(`DROP TABLE IF EXISTS %s`, tableResults)
	if _, err := db.ExecContext(ctx, sqlStr); err != nil {
		return errors.Wrap(err, "")
	}
	sqlStr = fmt.Sprintf(`CREATE TABLE %s (q_index INTEGER PRIMARY KEY, omega BLOB, sab BLOB, sperp BLOB) STRICT`, tableResults)
	if _, err := db.ExecContext(ctx, sqlStr); err != nil {
		return errors.Wrap(err, "")
	}
	return nil
}
