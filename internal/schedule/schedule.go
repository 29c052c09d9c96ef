// Package schedule implements the chunking and parallel worker pool of
// spec §4.I / §5: partition the Q list into contiguous chunks sized to a
// memory budget, then run chunks concurrently up to a configured thread
// count, with cooperative cancellation at chunk boundaries. When a
// chunk's combined payload reaches Options.SpillThresholdBytes, its
// computed results are written through the SQLite-backed
// internal/diskcache sink and read back before commit.
package schedule

import (
	"context"
	"os"
	"runtime"
	"sync"

	"github.com/pkg/errors"

	"github.com/fumin/lswt/internal/diskcache"
)

// BytesPerQElement is the measured bytes-per-Q-element multiplier of
// spec §4.I, covering h, V, ExpF, and Sab intermediates live at once
// during one Q's processing.
const BytesPerQElement = 6912

// ChunkSizes partitions nQ points into contiguous chunks sized so that
// each chunk's peak memory (L^2 * chunkLen * BytesPerQElement) stays
// within freeMemoryBytes, per spec §4.I's nSlice heuristic
// (nSlice = ceil(L^2*nQ*6912/F*2)). A chunkOverride > 0 bypasses the
// heuristic and fixes the chunk length directly (spec §6's
// chunk_override option).
func ChunkSizes(nQ, l int, freeMemoryBytes int64, chunkOverride int) []int {
	if nQ <= 0 {
		return nil
	}
	chunkLen := chunkOverride
	if chunkLen <= 0 {
		nSlice := 1
		if freeMemoryBytes > 0 {
			perQ := int64(l) * int64(l) * BytesPerQElement
			total := perQ * int64(nQ) * 2
			nSlice = int((total + freeMemoryBytes - 1) / freeMemoryBytes)
			if nSlice < 1 {
				nSlice = 1
			}
		}
		chunkLen = (nQ + nSlice - 1) / nSlice
		if chunkLen < 1 {
			chunkLen = 1
		}
	}

	var sizes []int
	remaining := nQ
	for remaining > 0 {
		n := chunkLen
		if n > remaining {
			n = remaining
		}
		sizes = append(sizes, n)
		remaining -= n
	}
	return sizes
}

// ThreadCount resolves Options.ThreadCount: a positive value is used
// verbatim, zero or negative falls back to available hardware
// parallelism, per spec §5.
func ThreadCount(requested int) int {
	if requested > 0 {
		return requested
	}
	return runtime.GOMAXPROCS(0)
}

// Payload carries one Q index's result. Schedule has no notion of what
// a "mode" or "Sab channel" is; the caller flattens its per-mode
// Omega/Sab/Sperp arrays into these slices and unflattens them again in
// CommitFunc.
type Payload struct {
	Omega []float64
	Sab   []complex128
	Sperp []float64
}

func payloadBytes(p Payload) int64 {
	return int64(len(p.Omega))*8 + int64(len(p.Sab))*16 + int64(len(p.Sperp))*8
}

// ComputeFunc computes one Q index's payload, returning a fatal error to
// abort the entire computation (spec §7's propagation policy: fatal
// errors abort the whole computation, not just a chunk).
type ComputeFunc func(qIndex int) (Payload, error)

// CommitFunc copies one Q index's payload into the caller's result
// arrays. Called exactly once per Q index, from whichever goroutine
// processed its chunk; every call uses a disjoint qIndex so no external
// synchronization is required (spec §5, "Shared resources").
type CommitFunc func(qIndex int, p Payload)

// Run partitions [0,nQ) into chunks via ChunkSizes and processes them
// with a worker pool bounded by threadCount, calling compute for every Q
// index and commit once its chunk either finishes in memory or has been
// staged through the disk cache and read back. Cancellation is
// cooperative at chunk boundaries: ctx is checked between chunks (spec
// §5), not within a chunk's per-Q work.
//
// If any compute call returns an error, Run discards further chunk
// dispatch, waits for in-flight work to finish, and returns the first
// error encountered under a deterministic scan by global Q index (spec
// §7).
func Run(ctx context.Context, nQ, l int, freeMemoryBytes int64, chunkOverride, threadCount int, spillThresholdBytes int64, compute ComputeFunc, commit CommitFunc) error {
	sizes := ChunkSizes(nQ, l, freeMemoryBytes, chunkOverride)
	threads := ThreadCount(threadCount)

	type chunkErr struct {
		firstQIndex int
		err         error
	}
	errs := make(chan chunkErr, len(sizes))

	sem := make(chan struct{}, threads)
	var wg sync.WaitGroup

	offset := 0
	for _, n := range sizes {
		if ctx.Err() != nil || len(errs) > 0 {
			break
		}
		start := offset
		length := n
		offset += n

		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			if err := runChunk(start, length, spillThresholdBytes, compute, commit); err != nil {
				errs <- chunkErr{firstQIndex: start, err: err}
			}
		}()
	}
	wg.Wait()
	close(errs)

	var best *chunkErr
	for e := range errs {
		e := e
		if best == nil || e.firstQIndex < best.firstQIndex {
			best = &e
		}
	}
	if best != nil {
		return errors.WithStack(best.err)
	}
	return ctx.Err()
}

// runChunk computes every Q index in [start, start+length), holding all
// of the chunk's payloads in memory. When their combined size reaches
// spillThresholdBytes, the payloads are then written to a fresh
// diskcache.Store, the in-memory copies are dropped, and each is read
// back before committing (spec §4.I).
func runChunk(start, length int, spillThresholdBytes int64, compute ComputeFunc, commit CommitFunc) error {
	payloads := make([]Payload, length)
	var total int64
	for i := 0; i < length; i++ {
		p, err := compute(start + i)
		if err != nil {
			return err
		}
		payloads[i] = p
		total += payloadBytes(p)
	}

	if spillThresholdBytes <= 0 || total < spillThresholdBytes {
		for i, p := range payloads {
			commit(start+i, p)
		}
		return nil
	}

	store, err := openSpillStore()
	if err != nil {
		return err
	}
	defer store.Close()

	for i, p := range payloads {
		if err := store.Put(start+i, p.Omega, p.Sab, p.Sperp); err != nil {
			return err
		}
	}
	payloads = nil // release the in-memory copy now that it is staged on disk.

	for i := 0; i < length; i++ {
		omega, sab, sperp, err := store.Get(start + i)
		if err != nil {
			return err
		}
		commit(start+i, Payload{Omega: omega, Sab: sab, Sperp: sperp})
	}
	return nil
}

func openSpillStore() (*diskcache.Store, error) {
	f, err := os.CreateTemp("", "lswt-spill-*.db")
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	path := f.Name()
	if err := f.Close(); err != nil {
		return nil, errors.Wrap(err, "")
	}
	store, err := diskcache.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	return store, nil
}
