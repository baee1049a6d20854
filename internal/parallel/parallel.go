// Package parallel provides data-parallel loops for the sparsenet kernels.
//
// Work is split into contiguous chunks of indices and every index is handled by
// exactly one goroutine, so a kernel that computes each output row from its own
// inputs produces bit-identical results with or without parallelism.
package parallel

import (
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/klauspost/cpuid/v2"
)

// Config controls parallel execution behavior.
type Config struct {
	Enabled      bool // Whether parallel execution is enabled.
	NumWorkers   int  // Number of worker goroutines to use.
	MinChunkSize int  // Minimum items per goroutine to avoid overhead.
}

var defaultWorkers atomic.Int64

// SetDefaultWorkers overrides the worker count of DefaultConfig for matrices
// created afterwards. Zero restores the physical core count.
func SetDefaultWorkers(n int) {
	defaultWorkers.Store(int64(max(n, 0)))
}

// DefaultConfig returns sensible defaults based on the physical core count.
func DefaultConfig() Config {
	n := int(defaultWorkers.Load())
	if n == 0 {
		n = cpuid.CPU.PhysicalCores
	}
	if n <= 0 {
		n = runtime.NumCPU()
	}
	return Config{
		Enabled:      n > 1,
		NumWorkers:   n,
		MinChunkSize: 64, // Typical cache line aware chunk.
	}
}

// Sequential returns a configuration that never spawns goroutines.
func Sequential() Config {
	return Config{Enabled: false, NumWorkers: 1}
}

// For executes f(i) for i in [0, n) with optional parallelism.
// Falls back to sequential execution if parallelism is disabled or n is too small.
func For(n int, f func(i int), cfg Config) {
	if !cfg.Enabled || cfg.NumWorkers <= 1 || n < cfg.MinChunkSize {
		for i := 0; i < n; i++ {
			f(i)
		}
		return
	}

	var wg sync.WaitGroup
	chunkSize := max((n+cfg.NumWorkers-1)/cfg.NumWorkers, cfg.MinChunkSize)

	for start := 0; start < n; start += chunkSize {
		end := min(start+chunkSize, n)
		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			for i := s; i < e; i++ {
				f(i)
			}
		}(start, end)
	}
	wg.Wait()
}

// CPUName returns the processor brand and the number of physical cores.
func CPUName() (string, int) {
	return cpuid.CPU.BrandName, cpuid.CPU.PhysicalCores
}
