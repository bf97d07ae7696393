package fluid

import (
	"sync/atomic"
	"testing"
)

func TestWorkerPoolRunCoversAllIndices(t *testing.T) {
	pool := newWorkerPool()
	defer pool.stop()

	for _, n := range []int{0, 1, parallelThreshold - 1, parallelThreshold, 1000} {
		var visited atomic.Int64
		pool.run(n, func(start, end int) {
			for i := start; i < end; i++ {
				visited.Add(1)
			}
		})
		if got := visited.Load(); got != int64(n) {
			t.Errorf("run(%d) visited %d indices", n, got)
		}
	}
}

func TestWorkerPoolRunDisjointWrites(t *testing.T) {
	pool := newWorkerPool()
	defer pool.stop()

	n := 10000
	out := make([]int, n)
	pool.run(n, func(start, end int) {
		for i := start; i < end; i++ {
			out[i] = i * 2
		}
	})
	for i, v := range out {
		if v != i*2 {
			t.Fatalf("out[%d] = %d, want %d", i, v, i*2)
		}
	}
}

func TestReduceSum(t *testing.T) {
	pool := newWorkerPool()
	defer pool.stop()

	n := 100000
	vals := make([]float64, n)
	for i := range vals {
		vals[i] = 0.5
	}
	sum := pool.reduceSum(n, func(start, end int) float64 {
		var s float64
		for i := start; i < end; i++ {
			s += vals[i]
		}
		return s
	})
	if sum != float64(n)*0.5 {
		t.Errorf("reduceSum = %v, want %v", sum, float64(n)*0.5)
	}

	// identical inputs reduce to bit-identical results across calls
	again := pool.reduceSum(n, func(start, end int) float64 {
		var s float64
		for i := start; i < end; i++ {
			s += vals[i]
		}
		return s
	})
	if sum != again {
		t.Errorf("reduceSum not reproducible: %v then %v", sum, again)
	}
}

func TestReduceMax(t *testing.T) {
	pool := newWorkerPool()
	defer pool.stop()

	n := 5000
	vals := make([]float64, n)
	vals[3777] = 9.5
	got := pool.reduceMax(n, func(start, end int) float64 {
		var m float64
		for i := start; i < end; i++ {
			if vals[i] > m {
				m = vals[i]
			}
		}
		return m
	})
	if got != 9.5 {
		t.Errorf("reduceMax = %v, want 9.5", got)
	}
}
