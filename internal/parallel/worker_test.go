package parallel_test

import (
	"errors"
	"runtime"
	"sync/atomic"
	"testing"
	"time"

	"github.com/paveg/crosstab/internal/parallel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWorkerPool(t *testing.T) {
	tests := []struct {
		name     string
		workers  int
		expected int
	}{
		{"default", 0, runtime.NumCPU()},
		{"negative", -1, runtime.NumCPU()},
		{"custom", 4, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pool := parallel.NewWorkerPool(tt.workers)
			defer pool.Close()
			assert.Equal(t, tt.expected, pool.NumWorkers())
		})
	}
}

func TestProcessIndexed(t *testing.T) {
	pool := parallel.NewWorkerPool(3)
	defer pool.Close()

	input := []string{"a", "bb", "ccc", "dddd", "eeeee"}
	results := parallel.ProcessIndexed(pool, input, func(i int, s string) int {
		// Later items finish first
		time.Sleep(time.Duration(len(input)-i) * time.Millisecond)
		return len(s) * 10
	})

	assert.Equal(t, []int{10, 20, 30, 40, 50}, results)
}

func TestProcessIndexedEmpty(t *testing.T) {
	pool := parallel.NewWorkerPool(2)
	defer pool.Close()

	assert.Nil(t, parallel.ProcessIndexed(pool, []int{}, func(_ int, x int) int { return x }))
}

func TestProcessIndexedConcurrency(t *testing.T) {
	const workers = 4
	pool := parallel.NewWorkerPool(workers)
	defer pool.Close()

	var active, peak int64
	input := make([]int, 32)
	parallel.ProcessIndexed(pool, input, func(_ int, _ int) int {
		n := atomic.AddInt64(&active, 1)
		for {
			p := atomic.LoadInt64(&peak)
			if n <= p || atomic.CompareAndSwapInt64(&peak, p, n) {
				break
			}
		}
		time.Sleep(2 * time.Millisecond)
		atomic.AddInt64(&active, -1)
		return 0
	})

	assert.LessOrEqual(t, peak, int64(workers))
	assert.Positive(t, peak)
}

func TestMap(t *testing.T) {
	pool := parallel.NewWorkerPool(2)
	defer pool.Close()

	t.Run("success keeps order", func(t *testing.T) {
		results, err := parallel.Map(pool, []int{3, 1, 2}, func(_ int, x int) (int, error) {
			return x * x, nil
		})
		require.NoError(t, err)
		assert.Equal(t, []int{9, 1, 4}, results)
	})

	t.Run("an item error is returned", func(t *testing.T) {
		errOne := errors.New("one")
		errThree := errors.New("three")
		_, err := parallel.Map(pool, []int{0, 1, 2, 3}, func(i int, _ int) (int, error) {
			switch i {
			case 1:
				time.Sleep(5 * time.Millisecond)
				return 0, errOne
			case 3:
				return 0, errThree
			}
			return i, nil
		})
		require.Error(t, err)
		assert.True(t, errors.Is(err, errOne) || errors.Is(err, errThree))
	})

	t.Run("failure stops new work", func(t *testing.T) {
		single := parallel.NewWorkerPool(1)
		defer single.Close()

		var started int64
		_, err := parallel.Map(single, make([]int, 10), func(i int, _ int) (int, error) {
			atomic.AddInt64(&started, 1)
			if i == 0 {
				return 0, errors.New("first item failed")
			}
			return i, nil
		})
		assert.EqualError(t, err, "first item failed")
		assert.Equal(t, int64(1), atomic.LoadInt64(&started))
	})
}

func TestWorkerPoolClose(t *testing.T) {
	pool := parallel.NewWorkerPool(1)
	pool.Close()

	_, err := parallel.Map(pool, []int{1, 2}, func(_ int, x int) (int, error) { return x, nil })
	assert.Error(t, err)
}
