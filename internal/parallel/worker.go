// Package parallel provides the bounded worker pool used to load and
// decode independent inputs concurrently.
//
// Results always come back in input order, so callers concatenating them
// get the same output as a sequential loop.
package parallel

import (
	"context"
	"runtime"
	"sync"
)

// WorkerPool runs work items on a fixed number of goroutines.
type WorkerPool struct {
	numWorkers int
	ctx        context.Context
	cancel     context.CancelFunc
}

// NewWorkerPool creates a pool; numWorkers <= 0 uses runtime.NumCPU().
func NewWorkerPool(numWorkers int) *WorkerPool {
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &WorkerPool{numWorkers: numWorkers, ctx: ctx, cancel: cancel}
}

// NumWorkers returns the pool size.
func (wp *WorkerPool) NumWorkers() int {
	return wp.numWorkers
}

// ProcessIndexed applies worker to every item and returns the results in
// input order. Items not started before Close keep the zero result.
func ProcessIndexed[T, R any](wp *WorkerPool, items []T, worker func(int, T) R) []R {
	if len(items) == 0 {
		return nil
	}

	itemCh := make(chan indexedItem[T], len(items))
	resultCh := make(chan indexedResult[R], len(items))

	var wg sync.WaitGroup
	for range min(wp.numWorkers, len(items)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range itemCh {
				if wp.ctx.Err() != nil {
					return
				}
				resultCh <- indexedResult[R]{index: item.index, result: worker(item.index, item.value)}
			}
		}()
	}

	for i, item := range items {
		itemCh <- indexedItem[T]{index: i, value: item}
	}
	close(itemCh)

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	results := make([]R, len(items))
	for r := range resultCh {
		results[r.index] = r.result
	}
	return results
}

// Map is ProcessIndexed for fallible work. Once an item fails no new item
// is started; the error of the lowest failing index is returned.
func Map[T, R any](wp *WorkerPool, items []T, worker func(int, T) (R, error)) ([]R, error) {
	ctx, cancel := context.WithCancel(wp.ctx)
	defer cancel()
	scoped := &WorkerPool{numWorkers: wp.numWorkers, ctx: ctx, cancel: cancel}

	type outcome struct {
		value R
		err   error
	}
	outcomes := ProcessIndexed(scoped, items, func(i int, item T) outcome {
		v, err := worker(i, item)
		if err != nil {
			cancel()
		}
		return outcome{value: v, err: err}
	})

	results := make([]R, len(items))
	for i, o := range outcomes {
		if o.err != nil {
			return nil, o.err
		}
		results[i] = o.value
	}
	if err := wp.ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// Close cancels work not yet started.
func (wp *WorkerPool) Close() {
	wp.cancel()
}

type indexedItem[T any] struct {
	index int
	value T
}

type indexedResult[R any] struct {
	index  int
	result R
}
