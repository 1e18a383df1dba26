// Package worker runs a function over a batch of items across a fixed-size
// goroutine pool. Per-item failures are collected rather than aborting the
// batch; the pool always drains to completion. Completion order is
// unspecified, so callers needing determinism must sort results by a stable
// key after collection.
package worker

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/tidelinelabs/tideline/pkg/logging"
)

// Result pairs an item with the outcome of its worker invocation.
type Result[T any] struct {
	Item T
	Err  error
}

// Summary aggregates a finished batch.
type Summary struct {
	Succeeded int
	Failed    int
}

// DefaultWorkers is the pool size used when a non-positive count is given.
func DefaultWorkers() int {
	return runtime.NumCPU()
}

// Run executes fn for every item across a pool of the given size. Panics in
// fn are recovered and reported as that item's error. The returned results
// hold one entry per item, in arbitrary order.
func Run[T any](items []T, workers int, fn func(T) error) ([]Result[T], Summary) {
	logger := logging.GetLogger("worker")

	if workers <= 0 {
		workers = DefaultWorkers()
	}
	if workers > len(items) && len(items) > 0 {
		workers = len(items)
	}

	tasks := make(chan T)
	out := make(chan Result[T], len(items))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range tasks {
				out <- Result[T]{Item: item, Err: invoke(item, fn)}
			}
		}()
	}

	for _, item := range items {
		tasks <- item
	}
	close(tasks)
	wg.Wait()
	close(out)

	results := make([]Result[T], 0, len(items))
	var summary Summary
	for res := range out {
		if res.Err != nil {
			summary.Failed++
			logger.Warn().
				Str("item", fmt.Sprintf("%v", res.Item)).
				Err(res.Err).
				Msg("Batch item failed")
		} else {
			summary.Succeeded++
		}
		results = append(results, res)
	}

	logger.Debug().
		Int("succeeded", summary.Succeeded).
		Int("failed", summary.Failed).
		Int("workers", workers).
		Msg("Batch completed")

	return results, summary
}

// invoke calls fn, converting a panic into an error so one bad item cannot
// take down its siblings.
func invoke[T any](item T, fn func(T) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(item)
}

// Failures filters the failed results from a batch.
func Failures[T any](results []Result[T]) []Result[T] {
	var failed []Result[T]
	for _, res := range results {
		if res.Err != nil {
			failed = append(failed, res)
		}
	}
	return failed
}
