// Package parallel provides the runtime parallelism settings used by cache
// views and a row fan-out helper that hands every worker a stable small
// integer id.
//
// Cache views allocate one nexus slot per worker at acquisition time, so the
// number of workers must be known up front and each worker must present the
// same id on every call. Rows guarantees both: it runs exactly the requested
// number of goroutines and worker i always receives id i.
package parallel

import (
	"context"
	"fmt"
	"runtime"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

var maxConcurrency atomic.Int64

// MaxConcurrency returns the number of workers new cache views are sized for.
// Defaults to GOMAXPROCS.
func MaxConcurrency() int {
	if n := maxConcurrency.Load(); n > 0 {
		return int(n)
	}
	return runtime.GOMAXPROCS(0)
}

// SetMaxConcurrency sets the worker count for cache views acquired from now
// on. n <= 0 restores the GOMAXPROCS default. It returns the previous value.
func SetMaxConcurrency(n int) int {
	prev := MaxConcurrency()
	if n < 0 {
		n = 0
	}
	maxConcurrency.Store(int64(n))
	return prev
}

// Rows calls fn(id, y) for every y in [0, rows), spread over at most workers
// goroutines. Worker ids are in [0, workers). Rows are handed out in order
// from a shared counter, so each row is processed exactly once. The first
// error cancels the remaining rows and is returned. A panic in fn is
// returned as an error.
func Rows(ctx context.Context, workers, rows int, fn func(id, y int) error) error {
	if rows <= 0 {
		return nil
	}
	if workers <= 0 {
		workers = 1
	}
	if workers > rows {
		workers = rows
	}

	g, ctx := errgroup.WithContext(ctx)
	var next atomic.Int64
	for id := 0; id < workers; id++ {
		id := id
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("worker %d: panic: %v", id, r)
				}
			}()
			for {
				if err := ctx.Err(); err != nil {
					return err
				}
				y := int(next.Add(1) - 1)
				if y >= rows {
					return nil
				}
				if err := fn(id, y); err != nil {
					return err
				}
			}
		})
	}
	return g.Wait()
}
