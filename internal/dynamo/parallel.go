package dynamo

import (
	"runtime"

	"golang.org/x/sync/errgroup"
)

// ParallelFor calls fn(i) for every i in [0, n) on at most workers goroutines
// and returns once every call has finished. workers <= 0 means one per CPU.
func ParallelFor(n, workers int, fn func(i int)) {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if n <= 1 || workers == 1 {
		for i := 0; i < n; i++ {
			fn(i)
		}
		return
	}

	var g errgroup.Group
	g.SetLimit(workers)
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			fn(i)
			return nil
		})
	}
	_ = g.Wait()
}
