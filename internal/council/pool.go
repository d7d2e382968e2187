package council

import "golang.org/x/sync/errgroup"

// runBounded calls task for every index in [0, n) with at most limit tasks in
// flight and returns once all of them finished. Tasks report through their own
// result slots; a task never cancels its siblings.
func runBounded(limit, n int, task func(i int)) {
	if limit < 1 {
		limit = 1
	}
	var g errgroup.Group
	g.SetLimit(limit)
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			task(i)
			return nil
		})
	}
	_ = g.Wait()
}
