package test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/ridge/parallel"
	"github.com/stretchr/testify/require"
)

// Group returns a parallel.Group with a testing context.
//
// If the group finishes with an error other than context.Canceled, the test is
// failed.
func Group(t *testing.T) *parallel.Group {
	group := parallel.NewGroup(Context(t))
	t.Cleanup(func() {
		group.Exit(nil)
		if err := group.Wait(); !errors.Is(err, context.Canceled) {
			require.NoError(t, err)
		}
	})
	return group
}

// Workers runs n copies of fn concurrently and waits for all of them to
// finish. The first error cancels the other workers and fails the test.
func Workers(t *testing.T, n int, fn func(ctx context.Context, worker int) error) {
	var wg sync.WaitGroup
	wg.Add(n)
	err := parallel.Run(Context(t), func(ctx context.Context, spawn parallel.SpawnFn) error {
		for i := 0; i < n; i++ {
			i := i
			spawn(fmt.Sprintf("worker%d", i), parallel.Continue, func(ctx context.Context) error {
				defer wg.Done()
				return fn(ctx, i)
			})
		}
		spawn("waiter", parallel.Exit, func(ctx context.Context) error {
			wg.Wait()
			return nil
		})
		return nil
	})
	require.NoError(t, err)
}
