package work

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestRunAllCollectsEveryFailure verifies a failing item never hides its
// siblings' results and every failure lands in the aggregate.
func TestRunAllCollectsEveryFailure(t *testing.T) {
	items := []string{"one", "two", "three", "four", "five"}
	boom := errors.New("boom")

	for _, poolSize := range []int{1, 4} {
		t.Run(fmt.Sprintf("pool size %d", poolSize), func(t *testing.T) {
			results, err := RunAll(context.Background(), NewPool(poolSize), items,
				func(_ context.Context, item string) (string, error) {
					if item == "three" {
						return "", boom
					}
					return item + "!", nil
				})

			require.Error(t, err)
			var pf *PartialFailure
			require.ErrorAs(t, err, &pf)
			require.Len(t, pf.Failures, 1)
			assert.Equal(t, "three", pf.Failures[0].Item)
			assert.ErrorIs(t, pf.Failures[0].Err, boom)

			require.Len(t, results, len(items))
			for i, r := range results {
				assert.Equal(t, items[i], r.Item, "results keep input order")
				if r.Item == "three" {
					assert.ErrorIs(t, r.Err, boom)
					continue
				}
				require.NoError(t, r.Err)
				assert.Equal(t, r.Item+"!", r.Value)
			}
		})
	}
}

// TestRunAllAttemptsEachItemOnce verifies exactly-once semantics per call.
func TestRunAllAttemptsEachItemOnce(t *testing.T) {
	var calls atomic.Int64
	items := make([]int, 50)
	for i := range items {
		items[i] = i
	}

	err := Run(context.Background(), NewPool(4), items, func(_ context.Context, _ int) error {
		calls.Add(1)
		return nil
	})
	require.NoError(t, err)
	assert.EqualValues(t, len(items), calls.Load())
}

// TestRunAllPoolSizeIndependence verifies pool size changes scheduling only,
// never the set of successes and failures.
func TestRunAllPoolSizeIndependence(t *testing.T) {
	items := []int{1, 2, 3, 4, 5, 6, 7, 8}
	fn := func(_ context.Context, n int) (int, error) {
		if n%3 == 0 {
			return 0, fmt.Errorf("item %d failed", n)
		}
		return n * 10, nil
	}

	outcomes := func(pool *Pool) map[int]bool {
		results, _ := RunAll(context.Background(), pool, items, fn)
		out := make(map[int]bool, len(results))
		for _, r := range results {
			out[r.Item] = r.Err == nil
		}
		return out
	}

	assert.Equal(t, outcomes(Synchronous()), outcomes(NewPool(4)))
}

// TestRunAllFatalStopsDispatch verifies a fatal failure stops new items
// while letting nothing vanish silently: undispatched items are reported as
// not attempted.
func TestRunAllFatalStopsDispatch(t *testing.T) {
	var attempts atomic.Int64
	items := make([]int, 100)
	for i := range items {
		items[i] = i
	}

	authFailed := errors.New("authentication failed")
	results, err := RunAll(context.Background(), Synchronous(), items,
		func(_ context.Context, n int) (struct{}, error) {
			attempts.Add(1)
			if n == 0 {
				return struct{}{}, Fatal(authFailed)
			}
			return struct{}{}, nil
		})

	require.Error(t, err)
	assert.EqualValues(t, 1, attempts.Load(), "synchronous pool stops after the fatal first item")

	assert.ErrorIs(t, results[0].Err, authFailed)
	for _, r := range results[1:] {
		assert.ErrorIs(t, r.Err, ErrNotAttempted)
	}

	var pf *PartialFailure
	require.ErrorAs(t, err, &pf)
	assert.Len(t, pf.Failures, len(items))
}

// TestRunAllEmptyInput verifies the degenerate case.
func TestRunAllEmptyInput(t *testing.T) {
	results, err := RunAll(context.Background(), NewPool(2), nil,
		func(_ context.Context, s string) (string, error) { return s, nil })
	require.NoError(t, err)
	assert.Empty(t, results)
}

// TestPartialFailureMessage verifies the aggregate names every casualty.
func TestPartialFailureMessage(t *testing.T) {
	pf := &PartialFailure{Failures: []Failure{
		{Item: "commons", Err: errors.New("build failed")},
		{Item: "relational", Err: errors.New("timeout")},
	}}

	msg := pf.Error()
	assert.Contains(t, msg, "2 of the items failed")
	assert.Contains(t, msg, "commons")
	assert.Contains(t, msg, "relational")
	assert.Equal(t, []string{"commons", "relational"}, pf.Items())
}
