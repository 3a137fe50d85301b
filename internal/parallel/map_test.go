package parallel_test

import (
	"context"
	"errors"
	"iter"
	"strconv"
	"testing"
	"testing/synctest"
	"time"

	"github.com/CZERTAINLY/Paperwork/internal/parallel"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestMap(t *testing.T) {
	t.Parallel()

	f := func(ctx context.Context, d time.Duration) (int, error) {
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-time.After(d):
		}
		return int(d), nil
	}

	input := []time.Duration{1 * time.Second, 2 * time.Second, 5 * time.Second, 10 * time.Second}
	all4 := []int{
		int(1 * time.Second),
		int(2 * time.Second),
		int(5 * time.Second),
		int(10 * time.Second),
	}

	var testCases = []struct {
		scenario string
		limit    int
		timeout  time.Duration
		then     []int
		took     time.Duration
	}{
		{"limit 1", 1, 0, all4, 18 * time.Second},
		{"limit 10", 10, 0, all4, 10 * time.Second},
		{"limit 10, cancel 3s", 10, 3 * time.Second, all4[:2], 3 * time.Second},
		{"limit 1, cancel 4s", 1, 4 * time.Second, all4[:2], 4 * time.Second},
	}

	for _, tt := range testCases {
		t.Run(tt.scenario, func(t *testing.T) {
			t.Parallel()
			synctest.Test(t, func(t *testing.T) {
				ctx := t.Context()
				if tt.timeout > 0 {
					var cancel context.CancelFunc
					ctx, cancel = context.WithTimeout(ctx, tt.timeout)
					defer cancel()
				}
				start := time.Now()
				var got []int
				for v, err := range parallel.NewMap(ctx, tt.limit, f).Iter(all(input)) {
					if err != nil {
						require.ErrorIs(t, err, context.DeadlineExceeded)
						continue
					}
					got = append(got, v)
				}
				require.ElementsMatch(t, tt.then, got)
				synctest.Wait()
				require.Equal(t, tt.took, time.Since(start))
			})
		})
	}
}

func TestMap_InputError(t *testing.T) {
	t.Parallel()
	errBroken := errors.New("broken")
	in := func(yield func(string, error) bool) {
		_ = yield("1", nil) && yield("", errBroken) && yield("3", nil)
	}

	var got []int
	var errs []error
	for v, err := range parallel.NewMap(t.Context(), 2, atoi).Iter(in) {
		if err != nil {
			errs = append(errs, err)
			continue
		}
		got = append(got, v)
	}
	require.ElementsMatch(t, []int{1, 3}, got)
	require.Len(t, errs, 1)
	require.ErrorIs(t, errs[0], errBroken)
}

func TestMap_Break(t *testing.T) {
	t.Parallel()
	ids := make([]string, 100)
	for i := range ids {
		ids[i] = strconv.Itoa(i)
	}

	var n int
	for range parallel.NewMap(t.Context(), 4, atoi).Iter(all(ids)) {
		n++
		if n == 3 {
			break
		}
	}
	require.Equal(t, 3, n)
}

func atoi(_ context.Context, s string) (int, error) {
	return strconv.Atoi(s)
}

func all[T any](s []T) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for _, x := range s {
			if !yield(x, nil) {
				return
			}
		}
	}
}
