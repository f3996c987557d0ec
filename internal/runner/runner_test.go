package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type customError struct {
	code int
}

func (e *customError) Error() string { return fmt.Sprintf("custom error %d", e.code) }

func TestRunReturnsResult(t *testing.T) {
	got, err := Run(context.Background(), 0, func(context.Context) (string, error) {
		return "Done.", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "Done.", got)
}

func TestRunPropagatesSameError(t *testing.T) {
	want := &customError{code: 42}

	_, err := Run(context.Background(), time.Second, func(context.Context) (int, error) {
		return 0, want
	})

	require.Error(t, err)
	assert.True(t, err == error(want), "Run must return the work's error value, got %v", err)

	var ce *customError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, 42, ce.code)
}

func TestRunPropagatesSentinelError(t *testing.T) {
	sentinel := errors.New("value error")

	_, err := Run(context.Background(), 0, func(context.Context) (struct{}, error) {
		return struct{}{}, sentinel
	})

	assert.Same(t, sentinel, err)
}

func TestRunCapturesPanic(t *testing.T) {
	before := testutil.ToFloat64(panicsTotal)

	_, err := Run(context.Background(), time.Second, func(context.Context) (int, error) {
		panic("boom")
	})

	var pe *PanicError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "boom", pe.Value)
	assert.NotEmpty(t, pe.Stack)
	assert.Nil(t, pe.Unwrap())
	assert.Equal(t, before+1, testutil.ToFloat64(panicsTotal))
}

func TestPanicErrorUnwrapsErrorValue(t *testing.T) {
	cause := errors.New("db gone")

	_, err := Run(context.Background(), 0, func(context.Context) (int, error) {
		panic(cause)
	})

	assert.ErrorIs(t, err, cause)
}

func TestRunTimeout(t *testing.T) {
	before := testutil.ToFloat64(timeoutsTotal)

	start := time.Now()
	_, err := Run(context.Background(), 100*time.Millisecond, func(context.Context) (string, error) {
		time.Sleep(200 * time.Millisecond)
		return "example.com", nil
	})
	elapsed := time.Since(start)

	assert.ErrorIs(t, err, ErrTimeout)
	assert.Less(t, elapsed, 190*time.Millisecond, "Run must not block past the deadline")
	assert.Equal(t, before+1, testutil.ToFloat64(timeoutsTotal))
}

func TestRunFinishesBeforeTimeout(t *testing.T) {
	got, err := Run(context.Background(), time.Second, func(context.Context) (string, error) {
		time.Sleep(10 * time.Millisecond)
		return "example.com", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "example.com", got)
}

func TestRunTimeoutAbandonsWithoutCancelling(t *testing.T) {
	finished := make(chan error, 1)

	_, err := Run(context.Background(), 20*time.Millisecond, func(ctx context.Context) (int, error) {
		time.Sleep(80 * time.Millisecond)
		finished <- ctx.Err()
		return 1, nil
	})
	require.ErrorIs(t, err, ErrTimeout)

	select {
	case ctxErr := <-finished:
		assert.NoError(t, ctxErr, "abandoned work must not see a cancelled context")
	case <-time.After(time.Second):
		t.Fatal("abandoned work never ran to completion")
	}
}

func TestRunCallerCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	workCtxErr := make(chan error, 1)

	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := Run(ctx, 0, func(ctx context.Context) (int, error) {
		time.Sleep(80 * time.Millisecond)
		workCtxErr <- ctx.Err()
		return 0, nil
	})

	assert.ErrorIs(t, err, context.Canceled)
	select {
	case e := <-workCtxErr:
		assert.NoError(t, e)
	case <-time.After(time.Second):
		t.Fatal("work never completed")
	}
}

func TestRunPassesContextValues(t *testing.T) {
	type key struct{}
	ctx := context.WithValue(context.Background(), key{}, "v")

	got, err := Run(ctx, 0, func(ctx context.Context) (any, error) {
		return ctx.Value(key{}), nil
	})

	require.NoError(t, err)
	assert.Equal(t, "v", got)
}

func TestGoReturnsImmediately(t *testing.T) {
	release := make(chan struct{})

	task := Go(context.Background(), func(context.Context) (string, error) {
		<-release
		return "example.com", nil
	})

	assert.False(t, task.Completed())
	assert.Empty(t, task.Result())
	assert.NoError(t, task.Err())

	close(release)
	assert.True(t, task.Join(0))
	assert.True(t, task.Completed())
	assert.Equal(t, "example.com", task.Result())
	assert.NoError(t, task.Err())
}

func TestTaskJoinTimeout(t *testing.T) {
	task := Go(context.Background(), func(context.Context) (int, error) {
		time.Sleep(100 * time.Millisecond)
		return 7, nil
	})

	assert.False(t, task.Join(10*time.Millisecond))
	assert.True(t, task.Join(time.Second))
	assert.Equal(t, 7, task.Result())
}

func TestTaskJoinDoesNotRaise(t *testing.T) {
	want := errors.New("failed")
	task := Go(context.Background(), func(context.Context) (int, error) {
		return 0, want
	})

	require.True(t, task.Join(time.Second))
	assert.Same(t, want, task.Err())
}

func TestTaskWait(t *testing.T) {
	task := Go(context.Background(), func(context.Context) (int, error) {
		return 3, nil
	})

	got, err := task.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, got)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	slow := Go(context.Background(), func(context.Context) (int, error) {
		time.Sleep(50 * time.Millisecond)
		return 1, nil
	})
	_, err = slow.Wait(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWrap(t *testing.T) {
	connect := Wrap(50*time.Millisecond, func(_ context.Context, host string) (string, error) {
		if host == "slow.example.com" {
			time.Sleep(200 * time.Millisecond)
		}
		return host, nil
	})

	got, err := connect(context.Background(), "example.com")
	require.NoError(t, err)
	assert.Equal(t, "example.com", got)

	_, err = connect(context.Background(), "slow.example.com")
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestWrapGo(t *testing.T) {
	immediately := WrapGo(func(_ context.Context, host string) (string, error) {
		time.Sleep(20 * time.Millisecond)
		return host, nil
	})

	task := immediately(context.Background(), "example.com")
	task.Join(0)
	assert.Equal(t, "example.com", task.Result())
}

func TestNestedTasksRunIndependently(t *testing.T) {
	var mu sync.Mutex
	var order []string
	record := func(s string) {
		mu.Lock()
		defer mu.Unlock()
		order = append(order, s)
	}

	var subquery *Task[struct{}]
	var subqueryStarted atomic.Bool

	query2 := Go(context.Background(), func(context.Context) (struct{}, error) {
		time.Sleep(200 * time.Millisecond)
		record("query2")
		return struct{}{}, nil
	})
	query1 := Go(context.Background(), func(ctx context.Context) (struct{}, error) {
		time.Sleep(100 * time.Millisecond)
		record("query1")
		subquery = Go(ctx, func(context.Context) (struct{}, error) {
			time.Sleep(50 * time.Millisecond)
			record("subquery")
			return struct{}{}, nil
		})
		subqueryStarted.Store(true)
		return struct{}{}, nil
	})

	query2.Join(0)
	query1.Join(0)
	require.True(t, subqueryStarted.Load())
	subquery.Join(0)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"query1", "subquery", "query2"}, order)
}

func TestConcurrentRunsAreIndependent(t *testing.T) {
	var wg sync.WaitGroup
	results := make([]int, 20)
	for i := range results {
		wg.Go(func() {
			got, err := Run(context.Background(), time.Second, func(context.Context) (int, error) {
				time.Sleep(5 * time.Millisecond)
				return i * i, nil
			})
			if err == nil {
				results[i] = got
			}
		})
	}
	wg.Wait()

	for i, got := range results {
		assert.Equal(t, i*i, got)
	}
}
