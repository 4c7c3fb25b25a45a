package deliberation

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"policy-deliberation-api/pkg/models"
)

func TestFanOutPreservesIndexOrder(t *testing.T) {
	const n = 8
	rec := &recorder{}
	var order []int

	// 後ろのジョブほど早く終わる
	err := FanOut(context.Background(), n, n,
		func(ctx context.Context, i int, emit Emitter) (int, error) {
			time.Sleep(time.Duration(n-i) * 5 * time.Millisecond)
			emit(models.Status("test", fmt.Sprintf("job-%d", i)))
			return i * 10, nil
		}, rec.emit,
		func(i int, v int, err error) {
			require.NoError(t, err)
			assert.Equal(t, i*10, v)
			order = append(order, i)
		})
	require.NoError(t, err)

	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7}, order)
	require.Len(t, rec.events, n)
	for i, e := range rec.events {
		assert.Equal(t, fmt.Sprintf("job-%d", i), e.Data.(models.StatusPayload).Message)
	}
}

func TestFanOutIsolatesFailures(t *testing.T) {
	errBoom := errors.New("boom")
	var failed, succeeded []int

	err := FanOut(context.Background(), 5, 2,
		func(ctx context.Context, i int, emit Emitter) (string, error) {
			if i == 2 {
				return "", errBoom
			}
			return "ok", nil
		}, func(models.ProgressEvent) {},
		func(i int, v string, err error) {
			if err != nil {
				assert.ErrorIs(t, err, errBoom)
				failed = append(failed, i)
				return
			}
			succeeded = append(succeeded, i)
		})
	require.NoError(t, err)

	assert.Equal(t, []int{2}, failed)
	assert.Equal(t, []int{0, 1, 3, 4}, succeeded)
}

func TestFanOutRespectsConcurrencyLimit(t *testing.T) {
	var running, peak atomic.Int32

	err := FanOut(context.Background(), 10, 3,
		func(ctx context.Context, i int, emit Emitter) (struct{}, error) {
			cur := running.Add(1)
			for {
				p := peak.Load()
				if cur <= p || peak.CompareAndSwap(p, cur) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			running.Add(-1)
			return struct{}{}, nil
		}, func(models.ProgressEvent) {},
		func(int, struct{}, error) {})
	require.NoError(t, err)

	assert.LessOrEqual(t, peak.Load(), int32(3))
	assert.GreaterOrEqual(t, peak.Load(), int32(1))
}

func TestFanOutCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls atomic.Int32

	err := FanOut(ctx, 6, 1,
		func(ctx context.Context, i int, emit Emitter) (int, error) {
			calls.Add(1)
			if i == 0 {
				cancel()
			}
			<-ctx.Done()
			return 0, ctx.Err()
		}, func(models.ProgressEvent) {},
		func(int, int, error) {})

	require.ErrorIs(t, err, context.Canceled)
	assert.Less(t, calls.Load(), int32(6))
}

func TestFanOutEmpty(t *testing.T) {
	called := false
	err := FanOut(context.Background(), 0, 4,
		func(context.Context, int, Emitter) (int, error) { called = true; return 0, nil },
		func(models.ProgressEvent) {}, func(int, int, error) {})
	require.NoError(t, err)
	assert.False(t, called)
}
