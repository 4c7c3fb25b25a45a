package deliberation

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"

	"policy-deliberation-api/pkg/models"
)

// Job はファンアウトの1件分の処理です。emit はその件専用のバッファに書き込みます。
type Job[T any] func(ctx context.Context, index int, emit Emitter) (T, error)

// Done はインデックス順に1件ずつ呼ばれる完了処理です。呼び出し元のゴルーチンで実行されます。
type Done[T any] func(index int, value T, err error)

type fanOutResult[T any] struct {
	index  int
	value  T
	err    error
	events []models.ProgressEvent
}

// FanOut は n 件の独立した処理を最大 limit 件ずつ並行に実行します。
// 各件のイベントと結果は完了順ではなくインデックス順に emit / done へ渡します。
// 1件の失敗は他の件に影響しません。戻り値のエラーは呼び出し元のキャンセルのみです。
func FanOut[T any](ctx context.Context, n, limit int, job Job[T], emit Emitter, done Done[T]) error {
	if n <= 0 {
		return ctx.Err()
	}
	if limit < 1 {
		limit = 1
	}
	sem := semaphore.NewWeighted(int64(limit))
	results := make(chan fanOutResult[T], n)

	go func() {
		var wg sync.WaitGroup
		defer func() {
			wg.Wait()
			close(results)
		}()
		for i := range n {
			if err := sem.Acquire(ctx, 1); err != nil {
				return
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				defer sem.Release(1)
				var buf []models.ProgressEvent
				v, err := job(ctx, i, func(e models.ProgressEvent) { buf = append(buf, e) })
				results <- fanOutResult[T]{index: i, value: v, err: err, events: buf}
			}()
		}
	}()

	// 先頭から連続して揃った分だけ順に流す
	pending := make(map[int]fanOutResult[T], n)
	next := 0
	for r := range results {
		if ctx.Err() != nil {
			continue
		}
		pending[r.index] = r
		for {
			head, ok := pending[next]
			if !ok {
				break
			}
			delete(pending, next)
			for _, e := range head.events {
				emit(e)
			}
			done(next, head.value, head.err)
			next++
		}
	}
	return ctx.Err()
}
