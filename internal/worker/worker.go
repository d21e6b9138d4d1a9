package worker

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// バックグラウンドで動く処理。ctxが終わったらnilで戻る
type Worker interface {
	Run(ctx context.Context) error
}

// 全workerを起動し、どれかがエラーで落ちたら残りも止める
func RunAll(ctx context.Context, workers ...Worker) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, w := range workers {
		w := w
		g.Go(func() error {
			return w.Run(gctx)
		})
	}
	return g.Wait()
}
