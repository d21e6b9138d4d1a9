package worker

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// beforeより古い行を消して件数を返す
type SweepFunc func(ctx context.Context, before time.Time) (int64, error)

// 保持期間を過ぎたデータを定期的に消す（放置された匿名カート、期限切れrefresh tokenなど）
type Sweeper struct {
	name      string
	sweep     SweepFunc
	retention time.Duration
	interval  time.Duration
	log       *zap.Logger
	now       func() time.Time
}

// DI
func NewSweeper(name string, sweep SweepFunc, retention, interval time.Duration, log *zap.Logger) *Sweeper {
	return &Sweeper{
		name:      name,
		sweep:     sweep,
		retention: retention,
		interval:  interval,
		log:       log.With(zap.String("sweeper", name)),
		now:       time.Now,
	}
}

func (s *Sweeper) RunOnce(ctx context.Context) (int64, error) {
	before := s.now().Add(-s.retention)
	n, err := s.sweep(ctx, before)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.log.Info("swept", zap.Int64("count", n), zap.Time("before", before))
	}
	return n, nil
}

func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			// 失敗しても次の周期でやり直す
			if _, err := s.RunOnce(ctx); err != nil && ctx.Err() == nil {
				s.log.Error("sweep failed", zap.Error(err))
			}
		}
	}
}
