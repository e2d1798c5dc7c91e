// Package worker 提供按固定间隔轮询执行任务的后台循环
package worker

import (
	"context"
	"time"

	"marketplace/internal/pkg/logger"
)

// Task 是一次轮询要执行的工作
type Task func(ctx context.Context) error

// Polling 返回一个可以交给 bootstrap 运行的循环。
// 单次任务失败只记录日志，不会终止循环；ctx 取消时正常返回。
func Polling(name string, interval time.Duration, runImmediately bool, task Task) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		ctx = logger.WithContext(ctx, map[string]string{"worker": name})
		logger.Ctx(ctx).Info().Dur("interval", interval).Msg("✅ Polling worker started")

		if runImmediately {
			runOnce(ctx, task)
		}

		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				runOnce(ctx, task)
			case <-ctx.Done():
				logger.Ctx(ctx).Info().Msg("🛑 Polling worker shutting down")
				return nil
			}
		}
	}
}

func runOnce(ctx context.Context, task Task) {
	if err := task(ctx); err != nil && ctx.Err() == nil {
		logger.Ctx(ctx).Error().Err(err).Msg("Polling task failed")
	}
}
