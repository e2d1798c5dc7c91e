// internal/pkg/bootstrap/app.go
package bootstrap

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"marketplace/internal/pkg/logger"
	"marketplace/internal/tracing"
)

const shutdownTimeout = 10 * time.Second

// Worker 是随服务一起运行的后台任务，ctx 取消时应尽快返回
type Worker func(ctx context.Context) error

// AppInfo 包含了启动一个服务所需的所有特定信息。
type AppInfo struct {
	ServiceName      string
	Port             int
	JaegerEndpoint   string
	RegisterHandlers func(mux *http.ServeMux) // 允许每个服务注册自己的 HTTP 路由
	Workers          []Worker
	// Cleanups 在 HTTP 服务器和后台任务都停止后按注册的逆序执行
	Cleanups []func(ctx context.Context) error
}

// StartService 封装了服务的通用启动和优雅关停逻辑，阻塞直到收到 SIGINT/SIGTERM。
func StartService(info AppInfo) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return Run(ctx, info)
}

// Run 与 StartService 相同，但由调用方控制生命周期
func Run(ctx context.Context, info AppInfo) error {
	log := logger.Ctx(ctx)

	tp, err := tracing.InitTracerProvider(info.ServiceName, info.JaegerEndpoint)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	if info.RegisterHandlers != nil {
		info.RegisterHandlers(mux)
	}
	server := &http.Server{Addr: ":" + strconv.Itoa(info.Port), Handler: mux}
	ln, err := net.Listen("tcp", server.Addr)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", ln.Addr().String()).Msgf("%s listening", info.ServiceName)
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	for _, w := range info.Workers {
		w := w
		g.Go(func() error { return w(gctx) })
	}
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msgf("Shutting down service %s...", info.ServiceName)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Error shutting down http server")
			return err
		}
		log.Info().Msg("HTTP server shut down.")
		return nil
	})

	runErr := g.Wait()
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		log.Error().Err(runErr).Msg("Service stopped with error")
	}

	// 关停流程按顺序执行清理操作 (后进先出)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	for i := len(info.Cleanups) - 1; i >= 0; i-- {
		if err := info.Cleanups[i](shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Cleanup failed")
		}
	}

	// 关闭 Tracer Provider，确保所有缓冲的 trace 都被发送出去
	if err := tp.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error shutting down tracer provider")
	}

	log.Info().Msgf("Service %s gracefully shut down.", info.ServiceName)
	if errors.Is(runErr, context.Canceled) {
		return nil
	}
	return runErr
}
