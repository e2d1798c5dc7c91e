package interfaces

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"marketplace/internal/pkg/logger"
)

// OpsHandler 只提供运维端点：健康检查与指标。业务接口由上层网关负责。
type OpsHandler struct {
	db       *gorm.DB
	gatherer prometheus.Gatherer
}

func NewOpsHandler(db *gorm.DB, gatherer prometheus.Gatherer) *OpsHandler {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return &OpsHandler{db: db, gatherer: gatherer}
}

// RegisterRoutes 在 ServeMux 上注册所有路由
func (h *OpsHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	mux.HandleFunc("/readyz", h.ready)
	mux.Handle("/metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))
}

// ready 数据库可达时才接收流量
func (h *OpsHandler) ready(w http.ResponseWriter, r *http.Request) {
	if h.db == nil {
		w.WriteHeader(http.StatusOK)
		return
	}
	sqlDB, err := h.db.DB()
	if err == nil {
		err = sqlDB.PingContext(r.Context())
	}
	if err != nil {
		logger.Ctx(r.Context()).Warn().Err(err).Msg("Readiness check failed")
		http.Error(w, "database unavailable", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
}
