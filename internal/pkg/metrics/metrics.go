// Package metrics 定义订单与评价子系统的 Prometheus 指标
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "marketplace"

type Metrics struct {
	OrdersCreated      prometheus.Counter
	OrderTransitions   *prometheus.CounterVec
	OrdersExpired      prometheus.Counter
	SweepDuration      prometheus.Histogram
	PendingMaterialize prometheus.Counter
	PendingExpired     prometheus.Counter
	ReviewsSubmitted   *prometheus.CounterVec
	ReviewsDuplicate   *prometheus.CounterVec
	CreditsSubmitted   *prometheus.CounterVec
	RecalcFailures     *prometheus.CounterVec
	SettlementMessages *prometheus.CounterVec
}

// New 创建并注册全部指标。reg 为 nil 时不注册（测试中常用）。
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		OrdersCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "order", Name: "created_total",
			Help: "Orders created from a cart snapshot.",
		}),
		OrderTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "order", Name: "transitions_total",
			Help: "Successful order status transitions by target status.",
		}, []string{"status"}),
		OrdersExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "order", Name: "expired_total",
			Help: "Pending orders cancelled by the expiry sweep.",
		}),
		SweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "order", Name: "sweep_duration_seconds",
			Help:    "Duration of one expiry sweep pass.",
			Buckets: prometheus.DefBuckets,
		}),
		PendingMaterialize: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "review", Name: "pending_created_total",
			Help: "Pending reviews inserted on order completion.",
		}),
		PendingExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "review", Name: "pending_expired_total",
			Help: "Pending reviews deleted after their window elapsed.",
		}),
		ReviewsSubmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "review", Name: "submitted_total",
			Help: "Reviews persisted by type.",
		}, []string{"type"}),
		ReviewsDuplicate: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "review", Name: "duplicate_total",
			Help: "Review submissions rejected as duplicates by type.",
		}, []string{"type"}),
		CreditsSubmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "credit", Name: "submitted_total",
			Help: "Store credit upserts by credit type.",
		}, []string{"credit_type"}),
		RecalcFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "aggregate", Name: "recalc_failures_total",
			Help: "Best-effort aggregate recalculations that failed.",
		}, []string{"target"}),
		SettlementMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "settlement", Name: "messages_total",
			Help: "Ledger settlement messages by outcome.",
		}, []string{"outcome"}),
	}

	if reg != nil {
		reg.MustRegister(
			m.OrdersCreated, m.OrderTransitions, m.OrdersExpired, m.SweepDuration,
			m.PendingMaterialize, m.PendingExpired, m.ReviewsSubmitted, m.ReviewsDuplicate,
			m.CreditsSubmitted, m.RecalcFailures, m.SettlementMessages,
		)
	}
	return m
}

// ObserveSweep 记录一次过期扫描的耗时与结果
func (m *Metrics) ObserveSweep(start time.Time, cancelled int) {
	m.SweepDuration.Observe(time.Since(start).Seconds())
	m.OrdersExpired.Add(float64(cancelled))
}
