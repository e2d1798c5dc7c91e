package interfaces

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketplace/internal/pkg/errs"
	"marketplace/internal/pkg/metrics"
	"marketplace/internal/pkg/mq"
	"marketplace/internal/service/order/domain"
	"marketplace/internal/testutil"
)

type call struct {
	op, code, reason string
}

type fakeOrders struct {
	mu    sync.Mutex
	calls []call
	err   error
}

func (f *fakeOrders) record(op, code, reason string) (*domain.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{op, code, reason})
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Order{Code: code}, nil
}

func (f *fakeOrders) ReservePayment(_ context.Context, code string) (*domain.Order, error) {
	return f.record("reserve", code, "")
}

func (f *fakeOrders) ConfirmOrder(_ context.Context, code string) (*domain.Order, error) {
	return f.record("confirm", code, "")
}

func (f *fakeOrders) CancelOrder(_ context.Context, code, reason string) (*domain.Order, error) {
	return f.record("cancel", code, reason)
}

func (f *fakeOrders) RefundOrder(_ context.Context, code string) (*domain.Order, error) {
	return f.record("refund", code, "")
}

type dltWriter struct {
	mu       sync.Mutex
	msgs     []kafka.Message
	err      error
	attempts int
}

func (w *dltWriter) setErr(err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.err = err
}

func (w *dltWriter) attempted() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.attempts
}

func (w *dltWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.attempts++
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

// queueReader 依次返回预置消息，耗尽后阻塞直到 ctx 取消
type queueReader struct {
	mu        sync.Mutex
	queue     []kafka.Message
	committed []int64
	drained   chan struct{}
}

func newQueueReader(msgs ...kafka.Message) *queueReader {
	return &queueReader{queue: msgs, drained: make(chan struct{})}
}

func (r *queueReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.queue) > 0 {
		msg := r.queue[0]
		r.queue = r.queue[1:]
		r.mu.Unlock()
		return msg, nil
	}
	r.mu.Unlock()
	select {
	case <-r.drained:
	default:
		close(r.drained)
	}
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *queueReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func settlementMsg(t *testing.T, offset int64, code string, outcome domain.SettlementOutcome) kafka.Message {
	t.Helper()
	body, err := json.Marshal(domain.SettlementResult{OrderCode: code, Outcome: outcome, OccurredAt: time.Now().UTC()})
	require.NoError(t, err)
	return kafka.Message{Topic: "settlement", Offset: offset, Key: []byte(code), Value: body}
}

func TestSettlementOutcomesDriveOrders(t *testing.T) {
	orders := &fakeOrders{}
	m := metrics.New(prometheus.NewRegistry())
	c := NewSettlementConsumer(nil, orders, mq.NewFailureHandler(&dltWriter{}), m)
	ctx := context.Background()

	for i, outcome := range []domain.SettlementOutcome{
		domain.SettlementReserved, domain.SettlementPaid, domain.SettlementFailed, domain.SettlementRefunded,
	} {
		require.NoError(t, c.Handle(ctx, settlementMsg(t, int64(i), "ORD-1", outcome)))
	}

	assert.Equal(t, []call{
		{"reserve", "ORD-1", ""},
		{"confirm", "ORD-1", ""},
		{"cancel", "ORD-1", "payment failed"},
		{"refund", "ORD-1", ""},
	}, orders.calls)
	assert.Equal(t, 1.0, promtest.ToFloat64(m.SettlementMessages.WithLabelValues("paid")))
}

func TestSettlementErrorClassification(t *testing.T) {
	tests := []struct {
		name    string
		msg     func(t *testing.T) kafka.Message
		err     error
		dead    int
		outcome string
	}{
		{
			name:    "domain conflict is acked",
			msg:     func(t *testing.T) kafka.Message { return settlementMsg(t, 1, "ORD-1", domain.SettlementPaid) },
			err:     errs.Conflict("order ORD-1 reservation expired"),
			outcome: "rejected",
		},
		{
			name:    "unknown outcome is acked",
			msg:     func(t *testing.T) kafka.Message { return settlementMsg(t, 2, "ORD-1", "chargeback") },
			outcome: "rejected",
		},
		{
			name:    "transient error goes to dead letter",
			msg:     func(t *testing.T) kafka.Message { return settlementMsg(t, 3, "ORD-1", domain.SettlementPaid) },
			err:     errors.New("connection reset"),
			dead:    1,
			outcome: "failed",
		},
		{
			name:    "malformed body goes to dead letter",
			msg:     func(t *testing.T) kafka.Message { return kafka.Message{Topic: "settlement", Offset: 4, Value: []byte("{")} },
			dead:    1,
			outcome: "malformed",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dlt := &dltWriter{}
			m := metrics.New(prometheus.NewRegistry())
			c := NewSettlementConsumer(nil, &fakeOrders{err: tt.err}, mq.NewFailureHandler(dlt), m)

			require.NoError(t, c.Handle(context.Background(), tt.msg(t)))
			require.Len(t, dlt.msgs, tt.dead)
			if tt.dead > 0 {
				assert.Equal(t, "settlement", mq.HeaderValue(dlt.msgs[0].Headers, mq.HeaderOriginalTopic))
			}
			assert.Equal(t, 1.0, promtest.ToFloat64(m.SettlementMessages.WithLabelValues(tt.outcome)))
		})
	}
}

func (r *queueReader) committedOffsets() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.committed...)
}

func TestSettlementConsumerRunCommits(t *testing.T) {
	orders := &fakeOrders{}
	reader := newQueueReader(
		settlementMsg(t, 10, "ORD-1", domain.SettlementPaid),
		kafka.Message{Topic: "settlement", Offset: 11, Value: []byte("not json")},
		settlementMsg(t, 12, "ORD-2", domain.SettlementFailed),
	)
	c := NewSettlementConsumer(reader, orders, mq.NewFailureHandler(&dltWriter{}), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	select {
	case <-reader.drained:
	case <-time.After(5 * time.Second):
		t.Fatal("consumer did not drain the queue")
	}
	cancel()
	require.NoError(t, <-done)

	assert.Equal(t, []int64{10, 11, 12}, reader.committedOffsets())
	assert.Len(t, orders.calls, 2)
}

func TestSettlementConsumerHoldsPartitionWhileDeadLetterFails(t *testing.T) {
	orders := &fakeOrders{}
	dlt := &dltWriter{err: errors.New("broker down")}
	reader := newQueueReader(
		kafka.Message{Topic: "settlement", Offset: 1, Value: []byte("{")},
		settlementMsg(t, 2, "ORD-2", domain.SettlementPaid),
	)
	c := NewSettlementConsumer(reader, orders, mq.NewFailureHandler(dlt), nil)
	c.retryBackoff = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	require.Eventually(t, func() bool { return dlt.attempted() >= 3 }, 5*time.Second, time.Millisecond)

	// 死信写不进去时，后面的消息既不处理也不提交
	assert.Empty(t, reader.committedOffsets())
	orders.mu.Lock()
	assert.Empty(t, orders.calls)
	orders.mu.Unlock()

	dlt.setErr(nil)
	select {
	case <-reader.drained:
	case <-time.After(5 * time.Second):
		t.Fatal("consumer did not resume after dead letter recovered")
	}
	cancel()
	require.NoError(t, <-done)

	assert.Equal(t, []int64{1, 2}, reader.committedOffsets())
	assert.Equal(t, []call{{"confirm", "ORD-2", ""}}, orders.calls)
	dlt.mu.Lock()
	assert.Len(t, dlt.msgs, 1)
	dlt.mu.Unlock()
}

func TestDltConsumerCommitsEverything(t *testing.T) {
	reader := newQueueReader(kafka.Message{Offset: 1, Value: []byte("x")}, kafka.Message{Offset: 2})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- NewDltConsumer(reader, "settlement-dlt").Run(ctx) }()

	<-reader.drained
	cancel()
	require.NoError(t, <-done)
	assert.Equal(t, []int64{1, 2}, reader.committedOffsets())
}

func TestOpsHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	m.OrdersCreated.Inc()

	mux := http.NewServeMux()
	NewOpsHandler(testutil.NewDB(t), reg).RegisterRoutes(mux)

	for _, path := range []string{"/healthz", "/readyz"} {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "marketplace_order_created_total")
}
