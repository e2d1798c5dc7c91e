package port

import (
	"context"
	"time"
)

// ExpiryPolicy 决定结账预留窗口
type ExpiryPolicy interface {
	ReservationWindow(ctx context.Context, sellerID string, itemCount int, total int64) time.Duration
}
