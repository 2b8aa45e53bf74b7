package payment

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// MockAdapter simulates a payment gateway: configurable latency plus a small
// random decline rate. It must be gated by configuration and never stand in
// for a real gateway in production.
type MockAdapter struct {
	latency     time.Duration
	declineRate float64
	logger      *zap.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

func NewMockAdapter(latency time.Duration, declineRate float64, seed int64, logger *zap.Logger) *MockAdapter {
	return &MockAdapter{
		latency:     latency,
		declineRate: declineRate,
		logger:      logger,
		rng:         rand.New(rand.NewSource(seed)),
	}
}

func (m *MockAdapter) Authorize(ctx context.Context, amountCents int64, orderID string) (Result, error) {
	if strings.TrimSpace(orderID) == "" {
		return Result{}, fmt.Errorf("%w: order id required", ErrDeclined)
	}
	if amountCents <= 0 {
		return Result{}, fmt.Errorf("%w: non-positive amount", ErrDeclined)
	}

	select {
	case <-ctx.Done():
		return Result{}, fmt.Errorf("%w: %v", ErrTimeout, ctx.Err())
	case <-time.After(m.latency):
	}

	m.mu.Lock()
	declined := m.rng.Float64() < m.declineRate
	n := m.rng.Int63()
	m.mu.Unlock()

	if declined {
		m.logger.Debug("mock gateway declined",
			zap.String("order_id", orderID),
			zap.Int64("amount_cents", amountCents),
		)
		return Result{}, ErrDeclined
	}

	return Result{TransactionID: fmt.Sprintf("mock-%s-%d", orderID, n)}, nil
}
