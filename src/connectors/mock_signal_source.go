package connectors

import (
	"context"
	"sync"
	"time"

	"eabridge/src/externalmodel"
	"eabridge/src/utils"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"
)

const mockScope = "mock"

// mockHistory bounds how many generated signals are kept for polling.
const mockHistory = 50

// MockSignalSource generates one signal per interval for local runs without a backend.
// Actions alternate BUY and SELL.
type MockSignalSource struct {
	asset    string
	interval time.Duration
	now      func() time.Time

	mu       sync.Mutex
	emitted  []externalmodel.Signal
	lastEmit time.Time
	next     string
}

func NewMockSignalSource(cfg Config) *MockSignalSource {
	interval := cfg.MockSignalInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	asset := cfg.MockSignalAsset
	if asset == "" {
		asset = "XAUUSD"
	}
	return &MockSignalSource{
		asset:    asset,
		interval: interval,
		now:      time.Now,
		next:     "BUY",
	}
}

func (m *MockSignalSource) ResolveExecutionScope(ctx context.Context, licenseKey string) (string, error) {
	return mockScope, nil
}

func (m *MockSignalSource) ForgetScopes() {}

// Poll emits a new signal once a full interval has passed since the previous one (the
// first poll only starts the clock) and returns everything newer than since, newest first.
func (m *MockSignalSource) Poll(ctx context.Context, scope string, since *time.Time) ([]externalmodel.Signal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := utils.ToMillis(m.now())
	switch {
	case m.lastEmit.IsZero():
		m.lastEmit = now
	case now.Sub(m.lastEmit) >= m.interval:
		m.emit(scope, now)
	}

	var out []externalmodel.Signal
	for i := len(m.emitted) - 1; i >= 0; i-- {
		out = append(out, m.emitted[i])
	}
	return AfterWatermark(out, since), nil
}

func (m *MockSignalSource) emit(scope string, at time.Time) {
	price := decimal.RequireFromString("2350.50")
	offset := decimal.RequireFromString("5")

	sig := externalmodel.Signal{
		ID:           uuid.NewString(),
		EA:           scope,
		Asset:        m.asset,
		Type:         "market",
		Action:       m.next,
		Price:        price,
		Time:         at,
		LatestUpdate: at,
		Results:      "active",
	}
	if m.next == "BUY" {
		sig.TakeProfit = price.Add(offset)
		sig.StopLoss = price.Sub(offset)
		m.next = "SELL"
	} else {
		sig.TakeProfit = price.Sub(offset)
		sig.StopLoss = price.Add(offset)
		m.next = "BUY"
	}

	m.emitted = append(m.emitted, sig)
	if len(m.emitted) > mockHistory {
		m.emitted = m.emitted[len(m.emitted)-mockHistory:]
	}
	m.lastEmit = at

	logger.WithFields(map[string]interface{}{
		"component": "mock_signal_source",
		"signal":    sig.ID,
		"asset":     sig.Asset,
		"action":    sig.Action,
	}).Debug("Mock signal emitted")
}
