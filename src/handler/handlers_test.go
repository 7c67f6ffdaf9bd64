package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"eabridge/src/app"
	"eabridge/src/dispatch"
	"eabridge/src/model"
	"eabridge/src/risk"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockBridge struct {
	err error

	botActive  *bool
	bucket     model.Bucket
	symbolCfg  model.SymbolConfig
	removedSym string
	platform   model.Platform
	login      string
	password   string
	license    string
	eaID       string
	limit      int
}

func (m *mockBridge) Status(ctx context.Context) (app.Status, error) {
	return app.Status{BotActive: true, Scope: "ea-7", Dispatch: dispatch.Status{State: dispatch.StateExecuting}}, m.err
}

func (m *mockBridge) SetBotActive(ctx context.Context, active bool) error {
	m.botActive = &active
	return m.err
}

func (m *mockBridge) Symbols() []model.SymbolConfig {
	return []model.SymbolConfig{{Symbol: "EURUSD", Bucket: model.BucketMT4, LotSize: "0.1"}}
}

func (m *mockBridge) SetSymbol(ctx context.Context, bucket model.Bucket, cfg model.SymbolConfig) (model.SymbolConfig, error) {
	m.bucket = bucket
	m.symbolCfg = cfg
	cfg.Bucket = bucket
	return cfg, m.err
}

func (m *mockBridge) RemoveSymbol(ctx context.Context, bucket model.Bucket, symbol string) (bool, error) {
	m.bucket = bucket
	m.removedSym = symbol
	return true, m.err
}

func (m *mockBridge) Accounts(ctx context.Context) ([]model.Account, error) {
	return []model.Account{{Key: "mt5", Platform: model.PlatformMT5, Login: "5001", PasswordSealed: "sealed-value", Server: "Demo"}}, m.err
}

func (m *mockBridge) SetAccount(ctx context.Context, platform model.Platform, login, password, server string) error {
	m.platform = platform
	m.login = login
	m.password = password
	return m.err
}

func (m *mockBridge) ExpertAdvisors(ctx context.Context) ([]model.ExpertAdvisor, error) {
	return []model.ExpertAdvisor{{ID: "ea-1", Name: "AutoTrader", PhoneSecretSealed: "sealed-secret"}}, m.err
}

func (m *mockBridge) AddLicense(ctx context.Context, licenseKey string) (*model.ExpertAdvisor, error) {
	m.license = licenseKey
	if m.err != nil {
		return nil, m.err
	}
	return &model.ExpertAdvisor{ID: "ea-2", LicenseKey: licenseKey, Name: "AutoTrader"}, nil
}

func (m *mockBridge) RefreshLicense(ctx context.Context, id string) (*model.ExpertAdvisor, error) {
	m.eaID = id
	return &model.ExpertAdvisor{ID: id}, m.err
}

func (m *mockBridge) RemoveEA(ctx context.Context, id string) error {
	m.eaID = id
	return m.err
}

func (m *mockBridge) SetActiveEA(ctx context.Context, id string) error {
	m.eaID = id
	return m.err
}

func (m *mockBridge) CancelDispatch(ctx context.Context) (bool, error) {
	return true, m.err
}

func (m *mockBridge) SignalLog(ctx context.Context) ([]model.SignalLog, error) {
	return []model.SignalLog{{SignalID: "s1"}}, m.err
}

func (m *mockBridge) Executions(ctx context.Context, limit int) ([]model.ExecutionLog, error) {
	m.limit = limit
	return nil, m.err
}

// serve runs h behind a chi route so URL params resolve.
func serve(method, pattern, target, body string, h http.HandlerFunc) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	r.MethodFunc(method, pattern, h)

	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func TestStatusHandler(t *testing.T) {
	rr := serve(http.MethodGet, "/status", "/status", "", StatusHandler(&mockBridge{}))

	require.Equal(t, http.StatusOK, rr.Code)
	var st app.Status
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &st))
	assert.True(t, st.BotActive)
	assert.Equal(t, dispatch.StateExecuting, st.Dispatch.State)
}

func TestSetBotHandler(t *testing.T) {
	t.Run("missing flag", func(t *testing.T) {
		rr := serve(http.MethodPost, "/bot", "/bot", `{}`, SetBotHandler(&mockBridge{}))
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("on", func(t *testing.T) {
		m := &mockBridge{}
		rr := serve(http.MethodPost, "/bot", "/bot", `{"active":true}`, SetBotHandler(m))
		assert.Equal(t, http.StatusOK, rr.Code)
		require.NotNil(t, m.botActive)
		assert.True(t, *m.botActive)
	})

	t.Run("no EA", func(t *testing.T) {
		rr := serve(http.MethodPost, "/bot", "/bot", `{"active":true}`, SetBotHandler(&mockBridge{err: app.ErrNoExpertAdvisor}))
		assert.Equal(t, http.StatusConflict, rr.Code)
	})
}

func TestSymbolHandlers(t *testing.T) {
	t.Run("set", func(t *testing.T) {
		m := &mockBridge{}
		rr := serve(http.MethodPut, "/symbols/{bucket}", "/symbols/MT5",
			`{"symbol":"xauusd","lotSize":"0.05","direction":"SELL","numberOfTrades":3}`, SetSymbolHandler(m))

		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, model.BucketMT5, m.bucket)
		assert.Equal(t, "xauusd", m.symbolCfg.Symbol)
		assert.Equal(t, 3, m.symbolCfg.NumberOfTrades)
	})

	t.Run("unknown bucket", func(t *testing.T) {
		rr := serve(http.MethodPut, "/symbols/{bucket}", "/symbols/mt6", `{"symbol":"EURUSD"}`, SetSymbolHandler(&mockBridge{}))
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("unknown field", func(t *testing.T) {
		rr := serve(http.MethodPut, "/symbols/{bucket}", "/symbols/mt4", `{"symbol":"EURUSD","leverage":5}`, SetSymbolHandler(&mockBridge{}))
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("invalid config", func(t *testing.T) {
		m := &mockBridge{err: fmt.Errorf("%w: lot size 0 below minimum", risk.ErrInvalidSymbolConfig)}
		rr := serve(http.MethodPut, "/symbols/{bucket}", "/symbols/mt4", `{"symbol":"EURUSD","lotSize":"0"}`, SetSymbolHandler(m))
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Contains(t, rr.Body.String(), "below minimum")
	})

	t.Run("remove", func(t *testing.T) {
		m := &mockBridge{}
		rr := serve(http.MethodDelete, "/symbols/{bucket}/{symbol}", "/symbols/legacy/GBPUSD", "", RemoveSymbolHandler(m))
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, model.BucketLegacy, m.bucket)
		assert.Equal(t, "GBPUSD", m.removedSym)
		assert.JSONEq(t, `{"removed":true}`, rr.Body.String())
	})

	t.Run("list", func(t *testing.T) {
		rr := serve(http.MethodGet, "/symbols", "/symbols", "", ListSymbolsHandler(&mockBridge{}))
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), `"symbol":"EURUSD"`)
	})
}

func TestAccountHandlers(t *testing.T) {
	t.Run("list hides the sealed password", func(t *testing.T) {
		rr := serve(http.MethodGet, "/accounts", "/accounts", "", ListAccountsHandler(&mockBridge{}))
		require.Equal(t, http.StatusOK, rr.Code)
		assert.NotContains(t, rr.Body.String(), "sealed-value")
		assert.Contains(t, rr.Body.String(), `"login":"5001"`)
	})

	t.Run("set", func(t *testing.T) {
		m := &mockBridge{}
		rr := serve(http.MethodPut, "/accounts/{platform}", "/accounts/mt4",
			`{"login":"4001","password":"pw","server":"Demo"}`, SetAccountHandler(m))
		assert.Equal(t, http.StatusNoContent, rr.Code)
		assert.Equal(t, model.PlatformMT4, m.platform)
		assert.Equal(t, "pw", m.password)
	})

	t.Run("invalid platform", func(t *testing.T) {
		rr := serve(http.MethodPut, "/accounts/{platform}", "/accounts/mt3", `{}`, SetAccountHandler(&mockBridge{}))
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("incomplete credentials", func(t *testing.T) {
		rr := serve(http.MethodPut, "/accounts/{platform}", "/accounts/mt5", `{"login":"5001"}`,
			SetAccountHandler(&mockBridge{err: app.ErrInvalidAccount}))
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestEAHandlers(t *testing.T) {
	t.Run("list hides the phone secret", func(t *testing.T) {
		rr := serve(http.MethodGet, "/eas", "/eas", "", ListEAsHandler(&mockBridge{}))
		require.Equal(t, http.StatusOK, rr.Code)
		assert.NotContains(t, rr.Body.String(), "sealed-secret")
	})

	t.Run("add", func(t *testing.T) {
		m := &mockBridge{}
		rr := serve(http.MethodPost, "/eas", "/eas", `{"licenseKey":"LIC-9"}`, AddEAHandler(m))
		assert.Equal(t, http.StatusCreated, rr.Code)
		assert.Equal(t, "LIC-9", m.license)
	})

	t.Run("add without key", func(t *testing.T) {
		rr := serve(http.MethodPost, "/eas", "/eas", `{"licenseKey":" "}`, AddEAHandler(&mockBridge{}))
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"duplicate", app.ErrDuplicateEA, http.StatusConflict},
		{"in use", app.ErrLicenseInUse, http.StatusConflict},
		{"rejected", app.ErrLicenseRejected, http.StatusUnprocessableEntity},
		{"unexpected", assert.AnError, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run("add "+tt.name, func(t *testing.T) {
			rr := serve(http.MethodPost, "/eas", "/eas", `{"licenseKey":"LIC-9"}`, AddEAHandler(&mockBridge{err: tt.err}))
			assert.Equal(t, tt.status, rr.Code)
		})
	}

	t.Run("remove missing", func(t *testing.T) {
		m := &mockBridge{err: app.ErrEANotFound}
		rr := serve(http.MethodDelete, "/eas/{id}", "/eas/ea-404", "", RemoveEAHandler(m))
		assert.Equal(t, http.StatusNotFound, rr.Code)
		assert.Equal(t, "ea-404", m.eaID)
	})

	t.Run("activate", func(t *testing.T) {
		m := &mockBridge{}
		rr := serve(http.MethodPost, "/eas/{id}/activate", "/eas/ea-2/activate", "", ActivateEAHandler(m))
		assert.Equal(t, http.StatusNoContent, rr.Code)
		assert.Equal(t, "ea-2", m.eaID)
	})

	t.Run("refresh", func(t *testing.T) {
		m := &mockBridge{}
		rr := serve(http.MethodPost, "/eas/{id}/refresh", "/eas/ea-2/refresh", "", RefreshEAHandler(m))
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "ea-2", m.eaID)
	})
}

func TestLogHandlers(t *testing.T) {
	t.Run("signals", func(t *testing.T) {
		rr := serve(http.MethodGet, "/signals", "/signals", "", SignalLogHandler(&mockBridge{}))
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), `"id":"s1"`)
	})

	t.Run("executions default limit", func(t *testing.T) {
		m := &mockBridge{}
		rr := serve(http.MethodGet, "/executions", "/executions", "", ExecutionsHandler(m))
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, 50, m.limit)
	})

	t.Run("executions capped limit", func(t *testing.T) {
		m := &mockBridge{}
		serve(http.MethodGet, "/executions", "/executions?limit=9999", "", ExecutionsHandler(m))
		assert.Equal(t, 500, m.limit)
	})

	t.Run("executions bad limit", func(t *testing.T) {
		rr := serve(http.MethodGet, "/executions", "/executions?limit=-1", "", ExecutionsHandler(&mockBridge{}))
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("cancel", func(t *testing.T) {
		rr := serve(http.MethodPost, "/dispatch/cancel", "/dispatch/cancel", "", CancelDispatchHandler(&mockBridge{}))
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.JSONEq(t, `{"cancelled":true}`, rr.Body.String())
	})
}
