package connectors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"eabridge/src/externalmodel"
	"eabridge/src/utils"

	"github.com/go-resty/resty/v2"
	logger "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

var (
	// ErrScopeNotFound means the backend knows no EA for the license key.
	ErrScopeNotFound = errors.New("execution scope not found")
	// ErrTransientPoll wraps any network or backend failure while polling.
	ErrTransientPoll = errors.New("transient poll error")
)

type scopeResponse struct {
	EAID *string `json:"eaId"`
}

// SignalAPI polls the signal backend over HTTP.
type SignalAPI struct {
	http        *resty.Client
	limiter     *rate.Limiter
	scopePath   string
	signalsPath string

	mu     sync.Mutex
	scopes map[string]string
}

func NewSignalAPI(cfg Config) (*SignalAPI, error) {
	if cfg.SignalAPIURL == "" {
		return nil, errors.New("SIGNAL_API_URL is required when SIGNAL_SOURCE=api")
	}
	return &SignalAPI{
		http:        newHTTPClient(cfg.SignalAPIURL, cfg),
		limiter:     newLimiter(cfg),
		scopePath:   cfg.ScopePath,
		signalsPath: cfg.SignalsPath,
		scopes:      make(map[string]string),
	}, nil
}

// ResolveExecutionScope maps a license key to the backend EA id. Results are cached
// until ForgetScopes.
func (c *SignalAPI) ResolveExecutionScope(ctx context.Context, licenseKey string) (string, error) {
	c.mu.Lock()
	scope, ok := c.scopes[licenseKey]
	c.mu.Unlock()
	if ok {
		return scope, nil
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}

	var out scopeResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("licenseKey", licenseKey).
		SetResult(&out).
		Get(c.scopePath)
	if err != nil {
		return "", fmt.Errorf("resolve scope: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return "", fmt.Errorf("resolve scope: HTTP %d: %s", resp.StatusCode(), resp.String())
	}
	if out.EAID == nil || *out.EAID == "" {
		return "", ErrScopeNotFound
	}

	c.mu.Lock()
	c.scopes[licenseKey] = *out.EAID
	c.mu.Unlock()

	logger.WithFields(map[string]interface{}{
		"component": "signal_api",
		"scope":     *out.EAID,
	}).Info("Execution scope resolved")
	return *out.EAID, nil
}

// ForgetScopes drops every cached scope; the next session resolves again.
func (c *SignalAPI) ForgetScopes() {
	c.mu.Lock()
	c.scopes = make(map[string]string)
	c.mu.Unlock()
}

// Poll returns the scope's signals newer than since, in backend order
// (latestupdate descending). A nil since asks for every active signal.
func (c *SignalAPI) Poll(ctx context.Context, scope string, since *time.Time) ([]externalmodel.Signal, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransientPoll, err)
	}

	req := c.http.R().
		SetContext(ctx).
		SetQueryParam("eaId", scope)
	if since != nil {
		req.SetQueryParam("since", utils.FormatWatermark(*since))
	}

	var batch externalmodel.SignalBatch
	resp, err := req.SetResult(&batch).Get(c.signalsPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransientPoll, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("%w: HTTP %d: %s", ErrTransientPoll, resp.StatusCode(), resp.String())
	}

	return AfterWatermark(batch.Signals, since), nil
}

// AfterWatermark drops signals at or before since, keeping the input order. The
// backend filters too; this holds even when its clock or precision differs.
func AfterWatermark(signals []externalmodel.Signal, since *time.Time) []externalmodel.Signal {
	if since == nil {
		return signals
	}
	out := signals[:0:0]
	for _, s := range signals {
		if s.LatestUpdate.After(*since) {
			out = append(out, s)
		}
	}
	return out
}
