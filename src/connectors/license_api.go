package connectors

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

// License authentication outcomes.
const (
	LicenseAccept = "accept"
	LicenseUsed   = "used"
	LicenseError  = "error"
)

type LicenseRequest struct {
	Licence     string `json:"licence"`
	PhoneSecret string `json:"phone_secret,omitempty"`
}

type LicenseOwner struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
	Logo  string `json:"logo"`
}

type LicenseData struct {
	User           string       `json:"user"`
	Status         string       `json:"status"`
	Expires        string       `json:"expires"`
	Key            string       `json:"key"`
	PhoneSecretKey string       `json:"phone_secret_key"`
	EAName         string       `json:"ea_name"`
	EANotification string       `json:"ea_notification"`
	Owner          LicenseOwner `json:"owner"`
}

type LicenseResponse struct {
	Message string       `json:"message"`
	Data    *LicenseData `json:"data,omitempty"`
}

// LicenseAPI binds licenses to this device.
type LicenseAPI struct {
	http    *resty.Client
	limiter *rate.Limiter
	path    string
}

func NewLicenseAPI(cfg Config) (*LicenseAPI, error) {
	if cfg.LicenseAPIURL == "" {
		return nil, errors.New("LICENSE_API_URL is required")
	}
	return &LicenseAPI{
		http:    newHTTPClient(cfg.LicenseAPIURL, cfg),
		limiter: newLimiter(cfg),
		path:    cfg.LicensePath,
	}, nil
}

// Authenticate posts the license and, after the first binding, the phone secret the
// server issued. Any transport or decoding failure reads as an "error" outcome.
func (c *LicenseAPI) Authenticate(ctx context.Context, licence, phoneSecret string) (*LicenseResponse, error) {
	if licence == "" {
		return &LicenseResponse{Message: LicenseError}, nil
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var out LicenseResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(LicenseRequest{Licence: licence, PhoneSecret: phoneSecret}).
		SetResult(&out).
		SetError(&out).
		Post(c.path)
	if err != nil {
		return nil, fmt.Errorf("authenticate license: %w", err)
	}
	if out.Message == "" {
		return &LicenseResponse{Message: LicenseError}, fmt.Errorf("authenticate license: HTTP %d without outcome", resp.StatusCode())
	}
	return &out, nil
}
