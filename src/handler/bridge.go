package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"eabridge/src/app"
	"eabridge/src/model"
	"eabridge/src/risk"
	"eabridge/src/symbols"

	logger "github.com/sirupsen/logrus"
)

// Bridge is the set of user actions the control API exposes.
type Bridge interface {
	Status(ctx context.Context) (app.Status, error)
	SetBotActive(ctx context.Context, active bool) error

	Symbols() []model.SymbolConfig
	SetSymbol(ctx context.Context, bucket model.Bucket, cfg model.SymbolConfig) (model.SymbolConfig, error)
	RemoveSymbol(ctx context.Context, bucket model.Bucket, symbol string) (bool, error)

	Accounts(ctx context.Context) ([]model.Account, error)
	SetAccount(ctx context.Context, platform model.Platform, login, password, server string) error

	ExpertAdvisors(ctx context.Context) ([]model.ExpertAdvisor, error)
	AddLicense(ctx context.Context, licenseKey string) (*model.ExpertAdvisor, error)
	RefreshLicense(ctx context.Context, id string) (*model.ExpertAdvisor, error)
	RemoveEA(ctx context.Context, id string) error
	SetActiveEA(ctx context.Context, id string) error

	CancelDispatch(ctx context.Context) (bool, error)
	SignalLog(ctx context.Context) ([]model.SignalLog, error)
	Executions(ctx context.Context, limit int) ([]model.ExecutionLog, error)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.WithError(err).Error("failed to encode response")
	}
}

func decode(r *http.Request, v interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(v)
}

// writeError maps domain errors to status codes. Anything unrecognised is a 500
// and its text stays in the log.
func writeError(w http.ResponseWriter, op string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, risk.ErrInvalidSymbolConfig),
		errors.Is(err, symbols.ErrUnknownBucket),
		errors.Is(err, app.ErrInvalidAccount):
		status = http.StatusBadRequest
	case errors.Is(err, app.ErrEANotFound):
		status = http.StatusNotFound
	case errors.Is(err, app.ErrDuplicateEA),
		errors.Is(err, app.ErrLicenseInUse),
		errors.Is(err, app.ErrNoExpertAdvisor):
		status = http.StatusConflict
	case errors.Is(err, app.ErrLicenseRejected):
		status = http.StatusUnprocessableEntity
	}

	if status == http.StatusInternalServerError {
		logger.WithField("op", op).WithError(err).Error("control API request failed")
		http.Error(w, "Internal Server Error", status)
		return
	}
	logger.WithField("op", op).WithError(err).Warn("control API request rejected")
	http.Error(w, err.Error(), status)
}
