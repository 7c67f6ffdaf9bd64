package app

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"eabridge/src/connectors"
	"eabridge/src/dispatch"
	"eabridge/src/model"
	"eabridge/src/symbols"

	"github.com/google/uuid"
	logger "github.com/sirupsen/logrus"
)

var (
	ErrNoExpertAdvisor = errors.New("no expert advisor configured")
	ErrEANotFound      = errors.New("expert advisor not found")
	ErrDuplicateEA     = errors.New("expert advisor already added")
	ErrLicenseInUse    = errors.New("license is already bound to another device")
	ErrLicenseRejected = errors.New("license rejected")
	ErrInvalidAccount  = errors.New("login, password and server are required")
)

type SymbolStore interface {
	Load(ctx context.Context) error
	Activate(ctx context.Context, bucket model.Bucket, cfg model.SymbolConfig) (model.SymbolConfig, error)
	Deactivate(ctx context.Context, bucket model.Bucket, symbol string) (bool, error)
	List() []model.SymbolConfig
}

type AccountRepository interface {
	FindAll(ctx context.Context) ([]model.Account, error)
	SaveCredentials(ctx context.Context, platform model.Platform, login, passwordSealed, server string) error
}

type ExpertAdvisorRepository interface {
	List(ctx context.Context) ([]model.ExpertAdvisor, error)
	FindByID(ctx context.Context, id string) (*model.ExpertAdvisor, error)
	FindDuplicate(ctx context.Context, id, licenseKey string) (*model.ExpertAdvisor, error)
	Append(ctx context.Context, ea *model.ExpertAdvisor) error
	Update(ctx context.Context, ea *model.ExpertAdvisor) error
	Delete(ctx context.Context, id string) (bool, error)
	MoveToFront(ctx context.Context, id string) error
}

type KVStore interface {
	Get(ctx context.Context, key string) (*model.KVEntry, error)
	Put(ctx context.Context, key, value string) error
}

type SignalLogReader interface {
	FindRecent(ctx context.Context) ([]model.SignalLog, error)
}

type ExecutionLogReader interface {
	FindRecent(ctx context.Context, limit int) ([]model.ExecutionLog, error)
}

type LicenseAuthenticator interface {
	Authenticate(ctx context.Context, licence, phoneSecret string) (*connectors.LicenseResponse, error)
}

type Sealer interface {
	Seal(plaintext string) (string, error)
	Open(sealed string) (string, error)
}

type Poller interface {
	Start(ctx context.Context, licenseKey string) error
	Stop()
	Running() bool
	Scope() string
	Watermark() *time.Time
}

type Dispatcher interface {
	Cancel(ctx context.Context) (bool, error)
	Reset(ctx context.Context) error
	Snapshot(ctx context.Context) (dispatch.Status, error)
}

// Deps are the collaborators AppState owns.
type Deps struct {
	Symbols    SymbolStore
	Accounts   AccountRepository
	EAs        ExpertAdvisorRepository
	KV         KVStore
	Signals    SignalLogReader
	Executions ExecutionLogReader
	Licenses   LicenseAuthenticator
	Sealer     Sealer
	Poller     Poller
	Dispatcher Dispatcher
}

// Status is what the control API reports about the bridge.
type Status struct {
	BotActive bool            `json:"botActive"`
	Polling   bool            `json:"polling"`
	Scope     string          `json:"scope,omitempty"`
	Watermark *time.Time      `json:"watermark,omitempty"`
	Dispatch  dispatch.Status `json:"dispatch"`
}

// AppState is the root of the bridge: every user action goes through it.
type AppState struct {
	deps Deps

	mu        sync.Mutex
	lifetime  context.Context
	botActive bool
}

func New(deps Deps) *AppState {
	return &AppState{deps: deps, lifetime: context.Background()}
}

// Restore loads persisted state and resumes monitoring if the bot was left on.
// Polling sessions started later live as long as ctx.
func (s *AppState) Restore(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lifetime = ctx

	if err := s.deps.Symbols.Load(ctx); err != nil {
		return fmt.Errorf("load symbols: %w", err)
	}

	entry, err := s.deps.KV.Get(ctx, model.KVBotActive)
	if err != nil {
		return fmt.Errorf("load bot flag: %w", err)
	}
	if entry == nil {
		return nil
	}
	active, _ := strconv.ParseBool(entry.Value)
	if !active {
		return nil
	}

	if err := s.startPolling(ctx); err != nil {
		logger.WithError(err).Warn("Bot was active but monitoring could not resume")
		return nil
	}
	s.botActive = true
	return nil
}

func (s *AppState) BotActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.botActive
}

// SetBotActive arms or disarms dispatch. Turning it off stops polling and forgets
// the session's scope, watermark and seen signals.
func (s *AppState) SetBotActive(ctx context.Context, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if active {
		if err := s.startPolling(ctx); err != nil {
			return err
		}
	} else {
		s.deps.Poller.Stop()
		if err := s.deps.Dispatcher.Reset(ctx); err != nil {
			return err
		}
	}

	if err := s.deps.KV.Put(ctx, model.KVBotActive, strconv.FormatBool(active)); err != nil {
		return fmt.Errorf("persist bot flag: %w", err)
	}
	s.botActive = active

	logger.WithField("active", active).Info("Bot state changed")
	return nil
}

// startPolling (re)starts the session for the first EA. Caller holds mu.
func (s *AppState) startPolling(ctx context.Context) error {
	eas, err := s.deps.EAs.List(ctx)
	if err != nil {
		return err
	}
	if len(eas) == 0 {
		return ErrNoExpertAdvisor
	}
	return s.deps.Poller.Start(s.lifetime, eas[0].LicenseKey)
}

// followFirstEA keeps a running session on the first EA after the list changed.
// Caller holds mu.
func (s *AppState) followFirstEA(ctx context.Context) error {
	if !s.botActive {
		return nil
	}
	err := s.startPolling(ctx)
	if errors.Is(err, ErrNoExpertAdvisor) {
		s.deps.Poller.Stop()
		return nil
	}
	return err
}

func (s *AppState) Symbols() []model.SymbolConfig {
	return s.deps.Symbols.List()
}

func (s *AppState) SetSymbol(ctx context.Context, bucket model.Bucket, cfg model.SymbolConfig) (model.SymbolConfig, error) {
	return s.deps.Symbols.Activate(ctx, bucket, cfg)
}

func (s *AppState) RemoveSymbol(ctx context.Context, bucket model.Bucket, symbol string) (bool, error) {
	return s.deps.Symbols.Deactivate(ctx, bucket, symbol)
}

func (s *AppState) Accounts(ctx context.Context) ([]model.Account, error) {
	return s.deps.Accounts.FindAll(ctx)
}

// SetAccount stores terminal credentials for platform. The password is sealed
// before it reaches the repository.
func (s *AppState) SetAccount(ctx context.Context, platform model.Platform, login, password, server string) error {
	login, server = strings.TrimSpace(login), strings.TrimSpace(server)
	if login == "" || password == "" || server == "" {
		return ErrInvalidAccount
	}
	sealed, err := s.deps.Sealer.Seal(password)
	if err != nil {
		return fmt.Errorf("seal password: %w", err)
	}
	return s.deps.Accounts.SaveCredentials(ctx, platform, login, sealed, server)
}

func (s *AppState) ExpertAdvisors(ctx context.Context) ([]model.ExpertAdvisor, error) {
	return s.deps.EAs.List(ctx)
}

// AddLicense binds licenseKey to this device and appends the resulting EA.
func (s *AppState) AddLicense(ctx context.Context, licenseKey string) (*model.ExpertAdvisor, error) {
	licenseKey = strings.TrimSpace(licenseKey)

	s.mu.Lock()
	defer s.mu.Unlock()

	dup, err := s.deps.EAs.FindDuplicate(ctx, licenseKey, licenseKey)
	if err != nil {
		return nil, err
	}
	if dup != nil {
		return nil, ErrDuplicateEA
	}

	resp, err := s.deps.Licenses.Authenticate(ctx, licenseKey, "")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLicenseRejected, err)
	}
	if err := licenseOutcome(resp); err != nil {
		return nil, err
	}

	ea := &model.ExpertAdvisor{
		ID:         uuid.NewString(),
		LicenseKey: licenseKey,
		Status:     model.EAStatusConnected,
	}
	if err := s.applyLicense(ea, resp.Data); err != nil {
		return nil, err
	}
	if err := s.deps.EAs.Append(ctx, ea); err != nil {
		return nil, err
	}

	logger.WithFields(map[string]interface{}{
		"ea":   ea.ID,
		"name": ea.Name,
	}).Info("License bound")

	if err := s.followFirstEA(ctx); err != nil {
		return ea, err
	}
	return ea, nil
}

// RefreshLicense re-authenticates an EA with the secret issued at binding time.
// A rejected license leaves the EA marked disconnected.
func (s *AppState) RefreshLicense(ctx context.Context, id string) (*model.ExpertAdvisor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ea, err := s.deps.EAs.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if ea == nil {
		return nil, ErrEANotFound
	}

	var secret string
	if ea.PhoneSecretSealed != "" {
		if secret, err = s.deps.Sealer.Open(ea.PhoneSecretSealed); err != nil {
			return nil, fmt.Errorf("open phone secret: %w", err)
		}
	}

	resp, authErr := s.deps.Licenses.Authenticate(ctx, ea.LicenseKey, secret)
	if authErr == nil {
		authErr = licenseOutcome(resp)
	} else {
		authErr = fmt.Errorf("%w: %v", ErrLicenseRejected, authErr)
	}

	if authErr != nil {
		ea.Status = model.EAStatusDisconnected
	} else {
		ea.Status = model.EAStatusConnected
		if err := s.applyLicense(ea, resp.Data); err != nil {
			return nil, err
		}
	}
	if err := s.deps.EAs.Update(ctx, ea); err != nil {
		return nil, err
	}
	return ea, authErr
}

func licenseOutcome(resp *connectors.LicenseResponse) error {
	switch resp.Message {
	case connectors.LicenseAccept:
		return nil
	case connectors.LicenseUsed:
		return ErrLicenseInUse
	}
	return ErrLicenseRejected
}

func (s *AppState) applyLicense(ea *model.ExpertAdvisor, data *connectors.LicenseData) error {
	if ea.Name == "" {
		ea.Name = model.DefaultEAName
	}
	if data == nil {
		return nil
	}
	if name := strings.TrimSpace(data.EAName); name != "" {
		ea.Name = name
	}
	ea.LicenseStatus = data.Status
	ea.Expires = data.Expires
	ea.NotificationKey = data.EANotification
	ea.OwnerName = data.Owner.Name
	ea.OwnerEmail = data.Owner.Email
	ea.OwnerPhone = data.Owner.Phone
	ea.OwnerLogo = data.Owner.Logo

	if data.PhoneSecretKey != "" {
		sealed, err := s.deps.Sealer.Seal(data.PhoneSecretKey)
		if err != nil {
			return fmt.Errorf("seal phone secret: %w", err)
		}
		ea.PhoneSecretSealed = sealed
	}
	return nil
}

func (s *AppState) RemoveEA(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed, err := s.deps.EAs.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !removed {
		return ErrEANotFound
	}
	return s.followFirstEA(ctx)
}

// SetActiveEA moves id to the front of the list, which makes its license scope the
// polling session.
func (s *AppState) SetActiveEA(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ea, err := s.deps.EAs.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if ea == nil {
		return ErrEANotFound
	}
	if err := s.deps.EAs.MoveToFront(ctx, id); err != nil {
		return err
	}
	return s.followFirstEA(ctx)
}

func (s *AppState) CancelDispatch(ctx context.Context) (bool, error) {
	return s.deps.Dispatcher.Cancel(ctx)
}

func (s *AppState) SignalLog(ctx context.Context) ([]model.SignalLog, error) {
	return s.deps.Signals.FindRecent(ctx)
}

func (s *AppState) Executions(ctx context.Context, limit int) ([]model.ExecutionLog, error) {
	return s.deps.Executions.FindRecent(ctx, limit)
}

func (s *AppState) Status(ctx context.Context) (Status, error) {
	snap, err := s.deps.Dispatcher.Snapshot(ctx)
	if err != nil {
		return Status{}, err
	}
	return Status{
		BotActive: s.BotActive(),
		Polling:   s.deps.Poller.Running(),
		Scope:     s.deps.Poller.Scope(),
		Watermark: s.deps.Poller.Watermark(),
		Dispatch:  snap,
	}, nil
}

var _ SymbolStore = (*symbols.Store)(nil)
