package symbols

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"eabridge/src/model"
	"eabridge/src/risk"

	logger "github.com/sirupsen/logrus"
)

var ErrUnknownBucket = errors.New("unknown symbol bucket")

// Repository is the persistence the store writes through to.
type Repository interface {
	FindAll(ctx context.Context) ([]model.SymbolConfig, error)
	Upsert(ctx context.Context, cfg *model.SymbolConfig) error
	DeleteFromBucket(ctx context.Context, bucket model.Bucket, symbol string) (bool, error)
}

// Store holds the active symbol configurations. A symbol is active in at most one
// bucket; activating it in another bucket moves it there.
type Store struct {
	mu      sync.RWMutex
	repo    Repository
	limits  risk.Limits
	configs map[string]model.SymbolConfig
	now     func() time.Time
}

func NewStore(repo Repository, limits risk.Limits) *Store {
	return &Store{
		repo:    repo,
		limits:  limits,
		configs: make(map[string]model.SymbolConfig),
		now:     time.Now,
	}
}

// Load replaces the in-memory view with what is persisted.
func (s *Store) Load(ctx context.Context) error {
	rows, err := s.repo.FindAll(ctx)
	if err != nil {
		return fmt.Errorf("load symbol configs: %w", err)
	}

	configs := make(map[string]model.SymbolConfig, len(rows))
	for _, cfg := range rows {
		key := model.NormalizeSymbol(cfg.Symbol)
		if prev, ok := configs[key]; ok && !supersedes(cfg, prev) {
			continue
		}
		configs[key] = cfg
	}

	s.mu.Lock()
	s.configs = configs
	s.mu.Unlock()

	logger.WithFields(map[string]interface{}{
		"component": "symbols",
		"count":     len(configs),
	}).Info("Symbol configurations loaded")
	return nil
}

// Activate validates cfg and makes it the symbol's only active configuration.
func (s *Store) Activate(ctx context.Context, bucket model.Bucket, cfg model.SymbolConfig) (model.SymbolConfig, error) {
	if _, ok := model.ParseBucket(string(bucket)); !ok {
		return model.SymbolConfig{}, fmt.Errorf("%w: %q", ErrUnknownBucket, bucket)
	}
	if err := s.limits.ValidateSymbolConfig(&cfg); err != nil {
		return model.SymbolConfig{}, err
	}

	cfg.Symbol = model.NormalizeSymbol(cfg.Symbol)
	cfg.Bucket = bucket
	if p, ok := bucket.Platform(); ok {
		cfg.Platform = p
	} else if p, ok := model.ParsePlatform(string(cfg.Platform)); ok {
		cfg.Platform = p
	} else {
		cfg.Platform = model.PlatformMT5
	}
	if cfg.ActivatedAt.IsZero() {
		cfg.ActivatedAt = s.now()
	}
	cfg.ActivatedAt = cfg.ActivatedAt.UTC().Truncate(time.Millisecond)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.repo.Upsert(ctx, &cfg); err != nil {
		return model.SymbolConfig{}, fmt.Errorf("activate %s: %w", cfg.Symbol, err)
	}
	s.configs[cfg.Symbol] = cfg
	return cfg, nil
}

// Deactivate removes symbol from bucket. It is a no-op when the symbol is not active
// there, including when it is active in a different bucket.
func (s *Store) Deactivate(ctx context.Context, bucket model.Bucket, symbol string) (bool, error) {
	if _, ok := model.ParseBucket(string(bucket)); !ok {
		return false, fmt.Errorf("%w: %q", ErrUnknownBucket, bucket)
	}
	key := model.NormalizeSymbol(symbol)

	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.configs[key]
	if !ok || current.Bucket != bucket {
		return false, nil
	}
	if _, err := s.repo.DeleteFromBucket(ctx, bucket, key); err != nil {
		return false, fmt.Errorf("deactivate %s: %w", key, err)
	}
	delete(s.configs, key)
	return true, nil
}

// Resolve returns the active configuration for symbol.
func (s *Store) Resolve(symbol string) (model.SymbolConfig, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cfg, ok := s.configs[model.NormalizeSymbol(symbol)]
	return cfg, ok
}

func (s *Store) IsActive(symbol string) bool {
	_, ok := s.Resolve(symbol)
	return ok
}

// List returns the active configurations sorted by symbol.
func (s *Store) List() []model.SymbolConfig {
	s.mu.RLock()
	out := make([]model.SymbolConfig, 0, len(s.configs))
	for _, cfg := range s.configs {
		out = append(out, cfg)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// supersedes: later activation wins, ties go to the earlier bucket.
func supersedes(candidate, current model.SymbolConfig) bool {
	if candidate.ActivatedAt.Equal(current.ActivatedAt) {
		return bucketRank(candidate.Bucket) < bucketRank(current.Bucket)
	}
	return candidate.ActivatedAt.After(current.ActivatedAt)
}

func bucketRank(b model.Bucket) int {
	for i, bucket := range model.Buckets {
		if bucket == b {
			return i
		}
	}
	return len(model.Buckets)
}
