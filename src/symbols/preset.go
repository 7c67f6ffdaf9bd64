package symbols

import (
	"context"
	"fmt"
	"os"

	"eabridge/src/model"

	logger "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Preset is one symbol entry of a YAML preset file.
type Preset struct {
	Bucket         string `yaml:"bucket"`
	Symbol         string `yaml:"symbol"`
	LotSize        string `yaml:"lot_size"`
	Direction      string `yaml:"direction"`
	Platform       string `yaml:"platform"`
	NumberOfTrades int    `yaml:"number_of_trades"`
}

// PresetFile is the top-level YAML structure.
type PresetFile struct {
	Symbols []Preset `yaml:"symbols"`
}

// LoadPresets reads symbol presets from a YAML file.
func LoadPresets(path string) ([]Preset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var file PresetFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse presets %s: %w", path, err)
	}
	return file.Symbols, nil
}

// ApplyPresets activates every preset in order. Later entries for the same symbol
// win, as they would through the API. It stops at the first invalid entry.
func (s *Store) ApplyPresets(ctx context.Context, presets []Preset) (int, error) {
	applied := 0
	for i, p := range presets {
		bucket, ok := model.ParseBucket(p.Bucket)
		if !ok {
			return applied, fmt.Errorf("preset %d (%s): %w: %q", i, p.Symbol, ErrUnknownBucket, p.Bucket)
		}

		cfg := model.SymbolConfig{
			Symbol:         p.Symbol,
			LotSize:        p.LotSize,
			Direction:      p.Direction,
			Platform:       model.Platform(p.Platform),
			NumberOfTrades: p.NumberOfTrades,
		}
		if _, err := s.Activate(ctx, bucket, cfg); err != nil {
			return applied, fmt.Errorf("preset %d (%s): %w", i, p.Symbol, err)
		}
		applied++
	}

	logger.WithFields(map[string]interface{}{
		"component": "symbols",
		"applied":   applied,
	}).Info("Symbol presets applied")
	return applied, nil
}
