package risk

import (
	"errors"
	"fmt"
	"strings"

	"eabridge/src/model"

	"github.com/shopspring/decimal"
)

var ErrInvalidSymbolConfig = errors.New("invalid symbol configuration")

// ValidateSymbolConfig checks cfg against the limits and normalizes it in place:
// the lot size is rewritten in canonical decimal form, the direction upper-cased
// and a trade count below one raised to one.
func (l Limits) ValidateSymbolConfig(cfg *model.SymbolConfig) error {
	if model.NormalizeSymbol(cfg.Symbol) == "" {
		return fmt.Errorf("%w: symbol is required", ErrInvalidSymbolConfig)
	}

	lot, err := decimal.NewFromString(strings.TrimSpace(cfg.LotSize))
	if err != nil {
		return fmt.Errorf("%w: lot size %q is not a number", ErrInvalidSymbolConfig, cfg.LotSize)
	}
	if !lot.IsPositive() {
		return fmt.Errorf("%w: lot size must be positive", ErrInvalidSymbolConfig)
	}
	if !l.MinLot.IsZero() && lot.LessThan(l.MinLot) {
		return fmt.Errorf("%w: lot size %s below minimum %s", ErrInvalidSymbolConfig, lot, l.MinLot)
	}
	if !l.MaxLot.IsZero() && lot.GreaterThan(l.MaxLot) {
		return fmt.Errorf("%w: lot size %s above maximum %s", ErrInvalidSymbolConfig, lot, l.MaxLot)
	}
	cfg.LotSize = lot.String()

	direction := strings.ToUpper(strings.TrimSpace(cfg.Direction))
	if direction == "" {
		direction = model.DirectionBoth
	}
	switch direction {
	case model.DirectionBuy, model.DirectionSell, model.DirectionBoth:
		cfg.Direction = direction
	default:
		return fmt.Errorf("%w: direction %q", ErrInvalidSymbolConfig, cfg.Direction)
	}

	if cfg.NumberOfTrades < 1 {
		cfg.NumberOfTrades = 1
	}
	if l.MaxTrades > 0 && cfg.NumberOfTrades > l.MaxTrades {
		return fmt.Errorf("%w: %d trades above maximum %d", ErrInvalidSymbolConfig, cfg.NumberOfTrades, l.MaxTrades)
	}
	return nil
}
