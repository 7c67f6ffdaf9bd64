package risk

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

type Config struct {
	MinLotSize         string `envconfig:"MIN_LOT_SIZE" default:"0.01"`
	MaxLotSize         string `envconfig:"MAX_LOT_SIZE" default:"100"`
	MaxTradesPerSignal int    `envconfig:"MAX_TRADES_PER_SIGNAL" default:"10"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}

// Limits bounds what a symbol configuration may request from the terminal.
type Limits struct {
	MinLot    decimal.Decimal
	MaxLot    decimal.Decimal
	MaxTrades int
}

// LimitsFromConfig panics on unparsable bounds, like GetConfig does on bad env.
func LimitsFromConfig(cfg Config) Limits {
	return Limits{
		MinLot:    decimal.RequireFromString(cfg.MinLotSize),
		MaxLot:    decimal.RequireFromString(cfg.MaxLotSize),
		MaxTrades: cfg.MaxTradesPerSignal,
	}
}

func DefaultLimits() Limits {
	return Limits{
		MinLot:    decimal.RequireFromString("0.01"),
		MaxLot:    decimal.RequireFromString("100"),
		MaxTrades: 10,
	}
}
