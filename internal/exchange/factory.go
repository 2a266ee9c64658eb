package exchange

import (
	"fmt"
	"log/slog"

	"spreadmon/internal/config"
)

// NewClient creates a new exchange client based on the given name and configuration.
func NewClient(name string, logger *slog.Logger, cfg *config.ExchangeConfig) (ExchangeClient, error) {
	switch name {
	case "binance":
		return NewBinanceClient(logger), nil
	case "btcturk":
		return NewBtcturkClient(logger), nil
	default:
		return nil, fmt.Errorf("unknown exchange: %s", name)
	}
}
