package exchange

import (
	"context"
	"encoding/json"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"spreadmon/internal/model"
)

// BinanceClient implements the ExchangeClient interface for Binance.
type BinanceClient struct {
	logger *slog.Logger
}

// NewBinanceClient creates a new BinanceClient.
func NewBinanceClient(logger *slog.Logger) *BinanceClient {
	return &BinanceClient{logger: logger}
}

func (b *BinanceClient) GetName() string {
	return "binance"
}

// StartStream connects to the Binance combined-stream WebSocket API and
// streams price ticks for the given pair symbol. The bookTicker stream
// supplies bid/ask; the aggTrade stream carries an exchange event time,
// which gives an event-latency measurement for the tick.
func (b *BinanceClient) StartStream(ctx context.Context, priceChan chan<- model.PriceTick, pair string) error {
	symbol := strings.ToLower(pair)
	wsURL := "wss://stream.binance.com:9443/stream?streams=" +
		symbol + "@bookTicker/" + symbol + "@aggTrade"

	backoff := time.Second
	for {
		select {
		case <-ctx.Done():
			b.logger.Info("BinanceClient: context cancelled, shutting down")
			return nil
		default:
		}

		b.logger.Info("BinanceClient: connecting to WebSocket", "url", wsURL, "backoff", backoff)
		c, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
		if err != nil {
			b.logger.Error("BinanceClient: WebSocket connection failed", "error", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(backoff):
				backoff *= 2
				if backoff > 16*time.Second {
					backoff = 16 * time.Second
				}
			}
			continue
		}

		// Reset backoff on successful connection
		backoff = time.Second
		b.logger.Info("BinanceClient: connected successfully")

		if !b.readLoop(ctx, c, priceChan) {
			return nil
		}
	}
}

// readLoop consumes messages until the connection breaks. It returns
// false when the context was cancelled and the stream should stop.
func (b *BinanceClient) readLoop(ctx context.Context, c *websocket.Conn, priceChan chan<- model.PriceTick) bool {
	defer c.Close()
	for {
		select {
		case <-ctx.Done():
			b.logger.Info("BinanceClient: context cancelled, closing connection")
			return false
		default:
		}

		_, message, err := c.ReadMessage()
		if err != nil {
			b.logger.Error("BinanceClient: failed to read message", "error", err)
			return true
		}

		var envelope struct {
			Stream string                 `json:"stream"`
			Data   map[string]interface{} `json:"data"`
		}
		if err := json.Unmarshal(message, &envelope); err != nil {
			b.logger.Warn("BinanceClient: failed to parse message", "error", err)
			continue
		}

		var tick model.PriceTick
		var ok bool
		switch {
		case strings.HasSuffix(envelope.Stream, "@bookTicker"):
			tick, ok = b.parseBookTicker(envelope.Data)
		case strings.HasSuffix(envelope.Stream, "@aggTrade"):
			tick, ok = b.parseAggTrade(envelope.Data)
		}
		if !ok {
			continue
		}

		select {
		case priceChan <- tick:
			b.logger.Debug("BinanceClient: sent price tick", "bid", tick.Bid, "ask", tick.Ask)
		case <-ctx.Done():
			b.logger.Info("BinanceClient: context cancelled while sending price tick")
			return false
		}
	}
}

// parseBookTicker extracts best bid/ask. No event time on this stream.
func (b *BinanceClient) parseBookTicker(data map[string]interface{}) (model.PriceTick, bool) {
	bidStr, ok := data["b"].(string)
	if !ok {
		return model.PriceTick{}, false
	}
	askStr, ok := data["a"].(string)
	if !ok {
		return model.PriceTick{}, false
	}
	bid, err := strconv.ParseFloat(bidStr, 64)
	if err != nil {
		b.logger.Warn("BinanceClient: failed to parse bid price", "error", err)
		return model.PriceTick{}, false
	}
	ask, err := strconv.ParseFloat(askStr, 64)
	if err != nil {
		b.logger.Warn("BinanceClient: failed to parse ask price", "error", err)
		return model.PriceTick{}, false
	}
	return model.PriceTick{
		Exchange:  "binance",
		Pair:      "BTC/USDT",
		Bid:       bid,
		Ask:       ask,
		LatencyMS: math.NaN(),
	}, true
}

// parseAggTrade approximates bid/ask from the last trade price and
// measures event latency from the exchange event time.
func (b *BinanceClient) parseAggTrade(data map[string]interface{}) (model.PriceTick, bool) {
	priceStr, ok := data["p"].(string)
	if !ok {
		return model.PriceTick{}, false
	}
	price, err := strconv.ParseFloat(priceStr, 64)
	if err != nil {
		b.logger.Warn("BinanceClient: failed to parse trade price", "error", err)
		return model.PriceTick{}, false
	}

	latency := math.NaN()
	if eventTime, ok := data["E"].(float64); ok && eventTime > 0 {
		latency = float64(time.Now().UnixMilli()) - eventTime
	}

	return model.PriceTick{
		Exchange:  "binance",
		Pair:      "BTC/USDT",
		Bid:       price - 0.01,
		Ask:       price + 0.01,
		LatencyMS: latency,
	}, true
}
