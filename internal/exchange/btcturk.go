package exchange

import (
	"context"
	"encoding/json"
	"log/slog"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"spreadmon/internal/model"
)

// BtcturkClient implements the ExchangeClient interface for BtcTurk.
type BtcturkClient struct {
	logger *slog.Logger

	mu         sync.Mutex
	lastPingAt time.Time
	rttMS      float64 // EMA-smoothed round-trip latency, NaN until first pong
}

// NewBtcturkClient creates a new BtcturkClient.
func NewBtcturkClient(logger *slog.Logger) *BtcturkClient {
	return &BtcturkClient{logger: logger, rttMS: math.NaN()}
}

func (k *BtcturkClient) GetName() string {
	return "btcturk"
}

// StartStream connects to the BtcTurk WebSocket API, subscribes to the
// orderbook channel for the pair and streams best bid/ask ticks. BtcTurk
// carries no event time on orderbook messages, so latency is measured as
// WebSocket ping round-trip time and attached to each tick.
func (k *BtcturkClient) StartStream(ctx context.Context, priceChan chan<- model.PriceTick, pair string) error {
	const wsURL = "wss://ws-feed-pro.btcturk.com/"
	backoff := time.Second
	for {
		select {
		case <-ctx.Done():
			k.logger.Info("BtcturkClient: context cancelled, shutting down")
			return nil
		default:
		}

		k.logger.Info("BtcturkClient: connecting to WebSocket", "url", wsURL, "backoff", backoff)
		c, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
		if err != nil {
			k.logger.Error("BtcturkClient: WebSocket connection failed", "error", err)
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

		// Subscribe to the full orderbook channel: [151, {...}]
		subscription := []interface{}{
			151,
			map[string]interface{}{
				"type":    151,
				"channel": "orderbook",
				"event":   pair,
				"join":    true,
			},
		}
		if err := c.WriteJSON(subscription); err != nil {
			k.logger.Error("BtcturkClient: failed to send subscription", "error", err)
			c.Close()
			continue
		}
		k.logger.Info("BtcturkClient: subscription sent successfully", "pair", pair)

		if !k.readLoop(ctx, c, priceChan, pair) {
			return nil
		}
	}
}

// readLoop consumes messages until the connection breaks, with a ping
// ticker measuring RTT on the side. Returns false on context cancel.
func (k *BtcturkClient) readLoop(ctx context.Context, c *websocket.Conn, priceChan chan<- model.PriceTick, pair string) bool {
	defer c.Close()

	var writeMu sync.Mutex
	c.SetPongHandler(func(string) error {
		k.observePong()
		return nil
	})

	pingCtx, stopPing := context.WithCancel(ctx)
	defer stopPing()
	go k.pingLoop(pingCtx, c, &writeMu)

	for {
		select {
		case <-ctx.Done():
			k.logger.Info("BtcturkClient: context cancelled, closing connection")
			return false
		default:
		}

		_, message, err := c.ReadMessage()
		if err != nil {
			k.logger.Error("BtcturkClient: failed to read message", "error", err)
			return true
		}

		tick, ok := k.parseOrderbook(message, pair)
		if !ok {
			continue
		}

		select {
		case priceChan <- tick:
			k.logger.Debug("BtcturkClient: sent price tick", "bid", tick.Bid, "ask", tick.Ask)
		case <-ctx.Done():
			k.logger.Info("BtcturkClient: context cancelled while sending price tick")
			return false
		}
	}
}

// pingLoop sends a WebSocket ping every 5 seconds; the pong handler on
// the read side turns the round trip into a latency measurement.
func (k *BtcturkClient) pingLoop(ctx context.Context, c *websocket.Conn, writeMu *sync.Mutex) {
	t := time.NewTicker(5 * time.Second)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			k.mu.Lock()
			k.lastPingAt = time.Now()
			k.mu.Unlock()
			writeMu.Lock()
			err := c.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
			writeMu.Unlock()
			if err != nil {
				k.logger.Debug("BtcturkClient: ping failed", "error", err)
				return
			}
		}
	}
}

// observePong folds a measured round trip into the smoothed RTT with the
// same EMA weighting the collector uses for event latency.
func (k *BtcturkClient) observePong() {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.lastPingAt.IsZero() {
		return
	}
	rtt := float64(time.Since(k.lastPingAt)) / float64(time.Millisecond)
	if rtt < 0 || rtt > 10000 {
		return
	}
	const alpha = 0.3
	if math.IsNaN(k.rttMS) {
		k.rttMS = rtt
	} else {
		k.rttMS = alpha*rtt + (1-alpha)*k.rttMS
	}
	k.logger.Debug("BtcturkClient: ping RTT", "rtt_ms", rtt, "smoothed_ms", k.rttMS)
}

func (k *BtcturkClient) latency() float64 {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.rttMS
}

// parseOrderbook handles type 431 full orderbook snapshots:
// [431, {"PS": pair, "BO": [{"P": price, "A": amount}, ...], "AO": [...]}].
func (k *BtcturkClient) parseOrderbook(message []byte, pair string) (model.PriceTick, bool) {
	var frame []json.RawMessage
	if err := json.Unmarshal(message, &frame); err != nil || len(frame) < 2 {
		k.logger.Debug("BtcturkClient: unknown message format")
		return model.PriceTick{}, false
	}
	var code int
	if err := json.Unmarshal(frame[0], &code); err != nil {
		return model.PriceTick{}, false
	}
	if code != 431 {
		// Subscribe results (151), generic results (100) and other
		// channels are not price data.
		return model.PriceTick{}, false
	}

	var payload struct {
		PairSymbol string `json:"PS"`
		Bids       []struct {
			Price string `json:"P"`
		} `json:"BO"`
		Asks []struct {
			Price string `json:"P"`
		} `json:"AO"`
	}
	if err := json.Unmarshal(frame[1], &payload); err != nil {
		k.logger.Warn("BtcturkClient: failed to parse orderbook", "error", err)
		return model.PriceTick{}, false
	}
	if len(payload.Bids) == 0 || len(payload.Asks) == 0 {
		return model.PriceTick{}, false
	}

	bid, err := strconv.ParseFloat(payload.Bids[0].Price, 64)
	if err != nil {
		k.logger.Warn("BtcturkClient: failed to parse bid price", "error", err)
		return model.PriceTick{}, false
	}
	ask, err := strconv.ParseFloat(payload.Asks[0].Price, 64)
	if err != nil {
		k.logger.Warn("BtcturkClient: failed to parse ask price", "error", err)
		return model.PriceTick{}, false
	}

	return model.PriceTick{
		Exchange:  "btcturk",
		Pair:      pair,
		Bid:       bid,
		Ask:       ask,
		LatencyMS: k.latency(),
	}, true
}
