package monitor

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"spreadmon/internal/database"
	"spreadmon/internal/model"
	"spreadmon/internal/samplelog"
)

// latencyAlpha is the EMA weight for smoothing per-exchange latency.
const latencyAlpha = 0.3

// Monitor merges price ticks from both exchanges and appends one spread
// sample per logging interval to the CSV log and, optionally, Postgres.
type Monitor struct {
	logger   *slog.Logger
	writer   *samplelog.Writer
	repo     database.Repository // nil when the Postgres sink is disabled
	pair     string
	interval time.Duration

	mu      sync.Mutex
	latest  map[string]model.PriceTick
	latency map[string]float64
}

// New creates a Monitor. repo may be nil.
func New(logger *slog.Logger, writer *samplelog.Writer, repo database.Repository, pair string, interval time.Duration) *Monitor {
	return &Monitor{
		logger:   logger,
		writer:   writer,
		repo:     repo,
		pair:     pair,
		interval: interval,
		latest:   make(map[string]model.PriceTick),
		latency:  make(map[string]float64),
	}
}

// Run consumes ticks and logs a sample on every interval until the
// context is cancelled.
func (m *Monitor) Run(ctx context.Context, ticks <-chan model.PriceTick) {
	t := time.NewTicker(m.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			m.logger.Info("Monitor: context cancelled, shutting down")
			return
		case tick := <-ticks:
			m.ProcessTick(tick)
		case <-t.C:
			m.logSample(ctx)
		}
	}
}

// ProcessTick records the latest price for the tick's exchange and folds
// any latency measurement into that exchange's smoothed latency.
func (m *Monitor) ProcessTick(tick model.PriceTick) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.latest[tick.Exchange] = tick

	lat := tick.LatencyMS
	if math.IsNaN(lat) || lat < 0 || lat > 10000 {
		return
	}
	if prev, ok := m.latency[tick.Exchange]; ok {
		m.latency[tick.Exchange] = latencyAlpha*lat + (1-latencyAlpha)*prev
	} else {
		m.latency[tick.Exchange] = lat
	}
}

// snapshot builds a sample from the current market state. It reports
// false until both sides of the book are known; the cycle is skipped,
// never logged half-empty.
func (m *Monitor) snapshot(now time.Time) (model.Sample, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	binance, okA := m.latest["binance"]
	btcturk, okB := m.latest["btcturk"]
	if !okA || !okB || binance.Ask <= 0 || btcturk.Bid <= 0 {
		return model.Sample{}, false
	}

	spread := btcturk.Bid - binance.Ask
	s := model.Sample{
		Timestamp:        now,
		BinanceBid:       binance.Bid,
		BinanceAsk:       binance.Ask,
		BtcturkBid:       btcturk.Bid,
		BtcturkAsk:       btcturk.Ask,
		Spread:           spread,
		SpreadPct:        spread / binance.Ask * 100,
		BinanceLatencyMS: m.smoothedLatency("binance"),
		BtcturkLatencyMS: m.smoothedLatency("btcturk"),
	}
	return s, true
}

func (m *Monitor) smoothedLatency(exchange string) float64 {
	if lat, ok := m.latency[exchange]; ok {
		return lat
	}
	return math.NaN()
}

func (m *Monitor) logSample(ctx context.Context) {
	s, ok := m.snapshot(time.Now())
	if !ok {
		m.logger.Debug("Monitor: waiting for both exchanges before logging")
		return
	}

	if err := m.writer.Append(s); err != nil {
		m.logger.Error("Monitor: failed to append sample", "error", err)
	}
	if m.repo != nil {
		if err := m.repo.LogSample(ctx, s); err != nil {
			m.logger.Error("Monitor: failed to log sample to database", "error", err)
		}
	}
	m.logger.Info("Monitor: logged spread sample",
		"pair", m.pair,
		"spread", s.Spread,
		"spreadPct", s.SpreadPct,
		"binanceAsk", s.BinanceAsk,
		"btcturkBid", s.BtcturkBid,
	)
}
