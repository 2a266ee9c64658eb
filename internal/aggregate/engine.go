package aggregate

import (
	"math"
	"strconv"

	"spreadmon/internal/model"
	"spreadmon/internal/samplelog"
)

// Result couples the whole-history statistics with the display window.
// Both are derived from the identical valid-sample sequence: DataPoints
// counts the full history while the window is capped for rendering.
type Result struct {
	Stats  model.Statistics
	Window []model.Sample
}

// Aggregate decodes the raw log rows, filters them to valid samples and
// computes the full-history statistics plus the trailing display window of
// at most limit samples. A non-positive limit means no cap; callers that
// serve charts substitute their configured default before calling. An
// empty valid sequence is a normal outcome: zero-valued statistics and an
// empty window, never an error.
func Aggregate(rows []samplelog.RawRow, limit int) Result {
	samples := make([]model.Sample, 0, len(rows))
	for _, row := range rows {
		s := Decode(row)
		if s.Valid() {
			samples = append(samples, s)
		}
	}
	return Result{
		Stats:  summarize(samples),
		Window: window(samples, limit),
	}
}

// Decode normalizes a raw row of either layout into a Sample. A field
// that fails to parse as a finite number becomes NaN; decoding never
// fails outright, the validity filter decides what survives.
func Decode(row samplelog.RawRow) model.Sample {
	var s model.Sample
	switch row.Layout {
	case samplelog.LayoutPositional:
		// Legacy layout: timestamp, binance bid/ask, btcturk bid/ask,
		// spread, spread pct, one latency column per exchange.
		f := func(i int) float64 {
			if i >= len(row.Fields) {
				return math.NaN()
			}
			return parseFloat(row.Fields[i])
		}
		if len(row.Fields) > 0 {
			if t, err := model.ParseTimestamp(row.Fields[0]); err == nil {
				s.Timestamp = t
			}
		}
		s.BinanceBid = f(1)
		s.BinanceAsk = f(2)
		s.BtcturkBid = f(3)
		s.BtcturkAsk = f(4)
		s.Spread = f(5)
		s.SpreadPct = f(6)
		s.BinanceLatencyMS = f(7)
		s.BtcturkLatencyMS = f(8)
	default:
		if t, err := model.ParseTimestamp(row.Get("timestamp")); err == nil {
			s.Timestamp = t
		}
		s.BinanceBid = parseFloat(row.Get("binance_bid"))
		s.BinanceAsk = parseFloat(row.Get("binance_ask"))
		s.BtcturkBid = parseFloat(row.Get("btcturk_bid"))
		s.BtcturkAsk = parseFloat(row.Get("btcturk_ask"))
		s.Spread = parseFloat(row.Get("spread_try"))
		s.SpreadPct = parseFloat(row.Get("spread_pct"))
		s.BinanceLatencyMS = preferredLatency(row, "binance")
		s.BtcturkLatencyMS = preferredLatency(row, "btcturk")
	}
	return s
}

// preferredLatency picks the event latency when it is finite and falls
// back to the round-trip measurement otherwise.
func preferredLatency(row samplelog.RawRow, exchange string) float64 {
	event := parseFloat(row.Get(exchange + "_event_latency_ms"))
	if !math.IsNaN(event) && !math.IsInf(event, 0) {
		return event
	}
	return parseFloat(row.Get(exchange + "_rtt_latency_ms"))
}

func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

// summarize computes the statistics in one pass over the full valid
// sequence. Sign-partitioned extrema for the absolute spread; latency
// means over the finite subset only. Every aggregate over an empty input
// set reports zero, never NaN.
func summarize(samples []model.Sample) model.Statistics {
	var stats model.Statistics
	if len(samples) == 0 {
		return stats
	}

	var (
		pctSum, spreadSum          float64
		spreadCount                int
		latSumBinance, latSumBtctk float64
		latCntBinance, latCntBtctk int
	)
	stats.MaxSpreadPct = math.Inf(-1)
	stats.MinSpreadPct = math.Inf(1)

	for _, s := range samples {
		pctSum += s.SpreadPct
		if s.SpreadPct > stats.MaxSpreadPct {
			stats.MaxSpreadPct = s.SpreadPct
		}
		if s.SpreadPct < stats.MinSpreadPct {
			stats.MinSpreadPct = s.SpreadPct
		}

		if finite(s.Spread) {
			spreadSum += s.Spread
			spreadCount++
			if s.Spread > 0 && s.Spread > stats.MaxProfitSpread {
				stats.MaxProfitSpread = s.Spread
			}
			if s.Spread < 0 && s.Spread < stats.MinAdverseSpread {
				stats.MinAdverseSpread = s.Spread
			}
		}
		if finite(s.BinanceLatencyMS) {
			latSumBinance += s.BinanceLatencyMS
			latCntBinance++
		}
		if finite(s.BtcturkLatencyMS) {
			latSumBtctk += s.BtcturkLatencyMS
			latCntBtctk++
		}
	}

	stats.DataPoints = len(samples)
	stats.AvgSpreadPct = pctSum / float64(len(samples))
	if spreadCount > 0 {
		stats.AvgSpread = spreadSum / float64(spreadCount)
	}
	if latCntBinance > 0 {
		stats.AvgBinanceLatency = latSumBinance / float64(latCntBinance)
	}
	if latCntBtctk > 0 {
		stats.AvgBtcturkLatency = latSumBtctk / float64(latCntBtctk)
	}
	// Last valid row in file order is authoritative, even if an earlier
	// row carries a later timestamp.
	stats.LastUpdate = samples[len(samples)-1].Timestamp
	return stats
}

// window returns the trailing limit samples in original order. A
// non-positive limit, or one exceeding the count, returns the whole
// sequence.
func window(samples []model.Sample, limit int) []model.Sample {
	if limit <= 0 || limit >= len(samples) {
		return samples
	}
	return samples[len(samples)-limit:]
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
