package model

import (
	"math"
	"time"
)

// TimestampLayout is the format the collector writes to the sample log.
const TimestampLayout = "2006-01-02 15:04:05.000"

// timestampLayouts are the formats accepted when reading the log back.
// Older collector builds wrote whole-second timestamps.
var timestampLayouts = []string{
	TimestampLayout,
	"2006-01-02 15:04:05",
	time.RFC3339,
}

// ParseTimestamp parses a sample-log timestamp, accepting the current and
// historical formats. Returns the zero time and an error when none match.
func ParseTimestamp(s string) (time.Time, error) {
	var err error
	for _, layout := range timestampLayouts {
		var t time.Time
		if t, err = time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, err
}

// PriceTick represents a single price update from an exchange.
type PriceTick struct {
	Exchange  string
	Pair      string
	Bid       float64
	Ask       float64
	LatencyMS float64 // NaN when the feed provided no latency measurement
}

// Sample is one observed spread tick as stored in the sample log.
// Latency fields are NaN when the measurement was absent for that row;
// such a sample still counts toward every aggregate that does not depend
// on the missing field.
type Sample struct {
	Timestamp        time.Time
	BinanceBid       float64
	BinanceAsk       float64
	BtcturkBid       float64
	BtcturkAsk       float64
	Spread           float64 // btcturk bid - binance ask, in quote currency
	SpreadPct        float64 // spread normalized to a percentage of binance ask
	BinanceLatencyMS float64
	BtcturkLatencyMS float64
}

// Valid reports whether the sample may enter the aggregates: the timestamp
// parsed and the spread percentage is a finite number.
func (s Sample) Valid() bool {
	if s.Timestamp.IsZero() {
		return false
	}
	return !math.IsNaN(s.SpreadPct) && !math.IsInf(s.SpreadPct, 0)
}

// Statistics is the whole-history summary recomputed on every request.
// It is always derived from the full valid sequence, never from the
// capped display window.
type Statistics struct {
	AvgSpreadPct      float64
	MaxSpreadPct      float64
	MinSpreadPct      float64
	AvgSpread         float64
	MaxProfitSpread   float64 // max spread over samples with spread > 0; zero if none
	MinAdverseSpread  float64 // min spread over samples with spread < 0; zero if none
	AvgBinanceLatency float64 // mean over samples with a finite binance latency
	AvgBtcturkLatency float64
	DataPoints        int
	LastUpdate        time.Time // zero when no valid sample exists
}
