package samplelog

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"strconv"

	"spreadmon/internal/model"
)

// header is the named layout written by the collector. Event and RTT
// latency columns both exist for compatibility with older dashboards; the
// collector stores its smoothed measurement in the event column.
var header = []string{
	"timestamp",
	"binance_bid",
	"binance_ask",
	"btcturk_bid",
	"btcturk_ask",
	"spread_try",
	"spread_pct",
	"binance_event_latency_ms",
	"binance_rtt_latency_ms",
	"btcturk_event_latency_ms",
	"btcturk_rtt_latency_ms",
}

// Writer appends samples to the CSV log, creating it with a header row on
// first use. Each append opens and closes the file so the reader side
// always sees complete rows apart from, at worst, a torn trailing one.
type Writer struct {
	path string
}

// NewWriter creates a Writer for the log at path.
func NewWriter(path string) *Writer {
	return &Writer{path: path}
}

// Append writes one sample row, creating the file and header if needed.
// Non-finite numeric fields are written as empty strings, matching what
// the original collector emitted for absent measurements.
func (w *Writer) Append(s model.Sample) error {
	writeHeader := false
	if _, err := os.Stat(w.path); os.IsNotExist(err) {
		writeHeader = true
	}

	f, err := os.OpenFile(w.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open sample log: %w", err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if writeHeader {
		if err := cw.Write(header); err != nil {
			return fmt.Errorf("write sample log header: %w", err)
		}
	}
	row := []string{
		s.Timestamp.Format(model.TimestampLayout),
		formatField(s.BinanceBid, 2),
		formatField(s.BinanceAsk, 2),
		formatField(s.BtcturkBid, 2),
		formatField(s.BtcturkAsk, 2),
		formatField(s.Spread, 2),
		formatField(s.SpreadPct, 6),
		formatField(s.BinanceLatencyMS, 2),
		"",
		formatField(s.BtcturkLatencyMS, 2),
		"",
	}
	if err := cw.Write(row); err != nil {
		return fmt.Errorf("write sample row: %w", err)
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush sample log: %w", err)
	}
	return nil
}

func formatField(v float64, prec int) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', prec, 64)
}
