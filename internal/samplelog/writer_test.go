package samplelog

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spreadmon/internal/model"
)

func sampleAt(ts time.Time) model.Sample {
	return model.Sample{
		Timestamp:        ts,
		BinanceBid:       95000.10,
		BinanceAsk:       95000.20,
		BtcturkBid:       95012.00,
		BtcturkAsk:       95013.50,
		Spread:           11.80,
		SpreadPct:        0.012421,
		BinanceLatencyMS: 23.1,
		BtcturkLatencyMS: math.NaN(),
	}
}

func TestWriter_HeaderWrittenOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spread_log.csv")
	w := NewWriter(path)
	ts := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, w.Append(sampleAt(ts)))
	require.NoError(t, w.Append(sampleAt(ts.Add(500*time.Millisecond))))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(string(content), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "timestamp,binance_bid"))
	assert.True(t, strings.HasPrefix(lines[1], "2025-03-01 10:00:00.000,"))
}

func TestWriter_AbsentLatencyWrittenEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spread_log.csv")
	w := NewWriter(path)

	require.NoError(t, w.Append(sampleAt(time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC))))

	r := NewReader(path, "auto")
	rows, err := r.ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "23.10", rows[0].Get("binance_event_latency_ms"))
	assert.Equal(t, "", rows[0].Get("btcturk_event_latency_ms"))
	assert.Equal(t, "0.012421", rows[0].Get("spread_pct"))
}

func TestWriter_RoundTripThroughReader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spread_log.csv")
	w := NewWriter(path)
	ts := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, w.Append(sampleAt(ts)))

	rows, err := NewReader(path, "auto").ReadAll()

	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, LayoutNamed, rows[0].Layout)
	assert.Equal(t, ts.Format(model.TimestampLayout), rows[0].Get("timestamp"))
	assert.Equal(t, "95012.00", rows[0].Get("btcturk_bid"))
}
