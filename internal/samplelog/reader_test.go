package samplelog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeLog(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "spread_log.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestReader_MissingFileIsSourceUnavailable(t *testing.T) {
	r := NewReader(filepath.Join(t.TempDir(), "nope.csv"), "auto")

	rows, err := r.ReadAll()

	assert.Nil(t, rows)
	assert.ErrorIs(t, err, ErrSourceUnavailable)
}

func TestReader_NamedLayout(t *testing.T) {
	path := writeLog(t, `timestamp,binance_bid,binance_ask,btcturk_bid,btcturk_ask,spread_try,spread_pct,binance_event_latency_ms,binance_rtt_latency_ms,btcturk_event_latency_ms,btcturk_rtt_latency_ms
2025-03-01 10:00:00.000,95000.10,95000.20,95012.00,95013.50,11.80,0.012421,23.10,,48.70,
2025-03-01 10:00:00.500,95001.00,95001.10,95010.00,95011.00,8.90,0.009368,,51.20,,62.00
`)
	r := NewReader(path, "auto")

	rows, err := r.ReadAll()

	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, LayoutNamed, rows[0].Layout)
	assert.Equal(t, "0.012421", rows[0].Get("spread_pct"))
	assert.Equal(t, "", rows[0].Get("binance_rtt_latency_ms"))
	assert.Equal(t, "51.20", rows[1].Get("binance_rtt_latency_ms"))
}

func TestReader_PositionalLayoutSniffed(t *testing.T) {
	path := writeLog(t, `2025-03-01 10:00:00.000,95000.10,95000.20,95012.00,95013.50,11.80,0.012421,23.10,48.70
2025-03-01 10:00:00.500,95001.00,95001.10,95010.00,95011.00,8.90,0.009368,24.00,49.00
`)
	r := NewReader(path, "auto")

	rows, err := r.ReadAll()

	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, LayoutPositional, rows[0].Layout)
	assert.Len(t, rows[0].Fields, 9)
	assert.Equal(t, "2025-03-01 10:00:00.000", rows[0].Fields[0])
}

func TestReader_ForcedLayoutOverridesSniffing(t *testing.T) {
	// First row looks like a header but the caller knows better: a
	// positional file whose first row happens to be garbage.
	path := writeLog(t, `garbage,row,here
2025-03-01 10:00:00.000,95000.10,95000.20,95012.00,95013.50,11.80,0.012421,23.10,48.70
`)
	r := NewReader(path, "positional")

	rows, err := r.ReadAll()

	require.NoError(t, err)
	// The garbage row is kept; the validity filter downstream drops it.
	require.Len(t, rows, 2)
	assert.Equal(t, LayoutPositional, rows[0].Layout)
}

func TestReader_TornTrailingRowKept(t *testing.T) {
	// A concurrent append may leave a partial last row; it must come
	// back short rather than crash the read.
	path := writeLog(t, `timestamp,binance_bid,binance_ask,btcturk_bid,btcturk_ask,spread_try,spread_pct,binance_event_latency_ms,binance_rtt_latency_ms,btcturk_event_latency_ms,btcturk_rtt_latency_ms
2025-03-01 10:00:00.000,95000.10,95000.20,95012.00,95013.50,11.80,0.012421,23.10,,48.70,
2025-03-01 10:00:00.500,95001.00`)
	r := NewReader(path, "auto")

	rows, err := r.ReadAll()

	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "", rows[1].Get("spread_pct"))
}

func TestReader_EmptyFile(t *testing.T) {
	r := NewReader(writeLog(t, ""), "auto")

	rows, err := r.ReadAll()

	require.NoError(t, err)
	assert.Empty(t, rows)
}
