package api

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"spreadmon/internal/aggregate"
	"spreadmon/internal/model"
	"spreadmon/internal/samplelog"
)

// noDataSentinel is what lastUpdate reports when no valid sample exists.
// An all-zero response with this sentinel means "no data yet", which an
// operator must distinguish from a broken data source (HTTP 503).
const noDataSentinel = "no data"

// spreadPage is the JSON structure returned by GET /api/spread.
// Statistics are rendered as fixed-precision decimal strings so the chart
// does not jitter with floating-point noise: spread percentages to six
// decimal places, currency and latency values to two.
type spreadPage struct {
	Data  []samplePoint `json:"data"`
	Stats statsPayload  `json:"stats"`
}

type samplePoint struct {
	Timestamp      string   `json:"timestamp"`
	BinanceBid     *float64 `json:"binanceBid"`
	BinanceAsk     *float64 `json:"binanceAsk"`
	BtcturkBid     *float64 `json:"btcturkBid"`
	BtcturkAsk     *float64 `json:"btcturkAsk"`
	Spread         *float64 `json:"spread"`
	SpreadPct      float64  `json:"spreadPct"`
	BinanceLatency *float64 `json:"binanceLatencyMs"`
	BtcturkLatency *float64 `json:"btcturkLatencyMs"`
}

type statsPayload struct {
	AvgSpreadPct      string `json:"avgSpreadPct"`
	MaxSpreadPct      string `json:"maxSpreadPct"`
	MinSpreadPct      string `json:"minSpreadPct"`
	AvgSpread         string `json:"avgSpread"`
	MaxProfitSpread   string `json:"maxProfitSpread"`
	MinAdverseSpread  string `json:"minAdverseSpread"`
	AvgBinanceLatency string `json:"avgBinanceLatencyMs"`
	AvgBtcturkLatency string `json:"avgBtcturkLatencyMs"`
	DataPoints        int    `json:"dataPoints"`
	LastUpdate        string `json:"lastUpdate"`
}

// Controller serves the aggregation response to the presentation layer.
type Controller interface {
	Spread(c *gin.Context)
	Health(c *gin.Context)
}

type controller struct {
	reader        *samplelog.Reader
	defaultWindow int
	logger        *slog.Logger
}

// NewController creates a Controller reading from the given sample log.
// defaultWindow caps the display window when the request does not.
func NewController(reader *samplelog.Reader, defaultWindow int, logger *slog.Logger) Controller {
	return &controller{
		reader:        reader,
		defaultWindow: defaultWindow,
		logger:        logger,
	}
}

// Spread handles GET /api/spread?limit=N. The limit bounds only the
// charted window; statistics always cover the whole history. An absent
// or non-positive limit falls back to the configured default window.
func (c *controller) Spread(ctx *gin.Context) {
	limit := c.defaultWindow
	if raw := ctx.Query("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid limit: %q", raw)})
			return
		}
		if v > 0 {
			limit = v
		}
	}

	rows, err := c.reader.ReadAll()
	if err != nil {
		if errors.Is(err, samplelog.ErrSourceUnavailable) {
			c.logger.Error("sample log unavailable", "error", err)
			ctx.JSON(http.StatusServiceUnavailable, gin.H{"error": "sample log unavailable"})
			return
		}
		c.logger.Error("failed to read sample log", "error", err)
		ctx.Status(http.StatusInternalServerError)
		return
	}

	res := aggregate.Aggregate(rows, limit)
	ctx.JSON(http.StatusOK, newSpreadPage(res))
}

// Health handles GET /healthz.
func (c *controller) Health(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func newSpreadPage(res aggregate.Result) spreadPage {
	page := spreadPage{
		Data:  make([]samplePoint, len(res.Window)),
		Stats: newStatsPayload(res.Stats),
	}
	for i, s := range res.Window {
		page.Data[i] = samplePoint{
			Timestamp:      s.Timestamp.Format(model.TimestampLayout),
			BinanceBid:     finitePtr(s.BinanceBid),
			BinanceAsk:     finitePtr(s.BinanceAsk),
			BtcturkBid:     finitePtr(s.BtcturkBid),
			BtcturkAsk:     finitePtr(s.BtcturkAsk),
			Spread:         finitePtr(s.Spread),
			SpreadPct:      s.SpreadPct,
			BinanceLatency: finitePtr(s.BinanceLatencyMS),
			BtcturkLatency: finitePtr(s.BtcturkLatencyMS),
		}
	}
	return page
}

func newStatsPayload(stats model.Statistics) statsPayload {
	lastUpdate := noDataSentinel
	if !stats.LastUpdate.IsZero() {
		lastUpdate = stats.LastUpdate.Format(model.TimestampLayout)
	}
	return statsPayload{
		AvgSpreadPct:      fmt.Sprintf("%.6f", stats.AvgSpreadPct),
		MaxSpreadPct:      fmt.Sprintf("%.6f", stats.MaxSpreadPct),
		MinSpreadPct:      fmt.Sprintf("%.6f", stats.MinSpreadPct),
		AvgSpread:         fmt.Sprintf("%.2f", stats.AvgSpread),
		MaxProfitSpread:   fmt.Sprintf("%.2f", stats.MaxProfitSpread),
		MinAdverseSpread:  fmt.Sprintf("%.2f", stats.MinAdverseSpread),
		AvgBinanceLatency: fmt.Sprintf("%.2f", stats.AvgBinanceLatency),
		AvgBtcturkLatency: fmt.Sprintf("%.2f", stats.AvgBtcturkLatency),
		DataPoints:        stats.DataPoints,
		LastUpdate:        lastUpdate,
	}
}

// finitePtr maps non-finite values to JSON null; encoding a bare NaN
// would fail the whole response.
func finitePtr(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
