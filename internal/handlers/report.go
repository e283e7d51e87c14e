package handlers

import (
	"net/http"

	"proctor-go/internal/scoring"
	"proctor-go/internal/session"

	"github.com/gin-gonic/gin"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"go.uber.org/zap"
)

// ReportHandler serves the reviewer-facing integrity report: which signal
// classes contributed to the score, including insufficient-data markers,
// plus an optional score-over-time chart.
type ReportHandler struct {
	log        *zap.Logger
	manager    *session.Manager
	aggregator *scoring.Aggregator
}

func NewReportHandler(log *zap.Logger, manager *session.Manager, aggregator *scoring.Aggregator) *ReportHandler {
	return &ReportHandler{log: log, manager: manager, aggregator: aggregator}
}

func (h *ReportHandler) Show(c *gin.Context) {
	sessionID := c.Param("id")
	current, err := h.manager.Get(c.Request.Context(), sessionID)
	if err != nil {
		respondSessionError(c, h.manager, sessionID, err)
		return
	}

	result, err := h.aggregator.Recompute(c.Request.Context(), sessionID)
	if err != nil {
		h.log.Error("Report recompute failed", zap.String("sessionID", sessionID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to build report"})
		return
	}

	if c.Query("chart") == "1" {
		chart := generateScoreChart(sessionID, result.Timeline)
		c.Header("Content-Type", "text/html; charset=utf-8")
		if err := chart.Render(c.Writer); err != nil {
			h.log.Error("Chart render failed", zap.Error(err))
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"sessionId":        current.ID,
		"status":           current.Status,
		"integrityScore":   current.IntegrityScore,
		"flaggedForReview": current.FlaggedForReview,
		"breakdown":        result.Breakdown,
		"timeline":         result.Timeline,
	})
}

func generateScoreChart(sessionID string, timeline []scoring.ScorePoint) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    "Integrity Score Over Time",
			Subtitle: sessionID,
		}),
		charts.WithXAxisOpts(opts.XAxis{
			Type: "time",
		}),
		charts.WithYAxisOpts(opts.YAxis{
			Type:  "value",
			Scale: opts.Bool(true),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider"}),
	)

	items := make([]opts.LineData, 0, len(timeline))
	for _, point := range timeline {
		items = append(items, opts.LineData{Value: []interface{}{point.At, point.Score}})
	}

	line.AddSeries("integrity score", items).SetSeriesOptions(charts.WithLineStyleOpts(opts.LineStyle{Width: 2}))
	return line
}
