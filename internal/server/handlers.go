package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"crypto_dash/internal/chart"
	"crypto_dash/internal/domain"
	"crypto_dash/internal/event"
	"crypto_dash/internal/view"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type handlers struct {
	store     StateStore
	selectors *view.Selectors
	charts    ChartProvider
	icons     IconProvider
	logger    *zap.Logger
}

// ActionResponse is returned after a client action has been reduced.
type ActionResponse struct {
	Seq  uint64         `json:"seq"`
	View view.ViewModel `json:"view"`
}

// ChartResponse is a series plus an optional moving-average overlay.
// SMA[i] belongs to Prices[i+SMAOffset].
type ChartResponse struct {
	ID        string    `json:"id"`
	Days      int       `json:"days"`
	Prices    []float64 `json:"prices"`
	Labels    []string  `json:"labels"`
	SMA       []float64 `json:"sma,omitempty"`
	SMAOffset int       `json:"smaOffset,omitempty"`
}

func abort(c *gin.Context, status int, err error) {
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}

func (h *handlers) getView(c *gin.Context) {
	c.JSON(http.StatusOK, h.selectors.ViewModel(h.store.State()))
}

func (h *handlers) getState(c *gin.Context) {
	st, seq := h.store.Snapshot()
	c.JSON(http.StatusOK, gin.H{"seq": seq, "state": st})
}

func (h *handlers) postAction(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		abort(c, http.StatusBadRequest, err)
		return
	}

	a, err := event.Decode(body)
	if err != nil {
		abort(c, http.StatusBadRequest, err)
		return
	}
	if !event.IsUserAction(a.ActionType()) {
		abort(c, http.StatusBadRequest, errors.New("action "+string(a.ActionType())+" cannot be dispatched by clients"))
		return
	}

	st, seq, err := h.store.DispatchWait(c.Request.Context(), a)
	if err != nil {
		status := http.StatusServiceUnavailable
		if errors.Is(err, context.Canceled) {
			status = 499 // client went away
		}
		abort(c, status, err)
		return
	}

	h.logger.Debug("Action accepted", zap.String("type", string(a.ActionType())))
	c.JSON(http.StatusOK, ActionResponse{Seq: seq, View: h.selectors.ViewModel(st)})
}

func parseDays(c *gin.Context) (int, error) {
	raw := c.DefaultQuery("days", strconv.Itoa(chart.DefaultDays))
	days, err := strconv.Atoi(raw)
	if err != nil || !chart.ValidPeriod(days) {
		return 0, chart.ErrInvalidPeriod
	}
	return days, nil
}

func (h *handlers) getChart(c *gin.Context) {
	days, err := parseDays(c)
	if err != nil {
		abort(c, http.StatusBadRequest, err)
		return
	}
	window := 0
	if raw := c.Query("sma"); raw != "" {
		window, err = strconv.Atoi(raw)
		if err != nil || window < 0 {
			abort(c, http.StatusBadRequest, errors.New("sma must be a non-negative integer"))
			return
		}
	}

	id := c.Param("id")
	series, err := h.charts.Chart(c.Request.Context(), id, days)
	if err != nil {
		abort(c, chartErrorStatus(err), err)
		return
	}

	resp := ChartResponse{ID: id, Days: days, Prices: series.Prices, Labels: series.Labels}
	if window > 0 {
		resp.SMA = chart.MovingAverage(series.Prices, window)
		resp.SMAOffset = window - 1
	}
	c.JSON(http.StatusOK, resp)
}

func (h *handlers) getCharts(c *gin.Context) {
	days, err := parseDays(c)
	if err != nil {
		abort(c, http.StatusBadRequest, err)
		return
	}

	var ids []string
	for _, id := range strings.Split(c.Query("ids"), ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		abort(c, http.StatusBadRequest, errors.New("ids is required"))
		return
	}

	charts, err := h.charts.Charts(c.Request.Context(), ids, days)
	if err != nil {
		abort(c, chartErrorStatus(err), err)
		return
	}
	c.JSON(http.StatusOK, charts)
}

func chartErrorStatus(err error) int {
	var apiErr *domain.APIError
	var netErr *domain.NetworkError
	switch {
	case errors.Is(err, chart.ErrInvalidPeriod):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrUnknownAsset):
		return http.StatusNotFound
	case errors.As(err, &apiErr), errors.As(err, &netErr), errors.Is(err, domain.ErrMalformedPayload):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func (h *handlers) getIcon(c *gin.Context) {
	path, ok := h.icons.Path(c.Param("id"))
	if !ok {
		abort(c, http.StatusNotFound, errors.New("icon not cached"))
		return
	}
	c.File(path)
}
