package api

import (
	"context"
	"time"

	"github.com/labstack/echo/v4"

	models "drreport/internal/domain/models"
	domrepo "drreport/internal/domain/repository"
	"drreport/internal/usecase"
	"drreport/pkg/cache"
	xhttp "drreport/pkg/http"
	xlogger "drreport/pkg/logger"
	"drreport/pkg/util"
)

// ReportsEchoHandler serves the read path. It only ever looks artifacts up;
// nothing reachable from here can start a computation inline with a request.
type ReportsEchoHandler struct {
	logger   *xlogger.Logger
	registry domrepo.SymbolRegistry
	store    domrepo.ArtifactStore
	orch     *usecase.Orchestrator
	metrics  domrepo.Metrics
	readC    cache.Service
	cacheTTL time.Duration
	loc      *time.Location
	now      func() time.Time
}

// NewReportsEchoHandler creates the reports handler. readC may be nil to
// serve straight from the artifact store.
func NewReportsEchoHandler(
	logger *xlogger.Logger,
	registry domrepo.SymbolRegistry,
	store domrepo.ArtifactStore,
	orch *usecase.Orchestrator,
	metrics domrepo.Metrics,
	readC cache.Service,
	cacheTTL time.Duration,
	loc *time.Location,
) *ReportsEchoHandler {
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &ReportsEchoHandler{
		logger:   logger,
		registry: registry,
		store:    store,
		orch:     orch,
		metrics:  metrics,
		readC:    readC,
		cacheTTL: cacheTTL,
		loc:      loc,
		now:      time.Now,
	}
}

// SetClock overrides the time source. Test use only.
func (h *ReportsEchoHandler) SetClock(now func() time.Time) { h.now = now }

func (h *ReportsEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/report", h.GetReport)
	g.GET("/tickers", h.ListTickers)
	g.GET("/health", h.Health)
	g.GET("/admin/status", h.AdminStatus)
	g.POST("/admin/run", h.AdminRun)
}

// GetReport answers Found or NotReady. Pending, failed and absent rows are
// indistinguishable on purpose; operators use /api/admin/status for detail.
func (h *ReportsEchoHandler) GetReport(c echo.Context) error {
	req := &models.ReportRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	businessDate := util.BusinessDate(h.now(), h.loc)
	resp := &models.ReportResponse{Ticker: req.Ticker, BusinessDate: businessDate}

	ctx := c.Request().Context()
	cacheKey := "read:" + req.Ticker + ":" + businessDate
	if h.readC != nil {
		var payload string
		if err := h.readC.Get(ctx, cacheKey, &payload); err == nil && payload != "" {
			h.metrics.RecordCacheLookup("hit")
			resp.Ready = true
			resp.Report = payload
			return xhttp.SuccessResponse(c, resp)
		}
	}

	a, err := h.store.Lookup(ctx, req.Ticker, businessDate)
	if err != nil {
		h.logger.Error("report lookup error",
			xlogger.String("ticker", req.Ticker),
			xlogger.String("business_date", businessDate),
			xlogger.Error(err),
		)
		return xhttp.AppErrorResponse(c, xhttp.InternalError("report lookup failed").WithError(err))
	}
	if a == nil {
		h.metrics.RecordCacheLookup("not_ready")
		return xhttp.SuccessResponse(c, resp)
	}

	h.metrics.RecordCacheLookup("store_hit")
	if h.readC != nil {
		if err := h.readC.Set(ctx, cacheKey, a.Payload, h.cacheTTL); err != nil {
			h.logger.Warn("read cache set failed", xlogger.Error(err))
		}
	}
	resp.Ready = true
	resp.Report = a.Payload
	return xhttp.SuccessResponse(c, resp)
}

func (h *ReportsEchoHandler) ListTickers(c echo.Context) error {
	tickers := h.registry.ListActive()
	return xhttp.ListResponse(c, tickers, int64(len(tickers)))
}

func (h *ReportsEchoHandler) Health(c echo.Context) error {
	return xhttp.SuccessResponse(c, map[string]interface{}{
		"status": "ok",
		"time":   h.now().UTC().Format(time.RFC3339),
	})
}

// AdminStatus exposes the raw artifact row, pending/failed detail included.
func (h *ReportsEchoHandler) AdminStatus(c echo.Context) error {
	req := &models.StatusRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	date := req.Date
	if date == "" {
		date = util.BusinessDate(h.now(), h.loc)
	}

	row, err := h.store.Status(c.Request().Context(), req.Ticker, date)
	if err != nil {
		return xhttp.AppErrorResponse(c, xhttp.InternalError("status read failed").WithError(err))
	}
	if row == nil {
		return xhttp.NotFoundResponse(c, map[string]string{
			"ticker":        req.Ticker,
			"business_date": date,
		})
	}
	return xhttp.SuccessResponse(c, row)
}

// AdminRun triggers a pipeline run and returns immediately.
func (h *ReportsEchoHandler) AdminRun(c echo.Context) error {
	req := &models.RunRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if h.orch == nil {
		return xhttp.AppErrorResponse(c, xhttp.InternalError("orchestrator not available"))
	}

	go func(tickers []string) {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
		defer cancel()
		if _, err := h.orch.RunFor(ctx, tickers); err != nil {
			h.logger.Error("manual run failed", xlogger.Error(err))
		}
	}(req.Tickers)

	return xhttp.AcceptedResponse(c, map[string]interface{}{
		"started": true,
		"tickers": req.Tickers,
	})
}
