package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"drreport/internal/domain/models"
	"drreport/internal/repository"
	"drreport/internal/service/registry"
	xlogger "drreport/pkg/logger"
)

type nopMetrics struct{}

func (nopMetrics) RecordFetch(ticker, result string)            {}
func (nopMetrics) RecordReport(result string)                   {}
func (nopMetrics) RecordCacheLookup(outcome string)             {}
func (nopMetrics) RecordError(kind string)                      {}
func (nopMetrics) RecordLastClose(ticker string, price float64) {}
func (nopMetrics) RecordLatency(op string, seconds float64)     {}

func testHandler(t *testing.T, store *repository.MemoryArtifactStore) *ReportsEchoHandler {
	t.Helper()
	l, err := xlogger.New(&xlogger.Config{Level: "disabled", Format: "json", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	reg := registry.NewStatic(
		[]models.Ticker{{CanonicalID: "DBS19", Active: true}},
		[]models.SymbolAlias{{CanonicalID: "DBS19", SymbolValue: "D05.SI", SymbolType: models.SymbolProvider}},
	)
	h := NewReportsEchoHandler(l, reg, store, nil, nopMetrics{}, nil, time.Minute, time.UTC)
	h.SetClock(func() time.Time {
		return time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	})
	return h
}

func getReport(t *testing.T, h *ReportsEchoHandler, ticker string) (int, models.ReportResponse) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/report?ticker="+ticker, nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.GetReport(c); err != nil {
		t.Fatalf("get report: %v", err)
	}

	var envelope struct {
		Status int                   `json:"status"`
		Data   models.ReportResponse `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return envelope.Status, envelope.Data
}

func TestGetReportNotReadyStates(t *testing.T) {
	store := repository.NewMemoryArtifactStore(time.Hour)
	h := testHandler(t, store)
	ctx := context.Background()

	// Absent row.
	status, body := getReport(t, h, "DBS19")
	if status != http.StatusOK || body.Ready {
		t.Fatalf("absent: want 200 not ready, got %d %+v", status, body)
	}
	if body.BusinessDate != "2026-01-10" {
		t.Fatalf("business date: %s", body.BusinessDate)
	}

	// Pending row reads the same.
	if ok, _ := store.Reserve(ctx, "DBS19", "2026-01-10"); !ok {
		t.Fatalf("reserve failed")
	}
	if status, body = getReport(t, h, "DBS19"); status != http.StatusOK || body.Ready {
		t.Fatalf("pending: want 200 not ready, got %d %+v", status, body)
	}

	// Failed row too: no failure detail crosses this boundary.
	if err := store.MarkFailed(ctx, "DBS19", "2026-01-10", "generator exploded"); err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	status, body = getReport(t, h, "DBS19")
	if status != http.StatusOK || body.Ready {
		t.Fatalf("failed: want 200 not ready, got %d %+v", status, body)
	}
	if body.Report != "" {
		t.Fatalf("failure detail leaked: %q", body.Report)
	}
}

func TestGetReportFound(t *testing.T) {
	store := repository.NewMemoryArtifactStore(time.Hour)
	h := testHandler(t, store)
	ctx := context.Background()

	if ok, _ := store.Reserve(ctx, "DBS19", "2026-01-10"); !ok {
		t.Fatalf("reserve failed")
	}
	if err := store.MarkComputed(ctx, "DBS19", "2026-01-10", "daily analysis"); err != nil {
		t.Fatalf("mark computed: %v", err)
	}

	status, body := getReport(t, h, "DBS19")
	if status != http.StatusOK || !body.Ready {
		t.Fatalf("want ready, got %d %+v", status, body)
	}
	if body.Report != "daily analysis" {
		t.Fatalf("payload: %q", body.Report)
	}
}

func TestGetReportRequiresTicker(t *testing.T) {
	h := testHandler(t, repository.NewMemoryArtifactStore(time.Hour))

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/report", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.GetReport(c); err != nil {
		t.Fatalf("get report: %v", err)
	}
	var envelope struct {
		Status int `json:"status"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if envelope.Status != http.StatusBadRequest {
		t.Fatalf("want 400 envelope, got %d", envelope.Status)
	}
}

func TestAdminStatusExposesDetail(t *testing.T) {
	store := repository.NewMemoryArtifactStore(time.Hour)
	h := testHandler(t, store)
	ctx := context.Background()

	if ok, _ := store.Reserve(ctx, "DBS19", "2026-01-10"); !ok {
		t.Fatalf("reserve failed")
	}
	if err := store.MarkFailed(ctx, "DBS19", "2026-01-10", "no raw data"); err != nil {
		t.Fatalf("mark failed: %v", err)
	}

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/admin/status?ticker=DBS19&date=2026-01-10", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.AdminStatus(c); err != nil {
		t.Fatalf("admin status: %v", err)
	}
	var envelope struct {
		Status int                   `json:"status"`
		Data   models.ReportArtifact `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if envelope.Data.Status != models.StatusFailed || envelope.Data.Reason != "no raw data" {
		t.Fatalf("operators should see the raw row: %+v", envelope.Data)
	}
}
