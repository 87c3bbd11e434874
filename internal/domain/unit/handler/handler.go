// Package handler exposes the unit dashboard and admin actions over HTTP.
package handler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gocarina/gocsv"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/radiology-revenue-tracker/internal/domain/common"
	"github.com/FACorreiaa/radiology-revenue-tracker/internal/domain/report/ingest"
	"github.com/FACorreiaa/radiology-revenue-tracker/internal/domain/unit"
	"github.com/FACorreiaa/radiology-revenue-tracker/internal/domain/unit/service"
	"github.com/FACorreiaa/radiology-revenue-tracker/pkg/money"
)

// GridSource fetches a report grid from a spreadsheet service.
type GridSource interface {
	Fetch(ctx context.Context, spreadsheetID, readRange string) ([][]any, error)
}

// UnitHandler serves the /units routes.
type UnitHandler struct {
	svc            *service.UnitService
	sheets         GridSource // Optional: nil disables Google Sheets uploads
	maxUploadBytes int64
	logger         *slog.Logger
}

// NewUnitHandler constructs the handler. maxUploadBytes caps report files.
func NewUnitHandler(svc *service.UnitService, maxUploadBytes int64, logger *slog.Logger) *UnitHandler {
	return &UnitHandler{svc: svc, maxUploadBytes: maxUploadBytes, logger: logger}
}

// WithSheets enables uploads from Google Sheets
func (h *UnitHandler) WithSheets(src GridSource) *UnitHandler {
	h.sheets = src
	return h
}

// RegisterRoutes mounts the routes. Mutating routes go through admin.
func (h *UnitHandler) RegisterRoutes(r *gin.RouterGroup, admin gin.HandlerFunc) {
	units := r.Group("/units")
	units.GET("", h.List)
	units.GET("/:unit", h.Get)
	units.GET("/:unit/history.csv", h.HistoryCSV)

	protected := units.Group("/:unit", admin)
	protected.POST("/reports", h.UploadReport)
	protected.GET("/reports", h.ListReports)
	protected.GET("/reports/:id", h.DownloadReport)
	protected.DELETE("/reports/:id", h.DeleteReport)
	protected.POST("/reports/sheets", h.UploadSheet)
	protected.PUT("/target", h.SetTarget)
	protected.DELETE("/data", h.ClearData)
}

// List returns every configured unit with its ledger.
func (h *UnitHandler) List(c *gin.Context) {
	summaries, err := h.svc.Overview(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}

	views := make([]stateView, 0, len(summaries))
	for _, s := range summaries {
		views = append(views, newStateView(s.Unit, s.State))
	}
	c.JSON(http.StatusOK, gin.H{"units": views})
}

// Get returns the ledger of one unit.
func (h *UnitHandler) Get(c *gin.Context) {
	name := c.Param("unit")
	state, err := h.svc.GetState(c.Request.Context(), name)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newStateView(name, *state))
}

type historyRow struct {
	Month  string `csv:"month"`
	Amount string `csv:"amount"`
}

// HistoryCSV exports the month history of a unit.
func (h *UnitHandler) HistoryCSV(c *gin.Context) {
	name := c.Param("unit")
	state, err := h.svc.GetState(c.Request.Context(), name)
	if err != nil {
		h.writeError(c, err)
		return
	}

	rows := make([]*historyRow, 0, len(state.History))
	for _, p := range state.History {
		rows = append(rows, &historyRow{Month: p.Label, Amount: p.Amount.StringFixed(2)})
	}

	var out bytes.Buffer
	if err := gocsv.Marshal(&rows, &out); err != nil {
		h.writeError(c, fmt.Errorf("failed to encode history: %w", err))
		return
	}

	c.Header("Content-Disposition", attachment("historico-"+name+".csv"))
	c.Data(http.StatusOK, "text/csv; charset=utf-8", out.Bytes())
}

// UploadReport accepts a multipart report file in the "file" field.
func (h *UnitHandler) UploadReport(c *gin.Context) {
	mode, err := unit.ParseMode(c.Query("mode"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	if h.maxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)
	}

	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.writeError(c, fmt.Errorf("%w: limit is %d bytes", common.ErrFileTooLarge, tooLarge.Limit))
			return
		}
		h.writeError(c, fmt.Errorf("%w: missing report file: %w", common.ErrInvalidRequest, err))
		return
	}

	f, err := fh.Open()
	if err != nil {
		h.writeError(c, fmt.Errorf("failed to open upload: %w", err))
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		h.writeError(c, fmt.Errorf("failed to read upload: %w", err))
		return
	}

	result, err := h.svc.UploadReport(c.Request.Context(), c.Param("unit"), fh.Filename, data, mode)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newUploadView(result))
}

// ListReports lists the archived uploads of a unit.
func (h *UnitHandler) ListReports(c *gin.Context) {
	files, err := h.svc.Reports(c.Request.Context(), c.Param("unit"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reports": files})
}

// DownloadReport streams one archived upload back.
func (h *UnitHandler) DownloadReport(c *gin.Context) {
	fileID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.writeError(c, fmt.Errorf("%w: report id: %w", common.ErrInvalidRequest, err))
		return
	}

	rc, info, err := h.svc.OpenReport(c.Request.Context(), c.Param("unit"), fileID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	defer rc.Close()

	c.DataFromReader(http.StatusOK, info.Size, info.ContentType, rc, map[string]string{
		"Content-Disposition": attachment(info.Name),
	})
}

// DeleteReport removes one archived upload.
func (h *UnitHandler) DeleteReport(c *gin.Context) {
	fileID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.writeError(c, fmt.Errorf("%w: report id: %w", common.ErrInvalidRequest, err))
		return
	}

	if err := h.svc.DeleteReport(c.Request.Context(), c.Param("unit"), fileID); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type sheetRequest struct {
	SpreadsheetID string `json:"spreadsheetId"`
	Range         string `json:"range"`
	Mode          string `json:"mode"`
}

// UploadSheet pulls the report from a Google spreadsheet.
func (h *UnitHandler) UploadSheet(c *gin.Context) {
	if h.sheets == nil {
		h.writeError(c, fmt.Errorf("%w: google sheets", common.ErrNotConfigured))
		return
	}

	var req sheetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.writeError(c, fmt.Errorf("%w: %w", common.ErrInvalidRequest, err))
		return
	}
	mode, err := unit.ParseMode(req.Mode)
	if err != nil {
		h.writeError(c, err)
		return
	}

	grid, err := h.sheets.Fetch(c.Request.Context(), req.SpreadsheetID, req.Range)
	if err != nil {
		h.writeError(c, err)
		return
	}

	result, err := h.svc.UploadGrid(c.Request.Context(), c.Param("unit"), grid, mode)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newUploadView(result))
}

type targetRequest struct {
	// Accepts a JSON number or a decimal string.
	Target decimal.Decimal `json:"target"`
}

// SetTarget changes the financial target of a unit.
func (h *UnitHandler) SetTarget(c *gin.Context) {
	var req targetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.writeError(c, fmt.Errorf("%w: %w", common.ErrInvalidTarget, err))
		return
	}

	name := c.Param("unit")
	result, err := h.svc.SetTarget(c.Request.Context(), name, req.Target)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newActionView(result))
}

// ClearData resets the running total and history of a unit.
func (h *UnitHandler) ClearData(c *gin.Context) {
	name := c.Param("unit")
	result, err := h.svc.ClearData(c.Request.Context(), name)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newActionView(result))
}

func (h *UnitHandler) writeError(c *gin.Context, err error) {
	status := common.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("unit request failed",
			slog.String("path", c.FullPath()),
			slog.String("unit", c.Param("unit")),
			slog.Any("error", err),
		)
	} else {
		h.logger.Debug("unit request rejected",
			slog.String("path", c.FullPath()),
			slog.Any("error", err),
		)
	}
	c.AbortWithStatusJSON(status, gin.H{"error": common.UserMessage(err)})
}

// Views render money as fixed two-decimal strings plus the BRL display text.

type amountView struct {
	Value   string `json:"value"`
	Display string `json:"display"`
}

func newAmountView(d decimal.Decimal) amountView {
	return amountView{Value: d.StringFixed(2), Display: money.FormatBRL(d)}
}

type historyView struct {
	Month  string     `json:"month"`
	Amount amountView `json:"amount"`
}

type stateView struct {
	Unit          string        `json:"unit"`
	Target        amountView    `json:"target"`
	CurrentAmount amountView    `json:"currentAmount"`
	Progress      string        `json:"progress"`
	History       []historyView `json:"history"`
	UpdatedAt     *time.Time    `json:"updatedAt,omitempty"`
}

func newStateView(name string, s unit.State) stateView {
	history := make([]historyView, 0, len(s.History))
	for _, p := range s.History {
		history = append(history, historyView{Month: p.Label, Amount: newAmountView(p.Amount)})
	}

	v := stateView{
		Unit:          name,
		Target:        newAmountView(s.Target),
		CurrentAmount: newAmountView(s.CurrentAmount),
		Progress:      unit.Progress(s).StringFixed(2),
		History:       history,
	}
	if !s.UpdatedAt.IsZero() {
		at := s.UpdatedAt
		v.UpdatedAt = &at
	}
	return v
}

type actionView struct {
	stateView
	Warning string `json:"warning,omitempty"`
}

func newActionView(r *service.ActionResult) actionView {
	return actionView{stateView: newStateView(r.Unit, r.State), Warning: r.Warning}
}

type rankedView struct {
	Name   string     `json:"name"`
	Amount amountView `json:"amount"`
}

func newRankedViews(ranked []ingest.RankedAmount) []rankedView {
	views := make([]rankedView, 0, len(ranked))
	for _, r := range ranked {
		views = append(views, rankedView{Name: r.Name, Amount: newAmountView(r.Amount)})
	}
	return views
}

type kpiView struct {
	TotalRevenue  amountView `json:"totalRevenue"`
	AverageTicket amountView `json:"averageTicket"`
}

type uploadView struct {
	State                 stateView            `json:"state"`
	KPIs                  kpiView              `json:"kpis"`
	BatchTotal            amountView           `json:"batchTotal"`
	ProcedureCount        int                  `json:"procedureCount"`
	RevenueByProfessional []rankedView         `json:"revenueByProfessional"`
	TopProcedures         []rankedView         `json:"topProcedures"`
	Stats                 ingest.SanitizeStats `json:"stats"`
	Warning               string               `json:"warning,omitempty"`
}

func newUploadView(r *service.UploadResult) uploadView {
	return uploadView{
		State: newStateView(r.Unit, r.State),
		KPIs: kpiView{
			TotalRevenue:  newAmountView(r.KPIs.TotalRevenue),
			AverageTicket: newAmountView(r.KPIs.AverageTicket),
		},
		BatchTotal:            newAmountView(r.Batch.TotalRevenue),
		ProcedureCount:        r.Batch.ProcedureCount,
		RevenueByProfessional: newRankedViews(r.Batch.RevenueByProfessional),
		TopProcedures:         newRankedViews(r.Batch.TopProcedures),
		Stats:                 r.Stats,
		Warning:               r.Warning,
	}
}
