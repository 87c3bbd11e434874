// Package service runs the upload cycle of a unit: extract the report,
// sanitize and aggregate it, fold it into the ledger and persist the result.
package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/FACorreiaa/radiology-revenue-tracker/internal/domain/common"
	"github.com/FACorreiaa/radiology-revenue-tracker/internal/domain/report/ingest"
	"github.com/FACorreiaa/radiology-revenue-tracker/internal/domain/report/parser"
	"github.com/FACorreiaa/radiology-revenue-tracker/internal/domain/unit"
	"github.com/FACorreiaa/radiology-revenue-tracker/internal/domain/unit/repository"
	"github.com/FACorreiaa/radiology-revenue-tracker/pkg/metrics"
	"github.com/FACorreiaa/radiology-revenue-tracker/pkg/storage"
)

const tracerName = "github.com/FACorreiaa/radiology-revenue-tracker/internal/domain/unit/service"

// KPIs are the two headline figures shown after an upload.
type KPIs struct {
	// TotalRevenue is the accumulated amount of the unit, not the batch total.
	TotalRevenue  decimal.Decimal `json:"totalRevenue"`
	AverageTicket decimal.Decimal `json:"averageTicket"`
}

// UploadResult is everything the dashboard needs after one upload.
type UploadResult struct {
	Unit    string                `json:"unit"`
	State   unit.State            `json:"state"`
	Batch   ingest.BatchAggregate `json:"batch"`
	KPIs    KPIs                  `json:"kpis"`
	Stats   ingest.SanitizeStats  `json:"stats"`
	Warning string                `json:"warning,omitempty"`
}

// ActionResult is the ledger after an admin action. Warning is set when the
// change was kept in the local cache only.
type ActionResult struct {
	Unit    string     `json:"unit"`
	State   unit.State `json:"state"`
	Warning string     `json:"warning,omitempty"`
}

// UnitSummary pairs a unit with its current ledger.
type UnitSummary struct {
	Unit  string     `json:"unit"`
	State unit.State `json:"state"`
}

// Config holds the business settings of the service.
type Config struct {
	Units         []string
	DefaultTarget decimal.Decimal
	Location      *time.Location
}

// UnitService orchestrates uploads and admin actions over a unit store.
type UnitService struct {
	store         repository.Store
	archive       storage.Storage // Optional: nil disables archiving
	metrics       *metrics.Metrics
	units         []string
	defaultTarget decimal.Decimal
	loc           *time.Location
	now           func() time.Time
	locks         *unitLocks
	tracer        trace.Tracer
	logger        *slog.Logger
}

// NewUnitService creates a unit service. Empty config fields fall back to
// the built-in units, the default target and UTC.
func NewUnitService(store repository.Store, cfg Config, logger *slog.Logger) *UnitService {
	units := slices.Clone(cfg.Units)
	if len(units) == 0 {
		units = slices.Clone(unit.DefaultUnits)
	}
	target := cfg.DefaultTarget
	if !target.IsPositive() {
		target = unit.DefaultTarget
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}

	return &UnitService{
		store:         store,
		units:         units,
		defaultTarget: target,
		loc:           loc,
		now:           time.Now,
		locks:         newUnitLocks(),
		tracer:        otel.Tracer(tracerName),
		logger:        logger,
	}
}

// WithArchive keeps a copy of every uploaded report file
func (s *UnitService) WithArchive(archive storage.Storage) *UnitService {
	s.archive = archive
	return s
}

// WithMetrics records upload metrics
func (s *UnitService) WithMetrics(m *metrics.Metrics) *UnitService {
	s.metrics = m
	return s
}

// WithClock overrides the upload timestamp source
func (s *UnitService) WithClock(now func() time.Time) *UnitService {
	s.now = now
	return s
}

// Units returns the configured unit names.
func (s *UnitService) Units() []string {
	return slices.Clone(s.units)
}

// GetState returns the stored ledger of a unit, or the defaults when the
// unit was never written.
func (s *UnitService) GetState(ctx context.Context, unitName string) (*unit.State, error) {
	if err := s.checkUnit(unitName); err != nil {
		return nil, err
	}
	return s.load(ctx, unitName)
}

// Overview loads every configured unit concurrently.
func (s *UnitService) Overview(ctx context.Context) ([]UnitSummary, error) {
	summaries := make([]UnitSummary, len(s.units))

	g, gctx := errgroup.WithContext(ctx)
	for i, name := range s.units {
		g.Go(func() error {
			state, err := s.load(gctx, name)
			if err != nil {
				return fmt.Errorf("unit %s: %w", name, err)
			}
			summaries[i] = UnitSummary{Unit: name, State: *state}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return summaries, nil
}

// UploadReport processes one uploaded report file for a unit.
//
// Only one mutating action per unit runs at a time; a concurrent call fails
// with common.ErrUploadInProgress. Once started the cycle ignores request
// cancellation. When the store rejects the write the result is still
// returned, with Warning set.
func (s *UnitService) UploadReport(ctx context.Context, unitName, filename string, data []byte, mode unit.Mode) (*UploadResult, error) {
	if err := s.checkUnit(unitName); err != nil {
		return nil, err
	}
	if err := checkMode(mode); err != nil {
		return nil, err
	}

	release, ok := s.locks.TryLock(unitName)
	if !ok {
		s.metrics.ObserveUpload(unitName, metrics.OutcomeBusy, 0)
		return nil, fmt.Errorf("%w: %s", common.ErrUploadInProgress, unitName)
	}
	defer release()

	ctx, span := s.tracer.Start(context.WithoutCancel(ctx), "UnitService.UploadReport",
		trace.WithAttributes(
			attribute.String("unit", unitName),
			attribute.String("mode", string(mode)),
			attribute.String("filename", filename),
			attribute.Int("bytes", len(data)),
		),
	)
	defer span.End()

	started := time.Now()
	s.archiveReport(ctx, unitName, filename, data)

	sheet, err := parser.Extract(filename, data)
	if err != nil {
		return nil, s.fail(span, unitName, started, err)
	}

	return s.ingest(ctx, span, unitName, sheet, mode, started)
}

// UploadGrid runs the upload cycle on an already decoded grid, such as the
// values of a Google spreadsheet.
func (s *UnitService) UploadGrid(ctx context.Context, unitName string, grid [][]any, mode unit.Mode) (*UploadResult, error) {
	if err := s.checkUnit(unitName); err != nil {
		return nil, err
	}
	if err := checkMode(mode); err != nil {
		return nil, err
	}

	release, ok := s.locks.TryLock(unitName)
	if !ok {
		s.metrics.ObserveUpload(unitName, metrics.OutcomeBusy, 0)
		return nil, fmt.Errorf("%w: %s", common.ErrUploadInProgress, unitName)
	}
	defer release()

	ctx, span := s.tracer.Start(context.WithoutCancel(ctx), "UnitService.UploadGrid",
		trace.WithAttributes(
			attribute.String("unit", unitName),
			attribute.String("mode", string(mode)),
			attribute.Int("rows", len(grid)),
		),
	)
	defer span.End()

	started := time.Now()
	sheet, err := parser.FromGrid(grid)
	if err != nil {
		return nil, s.fail(span, unitName, started, err)
	}

	return s.ingest(ctx, span, unitName, sheet, mode, started)
}

// ingest runs sanitize, aggregate, apply and save. The caller holds the unit lock.
func (s *UnitService) ingest(ctx context.Context, span trace.Span, unitName string, sheet *parser.Sheet, mode unit.Mode, started time.Time) (*UploadResult, error) {
	records, stats := ingest.SanitizeWithStats(sheet.Rows())
	s.metrics.AddRowsDropped("invalid_price", stats.InvalidPrice)
	s.metrics.AddRowsDropped("missing_professional", stats.MissingProfessional)
	s.metrics.AddRowsDropped("summary", stats.SummaryRows)

	if len(records) == 0 {
		err := fmt.Errorf("%w: %d rows read, %d dropped", common.ErrEmptyBatch, stats.Rows, stats.Dropped())
		return nil, s.fail(span, unitName, started, err)
	}

	batch := ingest.Aggregate(records)
	span.AddEvent("aggregated", trace.WithAttributes(
		attribute.Int("procedures", batch.ProcedureCount),
		attribute.String("total", batch.TotalRevenue.StringFixed(2)),
	))

	prev, err := s.load(ctx, unitName)
	if err != nil {
		return nil, s.fail(span, unitName, started, err)
	}

	next := unit.ApplyBatch(*prev, batch, mode, s.now(), s.loc)

	result := &UploadResult{
		Unit:  unitName,
		State: next,
		Batch: batch,
		KPIs: KPIs{
			TotalRevenue:  next.CurrentAmount,
			AverageTicket: batch.AverageTicket,
		},
		Stats: stats,
	}

	outcome := metrics.OutcomeOK
	if err := s.store.Save(ctx, unitName, unit.AmountPatch(next)); err != nil {
		if !errors.Is(err, common.ErrPersistence) {
			err = fmt.Errorf("%w: %w", common.ErrPersistence, err)
		}
		outcome = metrics.OutcomeWarning
		result.Warning = common.UserMessage(err)
		span.RecordError(err)
		s.logger.Warn("upload kept in local cache only",
			slog.String("unit", unitName),
			slog.Any("error", err),
		)
	}

	s.metrics.ObserveUpload(unitName, outcome, time.Since(started))
	s.metrics.SetUnitRevenue(unitName, next.CurrentAmount.InexactFloat64())
	s.logger.Info("report processed",
		slog.String("unit", unitName),
		slog.String("mode", string(mode)),
		slog.Int("rows", stats.Rows),
		slog.Int("procedures", batch.ProcedureCount),
		slog.Int("dropped", stats.Dropped()),
		slog.String("batch_total", batch.TotalRevenue.StringFixed(2)),
		slog.String("current_amount", next.CurrentAmount.StringFixed(2)),
	)

	return result, nil
}

// SetTarget changes the financial target of a unit. The target is
// validated before the store is touched.
func (s *UnitService) SetTarget(ctx context.Context, unitName string, target decimal.Decimal) (*ActionResult, error) {
	if err := s.checkUnit(unitName); err != nil {
		return nil, err
	}
	if !target.IsPositive() {
		return nil, fmt.Errorf("%w: got %s", common.ErrInvalidTarget, target)
	}

	release, ok := s.locks.TryLock(unitName)
	if !ok {
		return nil, fmt.Errorf("%w: %s", common.ErrUploadInProgress, unitName)
	}
	defer release()

	ctx, span := s.tracer.Start(context.WithoutCancel(ctx), "UnitService.SetTarget",
		trace.WithAttributes(attribute.String("unit", unitName)),
	)
	defer span.End()

	prev, err := s.load(ctx, unitName)
	if err != nil {
		return nil, err
	}
	next, err := unit.SetTarget(*prev, target)
	if err != nil {
		return nil, err
	}

	result := &ActionResult{Unit: unitName, State: next}
	if err := s.store.Save(ctx, unitName, unit.TargetPatch(target)); err != nil {
		span.RecordError(err)
		if !errors.Is(err, common.ErrPersistence) {
			return nil, fmt.Errorf("failed to save target: %w", err)
		}
		result.Warning = s.keptLocally(unitName, "target", err)
	}

	s.logger.Info("unit target updated",
		slog.String("unit", unitName),
		slog.String("target", target.StringFixed(2)),
	)
	return result, nil
}

// ClearData zeroes the running total and history of a unit, keeping its target.
func (s *UnitService) ClearData(ctx context.Context, unitName string) (*ActionResult, error) {
	if err := s.checkUnit(unitName); err != nil {
		return nil, err
	}

	release, ok := s.locks.TryLock(unitName)
	if !ok {
		return nil, fmt.Errorf("%w: %s", common.ErrUploadInProgress, unitName)
	}
	defer release()

	ctx, span := s.tracer.Start(context.WithoutCancel(ctx), "UnitService.ClearData",
		trace.WithAttributes(attribute.String("unit", unitName)),
	)
	defer span.End()

	prev, err := s.load(ctx, unitName)
	if err != nil {
		return nil, err
	}
	next := unit.ClearData(*prev)

	result := &ActionResult{Unit: unitName, State: next}
	if err := s.store.Save(ctx, unitName, unit.AmountPatch(next)); err != nil {
		span.RecordError(err)
		if !errors.Is(err, common.ErrPersistence) {
			return nil, fmt.Errorf("failed to clear unit data: %w", err)
		}
		result.Warning = s.keptLocally(unitName, "clear", err)
	}

	s.metrics.SetUnitRevenue(unitName, 0)
	s.logger.Info("unit data cleared", slog.String("unit", unitName))
	return result, nil
}

// keptLocally logs an admin change that only the local cache holds and
// returns the warning shown to the user.
func (s *UnitService) keptLocally(unitName, action string, err error) string {
	s.logger.Warn("admin change kept in local cache only",
		slog.String("unit", unitName),
		slog.String("action", action),
		slog.Any("error", err),
	)
	return common.UserMessage(err)
}

// Reports lists the archived report files of a unit, oldest first.
func (s *UnitService) Reports(ctx context.Context, unitName string) ([]*storage.FileInfo, error) {
	if err := s.checkUnit(unitName); err != nil {
		return nil, err
	}
	if s.archive == nil {
		return nil, fmt.Errorf("%w: report archive", common.ErrNotConfigured)
	}

	files, err := s.archive.List(ctx, unitName)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports of %s: %w", unitName, err)
	}
	return files, nil
}

// OpenReport returns an archived report. The caller closes the reader.
func (s *UnitService) OpenReport(ctx context.Context, unitName string, fileID uuid.UUID) (io.ReadCloser, *storage.FileInfo, error) {
	if err := s.checkUnit(unitName); err != nil {
		return nil, nil, err
	}
	if s.archive == nil {
		return nil, nil, fmt.Errorf("%w: report archive", common.ErrNotConfigured)
	}

	rc, info, err := s.archive.Download(ctx, unitName, fileID)
	if errors.Is(err, storage.ErrFileNotFound) {
		return nil, nil, fmt.Errorf("%w: report %s", common.ErrNotFound, fileID)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open report %s: %w", fileID, err)
	}
	return rc, info, nil
}

// DeleteReport removes an archived report. The ledger is not touched.
func (s *UnitService) DeleteReport(ctx context.Context, unitName string, fileID uuid.UUID) error {
	if err := s.checkUnit(unitName); err != nil {
		return err
	}
	if s.archive == nil {
		return fmt.Errorf("%w: report archive", common.ErrNotConfigured)
	}

	err := s.archive.Delete(ctx, unitName, fileID)
	if errors.Is(err, storage.ErrFileNotFound) {
		return fmt.Errorf("%w: report %s", common.ErrNotFound, fileID)
	}
	if err != nil {
		return fmt.Errorf("failed to delete report %s: %w", fileID, err)
	}

	s.logger.Info("archived report deleted",
		slog.String("unit", unitName),
		slog.String("file_id", fileID.String()),
	)
	return nil
}

func (s *UnitService) load(ctx context.Context, unitName string) (*unit.State, error) {
	state, err := s.store.Load(ctx, unitName)
	if errors.Is(err, common.ErrNotFound) {
		d := unit.Defaults()
		d.Target = s.defaultTarget
		return &d, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load unit %s: %w", unitName, err)
	}
	return state, nil
}

func (s *UnitService) checkUnit(unitName string) error {
	if !slices.Contains(s.units, unitName) {
		return fmt.Errorf("%w: %q", common.ErrUnknownUnit, unitName)
	}
	return nil
}

func checkMode(mode unit.Mode) error {
	switch mode {
	case unit.ModeAdditive, unit.ModeReplace:
		return nil
	default:
		return fmt.Errorf("%w: %q", common.ErrInvalidMode, mode)
	}
}

// archiveReport stores the raw upload. Failures are logged only.
func (s *UnitService) archiveReport(ctx context.Context, unitName, filename string, data []byte) {
	if s.archive == nil {
		return
	}

	contentType := mime.TypeByExtension(strings.ToLower(filepath.Ext(filename)))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	info, err := s.archive.Upload(ctx, unitName, filename, contentType, bytes.NewReader(data))
	if err != nil {
		s.logger.Warn("failed to archive report",
			slog.String("unit", unitName),
			slog.String("filename", filename),
			slog.Any("error", err),
		)
		return
	}
	s.logger.Debug("report archived",
		slog.String("unit", unitName),
		slog.String("file_id", info.ID.String()),
	)
}

// fail records a failed upload and returns err unchanged.
func (s *UnitService) fail(span trace.Span, unitName string, started time.Time, err error) error {
	outcome := metrics.OutcomeStoreError
	switch {
	case errors.Is(err, common.ErrFormat):
		outcome = metrics.OutcomeFormat
	case errors.Is(err, common.ErrEmptyBatch):
		outcome = metrics.OutcomeEmpty
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, outcome)
	s.metrics.ObserveUpload(unitName, outcome, time.Since(started))
	s.logger.Warn("report rejected",
		slog.String("unit", unitName),
		slog.String("outcome", outcome),
		slog.Any("error", err),
	)
	return err
}
