package services

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/sync/errgroup"

	"ipedspulse/internal/config"
	"ipedspulse/internal/dataprocessing"
	"ipedspulse/internal/dataset"
	apperrors "ipedspulse/internal/errors"
	"ipedspulse/internal/infrastructure"
	"ipedspulse/internal/validation"
	"ipedspulse/pkg/contracts/domain"
)

// DefaultPageSize is the record page size when the caller does not set one.
const DefaultPageSize = 100

// DatasetInfo describes the loaded dataset.
type DatasetInfo struct {
	Source         string                `json:"source"`
	Fingerprint    string                `json:"fingerprint"`
	LoadedAt       time.Time             `json:"loaded_at"`
	LoadDurationMS int64                 `json:"load_duration_ms"`
	RowsRead       int                   `json:"rows_read"`
	Records        int                   `json:"records"`
	Institutions   int                   `json:"institutions"`
	Years          []int                 `json:"years"`
	Skipped        map[string]int        `json:"skipped"`
	PctSumWarnings int                   `json:"pct_sum_warnings"`
	Skips          []dataprocessing.Skip `json:"skips,omitempty"`
}

// DatasetService owns the long-format table and computes dashboard views.
// Everything it holds is immutable after NewDatasetService returns.
type DatasetService struct {
	table   *dataset.Table
	cache   *dataset.QueryCache
	info    DatasetInfo
	cfg     config.DatasetConfig
	logger  *slog.Logger
	tracer  trace.Tracer
	metrics *infrastructure.BusinessMetrics
}

// NewDatasetService loads, validates and reshapes the wide file at path.
// tracer and metrics may be nil.
func NewDatasetService(ctx context.Context, path string, cfg config.DatasetConfig, logger *slog.Logger, tracer trace.Tracer, metrics *infrastructure.BusinessMetrics) (*DatasetService, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer(infrastructure.MeterName)
	}

	s := &DatasetService{
		cache:   dataset.NewQueryCache(cfg.CacheEnabled),
		cfg:     cfg,
		logger:  logger.With(slog.String("component", "dataset_service")),
		tracer:  tracer,
		metrics: metrics,
	}
	if err := s.load(ctx, path); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *DatasetService) load(ctx context.Context, path string) (err error) {
	ctx, span := s.tracer.Start(ctx, "dataset.load", trace.WithAttributes(attribute.String("dataset.path", path)))
	defer span.End()

	start := time.Now()
	var (
		records     []domain.EnrollmentRecord
		stats       dataprocessing.ReshapeStats
		fingerprint string
	)
	defer func() {
		s.metrics.RecordDatasetLoad(ctx, len(records), stats.SkippedByReason(), stats.PctSumWarnings, time.Since(start), err)
		if err != nil {
			infrastructure.RecordError(ctx, err)
		}
	}()

	if err := validation.NewFileValidator(s.logger).ValidateDatasetFile(path); err != nil {
		return apperrors.NewDatasetError("failed to load dataset", err).WithContext("path", path)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		fp, err := fingerprintFile(path, s.cfg.Years)
		if err != nil {
			return err
		}
		fingerprint = fp
		return nil
	})
	g.Go(func() error {
		raw, err := dataprocessing.NewParser(s.logger, s.cfg.Sheet).ParseFile(gctx, path)
		if err != nil {
			return err
		}
		reshaper := dataprocessing.NewReshaper(s.logger, dataprocessing.ReshapeConfig{
			Years:           s.cfg.Years,
			PctSumTolerance: s.cfg.PctSumTolerance,
			MaxSkipDetails:  dataprocessing.DefaultReshapeConfig().MaxSkipDetails,
		})
		records, stats, err = reshaper.Reshape(gctx, raw.Records)
		return err
	})
	if err := g.Wait(); err != nil {
		return apperrors.NewDatasetError("failed to load dataset", err).WithContext("path", path)
	}
	infrastructure.AddSpanEvent(ctx, "dataset.reshaped",
		attribute.Int("records", len(records)),
		attribute.Int("skipped", stats.SkippedTotal()),
		attribute.Int("pct_sum_warnings", stats.PctSumWarnings))

	s.table = dataset.NewTable(records)
	s.info = DatasetInfo{
		Source:         path,
		Fingerprint:    fingerprint,
		LoadedAt:       time.Now().UTC(),
		LoadDurationMS: time.Since(start).Milliseconds(),
		RowsRead:       stats.RowsRead,
		Records:        s.table.Len(),
		Institutions:   len(s.table.Institutions()),
		Years:          s.table.Years(),
		Skipped:        stats.SkippedByReason(),
		PctSumWarnings: stats.PctSumWarnings,
		Skips:          stats.Skips,
	}

	span.SetAttributes(
		attribute.Int("dataset.rows", stats.RowsRead),
		attribute.Int("dataset.records", s.info.Records),
		attribute.Int("dataset.skipped", stats.SkippedTotal()),
	)
	s.logger.InfoContext(ctx, "dataset loaded",
		slog.String("path", path),
		slog.String("fingerprint", fingerprint),
		slog.Int("rows_read", stats.RowsRead),
		slog.Int("records", s.info.Records),
		slog.Int("institutions", s.info.Institutions),
		slog.Any("skipped", s.info.Skipped),
		slog.Int("pct_sum_warnings", stats.PctSumWarnings),
		slog.Duration("duration", time.Since(start)))
	if s.table.Empty() {
		s.logger.WarnContext(ctx, "dataset produced no usable records", slog.String("path", path))
	}
	return nil
}

// fingerprintFile hashes the file together with the configured years, since
// both decide the content of the long table.
func fingerprintFile(path string, years []int) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open dataset: %w", err)
	}
	defer f.Close()

	h, err := blake2b.New256(nil)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to hash dataset: %w", err)
	}
	for _, y := range years {
		io.WriteString(h, "|"+strconv.Itoa(y))
	}
	return hex.EncodeToString(h.Sum(nil)[:16]), nil
}

// Info returns load statistics of the dataset.
func (s *DatasetService) Info() DatasetInfo {
	return s.info
}

// Fingerprint identifies the dataset content; it changes only when the file
// or the configured years change.
func (s *DatasetService) Fingerprint() string {
	return s.info.Fingerprint
}

// Table exposes the immutable long-format table.
func (s *DatasetService) Table() *dataset.Table {
	return s.table
}

// CacheStats reports query cache effectiveness.
func (s *DatasetService) CacheStats() dataset.CacheStats {
	return s.cache.Stats()
}

// MinEnrolledForRanking is the configured enrolled floor of leaderboards.
func (s *DatasetService) MinEnrolledForRanking() int64 {
	return s.cfg.MinEnrolledForRanking
}

// validateFilter rejects years the dataset does not carry. Other unknown
// values simply select nothing.
func (s *DatasetService) validateFilter(f domain.Filter) error {
	years := s.table.Years()
	for _, y := range f.Years {
		i := sort.SearchInts(years, y)
		if i == len(years) || years[i] != y {
			return fmt.Errorf("%w: year %d is not in the dataset %v", ErrInvalidFilter, y, years)
		}
	}
	return nil
}

// resolveYear checks that the institution exists and picks its latest year
// when year is 0.
func (s *DatasetService) resolveYear(name string, year int) (int, error) {
	if !s.table.HasInstitution(name) {
		return 0, fmt.Errorf("%w: %q", ErrInstitutionNotFound, name)
	}
	if year != 0 {
		if _, ok := s.table.Find(name, year); !ok {
			return 0, fmt.Errorf("%w: %q has no record for %d", ErrNoData, name, year)
		}
		return year, nil
	}
	years := s.table.Years()
	for i := len(years) - 1; i >= 0; i-- {
		if _, ok := s.table.Find(name, years[i]); ok {
			return years[i], nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrNoData, name)
}

// cachedView runs compute through the query cache inside a span and records
// query metrics.
func cachedView[T any](ctx context.Context, s *DatasetService, view, key string, compute func() (T, error)) (T, error) {
	ctx, span := s.tracer.Start(ctx, "dataset."+view, trace.WithAttributes(attribute.String("view.key", key)))
	defer span.End()

	start := time.Now()
	v, cached, err := s.cache.Do(ctx, view+"|"+key, func(context.Context) (any, error) {
		return compute()
	})
	s.metrics.RecordQuery(ctx, view, time.Since(start), cached)
	span.SetAttributes(attribute.Bool("view.cached", cached))
	if err != nil {
		infrastructure.RecordError(ctx, err)
		var zero T
		return zero, err
	}
	if !cached {
		s.logger.DebugContext(ctx, "view computed",
			slog.String("view", view),
			slog.String("key", key),
			slog.Duration("duration", time.Since(start)))
	}
	return v.(T), nil
}

// filteredView computes a view over the records selected by f. An empty
// selection is ErrNoData.
func filteredView[T any](ctx context.Context, s *DatasetService, view string, f domain.Filter, params string, compute func([]domain.EnrollmentRecord) (T, error)) (T, error) {
	if err := s.validateFilter(f); err != nil {
		var zero T
		return zero, err
	}
	key := f.Key()
	if params != "" {
		key += "|" + params
	}
	return cachedView(ctx, s, view, key, func() (T, error) {
		sel := s.table.Where(f)
		if sel.Empty() {
			var zero T
			return zero, fmt.Errorf("%s: %w", view, ErrNoData)
		}
		return compute(sel.Records())
	})
}
