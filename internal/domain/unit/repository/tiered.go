package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/FACorreiaa/radiology-revenue-tracker/internal/domain/common"
	"github.com/FACorreiaa/radiology-revenue-tracker/internal/domain/unit"
)

// TieredStore writes through a primary store and a local cache.
//
// Reads prefer the primary unless the cache holds writes the primary never
// received: a dirty cache entry is always newer and answers instead. The
// cache also answers when the primary has no document for the unit or
// cannot be reached. Writes the primary rejects stay in the cache flagged
// dirty until Resync, or the next successful write to that unit, pushes
// them.
type TieredStore struct {
	primary  Store
	fallback *SQLiteCache
	logger   *slog.Logger
}

// NewTieredStore composes a primary store with the local cache.
func NewTieredStore(primary Store, fallback *SQLiteCache, logger *slog.Logger) *TieredStore {
	return &TieredStore{primary: primary, fallback: fallback, logger: logger}
}

// Load reads the unsynced cache entry if there is one, then the primary,
// falling back to the cache.
func (s *TieredStore) Load(ctx context.Context, unitName string) (*unit.State, error) {
	if s.isDirty(ctx, unitName) {
		cached, err := s.fallback.Load(ctx, unitName)
		if err == nil {
			return cached, nil
		}
		s.logger.Warn("failed to read unsynced unit from local cache",
			slog.String("unit", unitName),
			slog.Any("error", err),
		)
	}

	state, err := s.primary.Load(ctx, unitName)
	switch {
	case err == nil:
		s.refreshCache(ctx, unitName, *state)
		return state, nil
	case errors.Is(err, common.ErrNotFound):
	default:
		s.logger.Warn("primary unit store unavailable, reading local cache",
			slog.String("unit", unitName),
			slog.Any("error", err),
		)
	}

	cached, cErr := s.fallback.Load(ctx, unitName)
	if cErr != nil {
		if errors.Is(cErr, common.ErrNotFound) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("%w: %w", common.ErrPersistence, errors.Join(err, cErr))
	}
	return cached, nil
}

// isDirty reports the cache's resync flag. A flag that cannot be read counts
// as clean.
func (s *TieredStore) isDirty(ctx context.Context, unitName string) bool {
	dirty, err := s.fallback.IsDirty(ctx, unitName)
	if err != nil {
		s.logger.Warn("failed to read unit resync flag",
			slog.String("unit", unitName),
			slog.Any("error", err),
		)
		return false
	}
	return dirty
}

// refreshCache copies the primary's ledger into the cache unless the cache
// holds unsynced writes.
func (s *TieredStore) refreshCache(ctx context.Context, unitName string, state unit.State) {
	dirty, err := s.fallback.IsDirty(ctx, unitName)
	if err == nil && dirty {
		return
	}
	if err == nil {
		err = s.fallback.Replace(ctx, unitName, state)
	}
	if err != nil {
		s.logger.Warn("failed to refresh local unit cache",
			slog.String("unit", unitName),
			slog.Any("error", err),
		)
	}
}

// Save writes the patch to both tiers. A primary failure returns an error
// wrapping common.ErrPersistence once the cache holds the write.
//
// When the unit is dirty the patch is applied to the cache first and the
// whole cached ledger is pushed, so the primary never receives a partial
// patch on top of a document that is missing earlier writes.
func (s *TieredStore) Save(ctx context.Context, unitName string, patch unit.Patch) error {
	if s.isDirty(ctx, unitName) {
		return s.saveDirty(ctx, unitName, patch)
	}

	primaryErr := s.primary.Save(ctx, unitName, patch)

	if err := s.fallback.Save(ctx, unitName, patch); err != nil {
		s.logger.Warn("failed to write local unit cache",
			slog.String("unit", unitName),
			slog.Any("error", err),
		)
		if primaryErr != nil {
			return fmt.Errorf("%w: %w", common.ErrPersistence, errors.Join(primaryErr, err))
		}
		return nil
	}

	if primaryErr != nil {
		if err := s.fallback.MarkDirty(ctx, unitName); err != nil {
			s.logger.Warn("failed to flag unit for resync",
				slog.String("unit", unitName),
				slog.Any("error", err),
			)
		}
		return fmt.Errorf("%w: %w", common.ErrPersistence, primaryErr)
	}
	return nil
}

func (s *TieredStore) saveDirty(ctx context.Context, unitName string, patch unit.Patch) error {
	if err := s.fallback.Save(ctx, unitName, patch); err != nil {
		return fmt.Errorf("%w: %w", common.ErrPersistence, err)
	}
	if err := s.syncUnit(ctx, unitName); err != nil {
		return fmt.Errorf("%w: %w", common.ErrPersistence, err)
	}
	s.logger.Info("unit resynced to primary store on write", slog.String("unit", unitName))
	return nil
}

// syncUnit pushes the cached ledger of one unit to the primary in full and
// clears its resync flag.
func (s *TieredStore) syncUnit(ctx context.Context, unitName string) error {
	state, err := s.fallback.Load(ctx, unitName)
	if err != nil {
		return err
	}
	if err := s.primary.Save(ctx, unitName, unit.FullPatch(*state)); err != nil {
		return err
	}
	return s.fallback.ClearDirty(ctx, unitName)
}

// Resync pushes every dirty cache entry to the primary store in full and
// returns how many units were synced.
func (s *TieredStore) Resync(ctx context.Context) (int, error) {
	units, err := s.fallback.DirtyUnits(ctx)
	if err != nil {
		return 0, err
	}

	var (
		synced int
		errs   []error
	)
	for _, name := range units {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if err := s.syncUnit(ctx, name); err != nil {
			errs = append(errs, fmt.Errorf("unit %s: %w", name, err))
			continue
		}

		synced++
		s.logger.Info("unit resynced to primary store", slog.String("unit", name))
	}

	return synced, errors.Join(errs...)
}
