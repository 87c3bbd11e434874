package repository

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/radiology-revenue-tracker/internal/domain/common"
	"github.com/FACorreiaa/radiology-revenue-tracker/internal/domain/unit"
	"github.com/FACorreiaa/radiology-revenue-tracker/pkg/db"
)

// memoryStore is an in-memory primary that can be switched off.
type memoryStore struct {
	mu     sync.Mutex
	states map[string]unit.State
	down   bool
	saves  int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{states: make(map[string]unit.State)}
}

var errUnavailable = errors.New("primary unavailable")

func (m *memoryStore) Load(_ context.Context, name string) (*unit.State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.down {
		return nil, errUnavailable
	}
	s, ok := m.states[name]
	if !ok {
		return nil, common.ErrNotFound
	}
	return &s, nil
}

func (m *memoryStore) Save(_ context.Context, name string, patch unit.Patch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.down {
		return errUnavailable
	}
	m.saves++
	s, ok := m.states[name]
	if !ok {
		s = unit.Defaults()
	}
	m.states[name] = patch.Apply(s)
	return nil
}

func (m *memoryStore) setDown(down bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.down = down
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newCache(t *testing.T) *SQLiteCache {
	t.Helper()
	sqlDB, err := db.OpenSQLite(context.Background(), ":memory:", discardLogger())
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	return NewSQLiteCache(sqlDB)
}

func TestSQLiteCache(t *testing.T) {
	ctx := context.Background()
	cache := newCache(t)

	_, err := cache.Load(ctx, "Magé")
	assert.ErrorIs(t, err, common.ErrNotFound)

	require.NoError(t, cache.Save(ctx, "Magé", unit.TargetPatch(dec("100"))))
	state := unit.State{CurrentAmount: dec("40"), History: []unit.HistoryPoint{{Label: "out./25", Amount: dec("40")}}}
	require.NoError(t, cache.Save(ctx, "Magé", unit.AmountPatch(state)))

	got, err := cache.Load(ctx, "Magé")
	require.NoError(t, err)
	assert.True(t, dec("100").Equal(got.Target))
	assert.True(t, dec("40").Equal(got.CurrentAmount))
	assert.Len(t, got.History, 1)
	assert.False(t, got.UpdatedAt.IsZero())

	dirty, err := cache.IsDirty(ctx, "Magé")
	require.NoError(t, err)
	assert.False(t, dirty)

	require.NoError(t, cache.MarkDirty(ctx, "Magé"))
	units, err := cache.DirtyUnits(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Magé"}, units)

	require.NoError(t, cache.ClearDirty(ctx, "Magé"))
	units, err = cache.DirtyUnits(ctx)
	require.NoError(t, err)
	assert.Empty(t, units)
}

func TestTieredStore_Load(t *testing.T) {
	ctx := context.Background()

	t.Run("primary wins and refreshes cache", func(t *testing.T) {
		primary := newMemoryStore()
		cache := newCache(t)
		store := NewTieredStore(primary, cache, discardLogger())

		primary.states["Magé"] = unit.State{Target: dec("10"), CurrentAmount: dec("5"), History: []unit.HistoryPoint{}}
		require.NoError(t, cache.Save(ctx, "Magé", unit.TargetPatch(dec("99"))))

		got, err := store.Load(ctx, "Magé")
		require.NoError(t, err)
		assert.True(t, dec("10").Equal(got.Target))

		cached, err := cache.Load(ctx, "Magé")
		require.NoError(t, err)
		assert.True(t, dec("10").Equal(cached.Target))
		assert.True(t, dec("5").Equal(cached.CurrentAmount))
	})

	t.Run("dirty cache entry wins over the primary", func(t *testing.T) {
		primary := newMemoryStore()
		cache := newCache(t)
		store := NewTieredStore(primary, cache, discardLogger())

		primary.states["Magé"] = unit.Defaults()
		require.NoError(t, cache.Save(ctx, "Magé", unit.TargetPatch(dec("99"))))
		require.NoError(t, cache.MarkDirty(ctx, "Magé"))

		got, err := store.Load(ctx, "Magé")
		require.NoError(t, err)
		assert.True(t, dec("99").Equal(got.Target))

		cached, err := cache.Load(ctx, "Magé")
		require.NoError(t, err)
		assert.True(t, dec("99").Equal(cached.Target))
		assert.True(t, unit.DefaultTarget.Equal(primary.states["Magé"].Target))
	})

	t.Run("primary absent reads cache", func(t *testing.T) {
		primary := newMemoryStore()
		cache := newCache(t)
		store := NewTieredStore(primary, cache, discardLogger())

		require.NoError(t, cache.Save(ctx, "Magé", unit.TargetPatch(dec("42"))))

		got, err := store.Load(ctx, "Magé")
		require.NoError(t, err)
		assert.True(t, dec("42").Equal(got.Target))
	})

	t.Run("primary down reads cache", func(t *testing.T) {
		primary := newMemoryStore()
		primary.setDown(true)
		cache := newCache(t)
		store := NewTieredStore(primary, cache, discardLogger())

		require.NoError(t, cache.Save(ctx, "Magé", unit.TargetPatch(dec("42"))))

		got, err := store.Load(ctx, "Magé")
		require.NoError(t, err)
		assert.True(t, dec("42").Equal(got.Target))

		_, err = store.Load(ctx, "Barra da Tijuca")
		assert.ErrorIs(t, err, common.ErrNotFound)
	})
}

func TestTieredStore_SaveAndResync(t *testing.T) {
	ctx := context.Background()
	primary := newMemoryStore()
	cache := newCache(t)
	store := NewTieredStore(primary, cache, discardLogger())

	require.NoError(t, store.Save(ctx, "Magé", unit.TargetPatch(dec("1000"))))
	assert.True(t, dec("1000").Equal(primary.states["Magé"].Target))

	// primary goes down: the write lands in the cache only
	primary.setDown(true)
	state := unit.State{CurrentAmount: dec("350"), History: []unit.HistoryPoint{{Label: "out./25", Amount: dec("350")}}}
	err := store.Save(ctx, "Magé", unit.AmountPatch(state))
	require.ErrorIs(t, err, common.ErrPersistence)
	assert.ErrorIs(t, err, errUnavailable)

	got, err := store.Load(ctx, "Magé")
	require.NoError(t, err)
	assert.True(t, dec("350").Equal(got.CurrentAmount))
	assert.True(t, dec("1000").Equal(got.Target))

	// resync fails while the primary is down
	synced, err := store.Resync(ctx)
	assert.Error(t, err)
	assert.Equal(t, 0, synced)

	primary.setDown(false)
	synced, err = store.Resync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, synced)

	assert.True(t, dec("350").Equal(primary.states["Magé"].CurrentAmount))
	assert.True(t, dec("1000").Equal(primary.states["Magé"].Target))
	assert.Len(t, primary.states["Magé"].History, 1)

	units, err := cache.DirtyUnits(ctx)
	require.NoError(t, err)
	assert.Empty(t, units)

	// nothing left to push
	synced, err = store.Resync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, synced)
}

func TestTieredStore_WriteAfterRecovery(t *testing.T) {
	ctx := context.Background()
	primary := newMemoryStore()
	cache := newCache(t)
	store := NewTieredStore(primary, cache, discardLogger())

	require.NoError(t, store.Save(ctx, "Magé", unit.TargetPatch(dec("1000"))))

	// first upload lands in the cache only
	primary.setDown(true)
	first := unit.State{CurrentAmount: dec("100"), History: []unit.HistoryPoint{{Label: "set./25", Amount: dec("100")}}}
	require.ErrorIs(t, store.Save(ctx, "Magé", unit.AmountPatch(first)), common.ErrPersistence)

	// the primary is back but no resync ran yet
	primary.setDown(false)
	got, err := store.Load(ctx, "Magé")
	require.NoError(t, err)
	assert.True(t, dec("100").Equal(got.CurrentAmount), "got %s", got.CurrentAmount)
	assert.Len(t, got.History, 1)

	// the next additive upload builds on the unsynced total
	second := unit.State{
		CurrentAmount: got.CurrentAmount.Add(dec("50")),
		History:       append(got.History, unit.HistoryPoint{Label: "out./25", Amount: dec("150")}),
	}
	require.NoError(t, store.Save(ctx, "Magé", unit.AmountPatch(second)))

	stored := primary.states["Magé"]
	assert.True(t, dec("150").Equal(stored.CurrentAmount), "primary holds %s", stored.CurrentAmount)
	assert.True(t, dec("1000").Equal(stored.Target))
	assert.Len(t, stored.History, 2)

	units, err := cache.DirtyUnits(ctx)
	require.NoError(t, err)
	assert.Empty(t, units)

	synced, err := store.Resync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, synced)

	got, err = store.Load(ctx, "Magé")
	require.NoError(t, err)
	assert.True(t, dec("150").Equal(got.CurrentAmount))
}

func TestTieredStore_WriteWhileDirtyAndDown(t *testing.T) {
	ctx := context.Background()
	primary := newMemoryStore()
	cache := newCache(t)
	store := NewTieredStore(primary, cache, discardLogger())

	primary.setDown(true)
	require.ErrorIs(t, store.Save(ctx, "Magé", unit.TargetPatch(dec("10"))), common.ErrPersistence)
	err := store.Save(ctx, "Magé", unit.TargetPatch(dec("20")))
	require.ErrorIs(t, err, common.ErrPersistence)
	assert.ErrorIs(t, err, errUnavailable)

	dirty, err := cache.IsDirty(ctx, "Magé")
	require.NoError(t, err)
	assert.True(t, dirty)

	got, err := store.Load(ctx, "Magé")
	require.NoError(t, err)
	assert.True(t, dec("20").Equal(got.Target))
}
