package telemetry_test

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"codeberg.org/mutker/sensorsim/internal/errors"
	"codeberg.org/mutker/sensorsim/internal/logger"
	"codeberg.org/mutker/sensorsim/internal/sensor"
	"codeberg.org/mutker/sensorsim/internal/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)

func openStore(t *testing.T) *telemetry.SQLiteStore {
	t.Helper()
	cfg := telemetry.DefaultConfig()
	cfg.DBPath = filepath.Join(t.TempDir(), "data", "telemetry.db")

	store, err := telemetry.Open(context.Background(), cfg, logger.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func reading(offset time.Duration, device string, kind sensor.Kind, value float64) sensor.Reading {
	return sensor.NewReading(base.Add(offset), device, kind, value)
}

func assertSameReadings(t *testing.T, want, got []sensor.Reading) {
	t.Helper()
	require.Len(t, got, len(want))
	for i := range want {
		assert.True(t, want[i].Timestamp.Equal(got[i].Timestamp), "timestamp %d: want %v got %v", i, want[i].Timestamp, got[i].Timestamp)
		assert.Equal(t, want[i].DeviceID, got[i].DeviceID)
		assert.Equal(t, want[i].Kind, got[i].Kind)
		assert.Equal(t, want[i].Value, got[i].Value)
		assert.Equal(t, want[i].Unit, got[i].Unit)
	}
}

func TestOpenRejectsEmptyPath(t *testing.T) {
	_, err := telemetry.Open(context.Background(), telemetry.Config{}, logger.Nop())
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, telemetry.ErrInvalidDBPath))
}

func TestInsertAndQueryRoundTrip(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	second := []sensor.Reading{
		reading(2*time.Second, "device-02", sensor.KindLight, 512.25),
		reading(2*time.Second, "device-02", sensor.KindMotion, 1),
	}
	first := []sensor.Reading{
		reading(500*time.Millisecond, "device-01", sensor.KindTemperature, 21.5),
		reading(500*time.Millisecond, "device-01", sensor.KindHumidity, 44.1),
		reading(500*time.Millisecond, "device-01", sensor.KindPressure, 1003.87),
	}

	// inserted out of timestamp order on purpose
	require.NoError(t, store.Insert(ctx, second))
	require.NoError(t, store.Insert(ctx, first))

	got, err := store.Query(ctx, telemetry.Since(base))
	require.NoError(t, err)
	assertSameReadings(t, append(append([]sensor.Reading{}, first...), second...), got)
}

func TestQueryFilters(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, []sensor.Reading{
		reading(0, "device-01", sensor.KindTemperature, 20),
		reading(0, "device-01", sensor.KindHumidity, 40),
	}))
	require.NoError(t, store.Insert(ctx, []sensor.Reading{
		reading(time.Minute, "device-02", sensor.KindTemperature, 25),
	}))
	require.NoError(t, store.Insert(ctx, []sensor.Reading{
		reading(2*time.Minute, "device-01", sensor.KindTemperature, 22),
	}))

	byDevice, err := store.Query(ctx, telemetry.Since(base).ForDevice("device-01"))
	require.NoError(t, err)
	assert.Len(t, byDevice, 3)

	byKind, err := store.Query(ctx, telemetry.Since(base).ForKind(sensor.KindTemperature))
	require.NoError(t, err)
	require.Len(t, byKind, 3)
	assert.Equal(t, []float64{20, 25, 22}, []float64{byKind[0].Value, byKind[1].Value, byKind[2].Value})

	both, err := store.Query(ctx, telemetry.Since(base).ForDevice("device-01").ForKind(sensor.KindTemperature))
	require.NoError(t, err)
	assert.Len(t, both, 2)

	recent, err := store.Query(ctx, telemetry.Since(base.Add(time.Minute)))
	require.NoError(t, err)
	assert.Len(t, recent, 2, "lower bound is inclusive")

	none, err := store.Query(ctx, telemetry.Since(base).ForDevice("missing"))
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSubSecondOrdering(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	offsets := []time.Duration{
		1500 * time.Millisecond,
		time.Second,
		1050 * time.Millisecond,
		1005 * time.Millisecond,
	}
	for _, off := range offsets {
		require.NoError(t, store.Insert(ctx, []sensor.Reading{reading(off, "d", sensor.KindLight, float64(off.Milliseconds()))}))
	}

	got, err := store.Query(ctx, telemetry.Since(base))
	require.NoError(t, err)
	require.Len(t, got, 4)
	assert.Equal(t, []float64{1000, 1005, 1050, 1500},
		[]float64{got[0].Value, got[1].Value, got[2].Value, got[3].Value})
}

func TestCatalog(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, []sensor.Reading{
		reading(0, "device-02", sensor.KindMotion, 0),
		reading(0, "device-01", sensor.KindTemperature, 18),
		reading(0, "device-01", sensor.KindHumidity, 55),
	}))

	devices, err := store.Devices(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"device-01", "device-02"}, devices)

	kinds, err := store.Kinds(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []sensor.Kind{sensor.KindHumidity, sensor.KindMotion, sensor.KindTemperature}, kinds)

	kinds, err = store.Kinds(ctx, "device-02")
	require.NoError(t, err)
	assert.Equal(t, []sensor.Kind{sensor.KindMotion}, kinds)

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestInsertAfterCloseIsUnavailable(t *testing.T) {
	store := openStore(t)
	require.NoError(t, store.Close())

	err := store.Insert(context.Background(), []sensor.Reading{reading(0, "d", sensor.KindLight, 1)})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, telemetry.ErrStoreUnavailable))

	_, err = store.Query(context.Background(), telemetry.Since(base))
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, telemetry.ErrStoreUnavailable))

	assert.NoError(t, store.Close(), "second close is a no-op")
}

func TestFailedBatchLeavesNothingVisible(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	_, err := store.DB().Exec(`
		CREATE TRIGGER reject_poison BEFORE INSERT ON sensor_data
		WHEN NEW.device_id = 'poison'
		BEGIN SELECT RAISE(ABORT, 'rejected'); END`)
	require.NoError(t, err)

	err = store.Insert(ctx, []sensor.Reading{
		reading(0, "device-01", sensor.KindTemperature, 20),
		reading(0, "device-01", sensor.KindHumidity, 40),
		reading(0, "poison", sensor.KindLight, 1),
	})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, telemetry.ErrStoreUnavailable))

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestInitSchemaIsIdempotentAndConcurrent(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- telemetry.InitSchema(ctx, store.DB())
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}

	exists, err := telemetry.TableExists(ctx, store.DB(), "sensor_data")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestReopenKeepsData(t *testing.T) {
	cfg := telemetry.DefaultConfig()
	cfg.DBPath = filepath.Join(t.TempDir(), "telemetry.db")
	ctx := context.Background()

	store, err := telemetry.Open(ctx, cfg, logger.Nop())
	require.NoError(t, err)
	require.NoError(t, store.Insert(ctx, []sensor.Reading{reading(0, "d", sensor.KindLight, 7)}))
	require.NoError(t, store.Close())

	store, err = telemetry.Open(ctx, cfg, logger.Nop())
	require.NoError(t, err)
	defer store.Close()

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestConcurrentBatchesAreAtomic(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	const writers, batches = 8, 10
	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			id := fmt.Sprintf("device-%02d", w)
			for b := 0; b < batches; b++ {
				ts := time.Duration(b) * time.Second
				assert.NoError(t, store.Insert(ctx, []sensor.Reading{
					reading(ts, id, sensor.KindTemperature, float64(b)),
					reading(ts, id, sensor.KindHumidity, float64(b)),
				}))
			}
		}(w)
	}

	// readers observe whole batches only
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 20; i++ {
			got, err := store.Query(ctx, telemetry.Since(base))
			if !assert.NoError(t, err) {
				return
			}
			assert.Zero(t, len(got)%2, "partial batch visible")
		}
	}()

	wg.Wait()
	<-done

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, writers*batches*2, n)
}

func TestOpenRejectsForeignSchema(t *testing.T) {
	cfg := telemetry.DefaultConfig()
	cfg.DBPath = filepath.Join(t.TempDir(), "telemetry.db")

	db, err := sql.Open("sqlite3", cfg.DBPath)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE VIEW sensor_data AS SELECT 1 AS value`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	_, err = telemetry.Open(context.Background(), cfg, logger.Nop())
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, telemetry.ErrStorageInit))
}
