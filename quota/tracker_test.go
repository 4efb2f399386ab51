package quota

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTryConsumeExhaustsAtLimit(t *testing.T) {
	tracker := NewTracker(NewSimulatedQuotaStorage(), map[string]int64{"blockcypher": 3})

	for i := 0; i < 3; i++ {
		assert.True(t, tracker.TryConsume("blockcypher"), "call %d should pass", i)
	}
	assert.False(t, tracker.TryConsume("blockcypher"))
	assert.False(t, tracker.TryConsume("blockcypher"))
	assert.Equal(t, int64(0), tracker.Remaining("blockcypher"))
}

func TestUnlimitedSource(t *testing.T) {
	tracker := NewTracker(NewSimulatedQuotaStorage(), map[string]int64{"blockcypher": 1})

	for i := 0; i < 100; i++ {
		assert.True(t, tracker.TryConsume("litecoinspace"))
	}
	assert.Equal(t, int64(-1), tracker.Remaining("litecoinspace"))
}

func TestSourcesAreIndependent(t *testing.T) {
	tracker := NewTracker(NewSimulatedQuotaStorage(), map[string]int64{
		"a": 1,
		"b": 2,
	})

	assert.True(t, tracker.TryConsume("a"))
	assert.False(t, tracker.TryConsume("a"))

	// exhausting a does not touch b
	assert.Equal(t, int64(2), tracker.Remaining("b"))
	assert.True(t, tracker.TryConsume("b"))
}

func TestBudgetResetsOnNewDay(t *testing.T) {
	tracker := NewTracker(NewSimulatedQuotaStorage(), map[string]int64{"gecko": 2})

	clock := time.Date(2024, 6, 1, 23, 50, 0, 0, time.UTC)
	tracker.now = func() time.Time { return clock }

	assert.True(t, tracker.TryConsume("gecko"))
	assert.True(t, tracker.TryConsume("gecko"))
	assert.False(t, tracker.TryConsume("gecko"))

	// same calendar day, still exhausted
	clock = clock.Add(5 * time.Minute)
	assert.False(t, tracker.TryConsume("gecko"))

	// past midnight the budget refills
	clock = clock.Add(15 * time.Minute)
	assert.True(t, tracker.TryConsume("gecko"))
	assert.Equal(t, int64(1), tracker.Remaining("gecko"))
}

func TestStorageFailureFailsOpen(t *testing.T) {
	storage := NewSimulatedQuotaStorage()
	storage.Err = errors.New("disk gone")
	tracker := NewTracker(storage, map[string]int64{"a": 1})

	// verification must not stall on quota bookkeeping trouble
	assert.True(t, tracker.TryConsume("a"))
	assert.True(t, tracker.TryConsume("a"))
}

func TestSQLiteQuotaStorageRoundTrip(t *testing.T) {
	dbFile := t.TempDir() + "/quota.db"
	storage, err := NewSQLiteQuotaStorage(dbFile, "test")
	require.NoError(t, err)
	defer storage.Close()

	missing, err := storage.LoadRecord("nobody")
	require.NoError(t, err)
	assert.Nil(t, missing)

	want := &Record{
		Source:         "blockcypher",
		DailyLimit:     200,
		RemainingToday: 150,
		LastReset:      time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, storage.StoreRecord(want))

	got, err := storage.LoadRecord("blockcypher")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, want.DailyLimit, got.DailyLimit)
	assert.Equal(t, want.RemainingToday, got.RemainingToday)
	assert.True(t, want.LastReset.Equal(got.LastReset))
}

func TestTrackerPersistsAcrossRestart(t *testing.T) {
	dbFile := t.TempDir() + "/quota.db"
	storage, err := NewSQLiteQuotaStorage(dbFile, "test")
	require.NoError(t, err)

	tracker := NewTracker(storage, map[string]int64{"a": 2})
	assert.True(t, tracker.TryConsume("a"))
	require.NoError(t, storage.Close())

	reopened, err := NewSQLiteQuotaStorage(dbFile, "test")
	require.NoError(t, err)
	defer reopened.Close()

	restarted := NewTracker(reopened, map[string]int64{"a": 2})
	assert.Equal(t, int64(1), restarted.Remaining("a"))
	assert.True(t, restarted.TryConsume("a"))
	assert.False(t, restarted.TryConsume("a"))
}
