/*
Package quota tracks per-source daily request budgets.

The free tiers of third-party explorer APIs carry strict daily caps.
Every outbound call checks the budget first; an exhausted budget is a
soft failure for that source only, it never aborts a verification.
*/
package quota

import (
	"sync"
	"time"

	logger "github.com/sirupsen/logrus"
)

// Record is the persisted state of one source's budget.
type Record struct {
	Source         string
	DailyLimit     int64
	RemainingToday int64
	LastReset      time.Time
}

// QuotaStorage is the durable backend for Records.
type QuotaStorage interface {
	// LoadRecord returns the record for a source, or nil if unknown.
	LoadRecord(source string) (*Record, error)

	// StoreRecord inserts or replaces a record.
	StoreRecord(record *Record) error
}

// Tracker enforces budgets. Consumption is atomic per source; sources
// never serialize on each other.
type Tracker struct {
	storage QuotaStorage
	limits  map[string]int64

	mu    sync.Mutex
	locks map[string]*sync.Mutex

	// now is swappable in tests
	now func() time.Time

	// Location used to decide when "today" rolls over.
	Location *time.Location
}

// NewTracker builds a tracker over the given storage.
// limits maps source name to daily cap; 0 or a missing entry means
// unlimited.
func NewTracker(storage QuotaStorage, limits map[string]int64) *Tracker {
	return &Tracker{
		storage:  storage,
		limits:   limits,
		locks:    make(map[string]*sync.Mutex),
		now:      time.Now,
		Location: time.UTC,
	}
}

func (t *Tracker) sourceLock(source string) *sync.Mutex {
	t.mu.Lock()
	defer t.mu.Unlock()
	lock, ok := t.locks[source]
	if !ok {
		lock = &sync.Mutex{}
		t.locks[source] = lock
	}
	return lock
}

// TryConsume checks the remaining budget for a source, decrements it if
// available and reports whether the call may proceed.
func (t *Tracker) TryConsume(source string) bool {
	limit := t.limits[source]
	if limit <= 0 {
		return true // unlimited source
	}

	lock := t.sourceLock(source)
	lock.Lock()
	defer lock.Unlock()

	record, err := t.storage.LoadRecord(source)
	if err != nil {
		logger.WithField("source", source).Warnf("failed to load quota record: %v", err)
		// storage trouble must not take payment verification down
		return true
	}

	nowTime := t.now()
	if record == nil {
		record = &Record{
			Source:         source,
			DailyLimit:     limit,
			RemainingToday: limit,
			LastReset:      nowTime,
		}
	}

	// honor a reconfigured cap
	record.DailyLimit = limit
	t.resetIfNewDay(record, nowTime)

	if record.RemainingToday <= 0 {
		return false
	}
	record.RemainingToday--

	if err := t.storage.StoreRecord(record); err != nil {
		logger.WithField("source", source).Warnf("failed to store quota record: %v", err)
	}
	return true
}

// Remaining reports the budget left for a source today.
// Unlimited sources report -1.
func (t *Tracker) Remaining(source string) int64 {
	limit := t.limits[source]
	if limit <= 0 {
		return -1
	}

	lock := t.sourceLock(source)
	lock.Lock()
	defer lock.Unlock()

	record, err := t.storage.LoadRecord(source)
	if err != nil || record == nil {
		return limit
	}
	t.resetIfNewDay(record, t.now())
	return record.RemainingToday
}

// resetIfNewDay refills the budget when the calendar date rolled over.
// Idempotent; called under the source lock.
func (t *Tracker) resetIfNewDay(record *Record, nowTime time.Time) {
	last := record.LastReset.In(t.Location)
	cur := nowTime.In(t.Location)
	ly, lm, ld := last.Date()
	cy, cm, cd := cur.Date()
	if ly == cy && lm == cm && ld == cd {
		return
	}
	record.RemainingToday = record.DailyLimit
	record.LastReset = nowTime
	logger.WithFields(logger.Fields{
		"source": record.Source,
		"limit":  record.DailyLimit,
	}).Debug("quota budget reset for a new day")
}
