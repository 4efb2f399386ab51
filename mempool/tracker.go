/*
Package mempool keeps a rolling local view of unconfirmed transactions
for addresses of interest, so a buyer's payment shows up as "seen"
before the first confirmation lands.

The table is rebuilt wholesale on every poll cycle rather than patched
incrementally; a missed update heals itself on the next cycle.
*/
package mempool

import (
	"context"
	"sync"
	"time"

	logger "github.com/sirupsen/logrus"

	"github.com/litepay-io/litepay-go/explorer"
)

const (
	DefaultPollInterval  = 30 * time.Second
	DefaultEvictInterval = 300 * time.Second

	// DefaultRetention bounds how long an entry stays in the table.
	// A confirmed tx leaves the mempool by itself, a stuck one is no
	// longer useful to track after an hour.
	DefaultRetention = time.Hour
)

// Entry is one observed unconfirmed transaction.
type Entry struct {
	TxID      string
	Addresses []string // tracked addresses the tx touches
	FirstSeen time.Time
}

// Config for a Tracker.
type Config struct {
	Client        explorer.Client
	PollInterval  time.Duration
	EvictInterval time.Duration
	Retention     time.Duration
}

// Tracker watches the mempool for a set of tracked addresses.
// Address state machine: untracked -> tracking -> untracked; shutdown
// simply stops the loop, table rebuilds are wholesale so there is no
// in-flight state to roll back.
type Tracker struct {
	client        explorer.Client
	pollInterval  time.Duration
	evictInterval time.Duration
	retention     time.Duration

	mu      sync.RWMutex
	tracked map[string]struct{}
	entries map[string]Entry

	// now is swappable in tests
	now func() time.Time
}

func NewTracker(cfg *Config) *Tracker {
	t := &Tracker{
		client:        cfg.Client,
		pollInterval:  cfg.PollInterval,
		evictInterval: cfg.EvictInterval,
		retention:     cfg.Retention,
		tracked:       make(map[string]struct{}),
		entries:       make(map[string]Entry),
		now:           time.Now,
	}
	if t.pollInterval <= 0 {
		t.pollInterval = DefaultPollInterval
	}
	if t.evictInterval <= 0 {
		t.evictInterval = DefaultEvictInterval
	}
	if t.retention <= 0 {
		t.retention = DefaultRetention
	}
	return t
}

// Track starts watching an address.
func (t *Tracker) Track(address string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.tracked[address] = struct{}{}
}

// Untrack stops watching an address and drops entries that only
// related to it.
func (t *Tracker) Untrack(address string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.tracked, address)

	for txid, e := range t.entries {
		// fresh slice: entries handed out by UnconfirmedFor alias the
		// old backing array and must not change under the caller
		remaining := make([]string, 0, len(e.Addresses))
		for _, a := range e.Addresses {
			if a != address {
				remaining = append(remaining, a)
			}
		}
		if len(remaining) == 0 {
			delete(t.entries, txid)
		} else {
			e.Addresses = remaining
			t.entries[txid] = e
		}
	}
}

// TrackedAddresses returns the current watch set.
func (t *Tracker) TrackedAddresses() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	addrs := make([]string, 0, len(t.tracked))
	for a := range t.tracked {
		addrs = append(addrs, a)
	}
	return addrs
}

// UnconfirmedFor returns the entries touching an address.
func (t *Tracker) UnconfirmedFor(address string) []Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var out []Entry
	for _, e := range t.entries {
		for _, a := range e.Addresses {
			if a == address {
				out = append(out, e)
				break
			}
		}
	}
	return out
}

// Observe records one unconfirmed transaction pushed from a live feed.
// The poll rebuild remains the source of truth; this only accelerates
// first sight of a payment.
func (t *Tracker) Observe(tx *explorer.TransactionDetails) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var related []string
	for a := range t.tracked {
		if tx.Touches(a) {
			related = append(related, a)
		}
	}
	if len(related) == 0 {
		return
	}
	if _, seen := t.entries[tx.TxID]; seen {
		return
	}
	t.entries[tx.TxID] = Entry{
		TxID:      tx.TxID,
		Addresses: related,
		FirstSeen: t.now(),
	}
	logger.WithFields(logger.Fields{
		"txid":      tx.TxID,
		"addresses": related,
	}).Info("unconfirmed payment observed via feed")
}

// Rebuild replaces the whole table from a fresh mempool fetch per
// tracked address. FirstSeen timestamps of still-present entries are
// preserved.
func (t *Tracker) Rebuild(ctx context.Context) error {
	addrs := t.TrackedAddresses()

	fresh := make(map[string]Entry)
	for _, address := range addrs {
		txs, err := t.client.FetchMempool(ctx, address)
		if err != nil {
			logger.WithFields(logger.Fields{
				"address": address,
				"source":  t.client.Name(),
			}).Warnf("mempool fetch failed: %v", err)
			continue
		}
		for i := range txs {
			tx := &txs[i]
			// relate by outputs AND inputs' previous outputs, so an
			// outgoing spend from a tracked address shows up too
			var related []string
			for _, a := range addrs {
				if tx.Touches(a) {
					related = append(related, a)
				}
			}
			if len(related) == 0 {
				continue
			}
			if prev, ok := fresh[tx.TxID]; ok {
				related = mergeAddresses(prev.Addresses, related)
			}
			fresh[tx.TxID] = Entry{
				TxID:      tx.TxID,
				Addresses: related,
				FirstSeen: t.now(),
			}
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	for txid, e := range fresh {
		if old, ok := t.entries[txid]; ok {
			e.FirstSeen = old.FirstSeen
			fresh[txid] = e
		}
	}
	t.entries = fresh
	return nil
}

// Evict removes entries older than the retention window,
// regardless of confirmation state. Returns how many were dropped.
func (t *Tracker) Evict() int {
	cutoff := t.now().Add(-t.retention)

	t.mu.Lock()
	defer t.mu.Unlock()
	var dropped int
	for txid, e := range t.entries {
		if e.FirstSeen.Before(cutoff) {
			delete(t.entries, txid)
			dropped++
		}
	}
	if dropped > 0 {
		logger.WithField("dropped", dropped).Debug("evicted stale mempool entries")
	}
	return dropped
}

// Loop runs the poll and eviction cycles until ctx is cancelled.
// A failed cycle logs and waits for the next tick; it never kills the
// loop.
func (t *Tracker) Loop(ctx context.Context) error {
	pollTicker := time.NewTicker(t.pollInterval)
	defer pollTicker.Stop()
	evictTicker := time.NewTicker(t.evictInterval)
	defer evictTicker.Stop()

	for {
		select {

		case <-ctx.Done():
			return ctx.Err()

		case <-pollTicker.C:
			if err := t.Rebuild(ctx); err != nil {
				logger.Warnf("mempool rebuild cycle failed: %v", err)
			}

		case <-evictTicker.C:
			t.Evict()
		}
	}
}

func mergeAddresses(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	var out []string
	for _, s := range append(a, b...) {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
