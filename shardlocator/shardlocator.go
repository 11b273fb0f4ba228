// Package shardlocator provides a reference api.ShardLocator: an
// in-memory, range-partitioned routing table that resolves a partition
// key to the shard owning it, retrying transient lookup failures with
// an exponential backoff before giving up.
package shardlocator

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/oasisprotocol/tablebatch/api"
)

// Shard is the concrete api.ShardHandle this locator hands out.
type Shard struct {
	ID         string
	LeaderAddr string
}

// ShardID implements api.ShardHandle.
func (s *Shard) ShardID() string { return s.ID }

// Leader implements api.ShardHandle.
func (s *Shard) Leader() string { return s.LeaderAddr }

// Range is one entry of the routing table: keys in [Start, End) (End
// exclusive; a nil End means unbounded) are owned by Shard.
type Range struct {
	Start []byte
	End   []byte
	Shard *Shard
}

// Config bounds the locator's retry behaviour.
type Config struct {
	BaseBackoff time.Duration
	MaxInterval time.Duration
	MaxAttempts int
}

// DefaultConfig mirrors a conservative retry budget for a routing
// lookup that should fail fast rather than stall a batch flush.
func DefaultConfig() Config {
	return Config{BaseBackoff: 10 * time.Millisecond, MaxInterval: 200 * time.Millisecond, MaxAttempts: 3}
}

// Locator is a reference ShardLocator over a static or externally-
// mutated range table. Lookups run on their own goroutine so a caller
// blocked on retries never blocks Batcher.Add.
type Locator struct {
	cfg Config

	mu     sync.RWMutex
	ranges []Range

	// transientErr, when non-nil, is returned by the next N lookups
	// (set via InjectTransientFailures) before the locator resumes
	// answering normally; it exists so tests can exercise the retry path
	// without a real flaky backend.
	transientErr   error
	transientCount int
}

// New constructs a Locator with no routing entries configured.
func New(cfg Config) *Locator {
	return &Locator{cfg: cfg}
}

// SetRanges replaces the routing table wholesale. Ranges need not be
// pre-sorted.
func (l *Locator) SetRanges(ranges []Range) {
	sorted := make([]Range, len(ranges))
	copy(sorted, ranges)
	sort.Slice(sorted, func(i, j int) bool {
		return compareKeys(sorted[i].Start, sorted[j].Start) < 0
	})

	l.mu.Lock()
	defer l.mu.Unlock()
	l.ranges = sorted
}

// InjectTransientFailures makes the next n lookups fail with err before
// lookups resume succeeding normally, exercising the backoff retry path.
func (l *Locator) InjectTransientFailures(n int, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.transientCount = n
	l.transientErr = err
}

// LookupByKey implements api.ShardLocator.
func (l *Locator) LookupByKey(ctx context.Context, table api.TableRef, partitionKey []byte, deadline time.Time, callback func(api.LookupResult)) {
	go l.resolve(ctx, partitionKey, deadline, callback)
}

func (l *Locator) resolve(ctx context.Context, partitionKey []byte, deadline time.Time, callback func(api.LookupResult)) {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = l.cfg.BaseBackoff
	exp.Multiplier = 2
	exp.MaxInterval = l.cfg.MaxInterval
	exp.Reset()

	maxAttempts := l.cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	var result api.LookupResult
	for attempt := 0; attempt < maxAttempts; attempt++ {
		shard, err := l.lookupOnce(partitionKey)
		if err == nil {
			result = api.LookupResult{Shard: shard}
			break
		}
		result = api.LookupResult{Err: err}

		if attempt == maxAttempts-1 {
			break
		}
		if !deadline.IsZero() && time.Now().After(deadline) {
			result = api.LookupResult{Err: fmt.Errorf("shard lookup exceeded deadline")}
			break
		}

		timer := time.NewTimer(exp.NextBackOff())
		select {
		case <-ctx.Done():
			timer.Stop()
			result = api.LookupResult{Err: ctx.Err()}
			callback(result)
			return
		case <-timer.C:
		}
	}

	callback(result)
}

func (l *Locator) lookupOnce(partitionKey []byte) (*Shard, error) {
	l.mu.Lock()
	if l.transientCount > 0 {
		l.transientCount--
		err := l.transientErr
		l.mu.Unlock()
		return nil, err
	}
	l.mu.Unlock()

	l.mu.RLock()
	defer l.mu.RUnlock()

	idx := sort.Search(len(l.ranges), func(i int) bool {
		return compareKeys(l.ranges[i].Start, partitionKey) > 0
	})
	if idx == 0 {
		return nil, fmt.Errorf("no shard owns key %x", partitionKey)
	}
	r := l.ranges[idx-1]
	if r.End != nil && compareKeys(partitionKey, r.End) >= 0 {
		return nil, fmt.Errorf("no shard owns key %x", partitionKey)
	}
	return r.Shard, nil
}

func compareKeys(a, b []byte) int {
	if a == nil && b == nil {
		return 0
	}
	if a == nil {
		return -1
	}
	if b == nil {
		return 1
	}
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return int(a[i]) - int(b[i])
		}
	}
	return len(a) - len(b)
}
