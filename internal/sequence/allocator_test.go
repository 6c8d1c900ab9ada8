package sequence

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ginjaninja78/transmittal-log/internal/apperr"
	"github.com/ginjaninja78/transmittal-log/internal/ledger"
	"github.com/ginjaninja78/transmittal-log/internal/lock"
	"github.com/ginjaninja78/transmittal-log/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type setSource struct {
	mu  sync.Mutex
	ids map[string]struct{}
	err error
}

func (s *setSource) TransmittalNumbers(context.Context) (map[string]struct{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	out := make(map[string]struct{}, len(s.ids))
	for k := range s.ids {
		out[k] = struct{}{}
	}
	return out, nil
}

func (s *setSource) add(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ids == nil {
		s.ids = map[string]struct{}{}
	}
	s.ids[id] = struct{}{}
}

// sequenceIntN returns the given draws in order, then repeats the last one.
func sequenceIntN(draws ...int) func(int) int {
	var mu sync.Mutex
	i := 0
	return func(int) int {
		mu.Lock()
		defer mu.Unlock()
		d := draws[i]
		if i < len(draws)-1 {
			i++
		}
		return d
	}
}

func TestAllocate_FormatAndUTC8Date(t *testing.T) {
	// 17:30 UTC on the 17th is 01:30 on the 18th in UTC+8.
	now := time.Date(2026, 10, 17, 17, 30, 0, 0, time.UTC)
	a := NewAllocator(&setSource{}, lock.NewMemoryLocker(), Options{
		Now:  func() time.Time { return now },
		IntN: sequenceIntN(3821),
	})

	id, err := a.Allocate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "20261018-4821", id)
	assert.Regexp(t, Pattern, id)
}

func TestAllocate_SuffixBounds(t *testing.T) {
	for _, draw := range []int{0, MaxSuffix - MinSuffix} {
		a := NewAllocator(&setSource{}, lock.NewMemoryLocker(), Options{IntN: sequenceIntN(draw)})
		id, err := a.Allocate(context.Background())
		require.NoError(t, err)
		assert.Regexp(t, Pattern, id)
	}
}

func TestAllocate_SkipsExisting(t *testing.T) {
	now := time.Date(2026, 10, 18, 1, 0, 0, 0, DefaultLocation)
	src := &setSource{}
	src.add("20261018-1000")
	src.add("20261018-1001")

	a := NewAllocator(src, lock.NewMemoryLocker(), Options{
		Now:  func() time.Time { return now },
		IntN: sequenceIntN(0, 1, 2),
	})

	id, err := a.Allocate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "20261018-1002", id)
}

func TestAllocate_ExhaustedAttempts(t *testing.T) {
	now := time.Date(2026, 10, 18, 1, 0, 0, 0, DefaultLocation)
	src := &setSource{}
	src.add("20261018-1000")

	calls := 0
	a := NewAllocator(src, lock.NewMemoryLocker(), Options{
		Now:         func() time.Time { return now },
		IntN:        func(int) int { calls++; return 0 },
		MaxAttempts: 100,
	})

	_, err := a.Allocate(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrExhaustedAttempts))
	assert.Equal(t, 100, calls)
}

func TestAllocate_BusyAndReleaseOnFailure(t *testing.T) {
	locker := lock.NewMemoryLocker()
	src := &setSource{err: errors.New("disk on fire")}
	a := NewAllocator(src, locker, Options{LockTimeout: 50 * time.Millisecond})

	_, err := a.Allocate(context.Background())
	require.Error(t, err)

	// The failed call must have released the lock.
	release, err := locker.Acquire(context.Background(), "transmittal-log", 50*time.Millisecond)
	require.NoError(t, err)

	_, err = a.Allocate(context.Background())
	assert.True(t, errors.Is(err, apperr.ErrBusy))
	release()
}

func TestAllocate_SequentialCallsAreDistinct(t *testing.T) {
	// Allocation alone does not record the number; the caller writes it
	// before the next allocation, as the writer does.
	src := &setSource{}
	a := NewAllocator(src, lock.NewMemoryLocker(), Options{})

	seen := map[string]bool{}
	for i := 0; i < 200; i++ {
		id, err := a.Allocate(context.Background())
		require.NoError(t, err)
		require.False(t, seen[id], "duplicate %s", id)
		seen[id] = true
		src.add(id)
	}
}

type countingLocker struct {
	inner   lock.Locker
	holders int32
	max     int32
}

func (c *countingLocker) Acquire(ctx context.Context, key string, timeout time.Duration) (lock.Release, error) {
	release, err := c.inner.Acquire(ctx, key, timeout)
	if err != nil {
		return nil, err
	}
	n := atomic.AddInt32(&c.holders, 1)
	for {
		m := atomic.LoadInt32(&c.max)
		if n <= m || atomic.CompareAndSwapInt32(&c.max, m, n) {
			break
		}
	}
	return func() {
		atomic.AddInt32(&c.holders, -1)
		release()
	}, nil
}

func TestAllocate_ConcurrentCallersNeverShareTheLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.xlsx")
	log := ledger.New(path, "Log")
	require.NoError(t, log.Init(false))

	locker := &countingLocker{inner: lock.NewMemoryLocker()}
	a := NewAllocator(log, locker, Options{})

	var wg sync.WaitGroup
	ids := make([]string, 10)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id, err := a.Allocate(context.Background())
			if assert.NoError(t, err) {
				ids[i] = id
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), locker.max)
	for _, id := range ids {
		assert.Regexp(t, Pattern, id)
	}
}

func TestAllocate_ReadsLedgerNumbers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.xlsx")
	log := ledger.New(path, "Log")
	require.NoError(t, log.Init(false))

	now := time.Date(2026, 10, 18, 1, 0, 0, 0, DefaultLocation)
	s := types.Submission{TransmittalNo: "20261018-1000"}
	_, err := log.Append(context.Background(), []types.LogRow{types.NewLogRow(s, types.LineItem{}, "ts", types.PendingDocumentRef)})
	require.NoError(t, err)

	a := NewAllocator(log, lock.NewMemoryLocker(), Options{
		Now:  func() time.Time { return now },
		IntN: sequenceIntN(0, 5),
	})
	id, err := a.Allocate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "20261018-1005", id)
}
