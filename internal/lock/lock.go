// =============================================================================
// Transmittal Log - Mutual Exclusion
// =============================================================================
//
// The central log has no transactions, so number allocation and row appends
// serialize on a named lock. Acquisition is bounded: a caller that cannot get
// the lock within the timeout receives a BUSY error instead of waiting
// forever. The returned release function must run on every exit path.
//
// BACKENDS:
//   FileLocker    processes sharing a filesystem; flock on <dir>/.<key>.lock
//   MemoryLocker  one process; a one-slot channel per key
//   RedisLocker   many processes; SET NX PX with a token, Lua compare-and-delete
//
// =============================================================================

package lock

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ginjaninja78/transmittal-log/internal/apperr"
)

// DefaultTimeout bounds lock acquisition.
const DefaultTimeout = 30 * time.Second

// ErrTimeout is wrapped in the BUSY error returned on acquisition timeout.
var ErrTimeout = errors.New("lock acquisition timed out")

// Release gives the lock back. Calling it more than once is safe.
type Release func()

// Locker hands out exclusive named locks.
type Locker interface {
	// Acquire blocks until the lock named key is held, timeout elapses or ctx
	// ends. Timeout yields an apperr BUSY error.
	Acquire(ctx context.Context, key string, timeout time.Duration) (Release, error)
}

// MemoryLocker is an in-process Locker.
type MemoryLocker struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
}

var _ Locker = (*MemoryLocker)(nil)

// NewMemoryLocker creates an in-process locker.
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{slots: make(map[string]chan struct{})}
}

func (l *MemoryLocker) slot(key string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	ch, ok := l.slots[key]
	if !ok {
		ch = make(chan struct{}, 1)
		l.slots[key] = ch
	}
	return ch
}

// Acquire implements Locker.
func (l *MemoryLocker) Acquire(ctx context.Context, key string, timeout time.Duration) (Release, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ch := l.slot(key)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case ch <- struct{}{}:
		var once sync.Once
		return func() { once.Do(func() { <-ch }) }, nil
	case <-timer.C:
		return nil, apperr.Busy(key, ErrTimeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
