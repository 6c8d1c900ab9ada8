// =============================================================================
// Transmittal Log - Sequence Allocator
// =============================================================================
//
// Transmittal numbers look like 20261018-4821: the current date in a fixed
// UTC+8 zone, a dash, and a random four-digit suffix. Allocation holds the
// log lock while it reads every recorded number and draws suffixes until one
// is free, so two concurrent allocations can never settle on the same draw.
//
// =============================================================================

package sequence

import (
	"context"
	"fmt"
	"math/rand/v2"
	"regexp"
	"time"

	"github.com/ginjaninja78/transmittal-log/internal/apperr"
	"github.com/ginjaninja78/transmittal-log/internal/lock"
	"go.uber.org/zap"
)

// Pattern matches every allocated transmittal number.
var Pattern = regexp.MustCompile(`^\d{8}-\d{4}$`)

// Suffix bounds.
const (
	MinSuffix = 1000
	MaxSuffix = 9999
)

// DefaultMaxAttempts bounds the collision loop.
const DefaultMaxAttempts = 100

// DefaultLocation is the fixed UTC+8 zone used for the date prefix.
var DefaultLocation = time.FixedZone("UTC+8", 8*60*60)

// NumberSource lists the numbers already recorded in the central log.
type NumberSource interface {
	TransmittalNumbers(ctx context.Context) (map[string]struct{}, error)
}

// Options configures an Allocator. Zero values take defaults.
type Options struct {
	LockKey     string
	LockTimeout time.Duration
	MaxAttempts int
	Location    *time.Location

	// Now and IntN are injectable for tests. IntN(n) returns a value in [0,n).
	Now  func() time.Time
	IntN func(n int) int

	Logger *zap.Logger
}

// Allocator hands out unique transmittal numbers.
type Allocator struct {
	numbers NumberSource
	locker  lock.Locker
	opts    Options
}

// NewAllocator creates an allocator.
func NewAllocator(numbers NumberSource, locker lock.Locker, opts Options) *Allocator {
	if opts.LockKey == "" {
		opts.LockKey = "transmittal-log"
	}
	if opts.LockTimeout <= 0 {
		opts.LockTimeout = lock.DefaultTimeout
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.Location == nil {
		opts.Location = DefaultLocation
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.IntN == nil {
		opts.IntN = rand.IntN
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Allocator{numbers: numbers, locker: locker, opts: opts}
}

// Allocate returns a transmittal number not yet present in the log.
//
// RETURNS:
//   - A number matching Pattern, dated today in the allocator's zone.
//   - BUSY if the lock is not acquired in time, EXHAUSTED_ATTEMPTS if every
//     draw collided, or the log's read error.
func (a *Allocator) Allocate(ctx context.Context) (string, error) {
	release, err := a.locker.Acquire(ctx, a.opts.LockKey, a.opts.LockTimeout)
	if err != nil {
		return "", err
	}
	defer release()

	existing, err := a.numbers.TransmittalNumbers(ctx)
	if err != nil {
		return "", err
	}

	prefix := a.opts.Now().In(a.opts.Location).Format("20060102")
	for attempt := 1; attempt <= a.opts.MaxAttempts; attempt++ {
		suffix := MinSuffix + a.opts.IntN(MaxSuffix-MinSuffix+1)
		candidate := fmt.Sprintf("%s-%04d", prefix, suffix)
		if _, taken := existing[candidate]; taken {
			continue
		}
		a.opts.Logger.Info("transmittal number allocated",
			zap.String("transmittal_no", candidate),
			zap.Int("attempt", attempt),
		)
		return candidate, nil
	}

	a.opts.Logger.Warn("transmittal number space exhausted",
		zap.String("prefix", prefix),
		zap.Int("attempts", a.opts.MaxAttempts),
	)
	return "", apperr.ExhaustedAttempts(prefix, a.opts.MaxAttempts)
}
