package lock

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/ginjaninja78/transmittal-log/internal/apperr"
	"github.com/gofrs/flock"
	"go.uber.org/zap"
)

// FileLocker is a Locker shared by every process that can see dir. Each key
// maps to an advisory lock on <dir>/.<key>.lock.
type FileLocker struct {
	dir    string
	poll   time.Duration
	logger *zap.Logger
}

var _ Locker = (*FileLocker)(nil)

// FileOption configures a FileLocker.
type FileOption func(*FileLocker)

// WithFilePollInterval sets how often a held lock is retried.
func WithFilePollInterval(d time.Duration) FileOption {
	return func(l *FileLocker) {
		if d > 0 {
			l.poll = d
		}
	}
}

// WithFileLogger sets the logger.
func WithFileLogger(logger *zap.Logger) FileOption {
	return func(l *FileLocker) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// NewFileLocker creates a locker keeping its lock files in dir.
func NewFileLocker(dir string, opts ...FileOption) *FileLocker {
	l := &FileLocker{
		dir:    dir,
		poll:   50 * time.Millisecond,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Path returns the lock file used for key.
func (l *FileLocker) Path(key string) string {
	name := strings.NewReplacer("/", "_", "\\", "_", "..", "_").Replace(key)
	return filepath.Join(l.dir, "."+name+".lock")
}

// Acquire implements Locker.
func (l *FileLocker) Acquire(ctx context.Context, key string, timeout time.Duration) (Release, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	fl := flock.New(l.Path(key))
	ok, err := fl.TryLockContext(waitCtx, l.poll)
	if err != nil || !ok {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if err == nil || errors.Is(err, context.DeadlineExceeded) {
			return nil, apperr.Busy(key, ErrTimeout)
		}
		return nil, fmt.Errorf("failed to lock %s: %w", fl.Path(), err)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			if err := fl.Unlock(); err != nil {
				l.logger.Warn("file unlock failed", zap.String("path", fl.Path()), zap.Error(err))
			}
		})
	}, nil
}
