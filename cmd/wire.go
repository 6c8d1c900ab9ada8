package cmd

import (
	"context"
	"fmt"

	"github.com/ginjaninja78/transmittal-log/internal/config"
	"github.com/ginjaninja78/transmittal-log/internal/ledger"
	"github.com/ginjaninja78/transmittal-log/internal/lock"
	"github.com/ginjaninja78/transmittal-log/internal/matcher"
	"github.com/ginjaninja78/transmittal-log/internal/registry"
	"github.com/ginjaninja78/transmittal-log/internal/render"
	"github.com/ginjaninja78/transmittal-log/internal/sequence"
	"github.com/ginjaninja78/transmittal-log/internal/service"
	"github.com/ginjaninja78/transmittal-log/internal/transmittal"
	"github.com/ginjaninja78/transmittal-log/internal/validation"
	"github.com/ginjaninja78/transmittal-log/internal/xlsxparser"
	"github.com/ginjaninja78/transmittal-log/pkg/docstore"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// app holds the wired components of one process.
type app struct {
	service  *service.Service
	registry *registry.Reader
	ledger   *ledger.Ledger
	closers  []func() error
}

// Close releases the browser and redis connections.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			zlog.Warn("close failed", zap.Error(err))
		}
	}
}

// buildApp wires every component from c.
func buildApp(ctx context.Context, c *config.Config, logger *zap.Logger) (*app, error) {
	a := &app{}
	loc := c.Sequence.Location()

	a.registry = registry.NewReader(c.Registry.Path, c.Registry.Sheet,
		registry.WithColumns(registry.Columns{
			ID:        c.Registry.IDColumn,
			Label:     c.Registry.LabelColumn,
			Tabs:      c.Registry.TabsColumn,
			HeaderRow: c.Registry.HeaderRow,
		}),
		registry.WithLogger(logger.Named("registry")),
	)

	policy := matcher.DefaultPolicy()
	policy.HeaderRow = c.Sources.HeaderRow
	policy.ReferenceHeader = c.Sources.ReferenceHeader
	policy.Columns = c.Sources.Columns
	policy.SkipTabsWithoutReference = c.Sources.SkipTabsWithoutReference
	policy.AllowMissingColumns = c.Sources.AllowMissingColumns
	m := matcher.New(a.registry, xlsxparser.NewOpener(c.Sources.Dir), policy, logger.Named("matcher"))

	a.ledger = ledger.New(c.Ledger.Path, c.Ledger.Sheet,
		ledger.WithHeaderRow(c.Ledger.HeaderRow),
		ledger.WithPendingMarker(c.Ledger.PendingMarker),
		ledger.WithLogger(logger.Named("ledger")),
	)

	locker, err := buildLocker(ctx, c, logger, a)
	if err != nil {
		a.Close()
		return nil, err
	}

	renderer, err := buildRenderer(ctx, c, logger, a)
	if err != nil {
		a.Close()
		return nil, err
	}

	allocator := sequence.NewAllocator(a.ledger, locker, sequence.Options{
		LockKey:     c.Lock.Key,
		LockTimeout: c.Lock.Timeout,
		MaxAttempts: c.Sequence.MaxAttempts,
		Location:    loc,
		Logger:      logger.Named("sequence"),
	})

	writer := transmittal.NewWriter(a.ledger, locker, renderer, transmittal.Options{
		LockKey:     c.Lock.Key,
		LockTimeout: c.Lock.Timeout,
		Location:    loc,
		Validator:   validation.Default(),
		Logger:      logger.Named("writer"),
	})

	a.service = service.New(service.Deps{
		Registry:  a.registry,
		Searcher:  m,
		Allocator: allocator,
		Writer:    writer,
		Previewer: renderer,
		Logger:    logger.Named("service"),
	})
	return a, nil
}

func buildLocker(ctx context.Context, c *config.Config, logger *zap.Logger, a *app) (lock.Locker, error) {
	lc := c.Lock
	switch lc.Backend {
	case config.LockBackendMemory:
		logger.Warn("memory lock serializes this process only; do not run other writers against the log")
		return lock.NewMemoryLocker(), nil
	case config.LockBackendFile:
		return lock.NewFileLocker(c.LockDir(),
			lock.WithFilePollInterval(lc.PollInterval),
			lock.WithFileLogger(logger.Named("lock")),
		), nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     lc.Redis.Addr(),
		Password: lc.Redis.Password,
		DB:       lc.Redis.DB,
	})
	a.closers = append(a.closers, client.Close)

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", lc.Redis.Addr(), err)
	}
	return lock.NewRedisLocker(client,
		lock.WithTTL(lc.TTL),
		lock.WithPollInterval(lc.PollInterval),
		lock.WithLogger(logger.Named("lock")),
	)
}

func buildRenderer(ctx context.Context, c *config.Config, logger *zap.Logger, a *app) (*render.Service, error) {
	store, err := docstore.New(ctx, c.Storage, docstore.WithLogger(logger.Named("docstore")))
	if err != nil {
		return nil, fmt.Errorf("failed to create document store: %w", err)
	}

	var pdf render.PDFRenderer = render.DisabledRenderer{}
	if c.Renderer.Enabled {
		pdf = render.NewChromedpRenderer(render.ChromedpConfig{
			RemoteURL: c.Renderer.RemoteURL,
			ExecPath:  c.Renderer.ChromePath,
			NoSandbox: c.Renderer.NoSandbox,
			Timeout:   c.Renderer.Timeout,
			Logger:    logger.Named("chromedp"),
		})
	}
	a.closers = append(a.closers, pdf.Close)

	letterheads := make(map[string]render.Letterhead, len(c.Letterheads))
	for code, lh := range c.Letterheads {
		letterheads[code] = render.Letterhead{Title: lh.Title, Address: lh.Address, Phone: lh.Phone}
	}

	return render.NewService(pdf, store, render.NewLetterheads(letterheads), render.Options{
		KeyPrefix: c.Renderer.KeyPrefix,
		Location:  c.Sequence.Location(),
		Logger:    logger.Named("render"),
	}), nil
}

// requireSharedLock rejects CLI writes under the in-process lock, which
// cannot exclude a running server.
func requireSharedLock(c *config.Config) error {
	if c.Lock.Backend == config.LockBackendMemory {
		return fmt.Errorf("lock.backend %q cannot guard the log against other processes; use %q or %q",
			c.Lock.Backend, config.LockBackendFile, config.LockBackendRedis)
	}
	return nil
}
