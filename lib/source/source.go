// Package source resolves named data sources from configuration and loads
// them into memory as dataset tables.
package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/icco/specimens/lib/config"
	"github.com/icco/specimens/lib/dataset"
	"github.com/icco/specimens/lib/metrics"
	"github.com/jellydator/ttlcache/v3"
	"golang.org/x/sync/singleflight"
)

// YearField is coerced to numeric on load; unparseable values become missing.
const YearField = "year"

// ErrUnknownSource is returned for names absent from the configuration.
var ErrUnknownSource = errors.New("unknown data source")

// loader reads one configured source.
type loader interface {
	Load(ctx context.Context) (*dataset.Table, error)
	Ping(ctx context.Context) error
	Close() error
}

// Connection is the set of configured sources, with loaded tables cached
// per name. It is safe for concurrent use.
type Connection struct {
	logger        *slog.Logger
	defaultSource string
	loaders       map[string]loader
	kinds         map[string]string
	cache         *ttlcache.Cache[string, *dataset.Table]
	group         singleflight.Group
}

// Connect opens every configured source. Database-backed sources establish
// their connection here; file-backed sources are only read on GetDF.
func Connect(cfg *config.Config, logger *slog.Logger) (*Connection, error) {
	opts := []ttlcache.Option[string, *dataset.Table]{
		ttlcache.WithDisableTouchOnHit[string, *dataset.Table](),
	}
	if cfg.CacheTTL > 0 {
		opts = append(opts, ttlcache.WithTTL[string, *dataset.Table](cfg.CacheTTL))
	}

	c := &Connection{
		logger:        logger,
		defaultSource: cfg.DefaultSource,
		loaders:       make(map[string]loader, len(cfg.Data)),
		kinds:         make(map[string]string, len(cfg.Data)),
		cache:         ttlcache.New(opts...),
	}

	for _, name := range cfg.Names() {
		src := cfg.Data[name]
		l, err := newLoader(name, src, logger)
		if err != nil {
			_ = c.Close()
			return nil, fmt.Errorf("failed to connect source %q: %w", name, err)
		}
		c.loaders[name] = l
		c.kinds[name] = src.Type
		logger.Info("Connected data source", slog.String("source", name), slog.String("type", src.Type))
	}

	return c, nil
}

func newLoader(name string, src config.Source, logger *slog.Logger) (loader, error) {
	switch src.Type {
	case config.TypeCSV:
		return newCSVLoader(src)
	case config.TypeXLSX:
		return newXLSXLoader(src), nil
	case config.TypeSQLite:
		return newSQLiteLoader(src, logger)
	case config.TypeDuckDB:
		return newDuckDBLoader(src)
	default:
		return nil, fmt.Errorf("unsupported source type %q", src.Type)
	}
}

// Default returns the configured default source name.
func (c *Connection) Default() string {
	return c.defaultSource
}

// Names returns the configured source names with their types.
func (c *Connection) Names() map[string]string {
	out := make(map[string]string, len(c.kinds))
	for k, v := range c.kinds {
		out[k] = v
	}
	return out
}

// GetDF returns the table for the named source, loading it on first use
// or after the cached copy expired. Concurrent callers share one load,
// which runs detached from any single caller: a caller whose ctx ends
// stops waiting, the others still get the table.
func (c *Connection) GetDF(ctx context.Context, name string) (*dataset.Table, error) {
	l, ok := c.loaders[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSource, name)
	}

	if item := c.cache.Get(name); item != nil {
		return item.Value(), nil
	}

	ch := c.group.DoChan(name, func() (any, error) {
		return c.load(context.WithoutCancel(ctx), name, l)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*dataset.Table), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Connection) load(ctx context.Context, name string, l loader) (*dataset.Table, error) {
	start := time.Now()
	t, err := l.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load source %q: %w", name, err)
	}
	t, err = t.CoerceNumeric(YearField)
	if err != nil {
		return nil, fmt.Errorf("failed to load source %q: %w", name, err)
	}

	elapsed := time.Since(start)
	metrics.DatasetLoadDuration.WithLabelValues(name).Observe(elapsed.Seconds())
	c.logger.InfoContext(ctx, "Loaded data source",
		slog.String("source", name),
		slog.Int("rows", t.Len()),
		slog.Int("columns", len(t.Columns())),
		slog.Duration("elapsed", elapsed))

	c.cache.Set(name, t, ttlcache.DefaultTTL)
	return t, nil
}

// Invalidate drops the cached table for name, forcing the next GetDF to
// reload it.
func (c *Connection) Invalidate(name string) error {
	if _, ok := c.loaders[name]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownSource, name)
	}
	c.cache.Delete(name)
	c.logger.Info("Invalidated data source", slog.String("source", name))
	return nil
}

// Ping checks that every source is reachable. Errors are keyed by name.
func (c *Connection) Ping(ctx context.Context) map[string]error {
	out := make(map[string]error, len(c.loaders))
	for name, l := range c.loaders {
		out[name] = l.Ping(ctx)
	}
	return out
}

// Close releases database handles held by the sources.
func (c *Connection) Close() error {
	var errs []error
	for name, l := range c.loaders {
		if err := l.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %q: %w", name, err))
		}
	}
	return errors.Join(errs...)
}
