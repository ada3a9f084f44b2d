// Package render draws chart panels to PNG with gonum/plot.
package render

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/ristretto"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/vg"
)

// Options configures a Renderer. Zero values take the defaults.
type Options struct {
	Width  vg.Length
	Height vg.Length
	// CacheBytes bounds the total size of cached images.
	CacheBytes int64
	Logger     *slog.Logger
}

const (
	defaultWidth      = 8 * vg.Inch
	defaultHeight     = 5 * vg.Inch
	defaultCacheBytes = 64 << 20
)

// Renderer turns chart specs into PNG images. Images are cached by chart
// kind and a digest of the spec, so identical requests skip drawing.
type Renderer struct {
	width  vg.Length
	height vg.Length
	cache  *ristretto.Cache
	logger *slog.Logger
}

// New creates a Renderer.
func New(opts Options) (*Renderer, error) {
	if opts.Width <= 0 {
		opts.Width = defaultWidth
	}
	if opts.Height <= 0 {
		opts.Height = defaultHeight
	}
	if opts.CacheBytes <= 0 {
		opts.CacheBytes = defaultCacheBytes
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 10_000,
		MaxCost:     opts.CacheBytes,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("create image cache: %w", err)
	}

	return &Renderer{
		width:  opts.Width,
		height: opts.Height,
		cache:  cache,
		logger: opts.Logger,
	}, nil
}

// Close releases the image cache.
func (r *Renderer) Close() {
	r.cache.Close()
}

// draw returns the cached image for spec or builds, encodes and caches it.
func (r *Renderer) draw(ctx context.Context, kind string, spec any, build func() (*plot.Plot, error)) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key, err := cacheKey(kind, spec)
	if err != nil {
		return nil, err
	}
	if v, ok := r.cache.Get(key); ok {
		return v.([]byte), nil
	}

	p, err := build()
	if err != nil {
		return nil, fmt.Errorf("failed to build %s chart: %w", kind, err)
	}

	img, err := encodePNG(p, r.width, r.height)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s chart: %w", kind, err)
	}

	r.cache.Set(key, img, int64(len(img)))
	r.logger.DebugContext(ctx, "Rendered chart",
		slog.String("kind", kind),
		slog.Int("bytes", len(img)))
	return img, nil
}

func cacheKey(kind string, spec any) (string, error) {
	raw, err := json.Marshal(spec)
	if err != nil {
		return "", fmt.Errorf("failed to digest %s spec: %w", kind, err)
	}
	sum := sha256.Sum256(raw)
	return kind + ":" + hex.EncodeToString(sum[:]), nil
}

func encodePNG(p *plot.Plot, w, h vg.Length) ([]byte, error) {
	writer, err := p.WriterTo(w, h, "png")
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if _, err := writer.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// newPlot creates a plot with a title and axis labels.
func newPlot(title, xLabel, yLabel string) *plot.Plot {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = xLabel
	p.Y.Label.Text = yLabel
	return p
}

// emptyAxes gives a plot without data a unit range to draw.
func emptyAxes(p *plot.Plot) {
	p.X.Min, p.X.Max = 0, 1
	p.Y.Min, p.Y.Max = 0, 1
}
