// Package source loads the registry and master tables from CSV files or
// URLs.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/asaidimu/go-scoss/core/store"
	"github.com/spf13/afero"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// ErrUnsupportedSource is returned for URLs the loader cannot read.
var ErrUnsupportedSource = errors.New("unsupported source")

// Source names a table and where to read it from: an http(s) URL, a
// file:// URL or a path on the loader's filesystem.
type Source struct {
	ID  string `mapstructure:"id" json:"id"`
	URL string `mapstructure:"url" json:"url"`
}

// Loader reads CSV sources into tables. Concurrent loads of the same URL share
// one fetch.
type Loader struct {
	fs     afero.Fs
	client *http.Client
	logger *zap.Logger
	opts   []store.Option
	number []string
	group  singleflight.Group
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithHTTPClient sets the client used for http(s) sources.
func WithHTTPClient(client *http.Client) LoaderOption {
	return func(l *Loader) {
		if client != nil {
			l.client = client
		}
	}
}

// WithTableOptions sets options passed to every loaded table.
func WithTableOptions(opts ...store.Option) LoaderOption {
	return func(l *Loader) {
		l.opts = append(l.opts, opts...)
	}
}

// WithNumberColumns declares columns that hold numbers in every source that
// has them. See Parsed.WithNumberColumns.
func WithNumberColumns(columns ...string) LoaderOption {
	return func(l *Loader) {
		l.number = append(l.number, columns...)
	}
}

// NewLoader creates a loader reading local paths from fs. A nil fs reads
// the operating system's filesystem.
func NewLoader(fs afero.Fs, logger *zap.Logger, opts ...LoaderOption) *Loader {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	l := &Loader{
		fs:     fs,
		client: &http.Client{Timeout: 60 * time.Second},
		logger: logger,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load reads one source into a table named after the source ID.
func (l *Loader) Load(ctx context.Context, src Source) (*store.Table, error) {
	if src.ID == "" {
		return nil, fmt.Errorf("source %q: missing id", src.URL)
	}

	// The fetch is shared, so one caller giving up must not fail the others.
	fetchCtx := context.WithoutCancel(ctx)
	ch := l.group.DoChan(src.ID+"\x00"+src.URL, func() (any, error) {
		return l.fetch(fetchCtx, src)
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res = <-ch:
	}
	if res.Err != nil {
		return nil, res.Err
	}

	parsed := res.Val.(*Parsed)
	if len(l.number) > 0 {
		parsed = parsed.WithNumberColumns(l.number...)
	}
	opts := append([]store.Option{store.WithLogger(l.logger)}, l.opts...)
	table, err := store.NewTable(src.ID, parsed.Schema, parsed.Records, opts...)
	if err != nil {
		return nil, fmt.Errorf("source %s: %w", src.ID, err)
	}
	l.logger.Info("Source loaded", zap.String("source", src.ID), zap.String("url", src.URL), zap.Int("records", table.Len()), zap.Bool("shared", res.Shared))
	return table, nil
}

// LoadAll loads the sources concurrently and returns the tables keyed by
// source ID. The first failure cancels the remaining loads.
func (l *Loader) LoadAll(ctx context.Context, sources ...Source) (map[string]*store.Table, error) {
	tables := make([]*store.Table, len(sources))
	g, gctx := errgroup.WithContext(ctx)
	for i, src := range sources {
		g.Go(func() error {
			table, err := l.Load(gctx, src)
			if err != nil {
				return err
			}
			tables[i] = table
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[string]*store.Table, len(sources))
	for i, src := range sources {
		out[src.ID] = tables[i]
	}
	return out, nil
}

func (l *Loader) fetch(ctx context.Context, src Source) (*Parsed, error) {
	rc, err := l.open(ctx, src.URL)
	if err != nil {
		return nil, fmt.Errorf("source %s: %w", src.ID, err)
	}
	defer rc.Close()
	return ParseCSV(ctx, rc, src.ID, l.logger)
}

func (l *Loader) open(ctx context.Context, url string) (io.ReadCloser, error) {
	switch {
	case url == "":
		return nil, fmt.Errorf("%w: empty url", ErrUnsupportedSource)
	case strings.HasPrefix(url, "http://"), strings.HasPrefix(url, "https://"):
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to build request: %w", err)
		}
		resp, err := l.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("failed to GET CSV: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, fmt.Errorf("failed to GET CSV: unexpected status %s", resp.Status)
		}
		return resp.Body, nil
	case strings.HasPrefix(url, "file://"):
		return l.openFile(strings.TrimPrefix(url, "file://"))
	case strings.Contains(url, "://"):
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedSource, url)
	default:
		return l.openFile(url)
	}
}

func (l *Loader) openFile(path string) (io.ReadCloser, error) {
	f, err := l.fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	return f, nil
}
