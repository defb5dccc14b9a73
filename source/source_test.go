package source

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/asaidimu/go-scoss/core/query"
	"github.com/asaidimu/go-scoss/core/schema"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

const registryCSV = "Service ID,Name,Funding Target (EUR)\nA,Alpha,\"1,000\"\nB,Beta,200\n"

const masterCSV = "\ufeffService ID, \"Funder Continent\" ,Funding Committed (EUR)\n" +
	"A,EU,100\n" +
	"A,EU\n" +
	"A,AS,25,extra\n" +
	"\n" +
	"B,EU,999\n"

func TestParseCSV(t *testing.T) {
	ctx := context.Background()

	t.Run("cleans headers and normalizes rows", func(t *testing.T) {
		parsed, err := ParseCSV(ctx, strings.NewReader(masterCSV), "master", zap.NewNop())
		require.NoError(t, err)
		assert.Equal(t, []string{"Service ID", "Funder Continent", "Funding Committed (EUR)"}, parsed.Schema.Columns())
		assert.Equal(t, "master", parsed.Schema.Name)
		require.Len(t, parsed.Records, 4)
		assert.Equal(t, "", parsed.Records[1]["Funding Committed (EUR)"])
		assert.Equal(t, "25", parsed.Records[2]["Funding Committed (EUR)"])
		assert.Len(t, parsed.Records[2], 3)
		assert.Equal(t, "B", parsed.Records[3]["Service ID"])
	})

	t.Run("keeps quoted values raw", func(t *testing.T) {
		parsed, err := ParseCSV(ctx, strings.NewReader(registryCSV), "registry", nil)
		require.NoError(t, err)
		assert.Equal(t, "1,000", parsed.Records[0]["Funding Target (EUR)"])
	})

	t.Run("empty input", func(t *testing.T) {
		_, err := ParseCSV(ctx, strings.NewReader(""), "empty", nil)
		assert.ErrorIs(t, err, ErrEmptySource)
	})

	t.Run("header only", func(t *testing.T) {
		parsed, err := ParseCSV(ctx, strings.NewReader("a,b\n"), "h", nil)
		require.NoError(t, err)
		assert.Empty(t, parsed.Records)
	})

	t.Run("duplicate headers", func(t *testing.T) {
		_, err := ParseCSV(ctx, strings.NewReader("a,a\n1,2\n"), "dup", nil)
		assert.Error(t, err)
	})

	t.Run("blank header gets a positional name", func(t *testing.T) {
		parsed, err := ParseCSV(ctx, strings.NewReader("a,,c\n1,2,3\n"), "blank", nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "column_2", "c"}, parsed.Schema.Columns())
		assert.Equal(t, "2", parsed.Records[0]["column_2"])
	})

	t.Run("cancelled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := ParseCSV(cctx, strings.NewReader(masterCSV), "master", nil)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func newMemFs(t *testing.T) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/data/registry.csv", []byte(registryCSV), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/data/master.csv", []byte(masterCSV), 0o644))
	return fs
}

func TestLoader_Load(t *testing.T) {
	ctx := context.Background()
	loader := NewLoader(newMemFs(t), zap.NewNop())

	t.Run("path", func(t *testing.T) {
		table, err := loader.Load(ctx, Source{ID: "master", URL: "/data/master.csv"})
		require.NoError(t, err)
		assert.Equal(t, "master", table.Name())
		assert.Equal(t, 4, table.Len())
	})

	t.Run("file url", func(t *testing.T) {
		table, err := loader.Load(ctx, Source{ID: "registry", URL: "file:///data/registry.csv"})
		require.NoError(t, err)
		assert.Equal(t, 2, table.Len())
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := loader.Load(ctx, Source{ID: "x", URL: "/data/nope.csv"})
		assert.Error(t, err)
	})

	t.Run("unsupported scheme", func(t *testing.T) {
		_, err := loader.Load(ctx, Source{ID: "x", URL: "ftp://example.org/a.csv"})
		assert.ErrorIs(t, err, ErrUnsupportedSource)
	})

	t.Run("empty url", func(t *testing.T) {
		_, err := loader.Load(ctx, Source{ID: "x"})
		assert.ErrorIs(t, err, ErrUnsupportedSource)
	})

	t.Run("missing id", func(t *testing.T) {
		_, err := loader.Load(ctx, Source{URL: "/data/master.csv"})
		assert.Error(t, err)
	})

	t.Run("loads are independent tables", func(t *testing.T) {
		a, err := loader.Load(ctx, Source{ID: "master", URL: "/data/master.csv"})
		require.NoError(t, err)
		b, err := loader.Load(ctx, Source{ID: "master", URL: "/data/master.csv"})
		require.NoError(t, err)
		require.NoError(t, a.AddFilter(query.Exact("Service ID", "A")))
		assert.Empty(t, b.Filters())
	})
}

func TestLoader_LoadHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/registry.csv" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/csv")
		_, _ = w.Write([]byte(registryCSV))
	}))
	defer srv.Close()

	loader := NewLoader(afero.NewMemMapFs(), nil, WithHTTPClient(srv.Client()))

	table, err := loader.Load(context.Background(), Source{ID: "registry", URL: srv.URL + "/registry.csv"})
	require.NoError(t, err)
	assert.Equal(t, 2, table.Len())

	_, err = loader.Load(context.Background(), Source{ID: "missing", URL: srv.URL + "/missing.csv"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestLoader_LoadAll(t *testing.T) {
	loader := NewLoader(newMemFs(t), zap.NewNop())

	tables, err := loader.LoadAll(context.Background(),
		Source{ID: "registry", URL: "/data/registry.csv"},
		Source{ID: "master", URL: "/data/master.csv"},
	)
	require.NoError(t, err)
	require.Len(t, tables, 2)
	assert.Equal(t, 2, tables["registry"].Len())
	assert.Equal(t, 4, tables["master"].Len())

	_, err = loader.LoadAll(context.Background(),
		Source{ID: "registry", URL: "/data/registry.csv"},
		Source{ID: "broken", URL: "/data/none.csv"},
	)
	assert.Error(t, err)
	assert.False(t, errors.Is(err, ErrUnsupportedSource))
}

func TestParsed_WithNumberColumns(t *testing.T) {
	parsed, err := ParseCSV(context.Background(), strings.NewReader(registryCSV), "registry", nil)
	require.NoError(t, err)

	numeric := parsed.WithNumberColumns("Funding Target (EUR)", "Total Paid (EUR)")
	assert.Equal(t, schema.FieldTypeNumber, numeric.Schema.Fields["Funding Target (EUR)"].Type)
	assert.Equal(t, schema.FieldTypeString, numeric.Schema.Fields["Service ID"].Type)
	assert.False(t, numeric.Schema.HasField("Total Paid (EUR)"))
	assert.Equal(t, parsed.Records, numeric.Records)

	// the original schema is untouched
	assert.Equal(t, schema.FieldTypeString, parsed.Schema.Fields["Funding Target (EUR)"].Type)
}

func TestLoader_NumberColumns(t *testing.T) {
	const sheet = "Service ID,Funding Committed (EUR)\nA,100\nA,lots\nA,\n"
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/data/amounts.csv", []byte(sheet), 0o644))
	src := Source{ID: "master", URL: "/data/amounts.csv"}

	t.Run("unparseable amounts are reported", func(t *testing.T) {
		core, logs := observer.New(zapcore.WarnLevel)
		loader := NewLoader(fs, zap.New(core), WithNumberColumns("Funding Committed (EUR)", "Total Paid (EUR)"))

		table, err := loader.Load(context.Background(), src)
		require.NoError(t, err)
		assert.Equal(t, schema.FieldTypeNumber, table.Schema().Fields["Funding Committed (EUR)"].Type)

		entries := logs.FilterMessage("Record value issue").All()
		require.Len(t, entries, 1)
		fields := entries[0].ContextMap()
		assert.Equal(t, "NUMBER_UNPARSEABLE", fields["code"])
		assert.Equal(t, "[1].Funding Committed (EUR)", fields["path"])

		results, err := table.Aggregate([]query.AggregationConfiguration{query.Sum("total", "Funding Committed (EUR)")})
		require.NoError(t, err)
		assert.Equal(t, 100.0, results[0].Sum)
	})

	t.Run("text columns stay quiet", func(t *testing.T) {
		core, logs := observer.New(zapcore.WarnLevel)
		_, err := NewLoader(fs, zap.New(core)).Load(context.Background(), src)
		require.NoError(t, err)
		assert.Zero(t, logs.FilterMessage("Record value issue").Len())
	})
}

func TestLoader_SharedFetchOutlivesCancelledCaller(t *testing.T) {
	var hits atomic.Int32
	requested := make(chan struct{}, 1)
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		select {
		case requested <- struct{}{}:
		default:
		}
		<-release
		_, _ = w.Write([]byte(registryCSV))
	}))
	defer srv.Close()
	var releaseOnce sync.Once
	unblock := func() { releaseOnce.Do(func() { close(release) }) }
	defer unblock()

	loader := NewLoader(afero.NewMemMapFs(), nil, WithHTTPClient(srv.Client()))
	src := Source{ID: "registry", URL: srv.URL + "/registry.csv"}

	firstCtx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := loader.Load(firstCtx, src)
		firstErr <- err
	}()
	<-requested

	type outcome struct {
		table int
		err   error
	}
	second := make(chan outcome, 1)
	go func() {
		table, err := loader.Load(context.Background(), src)
		if err != nil {
			second <- outcome{err: err}
			return
		}
		second <- outcome{table: table.Len()}
	}()
	// let the second caller join the in-flight fetch
	time.Sleep(50 * time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-firstErr, context.Canceled)
	unblock()

	got := <-second
	require.NoError(t, got.err)
	assert.Equal(t, 2, got.table)
	assert.Equal(t, int32(1), hits.Load())
}
