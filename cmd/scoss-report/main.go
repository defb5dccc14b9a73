// Command scoss-report loads a service registry and a master funding sheet
// and prints the funding dashboard of one service provider as JSON.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/asaidimu/go-scoss/config"
	"github.com/asaidimu/go-scoss/core/query"
	"github.com/asaidimu/go-scoss/core/store"
	"github.com/asaidimu/go-scoss/dashboard"
	"github.com/asaidimu/go-scoss/logging"
	"github.com/asaidimu/go-scoss/source"
	"github.com/asaidimu/go-scoss/sqlite"
	"github.com/spf13/afero"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], afero.NewOsFs(), os.Stdout); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, "scoss-report:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, fs afero.Fs, stdout io.Writer) error {
	flags := pflag.NewFlagSet("scoss-report", pflag.ContinueOnError)
	config.RegisterFlags(flags)
	if err := flags.Parse(args); err != nil {
		return err
	}
	path, _ := flags.GetString("config")

	cfg, err := config.LoadFs(fs, path, flags)
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return err
	}
	defer logger.Sync()

	loadCtx := ctx
	if cfg.LoadTimeout > 0 {
		var cancel context.CancelFunc
		loadCtx, cancel = context.WithTimeout(ctx, cfg.LoadTimeout)
		defer cancel()
	}

	loader := source.NewLoader(fs, logger,
		source.WithTableOptions(store.WithLogger(logger)),
		source.WithNumberColumns(dashboard.AmountColumns()...),
	)
	tables, err := loader.LoadAll(loadCtx, cfg.Registry(), cfg.Master())
	if err != nil {
		return fmt.Errorf("failed to load sources: %w", err)
	}
	registry, master := tables[cfg.Registry().ID], tables[cfg.Master().ID]

	if cfg.Snapshot.Enabled {
		master, err = snapshot(ctx, cfg, logger, registry, master)
		if err != nil {
			return err
		}
	}

	opts := cfg.DashboardOptions()
	opts.Logger = logger
	d, err := dashboard.New(registry, master, opts)
	if err != nil {
		return err
	}
	report, err := d.Report()
	if err != nil {
		return err
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

// snapshot stores both sheets in SQLite and reads the provider's rows of the
// master sheet back, with the service filter evaluated by the database.
func snapshot(ctx context.Context, cfg *config.Config, logger *zap.Logger, registry, master *store.Table) (*store.Table, error) {
	db, err := sqlite.Open(cfg.Snapshot.Path)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	interactor := sqlite.NewSQLiteInteractor(db, logger, sqlite.DefaultInteractorOptions())
	if err := saveTables(ctx, interactor, logger, registry, master); err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}

	sc := master.Schema().Clone()
	sc.Name = master.Name()
	filters := []query.Filter{query.Exact(dashboard.ColServiceID, cfg.ServiceID)}
	reloaded, err := interactor.LoadTable(ctx, sc, filters, store.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}
	logger.Info("Snapshot written", zap.String("path", cfg.Snapshot.Path), zap.Int("providerRows", reloaded.Len()))
	return reloaded, nil
}

// saveTables writes the tables in a single transaction.
func saveTables(ctx context.Context, db sqlite.DatabaseInteractor, logger *zap.Logger, tables ...*store.Table) error {
	tx, err := db.StartTransaction(ctx)
	if err != nil {
		return err
	}
	for _, table := range tables {
		if err := tx.SaveTable(ctx, table); err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				logger.Error("Rollback failed", zap.Error(rbErr))
			}
			return err
		}
	}
	return tx.Commit(ctx)
}
