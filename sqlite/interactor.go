// Package sqlite persists tables to a SQLite database and loads them back,
// pushing simple equality filters down into SQL.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/asaidimu/go-scoss/core/query"
	"github.com/asaidimu/go-scoss/core/schema"
	"github.com/asaidimu/go-scoss/core/store"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// dbRunner abstracts the common methods of *sql.DB and *sql.Tx, allowing for
// the same code to be used for both transactional and non-transactional
// operations.
type dbRunner interface {
	Exec(query string, args ...any) (sql.Result, error)
	QueryRow(query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
}

// DatabaseInteractor is the storage surface used to snapshot tables.
type DatabaseInteractor interface {
	CreateTable(sc *schema.SchemaDefinition) error
	DropTable(name string) error
	TableExists(name string) (bool, error)
	InsertDocuments(ctx context.Context, sc *schema.SchemaDefinition, records []schema.Document) (int64, error)
	SelectDocuments(ctx context.Context, sc *schema.SchemaDefinition, filter *query.QueryFilter) ([]schema.Document, error)
	DeleteDocuments(ctx context.Context, sc *schema.SchemaDefinition, filter *query.QueryFilter, unsafeDelete bool) (int64, error)
	SaveTable(ctx context.Context, table *store.Table) error
	LoadTable(ctx context.Context, sc *schema.SchemaDefinition, filters []query.Filter, opts ...store.Option) (*store.Table, error)
	StartTransaction(ctx context.Context) (DatabaseInteractor, error)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// SQLiteInteractor implements DatabaseInteractor for SQLite. It can operate
// in both transactional and non-transactional modes.
type SQLiteInteractor struct {
	db        *sql.DB
	tx        *sql.Tx
	processor *query.DataProcessor
	logger    *zap.Logger
	options   *InteractorOptions
}

var _ DatabaseInteractor = (*SQLiteInteractor)(nil)

// NewSQLiteInteractor creates a new interactor on db.
func NewSQLiteInteractor(db *sql.DB, logger *zap.Logger, options *InteractorOptions) *SQLiteInteractor {
	return newInteractor(db, nil, logger, options)
}

func newInteractor(db *sql.DB, tx *sql.Tx, logger *zap.Logger, options *InteractorOptions) *SQLiteInteractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if options == nil {
		options = DefaultInteractorOptions()
	}
	return &SQLiteInteractor{
		db:        db,
		tx:        tx,
		processor: query.NewDataProcessor(logger),
		logger:    logger,
		options:   options,
	}
}

// Open opens (or creates) a SQLite database at path. Use ":memory:" for a
// private in-memory database.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database %s: %w", path, err)
	}
	// an in-memory database exists per connection
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to sqlite database %s: %w", path, err)
	}
	return db, nil
}

// runner returns the transaction when there is one, the pool otherwise.
func (i *SQLiteInteractor) runner() dbRunner {
	if i.tx != nil {
		return i.tx
	}
	return i.db
}

func (i *SQLiteInteractor) generator(sc *schema.SchemaDefinition) (*SqliteQuery, error) {
	g, err := NewSqliteQuery(sc, i.options.TablePrefix)
	if err != nil {
		return nil, fmt.Errorf("could not get a query generator instance: %w", err)
	}
	return g, nil
}

// readRows reads all rows into documents keyed by column name. TEXT comes
// back as string; NULL stays nil.
func readRows(rows *sql.Rows) ([]schema.Document, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to get columns: %w", err)
	}

	results := make([]schema.Document, 0)
	for rows.Next() {
		row := make(schema.Document, len(columns))
		values := make([]any, len(columns))
		scanArgs := make([]any, len(columns))
		for i := range values {
			scanArgs[i] = &values[i]
		}

		if err := rows.Scan(scanArgs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		for i, col := range columns {
			switch val := values[i].(type) {
			case []byte:
				row[col] = string(val)
			default:
				row[col] = val
			}
		}
		results = append(results, row)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error after scanning rows: %w", err)
	}
	return results, nil
}

// SelectDocuments returns the records passing filter in insertion order.
// Conditions SQLite can evaluate exactly are pushed into the WHERE clause;
// the rest are applied in memory.
func (i *SQLiteInteractor) SelectDocuments(ctx context.Context, sc *schema.SchemaDefinition, filter *query.QueryFilter) ([]schema.Document, error) {
	g, err := i.generator(sc)
	if err != nil {
		return nil, err
	}

	sqlQuery, queryParams, residual, err := g.GenerateSelectSQL(filter)
	if err != nil {
		return nil, fmt.Errorf("failed to generate SQL query: %w", err)
	}

	i.logger.Debug("Executing SQL SELECT", zap.String("sql", sqlQuery), zap.Any("params", queryParams))

	rows, err := i.runner().QueryContext(ctx, sqlQuery, queryParams...)
	if err != nil {
		i.logger.Error("Failed to execute SELECT query", zap.Error(err), zap.String("sql", sqlQuery))
		return nil, fmt.Errorf("failed to execute SELECT query: %w", err)
	}
	defer rows.Close()

	docs, err := readRows(rows)
	if err != nil {
		return nil, err
	}
	if residual == nil {
		return docs, nil
	}

	i.logger.Debug("Applying filters not pushed to SQLite", zap.Int("rows", len(docs)))
	return i.processor.FilterRows(docs, residual)
}

// InsertDocuments inserts records in column order and returns the number of
// rows written. Outside a transaction the whole batch runs in its own one.
func (i *SQLiteInteractor) InsertDocuments(ctx context.Context, sc *schema.SchemaDefinition, records []schema.Document) (int64, error) {
	if len(records) == 0 {
		return 0, nil
	}
	g, err := i.generator(sc)
	if err != nil {
		return 0, err
	}
	sqlQuery, columns, err := g.GenerateInsertSQL()
	if err != nil {
		return 0, fmt.Errorf("failed to generate INSERT SQL: %w", err)
	}

	if i.tx == nil {
		txi, err := i.startTransaction(ctx)
		if err != nil {
			return 0, err
		}
		n, err := txi.InsertDocuments(ctx, sc, records)
		if err != nil {
			if rbErr := txi.Rollback(ctx); rbErr != nil {
				i.logger.Error("Rollback failed", zap.Error(rbErr))
			}
			return 0, err
		}
		return n, txi.Commit(ctx)
	}

	i.logger.Debug("Executing SQL INSERT", zap.String("sql", sqlQuery), zap.Int("records", len(records)))

	stmt, err := i.tx.PrepareContext(ctx, sqlQuery)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare INSERT: %w", err)
	}
	defer stmt.Close()

	var count int64
	args := make([]any, len(columns))
	for _, record := range records {
		for c, col := range columns {
			args[c] = prepareValueForQuery(record[col])
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			i.logger.Error("Failed to execute INSERT query", zap.Error(err), zap.String("sql", sqlQuery))
			return 0, fmt.Errorf("failed to execute INSERT query: %w", err)
		}
		count++
	}
	return count, nil
}

// DeleteDocuments deletes records matching filter. Only filters that can be
// evaluated entirely in SQL are accepted.
func (i *SQLiteInteractor) DeleteDocuments(ctx context.Context, sc *schema.SchemaDefinition, filter *query.QueryFilter, unsafeDelete bool) (int64, error) {
	g, err := i.generator(sc)
	if err != nil {
		return 0, err
	}

	sqlQuery, queryParams, err := g.GenerateDeleteSQL(filter, unsafeDelete)
	if err != nil {
		return 0, fmt.Errorf("failed to generate DELETE SQL: %w", err)
	}

	i.logger.Debug("Executing SQL DELETE", zap.String("sql", sqlQuery), zap.Any("params", queryParams))

	result, err := i.runner().ExecContext(ctx, sqlQuery, queryParams...)
	if err != nil {
		i.logger.Error("Failed to execute DELETE query", zap.Error(err), zap.String("sql", sqlQuery))
		return 0, fmt.Errorf("failed to execute DELETE query: %w", err)
	}
	return result.RowsAffected()
}

// SaveTable writes every record of table, regardless of its filters, into a
// database table named after it.
func (i *SQLiteInteractor) SaveTable(ctx context.Context, table *store.Table) error {
	sc := table.Schema().Clone()
	sc.Name = table.Name()

	if err := i.CreateTable(sc); err != nil {
		return err
	}
	n, err := i.InsertDocuments(ctx, sc, table.All().Records())
	if err != nil {
		return fmt.Errorf("failed to save table %s: %w", table.Name(), err)
	}
	i.logger.Info("Table saved", zap.String("table", table.Name()), zap.Int64("records", n))
	return nil
}

// LoadTable reads a saved table back. The filters are pushed down where
// possible and are also active on the returned table.
func (i *SQLiteInteractor) LoadTable(ctx context.Context, sc *schema.SchemaDefinition, filters []query.Filter, opts ...store.Option) (*store.Table, error) {
	if err := query.ValidateFilters(sc, filters); err != nil {
		return nil, fmt.Errorf("failed to load table %s: %w", sc.Name, err)
	}

	docs, err := i.SelectDocuments(ctx, sc, query.AllOf(filters...))
	if err != nil {
		return nil, fmt.Errorf("failed to load table %s: %w", sc.Name, err)
	}

	table, err := store.NewTable(sc.Name, sc, docs, append([]store.Option{store.WithLogger(i.logger)}, opts...)...)
	if err != nil {
		return nil, err
	}
	for _, f := range filters {
		if err := table.AddFilter(f); err != nil {
			return nil, err
		}
	}
	i.logger.Info("Table loaded from snapshot", zap.String("table", sc.Name), zap.Int("records", table.Len()))
	return table, nil
}

func (i *SQLiteInteractor) startTransaction(ctx context.Context) (*SQLiteInteractor, error) {
	if i.tx != nil {
		return nil, fmt.Errorf("cannot start a new transaction from an existing transactional interactor")
	}

	tx, err := i.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	i.logger.Debug("Transaction initiated, returning new transactional interactor")
	return newInteractor(i.db, tx, i.logger, i.options), nil
}

// StartTransaction begins a new database transaction and returns an
// interactor scoped to it.
func (i *SQLiteInteractor) StartTransaction(ctx context.Context) (DatabaseInteractor, error) {
	txi, err := i.startTransaction(ctx)
	if err != nil {
		return nil, err
	}
	return txi, nil
}

// Commit commits the current transaction.
func (i *SQLiteInteractor) Commit(ctx context.Context) error {
	if i.tx == nil {
		return fmt.Errorf("commit not applicable: not in a transactional context")
	}
	i.logger.Debug("Committing transaction")
	return i.tx.Commit()
}

// Rollback rolls back the current transaction.
func (i *SQLiteInteractor) Rollback(ctx context.Context) error {
	if i.tx == nil {
		return fmt.Errorf("rollback not applicable: not in a transactional context")
	}
	i.logger.Debug("Rolling back transaction")
	return i.tx.Rollback()
}
