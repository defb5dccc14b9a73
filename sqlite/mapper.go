package sqlite

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/asaidimu/go-scoss/core/schema"
)

// InteractorOptions provides configuration for the interactor.
type InteractorOptions struct {
	// IfNotExists adds IF NOT EXISTS to CREATE TABLE statements.
	IfNotExists bool

	// DropIfExists drops the table before creating it, so a saved snapshot
	// replaces the previous one.
	DropIfExists bool

	// TablePrefix is prepended to every table name.
	TablePrefix string
}

// DefaultInteractorOptions returns the options used when none are given.
func DefaultInteractorOptions() *InteractorOptions {
	return &InteractorOptions{
		IfNotExists:  true,
		DropIfExists: true,
	}
}

// getTableName returns the quoted table name with the configured prefix.
func (s *SQLiteInteractor) getTableName(baseName string) string {
	return quoteIdentifier(s.options.TablePrefix + baseName)
}

// CreateTable creates a table with one TEXT column per schema column, in
// column order.
func (s *SQLiteInteractor) CreateTable(sc *schema.SchemaDefinition) error {
	if s.options.DropIfExists {
		if err := s.DropTable(sc.Name); err != nil {
			return err
		}
	}

	stmt, err := s.CreateTableSQL(sc)
	if err != nil {
		return fmt.Errorf("failed to generate SQL for table %s: %w", sc.Name, err)
	}
	if _, err := s.runner().Exec(stmt); err != nil {
		return fmt.Errorf("failed to execute SQL statement '%s': %w", stmt, err)
	}
	return nil
}

// CreateTableSQL generates the CREATE TABLE statement for a schema.
func (s *SQLiteInteractor) CreateTableSQL(sc *schema.SchemaDefinition) (string, error) {
	columns := sc.Columns()
	if len(columns) == 0 {
		return "", fmt.Errorf("schema %s has no columns", sc.Name)
	}

	var sb strings.Builder
	sb.WriteString("CREATE TABLE ")
	if s.options.IfNotExists {
		sb.WriteString("IF NOT EXISTS ")
	}
	sb.WriteString(s.getTableName(sc.Name) + " (\n")

	defs := make([]string, 0, len(columns))
	for _, col := range columns {
		defs = append(defs, "    "+quoteIdentifier(col)+" "+s.GetColumnType(sc.Fields[col]))
	}
	sb.WriteString(strings.Join(defs, ",\n"))
	sb.WriteString("\n);")
	return sb.String(), nil
}

// GetColumnType maps a field to its SQLite column type. Values are kept
// exactly as loaded, so every column is TEXT.
func (s *SQLiteInteractor) GetColumnType(field *schema.FieldDefinition) string {
	return "TEXT"
}

// DropTable drops a table from the database.
func (s *SQLiteInteractor) DropTable(name string) error {
	fullTableName := s.getTableName(name)
	stmt := fmt.Sprintf("DROP TABLE IF EXISTS %s;", fullTableName)
	if _, err := s.runner().Exec(stmt); err != nil {
		return fmt.Errorf("failed to drop table %s: %w", fullTableName, err)
	}
	return nil
}

// TableExists checks if a table exists in the database.
func (s *SQLiteInteractor) TableExists(name string) (bool, error) {
	fullUnquotedName := s.options.TablePrefix + name
	q := "SELECT name FROM sqlite_master WHERE type='table' AND name = ?;"

	var found string
	err := s.runner().QueryRow(q, fullUnquotedName).Scan(&found)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
