package sqlite

import (
	"fmt"
	"strings"

	"github.com/asaidimu/go-scoss/core/query"
	"github.com/asaidimu/go-scoss/core/schema"
)

// SqliteQuery is a schema-aware query generator for SQLite. Every column is
// stored as TEXT, so only conditions whose meaning does not depend on numeric
// comparison are translated to SQL; the rest are left to the in-memory
// processor.
type SqliteQuery struct {
	schema *schema.SchemaDefinition
	table  string
}

// NewSqliteQuery creates a new schema-aware query generator for SQLite.
func NewSqliteQuery(sc *schema.SchemaDefinition, prefix string) (*SqliteQuery, error) {
	if sc == nil {
		return nil, fmt.Errorf("SchemaDefinition cannot be nil")
	}
	if sc.Name == "" {
		return nil, fmt.Errorf("schema must define a table name")
	}
	return &SqliteQuery{schema: sc, table: prefix + sc.Name}, nil
}

// quoteIdentifier properly quotes an identifier for SQLite.
func quoteIdentifier(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// getFieldSQL translates a column name into a quoted SQL accessor.
func (s *SqliteQuery) getFieldSQL(field string) (string, error) {
	if !s.schema.HasField(field) {
		return "", fmt.Errorf("field '%s' not found in schema", field)
	}
	return quoteIdentifier(field), nil
}

// prepareValueForQuery converts a record value into the TEXT stored in the
// database. Missing values stay NULL.
func prepareValueForQuery(value any) any {
	if value == nil {
		return nil
	}
	if str, ok := value.(string); ok {
		return str
	}
	return query.TermString(value)
}

// splitFilter separates the conditions that can be evaluated by SQLite from
// those that cannot. Only string equality on non-numeric values is pushed
// down, and only when it is a direct member of an AND chain; the residual
// filter must be applied to the returned rows.
func (s *SqliteQuery) splitFilter(filter *query.QueryFilter) ([]*query.FilterCondition, *query.QueryFilter) {
	if filter == nil {
		return nil, nil
	}
	if filter.Condition != nil {
		if s.pushable(filter.Condition) {
			return []*query.FilterCondition{filter.Condition}, nil
		}
		return nil, filter
	}
	if filter.Group == nil || filter.Group.Operator != schema.LogicalAnd {
		return nil, filter
	}

	var pushed []*query.FilterCondition
	var skipped []query.QueryFilter
	for i := range filter.Group.Conditions {
		cond := &filter.Group.Conditions[i]
		p, rest := s.splitFilter(cond)
		pushed = append(pushed, p...)
		if rest != nil {
			skipped = append(skipped, *rest)
		}
	}

	switch len(skipped) {
	case 0:
		return pushed, nil
	case 1:
		return pushed, &skipped[0]
	default:
		return pushed, &query.QueryFilter{Group: &query.FilterGroup{Operator: schema.LogicalAnd, Conditions: skipped}}
	}
}

func (s *SqliteQuery) pushable(cond *query.FilterCondition) bool {
	if cond.Operator != query.ComparisonOperatorEq || !s.schema.HasField(cond.Field) {
		return false
	}
	str, ok := cond.Value.(string)
	if !ok {
		return false
	}
	_, numeric := query.ToFloat64(str)
	return !numeric
}

// GenerateSelectSQL creates a SELECT over the table's columns in record order.
// It returns the part of the filter that was not translated.
func (s *SqliteQuery) GenerateSelectSQL(filter *query.QueryFilter) (string, []any, *query.QueryFilter, error) {
	columns := s.schema.Columns()
	selectFields := make([]string, 0, len(columns))
	for _, col := range columns {
		selectFields = append(selectFields, quoteIdentifier(col))
	}

	pushed, residual := s.splitFilter(filter)
	var whereClauses []string
	var queryParams []any
	for _, cond := range pushed {
		accessor, err := s.getFieldSQL(cond.Field)
		if err != nil {
			return "", nil, nil, err
		}
		whereClauses = append(whereClauses, fmt.Sprintf("%s = ?", accessor))
		queryParams = append(queryParams, prepareValueForQuery(cond.Value))
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("SELECT %s FROM %s", strings.Join(selectFields, ", "), quoteIdentifier(s.table)))
	if len(whereClauses) > 0 {
		sb.WriteString(" WHERE " + strings.Join(whereClauses, " AND "))
	}
	sb.WriteString(" ORDER BY rowid")
	return sb.String() + ";", queryParams, residual, nil
}

// GenerateInsertSQL creates a single-row INSERT with one placeholder per
// column, in column order. It is meant to be prepared once and executed for
// every record.
func (s *SqliteQuery) GenerateInsertSQL() (string, []string, error) {
	columns := s.schema.Columns()
	if len(columns) == 0 {
		return "", nil, fmt.Errorf("no columns defined for table %s", s.schema.Name)
	}

	quoted := make([]string, len(columns))
	for i, col := range columns {
		quoted[i] = quoteIdentifier(col)
	}
	placeholders := strings.Repeat("?, ", len(columns)-1) + "?"
	sql := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s);", quoteIdentifier(s.table), strings.Join(quoted, ", "), placeholders)
	return sql, columns, nil
}

// GenerateDeleteSQL creates a DELETE over the table. Without pushable
// conditions it is only allowed when unsafeDelete is set.
func (s *SqliteQuery) GenerateDeleteSQL(filter *query.QueryFilter, unsafeDelete bool) (string, []any, error) {
	pushed, residual := s.splitFilter(filter)
	if residual != nil {
		return "", nil, fmt.Errorf("filter cannot be evaluated by SQLite")
	}
	if len(pushed) == 0 && !unsafeDelete {
		return "", nil, fmt.Errorf("DELETE without WHERE clause is not allowed for safety. Set unsafeDelete=true to override")
	}

	var whereClauses []string
	var queryParams []any
	for _, cond := range pushed {
		whereClauses = append(whereClauses, fmt.Sprintf("%s = ?", quoteIdentifier(cond.Field)))
		queryParams = append(queryParams, prepareValueForQuery(cond.Value))
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("DELETE FROM %s", quoteIdentifier(s.table)))
	if len(whereClauses) > 0 {
		sb.WriteString(" WHERE " + strings.Join(whereClauses, " AND "))
	}
	return sb.String() + ";", queryParams, nil
}
