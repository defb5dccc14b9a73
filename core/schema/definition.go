// Package schema describes the column layout of a tabular data source and the
// records that conform to it.
package schema

import (
	"encoding/json"
	"fmt"
	"sort"
)

// LogicalOperator for combining conditions.
type LogicalOperator string

const (
	LogicalAnd LogicalOperator = "and" // All conditions must be true
	LogicalOr  LogicalOperator = "or"  // At least one condition must be true
)

// FieldType represents the basic field types supported by the schema system.
type FieldType string

const (
	FieldTypeString FieldType = "string" // Text data
	FieldTypeNumber FieldType = "number" // Numeric data, possibly formatted ("€1,000")
)

// FieldDefinition defines a single column of a table.
type FieldDefinition struct {
	Name string    `json:"name"`
	Type FieldType `json:"type"`
	// Required indicates that the column must be present on every record.
	Required *bool `json:"required,omitempty"`
	// Description provides a brief explanation of the field.
	Description *string `json:"description,omitempty"`
}

// SchemaDefinition is the column set shared by every record of a table.
type SchemaDefinition struct {
	Name        string                      `json:"name"`
	Version     string                      `json:"version"`
	Description *string                     `json:"description,omitempty"`
	Fields      map[string]*FieldDefinition `json:"fields"`
	// ColumnOrder keeps the header order of the source, since Fields is unordered.
	ColumnOrder []string       `json:"columnOrder,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// NewSchemaFromColumns builds a schema in which every column is a required
// string field, in the order given. Duplicate or empty column names are rejected.
func NewSchemaFromColumns(name string, columns []string) (*SchemaDefinition, error) {
	required := true
	sc := &SchemaDefinition{
		Name:        name,
		Version:     "1.0.0",
		Fields:      make(map[string]*FieldDefinition, len(columns)),
		ColumnOrder: make([]string, 0, len(columns)),
	}
	for i, col := range columns {
		if col == "" {
			return nil, fmt.Errorf("column %d of %s has an empty name", i, name)
		}
		if _, dup := sc.Fields[col]; dup {
			return nil, fmt.Errorf("duplicate column '%s' in %s", col, name)
		}
		sc.Fields[col] = &FieldDefinition{Name: col, Type: FieldTypeString, Required: &required}
		sc.ColumnOrder = append(sc.ColumnOrder, col)
	}
	return sc, nil
}

// Columns returns the column names in source order. Schemas built without an
// explicit order fall back to the sorted field names.
func (s *SchemaDefinition) Columns() []string {
	if len(s.ColumnOrder) == len(s.Fields) {
		return append([]string(nil), s.ColumnOrder...)
	}
	cols := make([]string, 0, len(s.Fields))
	for name := range s.Fields {
		cols = append(cols, name)
	}
	sort.Strings(cols)
	return cols
}

// HasField reports whether the schema declares a column with the given name.
func (s *SchemaDefinition) HasField(name string) bool {
	_, ok := s.Fields[name]
	return ok
}

// SetFieldType changes the declared type of an existing column.
func (s *SchemaDefinition) SetFieldType(name string, t FieldType) error {
	f, ok := s.Fields[name]
	if !ok {
		return fmt.Errorf("field '%s' not found in schema %s", name, s.Name)
	}
	f.Type = t
	return nil
}

// Clone returns a deep copy of the schema.
func (s *SchemaDefinition) Clone() *SchemaDefinition {
	raw, err := json.Marshal(s)
	if err != nil {
		// Fields only hold strings and pointers to them, marshalling cannot fail.
		panic(err)
	}
	var out SchemaDefinition
	_ = json.Unmarshal(raw, &out)
	return &out
}

// Issue represents a validation or operational issue.
type Issue struct {
	Code        string `json:"code"`
	Message     string `json:"message"`
	Path        string `json:"path,omitempty"`
	Severity    string `json:"severity,omitempty"` // e.g., "error", "warning"
	Description string `json:"description,omitempty"`
}

// Document is a single record: column name to scalar value.
type Document map[string]any
