package store

import (
	"errors"
	"fmt"
	"strings"

	"github.com/asaidimu/go-scoss/core/schema"
)

// ErrSchemaMismatch is returned when records do not share the table's column set.
var ErrSchemaMismatch = errors.New("records do not match table schema")

// SchemaError lists the validation issues that rejected a table's records.
type SchemaError struct {
	Table  string
	Issues []schema.Issue
}

func (e *SchemaError) Error() string {
	msgs := make([]string, 0, len(e.Issues))
	for _, issue := range e.Issues {
		if issue.Severity != "error" {
			continue
		}
		msgs = append(msgs, fmt.Sprintf("%s: %s", issue.Path, issue.Message))
	}
	return fmt.Sprintf("table %s: %s: %s", e.Table, ErrSchemaMismatch, strings.Join(msgs, "; "))
}

func (e *SchemaError) Unwrap() error {
	return ErrSchemaMismatch
}
