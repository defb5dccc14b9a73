// Package schema provides the Validator, which checks that a record carries
// exactly the columns of its table and that each value is a scalar of the
// declared type.
package schema

import (
	"fmt"
	"strconv"
	"strings"
)

// NumberParser converts a raw value into a number. The query package supplies
// the locale-aware parser so that validation and aggregation agree.
type NumberParser func(value any) (float64, bool)

// Validator is responsible for validating records against a schema. It can be
// reused for any number of records.
type Validator struct {
	schema *SchemaDefinition
	parse  NumberParser
	issues []Issue
}

// NewValidator creates a new Validator for a given schema. A nil parser falls
// back to strconv.ParseFloat on string values.
func NewValidator(schema *SchemaDefinition, parse NumberParser) *Validator {
	if parse == nil {
		parse = plainNumber
	}
	return &Validator{
		schema: schema,
		parse:  parse,
		issues: make([]Issue, 0),
	}
}

// Validate checks a single record. The boolean is false only when an issue of
// severity "error" was found; unparseable numbers are reported as warnings
// because aggregation treats them as zero. The `loose` parameter ignores
// missing required columns.
func (v *Validator) Validate(data Document, loose bool) (bool, []Issue) {
	v.issues = make([]Issue, 0)

	v.validateData(data, "")

	finalIssues := v.issues
	if loose {
		filteredIssues := make([]Issue, 0, len(v.issues))
		for _, issue := range v.issues {
			if issue.Code != "REQUIRED_FIELD_MISSING" {
				filteredIssues = append(filteredIssues, issue)
			}
		}
		finalIssues = filteredIssues
	}

	for _, issue := range finalIssues {
		if issue.Severity == "error" {
			return false, finalIssues
		}
	}
	return true, finalIssues
}

// ValidateAll validates every record and prefixes issue paths with the row
// index, e.g. "[3].Service ID".
func (v *Validator) ValidateAll(records []Document, loose bool) (bool, []Issue) {
	valid := true
	var all []Issue
	for i, rec := range records {
		ok, issues := v.Validate(rec, loose)
		if !ok {
			valid = false
		}
		for _, issue := range issues {
			issue.Path = fmt.Sprintf("[%d].%s", i, issue.Path)
			all = append(all, issue)
		}
	}
	return valid, all
}

// validateData checks all declared fields, then flags undeclared ones.
func (v *Validator) validateData(data Document, path string) {
	for fieldName, fieldDef := range v.schema.Fields {
		fieldPath := v.buildPath(path, fieldName)
		value, exists := data[fieldName]

		if fieldDef.Required != nil && *fieldDef.Required && !exists {
			v.addIssue("REQUIRED_FIELD_MISSING", fmt.Sprintf("Required field '%s' is missing", fieldName), fieldPath, "error")
			continue
		}

		if !exists {
			continue
		}

		v.validateFieldValue(value, fieldDef, fieldPath)
	}

	for dataKey := range data {
		if _, exists := v.schema.Fields[dataKey]; !exists {
			v.addIssue("UNEXPECTED_FIELD", fmt.Sprintf("Unexpected field '%s' not defined in schema", dataKey), v.buildPath(path, dataKey), "error")
		}
	}
}

// validateFieldValue validates a single field's value against its definition.
func (v *Validator) validateFieldValue(value any, fieldDef *FieldDefinition, path string) {
	if value == nil {
		return
	}
	if !isScalar(value) {
		v.addIssue("TYPE_MISMATCH", fmt.Sprintf("Expected a string or number, got %T", value), path, "error")
		return
	}

	switch fieldDef.Type {
	case FieldTypeNumber:
		if str, ok := value.(string); ok && strings.TrimSpace(str) == "" {
			return
		}
		if _, ok := v.parse(value); !ok {
			v.addIssue("NUMBER_UNPARSEABLE", fmt.Sprintf("Value %q is not a number, it will count as 0", fmt.Sprint(value)), path, "warning")
		}
	}
}

// isScalar reports whether a value is a string or a numeric type.
func isScalar(value any) bool {
	switch value.(type) {
	case string, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return true
	}
	return false
}

// plainNumber is the fallback NumberParser.
func plainNumber(value any) (float64, bool) {
	switch val := value.(type) {
	case float64:
		return val, true
	case int:
		return float64(val), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		return f, err == nil
	}
	return 0, false
}

// buildPath constructs a dot-separated path string for error reporting.
func (v *Validator) buildPath(basePath, fieldName string) string {
	if basePath == "" {
		return fieldName
	}
	return basePath + "." + fieldName
}

// addIssue adds a new validation issue to the validator's list of issues.
func (v *Validator) addIssue(code, message, path, severity string) {
	issue := Issue{
		Code:     code,
		Message:  message,
		Path:     path,
		Severity: severity,
	}
	v.issues = append(v.issues, issue)
}
