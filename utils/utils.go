// Package utils holds small helpers shared by the command and the dashboard.
package utils

import (
	"encoding/json"
	"fmt"
	"reflect"
)

// DecodeRecord converts a record into a new instance of the struct type T,
// matching record keys against the struct's `json` tags. Field types that
// implement json.Unmarshaler can accept the raw string cells of a CSV row.
//
// T must be a struct or a pointer to a struct. Keys with no matching field are
// ignored.
//
// Example:
//
//	type Provider struct {
//		ServiceID string `json:"Service ID"`
//	}
//	p, err := DecodeRecord[Provider](map[string]any{"Service ID": "A", "Name": "Alpha"})
//	// p == Provider{ServiceID: "A"}
func DecodeRecord[T any](record map[string]any) (T, error) {
	var zero T

	if record == nil {
		return zero, fmt.Errorf("DecodeRecord: record cannot be nil")
	}

	typ := reflect.TypeOf(zero)
	if typ == nil {
		return zero, fmt.Errorf("DecodeRecord: generic type T must be a struct type (or pointer to struct)")
	}
	if typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}
	if typ.Kind() != reflect.Struct {
		return zero, fmt.Errorf("DecodeRecord: generic type T must be a struct type (or pointer to struct), got %s", typ.Kind())
	}

	jsonBytes, err := json.Marshal(record)
	if err != nil {
		return zero, fmt.Errorf("DecodeRecord: failed to marshal record to JSON: %w", err)
	}

	var result T
	if err := json.Unmarshal(jsonBytes, &result); err != nil {
		return zero, fmt.Errorf("DecodeRecord: failed to unmarshal JSON to target struct: %w", err)
	}

	return result, nil
}

// Must panics if err is not nil. It is meant for values known to be valid
// at program start, such as built-in schemas.
func Must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}
