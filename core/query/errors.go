package query

import (
	"errors"
	"fmt"
	"strings"

	"github.com/asaidimu/go-scoss/core/schema"
)

// ErrInvalidConfiguration is the configuration-error kind returned when an
// aggregation or filter refers to something the table cannot provide.
var ErrInvalidConfiguration = errors.New("invalid query configuration")

// ConfigError carries the issues found while validating a query.
type ConfigError struct {
	Issues []schema.Issue
}

func (e *ConfigError) Error() string {
	msgs := make([]string, 0, len(e.Issues))
	for _, issue := range e.Issues {
		msgs = append(msgs, fmt.Sprintf("%s: %s", issue.Path, issue.Message))
	}
	return fmt.Sprintf("%s: %s", ErrInvalidConfiguration, strings.Join(msgs, "; "))
}

func (e *ConfigError) Unwrap() error {
	return ErrInvalidConfiguration
}
