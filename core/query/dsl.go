// Package query defines the Domain-Specific Language (DSL) for filtering and
// aggregating tabular records, together with the in-memory processor that
// evaluates it.
package query

import (
	"github.com/asaidimu/go-scoss/core/schema"
)

// ComparisonOperator defines the set of operators that can be used in a filter condition.
type ComparisonOperator string

// Supported comparison operators.
const (
	ComparisonOperatorEq ComparisonOperator = "eq"
)

// FilterType is the matching mode of a Filter. Only exact matching exists;
// there is no partial or substring matching.
type FilterType string

const (
	FilterTypeExact FilterType = "exact"
)

// FilterValue represents the value used in a filter condition.
type FilterValue any

// Filter is a single active row filter on a table: the record passes iff
// record[Field] equals Value.
type Filter struct {
	Field string      `json:"field"`
	Value FilterValue `json:"value"`
	Type  FilterType  `json:"type"`
}

// Exact is shorthand for an exact-match Filter.
func Exact(field string, value FilterValue) Filter {
	return Filter{Field: field, Value: value, Type: FilterTypeExact}
}

// Condition converts the filter into a DSL condition.
func (f Filter) Condition() QueryFilter {
	return QueryFilter{Condition: &FilterCondition{Field: f.Field, Operator: ComparisonOperatorEq, Value: f.Value}}
}

// FilterCondition defines a single condition for filtering records.
type FilterCondition struct {
	Field    string             // The field to apply the filter on.
	Operator ComparisonOperator // The comparison operator to use.
	Value    FilterValue        // The value to compare against.
}

// FilterGroup combines multiple filter conditions using a logical operator.
type FilterGroup struct {
	Operator   schema.LogicalOperator // The logical operator (AND, OR) to combine the conditions.
	Conditions []QueryFilter          // The list of conditions or nested groups.
}

// QueryFilter is a union type that can represent either a single filter condition
// or a group of conditions.
type QueryFilter struct {
	Condition *FilterCondition `json:",omitempty"` // A single filter condition.
	Group     *FilterGroup     `json:",omitempty"` // A group of filter conditions.
}

// AllOf combines filters with AND. It returns nil when there is nothing to match on.
func AllOf(filters ...Filter) *QueryFilter {
	if len(filters) == 0 {
		return nil
	}
	conditions := make([]QueryFilter, 0, len(filters))
	for _, f := range filters {
		conditions = append(conditions, f.Condition())
	}
	return &QueryFilter{Group: &FilterGroup{Operator: schema.LogicalAnd, Conditions: conditions}}
}

// AggregationType specifies the type of aggregation to be performed.
type AggregationType string

// Supported aggregation types.
const (
	AggregationTypeSum   AggregationType = "sum"
	AggregationTypeTerms AggregationType = "terms"
)

// TermsOrder is the bucket ordering policy of a terms aggregation.
type TermsOrder string

const (
	// TermsOrderCount orders buckets by descending record count, ties in first-seen order.
	TermsOrderCount TermsOrder = "count"
	// TermsOrderTerm orders buckets by ascending term, numerically when both terms are numbers.
	TermsOrderTerm TermsOrder = "term"
)

// AggregationConfiguration declares a named aggregation. A sum aggregation
// totals Field; a terms aggregation groups by the distinct values of Field and
// evaluates Nested within each group.
type AggregationConfiguration struct {
	Type   AggregationType            `json:"type"`
	Name   string                     `json:"name"`
	Field  string                     `json:"field"`
	Nested []AggregationConfiguration `json:"nested,omitempty"`
	Order  TermsOrder                 `json:"order,omitempty"`
}

// Sum declares a named scalar sum over a field.
func Sum(name, field string) AggregationConfiguration {
	return AggregationConfiguration{Type: AggregationTypeSum, Name: name, Field: field}
}

// Terms declares a named group-by over the distinct values of a field.
func Terms(name, field string, order TermsOrder, nested ...AggregationConfiguration) AggregationConfiguration {
	return AggregationConfiguration{Type: AggregationTypeTerms, Name: name, Field: field, Order: order, Nested: nested}
}

// Bucket is one group of a terms aggregation.
type Bucket struct {
	Term  string                       `json:"term"`
	Count int                          `json:"count"`
	Aggs  map[string]AggregationResult `json:"aggs"`
}

// AggregationResult mirrors the shape of its AggregationConfiguration.
type AggregationResult struct {
	Name    string          `json:"name"`
	Type    AggregationType `json:"type"`
	Sum     float64         `json:"sum"`
	Buckets []Bucket        `json:"buckets,omitempty"`
}

// AggregationResults is the ordered result of evaluating a list of aggregations.
type AggregationResults []AggregationResult

// Get returns the result with the given name.
func (r AggregationResults) Get(name string) (AggregationResult, bool) {
	for _, res := range r {
		if res.Name == name {
			return res, true
		}
	}
	return AggregationResult{}, false
}

// ByName returns the results keyed by aggregation name.
func (r AggregationResults) ByName() map[string]AggregationResult {
	out := make(map[string]AggregationResult, len(r))
	for _, res := range r {
		out[res.Name] = res
	}
	return out
}

// NestedSum returns the sum of the named nested aggregation of a bucket, or
// zero when the bucket does not carry it.
func (b Bucket) NestedSum(name string) float64 {
	return b.Aggs[name].Sum
}

// QueryDSL is the top-level structure that represents a complete query over a table.
type QueryDSL struct {
	Filters      *QueryFilter               `json:",omitempty"`
	Aggregations []AggregationConfiguration `json:",omitempty"`
}

// QueryResult represents the result of a query.
type QueryResult struct {
	Data         []schema.Document  `json:"data"`
	Count        int                `json:"count"`
	Aggregations AggregationResults `json:",omitempty"`
}

// standardComparisonOperators is a set of all the standard, built-in comparison operators.
var standardComparisonOperators = map[ComparisonOperator]struct{}{
	ComparisonOperatorEq: {},
}

// IsStandard checks if a comparison operator is one of the standard, built-in operators.
func (c ComparisonOperator) IsStandard() bool {
	_, ok := standardComparisonOperators[c]
	return ok
}
