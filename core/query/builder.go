package query

import (
	"fmt"
	"strings"

	"github.com/asaidimu/go-scoss/core/schema"
)

// QueryBuilder provides a fluent API for building QueryDSL structures.
// Successive Where calls are combined with AND.
type QueryBuilder struct {
	query QueryDSL
}

// NewQueryBuilder creates a new, empty query builder instance.
func NewQueryBuilder() *QueryBuilder {
	return &QueryBuilder{
		query: QueryDSL{},
	}
}

// Build returns the constructed QueryDSL object.
func (qb *QueryBuilder) Build() QueryDSL {
	return qb.query
}

// Clone creates a copy of the builder. Aggregation and filter slices are
// copied so that further building on either side does not leak into the other.
func (qb *QueryBuilder) Clone() *QueryBuilder {
	newBuilder := &QueryBuilder{}
	newBuilder.query.Filters = cloneFilter(qb.query.Filters)
	newBuilder.query.Aggregations = cloneAggregations(qb.query.Aggregations)
	return newBuilder
}

// Reset clears all configurations from the query builder, returning it to its initial state.
func (qb *QueryBuilder) Reset() *QueryBuilder {
	qb.query = QueryDSL{}
	return qb
}

// Where begins the construction of a filter condition for a specific field.
func (qb *QueryBuilder) Where(field string) *FilterConditionBuilder {
	return &FilterConditionBuilder{
		parent: qb,
		field:  field,
	}
}

// WhereGroup begins the construction of a group of filter conditions, combined
// with a logical operator (AND or OR).
func (qb *QueryBuilder) WhereGroup(operator schema.LogicalOperator) *FilterGroupBuilder {
	return &FilterGroupBuilder{
		parent:     qb,
		operator:   operator,
		conditions: []QueryFilter{},
	}
}

// Filter adds an active table filter to the query.
func (qb *QueryBuilder) Filter(f Filter) *QueryBuilder {
	qb.addFilter(f.Condition())
	return qb
}

func (qb *QueryBuilder) addFilter(filter QueryFilter) {
	current := qb.query.Filters
	switch {
	case current == nil:
		qb.query.Filters = &filter
	case current.Group != nil && current.Group.Operator == schema.LogicalAnd:
		current.Group.Conditions = append(current.Group.Conditions, filter)
	default:
		qb.query.Filters = &QueryFilter{Group: &FilterGroup{
			Operator:   schema.LogicalAnd,
			Conditions: []QueryFilter{*current, filter},
		}}
	}
}

// FilterConditionBuilder is used to build a single filter condition (e.g., field = value).
type FilterConditionBuilder struct {
	parent *QueryBuilder
	field  string
}

// Eq adds an equality condition to the query.
func (fcb *FilterConditionBuilder) Eq(value FilterValue) *QueryBuilder {
	fcb.parent.addFilter(QueryFilter{Condition: &FilterCondition{
		Field:    fcb.field,
		Operator: ComparisonOperatorEq,
		Value:    value,
	}})
	return fcb.parent
}

// FilterGroupBuilder is used to build a group of filter conditions.
type FilterGroupBuilder struct {
	parent     *QueryBuilder
	outer      *FilterGroupBuilder
	operator   schema.LogicalOperator
	conditions []QueryFilter
}

// Where adds a new condition to the current filter group.
func (fgb *FilterGroupBuilder) Where(field string) *FilterConditionBuilderInGroup {
	return &FilterConditionBuilderInGroup{
		groupBuilder: fgb,
		field:        field,
	}
}

// WhereGroup opens a nested group; close it with EndGroup.
func (fgb *FilterGroupBuilder) WhereGroup(operator schema.LogicalOperator) *FilterGroupBuilder {
	return &FilterGroupBuilder{
		parent:     fgb.parent,
		outer:      fgb,
		operator:   operator,
		conditions: []QueryFilter{},
	}
}

// EndGroup closes a nested group and returns to the enclosing one.
func (fgb *FilterGroupBuilder) EndGroup() *FilterGroupBuilder {
	if fgb.outer == nil {
		return fgb
	}
	fgb.outer.conditions = append(fgb.outer.conditions, fgb.filter())
	return fgb.outer
}

// End finalizes the current filter group and returns to the main query builder.
func (fgb *FilterGroupBuilder) End() *QueryBuilder {
	g := fgb
	for g.outer != nil {
		g = g.EndGroup()
	}
	g.parent.addFilter(g.filter())
	return g.parent
}

func (fgb *FilterGroupBuilder) filter() QueryFilter {
	return QueryFilter{Group: &FilterGroup{
		Operator:   fgb.operator,
		Conditions: fgb.conditions,
	}}
}

// FilterConditionBuilderInGroup is used to build a filter condition within a group.
type FilterConditionBuilderInGroup struct {
	groupBuilder *FilterGroupBuilder
	field        string
}

// Eq adds an equality condition to the current filter group.
func (fcbg *FilterConditionBuilderInGroup) Eq(value FilterValue) *FilterGroupBuilder {
	fcbg.groupBuilder.conditions = append(fcbg.groupBuilder.conditions, QueryFilter{
		Condition: &FilterCondition{Field: fcbg.field, Operator: ComparisonOperatorEq, Value: value},
	})
	return fcbg.groupBuilder
}

// Sum adds a named sum aggregation.
func (qb *QueryBuilder) Sum(name, field string) *QueryBuilder {
	qb.query.Aggregations = append(qb.query.Aggregations, Sum(name, field))
	return qb
}

// Terms begins a terms aggregation; finish it with End.
func (qb *QueryBuilder) Terms(name, field string) *TermsBuilder {
	return &TermsBuilder{parent: qb, agg: AggregationConfiguration{
		Type:  AggregationTypeTerms,
		Name:  name,
		Field: field,
	}}
}

// TermsBuilder configures a terms aggregation.
type TermsBuilder struct {
	parent *QueryBuilder
	agg    AggregationConfiguration
}

// OrderBy sets the bucket ordering policy.
func (tb *TermsBuilder) OrderBy(order TermsOrder) *TermsBuilder {
	tb.agg.Order = order
	return tb
}

// Sum adds a nested sum evaluated within each bucket.
func (tb *TermsBuilder) Sum(name, field string) *TermsBuilder {
	tb.agg.Nested = append(tb.agg.Nested, Sum(name, field))
	return tb
}

// Nested adds arbitrary nested aggregations.
func (tb *TermsBuilder) Nested(aggs ...AggregationConfiguration) *TermsBuilder {
	tb.agg.Nested = append(tb.agg.Nested, aggs...)
	return tb
}

// End adds the aggregation to the query.
func (tb *TermsBuilder) End() *QueryBuilder {
	tb.parent.query.Aggregations = append(tb.parent.query.Aggregations, tb.agg)
	return tb.parent
}

// Validate checks the aggregations against sc, or structurally when sc is nil.
func (qb *QueryBuilder) Validate(sc *schema.SchemaDefinition) error {
	return ValidateAggregations(sc, qb.query.Aggregations)
}

// String returns a human-readable representation of the built query.
func (qb *QueryBuilder) String() string {
	var parts []string

	if qb.query.Filters != nil {
		parts = append(parts, "FILTERS: present")
	}

	if len(qb.query.Aggregations) > 0 {
		names := make([]string, len(qb.query.Aggregations))
		for i, agg := range qb.query.Aggregations {
			names[i] = fmt.Sprintf("%s(%s)", agg.Type, agg.Name)
		}
		parts = append(parts, fmt.Sprintf("AGGREGATIONS: %s", strings.Join(names, ", ")))
	}

	if len(parts) == 0 {
		return "EMPTY QUERY"
	}

	return strings.Join(parts, " | ")
}

func cloneFilter(f *QueryFilter) *QueryFilter {
	if f == nil {
		return nil
	}
	out := &QueryFilter{}
	if f.Condition != nil {
		c := *f.Condition
		out.Condition = &c
	}
	if f.Group != nil {
		g := &FilterGroup{Operator: f.Group.Operator, Conditions: make([]QueryFilter, 0, len(f.Group.Conditions))}
		for i := range f.Group.Conditions {
			g.Conditions = append(g.Conditions, *cloneFilter(&f.Group.Conditions[i]))
		}
		out.Group = g
	}
	return out
}

func cloneAggregations(aggs []AggregationConfiguration) []AggregationConfiguration {
	if aggs == nil {
		return nil
	}
	out := make([]AggregationConfiguration, len(aggs))
	for i, agg := range aggs {
		out[i] = agg
		out[i].Nested = cloneAggregations(agg.Nested)
	}
	return out
}
