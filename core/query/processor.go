package query

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/asaidimu/go-scoss/core/schema"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
)

// DataProcessor evaluates filters and aggregations over in-memory records.
// It holds no per-query state, so one instance can serve concurrent callers;
// every call returns freshly allocated results.
type DataProcessor struct {
	mu     sync.RWMutex
	logger *zap.Logger
}

// NewDataProcessor creates a new DataProcessor instance.
func NewDataProcessor(logger *zap.Logger) *DataProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DataProcessor{
		logger: logger,
	}
}

// SetLogger replaces the processor's logger.
func (p *DataProcessor) SetLogger(logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.logger = logger
}

func (p *DataProcessor) log() *zap.Logger {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.logger
}

// Process runs a complete query: the filters narrow the rows, then the
// aggregations are evaluated over what remains.
func (p *DataProcessor) Process(rows []schema.Document, dsl *QueryDSL) (*QueryResult, error) {
	if dsl == nil {
		dsl = &QueryDSL{}
	}
	filtered, err := p.FilterRows(rows, dsl.Filters)
	if err != nil {
		return nil, fmt.Errorf("filter failed: %w", err)
	}

	result := &QueryResult{Data: filtered, Count: len(filtered)}
	if len(dsl.Aggregations) > 0 {
		aggs, err := p.Aggregate(filtered, dsl.Aggregations)
		if err != nil {
			return nil, fmt.Errorf("aggregation failed: %w", err)
		}
		result.Aggregations = aggs
	}
	return result, nil
}

// FilterRows returns the rows that pass the filter, in their original order.
// The returned slice is new; the documents themselves are shared and must be
// treated as read-only.
func (p *DataProcessor) FilterRows(rows []schema.Document, filter *QueryFilter) ([]schema.Document, error) {
	if filter == nil {
		return append([]schema.Document(nil), rows...), nil
	}

	filteredRows := make([]schema.Document, 0)
	for _, row := range rows {
		passes, err := p.evaluateFilter(row, filter)
		if err != nil {
			return nil, fmt.Errorf("error evaluating filter for row %+v: %w", row, err)
		}
		if passes {
			filteredRows = append(filteredRows, row)
		}
	}
	p.log().Debug("Rows remaining after filters", zap.Int("count", len(filteredRows)), zap.Int("total", len(rows)))
	return filteredRows, nil
}

// Match evaluates a single record against a filter. A nil filter matches everything.
func (p *DataProcessor) Match(ctx context.Context, filters *QueryFilter, data schema.Document) (bool, error) {
	if filters == nil {
		return true, nil
	}
	return p.evaluateFilter(data, filters)
}

// evaluateFilter recursively evaluates a QueryFilter.
func (p *DataProcessor) evaluateFilter(row schema.Document, filter *QueryFilter) (bool, error) {
	if filter.Condition != nil {
		return p.evaluateStandardCondition(row, filter.Condition)
	}
	if filter.Group != nil {
		switch filter.Group.Operator {
		case schema.LogicalAnd:
			for _, cond := range filter.Group.Conditions {
				passes, err := p.evaluateFilter(row, &cond)
				if err != nil || !passes {
					return false, err
				}
			}
			return true, nil
		case schema.LogicalOr:
			for _, cond := range filter.Group.Conditions {
				passes, err := p.evaluateFilter(row, &cond)
				if err != nil {
					return false, err
				}
				if passes {
					return true, nil
				}
			}
			return false, nil
		default:
			return false, fmt.Errorf("unsupported logical operator: %s", filter.Group.Operator)
		}
	}
	return false, fmt.Errorf("empty or invalid filter structure")
}

// evaluateStandardCondition performs the in-memory evaluation of a condition.
func (p *DataProcessor) evaluateStandardCondition(row schema.Document, condition *FilterCondition) (bool, error) {
	fieldValue, ok := row[condition.Field]
	if !ok {
		return false, nil
	}

	switch condition.Operator {
	case ComparisonOperatorEq:
		return ValuesEqual(fieldValue, condition.Value), nil
	default:
		return false, fmt.Errorf("unsupported comparison operator: %s", condition.Operator)
	}
}

// ValuesEqual is the exact-match rule of the filter engine. When the filter
// value is a number or a numeric string and the record value parses as well,
// the two are compared as numbers; otherwise both sides are compared as exact
// strings.
func ValuesEqual(recordValue, filterValue any) bool {
	if fv, ok := ToFloat64(filterValue); ok {
		if rv, ok := ToFloat64(recordValue); ok {
			return rv == fv
		}
	}
	if recordValue == nil || filterValue == nil {
		return recordValue == nil && filterValue == nil
	}
	return TermString(recordValue) == TermString(filterValue)
}

// Aggregate evaluates the aggregations over the rows and returns the results
// in declaration order. Numeric fields are read with ParseNumber; values that
// do not parse count as zero.
func (p *DataProcessor) Aggregate(rows []schema.Document, aggs []AggregationConfiguration) (AggregationResults, error) {
	if err := ValidateAggregations(nil, aggs); err != nil {
		return nil, err
	}
	results := p.aggregate(rows, aggs)
	p.log().Debug("Aggregations evaluated", zap.Int("rows", len(rows)), zap.Int("aggregations", len(aggs)))
	return results, nil
}

// AggregateMap is Aggregate keyed by aggregation name.
func (p *DataProcessor) AggregateMap(rows []schema.Document, aggs []AggregationConfiguration) (map[string]AggregationResult, error) {
	results, err := p.Aggregate(rows, aggs)
	if err != nil {
		return nil, err
	}
	return results.ByName(), nil
}

func (p *DataProcessor) aggregate(rows []schema.Document, aggs []AggregationConfiguration) AggregationResults {
	results := make(AggregationResults, 0, len(aggs))
	for _, agg := range aggs {
		switch agg.Type {
		case AggregationTypeSum:
			results = append(results, AggregationResult{
				Name: agg.Name,
				Type: AggregationTypeSum,
				Sum:  sumField(rows, agg.Field),
			})
		case AggregationTypeTerms:
			results = append(results, AggregationResult{
				Name:    agg.Name,
				Type:    AggregationTypeTerms,
				Buckets: p.termsBuckets(rows, agg),
			})
		}
	}
	return results
}

func sumField(rows []schema.Document, field string) float64 {
	values := make([]float64, 0, len(rows))
	for _, row := range rows {
		if f, ok := ParseNumber(row[field]); ok {
			values = append(values, f)
		}
	}
	if len(values) == 0 {
		return 0
	}
	return floats.Sum(values)
}

type termGroup struct {
	term string
	rows []schema.Document
}

// termsBuckets partitions rows by the raw string value of the field in a
// single pass, then evaluates the nested aggregations per bucket.
func (p *DataProcessor) termsBuckets(rows []schema.Document, agg AggregationConfiguration) []Bucket {
	index := make(map[string]int)
	groups := make([]*termGroup, 0)
	for _, row := range rows {
		term := TermString(row[agg.Field])
		i, ok := index[term]
		if !ok {
			i = len(groups)
			index[term] = i
			groups = append(groups, &termGroup{term: term})
		}
		groups[i].rows = append(groups[i].rows, row)
	}

	switch agg.Order {
	case TermsOrderTerm:
		sort.SliceStable(groups, func(i, j int) bool {
			return TermLess(groups[i].term, groups[j].term)
		})
	default:
		sort.SliceStable(groups, func(i, j int) bool {
			return len(groups[i].rows) > len(groups[j].rows)
		})
	}

	buckets := make([]Bucket, 0, len(groups))
	for _, g := range groups {
		buckets = append(buckets, Bucket{
			Term:  g.term,
			Count: len(g.rows),
			Aggs:  p.aggregate(g.rows, agg.Nested).ByName(),
		})
	}
	return buckets
}

// TermLess is the natural ascending order of terms: numeric terms compare as
// numbers and sort before non-numeric terms, which compare lexicographically.
func TermLess(a, b string) bool {
	fa, okA := ToFloat64(a)
	fb, okB := ToFloat64(b)
	switch {
	case okA && okB:
		if fa != fb {
			return fa < fb
		}
		return a < b
	case okA != okB:
		return okA
	default:
		return a < b
	}
}

// ValidateAggregations checks aggregations before they run. With a non-nil
// schema every referenced field must exist in it. All problems are collected
// into a single *ConfigError.
func ValidateAggregations(sc *schema.SchemaDefinition, aggs []AggregationConfiguration) error {
	issues := collectAggregationIssues(sc, aggs, "aggs", nil)
	if len(issues) > 0 {
		return &ConfigError{Issues: issues}
	}
	return nil
}

func collectAggregationIssues(sc *schema.SchemaDefinition, aggs []AggregationConfiguration, path string, issues []schema.Issue) []schema.Issue {
	seen := make(map[string]struct{}, len(aggs))
	for i, agg := range aggs {
		aggPath := fmt.Sprintf("%s[%d]", path, i)
		if agg.Name != "" {
			aggPath = path + "." + agg.Name
		}
		add := func(code, msg string) {
			issues = append(issues, schema.Issue{Code: code, Message: msg, Path: aggPath, Severity: "error"})
		}

		if agg.Name == "" {
			add("MISSING_NAME", "aggregation has no name")
		} else if _, dup := seen[agg.Name]; dup {
			add("DUPLICATE_NAME", fmt.Sprintf("aggregation name '%s' is used twice", agg.Name))
		}
		seen[agg.Name] = struct{}{}

		if agg.Field == "" {
			add("MISSING_FIELD", "aggregation has no field")
		} else if sc != nil && !sc.HasField(agg.Field) {
			add("UNKNOWN_FIELD", fmt.Sprintf("field '%s' not found in schema %s", agg.Field, sc.Name))
		}

		switch agg.Type {
		case AggregationTypeSum:
			if len(agg.Nested) > 0 {
				add("NESTED_UNDER_SUM", "sum aggregations cannot carry nested aggregations")
			}
		case AggregationTypeTerms:
			switch agg.Order {
			case "", TermsOrderCount, TermsOrderTerm:
			default:
				add("UNKNOWN_ORDER", fmt.Sprintf("unknown terms order '%s'", agg.Order))
			}
			issues = collectAggregationIssues(sc, agg.Nested, aggPath, issues)
		default:
			add("UNKNOWN_AGGREGATION_TYPE", fmt.Sprintf("unknown aggregation type '%s'", agg.Type))
		}
	}
	return issues
}

// ValidateFilters checks that filters are exact matches on known fields with
// scalar values.
func ValidateFilters(sc *schema.SchemaDefinition, filters []Filter) error {
	var issues []schema.Issue
	for i, f := range filters {
		path := fmt.Sprintf("filters[%d]", i)
		if f.Type != FilterTypeExact && f.Type != "" {
			issues = append(issues, schema.Issue{Code: "UNSUPPORTED_FILTER_TYPE", Message: fmt.Sprintf("filter type '%s' is not supported", f.Type), Path: path, Severity: "error"})
		}
		if sc != nil && !sc.HasField(f.Field) {
			issues = append(issues, schema.Issue{Code: "UNKNOWN_FIELD", Message: fmt.Sprintf("field '%s' not found in schema %s", f.Field, sc.Name), Path: path, Severity: "error"})
		}
		switch f.Value.(type) {
		case string, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		default:
			issues = append(issues, schema.Issue{Code: "INVALID_FILTER_VALUE", Message: fmt.Sprintf("filter value of type %T is not a scalar", f.Value), Path: path, Severity: "error"})
		}
	}
	if len(issues) > 0 {
		return &ConfigError{Issues: issues}
	}
	return nil
}
