package dashboard

import (
	"fmt"
	"sort"

	"github.com/asaidimu/go-scoss/core/query"
)

// Names under which series are exposed.
const (
	SeriesByCountry   = "by_country"
	SeriesByContinent = "by_continent"
	SeriesTopDonors   = "top_donors"
)

// DefaultSeriesKey labels the single series of every chart.
const DefaultSeriesKey = "Total Funding"

// Point is one labelled value of a series.
type Point struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

// Series is a named list of points, ready for a chart.
type Series struct {
	Key    string  `json:"key"`
	Values []Point `json:"values"`
}

// SeriesOrder selects how points are ordered.
type SeriesOrder string

const (
	// OrderByValue sorts by descending value, ties keep bucket order.
	OrderByValue SeriesOrder = "value"
	// OrderByLabel sorts by ascending label and ignores any limit.
	OrderByLabel SeriesOrder = "label"
)

// SeriesOptions configures BuildSeries. Limit is only applied with
// OrderByValue; a limit of zero or less yields no points.
type SeriesOptions struct {
	Key    string
	Metric string
	Order  SeriesOrder
	Limit  *int
}

// BuildSeries turns a terms aggregation into a series: one point per bucket,
// labelled with the term, valued with the bucket's nested sum named Metric.
func BuildSeries(terms query.AggregationResult, opts SeriesOptions) ([]Series, error) {
	if terms.Type != query.AggregationTypeTerms {
		return nil, fmt.Errorf("series %q: aggregation %q is not a terms aggregation", opts.Key, terms.Name)
	}
	if opts.Key == "" {
		opts.Key = DefaultSeriesKey
	}
	if opts.Metric == "" {
		opts.Metric = AggTotalCommitted
	}

	values := make([]Point, 0, len(terms.Buckets))
	for _, b := range terms.Buckets {
		values = append(values, Point{Label: b.Term, Value: b.NestedSum(opts.Metric)})
	}

	switch opts.Order {
	case OrderByLabel:
		sort.SliceStable(values, func(i, j int) bool {
			return query.TermLess(values[i].Label, values[j].Label)
		})
	case OrderByValue, "":
		sort.SliceStable(values, func(i, j int) bool {
			return values[i].Value > values[j].Value
		})
		if opts.Limit != nil {
			limit := *opts.Limit
			if limit < 0 {
				limit = 0
			}
			if limit < len(values) {
				values = values[:limit]
			}
		}
	default:
		return nil, fmt.Errorf("series %q: unknown order %q", opts.Key, opts.Order)
	}

	return []Series{{Key: opts.Key, Values: values}}, nil
}

// ProducesSeries builds chart series from the master aggregations.
type ProducesSeries interface {
	Name() string
	Series(results query.AggregationResults) ([]Series, error)
}

// ValueSeries charts a terms aggregation by descending value, optionally
// keeping only the first Limit points.
type ValueSeries struct {
	ID          string
	Aggregation string
	Key         string
	Limit       *int
}

func (s ValueSeries) Name() string { return s.ID }

func (s ValueSeries) Series(results query.AggregationResults) ([]Series, error) {
	terms, ok := results.Get(s.Aggregation)
	if !ok {
		return nil, fmt.Errorf("series %s: missing aggregation %q", s.ID, s.Aggregation)
	}
	return BuildSeries(terms, SeriesOptions{Key: s.Key, Order: OrderByValue, Limit: s.Limit})
}

// LabelSeries lists a terms aggregation alphabetically, without a limit.
type LabelSeries struct {
	ID          string
	Aggregation string
	Key         string
}

func (s LabelSeries) Name() string { return s.ID }

func (s LabelSeries) Series(results query.AggregationResults) ([]Series, error) {
	terms, ok := results.Get(s.Aggregation)
	if !ok {
		return nil, fmt.Errorf("series %s: missing aggregation %q", s.ID, s.Aggregation)
	}
	return BuildSeries(terms, SeriesOptions{Key: s.Key, Order: OrderByLabel})
}

// Donor is one row of the full donor listing.
type Donor struct {
	Donor     string  `json:"donor"`
	Committed float64 `json:"committed"`
}

// Donors lists every funder alphabetically with the amount they committed.
func Donors(results query.AggregationResults) ([]Donor, error) {
	series, err := LabelSeries{ID: "all_donors", Aggregation: AggFunders}.Series(results)
	if err != nil {
		return nil, err
	}
	donors := make([]Donor, 0, len(series[0].Values))
	for _, p := range series[0].Values {
		donors = append(donors, Donor{Donor: p.Label, Committed: p.Value})
	}
	return donors, nil
}

// Share is a continent's part of the total committed funds.
type Share struct {
	Label   string  `json:"label"`
	Value   float64 `json:"value"`
	Percent int     `json:"percent"`
}
