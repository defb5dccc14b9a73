// Package dashboard turns a service registry and a master funding sheet into
// the progress metrics and chart series of one service provider.
package dashboard

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/asaidimu/go-scoss/core/query"
	"github.com/asaidimu/go-scoss/core/store"
	"github.com/asaidimu/go-scoss/utils"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultTopDonorLimit is the number of donors in the top donor chart.
const DefaultTopDonorLimit = 10

// ErrMissingServiceID is returned by New when no service id is given.
var ErrMissingServiceID = errors.New("dashboard: service id is required")

// Headers are the section titles shown above each part of a dashboard.
type Headers struct {
	Progress    string `json:"progress" mapstructure:"progress"`
	ByCountry   string `json:"byCountry" mapstructure:"byCountry"`
	ByContinent string `json:"byContinent" mapstructure:"byContinent"`
	TopDonors   string `json:"topDonors" mapstructure:"topDonors"`
	AllDonors   string `json:"allDonors" mapstructure:"allDonors"`
}

// DefaultHeaders returns the stock section titles. TopDonors carries a {x}
// placeholder for the donor limit.
func DefaultHeaders() Headers {
	return Headers{
		Progress:    "Funding progress",
		ByCountry:   "Funds committed by country",
		ByContinent: "Funds committed by continent",
		TopDonors:   "Top {x} crowdfunders/members",
		AllDonors:   "All crowdfunders/members",
	}
}

// Options configure a dashboard.
type Options struct {
	ServiceID string
	// TopDonorLimit caps the top donor chart. Nil means DefaultTopDonorLimit.
	TopDonorLimit *int
	SeriesKey     string
	Headers       *Headers
	Logger        *zap.Logger
}

func (o Options) topDonorLimit() int {
	if o.TopDonorLimit == nil {
		return DefaultTopDonorLimit
	}
	return *o.TopDonorLimit
}

func (o Options) seriesKey() string {
	if o.SeriesKey == "" {
		return DefaultSeriesKey
	}
	return o.SeriesKey
}

func (o Options) headers() Headers {
	if o.Headers == nil {
		return DefaultHeaders()
	}
	return *o.Headers
}

// TopDonorHeader resolves the {x} placeholder of the top donor header.
func (o Options) TopDonorHeader() string {
	return strings.ReplaceAll(o.headers().TopDonors, "{x}", strconv.Itoa(o.topDonorLimit()))
}

// Dashboard holds the aggregations of one provider. It is built once and is
// read-only afterwards, so its methods are safe for concurrent use.
type Dashboard struct {
	id       string
	options  Options
	provider ServiceProvider
	found    bool
	results  query.AggregationResults
	series   []ProducesSeries
	logger   *zap.Logger
}

// New selects the provider from registry, narrows master to the provider's
// rows and evaluates the master aggregations. The given tables are cloned and
// their filters are left untouched. A provider missing from the registry is
// not an error: the dashboard is built with a target of zero.
func New(registry, master *store.Table, opts Options) (*Dashboard, error) {
	if registry == nil || master == nil {
		return nil, errors.New("dashboard: registry and master tables are required")
	}
	if opts.ServiceID == "" {
		return nil, ErrMissingServiceID
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	d := &Dashboard{
		id:      uuid.New().String(),
		options: opts,
		logger:  logger.With(zap.String("serviceId", opts.ServiceID)),
	}

	if err := d.selectProvider(registry); err != nil {
		return nil, err
	}

	sheet := master.Clone()
	if err := sheet.AddFilter(query.Exact(ColServiceID, opts.ServiceID)); err != nil {
		return nil, fmt.Errorf("dashboard: filter master sheet: %w", err)
	}
	results, err := sheet.Aggregate(MasterAggregations())
	if err != nil {
		return nil, fmt.Errorf("dashboard: aggregate master sheet: %w", err)
	}
	d.results = results

	limit := opts.topDonorLimit()
	key := opts.seriesKey()
	d.series = []ProducesSeries{
		ValueSeries{ID: SeriesByCountry, Aggregation: AggCountry, Key: key},
		ValueSeries{ID: SeriesByContinent, Aggregation: AggContinent, Key: key},
		ValueSeries{ID: SeriesTopDonors, Aggregation: AggFunders, Key: key, Limit: &limit},
	}

	d.logger.Info("Dashboard built",
		zap.String("id", d.id),
		zap.Bool("providerFound", d.found),
		zap.Float64("target", d.provider.Target()),
	)
	return d, nil
}

func (d *Dashboard) selectProvider(registry *store.Table) error {
	providers := registry.Clone()
	if err := providers.AddFilter(query.Exact(ColServiceID, d.options.ServiceID)); err != nil {
		return fmt.Errorf("dashboard: filter registry: %w", err)
	}
	view, err := providers.View()
	if err != nil {
		return fmt.Errorf("dashboard: filter registry: %w", err)
	}
	record, ok := view.First()
	if !ok {
		d.logger.Warn("Service provider not found in registry, using a target of zero")
		d.provider = ServiceProvider{ServiceID: Term(d.options.ServiceID)}
		return nil
	}
	if view.Len() > 1 {
		d.logger.Warn("Service id matches several registry rows, using the first", zap.Int("matches", view.Len()))
	}
	provider, err := utils.DecodeRecord[ServiceProvider](record)
	if err != nil {
		return fmt.Errorf("dashboard: decode provider: %w", err)
	}
	d.provider = provider
	d.found = true
	return nil
}

// ID identifies this dashboard instance.
func (d *Dashboard) ID() string { return d.id }

// Provider returns the selected provider and whether the registry had it.
func (d *Dashboard) Provider() (ServiceProvider, bool) { return d.provider, d.found }

// Aggregations returns a copy of the master aggregation results.
func (d *Dashboard) Aggregations() query.AggregationResults {
	return append(query.AggregationResults(nil), d.results...)
}

// Totals returns the committed and paid totals together with the target.
func (d *Dashboard) Totals() Totals {
	return TotalsFrom(d.results, d.provider.Target())
}

// Metrics returns every progress metric, keyed by name.
func (d *Dashboard) Metrics() map[string]ProgressMetric {
	return ComputeMetrics(d.Totals())
}

// Metric returns a single progress metric.
func (d *Dashboard) Metric(name string) (ProgressMetric, error) {
	m, err := MetricByName(name)
	if err != nil {
		return ProgressMetric{}, err
	}
	return m.Compute(d.Totals()), nil
}

// Series returns the chart series keyed by name.
func (d *Dashboard) Series() (map[string][]Series, error) {
	out := make(map[string][]Series, len(d.series))
	for _, s := range d.series {
		series, err := s.Series(d.results)
		if err != nil {
			return nil, err
		}
		out[s.Name()] = series
	}
	return out, nil
}

// Donors returns every funder of the provider in alphabetical order.
func (d *Dashboard) Donors() ([]Donor, error) {
	return Donors(d.results)
}

// ContinentShares returns each continent's rounded percentage of the total
// committed funds, largest first. When nothing is committed every share is 100.
func (d *Dashboard) ContinentShares() ([]Share, error) {
	series, err := ValueSeries{ID: SeriesByContinent, Aggregation: AggContinent}.Series(d.results)
	if err != nil {
		return nil, err
	}
	var total float64
	for _, p := range series[0].Values {
		total += p.Value
	}
	shares := make([]Share, 0, len(series[0].Values))
	for _, p := range series[0].Values {
		pc := 100
		if total > 0 {
			pc = int(math.Round(p.Value / total * 100))
		}
		shares = append(shares, Share{Label: p.Label, Value: p.Value, Percent: pc})
	}
	return shares, nil
}

// Report is the complete, serialisable output of a dashboard.
type Report struct {
	ID              string                    `json:"id"`
	ServiceID       string                    `json:"serviceId"`
	ProviderFound   bool                      `json:"providerFound"`
	Provider        ServiceProvider           `json:"provider"`
	Headers         Headers                   `json:"headers"`
	Totals          Totals                    `json:"totals"`
	Metrics         map[string]ProgressMetric `json:"metrics"`
	Series          map[string][]Series       `json:"series"`
	ContinentShares []Share                   `json:"continentShares"`
	Donors          []Donor                   `json:"donors"`
}

// Report assembles every metric, series and listing of the dashboard.
func (d *Dashboard) Report() (*Report, error) {
	series, err := d.Series()
	if err != nil {
		return nil, err
	}
	shares, err := d.ContinentShares()
	if err != nil {
		return nil, err
	}
	donors, err := d.Donors()
	if err != nil {
		return nil, err
	}
	headers := d.options.headers()
	headers.TopDonors = d.options.TopDonorHeader()

	return &Report{
		ID:              d.id,
		ServiceID:       d.options.ServiceID,
		ProviderFound:   d.found,
		Provider:        d.provider,
		Headers:         headers,
		Totals:          d.Totals(),
		Metrics:         d.Metrics(),
		Series:          series,
		ContinentShares: shares,
		Donors:          donors,
	}, nil
}
