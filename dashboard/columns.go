package dashboard

import "github.com/asaidimu/go-scoss/core/query"

// Columns read from the service registry and the master funding sheet.
const (
	ColServiceID        = "Service ID"
	ColFundingCommitted = "Funding Committed (EUR)"
	ColTotalPaid        = "Total Paid (EUR)"
	ColFunderCountry    = "Funder Country"
	ColFunderContinent  = "Funder Continent"
	ColFunderFullName   = "Funder Full Name"
	ColFundingTarget    = "Funding Target (EUR)"
)

// AmountColumns are the money columns of both sheets. Loaders declare them
// as numbers so that cells which do not parse are reported.
func AmountColumns() []string {
	return []string{ColFundingCommitted, ColTotalPaid, ColFundingTarget}
}

// Names of the master sheet aggregations.
const (
	AggTotalCommitted = "total_committed"
	AggTotalPaid      = "total_paid"
	AggCountry        = "country"
	AggContinent      = "continent"
	AggFunders        = "funders"
)

// MasterAggregations are run once over the provider's rows of the master
// sheet. Every chart and metric is derived from their results.
func MasterAggregations() []query.AggregationConfiguration {
	committed := query.Sum(AggTotalCommitted, ColFundingCommitted)
	return []query.AggregationConfiguration{
		committed,
		query.Sum(AggTotalPaid, ColTotalPaid),
		query.Terms(AggCountry, ColFunderCountry, query.TermsOrderCount, committed),
		query.Terms(AggContinent, ColFunderContinent, query.TermsOrderCount, committed),
		query.Terms(AggFunders, ColFunderFullName, query.TermsOrderTerm, committed),
	}
}
