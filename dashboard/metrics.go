package dashboard

import (
	"fmt"
	"math"

	"github.com/asaidimu/go-scoss/core/query"
)

// Names under which metrics are exposed.
const (
	MetricCommitted = "committed"
	MetricPaid      = "paid"
	MetricNeeded    = "needed"
)

// ProgressMetric is progress toward a target: PC percent, X of Y.
type ProgressMetric struct {
	PC float64 `json:"pc"`
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
}

// Totals are the inputs of every metric.
type Totals struct {
	Committed float64 `json:"committed"`
	Paid      float64 `json:"paid"`
	Target    float64 `json:"target"`
}

// TotalsFrom reads the committed and paid sums from the master aggregations.
func TotalsFrom(results query.AggregationResults, target float64) Totals {
	committed, _ := results.Get(AggTotalCommitted)
	paid, _ := results.Get(AggTotalPaid)
	return Totals{Committed: committed.Sum, Paid: paid.Sum, Target: target}
}

// ComputesMetric derives one ProgressMetric from totals.
type ComputesMetric interface {
	Name() string
	Compute(t Totals) ProgressMetric
}

// progress is x of target, capped at 100 percent. A target that is zero or
// negative cannot be progressed toward: it yields pc 0, x as given and y 0.
func progress(x, target float64) ProgressMetric {
	if target <= 0 || math.IsNaN(target) {
		return ProgressMetric{PC: 0, X: x, Y: 0}
	}
	pc := x * 100 / target
	pc = math.Max(0, math.Min(100, pc))
	return ProgressMetric{PC: pc, X: x, Y: target}
}

// CommittedProgress is committed funds against the target.
type CommittedProgress struct{}

func (CommittedProgress) Name() string { return MetricCommitted }

func (CommittedProgress) Compute(t Totals) ProgressMetric {
	return progress(t.Committed, t.Target)
}

// PaidProgress is paid funds against the target.
type PaidProgress struct{}

func (PaidProgress) Name() string { return MetricPaid }

func (PaidProgress) Compute(t Totals) ProgressMetric {
	return progress(t.Paid, t.Target)
}

// NeededProgress is what remains to be committed. It is always the
// complement of CommittedProgress, so the two percentages add up to 100.
type NeededProgress struct{}

func (NeededProgress) Name() string { return MetricNeeded }

func (NeededProgress) Compute(t Totals) ProgressMetric {
	committed := CommittedProgress{}.Compute(t)
	return ProgressMetric{
		PC: 100 - committed.PC,
		X:  math.Max(0, committed.Y-committed.X),
		Y:  committed.Y,
	}
}

// Metrics is the closed set of metrics a dashboard exposes.
func Metrics() []ComputesMetric {
	return []ComputesMetric{CommittedProgress{}, PaidProgress{}, NeededProgress{}}
}

// ComputeMetrics evaluates every metric, keyed by name.
func ComputeMetrics(t Totals) map[string]ProgressMetric {
	out := make(map[string]ProgressMetric, 3)
	for _, m := range Metrics() {
		out[m.Name()] = m.Compute(t)
	}
	return out
}

// MetricByName returns the metric with the given name.
func MetricByName(name string) (ComputesMetric, error) {
	for _, m := range Metrics() {
		if m.Name() == name {
			return m, nil
		}
	}
	return nil, fmt.Errorf("unknown metric %q", name)
}
