package analysis

import (
	"fmt"
	"math"

	"agency-insights/internal/dataset"
	"agency-insights/internal/stats"
)

// Output names used across the grouped summaries
const (
	AggPremiumSum     = "premium_sum"
	AggPremiumMean    = "premium_mean"
	AggRecords        = "records"
	AggLossesSum      = "losses_sum"
	AggLossRatioMean  = "loss_ratio_mean"
	AggRetentionMean  = "retention_mean"
	AggGrowthMean     = "growth_mean"
	AggAgencies       = "agencies"
	AggPoliciesSum    = "policies_sum"
	AggHighRiskCount  = "high_risk_records"
	highRiskQuantile  = 0.9
	agencyRankingSize = 10
)

// Totals are the portfolio-wide figures
type Totals struct {
	Records        int         `json:"records"`
	Agencies       int         `json:"agencies"`
	WrittenPremium stats.Float `json:"written_premium"`
	EarnedPremium  stats.Float `json:"earned_premium"`
	IncurredLosses stats.Float `json:"incurred_losses"`
	AvgLossRatio   stats.Float `json:"avg_loss_ratio"`
}

// Share is the premium share of one label
type Share struct {
	Label   string      `json:"label"`
	Premium stats.Float `json:"premium"`
	Percent stats.Float `json:"percent"`
}

// HighRisk flags records above the 90th percentile loss ratio
type HighRisk struct {
	Threshold stats.Float    `json:"threshold"`
	Count     int            `json:"count"`
	ByState   *stats.Grouped `json:"by_state,omitempty"`
}

// PerformanceReport holds the business performance summaries
type PerformanceReport struct {
	Totals           Totals         `json:"totals"`
	States           *stats.Grouped `json:"states,omitempty"`
	ProductLines     *stats.Grouped `json:"product_lines,omitempty"`
	Products         *stats.Grouped `json:"products,omitempty"`
	Yearly           *stats.Grouped `json:"yearly,omitempty"`
	TopAgencies      *stats.Grouped `json:"top_agencies,omitempty"`
	BottomAgencies   *stats.Grouped `json:"bottom_agencies,omitempty"`
	HighRisk         HighRisk       `json:"high_risk"`
	StateShare       []Share        `json:"state_share"`
	ProductLineShare []Share        `json:"product_line_share"`
	Correlation      stats.Matrix   `json:"correlation"`
}

// Performance summarises premium, losses and retention by state, product,
// year and agency
func Performance(f *dataset.Frame) (PerformanceReport, error) {
	var r PerformanceReport
	prem, err := f.Numeric(dataset.ColWrittenPremium)
	if err != nil {
		return r, fmt.Errorf("performance analysis: %w", err)
	}

	r.Totals = totals(f, prem)

	dimension := []stats.Agg{
		{Column: dataset.ColWrittenPremium, Func: stats.SumOf, As: AggPremiumSum},
		{Column: dataset.ColWrittenPremium, Func: stats.MeanOf, As: AggPremiumMean},
		{Column: dataset.ColWrittenPremium, Func: stats.CountOf, As: AggRecords},
		{Column: dataset.ColIncurredLosses, Func: stats.SumOf, As: AggLossesSum},
		{Column: dataset.ColLossRatio, Func: stats.MeanOf, As: AggLossRatioMean},
		{Column: dataset.ColRetentionRatio, Func: stats.MeanOf, As: AggRetentionMean},
		{Column: dataset.ColAgencyID, Func: stats.NUniqueOf, As: AggAgencies},
	}
	if r.States = summarize(f, []string{dataset.ColState}, dimension); r.States != nil {
		r.States.SortBy(AggPremiumSum, true)
		r.StateShare = shares(r.States, float64(r.Totals.WrittenPremium))
	}
	if r.ProductLines = summarize(f, []string{dataset.ColProductLine}, dimension); r.ProductLines != nil {
		r.ProductLines.SortBy(AggPremiumSum, true)
		r.ProductLineShare = shares(r.ProductLines, float64(r.Totals.WrittenPremium))
	}
	if r.Products = summarize(f, []string{dataset.ColProductAbbr}, dimension); r.Products != nil {
		r.Products.SortBy(AggPremiumSum, true)
	}

	r.Yearly = summarize(f, []string{dataset.ColYear}, []stats.Agg{
		{Column: dataset.ColWrittenPremium, Func: stats.SumOf, As: AggPremiumSum},
		{Column: dataset.ColIncurredLosses, Func: stats.SumOf, As: AggLossesSum},
		{Column: dataset.ColLossRatio, Func: stats.MeanOf, As: AggLossRatioMean},
		{Column: dataset.ColAgencyID, Func: stats.NUniqueOf, As: AggAgencies},
	})

	agencies := summarize(f, []string{dataset.ColAgencyID}, []stats.Agg{
		{Column: dataset.ColWrittenPremium, Func: stats.SumOf, As: AggPremiumSum},
		{Column: dataset.ColIncurredLosses, Func: stats.SumOf, As: AggLossesSum},
		{Column: dataset.ColLossRatio, Func: stats.MeanOf, As: AggLossRatioMean},
		{Column: dataset.ColRetentionRatio, Func: stats.MeanOf, As: AggRetentionMean},
	})
	if agencies != nil {
		r.TopAgencies = agencies.SortBy(AggPremiumSum, true).Head(agencyRankingSize)
		r.BottomAgencies = agencies.SortBy(AggPremiumSum, false).Head(agencyRankingSize)
	}

	r.HighRisk = highRisk(f)
	r.Correlation = stats.Correlation(f, dataset.KeyMetrics)
	return r, nil
}

func totals(f *dataset.Frame, prem []float64) Totals {
	t := Totals{
		Records:        f.Len(),
		WrittenPremium: stats.Float(stats.Sum(prem)),
		EarnedPremium:  stats.Float(math.NaN()),
		IncurredLosses: stats.Float(math.NaN()),
		AvgLossRatio:   stats.Float(math.NaN()),
	}
	if ids, err := f.Categorical(dataset.ColAgencyID); err == nil {
		t.Agencies = stats.NUnique(ids)
	}
	if earned, err := f.Numeric(dataset.ColEarnedPremium); err == nil {
		t.EarnedPremium = stats.Float(stats.Sum(earned))
	}
	if losses, err := f.Numeric(dataset.ColIncurredLosses); err == nil {
		t.IncurredLosses = stats.Float(stats.Sum(losses))
	}
	if lr, err := f.Numeric(dataset.ColLossRatio); err == nil {
		var nonzero []float64
		for _, v := range lr {
			if !math.IsNaN(v) && v != 0 {
				nonzero = append(nonzero, v)
			}
		}
		t.AvgLossRatio = stats.Float(stats.Mean(nonzero))
	}
	return t
}

func highRisk(f *dataset.Frame) HighRisk {
	h := HighRisk{Threshold: stats.Float(math.NaN())}
	lr, err := f.Numeric(dataset.ColLossRatio)
	if err != nil {
		return h
	}
	threshold := stats.Quantile(lr, highRiskQuantile)
	h.Threshold = stats.Float(threshold)
	if math.IsNaN(threshold) {
		return h
	}
	risky := f.Filter(func(i int) bool { return lr[i] > threshold })
	h.Count = risky.Len()
	if by := summarize(risky, []string{dataset.ColState}, []stats.Agg{
		{Column: dataset.ColLossRatio, Func: stats.CountOf, As: AggHighRiskCount},
	}); by != nil {
		h.ByState = by.SortBy(AggHighRiskCount, true)
	}
	return h
}

func shares(g *stats.Grouped, total float64) []Share {
	out := make([]Share, 0, len(g.Rows))
	labels := g.Labels()
	for i := range g.Rows {
		p := g.Value(i, AggPremiumSum)
		s := Share{Label: labels[i], Premium: stats.Float(p)}
		if total != 0 && !math.IsNaN(total) {
			s.Percent = stats.Float(stats.Round(p/total*100, 2))
		}
		out = append(out, s)
	}
	return out
}

// summarize groups by keys and applies the aggregations whose columns exist.
// It returns nil when a key is missing or nothing can be aggregated.
func summarize(f *dataset.Frame, keys []string, aggs []stats.Agg) *stats.Grouped {
	if !f.Has(keys...) {
		return nil
	}
	var usable []stats.Agg
	for _, a := range aggs {
		c, err := f.Column(a.Column)
		if err != nil {
			continue
		}
		if c.Kind != dataset.Numeric && a.Func != stats.CountOf && a.Func != stats.NUniqueOf {
			continue
		}
		usable = append(usable, a)
	}
	if len(usable) == 0 {
		return nil
	}
	g, err := stats.GroupAggregate(f, keys, usable)
	if err != nil || len(g.Rows) == 0 {
		return nil
	}
	return g
}
