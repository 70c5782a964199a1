package analysis

import (
	"fmt"
	"math"

	"agency-insights/internal/dataset"
	"agency-insights/internal/stats"
)

const (
	underperformingSize = 10
	productRankingSize  = 10
	expansionSize       = 15

	ScoreSegment       = "performance_score"
	ScoreMarket        = "market_opportunity_score"
	ScoreProfitability = "profitability_score"
	ScoreExpansion     = "expansion_score"

	AggPremiumPerAgency = "premium_per_agency"
	AggPremiumPerPolicy = "premium_per_policy_mean"
	AggProducersMean    = "producers_mean"
	AggStatesCount      = "states_count"
	AggProductsCount    = "products_count"
)

// OpportunityReport ranks segments, states, products and agencies by growth potential
type OpportunityReport struct {
	UnderperformingSegments *stats.Grouped `json:"underperforming_segments,omitempty"`
	StateOpportunities      *stats.Grouped `json:"state_opportunities,omitempty"`
	ProductProfitability    *stats.Grouped `json:"product_profitability,omitempty"`
	ExpansionCandidates     *stats.Grouped `json:"expansion_candidates,omitempty"`
	Vendors                 *stats.Grouped `json:"vendors,omitempty"`
	StateShare              []Share        `json:"state_share"`
	ProductLineShare        []Share        `json:"product_line_share"`
	VendorShare             []Share        `json:"vendor_share"`
}

// Opportunities scores the market for sales opportunities
func Opportunities(f *dataset.Frame) (OpportunityReport, error) {
	var r OpportunityReport
	prem, err := f.Numeric(dataset.ColWrittenPremium)
	if err != nil {
		return r, fmt.Errorf("opportunity analysis: %w", err)
	}
	total := stats.Sum(prem)
	if !f.Has(dataset.ColPremiumPerPolicy) {
		dataset.Derive(f)
	}

	r.UnderperformingSegments = underperforming(f)
	r.StateOpportunities = stateOpportunities(f)
	r.ProductProfitability = productProfitability(f)
	r.ExpansionCandidates = expansionCandidates(f)

	share := []stats.Agg{{Column: dataset.ColWrittenPremium, Func: stats.SumOf, As: AggPremiumSum}}
	if g := summarize(f, []string{dataset.ColState}, share); g != nil {
		r.StateShare = shares(g.SortBy(AggPremiumSum, true), total)
	}
	if g := summarize(f, []string{dataset.ColProductLine}, share); g != nil {
		r.ProductLineShare = shares(g.SortBy(AggPremiumSum, true), total)
	}

	if r.Vendors = summarize(f, []string{dataset.ColVendor}, []stats.Agg{
		{Column: dataset.ColWrittenPremium, Func: stats.SumOf, As: AggPremiumSum},
		{Column: dataset.ColLossRatio, Func: stats.MeanOf, As: AggLossRatioMean},
		{Column: dataset.ColRetentionRatio, Func: stats.MeanOf, As: AggRetentionMean},
		{Column: dataset.ColAgencyID, Func: stats.NUniqueOf, As: AggAgencies},
	}); r.Vendors != nil {
		r.Vendors.AddColumn(AggPremiumPerAgency, perAgency(r.Vendors))
		r.Vendors.SortBy(AggPremiumSum, true)
		r.VendorShare = shares(r.Vendors, total)
	}
	return r, nil
}

// SegmentScore rewards low loss ratio, high retention and high growth
func SegmentScore(lossRatio, retention, growth float64) float64 {
	return 1/(lossRatio+1)*0.4 + retention/100000*0.3 + growth/100000*0.3
}

// MarketScore rewards growth and low premium concentration per agency
func MarketScore(growth, premiumPerAgency float64) float64 {
	return growth/100000*0.5 + 1/(premiumPerAgency/1000000+1)*0.5
}

// ProfitabilityScore rewards low loss ratio, high retention and high growth
// with the loss ratio on a percentage-point scale
func ProfitabilityScore(lossRatio, retention, growth float64) float64 {
	return 1/(lossRatio/10000+1)*0.4 + retention/100000*0.3 + growth/100000*0.3
}

// ExpansionScore rewards retention, low loss ratio, producer headcount and volume
func ExpansionScore(retention, lossRatio, producers, premium float64) float64 {
	return retention/100000*0.3 + 1/(lossRatio/10000+1)*0.3 + producers/100*0.2 + premium/10000000*0.2
}

func underperforming(f *dataset.Frame) *stats.Grouped {
	g := summarize(f, []string{dataset.ColState, dataset.ColProductLine}, []stats.Agg{
		{Column: dataset.ColWrittenPremium, Func: stats.SumOf, As: AggPremiumSum},
		{Column: dataset.ColLossRatio, Func: stats.MeanOf, As: AggLossRatioMean},
		{Column: dataset.ColRetentionRatio, Func: stats.MeanOf, As: AggRetentionMean},
		{Column: dataset.ColGrowthRate3Yr, Func: stats.MeanOf, As: AggGrowthMean},
		{Column: dataset.ColPremiumPerPolicy, Func: stats.MeanOf, As: AggPremiumPerPolicy},
		{Column: dataset.ColPoliciesInForce, Func: stats.SumOf, As: AggPoliciesSum},
	})
	if g == nil {
		return nil
	}
	lr, ret, growth := g.Col(AggLossRatioMean), g.Col(AggRetentionMean), g.Col(AggGrowthMean)
	g.AddColumn(ScoreSegment, func(row stats.GroupRow) float64 {
		return SegmentScore(valueAt(row, lr), valueAt(row, ret), valueAt(row, growth))
	})
	return g.SortBy(ScoreSegment, false).Head(underperformingSize)
}

func stateOpportunities(f *dataset.Frame) *stats.Grouped {
	g := summarize(f, []string{dataset.ColState}, []stats.Agg{
		{Column: dataset.ColGrowthRate3Yr, Func: stats.MeanOf, As: AggGrowthMean},
		{Column: dataset.ColWrittenPremium, Func: stats.SumOf, As: AggPremiumSum},
		{Column: dataset.ColPoliciesInForce, Func: stats.SumOf, As: AggPoliciesSum},
		{Column: dataset.ColAgencyID, Func: stats.NUniqueOf, As: AggAgencies},
	})
	if g == nil {
		return nil
	}
	g.AddColumn(AggPremiumPerAgency, perAgency(g))
	growth, ppa := g.Col(AggGrowthMean), g.Col(AggPremiumPerAgency)
	g.AddColumn(ScoreMarket, func(row stats.GroupRow) float64 {
		return MarketScore(valueAt(row, growth), valueAt(row, ppa))
	})
	return g.SortBy(ScoreMarket, true)
}

func productProfitability(f *dataset.Frame) *stats.Grouped {
	g := summarize(f, []string{dataset.ColProductAbbr}, []stats.Agg{
		{Column: dataset.ColWrittenPremium, Func: stats.SumOf, As: AggPremiumSum},
		{Column: dataset.ColWrittenPremium, Func: stats.MeanOf, As: AggPremiumMean},
		{Column: dataset.ColLossRatio, Func: stats.MeanOf, As: AggLossRatioMean},
		{Column: dataset.ColRetentionRatio, Func: stats.MeanOf, As: AggRetentionMean},
		{Column: dataset.ColGrowthRate3Yr, Func: stats.MeanOf, As: AggGrowthMean},
		{Column: dataset.ColPoliciesInForce, Func: stats.SumOf, As: AggPoliciesSum},
	})
	if g == nil {
		return nil
	}
	lr, ret, growth := g.Col(AggLossRatioMean), g.Col(AggRetentionMean), g.Col(AggGrowthMean)
	g.AddColumn(ScoreProfitability, func(row stats.GroupRow) float64 {
		return ProfitabilityScore(valueAt(row, lr), valueAt(row, ret), valueAt(row, growth))
	})
	return g.SortBy(ScoreProfitability, true).Head(productRankingSize)
}

func expansionCandidates(f *dataset.Frame) *stats.Grouped {
	g := summarize(f, []string{dataset.ColAgencyID}, []stats.Agg{
		{Column: dataset.ColWrittenPremium, Func: stats.SumOf, As: AggPremiumSum},
		{Column: dataset.ColLossRatio, Func: stats.MeanOf, As: AggLossRatioMean},
		{Column: dataset.ColRetentionRatio, Func: stats.MeanOf, As: AggRetentionMean},
		{Column: dataset.ColActiveProducers, Func: stats.MeanOf, As: AggProducersMean},
		{Column: dataset.ColState, Func: stats.NUniqueOf, As: AggStatesCount},
		{Column: dataset.ColProductAbbr, Func: stats.NUniqueOf, As: AggProductsCount},
	})
	if g == nil {
		return nil
	}
	ret, lr := g.Col(AggRetentionMean), g.Col(AggLossRatioMean)
	prod, prem := g.Col(AggProducersMean), g.Col(AggPremiumSum)
	g.AddColumn(ScoreExpansion, func(row stats.GroupRow) float64 {
		return ExpansionScore(valueAt(row, ret), valueAt(row, lr), valueAt(row, prod), valueAt(row, prem))
	})

	median := stats.Median(g.Values(AggPremiumSum))
	states, products := g.Col(AggStatesCount), g.Col(AggProductsCount)
	candidates := g.Filter(func(row stats.GroupRow) bool {
		if !(valueAt(row, prem) > median) {
			return false
		}
		return valueAt(row, states) < 3 || valueAt(row, products) < 10
	})
	return candidates.SortBy(ScoreExpansion, true).Head(expansionSize)
}

func perAgency(g *stats.Grouped) func(row stats.GroupRow) float64 {
	prem, agencies := g.Col(AggPremiumSum), g.Col(AggAgencies)
	return func(row stats.GroupRow) float64 {
		return valueAt(row, prem) / valueAt(row, agencies)
	}
}

var nan = math.NaN()

// valueAt reads column c of row, NaN when the column was not aggregated
func valueAt(row stats.GroupRow, c int) float64 {
	if c < 0 || c >= len(row.Values) {
		return nan
	}
	return row.Values[c]
}
