package analysis

import (
	"fmt"
	"math"
	"sort"

	"agency-insights/internal/dataset"
	"agency-insights/internal/stats"
)

// Columns added to the scored frame
const (
	ColPerformanceScore = "PERFORMANCE_SCORE"
	ColPerformanceTier  = "PERFORMANCE_TIER"
)

// Performance tiers, lowest first. Each covers a right-closed 20 point band.
const (
	TierBottom  = "Bottom 20%"
	TierLow     = "Low Performers"
	TierAverage = "Average"
	TierHigh    = "High Performers"
	TierTop     = "Top 20%"
)

// TierLabels lists the tiers in score order
var TierLabels = []string{TierBottom, TierLow, TierAverage, TierHigh, TierTop}

// ScoreWeights are the composite score weights of the normalised metrics
var ScoreWeights = []struct {
	Column string
	Weight float64
}{
	{dataset.ColWrittenPremium, 0.3},
	{dataset.ColROI, 0.3},
	{dataset.ColRetentionRatio, 0.2},
	{dataset.ColPremiumEfficiency, 0.2},
}

// TierFor maps a 0..100 score onto its tier. Scores outside (0, 100] have no tier.
func TierFor(score float64) string {
	if math.IsNaN(score) || score <= 0 || score > 100 {
		return ""
	}
	i := int(math.Ceil(score/20)) - 1
	if i < 0 {
		i = 0
	}
	if i >= len(TierLabels) {
		i = len(TierLabels) - 1
	}
	return TierLabels[i]
}

// Insights are the headline numbers of a segmentation
type Insights struct {
	TopTierAvgROI    stats.Float `json:"top_tier_avg_roi"`
	BottomTierAvgROI stats.Float `json:"bottom_tier_avg_roi"`
	BestState        string      `json:"best_state"`
	BestStateScore   stats.Float `json:"best_state_score"`
	TotalPremium     stats.Float `json:"total_premium"`
}

// SegmentationReport is the result of scoring and tiering agencies
type SegmentationReport struct {
	Scored           int            `json:"scored"`
	TierCounts       map[string]int `json:"tier_counts"`
	Tiers            *stats.Grouped `json:"tiers,omitempty"`
	States           *stats.Grouped `json:"states,omitempty"`
	ProductLines     *stats.Grouped `json:"product_lines,omitempty"`
	Insights         Insights       `json:"insights"`
	Frame            *dataset.Frame `json:"-"`
	TopPerformers    *dataset.Frame `json:"-"`
	BottomPerformers *dataset.Frame `json:"-"`
}

// Segment scores every record that has all weighted metrics and assigns a
// tier. Derived metrics are added to f when absent.
func Segment(f *dataset.Frame) (SegmentationReport, error) {
	r := SegmentationReport{TierCounts: make(map[string]int)}

	metrics := make([]string, len(ScoreWeights))
	for i, w := range ScoreWeights {
		metrics[i] = w.Column
	}
	if !f.Has(metrics...) {
		dataset.Derive(f)
	}

	cols := make([][]float64, len(metrics))
	for i, m := range metrics {
		vals, err := f.Numeric(m)
		if err != nil {
			return r, fmt.Errorf("segmentation: %w", err)
		}
		cols[i] = vals
	}

	scored := f.Filter(func(i int) bool {
		for _, c := range cols {
			if math.IsNaN(c[i]) {
				return false
			}
		}
		return true
	})
	r.Scored = scored.Len()
	r.Frame = scored

	score := make([]float64, scored.Len())
	for i, w := range ScoreWeights {
		vals, _ := scored.Numeric(metrics[i])
		for j, v := range stats.MinMaxNormalize(vals) {
			score[j] += v * w.Weight
		}
	}
	tiers := make([]string, len(score))
	for i, s := range score {
		tiers[i] = TierFor(s)
		if tiers[i] != "" {
			r.TierCounts[tiers[i]]++
		}
	}
	_ = scored.AddNumeric(ColPerformanceScore, score)
	_ = scored.AddCategorical(ColPerformanceTier, tiers)

	if scored.Len() == 0 {
		return r, nil
	}

	if r.Tiers = summarize(scored, []string{ColPerformanceTier}, []stats.Agg{
		{Column: dataset.ColAgencyID, Func: stats.CountOf, As: AggRecords},
		{Column: dataset.ColWrittenPremium, Func: stats.MeanOf, As: AggPremiumMean},
		{Column: dataset.ColWrittenPremium, Func: stats.MedianOf, As: "premium_median"},
		{Column: dataset.ColWrittenPremium, Func: stats.SumOf, As: AggPremiumSum},
		{Column: dataset.ColLossRatio, Func: stats.MeanOf, As: AggLossRatioMean},
		{Column: dataset.ColROI, Func: stats.MeanOf, As: "roi_mean"},
		{Column: dataset.ColRetentionRatio, Func: stats.MeanOf, As: AggRetentionMean},
		{Column: ColPerformanceScore, Func: stats.MeanOf, As: "score_mean"},
	}); r.Tiers != nil {
		orderByTier(r.Tiers)
	}

	if r.States = summarize(scored, []string{dataset.ColState}, []stats.Agg{
		{Column: ColPerformanceScore, Func: stats.MeanOf, As: "score_mean"},
		{Column: dataset.ColWrittenPremium, Func: stats.SumOf, As: AggPremiumSum},
		{Column: dataset.ColAgencyID, Func: stats.CountOf, As: AggRecords},
		{Column: dataset.ColROI, Func: stats.MeanOf, As: "roi_mean"},
	}); r.States != nil {
		r.States.SortBy("score_mean", true)
	}

	if r.ProductLines = summarize(scored, []string{dataset.ColProductLine}, []stats.Agg{
		{Column: ColPerformanceScore, Func: stats.MeanOf, As: "score_mean"},
		{Column: dataset.ColWrittenPremium, Func: stats.SumOf, As: AggPremiumSum},
		{Column: dataset.ColLossRatio, Func: stats.MeanOf, As: AggLossRatioMean},
		{Column: dataset.ColAgencyID, Func: stats.CountOf, As: AggRecords},
	}); r.ProductLines != nil {
		r.ProductLines.SortBy("score_mean", true)
	}

	r.TopPerformers = scored.Filter(func(i int) bool { return tiers[i] == TierTop })
	r.BottomPerformers = scored.Filter(func(i int) bool { return tiers[i] == TierBottom })
	r.Insights = insights(scored, tiers, r.States)
	return r, nil
}

func insights(scored *dataset.Frame, tiers []string, states *stats.Grouped) Insights {
	roi, _ := scored.Numeric(dataset.ColROI)
	prem, _ := scored.Numeric(dataset.ColWrittenPremium)
	var top, bottom []float64
	for i, t := range tiers {
		switch t {
		case TierTop:
			top = append(top, roi[i])
		case TierBottom:
			bottom = append(bottom, roi[i])
		}
	}
	in := Insights{
		TopTierAvgROI:    stats.Float(stats.Mean(top)),
		BottomTierAvgROI: stats.Float(stats.Mean(bottom)),
		BestStateScore:   stats.Float(math.NaN()),
		TotalPremium:     stats.Float(stats.Sum(prem)),
	}
	if states != nil && len(states.Rows) > 0 {
		in.BestState = states.Labels()[0]
		in.BestStateScore = stats.Float(states.Value(0, "score_mean"))
	}
	return in
}

func orderByTier(g *stats.Grouped) {
	rank := make(map[string]int, len(TierLabels))
	for i, l := range TierLabels {
		rank[l] = i
	}
	sort.SliceStable(g.Rows, func(a, b int) bool {
		return rank[g.Rows[a].Key[0]] < rank[g.Rows[b].Key[0]]
	})
}
