package analysis

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"agency-insights/internal/report"
	"agency-insights/internal/stats"
)

// SummaryTable lays out describe() rows, one per numeric column
func SummaryTable(summaries []ColumnSummary) report.Table {
	t := report.Table{Headers: []string{"column", "count", "mean", "std", "min", "25%", "50%", "75%", "max"}}
	for _, s := range summaries {
		v := s.Summary
		t.Rows = append(t.Rows, []string{
			s.Name,
			strconv.Itoa(v.Count),
			report.FormatFloat(v.Mean, 4),
			report.FormatFloat(v.Std, 4),
			report.FormatFloat(v.Min, 4),
			report.FormatFloat(v.Q25, 4),
			report.FormatFloat(v.Median, 4),
			report.FormatFloat(v.Q75, 4),
			report.FormatFloat(v.Max, 4),
		})
	}
	return t
}

// MissingTable lays out the missing-value counts
func MissingTable(missing []MissingInfo) report.Table {
	t := report.Table{Headers: []string{"Column", "Missing_Count", "Missing_Percentage"}}
	for _, m := range missing {
		t.Rows = append(t.Rows, []string{m.Column, strconv.Itoa(m.Count), report.FormatFloat(m.Percentage, 2)})
	}
	return t
}

// CorrelationTable lays out a correlation matrix
func CorrelationTable(m stats.Matrix) report.Table {
	t := report.Table{Headers: append([]string{""}, m.Names...)}
	for i, name := range m.Names {
		row := []string{name}
		for _, v := range m.Values[i] {
			row = append(row, report.FormatFloat(v, 3))
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

// ShareTable lays out premium shares
func ShareTable(label string, shares []Share) report.Table {
	t := report.Table{Headers: []string{label, "premium", "share_pct"}}
	for _, s := range shares {
		t.Rows = append(t.Rows, []string{s.Label, report.FormatFloat(float64(s.Premium), 2), report.FormatFloat(float64(s.Percent), 2)})
	}
	return t
}

func grouped(g *stats.Grouped) report.Table {
	if g == nil {
		return report.Table{}
	}
	return report.FromGrouped(g, 2)
}

// StructureMarkdown renders the structure report
func StructureMarkdown(r StructureReport, source string, generated time.Time) string {
	doc := report.NewDocument("Data Structure Analysis", generated)
	doc.Heading(2, "Dataset Overview").KeyValues(
		[]string{"Source", "Rows", "Columns", "Memory"},
		map[string]string{
			"Source":  source,
			"Rows":    strconv.Itoa(r.Rows),
			"Columns": strconv.Itoa(r.Columns),
			"Memory":  fmt.Sprintf("%.2f MB", float64(r.MemoryBytes)/1024/1024),
		})

	var dtypes []string
	for k, v := range r.Dtypes {
		dtypes = append(dtypes, fmt.Sprintf("%s: %d", k, v))
	}
	sort.Strings(dtypes)
	doc.Heading(2, "Data Types").Bullets(dtypes...)

	info := report.Table{Headers: []string{"Column", "Dtype", "Non-Null", "Missing", "Unique"}}
	for _, c := range r.Info {
		info.Rows = append(info.Rows, []string{c.Name, c.Dtype, strconv.Itoa(c.NonNull), strconv.Itoa(c.Missing), strconv.Itoa(c.Unique)})
	}
	doc.Heading(2, "Columns").Table(info)
	doc.Heading(2, "First Rows").Table(report.Table{Headers: r.Header, Rows: r.Head})
	doc.Heading(2, "Descriptive Statistics").Table(SummaryTable(r.Summary))
	return doc.String()
}

// QualityMarkdown renders the quality report
func QualityMarkdown(r QualityReport, generated time.Time) string {
	doc := report.NewDocument("Data Quality Assessment", generated)
	doc.Heading(2, "Completeness").KeyValues(
		[]string{"Records", "Complete rows", "Duplicate rows"},
		map[string]string{
			"Records":        strconv.Itoa(r.Rows),
			"Complete rows":  strconv.Itoa(r.CompleteRows),
			"Duplicate rows": fmt.Sprintf("%d (%.2f%%)", r.DuplicateRows, r.DuplicatePercent),
		})
	doc.Heading(2, "Missing Values").Table(MissingTable(r.MissingColumns()))

	ph := report.Table{Headers: []string{"Column", "Placeholder_99999_Count"}}
	for _, name := range sortedKeys(r.Placeholders) {
		ph.Rows = append(ph.Rows, []string{name, strconv.Itoa(r.Placeholders[name])})
	}
	doc.Heading(2, "Placeholder Values").Table(ph)

	out := report.Table{Headers: []string{"Column", "Outliers", "Percentage", "Lower", "Upper"}}
	for _, o := range r.Outliers {
		if o.Count == 0 {
			continue
		}
		out.Rows = append(out.Rows, []string{
			o.Column, strconv.Itoa(o.Count), report.FormatFloat(o.Percentage, 2),
			report.FormatFloat(float64(o.Lower), 2), report.FormatFloat(float64(o.Upper), 2),
		})
	}
	doc.Heading(2, "Outliers (1.5 x IQR)").Table(out)

	cat := report.Table{Headers: []string{"Column", "Unique", "Values"}}
	for _, c := range r.Categorical {
		cat.Rows = append(cat.Rows, []string{c.Column, strconv.Itoa(c.Unique), strings.Join(c.Values, ", ")})
	}
	doc.Heading(2, "Categorical Columns").Table(cat)
	doc.Heading(2, "Summary Statistics").Table(SummaryTable(r.Summary))
	return doc.String()
}

// PerformanceMarkdown renders the performance report
func PerformanceMarkdown(r PerformanceReport, generated time.Time) string {
	doc := report.NewDocument("Insurance Business Performance", generated)
	doc.Heading(2, "Key Metrics").KeyValues(
		[]string{"Records", "Agencies", "Total Written Premium", "Total Earned Premium", "Total Incurred Losses", "Average Loss Ratio"},
		map[string]string{
			"Records":               strconv.Itoa(r.Totals.Records),
			"Agencies":              strconv.Itoa(r.Totals.Agencies),
			"Total Written Premium": report.FormatMoney(float64(r.Totals.WrittenPremium)),
			"Total Earned Premium":  report.FormatMoney(float64(r.Totals.EarnedPremium)),
			"Total Incurred Losses": report.FormatMoney(float64(r.Totals.IncurredLosses)),
			"Average Loss Ratio":    report.FormatFloat(float64(r.Totals.AvgLossRatio), 3),
		})

	doc.Heading(2, "Geographic Performance").Table(grouped(r.States))
	doc.Image("Written premium by state", "charts/premium_by_state.png")
	doc.Heading(2, "Product Lines").Table(grouped(r.ProductLines))
	doc.Heading(2, "Products").Table(grouped(r.Products))
	doc.Image("Written premium by product", "charts/product_line_performance.png")
	doc.Heading(2, "Yearly Trends").Table(grouped(r.Yearly))
	doc.Image("Premium trend", "charts/premium_trends.png")
	doc.Heading(2, "Top Agencies by Written Premium").Table(grouped(r.TopAgencies))
	doc.Heading(2, "Bottom Agencies by Written Premium").Table(grouped(r.BottomAgencies))

	doc.Heading(2, "Risk Assessment").Paragraph(
		"%d records exceed the 90th percentile loss ratio of %s.",
		r.HighRisk.Count, report.FormatFloat(float64(r.HighRisk.Threshold), 2))
	doc.Table(grouped(r.HighRisk.ByState))
	doc.Image("Loss ratio distribution", "charts/loss_ratio_distribution.png")

	doc.Heading(2, "Market Share by State").Table(ShareTable("STATE_ABBR", r.StateShare))
	doc.Heading(2, "Market Share by Product Line").Table(ShareTable("PROD_LINE", r.ProductLineShare))
	doc.Heading(2, "Correlation of Key Metrics").Table(CorrelationTable(r.Correlation))
	return doc.String()
}

// SegmentationMarkdown renders the segmentation report
func SegmentationMarkdown(r SegmentationReport, generated time.Time) string {
	doc := report.NewDocument("Financial Performance Segmentation", generated)
	doc.Paragraph("Performance segments created for %d records. The composite score weights written premium 30%%, ROI 30%%, retention 20%% and premium efficiency 20%%, each normalised to 0-100.", r.Scored)

	doc.Heading(2, "Key Insights").Bullets(
		fmt.Sprintf("Top 20%% agencies generate avg ROI: %s%%", report.FormatFloat(float64(r.Insights.TopTierAvgROI), 1)),
		fmt.Sprintf("Bottom 20%% agencies generate avg ROI: %s%%", report.FormatFloat(float64(r.Insights.BottomTierAvgROI), 1)),
		fmt.Sprintf("Best performing state: %s (Score: %s)", r.Insights.BestState, report.FormatFloat(float64(r.Insights.BestStateScore), 1)),
		fmt.Sprintf("Total premium volume: %s", report.FormatMoney(float64(r.Insights.TotalPremium))),
	)

	counts := report.Table{Headers: []string{"Tier", "Records"}}
	for _, tier := range TierLabels {
		counts.Rows = append(counts.Rows, []string{tier, strconv.Itoa(r.TierCounts[tier])})
	}
	doc.Heading(2, "Tier Distribution").Table(counts)
	doc.Image("Performance tier distribution", "charts/performance_tier_distribution.png")
	doc.Heading(2, "Tier Scorecards").Table(grouped(r.Tiers))
	doc.Heading(2, "State Performance").Table(grouped(r.States))
	doc.Heading(2, "Product Line Performance").Table(grouped(r.ProductLines))
	doc.Image("ROI vs premium", "charts/roi_vs_premium_scatter.png")
	return doc.String()
}

// OpportunityMarkdown renders the market opportunity report
func OpportunityMarkdown(r OpportunityReport, generated time.Time) string {
	doc := report.NewDocument("Market Opportunities Analysis", generated)
	doc.Heading(2, "1. Underperforming Segments").
		Paragraph("State and product line combinations with the lowest performance score.").
		Table(grouped(r.UnderperformingSegments))
	doc.Heading(2, "2. High Growth Potential Areas").Table(grouped(r.StateOpportunities))
	doc.Image("Growth rate vs total premium by state", "charts/state_growth_vs_premium.png")
	doc.Heading(2, "3. Product Line Opportunities").Table(grouped(r.ProductProfitability))
	doc.Image("Product profitability", "charts/product_profitability.png")
	doc.Heading(2, "4. Agency Expansion Opportunities").
		Paragraph("Agencies above the median premium that write in fewer than 3 states or fewer than 10 products.").
		Table(grouped(r.ExpansionCandidates))
	doc.Heading(2, "5. Market Share Analysis")
	doc.Heading(3, "By State").Table(ShareTable("STATE_ABBR", r.StateShare))
	doc.Heading(3, "By Product Line").Table(ShareTable("PROD_LINE", r.ProductLineShare))
	doc.Heading(2, "6. Vendor Performance").Table(grouped(r.Vendors))
	doc.Image("Market share by vendor", "charts/vendor_share.png")
	return doc.String()
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
