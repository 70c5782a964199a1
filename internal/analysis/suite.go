package analysis

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"agency-insights/internal/charts"
	"agency-insights/internal/dataset"
	"agency-insights/internal/report"
	"agency-insights/internal/stats"
)

// Results bundles every report of one analysis run
type Results struct {
	Source        string             `json:"source"`
	Structure     StructureReport    `json:"structure"`
	Quality       QualityReport      `json:"quality"`
	Performance   PerformanceReport  `json:"performance"`
	Segmentation  SegmentationReport `json:"segmentation"`
	Opportunities OpportunityReport  `json:"opportunities"`
	Files         []string           `json:"files"`
}

// Suite computes all analyses of a frame and writes their outputs
type Suite struct {
	outputDir string
	chartsDir string
	logger    zerolog.Logger
	workers   int
	now       func() time.Time
}

// NewSuite creates a suite writing reports into outputDir and charts into chartsDir
func NewSuite(outputDir, chartsDir string, logger zerolog.Logger) *Suite {
	if chartsDir == "" {
		chartsDir = filepath.Join(outputDir, "charts")
	}
	return &Suite{
		outputDir: outputDir,
		chartsDir: chartsDir,
		logger:    logger.With().Str("component", "analysis").Logger(),
		workers:   4,
		now:       time.Now,
	}
}

// Analyze computes every report. Derived metrics are added to f.
func (s *Suite) Analyze(f *dataset.Frame, source string) (*Results, error) {
	r := &Results{Source: source}
	r.Structure = Structure(f)
	r.Quality = Quality(f)

	dataset.Derive(f)

	var err error
	if r.Performance, err = Performance(f); err != nil {
		return nil, err
	}
	if r.Segmentation, err = Segment(f); err != nil {
		return nil, err
	}
	if r.Opportunities, err = Opportunities(f); err != nil {
		return nil, err
	}
	return r, nil
}

// Run computes every report and writes the Markdown, CSV and PNG outputs.
// Chart failures are logged and skipped; report write failures abort the run.
func (s *Suite) Run(ctx context.Context, f *dataset.Frame, source string) (*Results, error) {
	start := time.Now()
	r, err := s.Analyze(f, source)
	if err != nil {
		return nil, err
	}

	var mu sync.Mutex
	record := func(path string) {
		mu.Lock()
		r.Files = append(r.Files, path)
		mu.Unlock()
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for _, w := range s.writers(r, f) {
		w := w
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			path, err := w.write()
			if err != nil {
				if w.optional {
					if !errors.Is(err, charts.ErrNoData) {
						s.logger.Warn().Err(err).Str("output", w.name).Msg("skipping chart")
					}
					return nil
				}
				return fmt.Errorf("failed to write %s: %w", w.name, err)
			}
			record(path)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return r, err
	}

	sort.Strings(r.Files)
	s.logger.Info().
		Str("source", source).
		Int("rows", f.Len()).
		Int("files", len(r.Files)).
		Dur("duration", time.Since(start)).
		Msg("analysis complete")
	return r, nil
}

type writer struct {
	name     string
	optional bool
	write    func() (string, error)
}

func (s *Suite) markdown(name, body string) writer {
	return writer{name: name, write: func() (string, error) {
		path := filepath.Join(s.outputDir, name)
		return path, report.SaveText(path, body)
	}}
}

func (s *Suite) csv(name string, t report.Table) writer {
	return writer{name: name, write: func() (string, error) {
		path := filepath.Join(s.outputDir, name)
		return path, report.SaveCSV(path, t)
	}}
}

func (s *Suite) chart(name string, render func(path string) error) writer {
	return writer{name: name, optional: true, write: func() (string, error) {
		path := filepath.Join(s.chartsDir, name)
		return path, render(path)
	}}
}

func (s *Suite) writers(r *Results, f *dataset.Frame) []writer {
	now := s.now()
	ws := []writer{
		s.markdown("data_structure_report.md", StructureMarkdown(r.Structure, r.Source, now)),
		s.markdown("data_quality_report.md", QualityMarkdown(r.Quality, now)),
		s.markdown("performance_report.md", PerformanceMarkdown(r.Performance, now)),
		s.markdown("segmentation_report.md", SegmentationMarkdown(r.Segmentation, now)),
		s.markdown("market_opportunities_report.md", OpportunityMarkdown(r.Opportunities, now)),
		s.csv("missing_values_summary.csv", MissingTable(r.Quality.Missing)),
		s.csv("summary_statistics.csv", SummaryTable(r.Quality.Summary)),
		s.csv("correlation_matrix.csv", CorrelationTable(r.Performance.Correlation)),
	}

	tables := []struct {
		name string
		g    *stats.Grouped
	}{
		{"state_summary.csv", r.Performance.States},
		{"product_line_summary.csv", r.Performance.ProductLines},
		{"product_summary.csv", r.Performance.Products},
		{"yearly_trends.csv", r.Performance.Yearly},
		{"top_agencies.csv", r.Performance.TopAgencies},
		{"performance_tier_analysis.csv", r.Segmentation.Tiers},
		{"state_performance_analysis.csv", r.Segmentation.States},
		{"product_line_analysis.csv", r.Segmentation.ProductLines},
		{"underperforming_segments.csv", r.Opportunities.UnderperformingSegments},
		{"state_opportunities.csv", r.Opportunities.StateOpportunities},
		{"product_profitability.csv", r.Opportunities.ProductProfitability},
		{"expansion_candidates.csv", r.Opportunities.ExpansionCandidates},
		{"vendor_performance.csv", r.Opportunities.Vendors},
	}
	for _, t := range tables {
		if t.g != nil {
			ws = append(ws, s.csv(t.name, report.FromGrouped(t.g, 2)))
		}
	}
	if r.Segmentation.TopPerformers != nil {
		ws = append(ws,
			s.csv("top_performers.csv", report.FromFrame(r.Segmentation.TopPerformers)),
			s.csv("bottom_performers.csv", report.FromFrame(r.Segmentation.BottomPerformers)),
		)
	}

	return append(ws, s.chartWriters(r, f)...)
}

func (s *Suite) chartWriters(r *Results, f *dataset.Frame) []writer {
	var ws []writer
	if lr, err := f.Numeric(dataset.ColLossRatio); err == nil {
		ws = append(ws, s.chart("loss_ratio_distribution.png", func(p string) error {
			return charts.Histogram(p, "Distribution of Loss Ratios", lr, 50)
		}))
	}
	if st := r.Performance.States; st != nil {
		top := st.Head(15)
		ws = append(ws, s.chart("premium_by_state.png", func(p string) error {
			return charts.Bar(p, "Written Premium by State (Top 15)", top.Labels(), top.Values(AggPremiumSum))
		}))
	}
	if pr := r.Performance.Products; pr != nil {
		ws = append(ws, s.chart("product_line_performance.png", func(p string) error {
			return charts.Bar(p, "Written Premium by Product", pr.Labels(), pr.Values(AggPremiumSum))
		}))
	}
	if y := r.Performance.Yearly; y != nil {
		xs := make([]float64, len(y.Rows))
		for i, l := range y.Labels() {
			xs[i], _ = strconv.ParseFloat(l, 64)
		}
		ws = append(ws, s.chart("premium_trends.png", func(p string) error {
			return charts.Line(p, "Premium Trends Over Time", xs, y.Values(AggPremiumSum))
		}))
	}
	if scored := r.Segmentation.Frame; scored != nil {
		ws = append(ws, s.chart("roi_vs_premium_scatter.png", func(p string) error {
			prem, _ := scored.Numeric(dataset.ColWrittenPremium)
			roi, _ := scored.Numeric(dataset.ColROI)
			return charts.Scatter(p, "ROI vs Premium Volume", prem, roi)
		}))
	}
	counts := make([]float64, len(TierLabels))
	for i, t := range TierLabels {
		counts[i] = float64(r.Segmentation.TierCounts[t])
	}
	ws = append(ws, s.chart("performance_tier_distribution.png", func(p string) error {
		return charts.Pie(p, "Agency Distribution by Performance Tier", TierLabels, counts)
	}))
	if so := r.Opportunities.StateOpportunities; so != nil {
		ws = append(ws, s.chart("state_growth_vs_premium.png", func(p string) error {
			return charts.Scatter(p, "Growth Rate vs Total Premium by State", so.Values(AggGrowthMean), so.Values(AggPremiumSum))
		}))
	}
	if pp := r.Opportunities.ProductProfitability; pp != nil {
		ws = append(ws, s.chart("product_profitability.png", func(p string) error {
			return charts.Bar(p, "Top Products by Profitability Score", pp.Labels(), pp.Values(ScoreProfitability))
		}))
	}
	if len(r.Opportunities.VendorShare) > 0 {
		labels := make([]string, len(r.Opportunities.VendorShare))
		vals := make([]float64, len(labels))
		for i, v := range r.Opportunities.VendorShare {
			labels[i], vals[i] = v.Label, float64(v.Premium)
		}
		ws = append(ws, s.chart("vendor_share.png", func(p string) error {
			return charts.Pie(p, "Market Share by Vendor", labels, vals)
		}))
	}
	return ws
}
