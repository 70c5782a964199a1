package analysis

import (
	"sort"

	"agency-insights/internal/dataset"
	"agency-insights/internal/stats"
)

// outlierColumns bounds how many numeric columns are screened for outliers
const outlierColumns = 10

// categoricalListLimit is the largest cardinality whose values are listed
const categoricalListLimit = 20

// MissingInfo is the missing-value count of one column
type MissingInfo struct {
	Column     string  `json:"column"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// OutlierInfo is the IQR screen of one numeric column
type OutlierInfo struct {
	Column     string      `json:"column"`
	Count      int         `json:"count"`
	Percentage float64     `json:"percentage"`
	Lower      stats.Float `json:"lower"`
	Upper      stats.Float `json:"upper"`
}

// CategoricalInfo is the cardinality of one categorical column
type CategoricalInfo struct {
	Column string   `json:"column"`
	Unique int      `json:"unique"`
	Values []string `json:"values,omitempty"`
}

// QualityReport collects the data quality checks
type QualityReport struct {
	Rows             int               `json:"rows"`
	Missing          []MissingInfo     `json:"missing"`
	DuplicateRows    int               `json:"duplicate_rows"`
	DuplicatePercent float64           `json:"duplicate_percent"`
	CompleteRows     int               `json:"complete_rows"`
	Placeholders     map[string]int    `json:"placeholders"`
	Outliers         []OutlierInfo     `json:"outliers"`
	Categorical      []CategoricalInfo `json:"categorical"`
	Summary          []ColumnSummary   `json:"summary"`
}

// Quality runs the missing, duplicate, placeholder, outlier and cardinality checks
func Quality(f *dataset.Frame) QualityReport {
	n := f.Len()
	r := QualityReport{
		Rows:          n,
		DuplicateRows: f.DuplicateRows(),
		CompleteRows:  f.CompleteRows(),
		Placeholders:  f.PlaceholderCounts(),
		Summary:       Describe(f),
	}
	r.DuplicatePercent = percent(r.DuplicateRows, n)

	missing := f.MissingCounts()
	for _, name := range f.Columns() {
		r.Missing = append(r.Missing, MissingInfo{
			Column:     name,
			Count:      missing[name],
			Percentage: percent(missing[name], n),
		})
	}
	sort.SliceStable(r.Missing, func(a, b int) bool {
		return r.Missing[a].Count > r.Missing[b].Count
	})

	numeric := f.NumericColumns()
	if len(numeric) > outlierColumns {
		numeric = numeric[:outlierColumns]
	}
	for _, name := range numeric {
		vals, _ := f.Numeric(name)
		count, lower, upper := stats.IQROutliers(vals)
		r.Outliers = append(r.Outliers, OutlierInfo{
			Column:     name,
			Count:      count,
			Percentage: percent(count, n),
			Lower:      stats.Float(lower),
			Upper:      stats.Float(upper),
		})
	}

	for _, name := range f.CategoricalColumns() {
		vals, _ := f.Categorical(name)
		info := CategoricalInfo{Column: name, Unique: stats.NUnique(vals)}
		if info.Unique <= categoricalListLimit {
			info.Values = stats.Unique(vals)
		}
		r.Categorical = append(r.Categorical, info)
	}
	return r
}

// MissingColumns returns only the columns with at least one missing value
func (r QualityReport) MissingColumns() []MissingInfo {
	var out []MissingInfo
	for _, m := range r.Missing {
		if m.Count > 0 {
			out = append(out, m)
		}
	}
	return out
}

func percent(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	return float64(part) / float64(whole) * 100
}
