package stats

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agency-insights/internal/dataset"
	"agency-insights/internal/dataset/datasettest"
)

func TestDescribe(t *testing.T) {
	s := Describe([]float64{4, 1, math.NaN(), 3, 2})

	assert.Equal(t, 4, s.Count)
	assert.InDelta(t, 2.5, s.Mean, 1e-12)
	assert.InDelta(t, math.Sqrt(5.0/3.0), s.Std, 1e-12)
	assert.Equal(t, 1.0, s.Min)
	assert.InDelta(t, 1.75, s.Q25, 1e-12)
	assert.InDelta(t, 2.5, s.Median, 1e-12)
	assert.InDelta(t, 3.25, s.Q75, 1e-12)
	assert.Equal(t, 4.0, s.Max)
}

func TestDescribeEmpty(t *testing.T) {
	s := Describe([]float64{math.NaN()})
	assert.Equal(t, 0, s.Count)
	assert.True(t, math.IsNaN(s.Mean))
	assert.True(t, math.IsNaN(s.Max))
}

func TestQuantile(t *testing.T) {
	vals := []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100}
	assert.InDelta(t, 91, Quantile(vals, 0.9), 1e-9)
	assert.Equal(t, 10.0, Quantile(vals, 0))
	assert.Equal(t, 100.0, Quantile(vals, 1))
	assert.Equal(t, 7.0, Quantile([]float64{7}, 0.3))
	assert.True(t, math.IsNaN(Quantile(nil, 0.5)))
}

func TestBasicReductions(t *testing.T) {
	vals := []float64{1, math.NaN(), 3}
	assert.Equal(t, 4.0, Sum(vals))
	assert.Equal(t, 2.0, Mean(vals))
	assert.Equal(t, 2.0, Median(vals))
	assert.Equal(t, 2, Count(vals))
	lo, hi := MinMax(vals)
	assert.Equal(t, 1.0, lo)
	assert.Equal(t, 3.0, hi)
	assert.True(t, math.IsNaN(Std([]float64{1})))
	assert.True(t, math.IsNaN(Mean(nil)))

	assert.Equal(t, 2, NUnique([]string{"a", "b", "a", ""}))
	assert.Equal(t, []string{"a", "b"}, Unique([]string{"b", "", "a", "b"}))
	assert.Equal(t, 1.23, Round(1.2345, 2))
}

func TestPearson(t *testing.T) {
	assert.InDelta(t, 1.0, Pearson([]float64{1, 2, 3}, []float64{2, 4, 6}), 1e-12)
	assert.InDelta(t, -1.0, Pearson([]float64{1, 2, 3, math.NaN()}, []float64{3, 2, 1, 9}), 1e-12)
	assert.True(t, math.IsNaN(Pearson([]float64{1, 1, 1}, []float64{1, 2, 3})))
	assert.True(t, math.IsNaN(Pearson([]float64{1}, []float64{2})))
}

func TestIQROutliers(t *testing.T) {
	count, lower, upper := IQROutliers([]float64{1, 2, 3, 4, 100})
	assert.Equal(t, 1, count)
	assert.Equal(t, -1.0, lower)
	assert.Equal(t, 7.0, upper)

	count, _, _ = IQROutliers(nil)
	assert.Equal(t, 0, count)
}

func TestMinMaxNormalize(t *testing.T) {
	out := MinMaxNormalize([]float64{0, 5, 10, math.NaN()})
	assert.Equal(t, []float64{0, 50, 100}, out[:3])
	assert.True(t, math.IsNaN(out[3]))

	assert.Equal(t, []float64{50, 50}, MinMaxNormalize([]float64{3, 3}))
	assert.Equal(t, []float64{50}, MinMaxNormalize([]float64{7}))
}

func TestGroupAggregate(t *testing.T) {
	f := datasettest.Frame(t)

	g, err := GroupAggregate(f, []string{dataset.ColState}, []Agg{
		{Column: dataset.ColWrittenPremium, Func: SumOf},
		{Column: dataset.ColAgencyID, Func: NUniqueOf, As: "agencies"},
		{Column: dataset.ColLossRatio, Func: CountOf},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"IN", "MI", "OH"}, g.Labels())
	assert.Equal(t, []string{"WRTN_PREM_AMT_sum", "agencies", "LOSS_RATIO_count"}, g.Columns)
	assert.Equal(t, 745000.0, g.Value(0, "WRTN_PREM_AMT_sum"))
	assert.Equal(t, 3.0, g.Value(0, "LOSS_RATIO_count"))
	assert.Equal(t, 3.0, g.Value(2, "agencies"))

	g.SortBy("WRTN_PREM_AMT_sum", true)
	assert.Equal(t, []string{"IN", "OH", "MI"}, g.Labels())
	assert.Equal(t, []float64{745000, 340000, 277000}, g.Values("WRTN_PREM_AMT_sum"))

	top := g.Head(1)
	top.AddColumn("double", func(r GroupRow) float64 { return r.Values[0] * 2 })
	assert.Equal(t, 1490000.0, top.Value(0, "double"))
	assert.Equal(t, -1, g.Col("double"))

	small := g.Filter(func(r GroupRow) bool { return r.Values[0] < 300000 })
	assert.Equal(t, []string{"MI"}, small.Labels())
}

func TestGroupByNumericKeysAndErrors(t *testing.T) {
	f := datasettest.Frame(t)

	groups, err := GroupBy(f, dataset.ColYear)
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.Equal(t, []string{"2010"}, groups[0].Key)
	assert.Len(t, groups[0].Rows, 6)

	_, err = GroupBy(f)
	assert.Error(t, err)

	_, err = GroupAggregate(f, []string{"NOPE"}, nil)
	assert.ErrorIs(t, err, dataset.ErrColumnNotFound)

	_, err = GroupAggregate(f, []string{dataset.ColState}, []Agg{{Column: dataset.ColVendor, Func: SumOf}})
	assert.ErrorIs(t, err, dataset.ErrWrongKind)
}

func TestCorrelation(t *testing.T) {
	f := datasettest.Frame(t)
	m := Correlation(f, []string{dataset.ColWrittenPremium, dataset.ColEarnedPremium, dataset.ColState, "NOPE"})

	assert.Equal(t, []string{dataset.ColWrittenPremium, dataset.ColEarnedPremium}, m.Names)
	assert.Equal(t, 1.0, m.Values[0][0])
	r, ok := m.Get(dataset.ColWrittenPremium, dataset.ColEarnedPremium)
	require.True(t, ok)
	assert.Greater(t, r, 0.99)
	assert.Equal(t, m.Values[0][1], m.Values[1][0])

	_, ok = m.Get("A", "B")
	assert.False(t, ok)
}

func TestJSONEncodesNaNAsNull(t *testing.T) {
	g := &Grouped{
		KeyNames: []string{"STATE_ABBR"},
		Columns:  []string{"v"},
		Rows:     []GroupRow{{Key: []string{"OH"}, Values: []float64{math.NaN()}, Rows: []int{1}}},
	}
	data, err := json.Marshal(g)
	require.NoError(t, err)
	assert.JSONEq(t, `{"keys":["STATE_ABBR"],"columns":["v"],"rows":[{"key":["OH"],"values":[null]}]}`, string(data))

	data, err = json.Marshal(Describe(nil))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"mean":null`)

	data, err = json.Marshal(Float(math.Inf(1)))
	require.NoError(t, err)
	assert.Equal(t, "null", string(data))
	assert.True(t, Float(math.NaN()).IsNaN())
}
