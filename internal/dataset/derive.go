package dataset

import (
	"math"
)

// Derive adds the business metrics computed from the source columns. Each
// metric is added only when its inputs exist. It returns the added names.
func Derive(f *Frame) []string {
	var added []string
	n := f.Len()

	prem, premErr := f.Numeric(ColWrittenPremium)
	if premErr != nil {
		return added
	}

	if lr, err := f.Numeric(ColLossRatio); err == nil {
		margin := make([]float64, n)
		roi := make([]float64, n)
		for i := 0; i < n; i++ {
			m := prem[i] * (1 - lr[i]/100)
			if math.IsNaN(m) {
				m = 0
			}
			margin[i] = m
			roi[i] = finiteOrZero(m / prem[i] * 100)
		}
		_ = f.AddNumeric(ColProfitMargin, margin)
		_ = f.AddNumeric(ColROI, roi)
		added = append(added, ColProfitMargin, ColROI)
	}

	if states, err := f.Categorical(ColState); err == nil {
		sums := make(map[string]float64)
		counts := make(map[string]int)
		for i := 0; i < n; i++ {
			if states[i] == "" || math.IsNaN(prem[i]) {
				continue
			}
			sums[states[i]] += prem[i]
			counts[states[i]]++
		}
		eff := make([]float64, n)
		for i := 0; i < n; i++ {
			c := counts[states[i]]
			if states[i] == "" || c == 0 {
				eff[i] = math.NaN()
				continue
			}
			eff[i] = prem[i] / (sums[states[i]] / float64(c))
		}
		_ = f.AddNumeric(ColPremiumEfficiency, eff)
		added = append(added, ColPremiumEfficiency)
	}

	if prev, err := f.Numeric(ColPrevPremium); err == nil {
		growth := make([]float64, n)
		for i := 0; i < n; i++ {
			growth[i] = finiteOrZero((prem[i] - prev[i]) / prev[i] * 100)
		}
		_ = f.AddNumeric(ColPremiumGrowth, growth)
		added = append(added, ColPremiumGrowth)
	}

	year, yErr := f.Numeric(ColYear)
	appt, aErr := f.Numeric(ColAppointmentYear)
	if yErr == nil && aErr == nil {
		tenure := make([]float64, n)
		for i := 0; i < n; i++ {
			tenure[i] = year[i] - appt[i]
		}
		_ = f.AddNumeric(ColAgencyTenure, tenure)
		added = append(added, ColAgencyTenure)
	}

	if policies, err := f.Numeric(ColPoliciesInForce); err == nil {
		ppp := make([]float64, n)
		for i := 0; i < n; i++ {
			ppp[i] = finiteOrZero(prem[i] / (policies[i] + 1))
		}
		_ = f.AddNumeric(ColPremiumPerPolicy, ppp)
		added = append(added, ColPremiumPerPolicy)
	}

	return added
}

// finiteOrZero maps ±Inf to 0 and keeps NaN
func finiteOrZero(v float64) float64 {
	if math.IsInf(v, 0) {
		return 0
	}
	return v
}
