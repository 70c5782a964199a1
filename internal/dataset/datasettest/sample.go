// Package datasettest provides a small agency dataset for tests
package datasettest

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"agency-insights/internal/dataset"
)

// SampleCSV holds twelve agency-year rows over three states, two product lines
// and two vendors. Two cells carry the 99999 sentinel.
const SampleCSV = `AGENCY_ID,STAT_PROFILE_DATE_YEAR,WRTN_PREM_AMT,PREV_WRTN_PREM_AMT,PRD_ERND_PREM_AMT,PRD_INCRD_LOSSES_AMT,LOSS_RATIO,RETENTION_RATIO,GROWTH_RATE_3YR,POLY_INFORCE_QTY,ACTIVE_PRODUCERS,AGENCY_APPOINTMENT_YEAR,STATE_ABBR,PROD_LINE,PROD_ABBR,VENDOR
1,2010,100000,90000,95000,40000,42.1,0.85,0.10,120,5,2000,OH,CL,BOP,ACME
1,2011,110000,100000,105000,50000,47.6,0.88,0.12,130,5,2000,OH,PL,HOME,ACME
2,2010,50000,60000,52000,60000,115.4,0.70,-0.05,60,2,2005,OH,CL,BOP,ACME
2,2011,45000,50000,47000,99999,99999,0.65,-0.08,55,2,2005,IN,CL,WC,BETA
3,2010,250000,200000,240000,100000,41.7,0.92,0.25,300,12,1990,IN,PL,AUTO,BETA
3,2011,300000,250000,290000,90000,31.0,0.93,0.30,320,12,1990,IN,PL,HOME,BETA
4,2010,20000,0,21000,5000,23.8,0.60,0.01,25,1,2009,MI,CL,BOP,ACME
4,2011,22000,20000,21500,30000,139.5,0.62,0.02,27,1,2009,MI,CL,WC,ACME
5,2010,75000,70000,74000,30000,40.5,0.80,0.08,90,4,1998,MI,PL,AUTO,BETA
5,2011,80000,75000,79000,20000,25.3,0.82,0.09,95,4,1998,OH,PL,AUTO,BETA
6,2010,150000,140000,145000,70000,48.3,0.90,0.15,180,8,1985,IN,CL,BOP,ACME
6,2011,160000,150000,158000,,,0.91,0.16,190,8,1985,MI,PL,HOME,ACME
`

// Frame parses SampleCSV with the default options
func Frame(t testing.TB) *dataset.Frame {
	t.Helper()
	f, err := dataset.Parse(context.Background(), strings.NewReader(SampleCSV), dataset.DefaultOptions())
	require.NoError(t, err)
	return f
}

// DerivedFrame parses SampleCSV and adds the derived metrics
func DerivedFrame(t testing.TB) *dataset.Frame {
	t.Helper()
	f := Frame(t)
	dataset.Derive(f)
	return f
}

// WriteFile writes SampleCSV into dir and returns its path
func WriteFile(t testing.TB, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(SampleCSV), 0644))
	return path
}
