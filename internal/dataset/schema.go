package dataset

// Source columns of the agency-year dataset
const (
	ColAgencyID        = "AGENCY_ID"
	ColYear            = "STAT_PROFILE_DATE_YEAR"
	ColWrittenPremium  = "WRTN_PREM_AMT"
	ColPrevPremium     = "PREV_WRTN_PREM_AMT"
	ColEarnedPremium   = "PRD_ERND_PREM_AMT"
	ColIncurredLosses  = "PRD_INCRD_LOSSES_AMT"
	ColLossRatio       = "LOSS_RATIO"
	ColRetentionRatio  = "RETENTION_RATIO"
	ColGrowthRate3Yr   = "GROWTH_RATE_3YR"
	ColPoliciesInForce = "POLY_INFORCE_QTY"
	ColActiveProducers = "ACTIVE_PRODUCERS"
	ColAppointmentYear = "AGENCY_APPOINTMENT_YEAR"
	ColState           = "STATE_ABBR"
	ColProductLine     = "PROD_LINE"
	ColProductAbbr     = "PROD_ABBR"
	ColVendor          = "VENDOR"
)

// Derived columns added by Derive
const (
	ColProfitMargin      = "PROFIT_MARGIN"
	ColROI               = "ROI"
	ColPremiumEfficiency = "PREMIUM_EFFICIENCY"
	ColPremiumGrowth     = "PREMIUM_GROWTH"
	ColAgencyTenure      = "AGENCY_TENURE"
	ColPremiumPerPolicy  = "PREMIUM_PER_POLICY"
)

// KeyMetrics are the business metrics used for correlation and distribution views
var KeyMetrics = []string{
	ColWrittenPremium,
	ColEarnedPremium,
	ColIncurredLosses,
	ColLossRatio,
	ColRetentionRatio,
	ColGrowthRate3Yr,
	ColActiveProducers,
}
