package agents

// Report files written by the research pipelines
const (
	FileStructure     = "structure_analysis.md"
	FileMetrics       = "insurance_metrics.md"
	FileInsights      = "business_insights.md"
	FileSummary       = "data_analysis_summary.md"
	FileMarket        = "market_opportunities.md"
	FileStrategies    = "sales_strategies.md"
	FileBrief         = "sales_intelligence_brief.md"
	FileProspects     = "prospect_targeting.md"
	FileFinalReport   = "FINAL_SALES_REPORT.md"
	FileDashboard     = "EXECUTIVE_DASHBOARD.md"
	FileInvestigation = "research.md"
)

// ExpectedFiles lists every report a complete research run produces
var ExpectedFiles = []string{
	FileStructure,
	FileMetrics,
	FileInsights,
	FileSummary,
	FileMarket,
	FileStrategies,
	FileBrief,
	FileProspects,
	FileFinalReport,
	FileDashboard,
}

// DataAnalyst is the four step data analysis pipeline
func DataAnalyst() Pipeline {
	return Pipeline{Name: "data_analysis", Stages: []Stage{
		{Name: "Structure Analysis", Prompt: structurePrompt, OutputFile: FileStructure, MaxTurns: 15},
		{Name: "Insurance Metrics", Prompt: metricsPrompt, OutputFile: FileMetrics, MaxTurns: 15},
		{Name: "Business Insights", Prompt: insightsPrompt, OutputFile: FileInsights, MaxTurns: 12},
		{Name: "Data Summary", Prompt: summaryPrompt, OutputFile: FileSummary, MaxTurns: 8},
	}}
}

// SalesResearch is the four step sales research pipeline
func SalesResearch() Pipeline {
	return Pipeline{Name: "sales_research", Stages: []Stage{
		{Name: "Market Opportunities", Prompt: marketPrompt, OutputFile: FileMarket, MaxTurns: 6},
		{Name: "Sales Strategies", Prompt: strategyPrompt, OutputFile: FileStrategies, MaxTurns: 7},
		{Name: "Intelligence Brief", Prompt: briefPrompt, OutputFile: FileBrief, MaxTurns: 5},
		{Name: "Prospect Targeting", Prompt: prospectPrompt, OutputFile: FileProspects, MaxTurns: 5},
	}}
}

// FinalReports writes the sales report and the executive dashboard
func FinalReports() Pipeline {
	return Pipeline{Name: "final_reports", Stages: []Stage{
		{Name: "Final Sales Report", Prompt: finalReportPrompt, OutputFile: FileFinalReport, MaxTurns: 10},
		{Name: "Executive Dashboard", Prompt: dashboardPrompt, OutputFile: FileDashboard, MaxTurns: 5},
	}}
}
