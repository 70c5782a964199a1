package agents

const datasetBrief = `The dataset '{{.DataSource}}' holds insurance agency-year records with columns
such as AGENCY_ID, WRTN_PREM_AMT, LOSS_RATIO, RETENTION_RATIO, GROWTH_RATE_3YR,
ACTIVE_PRODUCERS, PROD_LINE and STATE_ABBR. The value 99999 marks a missing observation.`

const structurePrompt = `You are a data analyst working on insurance agency data.
` + datasetBrief + `

Write and run a script that:
1. Loads the CSV and reports its shape, column types and the first five rows.
2. Counts missing values, duplicate rows and 99999 placeholders per column.
3. Saves distribution and correlation charts under '{{.ChartsDir}}'.
4. Exports summary statistics to CSV.

Write the findings as Markdown to '{{.CommDir}}/structure_analysis.md'.`

const metricsPrompt = `You are an insurance data specialist.
` + datasetBrief + `

Analyse, excluding 99999 values:
1. Premium: totals, averages and trends by year and state.
2. Loss ratio: distribution, trend by product line, high-risk agencies.
3. Agency performance: top agencies by premium, retention, producer productivity.
4. Geography and products: state comparison and product line profitability.

Save charts under '{{.ChartsDir}}' and the analysis to '{{.CommDir}}/insurance_metrics.md'.`

const insightsPrompt = `You are a business intelligence analyst. Using '{{.DataSource}}', identify:
1. Growth opportunities: underperforming agencies with potential, markets for expansion, growing product lines.
2. Risk: agencies and regions with concerning loss ratios and early warning indicators.
3. Benchmarks: what top quartile performers have in common.
4. Recommendations: priority actions and resource allocation.

Keep every insight actionable. Save them to '{{.CommDir}}/business_insights.md'.`

const summaryPrompt = `You are consolidating the analysis files in '{{.CommDir}}/'. Produce:
1. An executive summary of the key findings and priority recommendations.
2. A sales intelligence brief with target opportunities and positioning.
3. Data-backed talking points for sales presentations.

Save the summary to '{{.CommDir}}/data_analysis_summary.md' so the sales research can build on it.`

const marketPrompt = `You are a sales strategy specialist. Review the analysis in '{{.CommDir}}/' and identify:
1. Target segments: high-value prospects, expansion geographies, product growth, markets ready to improve.
2. Competitive positioning: gaps to exploit and advantages to highlight.
3. A priority matrix of quick wins, strategic investments and accounts needing attention.

Save the market analysis to '{{.CommDir}}/market_opportunities.md'.`

const strategyPrompt = `You are developing sales strategies from the analysis in '{{.CommDir}}/'. Cover:
1. Account strategies for high-potential and underperforming agencies.
2. Product line strategies: cross-selling, penetration and pricing.
3. Geographic strategies: state expansion and territory optimisation.
4. Sales process: lead qualification, cycle improvements and tracking metrics.

Save the strategies to '{{.CommDir}}/sales_strategies.md'.`

const briefPrompt = `You are writing a sales intelligence brief from the research in '{{.CommDir}}/'. Include:
1. An executive briefing with the top five opportunities.
2. A field playbook: target profiles, talking points and objection handling.
3. Enablement tools: qualification questions and ROI business cases.
4. Performance tracking: leading indicators and review checkpoints.

Save the brief to '{{.CommDir}}/sales_intelligence_brief.md'.`

const prospectPrompt = `You are a prospect targeting specialist working from '{{.CommDir}}/'. Define:
1. Priority prospect categories, including at-risk accounts.
2. Scoring criteria for revenue potential, growth and risk.
3. Outreach tiers: immediate, medium term, long term and watch list.
4. Engagement approach, resources and timeline per tier.

Save the recommendations to '{{.CommDir}}/prospect_targeting.md'.`

const finalReportPrompt = `You are the chief strategist. Review every analysis file in '{{.CommDir}}/' and write
a sales report with these sections:
1. Executive summary: key findings, top revenue opportunities, investment recommendations.
2. Market analysis: current position, competition, growth map and risks.
3. Strategic recommendations with timelines and expected ROI.
4. Tactical execution plan: account targeting, process changes, measurement.
5. Appendices: data summaries, prospect lists and templates.

Save the report to '{{.CommDir}}/FINAL_SALES_REPORT.md' with clear action items.`

const dashboardPrompt = `You are building an executive dashboard from the research in '{{.CommDir}}/'. Include:
1. The ten key KPIs with status and trend.
2. The opportunity pipeline with sizes and probability-weighted projections.
3. Priorities for the next 30 days, 90 days and year.
4. A risk matrix with mitigations.

Save the dashboard to '{{.CommDir}}/EXECUTIVE_DASHBOARD.md'.`

const investigationPrompt = `Build a detailed investigative research report for @{{.DataSource}} and save it as research.md.

This is insurance agency data. Explain why some agencies succeed while others fail:
1. Identify the top 5 and bottom 5 agencies by loss ratio and premium volume
   (AGENCY_ID, WRTN_PREM_AMT, LOSS_RATIO, STATE_ABBR).
2. Contrast them: geography, product line specialisation, producer efficiency and agency size.
3. List 5 red flags for agency risk, 3 success factors for new agencies and the top 3 states for expansion.

Keep the analysis quick and statistical. Deliver a 5 point executive summary, the
top and bottom 5 agencies with reasons and 5 immediate action items.
Supporting outputs belong in '{{.CommDir}}'.`
