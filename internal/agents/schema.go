package agents

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"agency-insights/internal/store"
	"agency-insights/pkg/interfaces"
)

// schemaColumnLimit caps the columns listed per table in the prompt
const schemaColumnLimit = 10

const schemaSystemPrompt = `Insurance agency performance analyst. The database holds agency-year records
(premium, losses, loss ratio, retention, growth, producers) by state, product line and vendor.
Provide quantitative insights with specific numbers.`

// DefaultSchemaObjective is used when no research objective is given
const DefaultSchemaObjective = `Analyze the insurance agency database:
1. Market structure by state, product line and vendor
2. Premium and loss ratio patterns
3. Agency retention and growth
4. Geographic variations
5. Strategic sales insights for the current market

Be concise but quantitative.`

const schemaPrompt = `Database: '{{.DataSource}}'
Database schema: {{.Schema}}

Task: {{.Objective}}`

// SchemaSource lists the tables of a database
type SchemaSource interface {
	Schema(ctx context.Context) ([]store.TableInfo, error)
}

// TableSummary is the prompt view of one table: columns as "name (TYPE)"
type TableSummary struct {
	Columns  []string `json:"columns"`
	RowCount int64    `json:"row_count"`
}

// SchemaResearch is the outcome of one database research run
type SchemaResearch struct {
	Objective  string                  `json:"research_objective"`
	Schema     map[string]TableSummary `json:"database_schema"`
	Report     string                  `json:"final_report,omitempty"`
	ReportFile string                  `json:"report_file,omitempty"`
	Timestamp  time.Time               `json:"timestamp"`
	Error      string                  `json:"error,omitempty"`
}

// SchemaResearcher sends a database schema and a research objective to an
// LLM and saves the report it returns
type SchemaResearcher struct {
	llm    interfaces.LLM
	logger zerolog.Logger
	now    func() time.Time
}

// NewSchemaResearcher creates a researcher on llm
func NewSchemaResearcher(llm interfaces.LLM, logger zerolog.Logger) *SchemaResearcher {
	return &SchemaResearcher{llm: llm, logger: logger.With().Str("component", "schema-researcher").Logger(), now: time.Now}
}

// SummarizeSchema turns table info into the prompt view
func SummarizeSchema(tables []store.TableInfo) map[string]TableSummary {
	out := make(map[string]TableSummary, len(tables))
	for _, t := range tables {
		n := len(t.Columns)
		if n > schemaColumnLimit {
			n = schemaColumnLimit
		}
		cols := make([]string, n)
		for i := 0; i < n; i++ {
			cols[i] = t.Columns[i]
			if i < len(t.Types) && t.Types[i] != "" {
				cols[i] += " (" + t.Types[i] + ")"
			}
		}
		out[t.Name] = TableSummary{Columns: cols, RowCount: t.RowCount}
	}
	return out
}

// Run researches the database described by src. An unreadable schema is an
// error; a failed model call is recorded in the result, which is always saved
// as JSON next to the report.
func (r *SchemaResearcher) Run(ctx context.Context, src SchemaSource, dbName, objective, outDir string) (*SchemaResearch, error) {
	if objective == "" {
		objective = DefaultSchemaObjective
	}
	tables, err := src.Schema(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read database schema: %w", err)
	}
	if len(tables) == 0 {
		return nil, errors.New("database has no tables")
	}

	res := &SchemaResearch{Objective: objective, Schema: SummarizeSchema(tables), Timestamp: r.now()}
	schemaJSON, err := json.Marshal(res.Schema)
	if err != nil {
		return nil, err
	}
	prompt, err := Render(schemaPrompt, PromptData{DataSource: dbName, Objective: objective, Schema: string(schemaJSON)})
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	r.logger.Info().Int("tables", len(tables)).Str("llm", r.llm.Name()).Msg("starting database research")
	system := schemaSystemPrompt
	report, err := r.llm.Invoke(ctx, prompt, &interfaces.LLMOptions{SystemPrompt: &system})
	stamp := res.Timestamp.Format("20060102_150405")
	if err != nil {
		res.Error = "research failed: " + err.Error()
		r.logger.Error().Err(err).Msg("database research failed")
	} else {
		res.Report = report
		res.ReportFile = filepath.Join(outDir, "sql_research_"+stamp+".md")
		if err := os.WriteFile(res.ReportFile, []byte(report), 0644); err != nil {
			return res, fmt.Errorf("failed to write report: %w", err)
		}
	}

	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return res, err
	}
	if err := os.WriteFile(filepath.Join(outDir, "sql_research_"+stamp+".json"), data, 0644); err != nil {
		return res, fmt.Errorf("failed to write results: %w", err)
	}
	r.logger.Info().Str("report", res.ReportFile).Msg("database research finished")
	return res, nil
}
