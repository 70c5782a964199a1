package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agency-insights/internal/agents"
	"agency-insights/internal/config"
	"agency-insights/internal/dataset/datasettest"
	"agency-insights/internal/jobs"
	"agency-insights/internal/llm"
)

const sampleReport = "# Findings\n\n| State | Premium |\n|---|---|\n| OH | 100 |\n"

type runnerFunc func(ctx context.Context, csvFile, outDir string) agents.ResearchResult

func (f runnerFunc) Run(ctx context.Context, csvFile, outDir string) agents.ResearchResult {
	return f(ctx, csvFile, outDir)
}

type fixture struct {
	srv  *Server
	http *httptest.Server
	jobs *jobs.Manager
	dir  string
}

func newFixture(t *testing.T, tweak func(*config.AppConfig)) *fixture {
	t.Helper()
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Server.UploadDir = dir
	cfg.Server.RateLimit = 0
	cfg.Output.Dir = filepath.Join(dir, "out")
	cfg.Dataset.Path = datasettest.WriteFile(t, dir, "finalapi.csv")
	cfg.LLM.APIKey = "test-key"
	if tweak != nil {
		tweak(cfg)
	}

	runner := runnerFunc(func(ctx context.Context, csvFile, outDir string) agents.ResearchResult {
		if err := os.MkdirAll(outDir, 0755); err != nil {
			return agents.ResearchResult{Error: err.Error()}
		}
		path := filepath.Join(outDir, agents.FileInvestigation)
		if err := os.WriteFile(path, []byte(sampleReport), 0644); err != nil {
			return agents.ResearchResult{Error: err.Error()}
		}
		return agents.ResearchResult{
			Success:   true,
			Timestamp: time.Now(),
			CSVFile:   csvFile,
			OutputDir: outDir,
			Report:    sampleReport,
			FilePath:  path,
		}
	})

	hub := NewHub(zerolog.Nop())
	manager := jobs.NewManager(runner, hub, jobs.Options{OutputRoot: cfg.Output.Dir, WatchDir: dir}, zerolog.Nop())
	t.Cleanup(manager.Close)

	srv := New(cfg, manager, hub, zerolog.Nop())
	srv.lookPath = func(string, string) (string, error) { return "/usr/local/bin/claude", nil }
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	return &fixture{srv: srv, http: ts, jobs: manager, dir: dir}
}

func (f *fixture) do(t *testing.T, method, path string, body io.Reader, contentType string) (*http.Response, APIResponse) {
	t.Helper()
	req, err := http.NewRequest(method, f.http.URL+path, body)
	require.NoError(t, err)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out APIResponse
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	}
	return resp, out
}

func dataMap(t *testing.T, r APIResponse) map[string]interface{} {
	t.Helper()
	m, ok := r.Data.(map[string]interface{})
	require.True(t, ok, "data is an object: %#v", r.Data)
	return m
}

func TestHealth(t *testing.T) {
	f := newFixture(t, nil)

	resp, body := f.do(t, "GET", "/health", nil, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, body.Success)
	data := dataMap(t, body)
	assert.Equal(t, "healthy", data["status"])
	assert.Equal(t, true, data["claude_cli_available"])
	assert.Equal(t, true, data["anthropic_api_key_set"])
}

func TestHealthResolvesCLIUnderPathPrefix(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("executable bit lookup is unix only")
	}
	binDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(binDir, "claude"), []byte("#!/bin/sh\n"), 0755))
	t.Setenv("PATH", "/nonexistent")

	tests := []struct {
		name   string
		prefix string
		want   bool
	}{
		{"found under prefix", binDir, true},
		{"not on PATH", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, func(cfg *config.AppConfig) {
				cfg.LLM.CLIPath = "claude"
				cfg.LLM.PathPrefix = tt.prefix
			})
			f.srv.lookPath = llm.LookPath

			_, body := f.do(t, "GET", "/health", nil, "")
			assert.Equal(t, tt.want, dataMap(t, body)["claude_cli_available"])
		})
	}
}

func TestIndexPage(t *testing.T) {
	f := newFixture(t, nil)

	resp, err := http.Get(f.http.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	page, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
	assert.Contains(t, string(page), "Insurance Agency Intelligence")
}

func TestAnalyzeLifecycle(t *testing.T) {
	f := newFixture(t, nil)

	resp, body := f.do(t, "POST", "/analyze/finalapi.csv", nil, "")
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	data := dataMap(t, body)
	id, _ := data["analysis_id"].(string)
	require.NotEmpty(t, id)
	assert.Equal(t, "/status/"+id, data["check_status_url"])

	f.jobs.Wait()

	resp, body = f.do(t, "GET", "/status/"+id, nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	status := dataMap(t, body)
	assert.Equal(t, string(jobs.StatusCompleted), status["status"])
	assert.Equal(t, true, status["results_available"])

	resp, body = f.do(t, "GET", "/results/"+id, nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, sampleReport, dataMap(t, body)["research_report"])

	htmlResp, err := http.Get(f.http.URL + "/results/" + id + "/markdown")
	require.NoError(t, err)
	defer htmlResp.Body.Close()
	page, err := io.ReadAll(htmlResp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, htmlResp.StatusCode)
	assert.Contains(t, string(page), "<table>")
	assert.Contains(t, string(page), "Findings")

	resp, body = f.do(t, "GET", "/analyses", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 1, dataMap(t, body)["count"])

	dl, err := http.Get(f.http.URL + "/download-markdown")
	require.NoError(t, err)
	defer dl.Body.Close()
	assert.Equal(t, http.StatusOK, dl.StatusCode)
	assert.Contains(t, dl.Header.Get("Content-Disposition"), "insurance_research_report.md")
}

func TestAnalyzeDefaultDataset(t *testing.T) {
	f := newFixture(t, nil)

	resp, body := f.do(t, "POST", "/analyze", nil, "")
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Contains(t, dataMap(t, body)["message"], "finalapi.csv")
	f.jobs.Wait()
}

func TestAnalyzeRejectsBadInput(t *testing.T) {
	f := newFixture(t, nil)

	resp, body := f.do(t, "POST", "/analyze/notes.txt", nil, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.False(t, body.Success)
	assert.Equal(t, "File must be a CSV file", body.Error)

	resp, _ = f.do(t, "POST", "/analyze/missing.csv", nil, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestUnknownAnalysis(t *testing.T) {
	f := newFixture(t, nil)

	for _, path := range []string{"/status/nope", "/results/nope", "/results/nope/markdown"} {
		resp, body := f.do(t, "GET", path, nil, "")
		assert.Equal(t, http.StatusNotFound, resp.StatusCode, path)
		assert.False(t, body.Success, path)
	}
}

func multipartBody(t *testing.T, field, name, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if field != "" {
		fw, err := mw.CreateFormFile(field, name)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestUpload(t *testing.T) {
	f := newFixture(t, nil)

	body, ct := multipartBody(t, "files", "agencies.csv", datasettest.SampleCSV)
	resp, out := f.do(t, "POST", "/upload", body, ct)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	data := dataMap(t, out)
	assert.Equal(t, "uploaded_agencies.csv", data["filename"])
	assert.Equal(t, "/analyze/uploaded_agencies.csv", data["analyze_url"])
	assert.FileExists(t, filepath.Join(f.dir, "uploaded_agencies.csv"))

	resp, out = f.do(t, "GET", "/list-files", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 2, dataMap(t, out)["count"])

	body, ct = multipartBody(t, "files", "notes.txt", "hello")
	resp, out = f.do(t, "POST", "/upload", body, ct)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Only CSV files are allowed", out.Error)

	body, ct = multipartBody(t, "", "", "")
	resp, out = f.do(t, "POST", "/upload", body, ct)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "No files provided", out.Error)
}

func TestDownload(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, os.MkdirAll(f.srv.cfg.Output.Dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(f.srv.cfg.Output.Dir, "performance_report.md"), []byte("# Performance"), 0644))

	resp, err := http.Get(f.http.URL + "/download/performance_report.md")
	require.NoError(t, err)
	defer resp.Body.Close()
	content, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "# Performance", string(content))
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/markdown")

	nf, _ := f.do(t, "GET", "/download/absent.md", nil, "")
	assert.Equal(t, http.StatusNotFound, nf.StatusCode)

	nf, _ = f.do(t, "GET", "/download-markdown", nil, "")
	assert.Equal(t, http.StatusNotFound, nf.StatusCode)
}

func TestResolveName(t *testing.T) {
	tests := []struct {
		name string
		ok   bool
	}{
		{"report.md", true},
		{"..", false},
		{".", false},
		{"", false},
		{"../secret", false},
		{`..\secret`, false},
		{"sub/file.md", false},
	}
	for _, tt := range tests {
		path, ok := resolveName("/data", tt.name)
		assert.Equal(t, tt.ok, ok, tt.name)
		if ok {
			assert.Equal(t, filepath.Join("/data", tt.name), path)
		}
	}
}

func TestDatasetViews(t *testing.T) {
	f := newFixture(t, nil)

	resp, body := f.do(t, "GET", "/api/v1/dataset/summary", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 12, dataMap(t, body)["rows"])

	for _, kind := range []string{"quality", "performance", "segments", "opportunities"} {
		resp, body := f.do(t, "GET", "/api/v1/dataset/"+kind, nil, "")
		assert.Equal(t, http.StatusOK, resp.StatusCode, kind)
		assert.True(t, body.Success, kind)
	}

	resp, _ = f.do(t, "GET", "/api/v1/dataset/unknown", nil, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDatasetMissingFile(t *testing.T) {
	f := newFixture(t, func(cfg *config.AppConfig) { cfg.Dataset.Path = "/nonexistent/data.csv" })

	resp, body := f.do(t, "GET", "/api/v1/dataset/summary", nil, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.False(t, body.Success)
}

func TestConfigIsSanitized(t *testing.T) {
	f := newFixture(t, nil)

	resp, err := http.Get(f.http.URL + "/api/v1/config")
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "test-key")
}

func TestGzipResponses(t *testing.T) {
	f := newFixture(t, nil)

	req, err := http.NewRequest("GET", f.http.URL+"/api/v1/dataset/quality", nil)
	require.NoError(t, err)
	req.Header.Set("Accept-Encoding", "gzip")
	resp, err := http.DefaultTransport.RoundTrip(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "gzip", resp.Header.Get("Content-Encoding"))
}

func TestCORSPreflight(t *testing.T) {
	f := newFixture(t, nil)

	resp, _ := f.do(t, "OPTIONS", "/upload", nil, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestRateLimit(t *testing.T) {
	f := newFixture(t, func(cfg *config.AppConfig) { cfg.Server.RateLimit = 1 })

	var codes []int
	for i := 0; i < 4; i++ {
		resp, _ := f.do(t, "GET", "/health", nil, "")
		codes = append(codes, resp.StatusCode)
	}
	assert.Equal(t, http.StatusOK, codes[0])
	assert.Contains(t, codes, http.StatusTooManyRequests)
}

func TestWebSocketEvents(t *testing.T) {
	f := newFixture(t, nil)
	f.srv.heartbeat = 100 * time.Millisecond

	url := "ws" + strings.TrimPrefix(f.http.URL, "http") + "/ws/pending"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return f.srv.hub.Count("pending") == 1 }, 2*time.Second, 10*time.Millisecond)

	f.srv.hub.Publish("pending", jobs.Event{Type: jobs.EventFileUpdate, Filename: "research.md", Content: "# Draft", Size: 7})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var ev jobs.Event
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, jobs.EventFileUpdate, ev.Type)
	assert.Equal(t, "# Draft", ev.Content)

	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, jobs.EventHeartbeat, ev.Type)

	conn.Close()
	assert.Eventually(t, func() bool { return f.srv.hub.Count("pending") == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestWebSocketInitialStatus(t *testing.T) {
	f := newFixture(t, nil)

	id, err := f.jobs.Start(f.srv.cfg.Dataset.Path)
	require.NoError(t, err)
	f.jobs.Wait()

	url := "ws" + strings.TrimPrefix(f.http.URL, "http") + "/ws/" + id
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var ev jobs.Event
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, jobs.EventStatusUpdate, ev.Type)
	assert.Equal(t, jobs.StatusCompleted, ev.Status)
	assert.Contains(t, ev.Message, id)
}

func TestNewFromConfigWithoutKey(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.LLM.APIKey = ""
	cfg.Server.UploadDir = dir
	cfg.Server.WatchFiles = nil
	cfg.Output.Dir = filepath.Join(dir, "out")
	path := datasettest.WriteFile(t, dir, "finalapi.csv")

	srv, err := NewFromConfig(cfg, zerolog.Nop())
	require.NoError(t, err)
	defer srv.Close()

	id, err := srv.jobs.Start(path)
	require.NoError(t, err)
	srv.jobs.Wait()

	job, err := srv.jobs.Status(id)
	require.NoError(t, err)
	assert.Equal(t, jobs.StatusFailed, job.Status)
	assert.Contains(t, job.Error, "api key")
}
