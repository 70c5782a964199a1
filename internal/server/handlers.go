package server

import (
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"agency-insights/internal/agents"
	"agency-insights/internal/analysis"
	"agency-insights/internal/jobs"
	"agency-insights/internal/report"
)

const multipartMemory = 32 << 20

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := io.WriteString(w, indexHTML); err != nil {
		s.logger.Error().Err(err).Msg("failed to write index page")
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	_, cliErr := s.lookPath(s.cfg.LLM.CLIPath, s.cfg.LLM.PathPrefix)
	s.writeData(w, http.StatusOK, map[string]interface{}{
		"status":                "healthy",
		"timestamp":             time.Now().Format(time.RFC3339),
		"llm_provider":          s.cfg.LLM.Provider,
		"claude_cli_available":  cliErr == nil,
		"anthropic_api_key_set": s.cfg.LLM.APIKey != "",
	})
}

func (s *Server) handleAnalyzeDefault(w http.ResponseWriter, r *http.Request) {
	s.startAnalysis(w, s.cfg.Dataset.Path, fmt.Sprintf("Analysis started for %s", filepath.Base(s.cfg.Dataset.Path)))
}

func (s *Server) handleAnalyzeFile(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["filename"]
	if !strings.HasSuffix(strings.ToLower(name), ".csv") {
		s.writeErrorResponse(w, http.StatusBadRequest, "File must be a CSV file")
		return
	}
	path, ok := resolveName(s.baseDir, name)
	if !ok {
		s.writeErrorResponse(w, http.StatusBadRequest, "Invalid file name")
		return
	}
	if _, err := os.Stat(path); err != nil {
		s.writeErrorResponse(w, http.StatusNotFound, fmt.Sprintf("CSV file %s not found", name))
		return
	}
	s.startAnalysis(w, path, fmt.Sprintf("Analysis started for %s", name))
}

func (s *Server) startAnalysis(w http.ResponseWriter, csvFile, message string) {
	id, err := s.jobs.Start(csvFile)
	if err != nil {
		s.writeErrorResponse(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	s.writeData(w, http.StatusAccepted, map[string]interface{}{
		"analysis_id":      id,
		"status":           "started",
		"message":          message,
		"check_status_url": "/status/" + id,
		"websocket_url":    "/ws/" + id,
	})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, int64(s.cfg.Server.MaxUploadMB)<<20)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, fmt.Sprintf("Invalid upload: %v", err))
		return
	}
	defer r.MultipartForm.RemoveAll() // nolint:errcheck

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		s.writeErrorResponse(w, http.StatusBadRequest, "No files provided")
		return
	}
	header := files[0]
	name := filepath.Base(header.Filename)
	if !strings.HasSuffix(strings.ToLower(name), ".csv") {
		s.writeErrorResponse(w, http.StatusBadRequest, "Only CSV files are allowed")
		return
	}

	src, err := header.Open()
	if err != nil {
		s.writeErrorResponse(w, http.StatusInternalServerError, fmt.Sprintf("Upload failed: %v", err))
		return
	}
	defer src.Close()

	saved := "uploaded_" + name
	dst, err := os.Create(filepath.Join(s.baseDir, saved))
	if err != nil {
		s.writeErrorResponse(w, http.StatusInternalServerError, fmt.Sprintf("Upload failed: %v", err))
		return
	}
	size, err := io.Copy(dst, src)
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		s.writeErrorResponse(w, http.StatusInternalServerError, fmt.Sprintf("Upload failed: %v", err))
		return
	}

	s.logger.Info().Str("file", saved).Int64("bytes", size).Msg("file uploaded")
	s.writeData(w, http.StatusOK, map[string]interface{}{
		"message":     fmt.Sprintf("File %s uploaded successfully", name),
		"filename":    saved,
		"size":        size,
		"analyze_url": "/analyze/" + saved,
	})
}

func (s *Server) handleListAnalyses(w http.ResponseWriter, r *http.Request) {
	list := s.jobs.List()
	s.writeData(w, http.StatusOK, map[string]interface{}{"analyses": list, "count": len(list)})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	job, err := s.jobs.Status(mux.Vars(r)["id"])
	if err != nil {
		s.writeErrorResponse(w, http.StatusNotFound, "Analysis ID not found")
		return
	}
	s.writeData(w, http.StatusOK, job)
}

func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	res, err := s.jobs.Result(mux.Vars(r)["id"])
	if err != nil {
		s.writeErrorResponse(w, http.StatusNotFound, "Analysis results not found")
		return
	}
	s.writeData(w, http.StatusOK, res)
}

func (s *Server) handleResultsMarkdown(w http.ResponseWriter, r *http.Request) {
	res, err := s.jobs.Result(mux.Vars(r)["id"])
	if err != nil {
		s.writeErrorResponse(w, http.StatusNotFound, "Analysis results not found")
		return
	}
	if !res.Success || res.Report == "" {
		s.writeErrorResponse(w, http.StatusNotFound, "Research report not available")
		return
	}

	src := fmt.Sprintf("*Generated: %s*\n\n*File: %s*\n\n%s", res.Timestamp.Format(time.RFC3339), res.CSVFile, res.Report)
	page, err := report.RenderHTML("CSV Analysis Report", src)
	if err != nil {
		s.writeErrorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := io.WriteString(w, page); err != nil {
		s.logger.Error().Err(err).Msg("failed to write report page")
	}
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["filename"]
	for _, dir := range []string{s.baseDir, s.cfg.Output.Dir} {
		path, ok := resolveName(dir, name)
		if !ok {
			s.writeErrorResponse(w, http.StatusBadRequest, "Invalid file name")
			return
		}
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			s.serveAttachment(w, r, path, name)
			return
		}
	}
	s.writeErrorResponse(w, http.StatusNotFound, "File not found")
}

// handleDownloadMarkdown serves research.md from the working directory, or
// the newest report moved into an analysis output directory
func (s *Server) handleDownloadMarkdown(w http.ResponseWriter, r *http.Request) {
	const downloadName = "insurance_research_report.md"
	path := filepath.Join(s.baseDir, agents.FileInvestigation)
	if _, err := os.Stat(path); err == nil {
		s.serveAttachment(w, r, path, downloadName)
		return
	}
	for _, job := range s.jobs.List() {
		if job.Status != jobs.StatusCompleted {
			continue
		}
		res, err := s.jobs.Result(job.ID)
		if err != nil || res.FilePath == "" {
			continue
		}
		if _, err := os.Stat(res.FilePath); err == nil {
			s.serveAttachment(w, r, res.FilePath, downloadName)
			return
		}
	}
	s.writeErrorResponse(w, http.StatusNotFound, "Research report not found")
}

func (s *Server) serveAttachment(w http.ResponseWriter, r *http.Request, path, name string) {
	if strings.HasSuffix(name, ".md") {
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	http.ServeFile(w, r, path)
}

type fileInfo struct {
	Filename string    `json:"filename"`
	Size     int64     `json:"size"`
	SizeMB   float64   `json:"size_mb"`
	Modified time.Time `json:"modified"`
}

func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		s.writeErrorResponse(w, http.StatusInternalServerError, fmt.Sprintf("Failed to list files: %v", err))
		return
	}
	files := []fileInfo{}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".csv") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, fileInfo{
			Filename: e.Name(),
			Size:     info.Size(),
			SizeMB:   math.Round(float64(info.Size())/1024/1024*100) / 100,
			Modified: info.ModTime(),
		})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Filename < files[j].Filename })
	s.writeData(w, http.StatusOK, map[string]interface{}{"csv_files": files, "count": len(files)})
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Str("analysis_id", id).Msg("websocket upgrade failed")
		return
	}
	c := &client{conn: conn}
	s.hub.add(id, c)
	defer func() {
		s.hub.remove(id, c)
		conn.Close()
	}()

	if job, err := s.jobs.Status(id); err == nil {
		if err := c.send(jobs.Event{
			Type:      jobs.EventStatusUpdate,
			Status:    job.Status,
			Message:   "Connected to analysis " + id,
			Timestamp: time.Now(),
		}); err != nil {
			return
		}
	}

	received := make(chan struct{}, 1)
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
			select {
			case received <- struct{}{}:
			default:
			}
		}
	}()

	// heartbeat after every quiet period
	timer := time.NewTimer(s.heartbeat)
	defer timer.Stop()
	for {
		select {
		case <-closed:
			return
		case <-received:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(s.heartbeat)
		case <-timer.C:
			if err := c.send(jobs.Event{Type: jobs.EventHeartbeat, Timestamp: time.Now()}); err != nil {
				return
			}
			timer.Reset(s.heartbeat)
		}
	}
}

var datasetViews = map[string]func(*analysis.Results) interface{}{
	"summary":       func(r *analysis.Results) interface{} { return r.Structure },
	"quality":       func(r *analysis.Results) interface{} { return r.Quality },
	"performance":   func(r *analysis.Results) interface{} { return r.Performance },
	"segments":      func(r *analysis.Results) interface{} { return r.Segmentation },
	"opportunities": func(r *analysis.Results) interface{} { return r.Opportunities },
}

func (s *Server) handleDataset(w http.ResponseWriter, r *http.Request) {
	kind := mux.Vars(r)["kind"]
	view, ok := datasetViews[kind]
	if !ok {
		s.writeErrorResponse(w, http.StatusNotFound, fmt.Sprintf("unknown dataset view %q", kind))
		return
	}

	results, err := s.data.get(r.Context())
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, os.ErrNotExist) {
			status = http.StatusNotFound
		}
		s.writeErrorResponse(w, status, err.Error())
		return
	}
	s.writeData(w, http.StatusOK, view(results))
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	s.writeData(w, http.StatusOK, s.cfg.Sanitized())
}

// resolve joins a single file name onto dir, refusing anything that could
// leave it
func resolveName(dir, name string) (string, bool) {
	if name == "" || name != filepath.Base(name) || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", false
	}
	return filepath.Join(dir, name), true
}
