package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/IshaanNene/wxscrape/internal/config"
	"github.com/IshaanNene/wxscrape/internal/observability"
	"github.com/IshaanNene/wxscrape/internal/storage"
	"github.com/IshaanNene/wxscrape/internal/types"
)

// Runner executes one scrape run.
type Runner interface {
	Run(ctx context.Context, req types.SearchRequest) (*types.RunResult, error)
}

// Run is a finished scrape kept in memory for download.
type Run struct {
	ID           string                `json:"id"`
	Keyword      string                `json:"keyword"`
	NumPages     int                   `json:"num_pages"`
	FileName     string                `json:"file_name"`
	DownloadURL  string                `json:"download_url"`
	RecordCount  int                   `json:"record_count"`
	PagesFetched int                   `json:"pages_fetched"`
	StoppedEarly bool                  `json:"stopped_early"`
	StopReason   string                `json:"stop_reason,omitempty"`
	Progress     []string              `json:"progress,omitempty"`
	Records      []types.ArticleRecord `json:"records,omitempty"`
	CreatedAt    time.Time             `json:"created_at"`

	file []byte
	seq  int
}

// Server is the web front end: a keyword form, a run endpoint and file downloads.
type Server struct {
	mux      *http.ServeMux
	srv      *http.Server
	cfg      *config.Config
	runner   Runner
	exporter storage.Exporter
	metrics  *observability.Metrics
	logger   *slog.Logger

	// runs are serialised; browser-backed fetchers hold one tab
	runMu sync.Mutex

	runs   map[string]*Run
	runsMu sync.RWMutex
	seq    int
}

// NewServer creates a server bound to cfg.Server.Addr.
func NewServer(cfg *config.Config, runner Runner, exporter storage.Exporter, metrics *observability.Metrics, logger *slog.Logger) *Server {
	if metrics == nil {
		metrics = observability.NewMetrics(logger)
	}
	s := &Server{
		mux:      http.NewServeMux(),
		cfg:      cfg,
		runner:   runner,
		exporter: exporter,
		metrics:  metrics,
		logger:   logger.With("component", "api_server"),
		runs:     make(map[string]*Run),
	}
	s.registerRoutes()
	s.srv = &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler exposes the routes, mainly for tests.
func (s *Server) Handler() http.Handler { return s.mux }

// ListenAndServe serves until Shutdown is called.
func (s *Server) ListenAndServe() error {
	s.logger.Info("server starting", "addr", s.srv.Addr)
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /{$}", s.handleIndex)
	s.mux.HandleFunc("GET /api/health", s.handleHealth)
	s.mux.HandleFunc("GET /api/stats", s.handleStats)

	s.mux.HandleFunc("POST /api/runs", s.handleCreateRun)
	s.mux.HandleFunc("GET /api/runs", s.handleListRuns)
	s.mux.HandleFunc("GET /api/runs/{id}", s.handleGetRun)
	s.mux.HandleFunc("GET /api/runs/{id}/download", s.handleDownload)

	if s.cfg.Metrics.Enabled {
		s.mux.Handle("GET "+s.cfg.Metrics.Path, s.metrics)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": config.Version,
	})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	err := indexTemplate.Execute(w, indexData{
		Keyword:  s.cfg.Search.DefaultKeyword,
		MaxPages: s.cfg.Search.MaxPages,
		Version:  config.Version,
	})
	if err != nil {
		s.logger.Error("render index", "error", err)
	}
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats := map[string]any{
		"timestamp": time.Now().Format(time.RFC3339),
	}
	for k, v := range s.metrics.Snapshot() {
		stats[k] = v
	}
	s.runsMu.RLock()
	stats["runs_stored"] = len(s.runs)
	s.runsMu.RUnlock()
	s.jsonResponse(w, http.StatusOK, stats)
}

func (s *Server) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	req, err := s.decodeRequest(r)
	if err != nil {
		s.jsonResponse(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	s.runMu.Lock()
	result, err := s.runner.Run(r.Context(), req)
	s.runMu.Unlock()
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, types.ErrInvalidRequest) {
			status = http.StatusBadRequest
		}
		s.jsonResponse(w, status, map[string]string{"error": err.Error()})
		return
	}

	buf, err := s.exporter.Export(result.Records)
	s.metrics.ExportsTotal.Add(1)
	if err != nil {
		s.metrics.ExportsFailed.Add(1)
		s.logger.Error("export failed", "keyword", req.Keyword, "error", err)
		s.jsonResponse(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	run := s.store(result, buf.Bytes())
	s.logger.Info("run stored", "id", run.ID, "records", run.RecordCount, "file", run.FileName)
	s.jsonResponse(w, http.StatusCreated, run)
}

// decodeRequest accepts either a JSON body or an HTML form post.
func (s *Server) decodeRequest(r *http.Request) (types.SearchRequest, error) {
	var req types.SearchRequest
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct == "application/json" {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return req, fmt.Errorf("invalid JSON: %w", err)
		}
	} else {
		if err := r.ParseForm(); err != nil {
			return req, fmt.Errorf("invalid form: %w", err)
		}
		req.Keyword = r.PostForm.Get("keyword")
		if v := r.PostForm.Get("num_pages"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return req, fmt.Errorf("%w: num_pages %q is not a number", types.ErrInvalidRequest, v)
			}
			req.NumPages = n
		}
	}
	req.Keyword = strings.TrimSpace(req.Keyword)
	if req.NumPages == 0 {
		req.NumPages = 1
	}
	return req, req.Validate(s.cfg.Search.MaxPages)
}

func (s *Server) store(result *types.RunResult, file []byte) *Run {
	s.runsMu.Lock()
	defer s.runsMu.Unlock()

	s.seq++
	id := fmt.Sprintf("run-%d", s.seq)
	run := &Run{
		ID:           id,
		Keyword:      result.Request.Keyword,
		NumPages:     result.Request.NumPages,
		FileName:     storage.FileName(s.cfg.Search.Label, result.Request.Keyword, s.exporter.Extension(), result.FinishedAt),
		DownloadURL:  "/api/runs/" + id + "/download",
		RecordCount:  len(result.Records),
		PagesFetched: result.PagesFetched,
		StoppedEarly: result.StoppedEarly,
		StopReason:   result.StopReason,
		Progress:     result.Progress,
		Records:      result.Records,
		CreatedAt:    result.FinishedAt,
		file:         file,
		seq:          s.seq,
	}
	s.runs[id] = run
	s.evict()
	return run
}

// evict drops the oldest runs beyond server.max_runs. Callers hold runsMu.
func (s *Server) evict() {
	for len(s.runs) > s.cfg.Server.MaxRuns {
		var oldest *Run
		for _, r := range s.runs {
			if oldest == nil || r.seq < oldest.seq {
				oldest = r
			}
		}
		delete(s.runs, oldest.ID)
		s.logger.Debug("run evicted", "id", oldest.ID)
	}
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	s.runsMu.RLock()
	runs := make([]Run, 0, len(s.runs))
	for _, run := range s.runs {
		summary := *run
		summary.Progress = nil
		summary.Records = nil
		runs = append(runs, summary)
	}
	s.runsMu.RUnlock()

	sort.Slice(runs, func(i, j int) bool { return runs[i].seq > runs[j].seq })
	s.jsonResponse(w, http.StatusOK, runs)
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*Run, bool) {
	id := r.PathValue("id")
	s.runsMu.RLock()
	run, ok := s.runs[id]
	s.runsMu.RUnlock()
	if !ok {
		s.jsonResponse(w, http.StatusNotFound, map[string]string{"error": "run not found"})
	}
	return run, ok
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	if run, ok := s.lookup(w, r); ok {
		s.jsonResponse(w, http.StatusOK, run)
	}
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	run, ok := s.lookup(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", s.exporter.ContentType())
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": run.FileName}))
	w.Header().Set("Content-Length", strconv.Itoa(len(run.file)))
	w.WriteHeader(http.StatusOK)
	w.Write(run.file)
}

func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
