// Package server serves collected coverage reports and run history over HTTP.
//
// Routes:
//
//	GET /healthz                          liveness check
//	GET /api/packages                     packages with a report on disk
//	GET /api/runs?package=&limit=         run history, newest first
//	GET /reports/{package}/coverage.xml   the Cobertura report
//	GET /reports/{package}/*              the HTML report
package server

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/matzehuels/pyvalidate/pkg/buildinfo"
	"github.com/matzehuels/pyvalidate/pkg/coverage"
	"github.com/matzehuels/pyvalidate/pkg/errors"
	"github.com/matzehuels/pyvalidate/pkg/results"
)

const (
	defaultRunLimit = 50
	maxRunLimit     = 1000
	shutdownTimeout = 5 * time.Second
)

// Server exposes a report directory and a run history store.
type Server struct {
	reportsDir string
	store      results.Store
	logger     *log.Logger
	router     chi.Router
}

// New creates a Server for reports collected under reportsDir. A nil store
// serves an empty history; a nil logger uses log.Default().
func New(reportsDir string, store results.Store, logger *log.Logger) *Server {
	if store == nil {
		store = results.NewNullStore()
	}
	if logger == nil {
		logger = log.Default()
	}
	s := &Server{reportsDir: reportsDir, store: store, logger: logger}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/healthz", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Get("/packages", s.handlePackages)
		r.Get("/runs", s.handleRuns)
	})
	r.Route("/reports/{package}", func(r chi.Router) {
		r.Use(s.requirePackage)
		r.Get("/", s.handleHTML)
		r.Get("/coverage.xml", s.handleXML)
		r.Get("/*", s.handleHTML)
	})
	return r
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("serving reports", "addr", addr, "dir", s.reportsDir)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !stderrors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// =============================================================================
// Middleware
// =============================================================================

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start).Round(time.Microsecond),
			"request_id", middleware.GetReqID(r.Context()))
	})
}

// requirePackage rejects package names that are unsafe as path components.
func (s *Server) requirePackage(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := errors.ValidatePackageName(chi.URLParam(r, "package")); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// =============================================================================
// Handlers
// =============================================================================

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": buildinfo.Version})
}

// PackageReport describes the report collected for one package.
type PackageReport struct {
	Package    string    `json:"package"`
	ReportURL  string    `json:"report_url"`
	XMLURL     string    `json:"xml_url"`
	UpdatedAt  time.Time `json:"updated_at"`
	LineRate   *float64  `json:"line_rate,omitempty"`
	BranchRate *float64  `json:"branch_rate,omitempty"`
}

func (s *Server) handlePackages(w http.ResponseWriter, r *http.Request) {
	entries, err := os.ReadDir(s.reportsDir)
	if err != nil && !os.IsNotExist(err) {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	reports := []PackageReport{}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		xmlPath := filepath.Join(s.reportsDir, e.Name(), coverage.XMLFile)
		fi, err := os.Stat(xmlPath)
		if err != nil {
			continue
		}
		rep := PackageReport{
			Package:   e.Name(),
			ReportURL: "/reports/" + e.Name() + "/",
			XMLURL:    "/reports/" + e.Name() + "/" + coverage.XMLFile,
			UpdatedAt: fi.ModTime().UTC(),
		}
		if sum, err := coverage.ParseSummary(xmlPath); err == nil {
			rep.LineRate, rep.BranchRate = &sum.LineRate, &sum.BranchRate
		}
		reports = append(reports, rep)
	}
	sort.Slice(reports, func(i, j int) bool { return reports[i].Package < reports[j].Package })
	writeJSON(w, http.StatusOK, reports)
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	f := results.Filter{Package: r.URL.Query().Get("package"), Limit: defaultRunLimit}
	if f.Package != "" {
		if err := errors.ValidatePackageName(f.Package); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxRunLimit {
			writeError(w, http.StatusBadRequest, errors.New(errors.ErrCodeInvalidInput, "limit must be between 1 and %d", maxRunLimit))
			return
		}
		f.Limit = n
	}

	runs, err := s.store.List(r.Context(), f)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if runs == nil {
		runs = []results.Record{}
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *Server) handleXML(w http.ResponseWriter, r *http.Request) {
	path := filepath.Join(s.reportsDir, chi.URLParam(r, "package"), coverage.XMLFile)
	if _, err := os.Stat(path); err != nil {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/xml")
	http.ServeFile(w, r, path)
}

func (s *Server) handleHTML(w http.ResponseWriter, r *http.Request) {
	pkg := chi.URLParam(r, "package")
	dir := filepath.Join(s.reportsDir, pkg, coverage.HTMLDir)
	if fi, err := os.Stat(dir); err != nil || !fi.IsDir() {
		http.NotFound(w, r)
		return
	}
	http.StripPrefix("/reports/"+pkg, http.FileServer(http.Dir(dir))).ServeHTTP(w, r)
}

// =============================================================================
// Responses
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	body := map[string]string{"error": errors.UserMessage(err)}
	if code := errors.GetCode(err); code != "" {
		body["code"] = string(code)
	}
	writeJSON(w, status, body)
}
