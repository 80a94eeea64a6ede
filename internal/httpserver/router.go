// Package httpserver exposes the analyzer over HTTP.
package httpserver

import (
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/KaramelBytes/dataprofiler/internal/insight"
	"github.com/KaramelBytes/dataprofiler/internal/recommend"
	"github.com/KaramelBytes/dataprofiler/internal/report"
	"github.com/KaramelBytes/dataprofiler/internal/service"
)

// Options configures the router.
type Options struct {
	AllowedOrigins []string
	// MaxUploadBytes caps the request body of POST /upload; 0 means 100 MiB.
	MaxUploadBytes int64
	Version        string
	Logger         *zap.Logger
}

const defaultMaxUpload = 100 << 20

// errBadRequest marks malformed requests that never reached the analyzer.
var errBadRequest = errors.New("bad request")

type Router struct {
	svc    *service.Analyzer
	opts   Options
	logger *zap.Logger
}

// NewRouter builds the chi handler tree.
func NewRouter(svc *service.Analyzer, opts Options) http.Handler {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = defaultMaxUpload
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Router{svc: svc, opts: opts, logger: logger}

	mux := chi.NewRouter()
	mux.Use(middleware.RequestID)
	mux.Use(RequestLogger(opts.Logger))
	mux.Use(middleware.Recoverer)
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	mux.Get("/", r.wrap(r.handleRoot))
	mux.Get("/health", r.wrap(r.handleHealth))
	mux.Post("/upload", r.wrap(r.handleUpload))
	mux.Get("/report/{id}", r.wrap(r.handleReport))
	mux.Delete("/report/{id}", r.wrap(r.handleDelete))
	mux.Get("/insights/{id}", r.wrap(r.handleInsights))
	mux.Get("/reports", r.wrap(r.handleList))

	return mux
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		err := h(w, req)
		if err == nil {
			return
		}
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			_ = ErrorResponse(w, http.StatusRequestEntityTooLarge, "payload_too_large",
				fmt.Sprintf("Upload exceeds %d bytes", maxErr.Limit))
		case errors.Is(err, report.ErrNotFound):
			_ = ErrorResponse(w, http.StatusNotFound, "not_found", "Report not found")
		case errors.Is(err, errBadRequest), service.IsInputError(err):
			_ = ErrorResponse(w, http.StatusBadRequest, "bad_request", err.Error())
		default:
			r.logger.Error("request failed", zap.String("path", req.URL.Path), zap.Error(err))
			_ = ErrorResponse(w, http.StatusInternalServerError, "internal_error", "Error processing file: "+err.Error())
		}
	}
}

// GET /
func (r *Router) handleRoot(w http.ResponseWriter, _ *http.Request) error {
	return WriteJSON(w, http.StatusOK, map[string]any{
		"message": "Data Profiling API",
		"version": r.opts.Version,
		"endpoints": map[string]string{
			"/upload":               "POST - Upload a CSV or Excel file for profiling",
			"/report/{report_id}":   "GET - Retrieve HTML report; DELETE - Remove it",
			"/insights/{report_id}": "GET - Get insights and recommendations",
			"/reports":              "GET - List available reports",
			"/health":               "GET - Liveness probe",
		},
	})
}

// GET /health
func (r *Router) handleHealth(w http.ResponseWriter, _ *http.Request) error {
	return WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type uploadResponse struct {
	ReportID        string                     `json:"report_id"`
	Filename        string                     `json:"filename"`
	Insights        insight.Summary            `json:"insights"`
	Recommendations []recommend.Recommendation `json:"recommendations"`
	Message         string                     `json:"message"`
	ArtifactURL     string                     `json:"artifact_url,omitempty"`
}

// POST /upload (multipart field "file")
func (r *Router) handleUpload(w http.ResponseWriter, req *http.Request) error {
	if req.ContentLength > r.opts.MaxUploadBytes {
		return &http.MaxBytesError{Limit: r.opts.MaxUploadBytes}
	}
	req.Body = http.MaxBytesReader(w, req.Body, r.opts.MaxUploadBytes)
	file, hdr, err := req.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return err
		}
		return fmt.Errorf("%w: multipart field \"file\" is required", errBadRequest)
	}
	defer file.Close()

	name := filepath.Base(hdr.Filename)
	rec, err := r.svc.Analyze(req.Context(), name, file)
	if err != nil {
		return err
	}
	return WriteJSON(w, http.StatusOK, uploadResponse{
		ReportID:        rec.ID,
		Filename:        rec.Filename,
		Insights:        rec.Summary,
		Recommendations: rec.Recommendations,
		Message:         "File processed successfully",
		ArtifactURL:     rec.ArtifactURL,
	})
}

// GET /report/{id}
func (r *Router) handleReport(w http.ResponseWriter, req *http.Request) error {
	rec, err := r.svc.Get(req.Context(), chi.URLParam(req, "id"))
	if err != nil {
		return err
	}
	if len(rec.HTML) == 0 && rec.ArtifactURL != "" {
		http.Redirect(w, req, rec.ArtifactURL, http.StatusFound)
		return nil
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, err = w.Write(rec.HTML)
	return err
}

// GET /insights/{id}
func (r *Router) handleInsights(w http.ResponseWriter, req *http.Request) error {
	rec, err := r.svc.Get(req.Context(), chi.URLParam(req, "id"))
	if err != nil {
		return err
	}
	return WriteJSON(w, http.StatusOK, map[string]any{
		"insights":        rec.Summary,
		"recommendations": rec.Recommendations,
		"filename":        rec.Filename,
		"created_at":      rec.CreatedAt.Format(time.RFC3339Nano),
	})
}

// DELETE /report/{id}
func (r *Router) handleDelete(w http.ResponseWriter, req *http.Request) error {
	if err := r.svc.Delete(req.Context(), chi.URLParam(req, "id")); err != nil {
		return err
	}
	return WriteJSON(w, http.StatusOK, map[string]string{"message": "Report deleted successfully"})
}

type reportEntry struct {
	ReportID  string `json:"report_id"`
	Filename  string `json:"filename"`
	CreatedAt string `json:"created_at"`
}

// GET /reports
func (r *Router) handleList(w http.ResponseWriter, req *http.Request) error {
	recs, err := r.svc.List(req.Context())
	if err != nil {
		return err
	}
	out := make([]reportEntry, 0, len(recs))
	for _, rec := range recs {
		out = append(out, reportEntry{
			ReportID:  rec.ID,
			Filename:  rec.Filename,
			CreatedAt: rec.CreatedAt.Format(time.RFC3339Nano),
		})
	}
	return WriteJSON(w, http.StatusOK, map[string]any{"reports": out})
}
