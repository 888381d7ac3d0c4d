package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sia-group/procure-agent/internal/artifact"
	"github.com/sia-group/procure-agent/internal/model"
	"github.com/sia-group/procure-agent/internal/pipeline"
	"github.com/sia-group/procure-agent/internal/store"
)

var servePort int

// searchRequest is the POST /api/search payload.
type searchRequest struct {
	ProductName string   `json:"productName"`
	Country     string   `json:"country"`
	ResultCount int      `json:"resultCount"`
	Websites    []string `json:"websites"`
	Language    string   `json:"language"`
}

type searchResponse struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	ReportURL string `json:"report_url,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, searchResponse{Status: "error", Message: msg})
}

// newRouter builds the HTTP API around an initialized pipeline environment.
func newRouter(env *pipelineEnv) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/api/search", func(w http.ResponseWriter, req *http.Request) {
		var body searchRequest
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if body.ProductName == "" {
			writeError(w, http.StatusBadRequest, "productName is required")
			return
		}
		if body.Country == "" {
			writeError(w, http.StatusBadRequest, "country is required")
			return
		}
		if body.ResultCount <= 0 {
			writeError(w, http.StatusBadRequest, "resultCount is required")
			return
		}

		job := model.Job{
			ProductName: body.ProductName,
			Country:     body.Country,
			ResultCount: body.ResultCount,
			Websites:    body.Websites,
			Language:    body.Language,
		}

		result, err := env.Pipeline.Run(req.Context(), job)
		if err != nil {
			zap.L().Error("search request failed",
				zap.String("product", job.ProductName),
				zap.Error(err),
			)
			var verr *model.ValidationError
			if errors.As(err, &verr) {
				writeError(w, http.StatusBadRequest, verr.Error())
				return
			}
			if errors.Is(err, pipeline.ErrArtifactMissing) {
				writeError(w, http.StatusInternalServerError, "procurement report not found")
				return
			}
			writeError(w, http.StatusInternalServerError, "procurement research failed")
			return
		}

		writeJSON(w, http.StatusOK, searchResponse{
			Status:    "success",
			Message:   fmt.Sprintf("procurement report generated for %s", job.ProductName),
			ReportURL: result.ReportURL,
		})
	})

	r.Get("/api/jobs", func(w http.ResponseWriter, req *http.Request) {
		filter := store.JobFilter{
			Status:      model.JobStatus(req.URL.Query().Get("status")),
			ProductName: req.URL.Query().Get("product"),
		}
		records, err := env.Store.ListJobs(req.Context(), filter)
		if err != nil {
			zap.L().Error("list jobs failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to list jobs")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"jobs": records})
	})

	r.Get("/api/jobs/{jobID}", func(w http.ResponseWriter, req *http.Request) {
		record, err := env.Store.GetJob(req.Context(), chi.URLParam(req, "jobID"))
		if err != nil {
			if errors.Is(err, store.ErrJobNotFound) {
				writeError(w, http.StatusNotFound, "job not found")
				return
			}
			zap.L().Error("get job failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to load job")
			return
		}
		writeJSON(w, http.StatusOK, record)
	})

	r.Get("/reports/{jobID}/"+artifact.ReportFile, func(w http.ResponseWriter, req *http.Request) {
		jobID := chi.URLParam(req, "jobID")
		if !env.Artifacts.ReportExists(jobID) {
			writeError(w, http.StatusNotFound, "procurement report not found")
			return
		}
		http.ServeFile(w, req, env.Artifacts.ReportPath(jobID))
	})

	return r
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API for procurement research requests",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           newRouter(env),
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			_ = srv.Shutdown(cmd.Context())
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
