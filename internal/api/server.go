// Package api exposes resolution, suggestion, import validation, and match
// scoring over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sells-group/dealmatch/internal/config"
	"github.com/sells-group/dealmatch/internal/matching"
	"github.com/sells-group/dealmatch/internal/orchestrator"
	"github.com/sells-group/dealmatch/internal/store"
)

// RequestIDHeader carries the per-request id in both directions.
const RequestIDHeader = "X-Request-ID"

const requestTimeout = 30 * time.Second

type requestIDKey struct{}

// Deps are the services the handlers call.
type Deps struct {
	Store        store.Store
	Scorer       *matching.Scorer
	Orchestrator *orchestrator.Orchestrator
	Similarity   config.SimilarityConfig
}

// Server holds handler dependencies.
type Server struct {
	store        store.Store
	scorer       *matching.Scorer
	orchestrator *orchestrator.Orchestrator
	similarity   config.SimilarityConfig
}

// NewRouter builds the HTTP handler for the API.
func NewRouter(cfg config.ServerConfig, d Deps) http.Handler {
	s := &Server{
		store:        d.Store,
		scorer:       d.Scorer,
		orchestrator: d.Orchestrator,
		similarity:   d.Similarity,
	}
	if s.scorer == nil {
		s.scorer = matching.DefaultScorer()
	}

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(accessLog)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", RequestIDHeader},
		ExposedHeaders: []string{RequestIDHeader},
	}))

	r.Get("/health", s.handleHealth)

	r.Route("/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(requestTimeout))
			r.Post("/resolve", s.handleResolve)
			r.Post("/suggest", s.handleSuggest)
			r.Post("/import/validate", s.handleImportValidate)
			r.Post("/score", s.handleScore)
			r.Post("/catalogs/{catalog}/options", s.handleAddCatalogOption)
			r.Get("/matches", s.handleListMatches)
			r.Put("/matches/{investorID}/{targetID}/status", s.handleSetMatchStatus)
		})
		// Rescans are bounded by the client connection, not the request timeout.
		r.Post("/matches/rescan", s.handleRescan)
	})

	return r
}

// RequestID returns the id assigned to the request carrying ctx.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.New().String()
		}
		w.Header().Set(RequestIDHeader, id)
		ctx := context.WithValue(r.Context(), requestIDKey{}, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Debug("api: request",
			zap.String("request_id", RequestID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("api: encode response", zap.Error(err))
	}
}

type errorResponse struct {
	Error  string   `json:"error"`
	Fields []string `json:"fields,omitempty"`
}

func writeError(w http.ResponseWriter, status int, err error) {
	resp := errorResponse{Error: err.Error()}
	var ve *ValidationError
	if errors.As(err, &ve) {
		resp.Error = "validation failed"
		resp.Fields = ve.Fields
	}
	writeJSON(w, status, resp)
}

// writeStoreError maps store failures onto status codes.
func writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	zap.L().Error("api: store failure",
		zap.String("request_id", RequestID(r.Context())),
		zap.String("path", r.URL.Path),
		zap.Error(err),
	)
	writeError(w, http.StatusInternalServerError, errors.New("internal error"))
}
