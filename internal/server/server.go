// Package server exposes the recommender over HTTP.
package server

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/Pranabbh09/SHL-Recommendation-Engine-Backend/internal/engine"
	"github.com/Pranabbh09/SHL-Recommendation-Engine-Backend/internal/recommend"
)

// Service is the part of the engine used by the handlers.
type Service interface {
	Recommend(ctx context.Context, query string) (*recommend.Result, error)
	Reindex(ctx context.Context) error
	Status() engine.Status
}

// New returns an http.Server serving the API on addr. Background work such
// as reindexing is bound to base.
func New(base context.Context, addr string, svc Service, logger *zap.Logger) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           NewHandler(base, svc, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// NewHandler builds the routed and wrapped API handler.
func NewHandler(base context.Context, svc Service, logger *zap.Logger) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := NewHandlers(base, svc, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", h.HandleHealth)
	mux.HandleFunc("POST /recommend", h.HandleRecommend)
	mux.HandleFunc("GET /status", h.HandleStatus)
	mux.HandleFunc("POST /reindex", h.HandleReindex)
	mux.HandleFunc("GET /{$}", h.HandleRoot)

	return withRequestID(withAccessLog(logger, withCORS(mux)))
}
