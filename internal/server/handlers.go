package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Pranabbh09/SHL-Recommendation-Engine-Backend/internal/catalog"
	"github.com/Pranabbh09/SHL-Recommendation-Engine-Backend/internal/engine"
	"github.com/Pranabbh09/SHL-Recommendation-Engine-Backend/internal/recommend"
)

const maxBodyBytes = 1 << 20

type Handlers struct {
	base   context.Context
	svc    Service
	logger *zap.Logger
}

func NewHandlers(base context.Context, svc Service, logger *zap.Logger) *Handlers {
	if base == nil {
		base = context.Background()
	}
	return &Handlers{base: base, svc: svc, logger: logger}
}

type recommendRequest struct {
	Query string `json:"query"`
}

type assessment struct {
	URL             string   `json:"url"`
	Name            string   `json:"name"`
	AdaptiveSupport string   `json:"adaptive_support"`
	Description     string   `json:"description"`
	Duration        int      `json:"duration"`
	RemoteSupport   string   `json:"remote_support"`
	TestType        []string `json:"test_type"`
}

type recommendResponse struct {
	RecommendedAssessments []assessment `json:"recommended_assessments"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

func toAssessment(r *catalog.Record) assessment {
	return assessment{
		URL:             r.URL,
		Name:            r.Name,
		AdaptiveSupport: r.AdaptiveSupport,
		Description:     r.Description,
		Duration:        r.DurationMinutes,
		RemoteSupport:   r.RemoteSupport,
		TestType:        r.TestType,
	}
}

func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": float64(time.Now().UnixNano()) / float64(time.Second),
	})
}

func (h *Handlers) HandleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"service": "assessment-recommender",
		"endpoints": map[string]string{
			"health":    "GET /health",
			"recommend": "POST /recommend",
			"status":    "GET /status",
			"reindex":   "POST /reindex",
		},
	})
}

func (h *Handlers) HandleRecommend(w http.ResponseWriter, r *http.Request) {
	var req recommendRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Detail: "Invalid request body"})
		return
	}

	if strings.TrimSpace(req.Query) == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Detail: "Query cannot be empty"})
		return
	}

	result, err := h.svc.Recommend(r.Context(), req.Query)
	switch {
	case errors.Is(err, recommend.ErrEmptyQuery):
		writeJSON(w, http.StatusBadRequest, errorResponse{Detail: "Query cannot be empty"})
		return
	case errors.Is(err, engine.ErrNotReady):
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Detail: "Service is warming up"})
		return
	case err != nil:
		h.logger.Error("Recommendation failed", zap.String("request_id", RequestID(r.Context())), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Detail: "Internal error: " + err.Error()})
		return
	}

	resp := recommendResponse{RecommendedAssessments: make([]assessment, 0, len(result.Assessments))}
	for _, record := range result.Assessments {
		resp.RecommendedAssessments = append(resp.RecommendedAssessments, toAssessment(record))
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Status())
}

func (h *Handlers) HandleReindex(w http.ResponseWriter, r *http.Request) {
	status := h.svc.Status()
	if status.State != engine.StateReady {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Detail: "Service is not ready"})
		return
	}
	if status.Reindexing {
		writeJSON(w, http.StatusConflict, errorResponse{Detail: "Reindex already running"})
		return
	}

	go func() {
		if err := h.svc.Reindex(h.base); err != nil {
			h.logger.Warn("Background reindex failed", zap.Error(err))
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "reindex started"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
