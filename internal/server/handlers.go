package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/rxflow/substitute-gateway/internal/catalog"
	"github.com/rxflow/substitute-gateway/internal/observability"
	"github.com/rxflow/substitute-gateway/internal/pipeline"
)

const (
	serviceName    = "substitute-gateway"
	serviceVersion = "1.0.0"
)

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"service":   serviceName,
		"version":   serviceVersion,
		"status":    "operational",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"endpoints": map[string]string{
			"health":                "GET /health",
			"add_product":           "POST /api/v1/products",
			"bulk_add_products":     "POST /api/v1/products/bulk",
			"get_recommendations":   "POST /api/v1/recommendations",
			"observability_summary": "GET /api/v1/observability/summary",
			"recent_metrics":        "GET /api/v1/observability/metrics/recent",
			"drift_alerts":          "GET /api/v1/observability/drift/alerts",
			"drift_history":         "GET /api/v1/observability/drift/history",
			"recent_analyses":       "GET /api/v1/observability/analyses/recent",
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"service":   serviceName,
	})
}

type productRequest struct {
	Description     string `json:"product_description"`
	SKU             string `json:"sku"`
	ATCCode         string `json:"atc_code"`
	ColdChain       bool   `json:"cold_chain"`
	ShelfLifeMonths int    `json:"shelf_life_months"`
}

type productResponse struct {
	Success      bool   `json:"success"`
	Message      string `json:"message"`
	SKU          string `json:"sku,omitempty"`
	ProductCount int    `json:"product_count,omitempty"`
}

func (s *Server) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.SKU == "" || req.Description == "" {
		writeError(w, http.StatusBadRequest, "sku and product_description are required")
		return
	}
	if req.ShelfLifeMonths <= 0 {
		req.ShelfLifeMonths = 24
	}

	s.catalog.Add(catalog.Product{
		SKU:             req.SKU,
		Description:     req.Description,
		ATC:             req.ATCCode,
		ColdChain:       req.ColdChain,
		ShelfLifeMonths: req.ShelfLifeMonths,
	})
	AddLogField(r.Context(), "sku", req.SKU)

	writeJSON(w, http.StatusCreated, productResponse{
		Success: true,
		Message: fmt.Sprintf("Product %s successfully added to catalog", req.SKU),
		SKU:     req.SKU,
	})
}

type bulkProductEntry struct {
	Description     string `json:"description"`
	SKU             string `json:"sku"`
	ATC             string `json:"atc"`
	ColdChain       bool   `json:"cold_chain"`
	ShelfLifeMonths int    `json:"shelf_life_months"`
}

type bulkProductRequest struct {
	Products []bulkProductEntry `json:"products"`
}

func (s *Server) handleBulkCreateProducts(w http.ResponseWriter, r *http.Request) {
	var req bulkProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if len(req.Products) == 0 {
		writeError(w, http.StatusBadRequest, "products list is empty")
		return
	}

	products := make([]catalog.Product, 0, len(req.Products))
	for i, p := range req.Products {
		if p.SKU == "" || p.Description == "" {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("product %d: sku and description are required", i))
			return
		}
		shelfLife := p.ShelfLifeMonths
		if shelfLife <= 0 {
			shelfLife = 24
		}
		products = append(products, catalog.Product{
			SKU:             p.SKU,
			Description:     p.Description,
			ATC:             p.ATC,
			ColdChain:       p.ColdChain,
			ShelfLifeMonths: shelfLife,
		})
	}
	s.catalog.BulkAdd(products)

	writeJSON(w, http.StatusCreated, productResponse{
		Success:      true,
		Message:      fmt.Sprintf("%d products successfully added to catalog", len(products)),
		ProductCount: len(products),
	})
}

type recommendationRequest struct {
	RequestedItem string `json:"requested_item"`
	Country       string `json:"country"`
	Quantity      int    `json:"quantity"`
	Urgency       string `json:"urgency"`
}

type recommendationResponse struct {
	Success              bool                  `json:"success"`
	RequestedItem        string                `json:"requested_item"`
	Country              string                `json:"country"`
	Quantity             int                   `json:"quantity"`
	Urgency              string                `json:"urgency"`
	Strategy             string                `json:"strategy"`
	Recommendations      []pipeline.Candidate  `json:"recommendations"`
	SuggestedAction      string                `json:"suggested_action"`
	FinalReport          string                `json:"final_report"`
	CoordinatorSynthesis string                `json:"coordinator_synthesis,omitempty"`
	Observability        *observability.Result `json:"observability,omitempty"`
}

var validUrgencies = map[string]bool{"low": true, "medium": true, "high": true, "critical": true}

func (s *Server) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	var req recommendationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.RequestedItem == "" || req.Country == "" {
		writeError(w, http.StatusBadRequest, "requested_item and country are required")
		return
	}
	if req.Quantity <= 0 {
		req.Quantity = 100
	}
	if req.Urgency == "" {
		req.Urgency = "medium"
	}
	if !validUrgencies[req.Urgency] {
		writeError(w, http.StatusBadRequest, "invalid urgency level, must be one of: low, medium, high, critical")
		return
	}

	session, err := s.tracker.StartRequest(req.RequestedItem, req.Country, req.Urgency)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to start request tracking: "+err.Error())
		return
	}
	AddLogField(r.Context(), "pipeline_request_id", session.RequestID())

	st, runErr := s.pipeline.Run(r.Context(), session, pipeline.Request{
		RequestedItem: req.RequestedItem,
		Country:       req.Country,
		Quantity:      req.Quantity,
		Urgency:       req.Urgency,
	})

	// The request is finalized even when a step failed so the failure is
	// visible in metrics and drift history.
	result, finErr := session.Finalize(r.Context(), st.Strategy, len(st.Recommendations), runErr == nil)
	if finErr != nil {
		s.logger.Error("failed to finalize request tracking", "error", finErr)
	}

	if runErr != nil {
		AddError(r.Context(), runErr)
		writeError(w, http.StatusInternalServerError, "recommendation system error: "+runErr.Error())
		return
	}

	resp := recommendationResponse{
		Success:              true,
		RequestedItem:        req.RequestedItem,
		Country:              req.Country,
		Quantity:             req.Quantity,
		Urgency:              req.Urgency,
		Strategy:             st.Strategy,
		Recommendations:      st.Recommendations,
		SuggestedAction:      st.SuggestedAction,
		FinalReport:          st.FinalReport,
		CoordinatorSynthesis: st.CoordinatorSynthesis,
	}
	if finErr == nil {
		resp.Observability = &result
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	hours := queryInt(r, "hours", 24)
	writeJSON(w, http.StatusOK, s.store.GetSummary(hours))
}

func (s *Server) handleRecentMetrics(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	metrics := s.store.GetRecentMetrics(limit)
	writeJSON(w, http.StatusOK, map[string]any{
		"count":   len(metrics),
		"metrics": metrics,
	})
}

func (s *Server) handleMetricsByID(w http.ResponseWriter, r *http.Request) {
	requestID := chi.URLParam(r, "request_id")
	m, ok := s.store.GetMetricsByRequestID(requestID)
	if !ok {
		writeError(w, http.StatusNotFound, "no metrics found for request ID: "+requestID)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleDriftAlerts(w http.ResponseWriter, r *http.Request) {
	alerts := s.tracker.DriftAlerts()
	writeJSON(w, http.StatusOK, map[string]any{
		"count":  len(alerts),
		"alerts": alerts,
	})
}

func (s *Server) handleDriftHistory(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 20)
	history := s.store.GetDriftHistory(limit)
	writeJSON(w, http.StatusOK, map[string]any{
		"count":   len(history),
		"history": history,
	})
}

func (s *Server) handleSetBaseline(w http.ResponseWriter, r *http.Request) {
	numSamples := queryInt(r, "num_samples", 100)
	if err := s.tracker.SetBaseline(numSamples); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": fmt.Sprintf("baseline set from up to %d recent requests", numSamples),
	})
}

func (s *Server) handleRecentAnalyses(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 20)
	analyses := s.store.GetRecentAnalyses(limit)
	writeJSON(w, http.StatusOK, map[string]any{
		"count":    len(analyses),
		"analyses": analyses,
	})
}

func queryInt(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return def
	}
	return v
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
