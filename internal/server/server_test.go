package server

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rxflow/substitute-gateway/internal/catalog"
	"github.com/rxflow/substitute-gateway/internal/llm"
	"github.com/rxflow/substitute-gateway/internal/observability"
	"github.com/rxflow/substitute-gateway/internal/observability/drift"
	"github.com/rxflow/substitute-gateway/internal/observability/metrics"
	"github.com/rxflow/substitute-gateway/internal/observability/store"
	"github.com/rxflow/substitute-gateway/internal/pipeline"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	st, err := store.New(t.TempDir(), logger)
	require.NoError(t, err)

	cat := catalog.New()
	cat.BulkAdd(catalog.Seed())

	data := pipeline.DefaultDatasets()
	for sku, lots := range data.Inventory {
		for i := range lots {
			lots[i].Expiry = "2035-01-01"
		}
		data.Inventory[sku] = lots
	}

	gen := llm.NewRuleBased()
	pipe := pipeline.New(cat, data, gen, logger)
	tracker := observability.NewTracker(st, drift.NewDetector(), nil, metrics.NewTokenCounter(), observability.DriftConfig{}, logger)

	return New(0, cat, pipe, tracker, st, logger)
}

func doJSON(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestRootAndHealth(t *testing.T) {
	s := newTestServer(t)

	rec := doJSON(t, s, http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "substitute-gateway", body["service"])
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec = doJSON(t, s, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", decodeBody(t, rec)["status"])
}

func TestCreateProduct(t *testing.T) {
	s := newTestServer(t)

	rec := doJSON(t, s, http.MethodPost, "/api/v1/products", map[string]any{
		"product_description": "Atorvastatin 20mg - ATC Code: C10AA05 - Lipid-lowering agent",
		"sku":                 "ATOR-20",
		"atc_code":            "C10AA05",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "ATOR-20", body["sku"])

	p, ok := s.catalog.Get("ATOR-20")
	require.True(t, ok)
	assert.Equal(t, 24, p.ShelfLifeMonths, "shelf life defaults to 24 months")
}

func TestCreateProductValidation(t *testing.T) {
	s := newTestServer(t)

	rec := doJSON(t, s, http.MethodPost, "/api/v1/products", map[string]any{"sku": "X-1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/products", bytes.NewBufferString("{"))
	w := httptest.NewRecorder()
	s.Router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBulkCreateProducts(t *testing.T) {
	s := newTestServer(t)

	rec := doJSON(t, s, http.MethodPost, "/api/v1/products/bulk", map[string]any{
		"products": []map[string]any{
			{"description": "Metformin 850mg - ATC Code: A10BA02 - Oral antidiabetic", "sku": "METF-850", "atc": "A10BA02", "shelf_life_months": 36},
			{"description": "Atorvastatin 20mg - ATC Code: C10AA05", "sku": "ATOR-20", "atc": "C10AA05"},
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, float64(2), decodeBody(t, rec)["product_count"])

	_, ok := s.catalog.Get("METF-850")
	assert.True(t, ok)

	rec = doJSON(t, s, http.MethodPost, "/api/v1/products/bulk", map[string]any{"products": []map[string]any{}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRecommendationsHappyPath(t *testing.T) {
	s := newTestServer(t)

	rec := doJSON(t, s, http.MethodPost, "/api/v1/recommendations", map[string]any{
		"requested_item": "Paracetamol 500mg",
		"country":        "CO",
		"quantity":       200,
		"urgency":        "medium",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decodeBody(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "balanced", body["strategy"])
	recs := body["recommendations"].([]any)
	require.Len(t, recs, 3)
	first := recs[0].(map[string]any)
	assert.Equal(t, "PARA-500", first["sku"])
	assert.NotEmpty(t, body["final_report"])

	obs, ok := body["observability"].(map[string]any)
	require.True(t, ok)
	assert.NotEmpty(t, obs["request_id"])
	m := obs["metrics"].(map[string]any)
	assert.Nil(t, m["agent_metrics"])
	assert.Equal(t, float64(8), float64(len(m["agents_executed"].([]any))))
}

func TestRecommendationsValidation(t *testing.T) {
	s := newTestServer(t)

	rec := doJSON(t, s, http.MethodPost, "/api/v1/recommendations", map[string]any{
		"requested_item": "Aspirin",
		"country":        "CO",
		"urgency":        "apocalyptic",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, s, http.MethodPost, "/api/v1/recommendations", map[string]any{"country": "CO"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRecommendationsNoSubstitutes(t *testing.T) {
	s := newTestServer(t)

	// No SKU is registered for an unknown country, so the pipeline ends in
	// WAIT_FOR_RESTOCK rather than an error.
	rec := doJSON(t, s, http.MethodPost, "/api/v1/recommendations", map[string]any{
		"requested_item": "Paracetamol 500mg",
		"country":        "BR",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "WAIT_FOR_RESTOCK", body["suggested_action"])
	assert.Empty(t, body["recommendations"])
}

func TestObservabilityEndpoints(t *testing.T) {
	s := newTestServer(t)

	for i := 0; i < 2; i++ {
		rec := doJSON(t, s, http.MethodPost, "/api/v1/recommendations", map[string]any{
			"requested_item": "Ibuprofen 400mg",
			"country":        "CO",
			"urgency":        "high",
		})
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := doJSON(t, s, http.MethodGet, "/api/v1/observability/metrics/recent?limit=10", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, float64(2), body["count"])

	ms := body["metrics"].([]any)
	requestID := ms[0].(map[string]any)["request_id"].(string)
	rec = doJSON(t, s, http.MethodGet, "/api/v1/observability/metrics/"+requestID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, requestID, decodeBody(t, rec)["request_id"])

	rec = doJSON(t, s, http.MethodGet, "/api/v1/observability/metrics/missing-id", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, s, http.MethodGet, "/api/v1/observability/summary?hours=24", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(2), decodeBody(t, rec)["count"])

	rec = doJSON(t, s, http.MethodGet, "/api/v1/observability/drift/history", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), decodeBody(t, rec)["count"], "drift analysis runs once two requests are stored")

	rec = doJSON(t, s, http.MethodGet, "/api/v1/observability/drift/alerts", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, s, http.MethodGet, "/api/v1/observability/analyses/recent", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(0), decodeBody(t, rec)["count"], "AI analysis is disabled in this setup")
}

func TestSetBaselineEndpoint(t *testing.T) {
	s := newTestServer(t)

	rec := doJSON(t, s, http.MethodPost, "/api/v1/observability/drift/set-baseline?num_samples=50", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	for i := 0; i < 2; i++ {
		r := doJSON(t, s, http.MethodPost, "/api/v1/recommendations", map[string]any{
			"requested_item": "Omeprazole 20mg",
			"country":        "PE",
		})
		require.Equal(t, http.StatusOK, r.Code)
	}

	rec = doJSON(t, s, http.MethodPost, "/api/v1/observability/drift/set-baseline?num_samples=50", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decodeBody(t, rec)["success"])
}

func TestRequestIDPropagation(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "upstream-id-42")
	rec := httptest.NewRecorder()
	s.Router.ServeHTTP(rec, req)
	assert.Equal(t, "upstream-id-42", rec.Header().Get("X-Request-ID"))
}
