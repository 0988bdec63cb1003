package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"IceStock/internal/collector"
	"IceStock/internal/model"
	"IceStock/internal/planner"
	"IceStock/internal/storage"
)

type testServer struct {
	handler http.Handler
	primary *collector.MockSource
	clock   time.Time
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ts := &testServer{
		primary: &collector.MockSource{
			ID:       "openweathermap",
			Forecast: collector.MockForecast(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), 7, 22, 24),
		},
		clock: time.Date(2024, 1, 1, 7, 0, 0, 0, time.UTC),
	}
	svc := planner.New(planner.Config{
		Repo: storage.NewMemoryRepository(),
		Fetchers: map[string]planner.Fetcher{
			planner.SourcePrimary:      collector.NewChain(zerolog.Nop(), ts.primary),
			planner.SourceExperimental: collector.NewChain(zerolog.Nop(), ts.primary),
		},
		Now: func() time.Time {
			ts.clock = ts.clock.Add(time.Minute)
			return ts.clock
		},
		Log: zerolog.Nop(),
	})
	ts.handler = New(Config{Addr: ":0", Log: zerolog.Nop(), Planner: svc, DevMode: true}).Handler()
	return ts
}

func (ts *testServer) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func errorOf(t *testing.T, rec *httptest.ResponseRecorder) string {
	return decode[map[string]string](t, rec)["error"]
}

const centro = `{"name":"Centro","lat":-25.2637,"lon":-57.5759,"city":"Asunción","country":"PY"}`

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestMetrics(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "icestock_forecast_fallback_total")
}

func TestCreateStore_DefaultBaseline(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/stores", centro)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	store := decode[model.Store](t, rec)
	assert.Equal(t, int64(1), store.ID)
	assert.Equal(t, "Centro", store.Name)
	assert.Equal(t, model.DefaultBaseline(), store.BaseDemand)
	assert.Contains(t, rec.Body.String(),
		`"base_demand":{"palitos_u_per_day":3.4,"conos_u_per_day":3,"vasitos_u_per_day":2,"potes_kg_per_day":1.1,"helado_premium_kg_per_day":0.6}`)
}

func TestCreateStore_KeepsBaselineOrder(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/stores", `{"name":"Costa","base_demand":{"potes_kg_per_day":2,"conos_u_per_day":1}}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"base_demand":{"potes_kg_per_day":2,"conos_u_per_day":1}`)
	assert.Contains(t, rec.Body.String(), `"lat":null`)
}

func TestCreateStore_Validation(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"empty body", "", "request body is required"},
		{"missing name", `{"lat":1,"lon":1}`, "name is required"},
		{"blank name", `{"name":"   "}`, "name is required"},
		{"latitude out of range", `{"name":"x","lat":91,"lon":0}`, "lat must be between -90 and 90"},
		{"longitude out of range", `{"name":"x","lat":0,"lon":-181}`, "lon must be between -180 and 180"},
		{"baseline not an object", `{"name":"x","base_demand":[1,2]}`, "invalid JSON body"},
		{"unknown field", `{"name":"x","owner":"y"}`, "invalid JSON body"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t)
			rec := ts.do(t, http.MethodPost, "/api/stores", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, errorOf(t, rec), tt.want)
		})
	}
}

func TestListAndGetStores(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/stores", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	ts.do(t, http.MethodPost, "/api/stores", centro)
	ts.do(t, http.MethodPost, "/api/stores", `{"name":"Sin GPS"}`)

	stores := decode[[]model.Store](t, ts.do(t, http.MethodGet, "/api/stores", ""))
	require.Len(t, stores, 2)
	assert.Equal(t, "Sin GPS", stores[1].Name)

	rec = ts.do(t, http.MethodGet, "/api/stores/1", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Centro", decode[model.Store](t, rec).Name)

	rec = ts.do(t, http.MethodGet, "/api/stores/42", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "store not found", errorOf(t, rec))

	rec = ts.do(t, http.MethodGet, "/api/stores/abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGenerateSuggestion(t *testing.T) {
	ts := newTestServer(t)
	ts.do(t, http.MethodPost, "/api/stores", centro)

	rec := ts.do(t, http.MethodPost, "/api/stores/1/suggestions", `{"strategy":"conservadora"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var body struct {
		Record   model.SuggestionRecord `json:"record"`
		Source   string                 `json:"source"`
		Warnings []string               `json:"warnings"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "openweathermap", body.Source)
	assert.NotNil(t, body.Warnings)
	assert.Equal(t, "Centro", body.Record.StoreName)
	assert.Equal(t, model.StrategyConservative, body.Record.Suggestion.Strategy)
	assert.Equal(t, "2024-01-01", body.Record.Suggestion.WeekStart.String())
	assert.Len(t, body.Record.Suggestion.Items, 5)
	assert.Equal(t, "(Servicio de explicación no configurado) Explicación no generada. Configure explanation_endpoint y explanation_api_key.", body.Record.Explanation)
	assert.Contains(t, rec.Body.String(), `"week_start":"2024-01-01"`)
	assert.Contains(t, rec.Body.String(), `"units_week"`)
	assert.Contains(t, rec.Body.String(), `"kg_week"`)
}

func TestGenerateSuggestion_EmptyBodyUsesDefaults(t *testing.T) {
	ts := newTestServer(t)
	ts.do(t, http.MethodPost, "/api/stores", centro)

	req := httptest.NewRequest(http.MethodPost, "/api/stores/1/suggestions", http.NoBody)
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"strategy":"balanced"`)
}

func TestGenerateSuggestion_ErrorMapping(t *testing.T) {
	ts := newTestServer(t)
	ts.do(t, http.MethodPost, "/api/stores", centro)
	ts.do(t, http.MethodPost, "/api/stores", `{"name":"Sin GPS"}`)

	rec := ts.do(t, http.MethodPost, "/api/stores/9/suggestions", `{}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/stores/2/suggestions", `{}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/stores/1/suggestions", `{"source":"satellite"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/stores/1/suggestions", `{"strategy":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	ts.primary.Err = &collector.FetchError{Source: "openweathermap", Kind: collector.KindConfig, Err: collector.ErrMissingAPIKey}
	rec = ts.do(t, http.MethodPost, "/api/stores/1/suggestions", `{}`)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, errorOf(t, rec), "forecast API key not configured")
}

func TestHistory_NewestFirst(t *testing.T) {
	ts := newTestServer(t)
	ts.do(t, http.MethodPost, "/api/stores", centro)
	ts.do(t, http.MethodPost, "/api/stores", strings.Replace(centro, "Centro", "Costanera", 1))

	ts.do(t, http.MethodPost, "/api/stores/1/suggestions", `{}`)
	ts.do(t, http.MethodPost, "/api/stores/2/suggestions", `{"strategy":"aggressive"}`)

	rec := ts.do(t, http.MethodGet, "/api/suggestions", "")
	require.Equal(t, http.StatusOK, rec.Code)
	history := decode[[]model.SuggestionRecord](t, rec)
	require.Len(t, history, 2)
	assert.Equal(t, "Costanera", history[0].StoreName)
	assert.Equal(t, model.StrategyAggressive, history[0].Suggestion.Strategy)
	assert.Equal(t, "Centro", history[1].StoreName)
	assert.True(t, history[0].CreatedAt.After(history[1].CreatedAt))
}

func TestCORSPreflight(t *testing.T) {
	ts := newTestServer(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/stores", bytes.NewReader(nil))
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
