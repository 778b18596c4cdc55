package valuation

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agentic_dcf/pkg/core/pipeline"
	"agentic_dcf/pkg/core/router"
	"agentic_dcf/pkg/core/sensitivity"
	"agentic_dcf/pkg/core/store"
	"agentic_dcf/pkg/core/valuation"
)

func sampleInputs() valuation.Inputs {
	return valuation.Inputs{
		Company:        "Example Corp",
		Ticker:         "EXM",
		Horizon:        3,
		RevenueT0:      1000,
		SalesGrowth:    []float64{0.10, 0.08, 0.06},
		OperMargin:     []float64{0.15, 0.16, 0.17},
		WACC:           []float64{0.08, 0.08, 0.08},
		SalesToCapital: []float64{2, 2, 2},
		TaxRate:        0.25,
		StableGrowth:   0.02,
		StableMargin:   0.17,
		SharesOut:      100,
		NetDebt:        200,
	}
}

func newServer(t *testing.T, repo store.SessionRepository) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	NewHandler(pipeline.DefaultOptions(), repo).RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func post(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}
	resp, err := http.Post(url, "application/json", &buf)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestHandleValue(t *testing.T) {
	srv := newServer(t, nil)
	want, err := valuation.Value(sampleInputs())
	require.NoError(t, err)

	resp := post(t, srv.URL+"/api/valuation/value", sampleInputs())
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))

	var got valuation.Result
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.InDelta(t, want.ValuePerShare, got.ValuePerShare, 1e-9)
	assert.Len(t, got.Path, 3)
}

func TestHandleValue_Errors(t *testing.T) {
	srv := newServer(t, nil)

	bad := sampleInputs()
	bad.WACC = []float64{0.08, 0.08, 0.02}
	short := sampleInputs()
	short.OperMargin = []float64{0.15}
	zero := sampleInputs()
	zero.SharesOut = 0

	tests := []struct {
		name string
		body any
		want int
	}{
		{"malformed json", "{not json", http.StatusBadRequest},
		{"terminal spread", bad, http.StatusUnprocessableEntity},
		{"shape mismatch", short, http.StatusUnprocessableEntity},
		{"zero shares", zero, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := post(t, srv.URL+"/api/valuation/value", tt.body)
			assert.Equal(t, tt.want, resp.StatusCode)
			var e errorResponse
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&e))
			assert.NotEmpty(t, e.Error)
		})
	}
}

func TestMethods(t *testing.T) {
	srv := newServer(t, nil)

	resp, err := http.Get(srv.URL + "/api/valuation/value")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/api/valuation/refine", nil)
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "POST, OPTIONS", resp.Header.Get("Access-Control-Allow-Methods"))
}

func TestHandleSensitivity(t *testing.T) {
	srv := newServer(t, nil)
	resp := post(t, srv.URL+"/api/valuation/sensitivity",
		`{"inputs": `+mustJSON(t, sampleInputs())+`, "options": {"growth_steps": 3, "margin_steps": 3}}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got sensitivity.Result
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	require.Len(t, got.Grid, 3)
	assert.Len(t, got.Grid[0], 3)
	assert.Len(t, got.GrowthAxis, 3)
	assert.InDeltaSlice(t, []float64{-0.02, 0, 0.02}, got.GrowthAxis, 1e-12, "omitted deltas keep the defaults")
	assert.InDeltaSlice(t, []float64{-0.01, 0, 0.01}, got.MarginAxis, 1e-12)
}

func TestHandleSensitivity_ExplicitZeroDelta(t *testing.T) {
	srv := newServer(t, nil)
	resp := post(t, srv.URL+"/api/valuation/sensitivity",
		`{"inputs": `+mustJSON(t, sampleInputs())+`, "options": {"growth_delta": 0, "margin_delta": 0, "growth_steps": 3, "margin_steps": 3}}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got sensitivity.Result
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, []float64{0, 0, 0}, got.GrowthAxis)
	assert.Equal(t, []float64{0, 0, 0}, got.MarginAxis)
	for _, row := range got.Grid {
		for _, v := range row {
			assert.Equal(t, got.BaseValuePerShare, v)
		}
	}
}

func TestHandleSensitivity_OversizedGrid(t *testing.T) {
	srv := newServer(t, nil)
	resp := post(t, srv.URL+"/api/valuation/sensitivity", SensitivityRequest{
		Inputs:  sampleInputs(),
		Options: &sensitivity.Options{GrowthSteps: 1500, MarginSteps: 1500},
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var e errorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&e))
	assert.Contains(t, e.Error, "steps must be <=")
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return string(b)
}

func TestHandleRoute(t *testing.T) {
	srv := newServer(t, nil)

	resp := post(t, srv.URL+"/api/valuation/route", RouteRequest{Inputs: sampleInputs()})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var d router.Decision
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&d))
	assert.Equal(t, router.RouteMarket, d.Route)

	resp = post(t, srv.URL+"/api/valuation/route", `{"inputs": {"horizon": 0}, "context": {}}`)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	resp = post(t, srv.URL+"/api/valuation/route", RouteRequest{
		Inputs:  sampleInputs(),
		Context: router.Context{Iteration: 10},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&d))
	assert.Equal(t, router.RouteEnd, d.Route)
	assert.Equal(t, router.StopReasonMaxIterations, d.Stop)
}

func TestHandleRefineAndSessions(t *testing.T) {
	repo, err := store.NewFileSessionRepo(t.TempDir())
	require.NoError(t, err)
	srv := newServer(t, repo)

	resp := post(t, srv.URL+"/api/valuation/refine", RefineRequest{Inputs: sampleInputs(), Report: true})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		Session struct {
			ID         string       `json:"session_id"`
			FinalRoute router.Route `json:"final_route"`
		} `json:"session"`
		Markdown string `json:"markdown"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, router.RouteEnd, out.Session.FinalRoute)
	assert.Contains(t, out.Markdown, "## Router Trail")
	require.NotEmpty(t, out.Session.ID)

	list, err := http.Get(srv.URL + "/api/valuation/sessions?ticker=exm")
	require.NoError(t, err)
	defer list.Body.Close()
	require.Equal(t, http.StatusOK, list.StatusCode)
	var summaries []store.SessionSummary
	require.NoError(t, json.NewDecoder(list.Body).Decode(&summaries))
	require.Len(t, summaries, 1)
	assert.Equal(t, out.Session.ID, summaries[0].ID)

	one, err := http.Get(srv.URL + "/api/valuation/sessions/" + out.Session.ID)
	require.NoError(t, err)
	defer one.Body.Close()
	assert.Equal(t, http.StatusOK, one.StatusCode)

	missing, err := http.Get(srv.URL + "/api/valuation/sessions/nope")
	require.NoError(t, err)
	defer missing.Body.Close()
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)

	bad, err := http.Get(srv.URL + "/api/valuation/sessions?limit=-1")
	require.NoError(t, err)
	defer bad.Body.Close()
	assert.Equal(t, http.StatusBadRequest, bad.StatusCode)
}

func TestHandleSessions_NoRepo(t *testing.T) {
	srv := newServer(t, nil)
	resp, err := http.Get(srv.URL + "/api/valuation/sessions")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
