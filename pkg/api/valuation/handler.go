// Package valuation exposes the kernel, the sensitivity grid, the router and the
// refinement loop over HTTP.
package valuation

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/phuslu/log"

	"agentic_dcf/pkg/core/pipeline"
	"agentic_dcf/pkg/core/refine"
	"agentic_dcf/pkg/core/report"
	"agentic_dcf/pkg/core/router"
	"agentic_dcf/pkg/core/sensitivity"
	"agentic_dcf/pkg/core/store"
	"agentic_dcf/pkg/core/valuation"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

type SensitivityRequest struct {
	Inputs  valuation.Inputs     `json:"inputs"`
	Options *sensitivity.Options `json:"options,omitempty"`
}

type RouteRequest struct {
	Inputs  valuation.Inputs `json:"inputs"`
	Context router.Context   `json:"context"`
	Config  *router.Config   `json:"config,omitempty"`
}

type RefineRequest struct {
	Inputs    valuation.Inputs    `json:"inputs"`
	Consensus *refine.Consensus   `json:"consensus,omitempty"`
	Peers     []refine.Peer       `json:"peers,omitempty"`
	News      *refine.NewsSummary `json:"news,omitempty"`
	// Report adds the rendered Markdown report to the response.
	Report bool `json:"report,omitempty"`
}

type RefineResponse struct {
	*pipeline.Outcome
	Markdown string `json:"markdown,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Handler holds dependencies for valuation endpoints
type Handler struct {
	Options pipeline.Options
	// Repo persists refine sessions and backs the session endpoints. May be nil.
	Repo store.SessionRepository
}

// NewHandler creates a new valuation handler
func NewHandler(opts pipeline.Options, repo store.SessionRepository) *Handler {
	return &Handler{Options: opts, Repo: repo}
}

// RegisterRoutes mounts every endpoint on mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/valuation/value", h.HandleValue)
	mux.HandleFunc("/api/valuation/sensitivity", h.HandleSensitivity)
	mux.HandleFunc("/api/valuation/route", h.HandleRoute)
	mux.HandleFunc("/api/valuation/refine", h.HandleRefine)
	mux.HandleFunc("/api/valuation/sessions", h.HandleSessions)
	mux.HandleFunc("/api/valuation/sessions/{id}", h.HandleSession)
}

func (h *Handler) HandleValue(w http.ResponseWriter, r *http.Request) {
	if !preflight(w, r, http.MethodPost) {
		return
	}
	var in valuation.Inputs
	if !decode(w, r, &in) {
		return
	}
	res, err := valuation.Value(in)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) HandleSensitivity(w http.ResponseWriter, r *http.Request) {
	if !preflight(w, r, http.MethodPost) {
		return
	}
	// fields omitted from options keep the handler defaults
	opts := h.Options.Sensitivity
	req := SensitivityRequest{Options: &opts}
	if !decode(w, r, &req) {
		return
	}
	if req.Options == nil {
		req.Options = &h.Options.Sensitivity
	}
	grid, err := sensitivity.Compute(r.Context(), req.Inputs, *req.Options)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, grid)
}

func (h *Handler) HandleRoute(w http.ResponseWriter, r *http.Request) {
	if !preflight(w, r, http.MethodPost) {
		return
	}
	var req RouteRequest
	if !decode(w, r, &req) {
		return
	}
	cfg := h.Options.Router
	if req.Config != nil {
		cfg = *req.Config
	}
	res, err := valuation.Value(req.Inputs)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, router.ChooseNextRoute(cfg, req.Inputs, res, req.Context))
}

func (h *Handler) HandleRefine(w http.ResponseWriter, r *http.Request) {
	if !preflight(w, r, http.MethodPost) {
		return
	}
	var req RefineRequest
	if !decode(w, r, &req) {
		return
	}

	ref := pipeline.NewRefiner(h.Options)
	ref.SetSources(refine.Sources{Consensus: req.Consensus, Peers: req.Peers, News: req.News})
	if h.Repo != nil {
		ref.SetRepository(h.Repo)
	}
	out, err := ref.Run(r.Context(), req.Inputs)
	if err != nil {
		log.Warn().Err(err).Str("ticker", req.Inputs.Ticker).Msg("[API] refine failed")
		writeError(w, statusFor(err), err)
		return
	}

	resp := RefineResponse{Outcome: out}
	if req.Report {
		resp.Markdown = report.Report{
			Inputs:      out.Inputs,
			Result:      out.Result,
			Sensitivity: out.Sensitivity,
			Session:     out.Session,
			Stability:   out.Stability,
			News:        req.News,
			Peers:       req.Peers,
		}.Markdown()
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleSessions lists stored sessions, optionally filtered by ?ticker= (case-insensitive)
// and capped by ?limit=.
func (h *Handler) HandleSessions(w http.ResponseWriter, r *http.Request) {
	if !preflight(w, r, http.MethodGet) {
		return
	}
	if h.Repo == nil {
		writeError(w, http.StatusNotFound, errors.New("session storage is not configured"))
		return
	}
	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid limit %q", s))
			return
		}
		limit = n
	}
	list, err := h.Repo.List(r.Context(), r.URL.Query().Get("ticker"), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if list == nil {
		list = []store.SessionSummary{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handler) HandleSession(w http.ResponseWriter, r *http.Request) {
	if !preflight(w, r, http.MethodGet) {
		return
	}
	if h.Repo == nil {
		writeError(w, http.StatusNotFound, errors.New("session storage is not configured"))
		return
	}
	s, err := h.Repo.Load(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// preflight sets the CORS headers, answers OPTIONS and rejects other methods.
func preflight(w http.ResponseWriter, r *http.Request, method string) bool {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", method+", OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return false
	}
	if r.Method != method {
		writeError(w, http.StatusMethodNotAllowed, fmt.Errorf("method %s not allowed", r.Method))
		return false
	}
	return true
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return false
	}
	return true
}

// statusFor maps bad grid options to 400, kernel input errors to 422 and unknown
// sessions to 404.
func statusFor(err error) int {
	switch {
	case errors.Is(err, sensitivity.ErrInvalidOptions):
		return http.StatusBadRequest
	case errors.Is(err, valuation.ErrShapeMismatch),
		errors.Is(err, valuation.ErrDivisionByZero),
		errors.Is(err, valuation.ErrInvalidTerminalValue):
		return http.StatusUnprocessableEntity
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("[API] failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}
