package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/anatolykoptev/go_factcheck/internal/engine"
	"github.com/anatolykoptev/go_factcheck/internal/engine/analysis"
)

// maxRequestBytes bounds the request body; audio payloads are base64 so a
// few minutes of compressed audio fits comfortably.
const maxRequestBytes = 32 * 1024 * 1024

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// statusFor maps the pipeline's error taxonomy to HTTP status codes.
func statusFor(kind engine.ErrorKind) int {
	switch kind {
	case engine.ErrValidation:
		return http.StatusBadRequest
	case engine.ErrRateLimited:
		return http.StatusTooManyRequests
	case engine.ErrExtraction:
		return http.StatusUnprocessableEntity
	case engine.ErrUpstreamTimeout:
		return http.StatusGatewayTimeout
	case engine.ErrMisconfigured:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("write response", slog.Any("error", err))
	}
}

func writeError(w http.ResponseWriter, err *engine.Error) {
	if err.Kind == engine.ErrRateLimited && err.RetryAfter > 0 {
		secs := int(err.RetryAfter.Seconds())
		if secs < 1 {
			secs = 1
		}
		w.Header().Set("Retry-After", strconv.Itoa(secs))
	}
	writeJSON(w, statusFor(err.Kind), errorResponse{Error: err.Message, Kind: string(err.Kind)})
}

func handleAnalyze(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)

	var in engine.AnalysisInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, engine.Errorf(engine.ErrValidation, "invalid JSON body: %v", err))
		return
	}

	out, aErr := analysis.Analyze(r.Context(), callerID(r), in)
	if aErr != nil {
		if aErr.Kind == engine.ErrUnexpected {
			slog.Error("analyze failed", slog.String("kind", string(in.Kind)), slog.String("error", aErr.Message))
		}
		writeError(w, aErr)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func handleMetrics(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprint(w, engine.FormatMetrics())
}

func handleTrending(w http.ResponseWriter, r *http.Request) {
	db := analysis.GetStore()
	if db == nil {
		writeError(w, engine.Errorf(engine.ErrMisconfigured, "no shared database configured"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := db.TopTrending(r.Context(), limit)
	if err != nil {
		slog.Error("trending query failed", slog.Any("error", err))
		writeError(w, engine.Errorf(engine.ErrUnexpected, "trending unavailable"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func handleHistory(w http.ResponseWriter, r *http.Request) {
	h := analysis.GetHistory()
	if h == nil {
		writeError(w, engine.Errorf(engine.ErrMisconfigured, "no local history configured"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := h.Recent(r.Context(), limit)
	if err != nil {
		slog.Error("history query failed", slog.Any("error", err))
		writeError(w, engine.Errorf(engine.ErrUnexpected, "history unavailable"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}
