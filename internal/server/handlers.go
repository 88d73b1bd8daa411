package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/law-makers/catalog/internal/cache"
	"github.com/law-makers/catalog/internal/engine"
	"github.com/law-makers/catalog/internal/reqctx"
)

// ErrorResponse is the body of every non-2xx reply
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"requestId,omitempty"`
}

type healthResponse struct {
	Status string      `json:"status"`
	Uptime string      `json:"uptime"`
	Cache  cache.Stats `json:"cache"`
}

func (s *Server) handleProducts(w http.ResponseWriter, r *http.Request) {
	view, err := s.catalog.GetCatalog(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	view, err := s.catalog.ForceRefresh(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handlePaymentInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.opts.Payment)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status: "ok",
		Uptime: time.Since(s.started).Round(time.Second).String(),
		Cache:  s.catalog.Stats(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug().Err(err).Msg("Failed to write response")
	}
}

// errorStatus maps a catalog failure to an HTTP status and error code
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, engine.ErrCatalogUnreachable):
		return http.StatusBadGateway, string(engine.ErrCodeUnreachable)
	case errors.Is(err, engine.ErrSessionUnavailable):
		return http.StatusServiceUnavailable, string(engine.ErrCodeSession)
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "TIMEOUT"
	case errors.Is(err, engine.ErrParse):
		return http.StatusInternalServerError, string(engine.ErrCodeParse)
	default:
		return http.StatusInternalServerError, "INTERNAL"
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	rerr := reqctx.NewRequestError(r.Context(), err)
	if r.Context().Err() != nil {
		log.Debug().Err(rerr).Msg("Client went away before the catalog was ready")
		return
	}

	status, code := errorStatus(err)
	log.Error().Err(rerr).Int("status", status).Str("code", code).Msg("Catalog request failed")

	writeJSON(w, status, ErrorResponse{
		Error:     err.Error(),
		Code:      code,
		RequestID: reqctx.GetRequestContext(r.Context()).RequestID,
	})
}
