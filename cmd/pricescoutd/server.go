package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"pricescout-backend/lib/listing"
	"pricescout-backend/services/compare"
)

type runner interface {
	Run(ctx context.Context, term string) (compare.Report, error)
}

// Server exposes the pipeline over plain json: POST {"searchTerm": ...}
// and get back the ranked price gaps.
type Server struct {
	service runner
}

func NewServer(service runner) Server {
	return Server{service: service}
}

type compareRequest struct {
	SearchTerm string `json:"searchTerm"`
}

type compareResponse struct {
	Results []listing.ComparisonResult `json:"results"`
	Message string                     `json:"message,omitempty"`
}

type errorResponse struct {
	Error   string                     `json:"error"`
	Results []listing.ComparisonResult `json:"results"`
}

func writeJson(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func (s Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

	switch r.Method {
	case http.MethodOptions:
		w.WriteHeader(http.StatusNoContent)
		return
	case http.MethodPost:
	default:
		writeJson(w, http.StatusMethodNotAllowed, errorResponse{
			Error:   "method not allowed",
			Results: []listing.ComparisonResult{},
		})
		return
	}

	var req compareRequest
	err := json.NewDecoder(r.Body).Decode(&req)
	if err != nil || req.SearchTerm == "" {
		writeJson(w, http.StatusBadRequest, errorResponse{
			Error:   "searchTerm is required",
			Results: []listing.ComparisonResult{},
		})
		return
	}

	report, err := s.service.Run(r.Context(), req.SearchTerm)
	if err != nil {
		slog.ErrorContext(r.Context(), "comparison run failed",
			"term", req.SearchTerm,
			"state", report.State,
			"err", err,
		)
		// internals stay in the logs
		writeJson(w, http.StatusInternalServerError, errorResponse{
			Error:   "comparison failed",
			Results: []listing.ComparisonResult{},
		})
		return
	}

	resp := compareResponse{Results: report.Results}
	if resp.Results == nil {
		resp.Results = []listing.ComparisonResult{}
	}
	if report.Scraped == 0 {
		resp.Message = "no store listings found for this term"
	}
	writeJson(w, http.StatusOK, resp)
}
