package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/aristath/fairshares/internal/modules/allocation"
	"github.com/aristath/fairshares/internal/modules/results"
	"github.com/aristath/fairshares/internal/services"
)

// AllocationResponse is the wire form of a completed allocation run
type AllocationResponse struct {
	UUID       string                     `json:"uuid"`
	Approach   string                     `json:"approach"`
	Parameters map[string]any             `json:"parameters"`
	Shares     map[string]map[int]float64 `json:"shares"`
	Warnings   map[string]string          `json:"country_warnings,omitempty"`
	Status     string                     `json:"status,omitempty"`
	Error      string                     `json:"error,omitempty"`
}

// PathwayResponse is the wire form of a generated pathway
type PathwayResponse struct {
	StartYear int       `json:"start_year"`
	EndYear   int       `json:"end_year"`
	Unit      string    `json:"unit,omitempty"`
	Values    []float64 `json:"values"`
	Total     float64   `json:"total"`
}

// handleBudgetAllocation runs a budget allocation
func (s *Server) handleBudgetAllocation(w http.ResponseWriter, r *http.Request) {
	var req services.BudgetAllocationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}

	outcome, err := s.allocator.RunBudget(req)
	if err != nil {
		s.writeAllocationError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, AllocationResponse{
		UUID:       outcome.ID,
		Approach:   outcome.Result.Approach,
		Parameters: outcome.Result.Parameters,
		Shares:     outcome.Result.Shares.Map(),
		Warnings:   outcome.Result.Warnings,
	})
}

// handlePathwayAllocation runs a convergence allocation
func (s *Server) handlePathwayAllocation(w http.ResponseWriter, r *http.Request) {
	var req services.PathwayAllocationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}

	outcome, err := s.allocator.RunPathwayAllocation(req)
	if err != nil {
		s.writeAllocationError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, AllocationResponse{
		UUID:       outcome.ID,
		Approach:   outcome.Result.Approach,
		Parameters: outcome.Result.Parameters,
		Shares:     outcome.Result.Shares.Map(),
		Warnings:   outcome.Result.Warnings,
	})
}

// handleGeneratePathway generates a world emissions pathway from a budget
func (s *Server) handleGeneratePathway(w http.ResponseWriter, r *http.Request) {
	var req services.PathwayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}

	p, err := s.allocator.GeneratePathway(req)
	if err != nil {
		s.writeAllocationError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, PathwayResponse{
		StartYear: p.StartYear,
		EndYear:   p.StartYear + len(p.Values) - 1,
		Unit:      req.Unit,
		Values:    p.Values,
		Total:     p.Sum(),
	})
}

// handleGetAllocation retrieves a stored allocation run by uuid
func (s *Server) handleGetAllocation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	rec, err := s.repo.Get(id)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if rec == nil {
		s.writeError(w, http.StatusNotFound, "allocation run not found")
		return
	}

	s.writeJSON(w, http.StatusOK, AllocationResponse{
		UUID:       rec.UUID,
		Approach:   rec.Approach,
		Parameters: rec.Parameters,
		Shares:     rec.Shares,
		Warnings:   rec.Warnings,
		Status:     rec.Status,
		Error:      rec.Error,
	})
}

// handleListAllocations lists stored allocation runs, newest first
func (s *Server) handleListAllocations(w http.ResponseWriter, r *http.Request) {
	summaries, err := s.repo.List(100)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if summaries == nil {
		summaries = []results.Summary{}
	}

	s.writeJSON(w, http.StatusOK, map[string]any{"allocations": summaries})
}

// handleDeleteAllocation removes a stored allocation run
func (s *Server) handleDeleteAllocation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := s.repo.Delete(id); err != nil {
		s.writeError(w, http.StatusNotFound, err.Error())
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// writeAllocationError maps domain errors to HTTP status codes
func (s *Server) writeAllocationError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, allocation.ErrConfiguration), errors.Is(err, allocation.ErrData):
		s.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, allocation.ErrInfeasible):
		s.writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		s.log.Error().Err(err).Msg("Allocation failed")
		s.writeError(w, http.StatusInternalServerError, err.Error())
	}
}
