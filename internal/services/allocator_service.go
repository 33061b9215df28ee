// Package services wires the allocation engines to persistence and exposes
// them as a single application-facing API.
package services

import (
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/fairshares/internal/modules/allocation"
	"github.com/aristath/fairshares/internal/modules/convergence"
	"github.com/aristath/fairshares/internal/modules/pathway"
	"github.com/aristath/fairshares/internal/modules/results"
	"github.com/aristath/fairshares/internal/modules/units"
)

// AllocatorDefaults are applied to request fields left unset
type AllocatorDefaults struct {
	HistoricalResponsibilityYear int
	MaxConvergenceSpeed          float64
	MaxGiniAdjustment            float64
}

// AllocatorService runs allocations and persists their outcomes
type AllocatorService struct {
	repo     *results.Repository
	conv     units.Converter
	defaults AllocatorDefaults
	log      zerolog.Logger
}

// NewAllocatorService creates a new allocator service
func NewAllocatorService(repo *results.Repository, conv units.Converter, defaults AllocatorDefaults, log zerolog.Logger) *AllocatorService {
	return &AllocatorService{
		repo:     repo,
		conv:     conv,
		defaults: defaults,
		log:      log.With().Str("service", "allocator").Logger(),
	}
}

// RunOutcome pairs an allocation result with its stored id
type RunOutcome struct {
	ID     string
	Result *allocation.Result
}

// RunBudget executes a budget allocation and stores the outcome
func (s *AllocatorService) RunBudget(req BudgetAllocationRequest) (*RunOutcome, error) {
	domainReq, err := s.buildBudgetRequest(req)
	if err != nil {
		return nil, err
	}

	res, err := allocation.AllocateBudget(domainReq, s.conv)
	if err != nil {
		return nil, err
	}

	id, err := s.persist(res, req, req.Recurring)
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("uuid", id).
		Str("approach", res.Approach).
		Int("allocation_year", req.AllocationYear).
		Msg("Budget allocation completed")

	return &RunOutcome{ID: id, Result: res}, nil
}

// RunPathwayAllocation executes a convergence allocation and stores the outcome
func (s *AllocatorService) RunPathwayAllocation(req PathwayAllocationRequest) (*RunOutcome, error) {
	res, err := s.runPathwayAllocation(req)
	if err != nil {
		return nil, err
	}

	id, err := s.persist(res, req, req.Recurring)
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("uuid", id).
		Str("approach", res.Approach).
		Int("first_allocation_year", req.FirstAllocationYear).
		Msg("Pathway allocation completed")

	return &RunOutcome{ID: id, Result: res}, nil
}

// GeneratePathway produces a world emissions pathway from a budget. Pathways
// are derived deterministically from their inputs and are not stored.
func (s *AllocatorService) GeneratePathway(req PathwayRequest) (*pathway.Pathway, error) {
	p, err := pathway.Generate(pathway.Config{
		TotalBudget: req.TotalBudget,
		StartValue:  req.StartValue,
		StartYear:   req.StartYear,
		EndYear:     req.EndYear,
		Tolerance:   req.Tolerance,
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Float64("total_budget", req.TotalBudget).
		Int("start_year", req.StartYear).
		Int("end_year", req.EndYear).
		Msg("Pathway generated")

	return p, nil
}

// Replay re-runs a stored recurring allocation and updates its record in
// place. Failures are recorded on the run rather than returned, so one broken
// run does not abort a sweep; only storage errors propagate.
func (s *AllocatorService) Replay(rec results.Record) error {
	var res *allocation.Result
	var runErr error

	switch rec.Approach {
	case allocation.ApproachEqualPerCapitaBudget,
		allocation.ApproachPerCapitaAdjustedBudget,
		allocation.ApproachPerCapitaAdjGiniBudget:
		var req BudgetAllocationRequest
		if err := json.Unmarshal(rec.Request, &req); err != nil {
			runErr = fmt.Errorf("failed to decode stored budget request: %w", err)
		} else {
			var domainReq allocation.BudgetRequest
			domainReq, runErr = s.buildBudgetRequest(req)
			if runErr == nil {
				res, runErr = allocation.AllocateBudget(domainReq, s.conv)
			}
		}

	case convergence.ApproachPerCapitaConvergence,
		convergence.ApproachCumulativePerCapita,
		convergence.ApproachCumulativePerCapitaAdjusted,
		convergence.ApproachCumulativePerCapitaGiniAdjusted:
		var req PathwayAllocationRequest
		if err := json.Unmarshal(rec.Request, &req); err != nil {
			runErr = fmt.Errorf("failed to decode stored pathway request: %w", err)
		} else {
			res, runErr = s.runPathwayAllocation(req)
		}

	default:
		runErr = fmt.Errorf("unknown approach %q", rec.Approach)
	}

	if runErr != nil {
		s.log.Warn().
			Err(runErr).
			Str("uuid", rec.UUID).
			Str("approach", rec.Approach).
			Msg("Recurring allocation replay failed")
	}

	return s.repo.UpdateResult(rec.UUID, res, runErr)
}

func (s *AllocatorService) runPathwayAllocation(req PathwayAllocationRequest) (*allocation.Result, error) {
	if req.Approach == convergence.ApproachPerCapitaConvergence {
		domainReq, err := s.buildPerCapitaRequest(req)
		if err != nil {
			return nil, err
		}
		return convergence.AllocatePerCapita(domainReq, s.conv)
	}

	domainReq, err := s.buildCumulativeRequest(req)
	if err != nil {
		return nil, err
	}
	return convergence.AllocateCumulative(domainReq, s.conv)
}

func (s *AllocatorService) persist(res *allocation.Result, request any, recurring bool) (string, error) {
	raw, err := json.Marshal(request)
	if err != nil {
		return "", fmt.Errorf("failed to encode request for storage: %w", err)
	}

	category, _ := res.Parameters["emission_category"].(string)
	return s.repo.Save(results.Record{
		Approach:         res.Approach,
		EmissionCategory: category,
		Status:           results.StatusCompleted,
		Parameters:       res.Parameters,
		Shares:           res.Shares.Map(),
		Warnings:         res.Warnings,
		Request:          raw,
		Recurring:        recurring,
	})
}

func (s *AllocatorService) buildBudgetRequest(req BudgetAllocationRequest) (allocation.BudgetRequest, error) {
	pop, err := req.Population.Table("")
	if err != nil {
		return allocation.BudgetRequest{}, fmt.Errorf("%w: population: %v", allocation.ErrConfiguration, err)
	}

	out := allocation.NewBudgetRequest(pop, req.AllocationYear, req.EmissionCategory)
	out.Weights = allocation.Weights{
		Responsibility: req.ResponsibilityWeight,
		Capability:     req.CapabilityWeight,
	}
	out.HistoricalResponsibilityYear = s.defaults.HistoricalResponsibilityYear
	out.MaxGiniAdjustment = s.defaults.MaxGiniAdjustment
	out.Gini = req.Gini
	out.IncomeFloor = req.IncomeFloor
	out.PreserveAllocationYearShares = req.PreserveAllocationYearShares

	if req.Emissions != nil {
		if out.Emissions, err = req.Emissions.Table(req.EmissionCategory); err != nil {
			return allocation.BudgetRequest{}, fmt.Errorf("%w: emissions: %v", allocation.ErrConfiguration, err)
		}
	}
	if req.GDP != nil {
		if out.GDP, err = req.GDP.Table(""); err != nil {
			return allocation.BudgetRequest{}, fmt.Errorf("%w: gdp: %v", allocation.ErrConfiguration, err)
		}
	}

	if req.HistoricalResponsibilityYear != nil {
		out.HistoricalResponsibilityYear = *req.HistoricalResponsibilityYear
	}
	if req.ResponsibilityPerCapita != nil {
		out.ResponsibilityPerCapita = *req.ResponsibilityPerCapita
	}
	if req.ResponsibilityExponent != nil {
		out.ResponsibilityExponent = *req.ResponsibilityExponent
	}
	if req.ResponsibilityForm != "" {
		out.ResponsibilityForm = allocation.TransformForm(req.ResponsibilityForm)
	}
	if req.CapabilityPerCapita != nil {
		out.CapabilityPerCapita = *req.CapabilityPerCapita
	}
	if req.CapabilityExponent != nil {
		out.CapabilityExponent = *req.CapabilityExponent
	}
	if req.CapabilityForm != "" {
		out.CapabilityForm = allocation.TransformForm(req.CapabilityForm)
	}
	if req.MaxGiniAdjustment != nil {
		out.MaxGiniAdjustment = *req.MaxGiniAdjustment
	}
	if req.NoDeviationConstraint {
		out.MaxDeviationSigma = nil
	} else if req.MaxDeviationSigma != nil {
		out.MaxDeviationSigma = req.MaxDeviationSigma
	}

	return out, nil
}

func (s *AllocatorService) buildPerCapitaRequest(req PathwayAllocationRequest) (convergence.PerCapitaRequest, error) {
	pop, err := req.Population.Table("")
	if err != nil {
		return convergence.PerCapitaRequest{}, fmt.Errorf("%w: population: %v", allocation.ErrConfiguration, err)
	}
	emis, err := req.Emissions.Table(req.EmissionCategory)
	if err != nil {
		return convergence.PerCapitaRequest{}, fmt.Errorf("%w: emissions: %v", allocation.ErrConfiguration, err)
	}

	return convergence.PerCapitaRequest{
		Population:          pop,
		Emissions:           emis,
		FirstAllocationYear: req.FirstAllocationYear,
		ConvergenceYear:     req.ConvergenceYear,
		EmissionCategory:    req.EmissionCategory,
	}, nil
}

func (s *AllocatorService) buildCumulativeRequest(req PathwayAllocationRequest) (convergence.CumulativeRequest, error) {
	pop, err := req.Population.Table("")
	if err != nil {
		return convergence.CumulativeRequest{}, fmt.Errorf("%w: population: %v", allocation.ErrConfiguration, err)
	}
	emis, err := req.Emissions.Table(req.EmissionCategory)
	if err != nil {
		return convergence.CumulativeRequest{}, fmt.Errorf("%w: emissions: %v", allocation.ErrConfiguration, err)
	}
	world, err := req.WorldScenario.Table(req.EmissionCategory)
	if err != nil {
		return convergence.CumulativeRequest{}, fmt.Errorf("%w: world_scenario: %v", allocation.ErrConfiguration, err)
	}

	out := convergence.NewCumulativeRequest(pop, emis, world, req.FirstAllocationYear, req.EmissionCategory)
	out.Weights = allocation.Weights{
		Responsibility: req.ResponsibilityWeight,
		Capability:     req.CapabilityWeight,
	}
	out.HistoricalResponsibilityYear = s.defaults.HistoricalResponsibilityYear
	out.MaxGiniAdjustment = s.defaults.MaxGiniAdjustment
	out.MaxConvergenceSpeed = s.defaults.MaxConvergenceSpeed
	out.Gini = req.Gini
	out.IncomeFloor = req.IncomeFloor

	if req.GDP != nil {
		if out.GDP, err = req.GDP.Table(""); err != nil {
			return convergence.CumulativeRequest{}, fmt.Errorf("%w: gdp: %v", allocation.ErrConfiguration, err)
		}
	}

	if req.HistoricalResponsibilityYear != nil {
		out.HistoricalResponsibilityYear = *req.HistoricalResponsibilityYear
	}
	if req.ResponsibilityPerCapita != nil {
		out.ResponsibilityPerCapita = *req.ResponsibilityPerCapita
	}
	if req.ResponsibilityExponent != nil {
		out.ResponsibilityExponent = *req.ResponsibilityExponent
	}
	if req.ResponsibilityForm != "" {
		out.ResponsibilityForm = allocation.TransformForm(req.ResponsibilityForm)
	}
	if req.CapabilityPerCapita != nil {
		out.CapabilityPerCapita = *req.CapabilityPerCapita
	}
	if req.CapabilityExponent != nil {
		out.CapabilityExponent = *req.CapabilityExponent
	}
	if req.CapabilityForm != "" {
		out.CapabilityForm = allocation.TransformForm(req.CapabilityForm)
	}
	if req.MaxGiniAdjustment != nil {
		out.MaxGiniAdjustment = *req.MaxGiniAdjustment
	}
	if req.NoDeviationConstraint {
		out.MaxDeviationSigma = nil
	} else if req.MaxDeviationSigma != nil {
		out.MaxDeviationSigma = req.MaxDeviationSigma
	}
	if req.Strict != nil {
		out.Strict = *req.Strict
	}
	if req.MaxConvergenceSpeed != nil {
		out.MaxConvergenceSpeed = *req.MaxConvergenceSpeed
	}

	return out, nil
}
