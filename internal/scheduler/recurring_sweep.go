package scheduler

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/fairshares/internal/modules/results"
	"github.com/aristath/fairshares/internal/services"
)

// RecurringSweepConfig holds dependencies for the recurring sweep job
type RecurringSweepConfig struct {
	Repo      *results.Repository
	Allocator *services.AllocatorService
	Log       zerolog.Logger
}

// RecurringSweepJob replays every stored recurring allocation, refreshing its
// result in place. Runs that fail are marked failed and the sweep continues.
type RecurringSweepJob struct {
	repo      *results.Repository
	allocator *services.AllocatorService
	log       zerolog.Logger
}

// NewRecurringSweepJob creates a new recurring sweep job
func NewRecurringSweepJob(cfg RecurringSweepConfig) *RecurringSweepJob {
	return &RecurringSweepJob{
		repo:      cfg.Repo,
		allocator: cfg.Allocator,
		log:       cfg.Log.With().Str("job", "recurring_sweep").Logger(),
	}
}

// Name returns the job name
func (j *RecurringSweepJob) Name() string {
	return "recurring_sweep"
}

// Run replays all recurring allocations
func (j *RecurringSweepJob) Run() error {
	records, err := j.repo.ListRecurring()
	if err != nil {
		return fmt.Errorf("failed to list recurring allocations: %w", err)
	}
	if len(records) == 0 {
		j.log.Debug().Msg("No recurring allocations to sweep")
		return nil
	}

	var failed int
	for _, rec := range records {
		if err := j.allocator.Replay(rec); err != nil {
			failed++
			j.log.Error().
				Err(err).
				Str("uuid", rec.UUID).
				Msg("Failed to store replay outcome")
		}
	}

	j.log.Info().
		Int("total", len(records)).
		Int("storage_failures", failed).
		Msg("Recurring sweep completed")

	if failed > 0 {
		return fmt.Errorf("%d of %d recurring runs could not be stored", failed, len(records))
	}
	return nil
}
