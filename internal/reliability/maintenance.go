package reliability

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/fairshares/internal/database"
)

// maintenanceTimeout bounds the integrity check so a corrupt database cannot
// stall the scheduler.
const maintenanceTimeout = 5 * time.Minute

// MaintenanceJob keeps the results database compact: integrity check, WAL
// checkpoint, vacuum.
type MaintenanceJob struct {
	db  *database.DB
	log zerolog.Logger
}

// NewMaintenanceJob creates a new maintenance job
func NewMaintenanceJob(db *database.DB, log zerolog.Logger) *MaintenanceJob {
	return &MaintenanceJob{
		db:  db,
		log: log.With().Str("job", "db_maintenance").Logger(),
	}
}

// Name returns the job name for the scheduler
func (j *MaintenanceJob) Name() string {
	return "db_maintenance"
}

// Run executes the maintenance pass
func (j *MaintenanceJob) Run() error {
	start := time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), maintenanceTimeout)
	defer cancel()

	if err := j.db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("integrity check failed for %s: %w", j.db.Name(), err)
	}

	if err := j.db.WALCheckpoint("TRUNCATE"); err != nil {
		j.log.Warn().Err(err).Msg("WAL checkpoint failed")
	}

	if err := j.db.Vacuum(); err != nil {
		j.log.Warn().Err(err).Msg("VACUUM failed")
	}

	if stats, err := j.db.GetStats(); err == nil {
		j.log.Info().
			Int64("size_bytes", stats.SizeBytes).
			Dur("duration_ms", time.Since(start)).
			Msg("Database maintenance completed")
	} else {
		j.log.Info().
			Dur("duration_ms", time.Since(start)).
			Msg("Database maintenance completed")
	}

	return nil
}
