// Package results persists allocation runs so they can be retrieved later and
// re-run by the recurring sweep.
package results

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/aristath/fairshares/internal/modules/allocation"
)

// Run statuses
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

const schema = `
CREATE TABLE IF NOT EXISTS allocations (
	uuid              TEXT PRIMARY KEY,
	approach          TEXT NOT NULL,
	emission_category TEXT NOT NULL DEFAULT '',
	status            TEXT NOT NULL,
	error             TEXT NOT NULL DEFAULT '',
	parameters        BLOB,
	shares            BLOB,
	warnings          BLOB,
	request           BLOB,
	recurring         INTEGER NOT NULL DEFAULT 0,
	created_at        TIMESTAMP NOT NULL,
	updated_at        TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_allocations_recurring ON allocations(recurring);
CREATE INDEX IF NOT EXISTS idx_allocations_created ON allocations(created_at);
`

// Record is a stored allocation run. Shares is nil for failed runs. Request
// holds the original request body so recurring runs can be replayed.
type Record struct {
	UUID             string
	Approach         string
	EmissionCategory string
	Status           string
	Error            string
	Parameters       map[string]any
	Shares           map[string]map[int]float64
	Warnings         map[string]string
	Request          []byte
	Recurring        bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// ShareTable rebuilds the allocation share table from the stored shares
func (r *Record) ShareTable() *allocation.ShareTable {
	if r.Shares == nil {
		return nil
	}
	return allocation.FromMap(r.Shares)
}

// Summary is a listing row without the share payload
type Summary struct {
	UUID             string    `json:"uuid"`
	Approach         string    `json:"approach"`
	EmissionCategory string    `json:"emission_category"`
	Status           string    `json:"status"`
	Recurring        bool      `json:"recurring"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Repository handles CRUD operations for allocation runs
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new results repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repository", "results").Logger(),
	}
}

// Init creates the schema if it does not exist
func (r *Repository) Init() error {
	if _, err := r.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize results schema: %w", err)
	}
	return nil
}

// Save stores a new allocation run and returns its uuid
func (r *Repository) Save(rec Record) (string, error) {
	if rec.UUID == "" {
		rec.UUID = uuid.New().String()
	}
	now := time.Now().UTC()

	params, err := msgpack.Marshal(rec.Parameters)
	if err != nil {
		return "", fmt.Errorf("failed to encode parameters: %w", err)
	}
	var shares []byte
	if rec.Shares != nil {
		shares, err = msgpack.Marshal(rec.Shares)
		if err != nil {
			return "", fmt.Errorf("failed to encode shares: %w", err)
		}
	}
	var warnings []byte
	if rec.Warnings != nil {
		warnings, err = msgpack.Marshal(rec.Warnings)
		if err != nil {
			return "", fmt.Errorf("failed to encode warnings: %w", err)
		}
	}

	_, err = r.db.Exec(`
		INSERT INTO allocations
		(uuid, approach, emission_category, status, error, parameters, shares,
		 warnings, request, recurring, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		rec.UUID,
		rec.Approach,
		rec.EmissionCategory,
		rec.Status,
		rec.Error,
		params,
		shares,
		warnings,
		rec.Request,
		rec.Recurring,
		now,
		now,
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert allocation run: %w", err)
	}

	r.log.Debug().
		Str("uuid", rec.UUID).
		Str("approach", rec.Approach).
		Str("status", rec.Status).
		Msg("Allocation run saved")

	return rec.UUID, nil
}

// Get retrieves a single run by uuid. Returns (nil, nil) when not found.
func (r *Repository) Get(id string) (*Record, error) {
	row := r.db.QueryRow(`
		SELECT uuid, approach, emission_category, status, error, parameters,
		       shares, warnings, request, recurring, created_at, updated_at
		FROM allocations
		WHERE uuid = ?
	`, id)

	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load allocation run %s: %w", id, err)
	}
	return rec, nil
}

// List returns run summaries, newest first. A non-positive limit returns all.
func (r *Repository) List(limit int) ([]Summary, error) {
	query := `
		SELECT uuid, approach, emission_category, status, recurring, created_at, updated_at
		FROM allocations
		ORDER BY created_at DESC
	`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query allocation runs: %w", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var s Summary
		if err := rows.Scan(&s.UUID, &s.Approach, &s.EmissionCategory, &s.Status,
			&s.Recurring, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan allocation summary: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// ListRecurring returns the full records of all recurring runs
func (r *Repository) ListRecurring() ([]Record, error) {
	rows, err := r.db.Query(`
		SELECT uuid, approach, emission_category, status, error, parameters,
		       shares, warnings, request, recurring, created_at, updated_at
		FROM allocations
		WHERE recurring = 1
		ORDER BY created_at ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query recurring runs: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan recurring run: %w", err)
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

// UpdateResult replaces the stored outcome of an existing run, keeping the
// request and recurring flag intact. Used by the sweep after a replay.
func (r *Repository) UpdateResult(id string, res *allocation.Result, runErr error) error {
	now := time.Now().UTC()

	status := StatusCompleted
	errMsg := ""
	var params, shares, warnings []byte
	if runErr != nil {
		status = StatusFailed
		errMsg = runErr.Error()
	} else {
		var err error
		params, err = msgpack.Marshal(res.Parameters)
		if err != nil {
			return fmt.Errorf("failed to encode parameters: %w", err)
		}
		shares, err = msgpack.Marshal(res.Shares.Map())
		if err != nil {
			return fmt.Errorf("failed to encode shares: %w", err)
		}
		if res.Warnings != nil {
			warnings, err = msgpack.Marshal(res.Warnings)
			if err != nil {
				return fmt.Errorf("failed to encode warnings: %w", err)
			}
		}
	}

	result, err := r.db.Exec(`
		UPDATE allocations
		SET status = ?, error = ?, parameters = ?, shares = ?, warnings = ?, updated_at = ?
		WHERE uuid = ?
	`, status, errMsg, params, shares, warnings, now, id)
	if err != nil {
		return fmt.Errorf("failed to update allocation run %s: %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("allocation run %s not found", id)
	}
	return nil
}

// Delete removes a run by uuid
func (r *Repository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM allocations WHERE uuid = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete allocation run %s: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("allocation run %s not found", id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRecord(row scannable) (*Record, error) {
	var rec Record
	var params, shares, warnings []byte

	err := row.Scan(
		&rec.UUID,
		&rec.Approach,
		&rec.EmissionCategory,
		&rec.Status,
		&rec.Error,
		&params,
		&shares,
		&warnings,
		&rec.Request,
		&rec.Recurring,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(params) > 0 {
		if err := msgpack.Unmarshal(params, &rec.Parameters); err != nil {
			return nil, fmt.Errorf("failed to decode parameters: %w", err)
		}
	}
	if len(shares) > 0 {
		if err := msgpack.Unmarshal(shares, &rec.Shares); err != nil {
			return nil, fmt.Errorf("failed to decode shares: %w", err)
		}
	}
	if len(warnings) > 0 {
		if err := msgpack.Unmarshal(warnings, &rec.Warnings); err != nil {
			return nil, fmt.Errorf("failed to decode warnings: %w", err)
		}
	}
	return &rec, nil
}
