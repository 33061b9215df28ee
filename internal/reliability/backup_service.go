// Package reliability keeps the results database healthy: scheduled backups
// with rotation and periodic storage maintenance.
package reliability

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/fairshares/internal/database"
)

// backupRetentionDays is how long daily backups are kept before rotation
const backupRetentionDays = 30

// BackupService creates verified daily backups of the results database
type BackupService struct {
	db        *database.DB
	backupDir string
	log       zerolog.Logger
}

// NewBackupService creates a new backup service
func NewBackupService(db *database.DB, backupDir string, log zerolog.Logger) *BackupService {
	return &BackupService{
		db:        db,
		backupDir: backupDir,
		log:       log.With().Str("service", "backup").Logger(),
	}
}

// DailyBackup writes a dated backup of the results database, verifies it, and
// rotates backups older than the retention window.
func (s *BackupService) DailyBackup() error {
	start := time.Now()

	dailyDir := filepath.Join(s.backupDir, "daily")
	if err := os.MkdirAll(dailyDir, 0755); err != nil {
		return fmt.Errorf("failed to create backup directory: %w", err)
	}

	date := time.Now().Format("2006-01-02")
	backupPath := filepath.Join(dailyDir, fmt.Sprintf("%s_%s.db", s.db.Name(), date))

	if err := s.backupTo(backupPath); err != nil {
		return fmt.Errorf("failed to back up %s: %w", s.db.Name(), err)
	}

	if err := s.verifyBackup(backupPath); err != nil {
		os.Remove(backupPath)
		return fmt.Errorf("backup verification failed: %w", err)
	}

	if err := s.rotate(dailyDir); err != nil {
		s.log.Error().Err(err).Msg("Failed to rotate old backups")
	}

	s.log.Info().
		Dur("duration_ms", time.Since(start)).
		Str("backup_path", backupPath).
		Msg("Daily backup completed")

	return nil
}

// backupTo writes an atomic copy of the database with VACUUM INTO. The copy
// carries no WAL file and comes out defragmented.
func (s *BackupService) backupTo(backupPath string) error {
	// VACUUM INTO refuses to overwrite
	if _, err := os.Stat(backupPath); err == nil {
		if err := os.Remove(backupPath); err != nil {
			return fmt.Errorf("failed to remove stale backup: %w", err)
		}
	}

	if _, err := s.db.Exec(fmt.Sprintf("VACUUM INTO '%s'", backupPath)); err != nil {
		return fmt.Errorf("VACUUM INTO failed: %w", err)
	}

	info, err := os.Stat(backupPath)
	if err != nil {
		return fmt.Errorf("failed to stat backup: %w", err)
	}
	s.log.Debug().
		Str("backup_path", backupPath).
		Int64("size_bytes", info.Size()).
		Msg("Backup created")

	return nil
}

// verifyBackup opens the backup and runs an integrity check
func (s *BackupService) verifyBackup(backupPath string) error {
	backupDB, err := sql.Open("sqlite", backupPath)
	if err != nil {
		return fmt.Errorf("failed to open backup: %w", err)
	}
	defer backupDB.Close()

	var result string
	if err := backupDB.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check query failed: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("integrity check failed: %s", result)
	}
	return nil
}

// rotate deletes backups past the retention window
func (s *BackupService) rotate(dailyDir string) error {
	cutoff := time.Now().AddDate(0, 0, -backupRetentionDays)

	entries, err := os.ReadDir(dailyDir)
	if err != nil {
		return fmt.Errorf("failed to read backup directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			path := filepath.Join(dailyDir, entry.Name())
			if err := os.Remove(path); err != nil {
				s.log.Warn().Str("path", path).Err(err).Msg("Failed to delete old backup")
			} else {
				s.log.Debug().Str("path", path).Msg("Deleted old backup")
			}
		}
	}
	return nil
}

// MostRecentBackup returns the path of the newest verified backup, or an
// error when none exists.
func (s *BackupService) MostRecentBackup() (string, error) {
	dailyDir := filepath.Join(s.backupDir, "daily")

	entries, err := os.ReadDir(dailyDir)
	if err != nil {
		return "", fmt.Errorf("failed to read backup directory: %w", err)
	}

	var newest string
	var newestTime time.Time
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(newestTime) {
			newest = filepath.Join(dailyDir, entry.Name())
			newestTime = info.ModTime()
		}
	}
	if newest == "" {
		return "", fmt.Errorf("no backup found for %s", s.db.Name())
	}
	return newest, nil
}

// BackupJob wraps BackupService.DailyBackup for the scheduler
type BackupJob struct {
	service *BackupService
}

// NewBackupJob creates a new backup job
func NewBackupJob(service *BackupService) *BackupJob {
	return &BackupJob{service: service}
}

// Run executes the daily backup
func (j *BackupJob) Run() error {
	return j.service.DailyBackup()
}

// Name returns the job name for the scheduler
func (j *BackupJob) Name() string {
	return "daily_backup"
}
