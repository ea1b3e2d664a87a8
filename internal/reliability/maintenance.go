package reliability

import (
	"context"
	"fmt"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/fundscope/fundscope/internal/database"
)

// MaintenanceService runs the daily database upkeep: integrity checks,
// WAL checkpoints and a disk-space guard.
type MaintenanceService struct {
	databases map[string]*database.DB
	dataDir   string
	log       zerolog.Logger
}

func NewMaintenanceService(databases map[string]*database.DB, dataDir string, log zerolog.Logger) *MaintenanceService {
	return &MaintenanceService{
		databases: databases,
		dataDir:   dataDir,
		log:       log.With().Str("service", "maintenance").Logger(),
	}
}

// RunDaily executes the maintenance pass. A corrupt database or critically
// low disk space is an error; a failed checkpoint is only logged.
func (s *MaintenanceService) RunDaily() error {
	s.log.Info().Msg("Starting daily maintenance")
	startTime := time.Now()

	for name, db := range s.databases {
		if err := db.HealthCheck(context.Background()); err != nil {
			return fmt.Errorf("integrity check failed for %s: %w", name, err)
		}
	}

	for name, db := range s.databases {
		if err := db.WALCheckpoint(""); err != nil {
			s.log.Warn().Str("database", name).Err(err).Msg("WAL checkpoint failed")
		}
	}

	if err := s.checkDiskSpace(); err != nil {
		return err
	}

	s.log.Info().Dur("duration_ms", time.Since(startTime)).Msg("Daily maintenance completed")
	return nil
}

func (s *MaintenanceService) checkDiskSpace() error {
	stat := syscall.Statfs_t{}
	if err := syscall.Statfs(s.dataDir, &stat); err != nil {
		return fmt.Errorf("failed to stat filesystem: %w", err)
	}

	availableGB := float64(stat.Bavail*uint64(stat.Bsize)) / 1e9
	if availableGB < 0.5 {
		return fmt.Errorf("only %.2f GB free, halting writes", availableGB)
	}
	if availableGB < 5.0 {
		s.log.Warn().Float64("available_gb", availableGB).Msg("Disk space running low")
	}
	return nil
}
