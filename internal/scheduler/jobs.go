package scheduler

import (
	"context"
	"time"

	"github.com/fundscope/fundscope/internal/modules/tracking"
	"github.com/fundscope/fundscope/internal/reliability"
)

// Schedules for the standing jobs. EDGAR publishes new filings during US
// business hours; both fetches run after the daily indexing settles.
const (
	QuarterlyRefreshSchedule    = "30 6 * * *"
	NonQuarterlyRefreshSchedule = "0 7 * * *"
	BackupSchedule              = "0 3 * * 0"
	MaintenanceSchedule         = "0 2 * * *"
)

const jobTimeout = 45 * time.Minute

// QuarterlyRefreshJob re-fetches the tracked funds' 13F filings.
type QuarterlyRefreshJob struct {
	service *tracking.Service
}

func NewQuarterlyRefreshJob(service *tracking.Service) *QuarterlyRefreshJob {
	return &QuarterlyRefreshJob{service: service}
}

func (j *QuarterlyRefreshJob) Name() string { return "quarterly_refresh" }

func (j *QuarterlyRefreshJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()
	_, err := j.service.RefreshQuarterly(ctx)
	return err
}

// NonQuarterlyRefreshJob fetches new 13D/G and Form 4 disclosures.
type NonQuarterlyRefreshJob struct {
	service *tracking.Service
}

func NewNonQuarterlyRefreshJob(service *tracking.Service) *NonQuarterlyRefreshJob {
	return &NonQuarterlyRefreshJob{service: service}
}

func (j *NonQuarterlyRefreshJob) Name() string { return "non_quarterly_refresh" }

func (j *NonQuarterlyRefreshJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()
	_, err := j.service.RefreshNonQuarterly(ctx)
	return err
}

// BackupJob uploads a database archive and rotates old ones.
type BackupJob struct {
	backups       *reliability.BackupService
	retentionDays int
}

func NewBackupJob(backups *reliability.BackupService, retentionDays int) *BackupJob {
	return &BackupJob{backups: backups, retentionDays: retentionDays}
}

func (j *BackupJob) Name() string { return "weekly_backup" }

func (j *BackupJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()
	if err := j.backups.CreateAndUploadBackup(ctx); err != nil {
		return err
	}
	return j.backups.RotateOldBackups(ctx, j.retentionDays)
}

// MaintenanceJob runs the daily database upkeep.
type MaintenanceJob struct {
	maintenance *reliability.MaintenanceService
}

func NewMaintenanceJob(maintenance *reliability.MaintenanceService) *MaintenanceJob {
	return &MaintenanceJob{maintenance: maintenance}
}

func (j *MaintenanceJob) Name() string { return "daily_maintenance" }

func (j *MaintenanceJob) Run() error {
	return j.maintenance.RunDaily()
}
