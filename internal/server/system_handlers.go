package server

import (
	"encoding/json"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/fundscope/fundscope/internal/database"
)

// SystemHandlers serves process and storage health.
type SystemHandlers struct {
	databases map[string]*database.DB
	dataDir   string
	log       zerolog.Logger
}

func NewSystemHandlers(databases map[string]*database.DB, dataDir string, log zerolog.Logger) *SystemHandlers {
	return &SystemHandlers{
		databases: databases,
		dataDir:   dataDir,
		log:       log.With().Str("component", "system").Logger(),
	}
}

type databaseHealth struct {
	Status string  `json:"status"`
	SizeMB float64 `json:"size_mb"`
	Error  string  `json:"error,omitempty"`
}

type systemHealth struct {
	Status    string                    `json:"status"`
	CPUPct    float64                   `json:"cpu_pct"`
	MemoryPct float64                   `json:"memory_pct"`
	Disk      *diskHealth               `json:"disk,omitempty"`
	Databases map[string]databaseHealth `json:"databases"`
}

type diskHealth struct {
	UsedPct float64 `json:"used_pct"`
	FreeGB  float64 `json:"free_gb"`
}

// HandleHealth reports CPU, memory, disk and per-database integrity.
// Any failing database degrades the overall status.
func (h *SystemHandlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	health := systemHealth{
		Status:    "ok",
		Databases: make(map[string]databaseHealth, len(h.databases)),
	}

	if pcts, err := cpu.PercentWithContext(ctx, 200*time.Millisecond, false); err == nil && len(pcts) > 0 {
		health.CPUPct = pcts[0]
	}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		health.MemoryPct = vm.UsedPercent
	}
	if usage, err := disk.UsageWithContext(ctx, h.dataDir); err == nil {
		health.Disk = &diskHealth{
			UsedPct: usage.UsedPercent,
			FreeGB:  float64(usage.Free) / (1 << 30),
		}
	}

	for name, db := range h.databases {
		entry := databaseHealth{Status: "ok"}
		if info, err := os.Stat(db.Path()); err == nil {
			entry.SizeMB = float64(info.Size()) / (1 << 20)
		}
		if err := db.HealthCheck(ctx); err != nil {
			entry.Status = "failed"
			entry.Error = err.Error()
			health.Status = "degraded"
			h.log.Warn().Err(err).Str("database", name).Msg("Database health check failed")
		}
		health.Databases[name] = entry
	}

	status := http.StatusOK
	if health.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(health)
}
