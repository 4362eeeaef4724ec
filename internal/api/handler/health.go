package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os/exec"
	"runtime"
	"time"

	"github.com/telegrambots/mediabots/internal/domain"
	"github.com/telegrambots/mediabots/internal/repository"
)

var startTime = time.Now()

// recentRunsLimit caps the runs listed by Stats.
const recentRunsLimit = 20

// ActiveCounter reports how many background tasks are running.
type ActiveCounter interface {
	Active() int
}

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	runs     repository.RunRepository
	tasks    ActiveCounter
	tools    []string
	workDir  string
	lookPath func(string) (string, error)
	logger   *slog.Logger
}

// NewHealthHandler creates a new health handler. tools are the external
// binaries that must resolve for the bot to be ready.
func NewHealthHandler(runs repository.RunRepository, tasks ActiveCounter, tools []string, workDir string, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		runs:     runs,
		tasks:    tasks,
		tools:    tools,
		workDir:  workDir,
		lookPath: exec.LookPath,
		logger:   logger,
	}
}

// HealthResponse is the JSON response for health checks.
type HealthResponse struct {
	Status    string               `json:"status"`
	Timestamp string               `json:"timestamp"`
	Runs      *repository.RunStats `json:"runs,omitempty"`
	Missing   []string             `json:"missing_tools,omitempty"`
}

// Live handles GET /health - liveness probe.
func (h *HealthHandler) Live(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "ok",
		Timestamp: now(),
	})
}

// Ready handles GET /ready - readiness probe.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	var missing []string
	for _, tool := range h.tools {
		if _, err := h.lookPath(tool); err != nil {
			missing = append(missing, tool)
		}
	}

	stats, err := h.runs.Stats(ctx)
	if err != nil || len(missing) > 0 {
		if err != nil {
			h.logger.Warn("run stats unavailable", "error", err)
		}
		writeJSON(w, http.StatusServiceUnavailable, HealthResponse{
			Status:    "error",
			Timestamp: now(),
			Missing:   missing,
		})
		return
	}

	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "ok",
		Timestamp: now(),
		Runs:      stats,
	})
}

// SystemStats contains process and run statistics.
type SystemStats struct {
	Uptime         int64                `json:"uptime_seconds"`
	UptimeHuman    string               `json:"uptime_human"`
	MemAllocMB     int64                `json:"mem_alloc_mb"`
	MemSysMB       int64                `json:"mem_sys_mb"`
	NumGoroutines  int                  `json:"num_goroutines"`
	NumCPU         int                  `json:"num_cpu"`
	ActiveTasks    int                  `json:"active_tasks"`
	WorkDir        string               `json:"work_dir"`
	DiskFreeBytes  int64                `json:"disk_free_bytes,omitempty"`
	DiskTotalBytes int64                `json:"disk_total_bytes,omitempty"`
	Runs           *repository.RunStats `json:"runs,omitempty"`
	RecentRuns     []*domain.Run        `json:"recent_runs"`
}

// Stats handles GET /api/v1/stats - system statistics.
func (h *HealthHandler) Stats(w http.ResponseWriter, r *http.Request) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	uptime := time.Since(startTime)
	stats := SystemStats{
		Uptime:        int64(uptime.Seconds()),
		UptimeHuman:   formatUptime(uptime),
		MemAllocMB:    int64(m.Alloc / 1024 / 1024),
		MemSysMB:      int64(m.Sys / 1024 / 1024),
		NumGoroutines: runtime.NumGoroutine(),
		NumCPU:        runtime.NumCPU(),
		WorkDir:       h.workDir,
		RecentRuns:    []*domain.Run{},
	}
	if h.tasks != nil {
		stats.ActiveTasks = h.tasks.Active()
	}
	if total, free, ok := diskStats(h.workDir); ok {
		stats.DiskTotalBytes = total
		stats.DiskFreeBytes = free
	}

	runStats, err := h.runs.Stats(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	stats.Runs = runStats

	recent, err := h.runs.List(r.Context(), recentRunsLimit)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if recent != nil {
		stats.RecentRuns = recent
	}

	writeJSON(w, http.StatusOK, stats)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}

func formatUptime(d time.Duration) string {
	days := int(d.Hours() / 24)
	hours := int(d.Hours()) % 24
	mins := int(d.Minutes()) % 60

	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm", days, hours, mins)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, mins)
	}
	return fmt.Sprintf("%dm", mins)
}
