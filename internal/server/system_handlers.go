package server

import (
	"context"
	"net/http"
	"runtime"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aristath/tailrisk/internal/database"
	"github.com/aristath/tailrisk/internal/scheduler"
)

// SystemHandlers serves system status and manual job triggers
type SystemHandlers struct {
	log     zerolog.Logger
	cacheDB *database.DB
	runner  JobRunner
	jobs    map[string]scheduler.Job
	started time.Time
}

// NewSystemHandlers creates system handlers. Jobs are addressed by their Name.
func NewSystemHandlers(log zerolog.Logger, cacheDB *database.DB, runner JobRunner, jobs []scheduler.Job) *SystemHandlers {
	byName := make(map[string]scheduler.Job, len(jobs))
	for _, job := range jobs {
		if job != nil {
			byName[job.Name()] = job
		}
	}
	return &SystemHandlers{
		log:     log.With().Str("handler", "system").Logger(),
		cacheDB: cacheDB,
		runner:  runner,
		jobs:    byName,
		started: time.Now(),
	}
}

// SystemStatusResponse is the payload of GET /api/system/status
type SystemStatusResponse struct {
	Status        string  `json:"status"`
	UptimeSeconds float64 `json:"uptime_seconds"`
	CPUPercent    float64 `json:"cpu_percent"`
	RAMPercent    float64 `json:"ram_percent"`
	Goroutines    int     `json:"goroutines"`
	CacheDB       string  `json:"cache_db"`
}

// HandleSystemStatus returns process and host statistics
// GET /api/system/status
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	cpuPercent, ramPercent := h.getSystemStats()

	resp := SystemStatusResponse{
		Status:        "ok",
		UptimeSeconds: time.Since(h.started).Seconds(),
		CPUPercent:    cpuPercent,
		RAMPercent:    ramPercent,
		Goroutines:    runtime.NumGoroutine(),
		CacheDB:       "disabled",
	}

	if h.cacheDB != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.cacheDB.QuickCheck(ctx); err != nil {
			resp.Status = "degraded"
			resp.CacheDB = err.Error()
		} else {
			resp.CacheDB = "ok"
		}
	}

	writeJSON(w, http.StatusOK, resp, h.log)
}

// HandleListJobs lists the jobs that can be triggered manually
// GET /api/system/jobs
func (h *SystemHandlers) HandleListJobs(w http.ResponseWriter, r *http.Request) {
	names := make([]string, 0, len(h.jobs))
	for name := range h.jobs {
		names = append(names, name)
	}
	sort.Strings(names)

	writeJSON(w, http.StatusOK, map[string]interface{}{"jobs": names}, h.log)
}

// HandleTriggerJob runs a job immediately and waits for it to finish
// POST /api/system/jobs/{name}
func (h *SystemHandlers) HandleTriggerJob(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	job, ok := h.jobs[name]
	if !ok || h.runner == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"status":  "error",
			"message": "Job " + name + " not registered",
		}, h.log)
		return
	}

	if err := h.runner.RunNow(job); err != nil {
		h.log.Error().Err(err).Str("job", name).Msg("Manual job run failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"status":  "error",
			"message": err.Error(),
		}, h.log)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "success",
		"message": "Job " + name + " completed",
	}, h.log)
}

// getSystemStats calculates CPU and RAM usage percentages over a short window
func (h *SystemHandlers) getSystemStats() (float64, float64) {
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return 0, 0
	}

	cpuAvg := 0.0
	if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}

	return cpuAvg, memStat.UsedPercent
}
