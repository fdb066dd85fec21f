// Package di provides dependency injection wiring and initialization.
package di

import (
	"github.com/aristath/tailrisk/internal/clients/pricefiles"
	"github.com/aristath/tailrisk/internal/clients/r2"
	"github.com/aristath/tailrisk/internal/database"
	"github.com/aristath/tailrisk/internal/modules/calculations"
	"github.com/aristath/tailrisk/internal/modules/comparison"
	"github.com/aristath/tailrisk/internal/modules/tailrisk"
	tailriskhandlers "github.com/aristath/tailrisk/internal/modules/tailrisk/handlers"
	"github.com/aristath/tailrisk/internal/scheduler"
)

// Container holds all dependencies for the application.
// It is created by Wire and handed to the server and main.
type Container struct {
	// Databases
	CacheDB *database.DB

	// Clients
	PriceFiles *pricefiles.Loader // nil when RETURNS_DIR is not configured
	SummaryR2  *r2.R2Client       // nil when summary upload is not configured

	// Services
	Engine       *tailrisk.Engine
	FitCache     *calculations.FitCache
	Fitter       tailrisk.Fitter
	Evictor      *calculations.StaleFitEvictor
	Coordinator  *comparison.Coordinator
	SummaryStore *comparison.Store

	// HTTP
	TailRiskHandler *tailriskhandlers.Handler

	// Background jobs
	Scheduler *scheduler.Scheduler
}

// JobInstances holds every registered job so they can be triggered manually
type JobInstances struct {
	Summary        *scheduler.SummaryJob // nil when RETURNS_DIR is not configured
	CachePurge     *scheduler.CachePurgeJob
	WALCheckpoints *scheduler.CheckWALCheckpointsJob
}

// All returns the registered jobs, skipping unconfigured ones
func (j *JobInstances) All() []scheduler.Job {
	var jobs []scheduler.Job
	if j.Summary != nil {
		jobs = append(jobs, j.Summary)
	}
	if j.CachePurge != nil {
		jobs = append(jobs, j.CachePurge)
	}
	if j.WALCheckpoints != nil {
		jobs = append(jobs, j.WALCheckpoints)
	}
	return jobs
}

// Close releases the container's databases
func (c *Container) Close() error {
	if c.CacheDB != nil {
		return c.CacheDB.Close()
	}
	return nil
}
