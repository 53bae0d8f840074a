package jobs

import (
	"context"
	"fmt"
	"time"

	"joinguard/internal/config"
	"joinguard/internal/logger"
	"joinguard/internal/repository"
	"joinguard/internal/service"
)

// JobRunner coordinates all scheduled jobs
type JobRunner struct {
	requests repository.JoinRequestRepository
	services *Services
	config   *config.Config
	timeout  time.Duration
}

// Services holds all service dependencies needed by jobs
type Services struct {
	Sweeper  service.SweeperService
	Reporter service.ErrorReporter
}

// NewJobRunner creates a new job runner with all dependencies
func NewJobRunner(requests repository.JoinRequestRepository, services *Services, cfg *config.Config) *JobRunner {
	return &JobRunner{
		requests: requests,
		services: services,
		config:   cfg,
		timeout:  5 * time.Minute,
	}
}

// Config returns the configuration the jobs were built with
func (jr *JobRunner) Config() *config.Config {
	return jr.config
}

// runWithRecovery wraps job execution with panic recovery
func (jr *JobRunner) runWithRecovery(jobName string, jobFunc func(ctx context.Context)) {
	ctx, cancel := context.WithTimeout(context.Background(), jr.timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			logger.Error("Job panicked", "job", jobName, "panic", r)
			if jr.services.Reporter != nil {
				jr.services.Reporter.Report(ctx, service.Incident{Action: jobName, Err: fmt.Errorf("panic: %v", r)})
			}
		}
	}()

	logger.Info("Starting job", "job", jobName)
	jobFunc(ctx)
	logger.Info("Job completed", "job", jobName)
}

// RunAll runs every job once (for manual execution)
func (jr *JobRunner) RunAll() {
	jr.ExpireJoinRequests()
	jr.RecordJoinRequestGauges()
}
