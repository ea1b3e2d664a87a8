// Package work provides a bounded worker pool for background job
// execution. Jobs run concurrently up to the pool size; one job's failure
// or panic never affects the others.
package work

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// JobTimeout is the maximum duration a job can run before being cancelled.
const JobTimeout = 7 * time.Minute

// Job is one unit of background work.
type Job struct {
	ID      string
	Name    string
	Execute func(ctx context.Context) error
}

// Result records a finished job.
type Result struct {
	ID       string
	Name     string
	Err      error
	Duration time.Duration
}

// Pool executes jobs with bounded concurrency.
type Pool struct {
	workers int
	timeout time.Duration
	log     zerolog.Logger
}

func NewPool(workers int, log zerolog.Logger) *Pool {
	if workers < 1 {
		workers = 1
	}
	return &Pool{
		workers: workers,
		timeout: JobTimeout,
		log:     log.With().Str("component", "work_pool").Logger(),
	}
}

// Submit builds a job with a fresh id.
func Submit(name string, fn func(ctx context.Context) error) Job {
	return Job{
		ID:      uuid.NewString(),
		Name:    name,
		Execute: fn,
	}
}

// Run executes all jobs and blocks until they finish or ctx is cancelled.
// Results are returned in input order; a failed job is reported in its
// Result rather than aborting the batch.
func (p *Pool) Run(ctx context.Context, jobs []Job) []Result {
	results := make([]Result, len(jobs))
	sem := make(chan struct{}, p.workers)
	var wg sync.WaitGroup

	for i, job := range jobs {
		select {
		case <-ctx.Done():
			for j := i; j < len(jobs); j++ {
				results[j] = Result{ID: jobs[j].ID, Name: jobs[j].Name, Err: ctx.Err()}
			}
			wg.Wait()
			return results
		case sem <- struct{}{}:
		}

		wg.Add(1)
		go func(i int, job Job) {
			defer wg.Done()
			defer func() { <-sem }()
			results[i] = p.runOne(ctx, job)
		}(i, job)
	}

	wg.Wait()
	return results
}

func (p *Pool) runOne(ctx context.Context, job Job) Result {
	start := time.Now()

	jobCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	err := p.execute(jobCtx, job)
	result := Result{ID: job.ID, Name: job.Name, Err: err, Duration: time.Since(start)}

	if err != nil {
		p.log.Error().Str("job", job.Name).Str("id", job.ID).Err(err).Msg("Job failed")
	} else {
		p.log.Debug().Str("job", job.Name).Dur("duration_ms", result.Duration).Msg("Job completed")
	}
	return result
}

// execute isolates panics so one misbehaving job cannot take down the
// process or the rest of the batch.
func (p *Pool) execute(ctx context.Context, job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job %s panicked: %v", job.Name, r)
		}
	}()
	return job.Execute(ctx)
}
