package inmemory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dvloznov/expense-insights/internal/jobs"
	"github.com/dvloznov/expense-insights/internal/logger"
)

// Queue is an in-memory implementation of job publisher and consumer.
// It uses Go channels for job distribution and is safe for concurrent use.
// Every job gets exactly one attempt.
type Queue struct {
	jobChan   chan *jobs.NarrativeJob
	closeChan chan struct{}
	wg        sync.WaitGroup
	mu        sync.RWMutex
	store     jobs.JobStore
	closed    bool
	workers   int

	cancelMu  sync.Mutex
	running   map[string]context.CancelFunc
	cancelled map[string]bool
}

// NewQueue creates a new in-memory job queue.
// bufferSize determines how many jobs can be queued before PublishNarrative
// blocks; workers is the number of jobs processed concurrently.
func NewQueue(bufferSize, workers int, store jobs.JobStore) *Queue {
	if workers < 1 {
		workers = 1
	}
	return &Queue{
		jobChan:   make(chan *jobs.NarrativeJob, bufferSize),
		closeChan: make(chan struct{}),
		store:     store,
		workers:   workers,
		running:   make(map[string]context.CancelFunc),
		cancelled: make(map[string]bool),
	}
}

// PublishNarrative implements the Publisher interface. The workers receive
// their own copy of job, so the caller may keep reading it after this returns.
func (q *Queue) PublishNarrative(ctx context.Context, job *jobs.NarrativeJob) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return jobs.ErrQueueClosed
	}

	if job.JobID == "" {
		job.JobID = uuid.New().String()
	}
	if job.Status == "" {
		job.Status = jobs.JobStatusPending
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now()
	}

	if err := q.store.SaveJob(ctx, job); err != nil {
		return fmt.Errorf("PublishNarrative: save job: %w", err)
	}

	queued := *job
	select {
	case q.jobChan <- &queued:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-q.closeChan:
		return jobs.ErrQueueClosed
	}
}

// Cancel implements the Publisher interface. A running job has its context
// cancelled; a pending job is marked cancelled and skipped by the workers.
func (q *Queue) Cancel(ctx context.Context, jobID string) error {
	q.cancelMu.Lock()
	defer q.cancelMu.Unlock()

	if cancel, ok := q.running[jobID]; ok {
		q.cancelled[jobID] = true
		cancel()
		return nil
	}

	job, err := q.store.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status.Terminal() {
		return fmt.Errorf("Cancel: %s is %s: %w", jobID, job.Status, jobs.ErrJobFinished)
	}
	q.cancelled[jobID] = true
	return q.store.UpdateJobStatus(ctx, jobID, jobs.JobStatusCancelled, jobs.ErrCancelled.Error())
}

// Start implements the Consumer interface.
func (q *Queue) Start(ctx context.Context, handler jobs.JobHandler) error {
	q.mu.RLock()
	if q.closed {
		q.mu.RUnlock()
		return jobs.ErrQueueClosed
	}
	q.mu.RUnlock()

	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx, handler)
	}
	return nil
}

// worker processes jobs from the queue.
func (q *Queue) worker(ctx context.Context, handler jobs.JobHandler) {
	defer q.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-q.closeChan:
			return
		case job := <-q.jobChan:
			if job == nil {
				return
			}
			q.processJob(ctx, job, handler)
		}
	}
}

// processJob executes a single job once.
func (q *Queue) processJob(ctx context.Context, job *jobs.NarrativeJob, handler jobs.JobHandler) {
	log := logger.FromContext(ctx).With().Str("job_id", job.JobID).Logger()

	q.cancelMu.Lock()
	if q.cancelled[job.JobID] {
		delete(q.cancelled, job.JobID)
		q.cancelMu.Unlock()
		log.Info().Msg("Skipping cancelled job")
		return
	}
	jobCtx, cancel := context.WithCancel(ctx)
	q.running[job.JobID] = cancel
	q.cancelMu.Unlock()
	defer cancel()

	job.Status = jobs.JobStatusRunning
	now := time.Now()
	job.StartedAt = &now
	_ = q.store.SaveJob(ctx, job)

	err := handler(jobCtx, job)
	completedAt := time.Now()

	// The final save happens under cancelMu so a Cancel either flags the
	// job while it is still running or sees its terminal status.
	q.cancelMu.Lock()
	defer q.cancelMu.Unlock()
	delete(q.running, job.JobID)
	wasCancelled := q.cancelled[job.JobID]
	delete(q.cancelled, job.JobID)

	job.CompletedAt = &completedAt

	switch {
	case wasCancelled:
		job.Status = jobs.JobStatusCancelled
		job.Error = jobs.ErrCancelled.Error()
		log.Info().Msg("Job cancelled")
	case err != nil:
		job.Status = jobs.JobStatusFailed
		job.Error = err.Error()
		log.Error().Err(err).Msg("Job failed")
	default:
		job.Status = jobs.JobStatusCompleted
		job.Error = ""
		log.Info().Dur("elapsed", completedAt.Sub(now)).Msg("Job completed")
	}

	_ = q.store.SaveJob(ctx, job)
}

// Stop implements the Consumer interface.
// It stops the queue and waits for all in-flight jobs to complete.
func (q *Queue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.closeChan)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close implements the Publisher interface.
func (q *Queue) Close() error {
	return q.Stop(context.Background())
}

var _ jobs.Publisher = (*Queue)(nil)
var _ jobs.Consumer = (*Queue)(nil)
