package generate

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dgallion1/reportedit/internal/chunker"
	"github.com/dgallion1/reportedit/internal/config"
	"github.com/dgallion1/reportedit/internal/llm"
)

// Orchestrator queues generation jobs and runs them on a worker pool.
type Orchestrator struct {
	jobs    *JobStore
	queue   chan *Job
	model   llm.Completer
	creator Creator
	log     *slog.Logger
	cfg     config.Config

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewOrchestrator(cfg config.Config, model llm.Completer, creator Creator, log *slog.Logger) *Orchestrator {
	return &Orchestrator{
		jobs:    NewJobStore(cfg.JobTTL),
		queue:   make(chan *Job, cfg.MaxQueueSize),
		model:   model,
		creator: creator,
		log:     log,
		cfg:     cfg,
	}
}

func (o *Orchestrator) newWorker() *Worker {
	w := NewWorker(o.model, o.creator, o.log, chunker.Config{
		ChunkSize:    o.cfg.ChunkSize,
		ChunkOverlap: o.cfg.ChunkOverlap,
	}, o.cfg.ContextTokens, o.cfg.MaxSectionConcurrency)
	w.pdfFallback = o.cfg.PDFFallbackPdftotext
	return w
}

// Start launches the workers and the job cleanup loop.
func (o *Orchestrator) Start(ctx context.Context) {
	workerCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel

	for range max(o.cfg.WorkerCount, 1) {
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			w := o.newWorker()
			for {
				select {
				case <-workerCtx.Done():
					return
				case job, ok := <-o.queue:
					if !ok {
						return
					}
					w.Process(workerCtx, job)
				}
			}
		}()
	}

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-workerCtx.Done():
				return
			case <-ticker.C:
				o.jobs.Cleanup()
			}
		}
	}()
}

// Stop cancels running jobs and waits for the workers to exit.
func (o *Orchestrator) Stop() {
	if o.cancel != nil {
		o.cancel()
	}
	o.wg.Wait()
}

// Submit queues job. A full queue fails the job immediately.
func (o *Orchestrator) Submit(job *Job) error {
	o.jobs.Put(job)
	select {
	case o.queue <- job:
		o.log.Info("job queued", "job_id", job.ID, "sections", len(job.req.Sections), "uploads", len(job.req.Uploads))
		return nil
	default:
		job.SetStatus(StatusFailed, "queue_full")
		return fmt.Errorf("job queue is full (%d)", o.cfg.MaxQueueSize)
	}
}

func (o *Orchestrator) GetJob(id string) *Job {
	return o.jobs.Get(id)
}

func (o *Orchestrator) QueueDepth() int {
	return len(o.queue)
}
