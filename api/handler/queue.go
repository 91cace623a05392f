package handler

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/use-agent/prerender/config"
	"github.com/use-agent/prerender/models"
	"github.com/use-agent/prerender/prerender"
	"github.com/use-agent/prerender/webhook"
)

// Queue runs API-submitted jobs one at a time on a single worker, so at
// most one browser session is alive per server.
type Queue struct {
	renderer  *prerender.Renderer
	retention time.Duration
	pending   chan *queuedJob
	busy      atomic.Bool

	// records holds *models.RenderRecord snapshots keyed by job id. A record
	// is never mutated after Store; updates store a fresh copy.
	records sync.Map

	notify func(url, secret string, ev *webhook.Event)
}

type queuedJob struct {
	id            string
	job           *prerender.Job
	webhookURL    string
	webhookSecret string
}

// NewQueue creates a queue with room for cfg.Size waiting jobs.
func NewQueue(r *prerender.Renderer, cfg config.QueueConfig) *Queue {
	size := cfg.Size
	if size <= 0 {
		size = 1
	}
	retention := cfg.Retention
	if retention <= 0 {
		retention = time.Hour
	}
	return &Queue{
		renderer:  r,
		retention: retention,
		pending:   make(chan *queuedJob, size),
		notify:    webhook.DeliverAsync,
	}
}

// Run processes jobs until ctx is done. Finished records older than the
// retention window are evicted every five minutes.
func (q *Queue) Run(ctx context.Context) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			q.evict(now)
		case qj := <-q.pending:
			q.process(ctx, qj)
		}
	}
}

// Submit enqueues job under id without blocking. It fails with QUEUE_FULL
// when every slot is taken.
func (q *Queue) Submit(id string, job *prerender.Job, webhookURL, webhookSecret string) (*models.RenderRecord, error) {
	now := time.Now()
	rec := &models.RenderRecord{
		ID:          id,
		Status:      models.JobQueued,
		Destination: job.DestinationDir(),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	q.records.Store(id, rec)

	select {
	case q.pending <- &queuedJob{id: id, job: job, webhookURL: webhookURL, webhookSecret: webhookSecret}:
		return rec, nil
	default:
		q.records.Delete(id)
		return nil, models.NewPrerenderError(models.ErrCodeQueueFull, "render queue is full, retry later", nil)
	}
}

// Get returns the latest snapshot of the job record.
func (q *Queue) Get(id string) (*models.RenderRecord, bool) {
	v, ok := q.records.Load(id)
	if !ok {
		return nil, false
	}
	return v.(*models.RenderRecord), true
}

// Stats reports queue occupancy.
func (q *Queue) Stats() models.QueueStats {
	return models.QueueStats{
		Capacity: cap(q.pending),
		Waiting:  len(q.pending),
		Busy:     q.busy.Load(),
	}
}

func (q *Queue) process(ctx context.Context, qj *queuedJob) {
	q.busy.Store(true)
	defer q.busy.Store(false)

	q.update(qj.id, func(r *models.RenderRecord) { r.Status = models.JobProcessing })
	slog.Info("render job started", "id", qj.id, "routes", len(qj.job.Routes()))

	start := time.Now()
	report, err := q.renderer.Render(ctx, qj.job)

	rec := q.update(qj.id, func(r *models.RenderRecord) {
		r.Report = report
		if err != nil {
			r.Status = models.JobFailed
			r.Error = models.DetailOf(err)
		} else {
			r.Status = models.JobCompleted
		}
	})

	if err != nil {
		slog.Warn("render job failed", "id", qj.id, "error", err, "ms", time.Since(start).Milliseconds())
	} else {
		slog.Info("render job finished",
			"id", qj.id,
			"rendered", report.Rendered,
			"skipped", report.Skipped,
			"ms", time.Since(start).Milliseconds(),
		)
	}

	if qj.webhookURL != "" && rec != nil {
		eventType := webhook.RenderCompleted
		if rec.Status == models.JobFailed {
			eventType = webhook.RenderFailed
		}
		q.notify(qj.webhookURL, qj.webhookSecret, webhook.NewEvent(eventType, qj.id, rec))
	}
}

// update applies fn to a copy of the record and stores the copy.
func (q *Queue) update(id string, fn func(*models.RenderRecord)) *models.RenderRecord {
	cur, ok := q.Get(id)
	if !ok {
		return nil
	}
	next := *cur
	fn(&next)
	next.UpdatedAt = time.Now()
	q.records.Store(id, &next)
	return &next
}

func (q *Queue) evict(now time.Time) {
	cutoff := now.Add(-q.retention)
	q.records.Range(func(key, value any) bool {
		rec := value.(*models.RenderRecord)
		if rec.Finished() && rec.CreatedAt.Before(cutoff) {
			q.records.Delete(key)
		}
		return true
	})
}
