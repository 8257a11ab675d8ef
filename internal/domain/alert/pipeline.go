package alert

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/surveyhos/surveyhos/internal/domain/response"
	"github.com/surveyhos/surveyhos/internal/platform/db"
	"github.com/surveyhos/surveyhos/internal/platform/events"
)

// ScopeFunc runs fn with whatever per-tenant database state the repositories
// expect. Queued jobs outlive their request, so they re-acquire it.
type ScopeFunc func(ctx context.Context, tenantID string, fn func(ctx context.Context) error) error

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithQueue hands submissions to background workers through a bounded queue
// instead of running the alert stage inside the request.
func WithQueue(size, workers int, scope ScopeFunc) PipelineOption {
	return func(p *Pipeline) {
		if size < 1 {
			size = 1
		}
		if workers < 1 {
			workers = 1
		}
		p.queue = make(chan job, size)
		p.workers = workers
		p.scope = scope
	}
}

type job struct {
	tenantID string
	resp     *response.Response
}

// Pipeline scores each recorded response and, for low scores, dispatches the
// alert and publishes an AlertEvent. Nothing it does can fail a submission.
type Pipeline struct {
	dispatcher *Dispatcher
	publisher  events.Publisher
	logger     zerolog.Logger
	now        func() time.Time

	queue   chan job
	workers int
	scope   ScopeFunc
	mu      sync.RWMutex
	closed  bool
	wg      sync.WaitGroup
}

func NewPipeline(d *Dispatcher, pub events.Publisher, logger zerolog.Logger, opts ...PipelineOption) *Pipeline {
	if pub == nil {
		pub = events.NopPublisher{}
	}
	p := &Pipeline{
		dispatcher: d,
		publisher:  pub,
		logger:     logger.With().Str("component", "alert_pipeline").Logger(),
		now:        time.Now,
	}
	for _, o := range opts {
		o(p)
	}
	if p.scope == nil {
		p.scope = func(ctx context.Context, _ string, fn func(ctx context.Context) error) error { return fn(ctx) }
	}
	return p
}

// Start launches the queue workers. It is a no-op without WithQueue.
func (p *Pipeline) Start(ctx context.Context) {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for j := range p.queue {
				p.runJob(ctx, j)
			}
		}()
	}
}

// Stop closes the queue and waits for queued jobs to finish.
func (p *Pipeline) Stop() {
	p.mu.Lock()
	if p.queue != nil && !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.mu.Unlock()
	p.wg.Wait()
}

// AfterSubmit implements response.SubmitHook.
func (p *Pipeline) AfterSubmit(ctx context.Context, r *response.Response) {
	if p.enqueue(ctx, r) {
		return
	}
	p.Process(ctx, r)
}

func (p *Pipeline) enqueue(ctx context.Context, r *response.Response) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.queue == nil || p.closed {
		return false
	}
	select {
	case p.queue <- job{tenantID: db.TenantFromContext(ctx), resp: r}:
		return true
	default:
		p.logger.Warn().Str("response_id", r.ID.String()).Msg("alert queue full, processing inline")
		return false
	}
}

func (p *Pipeline) runJob(ctx context.Context, j job) {
	err := p.scope(ctx, j.tenantID, func(ctx context.Context) error {
		p.Process(ctx, j.resp)
		return nil
	})
	if err != nil {
		p.logger.Error().Err(err).Str("response_id", j.resp.ID.String()).Str("tenant", j.tenantID).Msg("alert job failed")
	}
}

// Process evaluates r and runs fan-out and event publication when it
// triggers. The report is nil when no alert fired.
func (p *Pipeline) Process(ctx context.Context, r *response.Response) (Decision, *Report) {
	defer func() {
		if rec := recover(); rec != nil {
			p.logger.Error().Interface("panic", rec).Str("response_id", r.ID.String()).Msg("alert pipeline panicked")
		}
	}()

	dec := Evaluate(r)
	if !dec.Triggered {
		p.logger.Debug().Str("response_id", r.ID.String()).Float64("avg_score", dec.AvgScore).Msg("no alert")
		return dec, nil
	}

	rep := p.dispatcher.Dispatch(ctx, r, dec)

	evt := events.AlertEvent{
		ResponseID: r.ID.String(),
		AvgScore:   dec.AvgScore,
		Recipients: rep.Recipients,
		OccurredAt: p.now().UTC(),
	}
	if r.SurveyID != nil {
		evt.SurveyID = r.SurveyID.String()
	}
	if r.ServicePointID != nil {
		evt.ServicePointID = r.ServicePointID.String()
	}
	if err := p.publisher.Publish(ctx, evt); err != nil {
		p.logger.Error().Err(err).Str("response_id", r.ID.String()).Msg("publish alert event failed")
	}
	return dec, &rep
}
