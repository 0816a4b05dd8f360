// Package workflow runs the three dependent stages of a video research
// request (video details, analysis, research) and streams their progress.
package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Hrishikesh332/TwelveLabs-Video-DeepResearch/pkg/chunker"
	"github.com/Hrishikesh332/TwelveLabs-Video-DeepResearch/pkg/credentials"
	"github.com/Hrishikesh332/TwelveLabs-Video-DeepResearch/pkg/eventbus"
	"github.com/Hrishikesh332/TwelveLabs-Video-DeepResearch/pkg/events"
	"github.com/Hrishikesh332/TwelveLabs-Video-DeepResearch/pkg/metrics"
	"github.com/Hrishikesh332/TwelveLabs-Video-DeepResearch/pkg/otelhelper"
	"github.com/Hrishikesh332/TwelveLabs-Video-DeepResearch/pkg/prompts"
	"github.com/Hrishikesh332/TwelveLabs-Video-DeepResearch/pkg/stream"
	"github.com/Hrishikesh332/TwelveLabs-Video-DeepResearch/pkg/upstream"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultResearchTimeout = 180 * time.Second
	DefaultMaxCitations    = 10
	DefaultMaxSources      = 10

	stageOK    = "ok"
	stageError = "error"
)

type Config struct {
	// ResearchCredential is the process-wide research API key.
	ResearchCredential string
	ResearchTimeout    time.Duration
	ChunkSize          int
	MaxPayloadBytes    int
	// MaxCitations and MaxSources cap list fields before the final payload
	// is serialized.
	MaxCitations int
	MaxSources   int
}

func (c Config) withDefaults() Config {
	if c.ResearchTimeout <= 0 {
		c.ResearchTimeout = DefaultResearchTimeout
	}

	if c.ChunkSize <= 0 {
		c.ChunkSize = chunker.DefaultChunkSize
	}

	if c.MaxPayloadBytes <= 0 {
		c.MaxPayloadBytes = chunker.DefaultMaxPayloadBytes
	}

	if c.MaxCitations <= 0 {
		c.MaxCitations = DefaultMaxCitations
	}

	if c.MaxSources <= 0 {
		c.MaxSources = DefaultMaxSources
	}

	return c
}

// Deps are the collaborators of an Orchestrator. Tracer, Metrics and
// Publisher are optional.
type Deps struct {
	Videos      upstream.VideoPlatform
	Researcher  upstream.Researcher
	Prompts     *prompts.Store
	Credentials credentials.Resolver
	Validate    *validator.Validate
	Tracer      trace.Tracer
	Metrics     *metrics.Metrics
	Publisher   eventbus.EventPublisher
	Logger      *slog.Logger
}

// Orchestrator holds only read-only state and serves concurrent runs.
type Orchestrator struct {
	videos      upstream.VideoPlatform
	researcher  upstream.Researcher
	prompts     *prompts.Store
	credentials credentials.Resolver
	validate    *validator.Validate
	tracer      trace.Tracer
	metrics     *metrics.Metrics
	publisher   eventbus.EventPublisher
	logger      *slog.Logger
	cfg         Config
}

func New(deps Deps, cfg Config) *Orchestrator {
	o := &Orchestrator{
		videos:      deps.Videos,
		researcher:  deps.Researcher,
		prompts:     deps.Prompts,
		credentials: deps.Credentials,
		validate:    deps.Validate,
		tracer:      deps.Tracer,
		metrics:     deps.Metrics,
		publisher:   deps.Publisher,
		logger:      deps.Logger,
		cfg:         cfg.withDefaults(),
	}

	if o.prompts == nil {
		o.prompts = prompts.NewStore("", "")
	}

	if o.validate == nil {
		o.validate = validator.New(validator.WithRequiredStructEnabled())
	}

	if o.tracer == nil {
		o.tracer = otelhelper.NoopTracer()
	}

	if o.logger == nil {
		o.logger = slog.Default()
	}

	return o
}

// AnalysisPrompt is the prompt used when a request carries none.
func (o *Orchestrator) AnalysisPrompt() string {
	return o.prompts.AnalysisPrompt()
}

// run is the state of one workflow execution.
type run struct {
	o       *Orchestrator
	id      string
	req     Request
	sink    stream.Sink
	logger  *slog.Logger
	started time.Time
	step    stream.Step
}

// Run executes the workflow for req, emitting every event to sink. It
// returns nil once the complete event was delivered, a *StageError after an
// error event was delivered, or an error wrapping stream.ErrClosed when the
// client went away. ctx should outlive the client connection; upstream calls
// are not cancelled on disconnect.
func (o *Orchestrator) Run(ctx context.Context, req Request, sink stream.Sink) error {
	r := &run{
		o:       o,
		id:      newRunID(),
		sink:    sink,
		started: time.Now(),
	}

	req = req.normalized()
	if credential, ok := o.credentials.Resolve(req.Credential); ok {
		req.Credential = credential
	}

	r.req = req
	r.logger = o.logger.With("run_id", r.id, "index_id", req.IndexID, "video_id", req.VideoID)

	ctx, span := otelhelper.StartSpan(ctx, o.tracer, "workflow.run",
		attribute.String(otelhelper.RunIDKey, r.id),
		attribute.String(otelhelper.IndexIDKey, req.IndexID),
		attribute.String(otelhelper.VideoIDKey, req.VideoID),
	)
	defer span.End()

	err := r.execute(ctx)
	if err != nil && !errors.Is(err, stream.ErrClosed) {
		otelhelper.SetError(span, err, attribute.String(otelhelper.StepKey, string(r.step)))
	}

	return err
}

func (r *run) execute(ctx context.Context) error {
	if msg := validationMessage(r.o.validate, r.req); msg != "" {
		r.logger.InfoContext(ctx, "workflow request rejected", "reason", msg)

		if err := r.emit(ctx, stream.NewError("", msg)); err != nil {
			return r.abort(ctx, err)
		}

		r.o.metrics.RunFinished(metrics.OutcomeRejected)
		r.publish(ctx, events.RunFailed{
			BaseEvent: events.NewBaseEvent(events.RunFailedEvent, r.id),
			IndexID:   r.req.IndexID,
			VideoID:   r.req.VideoID,
			Reason:    msg,
			Duration:  time.Since(r.started),
		})

		return &StageError{Message: msg, Err: ErrValidation}
	}

	r.publish(ctx, events.RunStarted{
		BaseEvent:     events.NewBaseEvent(events.RunStartedEvent, r.id),
		IndexID:       r.req.IndexID,
		VideoID:       r.req.VideoID,
		ResearchQuery: r.req.ResearchQuery,
	})

	metadata, err := r.fetchMetadata(ctx)
	if err != nil {
		return err
	}

	analysis, err := r.analyze(ctx)
	if err != nil {
		return err
	}

	research, err := r.research(ctx, analysis)
	if err != nil {
		return err
	}

	return r.finalize(ctx, metadata, analysis, research)
}

func (r *run) fetchMetadata(ctx context.Context) (*upstream.Metadata, error) {
	r.enter(ctx, stream.StepVideoDetails)

	if err := r.emit(ctx, stream.NewProgress(stream.StepVideoDetails, "Fetching video details...", stream.ProgressStart)); err != nil {
		return nil, r.abort(ctx, err)
	}

	metadata, err := observe(ctx, r, stream.StepVideoDetails, func(ctx context.Context) (*upstream.Metadata, error) {
		return r.o.videos.FetchVideoMetadata(ctx, r.req.Credential, r.req.IndexID, r.req.VideoID)
	})
	if err == nil && metadata == nil {
		err = upstream.ErrNotFound
	}

	if err != nil {
		msg := "Could not retrieve video details"
		if !upstream.IsNotFound(err) {
			msg += ": " + upstream.Message(err)
		}

		return nil, r.fail(ctx, msg, err)
	}

	if err := r.emitData(ctx, stream.StepVideoDetails, metadata, stream.ProgressMetadata); err != nil {
		return nil, err
	}

	return metadata, nil
}

func (r *run) analyze(ctx context.Context) (string, error) {
	r.enter(ctx, stream.StepAnalysis)

	if err := r.emit(ctx, stream.NewProgress(stream.StepAnalysis, "Analyzing video content...", stream.ProgressMetadata)); err != nil {
		return "", r.abort(ctx, err)
	}

	prompt := r.req.AnalysisPrompt
	if prompt == "" {
		prompt = r.o.prompts.AnalysisPrompt()
	}

	analysis, err := observe(ctx, r, stream.StepAnalysis, func(ctx context.Context) (string, error) {
		return r.o.videos.AnalyzeItem(ctx, r.req.Credential, r.req.VideoID, prompt)
	})
	if err != nil {
		return "", r.fail(ctx, "Video analysis failed: "+upstream.Message(err), err)
	}

	if err := r.emitData(ctx, stream.StepAnalysis, analysis, stream.ProgressAnalysis); err != nil {
		return "", err
	}

	return analysis, nil
}

func (r *run) research(ctx context.Context, analysis string) (*upstream.ResearchResult, error) {
	r.enter(ctx, stream.StepResearch)

	if err := r.emit(ctx, stream.NewProgress(stream.StepResearch, "Conducting deep research...", stream.ProgressAnalysis)); err != nil {
		return nil, r.abort(ctx, err)
	}

	query, err := r.o.prompts.RenderResearch(analysis, r.req.ResearchQuery)
	if err != nil {
		return nil, r.fail(ctx, "Research failed: "+err.Error(), errors.Join(ErrTemplate, err))
	}

	result, err := observe(ctx, r, stream.StepResearch, func(ctx context.Context) (*upstream.ResearchResult, error) {
		return r.o.researcher.RunResearch(ctx, r.o.cfg.ResearchCredential, query, r.o.cfg.ResearchTimeout)
	})
	if err == nil && result == nil {
		err = upstream.ErrEmptyResponse
	}

	if err != nil {
		return nil, r.fail(ctx, "Research failed: "+upstream.Message(err), err)
	}

	return result, nil
}

// finalize streams the research text in chunks when it is long, or when the
// final payload had to drop it, then emits the complete event.
func (r *run) finalize(ctx context.Context, metadata *upstream.Metadata, analysis string, research *upstream.ResearchResult) error {
	cfg := r.o.cfg
	payload := newFinalPayload(metadata, analysis, research, cfg.MaxCitations, cfg.MaxSources)
	data, tier := chunker.BoundSerialize(payload, cfg.MaxPayloadBytes)

	content := research.Content()
	chunks := 0

	if content != "" && (chunker.NeedsChunking(content, cfg.ChunkSize) || tier != chunker.TierFull) {
		for chunk := range chunker.Chunks(content, cfg.ChunkSize) {
			if err := r.emit(ctx, stream.NewResearchChunk(chunk)); err != nil {
				return r.abort(ctx, err)
			}

			chunks++
		}

		r.o.metrics.ResearchChunks(chunks)
	}

	if tier != chunker.TierFull {
		r.logger.WarnContext(ctx, "final payload reduced", "tier", tier.String(), "limit", cfg.MaxPayloadBytes)
	}

	if err := r.emit(ctx, stream.NewComplete(data)); err != nil {
		return r.abort(ctx, err)
	}

	trace.SpanFromContext(ctx).SetAttributes(
		attribute.Int(otelhelper.ChunkCountKey, chunks),
		attribute.String(otelhelper.TierKey, tier.String()),
	)

	r.o.metrics.PayloadTier(tier.String())
	r.o.metrics.RunFinished(metrics.OutcomeCompleted)
	r.logger.InfoContext(ctx, "workflow completed",
		"duration", time.Since(r.started),
		"research_chunks", chunks,
		"payload_tier", tier.String(),
	)

	r.publish(ctx, events.RunCompleted{
		BaseEvent:      events.NewBaseEvent(events.RunCompletedEvent, r.id),
		IndexID:        r.req.IndexID,
		VideoID:        r.req.VideoID,
		ResearchChunks: chunks,
		PayloadTier:    tier.String(),
		Sources:        len(payload.Sources),
		Duration:       time.Since(r.started),
	})

	return nil
}

func (r *run) enter(ctx context.Context, step stream.Step) {
	r.step = step
	r.logger.InfoContext(ctx, "entering stage", "step", step)
}

func (r *run) emit(ctx context.Context, event stream.Event) error {
	return r.sink.Emit(ctx, event)
}

func (r *run) emitData(ctx context.Context, step stream.Step, value any, progress int) error {
	data, err := json.Marshal(value)
	if err != nil {
		return r.fail(ctx, "Could not encode "+string(step)+" result", errors.Join(ErrSerialization, err))
	}

	if err := r.emit(ctx, stream.NewData(step, data, progress)); err != nil {
		return r.abort(ctx, err)
	}

	return nil
}

// fail emits the terminal error event for the current step.
func (r *run) fail(ctx context.Context, msg string, cause error) error {
	r.logger.ErrorContext(ctx, "workflow stage failed", "step", r.step, "error", cause)

	if err := r.emit(ctx, stream.NewError(r.step, msg)); err != nil {
		return r.abort(ctx, err)
	}

	r.o.metrics.RunFinished(metrics.OutcomeFailed)
	r.publish(ctx, events.RunFailed{
		BaseEvent: events.NewBaseEvent(events.RunFailedEvent, r.id),
		IndexID:   r.req.IndexID,
		VideoID:   r.req.VideoID,
		Step:      string(r.step),
		Reason:    msg,
		Duration:  time.Since(r.started),
	})

	return &StageError{Step: r.step, Message: msg, Err: cause}
}

// abort stops the run silently after the sink reported the client gone.
func (r *run) abort(ctx context.Context, err error) error {
	r.logger.InfoContext(ctx, "client disconnected, stopping workflow", "step", r.step, "error", err)

	r.o.metrics.RunFinished(metrics.OutcomeAborted)
	r.publish(ctx, events.RunAborted{
		BaseEvent: events.NewBaseEvent(events.RunAbortedEvent, r.id),
		Step:      string(r.step),
		Duration:  time.Since(r.started),
	})

	if errors.Is(err, stream.ErrClosed) {
		return err
	}

	return fmt.Errorf("%w: %w", stream.ErrClosed, err)
}

func (r *run) publish(ctx context.Context, event eventbus.Event) {
	if r.o.publisher == nil {
		return
	}

	if err := r.o.publisher.Publish(ctx, r.id, event); err != nil {
		r.logger.WarnContext(ctx, "failed to publish lifecycle event", "event_type", event.GetType(), "error", err)
	}
}

// observe wraps one upstream call in a span and records its duration.
func observe[T any](ctx context.Context, r *run, step stream.Step, call func(context.Context) (T, error)) (T, error) {
	ctx, span := otelhelper.StartSpan(ctx, r.o.tracer, "workflow."+string(step),
		attribute.String(otelhelper.RunIDKey, r.id),
		attribute.String(otelhelper.StepKey, string(step)),
		attribute.String(otelhelper.ProviderKey, stageProvider(step)),
	)
	defer span.End()

	began := time.Now()
	value, err := call(ctx)

	outcome := stageOK
	if err != nil {
		outcome = stageError
		otelhelper.SetError(span, err, attribute.String(otelhelper.StepKey, string(step)))
	}

	r.o.metrics.ObserveStage(string(step), outcome, time.Since(began))

	return value, err
}

func stageProvider(step stream.Step) string {
	if step == stream.StepResearch {
		return "sonar"
	}

	return "twelvelabs"
}

func newRunID() string {
	return "run-" + uuid.New().String()[:8]
}
