package document

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	pdfmodel "github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/quotedesk/renderd/internal/domain/document"
	"github.com/quotedesk/renderd/internal/domain/shared"
	"github.com/quotedesk/renderd/internal/infrastructure/markup"
	"github.com/quotedesk/renderd/internal/infrastructure/render"
	"github.com/quotedesk/renderd/internal/infrastructure/storage"
	"github.com/quotedesk/renderd/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// PipelineConfig bounds one render request: the timeout budget, the retry
// allowance for transient failures, and the page defaults applied when the
// request does not override them.
type PipelineConfig struct {
	Budget     document.TimeoutBudget
	MaxRetries int                // extra whole-pipeline attempts for transient kinds (0-2)
	Page       render.PageOptions // margin, scale and background defaults
}

// Service orchestrates the rendering pipeline: normalize, produce markup,
// drive a fresh render session through settle and paginate, and hand the
// artifact to the sink. Each request gets its own engine session; sessions
// are never shared or reused.
type Service struct {
	normalizer *Normalizer
	jobs       document.RenderJobRepository
	producer   *markup.Producer
	sessions   render.SessionFactory
	sink       storage.ArtifactSink
	timeouts   *document.TimeoutController
	config     PipelineConfig
	metrics    *telemetry.PipelineMetrics
	logger     *zap.Logger
}

// NewService creates a new rendering Service. The job repository and metrics
// may be nil: job rows are best-effort bookkeeping and metrics are optional.
func NewService(
	normalizer *Normalizer,
	jobs document.RenderJobRepository,
	producer *markup.Producer,
	sessions render.SessionFactory,
	sink storage.ArtifactSink,
	config PipelineConfig,
	metrics *telemetry.PipelineMetrics,
	logger *zap.Logger,
) (*Service, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	controller, err := document.NewTimeoutController(config.Budget)
	if err != nil {
		return nil, err
	}
	if config.MaxRetries < 0 || config.MaxRetries > 2 {
		return nil, shared.NewDomainError("INVALID_RETRIES", "Max retries must be between 0 and 2")
	}
	return &Service{
		normalizer: normalizer,
		jobs:       jobs,
		producer:   producer,
		sessions:   sessions,
		sink:       sink,
		timeouts:   controller,
		config:     config,
		metrics:    metrics,
		logger:     logger,
	}, nil
}

// renderOutcome carries everything one pipeline attempt produced. On failure
// the normalized input may still be present when the fetch phase succeeded.
type renderOutcome struct {
	input    *NormalizedInput
	artifact *document.Artifact
	stored   *storage.StoreResult
}

// RenderDocument runs the full pipeline for one quote and returns the stored
// artifact's locator. Transient failures (engine startup, phase timeouts)
// are retried with a fresh session up to the configured allowance; all other
// failure kinds are final on first occurrence. The whole request, retries
// included, runs under a hard wall-time ceiling derived from the budget.
func (s *Service) RenderDocument(ctx context.Context, quoteID uuid.UUID, req RenderDocumentRequest) (*RenderDocumentResponse, error) {
	if quoteID == uuid.Nil {
		return nil, document.NewValidationError("Quote ID cannot be empty")
	}
	opts := req.ToOptions()
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	opts = opts.Normalized()

	start := time.Now()
	maxAttempts := 1 + s.config.MaxRetries
	ceiling := s.config.Budget.RequestCeiling(maxAttempts)
	ctx, cancel := context.WithTimeout(ctx, ceiling)
	defer cancel()

	var (
		job     *document.RenderJob
		outcome *renderOutcome
		lastErr error
	)

	attempts := 0
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		attempts = attempt

		var err error
		outcome, err = s.renderOnce(ctx, quoteID, opts)

		if job == nil && outcome != nil && outcome.input != nil {
			if created, jerr := document.NewRenderJob(quoteID, outcome.input.Model.Number); jerr == nil {
				job = created
				_ = job.StartRendering()
			}
		}
		if job != nil {
			for job.Attempts < attempt {
				job.RecordAttempt()
			}
		}

		if err == nil {
			lastErr = nil
			break
		}
		lastErr = err

		kind := document.KindOf(err)
		if !document.IsTransient(kind) || attempt == maxAttempts || ctx.Err() != nil {
			break
		}

		s.logger.Warn("render attempt failed, retrying with a fresh session",
			zap.String("quoteId", quoteID.String()),
			zap.String("kind", kind),
			zap.Int("attempt", attempt),
			zap.Error(err))
		s.metrics.ObserveRetry(ctx, kind)
	}

	elapsed := time.Since(start)

	if lastErr != nil {
		kind := document.KindOf(lastErr)
		if kind == "" {
			kind = document.KindEngineUnavailable
		}
		s.finishJob(job, func(j *document.RenderJob) error {
			return j.Fail(kind, lastErr.Error(), elapsed)
		})
		s.metrics.ObserveOutcome(ctx, kind, attempts, elapsed)
		s.logger.Error("document render failed",
			zap.String("quoteId", quoteID.String()),
			zap.String("kind", kind),
			zap.Int("attempts", attempts),
			zap.Duration("elapsed", elapsed),
			zap.Error(lastErr))
		return nil, lastErr
	}

	artifact := outcome.artifact
	stored := outcome.stored
	degraded := outcome.input.Degraded

	s.finishJob(job, func(j *document.RenderJob) error {
		return j.Complete(stored.Locator, artifact.Filename, artifact.PageCount, artifact.Size(), elapsed, degraded)
	})
	s.metrics.ObserveOutcome(ctx, "success", attempts, elapsed)
	s.metrics.ObserveArtifact(ctx, artifact.Size(), artifact.PageCount)

	s.logger.Info("document rendered",
		zap.String("quoteId", quoteID.String()),
		zap.String("quoteNumber", outcome.input.Model.Number),
		zap.String("filename", artifact.Filename),
		zap.Int("pages", artifact.PageCount),
		zap.Int64("sizeBytes", artifact.Size()),
		zap.Int("attempts", attempts),
		zap.Duration("elapsed", elapsed),
		zap.Strings("degraded", degraded))

	resp := &RenderDocumentResponse{
		QuoteID:   quoteID.String(),
		Locator:   stored.Locator,
		Filename:  artifact.Filename,
		PageCount: artifact.PageCount,
		SizeBytes: artifact.Size(),
		ElapsedMS: elapsed.Milliseconds(),
		Attempts:  attempts,
		Degraded:  degraded,
	}
	if job != nil {
		resp.JobID = job.ID.String()
	}
	return resp, nil
}

// renderOnce executes one full pipeline attempt with its own session. The
// session is only launched once normalization and markup production have
// succeeded, so data failures never incur any rendering cost; it is torn
// down on every exit path before the function returns.
func (s *Service) renderOnce(ctx context.Context, quoteID uuid.UUID, opts document.Options) (*renderOutcome, error) {
	outcome := &renderOutcome{}

	err := s.runPhase(ctx, document.PhaseFetch, func(ctx context.Context) error {
		input, ferr := s.normalizer.Load(ctx, quoteID)
		if ferr != nil {
			return ferr
		}
		outcome.input = input
		return nil
	})
	if err != nil {
		return outcome, err
	}

	model, err := document.BuildModel(outcome.input.Model, opts)
	if err != nil {
		return outcome, err
	}

	html, err := s.producer.Produce(ctx, &model, opts)
	if err != nil {
		return outcome, err
	}

	session, err := s.sessions.NewSession(ctx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return outcome, document.NewRequestTimeout(document.PhaseStartup)
		}
		return outcome, document.NewEngineUnavailable(err)
	}
	defer func() {
		if stopErr := session.Stop(); stopErr != nil {
			s.logger.Warn("render session teardown reported an error", zap.Error(stopErr))
		}
	}()

	err = s.runPhase(ctx, document.PhaseSettle, func(ctx context.Context) error {
		return session.SetContent(ctx, html)
	})
	if err != nil {
		return outcome, classifyEngineError(err)
	}

	var data []byte
	err = s.runPhase(ctx, document.PhasePaginate, func(ctx context.Context) error {
		pdf, perr := session.Paginate(ctx, render.PageOptions{
			PageSize:        opts.PageSize,
			MarginMM:        s.config.Page.MarginMM,
			Scale:           s.config.Page.Scale,
			PrintBackground: s.config.Page.PrintBackground,
		})
		if perr != nil {
			return perr
		}
		data = pdf
		return nil
	})
	if err != nil {
		return outcome, classifyEngineError(err)
	}

	artifact, err := document.NewArtifact(model.Number, data)
	if err != nil {
		return outcome, err
	}
	artifact.PageCount = s.countPages(data)
	outcome.artifact = artifact

	err = s.runPhase(ctx, document.PhaseUpload, func(ctx context.Context) error {
		result, serr := s.sink.Store(ctx, &storage.StoreRequest{
			Key:         artifact.Filename,
			Data:        artifact.Data,
			ContentType: artifact.ContentType,
		})
		if serr != nil {
			return serr
		}
		outcome.stored = result
		return nil
	})
	if err != nil {
		if document.IsPipelineKind(document.KindOf(err)) {
			return outcome, err
		}
		return outcome, document.NewUploadFailed(err)
	}

	return outcome, nil
}

// runPhase executes fn under the phase deadline and records its duration
func (s *Service) runPhase(ctx context.Context, phase document.Phase, fn func(context.Context) error) error {
	phaseStart := time.Now()
	err := s.timeouts.Run(ctx, phase, fn)
	s.metrics.ObservePhase(ctx, phase.String(), time.Since(phaseStart))
	return err
}

// finishJob applies a terminal transition and persists the job row. Job
// persistence is best-effort: a store failure is logged, never surfaced.
func (s *Service) finishJob(job *document.RenderJob, transition func(*document.RenderJob) error) {
	if job == nil || s.jobs == nil {
		return
	}
	if err := transition(job); err != nil {
		s.logger.Warn("render job transition rejected", zap.Error(err))
		return
	}
	// The request context may already be expired; the job row should still
	// be written, so persistence gets its own short deadline.
	saveCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.jobs.Save(saveCtx, job); err != nil {
		s.logger.Warn("failed to persist render job",
			zap.String("jobId", job.ID.String()),
			zap.Error(err))
	}
}

// GetRenderJob returns one render job record
func (s *Service) GetRenderJob(ctx context.Context, id uuid.UUID) (*RenderJobResponse, error) {
	if s.jobs == nil {
		return nil, shared.ErrNotFound
	}
	job, err := s.jobs.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := toRenderJobResponse(job)
	return &resp, nil
}

// ListRenderJobs returns render jobs, optionally scoped to one quote
func (s *Service) ListRenderJobs(ctx context.Context, quoteID *uuid.UUID, req ListRenderJobsRequest) (*ListRenderJobsResponse, error) {
	if s.jobs == nil {
		return &ListRenderJobsResponse{Items: []RenderJobResponse{}, Page: 1, Size: shared.DefaultFilter().PageSize}, nil
	}
	filter := shared.DefaultFilter()
	if req.Page > 0 {
		filter.Page = req.Page
	}
	if req.PageSize > 0 {
		filter.PageSize = req.PageSize
	}
	if req.OrderBy != "" {
		filter.OrderBy = req.OrderBy
	}
	if req.OrderDir != "" {
		filter.OrderDir = req.OrderDir
	}

	var (
		page shared.Paginated[document.RenderJob]
		err  error
	)
	if quoteID != nil {
		page, err = s.jobs.ListByQuoteID(ctx, *quoteID, filter)
	} else {
		page, err = s.jobs.List(ctx, filter)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list render jobs: %w", err)
	}

	items := make([]RenderJobResponse, len(page.Items))
	for i := range page.Items {
		items[i] = toRenderJobResponse(&page.Items[i])
	}
	return &ListRenderJobsResponse{
		Items: items,
		Total: page.Total,
		Page:  page.Page,
		Size:  page.PageSize,
	}, nil
}

// countPages inspects the artifact for its page count. Inspection is
// best-effort diagnostics; a parse failure leaves the count at zero.
func (s *Service) countPages(data []byte) int {
	conf := pdfmodel.NewDefaultConfiguration()
	conf.ValidationMode = pdfmodel.ValidationRelaxed
	count, err := api.PageCount(bytes.NewReader(data), conf)
	if err != nil {
		s.logger.Warn("artifact page count inspection failed", zap.Error(err))
		return 0
	}
	return count
}

// classifyEngineError maps raw engine failures onto pipeline kinds. Timeout
// kinds produced by the phase controller pass through untouched; anything
// else from the engine means the session is unusable.
func classifyEngineError(err error) error {
	if document.IsPipelineKind(document.KindOf(err)) {
		return err
	}
	return document.NewEngineUnavailable(err)
}
