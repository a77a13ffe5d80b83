package document

import (
	"context"
	"errors"
	"time"

	"github.com/quotedesk/renderd/internal/domain/shared"
)

// TimeoutBudget declares every deadline the pipeline may spend as a named
// field. There are no implicit timeouts anywhere else in the pipeline; every
// value here is surfaced through configuration.
type TimeoutBudget struct {
	EngineStartup time.Duration // render engine launch, outside Run (maps to ENGINE_UNAVAILABLE)
	Fetch         time.Duration // quote and sub-record loading
	Settle        time.Duration // markup injection plus embedded-asset wait
	Paginate      time.Duration // print-to-PDF execution
	Upload        time.Duration // artifact sink store
	AssetWait     time.Duration // per embedded image inside the settle phase
	Slack         time.Duration // headroom added to the request ceiling
}

// DefaultTimeoutBudget returns the built-in budget used where configuration
// does not override a field.
func DefaultTimeoutBudget() TimeoutBudget {
	return TimeoutBudget{
		EngineStartup: 10 * time.Second,
		Fetch:         5 * time.Second,
		Settle:        15 * time.Second,
		Paginate:      30 * time.Second,
		Upload:        20 * time.Second,
		AssetWait:     3 * time.Second,
		Slack:         5 * time.Second,
	}
}

// Validate checks that every deadline is positive (slack may be zero)
func (b TimeoutBudget) Validate() error {
	if b.EngineStartup <= 0 {
		return shared.NewDomainError("INVALID_TIMEOUT", "Engine startup timeout must be positive")
	}
	if b.Fetch <= 0 {
		return shared.NewDomainError("INVALID_TIMEOUT", "Fetch timeout must be positive")
	}
	if b.Settle <= 0 {
		return shared.NewDomainError("INVALID_TIMEOUT", "Settle timeout must be positive")
	}
	if b.Paginate <= 0 {
		return shared.NewDomainError("INVALID_TIMEOUT", "Paginate timeout must be positive")
	}
	if b.Upload <= 0 {
		return shared.NewDomainError("INVALID_TIMEOUT", "Upload timeout must be positive")
	}
	if b.AssetWait <= 0 {
		return shared.NewDomainError("INVALID_TIMEOUT", "Asset wait timeout must be positive")
	}
	if b.Slack < 0 {
		return shared.NewDomainError("INVALID_TIMEOUT", "Slack cannot be negative")
	}
	return nil
}

// PhaseBudget returns the configured deadline for the given phase
func (b TimeoutBudget) PhaseBudget(phase Phase) time.Duration {
	switch phase {
	case PhaseFetch:
		return b.Fetch
	case PhaseSettle:
		return b.Settle
	case PhasePaginate:
		return b.Paginate
	case PhaseUpload:
		return b.Upload
	default:
		return b.Fetch
	}
}

// RequestCeiling returns the hard upper bound on one request's wall time
// given the number of pipeline attempts it may make. The ceiling covers the
// engine startup of every attempt plus all four phases, with slack on top.
func (b TimeoutBudget) RequestCeiling(attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	perAttempt := b.EngineStartup + b.Fetch + b.Settle + b.Paginate + b.Upload
	return time.Duration(attempts)*perAttempt + b.Slack
}

// TimeoutController runs pipeline phases under their per-phase deadlines and
// classifies overruns. It never retries: retry policy belongs to the
// orchestrator alone.
type TimeoutController struct {
	budget TimeoutBudget
}

// NewTimeoutController creates a controller from a validated budget
func NewTimeoutController(budget TimeoutBudget) (*TimeoutController, error) {
	if err := budget.Validate(); err != nil {
		return nil, err
	}
	return &TimeoutController{budget: budget}, nil
}

// Budget returns the controller's timeout budget
func (c *TimeoutController) Budget() TimeoutBudget {
	return c.budget
}

// Run executes fn under the phase's deadline. A phase overrun cancels only
// that phase's operation and yields PHASE_TIMEOUT carrying the phase name;
// an expired outer (request) deadline yields REQUEST_TIMEOUT instead, so the
// caller can tell "this phase was slow" from "the whole request ran out of
// time". Cancellation by the caller and all other errors pass through
// unchanged.
func (c *TimeoutController) Run(ctx context.Context, phase Phase, fn func(context.Context) error) error {
	if outerErr := ctx.Err(); outerErr != nil {
		if errors.Is(outerErr, context.DeadlineExceeded) {
			return NewRequestTimeout(phase)
		}
		return outerErr
	}

	budget := c.budget.PhaseBudget(phase)
	phaseCtx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	err := fn(phaseCtx)
	if err == nil {
		return nil
	}

	// The outer deadline wins the classification: when both expired the
	// request was out of time regardless of what this phase did.
	if outerErr := ctx.Err(); outerErr != nil {
		if errors.Is(outerErr, context.DeadlineExceeded) {
			return NewRequestTimeout(phase)
		}
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(phaseCtx.Err(), context.DeadlineExceeded) {
		return NewPhaseTimeout(phase, budget)
	}
	return err
}
