package render

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/page"
	cdpruntime "github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

const (
	defaultStartupTimeout = 10 * time.Second
	defaultAssetWait      = 3 * time.Second
	defaultScale          = 1.0
)

// Config contains configuration for the Chrome-backed session factory
type Config struct {
	// StartupTimeout bounds engine launch; exceeding it is ENGINE_START_FAILED
	StartupTimeout time.Duration
	// RemoteURL points at a remote Chrome instance. Empty launches a local one.
	RemoteURL string
	// Headless mode (default true)
	Headless bool
	// DisableGPU disables GPU hardware acceleration (default true for servers)
	DisableGPU bool
	// NoSandbox runs Chrome without sandbox (required for Docker/root)
	NoSandbox bool
	// Scale for rendering (default 1.0)
	Scale float64
	// PrintBackground prints background graphics (default true)
	PrintBackground bool
	// AssetWait is the per-image ceiling inside the settle wait
	AssetWait time.Duration
	// Logger for debug output
	Logger *zap.Logger
}

// ChromeSessionFactory launches one headless Chrome process per session via
// the DevTools protocol. Sessions are independent: each NewSession call execs
// a fresh browser, and Stop kills it. Nothing is shared between sessions.
type ChromeSessionFactory struct {
	config *Config
	logger *zap.Logger
}

// NewChromeSessionFactory creates a session factory from config
func NewChromeSessionFactory(config *Config) *ChromeSessionFactory {
	if config == nil {
		config = &Config{}
	}
	if config.StartupTimeout == 0 {
		config.StartupTimeout = defaultStartupTimeout
	}
	if config.AssetWait == 0 {
		config.AssetWait = defaultAssetWait
	}
	if config.Scale == 0 {
		config.Scale = defaultScale
	}
	// A server-side renderer is always headless and GPU-less.
	config.Headless = true
	config.DisableGPU = true

	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &ChromeSessionFactory{config: config, logger: logger}
}

// NewSession launches a new engine process and opens its page context under
// the startup deadline. The returned session must be stopped by the caller.
func (f *ChromeSessionFactory) NewSession(ctx context.Context) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, NewRenderError(ErrCodeEngineStart, "session requested on a dead context", err)
	}

	// The engine process must outlive the (deadline-bound) request context
	// that asked for it: teardown happens through Stop, not through request
	// cancellation racing the render.
	var allocCtx context.Context
	var allocCancel context.CancelFunc
	if f.config.RemoteURL != "" {
		allocCtx, allocCancel = chromedp.NewRemoteAllocator(context.Background(), f.config.RemoteURL)
	} else {
		allocCtx, allocCancel = chromedp.NewExecAllocator(context.Background(), f.allocatorOptions()...)
	}

	browserCtx, browserCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(format string, args ...interface{}) {
			f.logger.Debug(fmt.Sprintf(format, args...))
		}),
	)

	s := &chromeSession{
		config:        f.config,
		logger:        f.logger,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		allocCancel:   allocCancel,
	}

	// The first Run launches the browser process. Bound it by the startup
	// deadline and by whatever deadline the caller carries.
	startCtx, cancel := context.WithTimeout(browserCtx, f.config.StartupTimeout)
	defer cancel()
	release := contextAfterFunc(ctx, cancel)
	err := chromedp.Run(startCtx, chromedp.Navigate("about:blank"))
	release()
	if err != nil {
		_ = s.Stop()
		return nil, NewRenderError(ErrCodeEngineStart,
			fmt.Sprintf("render engine failed to start within %v", f.config.StartupTimeout), err)
	}

	s.timeline.StartedAt = time.Now()
	f.logger.Debug("render engine started")
	return s, nil
}

func (f *ChromeSessionFactory) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", f.config.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("disable-default-apps", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-dev-shm-usage", true), // Important for Docker
		chromedp.Flag("disable-background-networking", true),
		chromedp.Flag("disable-sync", true),
		chromedp.Flag("disable-translate", true),
		chromedp.Flag("font-render-hinting", "none"),
	)
	if f.config.NoSandbox {
		opts = append(opts, chromedp.Flag("no-sandbox", true))
	}
	return opts
}

// chromeSession is one Chrome process plus its single page context
type chromeSession struct {
	config        *Config
	logger        *zap.Logger
	browserCtx    context.Context
	browserCancel context.CancelFunc
	allocCancel   context.CancelFunc
	stopOnce      sync.Once
	stopped       bool
	timeline      Timeline
}

// SetContent injects markup into the page and awaits the settle promise
func (s *chromeSession) SetContent(ctx context.Context, markup string) error {
	if s.stopped {
		return NewRenderError(ErrCodeStopped, "session is stopped", nil)
	}
	if markup == "" {
		return NewRenderError(ErrCodeSetContent, "markup is empty", nil)
	}

	runCtx, done := s.bridge(ctx)
	defer done()

	var pendingImages int
	err := chromedp.Run(runCtx,
		chromedp.ActionFunc(func(ctx context.Context) error {
			frameTree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(frameTree.Frame.ID, markup).Do(ctx)
		}),
		chromedp.Evaluate(buildSettleScript(s.config.AssetWait), &pendingImages,
			func(p *cdpruntime.EvaluateParams) *cdpruntime.EvaluateParams {
				return p.WithAwaitPromise(true)
			}),
	)
	if err != nil {
		// The caller's deadline, not an engine fault: report the context
		// error so the timeout controller classifies it.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return NewRenderError(ErrCodeSetContent, "failed to settle document content", err)
	}

	s.timeline.SettledAt = time.Now()
	if pendingImages > 0 {
		s.logger.Debug("content settled", zap.Int("images_waited", pendingImages))
	}
	return nil
}

// Paginate prints the settled page to PDF with the requested page size and
// uniform margins.
func (s *chromeSession) Paginate(ctx context.Context, opts PageOptions) ([]byte, error) {
	if s.stopped {
		return nil, NewRenderError(ErrCodeStopped, "session is stopped", nil)
	}
	if !opts.PageSize.IsValid() {
		return nil, NewRenderError(ErrCodePaginate, "invalid page size: "+opts.PageSize.String(), nil)
	}

	scale := opts.Scale
	if scale == 0 {
		scale = s.config.Scale
	}
	width, height := opts.PageSize.Dimensions()
	margin := mmToInches(opts.MarginMM)

	runCtx, done := s.bridge(ctx)
	defer done()

	var data []byte
	err := chromedp.Run(runCtx,
		chromedp.ActionFunc(func(ctx context.Context) error {
			out, _, err := page.PrintToPDF().
				WithPrintBackground(opts.PrintBackground).
				WithPaperWidth(mmToInches(width)).
				WithPaperHeight(mmToInches(height)).
				WithMarginTop(margin).
				WithMarginRight(margin).
				WithMarginBottom(margin).
				WithMarginLeft(margin).
				WithScale(scale).
				Do(ctx)
			if err != nil {
				return err
			}
			data = out
			return nil
		}),
	)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, NewRenderError(ErrCodePaginate, "print to PDF failed", err)
	}

	s.timeline.PaginatedAt = time.Now()
	return data, nil
}

// Stop terminates the engine process. Safe to call any number of times from
// any exit path; only the first call does the work.
func (s *chromeSession) Stop() error {
	s.stopOnce.Do(func() {
		s.stopped = true
		s.timeline.StoppedAt = time.Now()
		if s.browserCancel != nil {
			s.browserCancel()
		}
		if s.allocCancel != nil {
			s.allocCancel()
		}
		s.logger.Debug("render engine stopped",
			zap.Time("started_at", s.timeline.StartedAt),
			zap.Time("settled_at", s.timeline.SettledAt),
			zap.Time("paginated_at", s.timeline.PaginatedAt))
	})
	return nil
}

// Timeline returns the milestones reached so far
func (s *chromeSession) Timeline() Timeline {
	return s.timeline
}

// bridge derives a run context from the browser context that is cancelled
// when the phase context ends. chromedp actions must run on the browser's
// context tree; this carries the phase deadline across without abandoning
// the in-flight CDP call.
func (s *chromeSession) bridge(ctx context.Context) (context.Context, context.CancelFunc) {
	runCtx, cancel := context.WithCancel(s.browserCtx)
	release := contextAfterFunc(ctx, cancel)
	return runCtx, func() {
		release()
		cancel()
	}
}

// contextAfterFunc arranges for fn to run once ctx is done and returns a
// release function that unregisters it.
func contextAfterFunc(ctx context.Context, fn func()) func() {
	stop := context.AfterFunc(ctx, fn)
	return func() { stop() }
}

// mmToInches converts millimeters to inches (Chrome expects inches)
func mmToInches(mm float64) float64 {
	return mm / 25.4
}

// Ensure ChromeSessionFactory implements SessionFactory
var _ SessionFactory = (*ChromeSessionFactory)(nil)
var _ Session = (*chromeSession)(nil)
