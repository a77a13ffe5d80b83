package document_test

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	app "github.com/quotedesk/renderd/internal/application/document"
	"github.com/quotedesk/renderd/internal/domain/document"
	"github.com/quotedesk/renderd/internal/domain/quote"
	"github.com/quotedesk/renderd/internal/domain/shared"
	"github.com/quotedesk/renderd/internal/infrastructure/markup"
	"github.com/quotedesk/renderd/internal/infrastructure/render"
	"github.com/quotedesk/renderd/internal/infrastructure/storage"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// =============================================================================
// Mock Implementations
// =============================================================================

type MockQuoteRepository struct {
	mock.Mock
}

func (m *MockQuoteRepository) FindByID(ctx context.Context, id uuid.UUID) (*quote.Quote, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*quote.Quote), args.Error(1)
}

func (m *MockQuoteRepository) ListLineEntries(ctx context.Context, quoteID uuid.UUID) ([]quote.LineEntry, error) {
	args := m.Called(ctx, quoteID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]quote.LineEntry), args.Error(1)
}

func (m *MockQuoteRepository) ListSectionGroups(ctx context.Context, quoteID uuid.UUID) ([]quote.SectionGroup, error) {
	args := m.Called(ctx, quoteID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]quote.SectionGroup), args.Error(1)
}

func (m *MockQuoteRepository) FindBrandingProfile(ctx context.Context, quoteID uuid.UUID) (*quote.BrandingProfile, error) {
	args := m.Called(ctx, quoteID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*quote.BrandingProfile), args.Error(1)
}

type MockRenderJobRepository struct {
	mock.Mock
}

func (m *MockRenderJobRepository) Save(ctx context.Context, job *document.RenderJob) error {
	args := m.Called(ctx, job)
	return args.Error(0)
}

func (m *MockRenderJobRepository) FindByID(ctx context.Context, id uuid.UUID) (*document.RenderJob, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*document.RenderJob), args.Error(1)
}

func (m *MockRenderJobRepository) List(ctx context.Context, filter shared.Filter) (shared.Paginated[document.RenderJob], error) {
	args := m.Called(ctx, filter)
	return args.Get(0).(shared.Paginated[document.RenderJob]), args.Error(1)
}

func (m *MockRenderJobRepository) ListByQuoteID(ctx context.Context, quoteID uuid.UUID, filter shared.Filter) (shared.Paginated[document.RenderJob], error) {
	args := m.Called(ctx, quoteID, filter)
	return args.Get(0).(shared.Paginated[document.RenderJob]), args.Error(1)
}

// MockSession is a render session whose behavior per call is scripted by the
// test. Stop invocations are counted to verify guaranteed teardown.
type MockSession struct {
	setContentErr error
	paginateData  []byte
	paginateErr   error
	stopCount     atomic.Int32
}

func (s *MockSession) SetContent(ctx context.Context, markup string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.setContentErr
}

func (s *MockSession) Paginate(ctx context.Context, opts render.PageOptions) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.paginateErr != nil {
		return nil, s.paginateErr
	}
	return s.paginateData, nil
}

func (s *MockSession) Stop() error {
	s.stopCount.Add(1)
	return nil
}

func (s *MockSession) Timeline() render.Timeline {
	return render.Timeline{}
}

// MockSessionFactory hands out scripted sessions in order and records how
// many engine processes were launched.
type MockSessionFactory struct {
	sessions []*MockSession
	err      error
	calls    atomic.Int32
}

func (f *MockSessionFactory) NewSession(ctx context.Context) (render.Session, error) {
	n := int(f.calls.Add(1))
	if f.err != nil {
		return nil, f.err
	}
	if n > len(f.sessions) {
		return nil, assert.AnError
	}
	return f.sessions[n-1], nil
}

type MockArtifactSink struct {
	mock.Mock
}

func (m *MockArtifactSink) Store(ctx context.Context, req *storage.StoreRequest) (*storage.StoreResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*storage.StoreResult), args.Error(1)
}

func (m *MockArtifactSink) Ready(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// =============================================================================
// Fixtures
// =============================================================================

var fakePDF = []byte("%PDF-1.4 fake document body")

func newTestQuote(t *testing.T) *quote.Quote {
	t.Helper()
	q, err := quote.NewQuote("Q-2026-0042", "Acme Corp", "USD")
	require.NoError(t, err)
	q.TotalAmount = decimal.RequireFromString("1250.00")
	return q
}

func newTestEntries(t *testing.T, quoteID uuid.UUID) []quote.LineEntry {
	t.Helper()
	return []quote.LineEntry{
		{
			ID: uuid.New(), QuoteID: quoteID, Position: 1,
			Description: "Implementation work",
			Quantity:    decimal.NewFromInt(3),
			UnitPrice:   decimal.RequireFromString("250.00"),
			Subtotal:    decimal.RequireFromString("750.00"),
		},
		{
			ID: uuid.New(), QuoteID: quoteID, Position: 2,
			Description: "Support retainer",
			Quantity:    decimal.NewFromInt(1),
			UnitPrice:   decimal.RequireFromString("500.00"),
			Subtotal:    decimal.RequireFromString("500.00"),
		},
	}
}

func shortBudget() document.TimeoutBudget {
	return document.TimeoutBudget{
		EngineStartup: time.Second,
		Fetch:         time.Second,
		Settle:        time.Second,
		Paginate:      time.Second,
		Upload:        time.Second,
		AssetWait:     100 * time.Millisecond,
		Slack:         time.Second,
	}
}

type serviceFixture struct {
	quotes  *MockQuoteRepository
	jobs    *MockRenderJobRepository
	factory *MockSessionFactory
	sink    *MockArtifactSink
	service *app.Service
}

func newServiceFixture(t *testing.T, factory *MockSessionFactory, maxRetries int) *serviceFixture {
	t.Helper()

	producer, err := markup.NewProducer()
	require.NoError(t, err)

	quotes := &MockQuoteRepository{}
	jobs := &MockRenderJobRepository{}
	sink := &MockArtifactSink{}

	service, err := app.NewService(
		app.NewNormalizer(quotes, zap.NewNop()),
		jobs,
		producer,
		factory,
		sink,
		app.PipelineConfig{
			Budget:     shortBudget(),
			MaxRetries: maxRetries,
			Page:       render.PageOptions{MarginMM: 15, Scale: 1.0, PrintBackground: true},
		},
		nil,
		zap.NewNop(),
	)
	require.NoError(t, err)

	return &serviceFixture{
		quotes:  quotes,
		jobs:    jobs,
		factory: factory,
		sink:    sink,
		service: service,
	}
}

// expectHappyQuote wires the quote mocks for a fully loadable quote
func (f *serviceFixture) expectHappyQuote(t *testing.T, quoteID uuid.UUID) {
	t.Helper()
	q := newTestQuote(t)
	q.ID = quoteID
	f.quotes.On("FindByID", mock.Anything, quoteID).Return(q, nil)
	f.quotes.On("ListLineEntries", mock.Anything, quoteID).Return(newTestEntries(t, quoteID), nil)
	f.quotes.On("ListSectionGroups", mock.Anything, quoteID).Return([]quote.SectionGroup{}, nil)
	f.quotes.On("FindBrandingProfile", mock.Anything, quoteID).Return(nil, shared.ErrNotFound)
}

// =============================================================================
// RenderDocument
// =============================================================================

func TestService_RenderDocument_Success(t *testing.T) {
	session := &MockSession{paginateData: fakePDF}
	factory := &MockSessionFactory{sessions: []*MockSession{session}}
	f := newServiceFixture(t, factory, 0)

	quoteID := uuid.New()
	f.expectHappyQuote(t, quoteID)

	var savedJob *document.RenderJob
	f.jobs.On("Save", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		savedJob = args.Get(1).(*document.RenderJob)
	}).Return(nil)

	f.sink.On("Store", mock.Anything, mock.MatchedBy(func(req *storage.StoreRequest) bool {
		return len(req.Data) > 0 && req.ContentType == "application/pdf"
	})).Return(&storage.StoreResult{
		Key:     "documents/quote.pdf",
		Locator: "https://store.example/documents/quote.pdf",
		Size:    int64(len(fakePDF)),
	}, nil)

	resp, err := f.service.RenderDocument(context.Background(), quoteID, app.RenderDocumentRequest{})
	require.NoError(t, err)

	assert.Equal(t, "https://store.example/documents/quote.pdf", resp.Locator)
	assert.Contains(t, resp.Filename, "quote-Q-2026-0042-")
	assert.Equal(t, int64(len(fakePDF)), resp.SizeBytes)
	assert.Equal(t, 1, resp.Attempts)
	assert.Empty(t, resp.Degraded)

	assert.Equal(t, int32(1), session.stopCount.Load(), "session must be stopped exactly once")
	require.NotNil(t, savedJob)
	assert.Equal(t, document.JobStatusCompleted, savedJob.Status)
	assert.Equal(t, 1, savedJob.Attempts)
	assert.Equal(t, resp.Locator, savedJob.Locator)
}

func TestService_RenderDocument_InvalidOptions(t *testing.T) {
	factory := &MockSessionFactory{}
	f := newServiceFixture(t, factory, 0)

	_, err := f.service.RenderDocument(context.Background(), uuid.New(), app.RenderDocumentRequest{
		PageSize: "TABLOID",
	})

	require.Error(t, err)
	assert.Equal(t, document.KindValidationError, document.KindOf(err))
	assert.Equal(t, int32(0), factory.calls.Load(), "invalid options must be rejected before launching an engine")
}

func TestService_RenderDocument_QuoteNotFound(t *testing.T) {
	session := &MockSession{paginateData: fakePDF}
	factory := &MockSessionFactory{sessions: []*MockSession{session}}
	f := newServiceFixture(t, factory, 2)

	quoteID := uuid.New()
	f.quotes.On("FindByID", mock.Anything, quoteID).Return(nil, shared.ErrNotFound)

	_, err := f.service.RenderDocument(context.Background(), quoteID, app.RenderDocumentRequest{})

	require.Error(t, err)
	assert.Equal(t, document.KindRecordNotFound, document.KindOf(err))
	assert.Equal(t, int32(0), factory.calls.Load(), "a missing record must abort before any engine is launched")
	assert.Equal(t, int32(0), session.stopCount.Load())
}

func TestService_RenderDocument_NoLineEntries(t *testing.T) {
	session := &MockSession{paginateData: fakePDF}
	factory := &MockSessionFactory{sessions: []*MockSession{session}}
	f := newServiceFixture(t, factory, 1)

	quoteID := uuid.New()
	q := newTestQuote(t)
	q.ID = quoteID
	f.quotes.On("FindByID", mock.Anything, quoteID).Return(q, nil)
	f.quotes.On("ListLineEntries", mock.Anything, quoteID).Return([]quote.LineEntry{}, nil)
	f.quotes.On("ListSectionGroups", mock.Anything, quoteID).Return([]quote.SectionGroup{}, nil)
	f.quotes.On("FindBrandingProfile", mock.Anything, quoteID).Return(nil, shared.ErrNotFound)
	f.jobs.On("Save", mock.Anything, mock.Anything).Return(nil)

	_, err := f.service.RenderDocument(context.Background(), quoteID, app.RenderDocumentRequest{})

	require.Error(t, err)
	assert.Equal(t, document.KindValidationError, document.KindOf(err))
	assert.Equal(t, int32(0), factory.calls.Load(), "a quote with no line entries must abort before any engine is launched")
}

func TestService_RenderDocument_RetriesTransientFailures(t *testing.T) {
	broken := &MockSession{setContentErr: assert.AnError}
	healthy := &MockSession{paginateData: fakePDF}
	factory := &MockSessionFactory{sessions: []*MockSession{broken, healthy}}
	f := newServiceFixture(t, factory, 1)

	quoteID := uuid.New()
	f.expectHappyQuote(t, quoteID)
	f.jobs.On("Save", mock.Anything, mock.Anything).Return(nil)
	f.sink.On("Store", mock.Anything, mock.Anything).Return(&storage.StoreResult{
		Key:     "documents/quote.pdf",
		Locator: "https://store.example/documents/quote.pdf",
		Size:    int64(len(fakePDF)),
	}, nil)

	resp, err := f.service.RenderDocument(context.Background(), quoteID, app.RenderDocumentRequest{})
	require.NoError(t, err)

	assert.Equal(t, 2, resp.Attempts)
	assert.Equal(t, int32(2), factory.calls.Load(), "each attempt must launch a fresh engine")
	assert.Equal(t, int32(1), broken.stopCount.Load())
	assert.Equal(t, int32(1), healthy.stopCount.Load())
}

func TestService_RenderDocument_RetryAllowanceExhausted(t *testing.T) {
	first := &MockSession{setContentErr: assert.AnError}
	second := &MockSession{setContentErr: assert.AnError}
	factory := &MockSessionFactory{sessions: []*MockSession{first, second}}
	f := newServiceFixture(t, factory, 1)

	quoteID := uuid.New()
	f.expectHappyQuote(t, quoteID)
	f.jobs.On("Save", mock.Anything, mock.Anything).Return(nil)

	_, err := f.service.RenderDocument(context.Background(), quoteID, app.RenderDocumentRequest{})

	require.Error(t, err)
	assert.Equal(t, document.KindEngineUnavailable, document.KindOf(err))
	assert.Equal(t, int32(2), factory.calls.Load())
	assert.Equal(t, int32(1), first.stopCount.Load())
	assert.Equal(t, int32(1), second.stopCount.Load())
}

func TestService_RenderDocument_EngineStartFailure(t *testing.T) {
	factory := &MockSessionFactory{err: assert.AnError}
	f := newServiceFixture(t, factory, 0)

	quoteID := uuid.New()
	f.expectHappyQuote(t, quoteID)
	f.jobs.On("Save", mock.Anything, mock.Anything).Return(nil)

	_, err := f.service.RenderDocument(context.Background(), quoteID, app.RenderDocumentRequest{})

	require.Error(t, err)
	assert.Equal(t, document.KindEngineUnavailable, document.KindOf(err))
	assert.Equal(t, int32(1), factory.calls.Load())
}

func TestService_RenderDocument_EngineStartDeadlineExpired(t *testing.T) {
	factory := &MockSessionFactory{err: fmt.Errorf("browser launch: %w", context.DeadlineExceeded)}
	f := newServiceFixture(t, factory, 0)

	quoteID := uuid.New()
	f.expectHappyQuote(t, quoteID)
	f.jobs.On("Save", mock.Anything, mock.Anything).Return(nil)

	_, err := f.service.RenderDocument(context.Background(), quoteID, app.RenderDocumentRequest{})

	require.Error(t, err)
	assert.Equal(t, document.KindRequestTimeout, document.KindOf(err),
		"an exhausted deadline at launch is the request ceiling, not an engine fault")

	var domainErr *shared.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Contains(t, domainErr.Message, string(document.PhaseStartup))
}

func TestService_RenderDocument_EmptyArtifact(t *testing.T) {
	session := &MockSession{paginateData: []byte{}}
	factory := &MockSessionFactory{sessions: []*MockSession{session}}
	f := newServiceFixture(t, factory, 2)

	quoteID := uuid.New()
	f.expectHappyQuote(t, quoteID)
	f.jobs.On("Save", mock.Anything, mock.Anything).Return(nil)

	_, err := f.service.RenderDocument(context.Background(), quoteID, app.RenderDocumentRequest{})

	require.Error(t, err)
	assert.Equal(t, document.KindEmptyArtifact, document.KindOf(err))
	assert.Equal(t, int32(1), factory.calls.Load(), "EMPTY_ARTIFACT must not be retried")
	assert.Equal(t, int32(1), session.stopCount.Load())
}

func TestService_RenderDocument_UploadFailed(t *testing.T) {
	session := &MockSession{paginateData: fakePDF}
	factory := &MockSessionFactory{sessions: []*MockSession{session}}
	f := newServiceFixture(t, factory, 2)

	quoteID := uuid.New()
	f.expectHappyQuote(t, quoteID)
	f.sink.On("Store", mock.Anything, mock.Anything).Return(nil, assert.AnError)

	var savedJob *document.RenderJob
	f.jobs.On("Save", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		savedJob = args.Get(1).(*document.RenderJob)
	}).Return(nil)

	_, err := f.service.RenderDocument(context.Background(), quoteID, app.RenderDocumentRequest{})

	require.Error(t, err)
	assert.Equal(t, document.KindUploadFailed, document.KindOf(err))
	assert.Equal(t, int32(1), factory.calls.Load(), "UPLOAD_FAILED must not be retried")

	require.NotNil(t, savedJob)
	assert.Equal(t, document.JobStatusFailed, savedJob.Status)
	assert.Equal(t, document.KindUploadFailed, savedJob.ErrorKind)
}

func TestService_RenderDocument_DegradedInputs(t *testing.T) {
	session := &MockSession{paginateData: fakePDF}
	factory := &MockSessionFactory{sessions: []*MockSession{session}}
	f := newServiceFixture(t, factory, 0)

	quoteID := uuid.New()
	q := newTestQuote(t)
	q.ID = quoteID
	f.quotes.On("FindByID", mock.Anything, quoteID).Return(q, nil)
	f.quotes.On("ListLineEntries", mock.Anything, quoteID).Return(newTestEntries(t, quoteID), nil)
	f.quotes.On("ListSectionGroups", mock.Anything, quoteID).Return(nil, assert.AnError)
	f.quotes.On("FindBrandingProfile", mock.Anything, quoteID).Return(nil, assert.AnError)
	f.jobs.On("Save", mock.Anything, mock.Anything).Return(nil)
	f.sink.On("Store", mock.Anything, mock.Anything).Return(&storage.StoreResult{
		Key:     "documents/quote.pdf",
		Locator: "https://store.example/documents/quote.pdf",
		Size:    int64(len(fakePDF)),
	}, nil)

	resp, err := f.service.RenderDocument(context.Background(), quoteID, app.RenderDocumentRequest{})
	require.NoError(t, err, "optional input failures must not fail the render")

	assert.ElementsMatch(t, []string{app.DegradedSectionGroups, app.DegradedBranding}, resp.Degraded)
}

func TestService_RenderDocument_JobPersistenceIsBestEffort(t *testing.T) {
	session := &MockSession{paginateData: fakePDF}
	factory := &MockSessionFactory{sessions: []*MockSession{session}}
	f := newServiceFixture(t, factory, 0)

	quoteID := uuid.New()
	f.expectHappyQuote(t, quoteID)
	f.jobs.On("Save", mock.Anything, mock.Anything).Return(assert.AnError)
	f.sink.On("Store", mock.Anything, mock.Anything).Return(&storage.StoreResult{
		Key:     "documents/quote.pdf",
		Locator: "https://store.example/documents/quote.pdf",
		Size:    int64(len(fakePDF)),
	}, nil)

	resp, err := f.service.RenderDocument(context.Background(), quoteID, app.RenderDocumentRequest{})

	require.NoError(t, err, "a job store failure must never fail the render")
	assert.NotEmpty(t, resp.Locator)
}

// =============================================================================
// Render Job Queries
// =============================================================================

func TestService_GetRenderJob(t *testing.T) {
	factory := &MockSessionFactory{}
	f := newServiceFixture(t, factory, 0)

	job, err := document.NewRenderJob(uuid.New(), "Q-2026-0042")
	require.NoError(t, err)
	f.jobs.On("FindByID", mock.Anything, job.ID).Return(job, nil)

	resp, err := f.service.GetRenderJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, job.ID.String(), resp.ID)
	assert.Equal(t, "Q-2026-0042", resp.QuoteNumber)
	assert.Equal(t, "QUEUED", resp.Status)
}

func TestService_GetRenderJob_NotFound(t *testing.T) {
	factory := &MockSessionFactory{}
	f := newServiceFixture(t, factory, 0)

	id := uuid.New()
	f.jobs.On("FindByID", mock.Anything, id).Return(nil, shared.ErrNotFound)

	_, err := f.service.GetRenderJob(context.Background(), id)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestService_ListRenderJobs(t *testing.T) {
	factory := &MockSessionFactory{}
	f := newServiceFixture(t, factory, 0)

	job, err := document.NewRenderJob(uuid.New(), "Q-2026-0042")
	require.NoError(t, err)

	t.Run("lists all jobs", func(t *testing.T) {
		f.jobs.On("List", mock.Anything, mock.Anything).Return(
			shared.NewPaginated([]document.RenderJob{*job}, 1, 1, 20), nil).Once()

		resp, err := f.service.ListRenderJobs(context.Background(), nil, app.ListRenderJobsRequest{})
		require.NoError(t, err)
		assert.Equal(t, int64(1), resp.Total)
		require.Len(t, resp.Items, 1)
		assert.Equal(t, "Q-2026-0042", resp.Items[0].QuoteNumber)
	})

	t.Run("scopes to a quote", func(t *testing.T) {
		f.jobs.On("ListByQuoteID", mock.Anything, job.QuoteID, mock.Anything).Return(
			shared.NewPaginated([]document.RenderJob{*job}, 1, 1, 20), nil).Once()

		resp, err := f.service.ListRenderJobs(context.Background(), &job.QuoteID, app.ListRenderJobsRequest{})
		require.NoError(t, err)
		assert.Equal(t, int64(1), resp.Total)
	})
}
