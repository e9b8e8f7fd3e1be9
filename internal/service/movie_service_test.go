package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iliyamo/cinevault/internal/apperr"
	"github.com/iliyamo/cinevault/internal/model"
	"github.com/iliyamo/cinevault/internal/queue"
	"github.com/iliyamo/cinevault/internal/repository"
)

type MockMovieStore struct{ mock.Mock }

func (m *MockMovieStore) GetByID(ctx context.Context, id uint64) (model.Movie, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(model.Movie), args.Error(1)
}

func (m *MockMovieStore) Update(ctx context.Context, id uint64, p model.MoviePatch) (model.Movie, error) {
	args := m.Called(ctx, id, p)
	return args.Get(0).(model.Movie), args.Error(1)
}

func (m *MockMovieStore) Delete(ctx context.Context, id uint64) error {
	return m.Called(ctx, id).Error(0)
}

type MockStager struct{ mock.Mock }

func (m *MockStager) Stage(ctx context.Context, localPath string) (string, error) {
	args := m.Called(ctx, localPath)
	return args.String(0), args.Error(1)
}

func (m *MockStager) Unstage(ctx context.Context, posterURL string) error {
	return m.Called(ctx, posterURL).Error(0)
}

type MockJobQueue struct{ mock.Mock }

func (m *MockJobQueue) Enqueue(ctx context.Context, job queue.InsertMovieJob) (string, error) {
	args := m.Called(ctx, job)
	return args.String(0), args.Error(1)
}

type countingCache struct{ calls int }

func (c *countingCache) Invalidate(context.Context) error { c.calls++; return nil }

const (
	stagedURL = "https://res.cloudinary.com/demo/image/upload/v2/cinevault/images/new.jpg"
	oldURL    = "https://res.cloudinary.com/demo/image/upload/v1/cinevault/images/old.jpg"
)

type fixture struct {
	store  *MockMovieStore
	stager *MockStager
	jobs   *MockJobQueue
	cache  *countingCache
	svc    *MovieService
}

func newFixture() *fixture {
	f := &fixture{store: new(MockMovieStore), stager: new(MockStager), jobs: new(MockJobQueue), cache: &countingCache{}}
	f.svc = NewMovieService(f.store, f.stager, f.jobs, f.cache, zap.NewNop())
	return f
}

func tempUpload(t *testing.T) *Upload {
	t.Helper()
	p := filepath.Join(t.TempDir(), "upload-1.jpg")
	require.NoError(t, os.WriteFile(p, []byte("img"), 0o600))
	return &Upload{Path: p, Filename: "poster.jpg"}
}

func TestCreateQueuesExactJob(t *testing.T) {
	f := newFixture()
	fields := validFields()

	var got queue.InsertMovieJob
	f.jobs.On("Enqueue", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { got = args.Get(1).(queue.InsertMovieJob) }).
		Return("job-42", nil).Once()

	receipt, err := f.svc.Create(context.Background(), fields, nil, 7)
	require.NoError(t, err)

	assert.Equal(t, "job-42", receipt.JobID)
	assert.Equal(t, "queued", receipt.Status)
	assert.Equal(t, got.IdempotencyKey, receipt.IdempotencyKey)
	assert.Equal(t, "Inception", got.Title)
	assert.Equal(t, 8.8, got.Rating)
	assert.Equal(t, 148, got.Duration)
	assert.Equal(t, "2010-07-16", got.ReleaseDate.String())
	assert.Equal(t, []string{"Sci-Fi", "Thriller"}, got.Genre)
	assert.Equal(t, uint64(7), got.CreatedBy)
	assert.Equal(t, *fields.PosterURL, got.PosterURL)
	f.stager.AssertNotCalled(t, "Stage", mock.Anything, mock.Anything)
}

func TestCreateValidationHasNoSideEffects(t *testing.T) {
	f := newFixture()
	up := tempUpload(t)
	fields := validFields()
	fields.Rating = str("42")

	_, err := f.svc.Create(context.Background(), fields, up, 7)

	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
	f.stager.AssertNotCalled(t, "Stage", mock.Anything, mock.Anything)
	f.jobs.AssertNotCalled(t, "Enqueue", mock.Anything, mock.Anything)
	assert.NoFileExists(t, up.Path)
}

func TestCreateStagesFileAndUsesItsURL(t *testing.T) {
	f := newFixture()
	up := tempUpload(t)

	f.stager.On("Stage", mock.Anything, up.Path).Return(stagedURL, nil).Once()
	f.jobs.On("Enqueue", mock.Anything, mock.MatchedBy(func(j queue.InsertMovieJob) bool {
		return j.PosterURL == stagedURL
	})).Return("job-1", nil).Once()

	_, err := f.svc.Create(context.Background(), validFields(), up, 7)
	require.NoError(t, err)
	f.jobs.AssertExpectations(t)
	f.stager.AssertNotCalled(t, "Unstage", mock.Anything, mock.Anything)
}

func TestCreateRollsBackUploadWhenEnqueueFails(t *testing.T) {
	f := newFixture()
	up := tempUpload(t)

	f.stager.On("Stage", mock.Anything, up.Path).Return(stagedURL, nil).Once()
	f.jobs.On("Enqueue", mock.Anything, mock.Anything).Return("", errors.New("connection reset")).Once()
	f.stager.On("Unstage", mock.Anything, stagedURL).Return(nil).Once()

	_, err := f.svc.Create(context.Background(), validFields(), up, 7)

	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindUpstream))
	f.stager.AssertExpectations(t)
	assert.NoFileExists(t, up.Path)
}

func TestCreateKeepsPosterWhenConfirmIsMissing(t *testing.T) {
	f := newFixture()
	up := tempUpload(t)
	unconfirmed := fmt.Errorf("await confirm from %s: %w: %w", queue.InsertQueue, queue.ErrUnconfirmed, context.DeadlineExceeded)

	f.stager.On("Stage", mock.Anything, up.Path).Return(stagedURL, nil).Once()
	f.jobs.On("Enqueue", mock.Anything, mock.Anything).Return("job-9", unconfirmed).Once()

	receipt, err := f.svc.Create(context.Background(), validFields(), up, 7)

	require.NoError(t, err)
	assert.Equal(t, "job-9", receipt.JobID)
	assert.Equal(t, "unconfirmed", receipt.Status)
	assert.NotEmpty(t, receipt.IdempotencyKey)
	f.stager.AssertNotCalled(t, "Unstage", mock.Anything, mock.Anything)
	assert.NoFileExists(t, up.Path)
}

func TestCreateStageFailureSkipsQueue(t *testing.T) {
	f := newFixture()
	up := tempUpload(t)

	f.stager.On("Stage", mock.Anything, up.Path).Return("", apperr.Upstream("Failed to upload poster image", errors.New("503"))).Once()

	_, err := f.svc.Create(context.Background(), validFields(), up, 7)

	assert.True(t, apperr.IsKind(err, apperr.KindUpstream))
	f.jobs.AssertNotCalled(t, "Enqueue", mock.Anything, mock.Anything)
	f.stager.AssertNotCalled(t, "Unstage", mock.Anything, mock.Anything)
	assert.NoFileExists(t, up.Path)
}

func existing() model.Movie {
	return model.Movie{ID: 3, Title: "Inception", PosterURL: oldURL, Rating: 8.8, Duration: 148,
		ReleaseDate: model.NewDate(time.Date(2010, 7, 16, 0, 0, 0, 0, time.UTC))}
}

func TestEditMissingMovie(t *testing.T) {
	f := newFixture()
	up := tempUpload(t)
	f.store.On("GetByID", mock.Anything, uint64(9)).Return(model.Movie{}, repository.ErrMovieNotFound)

	_, err := f.svc.Edit(context.Background(), 9, MovieFields{Title: str("x")}, up)

	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
	f.stager.AssertNotCalled(t, "Stage", mock.Anything, mock.Anything)
	assert.NoFileExists(t, up.Path)
}

func TestEditReplacesPosterAfterCommit(t *testing.T) {
	f := newFixture()
	up := tempUpload(t)
	updated := existing()
	updated.PosterURL = stagedURL

	var order []string
	f.store.On("GetByID", mock.Anything, uint64(3)).Return(existing(), nil)
	f.stager.On("Stage", mock.Anything, up.Path).Return(stagedURL, nil).Once()
	f.store.On("Update", mock.Anything, uint64(3), mock.MatchedBy(func(p model.MoviePatch) bool {
		return p.PosterURL != nil && *p.PosterURL == stagedURL
	})).Run(func(mock.Arguments) { order = append(order, "update") }).Return(updated, nil).Once()
	f.stager.On("Unstage", mock.Anything, oldURL).
		Run(func(mock.Arguments) { order = append(order, "unstage-old") }).Return(nil).Once()

	m, err := f.svc.Edit(context.Background(), 3, MovieFields{}, up)

	require.NoError(t, err)
	assert.Equal(t, stagedURL, m.PosterURL)
	assert.Equal(t, []string{"update", "unstage-old"}, order)
	assert.Equal(t, 1, f.cache.calls)
	f.stager.AssertNotCalled(t, "Unstage", mock.Anything, stagedURL)
}

func TestEditUpdateFailureUnstagesNewPoster(t *testing.T) {
	f := newFixture()
	up := tempUpload(t)

	f.store.On("GetByID", mock.Anything, uint64(3)).Return(existing(), nil)
	f.stager.On("Stage", mock.Anything, up.Path).Return(stagedURL, nil).Once()
	f.store.On("Update", mock.Anything, uint64(3), mock.Anything).Return(model.Movie{}, errors.New("deadlock")).Once()
	f.stager.On("Unstage", mock.Anything, stagedURL).Return(nil).Once()

	_, err := f.svc.Edit(context.Background(), 3, MovieFields{Title: str("Inception 2")}, up)

	assert.True(t, apperr.IsKind(err, apperr.KindInternal))
	f.stager.AssertExpectations(t)
	f.stager.AssertNotCalled(t, "Unstage", mock.Anything, oldURL)
	assert.Equal(t, 0, f.cache.calls)
}

func TestEditKeepsNewPosterWhenRereadFails(t *testing.T) {
	f := newFixture()
	up := tempUpload(t)
	committed := fmt.Errorf("%w: %w", repository.ErrUpdateCommitted, context.Canceled)

	f.store.On("GetByID", mock.Anything, uint64(3)).Return(existing(), nil)
	f.stager.On("Stage", mock.Anything, up.Path).Return(stagedURL, nil).Once()
	f.store.On("Update", mock.Anything, uint64(3), mock.Anything).Return(model.Movie{}, committed).Once()
	f.stager.On("Unstage", mock.Anything, oldURL).Return(nil).Once()

	m, err := f.svc.Edit(context.Background(), 3, MovieFields{Title: str("Inception 2")}, up)

	require.NoError(t, err)
	assert.Equal(t, uint64(3), m.ID)
	assert.Equal(t, "Inception 2", m.Title)
	assert.Equal(t, stagedURL, m.PosterURL)
	f.stager.AssertNotCalled(t, "Unstage", mock.Anything, stagedURL)
	f.stager.AssertExpectations(t)
	assert.Equal(t, 1, f.cache.calls)
}

func TestEditWithoutPosterChangeKeepsOldPoster(t *testing.T) {
	f := newFixture()
	f.store.On("GetByID", mock.Anything, uint64(3)).Return(existing(), nil)
	f.store.On("Update", mock.Anything, uint64(3), mock.Anything).Return(existing(), nil).Once()

	_, err := f.svc.Edit(context.Background(), 3, MovieFields{Rating: str("9")}, nil)

	require.NoError(t, err)
	f.stager.AssertNotCalled(t, "Unstage", mock.Anything, mock.Anything)
}

func TestDeleteRemovesRowThenPoster(t *testing.T) {
	f := newFixture()
	f.store.On("GetByID", mock.Anything, uint64(3)).Return(existing(), nil)
	f.store.On("Delete", mock.Anything, uint64(3)).Return(nil).Once()
	f.stager.On("Unstage", mock.Anything, oldURL).Return(errors.New("cdn down")).Once()

	err := f.svc.Delete(context.Background(), 3)

	require.NoError(t, err, "poster cleanup failures are not surfaced")
	f.store.AssertExpectations(t)
	f.stager.AssertExpectations(t)
	assert.Equal(t, 1, f.cache.calls)
}

func TestDeleteMissingMovie(t *testing.T) {
	f := newFixture()
	f.store.On("GetByID", mock.Anything, uint64(4)).Return(model.Movie{}, repository.ErrMovieNotFound)

	err := f.svc.Delete(context.Background(), 4)

	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
	f.store.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

func TestRollbackRunsInReverseUntilCommitted(t *testing.T) {
	var ran []int
	rb := &rollback{}
	rb.add(func() { ran = append(ran, 1) })
	rb.add(func() { ran = append(ran, 2) })
	rb.run()
	assert.Equal(t, []int{2, 1}, ran)

	ran = nil
	rb = &rollback{}
	rb.add(func() { ran = append(ran, 1) })
	rb.commit()
	rb.run()
	assert.Empty(t, ran)
}
