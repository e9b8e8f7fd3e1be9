package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/iliyamo/cinevault/internal/apperr"
	"github.com/iliyamo/cinevault/internal/model"
	"github.com/iliyamo/cinevault/internal/queue"
	"github.com/iliyamo/cinevault/internal/repository"
)

// MovieStore is the part of the catalog store that admin writes need.
type MovieStore interface {
	GetByID(ctx context.Context, id uint64) (model.Movie, error)
	Update(ctx context.Context, id uint64, p model.MoviePatch) (model.Movie, error)
	Delete(ctx context.Context, id uint64) error
}

// JobQueue accepts insert jobs for the worker.
type JobQueue interface {
	Enqueue(ctx context.Context, job queue.InsertMovieJob) (string, error)
}

// Stager stages and unstages poster images.
type Stager interface {
	Stage(ctx context.Context, localPath string) (string, error)
	Unstage(ctx context.Context, posterURL string) error
}

// CacheInvalidator drops cached catalog reads.
type CacheInvalidator interface {
	Invalidate(ctx context.Context) error
}

// CreateReceipt is returned when a create has been queued.
type CreateReceipt struct {
	JobID          string `json:"jobId"`
	IdempotencyKey string `json:"idempotencyKey"`
	Status         string `json:"status"`
}

// MovieService orchestrates admin catalog writes: validation first, then
// poster staging, then the store or queue, undoing earlier side effects
// when a later step fails.
type MovieService struct {
	store  MovieStore
	stager Stager
	jobs   JobQueue
	cache  CacheInvalidator
	log    *zap.Logger
}

// NewMovieService wires the service. cache may be nil.
func NewMovieService(store MovieStore, stager Stager, jobs JobQueue, cache CacheInvalidator, log *zap.Logger) *MovieService {
	if store == nil || stager == nil || jobs == nil || log == nil {
		panic("NewMovieService: nil dependency")
	}
	return &MovieService{store: store, stager: stager, jobs: jobs, cache: cache, log: log.Named("movies")}
}

// Create validates the request, stages the poster file if one was sent and
// enqueues the insert. If enqueueing fails the staged poster is removed,
// unless the broker may already hold the job. The temp file is removed on
// every path.
func (s *MovieService) Create(ctx context.Context, f MovieFields, upload *Upload, creatorID uint64) (CreateReceipt, error) {
	defer s.discard(upload)

	m, err := ValidateCreate(f, upload != nil)
	if err != nil {
		return CreateReceipt{}, err
	}

	rb := &rollback{}
	defer rb.run()

	if upload != nil {
		posterURL, err := s.stager.Stage(ctx, upload.Path)
		if err != nil {
			return CreateReceipt{}, err
		}
		m.PosterURL = posterURL
		rb.add(func() { s.unstage(ctx, posterURL, "rollback after failed enqueue") })
	}

	job := queue.NewInsertMovieJob(m, creatorID)
	jobID, err := s.jobs.Enqueue(ctx, job)
	if errors.Is(err, queue.ErrUnconfirmed) {
		// The worker may still insert this job, so the poster has to stay.
		rb.commit()
		s.log.Warn("movie create not confirmed by broker",
			zap.String("job_id", jobID), zap.String("idempotency_key", job.IdempotencyKey), zap.Error(err))
		return CreateReceipt{JobID: jobID, IdempotencyKey: job.IdempotencyKey, Status: "unconfirmed"}, nil
	}
	if err != nil {
		return CreateReceipt{}, apperr.Upstream("Failed to queue movie for creation", err)
	}
	rb.commit()

	s.log.Info("movie create queued", zap.String("job_id", jobID), zap.Uint64("created_by", creatorID))
	return CreateReceipt{JobID: jobID, IdempotencyKey: job.IdempotencyKey, Status: "queued"}, nil
}

// Edit applies a partial update. A newly uploaded poster replaces the old
// one; the old object is removed only after the update commits.
func (s *MovieService) Edit(ctx context.Context, id uint64, f MovieFields, upload *Upload) (model.Movie, error) {
	defer s.discard(upload)

	current, err := s.Get(ctx, id)
	if err != nil {
		return model.Movie{}, err
	}
	patch, err := ValidatePatch(f, upload != nil)
	if err != nil {
		return model.Movie{}, err
	}

	rb := &rollback{}
	defer rb.run()

	if upload != nil {
		posterURL, err := s.stager.Stage(ctx, upload.Path)
		if err != nil {
			return model.Movie{}, err
		}
		patch.PosterURL = &posterURL
		rb.add(func() { s.unstage(ctx, posterURL, "rollback after failed update") })
	}

	updated, err := s.store.Update(ctx, id, patch)
	switch {
	case errors.Is(err, repository.ErrUpdateCommitted):
		s.log.Warn("movie updated but not re-read", zap.Uint64("movie_id", id), zap.Error(err))
		updated = applyPatch(current, patch)
	case errors.Is(err, repository.ErrMovieNotFound):
		return model.Movie{}, apperr.NotFound("Movie not found")
	case err != nil:
		return model.Movie{}, apperr.Internal("Failed to update movie", err)
	}
	rb.commit()

	if patch.PosterURL != nil && current.PosterURL != *patch.PosterURL {
		s.unstage(ctx, current.PosterURL, "replaced poster")
	}
	s.invalidate(ctx)
	return updated, nil
}

// Delete removes the movie and then, best effort, its poster.
func (s *MovieService) Delete(ctx context.Context, id uint64) error {
	current, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrMovieNotFound) {
			return apperr.NotFound("Movie not found")
		}
		return apperr.Internal("Failed to delete movie", err)
	}
	s.unstage(ctx, current.PosterURL, "deleted movie")
	s.invalidate(ctx)
	return nil
}

// Get loads a movie, mapping a missing row to a NotFound error.
func (s *MovieService) Get(ctx context.Context, id uint64) (model.Movie, error) {
	m, err := s.store.GetByID(ctx, id)
	if errors.Is(err, repository.ErrMovieNotFound) {
		return model.Movie{}, apperr.NotFound("Movie not found")
	}
	if err != nil {
		return model.Movie{}, apperr.Internal("Failed to load movie", err)
	}
	return m, nil
}

// applyPatch is the row Update would have returned.
func applyPatch(m model.Movie, p model.MoviePatch) model.Movie {
	if p.Title != nil {
		m.Title = *p.Title
	}
	if p.Description != nil {
		m.Description = *p.Description
	}
	if p.PosterURL != nil {
		m.PosterURL = *p.PosterURL
	}
	if p.Rating != nil {
		m.Rating = *p.Rating
	}
	if p.ReleaseDate != nil {
		m.ReleaseDate = *p.ReleaseDate
	}
	if p.Duration != nil {
		m.Duration = *p.Duration
	}
	if p.Genre != nil {
		m.Genre = p.Genre
	}
	return m
}

// unstage runs detached from request cancellation; cleanup failures are
// logged by the stager and never surface to the client.
func (s *MovieService) unstage(ctx context.Context, posterURL, reason string) {
	if posterURL == "" {
		return
	}
	if err := s.stager.Unstage(context.WithoutCancel(ctx), posterURL); err != nil {
		s.log.Warn("poster cleanup skipped", zap.String("reason", reason), zap.String("poster_url", posterURL), zap.Error(err))
	}
}

func (s *MovieService) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(context.WithoutCancel(ctx)); err != nil {
		s.log.Warn("cache purge failed", zap.Error(err))
	}
}

func (s *MovieService) discard(u *Upload) {
	if err := u.Discard(); err != nil {
		s.log.Warn("remove temp upload", zap.String("path", u.Path), zap.Error(err))
	}
}
