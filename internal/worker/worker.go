// Package worker claims queued static ad jobs and renders their images.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"adstudio/internal/adgen"
	"adstudio/internal/domain"
	"adstudio/internal/infra"
	"adstudio/internal/storage"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const (
	defaultPollInterval = 2 * time.Second
	failureMessage      = "Image generation failed"
)

// ObjectStore persists rendered images and exposes their public URLs.
type ObjectStore interface {
	Write(ctx context.Context, key string, data []byte) (string, error)
	URL(key string) string
}

// Waker blocks until a job is announced or timeout elapses.
type Waker interface {
	Wait(ctx context.Context, timeout time.Duration) (string, error)
}

type Options struct {
	Repo         domain.WorkerRepository
	Generator    adgen.Generator
	Store        ObjectStore
	Waker        Waker
	Logger       *infra.Logger
	PollInterval time.Duration
	Concurrency  int
	PerMinute    int
}

// Worker renders quota-per-angle images for each claimed job, appending
// every result as soon as it is stored so pollers see partial output.
type Worker struct {
	repo     domain.WorkerRepository
	gen      adgen.Generator
	store    ObjectStore
	waker    Waker
	logger   *infra.Logger
	interval time.Duration
	parallel int
	limiter  *rate.Limiter
}

func New(opts Options) (*Worker, error) {
	if opts.Repo == nil || opts.Generator == nil || opts.Store == nil {
		return nil, errors.New("worker: repo, generator and store are required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = infra.DiscardLogger()
	}
	interval := opts.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	parallel := opts.Concurrency
	if parallel <= 0 {
		parallel = 1
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.PerMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(opts.PerMinute)), parallel)
	}
	return &Worker{
		repo:     opts.Repo,
		gen:      opts.Generator,
		store:    opts.Store,
		waker:    opts.Waker,
		logger:   logger,
		interval: interval,
		parallel: parallel,
		limiter:  limiter,
	}, nil
}

// Run drains the queue, then sleeps until woken or the poll interval passes.
// It returns ctx.Err() on shutdown.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info().Int("concurrency", w.parallel).Dur("poll_interval", w.interval).Msg("worker: started")
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		processed, err := w.ProcessNext(ctx)
		if err != nil && ctx.Err() == nil {
			w.logger.Error().Err(err).Msg("worker: failed to process job")
		}
		if processed {
			continue
		}
		w.idle(ctx)
	}
}

func (w *Worker) idle(ctx context.Context) {
	if w.waker != nil {
		jobID, err := w.waker.Wait(ctx, w.interval)
		if err == nil {
			if jobID != "" {
				w.logger.Debug().Str("job_id", jobID).Msg("worker: woken by queue")
			}
			return
		}
		if ctx.Err() != nil {
			return
		}
		w.logger.Warn().Err(err).Msg("worker: queue wait failed, falling back to polling")
	}
	t := time.NewTimer(w.interval)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// ProcessNext claims and runs one job. It reports false when the queue was
// empty.
func (w *Worker) ProcessNext(ctx context.Context) (bool, error) {
	job, err := w.repo.ClaimJob(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	log := w.logger.With().Str("job_id", job.ID).Str("origin_id", job.OriginID).Logger()
	log.Info().Int("angles", len(job.SelectedAngles)).Int("quota", job.QuotaPerAngle).Msg("worker: picked job")

	status, msg := domain.RawStatusSucceeded, ""
	if err := w.render(ctx, job); err != nil {
		log.Error().Err(err).Msg("worker: job failed")
		status, msg = domain.RawStatusFailed, failureMessage
		if ctx.Err() != nil {
			msg = "Generation interrupted"
		}
	}
	// finish even during shutdown so the job does not stay RUNNING forever
	finishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := w.repo.FinishJob(finishCtx, job.ID, status, msg); err != nil {
		return true, fmt.Errorf("finish job %s: %w", job.ID, err)
	}
	log.Info().Str("status", status).Msg("worker: job finished")
	return true, nil
}

type unit struct {
	angleIndex int
	angle      string
	variation  int
}

func (w *Worker) render(ctx context.Context, job *domain.JobRecord) error {
	quota := job.QuotaPerAngle
	if quota <= 0 {
		quota = 1
	}
	var units []unit
	for i, angle := range job.SelectedAngles {
		for v := 1; v <= quota; v++ {
			units = append(units, unit{angleIndex: i + 1, angle: angle, variation: v})
		}
	}
	if len(units) == 0 {
		return errors.New("job has no angles")
	}

	var product *domain.ProductAsset
	if len(job.ProductImage) > 0 {
		product = &domain.ProductAsset{MIME: job.ProductMIME, Data: job.ProductImage}
	}

	var (
		mu   sync.Mutex
		done int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.parallel)
	for _, u := range units {
		u := u
		g.Go(func() error {
			if err := w.limiter.Wait(gctx); err != nil {
				return err
			}
			img, err := w.gen.Generate(gctx, adgen.Brief{
				JobID:             job.ID,
				OriginID:          job.OriginID,
				Avatar:            job.Avatar,
				Angle:             u.angle,
				AngleIndex:        u.angleIndex,
				Variation:         u.variation,
				Language:          job.Language,
				ReferenceImageIDs: job.ReferenceImageIDs,
				Product:           product,
				Flags:             job.Flags,
			})
			if err != nil {
				return fmt.Errorf("generate angle %d variation %d: %w", u.angleIndex, u.variation, err)
			}
			key, err := w.store.Write(gctx, storage.ResultKey(job.OriginID, job.ID, u.angleIndex, u.variation, img.Ext()), img.Data)
			if err != nil {
				return err
			}

			mu.Lock()
			done++
			// 100 is reserved for FinishJob
			progress := min(99, done*100/len(units))
			step := fmt.Sprintf("rendered %d of %d images", done, len(units))
			mu.Unlock()

			return w.repo.AppendResult(gctx, domain.GeneratedResult{
				ID:              uuid.NewString(),
				JobID:           job.ID,
				OriginID:        job.OriginID,
				ImageURL:        w.store.URL(key),
				AngleIndex:      u.angleIndex,
				VariationNumber: u.variation,
			}, key, progress, step)
		})
	}
	return g.Wait()
}
