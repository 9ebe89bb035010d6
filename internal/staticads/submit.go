package staticads

import (
	"context"
	"errors"
	"strings"
	"time"

	"adstudio/internal/domain"
)

const genericSubmitFailure = "Failed to start static ad generation"

// ErrSuperseded is returned by Submit when a newer submission, Reset or Close
// happened while the create call was in flight. The server may still have
// accepted the job; it is not tracked by this session.
var ErrSuperseded = errors.New("staticads: submission superseded")

var errSessionClosed = errors.New("staticads: session closed")

// SubmitRequest is what the user picked in the form.
type SubmitRequest struct {
	Avatar            string
	Angles            []string
	ReferenceImageIDs []string
	Product           *domain.ProductAsset
	Language          string
	Flags             map[string]bool
}

// Submit starts a new generation job. Preconditions are checked in order
// (identity, input, usage) and a failure there leaves the session untouched.
// Past that point the previous job is cleared, optimistic state is seeded and
// the form is reset before the create call goes out; a failed create rolls
// the optimistic state back and marks the job failed.
func (s *Session) Submit(ctx context.Context, req SubmitRequest) (domain.GenerationJob, error) {
	if !s.hasIdentity() {
		s.notifier.Notify(Event{Kind: EventAuthenticationRequired, Err: domain.ErrAuthenticationRequired})
		return domain.GenerationJob{}, domain.ErrAuthenticationRequired
	}
	angles := canonicalAngles(req.Angles)
	if err := validateSubmit(req, angles); err != nil {
		s.notifier.Notify(Event{Kind: EventValidationFailed, Err: err})
		return domain.GenerationJob{}, err
	}

	credit := s.usage.Refresh(ctx)
	if !credit.Allowed {
		err := &domain.UsageLimitError{CurrentUsage: credit.CurrentUsage, Limit: credit.Limit}
		s.mu.Lock()
		s.limit = LimitDialog{Open: true, CurrentUsage: credit.CurrentUsage, Limit: credit.Limit}
		s.mu.Unlock()
		s.logger.Info().Int("current_usage", credit.CurrentUsage).Int("limit", credit.Limit).Msg("staticads: usage limit reached before submit")
		s.notifier.Notify(Event{Kind: EventUsageLimitReached, Usage: credit, Err: err})
		return domain.GenerationJob{}, err
	}

	// The old loop must be gone and the old id cleared before anything new is
	// seeded.
	s.poller.Stop()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return domain.GenerationJob{}, errSessionClosed
	}
	s.submitSeq++
	seq := s.submitSeq
	s.clearJobLocked()

	snapshot := CreateJobRequest{
		OriginID:          s.originID,
		Avatar:            strings.TrimSpace(req.Avatar),
		Angles:            angles,
		ReferenceImageIDs: compactIDs(req.ReferenceImageIDs),
		Product:           req.Product,
		Language:          req.Language,
		Flags:             copyFlags(req.Flags),
	}

	s.job.Status = domain.JobStatusProcessing
	s.job.Progress = 0
	s.job.SelectedAngles = append([]string(nil), angles...)
	s.job.CreatedAt = time.Now().UTC()
	s.placeholders.Seed(angles, s.quota)
	for _, a := range angles {
		s.generating[a] = struct{}{}
	}
	s.form = Form{}
	s.mu.Unlock()

	s.notifier.Notify(Event{Kind: EventSubmissionStarted, Angles: angles})

	jobID, err := s.backend.CreateJob(ctx, snapshot)
	if err == nil && jobID == "" {
		err = errors.New("server returned no job id")
	}

	s.mu.Lock()
	if s.closed || s.submitSeq != seq {
		s.mu.Unlock()
		s.logger.Warn().Str("job_id", jobID).Msg("staticads: submission superseded, response ignored")
		return domain.GenerationJob{ID: jobID}, ErrSuperseded
	}
	if err != nil {
		s.placeholders.Clear()
		clear(s.generating)
		s.job.Status = domain.JobStatusFailed
		return s.failSubmitLocked(err)
	}
	s.job.ID = jobID
	s.job.OriginID = s.originID
	job := s.job
	job.SelectedAngles = append([]string(nil), s.job.SelectedAngles...)
	s.poller.Start(jobID)
	s.mu.Unlock()

	s.logger.Info().Str("job_id", jobID).Str("origin_id", s.originID).Strs("angles", angles).Msg("staticads: job submitted")
	s.notifier.Notify(Event{Kind: EventSubmissionAccepted, JobID: jobID, Angles: angles})
	return job, nil
}

// failSubmitLocked records a failed create call. It releases mu.
func (s *Session) failSubmitLocked(err error) (domain.GenerationJob, error) {
	var limitErr *domain.UsageLimitError
	if errors.As(err, &limitErr) {
		s.limit = LimitDialog{Open: true, CurrentUsage: limitErr.CurrentUsage, Limit: limitErr.Limit}
		s.job.Error = limitErr.Error()
		job := s.job
		s.mu.Unlock()
		s.logger.Info().Int("current_usage", limitErr.CurrentUsage).Int("limit", limitErr.Limit).Msg("staticads: server rejected job, usage limit reached")
		s.notifier.Notify(Event{
			Kind:  EventUsageLimitReached,
			Usage: domain.UsageCredit{Category: s.usage.category, CurrentUsage: limitErr.CurrentUsage, Limit: limitErr.Limit},
			Err:   limitErr,
		})
		return job, limitErr
	}

	s.job.Error = genericSubmitFailure
	job := s.job
	s.mu.Unlock()
	wrapped := &domain.JobCreationError{Err: err}
	s.logger.Error().Err(err).Str("origin_id", s.originID).Msg("staticads: job creation failed")
	s.notifier.Notify(Event{Kind: EventSubmissionFailed, Err: wrapped})
	return job, wrapped
}

func validateSubmit(req SubmitRequest, angles []string) error {
	if len(angles) == 0 {
		return &domain.ValidationError{Field: "angles", Message: "select at least one marketing angle"}
	}
	if strings.TrimSpace(req.Avatar) == "" {
		return &domain.ValidationError{Field: "avatar", Message: "an avatar description is required"}
	}
	if req.Product != nil && len(req.Product.Data) == 0 {
		return &domain.ValidationError{Field: "product_image", Message: "product image is empty"}
	}
	return nil
}

func compactIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			out = append(out, id)
		}
	}
	return out
}

func copyFlags(flags map[string]bool) map[string]bool {
	if len(flags) == 0 {
		return nil
	}
	out := make(map[string]bool, len(flags))
	for k, v := range flags {
		out[k] = v
	}
	return out
}

// OpenForm opens the submission form and re-reads usage.
func (s *Session) OpenForm(ctx context.Context) domain.UsageCredit {
	s.mu.Lock()
	s.form.Open = true
	s.mu.Unlock()
	return s.usage.Refresh(ctx)
}

// SelectAngles replaces the angle selection.
func (s *Session) SelectAngles(angles ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.form.Angles = canonicalAngles(angles)
}

// SelectReferenceImages replaces the reference image selection.
func (s *Session) SelectReferenceImages(ids ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.form.ReferenceImageIDs = compactIDs(ids)
}

// SetProduct attaches (or with nil, drops) the product image.
func (s *Session) SetProduct(asset *domain.ProductAsset) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.form.Product = asset
}

// SetStep moves the form to another step.
func (s *Session) SetStep(step int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if step < 0 {
		step = 0
	}
	s.form.Step = step
}

// CloseForm discards the form. A submitted job keeps polling.
func (s *Session) CloseForm() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.form = Form{}
}

// DismissLimitDialog closes the usage-limit dialog.
func (s *Session) DismissLimitDialog() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.limit = LimitDialog{}
}

// SubmitForm submits the current form selections.
func (s *Session) SubmitForm(ctx context.Context, avatar, language string, flags map[string]bool) (domain.GenerationJob, error) {
	s.mu.Lock()
	req := SubmitRequest{
		Avatar:            avatar,
		Angles:            append([]string(nil), s.form.Angles...),
		ReferenceImageIDs: append([]string(nil), s.form.ReferenceImageIDs...),
		Product:           s.form.Product,
		Language:          language,
		Flags:             flags,
	}
	s.mu.Unlock()
	return s.Submit(ctx, req)
}
