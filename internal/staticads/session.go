// Package staticads drives static ad generation for one origin entity: it
// submits jobs, polls them, merges incremental results and keeps the
// optimistic per-angle placeholders and usage credit in step with the server.
package staticads

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"adstudio/internal/domain"
	"adstudio/internal/infra"
)

const genericJobFailure = "Static ad generation failed"

// Options configures a Session.
type Options struct {
	OriginID    string
	Backend     Backend
	Credentials Credentials
	Notifier    Notifier
	Logger      *infra.Logger

	UsageCategory string
	QuotaPerAngle int
	PollInterval  time.Duration
	UsageDebounce time.Duration

	// AngleCatalog, when set, is the list result angle indexes point into.
	// Otherwise indexes resolve against the tracked job's selected angles.
	AngleCatalog []string
}

// Form is the submission form state. It is reset as soon as a job is
// submitted, independent of the network outcome.
type Form struct {
	Open              bool
	Step              int
	Angles            []string
	ReferenceImageIDs []string
	Product           *domain.ProductAsset
}

// LimitDialog mirrors the dedicated usage-limit dialog.
type LimitDialog struct {
	Open         bool
	CurrentUsage int
	Limit        int
}

// State is a copy of the session state for rendering.
type State struct {
	Job          domain.GenerationJob
	Results      []domain.GeneratedResult
	Placeholders map[string]int
	Generating   []string
	Usage        domain.UsageCredit
	Form         Form
	LimitDialog  LimitDialog
	PollErrors   int
}

type pollLoop interface {
	Start(jobID string) bool
	Stop()
	Wait()
}

// Session owns the state for one origin entity. All mutation happens under
// mu; network calls are made with mu released and their responses are only
// committed if the job they were issued for is still the tracked one.
type Session struct {
	originID string
	backend  Backend
	creds    Credentials
	notifier Notifier
	logger   *infra.Logger
	quota    int
	catalog  []string
	usage    *UsageGate
	poller   pollLoop

	mu           sync.Mutex
	job          domain.GenerationJob
	results      []domain.GeneratedResult
	placeholders Placeholders
	generating   map[string]struct{}
	form         Form
	limit        LimitDialog
	pollErrors   int
	submitSeq    uint64
	closed       bool
}

// NewSession validates opts and returns an idle session. Call Load to pick up
// history and resume an in-flight job.
func NewSession(opts Options) (*Session, error) {
	if opts.OriginID == "" {
		return nil, errors.New("staticads: origin id is required")
	}
	if opts.Backend == nil {
		return nil, errors.New("staticads: backend is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = infra.DiscardLogger()
	}
	notifier := opts.Notifier
	if notifier == nil {
		notifier = nopNotifier{}
	}
	quota := opts.QuotaPerAngle
	if quota <= 0 {
		quota = DefaultQuotaPerAngle
	}
	catalog := make([]string, 0, len(opts.AngleCatalog))
	for _, a := range opts.AngleCatalog {
		catalog = append(catalog, domain.CanonicalAngle(a))
	}
	s := &Session{
		originID:     opts.OriginID,
		backend:      opts.Backend,
		creds:        opts.Credentials,
		notifier:     notifier,
		logger:       logger,
		quota:        quota,
		catalog:      catalog,
		usage:        NewUsageGate(opts.Backend, opts.UsageCategory, opts.UsageDebounce, logger),
		placeholders: Placeholders{},
		generating:   map[string]struct{}{},
	}
	s.poller = NewPoller(opts.PollInterval, s.pollOnce)
	return s, nil
}

// OriginID returns the origin entity this session tracks.
func (s *Session) OriginID() string { return s.originID }

// Usage exposes the usage gate.
func (s *Session) Usage() *UsageGate { return s.usage }

// State returns a snapshot of the session.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	job := s.job
	job.SelectedAngles = append([]string(nil), s.job.SelectedAngles...)
	form := s.form
	form.Angles = append([]string(nil), s.form.Angles...)
	form.ReferenceImageIDs = append([]string(nil), s.form.ReferenceImageIDs...)
	return State{
		Job:          job,
		Results:      append([]domain.GeneratedResult(nil), s.results...),
		Placeholders: s.placeholders.Snapshot(),
		Generating:   sortedKeys(s.generating),
		Usage:        s.usage.Current(),
		Form:         form,
		LimitDialog:  s.limit,
		PollErrors:   s.pollErrors,
	}
}

// Load fetches the origin's history, merges every recorded result and, when
// a job is still in flight and this session is neither tracking one nor
// waiting on a create call, resumes it: placeholders are rebuilt from its
// selected angles and polling starts. Usage is refreshed when an identity is
// available.
func (s *Session) Load(ctx context.Context) error {
	if s.hasIdentity() {
		s.usage.Refresh(ctx)
	}
	hist, err := s.backend.History(ctx, s.originID)
	if err != nil {
		return fmt.Errorf("staticads: load history: %w", err)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.results, _ = MergeResults(s.results, hist.Results, "")
	var resumed *domain.GenerationJob
	if !s.job.Active() && !s.submitPendingLocked() {
		resumed = latestActive(hist.Jobs)
	}
	if resumed != nil {
		s.adoptResumedLocked(*resumed)
		s.poller.Start(resumed.ID)
	}
	s.mu.Unlock()

	if resumed != nil {
		s.logger.Info().Str("job_id", resumed.ID).Strs("angles", resumed.SelectedAngles).Msg("staticads: resuming in-flight job")
		s.notifier.Notify(Event{Kind: EventJobResumed, JobID: resumed.ID, Angles: resumed.SelectedAngles})
	}
	return nil
}

// submitPendingLocked reports whether an optimistic job is waiting for its
// create call to return an id.
func (s *Session) submitPendingLocked() bool {
	return s.job.ID == "" && s.job.Status == domain.JobStatusProcessing
}

func (s *Session) adoptResumedLocked(job domain.GenerationJob) {
	angles := canonicalAngles(job.SelectedAngles)
	job.SelectedAngles = angles
	job.Status = domain.NormalizeStatus(string(job.Status))
	s.submitSeq++
	s.job = job
	s.placeholders.Resume(angles, s.quota)
	for _, a := range angles {
		s.generating[a] = struct{}{}
	}
	var arrived []domain.GeneratedResult
	for _, r := range s.results {
		if r.JobID == job.ID {
			arrived = append(arrived, r)
		}
	}
	s.placeholders.Attribute(arrived, s.attributionAnglesLocked())
}

// latestActive picks the newest job whose normalized status is not terminal.
func latestActive(jobs []domain.GenerationJob) *domain.GenerationJob {
	var best *domain.GenerationJob
	for i := range jobs {
		j := jobs[i]
		if j.ID == "" || domain.NormalizeStatus(string(j.Status)).Terminal() {
			continue
		}
		if best == nil || j.CreatedAt.After(best.CreatedAt) {
			best = &j
		}
	}
	return best
}

// ReferenceImages lists the reusable image library for the reference step.
func (s *Session) ReferenceImages(ctx context.Context) ([]domain.ReferenceImage, error) {
	images, err := s.backend.ListImages(ctx)
	if err != nil {
		return nil, fmt.Errorf("staticads: list images: %w", err)
	}
	return images, nil
}

// Reset stops tracking the current job: polling stops, the job is cleared
// and its placeholders are dropped. Accumulated results are kept. A create
// call still in flight will not be adopted.
func (s *Session) Reset() {
	s.poller.Stop()
	s.mu.Lock()
	s.submitSeq++
	s.clearJobLocked()
	s.placeholders.Clear()
	clear(s.generating)
	s.mu.Unlock()
}

func (s *Session) clearJobLocked() {
	s.job = domain.GenerationJob{OriginID: s.originID}
}

// Close tears down polling and pending usage refreshes regardless of job
// state. It waits for an in-flight poll to return.
func (s *Session) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.poller.Stop()
	s.usage.Stop()
	s.poller.Wait()
}

// pollOnce performs one status poll for jobID. It returns true when the loop
// should end: the job reached a terminal state or is no longer tracked.
func (s *Session) pollOnce(ctx context.Context, jobID string) bool {
	if !s.tracking(jobID) {
		return true
	}

	report, err := s.backend.JobStatus(ctx, jobID)
	if err != nil {
		if ctx.Err() != nil {
			return true
		}
		s.mu.Lock()
		s.pollErrors++
		s.mu.Unlock()
		s.logger.Warn().Err(fmt.Errorf("%w: %w", domain.ErrTransientPoll, err)).Str("job_id", jobID).Msg("staticads: poll failed, retrying next tick")
		return false
	}

	status := domain.NormalizeStatus(report.Status)

	s.mu.Lock()
	if s.closed || s.job.ID != jobID {
		s.mu.Unlock()
		s.logger.Debug().Str("job_id", jobID).Msg("staticads: discarding stale poll response")
		return true
	}
	s.job.Status = status
	if p := domain.ClampProgress(report.Progress); p > s.job.Progress {
		s.job.Progress = p
	}
	s.job.CurrentStep = report.CurrentStep
	s.job.Error = report.Error
	var added []domain.GeneratedResult
	s.results, added = MergeResults(s.results, report.Results, jobID)
	s.placeholders.Attribute(added, s.attributionAnglesLocked())
	if status == domain.JobStatusCompleted {
		s.job.Progress = 100
	}
	if status.Terminal() {
		s.placeholders.Clear()
		clear(s.generating)
	}
	if status == domain.JobStatusFailed && s.job.Error == "" {
		s.job.Error = genericJobFailure
	}
	jobErr := s.job.Error
	s.mu.Unlock()

	if len(added) > 0 {
		s.logger.Debug().Str("job_id", jobID).Int("added", len(added)).Msg("staticads: merged results")
		s.notifier.Notify(Event{Kind: EventResultsArrived, JobID: jobID, Results: added})
		if !status.Terminal() {
			s.usage.RefreshLater()
		}
	}

	switch status {
	case domain.JobStatusCompleted:
		s.reloadHistory(ctx)
		credit := s.usage.Refresh(ctx)
		s.logger.Info().Str("job_id", jobID).Msg("staticads: job completed")
		s.notifier.Notify(Event{Kind: EventJobCompleted, JobID: jobID, Usage: credit})
		return true
	case domain.JobStatusFailed:
		err := &domain.JobExecutionError{JobID: jobID, Message: jobErr}
		s.logger.Error().Err(err).Str("job_id", jobID).Msg("staticads: job failed")
		s.notifier.Notify(Event{Kind: EventJobFailed, JobID: jobID, Err: err})
		return true
	}
	return false
}

// reloadHistory merges the authoritative result list after completion.
func (s *Session) reloadHistory(ctx context.Context) {
	hist, err := s.backend.History(ctx, s.originID)
	if err != nil {
		s.logger.Warn().Err(err).Str("origin_id", s.originID).Msg("staticads: post-completion reload failed")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.results, _ = MergeResults(s.results, hist.Results, "")
}

func (s *Session) tracking(jobID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed && jobID != "" && s.job.ID == jobID
}

func (s *Session) attributionAnglesLocked() []string {
	if len(s.catalog) > 0 {
		return s.catalog
	}
	return s.job.SelectedAngles
}

func (s *Session) hasIdentity() bool {
	return s.creds != nil && s.creds.Token() != ""
}

func canonicalAngles(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, a := range in {
		a = domain.CanonicalAngle(a)
		if a == "" {
			continue
		}
		if _, dup := seen[a]; dup {
			continue
		}
		seen[a] = struct{}{}
		out = append(out, a)
	}
	return out
}
