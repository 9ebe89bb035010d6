package staticads

import (
	"context"
	"strings"

	"adstudio/internal/domain"
)

// Backend is the REST surface the session consumes. adsapi.Client is the
// production implementation.
type Backend interface {
	CreateJob(ctx context.Context, req CreateJobRequest) (string, error)
	JobStatus(ctx context.Context, jobID string) (StatusReport, error)
	History(ctx context.Context, originID string) (History, error)
	CheckUsage(ctx context.Context, category string) (domain.UsageCredit, error)
	ListImages(ctx context.Context) ([]domain.ReferenceImage, error)
}

// CreateJobRequest is the snapshot sent when a job is submitted.
type CreateJobRequest struct {
	OriginID          string
	Avatar            string
	Angles            []string
	ReferenceImageIDs []string
	Product           *domain.ProductAsset
	Language          string
	Flags             map[string]bool
}

// StatusReport is one poll response. Status is the raw server string; Results
// may be cumulative or a delta.
type StatusReport struct {
	Status      string
	Progress    int
	CurrentStep string
	Error       string
	Results     []domain.GeneratedResult
}

// History is every job and result recorded for an origin entity.
type History struct {
	Jobs    []domain.GenerationJob
	Results []domain.GeneratedResult
}

// Credentials supplies the bearer token for the current identity.
type Credentials interface {
	Token() string
}

// StaticToken is a fixed credential.
type StaticToken string

func (t StaticToken) Token() string { return strings.TrimSpace(string(t)) }
