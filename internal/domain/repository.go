package domain

import "context"

// Raw status values stored by the reference server. Clients must pass them
// through NormalizeStatus.
const (
	RawStatusQueued    = "QUEUED"
	RawStatusRunning   = "RUNNING"
	RawStatusSucceeded = "SUCCEEDED"
	RawStatusFailed    = "FAILED"
)

// JobRecord is the server-side view of a generation job.
type JobRecord struct {
	GenerationJob
	UserID            string
	RawStatus         string
	Avatar            string
	ReferenceImageIDs []string
	ProductMIME       string
	ProductImage      []byte
	Language          string
	Flags             map[string]bool
	QuotaPerAngle     int
}

// NewJob is the input for enqueuing a generation job.
type NewJob struct {
	UserID            string
	OriginID          string
	Avatar            string
	Angles            []string
	ReferenceImageIDs []string
	ProductMIME       string
	ProductImage      []byte
	Language          string
	Flags             map[string]bool
	QuotaPerAngle     int
	UsageLimit        int
}

// StaticAdRepository persists jobs, results and usage for the API.
type StaticAdRepository interface {
	// EnqueueJob consumes one usage unit and inserts the job atomically. It
	// returns *UsageLimitError when the limit is already reached.
	EnqueueJob(ctx context.Context, job NewJob) (*JobRecord, error)
	GetJob(ctx context.Context, userID, jobID string) (*JobRecord, []GeneratedResult, error)
	History(ctx context.Context, userID, originID string) ([]JobRecord, []GeneratedResult, error)
	Usage(ctx context.Context, userID, category string, defaultLimit int) (UsageCredit, error)
	ListImages(ctx context.Context, userID string) ([]ReferenceImage, error)
	ArchiveItems(ctx context.Context, userID, originID string) ([]ArchiveItem, error)
}

// ArchiveItem locates the stored bytes of one result.
type ArchiveItem struct {
	ResultID        string
	StorageKey      string
	ImageURL        string
	AngleIndex      int
	VariationNumber int
}

// WorkerRepository is used by the generation worker.
type WorkerRepository interface {
	// ClaimJob marks the oldest queued job as running. ErrNotFound means the
	// queue is empty.
	ClaimJob(ctx context.Context) (*JobRecord, error)
	// AppendResult records one image and the job's new progress together.
	AppendResult(ctx context.Context, result GeneratedResult, storageKey string, progress int, step string) error
	FinishJob(ctx context.Context, jobID, rawStatus, errMsg string) error
}
