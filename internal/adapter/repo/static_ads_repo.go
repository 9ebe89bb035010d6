package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"adstudio/internal/domain"
	"adstudio/internal/infra"
	"adstudio/internal/sqlinline"
)

const usageEventJobEnqueued = "STATIC_AD_JOB_ENQUEUED"

// StaticAdsRepository implements domain.StaticAdRepository and
// domain.WorkerRepository on PostgreSQL.
type StaticAdsRepository struct {
	sql infra.TxRunner
}

// NewStaticAdsRepository wires the repository to a marker-checking runner.
func NewStaticAdsRepository(sql infra.TxRunner) *StaticAdsRepository {
	return &StaticAdsRepository{sql: sql}
}

type scanner interface {
	Scan(dest ...any) error
}

// EnqueueJob consumes one usage unit and inserts the job in one transaction.
func (r *StaticAdsRepository) EnqueueJob(ctx context.Context, job domain.NewJob) (*domain.JobRecord, error) {
	angles, err := json.Marshal(nonNilStrings(job.Angles))
	if err != nil {
		return nil, err
	}
	refs, err := json.Marshal(nonNilStrings(job.ReferenceImageIDs))
	if err != nil {
		return nil, err
	}
	flags := job.Flags
	if flags == nil {
		flags = map[string]bool{}
	}
	flagsJSON, err := json.Marshal(flags)
	if err != nil {
		return nil, err
	}

	rec := &domain.JobRecord{
		GenerationJob: domain.GenerationJob{
			OriginID:       job.OriginID,
			SelectedAngles: job.Angles,
		},
		UserID:            job.UserID,
		Avatar:            job.Avatar,
		ReferenceImageIDs: job.ReferenceImageIDs,
		ProductMIME:       job.ProductMIME,
		ProductImage:      job.ProductImage,
		Language:          job.Language,
		Flags:             job.Flags,
		QuotaPerAngle:     job.QuotaPerAngle,
	}

	err = r.sql.InTx(ctx, func(tx infra.SQLExecutor) error {
		category := domain.UsageCategoryStaticAds
		if _, err := tx.Exec(ctx, sqlinline.QEnsureUsageCounter, job.UserID, category, job.UsageLimit); err != nil {
			return fmt.Errorf("ensure usage counter: %w", err)
		}
		var used int
		var limit *int
		if err := tx.QueryRow(ctx, sqlinline.QConsumeUsage, job.UserID, category).Scan(&used, &limit); err != nil {
			if !infra.IsNoRows(err) {
				return fmt.Errorf("consume usage: %w", err)
			}
			credit, err := scanUsage(tx.QueryRow(ctx, sqlinline.QSelectUsage, job.UserID, category), category, job.UsageLimit)
			if err != nil {
				return fmt.Errorf("load usage: %w", err)
			}
			return &domain.UsageLimitError{CurrentUsage: credit.CurrentUsage, Limit: credit.Limit}
		}

		row := tx.QueryRow(ctx, sqlinline.QInsertStaticAdJob,
			job.UserID,
			job.OriginID,
			job.Avatar,
			angles,
			refs,
			job.ProductMIME,
			job.ProductImage,
			job.Language,
			flagsJSON,
			job.QuotaPerAngle,
		)
		if err := row.Scan(&rec.ID, &rec.RawStatus, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return fmt.Errorf("insert job: %w", err)
		}
		rec.Status = domain.NormalizeStatus(rec.RawStatus)

		props, _ := json.Marshal(map[string]any{"origin_id": job.OriginID, "angles": len(job.Angles), "usage_after": used})
		if _, err := tx.Exec(ctx, sqlinline.QInsertUsageEvent, job.UserID, rec.ID, usageEventJobEnqueued, true, props); err != nil {
			return fmt.Errorf("record usage event: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (r *StaticAdsRepository) GetJob(ctx context.Context, userID, jobID string) (*domain.JobRecord, []domain.GeneratedResult, error) {
	rec, err := scanJob(r.sql.QueryRow(ctx, sqlinline.QSelectStaticAdJob, jobID, userID))
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, nil, domain.ErrNotFound
		}
		return nil, nil, fmt.Errorf("load job: %w", err)
	}
	results, err := r.queryResults(ctx, sqlinline.QSelectStaticAdResultsByJob, jobID)
	if err != nil {
		return nil, nil, err
	}
	return rec, results, nil
}

func (r *StaticAdsRepository) History(ctx context.Context, userID, originID string) ([]domain.JobRecord, []domain.GeneratedResult, error) {
	rows, err := r.sql.Query(ctx, sqlinline.QSelectStaticAdJobsByOrigin, userID, originID)
	if err != nil {
		return nil, nil, fmt.Errorf("load jobs: %w", err)
	}
	var jobs []domain.JobRecord
	for rows.Next() {
		rec, err := scanJob(rows)
		if err != nil {
			rows.Close()
			return nil, nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, *rec)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("load jobs: %w", err)
	}
	results, err := r.queryResults(ctx, sqlinline.QSelectStaticAdResultsByOrigin, userID, originID)
	if err != nil {
		return nil, nil, err
	}
	return jobs, results, nil
}

// Usage reports the counter for a category. Users without a counter row
// have used nothing against defaultLimit (<= 0 means unbounded).
func (r *StaticAdsRepository) Usage(ctx context.Context, userID, category string, defaultLimit int) (domain.UsageCredit, error) {
	credit, err := scanUsage(r.sql.QueryRow(ctx, sqlinline.QSelectUsage, userID, category), category, defaultLimit)
	if err != nil {
		return domain.UsageCredit{}, fmt.Errorf("load usage: %w", err)
	}
	return credit, nil
}

func (r *StaticAdsRepository) ListImages(ctx context.Context, userID string) ([]domain.ReferenceImage, error) {
	rows, err := r.sql.Query(ctx, sqlinline.QListReferenceImages, userID)
	if err != nil {
		return nil, fmt.Errorf("load images: %w", err)
	}
	defer rows.Close()
	items := []domain.ReferenceImage{}
	for rows.Next() {
		var img domain.ReferenceImage
		if err := rows.Scan(&img.ID, &img.URL); err != nil {
			return nil, fmt.Errorf("scan image: %w", err)
		}
		items = append(items, img)
	}
	return items, rows.Err()
}

func (r *StaticAdsRepository) ArchiveItems(ctx context.Context, userID, originID string) ([]domain.ArchiveItem, error) {
	rows, err := r.sql.Query(ctx, sqlinline.QSelectStaticAdArchive, userID, originID)
	if err != nil {
		return nil, fmt.Errorf("load archive: %w", err)
	}
	defer rows.Close()
	var items []domain.ArchiveItem
	for rows.Next() {
		var it domain.ArchiveItem
		if err := rows.Scan(&it.ResultID, &it.StorageKey, &it.ImageURL, &it.AngleIndex, &it.VariationNumber); err != nil {
			return nil, fmt.Errorf("scan archive item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// ClaimJob moves the oldest queued job to RUNNING.
func (r *StaticAdsRepository) ClaimJob(ctx context.Context) (*domain.JobRecord, error) {
	var mime string
	var image []byte
	rec, err := scanJob(r.sql.QueryRow(ctx, sqlinline.QWorkerClaimStaticAdJob), &mime, &image)
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("claim job: %w", err)
	}
	rec.ProductMIME = mime
	rec.ProductImage = image
	return rec, nil
}

func (r *StaticAdsRepository) AppendResult(ctx context.Context, result domain.GeneratedResult, storageKey string, progress int, step string) error {
	return r.sql.InTx(ctx, func(tx infra.SQLExecutor) error {
		if _, err := tx.Exec(ctx, sqlinline.QInsertStaticAdResult,
			result.ID,
			result.JobID,
			result.OriginID,
			result.ImageURL,
			storageKey,
			result.AngleIndex,
			result.VariationNumber,
		); err != nil {
			return fmt.Errorf("insert result: %w", err)
		}
		if _, err := tx.Exec(ctx, sqlinline.QUpdateStaticAdProgress, result.JobID, domain.ClampProgress(progress), step); err != nil {
			return fmt.Errorf("update progress: %w", err)
		}
		return nil
	})
}

func (r *StaticAdsRepository) FinishJob(ctx context.Context, jobID, rawStatus, errMsg string) error {
	if _, err := r.sql.Exec(ctx, sqlinline.QFinishStaticAdJob, jobID, rawStatus, errMsg); err != nil {
		return fmt.Errorf("finish job: %w", err)
	}
	return nil
}

func (r *StaticAdsRepository) queryResults(ctx context.Context, query string, args ...any) ([]domain.GeneratedResult, error) {
	rows, err := r.sql.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("load results: %w", err)
	}
	defer rows.Close()
	var out []domain.GeneratedResult
	for rows.Next() {
		var res domain.GeneratedResult
		if err := rows.Scan(&res.ID, &res.JobID, &res.OriginID, &res.ImageURL, &res.AngleIndex, &res.VariationNumber, &res.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

// scanJob reads the shared job column list; extra destinations follow it.
func scanJob(row scanner, extra ...any) (*domain.JobRecord, error) {
	var (
		rec                      domain.JobRecord
		anglesRaw, refsRaw, flag []byte
		createdAt, updatedAt     time.Time
	)
	dest := []any{
		&rec.ID,
		&rec.UserID,
		&rec.OriginID,
		&rec.RawStatus,
		&rec.Progress,
		&rec.CurrentStep,
		&rec.Error,
		&rec.Avatar,
		&anglesRaw,
		&refsRaw,
		&rec.Language,
		&flag,
		&rec.QuotaPerAngle,
		&createdAt,
		&updatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	rec.Status = domain.NormalizeStatus(rec.RawStatus)
	rec.CreatedAt = createdAt
	rec.UpdatedAt = updatedAt
	if len(anglesRaw) > 0 {
		if err := json.Unmarshal(anglesRaw, &rec.SelectedAngles); err != nil {
			return nil, fmt.Errorf("decode selected_angles: %w", err)
		}
	}
	if len(refsRaw) > 0 {
		if err := json.Unmarshal(refsRaw, &rec.ReferenceImageIDs); err != nil {
			return nil, fmt.Errorf("decode reference_image_ids: %w", err)
		}
	}
	if len(flag) > 0 {
		if err := json.Unmarshal(flag, &rec.Flags); err != nil {
			return nil, fmt.Errorf("decode flags: %w", err)
		}
	}
	return &rec, nil
}

func scanUsage(row scanner, category string, defaultLimit int) (domain.UsageCredit, error) {
	credit := domain.UsageCredit{Category: category, Limit: domain.UnlimitedUsage}
	var limit *int
	if err := row.Scan(&credit.CurrentUsage, &limit); err != nil {
		if !infra.IsNoRows(err) {
			return domain.UsageCredit{}, err
		}
		credit.CurrentUsage = 0
		if defaultLimit > 0 {
			limit = &defaultLimit
		}
	}
	if limit != nil {
		credit.Limit = *limit
	}
	credit.Allowed = credit.Unlimited() || credit.CurrentUsage < credit.Limit
	return credit, nil
}

func nonNilStrings(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}

var (
	_ domain.StaticAdRepository = (*StaticAdsRepository)(nil)
	_ domain.WorkerRepository   = (*StaticAdsRepository)(nil)
)
