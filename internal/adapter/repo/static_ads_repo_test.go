package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"adstudio/internal/domain"
	"adstudio/internal/infra"
	"adstudio/internal/sqlinline"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type stubRow struct {
	scan func(dest ...any) error
}

func (r stubRow) Scan(dest ...any) error {
	if r.scan == nil {
		return pgx.ErrNoRows
	}
	return r.scan(dest...)
}

type stubRows struct {
	rows [][]any
	idx  int
}

func (s *stubRows) Next() bool {
	if s.idx >= len(s.rows) {
		return false
	}
	s.idx++
	return true
}

func (s *stubRows) Scan(dest ...any) error {
	return assign(dest, s.rows[s.idx-1])
}

func (s *stubRows) Err() error                                   { return nil }
func (s *stubRows) Close()                                       {}
func (s *stubRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (s *stubRows) Conn() *pgx.Conn                              { return nil }
func (s *stubRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (s *stubRows) RawValues() [][]byte                          { return nil }
func (s *stubRows) Values() ([]any, error) {
	return nil, fmt.Errorf("values not supported in test rows")
}

// assign copies values into scan destinations by pointer type.
func assign(dest []any, values []any) error {
	if len(dest) != len(values) {
		return fmt.Errorf("scan: %d destinations for %d values", len(dest), len(values))
	}
	for i, v := range values {
		switch d := dest[i].(type) {
		case *string:
			*d = v.(string)
		case *int:
			*d = v.(int)
		case **int:
			if v == nil {
				*d = nil
			} else {
				n := v.(int)
				*d = &n
			}
		case *[]byte:
			if v == nil {
				*d = nil
			} else {
				*d = v.([]byte)
			}
		case *time.Time:
			*d = v.(time.Time)
		default:
			return fmt.Errorf("scan: unsupported destination %T", dest[i])
		}
	}
	return nil
}

type execCall struct {
	query string
	args  []any
}

type stubSQL struct {
	rows    map[string]pgx.Row
	queries map[string][][]any
	execs   []execCall
	txs     int
}

func (s *stubSQL) Exec(_ context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	s.execs = append(s.execs, execCall{query: query, args: args})
	return pgconn.CommandTag{}, nil
}

func (s *stubSQL) QueryRow(_ context.Context, query string, _ ...any) pgx.Row {
	if row, ok := s.rows[query]; ok {
		return row
	}
	return stubRow{}
}

func (s *stubSQL) Query(_ context.Context, query string, _ ...any) (pgx.Rows, error) {
	rows, ok := s.queries[query]
	if !ok {
		return nil, fmt.Errorf("unexpected query: %s", query)
	}
	return &stubRows{rows: rows}, nil
}

func (s *stubSQL) InTx(_ context.Context, fn func(infra.SQLExecutor) error) error {
	s.txs++
	return fn(s)
}

var created = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func jobColumns(id, status string, angles []string) []any {
	raw, _ := json.Marshal(angles)
	return []any{
		id, "user-1", "origin-1", status, 40, "rendering", "", "busy parents",
		raw, []byte(`["img-1"]`), "en", []byte(`{"hd":true}`), 2, created, created,
	}
}

func TestEnqueueJobConsumesUsage(t *testing.T) {
	sql := &stubSQL{rows: map[string]pgx.Row{
		sqlinline.QConsumeUsage: stubRow{scan: func(dest ...any) error {
			return assign(dest, []any{3, 20})
		}},
		sqlinline.QInsertStaticAdJob: stubRow{scan: func(dest ...any) error {
			return assign(dest, []any{"job-1", domain.RawStatusQueued, created, created})
		}},
	}}
	repo := NewStaticAdsRepository(sql)

	rec, err := repo.EnqueueJob(context.Background(), domain.NewJob{
		UserID:        "user-1",
		OriginID:      "origin-1",
		Avatar:        "busy parents",
		Angles:        []string{"A: desc A"},
		Language:      "en",
		QuotaPerAngle: 2,
		UsageLimit:    20,
	})
	if err != nil {
		t.Fatalf("EnqueueJob returned error: %v", err)
	}
	if rec.ID != "job-1" || rec.RawStatus != domain.RawStatusQueued || rec.Status != domain.JobStatusPending {
		t.Fatalf("record = %+v", rec)
	}
	if sql.txs != 1 {
		t.Fatalf("expected one transaction, got %d", sql.txs)
	}
	if len(sql.execs) != 2 || sql.execs[0].query != sqlinline.QEnsureUsageCounter || sql.execs[1].query != sqlinline.QInsertUsageEvent {
		t.Fatalf("execs = %+v", sql.execs)
	}
	if sql.execs[1].args[1] != "job-1" {
		t.Fatalf("usage event not linked to job: %v", sql.execs[1].args)
	}
}

func TestEnqueueJobLimitReached(t *testing.T) {
	sql := &stubSQL{rows: map[string]pgx.Row{
		sqlinline.QSelectUsage: stubRow{scan: func(dest ...any) error {
			return assign(dest, []any{5, 5})
		}},
	}}
	repo := NewStaticAdsRepository(sql)

	_, err := repo.EnqueueJob(context.Background(), domain.NewJob{UserID: "user-1", OriginID: "o", Avatar: "a", Angles: []string{"A"}, UsageLimit: 5})
	var limitErr *domain.UsageLimitError
	if !errors.As(err, &limitErr) {
		t.Fatalf("expected usage limit error, got %v", err)
	}
	if limitErr.CurrentUsage != 5 || limitErr.Limit != 5 {
		t.Fatalf("limit = %+v", limitErr)
	}
	for _, e := range sql.execs {
		if e.query == sqlinline.QInsertUsageEvent {
			t.Fatalf("usage event recorded for a rejected job")
		}
	}
}

func TestUsage(t *testing.T) {
	tests := []struct {
		name         string
		row          pgx.Row
		defaultLimit int
		want         domain.UsageCredit
	}{
		{"no counter uses default", stubRow{}, 20, domain.UsageCredit{Category: "static_ads", CurrentUsage: 0, Limit: 20, Allowed: true}},
		{"no counter no default", stubRow{}, 0, domain.UsageCredit{Category: "static_ads", Limit: domain.UnlimitedUsage, Allowed: true}},
		{"at limit", stubRow{scan: func(dest ...any) error { return assign(dest, []any{5, 5}) }}, 20, domain.UsageCredit{Category: "static_ads", CurrentUsage: 5, Limit: 5, Allowed: false}},
		{"null limit", stubRow{scan: func(dest ...any) error { return assign(dest, []any{9, nil}) }}, 20, domain.UsageCredit{Category: "static_ads", CurrentUsage: 9, Limit: domain.UnlimitedUsage, Allowed: true}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			repo := NewStaticAdsRepository(&stubSQL{rows: map[string]pgx.Row{sqlinline.QSelectUsage: tc.row}})
			got, err := repo.Usage(context.Background(), "user-1", "static_ads", tc.defaultLimit)
			if err != nil {
				t.Fatalf("Usage returned error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("Usage = %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestGetJobNotFound(t *testing.T) {
	repo := NewStaticAdsRepository(&stubSQL{})
	if _, _, err := repo.GetJob(context.Background(), "user-1", "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGetJobWithResults(t *testing.T) {
	sql := &stubSQL{
		rows: map[string]pgx.Row{
			sqlinline.QSelectStaticAdJob: stubRow{scan: func(dest ...any) error {
				return assign(dest, jobColumns("job-1", domain.RawStatusRunning, []string{"A: desc A", "B"}))
			}},
		},
		queries: map[string][][]any{
			sqlinline.QSelectStaticAdResultsByJob: {
				{"r1", "job-1", "origin-1", "https://cdn/r1.png", 1, 1, created},
			},
		},
	}
	repo := NewStaticAdsRepository(sql)

	rec, results, err := repo.GetJob(context.Background(), "user-1", "job-1")
	if err != nil {
		t.Fatalf("GetJob returned error: %v", err)
	}
	if rec.Status != domain.JobStatusProcessing || rec.RawStatus != domain.RawStatusRunning {
		t.Fatalf("status = %q / %q", rec.Status, rec.RawStatus)
	}
	if len(rec.SelectedAngles) != 2 || rec.SelectedAngles[1] != "B" {
		t.Fatalf("angles = %v", rec.SelectedAngles)
	}
	if len(rec.ReferenceImageIDs) != 1 || !rec.Flags["hd"] {
		t.Fatalf("refs=%v flags=%v", rec.ReferenceImageIDs, rec.Flags)
	}
	if len(results) != 1 || results[0].ImageURL != "https://cdn/r1.png" {
		t.Fatalf("results = %+v", results)
	}
}

func TestHistory(t *testing.T) {
	sql := &stubSQL{queries: map[string][][]any{
		sqlinline.QSelectStaticAdJobsByOrigin: {
			jobColumns("job-1", domain.RawStatusSucceeded, []string{"A"}),
			jobColumns("job-2", domain.RawStatusQueued, []string{"B"}),
		},
		sqlinline.QSelectStaticAdResultsByOrigin: {
			{"r1", "job-1", "origin-1", "https://cdn/r1.png", 1, 1, created},
			{"r2", "job-1", "origin-1", "https://cdn/r2.png", 1, 2, created},
		},
	}}
	repo := NewStaticAdsRepository(sql)

	jobs, results, err := repo.History(context.Background(), "user-1", "origin-1")
	if err != nil {
		t.Fatalf("History returned error: %v", err)
	}
	if len(jobs) != 2 || jobs[0].Status != domain.JobStatusCompleted || jobs[1].Status != domain.JobStatusPending {
		t.Fatalf("jobs = %+v", jobs)
	}
	if len(results) != 2 {
		t.Fatalf("results = %d", len(results))
	}
}

func TestClaimJobEmptyQueue(t *testing.T) {
	repo := NewStaticAdsRepository(&stubSQL{})
	if _, err := repo.ClaimJob(context.Background()); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestClaimJobReadsProductImage(t *testing.T) {
	sql := &stubSQL{rows: map[string]pgx.Row{
		sqlinline.QWorkerClaimStaticAdJob: stubRow{scan: func(dest ...any) error {
			cols := append(jobColumns("job-1", domain.RawStatusRunning, []string{"A"}), "image/png", []byte{1, 2, 3})
			return assign(dest, cols)
		}},
	}}
	repo := NewStaticAdsRepository(sql)

	rec, err := repo.ClaimJob(context.Background())
	if err != nil {
		t.Fatalf("ClaimJob returned error: %v", err)
	}
	if rec.ProductMIME != "image/png" || len(rec.ProductImage) != 3 {
		t.Fatalf("product = %q %v", rec.ProductMIME, rec.ProductImage)
	}
}

func TestAppendResultRunsInTransaction(t *testing.T) {
	sql := &stubSQL{}
	repo := NewStaticAdsRepository(sql)

	err := repo.AppendResult(context.Background(), domain.GeneratedResult{
		ID:              "r1",
		JobID:           "job-1",
		OriginID:        "origin-1",
		ImageURL:        "https://cdn/r1.png",
		AngleIndex:      1,
		VariationNumber: 2,
	}, "static-ads/job-1/r1.png", 150, "angle 1 of 1")
	if err != nil {
		t.Fatalf("AppendResult returned error: %v", err)
	}
	if sql.txs != 1 || len(sql.execs) != 2 {
		t.Fatalf("txs=%d execs=%d", sql.txs, len(sql.execs))
	}
	if sql.execs[1].query != sqlinline.QUpdateStaticAdProgress || sql.execs[1].args[1] != 100 {
		t.Fatalf("progress update = %+v", sql.execs[1])
	}
}
