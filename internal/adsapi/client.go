// Package adsapi is the HTTP client for the static ads REST surface. Client
// implements staticads.Backend.
package adsapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"adstudio/internal/domain"
	"adstudio/internal/domain/jsoncfg"
	"adstudio/internal/infra"
	"adstudio/internal/staticads"
)

const maxArchiveBytes = 256 << 20

type Options struct {
	BaseURL     string
	Credentials staticads.Credentials
	HTTPClient  *http.Client
	Timeout     time.Duration
	Logger      *infra.Logger
}

type Client struct {
	httpClient *http.Client
	baseURL    string
	creds      staticads.Credentials
	logger     *infra.Logger
}

func NewClient(opts Options) *Client {
	base := strings.TrimRight(opts.BaseURL, "/")
	if base == "" {
		base = "http://localhost:8080"
	}
	client := opts.HTTPClient
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = infra.DiscardLogger()
	}
	creds := opts.Credentials
	if creds == nil {
		creds = staticads.StaticToken("")
	}
	return &Client{httpClient: client, baseURL: base, creds: creds, logger: logger}
}

// APIError is a non-2xx response that is neither a usage rejection nor an
// authentication failure.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("adsapi: http %d: %s (%s)", e.Status, e.Message, e.Code)
	}
	return fmt.Sprintf("adsapi: http %d", e.Status)
}

// Unwrap maps 404 onto domain.ErrNotFound.
func (e *APIError) Unwrap() error {
	if e.Status == http.StatusNotFound {
		return domain.ErrNotFound
	}
	return nil
}

type errorEnvelope struct {
	Error jsoncfg.ErrorBody `json:"error"`
}

// usageRejection tells a usage-limit 429 apart from request rate limiting.
type usageRejection struct {
	Error        jsoncfg.ErrorBody `json:"error"`
	CurrentUsage *int              `json:"current_usage"`
	Limit        *int              `json:"limit"`
}

func (c *Client) CreateJob(ctx context.Context, req staticads.CreateJobRequest) (string, error) {
	body := jsoncfg.StaticAdRequest{
		Version:           jsoncfg.DefaultRequestVersion,
		OriginID:          req.OriginID,
		Avatar:            req.Avatar,
		Angles:            req.Angles,
		ReferenceImageIDs: req.ReferenceImageIDs,
		Product:           jsoncfg.EncodeProduct(req.Product),
		Language:          req.Language,
		Flags:             req.Flags,
	}
	var out jsoncfg.JobCreatedPayload
	if err := c.do(ctx, http.MethodPost, "/v1/static-ads/jobs", body, &out); err != nil {
		return "", err
	}
	if strings.TrimSpace(out.JobID) == "" {
		return "", errors.New("adsapi: create job: response has no job_id")
	}
	return out.JobID, nil
}

func (c *Client) JobStatus(ctx context.Context, jobID string) (staticads.StatusReport, error) {
	if strings.TrimSpace(jobID) == "" {
		return staticads.StatusReport{}, errors.New("adsapi: job id required")
	}
	var out jsoncfg.JobStatusPayload
	if err := c.do(ctx, http.MethodGet, "/v1/static-ads/jobs/"+url.PathEscape(jobID), nil, &out); err != nil {
		return staticads.StatusReport{}, err
	}
	return staticads.StatusReport{
		Status:      out.Status,
		Progress:    out.Progress,
		CurrentStep: out.CurrentStep,
		Error:       out.ErrorMessage,
		Results:     toResults(out.Results),
	}, nil
}

func (c *Client) History(ctx context.Context, originID string) (staticads.History, error) {
	if strings.TrimSpace(originID) == "" {
		return staticads.History{}, errors.New("adsapi: origin id required")
	}
	var out jsoncfg.HistoryPayload
	if err := c.do(ctx, http.MethodGet, "/v1/static-ads/origins/"+url.PathEscape(originID), nil, &out); err != nil {
		return staticads.History{}, err
	}
	hist := staticads.History{Results: toResults(out.Results)}
	for _, j := range out.Jobs {
		hist.Jobs = append(hist.Jobs, domain.GenerationJob{
			ID:             j.JobID,
			OriginID:       j.OriginID,
			Status:         domain.NormalizeStatus(j.Status),
			Progress:       domain.ClampProgress(j.Progress),
			CurrentStep:    j.CurrentStep,
			Error:          j.ErrorMessage,
			SelectedAngles: j.SelectedAngles,
			CreatedAt:      j.CreatedAt,
			UpdatedAt:      j.UpdatedAt,
		})
	}
	return hist, nil
}

func (c *Client) CheckUsage(ctx context.Context, category string) (domain.UsageCredit, error) {
	if category == "" {
		category = domain.UsageCategoryStaticAds
	}
	var out jsoncfg.UsagePayload
	if err := c.do(ctx, http.MethodGet, "/v1/usage/"+url.PathEscape(category), nil, &out); err != nil {
		return domain.UsageCredit{}, fmt.Errorf("%w: %w", domain.ErrUsageCheckUnavailable, err)
	}
	credit := out.ToUsage()
	if credit.Category == "" {
		credit.Category = category
	}
	return credit, nil
}

func (c *Client) ListImages(ctx context.Context) ([]domain.ReferenceImage, error) {
	var out jsoncfg.ImageLibraryPayload
	if err := c.do(ctx, http.MethodGet, "/v1/images", nil, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

// DownloadArchive fetches a zip of every result recorded for an origin.
func (c *Client) DownloadArchive(ctx context.Context, originID string) ([]byte, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/v1/static-ads/origins/"+url.PathEscape(originID)+"/archive", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/zip")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("adsapi: download archive: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusMultipleChoices {
		return nil, c.decodeError(req, resp)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxArchiveBytes))
	if err != nil {
		return nil, fmt.Errorf("adsapi: read archive: %w", err)
	}
	return data, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if token := c.creds.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("adsapi: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	c.logger.Debug().Str("method", method).Str("path", path).Int("status", resp.StatusCode).Dur("elapsed", time.Since(start)).Msg("adsapi: request")

	if resp.StatusCode >= http.StatusMultipleChoices {
		return c.decodeError(req, resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("adsapi: %s %s: decode: %w", method, path, err)
	}
	return nil
}

func (c *Client) decodeError(req *http.Request, resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return fmt.Errorf("adsapi: %s %s: %w", req.Method, req.URL.Path, domain.ErrAuthenticationRequired)
	case http.StatusTooManyRequests:
		var limit usageRejection
		if err := json.Unmarshal(raw, &limit); err != nil {
			c.logger.Warn().Err(err).Msg("adsapi: undecodable 429 body")
		}
		if limit.Error.Code == jsoncfg.CodeUsageLimitReached || limit.CurrentUsage != nil {
			rejected := &domain.UsageLimitError{}
			if limit.CurrentUsage != nil {
				rejected.CurrentUsage = *limit.CurrentUsage
			}
			if limit.Limit != nil {
				rejected.Limit = *limit.Limit
			}
			return rejected
		}
	}
	apiErr := &APIError{Status: resp.StatusCode}
	var env errorEnvelope
	if err := json.Unmarshal(raw, &env); err == nil {
		apiErr.Code = env.Error.Code
		apiErr.Message = env.Error.Message
	}
	return apiErr
}

func toResults(in []jsoncfg.ResultPayload) []domain.GeneratedResult {
	if len(in) == 0 {
		return nil
	}
	out := make([]domain.GeneratedResult, 0, len(in))
	for _, r := range in {
		out = append(out, r.ToResult())
	}
	return out
}

var _ staticads.Backend = (*Client)(nil)
