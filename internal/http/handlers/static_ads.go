package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path"
	"strings"

	"adstudio/internal/domain"
	"adstudio/internal/domain/jsoncfg"
	"adstudio/internal/middleware"
	"adstudio/pkg/zip"

	"github.com/go-chi/chi/v5"
)

// maxRequestBytes leaves room for a base64 product image.
const maxRequestBytes = jsoncfg.MaxProductImageBytes*4/3 + 64<<10

func (a *App) CreateStaticAdJob(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	var req jsoncfg.StaticAdRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	req.Normalize(middleware.LocaleFromContext(r.Context()))
	if err := req.Validate(); err != nil {
		var verr *domain.ValidationError
		if errors.As(err, &verr) {
			a.error(w, http.StatusBadRequest, "validation_failed", verr.Field+" "+verr.Message)
			return
		}
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	job := domain.NewJob{
		UserID:            userID,
		OriginID:          req.OriginID,
		Avatar:            req.Avatar,
		Angles:            req.Angles,
		ReferenceImageIDs: req.ReferenceImageIDs,
		Language:          req.Language,
		Flags:             req.Flags,
		QuotaPerAngle:     a.quotaPerAngle(),
		UsageLimit:        a.staticAdsLimit(),
	}
	if req.Product != nil {
		data, err := req.Product.Decode()
		if err != nil {
			a.error(w, http.StatusBadRequest, "validation_failed", "product_image.data_base64 is not valid base64")
			return
		}
		job.ProductMIME = req.Product.MIME
		job.ProductImage = data
	}

	rec, err := a.Repo.EnqueueJob(r.Context(), job)
	if err != nil {
		var limitErr *domain.UsageLimitError
		if errors.As(err, &limitErr) {
			a.json(w, http.StatusTooManyRequests, jsoncfg.UsageLimitPayload{
				Error:        jsoncfg.ErrorBody{Code: jsoncfg.CodeUsageLimitReached, Message: "static ad usage limit reached"},
				CurrentUsage: limitErr.CurrentUsage,
				Limit:        limitErr.Limit,
			})
			return
		}
		a.Logger.Error().Err(err).Str("user_id", userID).Str("origin_id", req.OriginID).Msg("enqueue static ad job failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to queue job")
		return
	}

	if a.Notifier != nil {
		if err := a.Notifier.Notify(r.Context(), rec.ID); err != nil {
			a.Logger.Warn().Err(err).Str("job_id", rec.ID).Msg("queue notify failed")
		}
	}
	a.json(w, http.StatusAccepted, jsoncfg.JobCreatedPayload{JobID: rec.ID, Status: rec.RawStatus})
}

func (a *App) StaticAdJobStatus(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	jobID := chi.URLParam(r, "job_id")
	if jobID == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "job_id required")
		return
	}
	rec, results, err := a.Repo.GetJob(r.Context(), userID, jobID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "job not found")
			return
		}
		a.Logger.Error().Err(err).Str("job_id", jobID).Msg("load static ad job failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load job")
		return
	}
	a.json(w, http.StatusOK, jobPayload(*rec, results))
}

func (a *App) StaticAdsByOrigin(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	originID := strings.TrimSpace(chi.URLParam(r, "origin_id"))
	if originID == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "origin_id required")
		return
	}
	jobs, results, err := a.Repo.History(r.Context(), userID, originID)
	if err != nil {
		a.Logger.Error().Err(err).Str("origin_id", originID).Msg("load static ad history failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load history")
		return
	}
	out := jsoncfg.HistoryPayload{Jobs: []jsoncfg.JobStatusPayload{}, Results: resultPayloads(results)}
	for _, j := range jobs {
		out.Jobs = append(out.Jobs, jobPayload(j, nil))
	}
	a.json(w, http.StatusOK, out)
}

func (a *App) OriginArchive(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	originID := strings.TrimSpace(chi.URLParam(r, "origin_id"))
	if originID == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "origin_id required")
		return
	}
	items, err := a.Repo.ArchiveItems(r.Context(), userID, originID)
	if err != nil {
		a.Logger.Error().Err(err).Str("origin_id", originID).Msg("load archive items failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load results")
		return
	}
	if len(items) == 0 || a.Store == nil {
		a.error(w, http.StatusNotFound, "not_found", "no results for origin")
		return
	}
	assets := make([]zip.Asset, 0, len(items))
	for _, it := range items {
		data, err := a.Store.Read(r.Context(), it.StorageKey)
		if err != nil {
			a.Logger.Warn().Err(err).Str("result_id", it.ResultID).Msg("archive: skipping unreadable result")
			continue
		}
		assets = append(assets, zip.Asset{
			Filename: fmt.Sprintf("angle-%02d-v%02d%s", it.AngleIndex, it.VariationNumber, path.Ext(it.StorageKey)),
			Data:     data,
		})
	}
	archive, err := zip.ArchiveAssets(assets)
	if err != nil {
		a.Logger.Error().Err(err).Str("origin_id", originID).Msg("archive: build failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to build archive")
		return
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "static-ads-"+originID+".zip"))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(archive)
}

func jobPayload(rec domain.JobRecord, results []domain.GeneratedResult) jsoncfg.JobStatusPayload {
	status := rec.RawStatus
	if status == "" {
		status = strings.ToUpper(string(rec.Status))
	}
	return jsoncfg.JobStatusPayload{
		JobID:          rec.ID,
		OriginID:       rec.OriginID,
		Status:         status,
		Progress:       domain.ClampProgress(rec.Progress),
		CurrentStep:    rec.CurrentStep,
		ErrorMessage:   rec.Error,
		SelectedAngles: rec.SelectedAngles,
		CreatedAt:      rec.CreatedAt,
		UpdatedAt:      rec.UpdatedAt,
		Results:        resultPayloads(results),
	}
}

func resultPayloads(in []domain.GeneratedResult) []jsoncfg.ResultPayload {
	out := make([]jsoncfg.ResultPayload, 0, len(in))
	for _, r := range in {
		out = append(out, jsoncfg.FromResult(r))
	}
	return out
}
