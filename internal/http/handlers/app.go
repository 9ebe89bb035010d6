package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"adstudio/internal/domain"
	"adstudio/internal/domain/jsoncfg"
	"adstudio/internal/infra"
	"adstudio/internal/middleware"
)

// JobNotifier wakes the worker after a job is queued.
type JobNotifier interface {
	Notify(ctx context.Context, jobID string) error
}

// ImageReader loads stored result bytes for archives.
type ImageReader interface {
	Read(ctx context.Context, key string) ([]byte, error)
}

type App struct {
	Repo     domain.StaticAdRepository
	Config   *infra.Config
	Logger   infra.Logger
	Store    ImageReader
	Notifier JobNotifier
}

func NewApp(repo domain.StaticAdRepository, cfg *infra.Config, logger infra.Logger, store ImageReader, notifier JobNotifier) *App {
	return &App{Repo: repo, Config: cfg, Logger: logger, Store: store, Notifier: notifier}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, status int, code, message string) {
	a.json(w, status, map[string]jsoncfg.ErrorBody{"error": {Code: code, Message: message}})
}

func (a *App) currentUserID(r *http.Request) string {
	return middleware.UserIDFromContext(r.Context())
}

func (a *App) quotaPerAngle() int {
	if a.Config == nil || a.Config.QuotaPerAngle <= 0 {
		return 2
	}
	return a.Config.QuotaPerAngle
}

func (a *App) staticAdsLimit() int {
	if a.Config == nil {
		return 0
	}
	return a.Config.StaticAdsLimit
}
