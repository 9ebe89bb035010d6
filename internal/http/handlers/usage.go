package handlers

import (
	"net/http"
	"strings"

	"adstudio/internal/domain"
	"adstudio/internal/domain/jsoncfg"

	"github.com/go-chi/chi/v5"
)

func (a *App) UsageCheck(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	category := strings.TrimSpace(chi.URLParam(r, "category"))
	if category == "" {
		category = domain.UsageCategoryStaticAds
	}
	defaultLimit := 0
	if category == domain.UsageCategoryStaticAds {
		defaultLimit = a.staticAdsLimit()
	}
	credit, err := a.Repo.Usage(r.Context(), userID, category, defaultLimit)
	if err != nil {
		a.Logger.Error().Err(err).Str("category", category).Msg("load usage failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load usage")
		return
	}
	a.json(w, http.StatusOK, jsoncfg.FromUsage(credit))
}

func (a *App) ImageLibrary(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	items, err := a.Repo.ListImages(r.Context(), userID)
	if err != nil {
		a.Logger.Error().Err(err).Msg("load image library failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load images")
		return
	}
	if items == nil {
		items = []domain.ReferenceImage{}
	}
	a.json(w, http.StatusOK, jsoncfg.ImageLibraryPayload{Items: items})
}
