package httpapi

import (
	stdhttp "net/http"
	"time"

	"adstudio/internal/http/handlers"
	mw "adstudio/internal/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Options carries the pieces of the router that depend on runtime setup.
type Options struct {
	// CountryLookup feeds locale detection. Nil disables IP lookups.
	CountryLookup mw.CountryLookup
	// StaticDir is served under /static when set.
	StaticDir string
}

func NewRouter(app *handlers.App, opts Options) stdhttp.Handler {
	cfg := app.Config
	r := chi.NewRouter()
	r.Use(
		middleware.RealIP,
		middleware.Recoverer,
		mw.RequestID,
		mw.Logger(app.Logger),
		mw.CORS(cfg.CORSAllowedOrigins),
		mw.I18N(cfg.DefaultLocale, opts.CountryLookup),
	)

	// Health
	r.Get("/v1/healthz", app.Health)
	r.Get("/v1/openapi.json", app.OpenAPIJSON)
	r.Get("/v1/docs", app.OpenAPIDocs)

	r.Group(func(r chi.Router) {
		r.Use(mw.AuthJWT(cfg.JWTSecret), mw.RateLimit(cfg.RateLimitPerMin, time.Minute))

		r.Route("/v1/static-ads", func(r chi.Router) {
			r.Post("/jobs", app.CreateStaticAdJob)
			r.Get("/jobs/{job_id}", app.StaticAdJobStatus)
			r.Get("/origins/{origin_id}", app.StaticAdsByOrigin)
			r.Get("/origins/{origin_id}/archive", app.OriginArchive)
		})
		r.Get("/v1/usage/{category}", app.UsageCheck)
		r.Get("/v1/images", app.ImageLibrary)
	})

	if opts.StaticDir != "" {
		fs := stdhttp.StripPrefix("/static/", stdhttp.FileServer(stdhttp.Dir(opts.StaticDir)))
		r.Get("/static/*", fs.ServeHTTP)
	}

	return r
}
