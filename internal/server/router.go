// Package server exposes the control plane over HTTP. Which routes exist is
// decided once per boot by the connectivity outcome.
package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/HenriMatthijssen/ePaper/internal/config"
	"github.com/HenriMatthijssen/ePaper/internal/connectivity"
	"github.com/HenriMatthijssen/ePaper/internal/control"
	"github.com/HenriMatthijssen/ePaper/internal/device"
	"github.com/HenriMatthijssen/ePaper/internal/firmware"
	"github.com/HenriMatthijssen/ePaper/internal/metrics"
	"github.com/HenriMatthijssen/ePaper/internal/session"
	"github.com/HenriMatthijssen/ePaper/internal/store"
	"github.com/HenriMatthijssen/ePaper/pkg/httpx"
)

func Logger(cfg config.Config) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339
	return log.Logger.Level(cfg.LogLevel).With().Timestamp().Logger()
}

// Deps are the per-boot collaborators shared by all handlers.
type Deps struct {
	Config     config.Config
	Store      *store.Store
	Sessions   *session.Authenticator
	Dispatcher *control.Dispatcher
	Network    *connectivity.Manager
	Firmware   *firmware.Receiver
	Restarter  *device.Restarter
	Metrics    *metrics.Metrics
	Logger     zerolog.Logger
}

type handlers struct {
	Deps
	log zerolog.Logger
}

func newRouter(d Deps) (*chi.Mux, *handlers) {
	h := &handlers{Deps: d, log: d.Logger.With().Str("component", "http").Logger()}
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(zerologMiddleware(h.log))
	r.Use(securityHeaders)
	r.Use(serialize())
	return r, h
}

// NewStationRouter builds the full surface served once the station link is up.
func NewStationRouter(d Deps) http.Handler {
	r, h := newRouter(d)

	r.Get("/login", h.loginPage)
	r.Post("/login", h.loginForm)
	r.Post("/login_ajax", h.loginAjax)
	r.HandleFunc("/logout", h.logout)

	apiCORS := func(next http.Handler) http.Handler { return next }
	if len(d.Config.CORSOrigins) > 0 {
		c := cors.New(cors.Options{
			AllowedOrigins: d.Config.CORSOrigins,
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"*"},
		})
		apiCORS = c.Handler
	}
	r.With(apiCORS).HandleFunc("/api", h.api)

	// The firmware upload is not behind the session check.
	r.Post("/upgradefw2", h.upgradeUpload)

	if d.Config.MetricsEnabled && d.Metrics != nil {
		r.Handle("/metrics", d.Metrics.Handler())
	}

	r.Group(func(pr chi.Router) {
		pr.Use(h.requireSession)
		pr.Get("/", h.index)
		pr.Get("/settings", h.settingsPage)
		pr.Post("/settings", h.settingsForm)
		pr.Post("/settings_ajax", h.settingsAjax)
		pr.HandleFunc("/erase", h.erase)
		pr.Get("/upgradefw", h.upgradePage)
	})
	return r
}

// NewAPRouter builds the credential surface served in fallback AP mode.
// Nothing else is reachable until the device restarts.
func NewAPRouter(d Deps) http.Handler {
	r, h := newRouter(d)
	r.Get("/", h.setupPage)
	r.Post("/wifi", h.wifi)
	r.Get("/apqr.png", h.apQR)
	return r
}

// requireSession clears the cookie and redirects to /login before any body
// is written when the session check fails.
func (h *handlers) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("logout") != "" {
			h.logout(w, r)
			return
		}
		if !h.Sessions.Check(w, r, true) {
			session.Clear(w)
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// restartAfter flushes what was written so far and schedules the restart.
func (h *handlers) restartAfter(w http.ResponseWriter, reason string) {
	httpx.Flush(w)
	h.Restarter.Schedule(reason)
}
