// Package router assembles the HTTP surface of the session service.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/vedran77/dermacheck/internal/transport/http/handlers"
	"github.com/vedran77/dermacheck/internal/transport/http/middleware"
)

type Deps struct {
	Session     *handlers.SessionHandler
	RateLimiter *middleware.RateLimiter
	WS          http.Handler
	Metrics     http.Handler
	Blobs       http.Handler
	CORSOrigin  string
	Logger      *zap.Logger
}

func New(d Deps) chi.Router {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(middleware.Recovery(d.Logger))
	r.Use(middleware.RequestLogger(d.Logger))
	r.Use(middleware.CORS(d.CORSOrigin))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status": "ok"}`))
	})
	if d.Metrics != nil {
		r.Handle("/metrics", d.Metrics)
	}
	if d.WS != nil {
		r.Handle("/ws", d.WS)
	}
	if d.Blobs != nil {
		r.Handle("/blobs/*", http.StripPrefix("/blobs/", d.Blobs))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/session", d.Session.Get)
		r.Post("/notifications/consume", d.Session.ConsumeNotification)

		// intents
		r.Group(func(r chi.Router) {
			if d.RateLimiter != nil {
				r.Use(d.RateLimiter.Middleware)
			}
			r.Post("/session/signup", d.Session.Signup)
			r.Post("/session/login", d.Session.Login)
			r.Post("/session/logout", d.Session.Logout)
			r.Patch("/profile", d.Session.UpdateProfile)
			r.Post("/profile/avatar", d.Session.UploadAvatar)
		})
	})

	return r
}
