// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package httpapi

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gobwas/glob"
	"github.com/samber/oops"
)

// DefaultRequestTimeout bounds handler execution.
const DefaultRequestTimeout = 30 * time.Second

// Options configures NewRouter.
type Options struct {
	Logger *slog.Logger
	// Metrics is optional.
	Metrics HTTPMetrics
	// CORSOrigins are glob patterns such as "https://*.example.com". Empty
	// allows every origin without credentials.
	CORSOrigins    []string
	RequestTimeout time.Duration
}

// NewRouter builds the API handler.
func NewRouter(svc AuthService, opts Options) (http.Handler, error) {
	if svc == nil {
		return nil, oops.Errorf("auth service is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	allowOrigin, restricted, err := originMatcher(opts.CORSOrigins)
	if err != nil {
		return nil, err
	}

	h := &handlers{svc: svc, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger, opts.Metrics))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(timeout))
	r.Use(cors.Handler(cors.Options{
		AllowOriginFunc:  allowOrigin,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: restricted,
		MaxAge:           300,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Route("/users", func(r chi.Router) {
			r.Post("/register", h.register)
			r.Post("/login/initiate", h.initiateLogin)
			r.Post("/login/verify", h.verifyLogin)
		})
		r.Group(func(r chi.Router) {
			r.Use(RequireAuth(svc, logger))
			r.Get("/home", h.home)
		})
	})

	r.NotFound(h.notFound)
	r.MethodNotAllowed(h.methodNotAllowed)
	return r, nil
}

// originMatcher compiles CORS origin globs. Patterns are matched
// case-insensitively against the Origin header. restricted is false when no
// pattern is configured and every origin is allowed.
func originMatcher(patterns []string) (match func(*http.Request, string) bool, restricted bool, err error) {
	var globs []glob.Glob
	for _, p := range patterns {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		g, err := glob.Compile(p)
		if err != nil {
			return nil, false, oops.Code("HTTP_INVALID_CORS_ORIGIN").With("pattern", p).Wrap(err)
		}
		globs = append(globs, g)
	}
	return func(_ *http.Request, origin string) bool {
		if len(globs) == 0 {
			return true
		}
		origin = strings.ToLower(origin)
		for _, g := range globs {
			if g.Match(origin) {
				return true
			}
		}
		return false
	}, len(globs) > 0, nil
}
