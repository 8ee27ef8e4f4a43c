// Copyright 2026 The cms Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package server exposes the publishing workflow over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/vidyalaya/cms/pkg/cms"
	"github.com/vidyalaya/cms/pkg/ratelimit"
	"k8s.io/klog/v2"
)

type Options struct {
	Service *cms.Service
	// Limiter defaults to ratelimit.Unlimited.
	Limiter ratelimit.Limiter
	// Gatherer backs /metrics. Defaults to prometheus.DefaultGatherer.
	Gatherer prometheus.Gatherer
}

type Server struct {
	svc      *cms.Service
	limiter  ratelimit.Limiter
	gatherer prometheus.Gatherer
}

func New(opts Options) *Server {
	s := &Server{svc: opts.Service, limiter: opts.Limiter, gatherer: opts.Gatherer}
	if s.limiter == nil {
		s.limiter = ratelimit.Unlimited{}
	}
	if s.gatherer == nil {
		s.gatherer = prometheus.DefaultGatherer
	}
	return s
}

// Handler returns the routed API.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(accessLog)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	r.Route("/api", func(r chi.Router) {
		r.Use(s.rateLimit)
		r.Use(userInfo)

		r.Post("/cms", s.handleAction)
		r.Get("/cms/branches", s.handleBranches)

		r.Get("/content/{key}", s.handleGetContent)
		r.Put("/content/{key}", s.handleUpdateContent)
		r.Delete("/content/{key}", s.handleResetContent)

		r.Get("/drafts", s.handleListDrafts)
		r.Get("/drafts/{key}", s.handleGetDraft)
		r.Put("/drafts/{key}", s.handlePutDraft)
		r.Delete("/drafts/{key}", s.handleDeleteDraft)
	})
	return r
}

// ListenAndServe serves until ctx is cancelled, then gives in-flight
// requests up to grace to complete.
func (s *Server) ListenAndServe(ctx context.Context, addr string, grace time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		klog.Infof("listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	klog.Infof("shutting down, waiting up to %s for in-flight requests", grace)
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), grace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
