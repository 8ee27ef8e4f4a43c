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

package server

import (
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/vidyalaya/cms/internal/errors"
	"github.com/vidyalaya/cms/pkg/repository"
	"k8s.io/klog/v2"
)

const (
	// Set by the authenticating proxy in front of the service.
	headerUser  = "X-Forwarded-User"
	headerEmail = "X-Forwarded-Email"
)

func accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			klog.V(1).InfoS("request",
				"id", middleware.GetReqID(r.Context()),
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start))
		}()
		next.ServeHTTP(ww, r)
	})
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow(clientKey(r)) {
			w.Header().Set("Retry-After", "1")
			writeError(w, errors.E(errors.Op("server.rateLimit"), errors.RateLimited, "too many requests"), false)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func userInfo(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name, email := r.Header.Get(headerUser), r.Header.Get(headerEmail)
		if name != "" || email != "" {
			if name == "" {
				name = email
			}
			r = r.WithContext(repository.WithUserInfo(r.Context(), &repository.UserInfo{Name: name, Email: email}))
		}
		next.ServeHTTP(w, r)
	})
}
