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
	"encoding/json"
	"net/http"

	"github.com/vidyalaya/cms/internal/errors"
	"k8s.io/klog/v2"
)

type errorResponse struct {
	// Success is only reported by the workflow endpoint.
	Success *bool  `json:"success,omitempty"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

func statusFor(err error) int {
	switch errors.KindOf(err) {
	case errors.Validation, errors.InvalidBranch:
		return http.StatusBadRequest
	case errors.NotFound:
		return http.StatusNotFound
	case errors.Conflict:
		return http.StatusConflict
	case errors.RateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error, withSuccess bool) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		klog.Errorf("request failed: %v", err)
	} else {
		klog.V(2).Infof("request rejected: %v", err)
	}
	resp := errorResponse{
		Error:   errors.KindOf(err).Name(),
		Message: errors.Cause(err).Error(),
	}
	if withSuccess {
		f := false
		resp.Success = &f
	}
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		klog.Warningf("cannot write response: %v", err)
	}
}

// decodeBody decodes a JSON request body into v.
func decodeBody(r *http.Request, v interface{}) error {
	if r.Body == nil || r.Body == http.NoBody {
		return errors.E(errors.Validation, "request body is required")
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errors.E(errors.Validation, "request body is not valid JSON: "+err.Error())
	}
	return nil
}
