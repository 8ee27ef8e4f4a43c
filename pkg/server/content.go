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
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/vidyalaya/cms/internal/errors"
	"github.com/vidyalaya/cms/pkg/cms"
	"github.com/vidyalaya/cms/pkg/content"
	"k8s.io/klog/v2"
)

// headerDefault marks a response carrying a key's default document.
const headerDefault = "X-Content-Default"

type sectionRequest struct {
	Section  string      `json:"section"`
	Data     interface{} `json:"data"`
	Merge    string      `json:"merge"`
	Revision string      `json:"revision"`
}

func keyParam(r *http.Request) content.Key {
	return content.Key(chi.URLParam(r, "key"))
}

// ifMatch returns the revision named by the If-Match header, if any.
func ifMatch(r *http.Request) content.Revision {
	v := strings.TrimSpace(r.Header.Get("If-Match"))
	v = strings.TrimPrefix(v, "W/")
	return content.Revision(strings.Trim(v, `"`))
}

func writeDocument(w http.ResponseWriter, snap *cms.Snapshot) {
	data, err := content.Encode(snap.Document)
	if err != nil {
		writeError(w, errors.E(errors.Internal, err), false)
		return
	}
	if snap.Revision != "" {
		w.Header().Set("ETag", fmt.Sprintf("%q", snap.Revision))
	}
	if snap.Default {
		w.Header().Set(headerDefault, "true")
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		klog.Warningf("cannot write document %s: %v", snap.Key, err)
	}
}

func (req sectionRequest) toUpdate(key content.Key, header content.Revision) (cms.SectionUpdate, error) {
	u := cms.SectionUpdate{
		Key:      key,
		Section:  req.Section,
		Merge:    content.MergeDepth(req.Merge),
		Revision: content.Revision(req.Revision),
	}
	if u.Revision == "" {
		u.Revision = header
	}
	if req.Data != nil {
		data, ok := req.Data.(map[string]interface{})
		if !ok {
			return u, errors.InvalidField("data", fmt.Sprintf("%T", req.Data), "must be a JSON object")
		}
		u.Data = data
	}
	return u, nil
}

func (s *Server) handleGetContent(w http.ResponseWriter, r *http.Request) {
	snap, err := s.svc.Read(r.Context(), keyParam(r))
	if err != nil {
		writeError(w, err, false)
		return
	}
	writeDocument(w, snap)
}

func (s *Server) handleUpdateContent(w http.ResponseWriter, r *http.Request) {
	var req sectionRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err, false)
		return
	}
	u, err := req.toUpdate(keyParam(r), ifMatch(r))
	if err != nil {
		writeError(w, err, false)
		return
	}
	snap, err := s.svc.UpdateSection(r.Context(), u)
	if err != nil {
		writeError(w, err, false)
		return
	}
	writeDocument(w, snap)
}

func (s *Server) handleResetContent(w http.ResponseWriter, r *http.Request) {
	snap, err := s.svc.Reset(r.Context(), keyParam(r), ifMatch(r))
	if err != nil {
		writeError(w, err, false)
		return
	}
	writeDocument(w, snap)
}

func (s *Server) handleListDrafts(w http.ResponseWriter, r *http.Request) {
	keys, err := s.svc.ListDrafts(r.Context())
	if err != nil {
		writeError(w, err, false)
		return
	}
	if keys == nil {
		keys = []content.Key{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"drafts": keys})
}

func (s *Server) handleGetDraft(w http.ResponseWriter, r *http.Request) {
	snap, err := s.svc.GetDraft(r.Context(), keyParam(r))
	if err != nil {
		writeError(w, err, false)
		return
	}
	writeDocument(w, snap)
}

// isSectionForm reports whether a draft body is a section update rather
// than a full document: it holds a string "section", an object "data" and
// nothing but the optional "merge" and "revision".
func isSectionForm(body map[string]json.RawMessage) bool {
	for k := range body {
		switch k {
		case "section", "data", "merge", "revision":
		default:
			return false
		}
	}
	var section string
	var data map[string]interface{}
	return json.Unmarshal(body["section"], &section) == nil && section != "" &&
		json.Unmarshal(body["data"], &data) == nil && data != nil
}

func (s *Server) handlePutDraft(w http.ResponseWriter, r *http.Request) {
	var body map[string]json.RawMessage
	if err := decodeBody(r, &body); err != nil {
		writeError(w, err, false)
		return
	}
	if body == nil {
		writeError(w, errors.InvalidField("content", "null", "must be a JSON object"), false)
		return
	}
	key := keyParam(r)

	var (
		snap *cms.Snapshot
		err  error
	)
	if isSectionForm(body) {
		var req sectionRequest
		raw, _ := json.Marshal(body)
		if err = json.Unmarshal(raw, &req); err == nil {
			var u cms.SectionUpdate
			if u, err = req.toUpdate(key, ifMatch(r)); err == nil {
				snap, err = s.svc.UpdateDraftSection(r.Context(), u)
			}
		}
	} else {
		raw, _ := json.Marshal(body)
		var doc content.Document
		if doc, err = content.Decode(raw); err == nil {
			snap, err = s.svc.PutDraft(r.Context(), key, doc, ifMatch(r))
		}
	}
	if err != nil {
		writeError(w, err, false)
		return
	}
	writeDocument(w, snap)
}

func (s *Server) handleDeleteDraft(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.DeleteDraft(r.Context(), keyParam(r)); err != nil {
		writeError(w, err, false)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
