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
	"net/http"
	"time"

	"github.com/vidyalaya/cms/internal/errors"
	"github.com/vidyalaya/cms/pkg/cms"
	"github.com/vidyalaya/cms/pkg/content"
)

const (
	actionSave    = "save"
	actionPublish = "publish"
	actionDiscard = "discard"
)

type actionRequest struct {
	Action        string      `json:"action"`
	File          string      `json:"file"`
	Content       interface{} `json:"content"`
	CommitMessage string      `json:"commitMessage"`
	Revision      string      `json:"revision"`
	Branch        string      `json:"branch"`
}

type actionResponse struct {
	Success  bool   `json:"success"`
	Branch   string `json:"branch,omitempty"`
	Commit   string `json:"commit,omitempty"`
	Revision string `json:"revision,omitempty"`
	Message  string `json:"message,omitempty"`
	// PullRequest is the merge request number a publish went through.
	PullRequest int `json:"pullRequest,omitempty"`
}

func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	var req actionRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err, true)
		return
	}

	var (
		resp *actionResponse
		err  error
	)
	switch req.Action {
	case actionSave:
		resp, err = s.save(r, req)
	case actionPublish:
		resp, err = s.publish(r, req)
	case actionDiscard:
		err = s.svc.Discard(r.Context(), req.Branch)
		resp = &actionResponse{Success: true, Branch: req.Branch, Message: "Discarded " + req.Branch}
	case "":
		err = errors.MissingField("action")
	default:
		err = errors.InvalidField("action", req.Action, `must be "save", "publish" or "discard"`)
	}
	if err != nil {
		writeError(w, errors.E(errors.Op("server.action"), err), true)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) save(r *http.Request, req actionRequest) (*actionResponse, error) {
	var doc content.Document
	if req.Content != nil {
		var err error
		if doc, err = content.FromValue("content", req.Content); err != nil {
			return nil, err
		}
	}
	result, err := s.svc.Save(r.Context(), cms.SaveRequest{
		Key:           content.Key(req.File),
		Content:       doc,
		CommitMessage: req.CommitMessage,
		Revision:      content.Revision(req.Revision),
	})
	if err != nil {
		return nil, err
	}
	return &actionResponse{
		Success:  true,
		Branch:   result.Branch,
		Commit:   result.Commit,
		Revision: string(result.Revision),
	}, nil
}

func (s *Server) publish(r *http.Request, req actionRequest) (*actionResponse, error) {
	result, err := s.svc.Publish(r.Context(), req.Branch)
	if err != nil {
		return nil, err
	}
	return &actionResponse{
		Success:     true,
		Branch:      result.Branch,
		Commit:      result.MergeRequest.Commit,
		Message:     result.Message,
		PullRequest: result.MergeRequest.Number,
	}, nil
}

type branchResponse struct {
	Name    string    `json:"name"`
	Commit  string    `json:"commit"`
	Key     string    `json:"key,omitempty"`
	Created time.Time `json:"created,omitempty"`
	Updated time.Time `json:"updated,omitempty"`
}

func (s *Server) handleBranches(w http.ResponseWriter, r *http.Request) {
	branches, err := s.svc.Branches(r.Context())
	if err != nil {
		writeError(w, err, false)
		return
	}
	out := []branchResponse{}
	for _, b := range branches {
		out = append(out, branchResponse{Name: b.Name, Commit: b.Commit, Key: b.Key, Created: b.Created, Updated: b.Updated})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"branches": out})
}
