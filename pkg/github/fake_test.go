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

package github

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
)

// fakeGitHub is an in-memory subset of the GitHub REST API: git refs,
// trees, commits, contents and pull requests of a single repository.
type fakeGitHub struct {
	mu sync.Mutex

	next    int
	refs    map[string]string
	commits map[string]*fakeCommit
	trees   map[string]map[string]string
	pulls   map[int]*fakePull

	// unmergeable makes every merge fail with 405.
	unmergeable   bool
	authorization string
}

type fakeCommit struct {
	tree    string
	parents []string
	message string
	author  string
	date    time.Time
}

type fakePull struct {
	head, base, title string
	merged            bool
}

func (f *fakeGitHub) pullJSON(number int) map[string]interface{} {
	pr := f.pulls[number]
	state := "open"
	if pr.merged {
		state = "closed"
	}
	return map[string]interface{}{
		"id":       1000 + number,
		"number":   number,
		"title":    pr.title,
		"html_url": fmt.Sprintf("https://github.example/o/r/pull/%d", number),
		"state":    state,
	}
}

// openPull returns the number of the open pull request from head into
// base, or 0.
func (f *fakeGitHub) openPull(head, base string) int {
	for number, pr := range f.pulls {
		if !pr.merged && pr.head == head && pr.base == base {
			return number
		}
	}
	return 0
}

func newFakeGitHub() *fakeGitHub {
	f := &fakeGitHub{
		refs:    map[string]string{},
		commits: map[string]*fakeCommit{},
		trees:   map[string]map[string]string{},
		pulls:   map[int]*fakePull{},
	}
	tree := f.newTree(map[string]string{"README.md": "hello\n"})
	f.refs["main"] = f.newCommit(tree, nil, "initial", "")
	return f
}

func (f *fakeGitHub) nextSHA() string {
	f.next++
	return fmt.Sprintf("%040x", f.next)
}

func (f *fakeGitHub) newTree(files map[string]string) string {
	sha := f.nextSHA()
	f.trees[sha] = files
	return sha
}

func (f *fakeGitHub) newCommit(tree string, parents []string, message, author string) string {
	sha := f.nextSHA()
	f.commits[sha] = &fakeCommit{tree: tree, parents: parents, message: message, author: author, date: time.Now().UTC()}
	return sha
}

func (f *fakeGitHub) isAncestor(ancestor, sha string) bool {
	if ancestor == sha {
		return true
	}
	c, ok := f.commits[sha]
	if !ok {
		return false
	}
	for _, p := range c.parents {
		if f.isAncestor(ancestor, p) {
			return true
		}
	}
	return false
}

func (f *fakeGitHub) resolve(rev string) (string, bool) {
	if sha, ok := f.refs[rev]; ok {
		return sha, true
	}
	_, ok := f.commits[rev]
	return rev, ok
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}

func refJSON(name, sha string) map[string]interface{} {
	return map[string]interface{}{
		"ref":    "refs/heads/" + name,
		"object": map[string]string{"sha": sha, "type": "commit"},
	}
}

func (f *fakeGitHub) server() *httptest.Server {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			f.mu.Lock()
			defer f.mu.Unlock()
			f.authorization = req.Header.Get("Authorization")
			next.ServeHTTP(w, req)
		})
	})

	r.Route("/repos/{owner}/{repo}", func(r chi.Router) {
		r.Get("/git/ref/*", func(w http.ResponseWriter, req *http.Request) {
			name := strings.TrimPrefix(chi.URLParam(req, "*"), "heads/")
			sha, ok := f.refs[name]
			if !ok {
				writeMessage(w, http.StatusNotFound, "Not Found")
				return
			}
			writeJSON(w, http.StatusOK, refJSON(name, sha))
		})
		r.Get("/git/matching-refs/*", func(w http.ResponseWriter, req *http.Request) {
			prefix := strings.TrimPrefix(chi.URLParam(req, "*"), "heads/")
			refs := []interface{}{}
			for name, sha := range f.refs {
				if strings.HasPrefix(name, prefix) {
					refs = append(refs, refJSON(name, sha))
				}
			}
			writeJSON(w, http.StatusOK, refs)
		})
		r.Post("/git/refs", func(w http.ResponseWriter, req *http.Request) {
			var body struct{ Ref, SHA string }
			if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
				writeMessage(w, http.StatusBadRequest, err.Error())
				return
			}
			name := strings.TrimPrefix(body.Ref, "refs/heads/")
			if _, ok := f.refs[name]; ok {
				writeMessage(w, http.StatusUnprocessableEntity, "Reference already exists")
				return
			}
			if _, ok := f.commits[body.SHA]; !ok {
				writeMessage(w, http.StatusUnprocessableEntity, "Object does not exist")
				return
			}
			f.refs[name] = body.SHA
			writeJSON(w, http.StatusCreated, refJSON(name, body.SHA))
		})
		r.Patch("/git/refs/*", func(w http.ResponseWriter, req *http.Request) {
			name := strings.TrimPrefix(chi.URLParam(req, "*"), "heads/")
			var body struct {
				SHA   string
				Force bool
			}
			if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
				writeMessage(w, http.StatusBadRequest, err.Error())
				return
			}
			current, ok := f.refs[name]
			if !ok {
				writeMessage(w, http.StatusUnprocessableEntity, "Reference does not exist")
				return
			}
			if !body.Force && !f.isAncestor(current, body.SHA) {
				writeMessage(w, http.StatusUnprocessableEntity, "Update is not a fast forward")
				return
			}
			f.refs[name] = body.SHA
			writeJSON(w, http.StatusOK, refJSON(name, body.SHA))
		})
		r.Delete("/git/refs/*", func(w http.ResponseWriter, req *http.Request) {
			name := strings.TrimPrefix(chi.URLParam(req, "*"), "heads/")
			if _, ok := f.refs[name]; !ok {
				writeMessage(w, http.StatusUnprocessableEntity, "Reference does not exist")
				return
			}
			delete(f.refs, name)
			w.WriteHeader(http.StatusNoContent)
		})
		r.Get("/git/commits/{sha}", func(w http.ResponseWriter, req *http.Request) {
			sha := chi.URLParam(req, "sha")
			c, ok := f.commits[sha]
			if !ok {
				writeMessage(w, http.StatusNotFound, "Not Found")
				return
			}
			writeJSON(w, http.StatusOK, map[string]interface{}{
				"sha":       sha,
				"message":   c.message,
				"tree":      map[string]string{"sha": c.tree},
				"committer": map[string]interface{}{"name": "GitHub", "date": c.date},
			})
		})
		r.Post("/git/trees", func(w http.ResponseWriter, req *http.Request) {
			var body struct {
				BaseTree string `json:"base_tree"`
				Tree     []struct {
					Path    string
					Content *string
				}
			}
			if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
				writeMessage(w, http.StatusBadRequest, err.Error())
				return
			}
			files := map[string]string{}
			for p, c := range f.trees[body.BaseTree] {
				files[p] = c
			}
			for _, e := range body.Tree {
				if e.Content == nil {
					delete(files, e.Path)
					continue
				}
				files[e.Path] = *e.Content
			}
			writeJSON(w, http.StatusCreated, map[string]string{"sha": f.newTree(files)})
		})
		r.Post("/git/commits", func(w http.ResponseWriter, req *http.Request) {
			var body struct {
				Message string
				Tree    string
				Parents []string
				Author  *struct{ Email string }
			}
			if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
				writeMessage(w, http.StatusBadRequest, err.Error())
				return
			}
			if _, ok := f.trees[body.Tree]; !ok {
				writeMessage(w, http.StatusUnprocessableEntity, "Tree SHA does not exist")
				return
			}
			author := ""
			if body.Author != nil {
				author = body.Author.Email
			}
			writeJSON(w, http.StatusCreated, map[string]string{"sha": f.newCommit(body.Tree, body.Parents, body.Message, author)})
		})
		r.Get("/contents/*", func(w http.ResponseWriter, req *http.Request) {
			p := strings.Trim(chi.URLParam(req, "*"), "/")
			sha, ok := f.resolve(req.URL.Query().Get("ref"))
			if !ok {
				writeMessage(w, http.StatusNotFound, "No commit found for the ref")
				return
			}
			files := f.trees[f.commits[sha].tree]
			if c, ok := files[p]; ok {
				writeJSON(w, http.StatusOK, map[string]string{
					"type":     "file",
					"encoding": "base64",
					"name":     path.Base(p),
					"path":     p,
					"content":  base64.StdEncoding.EncodeToString([]byte(c)),
				})
				return
			}
			entries := []interface{}{}
			for name := range files {
				if path.Dir(name) == p {
					entries = append(entries, map[string]string{"type": "file", "name": path.Base(name), "path": name})
				}
			}
			if len(entries) == 0 {
				writeMessage(w, http.StatusNotFound, "Not Found")
				return
			}
			writeJSON(w, http.StatusOK, entries)
		})
		r.Get("/pulls", func(w http.ResponseWriter, req *http.Request) {
			q := req.URL.Query()
			pulls := []interface{}{}
			if q.Get("state") == "open" {
				head := q.Get("head")
				if i := strings.Index(head, ":"); i >= 0 {
					head = head[i+1:]
				}
				if number := f.openPull(head, q.Get("base")); number != 0 {
					pulls = append(pulls, f.pullJSON(number))
				}
			}
			writeJSON(w, http.StatusOK, pulls)
		})
		r.Post("/pulls", func(w http.ResponseWriter, req *http.Request) {
			var body struct{ Title, Head, Base string }
			if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
				writeMessage(w, http.StatusBadRequest, err.Error())
				return
			}
			if _, ok := f.refs[body.Head]; !ok {
				writeMessage(w, http.StatusUnprocessableEntity, "Validation Failed")
				return
			}
			if f.openPull(body.Head, body.Base) != 0 {
				writeMessage(w, http.StatusUnprocessableEntity, "A pull request already exists for "+body.Head)
				return
			}
			number := len(f.pulls) + 1
			f.pulls[number] = &fakePull{head: body.Head, base: body.Base, title: body.Title}
			writeJSON(w, http.StatusCreated, f.pullJSON(number))
		})
		r.Put("/pulls/{number}/merge", func(w http.ResponseWriter, req *http.Request) {
			number, _ := strconv.Atoi(chi.URLParam(req, "number"))
			pr, ok := f.pulls[number]
			if !ok {
				writeMessage(w, http.StatusNotFound, "Not Found")
				return
			}
			if f.unmergeable || pr.merged {
				writeMessage(w, http.StatusMethodNotAllowed, "Pull Request is not mergeable")
				return
			}
			base, head := f.refs[pr.base], f.refs[pr.head]
			files := map[string]string{}
			for p, c := range f.trees[f.commits[base].tree] {
				files[p] = c
			}
			for p, c := range f.trees[f.commits[head].tree] {
				files[p] = c
			}
			sha := f.newCommit(f.newTree(files), []string{base, head}, "Merge pull request", "")
			f.refs[pr.base] = sha
			pr.merged = true
			writeJSON(w, http.StatusOK, map[string]interface{}{"sha": sha, "merged": true, "message": "Pull Request successfully merged"})
		})
	})
	return httptest.NewServer(r)
}
