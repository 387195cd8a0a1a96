// Package kvstoretest provides an in-memory stand-in for the remote key-value
// REST service, served over httptest. It speaks the same routes as the real
// service and lets tests inject failures per route.
package kvstoretest

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
)

const (
	DefaultAPIKey     = "test-api-key"
	DefaultAuthHeader = "kvstoreio_api_key"
)

type override struct {
	status int
	body   string
}

// Request records a call received by the server.
type Request struct {
	Method string
	Path   string
}

type Server struct {
	*httptest.Server

	apiKey string
	header string

	mux         sync.Mutex
	collections map[string]map[string]string
	overrides   map[string]override
	requests    []Request
	gates       map[string]chan struct{}
}

// New starts a server accepting apiKey in the default auth header. The server
// is closed when the test finishes.
func New(t testing.TB, apiKey string) *Server {
	s := &Server{
		apiKey:      apiKey,
		header:      DefaultAuthHeader,
		collections: map[string]map[string]string{},
		overrides:   map[string]override{},
		gates:       map[string]chan struct{}{},
	}

	s.Server = httptest.NewServer(s.handler())
	t.Cleanup(s.Close)
	return s
}

func (s *Server) handler() http.Handler {
	r := chi.NewRouter()
	r.Use(s.record)
	r.Use(s.auth)
	r.Use(s.intercept)

	r.Route("/collections", func(r chi.Router) {
		r.Get("/", s.listCollections)
		r.Post("/", s.createCollection)

		r.Route("/{collection}", func(r chi.Router) {
			r.Delete("/", s.deleteCollection)
			r.Get("/items", s.listItems)
			r.Get("/items/{key}", s.getItem)
			r.Put("/items/{key}", s.putItem)
		})
	})

	return r
}

// Override makes every request matching method and path answer with status
// and body until Reset is called.
func (s *Server) Override(method, path string, status int, body string) {
	s.mux.Lock()
	defer s.mux.Unlock()

	s.overrides[method+" "+path] = override{status: status, body: body}
}

// FailSet makes writes of key in collection fail with status.
func (s *Server) FailSet(collection, key string, status int) {
	s.Override(http.MethodPut, "/collections/"+collection+"/items/"+key, status, `{"error":"injected"}`)
}

// Hold blocks requests matching method and path until the returned release
// func is called.
func (s *Server) Hold(method, path string) (release func()) {
	ch := make(chan struct{})

	s.mux.Lock()
	s.gates[method+" "+path] = ch
	s.mux.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mux.Lock()
			delete(s.gates, method+" "+path)
			s.mux.Unlock()
			close(ch)
		})
	}
}

func (s *Server) Reset() {
	s.mux.Lock()
	defer s.mux.Unlock()

	s.overrides = map[string]override{}
}

// Seed creates collection with the given entries.
func (s *Server) Seed(collection string, values map[string]string) {
	s.mux.Lock()
	defer s.mux.Unlock()

	items := s.collections[collection]
	if items == nil {
		items = map[string]string{}
		s.collections[collection] = items
	}

	for k, v := range values {
		items[k] = v
	}
}

func (s *Server) HasCollection(name string) bool {
	s.mux.Lock()
	defer s.mux.Unlock()

	_, ok := s.collections[name]
	return ok
}

// Values returns a copy of the entries stored in collection.
func (s *Server) Values(collection string) map[string]string {
	s.mux.Lock()
	defer s.mux.Unlock()

	values := make(map[string]string, len(s.collections[collection]))
	for k, v := range s.collections[collection] {
		values[k] = v
	}

	return values
}

// Count reports how many requests matched method and path.
func (s *Server) Count(method, path string) int {
	s.mux.Lock()
	defer s.mux.Unlock()

	var n int
	for _, r := range s.requests {
		if r.Method == method && r.Path == path {
			n++
		}
	}

	return n
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mux.Lock()
		s.requests = append(s.requests, Request{Method: r.Method, Path: r.URL.Path})
		s.mux.Unlock()

		next.ServeHTTP(w, r)
	})
}

func (s *Server) auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(s.header) != s.apiKey {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid api key"})
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) intercept(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Method + " " + r.URL.Path

		s.mux.Lock()
		gate := s.gates[key]
		s.mux.Unlock()

		if gate != nil {
			select {
			case <-gate:
			case <-r.Context().Done():
				return
			}
		}

		s.mux.Lock()
		o, ok := s.overrides[key]
		s.mux.Unlock()

		if ok {
			w.WriteHeader(o.status)
			_, _ = io.WriteString(w, o.body)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) listCollections(w http.ResponseWriter, r *http.Request) {
	s.mux.Lock()
	collections := make(map[string]any, len(s.collections))
	for name, items := range s.collections {
		collections[name] = map[string]int{"items": len(items)}
	}
	s.mux.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{"collections": collections})
}

func (s *Server) createCollection(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Collection string `json:"collection"`
	}

	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Collection == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid body"})
		return
	}

	s.mux.Lock()
	defer s.mux.Unlock()

	if _, ok := s.collections[body.Collection]; ok {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "collection already exists"})
		return
	}

	s.collections[body.Collection] = map[string]string{}
	writeJSON(w, http.StatusCreated, map[string]string{"collection": body.Collection})
}

func (s *Server) deleteCollection(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "collection")

	s.mux.Lock()
	defer s.mux.Unlock()

	if _, ok := s.collections[name]; !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "collection not found"})
		return
	}

	delete(s.collections, name)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listItems(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "collection")

	s.mux.Lock()
	items, ok := s.collections[name]
	var values []map[string]string
	if ok {
		keys := make([]string, 0, len(items))
		for k := range items {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		values = make([]map[string]string, 0, len(keys))
		for _, k := range keys {
			values = append(values, map[string]string{"key": k, "value": items[k]})
		}
	}
	s.mux.Unlock()

	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "collection not found"})
		return
	}

	writeJSON(w, http.StatusOK, values)
}

func (s *Server) getItem(w http.ResponseWriter, r *http.Request) {
	name, key := chi.URLParam(r, "collection"), chi.URLParam(r, "key")

	s.mux.Lock()
	value, ok := s.collections[name][key]
	s.mux.Unlock()

	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "item not found"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"key": key, "value": value})
}

func (s *Server) putItem(w http.ResponseWriter, r *http.Request) {
	name, key := chi.URLParam(r, "collection"), chi.URLParam(r, "key")

	b, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	s.mux.Lock()
	items, ok := s.collections[name]
	if ok {
		items[key] = string(b)
	}
	s.mux.Unlock()

	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "collection not found"})
		return
	}

	w.WriteHeader(http.StatusOK)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
