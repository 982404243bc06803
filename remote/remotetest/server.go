// Package remotetest provides an in-memory payment platform for tests. It
// speaks the same envelope format as the real API, assigns ids on create and
// answers 404 for anything it does not hold.
package remotetest

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"

	"go.uber.org/zap"

	"goflare.io/paysync/remote"
)

type collection struct {
	path     string
	envelope string
	idField  string
	prefix   string
}

var collections = []collection{
	{"/v1/checkout/sessions", "checkout_session", "checkout_session_id", "fcs"},
	{"/v1/products", "product", "product_id", "fprod"},
	{"/v1/prices", "price", "price_id", "fprice"},
	{"/v1/coupons", "coupon", "coupon_id", "fcoup"},
	{"/v1/webhooks", "webhook", "webhook_id", "fwh"},
}

// Request is one call the server received.
type Request struct {
	Method string
	Path   string
	Header http.Header
	Body   map[string]any
}

type Server struct {
	*httptest.Server

	mu        sync.Mutex
	objects   map[string]map[string]any
	requests  []Request
	overrides map[string]http.HandlerFunc
	seq       int
}

func NewServer(t testing.TB) *Server {
	s := &Server{
		objects:   map[string]map[string]any{},
		overrides: map[string]http.HandlerFunc{},
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.Close)
	return s
}

// Client returns a remote client pointed at the server.
func (s *Server) Client() *remote.Client {
	return remote.New(remote.Config{APIKey: "fsk_test_key", BaseURL: s.URL}, zap.NewNop())
}

// Handle replaces the default behaviour for one method and path.
func (s *Server) Handle(method, path string, h http.HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.overrides[method+" "+path] = h
}

// Put stores obj at path as if it had been created remotely.
func (s *Server) Put(path string, obj map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[path] = obj
}

// Remove drops the object at path, as an out-of-band deletion would.
func (s *Server) Remove(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, path)
}

func (s *Server) Object(path string) (map[string]any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, ok := s.objects[path]
	return obj, ok
}

func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// Count returns how many requests matched method and path.
func (s *Server) Count(method, path string) int {
	n := 0
	for _, r := range s.Requests() {
		if r.Method == method && r.Path == path {
			n++
		}
	}
	return n
}

// Writes returns the number of non-GET requests.
func (s *Server) Writes() int {
	n := 0
	for _, r := range s.Requests() {
		if r.Method != http.MethodGet {
			n++
		}
	}
	return n
}

// Paths lists the paths of all stored objects.
func (s *Server) Paths() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	paths := make([]string, 0, len(s.objects))
	for p := range s.objects {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	raw, _ := io.ReadAll(r.Body)
	body := map[string]any{}
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &body)
	}

	s.mu.Lock()
	s.requests = append(s.requests, Request{Method: r.Method, Path: r.URL.Path, Header: r.Header.Clone(), Body: body})
	h, ok := s.overrides[r.Method+" "+r.URL.Path]
	s.mu.Unlock()

	if ok {
		r.Body = io.NopCloser(bytes.NewReader(raw))
		h(w, r)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	path := r.URL.Path
	if r.Method == http.MethodPost && strings.HasPrefix(path, "/v1/checkout/sessions/") && strings.HasSuffix(path, "/refund") {
		s.createRefund(w, path, body)
		return
	}

	col, id, found := route(path)
	if !found {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "unknown path"})
		return
	}

	if id == "" {
		if r.Method != http.MethodPost {
			writeJSON(w, http.StatusMethodNotAllowed, map[string]any{"error": "method not allowed"})
			return
		}
		s.create(w, col, body)
		return
	}

	obj, ok := s.objects[path]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "not found"})
		return
	}

	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]any{col.envelope: obj})
	case http.MethodPatch, http.MethodPost:
		if in, ok := body[col.envelope].(map[string]any); ok {
			for k, v := range in {
				obj[k] = v
			}
		}
		writeJSON(w, http.StatusOK, map[string]any{col.envelope: obj})
	case http.MethodDelete:
		delete(s.objects, path)
		w.WriteHeader(http.StatusNoContent)
	default:
		writeJSON(w, http.StatusMethodNotAllowed, map[string]any{"error": "method not allowed"})
	}
}

func route(path string) (collection, string, bool) {
	for _, c := range collections {
		if path == c.path {
			return c, "", true
		}
		if rest, ok := strings.CutPrefix(path, c.path+"/"); ok && rest != "" && !strings.Contains(rest, "/") {
			return c, rest, true
		}
	}
	return collection{}, "", false
}

func (s *Server) nextID(prefix string) string {
	s.seq++
	return fmt.Sprintf("%s_%d", prefix, s.seq)
}

func (s *Server) create(w http.ResponseWriter, col collection, body map[string]any) {
	in, ok := body[col.envelope].(map[string]any)
	if !ok {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"error": "missing " + col.envelope})
		return
	}

	obj := make(map[string]any, len(in)+4)
	for k, v := range in {
		obj[k] = v
	}
	id := s.nextID(col.prefix)
	obj[col.idField] = id

	switch col.envelope {
	case "webhook":
		obj["signing_secret"] = "fwhsec_" + base64.StdEncoding.EncodeToString([]byte("secret-"+id))
	case "checkout_session":
		obj["status"] = "open"
		obj["redirect_url"] = "https://checkout.test/pay/" + id
	}

	s.objects[col.path+"/"+id] = obj
	writeJSON(w, http.StatusOK, map[string]any{col.envelope: obj})
}

func (s *Server) createRefund(w http.ResponseWriter, path string, body map[string]any) {
	session := strings.TrimSuffix(path, "/refund")
	if _, ok := s.objects[session]; !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "not found"})
		return
	}

	in, _ := body["refund"].(map[string]any)
	obj := map[string]any{}
	for k, v := range in {
		obj[k] = v
	}
	obj["refund_id"] = s.nextID("fref")
	obj["status"] = "pending"
	obj["checkout_session_id"] = strings.TrimPrefix(session, "/v1/checkout/sessions/")
	writeJSON(w, http.StatusOK, map[string]any{"refund": obj})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Update merges fields into the object at path, as a change made on the
// platform side would.
func (s *Server) Update(path string, fields map[string]any) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, ok := s.objects[path]
	if !ok {
		return false
	}
	for k, v := range fields {
		obj[k] = v
	}
	return true
}
