package screen

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"

	"watchpoint/internal/api"
	"watchpoint/internal/session"
)

func newTestLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// fakeAPI routes "METHOD /path" to canned handlers and records every call.
type fakeAPI struct {
	mu     sync.Mutex
	routes map[string]http.HandlerFunc
	calls  []string
}

func newFakeAPI(t *testing.T) (*fakeAPI, *httptest.Server) {
	t.Helper()
	f := &fakeAPI{routes: make(map[string]http.HandlerFunc)}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Method + " " + r.URL.Path
		f.mu.Lock()
		f.calls = append(f.calls, key)
		h, ok := f.routes[key]
		f.mu.Unlock()
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"error":"no route"}`))
			return
		}
		h(w, r)
	}))
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeAPI) on(key string, h http.HandlerFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.routes[key] = h
}

func (f *fakeAPI) json(key string, status int, body string) {
	f.on(key, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	})
}

func (f *fakeAPI) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeAPI) count(key string) int {
	n := 0
	for _, c := range f.Calls() {
		if c == key {
			n++
		}
	}
	return n
}

type fakeNav struct {
	mu        sync.Mutex
	login     int
	dashboard int
}

func (n *fakeNav) ToLogin() {
	n.mu.Lock()
	n.login++
	n.mu.Unlock()
}

func (n *fakeNav) ToDashboard() {
	n.mu.Lock()
	n.dashboard++
	n.mu.Unlock()
}

func (n *fakeNav) counts() (login, dashboard int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.login, n.dashboard
}

func newClient(srv *httptest.Server, token string) *api.Client {
	return api.New(srv.URL, session.NewStatic(token), newTestLogger())
}

const watchesJSON = `[
	{"id":"w1","user_id":"u1","target_url":"https://a.example.com","check_interval_seconds":900,"is_active":true,"created_at":"2025-01-01T00:00:00Z","updated_at":"2025-01-01T00:00:00Z"},
	{"id":"w2","user_id":"u1","target_url":"https://b.example.com","name":"B","check_interval_seconds":86400,"is_active":false,"created_at":"2025-01-01T00:00:00Z","updated_at":"2025-01-01T00:00:00Z"}
]`

const userJSON = `{"id":"u1","email":"a@example.com","plan_tier":"free"}`

const recentJSON = `[{"id":"c1","watch_id":"w1","change_summary":"Title changed","detected_at":"2025-01-02T00:00:00Z","watch":{"target_url":"https://a.example.com"}}]`
