package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"testing"

	"talentops/internal/config"
	"talentops/internal/db"
	"talentops/internal/domain"
	"talentops/internal/engine"
	"talentops/internal/llm"
	"talentops/internal/migrate"
	"talentops/internal/rag"
	"talentops/internal/router"
)

type testServer struct {
	URL    string
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

func newTestServer(t *testing.T) (*testServer, func()) {
	t.Helper()
	workspace := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	cfg := config.Default()
	e := engine.New(conn, cfg, &llm.MockClient{}, nil)
	seed := []domain.Profile{
		{ID: "emp-1", FullName: "Asha Nair", Email: "asha@example.com", Role: domain.RoleConsultant, MonthlyLeaveQuota: 2, LeavesRemaining: 2, CreatedAt: "2025-01-01T00:00:00Z"},
		{ID: "mgr-1", FullName: "Ravi Menon", Email: "ravi@example.com", Role: domain.RoleManager, MonthlyLeaveQuota: 2, LeavesRemaining: 2, CreatedAt: "2025-01-01T00:00:00Z"},
	}
	for _, p := range seed {
		if err := e.Repo.InsertProfile(context.Background(), p); err != nil {
			t.Fatalf("seed profile: %v", err)
		}
	}
	rt := router.Router{Engine: e, Retriever: rag.Unavailable{}, Client: &llm.MockClient{}}
	handler, err := New(Config{Engine: e, Router: rt, BasePath: "/v0", Auth: AuthConfig{AllowDevHeaders: true}})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	testSrv := &testServer{
		URL:    "http://" + ln.Addr().String(),
		client: &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	return testSrv, func() { testSrv.Close() }
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

func asEmployee(extra map[string]string) map[string]string {
	h := map[string]string{"X-Actor-Id": "emp-1", "X-Role": "consultant"}
	for k, v := range extra {
		h[k] = v
	}
	return h
}

func TestChatRequiresAuth(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/chat", map[string]any{
		"message": "show my tasks",
	}, nil)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d: %s", res.StatusCode, string(data))
	}
}

func TestChatApplyLeave(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/chat", map[string]any{
		"message": "apply leave from 2025-03-10 to 2025-03-11",
	}, asEmployee(nil))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("chat status %d: %s", res.StatusCode, string(data))
	}
	var resp router.Response
	if err := json.Unmarshal(data, &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.System != router.TargetEngine {
		t.Fatalf("expected engine target, got %s", resp.System)
	}
	if resp.Outcome == nil || resp.Outcome.Kind != engine.OutcomeOK {
		t.Fatalf("expected ok outcome, got %+v", resp.Outcome)
	}
}

func TestChatDeniedForbiddenAction(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/chat", map[string]any{
		"message": "create department called Platform",
	}, asEmployee(nil))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("chat status %d: %s", res.StatusCode, string(data))
	}
	var resp router.Response
	if err := json.Unmarshal(data, &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.Outcome == nil || resp.Outcome.Kind != engine.OutcomeDenied {
		t.Fatalf("expected denied outcome, got %+v", resp.Outcome)
	}
}

func TestNotificationsEndpoint(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/notifications", nil, asEmployee(nil))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("notifications status %d: %s", res.StatusCode, string(data))
	}
	var out struct {
		Notifications []domain.Notification `json:"notifications"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal notifications: %v", err)
	}
	if len(out.Notifications) != 0 {
		t.Fatalf("expected empty inbox, got %d", len(out.Notifications))
	}
}

func TestMeEndpoint(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()

	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/me", nil, asEmployee(nil))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("me status %d: %s", res.StatusCode, string(data))
	}
	var p domain.Profile
	if err := json.Unmarshal(data, &p); err != nil {
		t.Fatalf("unmarshal profile: %v", err)
	}
	if p.FullName != "Asha Nair" {
		t.Fatalf("unexpected profile: %+v", p)
	}
}
