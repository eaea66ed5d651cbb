package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"

	"talentops/internal/config"
	"talentops/internal/db"
	"talentops/internal/domain"
	"talentops/internal/engine"
	"talentops/internal/llm"
	"talentops/internal/migrate"
	"talentops/internal/rag"
	"talentops/internal/router"
	"talentops/internal/server"
)

func main() {
	workspace := "/tmp/talentops-check"
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		panic(err)
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		panic(err)
	}
	cfg := config.Default()
	e := engine.New(conn, cfg, &llm.MockClient{}, nil)
	_ = e.Repo.InsertProfile(context.Background(), domain.Profile{
		ID: "tester", FullName: "Tester", Email: "tester@example.com",
		Role: domain.RoleConsultant, MonthlyLeaveQuota: 2, LeavesRemaining: 2,
		CreatedAt: "2025-01-01T00:00:00Z",
	})
	rt := router.Router{Engine: e, Retriever: rag.Unavailable{}, Client: &llm.MockClient{}}
	h, err := server.New(server.Config{Engine: e, Router: rt, BasePath: "/v0", Auth: server.AuthConfig{AllowDevHeaders: true}})
	if err != nil {
		panic(err)
	}
	ts := httptest.NewServer(h)
	defer ts.Close()

	body := map[string]any{"message": "apply leave from 2025-03-10 to 2025-03-11"}
	b, _ := json.Marshal(body)
	req, _ := http.NewRequest(http.MethodPost, ts.URL+"/v0/chat", bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Actor-Id", "tester")
	req.Header.Set("X-Role", "consultant")
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		panic(err)
	}
	defer res.Body.Close()
	var resp any
	_ = json.NewDecoder(res.Body).Decode(&resp)
	fmt.Printf("status=%d resp=%v\n", res.StatusCode, resp)
}
