package router_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"talentops/internal/config"
	"talentops/internal/db"
	"talentops/internal/domain"
	"talentops/internal/engine"
	"talentops/internal/llm"
	"talentops/internal/migrate"
	"talentops/internal/rag"
	"talentops/internal/router"
)

type fakeRetriever struct {
	answer rag.Answer
	err    error
	asked  []string
}

func (f *fakeRetriever) Retrieve(ctx context.Context, question string, scope map[string]string) (rag.Answer, error) {
	f.asked = append(f.asked, question)
	return f.answer, f.err
}

func newTestRouter(t *testing.T, retr rag.Retriever, client llm.Client) router.Router {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	eng := engine.New(conn, config.Default(), nil, nil)
	eng.Now = func() time.Time { return time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC) }
	err = eng.Repo.InsertProfile(context.Background(), domain.Profile{
		ID: "emp-1", FullName: "Asha Nair", Email: "asha@example.com", Role: domain.RoleConsultant,
		MonthlyLeaveQuota: 2, LeavesRemaining: 2, CreatedAt: "2025-01-01T00:00:00Z",
	})
	if err != nil {
		t.Fatalf("seed profile: %v", err)
	}
	return router.Router{Engine: eng, Retriever: retr, Client: client}
}

func req(text string) engine.Request {
	return engine.Request{Text: text, Role: "consultant", ActorID: "emp-1", TeamID: "team-1"}
}

func TestRouteDocumentKeywords(t *testing.T) {
	retr := &fakeRetriever{answer: rag.Answer{Text: "20 days per year.", Sources: []string{"handbook.pdf"}}}
	rt := newTestRouter(t, retr, nil)
	resp := rt.Route(context.Background(), req("what does the leave policy say about carry over?"))
	if resp.System != router.TargetRAG {
		t.Fatalf("system = %s", resp.System)
	}
	if resp.Message != "20 days per year." || len(resp.Sources) != 1 {
		t.Fatalf("resp = %+v", resp)
	}
	if len(retr.asked) != 1 {
		t.Fatalf("retriever calls = %v", retr.asked)
	}
}

func TestRouteActionKeywords(t *testing.T) {
	rt := newTestRouter(t, &fakeRetriever{}, nil)
	resp := rt.Route(context.Background(), req("apply leave from 2025-03-10 to 2025-03-11"))
	if resp.System != router.TargetEngine {
		t.Fatalf("system = %s", resp.System)
	}
	if resp.Outcome == nil || resp.Outcome.Kind != engine.OutcomeOK {
		t.Fatalf("outcome = %+v", resp.Outcome)
	}
}

func TestRouteDocumentKeywordBeatsActionKeyword(t *testing.T) {
	retr := &fakeRetriever{answer: rag.Answer{Text: "See section 4."}}
	rt := newTestRouter(t, retr, nil)
	resp := rt.Route(context.Background(), req("what is the policy for apply leave requests?"))
	if resp.System != router.TargetRAG {
		t.Fatalf("document keywords must win, got %s", resp.System)
	}
}

func TestRouteMentionMeansDocuments(t *testing.T) {
	retr := &fakeRetriever{answer: rag.Answer{Text: "Found it."}}
	rt := newTestRouter(t, retr, nil)
	resp := rt.Route(context.Background(), req("@hrdocs how do I get a laptop"))
	if resp.System != router.TargetRAG {
		t.Fatalf("system = %s", resp.System)
	}
}

func TestRouteRetrieverFailure(t *testing.T) {
	retr := &fakeRetriever{err: errors.New("index offline")}
	rt := newTestRouter(t, retr, nil)
	resp := rt.Route(context.Background(), req("where is the employee manual?"))
	if resp.System != router.TargetRAG {
		t.Fatalf("system = %s", resp.System)
	}
	if resp.Message == "" || resp.Sources != nil {
		t.Fatalf("resp = %+v", resp)
	}
}

func TestRouteClassifierDecides(t *testing.T) {
	cases := map[string]string{
		`{"system":"engine"}`:    router.TargetEngine,
		`{"system":"rag"}`:       router.TargetRAG,
		`{"system":"documents"}`: router.TargetRAG,
		`{"system":"chat"}`:      router.TargetChat,
		`no json at all`:         router.TargetChat,
	}
	for reply, want := range cases {
		responses := []string{reply}
		if want == router.TargetChat {
			// The chat fallback makes a second model call for the answer.
			responses = append(responses, "Happy to help!")
		}
		mock := &llm.MockClient{Responses: responses}
		retr := &fakeRetriever{answer: rag.Answer{Text: "doc answer"}}
		rt := newTestRouter(t, retr, mock)
		resp := rt.Route(context.Background(), req("hmm, not sure how to put this"))
		if resp.System != want {
			t.Errorf("reply %q routed to %s, want %s", reply, resp.System, want)
		}
	}
}

func TestRouteChatWithoutModel(t *testing.T) {
	rt := newTestRouter(t, &fakeRetriever{}, nil)
	resp := rt.Route(context.Background(), req("good morning!"))
	if resp.System != router.TargetChat {
		t.Fatalf("system = %s", resp.System)
	}
	if resp.Message == "" {
		t.Fatal("chat fallback must still answer")
	}
}

func TestRouteUnavailableRetriever(t *testing.T) {
	rt := newTestRouter(t, rag.Unavailable{}, nil)
	resp := rt.Route(context.Background(), req("show me the benefits guide"))
	if resp.System != router.TargetRAG {
		t.Fatalf("system = %s", resp.System)
	}
	if resp.Message == "" {
		t.Fatal("unavailable retriever must explain itself")
	}
}
