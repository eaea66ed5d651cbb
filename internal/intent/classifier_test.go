package intent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"talentops/internal/llm"
	"talentops/internal/rbac"
)

func TestClassifyParsesFencedReply(t *testing.T) {
	mock := &llm.MockClient{Responses: []string{
		"```json\n{\"action\":\"view_my_tasks\",\"params\":{}}\n```",
	}}
	c := &Classifier{Client: mock}
	m, err := c.Classify(context.Background(), "what's on my plate", "consultant")
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if m.Action != rbac.ActionViewMyTasks {
		t.Fatalf("action = %s", m.Action)
	}
}

func TestClassifyExtractsEmbeddedJSON(t *testing.T) {
	mock := &llm.MockClient{Responses: []string{
		`Sure! Here is the mapping: {"action":"apply_leave","params":{"from_date":"2025-03-10"}} hope that helps`,
	}}
	c := &Classifier{Client: mock}
	m, err := c.Classify(context.Background(), "day off on march 10", "consultant")
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if m.Action != rbac.ActionApplyLeave || m.Params["from_date"] != "2025-03-10" {
		t.Fatalf("match = %+v", m)
	}
}

func TestClassifyUndetermined(t *testing.T) {
	for _, reply := range []string{
		"I'm not sure what you mean.",
		`{"action":"","params":{}}`,
		`{"action":"order_pizza","params":{}}`,
	} {
		mock := &llm.MockClient{Responses: []string{reply}}
		c := &Classifier{Client: mock}
		_, err := c.Classify(context.Background(), "hmm", "consultant")
		if !errors.Is(err, ErrUndetermined) {
			t.Errorf("reply %q: err = %v, want ErrUndetermined", reply, err)
		}
	}
}

func TestBuildPromptListsRoleActions(t *testing.T) {
	prompt := buildPrompt("anything", "consultant")
	if !strings.Contains(prompt, "Caller role: consultant") {
		t.Fatalf("prompt missing role: %s", prompt)
	}
	if !strings.Contains(prompt, rbac.ActionApplyLeave) {
		t.Fatalf("prompt missing the role's allowed actions: %s", prompt)
	}
	if strings.Contains(prompt, "Actions this role may perform: ") &&
		strings.Contains(prompt[strings.Index(prompt, "Actions this role may perform:"):], rbac.ActionCreateDepartment) {
		t.Fatal("consultant prompt lists an executive action as permitted")
	}
}

func TestStripFences(t *testing.T) {
	got := stripFences("```json\n{\"a\":1}\n```")
	if got != `{"a":1}` {
		t.Fatalf("stripFences = %q", got)
	}
	if got := stripFences(`{"a":1}`); got != `{"a":1}` {
		t.Fatalf("plain text changed: %q", got)
	}
}

func TestFirstJSONObject(t *testing.T) {
	cases := map[string]string{
		`noise {"a":{"b":2}} trailing`: `{"a":{"b":2}}`,
		`{"s":"brace } inside"}`:       `{"s":"brace } inside"}`,
		`no json here`:                 "",
		`{"unbalanced":`:               "",
	}
	for in, want := range cases {
		if got := firstJSONObject(in); got != want {
			t.Errorf("firstJSONObject(%q) = %q, want %q", in, got, want)
		}
	}
}
