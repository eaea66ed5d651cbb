// Package router decides where a message goes: the intent engine, the
// document retriever, or the general chat fallback. Keyword heuristics
// first, a model classification when they are silent.
package router

import (
	"context"
	"encoding/json"
	"log"
	"strings"

	"talentops/internal/engine"
	"talentops/internal/llm"
	"talentops/internal/rag"
)

// Target systems.
const (
	TargetEngine = "engine"
	TargetRAG    = "rag"
	TargetChat   = "chat"
)

// ragKeywords signal a document-knowledge question.
var ragKeywords = []string{
	"policy", "handbook", "procedure manual", "holiday rules", "regulations",
	"company guidelines", "sop", "standard operating procedure", "compliance",
	"code of conduct", "employee manual", "benefits guide", "onboarding guide",
	"training material", "project documentation", "technical specs",
	"requirements document", "what does the document say", "according to",
	"architecture", "system design", "specification",
}

// actionKeywords signal an operational request for the intent engine.
var actionKeywords = []string{
	"assign task", "create task", "update task", "my tasks", "task status",
	"pending tasks", "completed tasks", "task history", "validation",
	"clock in", "clock out", "check in", "check out", "attendance",
	"apply leave", "request leave", "leave balance", "approve", "reject",
	"timesheet", "announcement", "meeting", "department", "employee",
	"dashboard", "notification",
}

type Router struct {
	Engine    engine.Engine
	Retriever rag.Retriever
	Client    llm.Client
	Log       *log.Logger
}

// Response is the single outbound shape for every target.
type Response struct {
	System  string          `json:"system"`
	Message string          `json:"message"`
	Outcome *engine.Outcome `json:"outcome,omitempty"`
	Sources []string        `json:"sources,omitempty"`
}

// Route sends the request to one target and returns its response. An
// @mention always means a document question; keyword hits lock the
// target; otherwise the classifier decides and chat is the fallback.
func (r Router) Route(ctx context.Context, req engine.Request) Response {
	target := r.pick(ctx, req.Text)
	switch target {
	case TargetRAG:
		answer, err := r.Retriever.Retrieve(ctx, req.Text, map[string]string{"team_id": req.TeamID})
		if err != nil {
			r.logf("router: retrieve: %v", err)
			return Response{System: TargetRAG, Message: "I couldn't search the documents right now. Please try again later."}
		}
		return Response{System: TargetRAG, Message: answer.Text, Sources: answer.Sources}
	case TargetEngine:
		out := r.Engine.Handle(ctx, req)
		return Response{System: TargetEngine, Message: out.Message, Outcome: &out}
	default:
		return r.chat(ctx, req)
	}
}

func (r Router) pick(ctx context.Context, text string) string {
	lower := strings.ToLower(text)
	for _, k := range ragKeywords {
		if strings.Contains(lower, k) {
			return TargetRAG
		}
	}
	for _, k := range actionKeywords {
		if strings.Contains(lower, k) {
			return TargetEngine
		}
	}
	if strings.Contains(text, "@") {
		return TargetRAG
	}
	return r.classify(ctx, text)
}

// classify asks the model for {"system": "engine"|"rag"|"chat"}.
// Anything unparseable falls back to chat.
func (r Router) classify(ctx context.Context, text string) string {
	if r.Client == nil {
		return TargetChat
	}
	reply, err := r.Client.Complete(ctx, []llm.Message{
		{Role: "system", Content: routerPrompt},
		{Role: "user", Content: text},
	})
	if err != nil {
		r.logf("router: classify: %v", err)
		return TargetChat
	}
	var decision struct {
		System string `json:"system"`
	}
	start := strings.Index(reply, "{")
	end := strings.LastIndex(reply, "}")
	if start < 0 || end <= start {
		return TargetChat
	}
	if err := json.Unmarshal([]byte(reply[start:end+1]), &decision); err != nil {
		return TargetChat
	}
	switch strings.ToLower(strings.TrimSpace(decision.System)) {
	case TargetEngine, "slm", "action":
		return TargetEngine
	case TargetRAG, "documents":
		return TargetRAG
	}
	return TargetChat
}

func (r Router) chat(ctx context.Context, req engine.Request) Response {
	if r.Client == nil {
		return Response{System: TargetChat, Message: "I'm an HR assistant. Ask me about leaves, tasks, attendance or company documents."}
	}
	reply, err := r.Client.Complete(ctx, []llm.Message{
		{Role: "system", Content: "You are a concise, friendly HR assistant. Answer general questions; for anything that changes data, tell the user to phrase it as a direct request."},
		{Role: "user", Content: req.Text},
	})
	if err != nil {
		r.logf("router: chat: %v", err)
		return Response{System: TargetChat, Message: "I couldn't process that right now. Please try again."}
	}
	return Response{System: TargetChat, Message: reply}
}

func (r Router) logf(format string, args ...any) {
	if r.Log != nil {
		r.Log.Printf(format, args...)
	}
}

const routerPrompt = `You route an HR assistant message to one backend.
Reply with a single JSON object {"system": "engine"} for HR actions and data
(leaves, tasks, attendance, announcements), {"system": "rag"} for questions
about documents and policies, or {"system": "chat"} for anything else.`
