// Package engine turns a resolved intent into a permitted, validated,
// audited side effect. Every mutation that spans more than one row runs
// inside a single transaction with its history entry.
package engine

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"strings"
	"time"

	"talentops/internal/config"
	"talentops/internal/domain"
	"talentops/internal/history"
	"talentops/internal/intent"
	"talentops/internal/llm"
	"talentops/internal/notify"
	"talentops/internal/rbac"
	"talentops/internal/repo"
)

type Engine struct {
	DB         *sql.DB
	Repo       repo.Repo
	History    history.Writer
	Notify     notify.Sink
	Classifier *intent.Classifier
	Config     *config.Config
	Log        *log.Logger
	Now        func() time.Time
}

func New(db *sql.DB, cfg *config.Config, client llm.Client, logger *log.Logger) Engine {
	r := repo.Repo{DB: db}
	e := Engine{
		DB:      db,
		Repo:    r,
		History: history.Writer{DB: db},
		Notify:  notify.RepoSink{Repo: r},
		Config:  cfg,
		Log:     logger,
		Now:     time.Now,
	}
	if client != nil {
		e.Classifier = &intent.Classifier{Client: client}
	}
	return e
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) logf(format string, args ...any) {
	if e.Log != nil {
		e.Log.Printf(format, args...)
	}
}

// Request is the single inbound shape: what was said, by whom, as what.
type Request struct {
	Text    string
	Role    string
	ActorID string
	TeamID  string
}

// OutcomeKind discriminates every way a request can end. Callers branch
// on the kind; the message is already user-ready.
type OutcomeKind string

const (
	OutcomeOK            OutcomeKind = "ok"
	OutcomeClarification OutcomeKind = "clarification"
	OutcomeDenied        OutcomeKind = "denied"
	OutcomeMissingFields OutcomeKind = "missing_fields"
	OutcomeAmbiguous     OutcomeKind = "ambiguous"
	OutcomeNotFound      OutcomeKind = "not_found"
	OutcomeInvalidState  OutcomeKind = "invalid_state"
	OutcomeRedirect      OutcomeKind = "redirect"
	OutcomeCancelled     OutcomeKind = "cancelled"
	OutcomeError         OutcomeKind = "error"
)

type Outcome struct {
	Kind       OutcomeKind `json:"kind"`
	Action     string      `json:"action,omitempty"`
	Message    string      `json:"message"`
	Data       any         `json:"data,omitempty"`
	Missing    []string    `json:"missing,omitempty"`
	Candidates []string    `json:"candidates,omitempty"`
}

var cancelPhrases = []string{"cancel", "never mind", "nevermind", "forget it", "stop"}

// Handle runs the whole decision pipeline: role normalization, the
// team-lead leave redirect, deterministic matching, classifier
// fallback, normalization, sanitization, authorization, required-field
// validation, then dispatch by action category.
func (e Engine) Handle(ctx context.Context, req Request) Outcome {
	role := domain.NormalizeRole(req.Role)
	if role == "" {
		role = domain.RoleConsultant
	}
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return Outcome{Kind: OutcomeClarification, Message: "I didn't catch that. What would you like to do?"}
	}
	lower := strings.ToLower(text)

	for _, p := range cancelPhrases {
		if lower == p || strings.HasPrefix(lower, p+" ") {
			return Outcome{Kind: OutcomeCancelled, Message: "Okay, cancelled. Nothing was changed."}
		}
	}

	// Team leads manage attendance and timesheets but never decide
	// leaves; this redirect fires before the generic permission gate so
	// the answer explains where to go instead of a bare denial.
	if role == domain.RoleTeamLead && isLeaveDecisionAttempt(lower) {
		return Outcome{
			Kind:    OutcomeRedirect,
			Message: "Leave approval requires Manager or Executive access. As a Team Lead you manage team attendance and timesheets; please route this request to your manager.",
		}
	}

	m := e.matchIntent(ctx, text, role)
	if m == nil {
		return Outcome{Kind: OutcomeClarification, Message: "I couldn't work out what you'd like to do. Could you rephrase, e.g. \"apply leave from 2025-03-01 to 2025-03-02\" or \"show my tasks\"?"}
	}

	spec, ok := rbac.Spec(m.Action)
	if !ok {
		return Outcome{Kind: OutcomeClarification, Message: "I couldn't work out what you'd like to do. Could you rephrase?"}
	}

	params := intent.Normalize(spec.Resource, m.Params)
	params = intent.Sanitize(ctx, resolverFunc(e.resolveID), spec.Resource, params, e.now())

	if err := rbac.Authorize(role, m.Action); err != nil {
		return Outcome{Kind: OutcomeDenied, Action: m.Action, Message: deniedMessage(m.Action)}
	}

	if missing := rbac.MissingFields(m.Action, params); len(missing) > 0 {
		return Outcome{
			Kind:    OutcomeMissingFields,
			Action:  m.Action,
			Missing: missing,
			Message: "I need a bit more to do that. Please provide: " + strings.Join(friendlyNames(missing), ", ") + ".",
		}
	}

	actor := actorContext{ID: req.ActorID, Role: role, TeamID: req.TeamID}
	switch spec.Category {
	case rbac.CategoryInsert:
		return e.executeInsert(ctx, actor, m.Action, params)
	case rbac.CategoryUpdate:
		return e.executeUpdate(ctx, actor, m.Action, params)
	case rbac.CategoryRead:
		return e.executeRead(ctx, actor, m.Action, params)
	case rbac.CategoryWorkflow:
		return e.executeWorkflow(ctx, actor, m.Action, params)
	}
	return Outcome{Kind: OutcomeError, Message: "Something went wrong handling that request."}
}

type actorContext struct {
	ID     string
	Role   string
	TeamID string
}

// matchIntent tries the deterministic matcher, then the classifier.
func (e Engine) matchIntent(ctx context.Context, text, role string) *intent.Match {
	names, err := e.assigneeNames(ctx)
	if err != nil {
		e.logf("engine: list profile names: %v", err)
	}
	matcher := intent.NewMatcher(names, e.Now)
	if m := matcher.Match(text); m != nil {
		return m
	}
	if e.Classifier == nil {
		return nil
	}
	m, err := e.Classifier.Classify(ctx, text, role)
	if err != nil {
		if !errors.Is(err, intent.ErrUndetermined) {
			e.logf("engine: classifier: %v", err)
		}
		return nil
	}
	return m
}

func (e Engine) assigneeNames(ctx context.Context) ([]string, error) {
	profiles, err := e.Repo.ListProfiles(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(profiles))
	for _, p := range profiles {
		names = append(names, p.FullName)
	}
	return names, nil
}

func (e Engine) resolveID(ctx context.Context, ref string) (string, error) {
	p, err := e.Repo.ResolveProfile(ctx, ref)
	if err != nil {
		return "", err
	}
	return p.ID, nil
}

type resolverFunc func(ctx context.Context, ref string) (string, error)

func (f resolverFunc) ResolveID(ctx context.Context, ref string) (string, error) {
	return f(ctx, ref)
}

func isLeaveDecisionAttempt(lower string) bool {
	if strings.Contains(lower, "timesheet") || strings.Contains(lower, "attendance") || strings.Contains(lower, "task") || strings.Contains(lower, "stage") {
		return false
	}
	return strings.Contains(lower, "leave") && (strings.Contains(lower, "approve") || strings.Contains(lower, "reject"))
}

func deniedMessage(action string) string {
	spec, _ := rbac.Spec(action)
	what := strings.ReplaceAll(action, "_", " ")
	if spec.Description != "" {
		what = spec.Description
	}
	return "You don't have permission to " + what + ". This operation is reserved for higher authorities."
}

// friendlyNames converts field names for user-facing messages.
var fieldNames = map[string]string{
	"from_date":       "start date",
	"to_date":         "end date",
	"assigned_to":     "assignee",
	"department_name": "department name",
	"team_name":       "team name",
	"full_name":       "full name",
	"employee":        "employee name",
}

func friendlyNames(fields []string) []string {
	out := make([]string, len(fields))
	for i, f := range fields {
		if friendly, ok := fieldNames[f]; ok {
			out[i] = friendly
		} else {
			out[i] = strings.ReplaceAll(f, "_", " ")
		}
	}
	return out
}

func (e Engine) storageFailure(op string, err error) Outcome {
	e.logf("engine: %s: %v", op, err)
	return Outcome{Kind: OutcomeError, Message: "A database error occurred. Please try again later."}
}
