package engine_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"talentops/internal/config"
	"talentops/internal/db"
	"talentops/internal/domain"
	"talentops/internal/engine"
	"talentops/internal/llm"
	"talentops/internal/migrate"
)

type testEnv struct {
	Engine engine.Engine
	Ctx    context.Context
}

func newTestEnv(t *testing.T, client llm.Client) testEnv {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	cfg := config.Default()
	eng := engine.New(conn, cfg, client, nil)
	eng.Now = func() time.Time { return time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC) }
	ctx := context.Background()
	env := testEnv{Engine: eng, Ctx: ctx}
	env.seedProfile(t, "emp-1", "Asha Nair", "asha@example.com", domain.RoleConsultant)
	env.seedProfile(t, "lead-1", "Lena Fischer", "lena@example.com", domain.RoleTeamLead)
	env.seedProfile(t, "mgr-1", "Ravi Menon", "ravi@example.com", domain.RoleManager)
	return env
}

func (env testEnv) seedProfile(t *testing.T, id, name, email, role string) {
	t.Helper()
	err := env.Engine.Repo.InsertProfile(env.Ctx, domain.Profile{
		ID: id, FullName: name, Email: email, Role: role,
		MonthlyLeaveQuota: 2, LeavesRemaining: 2,
		CreatedAt: "2025-01-01T00:00:00Z",
	})
	if err != nil {
		t.Fatalf("seed profile %s: %v", id, err)
	}
}

func (env testEnv) handle(text, role, actorID string) engine.Outcome {
	return env.Engine.Handle(env.Ctx, engine.Request{Text: text, Role: role, ActorID: actorID})
}

func TestApplyAndApproveLeave(t *testing.T) {
	env := newTestEnv(t, nil)

	out := env.handle("apply leave from 2025-03-10 to 2025-03-12 for vacation", "consultant", "emp-1")
	if out.Kind != engine.OutcomeOK {
		t.Fatalf("apply leave: %+v", out)
	}

	out = env.handle("approve leave for asha", "manager", "mgr-1")
	if out.Kind != engine.OutcomeOK {
		t.Fatalf("approve leave: %+v", out)
	}
	p, err := env.Engine.Repo.GetProfile(env.Ctx, "emp-1")
	if err != nil {
		t.Fatalf("reload profile: %v", err)
	}
	if p.LeavesRemaining != 1 || p.LeavesTakenThisMonth != 1 {
		t.Fatalf("leave counters not updated: %+v", p)
	}
	notes, err := env.Engine.Repo.ListNotifications(env.Ctx, "emp-1", true, 10)
	if err != nil {
		t.Fatalf("list notifications: %v", err)
	}
	if len(notes) != 1 || notes[0].Type != "leave_approved" {
		t.Fatalf("expected approval notification, got %+v", notes)
	}
}

func TestApproveLeaveAlreadySettled(t *testing.T) {
	env := newTestEnv(t, nil)
	if out := env.handle("apply leave from 2025-03-10 to 2025-03-10", "consultant", "emp-1"); out.Kind != engine.OutcomeOK {
		t.Fatalf("apply leave: %+v", out)
	}
	if out := env.handle("reject leave for asha", "manager", "mgr-1"); out.Kind != engine.OutcomeOK {
		t.Fatalf("first decision: %+v", out)
	}
	out := env.handle("approve leave for asha", "manager", "mgr-1")
	if out.Kind != engine.OutcomeNotFound {
		t.Fatalf("expected no pending leave after settlement, got %+v", out)
	}
}

func TestApplyLeaveWithoutBalance(t *testing.T) {
	env := newTestEnv(t, nil)
	env.seedProfile(t, "emp-2", "Omar Haddad", "omar@example.com", domain.RoleConsultant)
	tx, err := env.Engine.DB.BeginTx(env.Ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := env.Engine.Repo.UpdateProfileLeaveCounters(env.Ctx, tx, "emp-2", 2, 0); err != nil {
		t.Fatalf("drain balance: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatal(err)
	}
	out := env.handle("apply leave from 2025-03-10 to 2025-03-10", "consultant", "emp-2")
	if out.Kind != engine.OutcomeInvalidState {
		t.Fatalf("expected balance refusal, got %+v", out)
	}
}

func TestApplyLeaveMissingDates(t *testing.T) {
	env := newTestEnv(t, nil)
	out := env.handle("I want to apply for leave", "consultant", "emp-1")
	if out.Kind != engine.OutcomeMissingFields {
		t.Fatalf("expected missing fields, got %+v", out)
	}
	if len(out.Missing) != 2 || out.Missing[0] != "from_date" || out.Missing[1] != "to_date" {
		t.Fatalf("unexpected missing list: %v", out.Missing)
	}
}

func TestLeaveDecisionDeniedForConsultant(t *testing.T) {
	env := newTestEnv(t, nil)
	out := env.handle("approve leave for asha", "consultant", "emp-1")
	if out.Kind != engine.OutcomeDenied {
		t.Fatalf("expected denial, got %+v", out)
	}
}

func TestTeamLeadLeaveRedirect(t *testing.T) {
	env := newTestEnv(t, nil)
	out := env.handle("approve leave for asha", "team_lead", "lead-1")
	if out.Kind != engine.OutcomeRedirect {
		t.Fatalf("expected redirect, got %+v", out)
	}
	if !strings.Contains(out.Message, "Manager") {
		t.Fatalf("redirect should name the escalation path: %s", out.Message)
	}
	// Stage decisions by team leads still hit the normal gate, not the
	// redirect.
	out = env.handle("approve task 'Anything'", "team_lead", "lead-1")
	if out.Kind == engine.OutcomeRedirect {
		t.Fatalf("stage decision must not redirect: %+v", out)
	}
}

func TestLeaveDecisionAmbiguousEmployee(t *testing.T) {
	env := newTestEnv(t, nil)
	env.seedProfile(t, "emp-3", "John Doe", "jdoe@example.com", domain.RoleConsultant)
	env.seedProfile(t, "emp-4", "John Smith", "jsmith@example.com", domain.RoleConsultant)
	out := env.handle("approve leave for john", "manager", "mgr-1")
	if out.Kind != engine.OutcomeAmbiguous {
		t.Fatalf("expected ambiguity, got %+v", out)
	}
	if len(out.Candidates) != 2 {
		t.Fatalf("expected two candidates, got %v", out.Candidates)
	}
}

func TestLeaveDecisionWithoutEmployee(t *testing.T) {
	env := newTestEnv(t, nil)
	out := env.handle("approve the pending leave", "manager", "mgr-1")
	if out.Kind != engine.OutcomeMissingFields {
		t.Fatalf("expected missing employee, got %+v", out)
	}
}

func TestTaskLifecycleFullWalk(t *testing.T) {
	env := newTestEnv(t, nil)

	out := env.handle("create task 'Build API' and assign it to Asha Nair with high priority due 2025-03-20", "team_lead", "lead-1")
	if out.Kind != engine.OutcomeOK {
		t.Fatalf("create task: %+v", out)
	}

	stages := []string{
		domain.StageRequirementRefiner,
		domain.StageDesignGuidance,
		domain.StageBuildGuidance,
		domain.StageAcceptanceCriteria,
		domain.StageDeployment,
	}
	for i, stage := range stages {
		task, err := env.Engine.Repo.FindTaskByTitle(env.Ctx, "Build API")
		if err != nil {
			t.Fatalf("round %d: find task: %v", i, err)
		}
		if task.LifecycleState != stage || task.SubState != domain.SubInProgress {
			t.Fatalf("round %d: expected %s/in_progress, got %s/%s", i, stage, task.LifecycleState, task.SubState)
		}
		if out := env.handle("send task 'Build API' for validation", "consultant", "emp-1"); out.Kind != engine.OutcomeOK {
			t.Fatalf("round %d: request validation: %+v", i, out)
		}
		if out := env.handle("approve task 'Build API'", "manager", "mgr-1"); out.Kind != engine.OutcomeOK {
			t.Fatalf("round %d: approve: %+v", i, out)
		}
	}

	task, err := env.Engine.Repo.GetTask(env.Ctx, taskID(t, env, "Build API"))
	if err != nil {
		t.Fatalf("reload task: %v", err)
	}
	if task.Status != "completed" || task.LifecycleState != domain.StageDeployment || task.SubState != domain.SubApproved {
		t.Fatalf("expected completed deployment/approved, got %s %s/%s", task.Status, task.LifecycleState, task.SubState)
	}
	if p := domain.Progress(task.LifecycleState, task.SubState); p != 100 {
		t.Fatalf("expected 100%% progress, got %d", p)
	}
	history, err := env.Engine.Repo.ListTaskHistory(env.Ctx, task.ID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	// created + 5 x (validation_requested + stage_approved)
	if len(history) != 11 {
		t.Fatalf("expected 11 history entries, got %d", len(history))
	}
}

func taskID(t *testing.T, env testEnv, title string) string {
	t.Helper()
	row := env.Engine.DB.QueryRowContext(env.Ctx, `SELECT id FROM tasks WHERE title=?`, title)
	var id string
	if err := row.Scan(&id); err != nil {
		t.Fatalf("task id for %q: %v", title, err)
	}
	return id
}

func TestApproveWithoutPendingValidation(t *testing.T) {
	env := newTestEnv(t, nil)
	if out := env.handle("create task 'Quiet Task' and assign it to Asha Nair", "team_lead", "lead-1"); out.Kind != engine.OutcomeOK {
		t.Fatalf("create task: %+v", out)
	}
	out := env.handle("approve task 'Quiet Task'", "manager", "mgr-1")
	if out.Kind != engine.OutcomeInvalidState {
		t.Fatalf("expected invalid state, got %+v", out)
	}
}

func TestRequestValidationTwice(t *testing.T) {
	env := newTestEnv(t, nil)
	if out := env.handle("create task 'Twice' and assign it to Asha Nair", "team_lead", "lead-1"); out.Kind != engine.OutcomeOK {
		t.Fatalf("create task: %+v", out)
	}
	if out := env.handle("send task 'Twice' for validation", "consultant", "emp-1"); out.Kind != engine.OutcomeOK {
		t.Fatalf("first request: %+v", out)
	}
	out := env.handle("send task 'Twice' for validation", "consultant", "emp-1")
	if out.Kind != engine.OutcomeInvalidState {
		t.Fatalf("expected invalid state on re-request, got %+v", out)
	}
}

func TestRejectStageNeedsReason(t *testing.T) {
	env := newTestEnv(t, nil)
	if out := env.handle("create task 'Needs Work' and assign it to Asha Nair", "team_lead", "lead-1"); out.Kind != engine.OutcomeOK {
		t.Fatalf("create task: %+v", out)
	}
	if out := env.handle("send task 'Needs Work' for validation", "consultant", "emp-1"); out.Kind != engine.OutcomeOK {
		t.Fatalf("request validation: %+v", out)
	}

	out := env.handle("reject task 'Needs Work'", "manager", "mgr-1")
	if out.Kind != engine.OutcomeMissingFields {
		t.Fatalf("expected missing reason, got %+v", out)
	}

	out = env.handle("reject task 'Needs Work' because the tests are failing", "manager", "mgr-1")
	if out.Kind != engine.OutcomeOK {
		t.Fatalf("reject with reason: %+v", out)
	}
	task, err := env.Engine.Repo.FindTaskByTitle(env.Ctx, "Needs Work")
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if task.LifecycleState != domain.StageRequirementRefiner || task.SubState != domain.SubInProgress {
		t.Fatalf("rejection must keep the stage and reopen work, got %s/%s", task.LifecycleState, task.SubState)
	}
}

func TestStageDecisionRoleGate(t *testing.T) {
	env := newTestEnv(t, nil)
	if out := env.handle("create task 'Gated' and assign it to Asha Nair", "team_lead", "lead-1"); out.Kind != engine.OutcomeOK {
		t.Fatalf("create task: %+v", out)
	}
	if out := env.handle("send task 'Gated' for validation", "consultant", "emp-1"); out.Kind != engine.OutcomeOK {
		t.Fatalf("request validation: %+v", out)
	}
	out := env.handle("approve task 'Gated'", "consultant", "emp-1")
	if out.Kind != engine.OutcomeDenied {
		t.Fatalf("consultants must not approve stages, got %+v", out)
	}
	out = env.handle("approve task 'Gated'", "team_lead", "lead-1")
	if out.Kind != engine.OutcomeDenied {
		t.Fatalf("team leads must not approve stages, got %+v", out)
	}
	out = env.handle("approve task 'Gated'", "executive", "mgr-1")
	if out.Kind != engine.OutcomeOK {
		t.Fatalf("executives approve stages, got %+v", out)
	}
}

func TestConcurrentValidationSettlement(t *testing.T) {
	env := newTestEnv(t, nil)
	if out := env.handle("create task 'Raced' and assign it to Asha Nair", "team_lead", "lead-1"); out.Kind != engine.OutcomeOK {
		t.Fatalf("create task: %+v", out)
	}
	if out := env.handle("send task 'Raced' for validation", "consultant", "emp-1"); out.Kind != engine.OutcomeOK {
		t.Fatalf("request validation: %+v", out)
	}
	id := taskID(t, env, "Raced")

	tx1, err := env.Engine.DB.BeginTx(env.Ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	settled, err := env.Engine.Repo.SettleValidation(env.Ctx, tx1, id, domain.StageDesignGuidance, domain.SubInProgress, "mgr-1", "2025-03-03T09:00:00Z", "")
	if err != nil || !settled {
		t.Fatalf("first settlement should win: settled=%v err=%v", settled, err)
	}
	if err := tx1.Commit(); err != nil {
		t.Fatal(err)
	}

	tx2, err := env.Engine.DB.BeginTx(env.Ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer tx2.Rollback()
	settled, err = env.Engine.Repo.SettleValidation(env.Ctx, tx2, id, domain.StageDesignGuidance, domain.SubInProgress, "mgr-1", "2025-03-03T09:00:01Z", "")
	if err != nil {
		t.Fatalf("second settlement errored: %v", err)
	}
	if settled {
		t.Fatalf("second settlement must lose")
	}
}

func TestClockInAndOut(t *testing.T) {
	env := newTestEnv(t, nil)

	out := env.handle("clock in", "consultant", "emp-1")
	if out.Kind != engine.OutcomeOK {
		t.Fatalf("clock in: %+v", out)
	}
	out = env.handle("clock in", "consultant", "emp-1")
	if out.Kind != engine.OutcomeInvalidState {
		t.Fatalf("double clock in should refuse: %+v", out)
	}

	env.Engine.Now = func() time.Time { return time.Date(2025, 3, 3, 17, 30, 0, 0, time.UTC) }
	out = env.handle("clock out", "consultant", "emp-1")
	if out.Kind != engine.OutcomeOK {
		t.Fatalf("clock out: %+v", out)
	}
	if !strings.Contains(out.Message, "8.50") {
		t.Fatalf("expected 8.50 worked hours, got %s", out.Message)
	}
	out = env.handle("clock out", "consultant", "emp-1")
	if out.Kind != engine.OutcomeNotFound {
		t.Fatalf("second clock out should find nothing open: %+v", out)
	}
}

func TestSubmitAndViewTimesheet(t *testing.T) {
	env := newTestEnv(t, nil)
	out := env.handle("log 7.5 hours in my timesheet for 2025-03-02", "consultant", "emp-1")
	if out.Kind != engine.OutcomeOK {
		t.Fatalf("submit timesheet: %+v", out)
	}
	out = env.handle("submit timesheet of 30 hours", "consultant", "emp-1")
	if out.Kind != engine.OutcomeInvalidState {
		t.Fatalf("expected hours bound refusal, got %+v", out)
	}
	out = env.handle("show my timesheets", "consultant", "emp-1")
	if out.Kind != engine.OutcomeOK || !strings.Contains(out.Message, "7.5 hours") {
		t.Fatalf("view timesheets: %+v", out)
	}
}

func TestViewTasksScoping(t *testing.T) {
	env := newTestEnv(t, nil)
	if out := env.handle("create task 'Mine' and assign it to Asha Nair", "team_lead", "lead-1"); out.Kind != engine.OutcomeOK {
		t.Fatalf("create: %+v", out)
	}
	if out := env.handle("create task 'Theirs' and assign it to Lena Fischer", "team_lead", "lead-1"); out.Kind != engine.OutcomeOK {
		t.Fatalf("create: %+v", out)
	}

	out := env.handle("show my tasks", "consultant", "emp-1")
	if out.Kind != engine.OutcomeOK {
		t.Fatalf("my tasks: %+v", out)
	}
	if !strings.Contains(out.Message, "Mine") || strings.Contains(out.Message, "Theirs") {
		t.Fatalf("self scope leaked: %s", out.Message)
	}

	out = env.handle("show all team tasks", "consultant", "emp-1")
	if out.Kind != engine.OutcomeDenied {
		t.Fatalf("consultant must not see team tasks: %+v", out)
	}
	out = env.handle("show all team tasks", "team_lead", "lead-1")
	if out.Kind != engine.OutcomeOK || !strings.Contains(out.Message, "Theirs") {
		t.Fatalf("team tasks: %+v", out)
	}
}

func TestTeamTasksScopedToLeadsTeam(t *testing.T) {
	env := newTestEnv(t, nil)
	for _, team := range []domain.Team{
		{ID: "team-a", TeamName: "Alpha"},
		{ID: "team-b", TeamName: "Bravo"},
	} {
		if err := env.Engine.Repo.InsertTeam(env.Ctx, team, "2025-01-01T00:00:00Z"); err != nil {
			t.Fatalf("seed team %s: %v", team.ID, err)
		}
	}
	seedTeamTask := func(id, title, teamID string) {
		t.Helper()
		tx, err := env.Engine.DB.BeginTx(env.Ctx, nil)
		if err != nil {
			t.Fatal(err)
		}
		defer tx.Rollback()
		assignee := "emp-1"
		err = env.Engine.Repo.InsertTask(env.Ctx, tx, domain.Task{
			ID: id, Title: title, Status: "pending",
			AssignedTo: &assignee, TeamID: &teamID,
			LifecycleState: domain.StageRequirementRefiner, SubState: domain.SubInProgress,
			CreatedAt: "2025-03-01T00:00:00Z", LifecycleUpdatedAt: "2025-03-01T00:00:00Z",
		})
		if err != nil {
			t.Fatalf("seed task %s: %v", id, err)
		}
		if err := tx.Commit(); err != nil {
			t.Fatal(err)
		}
	}
	seedTeamTask("task-a", "Alpha Work", "team-a")
	seedTeamTask("task-b", "Bravo Secret", "team-b")

	out := env.Engine.Handle(env.Ctx, engine.Request{
		Text: "show team tasks", Role: "team_lead", ActorID: "lead-1", TeamID: "team-a",
	})
	if out.Kind != engine.OutcomeOK || !strings.Contains(out.Message, "Alpha Work") {
		t.Fatalf("team tasks: %+v", out)
	}
	if strings.Contains(out.Message, "Bravo Secret") {
		t.Fatalf("another team's task leaked into the lead's view: %s", out.Message)
	}

	// Managers read organization-wide.
	out = env.Engine.Handle(env.Ctx, engine.Request{
		Text: "show team tasks", Role: "manager", ActorID: "mgr-1", TeamID: "team-a",
	})
	if out.Kind != engine.OutcomeOK || !strings.Contains(out.Message, "Bravo Secret") {
		t.Fatalf("manager view: %+v", out)
	}
}

func TestDepartmentGate(t *testing.T) {
	env := newTestEnv(t, nil)
	out := env.handle("create a new Platform department", "manager", "mgr-1")
	if out.Kind != engine.OutcomeDenied {
		t.Fatalf("managers must not create departments: %+v", out)
	}
	out = env.handle("create a new Platform department", "executive", "mgr-1")
	if out.Kind != engine.OutcomeOK {
		t.Fatalf("executive create department: %+v", out)
	}
}

func TestScheduleMeetingResolvesAttendees(t *testing.T) {
	env := newTestEnv(t, nil)
	out := env.handle("schedule a meeting with asha on 2025-03-10 at 3pm", "team_lead", "lead-1")
	if out.Kind != engine.OutcomeOK {
		t.Fatalf("schedule meeting: %+v", out)
	}
	items, err := env.Engine.Repo.ListAnnouncements(env.Ctx, 1)
	if err != nil || len(items) != 1 {
		t.Fatalf("announcements: %v %v", items, err)
	}
	if items[0].EventFor != "Asha Nair" {
		t.Fatalf("attendee not resolved to a profile name: %q", items[0].EventFor)
	}
	if items[0].EventTime != "15:00" {
		t.Fatalf("event time = %q", items[0].EventTime)
	}
}

func TestScheduleMeetingAmbiguousAttendee(t *testing.T) {
	env := newTestEnv(t, nil)
	env.seedProfile(t, "j-1", "John Doe", "jdoe@example.com", domain.RoleConsultant)
	env.seedProfile(t, "j-2", "John Smith", "jsmith@example.com", domain.RoleConsultant)
	out := env.handle("schedule a meeting with john tomorrow at 10am", "team_lead", "lead-1")
	if out.Kind != engine.OutcomeAmbiguous {
		t.Fatalf("expected ambiguity, got %+v", out)
	}
	if len(out.Candidates) != 2 {
		t.Fatalf("candidates = %v", out.Candidates)
	}
}

func TestCancelAndEmptyInput(t *testing.T) {
	env := newTestEnv(t, nil)
	if out := env.handle("never mind", "consultant", "emp-1"); out.Kind != engine.OutcomeCancelled {
		t.Fatalf("cancel: %+v", out)
	}
	if out := env.handle("   ", "consultant", "emp-1"); out.Kind != engine.OutcomeClarification {
		t.Fatalf("empty input: %+v", out)
	}
}

func TestClassifierFallback(t *testing.T) {
	mock := &llm.MockClient{Responses: []string{`{"action":"view_dashboard","params":{}}`}}
	env := newTestEnv(t, mock)
	out := env.handle("give me the big picture please", "manager", "mgr-1")
	if out.Kind != engine.OutcomeOK || out.Action != "view_dashboard" {
		t.Fatalf("classifier fallback: %+v", out)
	}
	if len(mock.Calls) != 1 {
		t.Fatalf("expected one model call, got %d", len(mock.Calls))
	}
}

func TestClassifierUndetermined(t *testing.T) {
	mock := &llm.MockClient{Responses: []string{"I am not sure what you mean."}}
	env := newTestEnv(t, mock)
	out := env.handle("hmm quux flurble", "consultant", "emp-1")
	if out.Kind != engine.OutcomeClarification {
		t.Fatalf("expected clarification, got %+v", out)
	}
}

func TestUnknownRoleDefaultsToConsultant(t *testing.T) {
	env := newTestEnv(t, nil)
	out := env.handle("create a new Platform department", "", "emp-1")
	if out.Kind != engine.OutcomeDenied {
		t.Fatalf("blank role should act as consultant: %+v", out)
	}
}
