package engine

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"talentops/internal/domain"
	"talentops/internal/history"
	"talentops/internal/notify"
	"talentops/internal/rbac"
	"talentops/internal/repo"
)

func (e Engine) executeInsert(ctx context.Context, actor actorContext, action string, params map[string]string) Outcome {
	switch action {
	case rbac.ActionApplyLeave:
		return e.applyLeave(ctx, actor, params)
	case rbac.ActionCreateTask:
		return e.createTask(ctx, actor, params)
	case rbac.ActionClockIn:
		return e.clockIn(ctx, actor)
	case rbac.ActionSubmitTimesheet:
		return e.submitTimesheet(ctx, actor, params)
	case rbac.ActionCreateDepartment:
		return e.createDepartment(ctx, params)
	case rbac.ActionCreateTeam:
		return e.createTeam(ctx, params)
	case rbac.ActionAddEmployee:
		return e.addEmployee(ctx, params)
	case rbac.ActionPostAnnouncement:
		return e.postAnnouncement(ctx, params, "announcement")
	case rbac.ActionScheduleMeeting:
		return e.scheduleMeeting(ctx, params)
	}
	return Outcome{Kind: OutcomeError, Message: "Unknown operation."}
}

func (e Engine) executeUpdate(ctx context.Context, actor actorContext, action string, params map[string]string) Outcome {
	switch action {
	case rbac.ActionApproveLeave:
		return e.decideLeave(ctx, actor, params, true)
	case rbac.ActionRejectLeave:
		return e.decideLeave(ctx, actor, params, false)
	case rbac.ActionClockOut:
		return e.clockOut(ctx, actor)
	case rbac.ActionUpdateTaskStatus:
		return e.updateTaskStatus(ctx, actor, params)
	}
	return Outcome{Kind: OutcomeError, Message: "Unknown operation."}
}

func (e Engine) applyLeave(ctx context.Context, actor actorContext, params map[string]string) Outcome {
	profile, err := e.Repo.GetProfile(ctx, actor.ID)
	if err != nil {
		return e.storageFailure("apply leave: load profile", err)
	}
	if profile.LeavesRemaining <= 0 {
		return Outcome{Kind: OutcomeInvalidState, Action: rbac.ActionApplyLeave,
			Message: "You have no leave balance remaining this month."}
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return e.storageFailure("apply leave", err)
	}
	defer tx.Rollback()
	l := domain.Leave{
		ID:         uuid.NewString(),
		EmployeeID: actor.ID,
		FromDate:   params["from_date"],
		ToDate:     params["to_date"],
		Reason:     params["reason"],
		Status:     "pending",
	}
	if actor.TeamID != "" {
		l.TeamID = &actor.TeamID
	}
	if err := e.Repo.InsertLeave(ctx, tx, l, e.now().UTC().Format(time.RFC3339)); err != nil {
		return e.storageFailure("apply leave: insert", err)
	}
	if err := tx.Commit(); err != nil {
		return e.storageFailure("apply leave: commit", err)
	}
	return Outcome{Kind: OutcomeOK, Action: rbac.ActionApplyLeave, Data: l,
		Message: fmt.Sprintf("Leave request submitted for %s to %s (%s). It is pending approval.", l.FromDate, l.ToDate, l.Reason)}
}

// decideLeave resolves the employee, finds their latest pending leave
// and settles it. The conditional update makes concurrent decisions
// safe: the second approver sees "already settled".
func (e Engine) decideLeave(ctx context.Context, actor actorContext, params map[string]string, approve bool) Outcome {
	action := rbac.ActionApproveLeave
	verb := "approved"
	if !approve {
		action = rbac.ActionRejectLeave
		verb = "rejected"
	}
	employee, err := e.Repo.ResolveProfile(ctx, params["employee"])
	if err != nil {
		var amb *repo.ErrAmbiguous
		if errors.As(err, &amb) {
			return Outcome{Kind: OutcomeAmbiguous, Action: action, Candidates: amb.Candidates,
				Message: "Several people match \"" + amb.Ref + "\": " + joinList(amb.Candidates) + ". Who do you mean?"}
		}
		if errors.Is(err, repo.ErrNotFound) {
			return Outcome{Kind: OutcomeNotFound, Action: action,
				Message: "I couldn't find an employee matching \"" + params["employee"] + "\"."}
		}
		return e.storageFailure("decide leave: resolve employee", err)
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return e.storageFailure("decide leave", err)
	}
	defer tx.Rollback()

	leave, err := e.Repo.LatestPendingLeave(ctx, tx, employee.ID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return Outcome{Kind: OutcomeNotFound, Action: action,
				Message: employee.FullName + " has no pending leave requests."}
		}
		return e.storageFailure("decide leave: lookup", err)
	}
	status := "approved"
	if !approve {
		status = "rejected"
	}
	settled, err := e.Repo.SettleLeave(ctx, tx, leave.ID, status)
	if err != nil {
		return e.storageFailure("decide leave: settle", err)
	}
	if !settled {
		return Outcome{Kind: OutcomeInvalidState, Action: action,
			Message: "That leave request was already decided by someone else."}
	}
	if approve {
		taken := employee.LeavesTakenThisMonth + 1
		remaining := employee.LeavesRemaining - 1
		if remaining < 0 {
			remaining = 0
		}
		if err := e.Repo.UpdateProfileLeaveCounters(ctx, tx, employee.ID, taken, remaining); err != nil {
			return e.storageFailure("decide leave: counters", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return e.storageFailure("decide leave: commit", err)
	}
	if err := e.Notify.Send(ctx, employee.ID, "leave_"+status,
		fmt.Sprintf("Your leave request (%s to %s) was %s.", leave.FromDate, leave.ToDate, verb),
		notify.Payload{LeaveID: leave.ID}); err != nil {
		e.logf("engine: notify leave decision: %v", err)
	}
	return Outcome{Kind: OutcomeOK, Action: action,
		Message: fmt.Sprintf("%s's leave from %s to %s has been %s.", employee.FullName, leave.FromDate, leave.ToDate, verb)}
}

func (e Engine) createTask(ctx context.Context, actor actorContext, params map[string]string) Outcome {
	assignee, err := e.Repo.ResolveProfile(ctx, params["assigned_to"])
	if err != nil {
		var amb *repo.ErrAmbiguous
		if errors.As(err, &amb) {
			return Outcome{Kind: OutcomeAmbiguous, Action: rbac.ActionCreateTask, Candidates: amb.Candidates,
				Message: "Several people match \"" + amb.Ref + "\": " + joinList(amb.Candidates) + ". Who should get this task?"}
		}
		if errors.Is(err, repo.ErrNotFound) {
			return Outcome{Kind: OutcomeNotFound, Action: rbac.ActionCreateTask,
				Message: "I couldn't find anyone matching \"" + params["assigned_to"] + "\" to assign this task to."}
		}
		return e.storageFailure("create task: resolve assignee", err)
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return e.storageFailure("create task", err)
	}
	defer tx.Rollback()
	now := e.now().UTC().Format(time.RFC3339)
	t := domain.Task{
		ID:                 uuid.NewString(),
		Title:              params["title"],
		Description:        params["description"],
		Status:             "pending",
		Priority:           params["priority"],
		AssignedTo:         &assignee.ID,
		AssignedBy:         &actor.ID,
		StartDate:          params["start_date"],
		DueDate:            params["due_date"],
		LifecycleState:     domain.StageRequirementRefiner,
		SubState:           domain.SubInProgress,
		CreatedAt:          now,
		LifecycleUpdatedAt: now,
	}
	if actor.TeamID != "" {
		t.TeamID = &actor.TeamID
	}
	if err := e.Repo.InsertTask(ctx, tx, t); err != nil {
		return e.storageFailure("create task: insert", err)
	}
	if err := e.History.Append(ctx, tx, history.Entry{
		TaskID:      t.ID,
		Action:      "created",
		ToLifecycle: t.LifecycleState,
		ToSubState:  t.SubState,
		ActorID:     actor.ID,
	}); err != nil {
		return e.storageFailure("create task: history", err)
	}
	if err := tx.Commit(); err != nil {
		return e.storageFailure("create task: commit", err)
	}
	if err := e.Notify.Send(ctx, assignee.ID, "task_assigned",
		"You have been assigned a new task: "+t.Title, notify.Payload{TaskID: t.ID}); err != nil {
		e.logf("engine: notify assignment: %v", err)
	}
	return Outcome{Kind: OutcomeOK, Action: rbac.ActionCreateTask, Data: t,
		Message: fmt.Sprintf("Task %q created and assigned to %s. It starts in the %s stage.", t.Title, assignee.FullName, stageLabel(t.LifecycleState))}
}

func (e Engine) updateTaskStatus(ctx context.Context, actor actorContext, params map[string]string) Outcome {
	task, outcome := e.lookupTask(ctx, rbac.ActionUpdateTaskStatus, params["title"])
	if outcome != nil {
		return *outcome
	}
	status := params["status"]
	switch status {
	case "pending", "in_progress", "completed", "closed":
	default:
		return Outcome{Kind: OutcomeInvalidState, Action: rbac.ActionUpdateTaskStatus,
			Message: "Status must be one of pending, in_progress, completed or closed."}
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return e.storageFailure("update task status", err)
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateTaskStatus(ctx, tx, task.ID, status); err != nil {
		return e.storageFailure("update task status: update", err)
	}
	if err := e.History.Append(ctx, tx, history.Entry{
		TaskID:  task.ID,
		Action:  "status_" + status,
		ActorID: actor.ID,
	}); err != nil {
		return e.storageFailure("update task status: history", err)
	}
	if err := tx.Commit(); err != nil {
		return e.storageFailure("update task status: commit", err)
	}
	return Outcome{Kind: OutcomeOK, Action: rbac.ActionUpdateTaskStatus,
		Message: fmt.Sprintf("Task %q is now %s.", task.Title, status)}
}

func (e Engine) clockIn(ctx context.Context, actor actorContext) Outcome {
	now := e.now()
	today := now.Format("2006-01-02")
	if _, err := e.Repo.OpenAttendance(ctx, actor.ID, today); err == nil {
		return Outcome{Kind: OutcomeInvalidState, Action: rbac.ActionClockIn,
			Message: "You are already clocked in today."}
	} else if !errors.Is(err, repo.ErrNotFound) {
		return e.storageFailure("clock in: lookup", err)
	}
	a := domain.Attendance{
		ID:         uuid.NewString(),
		EmployeeID: actor.ID,
		Date:       today,
		ClockIn:    now.UTC().Format(time.RFC3339),
	}
	if actor.TeamID != "" {
		a.TeamID = &actor.TeamID
	}
	if err := e.Repo.InsertAttendance(ctx, a, now.UTC().Format(time.RFC3339)); err != nil {
		return e.storageFailure("clock in: insert", err)
	}
	return Outcome{Kind: OutcomeOK, Action: rbac.ActionClockIn,
		Message: "Clocked in at " + now.Format("15:04") + ". Have a good day!"}
}

// clockOut closes today's open attendance row, computing elapsed hours
// from the recorded clock-in.
func (e Engine) clockOut(ctx context.Context, actor actorContext) Outcome {
	now := e.now()
	today := now.Format("2006-01-02")
	open, err := e.Repo.OpenAttendance(ctx, actor.ID, today)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return Outcome{Kind: OutcomeNotFound, Action: rbac.ActionClockOut,
				Message: "You don't have an open clock-in for today."}
		}
		return e.storageFailure("clock out: lookup", err)
	}
	clockIn, err := time.Parse(time.RFC3339, open.ClockIn)
	if err != nil {
		return e.storageFailure("clock out: parse clock-in", err)
	}
	hours := now.UTC().Sub(clockIn).Hours()
	if hours < 0 {
		hours = 0
	}
	hours = float64(int(hours*100)) / 100
	if err := e.Repo.CloseAttendance(ctx, open.ID, now.UTC().Format(time.RFC3339), hours); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return Outcome{Kind: OutcomeInvalidState, Action: rbac.ActionClockOut,
				Message: "Your attendance for today was already closed."}
		}
		return e.storageFailure("clock out: close", err)
	}
	return Outcome{Kind: OutcomeOK, Action: rbac.ActionClockOut,
		Message: fmt.Sprintf("Clocked out at %s. You worked %.2f hours today.", now.Format("15:04"), hours)}
}

func (e Engine) submitTimesheet(ctx context.Context, actor actorContext, params map[string]string) Outcome {
	hours, err := strconv.ParseFloat(params["hours"], 64)
	if err != nil || hours <= 0 || hours > 24 {
		return Outcome{Kind: OutcomeInvalidState, Action: rbac.ActionSubmitTimesheet,
			Message: "Hours must be a number between 0 and 24."}
	}
	date := params["date"]
	if date == "" {
		date = e.now().Format("2006-01-02")
	}
	t := domain.Timesheet{
		ID:         uuid.NewString(),
		EmployeeID: actor.ID,
		Date:       date,
		Hours:      hours,
	}
	if err := e.Repo.InsertTimesheet(ctx, t, e.now().UTC().Format(time.RFC3339)); err != nil {
		return e.storageFailure("submit timesheet", err)
	}
	return Outcome{Kind: OutcomeOK, Action: rbac.ActionSubmitTimesheet,
		Message: fmt.Sprintf("Logged %.1f hours for %s.", hours, date)}
}

func (e Engine) createDepartment(ctx context.Context, params map[string]string) Outcome {
	d := domain.Department{ID: uuid.NewString(), DepartmentName: params["department_name"]}
	if err := e.Repo.InsertDepartment(ctx, d, e.now().UTC().Format(time.RFC3339)); err != nil {
		return e.storageFailure("create department", err)
	}
	return Outcome{Kind: OutcomeOK, Action: rbac.ActionCreateDepartment, Data: d,
		Message: "Department " + d.DepartmentName + " created."}
}

func (e Engine) createTeam(ctx context.Context, params map[string]string) Outcome {
	t := domain.Team{ID: uuid.NewString(), TeamName: params["team_name"]}
	if err := e.Repo.InsertTeam(ctx, t, e.now().UTC().Format(time.RFC3339)); err != nil {
		return e.storageFailure("create team", err)
	}
	return Outcome{Kind: OutcomeOK, Action: rbac.ActionCreateTeam, Data: t,
		Message: "Team " + t.TeamName + " created."}
}

func (e Engine) addEmployee(ctx context.Context, params map[string]string) Outcome {
	role := domain.NormalizeRole(params["role"])
	if role == "" {
		role = domain.RoleConsultant
	}
	if !domain.IsKnownRole(role) {
		return Outcome{Kind: OutcomeInvalidState, Action: rbac.ActionAddEmployee,
			Message: "Unknown role " + params["role"] + ". Valid roles are consultant, team_lead, manager and executive."}
	}
	quota := e.Config.Leave.MonthlyQuota
	profile := domain.Profile{
		ID:                uuid.NewString(),
		FullName:          params["full_name"],
		Email:             params["email"],
		Role:              role,
		MonthlyLeaveQuota: quota,
		LeavesRemaining:   quota,
		Location:          params["location"],
		Phone:             params["phone"],
		CreatedAt:         e.now().UTC().Format(time.RFC3339),
	}
	if err := e.Repo.InsertProfile(ctx, profile); err != nil {
		return e.storageFailure("add employee", err)
	}
	return Outcome{Kind: OutcomeOK, Action: rbac.ActionAddEmployee, Data: profile,
		Message: profile.FullName + " added as " + role + "."}
}

func (e Engine) postAnnouncement(ctx context.Context, params map[string]string, typ string) Outcome {
	a := domain.Announcement{
		ID:        uuid.NewString(),
		Title:     params["title"],
		Message:   params["message"],
		EventDate: params["event_date"],
		EventTime: params["event_time"],
		EventFor:  params["event_for"],
		Status:    "active",
		CreatedAt: e.now().UTC().Format(time.RFC3339),
	}
	if err := e.Repo.InsertAnnouncement(ctx, a); err != nil {
		return e.storageFailure("post announcement", err)
	}
	msg := "Announcement posted."
	if typ == "meeting" {
		msg = fmt.Sprintf("Meeting %q scheduled for %s at %s.", a.Title, a.EventDate, a.EventTime)
	}
	return Outcome{Kind: OutcomeOK, Action: rbac.ActionPostAnnouncement, Data: a, Message: msg}
}

// scheduleMeeting resolves the attendee list against profiles and
// stores the meeting as an announcement carrying its date, time and
// attendees.
func (e Engine) scheduleMeeting(ctx context.Context, params map[string]string) Outcome {
	attendees, bad := e.resolveAttendees(ctx, params["attendees"])
	if bad != nil {
		return *bad
	}
	p := map[string]string{
		"title":      params["title"],
		"message":    "Meeting: " + params["title"],
		"event_date": params["date"],
		"event_time": params["time"],
		"event_for":  attendees,
	}
	out := e.postAnnouncement(ctx, p, "meeting")
	if out.Kind == OutcomeOK {
		out.Action = rbac.ActionScheduleMeeting
	}
	return out
}

// resolveAttendees maps each attendee reference to a display name. An
// ambiguous reference surfaces candidates like any other smart lookup;
// a reference matching nobody stays as written.
func (e Engine) resolveAttendees(ctx context.Context, raw string) (string, *Outcome) {
	if strings.TrimSpace(raw) == "" {
		return "", nil
	}
	var names []string
	for _, ref := range splitAttendees(raw) {
		p, err := e.Repo.ResolveProfile(ctx, ref)
		if err != nil {
			var amb *repo.ErrAmbiguous
			if errors.As(err, &amb) {
				o := Outcome{Kind: OutcomeAmbiguous, Action: rbac.ActionScheduleMeeting, Candidates: amb.Candidates,
					Message: "Several people match \"" + amb.Ref + "\": " + joinList(amb.Candidates) + ". Who should attend?"}
				return "", &o
			}
			if errors.Is(err, repo.ErrNotFound) {
				names = append(names, ref)
				continue
			}
			o := e.storageFailure("schedule meeting: resolve attendee", err)
			return "", &o
		}
		names = append(names, p.FullName)
	}
	return strings.Join(names, ", "), nil
}

func splitAttendees(raw string) []string {
	raw = strings.ReplaceAll(raw, " and ", ",")
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (e Engine) lookupTask(ctx context.Context, action, title string) (domain.Task, *Outcome) {
	task, err := e.Repo.FindTaskByTitle(ctx, title)
	if err != nil {
		var amb *repo.ErrAmbiguous
		if errors.As(err, &amb) {
			o := Outcome{Kind: OutcomeAmbiguous, Action: action, Candidates: amb.Candidates,
				Message: "Several tasks match \"" + amb.Ref + "\": " + joinList(amb.Candidates) + ". Which one do you mean?"}
			return domain.Task{}, &o
		}
		if errors.Is(err, repo.ErrNotFound) {
			o := Outcome{Kind: OutcomeNotFound, Action: action,
				Message: "I couldn't find an open task matching \"" + title + "\"."}
			return domain.Task{}, &o
		}
		o := e.storageFailure("lookup task", err)
		return domain.Task{}, &o
	}
	return task, nil
}

func joinList(items []string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	}
	out := items[0]
	for _, it := range items[1 : len(items)-1] {
		out += ", " + it
	}
	return out + " and " + items[len(items)-1]
}
