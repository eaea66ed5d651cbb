package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"talentops/internal/domain"
	"talentops/internal/rbac"
	"talentops/internal/repo"
)

func (e Engine) executeRead(ctx context.Context, actor actorContext, action string, params map[string]string) Outcome {
	switch action {
	case rbac.ActionCheckLeaveBalance:
		return e.readLeaveBalance(ctx, actor)
	case rbac.ActionViewMyTasks:
		return e.readTasks(ctx, actor, false)
	case rbac.ActionViewTeamTasks:
		return e.readTasks(ctx, actor, true)
	case rbac.ActionViewValidationQueue:
		return e.readValidationQueue(ctx)
	case rbac.ActionViewTaskHistory:
		return e.readTaskHistory(ctx, params)
	case rbac.ActionViewTimesheets:
		return e.readTimesheets(ctx, actor)
	case rbac.ActionViewAnnouncements:
		return e.readAnnouncements(ctx)
	case rbac.ActionViewNotifications:
		return e.readNotifications(ctx, actor)
	case rbac.ActionViewDashboard:
		return e.readDashboard(ctx)
	}
	return Outcome{Kind: OutcomeError, Message: "Unknown operation."}
}

func (e Engine) readLeaveBalance(ctx context.Context, actor actorContext) Outcome {
	p, err := e.Repo.GetProfile(ctx, actor.ID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return Outcome{Kind: OutcomeNotFound, Action: rbac.ActionCheckLeaveBalance,
				Message: "I couldn't find your profile."}
		}
		return e.storageFailure("leave balance", err)
	}
	return Outcome{Kind: OutcomeOK, Action: rbac.ActionCheckLeaveBalance, Data: p,
		Message: fmt.Sprintf("You have %d of %d leaves remaining this month (%d taken).",
			p.LeavesRemaining, p.MonthlyLeaveQuota, p.LeavesTakenThisMonth)}
}

// readTasks is self-scoped for consultants and team-wide for the roles
// permitted view_team_tasks. A team lead's view is always limited to
// their own team; only manager and executive reads go organization-wide.
func (e Engine) readTasks(ctx context.Context, actor actorContext, teamWide bool) Outcome {
	action := rbac.ActionViewMyTasks
	f := repo.TaskFilters{AssignedTo: actor.ID, Limit: 20}
	if teamWide {
		action = rbac.ActionViewTeamTasks
		f = repo.TaskFilters{Limit: 50}
		if actor.Role == domain.RoleTeamLead {
			f.TeamID = actor.TeamID
		}
	}
	tasks, err := e.Repo.ListTasks(ctx, f)
	if err != nil {
		return e.storageFailure("list tasks", err)
	}
	if len(tasks) == 0 {
		msg := "You have no tasks assigned right now."
		if teamWide {
			msg = "No tasks found for the team."
		}
		return Outcome{Kind: OutcomeOK, Action: action, Message: msg}
	}
	names, err := e.profileNames(ctx)
	if err != nil {
		return e.storageFailure("list tasks: names", err)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Found %d task(s):\n", len(tasks))
	for _, t := range tasks {
		fmt.Fprintf(&b, "- %q: %s, %s stage (%d%%)", t.Title, t.Status, stageLabel(t.LifecycleState), domain.Progress(t.LifecycleState, t.SubState))
		if teamWide && t.AssignedTo != nil {
			fmt.Fprintf(&b, ", assigned to %s", names.lookup(*t.AssignedTo))
		}
		if t.DueDate != "" {
			fmt.Fprintf(&b, ", due %s", t.DueDate)
		}
		b.WriteString("\n")
	}
	return Outcome{Kind: OutcomeOK, Action: action, Data: tasks, Message: strings.TrimRight(b.String(), "\n")}
}

func (e Engine) readValidationQueue(ctx context.Context) Outcome {
	tasks, err := e.Repo.ListTasks(ctx, repo.TaskFilters{SubState: domain.SubPendingValidation, Limit: 50})
	if err != nil {
		return e.storageFailure("validation queue", err)
	}
	if len(tasks) == 0 {
		return Outcome{Kind: OutcomeOK, Action: rbac.ActionViewValidationQueue,
			Message: "Nothing is waiting for validation."}
	}
	names, err := e.profileNames(ctx)
	if err != nil {
		return e.storageFailure("validation queue: names", err)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d task(s) waiting for validation:\n", len(tasks))
	for _, t := range tasks {
		assignee := "unassigned"
		if t.AssignedTo != nil {
			assignee = names.lookup(*t.AssignedTo)
		}
		fmt.Fprintf(&b, "- %q at %s stage, assignee %s\n", t.Title, stageLabel(t.LifecycleState), assignee)
	}
	return Outcome{Kind: OutcomeOK, Action: rbac.ActionViewValidationQueue, Data: tasks,
		Message: strings.TrimRight(b.String(), "\n")}
}

func (e Engine) readTaskHistory(ctx context.Context, params map[string]string) Outcome {
	task, bad := e.lookupTask(ctx, rbac.ActionViewTaskHistory, params["title"])
	if bad != nil {
		return *bad
	}
	entries, err := e.Repo.ListTaskHistory(ctx, task.ID)
	if err != nil {
		return e.storageFailure("task history", err)
	}
	if len(entries) == 0 {
		return Outcome{Kind: OutcomeOK, Action: rbac.ActionViewTaskHistory,
			Message: fmt.Sprintf("No history recorded for %q yet.", task.Title)}
	}
	names, err := e.profileNames(ctx)
	if err != nil {
		return e.storageFailure("task history: names", err)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "History of %q:\n", task.Title)
	for _, h := range entries {
		fmt.Fprintf(&b, "- %s: %s by %s", h.CreatedAt, strings.ReplaceAll(h.Action, "_", " "), names.lookup(h.ActorID))
		if h.FromLifecycle != "" && h.ToLifecycle != "" && h.FromLifecycle != h.ToLifecycle {
			fmt.Fprintf(&b, " (%s -> %s)", stageLabel(h.FromLifecycle), stageLabel(h.ToLifecycle))
		}
		if h.Comment != nil && *h.Comment != "" {
			fmt.Fprintf(&b, ": %s", *h.Comment)
		}
		b.WriteString("\n")
	}
	return Outcome{Kind: OutcomeOK, Action: rbac.ActionViewTaskHistory, Data: entries,
		Message: strings.TrimRight(b.String(), "\n")}
}

func (e Engine) readTimesheets(ctx context.Context, actor actorContext) Outcome {
	sheets, err := e.Repo.ListTimesheets(ctx, actor.ID, 10)
	if err != nil {
		return e.storageFailure("timesheets", err)
	}
	if len(sheets) == 0 {
		return Outcome{Kind: OutcomeOK, Action: rbac.ActionViewTimesheets,
			Message: "You have no timesheet entries yet."}
	}
	var b strings.Builder
	var total float64
	fmt.Fprintf(&b, "Your last %d timesheet entries:\n", len(sheets))
	for _, s := range sheets {
		fmt.Fprintf(&b, "- %s: %.1f hours\n", s.Date, s.Hours)
		total += s.Hours
	}
	fmt.Fprintf(&b, "Total: %.1f hours", total)
	return Outcome{Kind: OutcomeOK, Action: rbac.ActionViewTimesheets, Data: sheets, Message: b.String()}
}

func (e Engine) readAnnouncements(ctx context.Context) Outcome {
	items, err := e.Repo.ListAnnouncements(ctx, 10)
	if err != nil {
		return e.storageFailure("announcements", err)
	}
	if len(items) == 0 {
		return Outcome{Kind: OutcomeOK, Action: rbac.ActionViewAnnouncements,
			Message: "There are no announcements right now."}
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Latest announcements:\n")
	for _, a := range items {
		fmt.Fprintf(&b, "- %s", a.Title)
		if a.EventDate != "" {
			fmt.Fprintf(&b, " (%s", a.EventDate)
			if a.EventTime != "" {
				fmt.Fprintf(&b, " %s", a.EventTime)
			}
			b.WriteString(")")
		}
		b.WriteString("\n")
	}
	return Outcome{Kind: OutcomeOK, Action: rbac.ActionViewAnnouncements, Data: items,
		Message: strings.TrimRight(b.String(), "\n")}
}

func (e Engine) readNotifications(ctx context.Context, actor actorContext) Outcome {
	items, err := e.Repo.ListNotifications(ctx, actor.ID, false, 10)
	if err != nil {
		return e.storageFailure("notifications", err)
	}
	if len(items) == 0 {
		return Outcome{Kind: OutcomeOK, Action: rbac.ActionViewNotifications,
			Message: "You have no notifications."}
	}
	var b strings.Builder
	unread := 0
	for _, n := range items {
		if !n.IsRead {
			unread++
		}
	}
	fmt.Fprintf(&b, "You have %d notification(s), %d unread:\n", len(items), unread)
	for _, n := range items {
		marker := " "
		if !n.IsRead {
			marker = "*"
		}
		fmt.Fprintf(&b, "%s %s\n", marker, n.Message)
	}
	return Outcome{Kind: OutcomeOK, Action: rbac.ActionViewNotifications, Data: items,
		Message: strings.TrimRight(b.String(), "\n")}
}

func (e Engine) readDashboard(ctx context.Context) Outcome {
	counts, err := e.Repo.CountTasksByStatus(ctx)
	if err != nil {
		return e.storageFailure("dashboard", err)
	}
	pendingLeaves, err := e.Repo.ListLeaves(ctx, "", "pending")
	if err != nil {
		return e.storageFailure("dashboard: leaves", err)
	}
	profiles, err := e.Repo.ListProfiles(ctx)
	if err != nil {
		return e.storageFailure("dashboard: profiles", err)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Organization summary: %d employees.\n", len(profiles))
	fmt.Fprintf(&b, "Tasks: %d pending, %d in progress, %d completed, %d closed.\n",
		counts["pending"], counts["in_progress"], counts["completed"], counts["closed"])
	fmt.Fprintf(&b, "Pending leave requests: %d.", len(pendingLeaves))
	return Outcome{Kind: OutcomeOK, Action: rbac.ActionViewDashboard,
		Data: map[string]any{"tasks": counts, "pending_leaves": len(pendingLeaves), "employees": len(profiles)},
		Message: b.String()}
}

// nameIndex resolves profile ids to display names for read rendering;
// raw identifiers never reach the end user.
type nameIndex map[string]string

func (n nameIndex) lookup(id string) string {
	if name, ok := n[id]; ok {
		return name
	}
	return "unknown"
}

func (e Engine) profileNames(ctx context.Context) (nameIndex, error) {
	profiles, err := e.Repo.ListProfiles(ctx)
	if err != nil {
		return nil, err
	}
	idx := make(nameIndex, len(profiles))
	for _, p := range profiles {
		idx[p.ID] = p.FullName
	}
	return idx, nil
}
