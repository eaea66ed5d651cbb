// Package intent resolves raw user text into a canonical action with
// extracted parameters. The deterministic matcher runs first; the model
// classifier is only consulted when every rule misses.
package intent

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"talentops/internal/rbac"
)

// Match is a resolved (action, params) candidate.
type Match struct {
	Action string
	Params map[string]string
}

// rule pairs a predicate with its extractor. Rules run in slice order
// and the first predicate hit wins; there is no scoring and no
// backtracking, so relative order is part of the contract. Each rule
// notes what it must stay above or below.
type rule struct {
	name      string
	predicate func(lower string) bool
	extract   func(m *Matcher, text, lower string) Match
}

// Matcher holds the assignee name whitelist and the clock used to
// resolve relative dates. It never touches storage.
type Matcher struct {
	// Names are known employee display names for "to X" / "assign X"
	// extraction. Lookup is literal, case-insensitive.
	Names []string
	Now   func() time.Time
}

func NewMatcher(names []string, now func() time.Time) *Matcher {
	if now == nil {
		now = time.Now
	}
	return &Matcher{Names: names, Now: now}
}

var (
	isoDateRe   = regexp.MustCompile(`\d{4}-\d{2}-\d{2}`)
	quotedRe    = regexp.MustCompile(`['"](.*?)['"]`)
	taskTitleRe = regexp.MustCompile(`(?:task|title)\s+['"]?(.*?)['"]?\s+to\b`)
	emailRe     = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)
	hoursRe     = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(?:hours|hour|hrs|hr|h)\b`)
	timeRe      = regexp.MustCompile(`at\s+(\d{1,2})(?::(\d{2}))?\s*(am|pm)?`)
	leaveForRe  = regexp.MustCompile(`(?:approve|reject)\s+(?:the\s+)?leave\s+(?:for|of)\s+([a-zA-Z0-9]+)`)
	leavePossRe = regexp.MustCompile(`(?:approve|reject)\s+([a-zA-Z0-9]+)'s\s+leave`)
	leaveBareRe = regexp.MustCompile(`(?:approve|reject)\s+([a-zA-Z0-9]+)`)
	teamNameRe  = regexp.MustCompile(`(?:create|add)\s+(?:a\s+new\s+)?([a-zA-Z\s\-]+?)\s+team`)
	deptNameRe  = regexp.MustCompile(`(?:create|add)\s+(?:a\s+new\s+)?([a-zA-Z\s\-]+?)\s+department`)
	employeeRe  = regexp.MustCompile(`(?:add|create)\s+employee\s+([a-zA-Z]+(?:\s+[a-zA-Z]+)?)`)
	meetTitleRe = regexp.MustCompile(`(?:for|about|titled)\s+['"]?([^'"]+?)['"]?(?:\s+(?:with|on|at|tomorrow|today)|$)`)
	meetWithRe  = regexp.MustCompile(`with\s+([a-zA-Z,\s]+?)(?:\s+(?:on|at|tomorrow|today|for|about)|$)`)
)

// Match runs the rule list over the lower-cased input. A nil return
// means no rule matched and the caller should fall back to the model
// classifier.
func (m *Matcher) Match(text string) *Match {
	lower := strings.ToLower(text)
	for _, r := range rules {
		if r.predicate(lower) {
			res := r.extract(m, text, lower)
			if res.Params == nil {
				res.Params = map[string]string{}
			}
			return &res
		}
	}
	return nil
}

var rules = []rule{
	{
		// Must stay above the generic task-view rule: "create a task
		// to review X" contains "task" and would otherwise read.
		name: "create_task",
		predicate: func(l string) bool {
			return strings.Contains(l, "task") && (strings.Contains(l, "assign") || strings.Contains(l, "create"))
		},
		extract: func(m *Matcher, text, lower string) Match {
			params := map[string]string{}
			if q := quotedRe.FindStringSubmatch(text); q != nil {
				params["title"] = q[1]
			} else if t := taskTitleRe.FindStringSubmatch(lower); t != nil {
				params["title"] = strings.TrimSpace(t[1])
			}
			if name := m.findName(lower); name != "" {
				params["assigned_to"] = name
			}
			dates := isoDateRe.FindAllString(text, -1)
			if len(dates) > 0 {
				params["start_date"] = dates[0]
				params["due_date"] = dates[len(dates)-1]
			}
			for _, p := range []string{"high", "medium", "low"} {
				if strings.Contains(lower, p) {
					params["priority"] = p
					break
				}
			}
			return Match{Action: rbac.ActionCreateTask, Params: params}
		},
	},
	{
		// Above generic task rules: "send task X for validation".
		name: "request_validation",
		predicate: func(l string) bool {
			return strings.Contains(l, "validation") && (strings.Contains(l, "send") || strings.Contains(l, "submit") || strings.Contains(l, "request"))
		},
		extract: func(m *Matcher, text, lower string) Match {
			return Match{Action: rbac.ActionRequestValidation, Params: map[string]string{"title": extractTitle(text, lower)}}
		},
	},
	{
		// Above approve/reject stage, which would swallow "validation
		// queue" via "pending".
		name: "view_validation_queue",
		predicate: func(l string) bool {
			return strings.Contains(l, "validation") && (strings.Contains(l, "queue") || strings.Contains(l, "pending") || strings.Contains(l, "waiting"))
		},
		extract: func(m *Matcher, text, lower string) Match {
			return Match{Action: rbac.ActionViewValidationQueue}
		},
	},
	{
		// Stage decisions mention "task" or "stage"; must stay above
		// the leave approve/reject rule so "approve the task" never
		// reads as a leave decision, and above the generic task view.
		name: "stage_decision",
		predicate: func(l string) bool {
			return (strings.Contains(l, "approve") || strings.Contains(l, "reject")) &&
				(strings.Contains(l, "task") || strings.Contains(l, "stage")) && !strings.Contains(l, "leave")
		},
		extract: func(m *Matcher, text, lower string) Match {
			action := rbac.ActionApproveStage
			if strings.Contains(lower, "reject") {
				action = rbac.ActionRejectStage
			}
			params := map[string]string{"title": extractTitle(text, lower)}
			if action == rbac.ActionRejectStage {
				if i := strings.Index(lower, "because"); i >= 0 {
					params["reason"] = strings.TrimSpace(text[i+len("because"):])
				}
			}
			return Match{Action: action, Params: params}
		},
	},
	{
		// Above the generic task view: "task history" contains "task".
		name: "view_task_history",
		predicate: func(l string) bool {
			return strings.Contains(l, "task") && (strings.Contains(l, "history") || strings.Contains(l, "audit"))
		},
		extract: func(m *Matcher, text, lower string) Match {
			return Match{Action: rbac.ActionViewTaskHistory, Params: map[string]string{"title": extractTitle(text, lower)}}
		},
	},
	{
		name: "clock_in",
		predicate: func(l string) bool {
			return (strings.Contains(l, "clock") || strings.Contains(l, "check")) && containsWord(l, "in")
		},
		extract: func(m *Matcher, text, lower string) Match {
			return Match{Action: rbac.ActionClockIn}
		},
	},
	{
		name: "clock_out",
		predicate: func(l string) bool {
			return (strings.Contains(l, "clock") || strings.Contains(l, "check")) && containsWord(l, "out")
		},
		extract: func(m *Matcher, text, lower string) Match {
			return Match{Action: rbac.ActionClockOut}
		},
	},
	{
		// Balance questions mention "leave" too, so this stays above
		// the apply-leave rule.
		name: "check_leave_balance",
		predicate: func(l string) bool {
			return strings.Contains(l, "balance") || strings.Contains(l, "remaining") || strings.Contains(l, "quota") || strings.Contains(l, "how many leaves")
		},
		extract: func(m *Matcher, text, lower string) Match {
			return Match{Action: rbac.ActionCheckLeaveBalance}
		},
	},
	{
		// Timesheet rules stay above apply-leave: "log 8 hours" has no
		// leave words, but "submit timesheet for leave day" must still
		// be a timesheet.
		name: "submit_timesheet",
		predicate: func(l string) bool {
			return strings.Contains(l, "timesheet") && (strings.Contains(l, "submit") || strings.Contains(l, "log") || strings.Contains(l, "add") || strings.Contains(l, "fill"))
		},
		extract: func(m *Matcher, text, lower string) Match {
			params := map[string]string{}
			if h := hoursRe.FindStringSubmatch(lower); h != nil {
				params["hours"] = h[1]
			}
			if d := isoDateRe.FindString(text); d != "" {
				params["date"] = d
			}
			return Match{Action: rbac.ActionSubmitTimesheet, Params: params}
		},
	},
	{
		name: "view_timesheets",
		predicate: func(l string) bool {
			return strings.Contains(l, "timesheet")
		},
		extract: func(m *Matcher, text, lower string) Match {
			return Match{Action: rbac.ActionViewTimesheets}
		},
	},
	{
		// Leave decision must stay above apply-leave? No: decisions say
		// "approve", applications say "apply". It must however stay
		// above the pending-leave view rule below.
		name: "leave_decision",
		predicate: func(l string) bool {
			return strings.Contains(l, "leave") && (strings.Contains(l, "approve") || strings.Contains(l, "reject"))
		},
		extract: func(m *Matcher, text, lower string) Match {
			action := rbac.ActionApproveLeave
			if strings.Contains(lower, "reject") {
				action = rbac.ActionRejectLeave
			}
			params := map[string]string{}
			for _, re := range []*regexp.Regexp{leaveForRe, leavePossRe, leaveBareRe} {
				if g := re.FindStringSubmatch(lower); g != nil {
					candidate := g[1]
					// leaveBareRe happily captures filler words.
					if candidate != "the" && candidate != "leave" && candidate != "pending" {
						params["employee"] = candidate
						break
					}
				}
			}
			return Match{Action: action, Params: params}
		},
	},
	{
		name: "apply_leave",
		predicate: func(l string) bool {
			return strings.Contains(l, "leave") && (strings.Contains(l, "apply") || strings.Contains(l, "take") || strings.Contains(l, "request") || strings.Contains(l, "need"))
		},
		extract: func(m *Matcher, text, lower string) Match {
			params := map[string]string{}
			dates := isoDateRe.FindAllString(text, -1)
			if len(dates) > 0 {
				params["from_date"] = dates[0]
				params["to_date"] = dates[len(dates)-1]
			} else if rel := m.relativeDate(lower); rel != "" {
				params["from_date"] = rel
			}
			for _, r := range []string{"vacation", "sick", "marriage", "emergency", "personal", "travel"} {
				if strings.Contains(lower, r) {
					params["reason"] = titleCase(r)
					break
				}
			}
			return Match{Action: rbac.ActionApplyLeave, Params: params}
		},
	},
	{
		name: "create_team",
		predicate: func(l string) bool {
			return strings.Contains(l, "team") && (strings.Contains(l, "add") || strings.Contains(l, "create")) && !strings.Contains(l, "task")
		},
		extract: func(m *Matcher, text, lower string) Match {
			params := map[string]string{}
			if q := quotedRe.FindStringSubmatch(text); q != nil {
				params["team_name"] = q[1]
			} else if g := teamNameRe.FindStringSubmatch(lower); g != nil {
				params["team_name"] = titleCase(strings.TrimSpace(g[1]))
			}
			return Match{Action: rbac.ActionCreateTeam, Params: params}
		},
	},
	{
		name: "create_department",
		predicate: func(l string) bool {
			return strings.Contains(l, "department") && (strings.Contains(l, "add") || strings.Contains(l, "create"))
		},
		extract: func(m *Matcher, text, lower string) Match {
			params := map[string]string{}
			if q := quotedRe.FindStringSubmatch(text); q != nil {
				params["department_name"] = q[1]
			} else if g := deptNameRe.FindStringSubmatch(lower); g != nil {
				params["department_name"] = titleCase(strings.TrimSpace(g[1]))
			}
			return Match{Action: rbac.ActionCreateDepartment, Params: params}
		},
	},
	{
		name: "add_employee",
		predicate: func(l string) bool {
			return strings.Contains(l, "employee") && (strings.Contains(l, "add") || strings.Contains(l, "create") || strings.Contains(l, "onboard"))
		},
		extract: func(m *Matcher, text, lower string) Match {
			params := map[string]string{}
			if g := employeeRe.FindStringSubmatch(lower); g != nil {
				params["full_name"] = titleCase(g[1])
			}
			if e := emailRe.FindString(text); e != "" {
				params["email"] = strings.ToLower(e)
			}
			if strings.Contains(lower, "role") {
				if g := regexp.MustCompile(`role\s+([a-zA-Z_]+)`).FindStringSubmatch(lower); g != nil {
					params["role"] = g[1]
				}
			}
			return Match{Action: rbac.ActionAddEmployee, Params: params}
		},
	},
	{
		name: "post_announcement",
		predicate: func(l string) bool {
			return strings.Contains(l, "announcement") && (strings.Contains(l, "post") || strings.Contains(l, "create") || strings.Contains(l, "add") || strings.Contains(l, "publish"))
		},
		extract: func(m *Matcher, text, lower string) Match {
			msg := text
			if i := strings.Index(text, ":"); i >= 0 {
				msg = strings.TrimSpace(text[i+1:])
			} else if i := strings.Index(lower, "announcement"); i >= 0 {
				msg = strings.TrimSpace(strings.TrimPrefix(text[i+len("announcement"):], ":"))
			}
			params := map[string]string{"message": msg}
			if d := isoDateRe.FindString(text); d != "" {
				params["event_date"] = d
			}
			return Match{Action: rbac.ActionPostAnnouncement, Params: params}
		},
	},
	{
		name: "view_announcements",
		predicate: func(l string) bool {
			return strings.Contains(l, "announcement")
		},
		extract: func(m *Matcher, text, lower string) Match {
			return Match{Action: rbac.ActionViewAnnouncements}
		},
	},
	{
		name: "schedule_meeting",
		predicate: func(l string) bool {
			return strings.Contains(l, "meeting") && (strings.Contains(l, "schedule") || strings.Contains(l, "book") || strings.Contains(l, "set") || strings.Contains(l, "arrange") || strings.Contains(l, "with"))
		},
		extract: func(m *Matcher, text, lower string) Match {
			params := map[string]string{"title": "Team Meeting"}
			if g := meetTitleRe.FindStringSubmatch(lower); g != nil {
				params["title"] = titleCase(strings.TrimSpace(g[1]))
			}
			if g := meetWithRe.FindStringSubmatch(lower); g != nil {
				params["attendees"] = strings.TrimSpace(g[1])
			}
			if rel := m.relativeDate(lower); rel != "" {
				params["date"] = rel
			} else if d := isoDateRe.FindString(text); d != "" {
				params["date"] = d
			}
			if g := timeRe.FindStringSubmatch(lower); g != nil {
				params["time"] = clockTime(g[1], g[2], g[3])
			}
			return Match{Action: rbac.ActionScheduleMeeting, Params: params}
		},
	},
	{
		name: "view_notifications",
		predicate: func(l string) bool {
			return strings.Contains(l, "notification")
		},
		extract: func(m *Matcher, text, lower string) Match {
			return Match{Action: rbac.ActionViewNotifications}
		},
	},
	{
		name: "view_dashboard",
		predicate: func(l string) bool {
			return strings.Contains(l, "dashboard") || strings.Contains(l, "stats") || strings.Contains(l, "analytics")
		},
		extract: func(m *Matcher, text, lower string) Match {
			return Match{Action: rbac.ActionViewDashboard}
		},
	},
	{
		// Last of the task family: plain viewing. Stays below every
		// task rule above because "task" alone is its only anchor.
		name: "view_tasks",
		predicate: func(l string) bool {
			return strings.Contains(l, "task") && (strings.Contains(l, "show") || strings.Contains(l, "view") || strings.Contains(l, "list") || strings.Contains(l, "my") || strings.Contains(l, "status"))
		},
		extract: func(m *Matcher, text, lower string) Match {
			if strings.Contains(lower, "team") || strings.Contains(lower, "all") {
				return Match{Action: rbac.ActionViewTeamTasks}
			}
			return Match{Action: rbac.ActionViewMyTasks}
		},
	},
}

// findName scans the whitelist for "to <name>" or "assign <name>".
func (m *Matcher) findName(lower string) string {
	for _, name := range m.Names {
		n := strings.ToLower(name)
		if strings.Contains(lower, "to "+n) || strings.Contains(lower, "assign "+n) {
			return name
		}
	}
	return ""
}

// relativeDate resolves tomorrow/today/next week against the local
// calendar day.
func (m *Matcher) relativeDate(lower string) string {
	now := m.Now()
	switch {
	case strings.Contains(lower, "tomorrow"):
		return now.AddDate(0, 0, 1).Format("2006-01-02")
	case strings.Contains(lower, "today"):
		return now.Format("2006-01-02")
	case strings.Contains(lower, "next week"):
		return now.AddDate(0, 0, 7).Format("2006-01-02")
	}
	return ""
}

// extractTitle pulls a quoted title, falling back to the text after a
// marker word.
func extractTitle(text, lower string) string {
	if q := quotedRe.FindStringSubmatch(text); q != nil {
		return q[1]
	}
	for _, marker := range []string{" for ", " task ", " of "} {
		if i := strings.LastIndex(lower, marker); i >= 0 {
			rest := strings.TrimSpace(text[i+len(marker):])
			rest = strings.TrimSuffix(rest, "?")
			if rest != "" && !strings.EqualFold(rest, "validation") {
				return rest
			}
		}
	}
	return ""
}

func containsWord(l, word string) bool {
	for _, f := range strings.Fields(l) {
		if strings.Trim(f, ".,!?") == word {
			return true
		}
	}
	return false
}

func titleCase(s string) string {
	fields := strings.Fields(s)
	for i, f := range fields {
		fields[i] = strings.ToUpper(f[:1]) + f[1:]
	}
	return strings.Join(fields, " ")
}

// clockTime renders an extracted 12-hour time as 24-hour HH:MM.
func clockTime(hour, minutes, meridiem string) string {
	h, err := strconv.Atoi(hour)
	if err != nil || h < 0 || h > 23 {
		return ""
	}
	if minutes == "" {
		minutes = "00"
	}
	switch meridiem {
	case "pm":
		if h < 12 {
			h += 12
		}
	case "am":
		if h == 12 {
			h = 0
		}
	}
	return fmt.Sprintf("%02d:%s", h, minutes)
}
