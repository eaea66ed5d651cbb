package rbac

import "sort"

// Canonical action names. The intent matcher and the model classifier
// both resolve to these; anything else is rejected as unknown.
const (
	ActionApplyLeave          = "apply_leave"
	ActionCheckLeaveBalance   = "check_leave_balance"
	ActionApproveLeave        = "approve_leave"
	ActionRejectLeave         = "reject_leave"
	ActionClockIn             = "clock_in"
	ActionClockOut            = "clock_out"
	ActionSubmitTimesheet     = "submit_timesheet"
	ActionViewTimesheets      = "view_timesheets"
	ActionCreateTask          = "create_task"
	ActionViewMyTasks         = "view_my_tasks"
	ActionViewTeamTasks       = "view_team_tasks"
	ActionUpdateTaskStatus    = "update_task_status"
	ActionRequestValidation   = "request_validation"
	ActionApproveStage        = "approve_stage"
	ActionRejectStage         = "reject_stage"
	ActionViewValidationQueue = "view_validation_queue"
	ActionViewTaskHistory     = "view_task_history"
	ActionCreateDepartment    = "create_department"
	ActionCreateTeam          = "create_team"
	ActionAddEmployee         = "add_employee"
	ActionPostAnnouncement    = "post_announcement"
	ActionViewAnnouncements   = "view_announcements"
	ActionViewNotifications   = "view_notifications"
	ActionScheduleMeeting     = "schedule_meeting"
	ActionViewDashboard       = "view_dashboard"
)

// Executor categories. The engine dispatches on these.
const (
	CategoryInsert   = "insert"
	CategoryUpdate   = "update"
	CategoryRead     = "read"
	CategoryWorkflow = "workflow"
)

// ActionSpec describes one action for the classifier prompt, the
// required-field gate and the executor dispatch.
type ActionSpec struct {
	Name        string
	Description string
	Category    string
	// Resource is the table the action targets; the sanitizer filters
	// parameters against its column schema.
	Resource string
	// Required lists field names that must be present and non-empty
	// before the action executes. Missing ones are reported together.
	Required []string
}

var registry = map[string]ActionSpec{
	ActionApplyLeave:          {Name: ActionApplyLeave, Description: "request time off between two dates", Category: CategoryInsert, Resource: "leaves", Required: []string{"from_date", "to_date"}},
	ActionCheckLeaveBalance:   {Name: ActionCheckLeaveBalance, Description: "show remaining leave balance", Category: CategoryRead, Resource: "profiles"},
	ActionApproveLeave:        {Name: ActionApproveLeave, Description: "approve a pending leave request", Category: CategoryUpdate, Resource: "leaves", Required: []string{"employee"}},
	ActionRejectLeave:         {Name: ActionRejectLeave, Description: "reject a pending leave request", Category: CategoryUpdate, Resource: "leaves", Required: []string{"employee"}},
	ActionClockIn:             {Name: ActionClockIn, Description: "start the working day", Category: CategoryInsert, Resource: "attendance"},
	ActionClockOut:            {Name: ActionClockOut, Description: "end the working day and record hours", Category: CategoryUpdate, Resource: "attendance"},
	ActionSubmitTimesheet:     {Name: ActionSubmitTimesheet, Description: "log hours worked for a day", Category: CategoryInsert, Resource: "timesheets", Required: []string{"hours"}},
	ActionViewTimesheets:      {Name: ActionViewTimesheets, Description: "list recent timesheet entries", Category: CategoryRead, Resource: "timesheets"},
	ActionCreateTask:          {Name: ActionCreateTask, Description: "create and assign a new task", Category: CategoryInsert, Resource: "tasks", Required: []string{"title", "assigned_to"}},
	ActionViewMyTasks:         {Name: ActionViewMyTasks, Description: "list tasks assigned to me", Category: CategoryRead, Resource: "tasks"},
	ActionViewTeamTasks:       {Name: ActionViewTeamTasks, Description: "list tasks across the team", Category: CategoryRead, Resource: "tasks"},
	ActionUpdateTaskStatus:    {Name: ActionUpdateTaskStatus, Description: "change a task's status", Category: CategoryUpdate, Resource: "tasks", Required: []string{"title", "status"}},
	ActionRequestValidation:   {Name: ActionRequestValidation, Description: "submit the current lifecycle stage for review", Category: CategoryWorkflow, Resource: "tasks", Required: []string{"title"}},
	ActionApproveStage:        {Name: ActionApproveStage, Description: "approve a stage under review, advancing the task", Category: CategoryWorkflow, Resource: "tasks", Required: []string{"title"}},
	ActionRejectStage:         {Name: ActionRejectStage, Description: "reject a stage under review, sending it back", Category: CategoryWorkflow, Resource: "tasks", Required: []string{"title", "reason"}},
	ActionViewValidationQueue: {Name: ActionViewValidationQueue, Description: "list tasks waiting for validation", Category: CategoryRead, Resource: "tasks"},
	ActionViewTaskHistory:     {Name: ActionViewTaskHistory, Description: "show the audit history of a task", Category: CategoryRead, Resource: "tasks", Required: []string{"title"}},
	ActionCreateDepartment:    {Name: ActionCreateDepartment, Description: "create a new department", Category: CategoryInsert, Resource: "departments", Required: []string{"department_name"}},
	ActionCreateTeam:          {Name: ActionCreateTeam, Description: "create a new team", Category: CategoryInsert, Resource: "teams", Required: []string{"team_name"}},
	ActionAddEmployee:         {Name: ActionAddEmployee, Description: "onboard a new employee", Category: CategoryInsert, Resource: "profiles", Required: []string{"full_name", "email"}},
	ActionPostAnnouncement:    {Name: ActionPostAnnouncement, Description: "publish an announcement to everyone", Category: CategoryInsert, Resource: "announcements", Required: []string{"message"}},
	ActionViewAnnouncements:   {Name: ActionViewAnnouncements, Description: "list recent announcements", Category: CategoryRead, Resource: "announcements"},
	ActionViewNotifications:   {Name: ActionViewNotifications, Description: "list my notifications", Category: CategoryRead, Resource: "notifications"},
	ActionScheduleMeeting:     {Name: ActionScheduleMeeting, Description: "schedule a meeting with attendees", Category: CategoryInsert, Resource: "announcements", Required: []string{"title", "date", "time"}},
	ActionViewDashboard:       {Name: ActionViewDashboard, Description: "show org-wide task and leave statistics", Category: CategoryRead, Resource: "tasks"},
}

func Spec(action string) (ActionSpec, bool) {
	s, ok := registry[action]
	return s, ok
}

func IsKnownAction(action string) bool {
	_, ok := registry[action]
	return ok
}

// MissingFields reports which required fields are absent or empty, in
// registry order so error messages are deterministic.
func MissingFields(action string, fields map[string]string) []string {
	spec, ok := registry[action]
	if !ok {
		return nil
	}
	var missing []string
	for _, f := range spec.Required {
		if fields[f] == "" {
			missing = append(missing, f)
		}
	}
	return missing
}

// AllSpecs returns every action spec sorted by name, used to build the
// classifier prompt.
func AllSpecs() []ActionSpec {
	res := make([]ActionSpec, 0, len(registry))
	for _, s := range registry {
		res = append(res, s)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Name < res[j].Name })
	return res
}
