// Package rbac gates every resolved action on the caller's role.
// Permission sets are closed: each role lists exactly the actions it may
// perform and there is no inheritance between roles.
package rbac

import (
	"fmt"
	"sort"

	"talentops/internal/domain"
)

// ErrDenied carries the role and action for the caller's error message.
type ErrDenied struct {
	Role   string
	Action string
}

func (e *ErrDenied) Error() string {
	return fmt.Sprintf("role %s is not permitted to perform %s", e.Role, e.Action)
}

// rolePermissions is the whole authorization model. A manager cannot do
// executive actions and an executive cannot approve leaves; the sets are
// deliberately disjoint where the workflows differ.
var rolePermissions = map[string]map[string]bool{
	domain.RoleConsultant: setOf(
		ActionApplyLeave,
		ActionCheckLeaveBalance,
		ActionClockIn,
		ActionClockOut,
		ActionSubmitTimesheet,
		ActionViewTimesheets,
		ActionViewMyTasks,
		ActionUpdateTaskStatus,
		ActionRequestValidation,
		ActionViewTaskHistory,
		ActionViewAnnouncements,
		ActionViewNotifications,
	),
	// Team leads see the validation queue but never decide it; stage
	// approval is reserved for manager and executive.
	domain.RoleTeamLead: setOf(
		ActionApplyLeave,
		ActionCheckLeaveBalance,
		ActionClockIn,
		ActionClockOut,
		ActionSubmitTimesheet,
		ActionViewTimesheets,
		ActionCreateTask,
		ActionViewMyTasks,
		ActionViewTeamTasks,
		ActionUpdateTaskStatus,
		ActionRequestValidation,
		ActionViewValidationQueue,
		ActionViewTaskHistory,
		ActionViewAnnouncements,
		ActionViewNotifications,
		ActionScheduleMeeting,
	),
	domain.RoleManager: setOf(
		ActionApplyLeave,
		ActionCheckLeaveBalance,
		ActionApproveLeave,
		ActionRejectLeave,
		ActionClockIn,
		ActionClockOut,
		ActionSubmitTimesheet,
		ActionViewTimesheets,
		ActionCreateTask,
		ActionViewMyTasks,
		ActionViewTeamTasks,
		ActionUpdateTaskStatus,
		ActionRequestValidation,
		ActionApproveStage,
		ActionRejectStage,
		ActionViewValidationQueue,
		ActionViewTaskHistory,
		ActionCreateTeam,
		ActionAddEmployee,
		ActionPostAnnouncement,
		ActionViewAnnouncements,
		ActionViewNotifications,
		ActionScheduleMeeting,
		ActionViewDashboard,
	),
	domain.RoleExecutive: setOf(
		ActionCheckLeaveBalance,
		ActionViewMyTasks,
		ActionViewTeamTasks,
		ActionApproveStage,
		ActionRejectStage,
		ActionViewValidationQueue,
		ActionViewTaskHistory,
		ActionCreateDepartment,
		ActionCreateTeam,
		ActionAddEmployee,
		ActionPostAnnouncement,
		ActionViewAnnouncements,
		ActionViewNotifications,
		ActionScheduleMeeting,
		ActionViewDashboard,
	),
}

// Authorize checks the role against the action. Unknown roles and
// unknown actions are denied, never defaulted.
func Authorize(role, action string) error {
	perms, ok := rolePermissions[role]
	if !ok {
		return &ErrDenied{Role: role, Action: action}
	}
	if !perms[action] {
		return &ErrDenied{Role: role, Action: action}
	}
	return nil
}

// Allowed returns the sorted action list for a role, for the CLI and
// for "what can I do" answers.
func Allowed(role string) []string {
	perms := rolePermissions[role]
	res := make([]string, 0, len(perms))
	for a := range perms {
		res = append(res, a)
	}
	sort.Strings(res)
	return res
}

func setOf(actions ...string) map[string]bool {
	m := make(map[string]bool, len(actions))
	for _, a := range actions {
		m[a] = true
	}
	return m
}
