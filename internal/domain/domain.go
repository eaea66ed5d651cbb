package domain

type Profile struct {
	ID                   string  `json:"id"`
	FullName             string  `json:"full_name"`
	Email                string  `json:"email"`
	Role                 string  `json:"role"`
	TeamID               *string `json:"team_id,omitempty"`
	MonthlyLeaveQuota    int     `json:"monthly_leave_quota"`
	LeavesTakenThisMonth int     `json:"leaves_taken_this_month"`
	LeavesRemaining      int     `json:"leaves_remaining"`
	Location             string  `json:"location,omitempty"`
	Phone                string  `json:"phone,omitempty"`
	CreatedAt            string  `json:"created_at" format:"date-time"`
}

type Team struct {
	ID        string `json:"id"`
	TeamName  string `json:"team_name"`
	ManagerID string `json:"manager_id,omitempty"`
}

type Department struct {
	ID             string `json:"id"`
	DepartmentName string `json:"department_name"`
}

type Task struct {
	ID                 string  `json:"id"`
	Title              string  `json:"title"`
	Description        string  `json:"description,omitempty"`
	Status             string  `json:"status" enum:"pending,in_progress,completed,closed"`
	Priority           string  `json:"priority,omitempty"`
	AssignedTo         *string `json:"assigned_to,omitempty"`
	AssignedBy         *string `json:"assigned_by,omitempty"`
	TeamID             *string `json:"team_id,omitempty"`
	StartDate          string  `json:"start_date,omitempty" format:"date"`
	DueDate            string  `json:"due_date,omitempty" format:"date"`
	LifecycleState     string  `json:"lifecycle_state" enum:"requirement_refiner,design_guidance,build_guidance,acceptance_criteria,deployment"`
	SubState           string  `json:"sub_state" enum:"in_progress,pending_validation,approved,rejected"`
	ValidatedBy        *string `json:"validated_by,omitempty"`
	ValidatedAt        *string `json:"validated_at,omitempty" format:"date-time"`
	ValidationComment  *string `json:"validation_comment,omitempty"`
	CreatedAt          string  `json:"created_at" format:"date-time"`
	LifecycleUpdatedAt string  `json:"lifecycle_state_updated_at,omitempty" format:"date-time"`
}

type Leave struct {
	ID         string  `json:"id"`
	EmployeeID string  `json:"employee_id"`
	TeamID     *string `json:"team_id,omitempty"`
	FromDate   string  `json:"from_date" format:"date"`
	ToDate     string  `json:"to_date" format:"date"`
	Reason     string  `json:"reason,omitempty"`
	Status     string  `json:"status" enum:"pending,approved,rejected"`
}

type Attendance struct {
	ID          string  `json:"id"`
	EmployeeID  string  `json:"employee_id"`
	TeamID      *string `json:"team_id,omitempty"`
	Date        string  `json:"date" format:"date"`
	ClockIn     string  `json:"clock_in,omitempty"`
	ClockOut    *string `json:"clock_out,omitempty"`
	TotalHours  float64 `json:"total_hours,omitempty"`
	CurrentTask string  `json:"current_task,omitempty"`
}

type Announcement struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Message   string `json:"message"`
	EventDate string `json:"event_date,omitempty" format:"date"`
	EventTime string `json:"event_time,omitempty"`
	EventFor  string `json:"event_for,omitempty"`
	Status    string `json:"status,omitempty"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type Timesheet struct {
	ID         string  `json:"id"`
	EmployeeID string  `json:"employee_id"`
	Date       string  `json:"date" format:"date"`
	Hours      float64 `json:"hours"`
}

type Notification struct {
	ID         string `json:"id"`
	ReceiverID string `json:"receiver_id"`
	Type       string `json:"type"`
	Message    string `json:"message"`
	DataJSON   string `json:"data_json,omitempty"`
	IsRead     bool   `json:"is_read"`
	CreatedAt  string `json:"created_at" format:"date-time"`
}

// HistoryEntry is one immutable row of the task_history audit log.
type HistoryEntry struct {
	ID            int64   `json:"id"`
	TaskID        string  `json:"task_id"`
	Action        string  `json:"action"`
	FromLifecycle string  `json:"from_lifecycle_state,omitempty"`
	ToLifecycle   string  `json:"to_lifecycle_state,omitempty"`
	FromSubState  string  `json:"from_sub_state,omitempty"`
	ToSubState    string  `json:"to_sub_state,omitempty"`
	ActorID       string  `json:"actor_id"`
	Comment       *string `json:"comment,omitempty"`
	CreatedAt     string  `json:"created_at" format:"date-time"`
}

// Reminder is the persisted cooldown record for the task monitor,
// keyed by (task_id, reminder_type).
type Reminder struct {
	TaskID       string `json:"task_id"`
	ReminderType string `json:"reminder_type"`
	LastSentAt   string `json:"last_sent_at" format:"date-time"`
}
