// Package monitor is the deterministic reminder engine. No model calls:
// every reminder must be reproducible from task state, the clock and
// the persisted cooldown table.
package monitor

import (
	"context"
	"fmt"
	"log"
	"time"

	"talentops/internal/config"
	"talentops/internal/domain"
	"talentops/internal/notify"
	"talentops/internal/repo"
)

// Reminder types, also the cooldown keys in the reminders table.
const (
	ReminderNotStarted      = "not_started"
	ReminderStagnation      = "stagnation"
	ReminderDeadlineWarning = "deadline_warning"
	ReminderDeadlineUrgent  = "deadline_urgent"
	ReminderOverdue         = "overdue"
)

type Monitor struct {
	Repo   repo.Repo
	Notify notify.Sink
	Config config.MonitorConfig
	Log    *log.Logger
	Now    func() time.Time
}

func New(r repo.Repo, sink notify.Sink, cfg config.MonitorConfig, logger *log.Logger) *Monitor {
	return &Monitor{Repo: r, Notify: sink, Config: cfg, Log: logger, Now: time.Now}
}

func (m *Monitor) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now()
}

func (m *Monitor) logf(format string, args ...any) {
	if m.Log != nil {
		m.Log.Printf(format, args...)
	}
}

// RunOnce inspects every open task and emits at most one reminder per
// task. A failure on one task is logged and the batch continues.
func (m *Monitor) RunOnce(ctx context.Context) (sent int, err error) {
	tasks, err := m.Repo.ActiveTasks(ctx)
	if err != nil {
		return 0, fmt.Errorf("monitor: list tasks: %w", err)
	}
	for _, t := range tasks {
		fired, err := m.checkTask(ctx, t)
		if err != nil {
			m.logf("monitor: task %s: %v", t.ID, err)
			continue
		}
		if fired {
			sent++
		}
	}
	return sent, nil
}

// checkTask evaluates the conditions in priority order — completion
// skip, not-started, stagnation, then deadline bands — and fires the
// first one whose threshold and cooldown both pass. A condition still
// inside its cooldown window counts as unsatisfied: the walk continues
// so a lower-priority reminder with an elapsed cooldown can still go
// out, instead of the blocked condition silencing the whole cycle.
func (m *Monitor) checkTask(ctx context.Context, t domain.Task) (bool, error) {
	if isComplete(t) {
		return false, nil
	}
	if t.AssignedTo == nil {
		return false, nil
	}
	now := m.now()

	if t.LifecycleState == domain.StageRequirementRefiner {
		created, err := time.Parse(time.RFC3339, t.CreatedAt)
		if err == nil && now.Sub(created) >= m.threshold(m.Config.NotStartedAfterHours) {
			fired, err := m.fire(ctx, t, ReminderNotStarted, m.cooldown(m.Config.Cooldowns.NotStartedHours),
				fmt.Sprintf("Task %q hasn't moved past requirement refinement since it was created. Could you take a look?", t.Title),
				"low", false)
			if fired || err != nil {
				return fired, err
			}
		}
	}

	if !domain.IsFinalStage(t.LifecycleState) {
		changed, err := time.Parse(time.RFC3339, t.LifecycleUpdatedAt)
		if err == nil && now.Sub(changed) >= m.threshold(m.Config.StagnationHours) {
			fired, err := m.fire(ctx, t, ReminderStagnation, m.cooldown(m.Config.Cooldowns.StagnationHours),
				fmt.Sprintf("Task %q has been stuck in the same stage for a while. Need any help moving it forward?", t.Title),
				"medium", true)
			if fired || err != nil {
				return fired, err
			}
		}
	}

	if t.DueDate != "" {
		due, err := time.ParseInLocation("2006-01-02", t.DueDate, now.Location())
		if err == nil {
			// Due dates mean end of that day.
			due = due.Add(24 * time.Hour)
			remaining := due.Sub(now)
			switch {
			case remaining < 0:
				return m.fire(ctx, t, ReminderOverdue, m.cooldown(m.Config.Cooldowns.OverdueHours),
					fmt.Sprintf("Task %q is overdue (%s).", t.Title, lapse(-remaining)), "high", false)
			case remaining <= m.threshold(m.Config.DeadlineUrgentHours):
				return m.fire(ctx, t, ReminderDeadlineUrgent, m.cooldown(m.Config.Cooldowns.DeadlineUrgentHours),
					fmt.Sprintf("Task %q is due within %d hours.", t.Title, int(remaining.Hours())+1), "high", false)
			case remaining <= m.threshold(m.Config.DeadlineWarningHours):
				return m.fire(ctx, t, ReminderDeadlineWarning, m.cooldown(m.Config.Cooldowns.DeadlineWarningHours),
					fmt.Sprintf("Task %q is due on %s.", t.Title, t.DueDate), "medium", false)
			}
		}
	}
	return false, nil
}

// fire emits a reminder unless one of the same type went out within the
// cooldown window, then records the send in the same pass.
func (m *Monitor) fire(ctx context.Context, t domain.Task, typ string, cooldown time.Duration, message, urgency string, offerHelp bool) (bool, error) {
	last, err := m.Repo.LastReminderAt(ctx, t.ID, typ)
	if err != nil {
		return false, fmt.Errorf("cooldown lookup: %w", err)
	}
	now := m.now()
	if !last.IsZero() && now.Sub(last) < cooldown {
		return false, nil
	}
	if err := m.Notify.Send(ctx, *t.AssignedTo, "task_reminder_"+typ, message, notify.Payload{
		TaskID:    t.ID,
		Urgency:   urgency,
		OfferHelp: offerHelp,
	}); err != nil {
		return false, fmt.Errorf("send: %w", err)
	}
	if err := m.Repo.RecordReminder(ctx, t.ID, typ, now.UTC().Format(time.RFC3339)); err != nil {
		return false, fmt.Errorf("record: %w", err)
	}
	return true, nil
}

func isComplete(t domain.Task) bool {
	if t.Status == "completed" || t.Status == "closed" || t.Status == "done" {
		return true
	}
	return domain.IsFinalStage(t.LifecycleState) && t.SubState == domain.SubApproved
}

func (m *Monitor) threshold(hours int) time.Duration {
	return time.Duration(hours) * time.Hour
}

func (m *Monitor) cooldown(hours int) time.Duration {
	return time.Duration(hours) * time.Hour
}

func lapse(d time.Duration) string {
	days := int(d.Hours() / 24)
	switch {
	case days <= 0:
		return "due earlier today"
	case days == 1:
		return "due yesterday"
	default:
		return fmt.Sprintf("due %d days ago", days)
	}
}
