package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"talentops/internal/domain"
	"talentops/internal/history"
	"talentops/internal/notify"
	"talentops/internal/rbac"
)

func (e Engine) executeWorkflow(ctx context.Context, actor actorContext, action string, params map[string]string) Outcome {
	switch action {
	case rbac.ActionRequestValidation:
		return e.requestValidation(ctx, actor, params)
	case rbac.ActionApproveStage:
		return e.approveStage(ctx, actor, params)
	case rbac.ActionRejectStage:
		return e.rejectStage(ctx, actor, params)
	}
	return Outcome{Kind: OutcomeError, Message: "Unknown operation."}
}

// requestValidation moves the current stage from in_progress to
// pending_validation. Requesting twice is a state error, not a silent
// re-queue.
func (e Engine) requestValidation(ctx context.Context, actor actorContext, params map[string]string) Outcome {
	task, bad := e.lookupTask(ctx, rbac.ActionRequestValidation, params["title"])
	if bad != nil {
		return *bad
	}
	if task.SubState != domain.SubInProgress {
		return Outcome{Kind: OutcomeInvalidState, Action: rbac.ActionRequestValidation,
			Message: fmt.Sprintf("Task %q is %s in the %s stage; only in-progress work can be sent for validation.", task.Title, subLabel(task.SubState), stageLabel(task.LifecycleState))}
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return e.storageFailure("request validation", err)
	}
	defer tx.Rollback()
	now := e.now().UTC().Format(time.RFC3339)
	if err := e.Repo.UpdateTaskLifecycle(ctx, tx, task.ID, task.LifecycleState, domain.SubPendingValidation, now); err != nil {
		return e.storageFailure("request validation: update", err)
	}
	if err := e.History.Append(ctx, tx, history.Entry{
		TaskID:        task.ID,
		Action:        "validation_requested",
		FromLifecycle: task.LifecycleState,
		ToLifecycle:   task.LifecycleState,
		FromSubState:  task.SubState,
		ToSubState:    domain.SubPendingValidation,
		ActorID:       actor.ID,
	}); err != nil {
		return e.storageFailure("request validation: history", err)
	}
	if err := tx.Commit(); err != nil {
		return e.storageFailure("request validation: commit", err)
	}
	return Outcome{Kind: OutcomeOK, Action: rbac.ActionRequestValidation,
		Message: fmt.Sprintf("Task %q submitted for validation of the %s stage.", task.Title, stageLabel(task.LifecycleState))}
}

// approveStage advances the lifecycle one stage and resets the
// sub-state for the next round; approving the final stage completes
// the task. The conditional update on pending_validation makes a
// concurrent double approval lose cleanly.
func (e Engine) approveStage(ctx context.Context, actor actorContext, params map[string]string) Outcome {
	if actor.Role != domain.RoleManager && actor.Role != domain.RoleExecutive {
		return Outcome{Kind: OutcomeDenied, Action: rbac.ActionApproveStage, Message: deniedMessage(rbac.ActionApproveStage)}
	}
	task, bad := e.lookupTask(ctx, rbac.ActionApproveStage, params["title"])
	if bad != nil {
		return *bad
	}
	if task.SubState != domain.SubPendingValidation {
		return Outcome{Kind: OutcomeInvalidState, Action: rbac.ActionApproveStage,
			Message: fmt.Sprintf("Task %q has nothing pending validation; its %s stage is %s.", task.Title, stageLabel(task.LifecycleState), subLabel(task.SubState))}
	}

	final := domain.IsFinalStage(task.LifecycleState)
	nextStage := task.LifecycleState
	nextSub := domain.SubInProgress
	if final {
		nextSub = domain.SubApproved
	} else {
		var err error
		nextStage, err = domain.NextStage(task.LifecycleState)
		if err != nil {
			return e.storageFailure("approve stage: next", err)
		}
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return e.storageFailure("approve stage", err)
	}
	defer tx.Rollback()
	now := e.now().UTC().Format(time.RFC3339)
	settled, err := e.Repo.SettleValidation(ctx, tx, task.ID, nextStage, nextSub, actor.ID, now, params["comment"])
	if err != nil {
		return e.storageFailure("approve stage: settle", err)
	}
	if !settled {
		return Outcome{Kind: OutcomeInvalidState, Action: rbac.ActionApproveStage,
			Message: "That validation was already decided by someone else."}
	}
	if final {
		if err := e.Repo.UpdateTaskStatus(ctx, tx, task.ID, "completed"); err != nil {
			return e.storageFailure("approve stage: complete", err)
		}
	}
	if err := e.History.Append(ctx, tx, history.Entry{
		TaskID:        task.ID,
		Action:        "stage_approved",
		FromLifecycle: task.LifecycleState,
		ToLifecycle:   nextStage,
		FromSubState:  task.SubState,
		ToSubState:    nextSub,
		ActorID:       actor.ID,
		Comment:       params["comment"],
	}); err != nil {
		return e.storageFailure("approve stage: history", err)
	}
	if err := tx.Commit(); err != nil {
		return e.storageFailure("approve stage: commit", err)
	}

	if task.AssignedTo != nil {
		msg := fmt.Sprintf("Task %q advanced to the %s stage (%d%% complete).", task.Title, stageLabel(nextStage), domain.Progress(nextStage, nextSub))
		if final {
			msg = fmt.Sprintf("Task %q passed deployment validation and is complete.", task.Title)
		}
		if err := e.Notify.Send(ctx, *task.AssignedTo, "stage_approved", msg, notify.Payload{TaskID: task.ID}); err != nil {
			e.logf("engine: notify approval: %v", err)
		}
	}
	if final {
		return Outcome{Kind: OutcomeOK, Action: rbac.ActionApproveStage,
			Message: fmt.Sprintf("Task %q approved at deployment and marked complete (100%%).", task.Title)}
	}
	return Outcome{Kind: OutcomeOK, Action: rbac.ActionApproveStage,
		Message: fmt.Sprintf("Task %q approved; it moves to the %s stage (%d%%).", task.Title, stageLabel(nextStage), domain.Progress(nextStage, nextSub))}
}

// rejectStage keeps the lifecycle where it is and sends the sub-state
// back to in_progress with a mandatory reason.
func (e Engine) rejectStage(ctx context.Context, actor actorContext, params map[string]string) Outcome {
	if actor.Role != domain.RoleManager && actor.Role != domain.RoleExecutive {
		return Outcome{Kind: OutcomeDenied, Action: rbac.ActionRejectStage, Message: deniedMessage(rbac.ActionRejectStage)}
	}
	reason := strings.TrimSpace(params["reason"])
	if reason == "" {
		return Outcome{Kind: OutcomeMissingFields, Action: rbac.ActionRejectStage, Missing: []string{"reason"},
			Message: "A rejection needs a reason the assignee can act on."}
	}
	task, bad := e.lookupTask(ctx, rbac.ActionRejectStage, params["title"])
	if bad != nil {
		return *bad
	}
	if task.SubState != domain.SubPendingValidation {
		return Outcome{Kind: OutcomeInvalidState, Action: rbac.ActionRejectStage,
			Message: fmt.Sprintf("Task %q has nothing pending validation; its %s stage is %s.", task.Title, stageLabel(task.LifecycleState), subLabel(task.SubState))}
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return e.storageFailure("reject stage", err)
	}
	defer tx.Rollback()
	now := e.now().UTC().Format(time.RFC3339)
	settled, err := e.Repo.SettleValidation(ctx, tx, task.ID, task.LifecycleState, domain.SubInProgress, actor.ID, now, reason)
	if err != nil {
		return e.storageFailure("reject stage: settle", err)
	}
	if !settled {
		return Outcome{Kind: OutcomeInvalidState, Action: rbac.ActionRejectStage,
			Message: "That validation was already decided by someone else."}
	}
	if err := e.History.Append(ctx, tx, history.Entry{
		TaskID:        task.ID,
		Action:        "stage_rejected",
		FromLifecycle: task.LifecycleState,
		ToLifecycle:   task.LifecycleState,
		FromSubState:  task.SubState,
		ToSubState:    domain.SubInProgress,
		ActorID:       actor.ID,
		Comment:       reason,
	}); err != nil {
		return e.storageFailure("reject stage: history", err)
	}
	if err := tx.Commit(); err != nil {
		return e.storageFailure("reject stage: commit", err)
	}
	if task.AssignedTo != nil {
		if err := e.Notify.Send(ctx, *task.AssignedTo, "stage_rejected",
			fmt.Sprintf("The %s stage of %q was rejected: %s", stageLabel(task.LifecycleState), task.Title, reason),
			notify.Payload{TaskID: task.ID}); err != nil {
			e.logf("engine: notify rejection: %v", err)
		}
	}
	return Outcome{Kind: OutcomeOK, Action: rbac.ActionRejectStage,
		Message: fmt.Sprintf("The %s stage of %q was rejected and sent back to the assignee.", stageLabel(task.LifecycleState), task.Title)}
}

var stageLabels = map[string]string{
	domain.StageRequirementRefiner: "requirement refinement",
	domain.StageDesignGuidance:     "design guidance",
	domain.StageBuildGuidance:      "build guidance",
	domain.StageAcceptanceCriteria: "acceptance criteria",
	domain.StageDeployment:         "deployment",
}

func stageLabel(stage string) string {
	if l, ok := stageLabels[stage]; ok {
		return l
	}
	return stage
}

func subLabel(sub string) string {
	return strings.ReplaceAll(sub, "_", " ")
}
