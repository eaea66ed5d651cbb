package repo

import (
	"context"
	"database/sql"
	"strings"

	"talentops/internal/domain"
)

const taskCols = `id,title,COALESCE(description,'') AS description,status,COALESCE(priority,'') AS priority,assigned_to,assigned_by,team_id,COALESCE(start_date,'') AS start_date,COALESCE(due_date,'') AS due_date,lifecycle_state,sub_state,validated_by,validated_at,validation_comment,created_at,lifecycle_state_updated_at`

func scanTask(scan func(...any) error) (domain.Task, error) {
	var t domain.Task
	var assignedTo, assignedBy, teamID, validatedBy, validatedAt, validationComment sql.NullString
	err := scan(&t.ID, &t.Title, &t.Description, &t.Status, &t.Priority, &assignedTo, &assignedBy, &teamID,
		&t.StartDate, &t.DueDate, &t.LifecycleState, &t.SubState, &validatedBy, &validatedAt, &validationComment,
		&t.CreatedAt, &t.LifecycleUpdatedAt)
	if err == sql.ErrNoRows {
		return t, ErrNotFound
	}
	if err != nil {
		return t, err
	}
	if assignedTo.Valid {
		t.AssignedTo = &assignedTo.String
	}
	if assignedBy.Valid {
		t.AssignedBy = &assignedBy.String
	}
	if teamID.Valid {
		t.TeamID = &teamID.String
	}
	if validatedBy.Valid {
		t.ValidatedBy = &validatedBy.String
	}
	if validatedAt.Valid {
		t.ValidatedAt = &validatedAt.String
	}
	if validationComment.Valid {
		t.ValidationComment = &validationComment.String
	}
	return t, nil
}

func (r Repo) InsertTask(ctx context.Context, tx *sql.Tx, t domain.Task) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO tasks(id,title,description,status,priority,assigned_to,assigned_by,team_id,start_date,due_date,lifecycle_state,sub_state,created_at,lifecycle_state_updated_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		t.ID, t.Title, nullable(t.Description), t.Status, nullable(t.Priority),
		nullableStringPtr(t.AssignedTo), nullableStringPtr(t.AssignedBy), nullableStringPtr(t.TeamID),
		nullable(t.StartDate), nullable(t.DueDate), t.LifecycleState, t.SubState, t.CreatedAt, t.LifecycleUpdatedAt)
	return err
}

func (r Repo) GetTask(ctx context.Context, id string) (domain.Task, error) {
	return scanTask(r.DB.QueryRowContext(ctx, `SELECT `+taskCols+` FROM tasks WHERE id=?`, id).Scan)
}

// FindTaskByTitle matches open tasks case-insensitively on title, exact
// match first, then unique partial match.
func (r Repo) FindTaskByTitle(ctx context.Context, title string) (domain.Task, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return domain.Task{}, ErrNotFound
	}
	t, err := scanTask(r.DB.QueryRowContext(ctx, `SELECT `+taskCols+` FROM tasks WHERE lower(title)=lower(?) AND status != 'closed' ORDER BY created_at DESC LIMIT 1`, title).Scan)
	if err == nil {
		return t, nil
	}
	if err != ErrNotFound {
		return domain.Task{}, err
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT `+taskCols+` FROM tasks WHERE lower(title) LIKE ? AND status != 'closed' ORDER BY created_at DESC`, "%"+strings.ToLower(title)+"%")
	if err != nil {
		return domain.Task{}, err
	}
	defer rows.Close()
	var matches []domain.Task
	for rows.Next() {
		m, err := scanTask(rows.Scan)
		if err != nil {
			return domain.Task{}, err
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return domain.Task{}, err
	}
	switch len(matches) {
	case 0:
		return domain.Task{}, ErrNotFound
	case 1:
		return matches[0], nil
	}
	titles := make([]string, len(matches))
	for i, m := range matches {
		titles[i] = m.Title
	}
	return domain.Task{}, &ErrAmbiguous{Ref: title, Candidates: titles}
}

type TaskFilters struct {
	Status         string
	AssignedTo     string
	TeamID         string
	SubState       string
	LifecycleState string
	Limit          int
}

func (r Repo) ListTasks(ctx context.Context, f TaskFilters) ([]domain.Task, error) {
	var clauses []string
	var args []any
	if f.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, f.Status)
	}
	if f.AssignedTo != "" {
		clauses = append(clauses, "assigned_to=?")
		args = append(args, f.AssignedTo)
	}
	if f.TeamID != "" {
		clauses = append(clauses, "team_id=?")
		args = append(args, f.TeamID)
	}
	if f.SubState != "" {
		clauses = append(clauses, "sub_state=?")
		args = append(args, f.SubState)
	}
	if f.LifecycleState != "" {
		clauses = append(clauses, "lifecycle_state=?")
		args = append(args, f.LifecycleState)
	}
	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}
	query := `SELECT ` + taskCols + ` FROM tasks ` + where + ` ORDER BY created_at DESC, id DESC`
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Task
	for rows.Next() {
		t, err := scanTask(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

// ActiveTasks returns tasks the monitor inspects: anything not
// completed or closed.
func (r Repo) ActiveTasks(ctx context.Context) ([]domain.Task, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+taskCols+` FROM tasks WHERE status NOT IN ('completed','closed') ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Task
	for rows.Next() {
		t, err := scanTask(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

func (r Repo) UpdateTaskStatus(ctx context.Context, tx *sql.Tx, id, status string) error {
	res, err := tx.ExecContext(ctx, `UPDATE tasks SET status=? WHERE id=?`, status, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateTaskLifecycle writes both lifecycle columns and stamps
// lifecycle_state_updated_at.
func (r Repo) UpdateTaskLifecycle(ctx context.Context, tx *sql.Tx, id, stage, sub, updatedAt string) error {
	res, err := tx.ExecContext(ctx, `UPDATE tasks SET lifecycle_state=?, sub_state=?, lifecycle_state_updated_at=? WHERE id=?`, stage, sub, updatedAt, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// SettleValidation resolves a pending_validation sub-state. The WHERE
// clause on sub_state makes concurrent double reviews lose cleanly:
// zero rows affected means someone else settled it first.
func (r Repo) SettleValidation(ctx context.Context, tx *sql.Tx, id, stage, sub, validatorID, validatedAt, comment string) (bool, error) {
	res, err := tx.ExecContext(ctx, `UPDATE tasks SET lifecycle_state=?, sub_state=?, validated_by=?, validated_at=?, validation_comment=?, lifecycle_state_updated_at=? WHERE id=? AND sub_state='pending_validation'`,
		stage, sub, validatorID, validatedAt, nullable(comment), validatedAt, id)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (r Repo) CountTasksByStatus(ctx context.Context) (map[string]int, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT status, count(*) FROM tasks GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := map[string]int{}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		res[status] = count
	}
	return res, rows.Err()
}

func (r Repo) ListTaskHistory(ctx context.Context, taskID string) ([]domain.HistoryEntry, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,task_id,action,COALESCE(from_lifecycle_state,''),COALESCE(to_lifecycle_state,''),COALESCE(from_sub_state,''),COALESCE(to_sub_state,''),actor_id,comment,created_at FROM task_history WHERE task_id=? ORDER BY id ASC`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.HistoryEntry
	for rows.Next() {
		var h domain.HistoryEntry
		var comment sql.NullString
		if err := rows.Scan(&h.ID, &h.TaskID, &h.Action, &h.FromLifecycle, &h.ToLifecycle, &h.FromSubState, &h.ToSubState, &h.ActorID, &comment, &h.CreatedAt); err != nil {
			return nil, err
		}
		if comment.Valid {
			h.Comment = &comment.String
		}
		res = append(res, h)
	}
	return res, rows.Err()
}
