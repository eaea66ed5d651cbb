package history

import (
	"context"
	"database/sql"
	"time"
)

// Writer appends immutable task_history rows. Every lifecycle mutation
// records its row inside the same transaction as the task update so the
// audit log can never drift from the tasks table.
type Writer struct {
	DB  *sql.DB
	Now func() time.Time
}

// Entry describes one lifecycle action.
type Entry struct {
	TaskID        string
	Action        string
	FromLifecycle string
	ToLifecycle   string
	FromSubState  string
	ToSubState    string
	ActorID       string
	Comment       string
}

func (w Writer) Append(ctx context.Context, tx *sql.Tx, e Entry) error {
	now := w.Now
	if now == nil {
		now = time.Now
	}
	ts := now().UTC().Format(time.RFC3339)
	_, err := tx.ExecContext(ctx, `INSERT INTO task_history(task_id,action,from_lifecycle_state,to_lifecycle_state,from_sub_state,to_sub_state,actor_id,comment,created_at) VALUES (?,?,?,?,?,?,?,?,?)`,
		e.TaskID, e.Action, nullable(e.FromLifecycle), nullable(e.ToLifecycle), nullable(e.FromSubState), nullable(e.ToSubState), e.ActorID, nullable(e.Comment), ts)
	return err
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
