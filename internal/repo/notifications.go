package repo

import (
	"context"
	"database/sql"
	"time"

	"talentops/internal/domain"
)

func (r Repo) InsertNotification(ctx context.Context, n domain.Notification) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO notifications(id,receiver_id,type,message,data_json,is_read,created_at) VALUES (?,?,?,?,?,?,?)`,
		n.ID, n.ReceiverID, n.Type, n.Message, nullable(n.DataJSON), boolToInt(n.IsRead), n.CreatedAt)
	return err
}

func (r Repo) ListNotifications(ctx context.Context, receiverID string, unreadOnly bool, limit int) ([]domain.Notification, error) {
	query := `SELECT id,receiver_id,type,message,COALESCE(data_json,''),is_read,created_at FROM notifications WHERE receiver_id=?`
	args := []any{receiverID}
	if unreadOnly {
		query += ` AND is_read=0`
	}
	query += ` ORDER BY created_at DESC`
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Notification
	for rows.Next() {
		var n domain.Notification
		var isRead int
		if err := rows.Scan(&n.ID, &n.ReceiverID, &n.Type, &n.Message, &n.DataJSON, &isRead, &n.CreatedAt); err != nil {
			return nil, err
		}
		n.IsRead = isRead != 0
		res = append(res, n)
	}
	return res, rows.Err()
}

func (r Repo) MarkNotificationsRead(ctx context.Context, receiverID string) error {
	_, err := r.DB.ExecContext(ctx, `UPDATE notifications SET is_read=1 WHERE receiver_id=? AND is_read=0`, receiverID)
	return err
}

// LastReminderAt returns the last time a reminder of the given type was
// sent for the task, or the zero time if none was ever recorded.
func (r Repo) LastReminderAt(ctx context.Context, taskID, reminderType string) (time.Time, error) {
	var raw string
	err := r.DB.QueryRowContext(ctx, `SELECT last_sent_at FROM reminders WHERE task_id=? AND reminder_type=?`, taskID, reminderType).Scan(&raw)
	if err == sql.ErrNoRows {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	return time.Parse(time.RFC3339, raw)
}

func (r Repo) RecordReminder(ctx context.Context, taskID, reminderType, sentAt string) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO reminders(task_id,reminder_type,last_sent_at) VALUES (?,?,?)
ON CONFLICT(task_id,reminder_type) DO UPDATE SET last_sent_at=excluded.last_sent_at`, taskID, reminderType, sentAt)
	return err
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
