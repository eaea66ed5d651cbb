package repo

import (
	"context"
	"database/sql"

	"talentops/internal/domain"
)

func (r Repo) InsertLeave(ctx context.Context, tx *sql.Tx, l domain.Leave, createdAt string) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO leaves(id,employee_id,team_id,from_date,to_date,reason,status,created_at) VALUES (?,?,?,?,?,?,?,?)`,
		l.ID, l.EmployeeID, nullableStringPtr(l.TeamID), l.FromDate, l.ToDate, nullable(l.Reason), l.Status, createdAt)
	return err
}

func scanLeave(scan func(...any) error) (domain.Leave, error) {
	var l domain.Leave
	var teamID sql.NullString
	err := scan(&l.ID, &l.EmployeeID, &teamID, &l.FromDate, &l.ToDate, &l.Reason, &l.Status)
	if err == sql.ErrNoRows {
		return l, ErrNotFound
	}
	if teamID.Valid {
		l.TeamID = &teamID.String
	}
	return l, err
}

const leaveCols = `id,employee_id,team_id,from_date,to_date,COALESCE(reason,'') AS reason,status`

func (r Repo) ListLeaves(ctx context.Context, employeeID, status string) ([]domain.Leave, error) {
	query := `SELECT ` + leaveCols + ` FROM leaves`
	var clauses []string
	var args []any
	if employeeID != "" {
		clauses = append(clauses, "employee_id=?")
		args = append(args, employeeID)
	}
	if status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, status)
	}
	for i, c := range clauses {
		if i == 0 {
			query += " WHERE " + c
		} else {
			query += " AND " + c
		}
	}
	query += ` ORDER BY from_date DESC`
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Leave
	for rows.Next() {
		l, err := scanLeave(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, l)
	}
	return res, rows.Err()
}

// LatestPendingLeave returns the employee's most recent pending request.
func (r Repo) LatestPendingLeave(ctx context.Context, tx *sql.Tx, employeeID string) (domain.Leave, error) {
	return scanLeave(tx.QueryRowContext(ctx, `SELECT `+leaveCols+` FROM leaves WHERE employee_id=? AND status='pending' ORDER BY created_at DESC LIMIT 1`, employeeID).Scan)
}

// SettleLeave resolves a pending leave. The status guard makes a second
// concurrent decision a no-op; callers treat zero rows as already settled.
func (r Repo) SettleLeave(ctx context.Context, tx *sql.Tx, id, status string) (bool, error) {
	res, err := tx.ExecContext(ctx, `UPDATE leaves SET status=? WHERE id=? AND status='pending'`, status, id)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (r Repo) InsertAttendance(ctx context.Context, a domain.Attendance, createdAt string) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO attendance(id,employee_id,team_id,date,clock_in,clock_out,total_hours,current_task,created_at) VALUES (?,?,?,?,?,?,?,?,?)`,
		a.ID, a.EmployeeID, nullableStringPtr(a.TeamID), a.Date, nullable(a.ClockIn), nullableStringPtr(a.ClockOut), a.TotalHours, nullable(a.CurrentTask), createdAt)
	return err
}

// OpenAttendance returns the employee's clocked-in row for the given
// date that has no clock_out yet.
func (r Repo) OpenAttendance(ctx context.Context, employeeID, date string) (domain.Attendance, error) {
	var a domain.Attendance
	var teamID, clockOut sql.NullString
	var totalHours sql.NullFloat64
	err := r.DB.QueryRowContext(ctx, `SELECT id,employee_id,team_id,date,COALESCE(clock_in,''),clock_out,total_hours,COALESCE(current_task,'') FROM attendance WHERE employee_id=? AND date=? AND clock_out IS NULL ORDER BY created_at DESC LIMIT 1`, employeeID, date).
		Scan(&a.ID, &a.EmployeeID, &teamID, &a.Date, &a.ClockIn, &clockOut, &totalHours, &a.CurrentTask)
	if err == sql.ErrNoRows {
		return a, ErrNotFound
	}
	if err != nil {
		return a, err
	}
	if teamID.Valid {
		a.TeamID = &teamID.String
	}
	if clockOut.Valid {
		a.ClockOut = &clockOut.String
	}
	if totalHours.Valid {
		a.TotalHours = totalHours.Float64
	}
	return a, nil
}

func (r Repo) CloseAttendance(ctx context.Context, id, clockOut string, totalHours float64) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE attendance SET clock_out=?, total_hours=? WHERE id=? AND clock_out IS NULL`, clockOut, totalHours, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) InsertAnnouncement(ctx context.Context, a domain.Announcement) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO announcements(id,title,message,event_date,event_time,event_for,status,created_at) VALUES (?,?,?,?,?,?,?,?)`,
		a.ID, a.Title, a.Message, nullable(a.EventDate), nullable(a.EventTime), nullable(a.EventFor), a.Status, a.CreatedAt)
	return err
}

func (r Repo) ListAnnouncements(ctx context.Context, limit int) ([]domain.Announcement, error) {
	query := `SELECT id,title,message,COALESCE(event_date,''),COALESCE(event_time,''),COALESCE(event_for,''),status,created_at FROM announcements ORDER BY created_at DESC`
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Announcement
	for rows.Next() {
		var a domain.Announcement
		if err := rows.Scan(&a.ID, &a.Title, &a.Message, &a.EventDate, &a.EventTime, &a.EventFor, &a.Status, &a.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, rows.Err()
}

func (r Repo) InsertTimesheet(ctx context.Context, t domain.Timesheet, createdAt string) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO timesheets(id,employee_id,date,hours,created_at) VALUES (?,?,?,?,?)`,
		t.ID, t.EmployeeID, t.Date, t.Hours, createdAt)
	return err
}

func (r Repo) ListTimesheets(ctx context.Context, employeeID string, limit int) ([]domain.Timesheet, error) {
	query := `SELECT id,employee_id,date,hours FROM timesheets WHERE employee_id=? ORDER BY date DESC`
	args := []any{employeeID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Timesheet
	for rows.Next() {
		var t domain.Timesheet
		if err := rows.Scan(&t.ID, &t.EmployeeID, &t.Date, &t.Hours); err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}
