package repo

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"talentops/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

// ErrAmbiguous reports a person reference that matched more than one
// profile. Callers surface the candidate names back to the user.
type ErrAmbiguous struct {
	Ref        string
	Candidates []string
}

func (e *ErrAmbiguous) Error() string {
	return "ambiguous reference " + e.Ref + ": matches " + strings.Join(e.Candidates, ", ")
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableStringPtr(v *string) any {
	if v == nil {
		return nil
	}
	if *v == "" {
		return nil
	}
	return *v
}

const profileCols = `id,full_name,email,role,team_id,monthly_leave_quota,leaves_taken_this_month,leaves_remaining,COALESCE(location,'') AS location,COALESCE(phone,'') AS phone,created_at`

func scanProfile(scan func(...any) error) (domain.Profile, error) {
	var p domain.Profile
	var teamID sql.NullString
	err := scan(&p.ID, &p.FullName, &p.Email, &p.Role, &teamID, &p.MonthlyLeaveQuota, &p.LeavesTakenThisMonth, &p.LeavesRemaining, &p.Location, &p.Phone, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return p, ErrNotFound
	}
	if teamID.Valid {
		p.TeamID = &teamID.String
	}
	return p, err
}

func (r Repo) InsertProfile(ctx context.Context, p domain.Profile) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO profiles(id,full_name,email,role,team_id,monthly_leave_quota,leaves_taken_this_month,leaves_remaining,location,phone,created_at) VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		p.ID, p.FullName, p.Email, p.Role, nullableStringPtr(p.TeamID), p.MonthlyLeaveQuota, p.LeavesTakenThisMonth, p.LeavesRemaining, nullable(p.Location), nullable(p.Phone), p.CreatedAt)
	return err
}

func (r Repo) GetProfile(ctx context.Context, id string) (domain.Profile, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+profileCols+` FROM profiles WHERE id=?`, id)
	return scanProfile(row.Scan)
}

func (r Repo) GetProfileByEmail(ctx context.Context, email string) (domain.Profile, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+profileCols+` FROM profiles WHERE lower(email)=lower(?)`, email)
	return scanProfile(row.Scan)
}

// ResolveProfile turns a person reference into a profile. An exact id
// hit wins, then exact email, then a case-insensitive partial match on
// full_name. Zero name matches is ErrNotFound, more than one is
// ErrAmbiguous.
func (r Repo) ResolveProfile(ctx context.Context, ref string) (domain.Profile, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return domain.Profile{}, ErrNotFound
	}
	if p, err := r.GetProfile(ctx, ref); err == nil {
		return p, nil
	}
	if strings.Contains(ref, "@") {
		return r.GetProfileByEmail(ctx, ref)
	}
	matches, err := r.searchProfilesByName(ctx, ref)
	if err != nil {
		return domain.Profile{}, err
	}
	switch len(matches) {
	case 0:
		return domain.Profile{}, ErrNotFound
	case 1:
		return matches[0], nil
	}
	names := make([]string, len(matches))
	for i, m := range matches {
		names[i] = m.FullName
	}
	return domain.Profile{}, &ErrAmbiguous{Ref: ref, Candidates: names}
}

func (r Repo) searchProfilesByName(ctx context.Context, name string) ([]domain.Profile, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+profileCols+` FROM profiles WHERE lower(full_name) LIKE ? ORDER BY full_name`, "%"+strings.ToLower(name)+"%")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Profile
	for rows.Next() {
		p, err := scanProfile(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

func (r Repo) ListProfiles(ctx context.Context) ([]domain.Profile, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+profileCols+` FROM profiles ORDER BY full_name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Profile
	for rows.Next() {
		p, err := scanProfile(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

func (r Repo) UpdateProfileLeaveCounters(ctx context.Context, tx *sql.Tx, id string, taken, remaining int) error {
	res, err := tx.ExecContext(ctx, `UPDATE profiles SET leaves_taken_this_month=?, leaves_remaining=? WHERE id=?`, taken, remaining, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) InsertTeam(ctx context.Context, t domain.Team, createdAt string) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO teams(id,team_name,manager_id,created_at) VALUES (?,?,?,?)`,
		t.ID, t.TeamName, nullable(t.ManagerID), createdAt)
	return err
}

func (r Repo) ListTeams(ctx context.Context) ([]domain.Team, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,team_name,COALESCE(manager_id,'') FROM teams ORDER BY team_name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Team
	for rows.Next() {
		var t domain.Team
		if err := rows.Scan(&t.ID, &t.TeamName, &t.ManagerID); err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

func (r Repo) InsertDepartment(ctx context.Context, d domain.Department, createdAt string) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO departments(id,department_name,created_at) VALUES (?,?,?)`,
		d.ID, d.DepartmentName, createdAt)
	return err
}

func (r Repo) ListDepartments(ctx context.Context) ([]domain.Department, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,department_name FROM departments ORDER BY department_name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Department
	for rows.Next() {
		var d domain.Department
		if err := rows.Scan(&d.ID, &d.DepartmentName); err != nil {
			return nil, err
		}
		res = append(res, d)
	}
	return res, rows.Err()
}
