package intent

import (
	"context"
	"strings"
	"time"
)

// Resolver turns a human person reference (name or email) into a
// stable profile id. Zero matches returns ("", ErrNotFound-like error);
// multiple matches return an ambiguity error. The sanitizer treats any
// resolution failure as "leave the raw value in place" so the
// required-field gate or the executor surfaces it.
type Resolver interface {
	ResolveID(ctx context.Context, ref string) (string, error)
}

// allowedColumns is the per-resource write schema. Sanitize drops any
// key not listed here.
var allowedColumns = map[string]map[string]bool{
	"leaves":        colSet("employee_id", "team_id", "from_date", "to_date", "reason", "status", "employee"),
	"tasks":         colSet("title", "description", "status", "priority", "assigned_to", "assigned_by", "team_id", "start_date", "due_date", "reason"),
	"profiles":      colSet("full_name", "email", "role", "team_id", "location", "phone"),
	"teams":         colSet("team_name", "manager_id"),
	"departments":   colSet("department_name"),
	"announcements": colSet("title", "message", "event_date", "event_time", "event_for", "attendees", "date", "time"),
	"attendance":    colSet("employee_id", "team_id", "date", "clock_in", "clock_out", "current_task"),
	"timesheets":    colSet("employee_id", "date", "hours"),
	"notifications": colSet("receiver_id", "type", "message"),
}

// identityFields name a person and get resolved to profile ids.
var identityFields = []string{"assigned_to", "assigned_by", "employee_id", "manager_id", "receiver_id"}

// Sanitize runs three passes over normalized params: resolve person
// references to ids, filter to the resource's allowed columns dropping
// empties, then apply resource defaults. Profiles skip resolution:
// resolving a person against the table that defines people would chase
// its own tail when onboarding.
func Sanitize(ctx context.Context, resolver Resolver, resource string, params map[string]string, now time.Time) map[string]string {
	out := make(map[string]string, len(params))
	for k, v := range params {
		out[k] = v
	}

	if resource != "profiles" && resolver != nil {
		for _, field := range identityFields {
			v := out[field]
			if v == "" || looksLikeID(v) {
				continue
			}
			id, err := resolver.ResolveID(ctx, v)
			if err != nil {
				// Unresolved values stay raw and fail downstream
				// validation instead of being guessed.
				continue
			}
			out[field] = id
		}
	}

	allowed := allowedColumns[resource]
	for k, v := range out {
		if v == "" || (allowed != nil && !allowed[k]) {
			delete(out, k)
		}
	}

	applyDefaults(resource, out, now)
	return out
}

func applyDefaults(resource string, out map[string]string, now time.Time) {
	switch resource {
	case "leaves":
		if out["to_date"] == "" && out["from_date"] != "" {
			out["to_date"] = out["from_date"]
		}
		if out["reason"] == "" {
			out["reason"] = "General Leave Request"
		}
	case "tasks":
		if out["description"] == "" && out["title"] != "" {
			out["description"] = "No description provided"
		}
	case "announcements":
		if out["title"] == "" && out["message"] != "" {
			out["title"] = truncate(out["message"], 50)
		}
		if out["event_date"] == "" {
			if d := isoDateRe.FindString(out["message"]); d != "" {
				out["event_date"] = d
			} else {
				out["event_date"] = now.Format("2006-01-02")
			}
		}
	}
}

// looksLikeID reports whether a value is already a stable identifier
// rather than a human name: UUIDs and other dashed hex forms.
func looksLikeID(v string) bool {
	if len(v) != 36 {
		return false
	}
	for i, c := range v {
		switch i {
		case 8, 13, 18, 23:
			if c != '-' {
				return false
			}
		default:
			if !strings.ContainsRune("0123456789abcdefABCDEF", c) {
				return false
			}
		}
	}
	return true
}

// truncate caps a value at n runes, never splitting a multi-byte
// character.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func colSet(cols ...string) map[string]bool {
	m := make(map[string]bool, len(cols))
	for _, c := range cols {
		m[c] = true
	}
	return m
}
