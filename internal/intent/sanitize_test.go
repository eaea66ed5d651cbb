package intent

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"
)

type fakeResolver struct {
	ids   map[string]string
	calls []string
}

func (f *fakeResolver) ResolveID(ctx context.Context, ref string) (string, error) {
	f.calls = append(f.calls, ref)
	if id, ok := f.ids[ref]; ok {
		return id, nil
	}
	return "", errors.New("no match")
}

var testNow = time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)

func TestSanitizeResolvesIdentityFields(t *testing.T) {
	r := &fakeResolver{ids: map[string]string{"Asha Nair": "11111111-2222-3333-4444-555555555555"}}
	out := Sanitize(context.Background(), r, "tasks", map[string]string{
		"title":       "Ship Payments",
		"assigned_to": "Asha Nair",
	}, testNow)
	if out["assigned_to"] != "11111111-2222-3333-4444-555555555555" {
		t.Fatalf("assigned_to = %q", out["assigned_to"])
	}
	if len(r.calls) != 1 {
		t.Fatalf("resolver calls = %v", r.calls)
	}
}

func TestSanitizeSkipsResolvedIDs(t *testing.T) {
	r := &fakeResolver{}
	id := "11111111-2222-3333-4444-555555555555"
	out := Sanitize(context.Background(), r, "tasks", map[string]string{
		"title":       "Ship Payments",
		"assigned_to": id,
	}, testNow)
	if out["assigned_to"] != id {
		t.Fatalf("assigned_to = %q", out["assigned_to"])
	}
	if len(r.calls) != 0 {
		t.Fatalf("resolver must not run on ids, calls = %v", r.calls)
	}
}

func TestSanitizeKeepsUnresolvedRaw(t *testing.T) {
	r := &fakeResolver{}
	out := Sanitize(context.Background(), r, "tasks", map[string]string{
		"title":       "Ship Payments",
		"assigned_to": "nobody",
	}, testNow)
	if out["assigned_to"] != "nobody" {
		t.Fatalf("unresolved reference must stay raw, got %q", out["assigned_to"])
	}
}

func TestSanitizeSkipsProfilesResolution(t *testing.T) {
	r := &fakeResolver{ids: map[string]string{"John Doe": "some-id"}}
	out := Sanitize(context.Background(), r, "profiles", map[string]string{
		"full_name": "John Doe",
		"email":     "jdoe@example.com",
	}, testNow)
	if out["full_name"] != "John Doe" {
		t.Fatalf("full_name = %q", out["full_name"])
	}
	if len(r.calls) != 0 {
		t.Fatalf("profiles must skip resolution, calls = %v", r.calls)
	}
}

func TestSanitizeFiltersColumns(t *testing.T) {
	out := Sanitize(context.Background(), nil, "timesheets", map[string]string{
		"hours":    "8",
		"date":     "2025-03-03",
		"mood":     "great",
		"employee": "",
	}, testNow)
	if out["hours"] != "8" || out["date"] != "2025-03-03" {
		t.Fatalf("kept columns wrong: %v", out)
	}
	if _, ok := out["mood"]; ok {
		t.Fatalf("unknown column survived: %v", out)
	}
	if _, ok := out["employee"]; ok {
		t.Fatalf("empty value survived: %v", out)
	}
}

func TestSanitizeLeaveDefaults(t *testing.T) {
	out := Sanitize(context.Background(), nil, "leaves", map[string]string{
		"from_date": "2025-03-10",
	}, testNow)
	if out["to_date"] != "2025-03-10" {
		t.Fatalf("to_date = %q, want the from_date", out["to_date"])
	}
	if out["reason"] != "General Leave Request" {
		t.Fatalf("reason = %q", out["reason"])
	}
}

func TestSanitizeTaskDefaults(t *testing.T) {
	out := Sanitize(context.Background(), nil, "tasks", map[string]string{
		"title": "Ship Payments",
	}, testNow)
	if out["description"] != "No description provided" {
		t.Fatalf("description = %q", out["description"])
	}
}

func TestSanitizeAnnouncementDefaults(t *testing.T) {
	long := "All hands meeting moved to Friday because the auditorium is double booked this week"
	out := Sanitize(context.Background(), nil, "announcements", map[string]string{
		"message": long,
	}, testNow)
	if got := out["title"]; len(got) != 50 || got != long[:50] {
		t.Fatalf("title = %q", got)
	}
	if out["event_date"] != "2025-03-03" {
		t.Fatalf("event_date = %q, want today", out["event_date"])
	}

	out = Sanitize(context.Background(), nil, "announcements", map[string]string{
		"message": "Office closed on 2025-12-25",
	}, testNow)
	if out["event_date"] != "2025-12-25" {
		t.Fatalf("event_date = %q, want the date in the message", out["event_date"])
	}
}

func TestTruncateKeepsRunesWhole(t *testing.T) {
	long := strings.Repeat("ü", 60)
	out := Sanitize(context.Background(), nil, "announcements", map[string]string{
		"message": long,
	}, testNow)
	title := out["title"]
	if !utf8.ValidString(title) {
		t.Fatalf("title is not valid UTF-8: %q", title)
	}
	if got := utf8.RuneCountInString(title); got != 50 {
		t.Fatalf("title runes = %d, want 50", got)
	}
	if short := truncate("señor", 10); short != "señor" {
		t.Fatalf("short value changed: %q", short)
	}
}

func TestSanitizeIsIdempotent(t *testing.T) {
	r := &fakeResolver{ids: map[string]string{"Asha Nair": "11111111-2222-3333-4444-555555555555"}}
	once := Sanitize(context.Background(), r, "tasks", map[string]string{
		"title":       "Ship Payments",
		"assigned_to": "Asha Nair",
	}, testNow)
	twice := Sanitize(context.Background(), r, "tasks", once, testNow)
	if len(twice) != len(once) {
		t.Fatalf("second pass changed the shape: %v vs %v", once, twice)
	}
	for k, v := range once {
		if twice[k] != v {
			t.Errorf("second pass mutated %s: %q -> %q", k, v, twice[k])
		}
	}
	if len(r.calls) != 1 {
		t.Fatalf("resolver must run once across both passes, calls = %v", r.calls)
	}
}

func TestLooksLikeID(t *testing.T) {
	cases := map[string]bool{
		"11111111-2222-3333-4444-555555555555": true,
		"Asha Nair":                            false,
		"asha@example.com":                     false,
		"11111111222233334444555555555555":     false,
		"11111111-2222-3333-4444-55555555555g": false,
	}
	for v, want := range cases {
		if got := looksLikeID(v); got != want {
			t.Errorf("looksLikeID(%q) = %v, want %v", v, got, want)
		}
	}
}
