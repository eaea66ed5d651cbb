package intent

import "testing"

func TestNormalizeSynonyms(t *testing.T) {
	out := Normalize("tasks", map[string]string{
		"Assignee": " Asha Nair ",
		"deadline": "2025-03-20",
		"desc":     "ship it",
	})
	if out["assigned_to"] != "Asha Nair" {
		t.Fatalf("assigned_to = %q", out["assigned_to"])
	}
	if out["due_date"] != "2025-03-20" {
		t.Fatalf("due_date = %q", out["due_date"])
	}
	if out["description"] != "ship it" {
		t.Fatalf("description = %q", out["description"])
	}
}

func TestNormalizeLeaveDateSynonyms(t *testing.T) {
	out := Normalize("leaves", map[string]string{
		"start_date": "2025-03-10",
		"end_date":   "2025-03-12",
	})
	if out["from_date"] != "2025-03-10" || out["to_date"] != "2025-03-12" {
		t.Fatalf("leave range not rewritten: %v", out)
	}

	// Tasks own a real start_date column; the leave rewrite must not
	// reach them.
	out = Normalize("tasks", map[string]string{"start_date": "2025-03-10"})
	if out["start_date"] != "2025-03-10" {
		t.Fatalf("task start_date rewritten: %v", out)
	}
	if _, ok := out["from_date"]; ok {
		t.Fatalf("task params gained from_date: %v", out)
	}
}

func TestNormalizeNameByResource(t *testing.T) {
	cases := map[string]string{
		"tasks":       "title",
		"teams":       "team_name",
		"departments": "department_name",
		"profiles":    "full_name",
	}
	for resource, want := range cases {
		out := Normalize(resource, map[string]string{"name": "X"})
		if out[want] != "X" {
			t.Errorf("%s: %q not filled from name: %v", resource, want, out)
		}
	}
}

func TestNormalizeFillsDatePairs(t *testing.T) {
	out := Normalize("leaves", map[string]string{"from_date": "2025-03-10"})
	if out["to_date"] != "2025-03-10" {
		t.Fatalf("to_date = %q", out["to_date"])
	}
	out = Normalize("tasks", map[string]string{"start_date": "2025-03-10"})
	if out["due_date"] != "2025-03-10" {
		t.Fatalf("due_date = %q", out["due_date"])
	}
}
