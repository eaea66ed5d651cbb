package intent

import "strings"

// synonyms maps loose parameter keys onto canonical column names. Keys
// are matched case-insensitively; values never change.
var synonyms = map[string]string{
	"assignee":      "assigned_to",
	"assign_to":     "assigned_to",
	"person":        "assigned_to",
	"deadline":      "due_date",
	"desc":          "description",
	"details":       "description",
	"msg":           "message",
	"body":          "message",
	"employee_name": "employee",
	"mail":          "email",
	"e-mail":        "email",
}

// leaveSynonyms apply only to the leaves resource: tasks keep their own
// start_date column, so the rewrite cannot be global.
var leaveSynonyms = map[string]string{
	"start_date": "from_date",
	"end_date":   "to_date",
	"start":      "from_date",
	"end":        "to_date",
}

// nameTargets resolves the ambiguous key "name" per target resource.
// A flat mapping cannot work because "name" means a person for
// profiles but a label for teams and departments.
var nameTargets = map[string]string{
	"profiles":    "full_name",
	"teams":       "team_name",
	"departments": "department_name",
	"tasks":       "title",
}

// datePairs auto-fills a missing range end with its start. Giving only
// one date means a single-day range, which is the product behavior,
// not an accident.
var datePairs = [][2]string{
	{"from_date", "to_date"},
	{"start_date", "due_date"},
}

// Normalize rewrites keys to canonical names and fills date pairs.
// Values pass through untouched apart from whitespace trimming.
func Normalize(resource string, raw map[string]string) map[string]string {
	clean := make(map[string]string, len(raw))
	for k, v := range raw {
		key := strings.ToLower(strings.TrimSpace(k))
		if canonical, ok := synonyms[key]; ok {
			key = canonical
		}
		if resource == "leaves" {
			if canonical, ok := leaveSynonyms[key]; ok {
				key = canonical
			}
		}
		if key == "name" {
			if target, ok := nameTargets[resource]; ok {
				key = target
			}
		}
		clean[key] = strings.TrimSpace(v)
	}
	for _, pair := range datePairs {
		if clean[pair[0]] != "" && clean[pair[1]] == "" {
			clean[pair[1]] = clean[pair[0]]
		}
	}
	return clean
}
