package intent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"talentops/internal/llm"
	"talentops/internal/rbac"
)

// Classifier is the model fallback behind the deterministic matcher.
// It prompts with the full action catalogue and parses the reply
// defensively; an unparseable reply means "intent undetermined", never
// a guessed action.
type Classifier struct {
	Client llm.Client
}

// ErrUndetermined signals that neither a structured action nor a read
// query could be recovered from the model output.
var ErrUndetermined = fmt.Errorf("intent undetermined")

type classified struct {
	Action string            `json:"action"`
	Params map[string]string `json:"params"`
}

func (c *Classifier) Classify(ctx context.Context, text, role string) (*Match, error) {
	prompt := buildPrompt(text, role)
	reply, err := c.Client.Complete(ctx, []llm.Message{
		{Role: "system", Content: prompt},
		{Role: "user", Content: text},
	})
	if err != nil {
		return nil, fmt.Errorf("classify: %w", err)
	}
	m := parseReply(reply)
	if m == nil {
		return nil, ErrUndetermined
	}
	return m, nil
}

func buildPrompt(text, role string) string {
	var b strings.Builder
	b.WriteString("You map an HR request to exactly one action. Known actions:\n")
	for _, spec := range rbac.AllSpecs() {
		b.WriteString("- ")
		b.WriteString(spec.Name)
		b.WriteString(": ")
		b.WriteString(spec.Description)
		if len(spec.Required) > 0 {
			b.WriteString(" (required: ")
			b.WriteString(strings.Join(spec.Required, ", "))
			b.WriteString(")")
		}
		b.WriteString("\n")
	}
	b.WriteString("\nCaller role: ")
	b.WriteString(role)
	if allowed := rbac.Allowed(role); len(allowed) > 0 {
		b.WriteString("\nActions this role may perform: ")
		b.WriteString(strings.Join(allowed, ", "))
	}
	b.WriteString("\nReply with a single JSON object {\"action\": ..., \"params\": {...}} and nothing else.\n")
	b.WriteString("Examples:\n")
	b.WriteString(`"I want 2 days off from 2025-03-01" -> {"action":"apply_leave","params":{"from_date":"2025-03-01","to_date":"2025-03-02"}}` + "\n")
	b.WriteString(`"what is on my plate" -> {"action":"view_my_tasks","params":{}}` + "\n")
	b.WriteString("If no action fits, reply {\"action\":\"\",\"params\":{}}.")
	return b.String()
}

// parseReply strips code fences, pulls the first balanced JSON object
// and decodes it. Unknown or empty actions yield nil.
func parseReply(reply string) *Match {
	cleaned := stripFences(reply)
	block := firstJSONObject(cleaned)
	if block == "" {
		return nil
	}
	var c classified
	if err := json.Unmarshal([]byte(block), &c); err != nil {
		return nil
	}
	c.Action = strings.TrimSpace(strings.ToLower(c.Action))
	if c.Action == "" || !rbac.IsKnownAction(c.Action) {
		return nil
	}
	if c.Params == nil {
		c.Params = map[string]string{}
	}
	return &Match{Action: c.Action, Params: c.Params}
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.Index(s, "\n"); i >= 0 {
		s = s[i+1:]
	}
	if i := strings.LastIndex(s, "```"); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

// firstJSONObject returns the first balanced {...} block, accounting
// for braces inside string literals.
func firstJSONObject(s string) string {
	start := strings.Index(s, "{")
	if start < 0 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}
