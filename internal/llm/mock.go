package llm

import "context"

// MockClient returns canned responses in order, then repeats the last
// one. Tests use it to script classifier and router replies.
type MockClient struct {
	Responses []string
	Err       error
	Calls     [][]Message

	next int
}

func (m *MockClient) Complete(ctx context.Context, messages []Message) (string, error) {
	m.Calls = append(m.Calls, messages)
	if m.Err != nil {
		return "", m.Err
	}
	if len(m.Responses) == 0 {
		return "", nil
	}
	i := m.next
	if i >= len(m.Responses) {
		i = len(m.Responses) - 1
	}
	m.next++
	return m.Responses[i], nil
}
