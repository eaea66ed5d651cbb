package talentopssdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal TalentOps HTTP API client.
type Client struct {
	BaseURL     string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// ChatResponse is the assistant's answer to a message.
type ChatResponse struct {
	System  string   `json:"system"`
	Message string   `json:"message"`
	Outcome *Outcome `json:"outcome,omitempty"`
	Sources []string `json:"sources,omitempty"`
}

// Outcome mirrors the engine's discriminated result.
type Outcome struct {
	Kind       string         `json:"kind"`
	Action     string         `json:"action,omitempty"`
	Message    string         `json:"message"`
	Data       map[string]any `json:"data,omitempty"`
	Missing    []string       `json:"missing,omitempty"`
	Candidates []string       `json:"candidates,omitempty"`
}

// Task represents the API task model (partial).
type Task struct {
	ID             string `json:"id"`
	Title          string `json:"title"`
	Status         string `json:"status"`
	LifecycleState string `json:"lifecycle_state"`
	SubState       string `json:"sub_state"`
	DueDate        string `json:"due_date,omitempty"`
}

// HistoryEntry is one audit record for a task.
type HistoryEntry struct {
	ID            int64  `json:"id"`
	TaskID        string `json:"task_id"`
	Action        string `json:"action"`
	FromLifecycle string `json:"from_lifecycle_state,omitempty"`
	ToLifecycle   string `json:"to_lifecycle_state,omitempty"`
	FromSubState  string `json:"from_sub_state,omitempty"`
	ToSubState    string `json:"to_sub_state,omitempty"`
	ActorID       string `json:"actor_id"`
	CreatedAt     string `json:"created_at"`
}

// Notification is an inbox entry for the authenticated user.
type Notification struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Message   string `json:"message"`
	IsRead    bool   `json:"is_read"`
	CreatedAt string `json:"created_at"`
}

// Profile is the authenticated user's employee record.
type Profile struct {
	ID              string `json:"id"`
	FullName        string `json:"full_name"`
	Email           string `json:"email"`
	Role            string `json:"role"`
	LeavesRemaining int    `json:"leaves_remaining"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// Chat sends one message to the assistant.
func (c *Client) Chat(ctx context.Context, message string) (ChatResponse, error) {
	body := map[string]any{"message": message}
	var resp ChatResponse
	err := c.do(ctx, http.MethodPost, "v0/chat", body, &resp)
	return resp, err
}

// Tasks lists tasks, optionally filtered by status.
func (c *Client) Tasks(ctx context.Context, status string, mine bool) ([]Task, error) {
	endpoint := "v0/tasks"
	q := url.Values{}
	if status != "" {
		q.Set("status", status)
	}
	if mine {
		q.Set("mine", "true")
	}
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}
	var resp struct {
		Tasks []Task `json:"tasks"`
	}
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp.Tasks, err
}

// TaskHistory returns the audit history of a task.
func (c *Client) TaskHistory(ctx context.Context, taskID string) ([]HistoryEntry, error) {
	var resp struct {
		History []HistoryEntry `json:"history"`
	}
	endpoint := fmt.Sprintf("v0/tasks/%s/history", url.PathEscape(taskID))
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp.History, err
}

// Notifications lists the authenticated user's notifications.
func (c *Client) Notifications(ctx context.Context, unreadOnly bool) ([]Notification, error) {
	endpoint := "v0/notifications"
	if unreadOnly {
		endpoint += "?unread=true"
	}
	var resp struct {
		Notifications []Notification `json:"notifications"`
	}
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp.Notifications, err
}

// MarkNotificationsRead marks every notification read.
func (c *Client) MarkNotificationsRead(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "v0/notifications/read", nil, nil)
}

// Me returns the authenticated user's profile.
func (c *Client) Me(ctx context.Context) (Profile, error) {
	var resp Profile
	err := c.do(ctx, http.MethodGet, "v0/me", nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
