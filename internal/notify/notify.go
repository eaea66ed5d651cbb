// Package notify is the notification sink boundary. The monitor and the
// engine write through Sink; reads happen via the repo directly.
package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"talentops/internal/domain"
	"talentops/internal/repo"
)

// Payload is the structured data attached to a notification.
type Payload struct {
	TaskID    string `json:"task_id,omitempty"`
	Urgency   string `json:"urgency,omitempty"`
	OfferHelp bool   `json:"offer_help,omitempty"`
	LeaveID   string `json:"leave_id,omitempty"`
}

type Sink interface {
	Send(ctx context.Context, receiverID, typ, message string, payload Payload) error
}

// RepoSink persists notifications through the repo.
type RepoSink struct {
	Repo repo.Repo
	Now  func() time.Time
}

func (s RepoSink) Send(ctx context.Context, receiverID, typ, message string, payload Payload) error {
	now := s.Now
	if now == nil {
		now = time.Now
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return s.Repo.InsertNotification(ctx, domain.Notification{
		ID:         uuid.NewString(),
		ReceiverID: receiverID,
		Type:       typ,
		Message:    message,
		DataJSON:   string(data),
		IsRead:     false,
		CreatedAt:  now().UTC().Format(time.RFC3339),
	})
}
