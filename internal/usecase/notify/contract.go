package notify

import (
	"context"

	domnotif "github.com/kailas-cloud/lostmatch/internal/domain/notification"
)

// Mailer delivers HTML email.
type Mailer interface {
	Enabled() bool
	Send(ctx context.Context, msg domnotif.Email) error
}

// RecordStore persists in-app notification records.
type RecordStore interface {
	Save(ctx context.Context, rec domnotif.Record) error
}

// Realtime pushes events to a user's live connections.
type Realtime interface {
	Connected(userID string) bool
	Publish(userID, name string, payload any) (int, error)
}
