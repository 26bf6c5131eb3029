package ports

import (
	"context"

	"github.com/layer-3/scryptex/core"
)

// EventPublisher publishes session lifecycle events to other instances
type EventPublisher interface {
	PublishSessionEvent(ctx context.Context, event core.SessionEvent) error
}
