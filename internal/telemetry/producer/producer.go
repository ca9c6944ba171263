// Package producer publishes domain events to a message broker.
package producer

import (
	"context"

	"github.com/soyaya/boardling-sub008/internal/telemetry/domain"
)

// Producer publishes events. Callers use it best-effort: log and ignore errors.
type Producer interface {
	// Emit publishes one event. It may block briefly; use telemetry.EmitAsync from request paths.
	Emit(ctx context.Context, event *domain.Event) error
	// Close releases resources. Safe to call if already closed.
	Close() error
}
