package service

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/siteworks-dev/siteworks/model"
	"github.com/siteworks-dev/siteworks/pkg/logger"
)

// ActivityEvent describes an ingestion outcome for the activity log.
type ActivityEvent struct {
	ProjectID   string
	Type        model.UploadType
	Outcome     string // processed, failed
	Message     string
	TotalAmount decimal.Decimal
	PhaseCount  int
	Actor       string
}

// ActivityLogger receives ingestion outcome events. Emission is
// fire-and-forget: a failure to record must never change the result
// already decided for the caller.
type ActivityLogger interface {
	Record(ctx context.Context, event ActivityEvent) error
}

// LogActivityLogger writes activity events to the application log. The
// real activity service is an external collaborator; this is the default
// sink when none is wired.
type LogActivityLogger struct{}

func (LogActivityLogger) Record(ctx context.Context, event ActivityEvent) error {
	logger.Info(ctx, "boq ingestion activity",
		"outcome", event.Outcome,
		"type", string(event.Type),
		"phase_count", event.PhaseCount,
		"total_amount", event.TotalAmount.String(),
		"actor", event.Actor,
		"message", event.Message,
	)
	return nil
}
