package ports

import (
	"context"
	"io"

	"github.com/kirillkom/grantflow/internal/core/domain"
)

// AgentGateway is the single entry point to the external reasoning service.
// Implementations never surface backend unavailability as an error; they fall
// back to a simulated response instead.
type AgentGateway interface {
	Call(ctx context.Context, operation domain.Operation, payload any) (domain.GatewayResponse, error)
}

// GatewayProber reports whether the live reasoning service is reachable.
type GatewayProber interface {
	Status(ctx context.Context) domain.ProbeStatus
	Refresh(ctx context.Context) domain.ProbeStatus
}

// ObjectStorage stores export artifacts.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// ExportPublisher announces stored export artifacts.
type ExportPublisher interface {
	PublishExport(ctx context.Context, event domain.ExportEvent) error
}

// ExportSubscriber consumes export announcements.
type ExportSubscriber interface {
	SubscribeExports(ctx context.Context, handler func(context.Context, domain.ExportEvent) error) error
}

// ExportArchive persists export announcements for later lookup.
type ExportArchive interface {
	Save(ctx context.Context, event domain.ExportEvent) error
	ListBySession(ctx context.Context, sessionID string) ([]domain.ExportEvent, error)
}

// WorkbookWriter renders a completed record as a spreadsheet.
type WorkbookWriter interface {
	Write(ctx context.Context, draft domain.Draft, w io.Writer) error
}
