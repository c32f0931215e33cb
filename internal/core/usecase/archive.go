package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirillkom/grantflow/internal/core/domain"
	"github.com/kirillkom/grantflow/internal/core/ports"
)

// ArchiveMetrics observes the export archiver.
type ArchiveMetrics interface {
	StartArchive()
	FinishArchive(service string, duration time.Duration, err error)
	ObserveEventLag(service string, lag time.Duration)
}

// ArchiveExportUseCase records export announcements in the archive.
type ArchiveExportUseCase struct {
	archive ports.ExportArchive
	metrics ArchiveMetrics
	logger  *slog.Logger
	service string
	now     func() time.Time
}

func NewArchiveExportUseCase(archive ports.ExportArchive, metrics ArchiveMetrics, logger *slog.Logger, service string) *ArchiveExportUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &ArchiveExportUseCase{
		archive: archive,
		metrics: metrics,
		logger:  logger,
		service: service,
		now:     time.Now,
	}
}

func (uc *ArchiveExportUseCase) Handle(ctx context.Context, event domain.ExportEvent) (err error) {
	if event.Type != domain.EventApplicationExported {
		uc.logger.WarnContext(ctx, "export_event_skipped", "event_id", event.ID, "type", event.Type)
		return nil
	}

	start := uc.now()
	if uc.metrics != nil {
		uc.metrics.StartArchive()
		if !event.CreatedAt.IsZero() {
			uc.metrics.ObserveEventLag(uc.service, start.Sub(event.CreatedAt))
		}
		defer func() {
			uc.metrics.FinishArchive(uc.service, uc.now().Sub(start), err)
		}()
	}

	if err := uc.archive.Save(ctx, event); err != nil {
		uc.logger.ErrorContext(ctx, "export_archive_failed", "event_id", event.ID, "session_id", event.SessionID, "error", err)
		return fmt.Errorf("archive export %s: %w", event.ID, err)
	}
	uc.logger.InfoContext(ctx, "export_archived",
		"event_id", event.ID,
		"session_id", event.SessionID,
		"filename", event.Filename,
		"determination", event.Determination,
	)
	return nil
}
