package usecase

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/grantflow/internal/core/document"
	"github.com/kirillkom/grantflow/internal/core/domain"
	"github.com/kirillkom/grantflow/internal/core/ports"
)

// DraftSource is anything that can hand out a draft, usually a *Session.
type DraftSource interface {
	Draft() domain.Draft
}

// ExportService turns completed sessions into stored artifacts and announces
// them. Storage, workbook writer and publisher are optional.
type ExportService struct {
	storage   ports.ObjectStorage
	workbook  ports.WorkbookWriter
	publisher ports.ExportPublisher
	logger    *slog.Logger
	now       func() time.Time
}

func NewExportService(storage ports.ObjectStorage, workbook ports.WorkbookWriter, publisher ports.ExportPublisher, logger *slog.Logger) *ExportService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExportService{
		storage:   storage,
		workbook:  workbook,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

func (uc *ExportService) Export(ctx context.Context, src DraftSource, format domain.ExportFormat) (domain.ExportArtifact, error) {
	const op = "export"
	if format == "" {
		format = domain.ExportText
	}
	if !format.IsValid() {
		return domain.ExportArtifact{}, domain.InvalidField(op, "format", fmt.Sprintf("unsupported export format %q", format))
	}

	draft := src.Draft()
	content, err := uc.render(ctx, draft, format)
	if err != nil {
		return domain.ExportArtifact{}, err
	}

	artifact := domain.ExportArtifact{
		SessionID:   draft.SessionID,
		Filename:    document.Filename(draft.SessionID, format),
		Format:      format,
		ContentType: format.ContentType(),
		Content:     content,
	}

	if uc.storage != nil {
		if err := uc.storage.Save(ctx, artifact.Filename, bytes.NewReader(content)); err != nil {
			return domain.ExportArtifact{}, fmt.Errorf("save export artifact: %w", err)
		}
	}

	if uc.publisher != nil {
		event := domain.ExportEvent{
			ID:        uuid.NewString(),
			Type:      domain.EventApplicationExported,
			SessionID: draft.SessionID,
			Filename:  artifact.Filename,
			Format:    format,
			SizeBytes: len(content),
			CreatedAt: uc.now().UTC(),
		}
		if uc.storage != nil {
			event.StorageKey = artifact.Filename
		}
		if org := draft.Record.Organization; org != nil {
			event.Organization = org.Name
		}
		if elig := draft.Record.Eligibility; elig != nil {
			event.Determination = elig.Determination
		}
		if err := uc.publisher.PublishExport(ctx, event); err != nil {
			return domain.ExportArtifact{}, fmt.Errorf("publish export event: %w", err)
		}
	}

	uc.logger.InfoContext(ctx, "application_exported", "session_id", draft.SessionID, "format", format, "size_bytes", len(content))
	return artifact, nil
}

func (uc *ExportService) render(ctx context.Context, draft domain.Draft, format domain.ExportFormat) ([]byte, error) {
	if format == domain.ExportText {
		text, err := document.Render(draft)
		if err != nil {
			return nil, err
		}
		return []byte(text), nil
	}

	if draft.State != domain.StepComplete {
		return nil, domain.WrapError(domain.ErrPreconditionViolation, "export",
			fmt.Errorf("session is in %s, exports require %s", draft.State, domain.StepComplete))
	}
	if uc.workbook == nil {
		return nil, domain.InvalidField("export", "format", "workbook export is not configured")
	}
	var buf bytes.Buffer
	if err := uc.workbook.Write(ctx, draft, &buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}
