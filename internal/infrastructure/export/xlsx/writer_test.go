package xlsx

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/grantflow/internal/core/document"
	"github.com/kirillkom/grantflow/internal/core/domain"
)

func completeDraft() domain.Draft {
	return domain.Draft{
		SessionID: "s-42",
		State:     domain.StepComplete,
		Record: domain.WorkflowRecord{
			Organization: &domain.Organization{Name: "University of Toronto", Type: "University"},
			Project:      &domain.Project{Title: "Cold chain vaccines", Narrative: "Line one\nLine two"},
		},
	}
}

func TestWriteProducesApplicationAndSummarySheets(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewWriter().Write(context.Background(), completeDraft(), &buf))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	assert.Equal(t, []string{SheetApplication, SheetSummary}, f.GetSheetList())

	rows, err := f.GetRows(SheetApplication)
	require.NoError(t, err)
	require.NotEmpty(t, rows)
	assert.Equal(t, []string{"Section", "Field", "Value"}, rows[0])

	var fields int
	for _, s := range document.Sections(completeDraft().Record) {
		fields += len(s.Fields)
	}
	assert.Len(t, rows, fields+1)
	assert.Equal(t, []string{"[1] " + document.SectionOrganization, "Organization Name", "University of Toronto"}, rows[1])

	summary, err := f.GetRows(SheetSummary)
	require.NoError(t, err)
	require.Len(t, summary, 3)
	assert.Equal(t, "s-42", summary[1][1])
	assert.Contains(t, summary[2][1], "Missing Sections")
}

func TestWriteRequiresCompleteSession(t *testing.T) {
	draft := completeDraft()
	draft.State = domain.StepProject

	var buf bytes.Buffer
	err := NewWriter().Write(context.Background(), draft, &buf)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrPreconditionViolation)
	assert.Zero(t, buf.Len())
}
