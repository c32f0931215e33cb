package cli

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirillkom/grantflow/internal/core/domain"
	"github.com/kirillkom/grantflow/internal/core/usecase"
	"github.com/kirillkom/grantflow/internal/infrastructure/gateway"
)

const script = `
organization:
  name: University of Toronto
  type: University
  location: Toronto, Ontario, Canada
  research_areas: [Health Sciences]
grant:
  description: Operating grants for health research in Canada.
eligibility:
  attestations:
    funding_threshold: true
project:
  title: Cold chain vaccines
  narrative: Keeping vaccines cold in remote communities.
  requested_amount: 250000
  team_size: 6
`

type proberFake struct{}

func (proberFake) Status(context.Context) domain.ProbeStatus {
	return domain.ProbeStatus{Endpoint: "http://agent:8000", Reachable: true}
}

func (proberFake) Refresh(context.Context) domain.ProbeStatus {
	return domain.ProbeStatus{Endpoint: "http://agent:8000", Error: "dial tcp: connection refused"}
}

func testEnv() Env {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	gw := gateway.New(gateway.Config{}, nil, nil, gateway.NewSimulator(nil), logger, nil)
	return Env{
		Gateway:  proberFake{},
		Workflow: usecase.NewWorkflowService(usecase.Dependencies{Gateway: gw, Logger: logger, GrantSearchEnabled: true}, domain.SessionConfig{}),
		Exports:  usecase.NewExportService(nil, nil, nil, logger),
	}
}

func execute(t *testing.T, env Env, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := NewRoot(env)
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "session.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestValidateLocationCommand(t *testing.T) {
	out, err := execute(t, Env{}, "validate-location", "Toronto,", "Ontario,", "Canada")
	require.NoError(t, err)
	assert.Contains(t, out, "HIGH")
	assert.Contains(t, out, "canada")

	out, err = execute(t, Env{}, "validate-location", "--override", "Springfield")
	require.NoError(t, err)
	assert.Contains(t, out, "LOW")
	assert.Contains(t, out, "manual override")
}

func TestProbeCommand(t *testing.T) {
	out, err := execute(t, testEnv(), "probe")
	require.NoError(t, err)
	assert.Contains(t, out, "unreachable")
	assert.Contains(t, out, "connection refused")

	_, err = execute(t, testEnv(), "probe", "--strict")
	require.Error(t, err)

	_, err = execute(t, Env{}, "probe")
	require.Error(t, err)
}

func TestRunCommandWritesDraftToStdout(t *testing.T) {
	out, err := execute(t, testEnv(), "run", "-f", writeScript(t, script))
	require.NoError(t, err)
	assert.Contains(t, out, "Approved "+string(domain.StepProject))
	assert.Contains(t, out, "ELIGIBLE")
	assert.Contains(t, out, "Grant Application Draft")
	assert.Contains(t, out, "All core sections completed.")
}

func TestRunCommandWritesExportFile(t *testing.T) {
	dir := t.TempDir()
	out, err := execute(t, testEnv(), "run", "-f", writeScript(t, script), "--out", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "Exported")

	matches, err := filepath.Glob(filepath.Join(dir, "grant_application_*.txt"))
	require.NoError(t, err)
	require.Len(t, matches, 1)
}

func TestRunCommandStopsWhenApprovalWithheld(t *testing.T) {
	body := script + "approvals:\n  GRANT_INFO: false\n"
	out, err := execute(t, testEnv(), "run", "-f", writeScript(t, body))
	require.NoError(t, err)
	assert.Contains(t, out, "Stopped "+string(domain.StepGrantInfo))
	assert.NotContains(t, out, "Grant Application Draft")
}

func TestRunCommandReportsRejectedStep(t *testing.T) {
	body := "organization:\n  name: Org\n"
	_, err := execute(t, testEnv(), "run", "-f", writeScript(t, body))
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.ErrInvalidInput))
}

func TestRunCommandRequiresFile(t *testing.T) {
	_, err := execute(t, testEnv(), "run")
	require.Error(t, err)
}
