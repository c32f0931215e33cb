package bootstrap

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirillkom/grantflow/internal/config"
	"github.com/kirillkom/grantflow/internal/core/domain"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	return config.Config{
		AgentEndpoint:      "http://127.0.0.1:1",
		AgentCallTimeout:   time.Second,
		ProbeTimeout:       100 * time.Millisecond,
		ProbeCacheTTL:      time.Minute,
		GrantSearchEnabled: true,
		ExportStorage:      "localfs",
		StoragePath:        filepath.Join(t.TempDir(), "exports"),
	}
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewWiresSessionSide(t *testing.T) {
	cfg := testConfig(t)
	cfg.Debug = true

	app, err := New(context.Background(), cfg, Options{Logger: discard()})
	require.NoError(t, err)
	defer app.Close()

	assert.Nil(t, app.Archive, "postgres is optional")
	require.NotNil(t, app.Exports)

	session := app.Workflow.Start()
	snap := session.Snapshot()
	assert.Equal(t, domain.StepOrgVerification, snap.State)
	assert.Equal(t, domain.SessionConfig{Endpoint: cfg.AgentEndpoint, Debug: true}, snap.Config)
}

func TestNewRejectsUnknownStorage(t *testing.T) {
	cfg := testConfig(t)
	cfg.ExportStorage = "tape"

	_, err := New(context.Background(), cfg, Options{Logger: discard()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tape")
}

func TestNewRejectsMissingVocabulary(t *testing.T) {
	cfg := testConfig(t)
	cfg.LocationVocabularyPath = filepath.Join(t.TempDir(), "missing.yaml")

	_, err := New(context.Background(), cfg, Options{Logger: discard()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load location vocabulary")
}

func TestNewWorkerRequiresBrokerAndDatabase(t *testing.T) {
	cfg := testConfig(t)

	_, err := NewWorker(context.Background(), cfg, discard(), nil)
	require.ErrorContains(t, err, "NATS_URL")

	cfg.NATSURL = "nats://127.0.0.1:1"
	_, err = NewWorker(context.Background(), cfg, discard(), nil)
	require.ErrorContains(t, err, "POSTGRES_DSN")
}

func TestResilienceConfigClampsNegativeCounts(t *testing.T) {
	cfg := config.Config{
		ResilienceRetryMaxAttempts:     3,
		ResilienceBreakerMinRequests:   -1,
		ResilienceBreakerHalfOpenCalls: 2,
	}
	got := resilienceConfig(cfg)
	assert.Equal(t, 3, got.RetryMaxAttempts)
	assert.Equal(t, uint32(0), got.BreakerMinRequests)
	assert.Equal(t, uint32(2), got.BreakerHalfOpenMaxCalls)
}
