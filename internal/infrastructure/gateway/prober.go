package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/kirillkom/grantflow/internal/core/domain"
	"github.com/kirillkom/grantflow/internal/core/ports"
)

// Prober checks whether the reasoning service answers on its root path and
// caches the answer for a short time. Concurrent checks share one request.
type Prober struct {
	endpoint string
	client   *http.Client
	ttl      time.Duration
	logger   *slog.Logger
	metrics  ports.GatewayMetrics
	now      func() time.Time

	group singleflight.Group

	mu   sync.Mutex
	last *domain.ProbeStatus
}

func NewProber(endpoint string, timeout, ttl time.Duration, logger *slog.Logger, metrics ports.GatewayMetrics) *Prober {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = ports.NoopGatewayMetrics{}
	}
	return &Prober{
		endpoint: strings.TrimRight(endpoint, "/"),
		client: &http.Client{
			Timeout: timeout,
			// A redirect already proves the server is up.
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		ttl:     ttl,
		logger:  logger,
		metrics: metrics,
		now:     time.Now,
	}
}

func (p *Prober) Endpoint() string {
	return p.endpoint
}

// Status returns the cached probe result while it is fresh, probing otherwise.
func (p *Prober) Status(ctx context.Context) domain.ProbeStatus {
	p.mu.Lock()
	if p.last != nil && p.ttl > 0 && p.now().Sub(p.last.CheckedAt) < p.ttl {
		status := *p.last
		p.mu.Unlock()
		status.Cached = true
		return status
	}
	p.mu.Unlock()
	return p.probe(ctx)
}

// Refresh ignores the cache.
func (p *Prober) Refresh(ctx context.Context) domain.ProbeStatus {
	return p.probe(ctx)
}

func (p *Prober) probe(ctx context.Context) domain.ProbeStatus {
	// The shared probe must not die with the first caller's context.
	v, _, _ := p.group.Do("probe", func() (any, error) {
		status := p.check(context.WithoutCancel(ctx))
		p.mu.Lock()
		p.last = &status
		p.mu.Unlock()
		return status, nil
	})
	return v.(domain.ProbeStatus)
}

func (p *Prober) check(ctx context.Context) domain.ProbeStatus {
	status := domain.ProbeStatus{Endpoint: p.endpoint, CheckedAt: p.now()}
	defer func() {
		p.metrics.RecordProbe(status.Reachable)
		p.logger.Debug("gateway_probe", "endpoint", p.endpoint, "reachable", status.Reachable, "status_code", status.StatusCode, "error", status.Error)
	}()

	if p.endpoint == "" {
		status.Error = "no endpoint configured"
		return status
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.endpoint+"/", nil)
	if err != nil {
		status.Error = fmt.Sprintf("build probe request: %v", err)
		return status
	}
	resp, err := p.client.Do(req)
	if err != nil {
		status.Error = probeError(err)
		return status
	}
	defer resp.Body.Close()

	status.StatusCode = resp.StatusCode
	status.Reachable = resp.StatusCode >= 200 && resp.StatusCode < 400
	if !status.Reachable {
		status.Error = "unexpected status " + resp.Status
	}
	return status
}

func probeError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "probe timed out"
	}
	return err.Error()
}
