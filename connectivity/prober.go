package connectivity

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Prober polls a health URL and publishes Online/Offline transitions to a
// Broadcaster. It stands in for browser online/offline events when the
// client runs headless.
type Prober struct {
	url      string
	interval time.Duration
	client   *http.Client
	target   *Broadcaster
	logger   *zap.SugaredLogger
}

// NewProber creates a prober; the request timeout is capped at interval
func NewProber(url string, interval time.Duration, target *Broadcaster, logger *zap.SugaredLogger) *Prober {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	timeout := 5 * time.Second
	if interval < timeout {
		timeout = interval
	}
	return &Prober{
		url:      url,
		interval: interval,
		client:   &http.Client{Timeout: timeout},
		target:   target,
		logger:   logger,
	}
}

// Run probes immediately and then every interval until ctx is done
func (p *Prober) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.probe(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.probe(ctx)
		}
	}
}

func (p *Prober) probe(ctx context.Context) {
	online := p.check(ctx)
	if ctx.Err() != nil {
		return
	}
	if p.target.SetOnline(online) {
		p.logger.Infow("Connectivity changed", "online", online, "probe_url", p.url)
	}
}

// check reports whether the probe URL answered with a non-5xx status
func (p *Prober) check(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.url, nil)
	if err != nil {
		p.logger.Warnw("Invalid probe request", "url", p.url, "error", err)
		return false
	}
	resp, err := p.client.Do(req)
	if err != nil {
		p.logger.Debugw("Connectivity probe failed", "url", p.url, "error", err)
		return false
	}
	_ = resp.Body.Close()
	return resp.StatusCode < http.StatusInternalServerError
}
