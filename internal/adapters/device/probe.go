package device

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	DefaultProbeInterval = 300 * time.Millisecond
	DefaultProbeTimeout  = 8 * time.Second
)

// Probe checks that the device backend answers HTTP at all.
type Probe struct {
	url      string
	http     *http.Client
	interval time.Duration
	timeout  time.Duration
}

func NewProbe(endpoints Endpoints, hc *http.Client, interval, timeout time.Duration) *Probe {
	if hc == nil {
		hc = &http.Client{Timeout: 2 * time.Second}
	}
	if interval <= 0 {
		interval = DefaultProbeInterval
	}
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	return &Probe{url: endpoints.URL(endpoints.ProbePath), http: hc, interval: interval, timeout: timeout}
}

// Once performs a single GET and succeeds on any 2xx.
func (p *Probe) Once(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Cache-Control", "no-store")
	resp, err := p.http.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: %d", ErrStatus, resp.StatusCode)
	}
	return nil
}

// WaitReady polls until the device answers or the overall timeout passes.
// It reports whether the device became ready; callers proceed either way.
func (p *Probe) WaitReady(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	attempts := 0
	for {
		attempts++
		err := p.Once(ctx)
		if err == nil {
			log.Info().Str("module", "probe").Int("attempts", attempts).Msg("device ready")
			return true
		}
		select {
		case <-ctx.Done():
			log.Warn().Err(err).Str("module", "probe").Int("attempts", attempts).Msg("device not ready, continuing anyway")
			return false
		case <-ticker.C:
		}
	}
}
