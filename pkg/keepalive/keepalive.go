// Package keepalive periodically requests the service's own health endpoint
// so idle hosting platforms do not put it to sleep.
package keepalive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

const (
	DefaultSchedule = "@every 9m"
	pingTimeout     = 30 * time.Second
)

type Pinger struct {
	URL      string
	Schedule string
	client   *http.Client
	cron     *cron.Cron
	logger   *slog.Logger
}

// New returns a pinger for <appURL>/health. An empty appURL yields a
// disabled pinger whose Start and Stop do nothing.
func New(appURL, schedule string, logger *slog.Logger) (*Pinger, error) {
	if schedule == "" {
		schedule = DefaultSchedule
	}

	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, fmt.Errorf("invalid keep-alive schedule: %w", err)
	}

	url := ""
	if appURL = strings.TrimSpace(appURL); appURL != "" {
		url = strings.TrimRight(appURL, "/") + "/health"
	}

	return &Pinger{
		URL:      url,
		Schedule: schedule,
		client:   &http.Client{Timeout: pingTimeout},
		logger:   logger.With("module", "keepalive", "url", url, "schedule", schedule),
	}, nil
}

func (p *Pinger) Enabled() bool {
	return p.URL != ""
}

func (p *Pinger) Start(ctx context.Context) error {
	if !p.Enabled() {
		p.logger.Info("Keep-alive is disabled, APP_URL is not set")
		return nil
	}

	p.cron = cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cron.DefaultLogger),
		cron.Recover(cron.DefaultLogger),
	))

	id, err := p.cron.AddFunc(p.Schedule, func() {
		if err := p.Ping(ctx); err != nil {
			p.logger.Warn("Keep-alive ping failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to add keep-alive job: %w", err)
	}

	p.logger.Info("Starting keep-alive", "job_id", id)
	p.cron.Start()

	return nil
}

// Ping requests the health endpoint once.
func (p *Pinger) Ping(ctx context.Context) error {
	if !p.Enabled() {
		return errors.New("keep-alive has no URL")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.URL, nil)
	if err != nil {
		return err
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	p.logger.Debug("Keep-alive ping succeeded")

	return nil
}

func (p *Pinger) Stop() {
	if p.cron == nil {
		return
	}

	p.logger.Info("Stopping keep-alive")
	<-p.cron.Stop().Done()
}
