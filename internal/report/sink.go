package report

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/himanishpuri/ReelDNA/pkg/logger"
	"github.com/himanishpuri/ReelDNA/pkg/models"
)

// Sink receives finished reports.
type Sink interface {
	Name() string
	Send(ctx context.Context, r models.Report, suspectPath string) error
}

// WebhookSink POSTs the report as JSON.
type WebhookSink struct {
	url    string
	client *http.Client
}

func NewWebhookSink(url string, timeout time.Duration) *WebhookSink {
	return &WebhookSink{url: url, client: &http.Client{Timeout: timeout}}
}

func (w *WebhookSink) Name() string { return "webhook" }

func (w *WebhookSink) Send(ctx context.Context, r models.Report, _ string) error {
	body, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("webhook returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}

// CommandTrigger runs an external command for each report.
type CommandTrigger struct {
	argv    []string
	timeout time.Duration
}

func NewCommandTrigger(argv []string, timeout time.Duration) *CommandTrigger {
	return &CommandTrigger{argv: argv, timeout: timeout}
}

func (c *CommandTrigger) Name() string { return "command" }

func (c *CommandTrigger) Send(ctx context.Context, r models.Report, suspectPath string) error {
	if len(c.argv) == 0 {
		return nil
	}
	if _, err := exec.LookPath(c.argv[0]); err != nil {
		return fmt.Errorf("report command %q not found: %w", c.argv[0], err)
	}

	replacer := strings.NewReplacer(
		"{channel}", r.ChannelID,
		"{message}", r.MessageID,
		"{movie}", r.MovieName,
		"{file}", filepath.Clean(suspectPath),
	)
	args := make([]string, len(c.argv)-1)
	for i, a := range c.argv[1:] {
		args[i] = replacer.Replace(a)
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	out, err := exec.CommandContext(ctx, c.argv[0], args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("report command failed: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}

// Dispatcher fans a report out to every sink. A failing sink never stops the others.
type Dispatcher struct {
	builder *Builder
	sinks   []Sink
	enabled bool
	log     logger.Interface
}

// NewDispatcher wires the sinks named in cfg.
func NewDispatcher(cfg Config, builder *Builder, log logger.Interface) *Dispatcher {
	d := &Dispatcher{builder: builder, enabled: cfg.Enabled, log: log}
	if cfg.WebhookURL != "" {
		d.sinks = append(d.sinks, NewWebhookSink(cfg.WebhookURL, cfg.WebhookTimeout))
	}
	if len(cfg.Command) > 0 {
		d.sinks = append(d.sinks, NewCommandTrigger(cfg.Command, cfg.CommandTimeout))
	}
	return d
}

// AddSink registers an extra sink.
func (d *Dispatcher) AddSink(s Sink) {
	d.sinks = append(d.sinks, s)
}

// Handle builds and sends a report when the verdict is pirated. It returns the
// report it built, or nil when nothing was reported.
func (d *Dispatcher) Handle(ctx context.Context, v models.Verdict, suspectPath string) (*models.Report, error) {
	if !d.enabled {
		d.log.Infof("Reporting disabled, skipping %s", filepath.Base(suspectPath))
		return nil, nil
	}
	if !v.IsPirated {
		return nil, nil
	}

	r, err := d.builder.Build(v, suspectPath)
	if err != nil {
		return nil, err
	}
	if len(d.sinks) == 0 {
		d.log.Warnf("No report sinks configured, report for channel %s kept locally", r.ChannelID)
		return &r, nil
	}

	var errs []error
	for _, s := range d.sinks {
		if err := s.Send(ctx, r, suspectPath); err != nil {
			d.log.Errorf("Report sink %s failed: %v", s.Name(), err)
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		d.log.Infof("Report sent via %s (channel %s, message %s)", s.Name(), r.ChannelID, r.MessageID)
	}
	return &r, errors.Join(errs...)
}
