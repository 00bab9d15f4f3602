// Package dispatch fans a rendered campaign out to its recipients and
// records the outcome of every send.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/federalgaz/campaignmail/internal/delivery"
	"github.com/federalgaz/campaignmail/internal/metrics"
	"github.com/federalgaz/campaignmail/internal/ratelimit"
	"github.com/federalgaz/campaignmail/internal/template"
)

var (
	// ErrNoRecipients is returned for a job without recipients
	ErrNoRecipients = errors.New("job has no recipients")
	// ErrTooManyRecipients is returned when a job exceeds MaxRecipients
	ErrTooManyRecipients = errors.New("job has too many recipients")
	// ErrInvalidSender is returned when the from address cannot be parsed
	ErrInvalidSender = errors.New("invalid from address")
)

// Limiter is the send quota consulted before every message
type Limiter interface {
	Allow(ctx context.Context, req *ratelimit.Request) (*ratelimit.Result, error)
}

// Config contains dispatcher settings
type Config struct {
	From          string // default from address
	ReplyTo       string // default reply-to address
	Concurrency   int
	MaxRetries    int           // attempts for temporary failures
	RetryInterval time.Duration // base backoff between attempts
	MaxRecipients int
}

// Dispatcher renders a campaign per recipient and sends it
type Dispatcher struct {
	engine  *template.Engine
	sender  delivery.Sender
	storage *Storage
	limiter Limiter
	cfg     Config
	logger  *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a dispatcher. limiter may be nil.
func New(sender delivery.Sender, storage *Storage, limiter Limiter, cfg Config, logger *slog.Logger) *Dispatcher {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = 2 * time.Second
	}
	if cfg.MaxRecipients <= 0 {
		cfg.MaxRecipients = 10000
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		engine:  template.NewEngine(),
		sender:  sender,
		storage: storage,
		limiter: limiter,
		cfg:     cfg,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Send runs the job to completion and returns its report
func (d *Dispatcher) Send(ctx context.Context, job *Job) (*Report, error) {
	report, err := d.prepare(ctx, job)
	if err != nil {
		return nil, err
	}

	d.run(ctx, job, report)
	return report, nil
}

// Start saves a running report and dispatches the job in the background.
// The returned report is a snapshot; poll storage for progress.
func (d *Dispatcher) Start(ctx context.Context, job *Job) (*Report, error) {
	report, err := d.prepare(ctx, job)
	if err != nil {
		return nil, err
	}
	snapshot := *report
	snapshot.Items = append([]Item(nil), report.Items...)

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.run(d.ctx, job, report)
	}()

	return &snapshot, nil
}

// Stop cancels background dispatches and waits for them to record their state
func (d *Dispatcher) Stop() {
	d.cancel()
	d.wg.Wait()
}

// Storage returns the report storage
func (d *Dispatcher) Storage() *Storage {
	return d.storage
}

func (d *Dispatcher) prepare(ctx context.Context, job *Job) (*Report, error) {
	if len(job.Recipients) == 0 {
		return nil, ErrNoRecipients
	}
	if len(job.Recipients) > d.cfg.MaxRecipients {
		return nil, fmt.Errorf("%w: %d > %d", ErrTooManyRecipients, len(job.Recipients), d.cfg.MaxRecipients)
	}

	if job.From == "" {
		job.From = d.cfg.From
	}
	if _, err := mail.ParseAddress(job.From); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSender, err)
	}
	if job.ReplyTo == "" {
		job.ReplyTo = d.cfg.ReplyTo
	}

	slug, _ := template.Resolve(job.Slug)
	report := &Report{
		ID:         uuid.New().String(),
		TemplateID: job.TemplateID,
		Slug:       slug,
		Subject:    subjectOf(job),
		Provider:   d.sender.Name(),
		Status:     StatusRunning,
		Total:      len(job.Recipients),
		Items:      make([]Item, len(job.Recipients)),
		StartedAt:  time.Now().UTC(),
	}
	for i, r := range job.Recipients {
		report.Items[i] = Item{Email: strings.TrimSpace(r.Email), Name: strings.TrimSpace(r.Name), Status: ItemPending}
	}

	if d.storage != nil {
		if err := d.storage.Save(ctx, report); err != nil {
			return nil, fmt.Errorf("failed to save report: %w", err)
		}
	}

	d.logger.Info("dispatch started",
		"report_id", report.ID,
		"slug", report.Slug,
		"recipients", report.Total,
		"provider", report.Provider,
	)
	return report, nil
}

func (d *Dispatcher) run(ctx context.Context, job *Job, report *Report) {
	start := time.Now()
	logger := d.logger.With("report_id", report.ID)

	sem := make(chan struct{}, d.cfg.Concurrency)
	var wg sync.WaitGroup

	canceled := false
	for i := range report.Items {
		if ctx.Err() != nil {
			canceled = true
			break
		}
		select {
		case <-ctx.Done():
			canceled = true
		case sem <- struct{}{}:
		}
		if canceled {
			break
		}

		wg.Add(1)
		go func(item *Item) {
			defer wg.Done()
			defer func() { <-sem }()
			d.sendOne(ctx, job, report.ID, item, logger)
		}(&report.Items[i])
	}
	wg.Wait()

	if canceled {
		for i := range report.Items {
			if report.Items[i].Status == ItemPending {
				report.Items[i].Status = ItemSkipped
				report.Items[i].Error = "dispatch canceled"
			}
		}
	}

	now := time.Now().UTC()
	report.FinishedAt = &now
	report.tally(canceled)

	if d.storage != nil {
		// the request context may be gone; the final state must still land
		if err := d.storage.Save(context.WithoutCancel(ctx), report); err != nil {
			logger.Error("failed to save report", "error", err)
		}
	}

	metrics.ObserveDispatch(string(report.Status), time.Since(start))
	logger.Info("dispatch finished",
		"status", report.Status,
		"sent", report.Sent,
		"failed", report.Failed,
		"skipped", report.Skipped,
		"duration", time.Since(start),
	)
}

// sendOne renders and sends the message of a single recipient. Each item
// is written by exactly one goroutine.
func (d *Dispatcher) sendOne(ctx context.Context, job *Job, reportID string, item *Item, logger *slog.Logger) {
	addr, err := mail.ParseAddress(item.Email)
	if err != nil {
		item.Status = ItemFailed
		item.Error = "invalid address: " + err.Error()
		metrics.IncMessagesFailed(d.sender.Name(), "invalid_address")
		return
	}
	if item.Name != "" {
		addr.Name = item.Name
	}

	if d.limiter != nil {
		result, err := d.limiter.Allow(ctx, &ratelimit.Request{APIKey: job.APIKey, Recipient: addr.Address})
		if err != nil {
			logger.Warn("rate limiter error, sending anyway", "error", err)
		} else if !result.Allowed {
			item.Status = ItemSkipped
			item.Error = fmt.Sprintf("rate limit exceeded (%s), retry after %s", result.DeniedBy, result.RetryAfter.Round(time.Second))
			metrics.IncRateLimitExceeded(string(result.DeniedBy))
			return
		}
	}

	req := job.Request
	if req.RecipientName == "" {
		req.RecipientName = item.Name
	}
	rendered := d.engine.Render(job.Slug, &req)
	metrics.IncRenders(string(rendered.Slug), rendered.Fallback)

	msg := delivery.NewMessage(job.From, []string{addr.String()}, subjectOf(job))
	msg.ReplyTo = job.ReplyTo
	msg.HTML = rendered.HTML
	msg.Text = rendered.Text
	msg.Tag = string(rendered.Slug)
	msg.Headers = make(map[string]string, len(job.Headers)+1)
	for k, v := range job.Headers {
		msg.Headers[k] = v
	}
	msg.Headers["X-Fgmail-Dispatch"] = reportID
	item.MessageID = msg.ID

	for {
		item.Attempts++
		providerID, err := d.sender.Send(ctx, msg)
		if err == nil {
			now := time.Now().UTC()
			item.Status = ItemSent
			item.ProviderID = providerID
			item.Error = ""
			item.SentAt = &now
			metrics.IncMessagesSent(d.sender.Name())
			logger.Debug("message sent", "to", addr.Address, "provider_id", providerID)
			return
		}

		item.Error = err.Error()
		if !delivery.IsTemporary(err) || item.Attempts >= d.cfg.MaxRetries {
			item.Status = ItemFailed
			metrics.IncMessagesFailed(d.sender.Name(), errorType(err))
			logger.Warn("message failed", "to", addr.Address, "attempts", item.Attempts, "error", err)
			return
		}

		backoff := d.calculateBackoff(item.Attempts)
		logger.Debug("message deferred", "to", addr.Address, "attempts", item.Attempts, "backoff", backoff)

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			item.Status = ItemFailed
			metrics.IncMessagesFailed(d.sender.Name(), "canceled")
			return
		case <-timer.C:
		}
	}
}

// calculateBackoff doubles the retry interval per attempt, capped at one minute
func (d *Dispatcher) calculateBackoff(attempt int) time.Duration {
	backoff := d.cfg.RetryInterval
	for i := 1; i < attempt && backoff < time.Minute; i++ {
		backoff *= 2
	}
	if backoff > time.Minute {
		return time.Minute
	}
	return backoff
}

func subjectOf(job *Job) string {
	if s := strings.TrimSpace(job.Subject); s != "" {
		return s
	}
	return strings.TrimSpace(job.Request.Subject)
}

func errorType(err error) string {
	switch {
	case errors.Is(err, delivery.ErrInvalidMessage):
		return "invalid_message"
	case delivery.IsTemporary(err):
		return "temporary"
	default:
		return "permanent"
	}
}
