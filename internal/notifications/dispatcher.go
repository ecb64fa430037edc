package notifications

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/manuphatak/talks/internal/services"
	"github.com/manuphatak/talks/pkg/logger"
	"github.com/manuphatak/talks/pkg/mail"
	"github.com/manuphatak/talks/pkg/metrics"
)

const (
	defaultSchedule       = "@every 5m"
	defaultDigestsPerRun  = 100
	defaultDigestDeadline = 30 * time.Second
)

// digestQueue is the subset of the email queue the dispatcher drives.
type digestQueue interface {
	NextDigest(ctx context.Context) (*services.Digest, error)
	Remove(ctx context.Context, email string) error
}

// Dispatcher drains the pending email queue on a schedule, delivering one
// digest per recipient and removing the rows it sent.
type Dispatcher struct {
	queue  digestQueue
	mailer mail.Mailer
	cron   *cron.Cron
	log    *zap.Logger

	schedule string
	perRun   int
}

// Option customises the Dispatcher.
type Option func(*Dispatcher)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(d *Dispatcher) {
		if c != nil {
			d.cron = c
		}
	}
}

// WithSchedule overrides the cron specification for queue flushes.
func WithSchedule(spec string) Option {
	return func(d *Dispatcher) {
		if spec != "" {
			d.schedule = spec
		}
	}
}

// WithDigestsPerRun caps how many recipients are processed per flush.
func WithDigestsPerRun(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.perRun = n
		}
	}
}

// NewDispatcher constructs a Dispatcher with sensible defaults.
func NewDispatcher(queue digestQueue, mailer mail.Mailer, opts ...Option) (*Dispatcher, error) {
	if queue == nil {
		return nil, errors.New("dispatcher: email queue is required")
	}
	if mailer == nil {
		return nil, errors.New("dispatcher: mailer is required")
	}

	dispatcher := &Dispatcher{
		queue:    queue,
		mailer:   mailer,
		schedule: defaultSchedule,
		perRun:   defaultDigestsPerRun,
		log:      logger.WithModule("notifications"),
	}

	for _, opt := range opts {
		opt(dispatcher)
	}

	if dispatcher.cron == nil {
		dispatcher.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}

	return dispatcher, nil
}

// Start registers the flush job with the cron scheduler and launches it.
func (d *Dispatcher) Start() error {
	if _, err := d.cron.AddFunc(d.schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), defaultDigestDeadline)
		defer cancel()

		if err := d.RunOnce(ctx); err != nil {
			d.log.Warn("queue flush failed", zap.Error(err))
		}
	}); err != nil {
		return err
	}

	d.cron.Start()
	return nil
}

// Stop halts the underlying scheduler, waiting for any running flush to complete.
func (d *Dispatcher) Stop() context.Context {
	if d.cron == nil {
		return context.Background()
	}
	return d.cron.Stop()
}

// RunOnce drains up to the configured number of digests. A delivery or
// queue-clear failure stops the run and leaves the remaining rows queued for
// the next flush. Stopping on a failed Remove matters: NextDigest would keep
// returning the same rows and the recipient would be re-sent the same digest.
func (d *Dispatcher) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var errs error

	for i := 0; i < d.perRun; i++ {
		digest, err := d.queue.NextDigest(ctx)
		if err != nil {
			return multierr.Append(errs, err)
		}
		if digest == nil {
			break
		}

		if err := d.deliver(ctx, digest); err != nil {
			if errors.Is(err, mail.ErrSMTPDisabled) {
				d.log.Debug("smtp disabled, leaving queue untouched")
				return errs
			}
			metrics.EmailsSent.WithLabelValues("failure").Inc()
			return multierr.Append(errs, fmt.Errorf("dispatch to %s: %w", digest.Email, err))
		}

		metrics.EmailsSent.WithLabelValues("success").Inc()

		if err := d.queue.Remove(ctx, digest.Email); err != nil {
			return multierr.Append(errs, fmt.Errorf("clear queue for %s: %w", digest.Email, err))
		}

		d.log.Debug("digest delivered",
			zap.String("email", digest.Email),
			zap.Int("items", len(digest.Items)))
	}

	return errs
}

func (d *Dispatcher) deliver(ctx context.Context, digest *services.Digest) error {
	msg := mail.Message{
		To:       []string{digest.Email},
		Subject:  digestSubject(digest),
		Body:     digestText(digest),
		HTMLBody: digestHTML(digest),
	}
	return d.mailer.Send(ctx, msg)
}

func digestSubject(digest *services.Digest) string {
	if len(digest.Items) == 1 {
		return digest.Items[0].Subject
	}
	return fmt.Sprintf("[talks] %d new comment notifications", len(digest.Items))
}

func digestText(digest *services.Digest) string {
	var b strings.Builder
	if digest.Name != "" {
		fmt.Fprintf(&b, "Hi %s,\n\n", digest.Name)
	}
	for i, item := range digest.Items {
		if i > 0 {
			b.WriteString("\n----\n\n")
		}
		b.WriteString(item.BodyText)
	}
	return b.String()
}

func digestHTML(digest *services.Digest) string {
	var b strings.Builder
	for i, item := range digest.Items {
		if item.BodyHTML == "" {
			continue
		}
		if i > 0 {
			b.WriteString("<hr>")
		}
		b.WriteString(item.BodyHTML)
	}
	return b.String()
}
