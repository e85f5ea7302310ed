package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/lostmatch/internal/domain"
	domnotif "github.com/kailas-cloud/lostmatch/internal/domain/notification"
	domuser "github.com/kailas-cloud/lostmatch/internal/domain/user"
	"github.com/kailas-cloud/lostmatch/internal/logger"
	"github.com/kailas-cloud/lostmatch/internal/metrics"
)

// EventMatchFound is the realtime event name for match notifications.
const EventMatchFound = "match_found"

// Channel names, also used as metric labels.
const (
	ChannelEmail    = "email"
	ChannelInApp    = "in_app"
	ChannelRealtime = "realtime"
)

// Status is the delivery result of one channel.
type Status string

// Channel delivery results.
const (
	StatusSent    Status = "sent"
	StatusSkipped Status = "skipped"
	StatusFailed  Status = "failed"
)

// Delivery is one channel's result.
type Delivery struct {
	Status Status
	Err    error
}

// Outcome collects the per-channel results of one dispatch.
type Outcome struct {
	Email    Delivery
	InApp    Delivery
	Realtime Delivery
}

// Failed reports whether any channel failed.
func (o Outcome) Failed() bool {
	return o.Email.Status == StatusFailed || o.InApp.Status == StatusFailed || o.Realtime.Status == StatusFailed
}

// Delivered reports whether at least one channel delivered.
func (o Outcome) Delivered() bool {
	return o.Email.Status == StatusSent || o.InApp.Status == StatusSent || o.Realtime.Status == StatusSent
}

// Dispatcher fans a match event out to email, in-app and realtime channels.
// Channels are independent: a failure on one never blocks or fails another.
type Dispatcher struct {
	records   RecordStore
	mailer    Mailer
	realtime  Realtime
	publicURL string
	logger    *zap.Logger
	now       func() time.Time
	newID     func() string
}

// New creates a dispatcher that stores in-app records.
func New(records RecordStore, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		records: records,
		logger:  logger,
		now:     time.Now,
		newID:   uuid.NewString,
	}
}

// WithEmail enables the email channel. Links point at publicURL.
func (d *Dispatcher) WithEmail(m Mailer, publicURL string) *Dispatcher {
	d.mailer = m
	d.publicURL = publicURL
	return d
}

// WithRealtime enables realtime pushes.
func (d *Dispatcher) WithRealtime(rt Realtime) *Dispatcher {
	d.realtime = rt
	return d
}

// WithClock overrides the record timestamp source.
func (d *Dispatcher) WithClock(now func() time.Time) *Dispatcher {
	d.now = now
	return d
}

// Dispatch delivers e to recipient on every applicable channel concurrently
// and waits for all of them. Channel failures are logged and counted only.
func (d *Dispatcher) Dispatch(ctx context.Context, e domnotif.Event, recipient *domuser.Preferences) Outcome {
	log := logger.FromContextOr(ctx, d.logger).With(
		zap.String("user_id", e.RecipientUserID),
		zap.String("report_id", e.ReportID),
	)

	var out Outcome
	var g errgroup.Group
	g.Go(func() error {
		out.Email = d.email(ctx, e, recipient)
		return nil
	})
	g.Go(func() error {
		out.InApp = d.inApp(ctx, e)
		return nil
	})
	g.Go(func() error {
		out.Realtime = d.push(e)
		return nil
	})
	_ = g.Wait()

	for channel, res := range map[string]Delivery{
		ChannelEmail:    out.Email,
		ChannelInApp:    out.InApp,
		ChannelRealtime: out.Realtime,
	} {
		metrics.NotificationsTotal.WithLabelValues(channel, string(res.Status)).Inc()
		if res.Status == StatusFailed {
			log.Warn("notification channel failed", zap.String("channel", channel), zap.Error(res.Err))
		}
	}
	log.Info("match notification dispatched",
		zap.Int("match_count", e.MatchCount()),
		zap.String("email", string(out.Email.Status)),
		zap.String("in_app", string(out.InApp.Status)),
		zap.String("realtime", string(out.Realtime.Status)),
	)
	return out
}

func (d *Dispatcher) email(ctx context.Context, e domnotif.Event, recipient *domuser.Preferences) Delivery {
	if d.mailer == nil || !d.mailer.Enabled() {
		return Delivery{Status: StatusSkipped}
	}
	if recipient == nil || !recipient.MatchAlertsEnabled() || recipient.Email() == "" {
		return Delivery{Status: StatusSkipped}
	}
	msg, err := renderEmail(e, recipient.Email(), recipient.Name(), d.publicURL)
	if err != nil {
		return failed(err)
	}
	if err := d.mailer.Send(ctx, msg); err != nil {
		return failed(err)
	}
	return Delivery{Status: StatusSent}
}

func (d *Dispatcher) inApp(ctx context.Context, e domnotif.Event) Delivery {
	if d.records == nil {
		return Delivery{Status: StatusSkipped}
	}
	rec := domnotif.RecordFor(d.newID(), e, d.now())
	if err := d.records.Save(ctx, rec); err != nil {
		return failed(err)
	}
	return Delivery{Status: StatusSent}
}

func (d *Dispatcher) push(e domnotif.Event) Delivery {
	if d.realtime == nil || !d.realtime.Connected(e.RecipientUserID) {
		return Delivery{Status: StatusSkipped}
	}
	n, err := d.realtime.Publish(e.RecipientUserID, EventMatchFound, domnotif.RealtimeFor(e))
	if err != nil {
		return failed(err)
	}
	if n == 0 {
		return Delivery{Status: StatusSkipped}
	}
	return Delivery{Status: StatusSent}
}

func failed(err error) Delivery {
	if !errors.Is(err, domain.ErrNotificationChannelFailure) {
		err = fmt.Errorf("%w: %w", domain.ErrNotificationChannelFailure, err)
	}
	return Delivery{Status: StatusFailed, Err: err}
}
