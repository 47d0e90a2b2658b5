// Package notify implements the agent that dispatches a notification for
// every AnomalyDetected event, subject to per-sensor rate limiting and
// evidence-hash deduplication.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/sentineledge/predictive-core/agent"
	"github.com/sentineledge/predictive-core/apperr"
	"github.com/sentineledge/predictive-core/correlation"
	"github.com/sentineledge/predictive-core/domain"
	"github.com/sentineledge/predictive-core/eventbus"
	"github.com/sentineledge/predictive-core/observability"
	"github.com/sentineledge/predictive-core/ratelimit"
)

// Notifier delivers one notification through whatever transport a channel
// name resolves to (email, Slack, pager) — the transport specifics are an
// external collaborator, out of scope for this core.
type Notifier interface {
	Send(ctx context.Context, channel, subject, body string, metadata map[string]string) error
}

// AlertStore persists an AnomalyAlert for audit, independent of whether its
// notification ever succeeds.
type AlertStore interface {
	Persist(ctx context.Context, alert domain.AnomalyAlert) error
}

// Agent subscribes to AnomalyDetected and publishes NotificationDispatched
// on successful delivery. Failed deliveries return an error so the event
// bus's own retry/backoff and DLQ machinery applies; the alert is always
// persisted first, so a DLQ'd notification never loses the underlying
// alert record (resolving the open question in spec.md's Design Notes in
// favor of "persist alert, then DLQ the event").
type Agent struct {
	bus      *eventbus.Bus
	notifier Notifier
	store    AlertStore
	channel  string

	limiter *ratelimit.TokenBucketLimiter
	dedup   *dedupSet

	idGen func() string
	now   func() time.Time

	sub eventbus.Subscription
}

// New constructs a notification Agent. ratePer5Min is the per-sensor token
// replenishment rate (burst 1); dedupWindow is how long an unchanged
// evidence hash suppresses a repeat notification for the same sensor.
func New(bus *eventbus.Bus, notifier Notifier, store AlertStore, channel string, ratePer5Min int, dedupWindow time.Duration, idGen func() string, now func() time.Time) *Agent {
	if ratePer5Min <= 0 {
		ratePer5Min = 1
	}
	perSecond := float64(ratePer5Min) / (5 * 60)
	return &Agent{
		bus:      bus,
		notifier: notifier,
		store:    store,
		channel:  channel,
		limiter:  ratelimit.NewTokenBucketLimiter(perSecond, 1),
		dedup:    newDedupSet(dedupWindow),
		idGen:    idGen,
		now:      now,
	}
}

func (a *Agent) Name() string { return "notification" }

func (a *Agent) Start(ctx context.Context) error {
	a.sub = a.bus.Subscribe(domain.EventAnomalyDetected, "notification", a.handle)
	return nil
}

func (a *Agent) Stop(ctx context.Context) error {
	a.sub.Stop()
	return nil
}

func (a *Agent) Health() agent.HealthReport {
	return agent.HealthReport{Status: agent.HealthHealthy, AsOf: a.now()}
}

func (a *Agent) handle(ctx context.Context, event domain.Event) error {
	body, ok := event.Body.(domain.AnomalyDetectedBody)
	if !ok {
		return fmt.Errorf("notify: unexpected body type %T", event.Body)
	}
	alert := body.Alert

	if err := a.store.Persist(ctx, alert); err != nil {
		return fmt.Errorf("notify: persist alert %s: %w", alert.ID, err)
	}

	if a.dedup.seen(alert.SensorID+"|"+alert.EvidenceHash(), a.now()) {
		observability.NotificationsSentTotal.WithLabelValues(a.channel, "deduped").Inc()
		return nil
	}

	if !a.limiter.Allow(alert.SensorID) {
		observability.NotificationsSentTotal.WithLabelValues(a.channel, "rate_limited").Inc()
		return nil
	}

	subject := fmt.Sprintf("[%s] anomaly on sensor %s", severityLabel(alert.Severity), alert.SensorID)
	metadata := map[string]string{"alert_id": alert.ID, "sensor_id": alert.SensorID}
	if err := a.notifier.Send(ctx, a.channel, subject, alert.Description, metadata); err != nil {
		observability.NotificationsSentTotal.WithLabelValues(a.channel, "failed").Inc()
		return apperr.Wrap(apperr.KindTransient, "notify_send_failed", "notifier dispatch failed", err).WithCorrelation(correlation.MustFrom(ctx))
	}

	observability.NotificationsSentTotal.WithLabelValues(a.channel, "sent").Inc()
	dispatched := domain.NewEvent(domain.EventNotificationDispatched, correlation.MustFrom(ctx), a.Name(),
		domain.NotificationDispatchedBody{AlertID: alert.ID, Channel: a.channel}, a.now(), a.idGen)
	return a.bus.Publish(ctx, dispatched)
}

func severityLabel(severity int) string {
	switch {
	case severity >= 5:
		return "critical"
	case severity >= 4:
		return "high"
	case severity >= 3:
		return "medium"
	default:
		return "low"
	}
}
