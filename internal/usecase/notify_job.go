package usecase

import (
	"context"
	"fmt"
	"time"

	xhttp "drreport/pkg/http"
	applogger "drreport/pkg/logger"
	"drreport/pkg/queue"
)

// ReportReadyEvent is the payload announced when a report reaches computed.
type ReportReadyEvent struct {
	Ticker       string `json:"ticker"`
	BusinessDate string `json:"business_date"`
}

// Broadcaster pushes events to live stream subscribers.
type Broadcaster interface {
	Broadcast(event interface{})
}

// QueueNotifier implements the domain Notifier by enqueueing a webhook job
// and pushing to the live stream. Delivery retries belong to the queue, not
// to the worker that computed the report.
type QueueNotifier struct {
	q queue.QueueService
	b Broadcaster
}

// NewQueueNotifier creates a notifier. Either argument may be nil.
func NewQueueNotifier(q queue.QueueService, b Broadcaster) *QueueNotifier {
	return &QueueNotifier{q: q, b: b}
}

func (n *QueueNotifier) ReportReady(ctx context.Context, canonicalID, businessDate string) error {
	ev := ReportReadyEvent{Ticker: canonicalID, BusinessDate: businessDate}
	if n.b != nil {
		n.b.Broadcast(ev)
	}
	if n.q == nil {
		return nil
	}
	return n.q.PublishMessage(ctx, ReportReadyType, ev)
}

// ReportReadyType is the queue message type for report-ready events.
const ReportReadyType = "report.ready"

// WebhookNotifyJob delivers report-ready events to the bot front-end webhook
// URLs. Returning an error hands the message back to the queue's retry/DLQ
// machinery.
type WebhookNotifyJob struct {
	urls   []string
	client *xhttp.Client
	l      *applogger.Logger
}

func NewWebhookNotifyJob(urls []string, l *applogger.Logger) *WebhookNotifyJob {
	return &WebhookNotifyJob{
		urls:   urls,
		client: xhttp.NewClient(xhttp.WithTimeout(10 * time.Second)),
		l:      l,
	}
}

func (j *WebhookNotifyJob) Name() string { return "report-ready-webhook" }

func (j *WebhookNotifyJob) Type() string { return ReportReadyType }

func (j *WebhookNotifyJob) Handle(ctx context.Context, payload interface{}) error {
	ev, err := queue.ParsePayload[ReportReadyEvent](payload)
	if err != nil {
		return fmt.Errorf("parse report ready payload: %w", err)
	}

	var lastErr error
	for _, url := range j.urls {
		err := j.client.SendAndParse(ctx, &xhttp.RequestOptions{
			Method: xhttp.MethodPost,
			URL:    url,
			Headers: map[string]string{
				"Content-Type": "application/json",
			},
			Body: ev,
		}, nil)
		if err != nil {
			lastErr = fmt.Errorf("webhook %s: %w", url, err)
			j.l.Warn("report ready webhook failed",
				applogger.String("url", url),
				applogger.String("ticker", ev.Ticker),
				applogger.Error(err),
			)
			continue
		}
		j.l.Info("report ready webhook delivered",
			applogger.String("url", url),
			applogger.String("ticker", ev.Ticker),
			applogger.String("business_date", ev.BusinessDate),
		)
	}
	return lastErr
}

var _ queue.Job = (*WebhookNotifyJob)(nil)
