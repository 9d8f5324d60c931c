// internal/service/webhook.go
package service

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/unclebandit/chatleopard-backend/internal/model"
	"github.com/unclebandit/chatleopard-backend/internal/queue"
	"github.com/unclebandit/chatleopard-backend/internal/repository"
)

// Notifier fires outbound webhook events and mirrors them to RabbitMQ when
// one is configured. Everything here is fire-and-forget: failures are logged
// and never block or fail the caller.
type Notifier struct {
	Settings *repository.SettingsStore
	AMQP     *queue.AMQPPublisher // nil when AMQP_URL is unset
	Bus      queue.Queue          // in-process mirror for local consumers
	Client   *http.Client
	Log      *zap.SugaredLogger
}

// Emit sends the event asynchronously.
func (n *Notifier) Emit(event string, data any) {
	payload := model.WebhookEvent{
		Event:     event,
		Data:      data,
		Timestamp: time.Now(),
		Source:    "chatleopard",
	}
	go n.deliver(payload)
}

// EmitSync delivers inline and reports whether the webhook POST succeeded.
// Used by the webhook-test endpoint.
func (n *Notifier) EmitSync(event string, data any) bool {
	payload := model.WebhookEvent{
		Event:     event,
		Data:      data,
		Timestamp: time.Now(),
		Source:    "chatleopard",
	}
	return n.deliver(payload)
}

func (n *Notifier) deliver(payload model.WebhookEvent) bool {
	delivered := false

	if n.Bus != nil {
		_ = n.Bus.Publish(queue.TopicEvents, payload)
	}

	settings, err := n.Settings.Get()
	if err != nil {
		n.Log.Warnw("webhook settings unavailable", "error", err)
		return false
	}

	if settings.WebhookURL != "" {
		body, err := json.Marshal(payload)
		if err == nil {
			client := n.Client
			if client == nil {
				client = &http.Client{Timeout: 10 * time.Second}
			}
			resp, err := client.Post(settings.WebhookURL, "application/json", bytes.NewReader(body))
			if err != nil {
				n.Log.Warnw("webhook delivery failed", "event", payload.Event, "error", err)
			} else {
				resp.Body.Close()
				delivered = resp.StatusCode >= 200 && resp.StatusCode < 300
				if !delivered {
					n.Log.Warnw("webhook rejected", "event", payload.Event, "status", resp.StatusCode)
				}
			}
		}
	}

	if n.AMQP != nil {
		if err := n.AMQP.PublishEvent(payload); err != nil {
			n.Log.Warnw("amqp event publish failed", "event", payload.Event, "error", err)
		}
	}

	return delivered
}
