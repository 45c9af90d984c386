package callback

import (
	"context"

	"github.com/slack-go/slack"
)

// WebhookNotifier posts to a fixed Slack incoming webhook URL. It is the
// concrete SlackNotifier used in production when SLACK_WEBHOOK_URL is
// configured.
type WebhookNotifier struct {
	WebhookURL string
}

func NewWebhookNotifier(webhookURL string) *WebhookNotifier {
	return &WebhookNotifier{WebhookURL: webhookURL}
}

func (n *WebhookNotifier) Notify(_ context.Context, text string) error {
	return slack.PostWebhook(n.WebhookURL, &slack.WebhookMessage{Text: text})
}
