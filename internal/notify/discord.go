package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"
)

// DiscordSender posts alerts to a channel webhook.
type DiscordSender struct {
	webhookURL string
	client     *http.Client
}

// NewDiscordSender creates a DiscordSender for a webhook URL.
func NewDiscordSender(webhookURL string) *DiscordSender {
	return &DiscordSender{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: senderTimeout},
	}
}

type discordMessage struct {
	Content         string          `json:"content"`
	Username        string          `json:"username"`
	AllowedMentions discordMentions `json:"allowed_mentions"`
	Flags           int             `json:"flags,omitempty"`
}

type discordMentions struct {
	Parse []string `json:"parse"`
}

// discordSuppressNotifications delivers without a push notification.
const discordSuppressNotifications = 1 << 12

// Send posts a under the auction house's name with mention parsing off.
// Bids are delivered silently.
func (d *DiscordSender) Send(ctx context.Context, a Alert) error {
	msg := discordMessage{
		Content:         discordContent(a),
		Username:        "auctionhouse",
		AllowedMentions: discordMentions{Parse: []string{}},
	}
	if quiet(a) {
		msg.Flags = discordSuppressNotifications
	}
	return postJSON(ctx, d.client, "discord", d.webhookURL, msg, discordReject)
}

// discordReject reads Discord's {"message":...,"retry_after":...} reply.
func discordReject(status int, body []byte) *DeliveryError {
	var reply struct {
		Message    string  `json:"message"`
		RetryAfter float64 `json:"retry_after"`
	}
	e := &DeliveryError{Channel: "discord", Status: status}
	if json.Unmarshal(body, &reply) == nil {
		e.Detail = reply.Message
		e.RetryAfter = time.Duration(reply.RetryAfter * float64(time.Second))
	} else {
		e.Detail = strings.TrimSpace(string(body))
	}
	return e
}

// Name implements Sender.
func (d *DiscordSender) Name() string { return "discord" }
