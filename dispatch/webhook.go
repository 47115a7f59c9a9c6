package dispatch

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cyberinferno/telemetry-gateway/protocol"
)

// alertCategories are the categories worth waking somebody up for.
var alertCategories = map[Category]bool{
	CategoryPowerFailure: true,
	CategoryBatteryLow:   true,
	CategoryJamming:      true,
}

// WebhookNotifier is a Collaborator that POSTs alert-category frames to a
// webhook URL as a JSON payload. Non-alert notifications are ignored. The
// request body is compatible with chat webhooks that accept a "content"
// field alongside the structured event.
type WebhookNotifier struct {
	// URL is the webhook endpoint to POST alerts to.
	URL string
	// Client is the HTTP client used for delivery; http.DefaultClient-like
	// clients with a timeout are recommended.
	Client *http.Client
}

// NewWebhookNotifier creates a notifier posting alerts to the given URL with
// a 10-second request timeout.
//
// Parameters:
//   - url: The webhook endpoint
//
// Returns:
//   - A new WebhookNotifier
func NewWebhookNotifier(url string) *WebhookNotifier {
	return &WebhookNotifier{
		URL:    url,
		Client: &http.Client{Timeout: 10 * time.Second},
	}
}

// webhookPayload is the JSON body posted for one alert.
type webhookPayload struct {
	Content    string `json:"content"`
	DeviceID   string `json:"device_id"`
	DeviceName string `json:"device_name"`
	Category   string `json:"category"`
	Command    string `json:"command"`
	SendTime   string `json:"send_time"`
	RawFrame   string `json:"raw_frame"`
}

// DeviceIdentified implements Collaborator; identification is not an alert.
func (w *WebhookNotifier) DeviceIdentified(DeviceIdentity) error {
	return nil
}

// FrameReceived implements Collaborator. Alert-category frames are delivered
// to the webhook; everything else is a no-op.
func (w *WebhookNotifier) FrameReceived(identity DeviceIdentity, category Category, frame protocol.Frame) error {
	if !alertCategories[category] {
		return nil
	}

	payload := webhookPayload{
		Content:    fmt.Sprintf("%s alert from device %s (%s)", category, identity.DeviceID, frame.CommandWord),
		DeviceID:   identity.DeviceID,
		DeviceName: identity.DeviceName,
		Category:   category.String(),
		Command:    frame.CommandWord,
		SendTime:   frame.SendTime,
		RawFrame:   frame.RawText,
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	resp, err := w.Client.Post(w.URL, "application/json", bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("deliver webhook: %w", err)
	}
	defer func(body io.ReadCloser) {
		_ = body.Close()
	}(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	return nil
}

// Disconnected implements Collaborator; disconnects are not alerts.
func (w *WebhookNotifier) Disconnected(DeviceIdentity, DisconnectStats) error {
	return nil
}
