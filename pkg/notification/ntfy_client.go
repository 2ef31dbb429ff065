package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultNtfyTimeout = 10 * time.Second

// NtfyClient publishes notifications to an ntfy server.
type NtfyClient struct {
	server     string
	topic      string
	httpClient *http.Client
}

// ntfyMessage is the JSON publish payload accepted at the server root.
type ntfyMessage struct {
	Topic    string   `json:"topic"`
	Title    string   `json:"title,omitempty"`
	Message  string   `json:"message"`
	Tags     []string `json:"tags,omitempty"`
	Priority int      `json:"priority,omitempty"`
}

// NewNtfyClient creates a client for topic on server.
func NewNtfyClient(server, topic string) *NtfyClient {
	return &NtfyClient{
		server:     strings.TrimRight(server, "/"),
		topic:      topic,
		httpClient: &http.Client{Timeout: defaultNtfyTimeout},
	}
}

// Send implements the Notifier interface
func (c *NtfyClient) Send(notification Notification) error {
	return c.SendContext(context.Background(), notification)
}

// SendContext publishes the notification, honouring ctx cancellation.
func (c *NtfyClient) SendContext(ctx context.Context, notification Notification) error {
	body, err := json.Marshal(ntfyMessage{
		Topic:    c.topic,
		Title:    notification.Title,
		Message:  notification.Message,
		Tags:     notification.Tags,
		Priority: notification.Priority,
	})
	if err != nil {
		return fmt.Errorf("failed to encode ntfy message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.server+"/", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create ntfy request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send ntfy notification: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("ntfy returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	// Drain so the connection can be reused.
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
