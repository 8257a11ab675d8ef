package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const DefaultLineAPIURL = "https://api.line.me/v2/bot/message/push"

type lineMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type linePushRequest struct {
	To       string        `json:"to"`
	Messages []lineMessage `json:"messages"`
}

// LineGateway pushes text messages through the LINE Messaging API.
type LineGateway struct {
	url    string
	token  string
	client *http.Client
}

func NewLineGateway(url, accessToken string, timeout time.Duration) *LineGateway {
	if url == "" {
		url = DefaultLineAPIURL
	}
	return &LineGateway{
		url:    url,
		token:  accessToken,
		client: &http.Client{Timeout: timeout},
	}
}

func (g *LineGateway) SendPush(ctx context.Context, recipientID, text string) error {
	if g.token == "" {
		return ErrNotConfigured
	}
	if recipientID == "" {
		return fmt.Errorf("line push: empty recipient id")
	}

	payload, err := json.Marshal(linePushRequest{
		To:       recipientID,
		Messages: []lineMessage{{Type: "text", Text: text}},
	})
	if err != nil {
		return fmt.Errorf("line push: marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("line push: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.token)

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("line push to %s: %w", recipientID, err)
	}
	defer resp.Body.Close()

	// Read at most 1KB of response body.
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &DeliveryError{Channel: "line", StatusCode: resp.StatusCode, Body: string(body)}
	}
	return nil
}
