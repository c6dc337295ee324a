// Package push delivers notifications to student devices through the
// Expo push HTTP gateway. The core only supplies recipient tokens and
// message text; everything past the gateway is out of its hands.
package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Notification is one push message addressed to a set of device tokens.
type Notification struct {
	Tokens []string `json:"tokens"`
	Title  string   `json:"title"`
	Body   string   `json:"body"`
}

// Client posts push messages to the gateway. With Skip set it logs-and-
// drops instead, for environments without push credentials.
type Client struct {
	baseURL string
	skip    bool
	http    *http.Client
}

// New creates a push client.
func New(baseURL string, skip bool) *Client {
	return &Client{
		baseURL: baseURL,
		skip:    skip,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// Result reports the outcome for one recipient token.
type Result struct {
	Token string
	Err   error
}

// Send posts the notification to each token individually, best effort:
// one failed token does not stop the rest.
func (c *Client) Send(ctx context.Context, n Notification) []Result {
	results := make([]Result, 0, len(n.Tokens))
	for _, token := range n.Tokens {
		if token == "" {
			continue
		}
		err := c.sendOne(ctx, token, n.Title, n.Body)
		results = append(results, Result{Token: token, Err: err})
	}
	return results
}

func (c *Client) sendOne(ctx context.Context, token, title, body string) error {
	if c.skip {
		return nil
	}
	payload, err := json.Marshal(map[string]string{
		"to":    token,
		"sound": "default",
		"title": title,
		"body":  body,
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("push: create request failed: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("push: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("push: gateway returned %d: %s", resp.StatusCode, string(raw))
	}
	return nil
}
