// Package greenapi is a minimal client for a Green API-style WhatsApp
// gateway: per-instance REST methods addressed as
// {base}/waInstance{id}/{method}/{token}.
package greenapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

type Client interface {
	SendText(ctx context.Context, chatID, text string) (*SendMessageResponse, error)
	ReceiveNotification(ctx context.Context) (*Notification, error)
	DeleteNotification(ctx context.Context, receiptID int64) error
	LastIncomingMessages(ctx context.Context, minutes int) ([]RecentMessage, error)
	LastOutgoingMessages(ctx context.Context, minutes int) ([]RecentMessage, error)
	GetStateInstance(ctx context.Context) (*StateInstanceResponse, error)
}

type ClientConfig struct {
	BaseURL    string
	InstanceID string
	APIToken   string
	Timeout    time.Duration
}

type APIClient struct {
	baseURL    string
	instanceID string
	token      string
	client     *http.Client
}

func NewClient(cfg ClientConfig) Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &APIClient{
		baseURL:    cfg.BaseURL,
		instanceID: cfg.InstanceID,
		token:      cfg.APIToken,
		client:     &http.Client{Timeout: timeout},
	}
}

func (c *APIClient) endpoint(method string) string {
	return fmt.Sprintf("%s/waInstance%s/%s/%s", c.baseURL, c.instanceID, method, c.token)
}

func (c *APIClient) SendText(ctx context.Context, chatID, text string) (*SendMessageResponse, error) {
	payload := map[string]interface{}{
		"chatId":  chatID,
		"message": text,
	}

	var result SendMessageResponse
	if err := c.doJSON(ctx, http.MethodPost, c.endpoint("sendMessage"), payload, &result); err != nil {
		return nil, err
	}
	if result.IDMessage == "" {
		return nil, fmt.Errorf("provider returned no message id")
	}
	return &result, nil
}

// ReceiveNotification pulls the next queued notification, or nil when the
// queue is empty.
func (c *APIClient) ReceiveNotification(ctx context.Context) (*Notification, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("receiveNotification"), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to receive notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("receiveNotification failed with status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read notification body: %w", err)
	}

	// An empty queue is the JSON literal null.
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}

	var notification Notification
	if err := json.Unmarshal(trimmed, &notification); err != nil {
		return nil, fmt.Errorf("failed to decode notification: %w", err)
	}
	return &notification, nil
}

func (c *APIClient) DeleteNotification(ctx context.Context, receiptID int64) error {
	url := fmt.Sprintf("%s/%d", c.endpoint("deleteNotification"), receiptID)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to delete notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("deleteNotification failed with status %d", resp.StatusCode)
	}
	return nil
}

func (c *APIClient) LastIncomingMessages(ctx context.Context, minutes int) ([]RecentMessage, error) {
	return c.recentMessages(ctx, "lastIncomingMessages", minutes)
}

func (c *APIClient) LastOutgoingMessages(ctx context.Context, minutes int) ([]RecentMessage, error) {
	return c.recentMessages(ctx, "lastOutgoingMessages", minutes)
}

func (c *APIClient) recentMessages(ctx context.Context, method string, minutes int) ([]RecentMessage, error) {
	url := c.endpoint(method)
	if minutes > 0 {
		url = fmt.Sprintf("%s?minutes=%d", url, minutes)
	}

	var result []RecentMessage
	if err := c.doJSON(ctx, http.MethodGet, url, nil, &result); err != nil {
		return nil, err
	}
	return result, nil
}

func (c *APIClient) GetStateInstance(ctx context.Context) (*StateInstanceResponse, error) {
	var result StateInstanceResponse
	if err := c.doJSON(ctx, http.MethodGet, c.endpoint("getStateInstance"), nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *APIClient) doJSON(ctx context.Context, method, url string, payload, out interface{}) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal payload: %w", err)
		}
		body = bytes.NewBuffer(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("request failed with status %d", resp.StatusCode)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}
