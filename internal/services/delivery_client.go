package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DeliveryClient pushes notifications to the external delivery service
// (email, push, messenger) over its internal HTTP API.
type DeliveryClient struct {
	baseURL    string
	httpClient *http.Client
	log        *zap.Logger
}

func NewDeliveryClient(baseURL string, log *zap.Logger) *DeliveryClient {
	return &DeliveryClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		log: log,
	}
}

type DeliveryRequest struct {
	UserIDs []string `json:"user_ids"`
	Text    string   `json:"text"`
	Link    string   `json:"link,omitempty"`
}

type DeliveryResult struct {
	Accepted int `json:"accepted"`
	Rejected int `json:"rejected"`
}

// Deliver sends one message to a batch of users.
func (c *DeliveryClient) Deliver(ctx context.Context, userIDs []uuid.UUID, text, link string) (*DeliveryResult, error) {
	ids := make([]string, len(userIDs))
	for i, id := range userIDs {
		ids[i] = id.String()
	}
	body, err := json.Marshal(DeliveryRequest{UserIDs: ids, Text: text, Link: link})
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/internal/notify", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("delivery service unavailable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("delivery service returned %d: %s", resp.StatusCode, string(b))
	}

	var result DeliveryResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil && err != io.EOF {
		return nil, err
	}
	if result.Rejected > 0 {
		c.log.Warn("delivery service rejected recipients",
			zap.Int("accepted", result.Accepted),
			zap.Int("rejected", result.Rejected),
		)
	}
	return &result, nil
}
