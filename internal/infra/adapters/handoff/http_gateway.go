package handoff

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"support-widget-engine/internal/domain/ports/adapter"
)

// Compile-time assurance this adapter satisfies the port
var _ adapter.HumanHandoffService = (*HTTPGateway)(nil)

// HTTPGateway escalates a conversation to the external agent backend.
// One POST, no retry: the lifecycle layer shows a toast on failure and
// the visitor can ask again.
type HTTPGateway struct {
	url    string
	apiKey string
	client *http.Client
}

func NewHTTPGateway(url, apiKey string, timeout time.Duration) (*HTTPGateway, error) {
	if url == "" {
		return nil, errors.New("handoff url empty")
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPGateway{
		url:    url,
		apiKey: apiKey,
		client: &http.Client{Timeout: timeout},
	}, nil
}

func (g *HTTPGateway) RequestHandoff(ctx context.Context, hr adapter.HandoffRequest) (string, error) {
	b, err := json.Marshal(hr)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url, bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if g.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.apiKey)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("handoff http %d", resp.StatusCode)
	}

	var payload struct {
		ChatID string `json:"chatId"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", err
	}
	if payload.ChatID == "" {
		return "", errors.New("handoff response missing chatId")
	}
	return payload.ChatID, nil
}
