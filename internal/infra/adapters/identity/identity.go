package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"support-widget-engine/internal/domain/ports/adapter"
)

var _ adapter.IdentificationService = (*OpenService)(nil)

// OpenService is the default: every profile may send without
// identifying. Installations that gate on identification swap in the
// HTTP service below.
type OpenService struct{}

func NewOpenService() *OpenService { return &OpenService{} }

func (OpenService) CanSendMessage(ctx context.Context, profileID string) (bool, error) {
	return true, nil
}

func (OpenService) UserContext(ctx context.Context, profileID string) (*adapter.UserData, error) {
	return nil, nil
}

var _ adapter.IdentificationService = (*HTTPService)(nil)

// HTTPService asks the external identification backend whether a
// profile has completed the flow, and for the snapshot it produced.
type HTTPService struct {
	base   string
	apiKey string
	client *http.Client
}

func NewHTTPService(baseURL, apiKey string, timeout time.Duration) (*HTTPService, error) {
	if baseURL == "" {
		return nil, errors.New("identity base url empty")
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPService{
		base:   baseURL,
		apiKey: apiKey,
		client: &http.Client{Timeout: timeout},
	}, nil
}

func (s *HTTPService) CanSendMessage(ctx context.Context, profileID string) (bool, error) {
	var payload struct {
		Allowed bool `json:"allowed"`
	}
	if err := s.get(ctx, fmt.Sprintf("%s/profiles/%s/can-send", s.base, profileID), &payload); err != nil {
		return false, err
	}
	return payload.Allowed, nil
}

func (s *HTTPService) UserContext(ctx context.Context, profileID string) (*adapter.UserData, error) {
	var payload adapter.UserData
	if err := s.get(ctx, fmt.Sprintf("%s/profiles/%s/context", s.base, profileID), &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

func (s *HTTPService) get(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("identity http %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
