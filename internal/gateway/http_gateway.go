package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Karenfernandes20/integrai-sub001/internal/domain"
)

// HTTPPairingGateway implements PairingGateway over the gateway's REST API
type HTTPPairingGateway struct {
	httpClient *http.Client
}

// NewHTTPPairingGateway creates a new HTTP pairing gateway client.
// The timeout bounds every call regardless of the caller's context.
func NewHTTPPairingGateway(timeout time.Duration) *HTTPPairingGateway {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPPairingGateway{
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type pairingResponse struct {
	Kind      string    `json:"kind"`
	Payload   string    `json:"payload"`
	ExpiresAt time.Time `json:"expires_at"`
}

type statusResponse struct {
	State            string `json:"state"`
	RemoteIdentifier string `json:"remote_identifier,omitempty"`
}

// StartPairing registers the instance with the gateway and returns the pairing challenge
func (g *HTTPPairingGateway) StartPairing(ctx context.Context, ep Endpoint, instanceKey, credential string) (*PairingChallenge, error) {
	url := fmt.Sprintf("%s/sessions/%s/pair", strings.TrimRight(ep.BaseURL, "/"), instanceKey)

	body := strings.NewReader(fmt.Sprintf(`{"credential":%q}`, credential))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if ep.Secret != "" {
		req.Header.Set("Authorization", "Bearer "+ep.Secret)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	defer resp.Body.Close()

	if err := classifyStatusCode(resp.StatusCode); err != nil {
		return nil, err
	}

	var pr pairingResponse
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return nil, fmt.Errorf("failed to decode pairing response: %w", err)
	}

	return &PairingChallenge{
		InstanceKey: instanceKey,
		Kind:        pr.Kind,
		Payload:     pr.Payload,
		ExpiresAt:   pr.ExpiresAt,
	}, nil
}

// FetchStatus reports the gateway's current view of the instance
func (g *HTTPPairingGateway) FetchStatus(ctx context.Context, ep Endpoint, instanceKey string) (*RemoteStatus, error) {
	url := fmt.Sprintf("%s/sessions/%s/status", strings.TrimRight(ep.BaseURL, "/"), instanceKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if ep.Secret != "" {
		req.Header.Set("Authorization", "Bearer "+ep.Secret)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	defer resp.Body.Close()

	// A session the gateway does not know yet is not an error
	if resp.StatusCode == http.StatusNotFound {
		return &RemoteStatus{InstanceKey: instanceKey, Status: domain.StatusUnknown}, nil
	}
	if err := classifyStatusCode(resp.StatusCode); err != nil {
		return nil, err
	}

	var sr statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("failed to decode status response: %w", err)
	}

	status := domain.InstanceStatus(sr.State)
	if !status.IsValid() {
		status = domain.StatusUnknown
	}
	return &RemoteStatus{
		InstanceKey:      instanceKey,
		Status:           status,
		RemoteIdentifier: sr.RemoteIdentifier,
	}, nil
}

// Disconnect tears down the instance session
func (g *HTTPPairingGateway) Disconnect(ctx context.Context, ep Endpoint, instanceKey string) error {
	url := fmt.Sprintf("%s/sessions/%s", strings.TrimRight(ep.BaseURL, "/"), instanceKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if ep.Secret != "" {
		req.Header.Set("Authorization", "Bearer "+ep.Secret)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return classifyTransportError(err)
	}
	defer resp.Body.Close()

	// Already gone counts as disconnected
	if resp.StatusCode == http.StatusNotFound {
		return nil
	}
	return classifyStatusCode(resp.StatusCode)
}

// Any transport failure, timeouts included, means the gateway is unreachable
func classifyTransportError(err error) error {
	return fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
}

func classifyStatusCode(code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return fmt.Errorf("%w: status %d", ErrGatewayRejected, code)
	case code >= 500:
		return fmt.Errorf("%w: status %d", ErrGatewayUnavailable, code)
	default:
		return fmt.Errorf("%w: status %d", ErrGatewayRejected, code)
	}
}
