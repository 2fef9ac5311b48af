// Package tesla names the external vehicle-API collaborator (§6): fetching vehicle
// data, listing vehicles, and refreshing OAuth2 credentials. Per spec.md §1 this
// client's internals are explicitly out of scope; this package only fixes the
// interface the rest of the system programs against, plus a minimal HTTP-backed
// implementation so the poller and token manager have something real to call.
package tesla

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/evtrack/fleetlogger/internal/apperr"
	"github.com/evtrack/fleetlogger/internal/models"
)

// Client is the collaborator the poller and token manager depend on.
type Client interface {
	// Vehicles lists the upstream vehicle ids visible to the current credential.
	Vehicles(ctx context.Context) ([]string, error)
	// FetchSnapshot retrieves the current vehicle_data payload for one vehicle id.
	FetchSnapshot(ctx context.Context, vehicleID string) (*models.VehicleSnapshot, error)
	// RefreshToken exchanges a refresh token for a new credential set.
	RefreshToken(ctx context.Context, refreshToken string) (models.AuthResponse, error)
}

// HTTPClient is the minimal real implementation: GET /vehicles, GET
// /vehicles/{id}/vehicle_data, and the OAuth2 refresh_token grant, each bounded by
// a client-level deadline per §5 ("every external HTTP call carries a client-level
// deadline (10s)").
type HTTPClient struct {
	baseURL     string
	oauthURL    string
	clientID    string
	accessToken func() string
	http        *http.Client
	limiter     *rate.Limiter
}

const requestTimeout = 10 * time.Second

// NewHTTPClient builds a client rate-limited to one request per second with a burst
// of 2, matching the poller's cadence-respecting backoff described in SPEC_FULL's
// domain stack notes rather than ad-hoc sleeps.
func NewHTTPClient(baseURL, oauthURL, clientID string, accessToken func() string) *HTTPClient {
	return &HTTPClient{
		baseURL:     baseURL,
		oauthURL:    oauthURL,
		clientID:    clientID,
		accessToken: accessToken,
		http:        &http.Client{Timeout: requestTimeout},
		limiter:     rate.NewLimiter(rate.Limit(1), 2),
	}
}

func (c *HTTPClient) Vehicles(ctx context.Context) ([]string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/vehicles", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken())

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.Transient, err)
	}
	defer resp.Body.Close()

	if err := classifyStatus(resp.StatusCode); err != nil {
		return nil, err
	}

	var body struct {
		Response []struct {
			ID    string `json:"id_s"`
			State string `json:"state"`
		} `json:"response"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: decoding vehicle list: %v", apperr.Transient, err)
	}

	ids := make([]string, 0, len(body.Response))
	for _, v := range body.Response {
		ids = append(ids, v.ID)
	}
	return ids, nil
}

func (c *HTTPClient) FetchSnapshot(ctx context.Context, vehicleID string) (*models.VehicleSnapshot, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/vehicles/"+vehicleID+"/vehicle_data", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken())

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.Transient, err)
	}
	defer resp.Body.Close()

	if err := classifyStatus(resp.StatusCode); err != nil {
		return nil, err
	}

	var snap models.VehicleSnapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		return nil, fmt.Errorf("%w: decoding vehicle_data: %v", apperr.MalformedSnapshot, err)
	}
	return &snap, nil
}

func (c *HTTPClient) RefreshToken(ctx context.Context, refreshToken string) (models.AuthResponse, error) {
	form := fmt.Sprintf("grant_type=refresh_token&client_id=%s&refresh_token=%s", c.clientID, refreshToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.oauthURL,
		strings.NewReader(form))
	if err != nil {
		return models.AuthResponse{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return models.AuthResponse{}, fmt.Errorf("%w: %v", apperr.Transient, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return models.AuthResponse{}, apperr.TokenExpired
	}
	if err := classifyStatus(resp.StatusCode); err != nil {
		return models.AuthResponse{}, err
	}

	var out models.AuthResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return models.AuthResponse{}, fmt.Errorf("%w: decoding refresh response: %v", apperr.Transient, err)
	}
	return out, nil
}

func classifyStatus(code int) error {
	switch {
	case code == http.StatusTooManyRequests:
		return apperr.RateLimited
	case code == http.StatusUnauthorized:
		return apperr.TokenExpired
	case code == http.StatusRequestTimeout || code == http.StatusGatewayTimeout:
		return apperr.RequestTimeout
	case code >= 500:
		return apperr.Transient
	case code >= 400:
		return fmt.Errorf("%w: upstream returned %d", apperr.Transient, code)
	}
	return nil
}
