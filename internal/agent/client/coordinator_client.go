package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"ComputeMesh/internal/coordinator/models"

	"github.com/avast/retry-go/v4"
)

const (
	requestTimeout   = 10 * time.Second
	heartbeatTimeout = 5 * time.Second
	registerAttempts = 3
)

// Client talks to the coordinator's worker API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

func New(baseURL string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: requestTimeout},
		logger:     logger,
	}
}

// Register performs the registration call with a bounded number of retries.
// A 4xx answer means the payload is wrong and retrying is pointless; the
// caller's outer backoff loop handles longer coordinator outages.
func (c *Client) Register(ctx context.Context, req *models.RegisterRequest) (*models.RegisterResponse, error) {
	var resp *models.RegisterResponse

	err := retry.Do(
		func() error {
			var err error
			resp, err = c.register(ctx, req)
			return err
		},
		retry.Context(ctx),
		retry.Attempts(registerAttempts),
		retry.Delay(time.Second),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, err
	}

	return resp, nil
}

func (c *Client) register(ctx context.Context, req *models.RegisterRequest) (*models.RegisterResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, retry.Unrecoverable(fmt.Errorf("failed to marshal register request: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/worker/register", bytes.NewReader(body))
	if err != nil {
		return nil, retry.Unrecoverable(err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCoordinatorUnavailable, err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode >= 400 && httpResp.StatusCode < 500 {
		raw, _ := io.ReadAll(httpResp.Body)
		return nil, retry.Unrecoverable(
			fmt.Errorf("%w: status %d: %s", ErrRegistrationRejected, httpResp.StatusCode, raw))
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: unexpected status %d", ErrCoordinatorUnavailable, httpResp.StatusCode)
	}

	var resp models.RegisterResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("failed to decode register response: %w", err)
	}

	return &resp, nil
}

// Heartbeat is a single-shot call with a short timeout. Failures are the
// caller's problem to log; a slow coordinator must never block the services
// the agent manages.
func (c *Client) Heartbeat(ctx context.Context, req *models.HeartbeatRequest) error {
	ctx, cancel := context.WithTimeout(ctx, heartbeatTimeout)
	defer cancel()

	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal heartbeat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/worker/heartbeat", bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCoordinatorUnavailable, err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: unexpected status %d", ErrCoordinatorUnavailable, httpResp.StatusCode)
	}

	var resp models.HeartbeatResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return fmt.Errorf("failed to decode heartbeat response: %w", err)
	}

	return nil
}

// Unregister is best-effort: the coordinator's health monitor will expire
// the worker anyway if this never arrives.
func (c *Client) Unregister(ctx context.Context, workerID string) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodDelete,
		c.baseURL+"/worker/"+workerID, nil)
	if err != nil {
		return err
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCoordinatorUnavailable, err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("%w: unexpected status %d", ErrCoordinatorUnavailable, httpResp.StatusCode)
	}

	return nil
}
