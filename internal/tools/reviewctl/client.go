package reviewctl

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/polymorphcorp/profilegpt/internal/domain"
)

// Client talks to the running server's admin API.
type Client struct {
	baseURL  string
	adminKey string
	http     *http.Client
}

func NewClient(baseURL, adminKey string) *Client {
	return &Client{
		baseURL:  baseURL,
		adminKey: adminKey,
		http:     &http.Client{Timeout: 10 * time.Second},
	}
}

type apiEnvelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) ListPending(ctx context.Context) ([]domain.ExtensionRequest, error) {
	var payload struct {
		Requests []domain.ExtensionRequest `json:"requests"`
	}
	if err := c.do(ctx, http.MethodGet, "/admin/extension-requests?status=pending", nil, &payload); err != nil {
		return nil, err
	}
	return payload.Requests, nil
}

func (c *Client) Approve(ctx context.Context, requestID string, queriesGranted int) error {
	body := map[string]any{"request_id": requestID, "queries_granted": queriesGranted}
	return c.do(ctx, http.MethodPost, "/admin/approve-extension", body, nil)
}

func (c *Client) Deny(ctx context.Context, requestID string) error {
	body := map[string]any{"request_id": requestID}
	return c.do(ctx, http.MethodPost, "/admin/deny-extension", body, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("X-Admin-Key", c.adminKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var env apiEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("%s %s: status %d, undecodable body", method, path, resp.StatusCode)
	}
	if !env.Success {
		if env.Error != nil {
			return fmt.Errorf("%s %s: %s (%s)", method, path, env.Error.Message, env.Error.Code)
		}
		return fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode)
	}
	if out != nil {
		return json.Unmarshal(env.Data, out)
	}
	return nil
}
