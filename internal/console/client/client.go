package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/xela07ax/spaceai-cmdgate/internal/console/api"
	"github.com/xela07ax/spaceai-cmdgate/internal/domain"
)

// Client — HTTP-клиент оператора к API шлюза.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

func New(baseURL, token string, httpClient *http.Client) *Client {
	if httpClient == nil {
		// Без общего таймаута: wait=true держит запрос до решения оператора
		httpClient = &http.Client{}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    httpClient,
	}
}

// Login меняет логин/пароль на токен и запоминает его в клиенте.
func (c *Client) Login(ctx context.Context, username, password string) (*domain.TokenResponse, error) {
	var resp domain.TokenResponse
	err := c.do(ctx, http.MethodPost, "/auth/token", domain.LoginRequest{Username: username, Password: password}, &resp)
	if err != nil {
		return nil, err
	}
	c.token = resp.AccessToken
	return &resp, nil
}

func (c *Client) Execute(ctx context.Context, req api.ExecuteRequest) (*api.ExecuteResponse, error) {
	var resp api.ExecuteResponse
	if err := c.do(ctx, http.MethodPost, "/v1/execute", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) Pending(ctx context.Context) ([]api.PendingCommand, error) {
	var resp []api.PendingCommand
	if err := c.do(ctx, http.MethodGet, "/v1/pending", nil, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) Approve(ctx context.Context, id string) (*api.ExecuteResponse, error) {
	var resp api.ExecuteResponse
	if err := c.do(ctx, http.MethodPost, "/v1/pending/"+url.PathEscape(id)+"/approve", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) Deny(ctx context.Context, id, reason string) error {
	return c.do(ctx, http.MethodPost, "/v1/pending/"+url.PathEscape(id)+"/deny", api.DenyRequest{Reason: reason}, nil)
}

func (c *Client) Whitelist(ctx context.Context) ([]api.WhitelistEntry, error) {
	var resp []api.WhitelistEntry
	if err := c.do(ctx, http.MethodGet, "/v1/whitelist", nil, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) AddToWhitelist(ctx context.Context, entry api.WhitelistEntry) error {
	return c.do(ctx, http.MethodPost, "/v1/whitelist", entry, nil)
}

func (c *Client) UpdateSecurityLevel(ctx context.Context, command string, level domain.SecurityLevel) error {
	return c.do(ctx, http.MethodPut, "/v1/whitelist/"+url.PathEscape(command)+"/level", api.LevelUpdate{SecurityLevel: level}, nil)
}

func (c *Client) RemoveFromWhitelist(ctx context.Context, command string) error {
	return c.do(ctx, http.MethodDelete, "/v1/whitelist/"+url.PathEscape(command), nil, nil)
}

// do: ответ с kind превращается обратно в типизированную ошибку (errors.Is работает на стороне клиента).
func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var rdr io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rdr = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var apiErr api.ErrorResponse
		raw, _ := io.ReadAll(resp.Body)
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Kind != "" {
			return apiErr.AsError()
		}
		return fmt.Errorf("%s %s: %s: %s", method, path, resp.Status, strings.TrimSpace(string(raw)))
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
