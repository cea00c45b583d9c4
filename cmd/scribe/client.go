package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"scribe/internal/config"
)

// client talks to the scribed management API. The address comes from the
// --addr flag when given, otherwise from the configured api_bind.
type client struct {
	addrFlag   *string
	configFlag *string
	http       *http.Client
}

func newClient(addrFlag, configFlag *string) *client {
	return &client{
		addrFlag:   addrFlag,
		configFlag: configFlag,
		http:       &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *client) baseURL() (string, error) {
	addr := strings.TrimSpace(*c.addrFlag)
	if addr == "" {
		cfg, _, _, err := config.Load(*c.configFlag)
		if err != nil {
			return "", fmt.Errorf("load config: %w", err)
		}
		addr = strings.TrimSpace(cfg.Paths.APIBind)
	}
	if addr == "" {
		return "", fmt.Errorf("no daemon address configured; set paths.api_bind or pass --addr")
	}
	if !strings.Contains(addr, "://") {
		addr = "http://" + addr
	}
	return strings.TrimRight(addr, "/"), nil
}

func (c *client) get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

func (c *client) post(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPost, path, body, out)
}

func (c *client) do(ctx context.Context, method, path string, body, out any) error {
	base, err := c.baseURL()
	if err != nil {
		return err
	}

	var payload io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		payload = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, base+path, payload)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("is scribed running? request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var apiErr struct {
			Error string `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Error != "" {
			return fmt.Errorf("daemon: %s", apiErr.Error)
		}
		return fmt.Errorf("daemon returned %s", resp.Status)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
