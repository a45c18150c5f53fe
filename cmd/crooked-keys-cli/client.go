package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/EternisAI/crooked-keys/internal/api/http/dto"
)

// apiClient talks to a running crooked-keys server.
type apiClient struct {
	server string
	prefix string
	http   *http.Client
}

func newAPIClient(server, prefix string) *apiClient {
	return &apiClient{
		server: strings.TrimRight(server, "/"),
		prefix: prefix,
		http:   &http.Client{Timeout: 30 * time.Second},
	}
}

// APIError is a non-2xx answer from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned HTTP %d", e.Status)
	}
	return fmt.Sprintf("server returned HTTP %d: %s", e.Status, e.Message)
}

func (c *apiClient) url(elem ...string) string {
	escaped := make([]string, len(elem))
	for i, e := range elem {
		escaped[i] = url.PathEscape(e)
	}
	return c.server + path.Join(append([]string{"/", c.prefix}, escaped...)...)
}

func (c *apiClient) do(method, endpoint string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to server: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		return nil, readAPIError(resp)
	}
	return resp, nil
}

func readAPIError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	var body struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(data, &body) == nil && body.Error != "" {
		apiErr.Message = body.Error
	} else {
		apiErr.Message = strings.TrimSpace(string(data))
	}
	if retry := resp.Header.Get("Retry-After"); retry != "" && resp.StatusCode == http.StatusTooManyRequests {
		apiErr.Message += " (retry after " + retry + "s)"
	}
	return apiErr
}

func (c *apiClient) doJSON(method, endpoint string, body, out any) error {
	resp, err := c.do(method, endpoint, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

func (c *apiClient) Request(name, device string) (*dto.GetVPNResponse, error) {
	var out dto.GetVPNResponse
	if err := c.doJSON(http.MethodPost, c.url("get-vpn"), dto.GetVPNRequest{Name: name, Device: device}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *apiClient) List() (*dto.ListClientsResponse, error) {
	var out dto.ListClientsResponse
	if err := c.doJSON(http.MethodGet, c.url("clients"), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *apiClient) Revoke(id string) (*dto.RevokeClientResponse, error) {
	var out dto.RevokeClientResponse
	if err := c.doJSON(http.MethodDelete, c.url("clients", id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Download returns the config text and the file name the server suggested.
func (c *apiClient) Download(id string) (string, string, error) {
	resp, err := c.do(http.MethodGet, c.url("download-config", id), nil)
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", "", fmt.Errorf("failed to read config: %w", err)
	}

	filename := id + ".conf"
	if _, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition")); err == nil && params["filename"] != "" {
		filename = params["filename"]
	}
	return string(data), filepath.Base(filename), nil
}
