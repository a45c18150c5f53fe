package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/EternisAI/crooked-keys/internal/api/http/dto"
	"github.com/EternisAI/crooked-keys/internal/clients"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfig = "[Interface]\nPrivateKey = x\nAddress = 10.8.0.10/32\n"

func newFakeServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/crooked-keys/get-vpn", func(w http.ResponseWriter, r *http.Request) {
		var req dto.GetVPNRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if req.Device == "flood" {
			w.Header().Set("Retry-After", "3600")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":"Too many VPN config requests, try again in an hour"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(dto.GetVPNResponse{
			Success: true,
			Client:  dto.VPNClient{Name: req.Name, Device: req.Device, IPAddress: "10.8.0.10", ID: "id-1"},
			Config:  testConfig,
			Instructions: dto.Instructions{
				Step1: "Install WireGuard app on your device",
				Step2: "Either scan the QR code or import the config file",
				Step3: "Connect to access Frigate cameras and Home Assistant",
			},
		})
	})

	mux.HandleFunc("GET /api/crooked-keys/clients", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(dto.ListClientsResponse{
			Clients: []clients.Summary{{
				ID: "id-1", Name: "Aunt Sally", Device: "iPhone", IPAddress: "10.8.0.10",
				Status: clients.StatusActive, CreatedAt: time.Now(),
			}},
			Count: 1,
		})
	})

	mux.HandleFunc("DELETE /api/crooked-keys/clients/{id}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") != "id-1" {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":"Client not found"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(dto.RevokeClientResponse{
			Success: true,
			Message: "Access revoked for Aunt Sally",
			Client:  dto.RevokedClient{Name: "Aunt Sally", Device: "iPhone"},
		})
	})

	mux.HandleFunc("GET /api/crooked-keys/download-config/{id}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") != "id-1" {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":"Config not found"}`))
			return
		}
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Header().Set("Content-Disposition", `attachment; filename="Aunt_Sally_iPhone.conf"`)
		_, _ = w.Write([]byte(testConfig))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func run(t *testing.T, srv *httptest.Server, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = &out
	err := app.Run(append([]string{"crooked-keys-cli", "--server", srv.URL}, args...))
	return out.String(), err
}

func TestRequestWritesConfig(t *testing.T) {
	srv := newFakeServer(t)
	dir := filepath.Join(t.TempDir(), "configs")

	out, err := run(t, srv, "request", "--name", "Aunt Sally", "--device", "iPhone", "--out-dir", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "id-1")
	assert.Contains(t, out, "10.8.0.10")

	path := filepath.Join(dir, "Aunt_Sally_iPhone.conf")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, testConfig, string(data))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestRequestRateLimited(t *testing.T) {
	srv := newFakeServer(t)

	_, err := run(t, srv, "request", "--name", "Aunt Sally", "--device", "flood", "--out-dir", t.TempDir())
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusTooManyRequests, apiErr.Status)
	assert.Contains(t, apiErr.Message, "Too many VPN config requests")
	assert.Contains(t, apiErr.Message, "retry after 3600s")
}

func TestRequestRequiresFlags(t *testing.T) {
	srv := newFakeServer(t)

	_, err := run(t, srv, "request", "--name", "Aunt Sally")
	assert.Error(t, err)
}

func TestList(t *testing.T) {
	srv := newFakeServer(t)

	out, err := run(t, srv, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "IP ADDRESS")
	assert.Contains(t, out, "Aunt Sally")
	assert.Contains(t, out, "active")
	assert.Contains(t, out, "1 client(s)")
}

func TestRevoke(t *testing.T) {
	srv := newFakeServer(t)

	out, err := run(t, srv, "revoke", "id-1")
	require.NoError(t, err)
	assert.Contains(t, out, "Access revoked for Aunt Sally")

	_, err = run(t, srv, "revoke", "missing")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
	assert.Equal(t, "Client not found", apiErr.Message)

	_, err = run(t, srv, "revoke")
	assert.Error(t, err)
}

func TestDownload(t *testing.T) {
	srv := newFakeServer(t)
	dir := t.TempDir()

	out, err := run(t, srv, "download", "--out-dir", dir, "id-1")
	require.NoError(t, err)
	assert.Contains(t, out, "Config saved to")

	data, err := os.ReadFile(filepath.Join(dir, "Aunt_Sally_iPhone.conf"))
	require.NoError(t, err)
	assert.Equal(t, testConfig, string(data))

	_, err = run(t, srv, "download", "--out-dir", dir, "missing")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
}

func TestAPIClientURL(t *testing.T) {
	c := newAPIClient("http://vpn.local:3001/", "/api/crooked-keys")
	assert.Equal(t, "http://vpn.local:3001/api/crooked-keys/clients/a%2Fb", c.url("clients", "a/b"))
}
