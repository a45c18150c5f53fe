package tests

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/netip"
	"strings"
	"sync"
	"testing"

	"github.com/EternisAI/crooked-keys/internal/api/http/dto"
	"github.com/EternisAI/crooked-keys/internal/clients"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func issue(t *testing.T, router *gin.Engine, name, device string) dto.GetVPNResponse {
	t.Helper()
	rr := doJSON(router, http.MethodPost, "/get-vpn", dto.GetVPNRequest{Name: name, Device: device})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var resp dto.GetVPNResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	return resp
}

func list(t *testing.T, router *gin.Engine) dto.ListClientsResponse {
	t.Helper()
	rr := doJSON(router, http.MethodGet, "/clients", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp dto.ListClientsResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.NotContains(t, rr.Body.String(), "privateKey")
	return resp
}

// TestCredentialLifecycle walks one credential through issue, download,
// listing and revocation.
func TestCredentialLifecycle(t *testing.T, router *gin.Engine) {
	before := list(t, router).Count

	issued := issue(t, router, "Aunt Sally", "iPhone")
	assert.True(t, issued.Success)
	assert.True(t, strings.HasPrefix(issued.QRCode, "data:image/png;base64,"))
	assert.Equal(t, Prefix+"/download-config/"+issued.Client.ID, issued.Instructions.DownloadURL)

	t.Run("download", func(t *testing.T) {
		rr := doJSON(router, http.MethodGet, "/download-config/"+issued.Client.ID, nil)
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, `attachment; filename="Aunt_Sally_iPhone.conf"`, rr.Header().Get("Content-Disposition"))
		assert.Contains(t, rr.Body.String(), "Address = "+issued.Client.IPAddress+"/32")
	})

	t.Run("listed", func(t *testing.T) {
		resp := list(t, router)
		assert.Equal(t, before+1, resp.Count)
	})

	t.Run("revoke", func(t *testing.T) {
		rr := doJSON(router, http.MethodDelete, "/clients/"+issued.Client.ID, nil)
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), "Access revoked for Aunt Sally")

		rr = doJSON(router, http.MethodDelete, "/clients/"+issued.Client.ID, nil)
		assert.Equal(t, http.StatusOK, rr.Code)

		rr = doJSON(router, http.MethodGet, "/download-config/"+issued.Client.ID, nil)
		assert.Equal(t, http.StatusNotFound, rr.Code)

		for _, c := range list(t, router).Clients {
			if c.ID == issued.Client.ID {
				assert.Equal(t, clients.StatusRevoked, c.Status)
				assert.NotNil(t, c.RevokedAt)
			}
		}
	})

	t.Run("address reused after revoke", func(t *testing.T) {
		again := issue(t, router, "Aunt Sally", "iPad")
		assert.Equal(t, issued.Client.IPAddress, again.Client.IPAddress)
	})

	t.Run("unknown ids", func(t *testing.T) {
		assert.Equal(t, http.StatusNotFound, doJSON(router, http.MethodDelete, "/clients/nope", nil).Code)
		assert.Equal(t, http.StatusNotFound, doJSON(router, http.MethodGet, "/download-config/nope", nil).Code)
	})
}

// TestConcurrentIssue issues n credentials in parallel, spread over the given
// routers, and checks that every active address is distinct.
func TestConcurrentIssue(t *testing.T, n int, routers ...*gin.Engine) {
	var (
		mu    sync.Mutex
		addrs = make(map[string]string)
	)

	var g errgroup.Group
	for i := 0; i < n; i++ {
		router := routers[i%len(routers)]
		g.Go(func() error {
			rr := doJSON(router, http.MethodPost, "/get-vpn", dto.GetVPNRequest{Name: fmt.Sprintf("user-%d", i), Device: "laptop"})
			if rr.Code != http.StatusOK {
				return fmt.Errorf("request %d: HTTP %d: %s", i, rr.Code, rr.Body.String())
			}
			var resp dto.GetVPNResponse
			if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
				return err
			}

			mu.Lock()
			defer mu.Unlock()
			if other, dup := addrs[resp.Client.IPAddress]; dup {
				return fmt.Errorf("address %s issued to both %s and %s", resp.Client.IPAddress, other, resp.Client.ID)
			}
			addrs[resp.Client.IPAddress] = resp.Client.ID
			return nil
		})
	}
	require.NoError(t, g.Wait())
	assert.Len(t, addrs, n)

	active := make(map[netip.Addr]bool)
	for _, c := range list(t, routers[0]).Clients {
		if c.Status != clients.StatusActive {
			continue
		}
		addr := netip.MustParseAddr(c.IPAddress)
		assert.False(t, active[addr], "two active records hold %s", addr)
		active[addr] = true
	}
}

// TestIssueRateLimit expects the issuance limiter to admit limit requests per
// origin and refuse the next one.
func TestIssueRateLimit(t *testing.T, router *gin.Engine, limit int) {
	origin := "198.51.100.23:5000"
	for i := 0; i < limit; i++ {
		rr := doJSONFrom(router, http.MethodPost, "/get-vpn", dto.GetVPNRequest{Name: "limited", Device: fmt.Sprint(i)}, origin)
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	}

	before := list(t, router).Count
	rr := doJSONFrom(router, http.MethodPost, "/get-vpn", dto.GetVPNRequest{Name: "limited", Device: "one-more"}, origin)
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("Retry-After"))
	assert.Equal(t, before, list(t, router).Count)
}
