package handler

import (
	"errors"
	"fmt"
	"net/http"
	"path"

	"github.com/EternisAI/crooked-keys/internal/api/http/dto"
	"github.com/EternisAI/crooked-keys/internal/provisioning"
	"github.com/gin-gonic/gin"
)

var exampleRequest = dto.GetVPNRequest{Name: "Aunt Sally", Device: "iPhone"}

// maxRequestBody caps the get-vpn body; both fields are at most 64 characters.
const maxRequestBody = 4 << 10

type VPNHandler struct {
	provisioningService *provisioning.Service
	pathPrefix          string
}

func NewVPNHandler(provisioningService *provisioning.Service, pathPrefix string) *VPNHandler {
	return &VPNHandler{
		provisioningService: provisioningService,
		pathPrefix:          pathPrefix,
	}
}

// GetVPN issues a new credential
// POST /get-vpn
func (h *VPNHandler) GetVPN(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxRequestBody)

	var req dto.GetVPNRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Request body too large"})
			return
		}
		c.JSON(http.StatusBadRequest, dto.ValidationErrorResponse{
			Error:   "Name and device type are required",
			Example: exampleRequest,
		})
		return
	}

	result, err := h.provisioningService.Issue(c.Request.Context(), req.Name, req.Device, c.ClientIP())
	if err != nil {
		if errors.Is(err, provisioning.ErrValidation) {
			c.JSON(http.StatusBadRequest, dto.ValidationErrorResponse{
				Error:   err.Error(),
				Example: exampleRequest,
			})
			return
		}
		if respondLimited(c, err) {
			return
		}
		respondInternal(c, "VPN config generation failed", err, dto.ServerErrorResponse{
			Error:   "Failed to generate VPN configuration",
			Message: "Please try again or contact support",
		}, "client_ip", c.ClientIP())
		return
	}

	c.JSON(http.StatusOK, dto.GetVPNResponse{
		Success: true,
		Client: dto.VPNClient{
			Name:      result.Client.Name,
			Device:    result.Client.Device,
			IPAddress: result.Client.IPAddress,
			ID:        result.Client.ID,
		},
		Config: result.Config,
		QRCode: result.QRCode,
		Instructions: dto.Instructions{
			Step1:       "Install WireGuard app on your device",
			Step2:       "Either scan the QR code or import the config file",
			Step3:       step3(result.AccessNote),
			DownloadURL: path.Join(h.pathPrefix, "download-config", result.Client.ID),
		},
	})
}

// DownloadConfig re-renders the config of an active credential as a file
// GET /download-config/:id
func (h *VPNHandler) DownloadConfig(c *gin.Context) {
	id := c.Param("id")

	dl, err := h.provisioningService.Download(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, provisioning.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Config not found"})
			return
		}
		respondInternal(c, "Config download failed", err, gin.H{"error": "Download failed"}, "client_id", id)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", dl.Filename))
	c.Data(http.StatusOK, "application/octet-stream", []byte(dl.Config))
}

func step3(accessNote string) string {
	if accessNote == "" {
		return "Connect to the VPN"
	}
	return "Connect to access " + accessNote
}
