package handler

import (
	"errors"
	"net/http"

	"github.com/EternisAI/crooked-keys/internal/api/http/dto"
	"github.com/EternisAI/crooked-keys/internal/provisioning"
	"github.com/gin-gonic/gin"
)

type ClientsHandler struct {
	provisioningService *provisioning.Service
}

func NewClientsHandler(provisioningService *provisioning.Service) *ClientsHandler {
	return &ClientsHandler{provisioningService: provisioningService}
}

// List returns every issued credential without key material
// GET /clients
func (h *ClientsHandler) List(c *gin.Context) {
	list, err := h.provisioningService.List(c.Request.Context())
	if err != nil {
		respondInternal(c, "Failed to list clients", err, gin.H{"error": "Failed to retrieve clients"})
		return
	}

	c.JSON(http.StatusOK, dto.ListClientsResponse{
		Clients: list,
		Count:   len(list),
	})
}

// Revoke marks a credential revoked
// DELETE /clients/:id
func (h *ClientsHandler) Revoke(c *gin.Context) {
	id := c.Param("id")

	client, err := h.provisioningService.Revoke(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, provisioning.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Client not found"})
			return
		}
		respondInternal(c, "Failed to revoke client", err, gin.H{"error": "Failed to revoke access"}, "client_id", id)
		return
	}

	c.JSON(http.StatusOK, dto.RevokeClientResponse{
		Success: true,
		Message: "Access revoked for " + client.Name,
		Client: dto.RevokedClient{
			Name:   client.Name,
			Device: client.Device,
		},
	})
}
