package handler

import (
	"net/http"
	"time"

	"github.com/EternisAI/crooked-keys/internal/api/http/dto"
	"github.com/gin-gonic/gin"
)

const serviceName = "crooked-keys"

type HealthHandler struct {
	version string
}

func NewHealthHandler(version string) *HealthHandler {
	if version == "" {
		version = "dev"
	}
	return &HealthHandler{version: version}
}

func (h *HealthHandler) Check(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, dto.HealthResponse{
		Status:    "healthy",
		Version:   h.version,
		Timestamp: time.Now().UTC(),
		Service:   serviceName,
	})
}
