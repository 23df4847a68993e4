package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"ahtracker/internal/repository"
	"ahtracker/internal/service"
)

type ScanHandler struct {
	Service *service.ScanService
	Repo    repository.Repository
	Logger  *zap.Logger
}

func (h *ScanHandler) Register(r *gin.Engine) {
	r.POST("/api/v1/scan/run", h.run)
	r.GET("/api/v1/scan/status", h.status)
}

// @Summary Trigger one auction scan
// @Tags scan
// @Success 200 {object} service.ScanResult
// @Failure 409 {object} map[string]string
// @Failure 500 {object} map[string]string
// @Router /api/v1/scan/run [post]
func (h *ScanHandler) run(c *gin.Context) {
	result, err := h.Service.Run(c.Request.Context())
	if err != nil {
		if errors.Is(err, service.ErrScanInProgress) {
			Error(c, http.StatusConflict, err.Error(), nil)
			return
		}
		if h.Logger != nil {
			h.Logger.Error("scan run failed", zap.Error(err))
		}
		Error(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	if result.Status == service.StatusNoop {
		Ok(c, result, map[string]any{"message": "no new data available"})
		return
	}
	Ok(c, result, nil)
}

// @Summary Scan cursor state per scope
// @Tags scan
// @Success 200 {array} models.ScanState
// @Router /api/v1/scan/status [get]
func (h *ScanHandler) status(c *gin.Context) {
	states, err := h.Repo.ListScanStates(c.Request.Context())
	if err != nil {
		Error(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	Ok(c, states, map[string]any{"total": len(states)})
}
