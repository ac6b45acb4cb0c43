// Package api provides HTTP handlers and routes for the stream module.
// The handlers only translate requests into calls on the session
// controller; all lifecycle logic lives in core/session.
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/go-hclog"
	sErrors "github.com/mantonx/rtsphls/internal/modules/streammodule/errors"
	"github.com/mantonx/rtsphls/internal/modules/streammodule/types"
)

// DefaultMode is used when a start request does not name one
const DefaultMode = "public"

// APIHandler handles the stream control endpoints
type APIHandler struct {
	service StreamService
	logger  hclog.Logger
}

// NewAPIHandler creates a new API handler
func NewAPIHandler(service StreamService, logger hclog.Logger) *APIHandler {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &APIHandler{
		service: service,
		logger:  logger.Named("api"),
	}
}

// StartRequest is the body of POST /api/stream/start. Both spellings of the
// source field are accepted.
type StartRequest struct {
	RTSPURL      string `json:"rtspUrl"`
	RTSPURLSnake string `json:"rtsp_url"`
	Mode         string `json:"mode"`
}

// Source returns whichever source field was set
func (r StartRequest) Source() string {
	if r.RTSPURL != "" {
		return r.RTSPURL
	}
	return r.RTSPURLSnake
}

// StartStream handles POST /api/stream/start
//
// Request body:
//
//	{
//	  "rtspUrl": "string",   // Required (or "rtsp_url")
//	  "mode": "string"       // Optional, defaults to "public"
//	}
//
// Blocks until the stream is ready or has failed (at most ~10s).
func (h *APIHandler) StartStream(c *gin.Context) {
	var req StartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid request format"})
		return
	}

	source := req.Source()
	if source == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "RTSP URL is required"})
		return
	}
	mode := req.Mode
	if mode == "" {
		mode = DefaultMode
	}

	result, err := h.service.StartSession(c.Request.Context(), source, mode)
	if err != nil {
		status := sErrors.HTTPStatus(err)
		if status >= http.StatusInternalServerError {
			h.logger.Error("failed to start stream", "error", err)
		}
		c.JSON(status, gin.H{
			"success": false,
			"error":   sErrors.Message(err),
			"status":  types.StateError,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"hlsUrl":    result.OutputLocator,
		"mode":      result.Mode,
		"status":    result.State,
		"sessionId": result.SessionID,
		"message":   "Stream started successfully",
	})
}

// StopStream handles POST /api/stream/stop. Always succeeds.
func (h *APIHandler) StopStream(c *gin.Context) {
	h.service.StopSession()
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"status":  types.StateStopped,
		"message": "Stream stopped successfully",
	})
}

// GetStatus handles GET /api/stream/status
func (h *APIHandler) GetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.service.GetStatus())
}

// Health handles GET /api/health
func (h *APIHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"stream": h.service.State(),
	})
}
