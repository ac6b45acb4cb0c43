package api

import (
	"strings"

	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers the stream module routes.
//
// API Structure:
//
//	/api/stream
//	├── POST /start    - Start a live session
//	├── POST /stop     - Stop the live session
//	└── GET  /status   - Session status snapshot
//	/api/health        - Liveness
//	<publicPath>/*file - Manifest and segments
func RegisterRoutes(router gin.IRouter, handler *APIHandler, hls *HLSHandler, publicPath string) {
	stream := router.Group("/api/stream")
	{
		stream.POST("/start", handler.StartStream)
		stream.POST("/stop", handler.StopStream)
		stream.GET("/status", handler.GetStatus)
	}

	router.GET("/api/health", handler.Health)

	if hls != nil {
		prefix := "/" + strings.Trim(publicPath, "/")
		files := router.Group(prefix)
		{
			files.GET("/*file", hls.ServeFile)
			files.HEAD("/*file", hls.ServeFile)
			files.OPTIONS("/*file", hls.Preflight)
		}
	}
}
