package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/quillboard/backend/internal/proxy"
	"github.com/quillboard/backend/internal/room"
	"go.uber.org/zap"
)

var (
	errMissingRoomManager  = errors.New("room manager dependency required")
	errMissingProxyService = errors.New("proxy service dependency required")
)

type Dependencies struct {
	Rooms  *room.Manager
	Proxy  *proxy.Service
	Logger *zap.Logger
}

func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.Rooms == nil {
		return nil, errMissingRoomManager
	}
	if deps.Proxy == nil {
		return nil, errMissingProxyService
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodOptions},
		AllowHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))

	handler := &httpHandler{
		rooms:  deps.Rooms,
		logger: logger,
	}

	router.GET("/healthz", handler.handleHealth)
	router.GET("/rooms/:room", handler.handleRoomSocket)
	router.GET("/proxy", deps.Proxy.Handle)

	return router, nil
}

type httpHandler struct {
	rooms  *room.Manager
	logger *zap.Logger
}

func (h *httpHandler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
