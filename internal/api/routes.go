package api

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/satriahrh/kirana/internal/auth"
	"github.com/satriahrh/kirana/internal/websocket"
	"github.com/satriahrh/kirana/usecase"
)

// InitRoutes initializes all API routes
func InitRoutes(e *echo.Echo, hub *websocket.Hub, store *usecase.SessionStore, logger *zap.Logger) {
	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"service": "kirana-server",
		})
	})

	// API v1 routes
	v1 := e.Group("/api/v1")

	v1.POST("/clients/token", func(c echo.Context) error {
		return issueClientToken(c, logger)
	})

	// Read-only session access for tooling; the live UI uses the WebSocket.
	v1.GET("/sessions", func(c echo.Context) error {
		sessions, activeID := store.Snapshot()
		return c.JSON(http.StatusOK, map[string]interface{}{
			"sessions":  sessions,
			"active_id": activeID,
		})
	})

	// WebSocket endpoint with JWT validation
	e.GET("/ws", func(c echo.Context) error {
		return websocketWithAuth(hub, c, logger)
	})
}

// issueClientToken hands a short-lived token to a UI client. There is no
// account system; the token exists so the WebSocket endpoint is not wide open.
func issueClientToken(c echo.Context, logger *zap.Logger) error {
	var req TokenRequest
	if err := c.Bind(&req); err != nil {
		logger.Error("Failed to bind token request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}

	clientID := uuid.New().String()
	token, err := auth.GenerateClientToken(clientID)
	if err != nil {
		logger.Error("Failed to generate client token", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "token_generation_failed",
			Message: "Failed to generate authentication token",
		})
	}

	logger.Info("Client token issued",
		zap.String("client_id", clientID),
		zap.String("client_name", req.ClientName))

	return c.JSON(http.StatusOK, TokenResponse{
		Token:     token,
		ExpiresAt: time.Now().Add(24 * time.Hour),
		ClientID:  clientID,
	})
}

// websocketWithAuth handles WebSocket connections with JWT authentication
func websocketWithAuth(hub *websocket.Hub, c echo.Context, logger *zap.Logger) error {
	// Browsers cannot set headers on WebSocket upgrades, so the token also
	// rides the query string.
	var token string
	authHeader := c.Request().Header.Get("Authorization")
	if len(authHeader) > 7 && authHeader[:7] == "Bearer " {
		token = authHeader[7:]
	}
	if token == "" {
		token = c.QueryParam("token")
	}

	if token == "" {
		logger.Warn("WebSocket connection rejected: missing token")
		return c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "missing_token",
			Message: "JWT token is required",
		})
	}

	claims, err := auth.ValidateToken(token)
	if err != nil {
		logger.Warn("WebSocket connection rejected: invalid token", zap.Error(err))
		return c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "invalid_token",
			Message: "Invalid or expired JWT token",
		})
	}

	if claims.ClientID == "" {
		logger.Error("WebSocket connection rejected: missing client ID in token")
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_token_claims",
			Message: "Client ID not found in token",
		})
	}

	logger.Info("WebSocket connection authenticated",
		zap.String("client_id", claims.ClientID))

	return websocket.HandleWebSocket(hub, c, claims.ClientID, logger)
}
