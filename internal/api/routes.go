package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rawblock/ecg-auth-engine/internal/auth"
)

// APIHandler exposes the matcher's read-only and administrative operations
// over HTTP, mirroring the subset of the line protocol that makes sense
// for tooling and dashboards rather than a live sample stream.
type APIHandler struct {
	matcher *auth.Matcher
	wsHub   *Hub
}

// SetupRouter wires the health, user-listing, user-deletion and websocket
// event stream routes. Administrative routes sit behind AuthMiddleware;
// throttling login attempts against brute-force lives in auth.Matcher
// itself, keyed by user id rather than source address, since that's where
// the actual login traffic (both this API's and the line protocol's) ends
// up regardless of which surface it arrived on.
func SetupRouter(matcher *auth.Matcher, wsHub *Hub) *gin.Engine {
	r := gin.Default()

	handler := &APIHandler{matcher: matcher, wsHub: wsHub}

	pub := r.Group("/api/v1")
	{
		pub.GET("/health", handler.handleHealth)
		pub.GET("/stream", wsHub.Subscribe)
	}

	protected := r.Group("/api/v1")
	protected.Use(AuthMiddleware())
	{
		protected.GET("/users", handler.handleListUsers)
		protected.DELETE("/users/:id", handler.handleDeleteUser)
	}

	return r
}

func (h *APIHandler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "operational",
		"engine": "ECG Biometric Auth Engine",
	})
}

// handleListUsers mirrors CMD:USERS: enrolled user ids, sample counts, and
// timestamps, without ever exposing a stored feature vector.
func (h *APIHandler) handleListUsers(c *gin.Context) {
	users := h.matcher.ListUsers()

	out := make([]gin.H, 0, len(users))
	for _, u := range users {
		out = append(out, gin.H{
			"userId":     u.UserID,
			"samples":    len(u.Templates),
			"createdAt":  u.CreatedAt,
			"updatedAt":  u.UpdatedAt,
			"loginCount": u.LoginCount,
			"lastLogin":  u.LastLogin,
		})
	}
	c.JSON(http.StatusOK, gin.H{"users": out})
}

// handleDeleteUser mirrors CMD:DELETE.
func (h *APIHandler) handleDeleteUser(c *gin.Context) {
	userID := c.Param("id")
	if err := h.matcher.DeleteUser(userID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	if h.wsHub != nil {
		h.wsHub.BroadcastEvent(DashboardEvent{
			Type:    EventUserDeleted,
			Payload: UserDeletedPayload{UserID: userID},
		})
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted", "userId": userID})
}
