package handler

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"docrelay/internal/bootstrap"
	"docrelay/internal/transport/http/response"
)

type HealthHandler struct {
	app *bootstrap.App
}

type dependencyStatus struct {
	OK       bool   `json:"ok"`
	Disabled bool   `json:"disabled,omitempty"`
	Message  string `json:"message,omitempty"`
}

func NewHealthHandler(app *bootstrap.App) *HealthHandler {
	return &HealthHandler{app: app}
}

// Check reports liveness. Backing service state is informational only and
// never changes the status code.
func (h *HealthHandler) Check(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	mysqlStatus := h.checkMySQL(ctx)
	redisStatus := h.checkRedis(ctx)
	rmqStatus := h.checkRabbitMQ()

	response.OK(c, gin.H{
		"status":    "healthy",
		"timestamp": response.Timestamp(),
		"service":   h.app.Config.App.Name,
		"version":   h.app.Config.App.Version,
		"dependencies": gin.H{
			"mysql":    mysqlStatus,
			"redis":    redisStatus,
			"rabbitmq": rmqStatus,
		},
	})
}

func (h *HealthHandler) Status(c *gin.Context) {
	ctx := c.Request.Context()
	activeSessions := 0
	if h.app.Chat != nil {
		activeSessions = h.app.Chat.ActiveSessions(ctx)
	}
	cachedAnswers := 0
	if h.app.QA != nil {
		cachedAnswers = h.app.QA.CachedAnswers(ctx)
	}

	response.OK(c, gin.H{
		"status":          "operational",
		"active_sessions": activeSessions,
		"cached_answers":  cachedAnswers,
		"background_jobs": h.app.Jobs.Enabled(),
		"uptime_sec":      int(time.Since(h.app.StartedAt).Seconds()),
		"timestamp":       response.Timestamp(),
	})
}

func (h *HealthHandler) Ping(c *gin.Context) {
	response.OK(c, gin.H{"message": "pong"})
}

func (h *HealthHandler) checkMySQL(ctx context.Context) dependencyStatus {
	if h.app.MySQL == nil {
		return dependencyStatus{OK: true, Disabled: true}
	}
	sqlDB, err := h.app.MySQL.DB()
	if err != nil {
		return dependencyStatus{OK: false, Message: err.Error()}
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return dependencyStatus{OK: false, Message: err.Error()}
	}
	return dependencyStatus{OK: true}
}

func (h *HealthHandler) checkRedis(ctx context.Context) dependencyStatus {
	if h.app.Redis == nil {
		return dependencyStatus{OK: true, Disabled: true}
	}
	if err := h.app.Redis.Ping(ctx).Err(); err != nil {
		return dependencyStatus{OK: false, Message: err.Error()}
	}
	return dependencyStatus{OK: true}
}

func (h *HealthHandler) checkRabbitMQ() dependencyStatus {
	if h.app.MQConn == nil {
		return dependencyStatus{OK: true, Disabled: true}
	}
	if h.app.MQConn.IsClosed() {
		return dependencyStatus{OK: false, Message: "connection closed"}
	}
	return dependencyStatus{OK: true}
}
