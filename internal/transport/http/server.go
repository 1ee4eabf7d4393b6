package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"docrelay/internal/bootstrap"
	"docrelay/internal/transport/http/handler"
	"docrelay/internal/transport/http/middleware"
	"docrelay/internal/transport/http/response"
)

func NewRouter(app *bootstrap.App) *gin.Engine {
	if app.Config.App.GinMode != "" {
		gin.SetMode(app.Config.App.GinMode)
	}
	logger := app.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(
		middleware.RequestLog(logger.Named("http")),
		middleware.Recovery(logger),
		middleware.BodyLimit(app.Config.App.MaxBodyBytes),
	)
	router.NoRoute(func(c *gin.Context) {
		response.Error(c, http.StatusNotFound, response.MsgNotFound)
	})

	healthHandler := handler.NewHealthHandler(app)
	chatHandler := handler.NewChatHandler(app.Chat)
	documentHandler := handler.NewDocumentHandler(app.QA, app.Jobs)

	router.GET("/ping", healthHandler.Ping)

	api := router.Group("/api")
	api.GET("/health", healthHandler.Check)
	api.GET("/status", healthHandler.Status)
	api.GET("/ping", healthHandler.Ping)

	api.POST("/chat", chatHandler.SendMessage)
	api.POST("/chat/stream", chatHandler.StreamMessage)

	api.POST("/document/:id/process", documentHandler.Process)
	api.GET("/document/:id/questions", documentHandler.Questions)
	api.POST("/process-large-document", documentHandler.ProcessLarge)
	api.GET("/process-large-document/:job_id", documentHandler.JobStatus)
	api.POST("/summarize", documentHandler.Summarize)

	return router
}
