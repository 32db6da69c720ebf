package http

import (
	"github.com/gin-gonic/gin"

	"knowledgehub/internal/bootstrap"
	"knowledgehub/internal/transport/http/handler"
	"knowledgehub/internal/transport/http/middleware"
)

func NewRouter(app *bootstrap.App) *gin.Engine {
	gin.SetMode(app.Config.App.GinMode)
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	healthHandler := handler.NewHealthHandler(app)
	router.GET("/healthz", healthHandler.Check)

	authHandler := handler.NewAuthHandler(app.AuthService)
	uploadHandler := handler.NewUploadHandler(app.UploadService)
	documentHandler := handler.NewDocumentHandler(app.UploadService, app.TagService)
	searchHandler := handler.NewSearchHandler(app.HybridSearchService)
	adminHandler := handler.NewAdminHandler(app.TagService, app.UserRepo)
	chatHandler := handler.NewChatHandler(app.ChatOrchestrator, app.Config.Auth.JWTSecret)

	requireAuth := middleware.AuthJWT(app.Config.Auth.JWTSecret, app.SessionStore)
	requireOrgTag := middleware.OrgTagAuthz(app.FileRepo)

	// The JWT travels as the last path segment of the WebSocket
	// handshake URL, so this route is unauthenticated at the gin layer
	// and authenticates itself inside ChatHandler.Serve.
	router.GET("/ws/chat/:handle", chatHandler.Serve)

	v1 := router.Group("/api/v1")

	authGroup := v1.Group("/auth")
	authGroup.POST("/refreshToken", authHandler.Refresh)

	usersGroup := v1.Group("/users")
	usersGroup.POST("/register", authHandler.Register)
	usersGroup.POST("/login", authHandler.Login)
	usersGroup.GET("/me", requireAuth, authHandler.Me)
	usersGroup.POST("/logout", requireAuth, authHandler.Logout)
	usersGroup.POST("/logout-all", requireAuth, authHandler.LogoutAll)

	uploadGroup := v1.Group("/upload")
	uploadGroup.GET("/supported-types", uploadHandler.SupportedTypes)
	uploadGroup.Use(requireAuth, requireOrgTag)
	uploadGroup.POST("/chunk", uploadHandler.UploadChunk)
	uploadGroup.GET("/status", uploadHandler.Status)
	uploadGroup.POST("/merge", uploadHandler.Merge)

	documentsGroup := v1.Group("/documents")
	documentsGroup.Use(requireAuth, requireOrgTag)
	documentsGroup.GET("/uploads", documentHandler.List)
	documentsGroup.GET("/accessible", documentHandler.Accessible)
	documentsGroup.GET("/download", documentHandler.Download)
	documentsGroup.DELETE("/:fingerprint", documentHandler.Delete)

	searchGroup := v1.Group("/search")
	searchGroup.Use(requireAuth, requireOrgTag)
	searchGroup.GET("/hybrid", searchHandler.Hybrid)

	adminGroup := v1.Group("/admin")
	adminGroup.Use(requireAuth, middleware.RequireAdmin())
	adminGroup.POST("/tags", adminHandler.CreateTag)
	adminGroup.GET("/tags", adminHandler.ListTags)
	adminGroup.PATCH("/tags/:id", adminHandler.UpdateTag)
	adminGroup.DELETE("/tags/:id", adminHandler.DeleteTag)
	adminGroup.GET("/users", adminHandler.ListUsers)
	adminGroup.GET("/users/count", adminHandler.CountUsers)
	adminGroup.PUT("/users/:id/tags", adminHandler.AssignUserTags)

	return router
}
