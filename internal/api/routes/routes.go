package routes

import (
	"time"

	"chatkaro-service/internal/api/handlers"
	"chatkaro-service/internal/api/middleware"
	"chatkaro-service/internal/config"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// RealtimeHub is what the HTTP layer needs from the websocket hub.
type RealtimeHub interface {
	handlers.WSServer
	handlers.HubStats
}

type Options struct {
	Users          handlers.UserService
	Chats          handlers.ChatService
	Hub            RealtimeHub
	Tokens         middleware.TokenVerifier
	Limiter        middleware.RateLimiter
	Checks         map[string]handlers.Pinger
	Cookie         config.CookieConfig
	AllowedOrigins []string
	Debug          bool
}

type Router struct {
	engine        *gin.Engine
	wsHandler     *handlers.WSHandler
	userHandler   *handlers.UserHandler
	chatHandler   *handlers.ChatHandler
	healthHandler *handlers.HealthHandler
	rateLimitMW   *middleware.RateLimitMiddleware
	authMW        *middleware.AuthMiddleware
}

func NewRouter(opts Options) *Router {
	if !opts.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()

	// Add middlewares
	engine.Use(gin.Recovery())
	engine.Use(middleware.CORS(opts.AllowedOrigins))
	engine.Use(middleware.LogApi("/api/v1/ws", "/healthz"))

	return &Router{
		engine:        engine,
		wsHandler:     handlers.NewWSHandler(opts.Hub),
		userHandler:   handlers.NewUserHandler(opts.Users, opts.Hub, opts.Cookie),
		chatHandler:   handlers.NewChatHandler(opts.Chats),
		healthHandler: handlers.NewHealthHandler(opts.Hub, opts.Checks),
		rateLimitMW:   middleware.NewRateLimitMiddleware(opts.Limiter),
		authMW:        middleware.NewAuthMiddleware(opts.Tokens),
	}
}

func (r *Router) SetupRoutes() {
	r.engine.GET("/healthz", r.healthHandler.Health)
	r.engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	api := r.engine.Group("/api/v1")

	// The hub authenticates the upgrade itself
	api.GET("/ws",
		r.rateLimitMW.RateLimitIP(30, time.Minute), // 30 connections per minute per IP
		r.wsHandler.HandleWebSocket,
	)

	// Public routes (no authentication required)
	public := api.Group("/users")
	public.Use(r.rateLimitMW.RateLimitIP(30, time.Minute))
	{
		public.POST("/new", r.userHandler.Register)
		public.POST("/login", r.userHandler.Login)
	}

	// Authenticated routes
	auth := api.Group("/")
	auth.Use(r.authMW.RequireAuth())
	auth.Use(r.rateLimitMW.RateLimit(100, time.Minute)) // 100 requests per minute
	{
		users := auth.Group("/users")
		{
			users.GET("/me", r.userHandler.Me)
			users.GET("/logout", r.userHandler.Logout)
			users.GET("/search", r.userHandler.Search)
			users.PUT("/sendrequest", r.userHandler.SendRequest)
			users.PUT("/accept-request", r.userHandler.AcceptRequest)
			users.GET("/notifications", r.userHandler.Notifications)
			users.GET("/friends", r.userHandler.Friends)
			users.GET("/online", r.userHandler.Online)
		}

		chat := auth.Group("/chat")
		{
			chat.POST("/new", r.chatHandler.NewGroup)
			chat.GET("/my", r.chatHandler.MyChats)
			chat.GET("/my/groups", r.chatHandler.MyGroups)
			chat.PUT("/addmembers", r.chatHandler.AddMembers)
			chat.PUT("/removemember", r.chatHandler.RemoveMember)
			chat.DELETE("/leave/:id", r.chatHandler.Leave)
			chat.POST("/message", r.chatHandler.SendAttachments)
			chat.GET("/message/:id", r.chatHandler.Messages)
			chat.GET("/:id", r.chatHandler.Details)
			chat.PUT("/:id", r.chatHandler.Rename)
			chat.DELETE("/:id", r.chatHandler.Delete)
		}
	}
}

func (r *Router) GetEngine() *gin.Engine {
	return r.engine
}
