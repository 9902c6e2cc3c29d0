package api

import (
	"github.com/gin-gonic/gin"
	"github.com/wfunc/microinject/internal/config"
	"github.com/wfunc/microinject/internal/middleware"
	"github.com/wfunc/microinject/internal/service"
	ws "github.com/wfunc/microinject/internal/websocket"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Router API路由器
type Router struct {
	engine           *gin.Engine
	db               *gorm.DB
	authHandler      *AuthHandler
	injectorHandler  *InjectorHandler
	serialLogHandler *SerialLogHandler
	wsHandler        *WebSocketHandler
	authMiddleware   *middleware.AuthMiddleware
	log              *zap.Logger
}

// NewRouter 创建路由器
func NewRouter(cfg *config.Config, db *gorm.DB, injector *service.InjectorService, auth *service.AuthService, hub *ws.Hub, log *zap.Logger) *Router {
	// 创建Gin引擎
	engine := gin.New()

	// 全局中间件
	engine.Use(gin.Recovery())
	engine.Use(gin.Logger())

	router := &Router{
		engine:           engine,
		db:               db,
		authHandler:      NewAuthHandler(auth),
		injectorHandler:  NewInjectorHandler(injector, &cfg.Motion, log),
		serialLogHandler: NewSerialLogHandler(injector.SerialLogs()),
		wsHandler:        NewWebSocketHandler(hub, &cfg.WebSocket, log),
		authMiddleware:   middleware.NewAuthMiddleware(auth),
		log:              log,
	}

	router.setupRoutes()

	return router
}

// setupRoutes 设置路由
func (r *Router) setupRoutes() {
	// 健康检查
	r.engine.GET("/health", r.healthCheck)

	// API v1路由组
	v1 := r.engine.Group("/api/v1")
	{
		// 认证相关路由（不需要认证）
		auth := v1.Group("/auth")
		{
			auth.POST("/login", r.authHandler.Login)
		}

		// 注射器控制路由（需要认证）
		injector := v1.Group("/injector")
		injector.Use(r.authMiddleware.RequireAuth())
		{
			injector.GET("/status", r.injectorHandler.Status)
			injector.POST("/connect", r.injectorHandler.Connect)
			injector.POST("/disconnect", r.injectorHandler.Disconnect)
			injector.POST("/move", r.injectorHandler.Move)
			injector.POST("/abort", r.injectorHandler.Abort)

			injector.GET("/program", r.injectorHandler.GetProgram)
			injector.POST("/program/steps", r.injectorHandler.AddStep)
			injector.DELETE("/program/steps/:index", r.injectorHandler.DeleteStep)
			injector.DELETE("/program", r.injectorHandler.ClearProgram)
			injector.POST("/program/run", r.injectorHandler.RunProgram)
			injector.POST("/program/refresh", r.injectorHandler.RefreshProgram)
		}

		// 运动历史记录（需要认证）
		moves := v1.Group("/moves")
		moves.Use(r.authMiddleware.RequireAuth())
		{
			moves.GET("", r.injectorHandler.QueryMoves)
		}

		// 串口日志路由（需要认证）
		logs := v1.Group("")
		logs.Use(r.authMiddleware.RequireAuth())
		r.serialLogHandler.RegisterRoutes(logs)
	}

	// WebSocket路由（令牌通过query参数传递）
	wsGroup := r.engine.Group("/ws")
	wsGroup.Use(r.authMiddleware.RequireAuth())
	{
		wsGroup.GET("", r.wsHandler.Serve)
	}

	// 404处理
	r.engine.NoRoute(func(c *gin.Context) {
		c.JSON(404, gin.H{
			"code":    "NOT_FOUND",
			"message": "接口不存在",
		})
	})
}

// healthCheck 健康检查
func (r *Router) healthCheck(c *gin.Context) {
	// 检查数据库连接
	sqlDB, err := r.db.DB()
	if err != nil {
		c.JSON(500, gin.H{
			"status":  "unhealthy",
			"message": "数据库连接失败",
		})
		return
	}

	if err := sqlDB.Ping(); err != nil {
		c.JSON(500, gin.H{
			"status":  "unhealthy",
			"message": "数据库ping失败",
		})
		return
	}

	c.JSON(200, gin.H{
		"status":  "healthy",
		"message": "服务运行正常",
	})
}

// Run 运行服务器
func (r *Router) Run(addr string) error {
	r.log.Info("Starting API server", zap.String("address", addr))
	return r.engine.Run(addr)
}

// GetEngine 获取Gin引擎（用于测试）
func (r *Router) GetEngine() *gin.Engine {
	return r.engine
}
