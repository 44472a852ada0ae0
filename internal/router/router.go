// Package router 组装 Gin 路由。
package router

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"homesync-go/internal/config"
	"homesync-go/internal/handler"
	"homesync-go/internal/middleware"
	"homesync-go/internal/service"
	"homesync-go/pkg/token"
)

// Deps 是注册路由所需的服务。
type Deps struct {
	Sessions   service.SessionService
	Chat       service.ChatService
	JWTManager *token.JWTManager
	Config     config.Config
}

// New 创建路由引擎并注册全部路由。
func New(d Deps) *gin.Engine {
	r := gin.New() // 不带默认中间件
	r.Use(middleware.RequestLogger(), middleware.Metrics(), gin.Recovery())

	sessionHandler := handler.NewSessionHandler(d.Sessions, d.Chat, d.JWTManager, d.Config.Database.MySQL.Defaults, d.Config.Chat.WelcomeText)
	chatHandler := handler.NewChatHandler(d.Chat, d.Sessions, d.JWTManager)

	r.GET("/", handler.Index)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	apiV1 := r.Group("/api/v1")
	{
		apiV1.POST("/sessions", sessionHandler.Create)
		apiV1.GET("/connection/defaults", sessionHandler.ConnectionDefaults)

		// 需要会话令牌的路由
		session := apiV1.Group("/session")
		session.Use(middleware.SessionAuth(d.JWTManager, d.Sessions))
		{
			session.PUT("/connection", sessionHandler.Connect)
			session.DELETE("/connection", sessionHandler.Disconnect)
			session.GET("/messages", sessionHandler.Messages)
			session.POST("/messages", sessionHandler.SendMessage)
			session.DELETE("", sessionHandler.Close)
		}
	}

	// Chat 路由 (WebSocket)
	r.GET("/chat/:token", chatHandler.Handle)

	return r
}
