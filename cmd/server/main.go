// Package main 是应用程序的入口点。
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"homesync-go/internal/app"
	"homesync-go/internal/config"
	"homesync-go/internal/router"
	"homesync-go/pkg/log"
)

func main() {
	// 1. 初始化配置
	config.Init("./configs/config.yaml")
	cfg := config.Conf

	// 2. 初始化日志记录器
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync() // 确保在程序退出时刷新所有缓冲的日志条目
	log.Info("日志记录器初始化成功")

	// 3. 组装 Repository / Service
	rootCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	application, err := app.New(rootCtx, cfg)
	if err != nil {
		log.Fatalf("初始化服务失败: %v", err)
	}
	defer application.Close()

	// 4. 启动空闲会话回收
	application.StartReaper(rootCtx)

	// 5. 设置 Gin 模式并注册路由
	gin.SetMode(cfg.Server.Mode)
	r := router.New(router.Deps{
		Sessions:   application.Sessions,
		Chat:       application.Chat,
		JWTManager: application.JWTManager,
		Config:     cfg,
	})

	// 启动 HTTP 服务器并实现优雅停机
	srv := router.NewServer(rootCtx, fmt.Sprintf(":%s", cfg.Server.Port), r)

	go func() {
		log.Infof("服务启动于 %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP 服务监听失败: %s\n", err)
		}
	}()

	// 等待中断信号以实现优雅停机
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("接收到停机信号，正在关闭服务...")

	ctx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Errorf("HTTP 服务器关闭失败: %v", err)
	}
	// Shutdown 不等待 WebSocket 连接，先取消根 context 让进行中的对话尽快返回，
	// 否则关闭会话时会一直等待对话锁
	cancel()

	// 关闭剩余会话，释放数据库连接并归档会话记录
	if n := application.Sessions.ReapIdle(ctx, 0); n > 0 {
		log.Infof("已关闭 %d 个会话", n)
	}
	log.Info("服务已优雅关闭")
}
