// Package app 负责按配置组装各层依赖，供 server 与 cli 共用。
package app

import (
	"context"
	"time"

	"homesync-go/internal/config"
	"homesync-go/internal/repository"
	"homesync-go/internal/service"
	"homesync-go/pkg/database"
	"homesync-go/pkg/kafka"
	"homesync-go/pkg/llm"
	"homesync-go/pkg/log"
	"homesync-go/pkg/storage"
	"homesync-go/pkg/token"
)

// App 持有组装好的服务以及需要在退出时释放的资源。
type App struct {
	Config     config.Config
	Sessions   service.SessionService
	Chat       service.ChatService
	JWTManager *token.JWTManager

	closers []func() error
}

// New 根据配置初始化依赖。Redis、Kafka、MinIO 都是可选的，未配置时跳过。
func New(ctx context.Context, cfg config.Config) (*App, error) {
	a := &App{Config: cfg}

	// 会话记录：配置了 Redis 则使用 Redis，否则保存在进程内
	var repo repository.ConversationRepository
	if cfg.Database.Redis.Addr != "" {
		rdb, err := database.NewRedis(ctx, cfg.Database.Redis)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, rdb.Close)
		repo = repository.NewConversationRepository(rdb)
	} else {
		log.Info("未配置 Redis，会话记录保存在进程内")
		repo = repository.NewMemoryConversationRepository()
	}

	var archiver service.TranscriptArchiver
	if cfg.MinIO.Endpoint != "" {
		archive, err := storage.NewTranscriptArchive(ctx, cfg.MinIO)
		if err != nil {
			// 归档是可选功能，失败时不影响启动
			log.Errorf("MinIO 初始化失败，关闭会话归档: %v", err)
		} else {
			archiver = archive
		}
	}

	var audit service.AuditPublisher
	if cfg.Kafka.Brokers != "" {
		publisher := kafka.NewAuditPublisher(cfg.Kafka)
		a.closers = append(a.closers, publisher.Close)
		audit = publisher
	}

	llmClient, err := llm.NewClient(cfg.LLM)
	if err != nil {
		a.Close()
		return nil, err
	}

	pool := database.PoolConfig{
		MaxIdleConns:    cfg.Database.MySQL.MaxIdleConns,
		MaxOpenConns:    cfg.Database.MySQL.MaxOpenConns,
		ConnMaxLifetime: time.Duration(cfg.Database.MySQL.ConnMaxLifetimeMinutes) * time.Minute,
		SampleRows:      cfg.Database.MySQL.SampleRows,
	}
	a.Sessions = service.NewSessionService(service.MySQLConnector(pool), cfg.Database.MySQL.Defaults, repo, archiver)
	a.Chat = service.NewChatService(a.Sessions, repo, llmClient, cfg.LLM, cfg.Chat, audit)
	a.JWTManager = token.NewJWTManager(cfg.Session.JWTSecret, cfg.Session.TokenExpireHours)
	return a, nil
}

// StartReaper 在后台回收空闲会话，直到 ctx 结束。
func (a *App) StartReaper(ctx context.Context) {
	interval := time.Duration(a.Config.Session.ReapIntervalSeconds) * time.Second
	maxIdle := time.Duration(a.Config.Session.IdleTimeoutMinutes) * time.Minute
	go service.RunReaper(ctx, a.Sessions, interval, maxIdle)
}

// Close 按注册的逆序释放资源。
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			log.Warnf("释放资源失败: %v", err)
		}
	}
	a.closers = nil
}
