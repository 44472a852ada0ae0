// Package service 包含了应用的业务逻辑层。
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"homesync-go/internal/config"
	"homesync-go/internal/model"
	"homesync-go/internal/repository"
	"homesync-go/pkg/database"
	"homesync-go/pkg/log"
	"homesync-go/pkg/metrics"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrNotConnected    = errors.New("session is not connected to a database")
	ErrEmptyMessage    = errors.New("message is empty")
)

// Database 是会话持有的目标库句柄。
type Database interface {
	SchemaText(ctx context.Context) (string, error)
	Run(ctx context.Context, query string) (string, error)
	Close() error
}

// Connector 根据连接参数打开一个 Database。
type Connector func(ctx context.Context, params model.ConnectionParams) (Database, error)

// MySQLConnector 返回基于 pkg/database 的默认 Connector。
func MySQLConnector(pool database.PoolConfig) Connector {
	return func(ctx context.Context, params model.ConnectionParams) (Database, error) {
		conn, err := database.OpenMySQL(ctx, params, pool)
		if err != nil {
			return nil, err
		}
		return conn, nil
	}
}

// TranscriptArchiver 在会话关闭时保存完整记录（可选）。
type TranscriptArchiver interface {
	Archive(ctx context.Context, sessionID string, messages []model.ChatMessage) error
}

// Session 代表一个聊天会话：一个可选的数据库连接加上一份会话记录。
type Session struct {
	ID        string
	CreatedAt time.Time

	// turnMu 保证同一会话的轮次串行执行，closed 也由它保护
	turnMu sync.Mutex
	closed bool

	mu         sync.RWMutex
	db         Database
	params     model.ConnectionParams
	lastActive time.Time
}

// Database 返回当前连接，未连接时为 nil。
func (s *Session) Database() Database {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.db
}

// Connection 返回去掉密码的连接参数，以及是否已连接。
func (s *Session) Connection() (model.ConnectionParams, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.params.Redacted(), s.db != nil
}

// LastActive 返回最后一次活动时间。
func (s *Session) LastActive() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastActive
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastActive = time.Now()
	s.mu.Unlock()
}

// swapDatabase 替换连接并返回旧连接，由调用方关闭。
func (s *Session) swapDatabase(db Database, params model.ConnectionParams) Database {
	s.mu.Lock()
	defer s.mu.Unlock()
	old := s.db
	s.db = db
	s.params = params
	s.lastActive = time.Now()
	return old
}

// SessionService 定义了会话生命周期的操作接口。
type SessionService interface {
	Create(ctx context.Context) (*Session, error)
	Get(sessionID string) (*Session, error)
	Connect(ctx context.Context, sessionID string, params model.ConnectionParams) error
	Disconnect(sessionID string) error
	Close(ctx context.Context, sessionID string) error
	ReapIdle(ctx context.Context, maxIdle time.Duration) int
	Count() int
}

type sessionService struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	connector Connector
	defaults  config.ConnectionDefaults
	repo      repository.ConversationRepository
	archiver  TranscriptArchiver
}

// NewSessionService 创建一个新的 SessionService。archiver 可以为 nil。
func NewSessionService(connector Connector, defaults config.ConnectionDefaults, repo repository.ConversationRepository, archiver TranscriptArchiver) SessionService {
	return &sessionService{
		sessions:  make(map[string]*Session),
		connector: connector,
		defaults:  defaults,
		repo:      repo,
		archiver:  archiver,
	}
}

// Create 创建一个尚未连接数据库的新会话。
func (s *sessionService) Create(_ context.Context) (*Session, error) {
	now := time.Now()
	sess := &Session{
		ID:         uuid.NewString(),
		CreatedAt:  now,
		lastActive: now,
	}

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	n := len(s.sessions)
	s.mu.Unlock()

	metrics.SetActiveSessions(n)
	log.Infof("会话已创建: %s", sess.ID)
	return sess, nil
}

// Get 按 ID 查找会话。
func (s *sessionService) Get(sessionID string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// Connect 打开新的数据库连接并替换会话中已有的连接。空字段使用配置中的默认值。
func (s *sessionService) Connect(ctx context.Context, sessionID string, params model.ConnectionParams) error {
	sess, err := s.Get(sessionID)
	if err != nil {
		return err
	}
	params = s.withDefaults(params)

	// 等待正在进行的轮次结束，避免在查询中途替换连接
	sess.turnMu.Lock()
	defer sess.turnMu.Unlock()
	if sess.closed {
		return ErrSessionNotFound
	}

	db, err := s.connector(ctx, params)
	if err != nil {
		return fmt.Errorf("failed to connect session %s: %w", sessionID, err)
	}
	if old := sess.swapDatabase(db, params); old != nil {
		if err := old.Close(); err != nil {
			log.Warnf("关闭旧的数据库连接失败: session=%s, err=%v", sessionID, err)
		}
	}

	log.Infow("会话已连接数据库",
		"session", sessionID,
		"host", params.Host,
		"port", params.Port,
		"user", params.User,
		"database", params.Database,
	)
	return nil
}

// Disconnect 关闭会话的数据库连接，会话本身保留。
func (s *sessionService) Disconnect(sessionID string) error {
	sess, err := s.Get(sessionID)
	if err != nil {
		return err
	}
	sess.turnMu.Lock()
	defer sess.turnMu.Unlock()

	if old := sess.swapDatabase(nil, model.ConnectionParams{}); old != nil {
		return old.Close()
	}
	return nil
}

// Close 移除会话，关闭连接，归档并删除会话记录。
func (s *sessionService) Close(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	sess, ok := s.sessions[sessionID]
	if ok {
		delete(s.sessions, sessionID)
	}
	n := len(s.sessions)
	s.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}
	metrics.SetActiveSessions(n)

	sess.turnMu.Lock()
	defer sess.turnMu.Unlock()
	sess.closed = true

	if old := sess.swapDatabase(nil, model.ConnectionParams{}); old != nil {
		if err := old.Close(); err != nil {
			log.Warnf("关闭数据库连接失败: session=%s, err=%v", sessionID, err)
		}
	}

	if s.archiver != nil {
		history, err := s.repo.History(ctx, sessionID)
		if err != nil {
			log.Errorf("读取会话记录失败，跳过归档: session=%s, err=%v", sessionID, err)
		} else if len(history) > 0 {
			if err := s.archiver.Archive(ctx, sessionID, history); err != nil {
				log.Errorf("归档会话记录失败: session=%s, err=%v", sessionID, err)
			}
		}
	}

	if err := s.repo.Delete(ctx, sessionID); err != nil {
		return err
	}
	log.Infof("会话已关闭: %s", sessionID)
	return nil
}

// ReapIdle 关闭空闲超过 maxIdle 的会话，返回关闭的数量。
func (s *sessionService) ReapIdle(ctx context.Context, maxIdle time.Duration) int {
	cutoff := time.Now().Add(-maxIdle)

	s.mu.RLock()
	var idle []string
	for id, sess := range s.sessions {
		if sess.LastActive().Before(cutoff) {
			idle = append(idle, id)
		}
	}
	s.mu.RUnlock()

	closed := 0
	for _, id := range idle {
		if err := s.Close(ctx, id); err != nil {
			if !errors.Is(err, ErrSessionNotFound) {
				log.Warnf("回收空闲会话失败: session=%s, err=%v", id, err)
			}
			continue
		}
		closed++
	}
	if closed > 0 {
		log.Infof("已回收 %d 个空闲会话", closed)
	}
	return closed
}

// Count 返回当前会话数量。
func (s *sessionService) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func (s *sessionService) withDefaults(p model.ConnectionParams) model.ConnectionParams {
	if p.Host == "" {
		p.Host = s.defaults.Host
	}
	if p.Port == "" {
		p.Port = s.defaults.Port
	}
	if p.User == "" {
		p.User = s.defaults.User
	}
	if p.Password == "" {
		p.Password = s.defaults.Password
	}
	if p.Database == "" {
		p.Database = s.defaults.Database
	}
	return p
}

// RunReaper 周期性回收空闲会话，直到 ctx 结束。
func RunReaper(ctx context.Context, sessions SessionService, interval, maxIdle time.Duration) {
	if interval <= 0 || maxIdle <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sessions.ReapIdle(ctx, maxIdle)
		}
	}
}
