package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"homesync-go/internal/config"
	"homesync-go/internal/middleware"
	"homesync-go/internal/model"
	"homesync-go/internal/service"
	"homesync-go/pkg/log"
	"homesync-go/pkg/token"
)

const defaultWelcomeText = "Hello! I'm your assistant. Ask me anything about your Home inventory."

// SessionHandler 负责会话生命周期与 HTTP 形式的对话接口。
type SessionHandler struct {
	sessions   service.SessionService
	chat       service.ChatService
	jwtManager *token.JWTManager
	defaults   config.ConnectionDefaults
	welcome    string
}

// NewSessionHandler 创建一个新的 SessionHandler。
func NewSessionHandler(sessions service.SessionService, chat service.ChatService, jwtManager *token.JWTManager, defaults config.ConnectionDefaults, welcome string) *SessionHandler {
	if welcome == "" {
		welcome = defaultWelcomeText
	}
	return &SessionHandler{
		sessions:   sessions,
		chat:       chat,
		jwtManager: jwtManager,
		defaults:   defaults,
		welcome:    welcome,
	}
}

// CreateSessionResponse 是创建会话接口的返回数据。
type CreateSessionResponse struct {
	SessionID string `json:"sessionId"`
	Token     string `json:"token"`
	Welcome   string `json:"welcome"`
}

// Create 创建会话并签发令牌。欢迎语只用于展示，不写入会话记录。
func (h *SessionHandler) Create(c *gin.Context) {
	sess, err := h.sessions.Create(c.Request.Context())
	if err != nil {
		log.Errorf("创建会话失败: %v", err)
		fail(c, http.StatusInternalServerError, "Failed to create session")
		return
	}
	tok, err := h.jwtManager.GenerateToken(sess.ID)
	if err != nil {
		log.Errorf("签发会话令牌失败: %v", err)
		_ = h.sessions.Close(c.Request.Context(), sess.ID)
		fail(c, http.StatusInternalServerError, "Failed to issue session token")
		return
	}
	success(c, CreateSessionResponse{SessionID: sess.ID, Token: tok, Welcome: h.welcome})
}

// ConnectionDefaults 返回连接表单的预填值，不包含密码。
func (h *SessionHandler) ConnectionDefaults(c *gin.Context) {
	success(c, model.ConnectionParams{
		Host:     h.defaults.Host,
		Port:     h.defaults.Port,
		User:     h.defaults.User,
		Database: h.defaults.Database,
	})
}

// Connect 使用表单中的参数为会话打开数据库连接。
func (h *SessionHandler) Connect(c *gin.Context) {
	sess := currentSession(c)

	var req model.ConnectionParams
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Invalid connection parameters")
		return
	}
	if err := h.sessions.Connect(c.Request.Context(), sess.ID, req); err != nil {
		log.Warnf("会话连接数据库失败: session=%s, err=%v", sess.ID, err)
		if errors.Is(err, service.ErrSessionNotFound) {
			fail(c, http.StatusNotFound, err.Error())
			return
		}
		fail(c, http.StatusBadGateway, err.Error())
		return
	}

	params, _ := sess.Connection()
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "Connected to database!", "data": params})
}

// Disconnect 关闭会话的数据库连接。
func (h *SessionHandler) Disconnect(c *gin.Context) {
	sess := currentSession(c)
	if err := h.sessions.Disconnect(sess.ID); err != nil {
		log.Warnf("断开数据库连接失败: session=%s, err=%v", sess.ID, err)
	}
	success(c, nil)
}

// Messages 返回会话的完整记录。
func (h *SessionHandler) Messages(c *gin.Context) {
	sess := currentSession(c)
	history, err := h.chat.History(c.Request.Context(), sess.ID)
	if err != nil {
		log.Errorf("读取会话记录失败: session=%s, err=%v", sess.ID, err)
		fail(c, http.StatusInternalServerError, "Failed to retrieve conversation history")
		return
	}
	if history == nil {
		history = []model.ChatMessage{}
	}
	success(c, history)
}

// SendMessageRequest 是发送消息接口的请求体。
type SendMessageRequest struct {
	Content string `json:"content"`
}

// SendMessage 执行一轮对话并返回助手消息。
func (h *SessionHandler) SendMessage(c *gin.Context) {
	sess := currentSession(c)

	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Invalid request payload")
		return
	}
	reply, err := h.chat.Ask(c.Request.Context(), sess.ID, req.Content)
	if err != nil {
		writeChatError(c, err)
		return
	}
	success(c, reply)
}

// Close 关闭会话，之后令牌失效。
func (h *SessionHandler) Close(c *gin.Context) {
	sess := currentSession(c)
	if err := h.sessions.Close(c.Request.Context(), sess.ID); err != nil && !errors.Is(err, service.ErrSessionNotFound) {
		log.Errorf("关闭会话失败: session=%s, err=%v", sess.ID, err)
		fail(c, http.StatusInternalServerError, "Failed to close session")
		return
	}
	success(c, nil)
}

func currentSession(c *gin.Context) *service.Session {
	return c.MustGet(middleware.SessionKey).(*service.Session)
}

func writeChatError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrEmptyMessage):
		fail(c, http.StatusBadRequest, "Message must not be empty")
	case errors.Is(err, service.ErrSessionNotFound):
		fail(c, http.StatusNotFound, "Session not found")
	default:
		log.Errorf("处理消息失败: %v", err)
		fail(c, http.StatusInternalServerError, "Failed to process message")
	}
}
