package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"homesync-go/internal/service"
	"homesync-go/pkg/log"
	"homesync-go/pkg/token"
)

var (
	upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return true // 允许所有来源
		},
	}
)

// ChatHandler 负责处理 WebSocket 聊天连接。
type ChatHandler struct {
	chatService service.ChatService
	sessions    service.SessionService
	jwtManager  *token.JWTManager
}

// NewChatHandler 创建一个新的 ChatHandler。
func NewChatHandler(chatService service.ChatService, sessions service.SessionService, jwtManager *token.JWTManager) *ChatHandler {
	return &ChatHandler{
		chatService: chatService,
		sessions:    sessions,
		jwtManager:  jwtManager,
	}
}

// Handle 处理一个传入的 WebSocket 连接。每个文本帧是一条用户消息，
// 回复为 JSON 格式的助手消息。
func (h *ChatHandler) Handle(c *gin.Context) {
	claims, err := h.jwtManager.VerifyToken(c.Param("token"))
	if err != nil {
		fail(c, http.StatusUnauthorized, "无效的 token")
		return
	}
	sess, err := h.sessions.Get(claims.SessionID)
	if err != nil {
		fail(c, http.StatusNotFound, "会话不存在或已关闭")
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("WebSocket 升级失败", err)
		return
	}
	defer conn.Close()

	log.Infof("WebSocket 连接已建立，会话: %s", sess.ID)

	for {
		msgType, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warnf("从 WebSocket 读取消息失败: %v", err)
			}
			break
		}
		if msgType != websocket.TextMessage {
			continue
		}

		reply, err := h.chatService.Ask(c.Request.Context(), sess.ID, string(message))
		if err != nil {
			if errors.Is(err, service.ErrEmptyMessage) {
				continue
			}
			log.Errorf("处理 WebSocket 消息失败: session=%s, err=%v", sess.ID, err)
			writeJSON(conn, map[string]string{"error": err.Error()})
			if errors.Is(err, service.ErrSessionNotFound) {
				break
			}
			continue
		}
		if err := writeJSON(conn, reply); err != nil {
			log.Warnf("写入 WebSocket 消息失败: %v", err)
			break
		}
		// 服务器停机时结束连接
		if c.Request.Context().Err() != nil {
			break
		}
	}
	log.Infof("WebSocket 连接已关闭，会话: %s", sess.ID)
}

func writeJSON(conn *websocket.Conn, v interface{}) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, b)
}
