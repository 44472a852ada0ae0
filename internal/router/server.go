package router

import (
	"context"
	"net"
	"net/http"
)

// NewServer 创建 HTTP 服务器。所有请求的 context 都派生自 baseCtx，
// 取消 baseCtx 会中断仍在进行的对话（包括已升级为 WebSocket 的连接，
// 这些连接不受 Shutdown 管理）。
func NewServer(baseCtx context.Context, addr string, h http.Handler) *http.Server {
	return &http.Server{
		Addr:        addr,
		Handler:     h,
		BaseContext: func(net.Listener) context.Context { return baseCtx },
	}
}
