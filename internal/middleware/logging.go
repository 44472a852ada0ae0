// Package middleware 存放 Gin 框架的中间件。
package middleware

import (
	"bytes"
	"io"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"homesync-go/pkg/log"
)

// bodyLogWriter 用于捕获响应体
type bodyLogWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

// Write 实现了 io.Writer 接口，将响应写入 gin.ResponseWriter 和一个内部的 buffer
func (w bodyLogWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

// 这些路径的请求体包含数据库密码，不记录
var sensitiveBodyPaths = []string{"/session/connection"}

// 这些路径的响应体包含会话令牌，不记录
var sensitiveResponsePaths = []string{"/api/v1/sessions"}

const redacted = "[redacted]"

// RequestLogger 是一个 Gin 中间件，用于记录请求和响应日志。
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		// WebSocket 升级需要原始的 ResponseWriter
		if c.IsWebsocket() {
			c.Next()
			return
		}

		startTime := time.Now()
		path := c.Request.URL.Path

		var requestBody []byte
		if c.Request.Body != nil {
			requestBody, _ = io.ReadAll(c.Request.Body)
		}
		// 重新设置请求体，以便后续处理函数可以正常读取
		c.Request.Body = io.NopCloser(bytes.NewBuffer(requestBody))

		blw := &bodyLogWriter{body: bytes.NewBufferString(""), ResponseWriter: c.Writer}
		c.Writer = blw

		c.Next()

		loggedBody := string(requestBody)
		if isSensitivePath(path) {
			loggedBody = redacted
		}
		loggedResponse := blw.body.String()
		if isSensitiveResponsePath(path) {
			loggedResponse = redacted
		}

		log.Infow("HTTP Request Log",
			"statusCode", c.Writer.Status(),
			"latency", time.Since(startTime).String(),
			"clientIP", c.ClientIP(),
			"method", c.Request.Method,
			"path", path,
			"requestBody", loggedBody,
			"responseBody", loggedResponse,
		)
	}
}

func isSensitivePath(path string) bool {
	for _, p := range sensitiveBodyPaths {
		if strings.HasSuffix(path, p) {
			return true
		}
	}
	return false
}

func isSensitiveResponsePath(path string) bool {
	path = strings.TrimSuffix(path, "/")
	for _, p := range sensitiveResponsePaths {
		if path == p {
			return true
		}
	}
	return false
}
