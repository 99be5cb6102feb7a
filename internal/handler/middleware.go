package handler

import (
	"time"

	"crowdfund/internal/infrastructure/lock"
	"crowdfund/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	HeaderRequestID = "X-Request-ID"
	HeaderAccountID = "X-Account-ID"

	ctxRequestID = "request_id"
	ctxAccountID = "account_id"
)

// RequestIDMiddleware 透传或生成请求ID
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(HeaderRequestID)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set(ctxRequestID, requestID)
		c.Header(HeaderRequestID, requestID)
		c.Next()
	}
}

// LoggerMiddleware 日志中间件
func LoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		// 处理请求
		c.Next()

		if query != "" {
			path = path + "?" + query
		}

		logger.Info("[HTTP]",
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", c.ClientIP()),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("request_id", c.GetString(ctxRequestID)),
			zap.String("account_id", c.GetHeader(HeaderAccountID)),
		)
	}
}

// RecoveryMiddleware 恢复中间件，防止 panic 导致服务崩溃
func RecoveryMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logger.Error("[PANIC]",
					zap.Any("error", err),
					zap.String("path", c.Request.URL.Path),
					zap.String("request_id", c.GetString(ctxRequestID)),
				)
				c.AbortWithStatusJSON(500, gin.H{
					"code":    500,
					"message": "服务器内部错误",
				})
			}
		}()
		c.Next()
	}
}

// CORSMiddleware 跨域中间件
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Authorization, X-Request-ID, X-Account-ID")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

// AccountMiddleware 写操作必须携带调用方账户
// 身份认证由网关完成，这里只读取网关写入的账户头
func AccountMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		accountID := c.GetHeader(HeaderAccountID)
		if accountID == "" {
			response.Unauthorized(c, "缺少 "+HeaderAccountID+" 请求头")
			c.Abort()
			return
		}
		c.Set(ctxAccountID, accountID)
		c.Next()
	}
}

// SerializeMiddleware 写请求排队进入账本，同一时刻只有一个顶层调用
func SerializeMiddleware(locker lock.Locker, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		release, err := locker.Acquire(c.Request.Context())
		if err != nil {
			logger.Warn("获取账本锁失败",
				zap.String("path", c.Request.URL.Path),
				zap.String("request_id", c.GetString(ctxRequestID)),
				zap.Error(err),
			)
			response.BusinessError(c, response.CodeLedgerBusy, "系统繁忙，请稍后重试")
			c.Abort()
			return
		}
		defer release()
		c.Next()
	}
}

func caller(c *gin.Context) string {
	return c.GetString(ctxAccountID)
}
