package router

import (
	"context"
	"crypto/subtle"
	"errors"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/google/uuid"
	"github.com/hertz-contrib/keyauth"
	hertztracing "github.com/hertz-contrib/obs-opentelemetry/tracing"

	"resume-extractor/internal/api/handler"
	"resume-extractor/internal/config"
)

const (
	// HeaderAPIKey API 密钥头
	HeaderAPIKey = "X-API-Key"
	healthPath   = "/api/v1/health"
)

var errInvalidAPIKey = errors.New("invalid api key")

// NewServer 创建带 OpenTelemetry 服务端追踪的 Hertz 实例
func NewServer(cfg config.ServerConfig, opts ...server.Option) *server.Hertz {
	tracer, tracerCfg := hertztracing.NewServerTracer()
	maxBody := cfg.MaxUploadMB
	if maxBody <= 0 {
		maxBody = 10
	}
	// multipart 包装需要额外余量
	all := append([]server.Option{
		server.WithHostPorts(cfg.Address),
		server.WithMaxRequestBodySize((maxBody + 1) << 20),
		tracer,
	}, opts...)

	h := server.New(all...)
	h.Use(hertztracing.ServerMiddleware(tracerCfg))
	return h
}

// RegisterRoutes 注册 API 路由
func RegisterRoutes(h *server.Hertz, resumeHandler *handler.ResumeHandler, cfg config.ServerConfig) {
	h.Use(RequestID())
	if len(cfg.APIKeys) > 0 {
		h.Use(APIKeyAuth(cfg.APIKeys))
	}

	api := h.Group("/api/v1")
	api.POST("/resume/parse", resumeHandler.ParseResume)
	api.GET("/resume/:uuid", resumeHandler.GetResume)
	api.GET("/health", resumeHandler.Health)
}

// RequestID 透传或生成请求 ID，写入响应头
func RequestID() app.HandlerFunc {
	return func(c context.Context, ctx *app.RequestContext) {
		id := string(ctx.Request.Header.Peek(handler.HeaderRequestID))
		if id == "" {
			id = uuid.NewString()
		}
		ctx.Response.Header.Set(handler.HeaderRequestID, id)
		ctx.Next(c)
	}
}

// APIKeyAuth 校验 X-API-Key，健康检查不校验
func APIKeyAuth(keys []string) app.HandlerFunc {
	return keyauth.New(
		keyauth.WithKeyLookUp("header:"+HeaderAPIKey, ""),
		keyauth.WithFilter(func(c context.Context, ctx *app.RequestContext) bool {
			return string(ctx.Path()) == healthPath
		}),
		keyauth.WithValidator(func(c context.Context, ctx *app.RequestContext, key string) (bool, error) {
			for _, k := range keys {
				if subtle.ConstantTimeCompare([]byte(k), []byte(key)) == 1 {
					return true, nil
				}
			}
			return false, errInvalidAPIKey
		}),
		keyauth.WithErrorHandler(func(c context.Context, ctx *app.RequestContext, err error) {
			ctx.AbortWithStatusJSON(consts.StatusUnauthorized, utils.H{
				"error":      "API 密钥缺失或无效",
				"request_id": string(ctx.Response.Header.Peek(handler.HeaderRequestID)),
			})
		}),
	)
}
