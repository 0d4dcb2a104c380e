package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"resume-extractor/internal/logger"
	"resume-extractor/internal/processor"
	"resume-extractor/internal/tracing"
)

// HeaderRequestID 请求 ID 头
const HeaderRequestID = "X-Request-ID"

// ResumeService 处理器依赖的简历服务
type ResumeService interface {
	ParseUpload(ctx context.Context, fileName string, data []byte) (*processor.ParseOutcome, error)
	GetParsed(ctx context.Context, submissionUUID string) (*processor.StoredResume, error)
}

var _ ResumeService = (*processor.ResumeService)(nil)

// ResumeHandler 简历解析 HTTP 处理器
type ResumeHandler struct {
	service        ResumeService
	maxUploadBytes int64
	log            zerolog.Logger
}

// NewResumeHandler 创建处理器，maxUploadMB 不大于 0 时按 10MB 处理
func NewResumeHandler(service ResumeService, maxUploadMB int) *ResumeHandler {
	if maxUploadMB <= 0 {
		maxUploadMB = 10
	}
	return &ResumeHandler{
		service:        service,
		maxUploadBytes: int64(maxUploadMB) << 20,
		log:            logger.Component("resume_handler"),
	}
}

// ParseResume 处理 POST /api/v1/resume/parse
func (h *ResumeHandler) ParseResume(c context.Context, ctx *app.RequestContext) {
	span := trace.SpanFromContext(c)

	fileHeader, err := ctx.FormFile("file")
	if err != nil {
		h.fail(c, ctx, consts.StatusBadRequest, "缺少上传文件字段 file", err)
		return
	}
	span.SetAttributes(
		attribute.String("resume.file_name", tracing.SafeFileName(fileHeader.Filename)),
		attribute.Int64("resume.file_size", fileHeader.Size),
	)
	if fileHeader.Size > h.maxUploadBytes {
		h.fail(c, ctx, consts.StatusBadRequest,
			fmt.Sprintf("文件超过大小限制 %dMB", h.maxUploadBytes>>20), nil)
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		h.fail(c, ctx, consts.StatusBadRequest, "打开上传文件失败", err)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, h.maxUploadBytes+1))
	if err != nil {
		h.fail(c, ctx, consts.StatusBadRequest, "读取上传文件失败", err)
		return
	}
	if int64(len(data)) > h.maxUploadBytes {
		h.fail(c, ctx, consts.StatusBadRequest,
			fmt.Sprintf("文件超过大小限制 %dMB", h.maxUploadBytes>>20), nil)
		return
	}

	fileName := filepath.Base(fileHeader.Filename)
	out, err := h.service.ParseUpload(c, fileName, data)
	if err != nil {
		switch {
		case !processor.IsClientError(err):
			h.fail(c, ctx, consts.StatusInternalServerError, "简历解析失败", err)
		case errors.Is(err, processor.ErrUnsupportedFormat):
			h.fail(c, ctx, consts.StatusUnsupportedMediaType, err.Error(), err)
		default:
			h.fail(c, ctx, consts.StatusUnprocessableEntity, err.Error(), err)
		}
		return
	}

	h.log.Info().
		Str("request_id", requestID(ctx)).
		Str("submission_uuid", out.SubmissionUUID).
		Bool("cached", out.Cached).
		Msg("简历解析完成")
	ctx.JSON(consts.StatusOK, out)
}

// GetResume 处理 GET /api/v1/resume/:uuid
func (h *ResumeHandler) GetResume(c context.Context, ctx *app.RequestContext) {
	submissionUUID := ctx.Param("uuid")
	if submissionUUID == "" {
		h.fail(c, ctx, consts.StatusBadRequest, "缺少 uuid", nil)
		return
	}

	stored, err := h.service.GetParsed(c, submissionUUID)
	if err != nil {
		switch {
		case errors.Is(err, processor.ErrNotFound):
			h.fail(c, ctx, consts.StatusNotFound, "解析记录不存在", nil)
		case errors.Is(err, processor.ErrPersistenceDisabled):
			h.fail(c, ctx, consts.StatusServiceUnavailable, err.Error(), nil)
		default:
			h.fail(c, ctx, consts.StatusInternalServerError, "查询解析记录失败", err)
		}
		return
	}
	ctx.JSON(consts.StatusOK, stored)
}

// Health 处理 GET /api/v1/health
func (h *ResumeHandler) Health(c context.Context, ctx *app.RequestContext) {
	ctx.JSON(consts.StatusOK, utils.H{"status": "ok"})
}

// fail 写错误响应。5xx 记为错误日志，4xx 只记调试日志
func (h *ResumeHandler) fail(c context.Context, ctx *app.RequestContext, status int, msg string, err error) {
	reqID := requestID(ctx)
	if err != nil {
		tracing.RecordHTTPError(trace.SpanFromContext(c), err, status)
	}

	ev := h.log.Debug()
	if status >= http.StatusInternalServerError {
		ev = h.log.Error()
	}
	ev.Err(err).Str("request_id", reqID).Int("status", status).Msg(msg)

	ctx.JSON(status, utils.H{"error": msg, "request_id": reqID})
}

func requestID(ctx *app.RequestContext) string {
	return string(ctx.Response.Header.Peek(HeaderRequestID))
}
