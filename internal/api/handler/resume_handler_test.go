package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"testing"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/ut"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resume-extractor/internal/processor"
	"resume-extractor/internal/types"
)

// MockResumeService 模拟简历服务
type MockResumeService struct {
	outcome   *processor.ParseOutcome
	parseErr  error
	stored    *processor.StoredResume
	getErr    error
	gotName   string
	gotLength int
}

func (m *MockResumeService) ParseUpload(ctx context.Context, fileName string, data []byte) (*processor.ParseOutcome, error) {
	m.gotName = fileName
	m.gotLength = len(data)
	return m.outcome, m.parseErr
}

func (m *MockResumeService) GetParsed(ctx context.Context, submissionUUID string) (*processor.StoredResume, error) {
	return m.stored, m.getErr
}

func newTestEngine(t *testing.T, svc ResumeService, maxUploadMB int) *server.Hertz {
	t.Helper()
	h := server.New(server.WithHostPorts("127.0.0.1:0"))
	rh := NewResumeHandler(svc, maxUploadMB)
	api := h.Group("/api/v1")
	api.POST("/resume/parse", rh.ParseResume)
	api.GET("/resume/:uuid", rh.GetResume)
	api.GET("/health", rh.Health)
	return h
}

func multipartBody(t *testing.T, field, fileName string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	part, err := w.CreateFormFile(field, fileName)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return body, w.FormDataContentType()
}

func postResume(h *server.Hertz, body *bytes.Buffer, contentType string) *ut.ResponseRecorder {
	return ut.PerformRequest(h.Engine, "POST", "/api/v1/resume/parse",
		&ut.Body{Body: body, Len: body.Len()},
		ut.Header{Key: "Content-Type", Value: contentType},
	)
}

func sampleOutcome() *processor.ParseOutcome {
	resume := types.NewParsedResume()
	resume.Name = "张三"
	resume.Skills = []string{"Go"}
	return &processor.ParseOutcome{SubmissionUUID: "0190a1b2-0000-7000-8000-000000000001", Resume: resume}
}

func TestParseResume_OK(t *testing.T) {
	svc := &MockResumeService{outcome: sampleOutcome()}
	h := newTestEngine(t, svc, 10)

	body, ct := multipartBody(t, "file", "张三.pdf", []byte("%PDF-1.4"))
	resp := postResume(h, body, ct)
	require.Equal(t, 200, resp.Code)
	assert.Equal(t, "张三.pdf", svc.gotName)
	assert.Equal(t, 8, svc.gotLength)

	var got struct {
		SubmissionUUID string `json:"submission_uuid"`
		Cached         bool   `json:"cached"`
		Resume         struct {
			Name           string            `json:"name"`
			Education      []json.RawMessage `json:"education"`
			WorkExperience []json.RawMessage `json:"work_experience"`
			Skills         []string          `json:"skills"`
		} `json:"resume"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &got))
	assert.Equal(t, "0190a1b2-0000-7000-8000-000000000001", got.SubmissionUUID)
	assert.False(t, got.Cached)
	assert.Equal(t, "张三", got.Resume.Name)
	assert.Equal(t, []string{"Go"}, got.Resume.Skills)
	assert.NotNil(t, got.Resume.Education, "空列表应序列化为 []")
}

func TestParseResume_MissingFile(t *testing.T) {
	h := newTestEngine(t, &MockResumeService{}, 10)

	body, ct := multipartBody(t, "attachment", "a.pdf", []byte("%PDF"))
	resp := postResume(h, body, ct)
	assert.Equal(t, 400, resp.Code)
}

func TestParseResume_TooLarge(t *testing.T) {
	svc := &MockResumeService{outcome: sampleOutcome()}
	h := newTestEngine(t, svc, 1)

	body, ct := multipartBody(t, "file", "big.pdf", bytes.Repeat([]byte("a"), 1<<20+1))
	resp := postResume(h, body, ct)
	assert.Equal(t, 400, resp.Code)
	assert.Contains(t, resp.Body.String(), "1MB")
	assert.Empty(t, svc.gotName, "超限文件不应进入解析")
}

func TestParseResume_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"不支持的格式", processor.NewUnsupportedFormatError("a.txt", ".txt"), 415},
		{"解析失败", processor.NewParseFailureError("a.pdf", ".pdf", errors.New("corrupt")), 422},
		{"其他错误", errors.New("boom"), 500},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestEngine(t, &MockResumeService{parseErr: tt.err}, 10)
			body, ct := multipartBody(t, "file", "a.pdf", []byte("x"))
			resp := postResume(h, body, ct)
			assert.Equal(t, tt.status, resp.Code)
			assert.Contains(t, resp.Body.String(), `"error"`)
		})
	}
}

func TestGetResume(t *testing.T) {
	stored := &processor.StoredResume{SubmissionUUID: "u-1", OriginalFilename: "a.pdf", Resume: types.NewParsedResume()}
	tests := []struct {
		name   string
		svc    *MockResumeService
		status int
	}{
		{"存在", &MockResumeService{stored: stored}, 200},
		{"不存在", &MockResumeService{getErr: processor.ErrNotFound}, 404},
		{"未启用持久化", &MockResumeService{getErr: processor.ErrPersistenceDisabled}, 503},
		{"数据库错误", &MockResumeService{getErr: errors.New("db down")}, 500},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestEngine(t, tt.svc, 10)
			resp := ut.PerformRequest(h.Engine, "GET", "/api/v1/resume/u-1", nil)
			assert.Equal(t, tt.status, resp.Code)
		})
	}
}

func TestHealth(t *testing.T) {
	h := newTestEngine(t, &MockResumeService{}, 10)
	resp := ut.PerformRequest(h.Engine, "GET", "/api/v1/health", nil)
	assert.Equal(t, 200, resp.Code)
	assert.JSONEq(t, `{"status":"ok"}`, resp.Body.String())
}
