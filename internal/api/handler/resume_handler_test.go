package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"testing"
	"time"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/ut"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resume-parser-go/internal/config"
	"resume-parser-go/internal/processor"
	"resume-parser-go/internal/storage"
	"resume-parser-go/internal/storage/models"
	"resume-parser-go/internal/types"
)

const testResumeID = "0190a3c4-5b6d-7e8f-9a0b-1c2d3e4f5a6b"

// fakeService 内存版简历服务，记录上传时看到的临时文件
type fakeService struct {
	uploadErr   error
	listErr     error
	records     []models.ResumeRecord
	seenPath    string
	seenMIME    string
	pathExisted bool
}

func (f *fakeService) Upload(ctx context.Context, req processor.UploadRequest) (*models.ResumeRecord, *types.ParsedResume, error) {
	f.seenPath = req.FilePath
	f.seenMIME = req.MIMEType
	_, statErr := os.Stat(req.FilePath)
	f.pathExisted = statErr == nil
	if f.uploadErr != nil {
		return nil, nil, f.uploadErr
	}
	parsed := &types.ParsedResume{
		RawText:      "JOHN SMITH\nSUMMARY\nBackend engineer.",
		PersonalInfo: types.PersonalInfo{Name: "JOHN SMITH"},
		Sections:     map[types.SectionKind]string{types.SectionSummary: "Backend engineer."},
		Metadata:     types.Metadata{SourceFormat: types.SourceFormatPDF, TextLength: 36},
	}
	record, err := models.NewResumeRecord(testResumeID, req.OriginalFilename, req.MIMEType, "md5", "rules-1.0", parsed, time.Date(2024, 5, 1, 2, 30, 0, 0, time.UTC))
	if err != nil {
		return nil, nil, err
	}
	return record, parsed, nil
}

func (f *fakeService) List(ctx context.Context) ([]models.ResumeSummary, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]models.ResumeSummary, 0, len(f.records))
	for i := range f.records {
		out = append(out, f.records[i].Summary())
	}
	return out, nil
}

func (f *fakeService) GetAll(ctx context.Context) ([]models.ResumeRecord, error) {
	return f.records, f.listErr
}

func (f *fakeService) Get(ctx context.Context, id string) (*models.ResumeRecord, error) {
	for i := range f.records {
		if f.records[i].ID == id {
			return &f.records[i], nil
		}
	}
	return nil, storage.ErrResumeNotFound
}

func newTestEngine(t *testing.T, svc ResumeService) *server.Hertz {
	t.Helper()
	h := server.New(server.WithHostPorts("127.0.0.1:0"))
	rh := NewResumeHandler(svc, &config.ServerConfig{
		UploadDir:        t.TempDir(),
		MaxUploadMB:      1,
		AllowedMIMETypes: []string{"application/pdf", "application/msword", "application/vnd.openxmlformats-officedocument.wordprocessingml.document"},
	})
	g := h.Group("/api/resumes")
	g.POST("/upload", rh.HandleUpload)
	g.GET("/", rh.HandleList)
	g.GET("/get-all", rh.HandleGetAll)
	g.GET("/:id", rh.HandleGetByID)
	return h
}

// multipartBody 构造带指定Content-Type的上传表单
func multipartBody(t *testing.T, field, fileName, contentType string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := new(bytes.Buffer)
	writer := multipart.NewWriter(body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, field, fileName))
	header.Set("Content-Type", contentType)
	part, err := writer.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func performUpload(h *server.Hertz, body *bytes.Buffer, contentType string) *ut.ResponseRecorder {
	return ut.PerformRequest(h.Engine, "POST", "/api/resumes/upload",
		&ut.Body{Body: body, Len: body.Len()},
		ut.Header{Key: "Content-Type", Value: contentType},
	)
}

func TestHandleUploadSuccess(t *testing.T) {
	svc := &fakeService{}
	h := newTestEngine(t, svc)

	body, ct := multipartBody(t, UploadFormField, "John_Smith.pdf", "application/pdf", []byte("%PDF-1.4 fake"))
	resp := performUpload(h, body, ct)
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())

	var got UploadResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &got))
	assert.Equal(t, "Resume uploaded and parsed successfully", got.Message)
	assert.Equal(t, testResumeID, got.Resume.ID)
	assert.Equal(t, "John_Smith.pdf", got.Resume.OriginalFilename)
	require.NotNil(t, got.Resume.ParsedData)
	assert.Equal(t, "JOHN SMITH", got.Resume.ParsedData.PersonalInfo.Name)

	assert.Equal(t, "application/pdf", svc.seenMIME)
	assert.True(t, svc.pathExisted, "调用服务时临时文件应已落盘")
	_, err := os.Stat(svc.seenPath)
	assert.True(t, os.IsNotExist(err), "请求结束后临时文件应被删除")
}

func TestHandleUploadRejectsBadRequests(t *testing.T) {
	svc := &fakeService{}
	h := newTestEngine(t, svc)

	t.Run("缺少文件", func(t *testing.T) {
		body, ct := multipartBody(t, "other", "a.pdf", "application/pdf", []byte("x"))
		resp := performUpload(h, body, ct)
		assert.Equal(t, http.StatusBadRequest, resp.Code)
		assert.Contains(t, resp.Body.String(), "No file uploaded")
	})

	t.Run("不允许的类型", func(t *testing.T) {
		body, ct := multipartBody(t, UploadFormField, "a.txt", "text/plain", []byte("plain text resume"))
		resp := performUpload(h, body, ct)
		assert.Equal(t, http.StatusBadRequest, resp.Code)
		assert.Contains(t, resp.Body.String(), "Invalid file type")
	})

	t.Run("文件过大", func(t *testing.T) {
		body, ct := multipartBody(t, UploadFormField, "big.pdf", "application/pdf", bytes.Repeat([]byte("a"), 1024*1024+1))
		resp := performUpload(h, body, ct)
		assert.Equal(t, http.StatusBadRequest, resp.Code)
		assert.Contains(t, resp.Body.String(), "File too large")
	})

	assert.Empty(t, svc.seenPath, "被拒绝的请求不应调用服务")
}

func TestHandleUploadErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"不支持的格式", processor.NewUnsupportedFormatError("a.pdf", "application/x-foo"), http.StatusBadRequest},
		{"无法读取文本", processor.NewUnreadableError("a.pdf", "扫描件"), http.StatusUnprocessableEntity},
		{"解码失败", processor.NewDecodeError("a.pdf", "tika 503"), http.StatusInternalServerError},
		{"存储失败", errors.New("保存简历记录失败: deadlock"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeService{uploadErr: tt.err}
			h := newTestEngine(t, svc)

			body, ct := multipartBody(t, UploadFormField, "a.pdf", "application/pdf", []byte("%PDF"))
			resp := performUpload(h, body, ct)
			assert.Equal(t, tt.status, resp.Code)

			var got ErrorResponse
			require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &got))
			assert.NotEmpty(t, got.Message)
			assert.Equal(t, tt.err.Error(), got.Error)

			_, err := os.Stat(svc.seenPath)
			assert.True(t, os.IsNotExist(err), "出错时临时文件也应被删除")
		})
	}
}

func sampleRecords(t *testing.T) []models.ResumeRecord {
	t.Helper()
	svc := &fakeService{}
	record, _, err := svc.Upload(context.Background(), processor.UploadRequest{FilePath: "/nonexistent", OriginalFilename: "cv.pdf", MIMEType: "application/pdf"})
	require.NoError(t, err)
	return []models.ResumeRecord{*record}
}

func TestHandleList(t *testing.T) {
	h := newTestEngine(t, &fakeService{records: sampleRecords(t)})

	resp := ut.PerformRequest(h.Engine, "GET", "/api/resumes/", nil)
	require.Equal(t, http.StatusOK, resp.Code)

	var got struct {
		Count   int              `json:"count"`
		Resumes []map[string]any `json:"resumes"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &got))
	assert.Equal(t, 1, got.Count)
	require.Len(t, got.Resumes, 1)
	assert.Equal(t, testResumeID, got.Resumes[0]["id"])
	assert.NotContains(t, got.Resumes[0], "rawText", "列表不返回全文")
	assert.NotContains(t, got.Resumes[0], "personalInfo", "个人信息应嵌套在parsedData下")

	parsedData, ok := got.Resumes[0]["parsedData"].(map[string]any)
	require.True(t, ok, "列表项应包含parsedData")
	personalInfo, ok := parsedData["personalInfo"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "JOHN SMITH", personalInfo["name"])
	assert.Contains(t, parsedData, "metadata")
}

func TestHandleListError(t *testing.T) {
	h := newTestEngine(t, &fakeService{listErr: errors.New("db down")})
	resp := ut.PerformRequest(h.Engine, "GET", "/api/resumes/", nil)
	assert.Equal(t, http.StatusInternalServerError, resp.Code)
}

func TestHandleGetAll(t *testing.T) {
	h := newTestEngine(t, &fakeService{records: sampleRecords(t)})

	resp := ut.PerformRequest(h.Engine, "GET", "/api/resumes/get-all", nil)
	require.Equal(t, http.StatusOK, resp.Code)

	var got map[string][]UploadedResume
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &got))
	require.Len(t, got["resume"], 1)
	resume := got["resume"][0]
	assert.Equal(t, testResumeID, resume.ID)
	assert.Equal(t, "cv.pdf", resume.OriginalFilename)
	require.NotNil(t, resume.ParsedData)
	assert.Equal(t, "JOHN SMITH\nSUMMARY\nBackend engineer.", resume.ParsedData.RawText)
	assert.Equal(t, "Backend engineer.", resume.ParsedData.Sections[types.SectionSummary])
}

func TestHandleGetByID(t *testing.T) {
	h := newTestEngine(t, &fakeService{records: sampleRecords(t)})

	resp := ut.PerformRequest(h.Engine, "GET", "/api/resumes/"+testResumeID, nil)
	require.Equal(t, http.StatusOK, resp.Code)
	var shape map[string]any
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &shape))
	assert.ElementsMatch(t, []string{"id", "originalFilename", "parsedData", "uploadedAt"}, keysOf(shape),
		"详情与上传响应中的resume结构一致")

	var resume UploadedResume
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &resume))
	assert.Equal(t, testResumeID, resume.ID)
	require.NotNil(t, resume.ParsedData)
	assert.Equal(t, "JOHN SMITH", resume.ParsedData.PersonalInfo.Name)
	assert.Equal(t, types.SourceFormatPDF, resume.ParsedData.Metadata.SourceFormat)

	resp = ut.PerformRequest(h.Engine, "GET", "/api/resumes/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	resp = ut.PerformRequest(h.Engine, "GET", "/api/resumes/0190a3c4-0000-7000-8000-00000000ffff", nil)
	assert.Equal(t, http.StatusNotFound, resp.Code)
	assert.JSONEq(t, `{"message":"Resume not found"}`, resp.Body.String())
}

func TestHandleGetByIDCorruptRecord(t *testing.T) {
	records := sampleRecords(t)
	records[0].Sections = []byte("{not json")
	h := newTestEngine(t, &fakeService{records: records})

	resp := ut.PerformRequest(h.Engine, "GET", "/api/resumes/"+testResumeID, nil)
	assert.Equal(t, http.StatusInternalServerError, resp.Code)
	assert.Contains(t, resp.Body.String(), "Error fetching resume")
}

func keysOf(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}

func TestNormalizeMIME(t *testing.T) {
	assert.Equal(t, "application/pdf", normalizeMIME("Application/PDF; charset=binary"))
	assert.Equal(t, "application/msword", normalizeMIME("application/msword"))
	assert.Equal(t, "", normalizeMIME(""))
}

func TestUniqueUploadName(t *testing.T) {
	a := uniqueUploadName("CV.PDF")
	b := uniqueUploadName("CV.PDF")
	assert.NotEqual(t, a, b)
	assert.Regexp(t, `^resume-\d+-[0-9a-f]{8}\.pdf$`, a)
}
