package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resume-parser-go/internal/types"
)

func TestResumeRecordRoundTrip(t *testing.T) {
	uploadedAt := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	parsed := &types.ParsedResume{
		RawText:      "JANE DOE\njane@example.com",
		PersonalInfo: types.PersonalInfo{Name: "JANE DOE", Email: "jane@example.com"},
		Sections:     map[types.SectionKind]string{types.SectionSkills: "Go, Docker"},
		Metadata: types.Metadata{
			SourceFormat: types.SourceFormatPDF,
			ExtractedAt:  uploadedAt,
			TextLength:   25,
		},
	}

	record, err := NewResumeRecord("0190c5b8-0000-7000-8000-000000000001", "jane.pdf", "application/pdf", "abc", "rules-1.0", parsed, uploadedAt)
	require.NoError(t, err)
	assert.Equal(t, "resume_records", record.TableName())
	assert.JSONEq(t, `{"name":"JANE DOE","email":"jane@example.com"}`, string(record.PersonalInfo))

	restored, err := record.ParsedData()
	require.NoError(t, err)
	assert.Equal(t, parsed.RawText, restored.RawText)
	assert.Equal(t, parsed.PersonalInfo, restored.PersonalInfo)
	assert.Equal(t, parsed.Sections, restored.Sections)
	assert.True(t, parsed.Metadata.ExtractedAt.Equal(restored.Metadata.ExtractedAt))

	summary := record.Summary()
	data, err := json.Marshal(summary)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"originalFilename":"jane.pdf"`)
	assert.NotContains(t, string(data), "rawText", "列表信息不应包含全文")

	var shape map[string]any
	require.NoError(t, json.Unmarshal(data, &shape))
	assert.NotContains(t, shape, "personalInfo", "个人信息应嵌套在parsedData下")
	nested, ok := shape["parsedData"].(map[string]any)
	require.True(t, ok, "列表信息应包含parsedData对象")
	assert.Contains(t, nested, "personalInfo")
	assert.Contains(t, nested, "metadata")
	assert.NotContains(t, nested, "sections")
}

func TestNewResumeRecordEmptySections(t *testing.T) {
	record, err := NewResumeRecord("id", "a.pdf", "application/pdf", "md5", "v", &types.ParsedResume{RawText: "text"}, time.Now())
	require.NoError(t, err)
	assert.Equal(t, "{}", string(record.Sections), "空分区应序列化为空对象")

	_, err = NewResumeRecord("id", "a.pdf", "application/pdf", "md5", "v", nil, time.Now())
	assert.Error(t, err)
}
