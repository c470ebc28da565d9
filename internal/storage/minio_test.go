package storage

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resume-parser-go/internal/config"
)

func TestObjectKeys(t *testing.T) {
	assert.Equal(t, "resumes/abc/original.pdf", originalObjectKey("abc", ".PDF"))
	assert.Equal(t, "resumes/abc/original.docx", originalObjectKey("abc", ".docx"))
	assert.Equal(t, "resumes/abc/raw_text.txt", parsedTextObjectKey("abc"))
}

func TestContentTypeForExt(t *testing.T) {
	assert.Equal(t, "application/pdf", contentTypeForExt(".pdf"))
	assert.Equal(t, "application/msword", contentTypeForExt(".DOC"))
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.wordprocessingml.document", contentTypeForExt(".docx"))
	assert.Equal(t, "application/octet-stream", contentTypeForExt(".txt"))
}

func TestExpirationLifecycle(t *testing.T) {
	cfg := expirationLifecycle("expire-originals", 30)
	require.Len(t, cfg.Rules, 1)
	assert.Equal(t, "expire-originals", cfg.Rules[0].ID)
	assert.Equal(t, "Enabled", cfg.Rules[0].Status)
	assert.EqualValues(t, 30, cfg.Rules[0].Expiration.Days)
}

func TestNewMinIOClientDefaults(t *testing.T) {
	_, err := newMinIOClient(nil, nil)
	assert.Error(t, err, "空配置应返回错误")

	m, err := newMinIOClient(&config.MinIOConfig{Endpoint: "127.0.0.1:9000"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "resume-originals", m.originalBucket)
	assert.Equal(t, "resume-parsed-text", m.parsedBucket)
}

func TestUploadParsedTextCanceledContext(t *testing.T) {
	m, err := newMinIOClient(&config.MinIOConfig{
		Endpoint:         "127.0.0.1:1",
		OriginalsBucket:  "originals",
		ParsedTextBucket: "parsed",
	}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = m.UploadParsedText(ctx, "abc", strings.Repeat("text ", 10))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsed/resumes/abc/raw_text.txt")
}
