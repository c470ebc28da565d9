package storage

import (
	"context"
	"encoding/json"
	"net"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resume-parser-go/internal/types"
)

// memoryHook 在hook层直接应答 GET/SET/DEL，不连接真实的Redis
type memoryHook struct {
	data    map[string]string
	deleted []string
}

func (h *memoryHook) DialHook(next redis.DialHook) redis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		return next(ctx, network, addr)
	}
}

func (h *memoryHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		args := cmd.Args()
		key, _ := args[1].(string)
		switch c := cmd.(type) {
		case *redis.StringCmd:
			val, ok := h.data[key]
			if !ok {
				c.SetErr(redis.Nil)
				return redis.Nil
			}
			c.SetVal(val)
		case *redis.StatusCmd:
			switch v := args[2].(type) {
			case []byte:
				h.data[key] = string(v)
			case string:
				h.data[key] = v
			}
			c.SetVal("OK")
		case *redis.IntCmd:
			if _, ok := h.data[key]; ok {
				delete(h.data, key)
				h.deleted = append(h.deleted, key)
				c.SetVal(1)
			}
		}
		return nil
	}
}

func (h *memoryHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return next
}

func newHookedRedis(t *testing.T) (*Redis, *memoryHook) {
	t.Helper()
	hook := &memoryHook{data: map[string]string{}}
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	client.AddHook(hook)
	t.Cleanup(func() { _ = client.Close() })
	return &Redis{Client: client}, hook
}

func TestParsedResumeKey(t *testing.T) {
	assert.Equal(t, "app:resume:parsed:abc:pdf", parsedResumeKey("abc", types.SourceFormatPDF))
	assert.NotEqual(t, parsedResumeKey("abc", types.SourceFormatPDF), parsedResumeKey("abc", types.SourceFormatDOCX))
}

func TestParsedResumeCacheRoundTrip(t *testing.T) {
	r, hook := newHookedRedis(t)
	ctx := context.Background()
	parsed := &types.ParsedResume{
		RawText:      "JANE DOE\njane@example.com",
		PersonalInfo: types.PersonalInfo{Name: "JANE DOE"},
		Sections:     map[types.SectionKind]string{types.SectionSkills: "Go"},
	}

	require.NoError(t, r.SetParsedResume(ctx, "abc", types.SourceFormatPDF, parsed))
	assert.Contains(t, hook.data, "app:resume:parsed:abc:pdf")

	got, err := r.GetParsedResume(ctx, "abc", types.SourceFormatPDF)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, parsed.RawText, got.RawText)

	miss, err := r.GetParsedResume(ctx, "abc", types.SourceFormatDOCX)
	require.NoError(t, err)
	assert.Nil(t, miss, "其他格式不应命中")

	assert.Error(t, r.SetParsedResume(ctx, "abc", types.SourceFormatPDF, &types.ParsedResume{}), "空结果不应写入缓存")
}

func TestGetParsedResumeDropsUnusableEntries(t *testing.T) {
	empty, err := json.Marshal(types.ParsedResume{})
	require.NoError(t, err)

	tests := []struct {
		name  string
		value string
	}{
		{"JSON null", "null"},
		{"损坏的JSON", "{not json"},
		{"空文本", string(empty)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, hook := newHookedRedis(t)
			key := parsedResumeKey("abc", types.SourceFormatPDF)
			hook.data[key] = tt.value

			got, err := r.GetParsedResume(context.Background(), "abc", types.SourceFormatPDF)
			require.NoError(t, err)
			assert.Nil(t, got, "不可用的缓存内容应视为未命中")
			assert.Equal(t, []string{key}, hook.deleted, "不可用的缓存内容应被删除")
		})
	}
}

func TestRedisNotInitialized(t *testing.T) {
	r := &Redis{}
	_, err := r.GetParsedResume(context.Background(), "abc", types.SourceFormatPDF)
	assert.ErrorIs(t, err, errRedisNotInit)
	assert.ErrorIs(t, r.DeleteParsedResume(context.Background(), "abc", types.SourceFormatPDF), errRedisNotInit)
}
