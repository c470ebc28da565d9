package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStripHTML(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "段落和实体",
			input: `<p>Hello&nbsp;World</p><img src="photo.png"/><p>Second &amp; line</p>`,
			want:  "Hello World\nSecond & line",
		},
		{
			name:  "标题和列表",
			input: "<h2>SKILLS</h2><ul><li>Go</li><li>Rust</li></ul>",
			want:  "SKILLS\nGo\nRust",
		},
		{
			name:  "换行标签和多余空白",
			input: "Line   one<br/>   Line two",
			want:  "Line one\nLine two",
		},
		{
			name:  "空输入",
			input: "   ",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StripHTML(tt.input))
		})
	}
}
