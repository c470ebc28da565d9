package processor

import (
	"context"
)

//
// 文档解码相关接口
//

// PDFExtractor PDF提取器接口
type PDFExtractor interface {
	// ExtractFromFile 从PDF文件提取文本层和元数据
	ExtractFromFile(ctx context.Context, filePath string) (string, map[string]interface{}, error)
}

// WordExtractor Word文档提取器接口，提供两种策略：
// 纯文本提取，以及转换为HTML（不含图片）后由调用方剥离标签
type WordExtractor interface {
	// ExtractRawText 提取纯文本
	ExtractRawText(ctx context.Context, filePath string) (string, error)

	// ConvertToHTML 转换为HTML
	ConvertToHTML(ctx context.Context, filePath string) (string, error)
}
