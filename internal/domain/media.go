package domain

import "time"

// FileKind 是文件名分类结果中的文件类型。
// 空字符串表示无法识别（元数据不可用，不是错误）。
type FileKind string

const (
	KindUnknown FileKind = ""
	KindMain    FileKind = "main"
	KindChapter FileKind = "chapter"
)

// FileName 是相机文件名解析结果（固定形状，缺失即零值/nil）。
type FileName struct {
	Kind    FileKind
	Chapter *int   // 仅 chapter 时非 nil
	Number  string // 序号原样保留（新命名 6 位，旧命名 4 位）
}

// Recognized 报告文件名是否匹配了任一已知命名规则。
func (f FileName) Recognized() bool { return f.Kind != KindUnknown }

// MediaFile 描述一次扫描得到的媒体文件（只做 stat，不读内容）。
//
// 不变量：
// - Path 是唯一标识
// - Modified 总是存在；Created 仅在平台提供 birth time 时非 nil
type MediaFile struct {
	Path     string
	Name     string
	Size     int64
	Created  *time.Time
	Modified time.Time
	Info     FileName
}
