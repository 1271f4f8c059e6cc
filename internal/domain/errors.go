package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound：路径或卷不存在。
	ErrNotFound = errors.New("not found")
	// ErrParse：容器解析器无法打开或解码视频。
	ErrParse = errors.New("parse error")
)

// TransferIOError 是单个文件复制/移动失败（权限、磁盘满、源文件消失等）。
// 只影响该文件，批次继续。
type TransferIOError struct {
	Op  string // "mkdir" | "copy" | "move" | "stat"
	Src string
	Dst string
	Err error
}

func (e *TransferIOError) Error() string {
	return fmt.Sprintf("%s %q -> %q 失败：%v", e.Op, e.Src, e.Dst, e.Err)
}

func (e *TransferIOError) Unwrap() error { return e.Err }
