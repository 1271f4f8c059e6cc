//go:build !linux && !darwin && !freebsd && !netbsd

package fsx

import (
	"os"
	"time"
)

// 无法取得 atime 的平台用 mtime 代替。
func accessTime(fi os.FileInfo) time.Time { return fi.ModTime() }
