package mediainfo

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/John-Robertt/gopro-transfer/internal/domain"
	"github.com/John-Robertt/gopro-transfer/internal/filename"
)

// ReadFunc 是元数据读取的函数形态；上层组件只依赖它，便于测试注入固定时间。
type ReadFunc func(path string) (domain.MediaFile, error)

// Reader 读取单个文件的元数据（只做 stat，不读内容）。
type Reader struct {
	// BirthTime 为 nil 时使用平台实现（statx / Birthtimespec / CreationTime）。
	BirthTime func(path string, fi os.FileInfo) (time.Time, bool)
}

// NoBirthTime 模拟不提供 birth time 的平台。
func NoBirthTime(string, os.FileInfo) (time.Time, bool) { return time.Time{}, false }

// Read 使用平台默认实现读取元数据。
func Read(path string) (domain.MediaFile, error) { return Reader{}.Read(path) }

// Read 返回 size、creation（可能为 nil）、modification 与文件名分类结果。
// 路径在调用时不存在（例如被外部删除）=> 包装 domain.ErrNotFound 的错误。
func (r Reader) Read(path string) (domain.MediaFile, error) {
	fi, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return domain.MediaFile{}, fmt.Errorf("%w: %s", domain.ErrNotFound, path)
		}
		return domain.MediaFile{}, err
	}
	if fi.IsDir() {
		return domain.MediaFile{}, fmt.Errorf("%q 是目录，不是媒体文件", path)
	}

	name := filepath.Base(path)
	mf := domain.MediaFile{
		Path:     path,
		Name:     name,
		Size:     fi.Size(),
		Modified: fi.ModTime(),
		Info:     filename.Classify(name),
	}

	bt := r.BirthTime
	if bt == nil {
		bt = birthTime
	}
	if t, ok := bt(path, fi); ok && !t.IsZero() {
		mf.Created = &t
	}
	return mf, nil
}

// BestTime 返回用于分组的时间：creation > modification > now。
// fallback=true 表示使用了 now，这是会影响分组的策略决定，调用方必须记录。
func BestTime(mf domain.MediaFile, now time.Time) (t time.Time, fallback bool) {
	if mf.Created != nil && !mf.Created.IsZero() {
		return *mf.Created, false
	}
	if !mf.Modified.IsZero() {
		return mf.Modified, false
	}
	return now, true
}

// DateKey 把时间转换为本地日历日期（不含时刻）。
func DateKey(t time.Time) string {
	return t.Local().Format("2006-01-02")
}
