package selector

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/John-Robertt/gopro-transfer/internal/domain"
	"github.com/John-Robertt/gopro-transfer/internal/mediainfo"
)

// Candidates 列出待处理的文件路径（只看子目录内的直接文件，不递归）。
//
// - folder 为空：全部子目录；否则只取同名子目录（不存在 => 空结果）
// - exts：大小写敏感的后缀匹配
// - 输出按子目录顺序、子目录内按文件名排序
func Candidates(res domain.VolumeScanResult, folder string, exts []string) ([]string, error) {
	folders := res.Folders
	if folder != "" {
		f, ok := res.Folder(folder)
		if !ok {
			return []string{}, nil
		}
		folders = []domain.FolderInfo{f}
	}

	out := make([]string, 0, res.MediaCount)
	for _, f := range folders {
		entries, err := os.ReadDir(f.Path)
		if err != nil {
			return nil, err
		}
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			if e.IsDir() || !hasExt(e.Name(), exts) {
				continue
			}
			names = append(names, e.Name())
		}
		sort.Strings(names)
		for _, n := range names {
			out = append(out, filepath.Join(f.Path, n))
		}
	}
	return out, nil
}

func hasExt(name string, exts []string) bool {
	for _, ext := range exts {
		if ext != "" && strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}

// Grouping 是按日期分组的结果。
type Grouping struct {
	// Buckets 按日期升序；每个路径恰好出现在一个 bucket 中，bucket 内保持输入顺序。
	Buckets []domain.DateBucket
	Files   map[string]domain.MediaFile
	// FallbackNow 是因缺少时间戳而使用 now 分组的文件数。
	FallbackNow int
	// Missing 是列出后、stat 前消失的文件（不参与分组）。
	Missing []string
}

// GroupByDate 按 BestTime 的本地日历日期分组。
func GroupByDate(paths []string, read mediainfo.ReadFunc, now time.Time) (Grouping, error) {
	if read == nil {
		read = mediainfo.Read
	}
	g := Grouping{
		Buckets: []domain.DateBucket{},
		Files:   make(map[string]domain.MediaFile, len(paths)),
	}
	index := make(map[string]int, 8)

	for _, p := range paths {
		mf, err := read(p)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				g.Missing = append(g.Missing, p)
				continue
			}
			return Grouping{}, fmt.Errorf("读取元数据失败：%s：%w", p, err)
		}
		g.Files[p] = mf

		t, fallback := mediainfo.BestTime(mf, now)
		if fallback {
			g.FallbackNow++
		}
		key := mediainfo.DateKey(t)
		if i, ok := index[key]; ok {
			g.Buckets[i].Paths = append(g.Buckets[i].Paths, p)
			continue
		}
		index[key] = len(g.Buckets)
		g.Buckets = append(g.Buckets, domain.DateBucket{Date: key, Paths: []string{p}})
	}

	// YYYY-MM-DD 字典序即日期序。
	sort.SliceStable(g.Buckets, func(i, j int) bool { return g.Buckets[i].Date < g.Buckets[j].Date })
	return g, nil
}

// Options 描述一次选择。
type Options struct {
	Scan     domain.VolumeScanResult
	Folder   string
	Exts     []string
	AllDates bool
	Read     mediainfo.ReadFunc
	Now      time.Time
}

// Selection 是选择结果；Files 的顺序即执行顺序。
type Selection struct {
	Candidates  int
	Dates       []string // 出现过的全部日期（升序）
	Date        string   // 选中的日期；AllDates 或无候选时为空
	Files       []domain.MediaFile
	FallbackNow int
	Missing     []string
}

// Select 列出候选文件并（默认）只保留最新一天的全部文件。
// 无候选 => 空结果，不是错误。
func Select(opts Options) (Selection, error) {
	sel := Selection{Dates: []string{}, Files: []domain.MediaFile{}}

	paths, err := Candidates(opts.Scan, opts.Folder, opts.Exts)
	if err != nil {
		return sel, err
	}
	sel.Candidates = len(paths)
	if len(paths) == 0 {
		return sel, nil
	}

	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}
	g, err := GroupByDate(paths, opts.Read, now)
	if err != nil {
		return sel, err
	}
	sel.FallbackNow = g.FallbackNow
	sel.Missing = g.Missing
	for _, b := range g.Buckets {
		sel.Dates = append(sel.Dates, b.Date)
	}
	if len(g.Buckets) == 0 {
		return sel, nil
	}

	keep := g.Buckets
	if !opts.AllDates {
		keep = g.Buckets[len(g.Buckets)-1:]
		sel.Date = keep[0].Date
	}
	for _, b := range keep {
		for _, p := range b.Paths {
			sel.Files = append(sel.Files, g.Files[p])
		}
	}
	return sel, nil
}
