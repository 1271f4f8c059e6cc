package run

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/John-Robertt/gopro-transfer/internal/app/selector"
	"github.com/John-Robertt/gopro-transfer/internal/app/transfer"
	"github.com/John-Robertt/gopro-transfer/internal/config"
	"github.com/John-Robertt/gopro-transfer/internal/domain"
	"github.com/John-Robertt/gopro-transfer/internal/mediainfo"
	"github.com/John-Robertt/gopro-transfer/internal/scan"
)

// Prober 提供 list 的补充信息；任一方法失败只影响展示。
type Prober interface {
	Duration(path string) (time.Duration, error)
	CaptureTime(path string) (time.Time, error)
}

// ListEntry 是 list 输出的一行。
type ListEntry struct {
	File     domain.MediaFile
	Duration time.Duration // 仅视频，未知为 0
	Captured *time.Time    // 仅图片（EXIF），未知为 nil
	// Folder 是 transfer 会使用的日期目录名。
	Folder string
}

// ListError 是 list 的卷级失败，Code 与 RunReport.ErrorCode 取值一致。
type ListError struct {
	Code string
	Err  error
}

func (e *ListError) Error() string { return fmt.Sprintf("%s：%v", e.Code, e.Err) }

func (e *ListError) Unwrap() error { return e.Err }

// List 列出候选媒体文件（不做日期筛选，不写入任何文件）。
// prober 为 nil 时不读取时长/EXIF。
func List(eff config.EffectiveConfig, deps Deps, prober Prober) ([]ListEntry, error) {
	deps = deps.withDefaults(eff)
	log := deps.Log.Named("list")

	res, err := scan.ScanVolume(eff.Source)
	if err != nil {
		code := domain.ErrCodeIOFailed
		if errors.Is(err, domain.ErrNotFound) {
			code = domain.ErrCodeSourceNotFound
		}
		return nil, &ListError{Code: code, Err: err}
	}
	if !res.ContainerFound {
		return nil, &ListError{Code: domain.ErrCodeContainerNotFound, Err: fmt.Errorf("%s 下没有 %s 目录", eff.Source, scan.ContainerDir)}
	}

	paths, err := selector.Candidates(res, eff.MediaDir, eff.Extensions)
	if err != nil {
		return nil, &ListError{Code: domain.ErrCodeIOFailed, Err: err}
	}
	log.Infof("列出 %d 个媒体文件", len(paths))

	out := make([]ListEntry, 0, len(paths))
	for _, p := range paths {
		mf, err := deps.Read(p)
		if err != nil {
			log.Warnf("读取元数据失败：%v", err)
			continue
		}
		e := ListEntry{File: mf}
		t, _ := mediainfo.BestTime(mf, deps.Now())
		if e.Folder, err = transfer.DateFolder(eff.DateFormat, t); err != nil {
			return nil, &ListError{Code: domain.ErrCodeConfigInvalid, Err: err}
		}
		if prober != nil {
			switch {
			case strings.HasSuffix(mf.Name, scan.VideoExt):
				if d, err := prober.Duration(p); err == nil {
					e.Duration = d
				} else {
					log.Debugf("读取时长失败 %s：%v", mf.Name, err)
				}
			case strings.HasSuffix(mf.Name, scan.ImageExt):
				if t, err := prober.CaptureTime(p); err == nil {
					e.Captured = &t
				} else {
					log.Debugf("读取 EXIF 失败 %s：%v", mf.Name, err)
				}
			}
		}
		out = append(out, e)
	}
	return out, nil
}

// Format 渲染 list 的一行：
//
//	GOPR0001.MP4 (12.3 MB) - 2024-01-05 10:00:00 - Type: main 0001 - 0:42
func (e ListEntry) Format() string {
	f := e.File
	date := "Unknown date"
	if f.Created != nil {
		date = f.Created.Local().Format("2006-01-02 15:04:05")
	}
	kind := string(f.Info.Kind)
	if kind == "" {
		kind = "unknown"
	}
	typ := strings.TrimSpace(kind + " " + f.Info.Number)
	if f.Info.Chapter != nil {
		typ = fmt.Sprintf("%s (chapter %d)", typ, *f.Info.Chapter)
	}

	s := fmt.Sprintf("%s (%.1f MB) - %s - Type: %s", f.Name, float64(f.Size)/(1024*1024), date, typ)
	if e.Duration > 0 {
		total := int(e.Duration.Round(time.Second) / time.Second)
		s += fmt.Sprintf(" - %d:%02d", total/60, total%60)
	}
	if e.Captured != nil {
		s += " - EXIF " + e.Captured.Format("2006-01-02 15:04:05")
	}
	return s
}
