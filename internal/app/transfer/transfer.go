package transfer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lestrrat-go/strftime"

	"github.com/John-Robertt/gopro-transfer/internal/config"
	"github.com/John-Robertt/gopro-transfer/internal/domain"
	"github.com/John-Robertt/gopro-transfer/internal/infra/fsx"
	"github.com/John-Robertt/gopro-transfer/internal/infra/logx"
	"github.com/John-Robertt/gopro-transfer/internal/mediainfo"
)

// DefaultDateFormat 与配置默认值一致。
const DefaultDateFormat = "%Y-%m-%d"

// Observer 接收逐文件结果（用于 CLI 进度输出）。
type Observer interface {
	OnFileDone(idx, total int, out domain.FileOutcome, size int64, dur time.Duration)
}

// Executor 把选中的文件复制/移动到 <dest>/<日期目录>/<原文件名>。
type Executor struct {
	Log      *logx.Logger
	Observer Observer
	// Now 为 nil 时使用 time.Now（只在文件没有任何时间戳时用到）。
	Now func() time.Time
}

// Execute 使用默认 Executor 执行传输。
func Execute(ctx context.Context, eff config.EffectiveConfig, files []domain.MediaFile, obs Observer) domain.TransferResult {
	return Executor{Observer: obs}.Execute(ctx, eff, files)
}

// Execute 顺序处理 files。
//
// 规则（硬约束）：
// - 目标已存在 => skipped（不覆盖，不算失败）
// - 单个文件失败 => failed（TransferIOError），批次继续
// - ctx 只在文件之间检查；取消后剩余文件不再处理
// - DryRun 只计算目标路径，结果为 planned
func (x Executor) Execute(ctx context.Context, eff config.EffectiveConfig, files []domain.MediaFile) domain.TransferResult {
	res := domain.TransferResult{
		Records: []domain.TransferRecord{},
		Items:   make([]domain.FileOutcome, 0, len(files)),
	}

	layout := eff.DateFormat
	if strings.TrimSpace(layout) == "" {
		layout = DefaultDateFormat
	}
	pattern, err := strftime.New(layout)
	if err != nil {
		// 配置层已校验；这里兜底为逐文件失败，保持批次语义。
		for _, f := range files {
			res.Add(failed(f.Path, "", &domain.TransferIOError{Op: "format", Src: f.Path, Err: err}), 0)
		}
		return res
	}

	now := x.Now
	if now == nil {
		now = time.Now
	}
	verb := "复制"
	if eff.Move {
		verb = "移动"
	}

	for i, f := range files {
		if err := ctx.Err(); err != nil {
			x.Log.Warnf("已取消，剩余 %d 个文件未处理", len(files)-i)
			break
		}

		started := time.Now()
		t, fallback := mediainfo.BestTime(f, now())
		if fallback {
			x.Log.Warnf("%s 没有任何时间戳，按当前时间归档", f.Name)
		}
		// 用本地时区格式化，与分组时的日期一致。
		dstDir := filepath.Join(eff.Destination, pattern.FormatString(t.Local()))
		dst := filepath.Join(dstDir, f.Name)

		out, size := x.one(eff, f, dstDir, dst)
		switch out.Status {
		case domain.OutcomeTransferred:
			x.Log.Infof("%s %s -> %s", verb, f.Name, dst)
		case domain.OutcomePlanned:
			x.Log.Infof("[dry-run] %s %s -> %s", verb, f.Name, dst)
		case domain.OutcomeSkipped:
			x.Log.Infof("跳过 %s：目标已存在", f.Name)
		case domain.OutcomeFailed:
			x.Log.Errorf("%s %s 失败：%s", verb, f.Name, out.ErrorMsg)
		}

		res.Add(out, size)
		if x.Observer != nil {
			x.Observer.OnFileDone(i+1, len(files), out, size, time.Since(started))
		}
	}

	x.Log.Successf("Total transferred: %d files (%.1f MB)", res.Count, float64(res.Bytes)/(1024*1024))
	return res
}

func (x Executor) one(eff config.EffectiveConfig, f domain.MediaFile, dstDir, dst string) (domain.FileOutcome, int64) {
	exists, err := fsx.Exists(dst)
	if err != nil {
		return failed(f.Path, dst, &domain.TransferIOError{Op: "stat", Src: f.Path, Dst: dst, Err: err}), 0
	}
	if exists {
		return domain.FileOutcome{Src: f.Path, Dst: dst, Status: domain.OutcomeSkipped}, 0
	}
	if eff.DryRun {
		return domain.FileOutcome{Src: f.Path, Dst: dst, Status: domain.OutcomePlanned}, f.Size
	}

	if err := os.MkdirAll(dstDir, 0o755); err != nil {
		return failed(f.Path, dst, &domain.TransferIOError{Op: "mkdir", Src: f.Path, Dst: dstDir, Err: err}), 0
	}

	var n int64
	if eff.Move {
		n, err = fsx.Move(f.Path, dst)
		if err != nil {
			err = &domain.TransferIOError{Op: "move", Src: f.Path, Dst: dst, Err: err}
		}
	} else {
		n, err = fsx.CopyFile(f.Path, dst)
		if err != nil {
			err = &domain.TransferIOError{Op: "copy", Src: f.Path, Dst: dst, Err: err}
		}
	}
	if err != nil {
		// 并发写入者抢先创建了目标：按“已存在”处理。
		if errors.Is(err, os.ErrExist) {
			return domain.FileOutcome{Src: f.Path, Dst: dst, Status: domain.OutcomeSkipped}, 0
		}
		return failed(f.Path, dst, err), 0
	}
	return domain.FileOutcome{Src: f.Path, Dst: dst, Status: domain.OutcomeTransferred}, n
}

func failed(src, dst string, err error) domain.FileOutcome {
	code := domain.ErrCodeTransferFailed
	if errors.Is(err, os.ErrNotExist) {
		code = domain.ErrCodeSourceNotFound
	}
	return domain.FileOutcome{
		Src:       src,
		Dst:       dst,
		Status:    domain.OutcomeFailed,
		ErrorCode: code,
		ErrorMsg:  err.Error(),
	}
}

// DateFolder 返回 t 在给定格式下的目录名（供 list/dry-run 展示）。
func DateFolder(layout string, t time.Time) (string, error) {
	if strings.TrimSpace(layout) == "" {
		layout = DefaultDateFormat
	}
	s, err := strftime.Format(layout, t.Local())
	if err != nil {
		return "", fmt.Errorf("date_format 无效：%q：%w", layout, err)
	}
	return s, nil
}
