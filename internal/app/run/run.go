package run

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/John-Robertt/gopro-transfer/internal/app/selector"
	"github.com/John-Robertt/gopro-transfer/internal/app/transfer"
	"github.com/John-Robertt/gopro-transfer/internal/config"
	"github.com/John-Robertt/gopro-transfer/internal/domain"
	"github.com/John-Robertt/gopro-transfer/internal/gpmf"
	"github.com/John-Robertt/gopro-transfer/internal/infra/fsx"
	"github.com/John-Robertt/gopro-transfer/internal/infra/logx"
	"github.com/John-Robertt/gopro-transfer/internal/mediainfo"
	"github.com/John-Robertt/gopro-transfer/internal/scan"
	"github.com/John-Robertt/gopro-transfer/internal/telemetry"
)

const (
	// ReportDir 是目标目录下保存运行报告的目录。
	ReportDir  = ".gopro-transfer"
	ReportName = "report.json"
)

// Deps 是 run 依赖的可替换组件；零值字段使用默认实现。
type Deps struct {
	Log       *logx.Logger
	Read      mediainfo.ReadFunc
	Telemetry telemetry.Opener
	Now       func() time.Time
}

func (d Deps) withDefaults(eff config.EffectiveConfig) Deps {
	if d.Read == nil {
		d.Read = mediainfo.Read
	}
	if d.Telemetry == nil {
		d.Telemetry = telemetry.GPMF(gpmf.Opener{FfprobePath: eff.FfprobePath})
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return d
}

// Execute 执行一次传输，并返回对外稳定的 RunReport。
// 卷级错误（源不存在、没有 DCIM）中止本次 run；单个文件/视频的失败只记录在报告中。
func Execute(ctx context.Context, eff config.EffectiveConfig, deps Deps) domain.RunReport {
	return ExecuteWithObserver(ctx, eff, deps, nil)
}

// ExecuteWithObserver 与 Execute 相同，但允许传入 Observer 以输出进度/阶段信息。
func ExecuteWithObserver(ctx context.Context, eff config.EffectiveConfig, deps Deps, obs Observer) domain.RunReport {
	deps = deps.withDefaults(eff)
	log := deps.Log.Named("run")

	if obs != nil {
		obs.OnStart(eff)
	}

	rr := domain.RunReport{
		RunID:       uuid.NewString(),
		Source:      eff.Source,
		Destination: eff.Destination,
		DryRun:      eff.DryRun,
		Move:        eff.Move,
		AllDates:    eff.AllDates,
		StartedAt:   deps.Now(),
	}
	finish := func() domain.RunReport {
		rr.FinishedAt = deps.Now()
		rr.Finalize()
		return rr
	}

	// scan
	scanStarted := time.Now()
	res, err := scan.ScanVolume(eff.Source)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			rr.ErrorCode = domain.ErrCodeSourceNotFound
			rr.ErrorMsg = fmt.Sprintf("未找到 GoPro 存储卡：%v", err)
		} else {
			rr.ErrorCode = domain.ErrCodeIOFailed
			rr.ErrorMsg = fmt.Sprintf("扫描失败：%v", err)
		}
		log.Errorf("%s", rr.ErrorMsg)
		return finish()
	}
	rr.Folders = res.Folders
	if obs != nil {
		obs.OnPhaseDone("scan", map[string]any{
			"folders": len(res.Folders),
			"media":   res.MediaCount,
		}, time.Since(scanStarted))
	}
	if !res.ContainerFound {
		rr.ErrorCode = domain.ErrCodeContainerNotFound
		rr.ErrorMsg = fmt.Sprintf("%s 下没有 %s 目录", eff.Source, scan.ContainerDir)
		log.Errorf("%s", rr.ErrorMsg)
		return finish()
	}
	log.Infof("找到 GoPro 存储卡：%s（%d 个媒体目录）", eff.Source, len(res.Folders))

	// select
	selStarted := time.Now()
	sel, err := selector.Select(selector.Options{
		Scan:     res,
		Folder:   eff.MediaDir,
		Exts:     eff.Extensions,
		AllDates: eff.AllDates,
		Read:     deps.Read,
		Now:      deps.Now(),
	})
	if err != nil {
		rr.ErrorCode = domain.ErrCodeIOFailed
		rr.ErrorMsg = fmt.Sprintf("选择文件失败：%v", err)
		log.Errorf("%s", rr.ErrorMsg)
		return finish()
	}
	rr.SelectedDate = sel.Date
	rr.Summary.Candidates = sel.Candidates
	if sel.FallbackNow > 0 {
		log.Warnf("%d 个文件没有时间戳，按当前时间分组", sel.FallbackNow)
	}
	for _, p := range sel.Missing {
		log.Warnf("文件在扫描后消失：%s", p)
	}
	if obs != nil {
		obs.OnPhaseDone("select", map[string]any{
			"candidates": sel.Candidates,
			"dates":      len(sel.Dates),
			"selected":   len(sel.Files),
		}, time.Since(selStarted))
	}
	if sel.Candidates == 0 {
		log.Warnf("存储卡上没有匹配的媒体文件")
		return finish()
	}
	if sel.Date != "" {
		log.Infof("选择最新日期 %s：%d/%d 个文件", sel.Date, len(sel.Files), sel.Candidates)
	}

	// transfer
	xferStarted := time.Now()
	x := transfer.Executor{Log: deps.Log.Named("transfer"), Observer: obs, Now: deps.Now}
	tr := x.Execute(ctx, eff, sel.Files)
	rr.Items = tr.Items
	rr.Summary.Bytes = tr.Bytes
	if obs != nil {
		obs.OnPhaseDone("transfer", map[string]any{
			"transferred": tr.Count,
			"skipped":     tr.Skipped,
			"failed":      tr.Failed,
			"planned":     tr.Planned,
		}, time.Since(xferStarted))
	}

	// telemetry：只处理本次真正写入的视频。
	if eff.Telemetry && !eff.DryRun {
		telStarted := time.Now()
		videos := make([]string, 0, len(tr.Records))
		for _, r := range tr.Records {
			if strings.HasSuffix(r.Dst, scan.VideoExt) {
				videos = append(videos, r.Dst)
			}
		}
		for i, v := range videos {
			if ctx.Err() != nil {
				break
			}
			started := time.Now()
			t := ExportTelemetry(v, v, eff.TelemetryFormats, deps.Telemetry, deps.Log.Named("telemetry"))
			rr.Telemetry = append(rr.Telemetry, t)
			if obs != nil {
				obs.OnTelemetryDone(i+1, len(videos), t, time.Since(started))
			}
		}
		if obs != nil {
			obs.OnPhaseDone("telemetry", map[string]any{"videos": len(videos)}, time.Since(telStarted))
		}
	}

	return finish()
}

// ExportTelemetry 提取一个视频的遥测数据并导出到 basePath 所在目录。
// 失败不会中止调用方，结果记录在 TelemetryResult 中。
func ExportTelemetry(video, basePath string, formats []string, opener telemetry.Opener, log *logx.Logger) domain.TelemetryResult {
	res := domain.TelemetryResult{Video: video, Outputs: map[string]string{}}

	data, err := telemetry.Extract(video, opener, log)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			res.ErrorCode = domain.ErrCodeSourceNotFound
		case errors.Is(err, domain.ErrParse):
			res.ErrorCode = domain.ErrCodeParseFailed
		default:
			res.ErrorCode = domain.ErrCodeIOFailed
		}
		res.ErrorMsg = err.Error()
		return res
	}
	if data.Empty() {
		log.Warnf("%s 没有可用的遥测数据", filepath.Base(video))
	}

	out, err := telemetry.Export(data, basePath, formats)
	if out != nil {
		res.Outputs = out
	}
	if err != nil {
		res.ErrorCode = domain.ErrCodeExportFailed
		res.ErrorMsg = err.Error()
		log.Errorf("导出遥测数据失败：%v", err)
		return res
	}
	for k, p := range out {
		log.Infof("遥测数据已保存（%s）：%s", k, p)
	}
	return res
}

// ReportPath 返回 dest 下运行报告的路径。
func ReportPath(dest string) string {
	return filepath.Join(dest, ReportDir, ReportName)
}

// SaveReport 把报告原子写入 <dest>/.gopro-transfer/report.json（覆盖上一次）。
func SaveReport(dest string, rr domain.RunReport) error {
	b, err := json.MarshalIndent(rr, "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')
	return fsx.WriteFileAtomic(filepath.Join(dest, ReportDir), ReportName, b)
}
