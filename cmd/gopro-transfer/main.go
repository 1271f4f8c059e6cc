package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"github.com/John-Robertt/gopro-transfer/internal/app/run"
	"github.com/John-Robertt/gopro-transfer/internal/app/watch"
	"github.com/John-Robertt/gopro-transfer/internal/config"
	"github.com/John-Robertt/gopro-transfer/internal/domain"
	"github.com/John-Robertt/gopro-transfer/internal/gpmf"
	"github.com/John-Robertt/gopro-transfer/internal/infra/logx"
	"github.com/John-Robertt/gopro-transfer/internal/mediainfo"
	"github.com/John-Robertt/gopro-transfer/internal/telemetry"
)

func main() {
	args := os.Args[1:]
	if len(args) == 0 || isHelp(args[0]) {
		printUsage()
		return
	}

	if _, ok := commandFlags[args[0]]; !ok {
		fmt.Fprintf(os.Stderr, "未知命令：%q\n\n", args[0])
		printUsage()
		os.Exit(2)
	}
	if code := runCommand(args[0], args[1:]); code != 0 {
		os.Exit(code)
	}
}

func runCommand(cmd string, args []string) int {
	for _, a := range args {
		if isHelp(a) {
			printCommandUsage(cmd)
			return 0
		}
	}

	ca, err := parseArgs(cmd, args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "参数错误：%v\n\n", err)
		printCommandUsage(cmd)
		return 2
	}

	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "读取当前目录失败：%v\n", err)
		return 1
	}

	eff, err := config.LoadEffective(cwd, ca.CLIArgs)
	if err != nil {
		if cmd == cmdTransfer || cmd == cmdWatch {
			emitReport(reportForConfigError(ca, err))
		} else {
			fmt.Fprintf(os.Stderr, "%v\n", err)
		}
		return 1
	}

	log, err := logx.New(logx.Options{Level: eff.LogLevel, Console: os.Stderr, File: eff.LogFile})
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败：%v\n", err)
		return 1
	}
	defer log.Close()
	if eff.ConfigFile != "" {
		log.Debugf("读取配置文件：%s", eff.ConfigFile)
	}
	if eff.LogFile != "" {
		log.Debugf("日志同时写入：%s", eff.LogFile)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch cmd {
	case cmdTransfer:
		return transferCmd(ctx, eff, log)
	case cmdList:
		return listCmd(eff, log)
	case cmdTelemetry:
		return telemetryCmd(ca, eff, log)
	case cmdWatch:
		return watchCmd(ctx, ca, eff, log)
	}
	return 2
}

func transferCmd(ctx context.Context, eff config.EffectiveConfig, log *logx.Logger) int {
	progressW, interactive := pickProgressWriter()
	var obs run.Observer
	if interactive {
		ui := newProgressUI(progressW)
		defer ui.Close()
		obs = ui
	}

	rr := run.ExecuteWithObserver(ctx, eff, run.Deps{Log: log}, obs)
	return finishRun(eff, rr, progressW)
}

// finishRun 按需落盘报告并输出，返回退出码。
func finishRun(eff config.EffectiveConfig, rr domain.RunReport, progressW io.Writer) int {
	saved := shouldSaveReport(eff, rr)
	if saved {
		if err := run.SaveReport(eff.Destination, rr); err != nil {
			fmt.Fprintf(os.Stderr, "写入 report.json 失败：%v\n", err)
			emitReport(rr)
			return 1
		}
	}

	emitReport(rr)
	emitLocations(progressW, eff, saved)
	if rr.Failed() {
		return 1
	}
	return 0
}

// shouldSaveReport：dry-run 不落盘；卡不存在（卷级失败）时不创建目标目录。
func shouldSaveReport(eff config.EffectiveConfig, rr domain.RunReport) bool {
	if eff.DryRun {
		return false
	}
	switch rr.ErrorCode {
	case domain.ErrCodeSourceNotFound, domain.ErrCodeContainerNotFound:
		return false
	}
	return true
}

func listCmd(eff config.EffectiveConfig, log *logx.Logger) int {
	entries, err := run.List(eff, run.Deps{Log: log}, mediainfo.Prober{FfprobePath: eff.FfprobePath})
	if err != nil {
		log.Errorf("%v", err)
		return 1
	}
	for _, e := range entries {
		fmt.Fprintf(os.Stdout, "%s -> %s/\n", e.Format(), e.Folder)
	}
	return 0
}

func telemetryCmd(ca cliArgs, eff config.EffectiveConfig, log *logx.Logger) int {
	video, err := filepath.Abs(ca.Video)
	if err != nil {
		fmt.Fprintf(os.Stderr, "无效的视频路径 %q：%v\n", ca.Video, err)
		return 1
	}
	base := video
	if ca.Output != "" {
		if base, err = filepath.Abs(ca.Output); err != nil {
			fmt.Fprintf(os.Stderr, "无效的输出路径 %q：%v\n", ca.Output, err)
			return 1
		}
		// 输出到已有目录时沿用视频文件名。
		if fi, err := os.Stat(base); err == nil && fi.IsDir() {
			base = filepath.Join(base, filepath.Base(video))
		}
	}

	opener := telemetry.GPMF(gpmf.Opener{FfprobePath: eff.FfprobePath})
	res := run.ExportTelemetry(video, base, eff.TelemetryFormats, opener, log.Named("telemetry"))

	if isTTY(os.Stdout) {
		keys := make([]string, 0, len(res.Outputs))
		for k := range res.Outputs {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(os.Stdout, "%s: %s\n", k, res.Outputs[k])
		}
	} else {
		_ = json.NewEncoder(os.Stdout).Encode(res)
	}

	if res.ErrorCode != "" {
		color.New(color.FgHiRed).Fprintf(os.Stderr, "%s %s: %s\n", res.Video, res.ErrorCode, res.ErrorMsg)
		return 1
	}
	return 0
}

func watchCmd(ctx context.Context, ca cliArgs, eff config.EffectiveConfig, log *logx.Logger) int {
	progressW, interactive := pickProgressWriter()

	code := 0
	w := watch.Watcher{Source: eff.Source, Log: log.Named("watch"), Once: ca.Once}
	err := w.Run(ctx, func(ctx context.Context) {
		var obs run.Observer
		if interactive {
			ui := newProgressUI(progressW)
			defer ui.Close()
			obs = ui
		}
		rr := run.ExecuteWithObserver(ctx, eff, run.Deps{Log: log}, obs)
		if c := finishRun(eff, rr, progressW); c != 0 {
			code = c
		}
	})
	if err != nil {
		log.Errorf("监听失败：%v", err)
		return 1
	}
	if ca.Once {
		return code
	}
	return 0
}

func printUsage() {
	fmt.Fprint(os.Stdout, `用法：
  gopro-transfer <命令> [参数]

命令：
  transfer   把存储卡上最新一天的素材复制/移动到目标目录（按日期分目录）
  list       列出存储卡上的媒体文件
  telemetry  从单个视频提取 GPMF 遥测数据并导出
  watch      等待存储卡挂载后自动执行 transfer

使用 "gopro-transfer <命令> --help" 查看详细说明。
`)
}

func printCommandUsage(cmd string) {
	switch cmd {
	case cmdTransfer, cmdWatch:
		fmt.Fprintf(os.Stdout, `用法：
  gopro-transfer %s [--source P] [--destination P] [--media-dir N | --all-folders]
                    [--date-format F] [--extensions .MP4,.JPG] [--move[=true|false]]
                    [--all-dates[=true|false]] [--dry-run] [--telemetry] [--formats json,csv,yaml]
                    [--log-level L] [--log-file F] [--config F]%s

参数：
  --source       存储卡挂载路径（默认 GOPRO_SOURCE_PATH 或 /Volumes/GoPro）
  --destination  目标根目录（默认 GOPRO_DESTINATION_PATH 或 ~/Documents/Videos/GoPro）
  --media-dir    只处理 DCIM 下的该目录（默认 100GOPRO）
  --all-folders  处理 DCIM 下全部 ###GOPRO 目录
  --date-format  日期目录格式（strftime，默认 %%Y-%%m-%%d）
  --extensions   要处理的扩展名，逗号分隔（区分大小写）
  --move         移动而不是复制
  --all-dates    传输全部日期（默认只传最新一天）
  --dry-run      只计算目标路径，不写入任何文件
  --telemetry    为传输的视频导出遥测数据
  --formats      遥测导出格式：json、csv、yaml
  --log-level    VERBOSE|DEBUG|INFO|SUCCESS|WARNING|ERROR
  --log-file     额外写入的日志文件
  --config       配置文件（.env/.yaml/.json/.toml；也可用 GOPRO_CONFIG）
`, cmd, onceUsage(cmd))
	case cmdList:
		fmt.Fprint(os.Stdout, `用法：
  gopro-transfer list [--source P] [--media-dir N | --all-folders] [--extensions .MP4,.JPG]
                      [--date-format F] [--log-level L] [--log-file F] [--config F]
`)
	case cmdTelemetry:
		fmt.Fprint(os.Stdout, `用法：
  gopro-transfer telemetry <video.MP4> [--output P] [--formats json,csv,yaml]
                           [--log-level L] [--log-file F] [--config F]

参数：
  --output   输出基准路径或目录（默认与视频同目录、同名）
  --formats  导出格式（默认 GOPRO_TELEMETRY_FORMATS 或 json,csv）
`)
	}
}

func onceUsage(cmd string) string {
	if cmd != cmdWatch {
		return ""
	}
	return "\n                    [--once]\n\n  --once         只处理一次挂载后退出"
}

func emitReport(rr domain.RunReport) {
	if isTTY(os.Stdout) {
		printSummary(os.Stdout, rr)
		printFailures(os.Stderr, rr)
		return
	}

	// stdout 非 TTY：stdout 只输出 RunReport JSON（日志/摘要走 stderr）。
	enc := json.NewEncoder(os.Stdout)
	_ = enc.Encode(rr)
	printSummary(os.Stderr, rr)
}

func printSummary(w io.Writer, rr domain.RunReport) {
	c := color.New(color.FgHiGreen)
	if rr.Failed() {
		c = color.New(color.FgHiRed, color.Bold)
	}
	s := rr.Summary
	c.Fprintf(w, "完成：transferred=%d skipped=%d failed=%d planned=%d telemetry=%d (%.1f MB)\n",
		s.Transferred, s.Skipped, s.Failed, s.Planned, s.Telemetry, float64(s.Bytes)/(1024*1024),
	)
}

func printFailures(w io.Writer, rr domain.RunReport) {
	red := color.New(color.FgHiRed)
	if rr.ErrorCode != "" {
		red.Fprintf(w, "%s: %s\n", rr.ErrorCode, rr.ErrorMsg)
	}
	for _, it := range rr.Items {
		if it.Status != domain.OutcomeFailed {
			continue
		}
		red.Fprintf(w, "%s %s: %s\n", it.Src, it.ErrorCode, it.ErrorMsg)
	}
	for _, t := range rr.Telemetry {
		if t.ErrorCode == "" {
			continue
		}
		red.Fprintf(w, "%s %s: %s\n", t.Video, t.ErrorCode, t.ErrorMsg)
	}
}

func reportForConfigError(ca cliArgs, err error) domain.RunReport {
	now := time.Now().UTC()
	rr := domain.RunReport{
		Source:      ca.Source,
		Destination: ca.Destination,
		DryRun:      ca.DryRun,
		StartedAt:   now,
		FinishedAt:  now,
		ErrorCode:   config.Code(err),
		ErrorMsg:    err.Error(),
	}
	if rr.ErrorCode == "" {
		rr.ErrorCode = domain.ErrCodeConfigInvalid
	}
	rr.Finalize()
	return rr
}

func isTTY(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func pickProgressWriter() (io.Writer, bool) {
	// 进度输出只在交互终端启用；默认走 stderr（不污染 stdout JSON）。
	if isTTY(os.Stderr) {
		return os.Stderr, true
	}
	if isTTY(os.Stdout) {
		return os.Stdout, true
	}
	return nil, false
}

func emitLocations(w io.Writer, eff config.EffectiveConfig, saved bool) {
	if w == nil {
		return
	}
	if saved {
		fmt.Fprintf(w, "report: %s\n", run.ReportPath(eff.Destination))
	}
	fmt.Fprintf(w, "out: %s\n", eff.Destination)
}
