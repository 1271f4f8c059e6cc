package main

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/John-Robertt/gopro-transfer/internal/app/run"
	"github.com/John-Robertt/gopro-transfer/internal/config"
	"github.com/John-Robertt/gopro-transfer/internal/domain"
)

var _ run.Observer = (*progressUI)(nil)

// progressUI 是交互终端下的简洁进度输出。
//
// 所有过程信息写到 stderr（或 fallback 到 stdout），run 层只发事件。
// 大文件复制期间长时间没有输出时，ticker 会定期补一行进度。
type progressUI struct {
	w io.Writer

	mu          sync.Mutex
	startedAt   time.Time
	lastPrinted time.Time

	total int
	done  int
	ok    int
	fail  int
	skip  int
	bytes int64

	keepaliveThreshold time.Duration
	tickerInterval     time.Duration

	stopCh        chan struct{}
	tickerStarted bool
}

func newProgressUI(w io.Writer) *progressUI {
	return &progressUI{
		w:                  w,
		keepaliveThreshold: 6 * time.Second,
		tickerInterval:     2 * time.Second,
	}
}

func (p *progressUI) OnStart(eff config.EffectiveConfig) {
	now := time.Now()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.startedAt.IsZero() {
		p.startedAt = now
	}

	mode := "copy"
	if eff.Move {
		mode = "move"
	}
	if eff.DryRun {
		mode += " (dry-run，不写入)"
	}
	dates := "latest"
	if eff.AllDates {
		dates = "all"
	}
	mediaDir := eff.MediaDir
	if mediaDir == "" {
		mediaDir = "(全部)"
	}

	fmt.Fprintf(p.w, "[%s] gopro-transfer\n", now.Format("15:04:05"))
	fmt.Fprintln(p.w, "配置（生效）:")
	fmt.Fprintf(p.w, "  source: %s\n", eff.Source)
	fmt.Fprintf(p.w, "  destination: %s\n", eff.Destination)
	fmt.Fprintf(p.w, "  media_dir: %s\n", mediaDir)
	fmt.Fprintf(p.w, "  extensions: %s\n", formatStringListJSON(eff.Extensions))
	fmt.Fprintf(p.w, "  date_format: %s\n", eff.DateFormat)
	fmt.Fprintf(p.w, "  mode: %s\n", mode)
	fmt.Fprintf(p.w, "  dates: %s\n", dates)
	if eff.Telemetry {
		fmt.Fprintf(p.w, "  telemetry: on %s\n", formatStringListJSON(eff.TelemetryFormats))
	} else {
		fmt.Fprintln(p.w, "  telemetry: off")
	}
	if eff.ConfigFile != "" {
		fmt.Fprintf(p.w, "  config: %s\n", eff.ConfigFile)
	}
	fmt.Fprintln(p.w)

	p.lastPrinted = time.Now()
}

func (p *progressUI) OnPhaseDone(name string, fields map[string]any, dur time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch name {
	case "scan":
		fmt.Fprintf(p.w, "扫描: folders=%d media=%d (%s)\n",
			intField(fields, "folders"), intField(fields, "media"), formatShortDuration(dur),
		)
	case "select":
		p.total = intField(fields, "selected")
		fmt.Fprintf(p.w, "选择: candidates=%d dates=%d selected=%d (%s)\n\n",
			intField(fields, "candidates"), intField(fields, "dates"), p.total, formatShortDuration(dur),
		)
		if p.total > 0 && !p.tickerStarted {
			p.startTickerLocked()
		}
	case "transfer":
		p.stopTickerLocked()
		fmt.Fprintf(p.w, "\n传输: transferred=%d skipped=%d failed=%d planned=%d (%s)\n",
			intField(fields, "transferred"),
			intField(fields, "skipped"),
			intField(fields, "failed"),
			intField(fields, "planned"),
			formatShortDuration(dur),
		)
	case "telemetry":
		fmt.Fprintf(p.w, "遥测: videos=%d (%s)\n", intField(fields, "videos"), formatShortDuration(dur))
	default:
		fmt.Fprintf(p.w, "%s (%s)\n", name, formatShortDuration(dur))
	}

	p.lastPrinted = time.Now()
}

func (p *progressUI) OnFileDone(idx, total int, out domain.FileOutcome, size int64, dur time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.done = idx
	p.total = total

	name := filepath.Base(out.Src)
	switch out.Status {
	case domain.OutcomeTransferred:
		p.ok++
		p.bytes += size
		fmt.Fprintf(p.w, "[%d/%d] %s OK %s -> %s (%s)\n",
			idx, total, name, formatMB(size), relDst(out.Dst), formatShortDuration(dur),
		)
	case domain.OutcomePlanned:
		p.ok++
		fmt.Fprintf(p.w, "[%d/%d] %s PLAN -> %s\n", idx, total, name, relDst(out.Dst))
	case domain.OutcomeSkipped:
		p.skip++
		fmt.Fprintf(p.w, "[%d/%d] %s SKIP (目标已存在)\n", idx, total, name)
	case domain.OutcomeFailed:
		p.fail++
		fmt.Fprintf(p.w, "[%d/%d] %s FAIL %s: %s (%s)\n",
			idx, total, name, out.ErrorCode, truncate(out.ErrorMsg, 160), formatShortDuration(dur),
		)
	default:
		fmt.Fprintf(p.w, "[%d/%d] %s %s\n", idx, total, name, strings.ToUpper(out.Status))
	}

	p.lastPrinted = time.Now()
	if p.done >= p.total {
		p.stopTickerLocked()
	}
}

func (p *progressUI) OnTelemetryDone(idx, total int, res domain.TelemetryResult, dur time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	name := filepath.Base(res.Video)
	if res.ErrorCode != "" {
		fmt.Fprintf(p.w, "[%d/%d] %s telemetry FAIL %s: %s (%s)\n",
			idx, total, name, res.ErrorCode, truncate(res.ErrorMsg, 160), formatShortDuration(dur),
		)
	} else {
		fmt.Fprintf(p.w, "[%d/%d] %s telemetry OK files=%d (%s)\n",
			idx, total, name, len(res.Outputs), formatShortDuration(dur),
		)
	}
	p.lastPrinted = time.Now()
}

// Close 停止 keepalive ticker（run 被取消时 OnFileDone 可能不会到达最后一个）。
func (p *progressUI) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopTickerLocked()
}

func (p *progressUI) startTickerLocked() {
	stop := make(chan struct{})
	p.stopCh = stop
	p.tickerStarted = true

	interval := p.tickerInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	threshold := p.keepaliveThreshold
	if threshold <= 0 {
		threshold = 6 * time.Second
	}

	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()

		for {
			select {
			case <-t.C:
				p.mu.Lock()
				if p.total > 0 && time.Since(p.lastPrinted) > threshold {
					fmt.Fprintf(p.w, "进度: done=%d/%d ok=%d fail=%d skip=%d copied=%s elapsed=%s\n",
						p.done, p.total, p.ok, p.fail, p.skip, formatMB(p.bytes), formatElapsed(time.Since(p.startedAt)),
					)
					p.lastPrinted = time.Now()
				}
				p.mu.Unlock()
			case <-stop:
				return
			}
		}
	}()
}

func (p *progressUI) stopTickerLocked() {
	if !p.tickerStarted {
		return
	}
	close(p.stopCh)
	p.tickerStarted = false
}

// relDst 只展示 <日期目录>/<文件名>。
func relDst(dst string) string {
	if dst == "" {
		return ""
	}
	return filepath.Join(filepath.Base(filepath.Dir(dst)), filepath.Base(dst))
}

func formatMB(n int64) string {
	return fmt.Sprintf("%.1f MB", float64(n)/(1024*1024))
}

func formatStringListJSON(xs []string) string {
	// json.Marshal(nil slice) => "null"；对用户更友好的是 "[]"
	if xs == nil {
		xs = []string{}
	}
	b, err := json.Marshal(xs)
	if err != nil {
		return "[]"
	}
	return string(b)
}

func truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	if max <= 0 || len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}

func formatShortDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

func formatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	sec := int(d.Seconds())
	h := sec / 3600
	m := (sec % 3600) / 60
	s := sec % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

func intField(fields map[string]any, key string) int {
	if fields == nil {
		return 0
	}
	switch x := fields[key].(type) {
	case int:
		return x
	case int64:
		return int(x)
	default:
		return 0
	}
}
