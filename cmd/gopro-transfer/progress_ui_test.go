package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/John-Robertt/gopro-transfer/internal/config"
	"github.com/John-Robertt/gopro-transfer/internal/domain"
)

func TestProgressUI_Lines(t *testing.T) {
	var buf bytes.Buffer
	p := newProgressUI(&buf)
	defer p.Close()

	p.OnStart(config.EffectiveConfig{Source: "/Volumes/GoPro", Destination: "/out", DryRun: true})
	p.OnPhaseDone("select", map[string]any{"candidates": 3, "dates": 2, "selected": 2}, time.Second)
	p.OnFileDone(1, 2, domain.FileOutcome{
		Src:    "/Volumes/GoPro/DCIM/100GOPRO/GOPR0001.MP4",
		Dst:    "/out/2024-01-06/GOPR0001.MP4",
		Status: domain.OutcomePlanned,
	}, 10, time.Millisecond)
	p.OnFileDone(2, 2, domain.FileOutcome{
		Src:       "/Volumes/GoPro/DCIM/100GOPRO/GOPR0002.MP4",
		Status:    domain.OutcomeFailed,
		ErrorCode: domain.ErrCodeTransferFailed,
		ErrorMsg:  "磁盘已满",
	}, 0, time.Millisecond)

	out := buf.String()
	for _, want := range []string{
		"dry-run",
		"media_dir: (全部)",
		"选择: candidates=3 dates=2 selected=2",
		"[1/2] GOPR0001.MP4 PLAN -> 2024-01-06/GOPR0001.MP4",
		"[2/2] GOPR0002.MP4 FAIL transfer_failed: 磁盘已满",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("输出缺少 %q：\n%s", want, out)
		}
	}
	if p.tickerStarted {
		t.Fatalf("最后一个文件完成后 ticker 应停止")
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("abcdefgh", 6); got != "abc..." {
		t.Fatalf("truncate 不正确：%q", got)
	}
	if got := truncate(" ab ", 6); got != "ab" {
		t.Fatalf("truncate 不正确：%q", got)
	}
}
