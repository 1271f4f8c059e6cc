package watch

import (
	"context"
	"errors"
	"path/filepath"
	"time"

	"github.com/rjeczalik/notify"

	"github.com/John-Robertt/gopro-transfer/internal/infra/logx"
	"github.com/John-Robertt/gopro-transfer/internal/scan"
)

const DefaultPoll = 2 * time.Second

// Watcher 等待存储卡挂载（源目录下出现 DCIM），然后执行一次传输。
//
// 文件系统事件（notify）用于尽快唤醒；同时定期轮询，
// 因为挂载点的父目录在部分平台上不产生事件。
type Watcher struct {
	Source string
	Poll   time.Duration
	Log    *logx.Logger
	// Once 为 true 时执行一次后返回；否则等卡拔出后继续等待下一次挂载。
	Once bool
}

// Present 报告 source 是否是一张可读的卡（根目录存在且有 DCIM）。
func Present(source string) bool {
	res, err := scan.ScanVolume(source)
	return err == nil && res.ContainerFound
}

// Run 循环等待挂载并调用 fn；ctx 取消后返回 nil。
func (w *Watcher) Run(ctx context.Context, fn func(ctx context.Context)) error {
	for {
		w.Log.Infof("等待存储卡：%s", w.Source)
		if err := w.waitFor(ctx, true); err != nil {
			return ignoreCancel(err)
		}
		w.Log.Successf("检测到存储卡：%s", w.Source)
		fn(ctx)
		if w.Once || ctx.Err() != nil {
			return nil
		}

		w.Log.Infof("处理完成，等待存储卡拔出")
		if err := w.waitFor(ctx, false); err != nil {
			return ignoreCancel(err)
		}
	}
}

func (w *Watcher) waitFor(ctx context.Context, want bool) error {
	if Present(w.Source) == want {
		return nil
	}

	events := make(chan notify.EventInfo, 16)
	parent := filepath.Dir(filepath.Clean(w.Source))
	if err := notify.Watch(parent, events, notify.Create, notify.Remove); err != nil {
		w.Log.Debugf("无法监听 %s，仅使用轮询：%v", parent, err)
	} else {
		defer notify.Stop(events)
	}

	poll := w.Poll
	if poll <= 0 {
		poll = DefaultPoll
	}
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-events:
			w.Log.Verbosef("文件系统事件：%s %s", ev.Event(), ev.Path())
		case <-ticker.C:
		}
		if Present(w.Source) == want {
			return nil
		}
	}
}

func ignoreCancel(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}
