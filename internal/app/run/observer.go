package run

import (
	"time"

	"github.com/John-Robertt/gopro-transfer/internal/app/transfer"
	"github.com/John-Robertt/gopro-transfer/internal/config"
	"github.com/John-Robertt/gopro-transfer/internal/domain"
)

// Observer 用于把“运行进度/阶段/逐文件结果”从核心执行流程中解耦出来。
//
// 约束：run 包只负责发事件，不做任何输出（避免污染 stdout 的 JSON 契约）。
type Observer interface {
	transfer.Observer
	// OnStart 在 ExecuteWithObserver 开始时调用。
	OnStart(eff config.EffectiveConfig)
	// OnPhaseDone 在阶段结束时调用（scan/select/transfer/telemetry）。
	OnPhaseDone(name string, fields map[string]any, dur time.Duration)
	// OnTelemetryDone 在一个视频的遥测导出完成（或失败）后调用。
	OnTelemetryDone(idx, total int, res domain.TelemetryResult, dur time.Duration)
}
