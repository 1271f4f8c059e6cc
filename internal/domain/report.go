package domain

import (
	"encoding/json"
	"sort"
	"time"
)

const (
	ErrCodeSourceNotFound    = "source_not_found"
	ErrCodeContainerNotFound = "container_not_found"
	ErrCodeNoMedia           = "no_media"
	ErrCodeIOFailed          = "io_failed"
	ErrCodeTransferFailed    = "transfer_failed"
	ErrCodeParseFailed       = "parse_failed"
	ErrCodeExportFailed      = "export_failed"
	ErrCodeConfigNotFound    = "config_not_found"
	ErrCodeConfigInvalid     = "config_invalid"
)

// RunReport 是对外稳定输出（report.json / stdout JSON）的结构。
type RunReport struct {
	RunID       string `json:"run_id"`
	Source      string `json:"source"`
	Destination string `json:"destination"`
	DryRun      bool   `json:"dry_run"`
	Move        bool   `json:"move"`
	AllDates    bool   `json:"all_dates"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	// SelectedDate 仅在 latest-day 模式下非空。
	SelectedDate string       `json:"selected_date,omitempty"`
	Folders      []FolderInfo `json:"folders"`

	// 卷级/配置级失败：整个 run 中止时填写。
	ErrorCode string `json:"error_code,omitempty"`
	ErrorMsg  string `json:"error_msg,omitempty"`

	Summary   ReportSummary     `json:"summary"`
	Items     []FileOutcome     `json:"items"`
	Telemetry []TelemetryResult `json:"telemetry"`
}

type ReportSummary struct {
	Candidates  int   `json:"candidates"`
	Transferred int   `json:"transferred"`
	Skipped     int   `json:"skipped"`
	Failed      int   `json:"failed"`
	Planned     int   `json:"planned"`
	Bytes       int64 `json:"bytes"`
	Telemetry   int   `json:"telemetry"`
}

// TelemetryResult 记录一个视频的遥测导出结果。
type TelemetryResult struct {
	Video     string            `json:"video"`
	Outputs   map[string]string `json:"outputs"`
	ErrorCode string            `json:"error_code,omitempty"`
	ErrorMsg  string            `json:"error_msg,omitempty"`
}

// Failed 报告这次 run 是否应以非零退出码结束。
func (r RunReport) Failed() bool {
	if r.ErrorCode != "" || r.Summary.Failed > 0 {
		return true
	}
	for _, t := range r.Telemetry {
		if t.ErrorCode != "" {
			return true
		}
	}
	return false
}

// Finalize 做三件事：
// 1) 时间统一为 UTC（确保 JSON 为 RFC3339 且后缀 Z）
// 2) items/telemetry 稳定排序：按 src 字典序
// 3) summary 由 items 计算得出（candidates/bytes 由调用方填写）
func (r *RunReport) Finalize() {
	r.StartedAt = r.StartedAt.UTC()
	r.FinishedAt = r.FinishedAt.UTC()

	if r.Items == nil {
		r.Items = []FileOutcome{}
	}
	if r.Folders == nil {
		r.Folders = []FolderInfo{}
	}
	if r.Telemetry == nil {
		r.Telemetry = []TelemetryResult{}
	}

	sort.SliceStable(r.Items, func(i, j int) bool { return r.Items[i].Src < r.Items[j].Src })
	sort.SliceStable(r.Telemetry, func(i, j int) bool { return r.Telemetry[i].Video < r.Telemetry[j].Video })

	s := ReportSummary{Candidates: r.Summary.Candidates, Bytes: r.Summary.Bytes}
	for _, it := range r.Items {
		switch it.Status {
		case OutcomeTransferred:
			s.Transferred++
		case OutcomeSkipped:
			s.Skipped++
		case OutcomeFailed:
			s.Failed++
		case OutcomePlanned:
			s.Planned++
		}
	}
	for _, t := range r.Telemetry {
		if t.ErrorCode == "" {
			s.Telemetry++
		}
	}
	r.Summary = s
}

// MarshalJSON 仅用于集中约束输出的稳定性（避免未来不小心引入非确定字段）。
func (r RunReport) MarshalJSON() ([]byte, error) {
	type Alias RunReport
	return json.Marshal(Alias(r))
}
