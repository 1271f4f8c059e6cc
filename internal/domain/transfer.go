package domain

const (
	OutcomeTransferred = "transferred"
	OutcomeSkipped     = "skipped"
	OutcomeFailed      = "failed"
	// OutcomePlanned 只出现在 dry-run：会被传输，但没有写入。
	OutcomePlanned = "planned"
)

// TransferRecord 记录一次成功的复制/移动。
type TransferRecord struct {
	Src  string `json:"src"`
	Dst  string `json:"dst"`
	Size int64  `json:"size"`
}

// FileOutcome 是单个文件的处理结果（transferred/skipped/failed）。
type FileOutcome struct {
	Src       string `json:"src"`
	Dst       string `json:"dst"`
	Status    string `json:"status"`
	ErrorCode string `json:"error_code,omitempty"`
	ErrorMsg  string `json:"error_msg,omitempty"`
}

// TransferResult 汇总一次批量传输。
//
// 约束：目标已存在的文件不产生 TransferRecord，也不计入失败。
type TransferResult struct {
	Records []TransferRecord `json:"records"`
	Items   []FileOutcome    `json:"items"`

	Count   int   `json:"count"`
	Bytes   int64 `json:"bytes"`
	Skipped int   `json:"skipped"`
	Failed  int   `json:"failed"`
	Planned int   `json:"planned"`
}

// Add 追加单个文件结果并维护计数。
func (r *TransferResult) Add(o FileOutcome, size int64) {
	r.Items = append(r.Items, o)
	switch o.Status {
	case OutcomeTransferred:
		r.Records = append(r.Records, TransferRecord{Src: o.Src, Dst: o.Dst, Size: size})
		r.Count++
		r.Bytes += size
	case OutcomeSkipped:
		r.Skipped++
	case OutcomeFailed:
		r.Failed++
	case OutcomePlanned:
		r.Planned++
	}
}
