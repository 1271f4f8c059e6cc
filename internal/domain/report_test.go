package domain

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"
)

func TestRunReport_Finalize_SortAndSummaryAndUTC(t *testing.T) {
	r := RunReport{
		StartedAt:  time.Date(2026, 2, 9, 10, 0, 0, 0, time.FixedZone("X", 8*3600)),
		FinishedAt: time.Date(2026, 2, 9, 10, 0, 1, 0, time.FixedZone("X", 8*3600)),
		Summary:    ReportSummary{Candidates: 5, Bytes: 42},
		Items: []FileOutcome{
			{Src: "/v/DCIM/100GOPRO/GOPR0003.MP4", Status: OutcomeFailed},
			{Src: "/v/DCIM/100GOPRO/GOPR0001.MP4", Status: OutcomeTransferred},
			{Src: "/v/DCIM/100GOPRO/GOPR0002.MP4", Status: OutcomeSkipped},
		},
		Telemetry: []TelemetryResult{
			{Video: "b.MP4", ErrorCode: ErrCodeParseFailed},
			{Video: "a.MP4"},
		},
	}

	r.Finalize()

	if r.Items[0].Status != OutcomeTransferred || r.Items[2].Status != OutcomeFailed {
		t.Fatalf("items 排序不符合契约：%+v", r.Items)
	}
	if r.Telemetry[0].Video != "a.MP4" {
		t.Fatalf("telemetry 排序不符合契约：%+v", r.Telemetry)
	}
	want := ReportSummary{Candidates: 5, Transferred: 1, Skipped: 1, Failed: 1, Bytes: 42, Telemetry: 1}
	if r.Summary != want {
		t.Fatalf("summary 统计不正确：got=%+v want=%+v", r.Summary, want)
	}
	if !r.Failed() {
		t.Fatalf("存在失败文件时 Failed() 应为 true")
	}

	b, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("json.Marshal 失败：%v", err)
	}
	if !bytes.Contains(b, []byte("\"started_at\":\"2026-02-09T02:00:00Z\"")) {
		t.Fatalf("started_at 不是 UTC RFC3339：%s", string(b))
	}
}

func TestRunReport_Finalize_EmptyListsEncodeAsArrays(t *testing.T) {
	var r RunReport
	r.Finalize()

	b, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("json.Marshal 失败：%v", err)
	}
	for _, key := range []string{`"items":[]`, `"folders":[]`, `"telemetry":[]`} {
		if !bytes.Contains(b, []byte(key)) {
			t.Fatalf("期望包含 %s：%s", key, string(b))
		}
	}
	if r.Failed() {
		t.Fatalf("空报告不应视为失败")
	}
}

func TestTransferResult_Add(t *testing.T) {
	var res TransferResult
	res.Add(FileOutcome{Src: "a", Dst: "x/a", Status: OutcomeTransferred}, 10)
	res.Add(FileOutcome{Src: "b", Dst: "x/b", Status: OutcomeSkipped}, 20)
	res.Add(FileOutcome{Src: "c", Dst: "x/c", Status: OutcomeFailed}, 30)

	if res.Count != 1 || res.Bytes != 10 || res.Skipped != 1 || res.Failed != 1 {
		t.Fatalf("计数不正确：%+v", res)
	}
	if len(res.Records) != 1 || res.Records[0].Src != "a" {
		t.Fatalf("只有 transferred 才产生 record：%+v", res.Records)
	}
}
