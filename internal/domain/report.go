package domain

import (
	"encoding/json"
	"sort"
	"time"
)

const (
	StatusWritten       = "written"
	StatusPendingReview = "pending_review"
	StatusSelected      = "selected"
	StatusSkipped       = "skipped"
	StatusNoResult      = "no_result"
	StatusFailed        = "failed"
)

const (
	ErrCodeFetchFailed   = "fetch_failed"
	ErrCodeParseFailed   = "parse_failed"
	ErrCodeArtworkFailed = "artwork_failed"
	ErrCodeWriteFailed   = "write_failed"
	ErrCodeIOFailed      = "io_failed"
)

// RunReport 是对外稳定输出（report.json）的结构。
type RunReport struct {
	RunID string `json:"run_id"`
	Path  string `json:"path"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Summary ReportSummary `json:"summary"`
	Items   []ItemResult  `json:"items"`
}

type ReportSummary struct {
	Files    int `json:"files"`
	Attempts int `json:"attempts"`

	Written  int `json:"written"`
	Reviewed int `json:"reviewed"`
	Skipped  int `json:"skipped"`
	NoResult int `json:"no_result"`
	Failed   int `json:"failed"`
}

// ItemResult 记录一次 (file, source) 尝试的最终状态。
type ItemResult struct {
	File   string `json:"file"`
	Source string `json:"source"`

	Status     string  `json:"status"`
	Similarity float64 `json:"similarity"`
	Candidate  string  `json:"candidate"`
	DetailURL  string  `json:"detail_url"`

	ErrorCode string `json:"error_code"`
	ErrorMsg  string `json:"error_msg"`
}

// Finalize 做三件事：
// 1) 时间统一为 UTC（确保 JSON 为 RFC3339 且后缀 Z）
// 2) items 稳定排序：按 file、再按 source 字典序；file=="" 的合成条目排在最后
// 3) summary 由 items 计算得出（Files 保持调用方设置的值）
func (r *RunReport) Finalize() {
	r.StartedAt = r.StartedAt.UTC()
	r.FinishedAt = r.FinishedAt.UTC()

	sort.SliceStable(r.Items, func(i, j int) bool {
		a, b := r.Items[i], r.Items[j]
		if a.File == "" || b.File == "" {
			return a.File != "" && b.File == ""
		}
		if a.File != b.File {
			return a.File < b.File
		}
		return a.Source < b.Source
	})

	s := ReportSummary{Files: r.Summary.Files}
	for _, it := range r.Items {
		// 不支持写入的文件没有任何 (file, source) 尝试（Source 为空）。
		if it.File != "" && it.Source != "" {
			s.Attempts++
		}
		switch it.Status {
		case StatusWritten:
			s.Written++
		case StatusSelected:
			s.Reviewed++
			s.Written++
		case StatusSkipped, StatusPendingReview:
			s.Skipped++
		case StatusNoResult:
			s.NoResult++
		case StatusFailed:
			s.Failed++
		}
	}
	r.Summary = s
}

// MarshalJSON 仅用于集中约束输出的稳定性（避免未来不小心引入非确定字段）。
func (r RunReport) MarshalJSON() ([]byte, error) {
	type Alias RunReport
	return json.Marshal(Alias(r))
}
