package domain

// Candidate 是某个 source 搜索结果列表中的一行（已打分）。
//
// Ref 是指向详情页的不透明引用（通常是 href），只由 resolver 解释。
type Candidate struct {
	Name       string  `json:"name"`
	Similarity float64 `json:"similarity"`
	Ref        string  `json:"ref"`
}

// OutcomeKind 是一次 (file, source) 匹配的结论类型。
type OutcomeKind int

const (
	// OutcomeNoResult 表示结果页没有任何可用行。
	OutcomeNoResult OutcomeKind = iota
	// OutcomeAccepted 表示最高相似度达到阈值，可直接解析详情页。
	OutcomeAccepted
	// OutcomePendingReview 表示最高相似度低于阈值，需要人工确认。
	OutcomePendingReview
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeAccepted:
		return "accepted"
	case OutcomePendingReview:
		return "pending_review"
	default:
		return "no_result"
	}
}

// Outcome 是 matcher 的输出（tagged variant，只读取与 Kind 对应的字段）。
//
// - Accepted：Ref + Closest
// - PendingReview：Review（携带全部候选，供人工逐条查看）
// - NoResult：无附加字段
type Outcome struct {
	Kind    OutcomeKind
	Ref     string
	Closest Candidate
	Review  ReviewItem
}

// Accepted 构造 Accepted 结论。
func Accepted(closest Candidate) Outcome {
	return Outcome{Kind: OutcomeAccepted, Ref: closest.Ref, Closest: closest}
}

// PendingReview 构造 PendingReview 结论。
func PendingReview(item ReviewItem, closest Candidate) Outcome {
	return Outcome{Kind: OutcomePendingReview, Review: item, Closest: closest}
}

// NoResult 构造 NoResult 结论。
func NoResult() Outcome { return Outcome{Kind: OutcomeNoResult} }
