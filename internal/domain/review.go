package domain

// ReviewItem 是一条待人工确认的低置信度匹配。
//
// 生命周期：
// - fan-out 阶段由 matcher 创建（Selected=nil）
// - review 阶段被设置一次 Selected（nil 表示跳过）
// - 被消费一次（触发写入）后丢弃
type ReviewItem struct {
	FileName    string
	SourceIndex int
	Candidates  []Candidate

	// Selected 一旦设置，必须是 Candidates 的合法下标。
	Selected *int
}

// Select 设置选择结果；idx 越界时返回 false 且不修改 item。
func (r *ReviewItem) Select(idx int) bool {
	if idx < 0 || idx >= len(r.Candidates) {
		return false
	}
	r.Selected = &idx
	return true
}

// SelectedCandidate 返回被选中的候选；未选择（跳过）时 ok=false。
func (r ReviewItem) SelectedCandidate() (Candidate, bool) {
	if r.Selected == nil {
		return Candidate{}, false
	}
	i := *r.Selected
	if i < 0 || i >= len(r.Candidates) {
		return Candidate{}, false
	}
	return r.Candidates[i], true
}
